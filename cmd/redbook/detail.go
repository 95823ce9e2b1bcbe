package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/redbook/internal/services/loader"
	"github.com/ternarybob/redbook/internal/services/xhs"
)

var (
	detailToken       string
	detailAllComments bool
	detailMaxComments int
)

var detailCmd = &cobra.Command{
	Use:   "detail <feed_id>",
	Short: "Print a note's detail state as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runDetail,
}

func init() {
	detailCmd.Flags().StringVar(&detailToken, "token", "", "xsec_token from a feed card")
	detailCmd.Flags().BoolVar(&detailAllComments, "all-comments", false, "Scroll to load the comment thread")
	detailCmd.Flags().IntVar(&detailMaxComments, "max-comments", 0, "Stop loading after this many comments (0 = no ceiling)")
	_ = detailCmd.MarkFlagRequired("token")
}

func runDetail(cmd *cobra.Command, args []string) error {
	app, err := startCLI()
	if err != nil {
		return err
	}
	defer closeApp(app)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := feedDetailArgs{
		feedTargetArgs:  feedTargetArgs{FeedID: args[0], XsecToken: detailToken},
		LoadAllComments: detailAllComments,
		CommentConfig: commentConfigArgs{
			MaxCommentItems: detailMaxComments,
			ScrollSpeed:     string(loader.SpeedNormal),
		},
	}.request()

	detail, err := app.content.FeedDetail(ctx, req)
	if err != nil {
		var unreachable *xhs.UnreachableError
		if errors.As(err, &unreachable) {
			return fmt.Errorf("note %s is unavailable: %s", args[0], unreachable.Reason)
		}
		return err
	}
	fmt.Println(indentRaw(detail))
	return nil
}
