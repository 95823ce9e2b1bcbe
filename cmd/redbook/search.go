package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/redbook/internal/models"
)

var searchFilters models.SearchFilters

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search notes and print the result cards as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	flags := searchCmd.Flags()
	flags.StringVar(&searchFilters.SortBy, "sort-by", "", "综合, 最新, 最多点赞, 最多评论 or 最多收藏")
	flags.StringVar(&searchFilters.NoteType, "note-type", "", "不限, 视频 or 图文")
	flags.StringVar(&searchFilters.PublishTime, "publish-time", "", "不限, 一天内, 一周内 or 半年内")
	flags.StringVar(&searchFilters.SearchScope, "search-scope", "", "不限, 已看过, 未看过 or 已关注")
	flags.StringVar(&searchFilters.Location, "location", "", "不限, 同城 or 附近")
}

func runSearch(cmd *cobra.Command, args []string) error {
	keyword := strings.Join(args, " ")
	if err := newArgValidator().Struct(searchArgs{Keyword: keyword, Filters: searchFilters}); err != nil {
		return err
	}

	app, err := startCLI()
	if err != nil {
		return err
	}
	defer closeApp(app)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	feeds, err := app.content.Search(ctx, keyword, searchFilters)
	if err != nil {
		return err
	}
	return printJSON(feeds)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
