package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/redbook/internal/common"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server on stdio (default)",
	Long:  `Starts the MCP server. Requests arrive on stdin and responses go to stdout, so logs are written to a file only.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	// stdout carries the protocol
	config.Logging.Output = withoutConsole(config.Logging.Output)
	logger = common.InitLogger(config)

	if err := os.MkdirAll(config.Storage.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	app := newApplication(config, logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Close(ctx); err != nil {
			logger.Warn().Err(err).Msg("Shutdown did not finish cleanly")
		}
	}()

	mcpServer := server.NewMCPServer(
		"redbook-mcp",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)
	registerTools(mcpServer, app.login, app.content, newArgValidator(), logger)

	logger.Info().
		Str("version", common.GetVersion()).
		Str("log_file", config.LogFilePath()).
		Msg("MCP server ready on stdio")

	// Blocks until stdin closes or a termination signal arrives
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Error().Err(err).Msg("MCP server failed")
		return err
	}
	logger.Info().
		Int64("background_tasks", common.GetGoroutineCount()).
		Msg("MCP server stopped")
	return nil
}

func withoutConsole(outputs []string) []string {
	kept := make([]string, 0, len(outputs))
	for _, o := range outputs {
		if o != "stdout" && o != "console" {
			kept = append(kept, o)
		}
	}
	if len(kept) == 0 {
		kept = append(kept, "file")
	}
	return kept
}

// registerTools adds every tool to the server
func registerTools(s *server.MCPServer, auth loginService, content contentService, v *argValidator, logger arbor.ILogger) {
	// Login
	s.AddTool(createCheckLoginStatusTool(), handleCheckLoginStatus(auth, logger))
	s.AddTool(createGetLoginQRCodeTool(), handleGetLoginQRCode(auth, logger))
	s.AddTool(createDeleteCookiesTool(), handleDeleteCookies(auth, logger))

	// Publishing
	s.AddTool(createPublishContentTool(), handlePublishContent(content, v, logger))
	s.AddTool(createPublishWithVideoTool(), handlePublishWithVideo(content, v, logger))

	// Reading
	s.AddTool(createListFeedsTool(), handleListFeeds(content, logger))
	s.AddTool(createSearchFeedsTool(), handleSearchFeeds(content, v, logger))
	s.AddTool(createGetSpecifiedPostTool(), handleGetSpecifiedPost(content, v, logger))
	s.AddTool(createGetFeedDetailTool(), handleGetFeedDetail(content, v, logger))
	s.AddTool(createUserProfileTool(), handleUserProfile(content, v, logger))

	// Interactions
	s.AddTool(createPostCommentTool(), handlePostComment(content, v, logger))
	s.AddTool(createReplyCommentTool(), handleReplyComment(content, v, logger))
	s.AddTool(createLikeFeedTool(), handleLikeFeed(content, v, logger))
	s.AddTool(createFavoriteFeedTool(), handleFavoriteFeed(content, v, logger))
}
