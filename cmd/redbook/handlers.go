package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/redbook/internal/models"
	"github.com/ternarybob/redbook/internal/services/loader"
	"github.com/ternarybob/redbook/internal/services/xhs"
)

// loginService is the login surface used by the tools
type loginService interface {
	CheckStatus(ctx context.Context) (*models.LoginStatus, error)
	BeginHandshake(ctx context.Context) (*models.HandshakeResult, error)
	ResetCredentials(ctx context.Context) (string, error)
}

// contentService is the page-action surface used by the tools
type contentService interface {
	ListFeeds(ctx context.Context) (*models.FeedList, error)
	Search(ctx context.Context, keyword string, filters models.SearchFilters) (*models.FeedList, error)
	SpecifiedPosts(ctx context.Context, keyword string, count int, filters models.SearchFilters) ([]models.PostDetail, error)
	FeedDetail(ctx context.Context, req xhs.FeedDetailRequest) (json.RawMessage, error)
	UserProfile(ctx context.Context, userID, xsecToken string) (*models.UserProfile, error)
	PostComment(ctx context.Context, feedID, xsecToken, content string) error
	ReplyComment(ctx context.Context, req xhs.ReplyRequest) error
	Like(ctx context.Context, feedID, xsecToken string, undo bool) (*xhs.InteractResult, error)
	Favorite(ctx context.Context, feedID, xsecToken string, undo bool) (*xhs.InteractResult, error)
	PublishImage(ctx context.Context, req models.PublishImageRequest) (*models.PublishResult, error)
	PublishVideo(ctx context.Context, req models.PublishVideoRequest) (*models.PublishResult, error)
}

type searchArgs struct {
	Keyword string               `json:"keyword" validate:"required"`
	Filters models.SearchFilters `json:"filters"`
}

type specifiedPostArgs struct {
	Keyword   string               `json:"keyword" validate:"required"`
	PostCount int                  `json:"post_count" validate:"gt=0"`
	Filters   models.SearchFilters `json:"filters"`
}

type feedTargetArgs struct {
	FeedID    string `json:"feed_id" validate:"required"`
	XsecToken string `json:"xsec_token" validate:"required"`
}

type commentConfigArgs struct {
	ClickMoreReplies    bool   `json:"click_more_replies"`
	MaxRepliesThreshold *int   `json:"max_replies_threshold" validate:"omitempty,gte=0"`
	MaxCommentItems     int    `json:"max_comment_items" validate:"gte=0"`
	ScrollSpeed         string `json:"scroll_speed" validate:"omitempty,oneof=slow normal fast"`
}

type feedDetailArgs struct {
	feedTargetArgs
	LoadAllComments bool              `json:"load_all_comments"`
	CommentConfig   commentConfigArgs `json:"comment_config"`
}

type userProfileArgs struct {
	UserID    string `json:"user_id" validate:"required"`
	XsecToken string `json:"xsec_token" validate:"required"`
}

type postCommentArgs struct {
	feedTargetArgs
	Content string `json:"content" validate:"required"`
}

type replyCommentArgs struct {
	feedTargetArgs
	CommentID string `json:"comment_id"`
	UserID    string `json:"user_id"`
	Content   string `json:"content" validate:"required"`
}

type likeArgs struct {
	feedTargetArgs
	Unlike bool `json:"unlike"`
}

type favoriteArgs struct {
	feedTargetArgs
	Unfavorite bool `json:"unfavorite"`
}

// bindArgs decodes and validates the request arguments into target
func bindArgs(request mcp.CallToolRequest, v *argValidator, target any) error {
	if err := request.BindArguments(target); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return v.Struct(target)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(fmt.Sprintf(format, args...)),
		},
		IsError: true,
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("Error: failed to encode result: %v", err)
	}
	return textResult(string(data))
}

// handleCheckLoginStatus implements the check_login_status tool
func handleCheckLoginStatus(auth loginService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status, err := auth.CheckStatus(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Login status check failed")
			return errorResult("检查登录状态失败: %v", err), nil
		}
		return textResult(formatLoginStatus(status)), nil
	}
}

// handleGetLoginQRCode implements the get_login_qrcode tool
func handleGetLoginQRCode(auth loginService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := auth.BeginHandshake(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Login handshake failed")
			return errorResult("获取登录二维码失败: %v", err), nil
		}
		if result.LoggedIn || result.Challenge == nil {
			return textResult(formatAlreadyLoggedIn(result)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(formatQRCodePrompt(result)),
				mcp.NewImageContent(result.Challenge.Base64, result.Challenge.MimeType),
			},
		}, nil
	}
}

// handleDeleteCookies implements the delete_cookies tool
func handleDeleteCookies(auth loginService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := auth.ResetCredentials(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Credential reset failed")
			return errorResult("删除 cookies 失败: %v", err), nil
		}
		return textResult(formatCookiesDeleted(path)), nil
	}
}

// handlePublishContent implements the publish_content tool
func handlePublishContent(content contentService, v *argValidator, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var req models.PublishImageRequest
		if err := bindArgs(request, v, &req); err != nil {
			return errorResult("Error: %v", err), nil
		}
		result, err := content.PublishImage(ctx, req)
		if err != nil {
			logger.Error().Err(err).Str("title", req.Title).Msg("Publish failed")
			return errorResult("发布失败: %v", err), nil
		}
		return textResult(formatPublishResult(result)), nil
	}
}

// handlePublishWithVideo implements the publish_with_video tool
func handlePublishWithVideo(content contentService, v *argValidator, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var req models.PublishVideoRequest
		if err := bindArgs(request, v, &req); err != nil {
			return errorResult("Error: %v", err), nil
		}
		result, err := content.PublishVideo(ctx, req)
		if err != nil {
			logger.Error().Err(err).Str("title", req.Title).Msg("Video publish failed")
			return errorResult("视频发布失败: %v", err), nil
		}
		return textResult(formatVideoResult(result)), nil
	}
}

// handleListFeeds implements the list_feeds tool
func handleListFeeds(content contentService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		feeds, err := content.ListFeeds(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("List feeds failed")
			return errorResult("获取Feeds列表失败: %v", err), nil
		}
		return jsonResult(feeds), nil
	}
}

// handleSearchFeeds implements the search_feeds tool
func handleSearchFeeds(content contentService, v *argValidator, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args searchArgs
		if err := bindArgs(request, v, &args); err != nil {
			return errorResult("Error: %v", err), nil
		}
		feeds, err := content.Search(ctx, strings.TrimSpace(args.Keyword), args.Filters)
		if err != nil {
			logger.Error().Err(err).Str("keyword", args.Keyword).Msg("Search failed")
			return errorResult("搜索Feeds失败: %v", err), nil
		}
		return jsonResult(feeds), nil
	}
}

// handleGetSpecifiedPost implements the get_specified_post tool
func handleGetSpecifiedPost(content contentService, v *argValidator, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args specifiedPostArgs
		if err := bindArgs(request, v, &args); err != nil {
			return errorResult("Error: %v", err), nil
		}
		posts, err := content.SpecifiedPosts(ctx, strings.TrimSpace(args.Keyword), args.PostCount, args.Filters)
		if err != nil {
			logger.Error().Err(err).Str("keyword", args.Keyword).Msg("Specified post fetch failed")
			return errorResult("获取帖子失败: %v", err), nil
		}
		return jsonResult(posts), nil
	}
}

func (a feedDetailArgs) request() xhs.FeedDetailRequest {
	threshold := xhs.DefaultReplyThreshold
	if a.CommentConfig.MaxRepliesThreshold != nil {
		threshold = *a.CommentConfig.MaxRepliesThreshold
	}
	speed := a.CommentConfig.ScrollSpeed
	if speed == "" {
		speed = string(loader.SpeedNormal)
	}
	return xhs.FeedDetailRequest{
		FeedID:          a.FeedID,
		XsecToken:       a.XsecToken,
		LoadAllComments: a.LoadAllComments,
		Comments: models.CommentLoadConfig{
			ClickMoreReplies:    a.CommentConfig.ClickMoreReplies,
			MaxRepliesThreshold: threshold,
			MaxCommentItems:     a.CommentConfig.MaxCommentItems,
			ScrollSpeed:         speed,
		},
	}
}

// handleGetFeedDetail implements the get_feed_detail tool
func handleGetFeedDetail(content contentService, v *argValidator, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args feedDetailArgs
		if err := bindArgs(request, v, &args); err != nil {
			return errorResult("Error: %v", err), nil
		}
		detail, err := content.FeedDetail(ctx, args.request())
		if err != nil {
			logger.Error().Err(err).Str("feed_id", args.FeedID).Msg("Feed detail failed")
			return errorResult("获取Feed详情失败: %v", err), nil
		}
		return textResult(indentRaw(detail)), nil
	}
}

// handleUserProfile implements the user_profile tool
func handleUserProfile(content contentService, v *argValidator, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args userProfileArgs
		if err := bindArgs(request, v, &args); err != nil {
			return errorResult("Error: %v", err), nil
		}
		profile, err := content.UserProfile(ctx, args.UserID, args.XsecToken)
		if err != nil {
			logger.Error().Err(err).Str("user_id", args.UserID).Msg("User profile failed")
			return errorResult("获取用户主页失败: %v", err), nil
		}
		return jsonResult(profile), nil
	}
}

// handlePostComment implements the post_comment_to_feed tool
func handlePostComment(content contentService, v *argValidator, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args postCommentArgs
		if err := bindArgs(request, v, &args); err != nil {
			return errorResult("Error: %v", err), nil
		}
		if err := content.PostComment(ctx, args.FeedID, args.XsecToken, args.Content); err != nil {
			logger.Error().Err(err).Str("feed_id", args.FeedID).Msg("Post comment failed")
			return errorResult("发表评论失败: %v", err), nil
		}
		return textResult(formatCommentPosted(args.FeedID)), nil
	}
}

// handleReplyComment implements the reply_comment_in_feed tool
func handleReplyComment(content contentService, v *argValidator, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args replyCommentArgs
		if err := bindArgs(request, v, &args); err != nil {
			return errorResult("Error: %v", err), nil
		}
		if args.CommentID == "" && args.UserID == "" {
			return errorResult("缺少 comment_id 或 user_id"), nil
		}
		err := content.ReplyComment(ctx, xhs.ReplyRequest{
			FeedID:    args.FeedID,
			XsecToken: args.XsecToken,
			CommentID: args.CommentID,
			UserID:    args.UserID,
			Content:   args.Content,
		})
		if err != nil {
			logger.Error().Err(err).
				Str("feed_id", args.FeedID).
				Str("comment_id", args.CommentID).
				Msg("Reply comment failed")
			return errorResult("回复评论失败: %v", err), nil
		}
		return textResult(formatCommentReplied(args.FeedID)), nil
	}
}

// handleLikeFeed implements the like_feed tool
func handleLikeFeed(content contentService, v *argValidator, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args likeArgs
		if err := bindArgs(request, v, &args); err != nil {
			return errorResult("Error: %v", err), nil
		}
		result, err := content.Like(ctx, args.FeedID, args.XsecToken, args.Unlike)
		if err != nil {
			logger.Error().Err(err).Str("feed_id", args.FeedID).Msg("Like failed")
			return errorResult("%s失败: %v", likeVerb(args.Unlike), err), nil
		}
		return textResult(formatInteraction(likeVerb(args.Unlike), result)), nil
	}
}

// handleFavoriteFeed implements the favorite_feed tool
func handleFavoriteFeed(content contentService, v *argValidator, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args favoriteArgs
		if err := bindArgs(request, v, &args); err != nil {
			return errorResult("Error: %v", err), nil
		}
		result, err := content.Favorite(ctx, args.FeedID, args.XsecToken, args.Unfavorite)
		if err != nil {
			logger.Error().Err(err).Str("feed_id", args.FeedID).Msg("Favorite failed")
			return errorResult("%s失败: %v", favoriteVerb(args.Unfavorite), err), nil
		}
		return textResult(formatInteraction(favoriteVerb(args.Unfavorite), result)), nil
	}
}
