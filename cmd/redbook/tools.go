package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func readOnly(title string) []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithTitleAnnotation(title),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	}
}

func destructive(title string) []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithTitleAnnotation(title),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
	}
}

func newTool(name string, annotations []mcp.ToolOption, opts ...mcp.ToolOption) mcp.Tool {
	return mcp.NewTool(name, append(annotations, opts...)...)
}

// searchFilterProperties describes the filters object shared by search_feeds and get_specified_post
func searchFilterProperties() map[string]any {
	enum := func(values ...string) map[string]any {
		return map[string]any{"type": "string", "enum": values}
	}
	return map[string]any{
		"sort_by":      enum("综合", "最新", "最多点赞", "最多评论", "最多收藏"),
		"note_type":    enum("不限", "视频", "图文"),
		"publish_time": enum("不限", "一天内", "一周内", "半年内"),
		"search_scope": enum("不限", "已看过", "未看过", "已关注"),
		"location":     enum("不限", "同城", "附近"),
	}
}

func withFeedTarget() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("feed_id",
			mcp.Required(),
			mcp.Description("小红书笔记ID，从Feed列表获取"),
		),
		mcp.WithString("xsec_token",
			mcp.Required(),
			mcp.Description("访问令牌，从Feed列表的xsecToken字段获取"),
		),
	}
}

// createCheckLoginStatusTool returns the check_login_status tool definition
func createCheckLoginStatusTool() mcp.Tool {
	return newTool("check_login_status", readOnly("Check Login Status"),
		mcp.WithDescription("检查小红书登录状态"),
	)
}

// createGetLoginQRCodeTool returns the get_login_qrcode tool definition
func createGetLoginQRCodeTool() mcp.Tool {
	return newTool("get_login_qrcode", readOnly("Get Login QR Code"),
		mcp.WithDescription("获取登录二维码（返回 Base64 图片和超时时间）"),
	)
}

// createDeleteCookiesTool returns the delete_cookies tool definition
func createDeleteCookiesTool() mcp.Tool {
	return newTool("delete_cookies", destructive("Delete Cookies"),
		mcp.WithDescription("删除 cookies 文件，重置登录状态。删除后需要重新登录。"),
	)
}

// createPublishContentTool returns the publish_content tool definition
func createPublishContentTool() mcp.Tool {
	return newTool("publish_content", destructive("Publish Content"),
		mcp.WithDescription("发布小红书图文内容"),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("内容标题（小红书限制：最多20个中文字或英文单词）"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.MaxLength(1000),
			mcp.Description("正文内容，不包含以#开头的标签内容，所有话题标签都用tags参数来生成和提供即可，不能超过1000个字符"),
		),
		mcp.WithArray("images",
			mcp.Required(),
			mcp.MinItems(1),
			mcp.WithStringItems(),
			mcp.Description("图片路径列表（至少需要1张图片）。支持 HTTP/HTTPS 图片链接（自动下载）或本地图片绝对路径（推荐）"),
		),
		mcp.WithArray("tags",
			mcp.WithStringItems(),
			mcp.Description("话题标签列表（可选参数），如 [美食, 旅行, 生活]"),
		),
		mcp.WithString("schedule_at",
			mcp.Description("定时发布时间（可选），ISO8601格式如 2024-01-20T10:30:00+08:00，支持1小时至14天内。不填则立即发布"),
		),
	)
}

// createPublishWithVideoTool returns the publish_with_video tool definition
func createPublishWithVideoTool() mcp.Tool {
	return newTool("publish_with_video", destructive("Publish Video"),
		mcp.WithDescription("发布小红书视频内容（仅支持本地单个视频文件）"),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("内容标题（小红书限制：最多20个中文字或英文单词）"),
		),
		mcp.WithString("content",
			mcp.MaxLength(1000),
			mcp.Description("正文内容（≤1000字符）"),
		),
		mcp.WithString("video",
			mcp.Required(),
			mcp.Description("本地视频绝对路径"),
		),
		mcp.WithArray("tags",
			mcp.WithStringItems(),
			mcp.Description("话题标签列表（可选参数）"),
		),
		mcp.WithString("schedule_at",
			mcp.Description("定时发布时间（可选），ISO8601格式"),
		),
	)
}

// createListFeedsTool returns the list_feeds tool definition
func createListFeedsTool() mcp.Tool {
	return newTool("list_feeds", readOnly("List Feeds"),
		mcp.WithDescription("获取首页 Feeds 列表"),
	)
}

// createSearchFeedsTool returns the search_feeds tool definition
func createSearchFeedsTool() mcp.Tool {
	return newTool("search_feeds", readOnly("Search Feeds"),
		mcp.WithDescription("搜索小红书内容（需要已登录）"),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("搜索关键词"),
		),
		mcp.WithObject("filters",
			mcp.Properties(searchFilterProperties()),
			mcp.Description("筛选选项"),
		),
	)
}

// createGetSpecifiedPostTool returns the get_specified_post tool definition
func createGetSpecifiedPostTool() mcp.Tool {
	return newTool("get_specified_post", readOnly("获取指定数量和条件的帖子内容"),
		mcp.WithDescription("获取指定数量和条件的帖子内容，返回帖子内容、图片、作者信息、互动数据（点赞/收藏/分享数）及评论列表. 注意：此工具需要已登录."),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("搜索关键词"),
		),
		mcp.WithNumber("post_count",
			mcp.Required(),
			mcp.Description("帖子数量"),
		),
		mcp.WithObject("filters",
			mcp.Properties(searchFilterProperties()),
			mcp.Description("筛选选项"),
		),
	)
}

// createGetFeedDetailTool returns the get_feed_detail tool definition
func createGetFeedDetailTool() mcp.Tool {
	opts := append(withFeedTarget(),
		mcp.WithDescription("获取小红书笔记详情，返回笔记内容、图片、作者信息、互动数据（点赞/收藏/分享数）及评论列表。默认返回前10条一级评论，如需更多评论请设置load_all_comments=true"),
		mcp.WithBoolean("load_all_comments",
			mcp.Description("是否加载全部评论"),
		),
		mcp.WithObject("comment_config",
			mcp.Properties(map[string]any{
				"click_more_replies":    map[string]any{"type": "boolean"},
				"max_replies_threshold": map[string]any{"type": "number"},
				"max_comment_items":     map[string]any{"type": "number"},
				"scroll_speed":          map[string]any{"type": "string", "enum": []string{"slow", "normal", "fast"}},
			}),
		),
	)
	return newTool("get_feed_detail", readOnly("Get Feed Detail"), opts...)
}

// createUserProfileTool returns the user_profile tool definition
func createUserProfileTool() mcp.Tool {
	return newTool("user_profile", readOnly("User Profile"),
		mcp.WithDescription("获取指定的小红书用户主页，返回用户基本信息，关注、粉丝、获赞量及其笔记内容"),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("小红书用户ID，从Feed列表获取"),
		),
		mcp.WithString("xsec_token",
			mcp.Required(),
			mcp.Description("访问令牌，从Feed列表的xsecToken字段获取"),
		),
	)
}

// createPostCommentTool returns the post_comment_to_feed tool definition
func createPostCommentTool() mcp.Tool {
	opts := append(withFeedTarget(),
		mcp.WithDescription("发表评论到小红书笔记"),
		mcp.WithString("content", mcp.Required(), mcp.Description("评论内容")),
	)
	return newTool("post_comment_to_feed", destructive("Post Comment"), opts...)
}

// createReplyCommentTool returns the reply_comment_in_feed tool definition
func createReplyCommentTool() mcp.Tool {
	opts := append(withFeedTarget(),
		mcp.WithDescription("回复小红书笔记下的指定评论"),
		mcp.WithString("comment_id", mcp.Description("目标评论ID")),
		mcp.WithString("user_id", mcp.Description("目标评论作者的用户ID（未提供 comment_id 时使用）")),
		mcp.WithString("content", mcp.Required(), mcp.Description("回复内容")),
	)
	return newTool("reply_comment_in_feed", destructive("Reply Comment"), opts...)
}

// createLikeFeedTool returns the like_feed tool definition
func createLikeFeedTool() mcp.Tool {
	opts := append(withFeedTarget(),
		mcp.WithDescription("为指定笔记点赞或取消点赞（如已点赞将跳过点赞，如未点赞将跳过取消点赞）"),
		mcp.WithBoolean("unlike", mcp.Description("取消点赞")),
	)
	return newTool("like_feed", destructive("Like Feed"), opts...)
}

// createFavoriteFeedTool returns the favorite_feed tool definition
func createFavoriteFeedTool() mcp.Tool {
	opts := append(withFeedTarget(),
		mcp.WithDescription("收藏指定笔记或取消收藏（如已收藏将跳过收藏，如未收藏将跳过取消收藏）"),
		mcp.WithBoolean("unfavorite", mcp.Description("取消收藏")),
	)
	return newTool("favorite_feed", destructive("Favorite Feed"), opts...)
}
