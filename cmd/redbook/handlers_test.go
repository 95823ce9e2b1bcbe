package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/redbook/internal/models"
	"github.com/ternarybob/redbook/internal/services/xhs"
)

type mockLogin struct {
	mock.Mock
}

func (m *mockLogin) CheckStatus(ctx context.Context) (*models.LoginStatus, error) {
	args := m.Called(ctx)
	status, _ := args.Get(0).(*models.LoginStatus)
	return status, args.Error(1)
}

func (m *mockLogin) BeginHandshake(ctx context.Context) (*models.HandshakeResult, error) {
	args := m.Called(ctx)
	result, _ := args.Get(0).(*models.HandshakeResult)
	return result, args.Error(1)
}

func (m *mockLogin) ResetCredentials(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

type mockContent struct {
	mock.Mock
}

func (m *mockContent) ListFeeds(ctx context.Context) (*models.FeedList, error) {
	args := m.Called(ctx)
	feeds, _ := args.Get(0).(*models.FeedList)
	return feeds, args.Error(1)
}

func (m *mockContent) Search(ctx context.Context, keyword string, filters models.SearchFilters) (*models.FeedList, error) {
	args := m.Called(ctx, keyword, filters)
	feeds, _ := args.Get(0).(*models.FeedList)
	return feeds, args.Error(1)
}

func (m *mockContent) SpecifiedPosts(ctx context.Context, keyword string, count int, filters models.SearchFilters) ([]models.PostDetail, error) {
	args := m.Called(ctx, keyword, count, filters)
	posts, _ := args.Get(0).([]models.PostDetail)
	return posts, args.Error(1)
}

func (m *mockContent) FeedDetail(ctx context.Context, req xhs.FeedDetailRequest) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

func (m *mockContent) UserProfile(ctx context.Context, userID, xsecToken string) (*models.UserProfile, error) {
	args := m.Called(ctx, userID, xsecToken)
	profile, _ := args.Get(0).(*models.UserProfile)
	return profile, args.Error(1)
}

func (m *mockContent) PostComment(ctx context.Context, feedID, xsecToken, content string) error {
	return m.Called(ctx, feedID, xsecToken, content).Error(0)
}

func (m *mockContent) ReplyComment(ctx context.Context, req xhs.ReplyRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockContent) Like(ctx context.Context, feedID, xsecToken string, undo bool) (*xhs.InteractResult, error) {
	args := m.Called(ctx, feedID, xsecToken, undo)
	result, _ := args.Get(0).(*xhs.InteractResult)
	return result, args.Error(1)
}

func (m *mockContent) Favorite(ctx context.Context, feedID, xsecToken string, undo bool) (*xhs.InteractResult, error) {
	args := m.Called(ctx, feedID, xsecToken, undo)
	result, _ := args.Get(0).(*xhs.InteractResult)
	return result, args.Error(1)
}

func (m *mockContent) PublishImage(ctx context.Context, req models.PublishImageRequest) (*models.PublishResult, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*models.PublishResult)
	return result, args.Error(1)
}

func (m *mockContent) PublishVideo(ctx context.Context, req models.PublishVideoRequest) (*models.PublishResult, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*models.PublishResult)
	return result, args.Error(1)
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), arguments map[string]any) *mcp.CallToolResult {
	t.Helper()
	var request mcp.CallToolRequest
	request.Params.Arguments = arguments
	result, err := handler(context.Background(), request)
	require.NoError(t, err, "handlers report failures as tool results")
	require.NotNil(t, result)
	return result
}

func firstText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "first content is text")
	return text.Text
}

func TestCheckLoginStatus(t *testing.T) {
	auth := &mockLogin{}
	auth.On("CheckStatus", mock.Anything).Return(&models.LoginStatus{LoggedIn: true, Username: "redbook-mcp"}, nil).Once()
	auth.On("CheckStatus", mock.Anything).Return(&models.LoginStatus{}, nil).Once()

	handler := handleCheckLoginStatus(auth, arbor.NewLogger())

	result := callTool(t, handler, nil)
	assert.False(t, result.IsError)
	assert.Equal(t, "✅ 已登录\n用户名: redbook-mcp\n\n你可以使用其他功能了。", firstText(t, result))

	result = callTool(t, handler, nil)
	assert.Contains(t, firstText(t, result), "❌ 未登录")
	assert.Contains(t, firstText(t, result), "get_login_qrcode")
}

func TestCheckLoginStatus_Error(t *testing.T) {
	auth := &mockLogin{}
	auth.On("CheckStatus", mock.Anything).Return(nil, errors.New("chrome not found"))

	result := callTool(t, handleCheckLoginStatus(auth, arbor.NewLogger()), nil)
	assert.True(t, result.IsError)
	assert.Contains(t, firstText(t, result), "chrome not found")
}

func TestGetLoginQRCode_ReturnsImage(t *testing.T) {
	auth := &mockLogin{}
	auth.On("BeginHandshake", mock.Anything).Return(&models.HandshakeResult{
		Challenge: &models.Challenge{MimeType: "image/png", Base64: "iVBORw0KGgo="},
		Remaining: 239*time.Second + 200*time.Millisecond,
	}, nil)

	result := callTool(t, handleGetLoginQRCode(auth, arbor.NewLogger()), nil)
	require.Len(t, result.Content, 2)
	assert.Equal(t, "请用小红书 App 在 240s 内扫码登录 👇", firstText(t, result))

	image, ok := result.Content[1].(mcp.ImageContent)
	require.True(t, ok)
	assert.Equal(t, "iVBORw0KGgo=", image.Data)
	assert.Equal(t, "image/png", image.MIMEType)
}

func TestGetLoginQRCode_AlreadyLoggedIn(t *testing.T) {
	auth := &mockLogin{}
	auth.On("BeginHandshake", mock.Anything).Return(&models.HandshakeResult{LoggedIn: true}, nil).Once()
	auth.On("BeginHandshake", mock.Anything).Return(&models.HandshakeResult{LoggedIn: true, Warning: "check again"}, nil).Once()

	handler := handleGetLoginQRCode(auth, arbor.NewLogger())

	result := callTool(t, handler, nil)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "你当前已处于登录状态", firstText(t, result))

	result = callTool(t, handler, nil)
	assert.Contains(t, firstText(t, result), "check again")
}

func TestDeleteCookies(t *testing.T) {
	auth := &mockLogin{}
	auth.On("ResetCredentials", mock.Anything).Return("/data/cookies.json", nil)

	result := callTool(t, handleDeleteCookies(auth, arbor.NewLogger()), nil)
	assert.False(t, result.IsError)
	assert.Contains(t, firstText(t, result), "删除的文件路径: /data/cookies.json")
	auth.AssertExpectations(t)
}

func TestPublishContent_ValidationFailsBeforeService(t *testing.T) {
	content := &mockContent{}
	handler := handlePublishContent(content, newArgValidator(), arbor.NewLogger())

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{
			name: "missing images",
			args: map[string]any{"title": "t", "content": "c", "images": []any{}},
			want: "images",
		},
		{
			name: "title too wide",
			args: map[string]any{"title": "这是一个非常非常非常非常非常长的标题超过二十个字", "content": "c", "images": []any{"/a.png"}},
			want: "标题长度超过限制",
		},
		{
			name: "missing content",
			args: map[string]any{"title": "t", "images": []any{"/a.png"}},
			want: "content is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, handler, tt.args)
			assert.True(t, result.IsError)
			assert.Contains(t, firstText(t, result), tt.want)
		})
	}
	content.AssertNotCalled(t, "PublishImage", mock.Anything, mock.Anything)
}

func TestPublishContent_Success(t *testing.T) {
	content := &mockContent{}
	content.On("PublishImage", mock.Anything, models.PublishImageRequest{
		Title:   "春日",
		Content: "正文",
		Images:  []string{"/a.png", "https://example.com/b.jpg"},
		Tags:    []string{"旅行"},
	}).Return(&models.PublishResult{Title: "春日", Images: 2, Status: "发布完成", Note: "标签已截断"}, nil)

	result := callTool(t, handlePublishContent(content, newArgValidator(), arbor.NewLogger()), map[string]any{
		"title":   "春日",
		"content": "正文",
		"images":  []any{"/a.png", "https://example.com/b.jpg"},
		"tags":    []any{"旅行"},
	})
	assert.False(t, result.IsError)
	assert.Equal(t, "发布完成\n标题: 春日\n图片: 2\n备注: 标签已截断", firstText(t, result))
	content.AssertExpectations(t)
}

func TestPublishWithVideo(t *testing.T) {
	content := &mockContent{}
	content.On("PublishVideo", mock.Anything, mock.MatchedBy(func(req models.PublishVideoRequest) bool {
		return req.Video == "/v.mp4" && req.Title == "vlog"
	})).Return(&models.PublishResult{Title: "vlog", Status: "发布完成"}, nil)

	handler := handlePublishWithVideo(content, newArgValidator(), arbor.NewLogger())

	result := callTool(t, handler, map[string]any{"title": "vlog"})
	assert.True(t, result.IsError)
	assert.Contains(t, firstText(t, result), "video is required")

	result = callTool(t, handler, map[string]any{"title": "vlog", "video": "/v.mp4"})
	assert.Equal(t, "视频发布完成\n标题: vlog", firstText(t, result))
}

func TestSearchFeeds_PassesFilters(t *testing.T) {
	content := &mockContent{}
	filters := models.SearchFilters{SortBy: "最新", NoteType: "图文"}
	content.On("Search", mock.Anything, "咖啡", filters).Return(&models.FeedList{
		Feeds: []json.RawMessage{json.RawMessage(`{"id":"a"}`)},
		Count: 1,
	}, nil)

	result := callTool(t, handleSearchFeeds(content, newArgValidator(), arbor.NewLogger()), map[string]any{
		"keyword": " 咖啡 ",
		"filters": map[string]any{"sort_by": "最新", "note_type": "图文"},
	})
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"feeds":[{"id":"a"}],"count":1}`, firstText(t, result))
}

func TestSearchFeeds_RejectsUnknownFilterValue(t *testing.T) {
	content := &mockContent{}
	result := callTool(t, handleSearchFeeds(content, newArgValidator(), arbor.NewLogger()), map[string]any{
		"keyword": "咖啡",
		"filters": map[string]any{"location": "火星"},
	})
	assert.True(t, result.IsError)
	assert.Contains(t, firstText(t, result), "location")
	content.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetSpecifiedPost(t *testing.T) {
	content := &mockContent{}
	content.On("SpecifiedPosts", mock.Anything, "露营", 3, models.SearchFilters{}).Return([]models.PostDetail{
		{Note: models.PostNote{Title: "帐篷"}},
	}, nil)

	handler := handleGetSpecifiedPost(content, newArgValidator(), arbor.NewLogger())

	result := callTool(t, handler, map[string]any{"keyword": "露营", "post_count": 0})
	assert.True(t, result.IsError)
	assert.Contains(t, firstText(t, result), "post_count")

	result = callTool(t, handler, map[string]any{"keyword": "露营", "post_count": 3})
	assert.False(t, result.IsError)
	assert.Contains(t, firstText(t, result), `"title": "帐篷"`)
}

func TestGetFeedDetail_CommentDefaults(t *testing.T) {
	content := &mockContent{}
	content.On("FeedDetail", mock.Anything, xhs.FeedDetailRequest{
		FeedID:          "f1",
		XsecToken:       "tok",
		LoadAllComments: true,
		Comments: models.CommentLoadConfig{
			MaxRepliesThreshold: xhs.DefaultReplyThreshold,
			ScrollSpeed:         "normal",
		},
	}).Return(json.RawMessage(`{"note":{"title":"t"}}`), nil)

	result := callTool(t, handleGetFeedDetail(content, newArgValidator(), arbor.NewLogger()), map[string]any{
		"feed_id":           "f1",
		"xsec_token":        "tok",
		"load_all_comments": true,
	})
	assert.False(t, result.IsError)
	assert.Equal(t, "{\n  \"note\": {\n    \"title\": \"t\"\n  }\n}", firstText(t, result))
	content.AssertExpectations(t)
}

func TestGetFeedDetail_ExplicitZeroThreshold(t *testing.T) {
	args := feedDetailArgs{CommentConfig: commentConfigArgs{MaxRepliesThreshold: new(int), ScrollSpeed: "fast"}}
	req := args.request()
	assert.Equal(t, 0, req.Comments.MaxRepliesThreshold)
	assert.Equal(t, "fast", req.Comments.ScrollSpeed)
}

func TestGetFeedDetail_Unreachable(t *testing.T) {
	content := &mockContent{}
	content.On("FeedDetail", mock.Anything, mock.Anything).Return(nil, &xhs.UnreachableError{Reason: "当前笔记暂时无法浏览"})

	result := callTool(t, handleGetFeedDetail(content, newArgValidator(), arbor.NewLogger()), map[string]any{
		"feed_id":    "f1",
		"xsec_token": "tok",
	})
	assert.True(t, result.IsError)
	assert.Contains(t, firstText(t, result), "当前笔记暂时无法浏览")
}

func TestUserProfile(t *testing.T) {
	content := &mockContent{}
	content.On("UserProfile", mock.Anything, "u1", "tok").Return(&models.UserProfile{
		UserBasicInfo: json.RawMessage(`{"nickname":"n"}`),
		Interactions:  json.RawMessage(`[]`),
		Feeds:         []json.RawMessage{},
	}, nil)

	result := callTool(t, handleUserProfile(content, newArgValidator(), arbor.NewLogger()), map[string]any{
		"user_id":    "u1",
		"xsec_token": "tok",
	})
	assert.JSONEq(t, `{"userBasicInfo":{"nickname":"n"},"interactions":[],"feeds":[]}`, firstText(t, result))
}

func TestPostComment(t *testing.T) {
	content := &mockContent{}
	content.On("PostComment", mock.Anything, "f1", "tok", "好看").Return(nil)

	result := callTool(t, handlePostComment(content, newArgValidator(), arbor.NewLogger()), map[string]any{
		"feed_id":    "f1",
		"xsec_token": "tok",
		"content":    "好看",
	})
	assert.Equal(t, "评论发表成功 - Feed ID: f1", firstText(t, result))
}

func TestReplyComment_NeedsTarget(t *testing.T) {
	content := &mockContent{}
	handler := handleReplyComment(content, newArgValidator(), arbor.NewLogger())

	result := callTool(t, handler, map[string]any{
		"feed_id":    "f1",
		"xsec_token": "tok",
		"content":    "谢谢",
	})
	assert.True(t, result.IsError)
	assert.Equal(t, "缺少 comment_id 或 user_id", firstText(t, result))
	content.AssertNotCalled(t, "ReplyComment", mock.Anything, mock.Anything)

	content.On("ReplyComment", mock.Anything, xhs.ReplyRequest{
		FeedID: "f1", XsecToken: "tok", UserID: "u9", Content: "谢谢",
	}).Return(nil)
	result = callTool(t, handler, map[string]any{
		"feed_id":    "f1",
		"xsec_token": "tok",
		"user_id":    "u9",
		"content":    "谢谢",
	})
	assert.Equal(t, "评论回复成功 - Feed ID: f1", firstText(t, result))
}

func TestLikeAndFavorite(t *testing.T) {
	content := &mockContent{}
	content.On("Like", mock.Anything, "f1", "tok", true).Return(&xhs.InteractResult{FeedID: "f1", Action: "unlike", Changed: true}, nil)
	content.On("Favorite", mock.Anything, "f1", "tok", false).Return(&xhs.InteractResult{FeedID: "f1", Action: "favorite"}, nil)

	v := newArgValidator()
	logger := arbor.NewLogger()

	result := callTool(t, handleLikeFeed(content, v, logger), map[string]any{
		"feed_id": "f1", "xsec_token": "tok", "unlike": true,
	})
	assert.Equal(t, "取消点赞成功 - Feed ID: f1", firstText(t, result))

	result = callTool(t, handleFavoriteFeed(content, v, logger), map[string]any{
		"feed_id": "f1", "xsec_token": "tok",
	})
	assert.Contains(t, firstText(t, result), "收藏成功 - Feed ID: f1")
	assert.Contains(t, firstText(t, result), "已跳过")
}

func TestLikeFeed_MissingToken(t *testing.T) {
	content := &mockContent{}
	result := callTool(t, handleLikeFeed(content, newArgValidator(), arbor.NewLogger()), map[string]any{
		"feed_id": "f1",
	})
	assert.True(t, result.IsError)
	assert.Contains(t, firstText(t, result), "xsec_token is required")
}
