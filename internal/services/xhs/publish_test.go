package xhs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/redbook/internal/models"
	"github.com/ternarybob/redbook/internal/services/browser/browsertest"
)

func TestTitleWidth(t *testing.T) {
	tests := []struct {
		title string
		want  int
	}{
		{"", 0},
		{"hello", 5},
		{"你好", 4},
		{"春日穿搭 OOTD", 13},
		{"ｆｕｌｌ", 8},
		{"한국", 4},
		{"Ω", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TitleWidth(tt.title), tt.title)
	}

	assert.LessOrEqual(t, TitleWidth(strings.Repeat("字", 20)), MaxTitleWidth)
	assert.Greater(t, TitleWidth(strings.Repeat("字", 21)), MaxTitleWidth)
}

func TestParseSchedule(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	at, err := ParseSchedule("", now)
	require.NoError(t, err)
	assert.Nil(t, at)

	at, err = ParseSchedule("2026-03-01T12:30:00Z", now)
	require.NoError(t, err)
	require.NotNil(t, at)
	assert.True(t, at.Equal(time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)))

	at, err = ParseSchedule("2026-03-02T09:00:00+08:00", now)
	require.NoError(t, err)
	assert.True(t, at.Equal(time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)))

	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"garbage", "next tuesday", "定时发布时间格式错误，请使用 ISO8601/RFC3339：next tuesday"},
		{"too soon", "2026-03-01T10:30:00Z", "定时发布时间必须至少在 1 小时后"},
		{"past", "2026-02-01T10:00:00Z", "定时发布时间必须至少在 1 小时后"},
		{"too far", "2026-03-16T10:00:01Z", "定时发布时间不能超过 14 天"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchedule(tt.value, now)
			assert.ErrorIs(t, err, ErrInvalidSchedule)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNormalizeTags(t *testing.T) {
	tags, truncated := NormalizeTags([]string{"#旅行", " 美食 ", "", "##穿搭", "#"})
	assert.Equal(t, []string{"旅行", "美食", "穿搭"}, tags)
	assert.False(t, truncated)

	many := make([]string, 12)
	for i := range many {
		many[i] = string(rune('a' + i))
	}
	tags, truncated = NormalizeTags(many)
	assert.Len(t, tags, MaxTags)
	assert.True(t, truncated)
	assert.Equal(t, "j", tags[9])
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cover.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))
	return path
}

func TestPublishImage_ValidatesBeforeLaunch(t *testing.T) {
	h := newHarness(t, nil)
	img := writeImage(t)

	_, err := h.service.PublishImage(context.Background(), models.PublishImageRequest{
		Title: strings.Repeat("长", 21), Content: "c", Images: []string{img},
	})
	assert.ErrorIs(t, err, ErrInvalidTitle)

	_, err = h.service.PublishImage(context.Background(), models.PublishImageRequest{
		Title: "t", Content: "c", Images: []string{img}, ScheduleAt: "2026-03-01T10:10:00Z",
	})
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	_, err = h.service.PublishImage(context.Background(), models.PublishImageRequest{
		Title: "t", Content: "c", Images: []string{filepath.Join(t.TempDir(), "missing.png")},
	})
	assert.Error(t, err)

	assert.Empty(t, h.launcher.Launches())
}

func TestPublishImage_FailureSavesScreenshot(t *testing.T) {
	h := newHarness(t, func(p *browsertest.Page) {
		p.ScreenshotData = []byte("shot")
		pageState{}.install(p, false)
	})

	_, err := h.service.PublishImage(context.Background(), models.PublishImageRequest{
		Title: "t", Content: "c", Images: []string{writeImage(t)},
	})
	require.Error(t, err)

	shot := filepath.Join(h.config.ScreenshotsDir(), "publish_content_2026-03-01T10-00-00-000Z.png")
	assert.Contains(t, err.Error(), "div.upload-content")
	assert.True(t, strings.HasSuffix(err.Error(), "\n截图: "+shot), err.Error())

	data, readErr := os.ReadFile(shot)
	require.NoError(t, readErr)
	assert.Equal(t, "shot", string(data))
}

func TestPublishImage_FillsFormAndSubmits(t *testing.T) {
	img := writeImage(t)
	h := newHarness(t, func(p *browsertest.Page) {
		pageState{}.install(p, true)
		p.CountFunc = func(selector string) (int, error) {
			switch selector {
			case selectorImagePreview, selectorEditor:
				return 1, nil
			}
			return 0, nil
		}
		matchText(p)
	})

	tags := make([]string, 11)
	for i := range tags {
		tags[i] = "tag"
	}
	res, err := h.service.PublishImage(context.Background(), models.PublishImageRequest{
		Title: "春日", Content: "正文", Images: []string{img}, Tags: tags,
	})
	require.NoError(t, err)
	assert.Equal(t, &models.PublishResult{
		Title:  "春日",
		Images: 1,
		Status: "发布完成",
		Note:   "标签数量超过 10，已截断前 10 个标签",
	}, res)

	page := h.pages(t, 0)[0]
	assert.Equal(t, []string{PublishURL}, page.Visits())
	assert.Equal(t, []string{img}, page.Files(selectorImageInput))
	assert.Equal(t, []string{"春日", "正文"}, page.Typed())
	// "#tag" and the closing space per tag, no suggestion list present
	assert.Equal(t, 20, page.Runs())
	assert.Contains(t, page.Clicks(), markSelector("publish-tab"))
	assert.Contains(t, page.Clicks(), markSelector("click-"+submitButtonText))
}

func TestPublishVideo_RequiresReadableFile(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.service.PublishVideo(context.Background(), models.PublishVideoRequest{Title: "t"})
	assert.EqualError(t, err, "必须提供本地视频文件路径")

	_, err = h.service.PublishVideo(context.Background(), models.PublishVideoRequest{Title: "t", Video: t.TempDir()})
	assert.ErrorIs(t, err, ErrVideoMissing)

	_, err = h.service.PublishVideo(context.Background(), models.PublishVideoRequest{Title: "t", Video: "/nonexistent/clip.mp4"})
	assert.ErrorIs(t, err, ErrVideoMissing)
	assert.Contains(t, err.Error(), "/nonexistent/clip.mp4")

	assert.Empty(t, h.launcher.Launches())
}

func TestPublishVideo_UploadsAndPublishes(t *testing.T) {
	video := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(video, []byte("mp4"), 0o644))

	h := newHarness(t, func(p *browsertest.Page) {
		pageState{}.install(p, true)
		p.CountFunc = func(selector string) (int, error) {
			if selector == selectorEditor {
				return 1, nil
			}
			return 0, nil
		}
		p.WaitVisibleFunc = func(ctx context.Context, selector string, timeout time.Duration) error {
			return nil
		}
		matchText(p)
	})

	res, err := h.service.PublishVideo(context.Background(), models.PublishVideoRequest{
		Title: "t", Content: "c", Video: video, Tags: []string{"vlog"},
	})
	require.NoError(t, err)
	assert.Equal(t, "发布完成", res.Status)

	page := h.pages(t, 0)[0]
	assert.Equal(t, []string{video}, page.Files(selectorVideoInput))
	assert.Contains(t, page.Clicks(), selectorVideoPublish)
}
