package xhs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ternarybob/redbook/internal/interfaces"
	"github.com/ternarybob/redbook/internal/models"
	"github.com/ternarybob/redbook/internal/services/browser"
)

const (
	// MaxTitleWidth is 20 wide characters or 40 narrow ones
	MaxTitleWidth = 40
	MaxTags       = 10

	publishedStatus = "发布完成"
	tagsTruncated   = "标签数量超过 10，已截断前 10 个标签"

	minScheduleLead = time.Hour
	maxScheduleLead = 14 * 24 * time.Hour
)

// TitleWidth counts CJK, Hangul and fullwidth characters as 2 and everything else as 1
func TitleWidth(title string) int {
	w := 0
	for _, r := range title {
		if isWide(r) {
			w += 2
		} else {
			w++
		}
	}
	return w
}

func isWide(r rune) bool {
	switch {
	case r >= 0x1100 && r <= 0x115f,
		r >= 0x2e80 && r <= 0xa4cf,
		r >= 0xac00 && r <= 0xd7a3,
		r >= 0xf900 && r <= 0xfaff,
		r >= 0xfe10 && r <= 0xfe19,
		r >= 0xfe30 && r <= 0xfe6f,
		r >= 0xff00 && r <= 0xff60,
		r >= 0xffe0 && r <= 0xffe6:
		return true
	}
	return false
}

var scheduleLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseSchedule parses a publish time that must lie 1 hour to 14 days after now.
// An empty value means publish immediately and returns nil.
func ParseSchedule(value string, now time.Time) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	var (
		at     time.Time
		parsed bool
	)
	for _, layout := range scheduleLayouts {
		t, err := time.ParseInLocation(layout, value, time.Local)
		if err == nil {
			at, parsed = t, true
			break
		}
	}
	if !parsed {
		return nil, fmt.Errorf("%w: 定时发布时间格式错误，请使用 ISO8601/RFC3339：%s", ErrInvalidSchedule, value)
	}

	if at.Before(now.Add(minScheduleLead)) {
		return nil, fmt.Errorf("%w: 定时发布时间必须至少在 1 小时后", ErrInvalidSchedule)
	}
	if at.After(now.Add(maxScheduleLead)) {
		return nil, fmt.Errorf("%w: 定时发布时间不能超过 14 天", ErrInvalidSchedule)
	}
	return &at, nil
}

// NormalizeTags strips leading '#' and blanks, keeping at most MaxTags.
// truncated reports whether tags were dropped.
func NormalizeTags(tags []string) (out []string, truncated bool) {
	for _, tag := range tags {
		tag = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(tag), "#"))
		if tag == "" {
			continue
		}
		out = append(out, tag)
	}
	if len(out) > MaxTags {
		return out[:MaxTags], true
	}
	return out, false
}

type publishPlan struct {
	title    string
	content  string
	tags     []string
	schedule *time.Time
	notes    []string
}

func (s *Service) plan(title, content string, tags []string, scheduleAt string) (*publishPlan, error) {
	if TitleWidth(title) > MaxTitleWidth {
		return nil, ErrInvalidTitle
	}
	schedule, err := ParseSchedule(scheduleAt, s.now())
	if err != nil {
		return nil, err
	}
	p := &publishPlan{title: title, content: content, schedule: schedule}
	var truncated bool
	p.tags, truncated = NormalizeTags(tags)
	if truncated {
		p.notes = append(p.notes, tagsTruncated)
	}
	return p, nil
}

func (p *publishPlan) note() string {
	return strings.Join(p.notes, "；")
}

// PublishImage publishes an image note. Remote images are downloaded before the browser is started.
func (s *Service) PublishImage(ctx context.Context, req models.PublishImageRequest) (*models.PublishResult, error) {
	p, err := s.plan(req.Title, req.Content, req.Tags, req.ScheduleAt)
	if err != nil {
		return nil, err
	}
	paths, err := s.images.Resolve(ctx, req.Images)
	if err != nil {
		return nil, err
	}

	err = s.manager.Run(ctx, "publish_content", func(ctx context.Context, session *browser.Session) error {
		if err := s.publishImagePage(ctx, session.Page, p, paths); err != nil {
			return s.withScreenshot(session.Page, "publish_content", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("title", req.Title).
		Int("images", len(paths)).
		Bool("scheduled", p.schedule != nil).
		Msg("Image note published")

	return &models.PublishResult{
		Title:  req.Title,
		Images: len(paths),
		Status: publishedStatus,
		Note:   p.note(),
	}, nil
}

func (s *Service) publishImagePage(ctx context.Context, page interfaces.Page, p *publishPlan, paths []string) error {
	if err := page.Navigate(ctx, PublishURL); err != nil {
		return err
	}
	if err := s.pause(ctx, 3*time.Second); err != nil {
		return err
	}
	if err := s.selectPublishTab(ctx, page, uploadTabText); err != nil {
		return err
	}
	if err := s.pause(ctx, time.Second); err != nil {
		return err
	}

	if err := waitAttached(ctx, page, selectorImageInput, 30*time.Second); err != nil {
		return err
	}
	if err := page.SetFiles(ctx, selectorImageInput, paths); err != nil {
		return fmt.Errorf("failed to upload images: %w", err)
	}
	if err := s.waitPreviews(ctx, page, len(paths), 60*time.Second); err != nil {
		return err
	}

	if err := s.fillTitle(ctx, page, p.title); err != nil {
		return err
	}
	if err := s.fillContent(ctx, page, p.content); err != nil {
		return err
	}
	if err := s.inputTags(ctx, page, p.tags); err != nil {
		return err
	}
	if p.schedule != nil {
		if err := s.setSchedule(ctx, page, *p.schedule); err != nil {
			return err
		}
	}

	if err := s.clickText(ctx, page, selectorSubmitButton, submitButtonText, 10*time.Second); err != nil {
		return err
	}
	return s.pause(ctx, 3*time.Second)
}

// PublishVideo publishes a video note from a local file
func (s *Service) PublishVideo(ctx context.Context, req models.PublishVideoRequest) (*models.PublishResult, error) {
	if strings.TrimSpace(req.Video) == "" {
		return nil, fmt.Errorf("必须提供本地视频文件路径")
	}
	video, err := filepath.Abs(req.Video)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrVideoMissing, req.Video)
	}
	if info, err := os.Stat(video); err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrVideoMissing, req.Video)
	}

	p, err := s.plan(req.Title, req.Content, req.Tags, req.ScheduleAt)
	if err != nil {
		return nil, err
	}

	err = s.manager.Run(ctx, "publish_with_video", func(ctx context.Context, session *browser.Session) error {
		if err := s.publishVideoPage(ctx, session.Page, p, video); err != nil {
			return s.withScreenshot(session.Page, "publish_video", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("title", req.Title).Str("video", video).Msg("Video note published")
	return &models.PublishResult{
		Title:  req.Title,
		Status: publishedStatus,
		Note:   p.note(),
	}, nil
}

func (s *Service) publishVideoPage(ctx context.Context, page interfaces.Page, p *publishPlan, video string) error {
	if err := page.Navigate(ctx, PublishURL); err != nil {
		return err
	}
	if err := waitAttached(ctx, page, selectorUploadContent, 30*time.Second); err != nil {
		return err
	}
	if err := s.pause(ctx, time.Second); err != nil {
		return err
	}
	if err := s.clickText(ctx, page, selectorCreatorTab, uploadVideoTabText, 10*time.Second); err != nil {
		s.logger.Debug().Err(err).Msg("Video tab not clicked, continuing on current tab")
	}
	if err := s.pause(ctx, time.Second); err != nil {
		return err
	}

	if err := s.fillTitle(ctx, page, p.title); err != nil {
		return err
	}
	if err := waitAttached(ctx, page, selectorVideoInput, 30*time.Second); err != nil {
		return err
	}
	if err := page.SetFiles(ctx, selectorVideoInput, []string{video}); err != nil {
		return fmt.Errorf("failed to upload video: %w", err)
	}

	// Optional fields; the video editor may render them late or not at all
	if p.content != "" {
		if err := s.fillContent(ctx, page, p.content); err != nil {
			s.logger.Warn().Err(err).Msg("Video description not entered")
		}
	}
	if err := s.inputTags(ctx, page, p.tags); err != nil {
		s.logger.Warn().Err(err).Msg("Video tags not entered")
	}
	if p.schedule != nil {
		if err := s.setSchedule(ctx, page, *p.schedule); err != nil {
			s.logger.Warn().Err(err).Msg("Video schedule not set")
		}
	}

	// Transcoding has to finish before the publish button appears
	if err := page.WaitVisible(ctx, selectorVideoPublish, 10*time.Minute); err != nil {
		return fmt.Errorf("视频处理超时: %w", err)
	}
	if err := clickWithin(ctx, page, selectorVideoPublish, 10*time.Second); err != nil {
		return err
	}
	return s.pause(ctx, 3*time.Second)
}

// selectPublishTab clicks the creator tab with text, clearing popovers that cover it
func (s *Service) selectPublishTab(ctx context.Context, page interfaces.Page, text string) error {
	if err := waitAttached(ctx, page, selectorUploadContent, 30*time.Second); err != nil {
		return err
	}

	mark := "publish-tab"
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		found, err := markByText(ctx, page, selectorCreatorTab, text, mark, true)
		if err != nil {
			return err
		}
		if found {
			if err := clickWithin(ctx, page, markSelector(mark), 2*time.Second); err == nil {
				return nil
			}
			s.removePopover(ctx, page)
		}
		if err := s.pause(ctx, 200*time.Millisecond); err != nil {
			return err
		}
	}
	return fmt.Errorf("没有找到发布 TAB - %s", text)
}

func (s *Service) removePopover(ctx context.Context, page interfaces.Page) {
	expr := fmt.Sprintf(`(function () {
	var els = document.querySelectorAll(%s);
	for (var i = 0; i < els.length; i++) els[i].remove();
	return els.length;
})()`, browser.JSString(selectorPopover))
	var removed int
	if err := page.Evaluate(ctx, expr, &removed); err != nil {
		s.logger.Debug().Err(err).Msg("Popover removal failed")
	}
	_ = page.MouseClick(ctx, 420, 40)
}

func (s *Service) waitPreviews(ctx context.Context, page interfaces.Page, want int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if n, err := page.Count(ctx, selectorImagePreview); err == nil && n >= want {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("上传超时，请检查网络连接和图片大小")
		}
		if err := s.pause(ctx, 500*time.Millisecond); err != nil {
			return err
		}
	}
}

func (s *Service) fillTitle(ctx context.Context, page interfaces.Page, title string) error {
	if err := clickWithin(ctx, page, selectorTitleInput, 10*time.Second); err != nil {
		return err
	}
	if err := page.Fill(ctx, selectorTitleInput, title); err != nil {
		return fmt.Errorf("failed to enter title: %w", err)
	}
	return s.pause(ctx, 500*time.Millisecond)
}

func (s *Service) fillContent(ctx context.Context, page interfaces.Page, content string) error {
	editor, err := s.findEditor(ctx, page)
	if err != nil {
		return err
	}
	if err := clickWithin(ctx, page, editor, 10*time.Second); err != nil {
		return err
	}
	if err := page.Fill(ctx, editor, content); err != nil {
		return fmt.Errorf("failed to enter content: %w", err)
	}
	return s.pause(ctx, 800*time.Millisecond)
}

// findEditor returns the rich text editor, or the textbox around the description placeholder
func (s *Service) findEditor(ctx context.Context, page interfaces.Page) (string, error) {
	if n, err := page.Count(ctx, selectorEditor); err == nil && n > 0 {
		return selectorEditor, nil
	}

	expr := fmt.Sprintf(`(function () {
	var p = document.querySelector(%s);
	if (!p) return false;
	var cur = p;
	for (var i = 0; i < 8; i++) {
		var parent = cur.parentElement;
		if (!parent) break;
		if (parent.getAttribute("role") === "textbox") {
			parent.setAttribute(%s, "editor");
			return true;
		}
		cur = parent;
	}
	return false;
})()`, browser.JSString(selectorEditorFallback), browser.JSString(markAttr))
	var found bool
	if err := page.Evaluate(ctx, expr, &found); err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("没有找到内容输入框")
	}
	return markSelector("editor"), nil
}

// inputTags types each tag into the editor and accepts the first topic suggestion
func (s *Service) inputTags(ctx context.Context, page interfaces.Page, tags []string) error {
	for _, tag := range tags {
		if err := page.Run(ctx, chromedp.KeyEvent("#"+tag)); err != nil {
			return fmt.Errorf("failed to type tag %q: %w", tag, err)
		}
		if err := s.pause(ctx, 800*time.Millisecond); err != nil {
			return err
		}

		accepted := false
		if n, err := page.Count(ctx, selectorTopicItem); err == nil && n > 0 {
			accepted = clickWithin(ctx, page, selectorTopicItem, 1500*time.Millisecond) == nil
		}
		if !accepted {
			if err := page.Run(ctx, chromedp.KeyEvent(" ")); err != nil {
				return fmt.Errorf("failed to close tag %q: %w", tag, err)
			}
		}
		if err := s.pause(ctx, 400*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) setSchedule(ctx context.Context, page interfaces.Page, at time.Time) error {
	at = at.Local()
	if err := s.clickText(ctx, page, selectorScheduleRadio, scheduleRadioText, 10*time.Second); err != nil {
		return err
	}
	if err := s.pause(ctx, 500*time.Millisecond); err != nil {
		return err
	}
	if err := clickWithin(ctx, page, selectorScheduleInput, 10*time.Second); err != nil {
		return err
	}
	if err := s.pause(ctx, 500*time.Millisecond); err != nil {
		return err
	}

	fields := []struct {
		selector string
		value    string
	}{
		{selectorDateInput, at.Format("2006-01-02")},
		{selectorTimeInput, at.Format("15:04")},
	}
	for _, f := range fields {
		if err := clickWithin(ctx, page, f.selector, 10*time.Second); err != nil {
			return err
		}
		if err := page.Fill(ctx, f.selector, f.value); err != nil {
			return fmt.Errorf("failed to enter schedule: %w", err)
		}
		if err := s.pause(ctx, 300*time.Millisecond); err != nil {
			return err
		}
	}

	if err := s.clickText(ctx, page, selectorPickerConfirm, pickerConfirmText, 10*time.Second); err != nil {
		return err
	}
	return s.pause(ctx, 500*time.Millisecond)
}

// withScreenshot saves a full page capture next to the data dir and names it in the error
func (s *Service) withScreenshot(page interfaces.Page, prefix string, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dir := s.config.ScreenshotsDir()
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(s.now().UTC().Format("2006-01-02T15:04:05.000Z"))
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", prefix, ts))

	data, err := page.Screenshot(ctx)
	if err == nil {
		if err = os.MkdirAll(dir, 0o755); err == nil {
			err = os.WriteFile(path, data, 0o644)
		}
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("Failed to save screenshot")
	}
	return fmt.Errorf("%w\n截图: %s", cause, path)
}
