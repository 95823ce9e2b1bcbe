package xhs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/redbook/internal/interfaces"
	"github.com/ternarybob/redbook/internal/models"
	"github.com/ternarybob/redbook/internal/services/browser"
	"github.com/ternarybob/redbook/internal/services/initialstate"
	"github.com/ternarybob/redbook/internal/services/loader"
)

// DefaultReplyThreshold skips "show N replies" controls above this many replies
const DefaultReplyThreshold = 10

// FeedDetailRequest names a note and how much of its comment thread to load
type FeedDetailRequest struct {
	FeedID          string
	XsecToken       string
	LoadAllComments bool
	Comments        models.CommentLoadConfig
}

// FeedDetail returns the note.noteDetailMap entry of a note
func (s *Service) FeedDetail(ctx context.Context, req FeedDetailRequest) (json.RawMessage, error) {
	var detail json.RawMessage
	err := s.manager.Run(ctx, "get_feed_detail", func(ctx context.Context, session *browser.Session) error {
		var err error
		detail, err = s.feedDetailPage(ctx, session.Page, req)
		return err
	})
	return detail, err
}

func (s *Service) feedDetailPage(ctx context.Context, page interfaces.Page, req FeedDetailRequest) (json.RawMessage, error) {
	if err := s.openNote(ctx, page, req.FeedID, req.XsecToken, time.Second); err != nil {
		return nil, err
	}
	if err := checkAccessible(ctx, page); err != nil {
		return nil, err
	}

	if req.LoadAllComments {
		if err := s.loadComments(ctx, page, req.Comments); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn().Err(err).Str("feed_id", req.FeedID).Msg("Loading comments failed, reading what is present")
		}
	}

	raw, err := initialstate.ReadPath(ctx, page, initialstate.Path{"note", "noteDetailMap", req.FeedID}, s.stateTimeout())
	if err != nil {
		return nil, err
	}
	if initialstate.IsNull(raw) {
		return nil, ErrNoDetail
	}
	return raw, nil
}

func (s *Service) openNote(ctx context.Context, page interfaces.Page, feedID, xsecToken string, settle time.Duration) error {
	if err := page.Navigate(ctx, FeedDetailURL(feedID, xsecToken)); err != nil {
		return err
	}
	return s.pause(ctx, settle)
}

// checkAccessible fails with *UnreachableError when the page shows an access wrapper with text
func checkAccessible(ctx context.Context, page interfaces.Page) error {
	n, err := page.Count(ctx, selectorAccessWrapper)
	if err != nil {
		return fmt.Errorf("failed to check note access: %w", err)
	}
	if n == 0 {
		return nil
	}
	text, err := page.Text(ctx, selectorAccessWrapper)
	if err != nil {
		return fmt.Errorf("failed to check note access: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return classifyUnreachable(text)
}

func (s *Service) loadComments(ctx context.Context, page interfaces.Page, cfg models.CommentLoadConfig) error {
	if n, _ := page.Count(ctx, selectorCommentsContainer); n > 0 {
		if err := scrollIntoView(ctx, page, selectorCommentsContainer); err != nil {
			s.logger.Debug().Err(err).Msg("Scrolling to comments failed")
		}
		if err := s.pause(ctx, 500*time.Millisecond); err != nil {
			return err
		}
	}

	if n, _ := page.Count(ctx, selectorNoComments); n > 0 {
		if text, _ := page.Text(ctx, selectorNoComments); strings.Contains(text, noCommentsText) {
			s.logger.Debug().Msg("Note has no comments")
			return nil
		}
	}

	opts := loader.Options{
		Ceiling:        cfg.MaxCommentItems,
		Speed:          loader.Speed(cfg.ScrollSpeed),
		ExpandReplies:  cfg.ClickMoreReplies,
		ReplyThreshold: cfg.MaxRepliesThreshold,
	}
	res, err := s.loader.Load(ctx, &commentList{page: page, service: s}, opts)
	if err != nil {
		return err
	}
	s.logger.Info().
		Str("reason", string(res.Reason)).
		Int("comments", res.Items).
		Int("steps", res.Steps).
		Int("expanded", res.Expanded).
		Msg("Comments loaded")
	return nil
}
