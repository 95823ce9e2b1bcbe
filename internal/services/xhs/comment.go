package xhs

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/redbook/internal/interfaces"
	"github.com/ternarybob/redbook/internal/services/browser"
)

const (
	commentItemSelector  = ".parent-comment, .comment-item, .comment"
	findCommentAttempts  = 100
	findCommentScroll    = 800
	commentTargetMark    = "comment-target"
	commentActionTimeout = 10 * time.Second
)

// ReplyRequest addresses a reply to a comment by its id or its author's user id
type ReplyRequest struct {
	FeedID    string
	XsecToken string
	CommentID string
	UserID    string
	Content   string
}

// PostComment posts a top-level comment on a note
func (s *Service) PostComment(ctx context.Context, feedID, xsecToken, content string) error {
	return s.manager.Run(ctx, "post_comment_to_feed", func(ctx context.Context, session *browser.Session) error {
		return s.postCommentPage(ctx, session.Page, feedID, xsecToken, content)
	})
}

func (s *Service) postCommentPage(ctx context.Context, page interfaces.Page, feedID, xsecToken, content string) error {
	if err := s.openNote(ctx, page, feedID, xsecToken, time.Second); err != nil {
		return err
	}
	if err := clickWithin(ctx, page, selectorCommentTrigger, commentActionTimeout); err != nil {
		return err
	}
	if err := s.submitComment(ctx, page, content, 800*time.Millisecond, 1200*time.Millisecond); err != nil {
		return err
	}
	s.logger.Info().Str("feed_id", feedID).Msg("Comment posted")
	return nil
}

// ReplyComment replies to an existing comment, scrolling until it is found
func (s *Service) ReplyComment(ctx context.Context, req ReplyRequest) error {
	if req.CommentID == "" && req.UserID == "" {
		return fmt.Errorf("comment_id or user_id is required")
	}
	return s.manager.Run(ctx, "reply_comment_in_feed", func(ctx context.Context, session *browser.Session) error {
		return s.replyCommentPage(ctx, session.Page, req)
	})
}

func (s *Service) replyCommentPage(ctx context.Context, page interfaces.Page, req ReplyRequest) error {
	if err := s.openNote(ctx, page, req.FeedID, req.XsecToken, 1500*time.Millisecond); err != nil {
		return err
	}
	if err := s.findComment(ctx, page, req.CommentID, req.UserID); err != nil {
		return err
	}

	target := markSelector(commentTargetMark)
	_ = scrollIntoView(ctx, page, target)
	if err := s.pause(ctx, 800*time.Millisecond); err != nil {
		return err
	}
	if err := clickWithin(ctx, page, target+" "+selectorReplyButton, commentActionTimeout); err != nil {
		return err
	}
	if err := s.pause(ctx, 800*time.Millisecond); err != nil {
		return err
	}
	if err := s.submitComment(ctx, page, req.Content, 500*time.Millisecond, 1500*time.Millisecond); err != nil {
		return err
	}
	s.logger.Info().
		Str("feed_id", req.FeedID).
		Str("comment_id", req.CommentID).
		Msg("Reply posted")
	return nil
}

func (s *Service) submitComment(ctx context.Context, page interfaces.Page, content string, typed, submitted time.Duration) error {
	if err := clickWithin(ctx, page, selectorCommentInput, commentActionTimeout); err != nil {
		return err
	}
	if err := page.Fill(ctx, selectorCommentInput, content); err != nil {
		return fmt.Errorf("failed to enter comment: %w", err)
	}
	if err := s.pause(ctx, typed); err != nil {
		return err
	}
	if err := clickWithin(ctx, page, selectorCommentSubmit, commentActionTimeout); err != nil {
		return err
	}
	return s.pause(ctx, submitted)
}

// findComment marks the comment with commentID, or the first one by userID, scrolling between attempts
func (s *Service) findComment(ctx context.Context, page interfaces.Page, commentID, userID string) error {
	expr := fmt.Sprintf(`(function () {
	var attr = %s, mark = %s, commentId = %s, userId = %s;
	var old = document.querySelectorAll("[" + attr + "]");
	for (var i = 0; i < old.length; i++) {
		if (old[i].getAttribute(attr) === mark) old[i].removeAttribute(attr);
	}
	var found = null;
	if (commentId) found = document.getElementById("comment-" + commentId);
	if (!found && userId) {
		var items = document.querySelectorAll(%s);
		for (var j = 0; j < items.length && !found; j++) {
			var users = items[j].querySelectorAll("[data-user-id]");
			for (var k = 0; k < users.length; k++) {
				if (users[k].getAttribute("data-user-id") === userId) {
					found = items[j];
					break;
				}
			}
		}
	}
	if (!found) return false;
	found.setAttribute(attr, mark);
	return true;
})()`, browser.JSString(markAttr), browser.JSString(commentTargetMark), browser.JSString(commentID), browser.JSString(userID), browser.JSString(commentItemSelector))

	for attempt := 0; attempt < findCommentAttempts; attempt++ {
		var found bool
		if err := page.Evaluate(ctx, expr, &found); err != nil {
			s.logger.Debug().Err(err).Int("attempt", attempt).Msg("Comment lookup failed")
		} else if found {
			return nil
		}
		_ = page.Wheel(ctx, findCommentScroll)
		if err := s.pause(ctx, 800*time.Millisecond); err != nil {
			return err
		}
	}
	return commentNotFound(commentID, userID)
}
