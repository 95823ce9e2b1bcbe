package xhs

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/redbook/internal/interfaces"
	"github.com/ternarybob/redbook/internal/services/browser"
	"github.com/ternarybob/redbook/internal/services/initialstate"
)

// InteractResult reports a like or favorite toggle
type InteractResult struct {
	FeedID  string `json:"feed_id"`
	Action  string `json:"action"`
	Changed bool   `json:"changed"` // false when the note was already in the requested state
}

type interactInfo struct {
	Liked     bool `json:"liked"`
	Collected bool `json:"collected"`
}

type interaction struct {
	name     string
	undo     string
	button   string
	isActive func(interactInfo) bool
}

var (
	likeInteraction = interaction{
		name:     "like",
		undo:     "unlike",
		button:   selectorLikeButton,
		isActive: func(i interactInfo) bool { return i.Liked },
	}
	favoriteInteraction = interaction{
		name:     "favorite",
		undo:     "unfavorite",
		button:   selectorCollectButton,
		isActive: func(i interactInfo) bool { return i.Collected },
	}
)

// Like likes a note, or removes the like when undo is set. Already matching states are left alone.
func (s *Service) Like(ctx context.Context, feedID, xsecToken string, undo bool) (*InteractResult, error) {
	return s.interact(ctx, likeInteraction, feedID, xsecToken, undo)
}

// Favorite collects a note, or removes it from the collection when undo is set
func (s *Service) Favorite(ctx context.Context, feedID, xsecToken string, undo bool) (*InteractResult, error) {
	return s.interact(ctx, favoriteInteraction, feedID, xsecToken, undo)
}

func (s *Service) interact(ctx context.Context, in interaction, feedID, xsecToken string, undo bool) (*InteractResult, error) {
	result := &InteractResult{FeedID: feedID, Action: in.name}
	if undo {
		result.Action = in.undo
	}

	err := s.manager.Run(ctx, in.name+"_feed", func(ctx context.Context, session *browser.Session) error {
		changed, err := s.interactPage(ctx, session.Page, in, feedID, xsecToken, !undo)
		result.Changed = changed
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) interactPage(ctx context.Context, page interfaces.Page, in interaction, feedID, xsecToken string, want bool) (bool, error) {
	if err := s.openNote(ctx, page, feedID, xsecToken, time.Second); err != nil {
		return false, err
	}

	info, err := s.readInteractInfo(ctx, page, feedID)
	if err != nil {
		s.logger.Debug().Err(err).Str("feed_id", feedID).Msg("Interaction state unknown, assuming inactive")
	}
	if in.isActive(info) == want {
		s.logger.Info().Str("feed_id", feedID).Str("action", in.name).Bool("active", want).Msg("Already in requested state")
		return false, nil
	}

	if err := clickWithin(ctx, page, in.button, 10*time.Second); err != nil {
		return false, fmt.Errorf("%s failed: %w", in.name, err)
	}
	if err := s.pause(ctx, 2*time.Second); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) readInteractInfo(ctx context.Context, page interfaces.Page, feedID string) (interactInfo, error) {
	var info interactInfo
	path := initialstate.Path{"note", "noteDetailMap", feedID, "note", "interactInfo"}
	err := initialstate.ReadPathInto(ctx, page, path, s.stateTimeout(), &info)
	return info, err
}
