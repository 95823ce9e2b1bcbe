package xhs

import (
	"context"
	"time"

	"github.com/ternarybob/redbook/internal/interfaces"
	"github.com/ternarybob/redbook/internal/models"
	"github.com/ternarybob/redbook/internal/services/browser"
	"github.com/ternarybob/redbook/internal/services/initialstate"
)

// ListFeeds returns the home page recommendation feed
func (s *Service) ListFeeds(ctx context.Context) (*models.FeedList, error) {
	var list *models.FeedList
	err := s.manager.Run(ctx, "list_feeds", func(ctx context.Context, session *browser.Session) error {
		var err error
		list, err = s.listFeedsPage(ctx, session.Page)
		return err
	})
	return list, err
}

func (s *Service) listFeedsPage(ctx context.Context, page interfaces.Page) (*models.FeedList, error) {
	if err := page.Navigate(ctx, HomeURL); err != nil {
		return nil, err
	}
	if err := s.pause(ctx, time.Second); err != nil {
		return nil, err
	}

	raw, err := initialstate.ReadPath(ctx, page, initialstate.Path{"feed", "feeds"}, s.stateTimeout())
	if err != nil {
		return nil, err
	}
	return decodeFeedList(initialstate.Unwrap(raw), "没有捕获到 feeds 数据（可能未登录或页面不可访问）")
}
