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
)

// filterGroups lists the filter panel labels per group, in panel order (1-based)
var filterGroups = map[int][]string{
	1: {"综合", "最新", "最多点赞", "最多评论", "最多收藏"},
	2: {"不限", "视频", "图文"},
	3: {"不限", "一天内", "一周内", "半年内"},
	4: {"不限", "已看过", "未看过", "已关注"},
	5: {"不限", "同城", "附近"},
}

type filterOption struct {
	group int
	tag   int
	text  string
}

func (o filterOption) selector() string {
	return fmt.Sprintf("div.filter-panel div.filters:nth-child(%d) div.tags:nth-child(%d)", o.group, o.tag)
}

func findFilterOption(group int, text string) (filterOption, error) {
	labels, ok := filterGroups[group]
	if !ok {
		return filterOption{}, fmt.Errorf("%w: 筛选组 %d 不存在", ErrInvalidFilter, group)
	}
	for i, label := range labels {
		if label == text {
			return filterOption{group: group, tag: i + 1, text: text}, nil
		}
	}
	return filterOption{}, fmt.Errorf("%w: 在筛选组 %d 中未找到文本 '%s'", ErrInvalidFilter, group, text)
}

// convertFilters maps filters onto panel positions, in group order
func convertFilters(f models.SearchFilters) ([]filterOption, error) {
	var options []filterOption
	for group, text := range []string{f.SortBy, f.NoteType, f.PublishTime, f.SearchScope, f.Location} {
		if text == "" {
			continue
		}
		opt, err := findFilterOption(group+1, text)
		if err != nil {
			return nil, err
		}
		options = append(options, opt)
	}
	return options, nil
}

// Search runs a keyword search with optional filters and returns the raw feed cards
func (s *Service) Search(ctx context.Context, keyword string, filters models.SearchFilters) (*models.FeedList, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, ErrMissingKeyword
	}
	options, err := convertFilters(filters)
	if err != nil {
		return nil, err
	}

	var list *models.FeedList
	err = s.manager.Run(ctx, "search_feeds", func(ctx context.Context, session *browser.Session) error {
		var err error
		list, err = s.searchPage(ctx, session.Page, keyword, options)
		return err
	})
	return list, err
}

func (s *Service) searchPage(ctx context.Context, page interfaces.Page, keyword string, options []filterOption) (*models.FeedList, error) {
	if err := page.Navigate(ctx, SearchURL(keyword)); err != nil {
		return nil, err
	}
	if err := s.pause(ctx, 500*time.Millisecond); err != nil {
		return nil, err
	}

	if len(options) > 0 {
		if err := s.applyFilters(ctx, page, options); err != nil {
			return nil, err
		}
	}

	raw, err := initialstate.ReadPath(ctx, page, initialstate.Path{"search", "feeds"}, s.stateTimeout())
	if err != nil {
		return nil, err
	}
	if initialstate.IsNull(raw) {
		return nil, fmt.Errorf("%w: 没有捕获到搜索 feeds 数据", ErrNoFeeds)
	}
	return decodeFeedList(initialstate.Unwrap(raw), "解析 feeds 数据失败")
}

// applyFilters opens the filter panel by hovering and clicks each option; misses are logged, not fatal
func (s *Service) applyFilters(ctx context.Context, page interfaces.Page, options []filterOption) error {
	if n, err := page.Count(ctx, selectorFilterTrigger); err == nil && n > 0 {
		hoverCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := page.Hover(hoverCtx, selectorFilterTrigger); err != nil {
			s.logger.Debug().Err(err).Msg("Hovering filter trigger failed")
		}
		cancel()
		if err := s.pause(ctx, 300*time.Millisecond); err != nil {
			return err
		}
	}

	for _, opt := range options {
		if err := clickWithin(ctx, page, opt.selector(), 3*time.Second); err != nil {
			s.logger.Warn().Err(err).Str("filter", opt.text).Msg("Search filter not applied")
		}
		if err := s.pause(ctx, 200*time.Millisecond); err != nil {
			return err
		}
	}
	return s.pause(ctx, 500*time.Millisecond)
}

func decodeFeedList(raw json.RawMessage, failure string) (*models.FeedList, error) {
	if initialstate.IsNull(raw) {
		return nil, fmt.Errorf("%w: %s", ErrNoFeeds, failure)
	}
	var feeds []json.RawMessage
	if err := json.Unmarshal(raw, &feeds); err != nil {
		return nil, fmt.Errorf("%s: %w", failure, err)
	}
	return &models.FeedList{Feeds: feeds, Count: len(feeds)}, nil
}
