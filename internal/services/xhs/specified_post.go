package xhs

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/redbook/internal/interfaces"
	"github.com/ternarybob/redbook/internal/models"
	"github.com/ternarybob/redbook/internal/services/browser"
)

const (
	specifiedSearchAttempts = 2
	detailConcurrency       = 5
)

var (
	feedIDPaths    = []string{"id", "noteId", "note_id", "feed_id", "note.id", "noteCard.id", "itemId"}
	feedTokenPaths = []string{"xsecToken", "xsec_token", "token", "noteCard.xsecToken", "noteCard.xsec_token"}
)

// SpecifiedPosts searches keyword and returns trimmed details of up to count results.
// Details are fetched on parallel tabs of the same session; failed notes are left out.
func (s *Service) SpecifiedPosts(ctx context.Context, keyword string, count int, filters models.SearchFilters) ([]models.PostDetail, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, ErrMissingKeyword
	}
	if count <= 0 {
		return nil, ErrInvalidCount
	}
	options, err := convertFilters(filters)
	if err != nil {
		return nil, err
	}

	var posts []models.PostDetail
	err = s.manager.Run(ctx, "get_specified_post", func(ctx context.Context, session *browser.Session) error {
		feeds := s.searchWithRetry(ctx, session.Page, keyword, options)
		if err := ctx.Err(); err != nil {
			return err
		}
		targets := pickTargets(feeds, count)
		s.logger.Info().
			Str("keyword", keyword).
			Int("feeds", len(feeds)).
			Int("targets", len(targets)).
			Msg("Fetching post details")

		var err error
		posts, err = s.fetchDetails(ctx, session.Context, targets)
		return err
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *Service) searchWithRetry(ctx context.Context, page interfaces.Page, keyword string, options []filterOption) []json.RawMessage {
	for attempt := 1; attempt <= specifiedSearchAttempts; attempt++ {
		list, err := s.searchPage(ctx, page, keyword, options)
		if err == nil && len(list.Feeds) > 0 {
			return list.Feeds
		}
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Debug().Err(err).Int("attempt", attempt).Msg("Search returned no feeds")
	}
	return nil
}

// fetchDetails opens one tab per target, at most detailConcurrency at a time, keeping target order
func (s *Service) fetchDetails(ctx context.Context, bctx interfaces.BrowserContext, targets []models.FeedTarget) ([]models.PostDetail, error) {
	results := make([]*models.PostDetail, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailConcurrency)
	for i, target := range targets {
		g.Go(func() error {
			detail, err := s.fetchDetail(gctx, bctx, target)
			if err != nil {
				s.logger.Warn().Err(err).Str("feed_id", target.FeedID).Msg("Post detail skipped")
				return nil
			}
			results[i] = detail
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	posts := make([]models.PostDetail, 0, len(results))
	for _, r := range results {
		if r != nil {
			posts = append(posts, *r)
		}
	}
	return posts, nil
}

func (s *Service) fetchDetail(ctx context.Context, bctx interfaces.BrowserContext, target models.FeedTarget) (*models.PostDetail, error) {
	page, err := bctx.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	raw, err := s.feedDetailPage(ctx, page, FeedDetailRequest{FeedID: target.FeedID, XsecToken: target.XsecToken})
	if err != nil {
		return nil, err
	}
	post := cleanPost(raw)
	return &post, nil
}

// pickTargets returns the first count feeds that carry both an id and a token
func pickTargets(feeds []json.RawMessage, count int) []models.FeedTarget {
	var targets []models.FeedTarget
	for _, feed := range feeds {
		if len(targets) >= count {
			break
		}
		card := gjson.ParseBytes(feed)
		id := firstString(card, feedIDPaths)
		token := firstString(card, feedTokenPaths)
		if id == "" || token == "" {
			continue
		}
		targets = append(targets, models.FeedTarget{FeedID: id, XsecToken: token})
	}
	return targets
}

func firstString(v gjson.Result, paths []string) string {
	for _, p := range paths {
		if s := v.Get(p).String(); s != "" {
			return s
		}
	}
	return ""
}

// cleanPost keeps the comment texts and the note fields worth showing
func cleanPost(raw json.RawMessage) models.PostDetail {
	var post models.PostDetail
	root := gjson.ParseBytes(raw)

	if list := root.Get("comments.list"); list.IsArray() {
		post.Comments.List = []models.PostComment{}
		for _, c := range list.Array() {
			comment := models.PostComment{
				Content:     c.Get("content").String(),
				SubComments: []models.PostSubComment{},
			}
			if subs := c.Get("subComments"); subs.IsArray() {
				for _, sub := range subs.Array() {
					comment.SubComments = append(comment.SubComments, models.PostSubComment{Content: sub.Get("content").String()})
				}
			}
			post.Comments.List = append(post.Comments.List, comment)
		}
	}

	note := root.Get("note")
	if !note.IsObject() {
		return post
	}
	post.Note.Desc = note.Get("desc").String()
	post.Note.Type = note.Get("type").String()
	post.Note.Title = note.Get("title").String()
	if info := note.Get("interactInfo"); info.Exists() && info.Type != gjson.Null {
		post.Note.InteractInfo = json.RawMessage(info.Raw)
	}
	if images := note.Get("imageList"); images.IsArray() {
		for _, img := range images.Array() {
			post.Note.ImageList = append(post.Note.ImageList, models.PostImage{
				URLPre:     img.Get("urlPre").String(),
				URLDefault: img.Get("urlDefault").String(),
			})
		}
	}
	if tags := note.Get("tagList"); tags.IsArray() {
		for _, tag := range tags.Array() {
			post.Note.TagList = append(post.Note.TagList, models.PostTag{Name: tag.Get("name").String()})
		}
	}
	return post
}
