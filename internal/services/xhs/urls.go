package xhs

import (
	"fmt"
	"net/url"
)

const (
	HomeURL    = "https://www.xiaohongshu.com"
	ExploreURL = "https://www.xiaohongshu.com/explore"
	PublishURL = "https://creator.xiaohongshu.com/publish/publish?source=official"
)

// SearchURL is the search result page for keyword
func SearchURL(keyword string) string {
	q := url.Values{}
	q.Set("keyword", keyword)
	q.Set("source", "web_explore_feed")
	return "https://www.xiaohongshu.com/search_result?" + q.Encode()
}

// FeedDetailURL opens a note from the feed; the xsec token is required by the site
func FeedDetailURL(feedID, xsecToken string) string {
	q := url.Values{}
	q.Set("xsec_token", xsecToken)
	q.Set("xsec_source", "pc_feed")
	return fmt.Sprintf("https://www.xiaohongshu.com/explore/%s?%s", url.PathEscape(feedID), q.Encode())
}

// UserProfileURL opens a user's profile page
func UserProfileURL(userID, xsecToken string) string {
	q := url.Values{}
	q.Set("xsec_token", xsecToken)
	q.Set("xsec_source", "pc_note")
	return fmt.Sprintf("https://www.xiaohongshu.com/user/profile/%s?%s", url.PathEscape(userID), q.Encode())
}
