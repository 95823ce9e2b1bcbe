package models

import "encoding/json"

// SearchFilters selects entries in the search result filter panel.
// Values are the panel labels as shown on the site, empty means untouched.
type SearchFilters struct {
	SortBy      string `json:"sort_by,omitempty" validate:"omitempty,oneof=综合 最新 最多点赞 最多评论 最多收藏"`
	NoteType    string `json:"note_type,omitempty" validate:"omitempty,oneof=不限 视频 图文"`
	PublishTime string `json:"publish_time,omitempty" validate:"omitempty,oneof=不限 一天内 一周内 半年内"`
	SearchScope string `json:"search_scope,omitempty" validate:"omitempty,oneof=不限 已看过 未看过 已关注"`
	Location    string `json:"location,omitempty" validate:"omitempty,oneof=不限 同城 附近"`
}

// IsZero reports whether no filter is set
func (f SearchFilters) IsZero() bool {
	return f == SearchFilters{}
}

// CommentLoadConfig tunes comment loading on the detail page
type CommentLoadConfig struct {
	ClickMoreReplies    bool   `json:"click_more_replies"`
	MaxRepliesThreshold int    `json:"max_replies_threshold" validate:"gte=0"`
	MaxCommentItems     int    `json:"max_comment_items" validate:"gte=0"`
	ScrollSpeed         string `json:"scroll_speed" validate:"omitempty,oneof=slow normal fast"`
}

// FeedList is a list of raw feed cards as found in the page state
type FeedList struct {
	Feeds []json.RawMessage `json:"feeds"`
	Count int               `json:"count"`
}

// UserProfile is the profile page summary
type UserProfile struct {
	UserBasicInfo json.RawMessage   `json:"userBasicInfo"`
	Interactions  json.RawMessage   `json:"interactions"`
	Feeds         []json.RawMessage `json:"feeds"`
}

// FeedTarget identifies one note with its access token
type FeedTarget struct {
	FeedID    string `json:"feed_id"`
	XsecToken string `json:"xsec_token"`
}

// PostDetail is the trimmed note shape returned by get_specified_post
type PostDetail struct {
	Comments PostComments `json:"comments"`
	Note     PostNote     `json:"note"`
}

type PostComments struct {
	List []PostComment `json:"list,omitempty"`
}

type PostComment struct {
	Content     string           `json:"content"`
	SubComments []PostSubComment `json:"subComments"`
}

type PostSubComment struct {
	Content string `json:"content"`
}

type PostNote struct {
	Desc         string          `json:"desc,omitempty"`
	Type         string          `json:"type,omitempty"`
	Title        string          `json:"title,omitempty"`
	ImageList    []PostImage     `json:"imageList,omitempty"`
	InteractInfo json.RawMessage `json:"interactInfo,omitempty"`
	TagList      []PostTag       `json:"tagList,omitempty"`
}

type PostImage struct {
	URLPre     string `json:"urlPre,omitempty"`
	URLDefault string `json:"urlDefault,omitempty"`
}

type PostTag struct {
	Name string `json:"name"`
}
