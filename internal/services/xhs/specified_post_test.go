package xhs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/redbook/internal/models"
	"github.com/ternarybob/redbook/internal/services/browser/browsertest"
)

func TestPickTargets(t *testing.T) {
	feeds := []json.RawMessage{
		json.RawMessage(`{"id":"a","xsecToken":"ta"}`),
		json.RawMessage(`{"noteCard":{"id":"b","xsec_token":"tb"}}`),
		json.RawMessage(`{"id":"c"}`),
		json.RawMessage(`{"note_id":"d","token":"td"}`),
		json.RawMessage(`{"itemId":"e","noteCard":{"xsecToken":"te"}}`),
	}

	assert.Equal(t, []models.FeedTarget{
		{FeedID: "a", XsecToken: "ta"},
		{FeedID: "b", XsecToken: "tb"},
		{FeedID: "d", XsecToken: "td"},
		{FeedID: "e", XsecToken: "te"},
	}, pickTargets(feeds, 10))

	assert.Len(t, pickTargets(feeds, 2), 2)
	assert.Empty(t, pickTargets(nil, 3))
}

func TestCleanPost(t *testing.T) {
	input := `{
		"comments": {
			"list": [{
				"subCommentCount": "94",
				"subComments": [{"id": "69683cb2000000000f01a386", "content": "还有suck my fat one", "liked": false}],
				"createTime": 1768388416000,
				"content": "看怪奇物语只学会了bullshit、son of a b*tch和mother of god…",
				"liked": false
			}],
			"cursor": "6978e95300000000180217c8"
		},
		"note": {
			"xsecToken": "ABgmWzzbIDM_xWGc_y_87TkkuDORbT6qdVELSS6E9l0kk=",
			"noteId": "695f74e9000000000a03345f",
			"desc": "#美剧[话题]# #英语口语[话题]#",
			"user": {"userId": "5dde06ad00000000010038b6", "nickname": "欢快葫芦丝"},
			"type": "video",
			"title": "如何通过美剧练口语",
			"imageList": [{
				"width": 2246,
				"urlPre": "http://sns-webpic-qc.xhscdn.com/presample",
				"urlDefault": "http://sns-webpic-qc.xhscdn.com/defaultsample",
				"infoList": []
			}],
			"interactInfo": {"relation": "none", "liked": false, "likedCount": "5.9万"},
			"tagList": [{"id": "5c2900ed000000000800ceb8", "name": "美剧", "type": "topic"}]
		}
	}`

	out, err := json.Marshal(cleanPost(json.RawMessage(input)))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"comments": {
			"list": [{
				"content": "看怪奇物语只学会了bullshit、son of a b*tch和mother of god…",
				"subComments": [{"content": "还有suck my fat one"}]
			}]
		},
		"note": {
			"desc": "#美剧[话题]# #英语口语[话题]#",
			"type": "video",
			"title": "如何通过美剧练口语",
			"imageList": [{
				"urlPre": "http://sns-webpic-qc.xhscdn.com/presample",
				"urlDefault": "http://sns-webpic-qc.xhscdn.com/defaultsample"
			}],
			"interactInfo": {"relation": "none", "liked": false, "likedCount": "5.9万"},
			"tagList": [{"name": "美剧"}]
		}
	}`, string(out))
}

func TestCleanPost_MissingOptionalFields(t *testing.T) {
	out, err := json.Marshal(cleanPost(json.RawMessage(`{"note":{"desc":"Simple note","title":"Test","type":"normal"}}`)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"comments":{},"note":{"desc":"Simple note","title":"Test","type":"normal"}}`, string(out))
}

func TestCleanPost_SubCommentsDefaultEmpty(t *testing.T) {
	post := cleanPost(json.RawMessage(`{"comments":{"list":[{"content":"hi"}]}}`))
	require.Len(t, post.Comments.List, 1)
	assert.NotNil(t, post.Comments.List[0].SubComments)
	assert.Empty(t, post.Comments.List[0].SubComments)
}

func TestSpecifiedPosts_FetchesInOrderAndSkipsFailures(t *testing.T) {
	state := pageState{
		"search.feeds": `{"_value":[
			{"id":"a","xsecToken":"ta"},
			{"id":"c"},
			{"noteCard":{"id":"b","xsecToken":"tb"}},
			{"id":"d","xsecToken":"td"}
		]}`,
		"note.noteDetailMap.a": `{"note":{"title":"A"}}`,
		"note.noteDetailMap.b": `{"note":{"title":"B"},"comments":{"list":[{"content":"x"}]}}`,
	}
	h := newHarness(t, func(p *browsertest.Page) { state.install(p, true) })

	posts, err := h.service.SpecifiedPosts(context.Background(), "咖啡", 5, models.SearchFilters{})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "A", posts[0].Note.Title)
	assert.Equal(t, "B", posts[1].Note.Title)
	assert.Equal(t, "x", posts[1].Comments.List[0].Content)

	pages := h.pages(t, 0)
	require.Len(t, pages, 4)
	assert.Equal(t, []string{SearchURL("咖啡")}, pages[0].Visits())

	_, _, closed := h.launcher.Counts()
	assert.Equal(t, 4, closed)
}

func TestSpecifiedPosts_RetriesEmptySearchOnce(t *testing.T) {
	state := pageState{"search.feeds": `{"_value":[]}`}
	h := newHarness(t, func(p *browsertest.Page) { state.install(p, true) })

	posts, err := h.service.SpecifiedPosts(context.Background(), "咖啡", 3, models.SearchFilters{})
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Len(t, h.pages(t, 0)[0].Visits(), 2)
}

func TestSpecifiedPosts_Validation(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.service.SpecifiedPosts(context.Background(), "", 3, models.SearchFilters{})
	assert.ErrorIs(t, err, ErrMissingKeyword)

	_, err = h.service.SpecifiedPosts(context.Background(), "咖啡", 0, models.SearchFilters{})
	assert.ErrorIs(t, err, ErrInvalidCount)
	assert.Equal(t, "帖子数量必须大于0", err.Error())

	assert.Empty(t, h.launcher.Launches())
}
