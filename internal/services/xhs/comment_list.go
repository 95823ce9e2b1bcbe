package xhs

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/redbook/internal/interfaces"
	"github.com/ternarybob/redbook/internal/services/browser"
)

const maxExpandPerPass = 6

var repliesPattern = regexp.MustCompile(`展开\s*(\d+)\s*条回复`)

// commentList is the comment thread of an open note
type commentList struct {
	page    interfaces.Page
	service *Service
}

func (c *commentList) ReachedEnd(ctx context.Context) (bool, error) {
	n, err := c.page.Count(ctx, selectorEndContainer)
	if err != nil || n == 0 {
		return false, err
	}
	text, err := c.page.Text(ctx, selectorEndContainer)
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToUpper(text), endMarkerText), nil
}

func (c *commentList) ItemCount(ctx context.Context) (int, error) {
	return c.page.Count(ctx, selectorParentComment)
}

// markShowMore tags the first few "show more" controls with their index and returns their texts
func (c *commentList) markShowMore(ctx context.Context) ([]string, error) {
	expr := fmt.Sprintf(`(function () {
	var attr = %s;
	var old = document.querySelectorAll("[" + attr + "^='more-']");
	for (var i = 0; i < old.length; i++) old[i].removeAttribute(attr);
	var els = document.querySelectorAll(%s);
	var texts = [];
	for (var j = 0; j < els.length && j < %d; j++) {
		els[j].setAttribute(attr, "more-" + j);
		texts.push((els[j].textContent || "").trim());
	}
	return texts;
})()`, browser.JSString(markAttr), browser.JSString(selectorShowMore), maxExpandPerPass)
	var texts []string
	err := c.page.Evaluate(ctx, expr, &texts)
	return texts, err
}

func (c *commentList) ExpandMore(ctx context.Context, threshold int) (int, int, error) {
	texts, err := c.markShowMore(ctx)
	if err != nil {
		return 0, 0, err
	}

	clicked, skipped := 0, 0
	for i, text := range texts {
		if exceedsThreshold(text, threshold) {
			skipped++
			continue
		}
		sel := markSelector("more-" + strconv.Itoa(i))
		_ = scrollIntoView(ctx, c.page, sel)
		if err := c.service.pause(ctx, 200*time.Millisecond); err != nil {
			return clicked, skipped, err
		}
		if err := clickWithin(ctx, c.page, sel, 800*time.Millisecond); err != nil {
			continue
		}
		clicked++
		if err := c.service.pause(ctx, 800*time.Millisecond); err != nil {
			return clicked, skipped, err
		}
	}
	return clicked, skipped, nil
}

// exceedsThreshold reports whether a "展开 N 条回复" label announces more than threshold replies
func exceedsThreshold(text string, threshold int) bool {
	if threshold <= 0 {
		return false
	}
	m := repliesPattern.FindStringSubmatch(text)
	if m == nil {
		return false
	}
	n, err := strconv.Atoi(m[1])
	return err == nil && n > threshold
}

func (c *commentList) Scroll(ctx context.Context, deltaY float64) error {
	return c.page.Wheel(ctx, deltaY)
}

func (c *commentList) JumpToBottom(ctx context.Context) error {
	return c.page.Evaluate(ctx, `(function () {
	window.scrollTo(0, document.body ? document.body.scrollHeight : 0);
	return true;
})()`, nil)
}
