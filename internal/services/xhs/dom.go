package xhs

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/redbook/internal/interfaces"
	"github.com/ternarybob/redbook/internal/services/browser"
)

// markAttr tags elements found by script so they can be clicked with a plain selector
const markAttr = "data-redbook-mark"

func markSelector(mark string) string {
	return fmt.Sprintf("[%s=%q]", markAttr, mark)
}

// markByText tags the first selector match whose trimmed text equals text
// (or contains it when exact is false) with mark.
func markByText(ctx context.Context, page interfaces.Page, selector, text, mark string, exact bool) (bool, error) {
	expr := fmt.Sprintf(`(function () {
	var attr = %s, mark = %s, want = %s, exact = %t;
	var old = document.querySelectorAll("[" + attr + "]");
	for (var i = 0; i < old.length; i++) {
		if (old[i].getAttribute(attr) === mark) old[i].removeAttribute(attr);
	}
	var els = document.querySelectorAll(%s);
	for (var j = 0; j < els.length; j++) {
		var t = (els[j].textContent || "").trim();
		if (exact ? t === want : t.indexOf(want) >= 0) {
			els[j].setAttribute(attr, mark);
			return true;
		}
	}
	return false;
})()`, browser.JSString(markAttr), browser.JSString(mark), browser.JSString(text), exact, browser.JSString(selector))
	var found bool
	err := page.Evaluate(ctx, expr, &found)
	return found, err
}

// clickWithin clicks selector, giving up after timeout
func clickWithin(ctx context.Context, page interfaces.Page, selector string, timeout time.Duration) error {
	clickCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := page.Click(clickCtx, selector); err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return nil
}

// clickText waits up to timeout for a selector match with text and clicks it
func (s *Service) clickText(ctx context.Context, page interfaces.Page, selector, text string, timeout time.Duration) error {
	mark := "click-" + text
	deadline := time.Now().Add(timeout)
	for {
		found, err := markByText(ctx, page, selector, text, mark, true)
		if err == nil && !found {
			found, err = markByText(ctx, page, selector, text, mark, false)
		}
		if err != nil {
			return err
		}
		if found {
			remaining := time.Until(deadline)
			if remaining < time.Second {
				remaining = time.Second
			}
			return clickWithin(ctx, page, markSelector(mark), remaining)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s with text %q", interfaces.ErrWaitTimeout, selector, text)
		}
		if err := s.pause(ctx, 200*time.Millisecond); err != nil {
			return err
		}
	}
}

// waitAttached waits until selector matches an element, visible or not
func waitAttached(ctx context.Context, page interfaces.Page, selector string, timeout time.Duration) error {
	expr := fmt.Sprintf(`document.querySelector(%s) !== null`, browser.JSString(selector))
	if err := page.Poll(ctx, expr, timeout); err != nil {
		return fmt.Errorf("waiting for %s: %w", selector, err)
	}
	return nil
}

func scrollIntoView(ctx context.Context, page interfaces.Page, selector string) error {
	expr := fmt.Sprintf(`(function () {
	var el = document.querySelector(%s);
	if (!el) return false;
	el.scrollIntoView({ block: "center" });
	return true;
})()`, browser.JSString(selector))
	var ok bool
	return page.Evaluate(ctx, expr, &ok)
}
