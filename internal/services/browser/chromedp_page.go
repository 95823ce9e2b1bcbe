package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"github.com/ternarybob/redbook/internal/interfaces"
)

type chromedpPage struct {
	ctx           context.Context
	cancel        context.CancelFunc
	actionTimeout time.Duration

	closeOnce sync.Once
	closed    bool
	mu        sync.Mutex
}

// run executes actions on the tab, bounded by timeout (0 = none) and by the caller's ctx
func (p *chromedpPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(p.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(p.ctx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", interfaces.ErrWaitTimeout, timeout)
	}
	return err
}

func (p *chromedpPage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, p.actionTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *chromedpPage) Evaluate(ctx context.Context, expression string, out interface{}) error {
	var raw []byte
	if err := p.run(ctx, p.actionTimeout, chromedp.Evaluate(expression, &raw)); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode evaluation result: %w", err)
	}
	return nil
}

func (p *chromedpPage) Poll(ctx context.Context, expression string, timeout time.Duration) error {
	var raw []byte
	err := p.run(ctx, 0, chromedp.Poll(expression, &raw,
		chromedp.WithPollingInterval(100*time.Millisecond),
		chromedp.WithPollingTimeout(timeout),
	))
	if errors.Is(err, chromedp.ErrPollingTimeout) {
		return fmt.Errorf("%w after %s", interfaces.ErrWaitTimeout, timeout)
	}
	return err
}

func (p *chromedpPage) Count(ctx context.Context, selector string) (int, error) {
	var n int
	err := p.Evaluate(ctx, fmt.Sprintf(`document.querySelectorAll(%s).length`, JSString(selector)), &n)
	return n, err
}

type lookup struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
}

func (p *chromedpPage) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	expr := fmt.Sprintf(`(function () {
		var el = document.querySelector(%s);
		if (!el || !el.hasAttribute(%s)) return { found: false, value: "" };
		return { found: true, value: String(el.getAttribute(%s)) };
	})()`, JSString(selector), JSString(name), JSString(name))
	var res lookup
	if err := p.Evaluate(ctx, expr, &res); err != nil {
		return "", false, err
	}
	return res.Value, res.Found, nil
}

func (p *chromedpPage) Text(ctx context.Context, selector string) (string, error) {
	expr := fmt.Sprintf(`(function () {
		var el = document.querySelector(%s);
		if (!el) return { found: false, value: "" };
		return { found: true, value: String(el.textContent || "") };
	})()`, JSString(selector))
	var res lookup
	if err := p.Evaluate(ctx, expr, &res); err != nil {
		return "", err
	}
	return res.Value, nil
}

func (p *chromedpPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *chromedpPage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, p.actionTimeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// center scrolls selector into view and returns its center in viewport coordinates
func (p *chromedpPage) center(ctx context.Context, selector string) (float64, float64, error) {
	expr := fmt.Sprintf(`(function () {
		var el = document.querySelector(%s);
		if (!el) return { found: false, x: 0, y: 0 };
		el.scrollIntoView({ block: "center", inline: "center" });
		var r = el.getBoundingClientRect();
		return { found: true, x: r.left + r.width / 2, y: r.top + r.height / 2 };
	})()`, JSString(selector))
	var res struct {
		Found bool    `json:"found"`
		X     float64 `json:"x"`
		Y     float64 `json:"y"`
	}
	if err := p.Evaluate(ctx, expr, &res); err != nil {
		return 0, 0, err
	}
	if !res.Found {
		return 0, 0, fmt.Errorf("element not found: %s", selector)
	}
	return res.X, res.Y, nil
}

func (p *chromedpPage) Hover(ctx context.Context, selector string) error {
	x, y, err := p.center(ctx, selector)
	if err != nil {
		return err
	}
	return p.run(ctx, p.actionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
	}))
}

func (p *chromedpPage) Fill(ctx context.Context, selector, value string) error {
	reset := fmt.Sprintf(`(function () {
		var el = document.querySelector(%s);
		if (!el) return false;
		el.focus();
		if ("value" in el) {
			el.value = "";
		} else {
			el.innerHTML = "";
		}
		el.dispatchEvent(new Event("input", { bubbles: true }));
		return true;
	})()`, JSString(selector))
	var ok bool
	if err := p.Evaluate(ctx, reset, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element not found: %s", selector)
	}
	return p.Type(ctx, value)
}

func (p *chromedpPage) Type(ctx context.Context, text string) error {
	return p.run(ctx, p.actionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.InsertText(text).Do(ctx)
	}))
}

func (p *chromedpPage) SetFiles(ctx context.Context, selector string, paths []string) error {
	return p.run(ctx, p.actionTimeout, chromedp.SetUploadFiles(selector, paths, chromedp.ByQuery))
}

func (p *chromedpPage) Wheel(ctx context.Context, deltaY float64) error {
	var viewport struct {
		W float64 `json:"w"`
		H float64 `json:"h"`
	}
	if err := p.Evaluate(ctx, `({ w: window.innerWidth, h: window.innerHeight })`, &viewport); err != nil {
		return err
	}
	return p.run(ctx, p.actionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseWheel, viewport.W/2, viewport.H/2).
			WithDeltaX(0).
			WithDeltaY(deltaY).
			Do(ctx)
	}))
}

func (p *chromedpPage) MouseClick(ctx context.Context, x, y float64) error {
	return p.run(ctx, p.actionTimeout, chromedp.MouseClickXY(x, y))
}

func (p *chromedpPage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// quality 100 captures PNG
	if err := p.run(ctx, p.actionTimeout, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *chromedpPage) Run(ctx context.Context, actions ...chromedp.Action) error {
	return p.run(ctx, 0, actions...)
}

func (p *chromedpPage) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		err = chromedp.Cancel(p.ctx)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		p.cancel()
	})
	return err
}

// JSString quotes s as a JavaScript string literal
func JSString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
