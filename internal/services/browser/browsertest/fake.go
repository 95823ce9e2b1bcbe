// Package browsertest provides in-memory browser fakes for tests that exercise
// session orchestration without starting Chrome.
package browsertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ternarybob/redbook/internal/interfaces"
	"github.com/ternarybob/redbook/internal/models"
)

// Launcher records launches and hands out fake browsers
type Launcher struct {
	mu       sync.Mutex
	launches []interfaces.LaunchOptions
	browsers []*Browser

	// LaunchErr, when set, is returned by every Launch
	LaunchErr error
	// NewPageFunc configures every page created through this launcher
	NewPageFunc func(p *Page)
	// CloseErr is returned from page, context and browser Close
	CloseErr error
}

func (l *Launcher) Launch(ctx context.Context, opts interfaces.LaunchOptions) (interfaces.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches = append(l.launches, opts)
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	b := &Browser{launcher: l, Options: opts}
	l.browsers = append(l.browsers, b)
	return b, nil
}

// Launches returns the options of every launch so far
func (l *Launcher) Launches() []interfaces.LaunchOptions {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]interfaces.LaunchOptions(nil), l.launches...)
}

// InteractiveLaunches counts visible (headless=false) launches
func (l *Launcher) InteractiveLaunches() int {
	n := 0
	for _, o := range l.Launches() {
		if !o.Headless {
			n++
		}
	}
	return n
}

// Browsers returns every browser launched so far
func (l *Launcher) Browsers() []*Browser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Browser(nil), l.browsers...)
}

// Counts sums close calls across everything launched
func (l *Launcher) Counts() (browsers, contexts, pages int) {
	for _, b := range l.Browsers() {
		browsers += b.CloseCalls()
		for _, c := range b.Contexts() {
			contexts += c.CloseCalls()
			for _, p := range c.Pages() {
				pages += p.CloseCalls()
			}
		}
	}
	return
}

type Browser struct {
	launcher *Launcher
	Options  interfaces.LaunchOptions

	mu         sync.Mutex
	contexts   []*Context
	closeCalls int
}

func (b *Browser) NewContext(ctx context.Context, state *models.StorageState) (interfaces.BrowserContext, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := &Context{browser: b, Seed: state}
	b.contexts = append(b.contexts, c)
	return c, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeCalls++
	return b.launcher.CloseErr
}

func (b *Browser) CloseCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeCalls
}

func (b *Browser) Contexts() []*Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Context(nil), b.contexts...)
}

type Context struct {
	browser *Browser
	Seed    *models.StorageState

	mu         sync.Mutex
	scripts    []string
	pages      []*Page
	closeCalls int
	State      *models.StorageState // returned by StorageState
	StorageErr error
}

func (c *Context) AddInitScript(script string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts = append(c.scripts, script)
	return nil
}

func (c *Context) Scripts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.scripts...)
}

func (c *Context) NewPage(ctx context.Context) (interfaces.Page, error) {
	p := NewPage()
	if f := c.browser.launcher.NewPageFunc; f != nil {
		f(p)
	}
	p.closeErr = c.browser.launcher.CloseErr
	c.mu.Lock()
	c.pages = append(c.pages, p)
	c.mu.Unlock()
	return p, nil
}

func (c *Context) StorageState(ctx context.Context) (*models.StorageState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.StorageErr != nil {
		return nil, c.StorageErr
	}
	if c.State != nil {
		return c.State, nil
	}
	return &models.StorageState{
		Cookies: []models.StoredCookie{{Name: "web_session", Value: "fake", Domain: ".xiaohongshu.com", Path: "/", Expires: -1}},
		Origins: []models.OriginStorage{},
	}, nil
}

func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	return c.browser.launcher.CloseErr
}

func (c *Context) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

func (c *Context) Pages() []*Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Page(nil), c.pages...)
}

// Page is a scriptable fake tab. Unset hooks behave like an empty page.
type Page struct {
	NavigateFunc    func(url string) error
	EvaluateFunc    func(expression string, out interface{}) error
	PollFunc        func(ctx context.Context, expression string, timeout time.Duration) error
	CountFunc       func(selector string) (int, error)
	AttributeFunc   func(selector, name string) (string, bool, error)
	TextFunc        func(selector string) (string, error)
	WaitVisibleFunc func(ctx context.Context, selector string, timeout time.Duration) error
	ClickFunc       func(selector string) error
	ScreenshotData  []byte
	// RunErr is returned by Run; actions passed to Run are counted, not executed
	RunErr          error

	mu         sync.Mutex
	visits     []string
	clicks     []string
	typed      []string
	wheels     []float64
	runs       int
	files      map[string][]string
	mouse      [][2]float64
	closeCalls int
	closeErr   error
	closed     chan struct{}
}

func NewPage() *Page {
	return &Page{closed: make(chan struct{})}
}

// Done is closed on the first Close
func (p *Page) Done() <-chan struct{} {
	return p.closed
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	p.visits = append(p.visits, url)
	p.mu.Unlock()
	if p.NavigateFunc != nil {
		return p.NavigateFunc(url)
	}
	return nil
}

func (p *Page) Visits() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visits...)
}

func (p *Page) Evaluate(ctx context.Context, expression string, out interface{}) error {
	if p.EvaluateFunc != nil {
		return p.EvaluateFunc(expression, out)
	}
	return nil
}

// Poll waits for PollFunc, or without a hook blocks until timeout, ctx or Close
func (p *Page) Poll(ctx context.Context, expression string, timeout time.Duration) error {
	if p.PollFunc != nil {
		return p.PollFunc(ctx, expression, timeout)
	}
	return p.block(ctx, timeout)
}

func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	if p.CountFunc != nil {
		return p.CountFunc(selector)
	}
	return 0, nil
}

func (p *Page) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	if p.AttributeFunc != nil {
		return p.AttributeFunc(selector, name)
	}
	return "", false, nil
}

func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	if p.TextFunc != nil {
		return p.TextFunc(selector)
	}
	return "", nil
}

// WaitVisible uses WaitVisibleFunc, or without a hook blocks until timeout, ctx or Close
func (p *Page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if p.WaitVisibleFunc != nil {
		return p.WaitVisibleFunc(ctx, selector, timeout)
	}
	return p.block(ctx, timeout)
}

func (p *Page) block(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		return interfaces.ErrWaitTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closed:
		return errors.New("page closed")
	}
}

func (p *Page) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	p.clicks = append(p.clicks, selector)
	p.mu.Unlock()
	if p.ClickFunc != nil {
		return p.ClickFunc(selector)
	}
	return nil
}

func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

func (p *Page) Hover(ctx context.Context, selector string) error {
	return nil
}

func (p *Page) Fill(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typed = append(p.typed, value)
	return nil
}

func (p *Page) Type(ctx context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typed = append(p.typed, text)
	return nil
}

// Typed returns every Fill value and Type text in order
func (p *Page) Typed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.typed...)
}

func (p *Page) SetFiles(ctx context.Context, selector string, paths []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.files == nil {
		p.files = make(map[string][]string)
	}
	p.files[selector] = append([]string(nil), paths...)
	return nil
}

// Files returns the paths last set on selector
func (p *Page) Files(selector string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.files[selector]
}

func (p *Page) Wheel(ctx context.Context, deltaY float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.wheels = append(p.wheels, deltaY)
	return nil
}

func (p *Page) Wheels() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64(nil), p.wheels...)
}

func (p *Page) MouseClick(ctx context.Context, x, y float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mouse = append(p.mouse, [2]float64{x, y})
	return nil
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	return p.ScreenshotData, nil
}

func (p *Page) Run(ctx context.Context, actions ...chromedp.Action) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs += len(actions)
	return p.RunErr
}

// Runs counts actions passed to Run
func (p *Page) Runs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runs
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeCalls++
	if p.closeCalls == 1 {
		close(p.closed)
	}
	return p.closeErr
}

func (p *Page) CloseCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCalls
}
