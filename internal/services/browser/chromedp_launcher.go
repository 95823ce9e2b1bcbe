package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/redbook/internal/interfaces"
	"github.com/ternarybob/redbook/internal/models"
)

// ChromeDPLauncher starts a dedicated Chrome process per Launch
type ChromeDPLauncher struct {
	logger        arbor.ILogger
	actionTimeout time.Duration
}

// NewChromeDPLauncher creates a launcher; actionTimeout bounds single page actions such as navigation or a click
func NewChromeDPLauncher(logger arbor.ILogger, actionTimeout time.Duration) *ChromeDPLauncher {
	return &ChromeDPLauncher{
		logger:        logger,
		actionTimeout: actionTimeout,
	}
}

// launchFlags are the command-line switches layered over chromedp's defaults.
// enable-automation is switched back off so the automation infobar and flag are not shown.
func launchFlags(opts interfaces.LaunchOptions) map[string]interface{} {
	return map[string]interface{}{
		"headless":               opts.Headless,
		"enable-automation":      false,
		"disable-blink-features": "AutomationControlled",
		"disable-dev-shm-usage":  true,
		"disable-infobars":       true,
		"lang":                   "zh-CN",
	}
}

// Launch starts the browser and waits until it accepts commands
func (l *ChromeDPLauncher) Launch(ctx context.Context, opts interfaces.LaunchOptions) (interfaces.Browser, error) {
	if opts.ExecPath != "" {
		if _, err := os.Stat(opts.ExecPath); err != nil {
			return nil, err
		}
	}

	allocatorOpts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range launchFlags(opts) {
		allocatorOpts = append(allocatorOpts, chromedp.Flag(name, value))
	}
	if opts.WindowSize[0] > 0 && opts.WindowSize[1] > 0 {
		allocatorOpts = append(allocatorOpts, chromedp.WindowSize(opts.WindowSize[0], opts.WindowSize[1]))
	}
	if opts.NoSandbox {
		allocatorOpts = append(allocatorOpts, chromedp.NoSandbox)
	}
	if opts.ExecPath != "" {
		allocatorOpts = append(allocatorOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		allocatorOpts = append(allocatorOpts, chromedp.UserAgent(opts.UserAgent))
	}

	// The browser outlives the launching request, so it hangs off a background context
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	// Abort the startup if the caller goes away while Chrome is booting
	stop := context.AfterFunc(ctx, browserCancel)
	err := chromedp.Run(browserCtx)
	stop()
	if err != nil {
		browserCancel()
		allocatorCancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	l.logger.Debug().
		Bool("headless", opts.Headless).
		Str("exec_path", opts.ExecPath).
		Msg("Browser started")

	return &chromedpBrowser{
		ctx:             browserCtx,
		cancel:          browserCancel,
		allocatorCancel: allocatorCancel,
		windowSize:      opts.WindowSize,
		actionTimeout:   l.actionTimeout,
		logger:          l.logger,
	}, nil
}

type chromedpBrowser struct {
	ctx             context.Context
	cancel          context.CancelFunc
	allocatorCancel context.CancelFunc
	windowSize      [2]int
	actionTimeout   time.Duration
	logger          arbor.ILogger
	closeOnce       sync.Once
	closeErr        error
}

// browserDo runs fn with an executor bound to the browser target rather than a tab
func (b *chromedpBrowser) browserDo(ctx context.Context, fn func(ctx context.Context) error) error {
	runCtx, cancel := context.WithCancel(b.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		c := chromedp.FromContext(ctx)
		if c == nil || c.Browser == nil {
			return errors.New("browser is not running")
		}
		return fn(cdp.WithExecutor(ctx, c.Browser))
	}))
}

func (b *chromedpBrowser) NewContext(ctx context.Context, state *models.StorageState) (interfaces.BrowserContext, error) {
	var id cdp.BrowserContextID
	err := b.browserDo(ctx, func(ctx context.Context) error {
		var err error
		id, err = target.CreateBrowserContext().Do(ctx)
		if err != nil {
			return err
		}
		if state == nil || len(state.Cookies) == 0 {
			return nil
		}
		return storage.SetCookies(toCookieParams(state.Cookies)).WithBrowserContextID(id).Do(ctx)
	})
	if err != nil {
		return nil, err
	}

	bc := &chromedpContext{browser: b, id: id}
	if state != nil {
		if script := localStorageSeedScript(state.Origins); script != "" {
			bc.scripts = append(bc.scripts, script)
		}
	}
	return bc, nil
}

func (b *chromedpBrowser) Close() error {
	b.closeOnce.Do(func() {
		err := chromedp.Cancel(b.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			b.closeErr = err
		}
		b.cancel()
		b.allocatorCancel()
	})
	return b.closeErr
}

type chromedpContext struct {
	browser *chromedpBrowser
	id      cdp.BrowserContextID

	mu      sync.Mutex
	scripts []string
	pages   []*chromedpPage
	closed  bool
}

func (c *chromedpContext) AddInitScript(script string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("browser context is closed")
	}
	c.scripts = append(c.scripts, script)
	return nil
}

func (c *chromedpContext) NewPage(ctx context.Context) (interfaces.Page, error) {
	c.mu.Lock()
	scripts := append([]string(nil), c.scripts...)
	c.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(c.browser.ctx, chromedp.WithExistingBrowserContext(c.id))

	actions := []chromedp.Action{
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, script := range scripts {
				if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
					return err
				}
			}
			return nil
		}),
	}
	if w, h := c.browser.windowSize[0], c.browser.windowSize[1]; w > 0 && h > 0 {
		actions = append(actions, chromedp.EmulateViewport(int64(w), int64(h)))
	}

	stop := context.AfterFunc(ctx, tabCancel)
	err := chromedp.Run(tabCtx, actions...)
	stop()
	if err != nil {
		tabCancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	p := &chromedpPage{
		ctx:           tabCtx,
		cancel:        tabCancel,
		actionTimeout: c.browser.actionTimeout,
	}

	c.mu.Lock()
	c.pages = append(c.pages, p)
	c.mu.Unlock()

	return p, nil
}

// localStorageDump returns the origin and items of the page's localStorage as JSON
const localStorageDump = `(function () {
	try {
		var items = [];
		for (var i = 0; i < localStorage.length; i++) {
			var k = localStorage.key(i);
			items.push({ name: k, value: localStorage.getItem(k) });
		}
		return JSON.stringify({ origin: location.origin, localStorage: items });
	} catch (e) {
		return JSON.stringify({ origin: location.origin, localStorage: [] });
	}
})()`

func (c *chromedpContext) StorageState(ctx context.Context) (*models.StorageState, error) {
	var cookies []*network.Cookie
	err := c.browser.browserDo(ctx, func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().WithBrowserContextID(c.id).Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	state := &models.StorageState{
		Cookies: fromCookies(cookies),
		Origins: []models.OriginStorage{},
	}

	c.mu.Lock()
	pages := append([]*chromedpPage(nil), c.pages...)
	c.mu.Unlock()

	seen := make(map[string]int)
	for _, p := range pages {
		if p.isClosed() {
			continue
		}
		var dump string
		if err := p.Evaluate(ctx, localStorageDump, &dump); err != nil {
			c.browser.logger.Debug().Err(err).Msg("Skipping localStorage of page")
			continue
		}
		var origin models.OriginStorage
		if err := json.Unmarshal([]byte(dump), &origin); err != nil || origin.Origin == "" || origin.Origin == "null" {
			continue
		}
		if idx, ok := seen[origin.Origin]; ok {
			state.Origins[idx] = origin
			continue
		}
		seen[origin.Origin] = len(state.Origins)
		state.Origins = append(state.Origins, origin)
	}

	return state, nil
}

func (c *chromedpContext) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pages := c.pages
	c.mu.Unlock()

	for _, p := range pages {
		p.Close()
	}

	return c.browser.browserDo(context.Background(), func(ctx context.Context) error {
		return target.DisposeBrowserContext(c.id).Do(ctx)
	})
}

func toCookieParams(cookies []models.StoredCookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if !c.IsSession() {
			expires := cdp.TimeSinceEpoch(c.ExpiresAt())
			p.Expires = &expires
		}
		switch c.NormalizedSameSite() {
		case "Strict":
			p.SameSite = network.CookieSameSiteStrict
		case "Lax":
			p.SameSite = network.CookieSameSiteLax
		case "None":
			p.SameSite = network.CookieSameSiteNone
		}
		params = append(params, p)
	}
	return params
}

func fromCookies(cookies []*network.Cookie) []models.StoredCookie {
	out := make([]models.StoredCookie, 0, len(cookies))
	for _, c := range cookies {
		expires := c.Expires
		if c.Session {
			expires = -1
		}
		out = append(out, models.StoredCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite.String(),
		})
	}
	return out
}

// localStorageSeedScript restores stored localStorage once per tab for the matching origin
func localStorageSeedScript(origins []models.OriginStorage) string {
	seed := make(map[string][][2]string)
	for _, o := range origins {
		if len(o.LocalStorage) == 0 {
			continue
		}
		items := make([][2]string, 0, len(o.LocalStorage))
		for _, item := range o.LocalStorage {
			items = append(items, [2]string{item.Name, item.Value})
		}
		seed[o.Origin] = items
	}
	if len(seed) == 0 {
		return ""
	}
	data, err := json.Marshal(seed)
	if err != nil {
		return ""
	}
	return fmt.Sprintf(`(function () {
	var seed = %s;
	try {
		var items = seed[location.origin];
		if (!items || sessionStorage.getItem('__redbook_seeded')) return;
		for (var i = 0; i < items.length; i++) localStorage.setItem(items[i][0], items[i][1]);
		sessionStorage.setItem('__redbook_seeded', '1');
	} catch (e) {}
})();`, data)
}
