package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ternarybob/redbook/internal/models"
)

// ErrWaitTimeout is returned when a page wait exceeds its bound
var ErrWaitTimeout = errors.New("wait timed out")

// LaunchOptions controls a browser launch
type LaunchOptions struct {
	Headless   bool
	ExecPath   string // explicit browser executable, empty for auto-detect
	NoSandbox  bool
	UserAgent  string
	WindowSize [2]int
}

// Launcher starts browser processes
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

// Browser is one running browser process
type Browser interface {
	// NewContext opens an isolated browsing context, seeded from state when it is non-nil
	NewContext(ctx context.Context, state *models.StorageState) (BrowserContext, error)
	Close() error
}

// BrowserContext is an isolated set of cookies and storage inside a browser
type BrowserContext interface {
	// AddInitScript registers a script that runs before any page script in pages opened afterwards
	AddInitScript(script string) error
	NewPage(ctx context.Context) (Page, error)
	// StorageState captures cookies and localStorage of the pages currently open
	StorageState(ctx context.Context) (*models.StorageState, error)
	Close() error
}

// Page is one tab. Selectors are CSS selectors.
type Page interface {
	Navigate(ctx context.Context, url string) error

	// Evaluate runs a JavaScript expression and decodes its result into out (which may be nil)
	Evaluate(ctx context.Context, expression string, out interface{}) error
	// Poll re-evaluates expression until it is truthy; ErrWaitTimeout after timeout
	Poll(ctx context.Context, expression string, timeout time.Duration) error

	Count(ctx context.Context, selector string) (int, error)
	Attribute(ctx context.Context, selector, name string) (string, bool, error)
	Text(ctx context.Context, selector string) (string, error)
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	Click(ctx context.Context, selector string) error
	Hover(ctx context.Context, selector string) error
	// Fill focuses selector, clears it and inserts value (inputs and contenteditable)
	Fill(ctx context.Context, selector, value string) error
	// Type inserts text at the focused element as if typed
	Type(ctx context.Context, text string) error
	SetFiles(ctx context.Context, selector string, paths []string) error
	Wheel(ctx context.Context, deltaY float64) error
	MouseClick(ctx context.Context, x, y float64) error

	Screenshot(ctx context.Context) ([]byte, error)
	// Run executes raw chromedp actions against the page
	Run(ctx context.Context, actions ...chromedp.Action) error
	Close() error
}
