package xhs

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/redbook/internal/common"
	"github.com/ternarybob/redbook/internal/interfaces"
	"github.com/ternarybob/redbook/internal/services/browser"
	"github.com/ternarybob/redbook/internal/services/browser/browsertest"
	"github.com/ternarybob/redbook/internal/services/images"
	"github.com/ternarybob/redbook/internal/storage/file"
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// pageState serves __INITIAL_STATE__ subtrees keyed by dotted path
type pageState map[string]string

func pathLiteral(dotted string) string {
	b, _ := json.Marshal(strings.Split(dotted, "."))
	return string(b)
}

func (st pageState) lookup(expression string) (string, bool) {
	for path, value := range st {
		if strings.Contains(expression, "var path = "+pathLiteral(path)+";") {
			return value, true
		}
	}
	return "", false
}

// install wires the state into the page's Evaluate and Poll hooks.
// Polls that are not state reads resolve immediately when attached is true.
func (st pageState) install(p *browsertest.Page, attached bool) {
	p.EvaluateFunc = func(expression string, out interface{}) error {
		if !strings.Contains(expression, "JSON.stringify") {
			return nil
		}
		value, ok := st.lookup(expression)
		if !ok {
			value = "null"
		}
		*out.(*string) = value
		return nil
	}
	p.PollFunc = func(ctx context.Context, expression string, timeout time.Duration) error {
		if strings.Contains(expression, "__INITIAL_STATE__") {
			if _, ok := st.lookup(expression); ok {
				return nil
			}
			return interfaces.ErrWaitTimeout
		}
		if attached {
			return nil
		}
		return interfaces.ErrWaitTimeout
	}
}

type harness struct {
	service  *Service
	launcher *browsertest.Launcher
	config   *common.Config

	mu     sync.Mutex
	sleeps []time.Duration
}

func newHarness(t *testing.T, configure func(p *browsertest.Page)) *harness {
	t.Helper()
	config := common.NewDefaultConfig()
	config.Storage.DataDir = t.TempDir()
	config.Storage.StoragePath = filepath.Join(config.Storage.DataDir, "storage-state.json")
	config.Extractor.Timeout = "50ms"

	logger := arbor.NewLogger()
	launcher := &browsertest.Launcher{NewPageFunc: configure}
	store := file.NewAuthStorage(config.ResolvedStoragePath(), logger)
	manager := browser.NewManager(config, launcher, store, logger)
	resolver := images.NewResolver(filepath.Join(config.Storage.DataDir, "images"), logger)

	h := &harness{launcher: launcher, config: config}
	h.service = NewService(manager, resolver, config, logger)
	h.service.sleep = func(ctx context.Context, d time.Duration) error {
		h.mu.Lock()
		h.sleeps = append(h.sleeps, d)
		h.mu.Unlock()
		return ctx.Err()
	}
	h.service.now = func() time.Time { return fixedNow }
	return h
}

// pages returns every page opened by the headless session of the n-th launch
func (h *harness) pages(t *testing.T, n int) []*browsertest.Page {
	t.Helper()
	browsers := h.launcher.Browsers()
	if len(browsers) <= n {
		t.Fatalf("launch %d did not happen (%d launches)", n, len(browsers))
	}
	return browsers[n].Contexts()[0].Pages()
}

// matchText makes every text lookup by markByText succeed
func matchText(p *browsertest.Page) {
	base := p.EvaluateFunc
	p.EvaluateFunc = func(expression string, out interface{}) error {
		if b, ok := out.(*bool); ok && strings.Contains(expression, "textContent") {
			*b = true
			return nil
		}
		if base != nil {
			return base(expression, out)
		}
		return nil
	}
}
