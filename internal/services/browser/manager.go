package browser

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/redbook/internal/common"
	"github.com/ternarybob/redbook/internal/interfaces"
	"github.com/ternarybob/redbook/internal/models"
)

// WorkFunc is a unit of browser work. The session is torn down when it returns.
type WorkFunc func(ctx context.Context, session *Session) error

// Manager provisions a fresh browser, context and page for every unit of work
// and runs the units one at a time on its lane.
type Manager struct {
	config   *common.Config
	launcher interfaces.Launcher
	store    interfaces.CredentialStore
	lane     *Lane
	logger   arbor.ILogger
}

// NewManager creates a Manager. The store is only read, once per provisioned session.
func NewManager(config *common.Config, launcher interfaces.Launcher, store interfaces.CredentialStore, logger arbor.ILogger) *Manager {
	return &Manager{
		config:   config,
		launcher: launcher,
		store:    store,
		lane:     NewLane("browser", logger),
		logger:   logger,
	}
}

// Pending returns the number of units queued or running
func (m *Manager) Pending() int {
	return m.lane.Pending()
}

// Run schedules fn on the lane. Once admitted it provisions a session seeded with
// the stored credentials, runs fn, and tears down page, context and browser
// before returning fn's error.
func (m *Manager) Run(ctx context.Context, name string, fn WorkFunc) error {
	return m.lane.Run(ctx, name, func(ctx context.Context) error {
		runID := uuid.New().String()
		logger := m.logger.WithCorrelationId(runID)
		startTime := time.Now()

		logger.Debug().Str("unit", name).Msg("Provisioning browser session")

		session, err := m.provision(ctx, logger, m.config.Browser.Headless, true)
		if err != nil {
			logger.Error().Err(err).Str("unit", name).Msg("Failed to provision browser session")
			return err
		}

		runErr := invoke(ctx, name, session, fn)
		closeErr := session.Close()

		event := logger.Info()
		if runErr != nil {
			event = logger.Warn().Err(runErr)
		}
		event.
			Str("unit", name).
			Dur("duration", time.Since(startTime)).
			Bool("teardown_clean", closeErr == nil).
			Msg("Browser work unit finished")

		return runErr
	})
}

// OpenInteractive launches a visible browser with a clean context and one page.
// It does not use the lane and the caller owns Session.Close.
func (m *Manager) OpenInteractive(ctx context.Context) (*Session, error) {
	session, err := m.provision(ctx, m.logger, false, false)
	if err != nil {
		return nil, err
	}
	m.logger.Info().Msg("Opened interactive browser session")
	return session, nil
}

func (m *Manager) provision(ctx context.Context, logger arbor.ILogger, headless bool, seed bool) (*Session, error) {
	if err := os.MkdirAll(m.config.Storage.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", m.config.Storage.DataDir, err)
	}

	var state *models.StorageState
	if seed {
		stored, ok, err := m.store.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w (delete_cookies resets the stored login)", err)
		}
		if ok {
			state = stored
		}
	}

	opts := interfaces.LaunchOptions{
		Headless:   headless,
		ExecPath:   m.config.Browser.ChromePath,
		NoSandbox:  m.config.Browser.NoSandbox,
		UserAgent:  m.config.Browser.UserAgent,
		WindowSize: [2]int{m.config.Browser.WindowWidth, m.config.Browser.WindowHeight},
	}
	b, err := m.launcher.Launch(ctx, opts)
	if err != nil {
		return nil, classifyLaunchError(err, opts.ExecPath)
	}

	session := &Session{Browser: b, logger: logger}

	bctx, err := b.NewContext(ctx, state)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	session.Context = bctx

	for i, script := range StealthScripts {
		if err := bctx.AddInitScript(script); err != nil {
			logger.Debug().Err(err).Int("script", i).Int("version", StealthVersion).Msg("Stealth script not applied")
		}
	}

	page, err := bctx.NewPage(ctx)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	session.Page = page

	logger.Debug().
		Bool("headless", headless).
		Bool("seeded", state != nil).
		Msg("Browser session ready")

	return session, nil
}

// invoke runs fn, converting a panic into an error so teardown still happens
func invoke(ctx context.Context, name string, session *Session, fn WorkFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = common.RecoverError(name, r)
		}
	}()
	return fn(ctx, session)
}
