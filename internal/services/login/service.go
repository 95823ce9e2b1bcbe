package login

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/redbook/internal/common"
	"github.com/ternarybob/redbook/internal/interfaces"
	"github.com/ternarybob/redbook/internal/models"
	"github.com/ternarybob/redbook/internal/services/browser"
	"github.com/ternarybob/redbook/internal/services/xhs"
)

// Username is reported for an authenticated session; the site does not expose one cheaply
const Username = "redbook-mcp"

// loginSession is the one in-flight QR handshake
type loginSession struct {
	session   *browser.Session
	startedAt time.Time
	timeout   time.Duration
	challenge *models.Challenge
	cancel    context.CancelFunc
	done      chan struct{} // closed when settlement has finished and torn down
	closeOnce sync.Once
}

func (ls *loginSession) remaining(now time.Time) time.Duration {
	r := ls.timeout - now.Sub(ls.startedAt)
	if r < 0 {
		return 0
	}
	return r
}

func (ls *loginSession) teardown() {
	ls.closeOnce.Do(func() {
		ls.cancel()
		ls.session.Close()
	})
}

// Service drives the QR-code login handshake and owns writes to the credential store
type Service struct {
	manager *browser.Manager
	store   interfaces.CredentialStore
	config  *common.Config
	logger  arbor.ILogger

	// control serializes BeginHandshake and ResetCredentials so overlapping callers share one window
	control *browser.Lane

	mu            sync.Mutex
	active        *loginSession
	authenticated bool
}

// NewService creates a login service
func NewService(manager *browser.Manager, store interfaces.CredentialStore, config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		manager: manager,
		store:   store,
		config:  config,
		logger:  logger,
		control: browser.NewLane("login", logger),
	}
}

// CheckStatus loads the explore page with the stored credentials and looks for the login indicator
func (s *Service) CheckStatus(ctx context.Context) (*models.LoginStatus, error) {
	status := &models.LoginStatus{}
	err := s.manager.Run(ctx, "check_login_status", func(ctx context.Context, session *browser.Session) error {
		if err := session.Page.Navigate(ctx, xhs.ExploreURL); err != nil {
			return err
		}
		if err := common.Sleep(ctx, s.config.LoginCheckDelay()); err != nil {
			return err
		}
		loggedIn, err := hasIndicator(ctx, session.Page)
		if err != nil {
			return err
		}
		status.LoggedIn = loggedIn
		return nil
	})
	if err != nil {
		return nil, err
	}
	if status.LoggedIn {
		status.Username = Username
	}

	s.mu.Lock()
	s.authenticated = status.LoggedIn
	s.mu.Unlock()

	return status, nil
}

// BeginHandshake returns a QR challenge without waiting for it to be scanned.
// An already authenticated session returns LoggedIn; an active handshake is
// reused rather than opening a second window. Settlement continues in the background
// and persists the credentials once the user has scanned.
//
// The status check queues on the browser lane, so it runs before the control lane is
// taken; otherwise a reset would wait behind unrelated browser work.
func (s *Service) BeginHandshake(ctx context.Context) (*models.HandshakeResult, error) {
	status, err := s.CheckStatus(ctx)
	if err != nil {
		return nil, err
	}
	if status.LoggedIn {
		return &models.HandshakeResult{LoggedIn: true}, nil
	}

	var result *models.HandshakeResult
	err = s.control.Run(ctx, "begin_handshake", func(ctx context.Context) error {
		if ls := s.current(); ls != nil {
			result = s.reuse(ctx, ls)
			return nil
		}

		var err error
		result, err = s.start(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) reuse(ctx context.Context, ls *loginSession) *models.HandshakeResult {
	challenge := ls.challenge

	extractCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if fresh, err := extractChallenge(extractCtx, ls.session.Page); err == nil {
		challenge = fresh
	} else {
		s.logger.Debug().Err(err).Msg("Reusing QR code captured at handshake start")
	}

	remaining := ls.remaining(time.Now())
	s.logger.Info().
		Dur("remaining", remaining).
		Msg("Returning active login handshake")

	return &models.HandshakeResult{
		Challenge: challenge,
		Remaining: remaining,
		Reused:    true,
	}
}

func (s *Service) start(ctx context.Context) (*models.HandshakeResult, error) {
	session, err := s.manager.OpenInteractive(ctx)
	if err != nil {
		return nil, err
	}

	keep := false
	defer func() {
		if !keep {
			session.Close()
		}
	}()

	if err := session.Page.Navigate(ctx, xhs.ExploreURL); err != nil {
		return nil, err
	}
	if err := common.Sleep(ctx, s.config.LoginOpenDelay()); err != nil {
		return nil, err
	}

	loggedIn, err := hasIndicator(ctx, session.Page)
	if err != nil {
		return nil, err
	}
	if loggedIn {
		if err := s.persist(ctx, session); err != nil {
			return nil, err
		}
		return &models.HandshakeResult{LoggedIn: true}, nil
	}

	challenge, err := extractChallenge(ctx, session.Page)
	if errors.Is(err, ErrNoChallenge) {
		// The page may have finished logging in between the two reads
		if loggedIn, _ := hasIndicator(ctx, session.Page); loggedIn {
			if err := s.persist(ctx, session); err != nil {
				return nil, err
			}
			return &models.HandshakeResult{LoggedIn: true}, nil
		}
		s.logger.Warn().Msg("Login page showed neither a QR code nor a login indicator")
		return &models.HandshakeResult{
			LoggedIn: true,
			Warning:  "login page showed neither a QR code nor a login indicator; run check_login_status to confirm",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	timeout := s.config.LoginTimeout()
	settleCtx, cancel := context.WithCancel(context.Background())
	ls := &loginSession{
		session:   session,
		startedAt: time.Now(),
		timeout:   timeout,
		challenge: challenge,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	s.active = ls
	s.mu.Unlock()
	keep = true

	common.SafeGo(s.logger, "login.settle", func() {
		s.settle(settleCtx, ls)
	})

	s.logger.Info().
		Dur("timeout", timeout).
		Msg("Login handshake started")

	return &models.HandshakeResult{
		Challenge: challenge,
		Remaining: timeout,
	}, nil
}

// settle waits for the scan to complete, persists the credentials and tears the session down
func (s *Service) settle(ctx context.Context, ls *loginSession) {
	defer close(ls.done)
	defer s.finish(ls)

	err := ls.session.Page.WaitVisible(ctx, xhs.SelectorLoginIndicator, ls.timeout)
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Debug().Msg("Login handshake cancelled")
		} else {
			s.logger.Info().Err(err).Msg("Login handshake ended without a scan")
		}
		return
	}
	if ctx.Err() != nil {
		return
	}

	if err := s.persist(ctx, ls.session); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist login credentials")
		return
	}
	s.logger.Info().
		Dur("elapsed", time.Since(ls.startedAt)).
		Msg("Login handshake completed")
}

// finish clears the active session if it is still ls
func (s *Service) finish(ls *loginSession) {
	ls.teardown()
	s.mu.Lock()
	if s.active == ls {
		s.active = nil
	}
	s.mu.Unlock()
}

func (s *Service) persist(ctx context.Context, session *browser.Session) error {
	state, err := session.Context.StorageState(ctx)
	if err != nil {
		return fmt.Errorf("failed to capture login state: %w", err)
	}
	if err := s.store.Write(ctx, state); err != nil {
		return err
	}
	s.mu.Lock()
	s.authenticated = true
	s.mu.Unlock()
	return nil
}

// ResetCredentials cancels any active handshake and deletes the stored credentials.
// It returns the path of the credential file.
func (s *Service) ResetCredentials(ctx context.Context) (string, error) {
	// Tear the window down at once; a handshake being started is caught again inside the lane
	if err := s.stopActive(ctx); err != nil {
		return "", err
	}
	err := s.control.Run(ctx, "reset_credentials", func(ctx context.Context) error {
		if err := s.stopActive(ctx); err != nil {
			return err
		}
		if err := s.store.Delete(ctx); err != nil {
			return err
		}
		s.mu.Lock()
		s.authenticated = false
		s.mu.Unlock()
		s.logger.Info().Str("path", s.store.Path()).Msg("Credentials deleted")
		return nil
	})
	if err != nil {
		return "", err
	}
	return s.store.Path(), nil
}

// stopActive tears the active handshake down and waits for settlement to stop
func (s *Service) stopActive(ctx context.Context) error {
	s.mu.Lock()
	ls := s.active
	s.active = nil
	s.mu.Unlock()
	if ls == nil {
		return nil
	}

	ls.teardown()
	select {
	case <-ls.done:
		s.logger.Info().Msg("Active login handshake cancelled")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels an active handshake; used on shutdown
func (s *Service) Close(ctx context.Context) error {
	return s.stopActive(ctx)
}

// State reports the handshake state machine's current state
func (s *Service) State() models.LoginState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		if s.active.remaining(time.Now()) == 0 {
			return models.LoginStateExpired
		}
		return models.LoginStateHandshakePending
	}
	if s.authenticated {
		return models.LoginStateAuthenticated
	}
	return models.LoginStateUnauthenticated
}

func (s *Service) current() *loginSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func hasIndicator(ctx context.Context, page interfaces.Page) (bool, error) {
	n, err := page.Count(ctx, xhs.SelectorLoginIndicator)
	if err != nil {
		return false, fmt.Errorf("failed to check login indicator: %w", err)
	}
	return n > 0, nil
}
