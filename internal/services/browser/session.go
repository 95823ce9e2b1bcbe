package browser

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/redbook/internal/interfaces"
)

// Session is the browser, context and page provisioned for one unit of work.
// It is valid until Close; work functions must not keep it after returning.
type Session struct {
	Browser interfaces.Browser
	Context interfaces.BrowserContext
	Page    interfaces.Page

	logger    arbor.ILogger
	closeOnce sync.Once
	closeErr  error
}

// Close tears down page, context and browser in that order.
// Each close is attempted even if an earlier one fails; the failures are joined.
// Calling Close more than once returns the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.Page != nil {
			if err := s.Page.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close page: %w", err))
			}
		}
		if s.Context != nil {
			if err := s.Context.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close context: %w", err))
			}
		}
		if s.Browser != nil {
			if err := s.Browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close browser: %w", err))
			}
		}
		s.closeErr = errors.Join(errs...)
		if s.closeErr != nil && s.logger != nil {
			s.logger.Warn().Err(s.closeErr).Msg("Session teardown reported errors")
		}
	})
	return s.closeErr
}
