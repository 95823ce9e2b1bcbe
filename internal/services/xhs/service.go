package xhs

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/redbook/internal/common"
	"github.com/ternarybob/redbook/internal/services/browser"
	"github.com/ternarybob/redbook/internal/services/images"
	"github.com/ternarybob/redbook/internal/services/loader"
)

// Service runs the site's page flows, each as one unit of work on the browser manager
type Service struct {
	manager *browser.Manager
	images  *images.Resolver
	loader  *loader.Loader
	config  *common.Config
	logger  arbor.ILogger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewService creates the page-flow service
func NewService(manager *browser.Manager, resolver *images.Resolver, config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		manager: manager,
		images:  resolver,
		loader:  loader.New(logger),
		config:  config,
		logger:  logger,
		sleep:   common.Sleep,
		now:     time.Now,
	}
}

// pause lets the page settle between UI steps
func (s *Service) pause(ctx context.Context, d time.Duration) error {
	return s.sleep(ctx, d)
}

func (s *Service) stateTimeout() time.Duration {
	return s.config.ExtractorTimeout()
}
