package main

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/redbook/internal/common"
	"github.com/ternarybob/redbook/internal/interfaces"
	"github.com/ternarybob/redbook/internal/services/browser"
	"github.com/ternarybob/redbook/internal/services/images"
	"github.com/ternarybob/redbook/internal/services/login"
	"github.com/ternarybob/redbook/internal/services/xhs"
	"github.com/ternarybob/redbook/internal/storage/file"
)

// application wires the services shared by the MCP server and the CLI commands
type application struct {
	config  *common.Config
	logger  arbor.ILogger
	store   interfaces.CredentialStore
	manager *browser.Manager
	login   *login.Service
	content *xhs.Service
}

func newApplication(config *common.Config, logger arbor.ILogger) *application {
	store := file.NewAuthStorage(config.ResolvedStoragePath(), logger)
	launcher := browser.NewChromeDPLauncher(logger, config.NavigationTimeout())
	manager := browser.NewManager(config, launcher, store, logger)

	resolver := images.NewResolver(config.Images.DownloadDir, logger,
		images.WithRateLimit(config.Images.RateLimit),
		images.WithTimeout(config.ImageDownloadTimeout()),
	)

	logger.Debug().
		Str("data_dir", config.Storage.DataDir).
		Str("storage_path", store.Path()).
		Bool("headless", config.Browser.Headless).
		Str("chrome_path", config.Browser.ChromePath).
		Msg("Resolved configuration")

	return &application{
		config:  config,
		logger:  logger,
		store:   store,
		manager: manager,
		login:   login.NewService(manager, store, config, logger),
		content: xhs.NewService(manager, resolver, config, logger),
	}
}

// Close cancels an active login handshake
func (a *application) Close(ctx context.Context) error {
	return a.login.Close(ctx)
}
