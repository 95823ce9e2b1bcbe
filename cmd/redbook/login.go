package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/redbook/internal/common"
	"github.com/ternarybob/redbook/internal/models"
)

const loginPollInterval = 2 * time.Second

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in interactively by scanning a QR code",
	Long: `Opens a visible browser on the login page and waits until the QR code has been scanned.
The QR image is also written to <data_dir>/login_qrcode.png.`,
	RunE: runLogin,
}

// startCLI prints the banner and builds the application for interactive commands
func startCLI() (*application, error) {
	common.PrintBanner(common.GetVersion())
	logger = common.InitLogger(config)
	if err := os.MkdirAll(config.Storage.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return newApplication(config, logger), nil
}

func closeApp(app *application) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Close(ctx); err != nil {
		logger.Warn().Err(err).Msg("Shutdown did not finish cleanly")
	}
}

func runLogin(cmd *cobra.Command, args []string) error {
	app, err := startCLI()
	if err != nil {
		return err
	}
	defer closeApp(app)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := app.login.BeginHandshake(ctx)
	if err != nil {
		return err
	}
	if result.LoggedIn {
		fmt.Println(formatAlreadyLoggedIn(result))
		return nil
	}

	qrPath := filepath.Join(config.Storage.DataDir, "login_qrcode.png")
	if err := os.WriteFile(qrPath, result.Challenge.Data, 0600); err != nil {
		logger.Warn().Err(err).Str("path", qrPath).Msg("Failed to save QR code image")
	} else {
		fmt.Printf("QR code saved to %s\n", qrPath)
	}
	fmt.Println(formatQRCodePrompt(result))

	ticker := time.NewTicker(loginPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		switch app.login.State() {
		case models.LoginStateAuthenticated:
			fmt.Printf("Login succeeded, credentials saved to %s\n", app.store.Path())
			return nil
		case models.LoginStateExpired, models.LoginStateUnauthenticated:
			return fmt.Errorf("login was not completed within %s", config.LoginTimeout())
		}
	}
}
