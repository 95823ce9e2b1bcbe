package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/redbook/internal/interfaces"
	"github.com/ternarybob/redbook/internal/models"
)

// AuthStorage implements the CredentialStore interface on a single JSON file
type AuthStorage struct {
	path   string
	logger arbor.ILogger
}

// NewAuthStorage creates a new AuthStorage instance for path
func NewAuthStorage(path string, logger arbor.ILogger) interfaces.CredentialStore {
	return &AuthStorage{
		path:   path,
		logger: logger,
	}
}

func (s *AuthStorage) Path() string {
	if abs, err := filepath.Abs(s.path); err == nil {
		return abs
	}
	return s.path
}

func (s *AuthStorage) Read(ctx context.Context) (*models.StorageState, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read credentials %s: %w", s.path, err)
	}

	var state models.StorageState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false, fmt.Errorf("failed to parse credentials %s: %w", s.path, err)
	}
	return &state, true, nil
}

func (s *AuthStorage) Write(ctx context.Context, state *models.StorageState) error {
	if state == nil {
		return fmt.Errorf("credentials state is required")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	// Write to a sibling temp file and rename so a reader never sees a partial blob
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".storageState-*.json")
	if err != nil {
		return fmt.Errorf("failed to create credentials temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set credentials permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	s.logger.Debug().
		Str("path", s.path).
		Int("cookies", len(state.Cookies)).
		Int("origins", len(state.Origins)).
		Msg("Stored credentials")
	return nil
}

func (s *AuthStorage) Delete(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	s.logger.Debug().Str("path", s.path).Msg("Deleted credentials")
	return nil
}

func (s *AuthStorage) Exists(ctx context.Context) (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat credentials: %w", err)
}
