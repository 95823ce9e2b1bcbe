package interfaces

import (
	"context"

	"github.com/ternarybob/redbook/internal/models"
)

// CredentialStore persists the authentication snapshot at a single path.
// The path is the only source of truth; implementations keep no cache.
type CredentialStore interface {
	// Read returns the snapshot and true, or nil and false when none is stored
	Read(ctx context.Context) (*models.StorageState, bool, error)
	// Write replaces the snapshot, creating parent directories first
	Write(ctx context.Context, state *models.StorageState) error
	// Delete removes the snapshot; deleting an absent snapshot is not an error
	Delete(ctx context.Context) error
	Exists(ctx context.Context) (bool, error)
	Path() string
}
