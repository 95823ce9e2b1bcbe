package login

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/redbook/internal/interfaces"
	"github.com/ternarybob/redbook/internal/models"
	"github.com/ternarybob/redbook/internal/services/xhs"
)

var (
	// ErrNoChallenge means the login page shows no QR code
	ErrNoChallenge = errors.New("login QR code not found on page")
	// ErrMalformedChallenge means the QR code element exists but its image cannot be decoded
	ErrMalformedChallenge = errors.New("login QR code image is malformed")
)

// extractChallenge reads the QR code image from the login dialog
func extractChallenge(ctx context.Context, page interfaces.Page) (*models.Challenge, error) {
	src, found, err := page.Attribute(ctx, xhs.SelectorQRCode, "src")
	if err != nil {
		return nil, fmt.Errorf("failed to read QR code: %w", err)
	}
	if !found || strings.TrimSpace(src) == "" {
		return nil, ErrNoChallenge
	}
	return parseDataURL(src)
}

// parseDataURL decodes a base64 image data URL such as "data:image/png;base64,iVBOR..."
func parseDataURL(src string) (*models.Challenge, error) {
	src = strings.TrimSpace(src)
	if !strings.HasPrefix(src, "data:image/") {
		return nil, fmt.Errorf("%w: unsupported source %.40q", ErrMalformedChallenge, src)
	}
	idx := strings.Index(src, "base64,")
	if idx < 0 {
		return nil, fmt.Errorf("%w: not base64 encoded", ErrMalformedChallenge)
	}

	mimeType := strings.TrimPrefix(src[:idx], "data:")
	mimeType = strings.TrimSuffix(mimeType, ";")
	if semi := strings.Index(mimeType, ";"); semi >= 0 {
		mimeType = mimeType[:semi]
	}

	payload := src[idx+len("base64,"):]
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedChallenge, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrMalformedChallenge)
	}

	return &models.Challenge{
		MimeType: mimeType,
		Base64:   payload,
		Data:     data,
	}, nil
}
