// Package images turns the image references accepted by publish_content into local file paths.
package images

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single download
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is downloads per second
	DefaultRateLimit = 2.0
)

var (
	// ErrNoImages means the request named no images
	ErrNoImages = errors.New("至少需要 1 张图片")
	// ErrLocalImageMissing means a local path does not exist
	ErrLocalImageMissing = errors.New("本地图片不存在或不可访问")
)

// cachedExtensions are checked, in order, for a previous download of the same URL
var cachedExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

// Resolver downloads http(s) images into a content-addressed cache and checks local paths
type Resolver struct {
	downloadDir string
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      arbor.ILogger
}

// Option configures the Resolver
type Option func(*Resolver)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(r *Resolver) {
		r.httpClient = httpClient
	}
}

// WithRateLimit sets downloads per second; values <= 0 disable throttling
func WithRateLimit(perSecond float64) Option {
	return func(r *Resolver) {
		if perSecond <= 0 {
			r.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithTimeout sets the per-download timeout
func WithTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		r.httpClient.Timeout = timeout
	}
}

// NewResolver creates a resolver that caches downloads in downloadDir
func NewResolver(downloadDir string, logger arbor.ILogger, opts ...Option) *Resolver {
	r := &Resolver{
		downloadDir: downloadDir,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(DefaultRateLimit), int(DefaultRateLimit)),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns a local path for every image, in order
func (r *Resolver) Resolve(ctx context.Context, images []string) ([]string, error) {
	resolved := make([]string, 0, len(images))
	for _, img := range images {
		img = strings.TrimSpace(img)
		if img == "" {
			continue
		}
		if isHTTPURL(img) {
			path, err := r.download(ctx, img)
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, path)
			continue
		}

		info, err := os.Stat(img)
		if err != nil || info.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrLocalImageMissing, img)
		}
		resolved = append(resolved, img)
	}

	if len(resolved) == 0 {
		return nil, ErrNoImages
	}
	return resolved, nil
}

func (r *Resolver) download(ctx context.Context, rawURL string) (string, error) {
	if err := os.MkdirAll(r.downloadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}

	base := filepath.Join(r.downloadDir, "img_"+cacheKey(rawURL))
	for _, ext := range cachedExtensions {
		if _, err := os.Stat(base + ext); err == nil {
			r.logger.Debug().Str("url", rawURL).Str("path", base+ext).Msg("Image cache hit")
			return base + ext, nil
		}
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("下载图片失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("下载图片失败: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	path := base + extensionFor(resp.Header.Get("Content-Type"))
	if err := writeAtomic(path, resp.Body); err != nil {
		return "", err
	}

	r.logger.Debug().Str("url", rawURL).Str("path", path).Msg("Image downloaded")
	return path, nil
}

func writeAtomic(path string, body io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save image: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func cacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// extensionFor maps an image content type to a file extension, ".img" when unknown
func extensionFor(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "image/jpeg"), strings.Contains(ct, "image/jpg"):
		return ".jpg"
	case strings.Contains(ct, "image/png"):
		return ".png"
	case strings.Contains(ct, "image/webp"):
		return ".webp"
	case strings.Contains(ct, "image/gif"):
		return ".gif"
	default:
		return ".img"
	}
}
