package images

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func newImageServer(t *testing.T, contentType string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Write([]byte("image-bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolve_DownloadsAndCaches(t *testing.T) {
	var hits int32
	srv := newImageServer(t, "image/png", &hits)
	dir := t.TempDir()
	r := NewResolver(dir, arbor.NewLogger(), WithRateLimit(0))

	url := srv.URL + "/a.png"
	paths, err := r.Resolve(context.Background(), []string{url})
	require.NoError(t, err)
	require.Len(t, paths, 1)

	assert.Equal(t, filepath.Join(dir, "img_"+cacheKey(url)+".png"), paths[0])
	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))

	again, err := r.Resolve(context.Background(), []string{url})
	require.NoError(t, err)
	assert.Equal(t, paths, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestResolve_UnknownContentTypeUsesImgExtension(t *testing.T) {
	var hits int32
	srv := newImageServer(t, "application/octet-stream", &hits)
	r := NewResolver(t.TempDir(), arbor.NewLogger(), WithRateLimit(0))

	paths, err := r.Resolve(context.Background(), []string{srv.URL + "/blob"})
	require.NoError(t, err)
	assert.Equal(t, ".img", filepath.Ext(paths[0]))
}

func TestResolve_HTTPErrorIsReported(t *testing.T) {
	var hits int32
	srv := newImageServer(t, "image/png", &hits)
	r := NewResolver(t.TempDir(), arbor.NewLogger(), WithRateLimit(0))

	_, err := r.Resolve(context.Background(), []string{srv.URL + "/missing.png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestResolve_LocalPaths(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "photo.jpg")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0644))
	r := NewResolver(t.TempDir(), arbor.NewLogger())

	paths, err := r.Resolve(context.Background(), []string{local, "  "})
	require.NoError(t, err)
	assert.Equal(t, []string{local}, paths)

	_, err = r.Resolve(context.Background(), []string{filepath.Join(dir, "nope.jpg")})
	assert.ErrorIs(t, err, ErrLocalImageMissing)
	assert.Contains(t, err.Error(), "nope.jpg")

	_, err = r.Resolve(context.Background(), []string{dir})
	assert.ErrorIs(t, err, ErrLocalImageMissing)
}

func TestResolve_Empty(t *testing.T) {
	r := NewResolver(t.TempDir(), arbor.NewLogger())
	_, err := r.Resolve(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoImages)
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".jpg", extensionFor("image/jpeg; charset=binary"))
	assert.Equal(t, ".jpg", extensionFor("image/jpg"))
	assert.Equal(t, ".png", extensionFor("IMAGE/PNG"))
	assert.Equal(t, ".webp", extensionFor("image/webp"))
	assert.Equal(t, ".gif", extensionFor("image/gif"))
	assert.Equal(t, ".img", extensionFor(""))
}
