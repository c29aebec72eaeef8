package download

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tubeaudio/backend/pkg/storage"
)

const testToken = "3f2b6c1e-8a4d-4c2e-9b1a-0d5e7f8a9b0c"

func init() {
	gin.SetMode(gin.TestMode)
}

func newStore(t *testing.T) *storage.Local {
	t.Helper()
	store, err := storage.NewLocal(t.TempDir(), ".mp3", nil)
	require.NoError(t, err)
	return store
}

func newRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.UseRawPath = true
	r.UnescapePathValues = true
	r.GET("/download/:token", h.Download)
	return r
}

func get(r http.Handler, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDownloadServesFile(t *testing.T) {
	store := newStore(t)
	audio := bytes.Repeat([]byte("ID3"), 1000)
	require.NoError(t, os.WriteFile(store.PathFor(testToken), audio, 0o644))

	h := NewHandler(store, nil)
	fixed := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
	h.now = func() time.Time { return fixed }

	w := get(newRouter(h), "/download/"+testToken, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="youtube_audio_20240309_140507.mp3"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, audio, w.Body.Bytes())
}

func TestDownloadIsRepeatable(t *testing.T) {
	store := newStore(t)
	audio := []byte("not really an mp3")
	require.NoError(t, os.WriteFile(store.PathFor(testToken), audio, 0o644))
	r := newRouter(NewHandler(store, nil))

	first := get(r, "/download/"+testToken, nil)
	second := get(r, "/download/"+testToken, nil)

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
}

func TestDownloadHonorsRange(t *testing.T) {
	store := newStore(t)
	require.NoError(t, os.WriteFile(store.PathFor(testToken), []byte("0123456789"), 0o644))

	w := get(newRouter(NewHandler(store, nil)), "/download/"+testToken, http.Header{"Range": {"bytes=2-5"}})

	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "2345", w.Body.String())
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
}

func TestDownloadRejectsMalformedTokens(t *testing.T) {
	targets := []string{
		"/download/not-a-token",
		"/download/3F2B6C1E-8A4D-4C2E-9B1A-0D5E7F8A9B0C",
		"/download/" + testToken + "0",
		"/download/..%2F..%2Fetc%2Fpasswd",
		"/download/..%2F" + testToken[3:],
	}
	store := newStore(t)
	r := newRouter(NewHandler(store, nil))
	for _, target := range targets {
		t.Run(target, func(t *testing.T) {
			w := get(r, target, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"detail":"Invalid file ID format"}`, w.Body.String())
		})
	}
}

func TestDownloadMissingFile(t *testing.T) {
	w := get(newRouter(NewHandler(newStore(t), nil)), "/download/"+testToken, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"detail":"File not found. It might still be processing or has expired."}`, w.Body.String())
}

func TestDownloadSymlinkOutsideIsForbidden(t *testing.T) {
	store := newStore(t)
	outside := filepath.Join(t.TempDir(), "secret.mp3")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))
	require.NoError(t, os.Symlink(outside, store.PathFor(testToken)))

	w := get(newRouter(NewHandler(store, nil)), "/download/"+testToken, nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")
}

type stubStore struct {
	path       string
	resolveErr error
	readErr    error
}

func (s stubStore) Resolve(string) (string, error) { return s.path, s.resolveErr }

func (s stubStore) Readable(string) error { return s.readErr }

func TestDownloadResolveErrorIsBadRequest(t *testing.T) {
	h := NewHandler(stubStore{resolveErr: errors.New("storage: resolve: too many links")}, nil)

	w := get(newRouter(h), "/download/"+testToken, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":"Invalid file path"}`, w.Body.String())
}

func TestDownloadUnreadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), testToken+".mp3")
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
	h := NewHandler(stubStore{path: path, readErr: os.ErrPermission}, nil)

	w := get(newRouter(h), "/download/"+testToken, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail":"Server cannot access the file. Please try again later."}`, w.Body.String())
}

func TestDownloadDirectoryIsNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), testToken+".mp3")
	require.NoError(t, os.Mkdir(path, 0o755))

	w := get(newRouter(NewHandler(stubStore{path: path}, nil)), "/download/"+testToken, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttachmentName(t *testing.T) {
	ts := time.Date(2025, 12, 31, 23, 59, 1, 0, time.UTC)
	assert.Equal(t, "youtube_audio_20251231_235901.mp3", AttachmentName(ts))
}
