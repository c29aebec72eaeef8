// Package download serves finished audio files by token.
package download

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tubeaudio/backend/internal/models"
	"github.com/tubeaudio/backend/pkg/response"
	"github.com/tubeaudio/backend/pkg/storage"
)

const (
	msgInvalidToken = "Invalid file ID format"
	msgAccessDenied = "Access denied"
	msgInvalidPath  = "Invalid file path"
	msgNotFound     = "File not found. It might still be processing or has expired."
	msgUnreadable   = "Server cannot access the file. Please try again later."
	msgSendFailed   = "Failed to send file. Please try again later."

	contentType = "audio/mpeg"
)

// Store is the part of the audio directory the handler needs.
type Store interface {
	Resolve(token string) (string, error)
	Readable(path string) error
}

// Handler handles download requests.
type Handler struct {
	store  Store
	now    func() time.Time
	logger *zap.Logger
}

// NewHandler creates a download handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, now: time.Now, logger: logger}
}

// AttachmentName is the filename suggested to the client for a download served at t.
func AttachmentName(t time.Time) string {
	return "youtube_audio_" + t.Format("20060102_150405") + ".mp3"
}

// Download handles GET /download/:token. A missing file answers 404 whether it is still processing, expired or
// never existed.
func (h *Handler) Download(c *gin.Context) {
	token := c.Param("token")
	if !models.ValidToken(token) {
		response.BadRequest(c, msgInvalidToken)
		return
	}

	path, err := h.store.Resolve(token)
	if err != nil {
		if errors.Is(err, storage.ErrPathEscape) {
			response.Forbidden(c, msgAccessDenied)
			return
		}
		h.logger.Warn("resolve download path failed", zap.String("token", token), zap.Error(err))
		response.BadRequest(c, msgInvalidPath)
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			h.logger.Warn("stat download failed", zap.String("token", token), zap.Error(err))
		}
		response.NotFound(c, msgNotFound)
		return
	}
	if err := h.store.Readable(path); err != nil {
		h.logger.Error("download not readable", zap.String("path", path), zap.Error(err))
		response.Internal(c, msgUnreadable)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Swept between the stat and the open.
			response.NotFound(c, msgNotFound)
			return
		}
		h.logger.Error("open download failed", zap.String("path", path), zap.Error(err))
		response.Internal(c, msgSendFailed)
		return
	}
	defer f.Close()

	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, AttachmentName(h.now())))
	http.ServeContent(c.Writer, c.Request, "", info.ModTime(), f)
}
