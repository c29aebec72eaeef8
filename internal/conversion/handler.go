// Package conversion serves POST /convert: it validates the request, checks storage headroom and schedules an
// extraction job keyed by a fresh token.
package conversion

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tubeaudio/backend/internal/models"
	"github.com/tubeaudio/backend/pkg/response"
)

const (
	msgInvalidBody    = "Invalid request body"
	msgNoStorage      = "Insufficient storage space. Please try again later."
	msgUnexpected     = "An unexpected error occurred. Please try again later."
	msgProcessing     = "Your file is being processed. Please wait a few moments before downloading."
	estimatedWaitTime = "15-30 seconds"
)

// Scheduler accepts a job for background execution. Submit must not wait for the job to run.
type Scheduler interface {
	Submit(ctx context.Context, job models.Job) error
}

// Store is the part of the audio directory the handler needs.
type Store interface {
	FreeBytes() (uint64, error)
	PathFor(token string) string
}

// Handler handles conversion requests.
type Handler struct {
	store       Store
	scheduler   Scheduler
	maxFileSize int64
	logger      *zap.Logger
}

// NewHandler creates a conversion handler. maxFileSize is the per-file cap; 2x of it must be free to accept a job.
func NewHandler(store Store, scheduler Scheduler, maxFileSize int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, scheduler: scheduler, maxFileSize: maxFileSize, logger: logger}
}

// Convert handles POST /convert.
func (h *Handler) Convert(c *gin.Context) {
	req := ConvertRequest{Quality: string(models.DefaultQuality)}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, msgInvalidBody)
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	free, err := h.store.FreeBytes()
	if err != nil {
		h.logger.Error("free space probe failed", zap.Error(err))
		response.Internal(c, msgUnexpected)
		return
	}
	if free < uint64(2*h.maxFileSize) {
		h.logger.Warn("rejecting conversion: low storage", zap.Uint64("free_bytes", free))
		response.InsufficientStorage(c, msgNoStorage)
		return
	}

	token := models.NewToken()
	job := models.Job{
		Token:      token,
		SourceURL:  req.YouTubeURL,
		Quality:    models.Quality(req.Quality),
		OutputPath: h.store.PathFor(token),
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.scheduler.Submit(c.Request.Context(), job); err != nil {
		h.logger.Error("schedule conversion failed", zap.Error(err), zap.String("token", token))
		response.Internal(c, msgUnexpected)
		return
	}

	h.logger.Info("conversion scheduled",
		zap.String("token", token),
		zap.String("url", req.YouTubeURL),
		zap.String("quality", req.Quality),
	)
	response.OK(c, ConvertResponse{
		DownloadURL:       "/download/" + token,
		Status:            models.ConversionStatusProcessing,
		Message:           msgProcessing,
		EstimatedWaitTime: estimatedWaitTime,
	})
}
