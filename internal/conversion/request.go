package conversion

import (
	"errors"
	"regexp"

	"github.com/tubeaudio/backend/internal/models"
)

// Client-facing validation errors. Their text is returned verbatim as the response detail.
var (
	ErrInvalidURL     = errors.New("Invalid YouTube URL. Please provide a valid YouTube video URL.")
	ErrInvalidQuality = errors.New("Quality must be high, medium, or low")
)

var youtubeURLPattern = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com/watch\?v=|youtu\.be/)[A-Za-z0-9_-]+([\?&][^&\s]*)*$`)

// ConvertRequest is the POST /convert body.
type ConvertRequest struct {
	YouTubeURL string `json:"youtube_url"`
	Quality    string `json:"quality"`
}

// Validate checks the URL shape and the quality tier.
func (r ConvertRequest) Validate() error {
	if !youtubeURLPattern.MatchString(r.YouTubeURL) {
		return ErrInvalidURL
	}
	if !models.Quality(r.Quality).Valid() {
		return ErrInvalidQuality
	}
	return nil
}

// ConvertResponse is returned once a job has been scheduled.
type ConvertResponse struct {
	DownloadURL       string `json:"download_url"`
	Status            string `json:"status"`
	Message           string `json:"message"`
	EstimatedWaitTime string `json:"estimated_wait_time"`
}
