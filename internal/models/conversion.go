package models

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Quality is the requested audio quality tier.
type Quality string

// Quality tiers accepted by POST /convert.
const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

// DefaultQuality is used when a request omits the quality field.
const DefaultQuality = QualityHigh

// Conversion status reported to clients. Only "processing" is ever returned: no job status is stored.
const ConversionStatusProcessing = "processing"

// Valid reports whether q is one of the three recognized tiers.
func (q Quality) Valid() bool {
	switch q {
	case QualityHigh, QualityMedium, QualityLow:
		return true
	}
	return false
}

// AudioQuality maps the tier to yt-dlp's --audio-quality value (0 best, 9 worst).
func (q Quality) AudioQuality() string {
	switch q {
	case QualityMedium:
		return "5"
	case QualityLow:
		return "9"
	default:
		return "0"
	}
}

var tokenPattern = regexp.MustCompile(`^[0-9a-f-]{36}$`)

// NewToken returns a fresh conversion token (lowercase UUIDv4, 36 characters).
func NewToken() string {
	return uuid.New().String()
}

// ValidToken reports whether s has the lexical shape of a token produced by NewToken.
func ValidToken(s string) bool {
	return tokenPattern.MatchString(s)
}

// Job is one audio extraction. It is never persisted; the output file is its only trace.
type Job struct {
	Token      string    `json:"token"`
	SourceURL  string    `json:"source_url"`
	Quality    Quality   `json:"quality"`
	OutputPath string    `json:"output_path"`
	CreatedAt  time.Time `json:"created_at"`
}
