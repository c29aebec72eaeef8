// Package extractor drives yt-dlp as an opaque external process.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tubeaudio/backend/internal/models"
)

var (
	// ErrOutputMissing means yt-dlp exited cleanly without producing the expected file.
	ErrOutputMissing = errors.New("failed to create output file")
	// ErrOutputTooLarge means the produced file exceeded the size cap and was removed.
	ErrOutputTooLarge = errors.New("file size exceeds limit")
)

const maxDiagnostic = 2048

// YTDLP implements worker.Extractor using yt-dlp.
type YTDLP struct {
	binary      string
	cookiesFile string
	maxBytes    int64
	runner      CommandRunner
}

// Option is a functional option for configuring YTDLP.
type Option func(*YTDLP)

// WithBinary sets a custom yt-dlp executable path.
func WithBinary(path string) Option {
	return func(y *YTDLP) {
		if path != "" {
			y.binary = path
		}
	}
}

// WithCookiesFile passes --cookies to every invocation.
func WithCookiesFile(path string) Option {
	return func(y *YTDLP) {
		y.cookiesFile = path
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func WithCommandRunner(runner CommandRunner) Option {
	return func(y *YTDLP) {
		y.runner = runner
	}
}

// NewYTDLP creates an extractor capped at maxBytes per output file.
func NewYTDLP(maxBytes int64, opts ...Option) *YTDLP {
	y := &YTDLP{
		binary:   "yt-dlp",
		maxBytes: maxBytes,
		runner:   &ExecCommandRunner{},
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// OutputTemplate returns the -o template for a destination path: <dir>/<stem>.%(ext)s.
// yt-dlp substitutes the final extension after conversion, so an .mp3 destination ends up at exactly that path.
func OutputTemplate(outputPath string) string {
	return strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".%(ext)s"
}

// Args builds the yt-dlp argument list for a job.
func (y *YTDLP) Args(job models.Job) []string {
	args := []string{
		"-x", "--audio-format", "mp3",
		"--audio-quality", job.Quality.AudioQuality(),
		"--max-filesize", fmt.Sprintf("%dM", y.maxBytes/(1024*1024)),
		"--no-playlist",
	}
	if y.cookiesFile != "" {
		args = append(args, "--cookies", y.cookiesFile)
	}
	return append(args, "-o", OutputTemplate(job.OutputPath), job.SourceURL)
}

// Extract runs yt-dlp for job and verifies the result. On any failure nothing is left at job.OutputPath.
func (y *YTDLP) Extract(ctx context.Context, job models.Job) error {
	stderr, err := y.runner.Run(ctx, y.binary, y.Args(job)...)
	if err != nil {
		removePartials(job.OutputPath)
		return fmt.Errorf("yt-dlp download failed: %s: %w", diagnostic(stderr), err)
	}

	info, err := os.Stat(job.OutputPath)
	if err != nil {
		removePartials(job.OutputPath)
		if errors.Is(err, os.ErrNotExist) {
			return ErrOutputMissing
		}
		return fmt.Errorf("stat output: %w", err)
	}
	if info.Size() > y.maxBytes {
		removePartials(job.OutputPath)
		return fmt.Errorf("%w of %dMB", ErrOutputTooLarge, y.maxBytes/(1024*1024))
	}
	return nil
}

// VerifyInstalled checks that yt-dlp is available.
func (y *YTDLP) VerifyInstalled(ctx context.Context) error {
	if _, err := y.runner.Run(ctx, y.binary, "--version"); err != nil {
		return fmt.Errorf("yt-dlp not found or not executable: %w", err)
	}
	return nil
}

// removePartials deletes the destination and any intermediate files sharing its stem.
func removePartials(outputPath string) {
	stem := strings.TrimSuffix(outputPath, filepath.Ext(outputPath))
	matches, _ := filepath.Glob(globEscape(stem) + ".*")
	for _, m := range matches {
		_ = os.Remove(m)
	}
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `\`, `\\`)
	return r.Replace(s)
}

func diagnostic(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	if s == "" {
		return "no diagnostic output"
	}
	if len(s) > maxDiagnostic {
		s = s[len(s)-maxDiagnostic:]
	}
	return s
}
