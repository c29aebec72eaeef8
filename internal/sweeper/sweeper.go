// Package sweeper deletes stored audio files once they outlive the retention window.
package sweeper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// RemoveHook is called after a file has been deleted from the directory.
type RemoveHook func(ctx context.Context, name string)

// Result contains the outcome of one sweep.
type Result struct {
	Removed []string
	Freed   int64
	Errors  []Error
}

// Error pairs a path with the error hit while inspecting or removing it.
type Error struct {
	Path string
	Err  error
}

// Sweeper scans one flat directory on a fixed interval.
type Sweeper struct {
	dir      string
	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time
	onRemove RemoveHook
	logger   *zap.Logger
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithRemoveHook registers a callback for every deleted file.
func WithRemoveHook(hook RemoveHook) Option {
	return func(s *Sweeper) {
		s.onRemove = hook
	}
}

// WithClock overrides time.Now (for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

// New creates a sweeper for dir.
func New(dir string, maxAge, interval time.Duration, logger *zap.Logger, opts ...Option) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sweeper{
		dir:      dir,
		maxAge:   maxAge,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps immediately and then once per interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("retention sweeper started",
		zap.String("dir", s.dir),
		zap.Duration("max_age", s.maxAge),
		zap.Duration("interval", s.interval),
	)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.Sweep(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("retention sweeper stopping")
			return
		case <-ticker.C:
		}
	}
}

// Sweep removes every regular file whose age exceeds maxAge. Per-file errors are collected, not fatal.
func (s *Sweeper) Sweep(ctx context.Context) Result {
	var res Result

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		res.Errors = append(res.Errors, Error{Path: s.dir, Err: err})
		s.logger.Error("cleanup error", zap.String("dir", s.dir), zap.Error(err))
		return res
	}

	now := s.now()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				res.Errors = append(res.Errors, Error{Path: path, Err: err})
				s.logger.Warn("cleanup stat failed", zap.String("path", path), zap.Error(err))
			}
			continue
		}
		age := now.Sub(info.ModTime())
		if age <= s.maxAge {
			continue
		}
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				res.Errors = append(res.Errors, Error{Path: path, Err: err})
				s.logger.Warn("cleanup remove failed", zap.String("path", path), zap.Error(err))
			}
			continue
		}
		res.Removed = append(res.Removed, path)
		res.Freed += info.Size()
		s.logger.Debug("removed expired file", zap.String("path", path), zap.Duration("age", age))
		if s.onRemove != nil {
			s.onRemove(ctx, entry.Name())
		}
	}

	if len(res.Removed) > 0 {
		s.logger.Info("cleanup finished",
			zap.Int("removed", len(res.Removed)),
			zap.String("freed", humanize.IBytes(uint64(res.Freed))),
			zap.Int("errors", len(res.Errors)),
		)
	}
	return res
}
