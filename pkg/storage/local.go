package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// ErrPathEscape is returned when a resolved path falls outside the storage root.
var ErrPathEscape = errors.New("path escapes storage directory")

// FreeSpaceFunc reports the bytes available to unprivileged users on the filesystem holding path.
type FreeSpaceFunc func(path string) (uint64, error)

// Local is the flat directory holding <token><ext> audio files. The directory listing is the index.
type Local struct {
	root      string
	ext       string
	freeSpace FreeSpaceFunc
	logger    *zap.Logger
}

// LocalOption configures Local.
type LocalOption func(*Local)

// WithFreeSpaceFunc replaces the statfs probe (for tests).
func WithFreeSpaceFunc(fn FreeSpaceFunc) LocalOption {
	return func(l *Local) {
		l.freeSpace = fn
	}
}

// NewLocal creates the directory if needed and pins its canonical absolute path.
func NewLocal(dir, ext string, logger *zap.Logger, opts ...LocalOption) (*Local, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: abs: %w", err)
	}
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve dir: %w", err)
	}
	l := &Local{
		root:      root,
		ext:       ext,
		freeSpace: statfsFree,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Root returns the canonical storage directory.
func (l *Local) Root() string { return l.root }

// Ext returns the audio file extension.
func (l *Local) Ext() string { return l.ext }

// PathFor returns the destination path for a token. It does not validate the token.
func (l *Local) PathFor(token string) string {
	return filepath.Join(l.root, token+l.ext)
}

// Resolve builds the canonical path for token and verifies it lies inside the root.
// A missing file is not an error here; symlinks are followed when the file exists.
func (l *Local) Resolve(token string) (string, error) {
	candidate, err := filepath.Abs(filepath.Join(l.root, token+l.ext))
	if err != nil {
		return "", fmt.Errorf("storage: abs: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(candidate)
	switch {
	case err == nil:
		candidate = resolved
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("storage: resolve: %w", err)
	}
	if !within(l.root, candidate) {
		l.logger.Warn("rejected path outside storage", zap.String("path", candidate))
		return "", ErrPathEscape
	}
	return candidate, nil
}

// FreeBytes reports the free space available on the storage filesystem.
func (l *Local) FreeBytes() (uint64, error) {
	free, err := l.freeSpace(l.root)
	if err != nil {
		return 0, fmt.Errorf("storage: statfs: %w", err)
	}
	return free, nil
}

// Readable returns nil when the process may read path.
func (l *Local) Readable(path string) error {
	return unix.Access(path, unix.R_OK)
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

func statfsFree(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
