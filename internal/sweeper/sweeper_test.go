package sweeper

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAged(t *testing.T, dir, name string, age time.Duration, now time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
	mtime := now.Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestSweepRemovesOnlyExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	old := writeAged(t, dir, "old.mp3", 25*time.Hour, now)
	fresh := writeAged(t, dir, "fresh.mp3", 23*time.Hour, now)

	s := New(dir, 24*time.Hour, time.Hour, nil, WithClock(func() time.Time { return now }))
	res := s.Sweep(context.Background())

	assert.Equal(t, []string{old}, res.Removed)
	assert.Equal(t, int64(len("audio")), res.Freed)
	assert.Empty(t, res.Errors)

	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err), "25h old file should be gone")
	_, err = os.Stat(fresh)
	assert.NoError(t, err, "23h old file should survive")
}

func TestSweepRemovesAnyExtension(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	partial := writeAged(t, dir, "3f2b6c1e.webm.part", 48*time.Hour, now)

	res := New(dir, 24*time.Hour, time.Hour, nil, WithClock(func() time.Time { return now })).Sweep(context.Background())

	assert.Equal(t, []string{partial}, res.Removed)
}

func TestSweepSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(sub, old, old))

	res := New(dir, 24*time.Hour, time.Hour, nil).Sweep(context.Background())

	assert.Empty(t, res.Removed)
	_, err := os.Stat(sub)
	assert.NoError(t, err)
}

func TestSweepMissingDirectoryIsReported(t *testing.T) {
	res := New(filepath.Join(t.TempDir(), "gone"), time.Hour, time.Hour, nil).Sweep(context.Background())

	require.Len(t, res.Errors, 1)
	assert.Empty(t, res.Removed)
}

func TestSweepCallsRemoveHook(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeAged(t, dir, "a.mp3", 30*time.Hour, now)
	writeAged(t, dir, "b.mp3", time.Hour, now)

	var names []string
	s := New(dir, 24*time.Hour, time.Hour, nil,
		WithClock(func() time.Time { return now }),
		WithRemoveHook(func(_ context.Context, name string) { names = append(names, name) }),
	)
	s.Sweep(context.Background())

	assert.Equal(t, []string{"a.mp3"}, names)
}

func TestRunSweepsImmediatelyAndStops(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	old := writeAged(t, dir, "old.mp3", 25*time.Hour, now)

	var mu sync.Mutex
	removed := 0
	s := New(dir, 24*time.Hour, time.Hour, nil, WithRemoveHook(func(context.Context, string) {
		mu.Lock()
		removed++
		mu.Unlock()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(old)
		return os.IsNotExist(err)
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	mu.Lock()
	assert.Equal(t, 1, removed)
	mu.Unlock()
}

func TestRunRepeatsOnInterval(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, 24*time.Hour, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// A file that becomes expired after the first sweep is picked up by a later one.
	time.Sleep(20 * time.Millisecond)
	old := writeAged(t, dir, "late.mp3", 25*time.Hour, time.Now())

	assert.Eventually(t, func() bool {
		_, err := os.Stat(old)
		return os.IsNotExist(err)
	}, time.Second, 5*time.Millisecond)
}
