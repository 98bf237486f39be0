package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) handle(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, filepath.Base(path))
	return nil
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func TestIsCandidate(t *testing.T) {
	t.Parallel()

	assert.True(t, IsCandidate("cover.PNG"))
	assert.True(t, IsCandidate("/music/track.flac"))
	assert.True(t, IsCandidate("photo.avif"))
	assert.False(t, IsCandidate("notes.txt"))
	assert.False(t, IsCandidate("noextension"))
}

func TestScanProcessesExistingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	for _, name := range []string{"a.png", "nested/b.jpg", "readme.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	rec := &recorder{}
	service := NewService(dir, 0, rec.handle, nil)
	require.NoError(t, service.Scan(context.Background()))

	assert.ElementsMatch(t, []string{"a.png", "b.jpg"}, rec.seen())

	status := service.GetStatus()
	assert.Equal(t, 2, status.FilesSeen)
	assert.Equal(t, 2, status.Processed)
	assert.NotEmpty(t, status.LastRunAt)
}

func TestScanCountsHandlerFailures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("x"), 0o644))

	service := NewService(dir, 0, func(context.Context, string) error {
		return errors.New("decode failed")
	}, nil)
	require.NoError(t, service.Scan(context.Background()))

	status := service.GetStatus()
	assert.Equal(t, 1, status.Failed)
	assert.Equal(t, "decode failed", status.LastError)
}

func TestRunDebouncesWrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := &recorder{}
	service := NewService(dir, 50*time.Millisecond, rec.handle, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()

	require.Eventually(t, func() bool { return service.GetStatus().Running }, time.Second, 10*time.Millisecond)

	target := filepath.Join(dir, "cover.png")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(target, []byte{byte(i)}, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))

	require.Eventually(t, func() bool { return len(rec.seen()) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, []string{"cover.png"}, rec.seen())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
	assert.False(t, service.GetStatus().Running)
}

func TestScanAndRunRejectMissingDir(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "does-not-exist")
	service := NewService(missing, 10*time.Millisecond, (&recorder{}).handle, nil)

	require.ErrorIs(t, service.Scan(context.Background()), os.ErrNotExist)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := service.Run(ctx)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.NoError(t, ctx.Err())
	assert.False(t, service.GetStatus().Running)
}

func TestRunRejectsFile(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "cover.png")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	service := NewService(file, 0, (&recorder{}).handle, nil)
	require.ErrorIs(t, service.Run(context.Background()), ErrNotDirectory)
}

func TestDebouncerDropsStaleSends(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newDebouncer(time.Millisecond)
	defer d.stop()

	d.touch(ctx, "cover.png")
	time.Sleep(50 * time.Millisecond)
	d.touch(ctx, "cover.png")

	settled := 0
	for i := 0; i < 2; i++ {
		select {
		case p := <-d.ready:
			if d.settle(p) {
				settled++
				assert.Equal(t, uint64(2), p.generation)
			}
		case <-time.After(time.Second):
			t.Fatal("debounced path was never sent")
		}
	}
	assert.Equal(t, 1, settled)
}