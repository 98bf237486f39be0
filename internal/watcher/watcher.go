package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"palettemaker/internal/coverart"
	"palettemaker/internal/raster"
)

const DefaultDebounce = 750 * time.Millisecond

var ErrNotDirectory = errors.New("not a directory")

// Handler receives the path of a settled image or audio file.
type Handler func(ctx context.Context, path string) error

type Status struct {
	Running   bool   `json:"running"`
	Dir       string `json:"dir"`
	LastRunAt string `json:"lastRunAt"`
	LastError string `json:"lastError,omitempty"`
	FilesSeen int    `json:"filesSeen"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
}

type Service struct {
	dir      string
	debounce time.Duration
	handle   Handler
	logger   *slog.Logger

	mu        sync.Mutex
	running   bool
	lastRun   time.Time
	lastError string
	filesSeen int
	processed int
	failed    int
}

func NewService(dir string, debounce time.Duration, handle Handler, logger *slog.Logger) *Service {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{dir: dir, debounce: debounce, handle: handle, logger: logger}
}

// IsCandidate reports whether path names a file the palette service can read.
func IsCandidate(path string) bool {
	return raster.IsSupported(path) || coverart.IsAudio(path)
}

func (s *Service) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Running:   s.running,
		Dir:       s.dir,
		LastError: s.lastError,
		FilesSeen: s.filesSeen,
		Processed: s.processed,
		Failed:    s.failed,
	}
	if !s.lastRun.IsZero() {
		status.LastRunAt = s.lastRun.UTC().Format(time.RFC3339)
	}
	return status
}

// checkDir fails when the watched directory is missing or not a directory.
func (s *Service) checkDir() error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("watch dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch dir %s: %w", s.dir, ErrNotDirectory)
	}
	return nil
}

// Scan hands every candidate file already under the directory to the handler.
func (s *Service) Scan(ctx context.Context) error {
	if err := s.checkDir(); err != nil {
		return err
	}

	err := filepath.WalkDir(s.dir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			s.logger.Warn("skip unreadable path", "path", path, "error", walkErr)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() || !IsCandidate(path) {
			return nil
		}

		s.process(ctx, path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", s.dir, err)
	}

	s.mu.Lock()
	s.lastRun = time.Now().UTC()
	s.mu.Unlock()
	return nil
}

// Run watches the directory tree until ctx is done. Bursts of events for one
// path collapse into a single handler call once the path has been quiet for
// the debounce interval.
func (s *Service) Run(ctx context.Context) error {
	if err := s.checkDir(); err != nil {
		return err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	defer fsWatcher.Close()

	if err := s.addTree(fsWatcher, s.dir); err != nil {
		return err
	}

	// Running flips only once the tree is registered.
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("watcher already running")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info("watching directory", "dir", s.dir, "debounce", s.debounce)

	pending := newDebouncer(s.debounce)
	defer pending.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					if err := s.addTree(fsWatcher, event.Name); err != nil {
						s.logger.Warn("watch new directory", "path", event.Name, "error", err)
					}
					continue
				}
			}

			if !IsCandidate(event.Name) {
				continue
			}

			pending.touch(ctx, event.Name)
		case settled := <-pending.ready:
			if !pending.settle(settled) {
				continue
			}
			s.process(ctx, settled.path)
		case watchErr, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("fs watcher error", "error", watchErr)
		}
	}
}

func (s *Service) addTree(fsWatcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return fmt.Errorf("walk %s: %w", root, walkErr)
			}
			s.logger.Warn("skip unreadable directory", "path", path, "error", walkErr)
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if err := fsWatcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (s *Service) process(ctx context.Context, path string) {
	err := s.handle(ctx, path)

	s.mu.Lock()
	s.filesSeen++
	if err != nil {
		s.failed++
		s.lastError = err.Error()
	} else {
		s.processed++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("palette generation failed", "path", path, "error", err)
		return
	}
	s.logger.Debug("palette generated", "path", path)
}

type pendingPath struct {
	path       string
	generation uint64
}

// debouncer delays a path until it has been quiet for delay. A timer that
// already fired may still be blocked on ready when the path changes again,
// so every send carries the generation it was armed for and only the latest
// generation settles.
type debouncer struct {
	delay       time.Duration
	ready       chan pendingPath
	timers      map[string]*time.Timer
	generations map[string]uint64
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:       delay,
		ready:       make(chan pendingPath),
		timers:      make(map[string]*time.Timer),
		generations: make(map[string]uint64),
	}
}

func (d *debouncer) touch(ctx context.Context, path string) {
	if timer, exists := d.timers[path]; exists {
		timer.Stop()
	}
	d.generations[path]++
	armed := pendingPath{path: path, generation: d.generations[path]}
	d.timers[path] = time.AfterFunc(d.delay, func() {
		select {
		case d.ready <- armed:
		case <-ctx.Done():
		}
	})
}

// settle reports whether p is the latest change of its path.
func (d *debouncer) settle(p pendingPath) bool {
	if p.generation != d.generations[p.path] {
		return false
	}
	delete(d.timers, p.path)
	return true
}

func (d *debouncer) stop() {
	for _, timer := range d.timers {
		timer.Stop()
	}
}
