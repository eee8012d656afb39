package tls

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileEventObserver is notified of every credential file change.
type FileEventObserver interface {
	ObserveCredentialFileEvent(op string)
}

// FileWatcher watches the certificate and key files and logs when they change.
// Credentials are fixed for the lifetime of the process, so a change only
// produces a warning that a restart is required.
type FileWatcher struct {
	files    map[string]struct{}
	dirs     []string
	watcher  *fsnotify.Watcher
	observer FileEventObserver
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	running bool
	timer   *time.Timer
}

// NewFileWatcher creates a watcher for the given files. observer may be nil.
// The parent directories are watched so that atomic replacements (rename over
// the original) are also seen.
func NewFileWatcher(paths []string, observer FileEventObserver, logger *slog.Logger) (*FileWatcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	fw := &FileWatcher{
		files:    make(map[string]struct{}, len(paths)),
		watcher:  w,
		observer: observer,
		logger:   logger.With("component", "tls.watcher"),
		debounce: 100 * time.Millisecond,
	}

	seen := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("failed to resolve %q: %w", p, err)
		}
		fw.files[abs] = struct{}{}

		dir := filepath.Dir(abs)
		if _, ok := seen[dir]; !ok {
			seen[dir] = struct{}{}
			fw.dirs = append(fw.dirs, dir)
		}
	}

	return fw, nil
}

// Watch blocks until ctx is cancelled, logging a warning for each burst of
// changes to a watched file.
func (fw *FileWatcher) Watch(ctx context.Context) error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	fw.running = true
	fw.mu.Unlock()

	defer func() {
		fw.mu.Lock()
		fw.running = false
		if fw.timer != nil {
			fw.timer.Stop()
		}
		fw.mu.Unlock()
		_ = fw.watcher.Close()
	}()

	for _, dir := range fw.dirs {
		if err := fw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %q: %w", dir, err)
		}
	}

	fw.logger.Info("credential file watcher started", "directories", fw.dirs)

	for {
		select {
		case <-ctx.Done():
			fw.logger.Info("credential file watcher stopped")
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !fw.shouldProcessEvent(event) {
				continue
			}

			if fw.observer != nil {
				fw.observer.ObserveCredentialFileEvent(opName(event.Op))
			}
			fw.trigger(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			fw.logger.Error("credential file watcher error", "error", err)
		}
	}
}

func (fw *FileWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	_, ok := fw.files[abs]
	return ok
}

// trigger collapses rapid events into one log line.
func (fw *FileWatcher) trigger(event fsnotify.Event) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.debounce, func() {
		fw.logger.Warn("credential file changed on disk; restart required to serve the new certificate",
			"path", event.Name,
			"op", event.Op.String(),
		)
	})
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	default:
		return "other"
	}
}
