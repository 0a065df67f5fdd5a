package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FilesystemConfig configures a FilesystemTrigger.
type FilesystemConfig struct {
	// Path is the file or directory to watch. When empty, no watch is
	// established and the trigger is driven by Fire.
	Path string

	// Ops limits which operations fire the trigger. Zero means
	// write and create.
	Ops fsnotify.Op

	// Logger receives callback and watcher errors.
	Logger *slog.Logger
}

// FilesystemTrigger fires when a watched path changes.
type FilesystemTrigger struct {
	core
	path string
	ops  fsnotify.Op

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	started bool
}

// NewFilesystemTrigger creates a filesystem trigger. The path is
// checked at Start, not here.
func NewFilesystemTrigger(name string, cfg FilesystemConfig) *FilesystemTrigger {
	ops := cfg.Ops
	if ops == 0 {
		ops = fsnotify.Write | fsnotify.Create
	}
	return &FilesystemTrigger{
		core: newCore(name, cfg.Logger),
		path: cfg.Path,
		ops:  ops,
	}
}

func (t *FilesystemTrigger) Type() string { return TypeFilesystem }

// Path returns the watched path.
func (t *FilesystemTrigger) Path() string { return t.path }

// Start begins watching the configured path. With no path configured,
// Start is a no-op.
func (t *FilesystemTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return ErrAlreadyStarted
	}

	if t.path == "" {
		t.started = true
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(t.path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", t.path, err)
	}

	t.watcher = watcher
	t.stopCh = make(chan struct{})
	t.started = true

	go t.watchLoop(t.watcher, t.stopCh)
	return nil
}

func (t *FilesystemTrigger) watchLoop(watcher *fsnotify.Watcher, stopCh chan struct{}) {
	for {
		select {
		case <-stopCh:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&t.ops == 0 {
				continue
			}
			t.Fire(Event{
				Type: TypeFilesystem,
				Data: map[string]any{
					"path": t.path,
					"op":   opString(event.Op),
					"file": filepath.Base(event.Name),
				},
				Context: map[string]any{"source": "filesystem"},
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if t.logger != nil {
				t.logger.Error("filesystem watcher error",
					slog.String("trigger", t.name),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Stop halts the watch.
func (t *FilesystemTrigger) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = false

	if t.watcher == nil {
		return nil
	}
	close(t.stopCh)
	err := t.watcher.Close()
	t.watcher = nil
	t.stopCh = nil
	return err
}

// opString renders an fsnotify.Op as a lowercase event name.
func opString(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "created"
	case op.Has(fsnotify.Write):
		return "modified"
	case op.Has(fsnotify.Remove):
		return "removed"
	case op.Has(fsnotify.Rename):
		return "renamed"
	case op.Has(fsnotify.Chmod):
		return "chmod"
	default:
		return strings.ToLower(op.String())
	}
}
