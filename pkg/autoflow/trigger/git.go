package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// GitConfig configures a GitTrigger.
type GitConfig struct {
	// RepoPath is the root of the repository to watch. When empty, no
	// watch is established and the trigger is driven by Fire.
	RepoPath string

	// Logger receives callback and watcher errors.
	Logger *slog.Logger
}

// GitTrigger fires when a branch ref in a local repository moves,
// which happens on commits, merges, and fetched pushes. It watches
// .git/refs/heads rather than polling.
type GitTrigger struct {
	core
	repoPath string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	started bool
}

// NewGitTrigger creates a git trigger for a local repository.
func NewGitTrigger(name string, cfg GitConfig) *GitTrigger {
	return &GitTrigger{
		core:     newCore(name, cfg.Logger),
		repoPath: cfg.RepoPath,
	}
}

func (t *GitTrigger) Type() string { return TypeGit }

// RepoPath returns the watched repository root.
func (t *GitTrigger) RepoPath() string { return t.repoPath }

// Start begins watching the repository's branch refs. With no
// repository configured, Start is a no-op.
func (t *GitTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return ErrAlreadyStarted
	}

	if t.repoPath == "" {
		t.started = true
		return nil
	}

	headsDir := filepath.Join(t.repoPath, ".git", "refs", "heads")
	if _, err := os.Stat(headsDir); err != nil {
		return fmt.Errorf("not a git repository: %s: %w", t.repoPath, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(headsDir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", headsDir, err)
	}

	t.watcher = watcher
	t.stopCh = make(chan struct{})
	t.started = true

	go t.watchLoop(t.watcher, t.stopCh)
	return nil
}

func (t *GitTrigger) watchLoop(watcher *fsnotify.Watcher, stopCh chan struct{}) {
	for {
		select {
		case <-stopCh:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			// Ref updates appear as create or write on the branch file.
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Git writes refs via ".lock" temp files. Skip those.
			if filepath.Ext(event.Name) == ".lock" {
				continue
			}
			t.Fire(Event{
				Type: TypeGit,
				Data: map[string]any{
					"repo":   t.repoPath,
					"event":  "push",
					"branch": filepath.Base(event.Name),
				},
				Context: map[string]any{"source": "git"},
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if t.logger != nil {
				t.logger.Error("git watcher error",
					slog.String("trigger", t.name),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Stop halts the watch.
func (t *GitTrigger) Stop() error {
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
