package trigger

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

// eventCollector gathers trigger events behind a mutex for async tests.
type eventCollector struct {
	mu     sync.Mutex
	events []Event
}

func (c *eventCollector) callback(evt Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *eventCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *eventCollector) first() Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[0]
}

func TestFilesystem_FiresOnFileCreate(t *testing.T) {
	dir := t.TempDir()
	tr := NewFilesystemTrigger("watcher", FilesystemConfig{Path: dir})

	var collector eventCollector
	tr.AddCallback(collector.callback)

	require.NoError(t, tr.Start(context.Background()))
	defer tr.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.txt"), []byte("hi"), 0o644))

	require.Eventually(t, func() bool { return collector.count() > 0 },
		2*time.Second, 10*time.Millisecond)

	evt := collector.first()
	assert.Equal(t, TypeFilesystem, evt.Type)
	assert.Equal(t, dir, evt.Data["path"])
	assert.Equal(t, "note.txt", evt.Data["file"])
	assert.Equal(t, "filesystem", evt.Context["source"])
}

func TestFilesystem_StartWithMissingPath(t *testing.T) {
	tr := NewFilesystemTrigger("watcher", FilesystemConfig{Path: "/does/not/exist"})
	err := tr.Start(context.Background())
	require.Error(t, err)
}

func TestFilesystem_NoPathIsFireOnly(t *testing.T) {
	tr := NewFilesystemTrigger("watcher", FilesystemConfig{})
	require.NoError(t, tr.Start(context.Background()))
	require.NoError(t, tr.Stop())
}

func TestGit_FiresOnRefUpdate(t *testing.T) {
	repo := t.TempDir()
	headsDir := filepath.Join(repo, ".git", "refs", "heads")
	require.NoError(t, os.MkdirAll(headsDir, 0o755))

	tr := NewGitTrigger("repo", GitConfig{RepoPath: repo})

	var collector eventCollector
	tr.AddCallback(collector.callback)

	require.NoError(t, tr.Start(context.Background()))
	defer tr.Stop()

	// Simulate a branch ref moving after a commit.
	require.NoError(t, os.WriteFile(filepath.Join(headsDir, "main"), []byte("abc123\n"), 0o644))

	require.Eventually(t, func() bool { return collector.count() > 0 },
		2*time.Second, 10*time.Millisecond)

	evt := collector.first()
	assert.Equal(t, TypeGit, evt.Type)
	assert.Equal(t, repo, evt.Data["repo"])
	assert.Equal(t, "push", evt.Data["event"])
	assert.Equal(t, "main", evt.Data["branch"])
}

func TestGit_StartOutsideRepository(t *testing.T) {
	tr := NewGitTrigger("repo", GitConfig{RepoPath: t.TempDir()})
	err := tr.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a git repository")
}
