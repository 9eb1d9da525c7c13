package vfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The watcher is asynchronous by nature, so these tests poll for the
// expected state instead of asserting after a single Settle: Settle
// guarantees enqueued invalidations are applied, but the OS may not
// have delivered the event yet.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestWatcherInvalidatesListing(t *testing.T) {
	dfs, root := newTestFS(t)
	ctx := context.Background()

	w, err := NewWatcher(dfs, func(err error) { t.Logf("watch error: %v", err) })
	require.NoError(t, err)
	defer w.Close()

	content, err := dfs.ReadDir(ctx, "")
	require.NoError(t, err)
	require.Empty(t, content.Entries)

	writeFile(t, filepath.Join(root, "foo"), "foo")

	eventually(t, func() bool {
		require.NoError(t, dfs.Engine().Settle(ctx))
		content, err := dfs.ReadDir(ctx, "")
		require.NoError(t, err)
		return len(content.Entries) == 1
	}, "watcher never invalidated the root listing")
}

func TestWatcherCoversNewDirectories(t *testing.T) {
	dfs, root := newTestFS(t)
	ctx := context.Background()

	w, err := NewWatcher(dfs, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	eventually(t, func() bool {
		require.NoError(t, dfs.Engine().Settle(ctx))
		content, err := dfs.ReadDir(ctx, "")
		require.NoError(t, err)
		return len(content.Entries) == 1
	}, "watcher never saw the new directory")

	// Prime the sub listing, then check changes inside it arrive too.
	content, err := dfs.ReadDir(ctx, "sub")
	require.NoError(t, err)
	assert.Empty(t, content.Entries)

	writeFile(t, filepath.Join(root, "sub", "bar"), "bar")
	eventually(t, func() bool {
		require.NoError(t, dfs.Engine().Settle(ctx))
		content, err := dfs.ReadDir(ctx, "sub")
		require.NoError(t, err)
		return len(content.Entries) == 1
	}, "watcher never invalidated the new directory's listing")
}
