package resolver

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatch_InvalidatesOnNewLyricFile(t *testing.T) {
	root := t.TempDir()
	writeLyric(t, root, "Pop", "Old.lrc", "old")

	// Result caching off so the earlier miss is not served back.
	r := New(Options{
		LyricsRoot: root,
		Clock:      newFakeClock().Now,
		Logger:     quietLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Watch(ctx))

	// Build the index while New.lrc does not exist yet.
	require.False(t, r.Resolve("Pop", "New.mp3").Success)

	writeLyric(t, root, "Pop", "New.lrc", "new")

	// The watcher marks the index stale, so the lookup succeeds well
	// before the TTL would have expired.
	require.Eventually(t, func() bool {
		return r.Resolve("Pop", "New.mp3").Success
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatch_MissingRoot(t *testing.T) {
	r := newTestResolver(t, filepath.Join(t.TempDir(), "absent"), newFakeClock())
	require.Error(t, r.Watch(context.Background()))
}
