package resolver

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sneakwind/lyra/internal/db"
)

// fakeClock is an injectable, manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func writeLyric(t *testing.T, root, folder, name, content string) {
	t.Helper()
	dir := filepath.Join(root, folder)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestResolver(t *testing.T, root string, clock *fakeClock) *Resolver {
	t.Helper()
	return New(Options{
		LyricsRoot:   root,
		CacheEnabled: true,
		Clock:        clock.Now,
		Logger:       quietLogger(),
	})
}

func TestResolve_ExactMatchWinsOverPrefix(t *testing.T) {
	root := t.TempDir()
	writeLyric(t, root, "Pop", "Title - Artist.lrc", "[00:01.00]exact")
	writeLyric(t, root, "Pop", "Title.lrc", "[00:01.00]prefix")

	r := newTestResolver(t, root, newFakeClock())
	result := r.Resolve("Pop", "Title - Artist.mp3")
	require.True(t, result.Success)
	require.Equal(t, "[00:01.00]exact", result.Lyrics)
}

func TestResolve_TitlePrefixFallback(t *testing.T) {
	root := t.TempDir()
	writeLyric(t, root, "Pop", "Title.lrc", "[00:01.00]prefix")

	r := newTestResolver(t, root, newFakeClock())
	result := r.Resolve("Pop", "Title - Artist.mp3")
	require.True(t, result.Success)
	require.Equal(t, "[00:01.00]prefix", result.Lyrics)
}

func TestResolve_NotFound(t *testing.T) {
	root := t.TempDir()
	writeLyric(t, root, "Pop", "Other.lrc", "x")

	r := newTestResolver(t, root, newFakeClock())

	result := r.Resolve("Pop", "Missing.mp3")
	require.False(t, result.Success)
	require.Equal(t, "lyric file not found", result.Message)

	// Unknown folder behaves the same as an unknown song.
	result = r.Resolve("Nope", "Missing.mp3")
	require.False(t, result.Success)
	require.Equal(t, "lyric file not found", result.Message)
}

func TestResolve_MissingRootYieldsNotFound(t *testing.T) {
	r := newTestResolver(t, filepath.Join(t.TempDir(), "absent"), newFakeClock())
	result := r.Resolve("Pop", "Song.mp3")
	require.False(t, result.Success)
}

func TestResolveBatch_SingleIndexBuild(t *testing.T) {
	root := t.TempDir()
	writeLyric(t, root, "Pop", "One.lrc", "1")
	writeLyric(t, root, "Pop", "Two.lrc", "2")

	r := newTestResolver(t, root, newFakeClock())

	songs := []string{"One.mp3", "Two.mp3", "Three.mp3", "Four.mp3"}
	results := r.ResolveBatch("Pop", songs)
	require.Len(t, results, len(songs))
	require.True(t, results["One.mp3"].Success)
	require.True(t, results["Two.mp3"].Success)
	require.False(t, results["Three.mp3"].Success)
	require.Equal(t, 1, r.buildCount)

	// Second batch is served entirely from the result cache.
	r.ResolveBatch("Pop", songs)
	require.Equal(t, 1, r.buildCount)
}

func TestResolve_ResultCacheTTL(t *testing.T) {
	root := t.TempDir()
	writeLyric(t, root, "Pop", "Song.lrc", "cached text")

	clock := newFakeClock()
	r := newTestResolver(t, root, clock)

	require.True(t, r.Resolve("Pop", "Song.mp3").Success)

	// Delete the file; a fresh cache still serves the content.
	require.NoError(t, os.Remove(filepath.Join(root, "Pop", "Song.lrc")))
	require.True(t, r.Resolve("Pop", "Song.mp3").Success)

	// Past the TTL both tiers expire and the miss becomes visible.
	clock.Advance(DefaultTTL + time.Second)
	require.False(t, r.Resolve("Pop", "Song.mp3").Success)
}

func TestResolve_IndexRebuildAfterTTL(t *testing.T) {
	root := t.TempDir()
	writeLyric(t, root, "Pop", "Old.lrc", "old")

	clock := newFakeClock()
	r := newTestResolver(t, root, clock)

	require.True(t, r.Resolve("Pop", "Old.mp3").Success)
	require.Equal(t, 1, r.buildCount)

	// A new lyric file is invisible until the index expires.
	writeLyric(t, root, "Pop", "New.lrc", "new")
	require.False(t, r.Resolve("Pop", "New.mp3").Success)
	require.Equal(t, 1, r.buildCount)

	clock.Advance(DefaultTTL + time.Second)
	require.True(t, r.Resolve("Pop", "New.mp3").Success)
	require.Equal(t, 2, r.buildCount)
}

func TestResolve_InvalidateForcesRebuild(t *testing.T) {
	root := t.TempDir()
	writeLyric(t, root, "Pop", "Old.lrc", "old")

	r := newTestResolver(t, root, newFakeClock())
	require.True(t, r.Resolve("Pop", "Old.mp3").Success)

	writeLyric(t, root, "Pop", "New.lrc", "new")
	r.Invalidate()
	require.True(t, r.Resolve("Pop", "New.mp3").Success)
	require.Equal(t, 2, r.buildCount)
}

func TestResolver_PersistedIndexReused(t *testing.T) {
	root := t.TempDir()
	writeLyric(t, root, "Pop", "Song.lrc", "persisted")

	database, err := db.OpenMemory()
	require.NoError(t, err)
	defer database.Close()

	clock := newFakeClock()
	first := New(Options{
		LyricsRoot:   root,
		CacheEnabled: true,
		DB:           database,
		Clock:        clock.Now,
		Logger:       quietLogger(),
	})
	require.True(t, first.Resolve("Pop", "Song.mp3").Success)
	require.Equal(t, 1, first.buildCount)

	// A second process with the same database starts warm.
	second := New(Options{
		LyricsRoot:   root,
		CacheEnabled: true,
		DB:           database,
		Clock:        clock.Now,
		Logger:       quietLogger(),
	})
	require.True(t, second.Resolve("Pop", "Song.mp3").Success)
	require.Equal(t, 0, second.buildCount)
}

func TestResolver_PersistedIndexExpired(t *testing.T) {
	root := t.TempDir()
	writeLyric(t, root, "Pop", "Song.lrc", "persisted")

	database, err := db.OpenMemory()
	require.NoError(t, err)
	defer database.Close()

	clock := newFakeClock()
	first := New(Options{
		LyricsRoot: root,
		DB:         database,
		Clock:      clock.Now,
		Logger:     quietLogger(),
	})
	require.True(t, first.Resolve("Pop", "Song.mp3").Success)

	clock.Advance(DefaultTTL + time.Second)
	second := New(Options{
		LyricsRoot: root,
		DB:         database,
		Clock:      clock.Now,
		Logger:     quietLogger(),
	})
	require.Nil(t, second.snapshot)
	require.True(t, second.Resolve("Pop", "Song.mp3").Success)
	require.Equal(t, 1, second.buildCount)
}

func TestClearCache(t *testing.T) {
	root := t.TempDir()
	writeLyric(t, root, "Pop", "Song.lrc", "text")

	database, err := db.OpenMemory()
	require.NoError(t, err)
	defer database.Close()

	r := New(Options{
		LyricsRoot:   root,
		CacheEnabled: true,
		DB:           database,
		Clock:        newFakeClock().Now,
		Logger:       quietLogger(),
	})
	require.True(t, r.Resolve("Pop", "Song.mp3").Success)

	require.NoError(t, r.ClearCache())

	var rows int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM lyric_index`).Scan(&rows))
	require.Zero(t, rows)

	// The file is gone and the caches were dropped, so the next lookup
	// rebuilds and misses.
	require.NoError(t, os.Remove(filepath.Join(root, "Pop", "Song.lrc")))
	require.False(t, r.Resolve("Pop", "Song.mp3").Success)
}

func TestReadTextFile_GBKFallback(t *testing.T) {
	root := t.TempDir()
	// "你好" in GBK.
	gbk := []byte{0xC4, 0xE3, 0xBA, 0xC3}
	writeLyric(t, root, "Pop", "Song.lrc", string(gbk))

	r := newTestResolver(t, root, newFakeClock())
	result := r.Resolve("Pop", "Song.mp3")
	require.True(t, result.Success)
	require.Equal(t, "你好", result.Lyrics)
}

func TestReadTextFile_BOMStripped(t *testing.T) {
	root := t.TempDir()
	writeLyric(t, root, "Pop", "Song.lrc", "\xEF\xBB\xBF[00:01.00]text")

	r := newTestResolver(t, root, newFakeClock())
	result := r.Resolve("Pop", "Song.mp3")
	require.True(t, result.Success)
	require.Equal(t, "[00:01.00]text", result.Lyrics)
}

func TestSearchKeys(t *testing.T) {
	tests := []struct {
		song string
		want []string
	}{
		{"Title - Artist.mp3", []string{"Title - Artist", "Title"}},
		{"Title-Artist.m4a", []string{"Title-Artist", "Title"}},
		{"Plain.mp3", []string{"Plain"}},
		{"NoExtension", []string{"NoExtension"}},
		{"- leading dash.mp3", []string{"- leading dash"}},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, searchKeys(tt.song), "searchKeys(%q)", tt.song)
	}
}
