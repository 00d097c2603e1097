// Package resolver locates and serves lyric files for songs, with a
// TTL-bounded per-folder index and an in-memory result cache.
package resolver

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultTTL bounds both cache tiers when no duration is configured.
const DefaultTTL = 300 * time.Second

// ErrNotFound is returned by FetchLyrics when no lyric file matches.
var ErrNotFound = errors.New("lyric file not found")

// Result is the outcome of one lyric lookup.
type Result struct {
	Success bool
	Lyrics  string // raw lyric text, UTF-8, when Success
	Message string // human-readable reason when !Success
}

// Options configures a Resolver.
type Options struct {
	// LyricsRoot holds one subdirectory per music folder, each containing
	// *.lrc files.
	LyricsRoot string
	// TTL bounds the result cache and the folder index. Zero means
	// DefaultTTL.
	TTL time.Duration
	// CacheEnabled controls the in-memory result cache. The folder index
	// is always kept, since lookups are unusable without it.
	CacheEnabled bool
	// DB, when set, persists the folder index across processes.
	DB *sql.DB
	// Clock defaults to time.Now. Injected for tests.
	Clock func() time.Time
	// Logger defaults to log.Default().
	Logger *log.Logger
}

// Resolver resolves (folder, song) pairs to lyric text.
type Resolver struct {
	root    string
	ttl     time.Duration
	clock   func() time.Time
	logger  *log.Logger
	db      *sql.DB
	results *resultCache // nil when disabled

	mu       sync.Mutex
	cond     *sync.Cond
	snapshot *indexSnapshot
	building bool

	buildCount int // rebuilds performed, read by tests
}

// New creates a Resolver. If a persisted index is available and still
// fresh it is loaded instead of rescanning the lyrics root.
func New(opts Options) *Resolver {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	r := &Resolver{
		root:   opts.LyricsRoot,
		ttl:    opts.TTL,
		clock:  opts.Clock,
		logger: opts.Logger,
		db:     opts.DB,
	}
	r.cond = sync.NewCond(&r.mu)
	if opts.CacheEnabled {
		r.results = newResultCache(opts.TTL, opts.Clock)
	}

	if r.db != nil {
		if snap, err := loadIndex(r.db); err != nil {
			r.logger.Printf("lyric index: load persisted cache: %v", err)
		} else if snap != nil && r.clock().Sub(snap.builtAt) < r.ttl {
			r.snapshot = snap
			r.logger.Printf("lyric index: reusing persisted cache (%d folders)", len(snap.folders))
		}
	}

	return r
}

// Resolve looks up the lyric text for one song.
func (r *Resolver) Resolve(folder, song string) Result {
	if cached, ok := r.results.get(folder, song); ok {
		return cached
	}

	result := r.lookup(r.index(), folder, song)
	r.results.set(folder, song, result)
	return result
}

// ResolveBatch resolves each song of one folder against a single index
// snapshot, so N lookups cost at most one index build.
func (r *Resolver) ResolveBatch(folder string, songs []string) map[string]Result {
	results := make(map[string]Result, len(songs))

	var snap map[string]map[string]string
	for _, song := range songs {
		if cached, ok := r.results.get(folder, song); ok {
			results[song] = cached
			continue
		}
		if snap == nil {
			snap = r.index()
		}
		result := r.lookup(snap, folder, song)
		r.results.set(folder, song, result)
		results[song] = result
	}
	return results
}

// FetchLyrics adapts Resolve to the playback.Fetcher contract.
func (r *Resolver) FetchLyrics(_ context.Context, folder, song string) (string, error) {
	result := r.Resolve(folder, song)
	if !result.Success {
		return "", ErrNotFound
	}
	return result.Lyrics, nil
}

// ClearCache drops both cache tiers and the persisted index artifact.
func (r *Resolver) ClearCache() error {
	r.results.clear()

	r.mu.Lock()
	r.snapshot = nil
	r.mu.Unlock()

	if r.db != nil {
		if _, err := r.db.Exec(`DELETE FROM lyric_index`); err != nil {
			return err
		}
	}
	return nil
}

// Invalidate marks the folder index stale so the next lookup rebuilds it.
// Lookups racing the rebuild keep using the old snapshot.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	if r.snapshot != nil {
		r.snapshot.builtAt = time.Time{}
	}
	r.mu.Unlock()
}

// lookup tries the exact base name first, then the title prefix.
func (r *Resolver) lookup(index map[string]map[string]string, folder, song string) Result {
	folderIndex := index[folder]

	for _, key := range searchKeys(song) {
		path, ok := folderIndex[key]
		if !ok {
			continue
		}
		text, err := readTextFile(path)
		if err != nil {
			r.logger.Printf("lyrics: read %s: %v", path, err)
			return Result{Message: "failed to read lyric file"}
		}
		return Result{Success: true, Lyrics: text}
	}
	return Result{Message: "lyric file not found"}
}

// searchKeys derives the lookup keys for a song filename: the base name
// without extension, then the part before the first "-". Audio files are
// often named "Title - Artist" while their lyric file carries the title
// alone.
func searchKeys(song string) []string {
	base := strings.TrimSuffix(song, filepath.Ext(song))
	title := strings.TrimSpace(strings.SplitN(base, "-", 2)[0])
	if title == base || title == "" {
		return []string{base}
	}
	return []string{base, title}
}
