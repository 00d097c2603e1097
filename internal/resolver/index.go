package resolver

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sneakwind/lyra/internal/db"
)

// indexSnapshot maps folder -> lyric key -> file path. The folder maps
// are never mutated once published; staleness is tracked through builtAt.
type indexSnapshot struct {
	builtAt time.Time
	folders map[string]map[string]string
}

// index returns the current folder index, rebuilding it when stale.
// Only one goroutine rebuilds at a time; concurrent lookups keep using
// the previous snapshot instead of blocking, since staleness is bounded
// by the TTL anyway. Callers block only when no snapshot exists yet.
func (r *Resolver) index() map[string]map[string]string {
	r.mu.Lock()
	for {
		snap := r.snapshot
		if snap != nil {
			if r.clock().Sub(snap.builtAt) < r.ttl || r.building {
				r.mu.Unlock()
				return snap.folders
			}
			break // stale and nobody rebuilding: this caller rebuilds
		}
		if !r.building {
			break // no snapshot: this caller builds
		}
		r.cond.Wait()
	}
	r.building = true
	r.buildCount++
	r.mu.Unlock()

	folders := r.scan()
	builtAt := r.clock()

	r.mu.Lock()
	r.snapshot = &indexSnapshot{builtAt: builtAt, folders: folders}
	r.building = false
	r.cond.Broadcast()
	r.mu.Unlock()

	if r.db != nil {
		if err := saveIndex(r.db, folders, builtAt); err != nil {
			r.logger.Printf("lyric index: persist: %v", err)
		}
	}
	return folders
}

// scan walks the immediate subdirectories of the lyrics root and maps
// each *.lrc filename (without extension) to its path. A missing or
// unreadable root yields an empty index rather than an error: serving
// "no lyrics" beats failing the whole request.
func (r *Resolver) scan() map[string]map[string]string {
	index := make(map[string]map[string]string)

	entries, err := os.ReadDir(r.root)
	if err != nil {
		r.logger.Printf("lyric index: read root %s: %v", r.root, err)
		return index
	}

	total := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		folder := entry.Name()
		files, err := os.ReadDir(filepath.Join(r.root, folder))
		if err != nil {
			r.logger.Printf("lyric index: read folder %s: %v", folder, err)
			continue
		}

		keys := make(map[string]string)
		for _, file := range files {
			name := file.Name()
			if file.IsDir() || !strings.EqualFold(filepath.Ext(name), ".lrc") {
				continue
			}
			key := strings.TrimSuffix(name, filepath.Ext(name))
			keys[key] = filepath.Join(r.root, folder, name)
			total++
		}
		index[folder] = keys
	}

	r.logger.Printf("lyric index: scanned %d folders, %d lyric files", len(index), total)
	return index
}

// loadIndex restores the most recently persisted snapshot, or nil when
// nothing was persisted.
func loadIndex(database *sql.DB) (*indexSnapshot, error) {
	rows, err := database.Query(`SELECT folder, key, path, built_at FROM lyric_index`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	folders := make(map[string]map[string]string)
	var builtAt int64
	hasData := false

	for rows.Next() {
		var folder, key, path string
		if err := rows.Scan(&folder, &key, &path, &builtAt); err != nil {
			return nil, err
		}
		hasData = true
		if folders[folder] == nil {
			folders[folder] = make(map[string]string)
		}
		folders[folder][key] = path
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !hasData {
		return nil, nil
	}
	return &indexSnapshot{builtAt: time.Unix(builtAt, 0), folders: folders}, nil
}

// saveIndex replaces the persisted snapshot.
func saveIndex(database *sql.DB, folders map[string]map[string]string, builtAt time.Time) error {
	return db.WithTx(database, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM lyric_index`); err != nil {
			return err
		}
		stmt, err := tx.Prepare(`
			INSERT INTO lyric_index (folder, key, path, built_at)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		at := builtAt.Unix()
		for folder, keys := range folders {
			for key, path := range keys {
				if _, err := stmt.Exec(folder, key, path, at); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
