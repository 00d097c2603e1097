package resolver

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch invalidates the folder index whenever the lyrics root changes,
// so added or renamed lyric files show up before the TTL expires. It
// returns once the watcher is installed; events are handled until ctx is
// cancelled.
func (r *Resolver) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(r.root); err != nil {
		watcher.Close()
		return err
	}
	// Watch each existing folder too; lrc files live one level down.
	entries, err := os.ReadDir(r.root)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				if err := watcher.Add(filepath.Join(r.root, entry.Name())); err != nil {
					r.logger.Printf("lyric watcher: add %s: %v", entry.Name(), err)
				}
			}
		}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Create != 0 && isDirectory(event.Name) {
					// New folder under the root: watch its files as well.
					if err := watcher.Add(event.Name); err != nil {
						r.logger.Printf("lyric watcher: add %s: %v", event.Name, err)
					}
				}
				r.Invalidate()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Printf("lyric watcher: %v", err)
			}
		}
	}()
	return nil
}

func isDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
