// Package library enumerates folders and audio files under the music root.
package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is returned when a requested folder does not exist.
var ErrNotFound = errors.New("folder not found")

// ErrInvalidName is returned for folder or song parameters that are empty
// or attempt to escape the music root.
var ErrInvalidName = errors.New("invalid name")

// audioExtensions lists the playable file extensions, lowercase with dot.
var audioExtensions = map[string]bool{
	".mp3": true,
	".m4a": true,
	".aac": true,
	".wav": true,
	".ogg": true,
}

// Library lists folders and songs under a music root directory. A folder
// is one immediate subdirectory of the root; nested directories are not
// traversed.
type Library struct {
	root string
}

// New creates a Library over the given music root.
func New(root string) *Library {
	return &Library{root: root}
}

// Root returns the music root path.
func (l *Library) Root() string {
	return l.root
}

// Folders returns the sorted names of all immediate subdirectories.
func (l *Library) Folders() ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("read music root: %w", err)
	}

	var folders []string
	for _, entry := range entries {
		if entry.IsDir() {
			folders = append(folders, entry.Name())
		}
	}
	sort.Strings(folders)
	return folders, nil
}

// Songs returns the sorted audio filenames in the given folder.
func (l *Library) Songs(folder string) ([]string, error) {
	if err := ValidateName(folder); err != nil {
		return nil, err
	}

	dir := filepath.Join(l.root, folder)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, folder)
		}
		return nil, fmt.Errorf("read folder %s: %w", folder, err)
	}

	var songs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if IsAudioFile(entry.Name()) {
			songs = append(songs, entry.Name())
		}
	}
	sort.Strings(songs)
	return songs, nil
}

// IsAudioFile reports whether the filename has a playable audio extension.
func IsAudioFile(name string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(name))]
}

// ValidateName rejects empty names and anything that could escape the
// root when joined to it: path separators, traversal and absolute paths.
func ValidateName(name string) error {
	if name == "" ||
		strings.ContainsAny(name, `/\`) ||
		strings.Contains(name, "..") ||
		filepath.IsAbs(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
