// Package config loads server configuration from TOML files.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Listen     string `koanf:"listen"`      // address the HTTP server binds to
	MusicRoot  string `koanf:"music_root"`  // one subdirectory per playlist folder
	LyricsRoot string `koanf:"lyrics_root"` // mirrors the music folders, holds *.lrc files

	Cache CacheConfig `koanf:"cache"`
}

// CacheConfig holds the lyric cache settings.
type CacheConfig struct {
	Enabled         *bool  `koanf:"enabled"`          // default: true
	DurationSeconds int    `koanf:"duration_seconds"` // default: 300
	DBPath          string `koanf:"db_path"`          // default: under the XDG cache dir
}

// Load reads configuration files in priority order (last wins) and
// applies defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	cfg.MusicRoot = expandPath(cfg.MusicRoot)
	cfg.LyricsRoot = expandPath(cfg.LyricsRoot)
	cfg.Cache.DBPath = expandPath(cfg.Cache.DBPath)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	if cfg.MusicRoot == "" {
		cfg.MusicRoot = "music"
	}
	if cfg.LyricsRoot == "" {
		cfg.LyricsRoot = "lyrics"
	}
	if cfg.Cache.DurationSeconds <= 0 {
		cfg.Cache.DurationSeconds = 300
	}
	if cfg.Cache.DBPath == "" {
		cfg.Cache.DBPath = filepath.Join(xdg.CacheHome, "lyra", "lyric-index.db")
	}
}

// CacheEnabled returns the cache toggle, defaulting to true.
func (c *Config) CacheEnabled() bool {
	return c.Cache.Enabled == nil || *c.Cache.Enabled
}

// CacheTTL returns the cache duration as a time.Duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.DurationSeconds) * time.Second
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/lyra/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "lyra", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
