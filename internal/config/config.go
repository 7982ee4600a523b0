// Package config loads pixel cache settings from a TOML file and the
// environment.
//
// Environment variables override file values:
//
//	PIXELCACHE_THREADS         worker threads per cache view (0 = GOMAXPROCS)
//	PIXELCACHE_MEMORY_LIMIT    bytes of pixels kept in memory per image
//	PIXELCACHE_DISK_LIMIT      bytes of pixels spilled to disk per image
//	PIXELCACHE_THREAD_LIMIT    maximum nexus slots per view (0 = unlimited)
//	PIXELCACHE_TMPDIR          directory for disk-backed caches
//	PIXELCACHE_ROW_CACHE_ROWS  rows kept resident for disk-backed caches
//	PIXELCACHE_LOG_LEVEL       debug, info, warn or error
//	PIXELCACHE_METRICS_ADDR    listen address for /metrics (empty = off)
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds all settings.
type Config struct {
	Threads  int    `toml:"threads"`
	LogLevel string `toml:"log_level"`

	// [cache]
	Cache struct {
		MemoryLimit  int64  `toml:"memory_limit"`
		DiskLimit    int64  `toml:"disk_limit"`
		ThreadLimit  int    `toml:"thread_limit"`
		TmpDir       string `toml:"tmp_dir"`
		RowCacheRows int    `toml:"row_cache_rows"`
	} `toml:"cache"`

	// [metrics]
	Metrics struct {
		Addr string `toml:"addr"`
	} `toml:"metrics"`
}

var (
	ErrNoConfigFile = errors.New("no configuration file specified")
	ErrInvalid      = errors.New("invalid configuration")
)

// Default returns the built-in settings: 256 MiB of memory per image,
// unlimited disk, 1024 resident rows for disk caches.
func Default() *Config {
	c := &Config{LogLevel: "info"}
	c.Cache.MemoryLimit = 256 << 20
	c.Cache.RowCacheRows = 1024
	c.Cache.TmpDir = os.TempDir()
	return c
}

// Load reads the TOML file at path on top of Default and then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	if err := c.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv overrides settings from PIXELCACHE_* variables looked up with
// getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"PIXELCACHE_THREADS", &c.Threads},
		{"PIXELCACHE_THREAD_LIMIT", &c.Cache.ThreadLimit},
		{"PIXELCACHE_ROW_CACHE_ROWS", &c.Cache.RowCacheRows},
	}
	for _, v := range ints {
		s := getenv(v.key)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, v.key, s, err)
		}
		*v.dst = n
	}

	sizes := []struct {
		key string
		dst *int64
	}{
		{"PIXELCACHE_MEMORY_LIMIT", &c.Cache.MemoryLimit},
		{"PIXELCACHE_DISK_LIMIT", &c.Cache.DiskLimit},
	}
	for _, v := range sizes {
		s := getenv(v.key)
		if s == "" {
			continue
		}
		n, err := ParseSize(s)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, v.key, err)
		}
		*v.dst = n
	}

	if s := getenv("PIXELCACHE_TMPDIR"); s != "" {
		c.Cache.TmpDir = s
	}
	if s := getenv("PIXELCACHE_LOG_LEVEL"); s != "" {
		c.LogLevel = s
	}
	if s := getenv("PIXELCACHE_METRICS_ADDR"); s != "" {
		c.Metrics.Addr = s
	}
	return nil
}

// Validate rejects negative limits.
func (c *Config) Validate() error {
	switch {
	case c.Threads < 0:
		return fmt.Errorf("%w: threads must be >= 0", ErrInvalid)
	case c.Cache.MemoryLimit < 0:
		return fmt.Errorf("%w: memory_limit must be >= 0", ErrInvalid)
	case c.Cache.DiskLimit < 0:
		return fmt.Errorf("%w: disk_limit must be >= 0", ErrInvalid)
	case c.Cache.ThreadLimit < 0:
		return fmt.Errorf("%w: thread_limit must be >= 0", ErrInvalid)
	case c.Cache.RowCacheRows < 0:
		return fmt.Errorf("%w: row_cache_rows must be >= 0", ErrInvalid)
	}
	return nil
}

// ParseSize parses a byte count with an optional KiB/MiB/GiB (or K/M/G)
// suffix.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	mult := int64(1)
	for _, u := range []struct {
		suffix string
		mult   int64
	}{
		{"GIB", 1 << 30}, {"MIB", 1 << 20}, {"KIB", 1 << 10},
		{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10},
		{"G", 1 << 30}, {"M", 1 << 20}, {"K", 1 << 10}, {"B", 1},
	} {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			mult = u.mult
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative size %d", n)
	}
	return n * mult, nil
}
