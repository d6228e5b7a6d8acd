// Package config loads projmigrate settings.
//
// Settings come from three layers, later ones winning:
//
//  1. [Default] values
//  2. an optional TOML file, projmigrate.toml in the workspace root or the
//     file named by --config
//  3. environment variables, after a .env file in the working directory has
//     been loaded into the environment
//
// A minimal file:
//
//	[convert]
//	test_marker = "Tests"
//	prune = true
//
//	[reconcile]
//	max_passes = 200
//
//	[cache]
//	backend = "redis"
//	redis_url = "redis://localhost:6379/0"
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/matzehuels/projmigrate/pkg/cache"
	"github.com/matzehuels/projmigrate/pkg/errors"
	"github.com/matzehuels/projmigrate/pkg/graph"
	"github.com/matzehuels/projmigrate/pkg/msbuild"
	"github.com/matzehuels/projmigrate/pkg/pipeline"
	"github.com/matzehuels/projmigrate/pkg/project"
	"github.com/matzehuels/projmigrate/pkg/reconcile"
)

// FileName is the configuration file looked up in the workspace root.
const FileName = "projmigrate.toml"

// AppName names the cache directory.
const AppName = "projmigrate"

// Environment variables overriding file settings.
const (
	EnvCacheDir     = "PROJMIGRATE_CACHE_DIR"
	EnvCacheBackend = "PROJMIGRATE_CACHE_BACKEND"
	EnvRedisURL     = "PROJMIGRATE_REDIS_URL"
	EnvAddr         = "PROJMIGRATE_ADDR"
)

// Cache backends.
const (
	BackendNone   = "none"
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the complete configuration.
type Config struct {
	Convert   Convert   `toml:"convert"`
	Reconcile Reconcile `toml:"reconcile"`
	Graph     Graph     `toml:"graph"`
	Cache     Cache     `toml:"cache"`
	Serve     Serve     `toml:"serve"`

	// Source is the file the configuration was read from, if any.
	Source string `toml:"-"`
}

// Convert configures the legacy-to-SDK conversion.
type Convert struct {
	Sdk               string                     `toml:"sdk"`
	TestMarker        string                     `toml:"test_marker"`
	TestPackages      []project.PackageReference `toml:"test_packages"`
	WebTargetsVersion string                     `toml:"web_targets_version"`
	Properties        []msbuild.Property         `toml:"properties"`

	// Prune deletes files no longer referenced by the project.
	Prune          bool     `toml:"prune"`
	PruneItemTypes []string `toml:"prune_item_types"`
}

// Reconcile configures version reconciliation.
type Reconcile struct {
	MaxPasses int `toml:"max_passes"`
}

// Graph configures diagram output.
type Graph struct {
	Format    string `toml:"format"`
	Separator string `toml:"separator"`
	Detailed  bool   `toml:"detailed"`
}

// Cache selects and configures the diagram cache.
type Cache struct {
	Backend  string        `toml:"backend"`
	Dir      string        `toml:"dir"`
	RedisURL string        `toml:"redis_url"`
	Prefix   string        `toml:"prefix"`
	Entries  int           `toml:"entries"`
	TTL      time.Duration `toml:"ttl"`
}

// Serve configures the diagnostics server.
type Serve struct {
	Addr string `toml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	conv := msbuild.DefaultOptions()
	return Config{
		Convert: Convert{
			Sdk:               conv.Sdk,
			TestMarker:        conv.TestMarker,
			TestPackages:      conv.TestPackages,
			WebTargetsVersion: conv.WebTargetsVersion,
			Properties:        conv.Properties,
			PruneItemTypes:    slices.Clone(msbuild.DefaultPruneItemTypes),
		},
		Reconcile: Reconcile{MaxPasses: reconcile.DefaultMaxPasses},
		Graph:     Graph{Format: pipeline.FormatPUML, Separator: graph.DefaultSeparator},
		Cache: Cache{
			Backend: BackendFile,
			Prefix:  cache.DefaultRedisPrefix,
			Entries: cache.DefaultMemoryEntries,
			TTL:     24 * time.Hour,
		},
		Serve: Serve{Addr: "127.0.0.1:8080"},
	}
}

// Load reads the configuration for a workspace. An explicit path must
// exist; otherwise FileName in dir is used when present. Environment
// overrides are applied last.
func Load(dir, explicit string) (Config, error) {
	cfg := Default()

	path := explicit
	if path == "" && dir != "" {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if os.IsNotExist(err) {
		return errors.New(errors.ErrCodeNotFound, "config file %s not found", path)
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return errors.New(errors.ErrCodeInvalidConfig, "%s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	c.Source = path
	return nil
}

// LoadEnvFiles loads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "load %s", f)
		}
	}
	return nil
}

// ApplyEnv overrides settings from environment variables read through
// getenv. A Redis URL without an explicit backend selects the redis backend.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvCacheDir)); v != "" {
		c.Cache.Dir = v
	}
	if v := strings.TrimSpace(getenv(EnvRedisURL)); v != "" {
		c.Cache.RedisURL = v
		c.Cache.Backend = BackendRedis
	}
	if v := strings.TrimSpace(getenv(EnvCacheBackend)); v != "" {
		c.Cache.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(getenv(EnvAddr)); v != "" {
		c.Serve.Addr = v
	}
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	if c.Reconcile.MaxPasses < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "reconcile.max_passes must not be negative")
	}
	if err := pipeline.ValidateFormat(c.Graph.Format); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "graph.format")
	}
	switch c.Cache.Backend {
	case BackendNone, BackendFile, BackendMemory:
	case BackendRedis:
		if c.Cache.RedisURL == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache.redis_url is required for the redis backend")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q", c.Cache.Backend)
	}
	for _, p := range c.Convert.TestPackages {
		if err := errors.ValidatePackageName(p.Name); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "convert.test_packages")
		}
	}
	return nil
}

// ConvertOptions returns the msbuild conversion options.
func (c Config) ConvertOptions() msbuild.Options {
	return msbuild.Options{
		Sdk:               c.Convert.Sdk,
		Properties:        slices.Clone(c.Convert.Properties),
		TestMarker:        c.Convert.TestMarker,
		TestPackages:      slices.Clone(c.Convert.TestPackages),
		WebTargetsVersion: c.Convert.WebTargetsVersion,
	}
}

// ReconcileOptions returns the reconciler options.
func (c Config) ReconcileOptions() reconcile.Options {
	return reconcile.Options{MaxPasses: c.Reconcile.MaxPasses}
}

// MigrateOptions returns pipeline options for a run over dir.
func (c Config) MigrateOptions(dir string) pipeline.Options {
	return pipeline.Options{
		Dir:            dir,
		Convert:        c.ConvertOptions(),
		Prune:          c.Convert.Prune,
		PruneItemTypes: slices.Clone(c.Convert.PruneItemTypes),
		Reconcile:      c.ReconcileOptions(),
	}
}

// DiagramOptions returns the configured diagram options.
func (c Config) DiagramOptions() pipeline.DiagramOptions {
	return pipeline.DiagramOptions{
		Format:    c.Graph.Format,
		Detailed:  c.Graph.Detailed,
		Separator: c.Graph.Separator,
	}
}

// DefaultCacheDir returns the XDG cache directory (~/.cache/projmigrate/).
func DefaultCacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", AppName), nil
}

// CacheDir returns the configured file cache directory.
func (c Cache) CacheDir() (string, error) {
	if c.Dir != "" {
		return c.Dir, nil
	}
	return DefaultCacheDir()
}

// Open creates the configured cache backend. An unusable file cache
// directory degrades to the null cache.
func (c Cache) Open(ctx context.Context) (cache.Cache, error) {
	switch c.Backend {
	case BackendNone:
		return cache.NewNullCache(), nil
	case BackendMemory:
		return cache.NewMemoryCache(c.Entries)
	case BackendRedis:
		rc, err := cache.NewRedisCache(ctx, c.RedisURL, c.Prefix)
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		return rc, nil
	default:
		dir, err := c.CacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
		return cache.NewFileCache(dir)
	}
}
