// Package cache stores rendered diagrams keyed by a hash of the graph they
// were rendered from.
//
// Rendering SVG or PNG through Graphviz dominates the cost of the graph
// command and the HTTP server, while the graph of a workspace rarely changes
// between invocations. [Cache] abstracts the store:
//
//   - [NullCache]: never stores anything (--no-cache)
//   - [FileCache]: JSON entries under the XDG cache directory (CLI default)
//   - [MemoryCache]: bounded in-process LRU (HTTP server)
//   - [RedisCache]: shared Redis instance
//
// Keys come from [Keyer], so every backend sees the same key layout.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
type Cache interface {
	// Get returns the stored value and whether it was found. Expired and
	// corrupt entries are reported as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend's resources.
	Close() error
}

// Clearer is implemented by caches that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) (int, error)
}

// NullCache stores nothing; every Get is a miss.
type NullCache struct{}

// NewNullCache returns the cache used when caching is disabled.
func NewNullCache() Cache { return NullCache{} }

func (NullCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NullCache) Delete(context.Context, string) error { return nil }
func (NullCache) Close() error { return nil }

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// digestKey joins kind and the hash of the JSON encoding of parts, as
// "diagram:<sha256>".
func digestKey(kind string, parts ...any) string {
	data, _ := json.Marshal(parts)
	return kind + ":" + Hash(data)
}

// DiagramKeyOpts are the rendering inputs that change a diagram's bytes.
type DiagramKeyOpts struct {
	Format    string   `json:"format"`
	Detailed  bool     `json:"detailed,omitempty"`
	Separator string   `json:"separator,omitempty"`
	Highlight []string `json:"highlight,omitempty"`
}

// Keyer derives cache keys.
type Keyer interface {
	// DiagramKey returns the key of a diagram rendered from the graph whose
	// serialized form hashes to graphHash.
	DiagramKey(graphHash string, opts DiagramKeyOpts) string
}

// DefaultKeyer keys diagrams by graph hash and rendering options. Backends
// that share storage, such as Redis, add their own prefix.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) DiagramKey(graphHash string, opts DiagramKeyOpts) string {
	return digestKey("diagram", graphHash, opts)
}
