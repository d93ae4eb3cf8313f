package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrClosed is returned by Put after Close
	ErrClosed = errors.New("cache closed")
)

// Stats holds cache performance metrics
type Stats struct {
	Capacity  int64 // Maximum compressed bytes on disk
	Size      int64 // Current compressed bytes on disk
	ItemCount int64

	Hits      int64
	Misses    int64
	Evictions int64
	Expired   int64
	HitRate   float64 // hits / (hits + misses)

	LastAccess time.Time
}

// Config holds configuration for a Store.
type Config struct {
	// Dir holds the clip files and the index. Created when missing.
	Dir string

	// Capacity bounds the compressed size on disk, in bytes
	Capacity int64

	// TTL expires clips older than this. Zero keeps them until evicted.
	TTL time.Duration

	// Level is the zstd compression level (1-22, default 3)
	Level int

	Logger *log.Logger
}

// DefaultConfig returns the default cache configuration rooted at dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:      dir,
		Capacity: 64 * 1024 * 1024, // 64MB
		TTL:      7 * 24 * time.Hour,
		Level:    3,
	}
}

// Key derives a cache key from the parts that identify a clip, such as the
// provider, the language and the text.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}
