package cache

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"github.com/mitchellh/go-homedir"
)

const indexFile = "clips.index"

// Store is a disk cache of audio clips. Every clip is zstd-compressed into
// its own file; a gob index maps keys to files and is rewritten on Close.
type Store struct {
	dir      string
	capacity int64
	ttl      time.Duration

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mu     sync.Mutex
	index  map[string]*entry
	size   int64
	stats  Stats
	closed bool

	logger *log.Logger
}

// entry represents a clip in the index
type entry struct {
	File       string // base name inside dir
	Size       int64  // compressed
	RawSize    int64
	Created    time.Time
	LastAccess time.Time
	Hits       int64
}

// Open creates the cache directory if needed and loads its index. A missing
// or unreadable index starts the cache empty.
func Open(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("cache directory required")
	}
	dir, err := homedir.Expand(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("expand cache directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultConfig(dir).Capacity
	}
	if cfg.Level <= 0 {
		cfg.Level = 3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(cfg.Level)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	s := &Store{
		dir:      dir,
		capacity: cfg.Capacity,
		ttl:      cfg.TTL,
		encoder:  encoder,
		decoder:  decoder,
		index:    make(map[string]*entry),
		stats:    Stats{Capacity: cfg.Capacity},
		logger:   logger.WithPrefix("cache"),
	}

	if err := s.loadIndex(); err != nil {
		s.logger.Warn("Discarding unreadable cache index", "error", err)
		s.index = make(map[string]*entry)
	}
	for _, e := range s.index {
		s.size += e.Size
	}
	s.logger.Debug("Cache opened", "dir", dir, "clips", len(s.index), "size", humanize.Bytes(uint64(s.size)))

	return s, nil
}

// Get returns the clip stored under key. Expired, missing or corrupt clips
// are dropped and reported as a miss.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.index[key]
	if !ok {
		s.stats.Misses++
		return nil, false
	}

	if s.expired(e, time.Now()) {
		s.remove(key, e)
		s.stats.Expired++
		s.stats.Misses++
		return nil, false
	}

	compressed, err := os.ReadFile(filepath.Join(s.dir, e.File))
	if err != nil {
		s.remove(key, e)
		s.stats.Misses++
		return nil, false
	}
	data, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		s.logger.Warn("Dropping corrupt clip", "file", e.File, "error", err)
		s.remove(key, e)
		s.stats.Misses++
		return nil, false
	}

	now := time.Now()
	e.LastAccess = now
	e.Hits++
	s.stats.Hits++
	s.stats.LastAccess = now

	return data, true
}

// Put stores data under key, evicting least recently used clips to stay
// within capacity.
func (s *Store) Put(key string, data []byte) error {
	compressed := s.encoder.EncodeAll(data, nil)
	size := int64(len(compressed))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if size > s.capacity {
		return ErrItemTooLarge
	}

	if old, ok := s.index[key]; ok {
		s.remove(key, old)
	}
	for s.size+size > s.capacity && len(s.index) > 0 {
		s.evictOldest()
	}

	name := Key(key)[:32] + ".zst"
	if err := writeAtomic(filepath.Join(s.dir, name), compressed); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	s.index[key] = &entry{
		File:       name,
		Size:       size,
		RawSize:    int64(len(data)),
		Created:    now,
		LastAccess: now,
	}
	s.size += size
	return nil
}

// Delete removes a clip. Deleting a missing key is not an error.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.index[key]; ok {
		s.remove(key, e)
	}
}

// Prune removes expired clips and returns how many were removed.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, e := range s.index {
		if s.expired(e, now) {
			s.remove(key, e)
			removed++
		}
	}
	s.stats.Expired += int64(removed)
	return removed
}

// Clear removes every clip and rewrites an empty index.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.index {
		s.remove(key, e)
	}
	return s.saveIndex()
}

// Stats returns cache statistics.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.Size = s.size
	stats.ItemCount = int64(len(s.index))
	if stats.Hits+stats.Misses > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.Hits+stats.Misses)
	}
	return stats
}

// Close saves the index. The store rejects writes afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.decoder.Close()
	return s.saveIndex()
}

func (s *Store) expired(e *entry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.Created) > s.ttl
}

// remove drops key from the index and disk. Caller holds mu.
func (s *Store) remove(key string, e *entry) {
	_ = os.Remove(filepath.Join(s.dir, e.File))
	s.size -= e.Size
	delete(s.index, key)
}

// evictOldest removes the least recently used clip. Caller holds mu.
func (s *Store) evictOldest() {
	var (
		oldestKey string
		oldest    *entry
	)
	for key, e := range s.index {
		if oldest == nil || e.LastAccess.Before(oldest.LastAccess) {
			oldestKey, oldest = key, e
		}
	}
	if oldest != nil {
		s.remove(oldestKey, oldest)
		s.stats.Evictions++
	}
}

func (s *Store) loadIndex() error {
	f, err := os.Open(filepath.Join(s.dir, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	return gob.NewDecoder(f).Decode(&s.index)
}

func (s *Store) saveIndex() error {
	f, err := os.CreateTemp(s.dir, indexFile+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if err := gob.NewEncoder(f).Encode(s.index); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, filepath.Join(s.dir, indexFile))
}

// writeAtomic writes to a temp file first, then renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
