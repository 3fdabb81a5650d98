// Package cache is the persistent lyrics cache: BoltDB on disk with an
// in-memory mirror for fast reads.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"lyricsync-go/logcolors"
	"lyricsync-go/lrc"
	"lyricsync-go/utils"
)

const (
	bucketName = "lyrics"

	// keyPrefix namespaces lyric entries inside the bucket.
	keyPrefix = "lyrics:"

	keySeparator = "|"
)

// Meta records which track an entry was resolved for.
type Meta struct {
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	Album           string `json:"album,omitempty"`
	DurationSeconds int    `json:"duration,omitempty"`
}

// Entry is one cached lyric document with its bookkeeping timestamps
// (unix seconds).
type Entry struct {
	Key            string     `json:"key"`
	Lines          []lrc.Line `json:"lines"`
	CreatedAt      int64      `json:"createdAt"`
	UpdatedAt      int64      `json:"updatedAt"`
	LastAccessedAt int64      `json:"lastAccessedAt"`
	Meta           Meta       `json:"meta"`
}

// storedValue is the on-disk envelope; the payload is the Entry JSON,
// optionally gzip+base64 compressed.
type storedValue struct {
	Payload    string `json:"payload"`
	Compressed bool   `json:"compressed,omitempty"`
}

// Key builds the deterministic cache key for a title/artist pair. The
// normalization is idempotent and deliberately lossy: near-duplicate titles
// ("Song", "Song!") collapse into one entry, which is a feature.
func Key(title, artist string) string {
	return keyPrefix + utils.NormalizeToken(title) + keySeparator + utils.NormalizeToken(artist)
}

// PersistentCache wraps BoltDB with an in-memory mirror for fast access.
type PersistentCache struct {
	db                 *bolt.DB
	mem                sync.Map // key -> *Entry
	dbPath             string
	compressionEnabled bool
}

// NewPersistentCache opens (or creates) the cache database.
func NewPersistentCache(dbPath string, compressionEnabled bool) (*PersistentCache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %v", err)
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %v", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %v", err)
	}

	pc := &PersistentCache{
		db:                 db,
		dbPath:             dbPath,
		compressionEnabled: compressionEnabled,
	}

	if err := pc.loadToMemory(); err != nil {
		log.Warnf("%s Failed to preload cache to memory: %v", logcolors.LogCache, err)
	}

	log.Infof("%s Persistent cache initialized at %s (compression: %v)", logcolors.LogCacheInit, dbPath, compressionEnabled)
	return pc, nil
}

// loadToMemory loads all cache entries from disk into the mirror.
func (pc *PersistentCache) loadToMemory() error {
	count := 0
	err := pc.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			entry, err := decodeEntry(v)
			if err != nil {
				log.Warnf("%s Failed to decode cache entry for key %s: %v", logcolors.LogCache, string(k), err)
				return nil // keep loading the rest
			}
			pc.mem.Store(string(k), entry)
			count++
			return nil
		})
	})
	if err != nil {
		return err
	}

	log.Infof("%s Loaded %d entries from disk to memory", logcolors.LogCache, count)
	return nil
}

// Get retrieves the entry for a title/artist pair. A storage failure is a
// miss, never an error the caller has to handle.
func (pc *PersistentCache) Get(title, artist string) (*Entry, bool) {
	return pc.GetByKey(Key(title, artist))
}

// GetByKey retrieves an entry by its already-normalized key.
func (pc *PersistentCache) GetByKey(key string) (*Entry, bool) {
	if cached, ok := pc.mem.Load(key); ok {
		return cached.(*Entry), true
	}

	var entry *Entry
	err := pc.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("key not found")
		}
		var err error
		entry, err = decodeEntry(data)
		return err
	})
	if err != nil {
		return nil, false
	}

	pc.mem.Store(key, entry)
	return entry, true
}

// Set stores freshly resolved lines for a track, stamping all timestamps.
func (pc *PersistentCache) Set(meta Meta, lines []lrc.Line) error {
	now := time.Now().Unix()
	entry := &Entry{
		Key:            Key(meta.Title, meta.Artist),
		Lines:          lines,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
		Meta:           meta,
	}

	// A refresh of an existing entry keeps its creation time.
	if prev, ok := pc.GetByKey(entry.Key); ok {
		entry.CreatedAt = prev.CreatedAt
	}

	return pc.Put(entry)
}

// Put stores an entry as-is, timestamps included.
func (pc *PersistentCache) Put(entry *Entry) error {
	pc.mem.Store(entry.Key, entry)

	data, err := pc.encodeEntry(entry)
	if err != nil {
		return err
	}

	return pc.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Put([]byte(entry.Key), data)
	})
}

// Touch refreshes an entry's LastAccessedAt. Called on every cache hit.
func (pc *PersistentCache) Touch(key string) {
	entry, ok := pc.GetByKey(key)
	if !ok {
		return
	}

	touched := *entry
	touched.LastAccessedAt = time.Now().Unix()
	if err := pc.Put(&touched); err != nil {
		log.Warnf("%s Failed to persist access time for %s: %v", logcolors.LogCache, key, err)
	}
}

// Delete removes a key from cache.
func (pc *PersistentCache) Delete(key string) error {
	pc.mem.Delete(key)

	return pc.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Delete([]byte(key))
	})
}

// Range iterates over all cache entries.
func (pc *PersistentCache) Range(fn func(key string, entry *Entry) bool) {
	pc.mem.Range(func(k, v interface{}) bool {
		return fn(k.(string), v.(*Entry))
	})
}

// Stats returns the entry count and an approximate size.
func (pc *PersistentCache) Stats() (numKeys int, sizeInKB int) {
	size := 0
	pc.mem.Range(func(k, v interface{}) bool {
		entry := v.(*Entry)
		numKeys++
		size += len(k.(string))
		for _, line := range entry.Lines {
			size += len(line.Text) + 8
		}
		return true
	})
	return numKeys, size / 1024
}

// Sweep removes entries not accessed (or, if never accessed, not created)
// within maxIdle. Invoked at startup as the long-horizon garbage collector.
func (pc *PersistentCache) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle).Unix()

	var stale []string
	pc.mem.Range(func(k, v interface{}) bool {
		entry := v.(*Entry)
		last := entry.LastAccessedAt
		if last == 0 {
			last = entry.CreatedAt
		}
		if last < cutoff {
			stale = append(stale, k.(string))
		}
		return true
	})

	removed := 0
	for _, key := range stale {
		if err := pc.Delete(key); err != nil {
			log.Warnf("%s Failed to delete expired key %s: %v", logcolors.LogCacheSweep, key, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Infof("%s Removed %d expired entries", logcolors.LogCacheSweep, removed)
	}
	return removed
}

// Close closes the database connection.
func (pc *PersistentCache) Close() error {
	if pc.db != nil {
		return pc.db.Close()
	}
	return nil
}

func (pc *PersistentCache) encodeEntry(entry *Entry) ([]byte, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}

	stored := storedValue{Payload: string(payload)}
	if pc.compressionEnabled {
		compressed, err := utils.CompressString(stored.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to compress entry: %w", err)
		}
		stored.Payload = compressed
		stored.Compressed = true
	}

	return json.Marshal(stored)
}

func decodeEntry(data []byte) (*Entry, error) {
	var stored storedValue
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}

	payload := stored.Payload
	if stored.Compressed {
		decompressed, err := utils.DecompressString(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress entry: %w", err)
		}
		payload = decompressed
	}

	var entry Entry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
