package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"lyricsync-go/logcolors"
)

const (
	sessionBucket = "session"
	sessionKey    = "playerstate"
)

// Repository is the persistence port for the player state store. Load and
// Save run at defined lifecycle points (startup, every mutation); the store
// itself never reaches for storage ambiently.
type Repository interface {
	Load() (map[string]*PlayerState, error)
	Save(states map[string]*PlayerState) error
	Clear() error
}

// BoltRepository keeps the serialized instance map under a single
// session-scoped key in a BoltDB file.
type BoltRepository struct {
	db *bolt.DB
}

// NewBoltRepository opens (or creates) the session database.
func NewBoltRepository(dbPath string) (*BoltRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %v", err)
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %v", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sessionBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session bucket: %v", err)
	}

	return &BoltRepository{db: db}, nil
}

// Load reads the whole serialized state map.
func (r *BoltRepository) Load() (map[string]*PlayerState, error) {
	states := make(map[string]*PlayerState)

	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(sessionBucket))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(sessionKey))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &states)
	})
	if err != nil {
		return nil, err
	}
	return states, nil
}

// Save writes the whole state map under the session key.
func (r *BoltRepository) Save(states map[string]*PlayerState) error {
	data, err := json.Marshal(states)
	if err != nil {
		return err
	}

	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(sessionBucket))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Put([]byte(sessionKey), data)
	})
}

// Clear drops the session key. Run on full process restart: player state
// survives transient suspensions only, never a restart.
func (r *BoltRepository) Clear() error {
	log.Infof("%s Clearing persisted session state", logcolors.LogSession)
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(sessionBucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(sessionKey))
	})
}

// Close closes the underlying database.
func (r *BoltRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// MemoryRepository is an in-memory Repository for tests and for running
// without a session file.
type MemoryRepository struct {
	states map[string]*PlayerState
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{states: make(map[string]*PlayerState)}
}

func (r *MemoryRepository) Load() (map[string]*PlayerState, error) {
	out := make(map[string]*PlayerState, len(r.states))
	for id, state := range r.states {
		copied := *state
		out[id] = &copied
	}
	return out, nil
}

func (r *MemoryRepository) Save(states map[string]*PlayerState) error {
	r.states = make(map[string]*PlayerState, len(states))
	for id, state := range states {
		copied := *state
		r.states[id] = &copied
	}
	return nil
}

func (r *MemoryRepository) Clear() error {
	r.states = make(map[string]*PlayerState)
	return nil
}
