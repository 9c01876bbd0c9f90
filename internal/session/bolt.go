package session

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/kingrea/encounter-forge/internal/encounter"
)

const sessionBucket = "session"

// Recognized keys within the session bucket.
var (
	keyLastArtifact = []byte("last_artifact")
	keyLastVariant  = []byte("last_variant")
	keyViewOpen     = []byte("view_open")
)

// BoltStore is a bbolt-backed session store. All three session keys are
// written inside a single transaction, which provides the atomicity the
// registry requires.
type BoltStore struct {
	db *bbolt.DB
}

// Open opens (or creates) the session database at the provided path.
func Open(path string) (*BoltStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("session: store path is required")
	}
	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("session: open store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sessionBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: ensure bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Load reads the persisted session. A missing record yields the zero State.
func (s *BoltStore) Load() (State, error) {
	var state State
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if bucket == nil {
			return nil
		}
		if raw := bucket.Get(keyLastArtifact); len(raw) > 0 {
			var artifact encounter.Artifact
			if err := json.Unmarshal(raw, &artifact); err != nil {
				return fmt.Errorf("decode artifact: %w", err)
			}
			state.LastArtifact = &artifact
		}
		if raw := bucket.Get(keyLastVariant); len(raw) > 0 {
			state.LastVariant = encounter.Variant(raw)
		}
		state.ViewOpen = string(bucket.Get(keyViewOpen)) == "true"
		return nil
	})
	if err != nil {
		return State{}, fmt.Errorf("session: load: %w", err)
	}
	return state, nil
}

// Save replaces the whole session record in one transaction.
func (s *BoltStore) Save(state State) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if bucket == nil {
			return fmt.Errorf("bucket missing")
		}
		if state.LastArtifact == nil {
			if err := bucket.Delete(keyLastArtifact); err != nil {
				return err
			}
		} else {
			raw, err := json.Marshal(state.LastArtifact)
			if err != nil {
				return fmt.Errorf("encode artifact: %w", err)
			}
			if err := bucket.Put(keyLastArtifact, raw); err != nil {
				return err
			}
		}
		if state.LastVariant == "" {
			if err := bucket.Delete(keyLastVariant); err != nil {
				return err
			}
		} else if err := bucket.Put(keyLastVariant, []byte(state.LastVariant)); err != nil {
			return err
		}
		viewOpen := "false"
		if state.ViewOpen {
			viewOpen = "true"
		}
		return bucket.Put(keyViewOpen, []byte(viewOpen))
	})
	if err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
