// Package store persists one configuration record per user identity in a
// human-inspectable JSON file. Reads never fail: a missing, unreadable, or
// corrupt file degrades to the all-unset default record.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/yctsai/baobei/internal/persona"
)

// UserConfig is the per-user record. Its zero value means "not onboarded".
type UserConfig struct {
	// GirlfriendType is the chosen persona id. Empty until onboarding
	// completes; unknown values are normalized at render time, never here.
	GirlfriendType persona.ID `json:"girlfriend_type,omitempty"`

	// GirlfriendName the user gave the companion (1-20 runes).
	GirlfriendName string `json:"girlfriend_name,omitempty"`

	// UserName is how the companion addresses the user (1-20 runes).
	UserName string `json:"user_name,omitempty"`
}

// Onboarded reports whether the record was committed by a completed
// onboarding cycle.
func (c UserConfig) Onboarded() bool {
	return c.GirlfriendType != ""
}

// Store is the per-user configuration persistence interface. Injected so the
// engine and onboarding flow can run against test doubles.
type Store interface {
	// Get returns the stored record, or the zero record if none exists or
	// the backing store is unreadable.
	Get(userID string) UserConfig

	// Put replaces the whole record for the identity. Readers never observe
	// a partial record; any I/O failure comes back as an error.
	Put(userID string, cfg UserConfig) error
}

// FileStore keeps records keyed by the string form of the user identity in
// one JSON file, written atomically via temp-file rename.
type FileStore struct {
	mu   sync.RWMutex
	path string
	log  zerolog.Logger
}

// NewFileStore creates a store backed by the JSON file at path. The file is
// created lazily on the first Put.
func NewFileStore(path string, log zerolog.Logger) *FileStore {
	return &FileStore{
		path: path,
		log:  log.With().Str("component", "store").Logger(),
	}
}

// Get reads the record for userID. Corruption is treated as "no record".
func (s *FileStore) Get(userID string) UserConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.readAll()
	if err != nil {
		s.log.Warn().Err(err).Msg("read user config file, using defaults")
		return UserConfig{}
	}
	return records[userID]
}

// Put replaces the record for userID. Last writer wins for concurrent writes
// to the same identity; configuration writes are rare and user-initiated.
func (s *FileStore) Put(userID string, cfg UserConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAll()
	if err != nil {
		// unreadable file is replaced rather than propagated; the write is
		// what the caller cares about
		s.log.Warn().Err(err).Msg("read user config file before write, starting fresh")
		records = map[string]UserConfig{}
	}
	records[userID] = cfg

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal user configs: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".users-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace user config file: %w", err)
	}
	return nil
}

// readAll loads the full record map. A missing file yields an empty map.
func (s *FileStore) readAll() (map[string]UserConfig, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]UserConfig{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	records := map[string]UserConfig{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return records, nil
}
