// Package snapshot persists in-flight detection state so an episode can
// survive process termination. The snapshot is an opaque versioned JSON
// blob in a SQLite key-value table; staleness and schema checks happen
// on read, and anything unreadable is for the caller to discard, never
// repair.
package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/curbwatch/parking-backend-go/internal/models"
)

const snapshotKey = "detection"

// Store is the SQLite-backed snapshot store
type Store struct {
	db *sql.DB
}

// NewStore creates a snapshot store on the given database
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save writes the snapshot, replacing any previous one
func (s *Store) Save(snap models.PersistedDetectionSnapshot) error {
	blob, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO detection_snapshot (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, snapshotKey, blob)
	if err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}
	return nil
}

// Load reads the stored snapshot. Returns (nil, nil) when none exists;
// returns an error for an undecodable blob or a schema version this
// build does not understand.
func (s *Store) Load() (*models.PersistedDetectionSnapshot, error) {
	var blob []byte
	err := s.db.QueryRow(
		"SELECT value FROM detection_snapshot WHERE key = ?", snapshotKey,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap models.PersistedDetectionSnapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.SchemaVersion != models.SnapshotSchemaVersion {
		return nil, fmt.Errorf("unsupported snapshot schema version %d", snap.SchemaVersion)
	}

	return &snap, nil
}

// Clear removes the stored snapshot. Clearing an absent snapshot is not
// an error.
func (s *Store) Clear() error {
	if _, err := s.db.Exec("DELETE FROM detection_snapshot WHERE key = ?", snapshotKey); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	return nil
}
