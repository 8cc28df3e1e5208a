// Package attempt persists the last update attempt. The record guards
// against delta retry loops: when a delta was already attempted while
// running the same application version, the next cycle goes straight to
// a full update.
package attempt

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const fileName = "update-attempt.json"

// Record describes the most recent update attempt. It is written just
// before handing off to an installer and never deleted; it ages out
// when AppVersion stops matching the running version.
type Record struct {
	IsDelta          bool   `json:"isDelta"`
	AttemptedVersion string `json:"attemptedVersion"`
	AppVersion       string `json:"appVersion"`
	Timestamp        int64  `json:"timestamp"`
	TimeHuman        string `json:"timeHuman"`
}

// NewRecord stamps a record with the current time.
func NewRecord(isDelta bool, attemptedVersion, appVersion string) *Record {
	now := time.Now()
	return &Record{
		IsDelta:          isDelta,
		AttemptedVersion: attemptedVersion,
		AppVersion:       appVersion,
		Timestamp:        now.UnixMilli(),
		TimeHuman:        now.Format(time.RFC1123),
	}
}

// Store reads and writes the attempt record in a data directory.
type Store struct {
	Dir string
}

func (s *Store) path() string {
	return filepath.Join(s.Dir, fileName)
}

// Save writes the record, creating the data directory when needed.
func (s *Store) Save(r *Record) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path(), data, 0o644); err != nil {
		return fmt.Errorf("write attempt record: %w", err)
	}
	return nil
}

// Load returns the stored record, or nil when none exists. A corrupt
// record is treated as absent; it will be overwritten on the next save.
func (s *Store) Load() (*Record, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read attempt record: %w", err)
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, nil
	}
	return &r, nil
}
