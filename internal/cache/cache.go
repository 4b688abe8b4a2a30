// Package cache persists the state that lets an incremental sync skip work
// already done by a previous run.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ippclub/nxsync/internal/attribution"
)

const (
	contributorsFile = "contributors.json"
	metadataFile     = "metadata.json"
	datesFile        = "dates.json"
)

// FormatVersion identifies the key layout of the cached maps. Caches written
// with another version are treated as incomplete.
const FormatVersion = 2

// ErrIncomplete is returned when any cache file is missing or unreadable
var ErrIncomplete = errors.New("cache incomplete")

// Metadata is the incremental sync watermark
type Metadata struct {
	LastProcessedDate   time.Time `json:"lastProcessedDate"`
	TitledbFilteredHash string    `json:"titledbFilteredHash"`
	PerformanceHash     string    `json:"performanceHash,omitempty"`
	Version             int       `json:"version"`
}

// Snapshot is the full cached state of a run
type Snapshot struct {
	Contributors *attribution.ContributorMap
	Dates        *attribution.DateMap
	Metadata     Metadata
}

// Empty returns the snapshot a cold run starts from
func Empty() *Snapshot {
	return &Snapshot{
		Contributors: attribution.NewContributorMap(),
		Dates:        attribution.NewDateMap(),
	}
}

// Store reads and writes the cache files in a directory
type Store struct {
	dir string
}

// New creates a new Store rooted at dir
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Load reads all three cache files. Either all of them load or ErrIncomplete is returned.
func (s *Store) Load() (*Snapshot, error) {
	snap := &Snapshot{
		Contributors: attribution.NewContributorMap(),
		Dates:        attribution.NewDateMap(),
	}
	if err := s.read(contributorsFile, snap.Contributors); err != nil {
		return nil, err
	}
	if err := s.read(datesFile, snap.Dates); err != nil {
		return nil, err
	}
	if err := s.read(metadataFile, &snap.Metadata); err != nil {
		return nil, err
	}
	if snap.Metadata.Version != FormatVersion {
		return nil, fmt.Errorf("%w: format version %d, want %d", ErrIncomplete, snap.Metadata.Version, FormatVersion)
	}
	return snap, nil
}

// Save writes all three cache files
func (s *Store) Save(snap *Snapshot) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	if err := s.write(contributorsFile, snap.Contributors); err != nil {
		return err
	}
	if err := s.write(datesFile, snap.Dates); err != nil {
		return err
	}
	meta := snap.Metadata
	meta.Version = FormatVersion
	return s.write(metadataFile, meta)
}

func (s *Store) read(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIncomplete, name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIncomplete, name, err)
	}
	return nil
}

// write replaces name atomically so an interrupted run never leaves a torn file
func (s *Store) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
