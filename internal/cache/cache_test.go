package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ippclub/nxsync/internal/attribution"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveThenLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	store := New(dir)

	snap := Empty()
	p, _ := attribution.Classify("profiles/0100A1B2C3D4E000/1.0.0.json")
	snap.Contributors.Add(p, mapset.NewThreadUnsafeSet("alice"), "https://github.com/o/r/pull/1")
	snap.Dates.Graphics["0100A1B2C3D4E000"] = time.Unix(1700000000, 0).UTC()
	snap.Metadata = Metadata{
		LastProcessedDate:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		TitledbFilteredHash: "abc",
		PerformanceHash:     "def",
		Version:             FormatVersion,
	}
	require.NoError(t, store.Save(snap))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, snap.Metadata, loaded.Metadata)

	names, pr := loaded.Contributors.PerformanceCredit(p.Key)
	assert.Equal(t, []string{"alice"}, names)
	assert.Equal(t, "https://github.com/o/r/pull/1", pr)

	got, ok := loaded.Dates.Lookup(attribution.Graphics, "0100A1B2C3D4E000")
	require.True(t, ok)
	assert.Equal(t, int64(1700000000), got.Unix())
}

func TestLoadRequiresAllFiles(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	require.NoError(t, store.Save(Empty()))

	require.NoError(t, os.Remove(filepath.Join(dir, datesFile)))
	_, err := store.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncomplete))
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	require.NoError(t, store.Save(Empty()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, metadataFile), []byte("{not json"), 0644))
	_, err := store.Load()
	assert.True(t, errors.Is(err, ErrIncomplete))
}

func TestLoadRejectsOlderFormat(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	require.NoError(t, store.Save(Empty()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, metadataFile),
		[]byte(`{"lastProcessedDate":"2024-05-01T12:00:00Z","performanceHash":"def"}`), 0644))
	_, err := store.Load()
	assert.True(t, errors.Is(err, ErrIncomplete))
}

func TestLoadMissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent")).Load()
	assert.True(t, errors.Is(err, ErrIncomplete))
}
