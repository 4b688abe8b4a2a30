package service

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ippclub/nxsync/internal/attribution"
	"github.com/ippclub/nxsync/internal/model"
	"github.com/ippclub/nxsync/internal/store"
	"github.com/ippclub/nxsync/pkg/tree"
	"go.uber.org/zap"
)

// Stats counts what one reconciliation pass did
type Stats struct {
	Inserted  int
	Updated   int
	Deleted   int
	Unchanged int
	Skipped   int
}

// Writes is the number of rows changed in the database
func (s Stats) Writes() int {
	return s.Inserted + s.Updated + s.Deleted
}

func (s Stats) fields() []zap.Field {
	return []zap.Field{
		zap.Int("inserted", s.Inserted),
		zap.Int("updated", s.Updated),
		zap.Int("deleted", s.Deleted),
		zap.Int("unchanged", s.Unchanged),
		zap.Int("skipped", s.Skipped),
	}
}

// existingRow is what the engine needs to know about a stored row
type existingRow struct {
	ID      int64
	GroupID string
	Stored  time.Time
}

// sourceFile is one data file found on disk
type sourceFile struct {
	GroupID string
	Name    string
	Key     string
	Path    string
	Date    time.Time
}

// descriptor adapts one data type to the reconciliation loop. R is the
// record built from a single file.
type descriptor[R any] interface {
	table() string
	bucket() attribution.Bucket
	// hierarchical reports whether files live in per-group subdirectories
	hierarchical() bool
	deriveKey(groupID, name string) (string, bool)
	existing(ctx context.Context) (map[string]existingRow, error)
	buildRecord(f sourceFile, data []byte) (R, error)
	// apply writes rec, updating prev when it is set. It reports whether
	// anything was written.
	apply(ctx context.Context, rec R, prev *existingRow) (bool, error)
	remove(ctx context.Context, row existingRow) error
}

// Engine reconciles the data files of the performance repository with the database
type Engine struct {
	store        *store.SQLiteStore
	root         string
	contributors *attribution.ContributorMap
	dates        *attribution.DateMap
	logger       *zap.Logger

	touched map[string]time.Time
}

// EngineResult is the outcome of Engine.SyncAll
type EngineResult struct {
	Stats   map[attribution.Bucket]Stats
	Touched map[string]time.Time // group ID -> newest change applied
}

// NewEngine creates a new Engine over the performance repository at root
func NewEngine(st *store.SQLiteStore, root string, contributors *attribution.ContributorMap, dates *attribution.DateMap, logger *zap.Logger) *Engine {
	if contributors == nil {
		contributors = attribution.NewContributorMap()
	}
	if dates == nil {
		dates = attribution.NewDateMap()
	}
	return &Engine{
		store:        st,
		root:         root,
		contributors: contributors,
		dates:        dates,
		logger:       logger,
		touched:      make(map[string]time.Time),
	}
}

// SyncAll reconciles performance profiles, graphics settings and video links in that order
func (e *Engine) SyncAll(ctx context.Context) (*EngineResult, error) {
	result := &EngineResult{Stats: make(map[attribution.Bucket]Stats)}

	stats, err := reconcile[*model.DBPerformanceProfile](ctx, e, &performanceDescriptor{store: e.store, contributors: e.contributors})
	if err != nil {
		return nil, err
	}
	result.Stats[attribution.Performance] = stats

	stats, err = reconcile[*model.DBGraphicsSettings](ctx, e, &graphicsDescriptor{store: e.store, contributors: e.contributors})
	if err != nil {
		return nil, err
	}
	result.Stats[attribution.Graphics] = stats

	stats, err = reconcile[[]*model.DBYoutubeLink](ctx, e, &videoDescriptor{store: e.store, contributors: e.contributors})
	if err != nil {
		return nil, err
	}
	result.Stats[attribution.Videos] = stats

	result.Touched = e.touched
	return result, nil
}

func (e *Engine) touch(groupID string, at time.Time) {
	if prev, ok := e.touched[groupID]; !ok || at.After(prev) {
		e.touched[groupID] = at
	}
}

// reconcile runs one descriptor: every file on disk is compared against its
// stored row by date, and rows whose file is gone are deleted.
func reconcile[R any](ctx context.Context, e *Engine, d descriptor[R]) (Stats, error) {
	var stats Stats
	logger := e.logger.With(zap.String("table", d.table()))

	rows, err := d.existing(ctx)
	if err != nil {
		return stats, err
	}

	files, err := e.walk(d)
	if err != nil {
		return stats, err
	}

	seen := mapset.NewThreadUnsafeSetWithSize[string](len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		seen.Add(f.Key)

		date, ok := e.dates.Lookup(d.bucket(), f.Key)
		if !ok {
			logger.Warn("no history date for file, skipping", zap.String("key", f.Key), zap.String("path", f.Path))
			stats.Skipped++
			continue
		}
		f.Date = date

		var prev *existingRow
		if row, ok := rows[f.Key]; ok {
			if attribution.SameOrNewer(row.Stored, date) {
				stats.Unchanged++
				continue
			}
			prev = &row
		}

		data, err := os.ReadFile(f.Path)
		if err != nil {
			logger.Warn("failed to read file, skipping", zap.String("path", f.Path), zap.Error(err))
			stats.Skipped++
			continue
		}
		rec, err := d.buildRecord(f, data)
		if err != nil {
			logger.Warn("malformed file, skipping", zap.String("path", f.Path), zap.Error(err))
			stats.Skipped++
			continue
		}

		written, err := d.apply(ctx, rec, prev)
		if err != nil {
			return stats, err
		}
		if !written {
			stats.Unchanged++
			continue
		}
		if prev != nil {
			stats.Updated++
		} else {
			stats.Inserted++
		}
		e.touch(f.GroupID, date)
	}

	var gone []string
	for key := range rows {
		if !seen.Contains(key) {
			gone = append(gone, key)
		}
	}
	sort.Strings(gone)
	for _, key := range gone {
		row := rows[key]
		if err := d.remove(ctx, row); err != nil {
			return stats, err
		}
		stats.Deleted++
		logger.Info("removed row deleted upstream", zap.String("key", key))
		// The deleting commit is the newest history entry for the path.
		if date, ok := e.dates.Lookup(d.bucket(), key); ok {
			e.touch(row.GroupID, date)
		}
	}

	logger.Info("table reconciled", stats.fields()...)
	return stats, nil
}

// walk lists the data files of a descriptor in deterministic order
func (e *Engine) walk(d interface {
	bucket() attribution.Bucket
	hierarchical() bool
	deriveKey(groupID, name string) (string, bool)
}) ([]sourceFile, error) {
	dir := filepath.Join(e.root, dirName(d.bucket()))

	var files []sourceFile
	add := func(groupID, name, path string) {
		key, ok := d.deriveKey(groupID, name)
		if !ok {
			e.logger.Warn("unrecognized file name, skipping", zap.String("path", path))
			return
		}
		files = append(files, sourceFile{GroupID: groupID, Name: name, Key: key, Path: path})
	}

	if !d.hierarchical() {
		names, err := listOptional(dir, jsonFiles, e.logger)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			add(strings.TrimSuffix(name, ".json"), name, filepath.Join(dir, name))
		}
		return files, nil
	}

	groups, err := listOptional(dir, tree.Dirs, e.logger)
	if err != nil {
		return nil, err
	}
	for _, groupID := range groups {
		names, err := jsonFiles(filepath.Join(dir, groupID))
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			add(groupID, name, filepath.Join(dir, groupID, name))
		}
	}
	return files, nil
}

func jsonFiles(dir string) ([]string, error) {
	return tree.Files(dir, ".json")
}

// dirName maps a bucket to its directory in the performance repository
func dirName(b attribution.Bucket) string {
	if b == attribution.Performance {
		return "profiles"
	}
	return string(b)
}
