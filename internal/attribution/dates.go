package attribution

import (
	"context"
	"fmt"
	"time"

	"github.com/ippclub/nxsync/pkg/git"
)

// TrackedDirs are the performance repository directories whose history feeds the date map
var TrackedDirs = []string{"profiles/", "graphics/", "videos/"}

// DateMap holds the last commit time of every tracked data file
type DateMap struct {
	Performance map[string]time.Time `json:"performance"`
	Graphics    map[string]time.Time `json:"graphics"`
	Videos      map[string]time.Time `json:"videos"`
}

// NewDateMap returns an empty map
func NewDateMap() *DateMap {
	return &DateMap{
		Performance: make(map[string]time.Time),
		Graphics:    make(map[string]time.Time),
		Videos:      make(map[string]time.Time),
	}
}

func (d *DateMap) bucket(b Bucket) map[string]time.Time {
	switch b {
	case Performance:
		return d.Performance
	case Graphics:
		return d.Graphics
	case Videos:
		return d.Videos
	}
	return nil
}

// Lookup returns the recorded time for key in bucket b
func (d *DateMap) Lookup(b Bucket, key string) (time.Time, bool) {
	t, ok := d.bucket(b)[key]
	return t, ok
}

// recordFirst stores t only when key has no entry yet
func (d *DateMap) recordFirst(p Path, t time.Time) {
	m := d.bucket(p.Bucket)
	if m == nil {
		return
	}
	if _, seen := m[p.Key]; !seen {
		m[p.Key] = t
	}
}

// Merge returns a copy of d overlaid with the entries of newer
func (d *DateMap) Merge(newer *DateMap) *DateMap {
	out := NewDateMap()
	for _, b := range []Bucket{Performance, Graphics, Videos} {
		dst := out.bucket(b)
		for k, t := range d.bucket(b) {
			dst[k] = t
		}
		for k, t := range newer.bucket(b) {
			dst[k] = t
		}
	}
	return out
}

// Len returns the number of recorded files
func (d *DateMap) Len() int {
	return len(d.Performance) + len(d.Graphics) + len(d.Videos)
}

// HistoryReader lists commits newest first
type HistoryReader interface {
	History(ctx context.Context, opts git.HistoryOptions) ([]git.Commit, error)
}

// BuildDateMap walks the history of the tracked directories once. Commits
// arrive newest first, so the first time a file is seen fixes its date.
// since limits the walk to commits after that hash; empty walks everything.
func BuildDateMap(ctx context.Context, repo HistoryReader, since string) (*DateMap, error) {
	commits, err := repo.History(ctx, git.HistoryOptions{Since: since, Paths: TrackedDirs})
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	dates := NewDateMap()
	for _, c := range commits {
		for _, file := range c.Files {
			p, ok := Classify(file)
			if !ok {
				continue
			}
			dates.recordFirst(p, c.Time)
		}
	}
	return dates, nil
}

// SameOrNewer reports whether a is at or after b. Both times are truncated to
// whole seconds first, since git timestamps carry no sub-second part.
func SameOrNewer(a, b time.Time) bool {
	return a.Unix() >= b.Unix()
}
