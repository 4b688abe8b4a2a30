package github

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ippclub/nxsync/internal/attribution"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

type fakeQuerier struct {
	pages []string
	calls []map[string]any
	err   error
}

func (f *fakeQuerier) Query(_ context.Context, _ string, vars map[string]any) (gjson.Result, error) {
	f.calls = append(f.calls, vars)
	if f.err != nil {
		return gjson.Result{}, f.err
	}
	return gjson.Parse(f.pages[len(f.calls)-1]), nil
}

func prNode(mergedAt, url, message string, files ...string) string {
	nodes := ""
	for i, f := range files {
		if i > 0 {
			nodes += ","
		}
		nodes += fmt.Sprintf(`{"path":%q}`, f)
	}
	return fmt.Sprintf(`{"mergedAt":%q,"url":%q,"commits":{"nodes":[{"commit":{"message":%q}}]},"files":{"nodes":[%s]}}`,
		mergedAt, url, message, nodes)
}

func page(hasNext bool, cursor string, nodes ...string) string {
	list := ""
	for i, n := range nodes {
		if i > 0 {
			list += ","
		}
		list += n
	}
	return fmt.Sprintf(`{"search":{"pageInfo":{"hasNextPage":%t,"endCursor":%q},"nodes":[%s]}}`, hasNext, cursor, list)
}

func TestCoAuthors(t *testing.T) {
	msg := "Add profile\n\nCo-authored-by: Alice <12345+alice@users.noreply.github.com>\n" +
		"co-authored-by: bob <bob@users.noreply.github.com>\n" +
		"Co-authored-by: Carol <carol@example.com>\n"
	users := CoAuthors(msg)
	assert.Equal(t, 2, users.Cardinality())
	assert.True(t, users.Contains("alice"))
	assert.True(t, users.Contains("bob"))

	assert.Equal(t, 0, CoAuthors("plain message").Cardinality())
}

func TestBuildPagesAndAttributes(t *testing.T) {
	q := &fakeQuerier{pages: []string{
		page(true, "CUR1",
			prNode("2024-03-01T10:00:00Z", "https://github.com/o/r/pull/1",
				"Co-authored-by: A <alice@users.noreply.github.com>",
				"profiles/0100A1B2C3D4E000/1.0.0.json", "graphics/0100A1B2C3D4E000.json", "README.md"),
		),
		page(false, "",
			prNode("2024-03-05T10:00:00Z", "https://github.com/o/r/pull/2",
				"Co-authored-by: B <99+bob@users.noreply.github.com>",
				"profiles/0100A1B2C3D4E000/1.0.0.json", "videos/0100A1B2C3D4E000.json", "groups/custom.json"),
		),
	}}

	b := NewBuilder(q, "o/r", 0, zap.NewNop())
	build, err := b.Build(context.Background(), nil, time.Time{})
	require.NoError(t, err)

	require.Len(t, q.calls, 2)
	assert.Equal(t, "repo:o/r is:pr is:merged", q.calls[0]["q"])
	assert.Equal(t, DefaultPageSize, q.calls[0]["first"])
	assert.Nil(t, q.calls[0]["after"])
	assert.Equal(t, "CUR1", q.calls[1]["after"])

	names, pr := build.Contributors.PerformanceCredit("0100A1B2C3D4E000-1.0.0")
	assert.Equal(t, []string{"alice", "bob"}, names)
	assert.Equal(t, "https://github.com/o/r/pull/1", pr)
	assert.Equal(t, []string{"alice"}, build.Contributors.Contributors(attribution.Graphics, "0100A1B2C3D4E000"))
	assert.Equal(t, []string{"bob"}, build.Contributors.Contributors(attribution.Videos, "0100A1B2C3D4E000"))
	assert.Equal(t, []string{"bob"}, build.Contributors.Contributors(attribution.Groups, "custom"))

	assert.Equal(t, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), build.LatestMergedAt)
	assert.Equal(t, 2, build.PullRequests)
	assert.Equal(t, 2, build.Attributed)
}

func TestBuildIncrementalExtendsCache(t *testing.T) {
	cached := attribution.NewContributorMap()
	p, _ := attribution.Classify("graphics/0100A1B2C3D4E000.json")
	cached.Add(p, CoAuthors("Co-authored-by: x <old@users.noreply.github.com>"), "")

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := &fakeQuerier{pages: []string{
		page(false, "",
			prNode("2024-02-01T00:00:00Z", "https://github.com/o/r/pull/3",
				"Co-authored-by: y <new@users.noreply.github.com>", "graphics/0100A1B2C3D4E000.json"),
		),
	}}

	build, err := NewBuilder(q, "o/r", 10, zap.NewNop()).Build(context.Background(), cached, since)
	require.NoError(t, err)
	assert.Equal(t, "repo:o/r is:pr is:merged merged:>2024-01-01T00:00:00Z", q.calls[0]["q"])
	assert.Equal(t, 10, q.calls[0]["first"])
	assert.Equal(t, []string{"new", "old"}, build.Contributors.Contributors(attribution.Graphics, p.Key))

	// The cached map is left untouched.
	assert.Equal(t, []string{"old"}, cached.Contributors(attribution.Graphics, p.Key))
}

func TestBuildWatermarkAdvancesWithoutAttribution(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := &fakeQuerier{pages: []string{
		page(false, "",
			prNode("2024-06-01T00:00:00Z", "https://github.com/o/r/pull/4", "no trailers here", "graphics/0100A1B2C3D4E000.json"),
		),
	}}

	build, err := NewBuilder(q, "o/r", 0, zap.NewNop()).Build(context.Background(), nil, since)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), build.LatestMergedAt)
	assert.Equal(t, 0, build.Attributed)
	assert.Empty(t, build.Contributors.Graphics)
}

func TestBuildWatermarkNeverMovesBack(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := &fakeQuerier{pages: []string{page(false, "")}}

	build, err := NewBuilder(q, "o/r", 0, zap.NewNop()).Build(context.Background(), nil, since)
	require.NoError(t, err)
	assert.Equal(t, since, build.LatestMergedAt)
}

func TestBuildAbortsOnError(t *testing.T) {
	q := &fakeQuerier{err: errors.New("boom")}
	_, err := NewBuilder(q, "o/r", 0, zap.NewNop()).Build(context.Background(), nil, time.Time{})
	assert.Error(t, err)
}
