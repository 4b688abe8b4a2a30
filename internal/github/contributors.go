package github

import (
	"context"
	"fmt"
	"regexp"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ippclub/nxsync/internal/attribution"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// DefaultPageSize is the number of pull requests requested per search page
const DefaultPageSize = 50

const mergedPullRequestsQuery = `
query($q: String!, $first: Int!, $after: String) {
  search(query: $q, type: ISSUE, first: $first, after: $after) {
    pageInfo { hasNextPage endCursor }
    nodes {
      ... on PullRequest {
        mergedAt
        url
        commits(last: 1) { nodes { commit { message } } }
        files(first: 100) { nodes { path } }
      }
    }
  }
}`

var coAuthorPattern = regexp.MustCompile(`(?i)co-authored-by:[^\n<]*<(?:\d+\+)?([^@<>\s]+)@users\.noreply\.github\.com>`)

// Querier runs a GraphQL query and returns its data member
type Querier interface {
	Query(ctx context.Context, query string, variables map[string]any) (gjson.Result, error)
}

// Build is the outcome of a contributor map build
type Build struct {
	Contributors   *attribution.ContributorMap
	LatestMergedAt time.Time
	PullRequests   int
	Attributed     int
}

// Builder accumulates contributor attribution from merged pull requests
type Builder struct {
	client   Querier
	repo     string // "owner/name"
	pageSize int
	logger   *zap.Logger
}

// NewBuilder creates a new Builder for the repository "owner/name"
func NewBuilder(client Querier, repo string, pageSize int, logger *zap.Logger) *Builder {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Builder{
		client:   client,
		repo:     repo,
		pageSize: pageSize,
		logger:   logger,
	}
}

// Build extends cached (which is not modified) with every pull request merged
// after lastProcessed. A zero lastProcessed scans the whole history. Any API
// error aborts the build.
func (b *Builder) Build(ctx context.Context, cached *attribution.ContributorMap, lastProcessed time.Time) (*Build, error) {
	contributors := attribution.NewContributorMap()
	if cached != nil {
		contributors = cached.Clone()
	}
	result := &Build{
		Contributors:   contributors,
		LatestMergedAt: lastProcessed,
	}

	search := fmt.Sprintf("repo:%s is:pr is:merged", b.repo)
	if !lastProcessed.IsZero() {
		search += " merged:>" + lastProcessed.UTC().Format(time.RFC3339)
	}

	var cursor any
	for page := 1; ; page++ {
		data, err := b.client.Query(ctx, mergedPullRequestsQuery, map[string]any{
			"q":     search,
			"first": b.pageSize,
			"after": cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to search pull requests (page %d): %w", page, err)
		}

		for _, pr := range data.Get("search.nodes").Array() {
			b.apply(result, pr)
		}

		info := data.Get("search.pageInfo")
		if !info.Get("hasNextPage").Bool() {
			break
		}
		cursor = info.Get("endCursor").String()
	}

	b.logger.Info("contributor map built",
		zap.Int("pull_requests", result.PullRequests),
		zap.Int("attributed", result.Attributed),
		zap.Time("latest_merged_at", result.LatestMergedAt),
	)
	return result, nil
}

func (b *Builder) apply(result *Build, pr gjson.Result) {
	url := pr.Get("url").String()
	if url == "" {
		return
	}
	result.PullRequests++

	// The watermark advances even when no attribution can be extracted.
	if mergedAt, err := time.Parse(time.RFC3339, pr.Get("mergedAt").String()); err == nil {
		if mergedAt.After(result.LatestMergedAt) {
			result.LatestMergedAt = mergedAt.UTC()
		}
	} else {
		b.logger.Warn("pull request without merge time", zap.String("url", url))
	}

	users := CoAuthors(pr.Get("commits.nodes.0.commit.message").String())
	if users.Cardinality() == 0 {
		return
	}
	result.Attributed++

	for _, path := range pr.Get("files.nodes.#.path").Array() {
		p, ok := attribution.Classify(path.String())
		if !ok {
			continue
		}
		result.Contributors.Add(p, users, url)
	}
}

// CoAuthors extracts GitHub usernames from the co-author trailers of a commit message
func CoAuthors(message string) mapset.Set[string] {
	users := mapset.NewThreadUnsafeSet[string]()
	for _, m := range coAuthorPattern.FindAllStringSubmatch(message, -1) {
		users.Add(m[1])
	}
	return users
}
