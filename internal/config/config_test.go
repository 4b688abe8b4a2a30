package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	t.Setenv("NXSYNC_GITHUB_TOKEN", "")
	t.Setenv("GITHUB_TOKEN", "")
	path := writeConfig(t, `
database:
  path: `+filepath.Join(t.TempDir(), "db", "nx.db")+`
cache:
  path: `+filepath.Join(t.TempDir(), "cache")+`
repos:
  titledb:
    url: https://github.com/example/titledb.git
    path: `+filepath.Join(t.TempDir(), "repos", "titledb")+`
  performance:
    url: https://github.com/example/nx-performance.git
    path: `+filepath.Join(t.TempDir(), "repos", "perf")+`
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "example", cfg.Repos.Performance.Owner)
	assert.Equal(t, "nx-performance", cfg.Repos.Performance.Name)
	assert.Equal(t, "example/nx-performance", cfg.Repos.Performance.Slug())
	assert.Equal(t, "https://api.github.com/graphql", cfg.GitHub.Endpoint)
	assert.Equal(t, 50, cfg.GitHub.PageSize)
	assert.Equal(t, 500, cfg.Sync.BatchSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.GitHub.Token)
	assert.DirExists(t, filepath.Dir(cfg.Database.Path))
	assert.DirExists(t, cfg.Cache.Path)
	assert.Same(t, cfg, Get())
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
cache:
  path: `+filepath.Join(t.TempDir(), "cache")+`
repos:
  titledb:
    url: https://github.com/example/titledb.git
  performance:
    url: https://github.com/example/nx-performance.git
    owner: other
    name: perf
github:
  token: from-file
`)
	t.Setenv("NXSYNC_GITHUB_TOKEN", "")
	t.Setenv("GITHUB_TOKEN", "plain-token")
	t.Setenv("NXSYNC_DATABASE_PATH", filepath.Join(t.TempDir(), "env.db"))
	t.Chdir(t.TempDir())

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "plain-token", cfg.GitHub.Token)
	assert.Equal(t, "other/perf", cfg.Repos.Performance.Slug())
	assert.Equal(t, "env.db", filepath.Base(cfg.Database.Path))

	t.Setenv("NXSYNC_GITHUB_TOKEN", "prefixed-token")
	cfg, err = LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "prefixed-token", cfg.GitHub.Token)
}

func TestMissingFileUsesDefaultsAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("NXSYNC_REPOS_TITLEDB_URL", "https://github.com/example/titledb.git")
	t.Setenv("NXSYNC_REPOS_PERFORMANCE_URL", "https://github.com/example/nx-performance")

	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "data/nxsync.db", cfg.Database.Path)
	assert.Equal(t, "example/nx-performance", cfg.Repos.Performance.Slug())
}

func TestValidateRejectsMissingRepositories(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("NXSYNC_REPOS_TITLEDB_URL", "")
	t.Setenv("NXSYNC_REPOS_PERFORMANCE_URL", "")
	path := writeConfig(t, "log:\n  level: debug\n")

	_, err := LoadFromFile(path)
	assert.ErrorContains(t, err, "repos.titledb.url")
}

func TestOwnerAndName(t *testing.T) {
	owner, name := ownerAndName("https://github.com/a/b.git")
	assert.Equal(t, "a", owner)
	assert.Equal(t, "b", name)

	owner, name = ownerAndName("https://github.com/onlyowner")
	assert.Empty(t, owner)
	assert.Empty(t, name)
}

func TestMalformedConfigIsAnError(t *testing.T) {
	path := writeConfig(t, "database: [unclosed")
	_, err := LoadFromFile(path)
	assert.Error(t, err)
}
