package git

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"go.uber.org/zap"
)

// Repo represents a local mirror of an upstream Git repository
type Repo struct {
	Name   string
	URL    string
	Path   string
	Token  string
	Logger *zap.Logger
}

// NewRepo creates a new Repo instance
func NewRepo(name, url, path, token string, logger *zap.Logger) *Repo {
	return &Repo{
		Name:   name,
		URL:    url,
		Path:   path,
		Token:  token,
		Logger: logger,
	}
}

// Mirror makes sure the local working copy exists and is up to date.
// A missing working copy is cloned. An existing one is pulled, and a failed
// pull is returned as an error rather than replaced by a fresh clone.
func (r *Repo) Mirror(ctx context.Context) error {
	present, err := r.present()
	if err != nil {
		return err
	}
	if !present {
		return r.clone(ctx)
	}
	return r.pull(ctx)
}

// HeadHash returns the commit hash HEAD points to
func (r *Repo) HeadHash() (string, error) {
	repo, err := git.PlainOpen(r.Path)
	if err != nil {
		return "", fmt.Errorf("failed to open repo: %w", err)
	}

	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// IsAncestorOfHead reports whether hash is reachable from HEAD.
// Unknown hashes (for example after a force push) report false.
func (r *Repo) IsAncestorOfHead(hash string) (bool, error) {
	repo, err := git.PlainOpen(r.Path)
	if err != nil {
		return false, fmt.Errorf("failed to open repo: %w", err)
	}

	ref, err := repo.Head()
	if err != nil {
		return false, fmt.Errorf("failed to get HEAD: %w", err)
	}
	head, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return false, fmt.Errorf("failed to get commit: %w", err)
	}

	base, err := repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return false, nil
	}
	if base.Hash == head.Hash {
		return true, nil
	}
	return base.IsAncestor(head)
}

// present checks for the .git entry before any git operation runs
func (r *Repo) present() (bool, error) {
	_, err := os.Stat(filepath.Join(r.Path, ".git"))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", r.Path, err)
}

func (r *Repo) clone(ctx context.Context) error {
	r.Logger.Info("cloning repository",
		zap.String("name", r.Name),
		zap.String("url", r.URL),
	)

	if err := os.MkdirAll(r.Path, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	_, err := git.PlainCloneContext(ctx, r.Path, false, &git.CloneOptions{
		URL:  r.URL,
		Auth: r.auth(),
	})
	if err != nil {
		return fmt.Errorf("failed to clone %s: %w", r.Name, err)
	}
	return nil
}

func (r *Repo) pull(ctx context.Context) error {
	repo, err := git.PlainOpen(r.Path)
	if err != nil {
		return fmt.Errorf("failed to open repo %s: %w", r.Name, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	err = worktree.PullContext(ctx, &git.PullOptions{
		RemoteName: "origin",
		Auth:       r.auth(),
		Force:      true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to pull %s: %w", r.Name, err)
	}

	r.Logger.Info("repository updated", zap.String("name", r.Name))
	return nil
}

// auth returns token credentials for HTTP remotes only
func (r *Repo) auth() transport.AuthMethod {
	if r.Token == "" || !strings.HasPrefix(r.URL, "http") {
		return nil
	}
	return &githttp.BasicAuth{
		Username: "git", // ignored for token auth
		Password: r.Token,
	}
}
