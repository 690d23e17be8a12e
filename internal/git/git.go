// Package git checks out and refreshes git-hosted manifest catalogs.
// internal/catalog.GitSource keeps a clone of a catalog repository in
// its cache directory and reads manifest files straight out of the
// working tree, so this package only needs clone, pull, and existence
// checks — no commit-level plumbing.
package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Repository identifies a git-hosted manifest catalog.
type Repository struct {
	// Owner is the repository owner (e.g. "sibilleb" for
	// github.com/sibilleb/hatstart-catalog).
	Owner string
	// Name is the repository name (e.g. "hatstart-catalog").
	Name string
	// Host is the git host; empty means github.com.
	Host string
}

// NewRepository builds a Repository hosted on github.com.
func NewRepository(owner, name string) *Repository {
	return &Repository{Owner: owner, Name: name, Host: "github.com"}
}

// URL returns the HTTPS clone URL for the catalog.
func (r *Repository) URL() string {
	host := r.Host
	if host == "" {
		host = "github.com"
	}
	return fmt.Sprintf("https://%s/%s/%s.git", host, r.Owner, r.Name)
}

// CloneOptions configures a catalog checkout.
type CloneOptions struct {
	// Branch to check out; empty means the remote's default branch.
	Branch string
	// Depth > 0 requests a shallow, single-branch clone. Catalogs are
	// read-only here, so history depth never matters to callers.
	Depth int
}

// Clone checks the catalog out at dest, creating parent directories as
// needed.
func (r *Repository) Clone(ctx context.Context, dest string, opts *CloneOptions) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating checkout parent for %s: %w", dest, err)
	}

	cloneOpts := &gogit.CloneOptions{URL: r.URL()}
	if opts != nil {
		if opts.Depth > 0 {
			cloneOpts.Depth = opts.Depth
			cloneOpts.SingleBranch = true
		}
		if opts.Branch != "" {
			cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(opts.Branch)
			cloneOpts.SingleBranch = true
		}
	}

	slog.Debug("cloning catalog", "url", r.URL(), "dest", dest)
	if _, err := gogit.PlainCloneContext(ctx, dest, false, cloneOpts); err != nil {
		if errors.Is(err, gogit.ErrRepositoryAlreadyExists) {
			return fmt.Errorf("checkout already exists at %s: %w", dest, err)
		}
		return fmt.Errorf("cloning %s: %w", r.URL(), err)
	}
	return nil
}

// Pull fast-forwards the checkout at dest to the remote's latest
// state. An already-current checkout is not an error.
func (r *Repository) Pull(ctx context.Context, dest string) error {
	repo, err := gogit.PlainOpen(dest)
	if err != nil {
		return fmt.Errorf("opening checkout %s: %w", dest, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening worktree %s: %w", dest, err)
	}

	slog.Debug("refreshing catalog", "dest", dest)
	if err := wt.PullContext(ctx, &gogit.PullOptions{}); err != nil {
		if errors.Is(err, gogit.NoErrAlreadyUpToDate) {
			return nil
		}
		return fmt.Errorf("pulling %s: %w", dest, err)
	}
	return nil
}

// CloneOrPull clones the catalog at dest, or refreshes it when a
// checkout is already present.
func (r *Repository) CloneOrPull(ctx context.Context, dest string, opts *CloneOptions) error {
	if Exists(dest) {
		return r.Pull(ctx, dest)
	}
	return r.Clone(ctx, dest, opts)
}

// Exists reports whether dest holds a git checkout.
func Exists(dest string) bool {
	_, err := gogit.PlainOpen(dest)
	return err == nil
}
