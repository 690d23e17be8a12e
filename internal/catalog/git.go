package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/sibilleb/hatstart/internal/git"
	"github.com/sibilleb/hatstart/internal/manifest"
)

// GitSource is a ManifestSource that clones or updates a git remote
// into a local cache directory, then reads manifests from it the same
// way LocalSource would: the checkout itself is the catalog.
type GitSource struct {
	Repo     *git.Repository
	CacheDir string
	Branch   string
}

// NewGitSource builds a GitSource cloning owner/name from host (empty
// host defaults to github.com) into cacheDir.
func NewGitSource(host, owner, name, cacheDir, branch string) *GitSource {
	repo := git.NewRepository(owner, name)
	if host != "" {
		repo.Host = host
	}
	return &GitSource{Repo: repo, CacheDir: cacheDir, Branch: branch}
}

// Manifests implements core.ManifestSource: ensures the checkout is
// present and up to date, then reads manifest files from it.
func (s *GitSource) Manifests(ctx context.Context) ([]manifest.ToolManifest, error) {
	if _, err := os.Stat(s.CacheDir); err != nil {
		if err := s.Repo.Clone(ctx, s.CacheDir, &git.CloneOptions{Branch: s.Branch}); err != nil {
			return nil, fmt.Errorf("cloning manifest registry %s: %w", s.Repo.URL(), err)
		}
	} else if err := s.Repo.Pull(ctx, s.CacheDir); err != nil {
		return nil, fmt.Errorf("updating manifest registry %s: %w", s.Repo.URL(), err)
	}

	return NewLocalSource(s.CacheDir).Manifests(ctx)
}
