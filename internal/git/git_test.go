package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRepository(t *testing.T) {
	repo := NewRepository("sibilleb", "hatstart-catalog")

	assert.Equal(t, "sibilleb", repo.Owner)
	assert.Equal(t, "hatstart-catalog", repo.Name)
	assert.Equal(t, "github.com", repo.Host)
}

func TestRepositoryURL(t *testing.T) {
	tests := []struct {
		name string
		repo *Repository
		want string
	}{
		{
			name: "default host",
			repo: NewRepository("sibilleb", "hatstart-catalog"),
			want: "https://github.com/sibilleb/hatstart-catalog.git",
		},
		{
			name: "custom host",
			repo: &Repository{Owner: "team", Name: "catalog", Host: "gitlab.com"},
			want: "https://gitlab.com/team/catalog.git",
		},
		{
			name: "empty host falls back to github.com",
			repo: &Repository{Owner: "team", Name: "catalog"},
			want: "https://github.com/team/catalog.git",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.repo.URL())
		})
	}
}

// initCatalog creates a local git repository holding one manifest
// file, standing in for a remote catalog so the tests never touch the
// network.
func initCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	writeAndCommit(t, repo, dir, "node.yaml", "id: node\nname: Node.js\n")
	return dir
}

func writeAndCommit(t *testing.T, repo *gogit.Repository, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	_, err = wt.Commit("add "+name, &gogit.CommitOptions{
		Author: &object.Signature{Name: "catalog-bot", Email: "bot@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

// cloneLocal clones the local catalog into a fresh directory via
// go-git directly, giving Pull a checkout with a filesystem remote.
func cloneLocal(t *testing.T, src string) string {
	t.Helper()
	dest := filepath.Join(t.TempDir(), "checkout")
	_, err := gogit.PlainClone(dest, false, &gogit.CloneOptions{URL: src})
	require.NoError(t, err)
	return dest
}

func TestPullAlreadyUpToDate(t *testing.T) {
	src := initCatalog(t)
	dest := cloneLocal(t, src)

	repo := NewRepository("sibilleb", "hatstart-catalog")
	require.NoError(t, repo.Pull(context.Background(), dest))
}

func TestPullFetchesNewCommits(t *testing.T) {
	src := initCatalog(t)
	dest := cloneLocal(t, src)

	srcRepo, err := gogit.PlainOpen(src)
	require.NoError(t, err)
	writeAndCommit(t, srcRepo, src, "npm.yaml", "id: npm\nname: npm\n")

	repo := NewRepository("sibilleb", "hatstart-catalog")
	require.NoError(t, repo.Pull(context.Background(), dest))
	assert.FileExists(t, filepath.Join(dest, "npm.yaml"))
}

func TestPullWithoutCheckout(t *testing.T) {
	repo := NewRepository("sibilleb", "hatstart-catalog")
	err := repo.Pull(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening checkout")
}

func TestCloneRefusesExistingCheckout(t *testing.T) {
	dest := initCatalog(t)

	repo := NewRepository("sibilleb", "hatstart-catalog")
	err := repo.Clone(context.Background(), dest, &CloneOptions{Depth: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestExists(t *testing.T) {
	assert.True(t, Exists(initCatalog(t)))
	assert.False(t, Exists(t.TempDir()))
	assert.False(t, Exists("/nonexistent/path"))
}

func TestCloneOrPullRefreshesExistingCheckout(t *testing.T) {
	src := initCatalog(t)
	dest := cloneLocal(t, src)

	repo := NewRepository("sibilleb", "hatstart-catalog")
	require.NoError(t, repo.CloneOrPull(context.Background(), dest, nil))
	assert.FileExists(t, filepath.Join(dest, "node.yaml"))
}
