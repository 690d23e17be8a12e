package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibilleb/hatstart/internal/catalog"
	"github.com/sibilleb/hatstart/internal/manifest"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLocalSourceReadsYAMLSingleManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "node.yaml", `
id: node
name: Node.js
category: language
systemRequirements:
  platforms: [linux, macos]
  architectures: [x64, arm64]
`)

	src := catalog.NewLocalSource(dir)
	manifests, err := src.Manifests(context.Background())
	require.NoError(t, err)
	require.Len(t, manifests, 1)
	assert.Equal(t, manifest.ToolID("node"), manifests[0].ID)
	assert.Equal(t, manifest.CategoryLanguage, manifests[0].Category)
}

func TestLocalSourceReadsYAMLManifestList(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bundle.yaml", `
manifests:
  - id: npm
    name: npm
    category: language
  - id: yarn
    name: Yarn
    category: language
`)

	src := catalog.NewLocalSource(dir)
	manifests, err := src.Manifests(context.Background())
	require.NoError(t, err)
	require.Len(t, manifests, 2)
	ids := []manifest.ToolID{manifests[0].ID, manifests[1].ID}
	assert.Contains(t, ids, manifest.ToolID("npm"))
	assert.Contains(t, ids, manifest.ToolID("yarn"))
}

func TestLocalSourceReadsCUEManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "postgres.cue", `
id:       "postgres"
name:     "PostgreSQL"
category: "database"
`)

	src := catalog.NewLocalSource(dir)
	manifests, err := src.Manifests(context.Background())
	require.NoError(t, err)
	require.Len(t, manifests, 1)
	assert.Equal(t, manifest.ToolID("postgres"), manifests[0].ID)
}

func TestLocalSourceIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "README.md", "not a manifest")
	writeFile(t, dir, "node.yaml", `
id: node
name: Node.js
`)

	src := catalog.NewLocalSource(dir)
	manifests, err := src.Manifests(context.Background())
	require.NoError(t, err)
	require.Len(t, manifests, 1)
}
