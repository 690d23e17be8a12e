package plancache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibilleb/hatstart/internal/manifest"
	"github.com/sibilleb/hatstart/internal/plan"
	"github.com/sibilleb/hatstart/internal/plancache"
)

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := plancache.NewStore(dir)
	require.NoError(t, err)

	_, ok, err := store.Load("missing-key")
	require.NoError(t, err)
	assert.False(t, ok)

	order := &plan.Order{
		InstallationSequence: []manifest.ToolID{"node", "npm"},
		Success:              true,
	}
	require.NoError(t, store.Store("node+npm|linux|x64", order))

	loaded, ok, err := store.Load("node+npm|linux|x64")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, order.InstallationSequence, loaded.InstallationSequence)
	assert.True(t, loaded.Success)
}

func TestInvalidateRemovesEntry(t *testing.T) {
	dir := t.TempDir()
	store, err := plancache.NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Store("k", &plan.Order{Success: true}))
	require.NoError(t, store.Invalidate("k"))

	_, ok, err := store.Load("k")
	require.NoError(t, err)
	assert.False(t, ok)
}
