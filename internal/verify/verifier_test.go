package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsFirstParty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		repository string
		want       bool
	}{
		{
			name:       "exact trusted prefix",
			repository: "ghcr.io/sibilleb/hatstart",
			want:       true,
		},
		{
			name:       "first-party catalog repository",
			repository: "ghcr.io/sibilleb/hatstart-catalog",
			want:       true,
		},
		{
			name:       "first-party subpath",
			repository: "ghcr.io/sibilleb/hatstart/presets/go",
			want:       true,
		},
		{
			name:       "third-party repository",
			repository: "ghcr.io/example/catalog",
			want:       false,
		},
		{
			name:       "empty repository",
			repository: "",
			want:       false,
		},
		{
			name:       "partial match prefix",
			repository: "ghcr.io/sibilleb/hatstartevil",
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := IsFirstParty(tt.repository)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNoopVerifier(t *testing.T) {
	t.Parallel()

	reason := "testing"
	v := NewNoopVerifier(reason)

	refs := []ArtifactRef{
		{Reference: "ghcr.io/sibilleb/hatstart-catalog:v1"},
		{Reference: "ghcr.io/sibilleb/hatstart-catalog/presets/go:v1"},
	}

	results, err := v.Verify(context.Background(), refs)
	require.NoError(t, err)
	require.Len(t, results, len(refs))

	for i, r := range results {
		assert.Equal(t, refs[i].Reference, r.Artifact.Reference)
		assert.False(t, r.Verified)
		assert.True(t, r.Skipped)
		assert.Equal(t, reason, r.SkipReason)
	}
}

func TestNoopVerifier_EmptyRefs(t *testing.T) {
	t.Parallel()

	v := NewNoopVerifier("no refs")
	results, err := v.Verify(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
