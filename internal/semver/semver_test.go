package semver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibilleb/hatstart/internal/semver"
)

func TestCompareOrdersNumerically(t *testing.T) {
	assert.True(t, semver.Compare("1.2.0", "1.10.0") < 0)
	assert.True(t, semver.Compare("2.0.0", "1.9.9") > 0)
	assert.Equal(t, 0, semver.Compare("1.0.0", "1.0.0"))
}

func TestCompareFallsBackOnAlias(t *testing.T) {
	assert.Equal(t, 0, semver.Compare("latest", "latest"))
	assert.NotEqual(t, 0, semver.Compare("latest", "stable"))
}

func TestIsAlias(t *testing.T) {
	assert.True(t, semver.IsAlias("latest"))
	assert.False(t, semver.IsAlias("1.2.3"))
}

func TestSortAscending(t *testing.T) {
	versions := []string{"1.10.0", "1.2.0", "1.9.0"}
	semver.SortAscending(versions)
	assert.Equal(t, []string{"1.2.0", "1.9.0", "1.10.0"}, versions)
}

func TestConstraintStringAndSatisfies(t *testing.T) {
	c := semver.ConstraintString("16.0.0", "18.2.0", "")
	assert.True(t, semver.Satisfies("17.0.0", c))
	assert.False(t, semver.Satisfies("19.0.0", c))

	assert.Equal(t, "*", semver.ConstraintString("", "", ""))
	assert.True(t, semver.Satisfies("0.0.1", "*"))
	assert.False(t, semver.Satisfies("not-a-version", "*"), "unparseable versions never satisfy")
}

func TestFirstAndLastSatisfying(t *testing.T) {
	candidates := []string{"14.0.0", "16.0.0", "18.0.0", "20.0.0"}
	constraints := []string{">=16.0.0", "<=18.5.0"}

	first, ok := semver.FirstSatisfying(candidates, constraints)
	assert.True(t, ok)
	assert.Equal(t, "16.0.0", first)

	last, ok := semver.LastSatisfying(candidates, constraints)
	assert.True(t, ok)
	assert.Equal(t, "18.0.0", last)

	_, ok = semver.LastSatisfying(candidates, []string{">=99.0.0"})
	assert.False(t, ok)
}

func TestSatisfiedCount(t *testing.T) {
	constraints := []string{">=16.0.0", "<=17.0.0", ">=10.0.0"}
	assert.Equal(t, 3, semver.SatisfiedCount("16.5.0", constraints))
	assert.Equal(t, 2, semver.SatisfiedCount("18.0.0", constraints))
}

func TestIntersectionEmpty(t *testing.T) {
	disjoint := []string{">=16.0.0, <=17.0.0", ">=18.0.0"}
	assert.True(t, semver.IntersectionEmpty(disjoint, nil))

	overlapping := []string{">=16.0.0, <=18.0.0", ">=17.0.0, <=20.0.0"}
	assert.False(t, semver.IntersectionEmpty(overlapping, nil))

	withCandidates := []string{">=16.0.0", "<=18.0.0"}
	assert.False(t, semver.IntersectionEmpty(withCandidates, []string{"17.0.0"}))
}

func TestGoStyleComparison(t *testing.T) {
	assert.True(t, semver.IsGoStyle("v1.2.3"))
	assert.True(t, semver.IsGoStyle("1.2.3"))
	assert.True(t, semver.CompareGoStyle("v1.2.3", "v1.10.0") < 0)
}

func TestSortCandidatesForResolutionUsesGoStyleForPseudoVersions(t *testing.T) {
	candidates := []string{"v1.10.0", "v1.2.0", "v0.0.0-20230102150405-abcdef123456"}
	sorted := semver.SortCandidatesForResolution(candidates)
	assert.Equal(t, []string{"v0.0.0-20230102150405-abcdef123456", "v1.2.0", "v1.10.0"}, sorted)
}

func TestSortCandidatesForResolutionFallsBackForNonGoStyleVersions(t *testing.T) {
	candidates := []string{"1.10.0", "stable", "1.2.0", "1.9.0"}
	sorted := semver.SortCandidatesForResolution(candidates)
	assert.False(t, semver.IsGoStyle("stable"))
	require.Len(t, sorted, 4)
	assert.Equal(t, "stable", sorted[len(sorted)-1], "alias compares lexically greater than numeric versions via the fallback path")
}
