// Package semver centralizes the one place the core compares tool
// versions, so comparison and constraint rules live in a single spot
// and every component applies them identically. It wraps
// github.com/Masterminds/semver/v3 for real semantic-version parsing
// and range intersection.
//
// golang.org/x/mod/semver is used alongside it for the narrower case
// of Go-toolchain-flavored "vX.Y.Z" version tags (e.g. a Go runtime or
// a Go-module-distributed tool), where module-path semver rules
// (strict "v" prefix, no build metadata) apply instead of general
// semver.
package semver

import (
	"fmt"
	"sort"
	"strings"

	mmsemver "github.com/Masterminds/semver/v3"
	xmodsemver "golang.org/x/mod/semver"
)

// Parse parses a version string leniently (accepting "1.2", "1.2.3",
// and "v"-prefixed forms). Non-semver strings (aliases like "latest",
// "stable") return an error; callers that need to handle aliases
// should check IsAlias first.
func Parse(version string) (*mmsemver.Version, error) {
	v, err := mmsemver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("semver: parse %q: %w", version, err)
	}
	return v, nil
}

// IsAlias reports whether version looks like a named channel
// ("latest", "stable", "lts", ...) rather than a parseable semver
// string.
func IsAlias(version string) bool {
	if version == "" {
		return true
	}
	_, err := Parse(version)
	return err != nil
}

// Compare orders two version strings. Parseable semver strings compare
// numerically; if either side fails to parse, Compare falls back to a
// lexical comparison so callers never panic on alias strings.
func Compare(a, b string) int {
	va, errA := Parse(a)
	vb, errB := Parse(b)
	if errA == nil && errB == nil {
		return va.Compare(vb)
	}
	return strings.Compare(a, b)
}

// SortAscending sorts versions in place using Compare, matching the
// order internal/manifest.VersionInfo.AvailableVersions is expected to
// already be in by the time it reaches the Graph Builder.
func SortAscending(versions []string) {
	sort.Slice(versions, func(i, j int) bool {
		return Compare(versions[i], versions[j]) < 0
	})
}

// ConstraintString builds a Masterminds constraint expression from a
// dependency's min/max/range fields. VersionRange, if present, is used
// verbatim (it is already Masterminds syntax); otherwise a
// ">=min,<=max" style expression is synthesized. A "*" result means
// "no constraint" (matches any version).
func ConstraintString(minVersion, maxVersion, versionRange string) string {
	if versionRange != "" {
		return versionRange
	}
	var parts []string
	if minVersion != "" {
		parts = append(parts, ">="+minVersion)
	}
	if maxVersion != "" {
		parts = append(parts, "<="+maxVersion)
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, ", ")
}

// Satisfies reports whether version satisfies the given Masterminds
// constraint expression. An unparseable version or constraint is
// treated as non-satisfying rather than returning an error, since
// callers (the conflict Detector) need a total function over
// arbitrary catalog data.
func Satisfies(version, constraint string) bool {
	v, err := Parse(version)
	if err != nil {
		return false
	}
	c, err := mmsemver.NewConstraint(constraint)
	if err != nil {
		return false
	}
	return c.Check(v)
}

// FirstSatisfying returns the first version in candidates (assumed
// sorted ascending) that satisfies every constraint in constraints,
// and a boolean reporting whether one was found.
func FirstSatisfying(candidates []string, constraints []string) (string, bool) {
	for _, candidate := range candidates {
		if SatisfiesAll(candidate, constraints) {
			return candidate, true
		}
	}
	return "", false
}

// LastSatisfying returns the highest version in candidates (assumed
// sorted ascending) satisfying every constraint, for "prefer latest"
// pin strategies.
func LastSatisfying(candidates []string, constraints []string) (string, bool) {
	for i := len(candidates) - 1; i >= 0; i-- {
		if SatisfiesAll(candidates[i], constraints) {
			return candidates[i], true
		}
	}
	return "", false
}

// SatisfiesAll reports whether version satisfies every constraint
// expression in constraints.
func SatisfiesAll(version string, constraints []string) bool {
	for _, c := range constraints {
		if c == "" || c == "*" {
			continue
		}
		if !Satisfies(version, c) {
			return false
		}
	}
	return true
}

// SatisfiedCount returns how many of the given constraints the version
// satisfies, used by the Detector's 80%-compromise-version search.
func SatisfiedCount(version string, constraints []string) int {
	n := 0
	for _, c := range constraints {
		if c == "" || c == "*" || Satisfies(version, c) {
			n++
		}
	}
	return n
}

// IntersectionEmpty reports whether the given set of constraint
// expressions is jointly unsatisfiable over candidates: no version in
// candidates satisfies every constraint simultaneously. Because the
// core never evaluates the real number line, emptiness is determined
// against the node's own available-version list plus the literal
// bounds named in the constraints themselves (so a gap between two
// disjoint-looking ranges that happens to contain no cataloged version
// is still correctly reported as a conflict).
func IntersectionEmpty(constraints []string, candidates []string) bool {
	probes := append([]string{}, candidates...)
	for _, c := range constraints {
		probes = append(probes, boundaryProbes(c)...)
	}
	for _, probe := range probes {
		if probe == "" {
			continue
		}
		if SatisfiesAll(probe, constraints) {
			return false
		}
	}
	return true
}

// boundaryProbes extracts literal version tokens referenced by a
// Masterminds constraint expression (e.g. ">=16.0.0, <=18.2.0" yields
// ["16.0.0", "18.2.0"]) so IntersectionEmpty can test the edges of each
// requirement even when no cataloged version happens to land there.
func boundaryProbes(constraint string) []string {
	var probes []string
	for _, clause := range strings.Split(constraint, ",") {
		clause = strings.TrimSpace(clause)
		clause = strings.TrimLeft(clause, "<>=~^! ")
		if clause != "" {
			probes = append(probes, clause)
		}
	}
	return probes
}

// CompareGoStyle compares two Go-module-style "vX.Y.Z" version tags
// using golang.org/x/mod/semver, for tools/runtimes distributed the
// way the Go toolchain itself is versioned.
func CompareGoStyle(a, b string) int {
	return xmodsemver.Compare(normalizeGoStyle(a), normalizeGoStyle(b))
}

// IsGoStyle reports whether v is a valid Go-module-style version tag.
func IsGoStyle(v string) bool {
	return xmodsemver.IsValid(normalizeGoStyle(v))
}

// SortCandidatesForResolution returns candidates sorted ascending for the
// pin-strategy search (FirstSatisfying/LastSatisfying both assume ascending
// order). When every candidate is a Go-module-style tag it sorts with
// CompareGoStyle instead of Compare, since Go's module precedence rules
// (and pseudo-versions like "v0.0.0-20230102150405-abcdef123456") aren't
// always parseable by Masterminds' stricter semver parser.
func SortCandidatesForResolution(candidates []string) []string {
	if len(candidates) == 0 {
		return candidates
	}
	sorted := append([]string{}, candidates...)
	if allGoStyle(sorted) {
		sort.Slice(sorted, func(i, j int) bool {
			return CompareGoStyle(sorted[i], sorted[j]) < 0
		})
		return sorted
	}
	SortAscending(sorted)
	return sorted
}

func allGoStyle(versions []string) bool {
	for _, v := range versions {
		if !IsGoStyle(v) {
			return false
		}
	}
	return true
}

func normalizeGoStyle(v string) string {
	if v == "" {
		return v
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}
