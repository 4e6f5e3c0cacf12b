/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

// Package semrange wraps Masterminds/semver/v3 constraint algebra to give
// the Job Planner proper semantic-version range parsing, intersection and
// satisfaction checks over Solidity version pragmas, instead of treating
// them as opaque strings.
package semrange

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// Range is the intersection of zero or more version-pragma constraints. A
// zero-value Range (no constraints) is satisfied by every version, which is
// the correct identity element for intersecting a file with no pragmas of
// its own against its dependencies' pragmas.
type Range struct {
	constraints []*semver.Constraints
	// sources mirrors constraints 1:1 with the pragma text each one came
	// from, purely for error messages blaming the offending pragma.
	sources []string
}

// Parse turns a Solidity pragma expression ("^0.8.0", ">=0.8.0 <0.9.0",
// "0.8.0 - 0.8.19") into a single-constraint Range.
func Parse(pragma string) (Range, error) {
	c, err := semver.NewConstraint(pragma)
	if err != nil {
		return Range{}, fmt.Errorf("invalid version pragma %q: %w", pragma, err)
	}
	return Range{constraints: []*semver.Constraints{c}, sources: []string{pragma}}, nil
}

// Intersect returns the range that satisfies both r and other.
func (r Range) Intersect(other Range) Range {
	out := Range{
		constraints: make([]*semver.Constraints, 0, len(r.constraints)+len(other.constraints)),
		sources:     make([]string, 0, len(r.sources)+len(other.sources)),
	}
	out.constraints = append(out.constraints, r.constraints...)
	out.constraints = append(out.constraints, other.constraints...)
	out.sources = append(out.sources, r.sources...)
	out.sources = append(out.sources, other.sources...)
	return out
}

// Satisfies reports whether v satisfies every constraint making up r.
func (r Range) Satisfies(v *semver.Version) bool {
	for _, c := range r.constraints {
		if !c.Check(v) {
			return false
		}
	}
	return true
}

// Sources returns the original pragma strings this range was built from, in
// the order they were intersected, for error reporting.
func (r Range) Sources() []string {
	return append([]string(nil), r.sources...)
}

// IsEmpty reports whether no version in universe satisfies r. universe
// should be every version the build could plausibly reach for (the
// compiler hub's full build index), not just the project's configured
// allow-list, so a pragma conflict is detected independently of which
// compiler versions this particular project happens to have enabled.
func (r Range) IsEmpty(universe []*semver.Version) bool {
	for _, v := range universe {
		if r.Satisfies(v) {
			return false
		}
	}
	return true
}

// Newest returns the highest version in candidates that satisfies r.
func Newest(r Range, candidates []*semver.Version) (*semver.Version, bool) {
	var best *semver.Version
	for _, v := range candidates {
		if !r.Satisfies(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}
	return best, best != nil
}

// SortAscending sorts versions in place, oldest first.
func SortAscending(versions []*semver.Version) {
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].LessThan(versions[j])
	})
}
