/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package plan

import (
	"errors"
	"sort"

	sv "github.com/Masterminds/semver/v3"
	xsemver "golang.org/x/mod/semver"

	"github.com/solidkit/buildcore/pkg/resolve"
	"github.com/solidkit/buildcore/pkg/semrange"
	"github.com/solidkit/buildcore/pkg/srcname"
)

// Graph is the subset of *depgraph.Graph the planner needs.
type Graph interface {
	File(name srcname.Name) (*resolve.File, bool)
	DirectDependencies(name srcname.Name) []srcname.Name
	TransitiveDependencies(name srcname.Name) []srcname.Name
}

// CacheChecker is the subset of the incremental cache the planner's Step C
// consults. config is nil for files that do not emit artifacts, since the
// compiler-config comparison only applies to artifact-emitting files.
type CacheChecker interface {
	HasFileChanged(absPath, contentHash string, config *CompilerConfig) bool
}

// alwaysChanged is the CacheChecker used when the caller has no cache yet
// (e.g. the very first build), so every job survives Step C.
type alwaysChanged struct{}

func (alwaysChanged) HasFileChanged(string, string, *CompilerConfig) bool { return true }

// AlwaysChanged is a CacheChecker that reports every file as changed.
var AlwaysChanged CacheChecker = alwaysChanged{}

// Options bundles the inputs Step A needs beyond the graph itself.
type Options struct {
	// AllowedConfigs is the project's configured compiler allow-list.
	AllowedConfigs []CompilerConfig
	// Overrides pins specific root files to an exact compiler version.
	Overrides map[srcname.Name]string
	// Universe is every version the build could plausibly reach for
	// (typically the compiler hub's full build index), used to tell a
	// genuinely empty pragma intersection apart from one that is merely
	// unsatisfied by the project's configured allow-list. The versions of
	// AllowedConfigs are always treated as part of it, so a nil Universe
	// falls back to the allow-list alone.
	Universe []*sv.Version
	// SkippedCounter, when non-nil, is incremented once per candidate job
	// Step C drops as already cache-valid, so a caller can report a
	// jobs-skipped count without Build itself owning report formatting.
	SkippedCounter *int
}

// Build runs Steps A-D over one connected component, producing the final,
// cache-filtered, version-ordered job list plus any per-file planning
// errors (aggregated, never partial: a component with any planning error
// still returns jobs for the files that did plan successfully).
func Build(graph Graph, roots []srcname.Name, opts Options, cache CacheChecker) ([]*Job, error) {
	if cache == nil {
		cache = AlwaysChanged
	}

	var errs []error
	var candidates []*Job
	for _, root := range roots {
		f, ok := graph.File(root)
		if !ok {
			continue
		}
		cfg, err := selectVersion(graph, f, opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		candidates = append(candidates, formCandidateJob(graph, f, cfg))
	}

	merged := mergeJobs(candidates)
	surviving := filterCached(merged, cache, opts.SkippedCounter)
	sortAscending(surviving)

	if len(errs) > 0 {
		return surviving, errors.Join(errs...)
	}
	return surviving, nil
}

// selectVersion implements Step A for a single root file.
func selectVersion(graph Graph, f *resolve.File, opts Options) (CompilerConfig, error) {
	ownRange, err := fileRange(f)
	if err != nil {
		return CompilerConfig{}, newCreationError(TagOther, f.SourceName, err.Error())
	}

	if version, ok := opts.Overrides[f.SourceName]; ok {
		v, err := sv.NewVersion(version)
		if err != nil || !ownRange.Satisfies(v) {
			return CompilerConfig{}, errIncompatibleOverride(f.SourceName, version, ownRange.Sources())
		}
		return CompilerConfig{Version: version, IsOverride: true, Settings: settingsFor(version, opts)}, nil
	}

	direct := graph.DirectDependencies(f.SourceName)
	transitive := graph.TransitiveDependencies(f.SourceName)

	directRange := ownRange
	for _, d := range direct {
		dep, ok := graph.File(d)
		if !ok {
			continue
		}
		dr, err := fileRange(dep)
		if err != nil {
			return CompilerConfig{}, newCreationError(TagOther, f.SourceName, err.Error())
		}
		directRange = directRange.Intersect(dr)
	}

	combined := directRange
	depRanges := make(map[srcname.Name]semrange.Range, len(transitive))
	directSet := make(map[srcname.Name]bool, len(direct))
	for _, d := range direct {
		directSet[d] = true
	}
	for _, d := range transitive {
		dep, ok := graph.File(d)
		if !ok {
			continue
		}
		dr, err := fileRange(dep)
		if err != nil {
			return CompilerConfig{}, newCreationError(TagOther, f.SourceName, err.Error())
		}
		depRanges[d] = dr
		if !directSet[d] {
			combined = combined.Intersect(dr)
		}
	}

	// The configured versions always count as reachable. A file whose own
	// pragmas already exclude every reachable version is not blamed on its
	// imports; it falls through to NoCompatibleVersion below.
	universe := append(versionsOf(opts.AllowedConfigs), opts.Universe...)
	if combined.IsEmpty(universe) && !ownRange.IsEmpty(universe) {
		if directRange.IsEmpty(universe) {
			offenders := blameDirect(ownRange, direct, depRanges, universe)
			return CompilerConfig{}, errDirectlyImportsIncompatible(f.SourceName, offenders)
		}
		offenders := blameIndirect(graph, f.SourceName, directRange, transitive, directSet, depRanges, universe)
		return CompilerConfig{}, errIndirectlyImportsIncompatible(f.SourceName, offenders)
	}

	candidates := versionsOf(opts.AllowedConfigs)
	best, ok := semrange.Newest(combined, candidates)
	if !ok {
		return CompilerConfig{}, errNoCompatibleVersion(f.SourceName, combined.Sources())
	}
	for _, c := range opts.AllowedConfigs {
		if c.Version == best.String() {
			return c, nil
		}
	}
	return CompilerConfig{Version: best.String()}, nil
}

func fileRange(f *resolve.File) (semrange.Range, error) {
	var r semrange.Range
	for _, p := range f.VersionPragmas {
		parsed, err := semrange.Parse(p)
		if err != nil {
			return semrange.Range{}, err
		}
		r = r.Intersect(parsed)
	}
	return r, nil
}

func settingsFor(version string, opts Options) map[string]any {
	for _, c := range opts.AllowedConfigs {
		if c.Version == version {
			return c.Settings
		}
	}
	return nil
}

func versionsOf(configs []CompilerConfig) []*sv.Version {
	out := make([]*sv.Version, 0, len(configs))
	for _, c := range configs {
		v, err := sv.NewVersion(c.Version)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// blameDirect finds which direct imports individually conflict with f's own
// pragma range.
func blameDirect(ownRange semrange.Range, direct []srcname.Name, depRanges map[srcname.Name]semrange.Range, universe []*sv.Version) []srcname.Name {
	var offenders []srcname.Name
	for _, d := range direct {
		dr, ok := depRanges[d]
		if !ok {
			continue
		}
		if ownRange.Intersect(dr).IsEmpty(universe) {
			offenders = append(offenders, d)
		}
	}
	return offenders
}

// blameIndirect finds which transitive (non-direct) imports conflict with
// the already-validated direct range, attaching the import path from f to
// each offender.
func blameIndirect(graph Graph, root srcname.Name, directRange semrange.Range, transitive []srcname.Name, directSet map[srcname.Name]bool, depRanges map[srcname.Name]semrange.Range, universe []*sv.Version) []DependencyPath {
	var offenders []DependencyPath
	for _, d := range transitive {
		if directSet[d] {
			continue
		}
		dr, ok := depRanges[d]
		if !ok {
			continue
		}
		if directRange.Intersect(dr).IsEmpty(universe) {
			offenders = append(offenders, DependencyPath{Dependency: d, Path: pathTo(graph, root, d)})
		}
	}
	if len(offenders) == 0 {
		// No single indirect dependency conflicts with the direct range on
		// its own; the conflict only emerges from combining several of
		// them. Report every indirect dependency involved rather than
		// guessing which pairing is to blame.
		for _, d := range transitive {
			if directSet[d] {
				continue
			}
			offenders = append(offenders, DependencyPath{Dependency: d, Path: pathTo(graph, root, d)})
		}
	}
	return offenders
}

// pathTo does a BFS over direct-dependency edges from root to target and
// returns the chain of source names from root (exclusive) to target
// (inclusive).
func pathTo(graph Graph, root, target srcname.Name) []srcname.Name {
	type node struct {
		name   srcname.Name
		parent *node
	}
	visited := map[srcname.Name]bool{root: true}
	queue := []*node{{name: root}}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n.name == target {
			var path []srcname.Name
			for cur := n; cur != nil && cur.name != root; cur = cur.parent {
				path = append([]srcname.Name{cur.name}, path...)
			}
			return path
		}
		for _, dep := range graph.DirectDependencies(n.name) {
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, &node{name: dep, parent: n})
			}
		}
	}
	return nil
}

// formCandidateJob implements Step B's per-file job formation: input set is
// {f} union its transitive dependencies, and only f emits artifacts.
func formCandidateJob(graph Graph, f *resolve.File, cfg CompilerConfig) *Job {
	inputs := map[srcname.Name]*resolve.File{f.SourceName: f}
	for _, d := range graph.TransitiveDependencies(f.SourceName) {
		if dep, ok := graph.File(d); ok {
			inputs[d] = dep
		}
	}
	return &Job{
		Config:  cfg,
		Inputs:  inputs,
		Emitted: map[srcname.Name]bool{f.SourceName: true},
	}
}

// mergeJobs implements Step B's merge: candidate jobs whose CompilerConfig
// is value-equal are combined, input sets unioned, emit predicates OR-ed.
func mergeJobs(candidates []*Job) []*Job {
	var merged []*Job
	for _, c := range candidates {
		found := false
		for _, m := range merged {
			if m.Config.Equal(c.Config) {
				for name, f := range c.Inputs {
					m.Inputs[name] = f
				}
				for name := range c.Emitted {
					m.Emitted[name] = true
				}
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, c)
		}
	}
	return merged
}

// filterCached implements Step C: a job is dropped only when every file it
// holds, emitting or not, is still cache-valid. An emitting file's check
// also compares its serialized compiler config; a pure dependency's check
// is content-hash only, so a dependency whose config-relevant settings
// changed in some other job does not itself invalidate this one, but
// editing its content does, since that edit could change what the emitter
// compiles to.
func filterCached(jobs []*Job, cache CacheChecker, skipped *int) []*Job {
	var surviving []*Job
	for _, j := range jobs {
		anyChanged := false
		for name, f := range j.Inputs {
			var cfg *CompilerConfig
			if j.Emitted[name] {
				c := j.Config
				cfg = &c
			}
			if cache.HasFileChanged(f.AbsolutePath, f.ContentHash, cfg) {
				anyChanged = true
				break
			}
		}
		if anyChanged {
			surviving = append(surviving, j)
		} else if skipped != nil {
			*skipped++
		}
	}
	return surviving
}

// sortAscending implements Step D, ordering surviving jobs by compiler
// version ascending using golang.org/x/mod/semver's total-order comparator.
func sortAscending(jobs []*Job) {
	sort.SliceStable(jobs, func(i, j int) bool {
		return xsemver.Compare("v"+jobs[i].Config.Version, "v"+jobs[j].Config.Version) < 0
	})
}
