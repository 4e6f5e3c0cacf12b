/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package plan_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solidkit/buildcore/pkg/plan"
	"github.com/solidkit/buildcore/pkg/resolve"
	"github.com/solidkit/buildcore/pkg/srcname"
)

// fakeGraph is a hand-built depgraph.Graph double, so the planner can be
// exercised against the literal scenarios without a filesystem or resolver.
type fakeGraph struct {
	files map[srcname.Name]*resolve.File
}

func newFakeGraph() *fakeGraph { return &fakeGraph{files: map[srcname.Name]*resolve.File{}} }

func (g *fakeGraph) add(name string, pragma string, imports ...string) {
	names := make([]srcname.Name, len(imports))
	for i, s := range imports {
		names[i] = srcname.Name(s)
	}
	var pragmas []string
	if pragma != "" {
		pragmas = []string{pragma}
	}
	g.files[srcname.Name(name)] = &resolve.File{
		SourceName:     srcname.Name(name),
		AbsolutePath:   "/proj/" + name,
		ContentHash:    "hash-" + name,
		Imports:        names,
		VersionPragmas: pragmas,
	}
}

func (g *fakeGraph) File(name srcname.Name) (*resolve.File, bool) {
	f, ok := g.files[name]
	return f, ok
}

func (g *fakeGraph) DirectDependencies(name srcname.Name) []srcname.Name {
	f, ok := g.files[name]
	if !ok {
		return nil
	}
	return f.Imports
}

func (g *fakeGraph) TransitiveDependencies(name srcname.Name) []srcname.Name {
	visited := map[srcname.Name]bool{name: true}
	var out []srcname.Name
	queue := append([]srcname.Name(nil), g.DirectDependencies(name)...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if visited[n] {
			continue
		}
		visited[n] = true
		out = append(out, n)
		queue = append(queue, g.DirectDependencies(n)...)
	}
	return out
}

func configs(versions ...string) []plan.CompilerConfig {
	out := make([]plan.CompilerConfig, len(versions))
	for i, v := range versions {
		out[i] = plan.CompilerConfig{Version: v}
	}
	return out
}

func TestScenario1SingleRootSingleVersion(t *testing.T) {
	g := newFakeGraph()
	g.add("A.sol", "^0.8.0")

	jobs, err := plan.Build(g, []srcname.Name{"A.sol"}, plan.Options{
		AllowedConfigs: configs("0.8.17"),
	}, nil)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "0.8.17", jobs[0].Config.Version)
	require.Len(t, jobs[0].Inputs, 1)
	require.True(t, jobs[0].EmitsArtifacts("A.sol"))
}

func TestScenario2DiamondImports(t *testing.T) {
	g := newFakeGraph()
	g.add("A.sol", "^0.8.0", "B.sol", "C.sol")
	g.add("B.sol", "^0.8.0", "D.sol")
	g.add("C.sol", "^0.8.0", "D.sol")
	g.add("D.sol", "^0.8.0")

	jobs, err := plan.Build(g, []srcname.Name{"A.sol"}, plan.Options{
		AllowedConfigs: configs("0.8.17"),
	}, nil)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Len(t, jobs[0].Inputs, 4)
	require.True(t, jobs[0].EmitsArtifacts("A.sol"))
	require.False(t, jobs[0].EmitsArtifacts("B.sol"))
	require.False(t, jobs[0].EmitsArtifacts("C.sol"))
	require.False(t, jobs[0].EmitsArtifacts("D.sol"))
}

func TestScenario3PragmaDrivenSplit(t *testing.T) {
	g := newFakeGraph()
	g.add("A.sol", "^0.7.0")
	g.add("B.sol", "^0.8.0")

	jobs, err := plan.Build(g, []srcname.Name{"A.sol", "B.sol"}, plan.Options{
		AllowedConfigs: configs("0.7.6", "0.8.17"),
	}, nil)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, "0.7.6", jobs[0].Config.Version)
	require.Equal(t, "0.8.17", jobs[1].Config.Version)
}

func TestScenario4IncompatibleDirectImport(t *testing.T) {
	g := newFakeGraph()
	g.add("A.sol", "^0.8.0", "B.sol")
	g.add("B.sol", "^0.7.0")

	_, err := plan.Build(g, []srcname.Name{"A.sol"}, plan.Options{
		AllowedConfigs: configs("0.8.17"),
	}, nil)
	require.Error(t, err)

	var ce *plan.CreationError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, plan.TagDirectlyImportsIncompatible, ce.Tag)
	require.Equal(t, srcname.Name("A.sol"), ce.File)
	require.Equal(t, []srcname.Name{"B.sol"}, ce.IncompatibleDirect)
}

func TestNoCompatibleVersion(t *testing.T) {
	g := newFakeGraph()
	g.add("A.sol", "^0.9.0")

	_, err := plan.Build(g, []srcname.Name{"A.sol"}, plan.Options{
		AllowedConfigs: configs("0.8.17"),
	}, nil)
	require.Error(t, err)
	var ce *plan.CreationError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, plan.TagNoCompatibleVersion, ce.Tag)
}

func TestIncompatibleOverride(t *testing.T) {
	g := newFakeGraph()
	g.add("A.sol", "^0.8.0")

	_, err := plan.Build(g, []srcname.Name{"A.sol"}, plan.Options{
		AllowedConfigs: configs("0.7.6"),
		Overrides:      map[srcname.Name]string{"A.sol": "0.7.6"},
	}, nil)
	require.Error(t, err)
	var ce *plan.CreationError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, plan.TagIncompatibleOverride, ce.Tag)
}

// cacheStub reports a fixed changed/unchanged verdict per path.
type cacheStub struct {
	unchanged map[string]bool
}

func (c *cacheStub) HasFileChanged(absPath, contentHash string, config *plan.CompilerConfig) bool {
	return !c.unchanged[absPath]
}

func TestCacheFilterDropsUnchangedJob(t *testing.T) {
	g := newFakeGraph()
	g.add("A.sol", "^0.8.0")

	cache := &cacheStub{unchanged: map[string]bool{"/proj/A.sol": true}}
	jobs, err := plan.Build(g, []srcname.Name{"A.sol"}, plan.Options{
		AllowedConfigs: configs("0.8.17"),
	}, cache)
	require.NoError(t, err)
	require.Empty(t, jobs)
}

func TestCacheFilterKeepsChangedJob(t *testing.T) {
	g := newFakeGraph()
	g.add("A.sol", "^0.8.0")

	cache := &cacheStub{unchanged: map[string]bool{}}
	jobs, err := plan.Build(g, []srcname.Name{"A.sol"}, plan.Options{
		AllowedConfigs: configs("0.8.17"),
	}, cache)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
}

// TestCacheFilterInvalidatesOnDependencyContentChange guards the transitive
// invalidation invariant: touching a pure dependency's content must keep
// the transitively-importing emitter's job alive even though the emitter
// file itself is unchanged.
func TestCacheFilterInvalidatesOnDependencyContentChange(t *testing.T) {
	g := newFakeGraph()
	g.add("A.sol", "^0.8.0", "Shared.sol")
	g.add("Shared.sol", "^0.8.0")

	cache := &cacheStub{unchanged: map[string]bool{"/proj/A.sol": true}}
	jobs, err := plan.Build(g, []srcname.Name{"A.sol"}, plan.Options{
		AllowedConfigs: configs("0.8.17"),
	}, cache)
	require.NoError(t, err)
	require.Len(t, jobs, 1, "job must survive because its dependency Shared.sol is reported changed")
}

// TestCacheFilterSkippedCounter checks Options.SkippedCounter counts jobs
// Step C drops, for the orchestrator's jobs-skipped report.
func TestCacheFilterSkippedCounter(t *testing.T) {
	g := newFakeGraph()
	g.add("A.sol", "^0.8.0", "Shared.sol")
	g.add("Shared.sol", "^0.8.0")

	cache := &cacheStub{unchanged: map[string]bool{"/proj/A.sol": true, "/proj/Shared.sol": true}}
	skipped := 0
	jobs, err := plan.Build(g, []srcname.Name{"A.sol"}, plan.Options{
		AllowedConfigs: configs("0.8.17"),
		SkippedCounter: &skipped,
	}, cache)
	require.NoError(t, err)
	require.Empty(t, jobs)
	require.Equal(t, 1, skipped)
}

func TestMergeIsOrderIndependent(t *testing.T) {
	g := newFakeGraph()
	g.add("A.sol", "^0.8.0", "Shared.sol")
	g.add("B.sol", "^0.8.0", "Shared.sol")
	g.add("Shared.sol", "^0.8.0")

	forward, err := plan.Build(g, []srcname.Name{"A.sol", "B.sol"}, plan.Options{
		AllowedConfigs: configs("0.8.17"),
	}, nil)
	require.NoError(t, err)

	backward, err := plan.Build(g, []srcname.Name{"B.sol", "A.sol"}, plan.Options{
		AllowedConfigs: configs("0.8.17"),
	}, nil)
	require.NoError(t, err)

	require.Len(t, forward, 1)
	require.Len(t, backward, 1)
	require.Equal(t, forward[0].Config, backward[0].Config)
	require.ElementsMatch(t, inputNames(forward[0]), inputNames(backward[0]))
	require.True(t, forward[0].EmitsArtifacts("A.sol") && forward[0].EmitsArtifacts("B.sol"))
	require.True(t, backward[0].EmitsArtifacts("A.sol") && backward[0].EmitsArtifacts("B.sol"))
}

func inputNames(j *plan.Job) []srcname.Name {
	names := make([]srcname.Name, 0, len(j.Inputs))
	for n := range j.Inputs {
		names = append(names, n)
	}
	return names
}

func TestCompilerConfigEqualForMerge(t *testing.T) {
	a := plan.CompilerConfig{Version: "0.8.17", Settings: map[string]any{"optimize": true}}
	b := plan.CompilerConfig{Version: "0.8.17", Settings: map[string]any{"optimize": true}}
	c := plan.CompilerConfig{Version: "0.8.17", Settings: map[string]any{"optimize": false}}
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

// TestCompilerConfigEqualHandlesSliceSettings guards against a regression
// where comparing settings holding []any values (outputSelection,
// remappings) panicked instead of comparing, since slices are not
// comparable with ==.
func TestCompilerConfigEqualHandlesSliceSettings(t *testing.T) {
	a := plan.CompilerConfig{Version: "0.8.17", Settings: map[string]any{
		"remappings": []any{"@openzeppelin/=lib/openzeppelin/"},
		"outputSelection": map[string]any{
			"*": map[string]any{"*": []any{"abi", "evm.bytecode"}},
		},
	}}
	b := plan.CompilerConfig{Version: "0.8.17", Settings: map[string]any{
		"remappings": []any{"@openzeppelin/=lib/openzeppelin/"},
		"outputSelection": map[string]any{
			"*": map[string]any{"*": []any{"abi", "evm.bytecode"}},
		},
	}}
	c := plan.CompilerConfig{Version: "0.8.17", Settings: map[string]any{
		"remappings": []any{"@openzeppelin/=lib/openzeppelin/"},
		"outputSelection": map[string]any{
			"*": map[string]any{"*": []any{"abi"}},
		},
	}}
	require.NotPanics(t, func() {
		require.True(t, a.Equal(b))
		require.False(t, a.Equal(c))
	})
}

// TestScenarioMergeWithSliceValuedSettings exercises the same panic risk
// through mergeJobs, the actual caller: two roots sharing a job whose
// config carries array-valued settings must merge into one job rather than
// panicking.
func TestScenarioMergeWithSliceValuedSettings(t *testing.T) {
	g := newFakeGraph()
	g.add("A.sol", "^0.8.0")
	g.add("B.sol", "^0.8.0")

	settings := map[string]any{"remappings": []any{"@openzeppelin/=lib/openzeppelin/"}}
	jobs, err := plan.Build(g, []srcname.Name{"A.sol", "B.sol"}, plan.Options{
		AllowedConfigs: []plan.CompilerConfig{{Version: "0.8.17", Settings: settings}},
	}, nil)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
}
