/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

// Package depgraph builds the directed import graph over resolved files and
// answers the connectivity and reachability questions the planner needs:
// weakly connected components, transitive dependencies, direct neighbors.
// Construction is a plain BFS from the given roots.
package depgraph

import (
	"errors"

	"github.com/solidkit/buildcore/pkg/resolve"
	"github.com/solidkit/buildcore/pkg/srcname"
)

// Graph is the closed set of files reachable from a set of roots, plus their
// import edges. Self-imports and cycles are represented as-is; every query
// method is visited-set-guarded and therefore terminates regardless.
type Graph struct {
	files map[srcname.Name]*resolve.File
	// edges[a] holds the SourceNames a imports directly.
	edges map[srcname.Name][]srcname.Name
	// reverse[a] holds the SourceNames that import a directly.
	reverse map[srcname.Name][]srcname.Name
	roots   []srcname.Name
}

// Resolver is the subset of *resolve.Resolver the graph builder needs; a
// narrow interface keeps depgraph testable without a real filesystem.
type Resolver interface {
	Resolve(name srcname.Name) (*resolve.File, error)
}

// Build performs a BFS from roots, resolving every newly discovered import
// via r, until the file set is closed under imports.
func Build(r Resolver, roots []srcname.Name) (*Graph, error) {
	g := &Graph{
		files:   make(map[srcname.Name]*resolve.File),
		edges:   make(map[srcname.Name][]srcname.Name),
		reverse: make(map[srcname.Name][]srcname.Name),
		roots:   append([]srcname.Name(nil), roots...),
	}

	queue := append([]srcname.Name(nil), roots...)
	queued := make(map[srcname.Name]bool, len(roots))
	for _, n := range queue {
		queued[n] = true
	}

	var errs []error
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		f, err := r.Resolve(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		g.files[name] = f
		g.edges[name] = f.Imports
		for _, dep := range f.Imports {
			g.reverse[dep] = append(g.reverse[dep], name)
			if !queued[dep] {
				queued[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	if len(errs) > 0 {
		return g, errors.Join(errs...)
	}
	return g, nil
}

// File returns the resolved file for name, if it is part of the graph.
func (g *Graph) File(name srcname.Name) (*resolve.File, bool) {
	f, ok := g.files[name]
	return f, ok
}

// Files returns every file in the graph, in no particular order.
func (g *Graph) Files() []*resolve.File {
	out := make([]*resolve.File, 0, len(g.files))
	for _, f := range g.files {
		out = append(out, f)
	}
	return out
}

// DirectDependencies returns the files name imports directly.
func (g *Graph) DirectDependencies(name srcname.Name) []srcname.Name {
	return g.edges[name]
}

// DirectDependents returns the files that import name directly.
func (g *Graph) DirectDependents(name srcname.Name) []srcname.Name {
	return g.reverse[name]
}

// TransitiveDependencies returns every file reachable from name by imports,
// name itself excluded. Cycles and self-imports are visited-set-guarded.
func (g *Graph) TransitiveDependencies(name srcname.Name) []srcname.Name {
	visited := map[srcname.Name]bool{name: true}
	var out []srcname.Name
	queue := append([]srcname.Name(nil), g.edges[name]...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if visited[n] {
			continue
		}
		visited[n] = true
		out = append(out, n)
		queue = append(queue, g.edges[n]...)
	}
	return out
}

// ConnectedComponents partitions the graph into weakly connected components:
// groups of files reachable from one another when edges are treated as
// undirected. Components are returned in an order derived from the roots so
// the result is stable across calls on the same graph.
func (g *Graph) ConnectedComponents() [][]*resolve.File {
	visited := make(map[srcname.Name]bool, len(g.files))
	var components [][]*resolve.File

	visitFrom := func(start srcname.Name) {
		if visited[start] {
			return
		}
		var component []*resolve.File
		queue := []srcname.Name{start}
		visited[start] = true
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			if f, ok := g.files[n]; ok {
				component = append(component, f)
			}
			neighbors := append(append([]srcname.Name(nil), g.edges[n]...), g.reverse[n]...)
			for _, next := range neighbors {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		if len(component) > 0 {
			components = append(components, component)
		}
	}

	for _, root := range g.roots {
		visitFrom(root)
	}
	for name := range g.files {
		visitFrom(name)
	}
	return components
}
