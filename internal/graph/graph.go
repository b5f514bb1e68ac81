// Package graph builds the dependency graph between library crates and
// orders it for building.
package graph

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/frederic-klein/cargo-dockerfile/internal/crate"
	"github.com/frederic-klein/cargo-dockerfile/internal/manifest"
)

// ManifestLoader loads the Cargo.toml at path.
type ManifestLoader interface {
	Parse(path string) (*manifest.Manifest, error)
}

// Edge points from a dependent library to one of its dependencies. Both ends
// are indices into Graph.Libs.
type Edge struct {
	From int
	To   int
}

// Graph holds library crates and the path dependencies between them.
// It is assumed to be acyclic.
type Graph struct {
	Libs      []string
	Edges     []Edge
	Manifests []*manifest.Manifest // parallel to Libs

	index map[string]int
	log   *slog.Logger
}

// Build loads the manifest of every library and records an edge for each
// path dependency that resolves to another library in libs. Any manifest
// failure aborts the build.
func Build(libs []string, loader ManifestLoader, log *slog.Logger) (*Graph, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	g := &Graph{
		Libs:      libs,
		Edges:     make([]Edge, 0, edgeCapacity(len(libs))),
		Manifests: make([]*manifest.Manifest, len(libs)),
		index:     make(map[string]int, len(libs)),
		log:       log,
	}
	for i, lib := range libs {
		g.index[canonical(lib)] = i
	}

	for i, lib := range libs {
		m, err := loader.Parse(crate.ManifestPath(lib))
		if err != nil {
			return nil, fmt.Errorf("loading manifest of %s: %w", lib, err)
		}
		g.Manifests[i] = m

		for _, dep := range m.PathDependencies() {
			target, err := filepath.EvalSymlinks(filepath.Join(lib, filepath.FromSlash(dep.Path)))
			if err != nil {
				log.Debug("dropping unresolvable path dependency", "crate", lib, "dependency", dep.Name, "path", dep.Path)
				continue
			}
			j, ok := g.index[target]
			if !ok {
				log.Debug("dependency is not a library in the tree", "crate", lib, "dependency", dep.Name, "path", target)
				continue
			}
			log.Debug("dependency edge", "from", lib, "to", libs[j])
			g.Edges = append(g.Edges, Edge{From: i, To: j})
		}
	}

	return g, nil
}

// IndexOf returns the position of the library rooted at path.
func (g *Graph) IndexOf(path string) (int, bool) {
	i, ok := g.index[canonical(path)]
	return i, ok
}

// Sort orders the libraries so that every library comes before the libraries
// it depends on. Libraries nobody depends on are seeded onto a stack in index
// order and popped last-in-first-out; popping a library releases each
// dependency whose dependents have all been emitted. Libraries on a cycle are
// never released and are left out.
//
// Reverse the result to get build order.
func (g *Graph) Sort() []string {
	dependents := make([]int, len(g.Libs))
	for _, e := range g.Edges {
		dependents[e.To]++
	}

	stack := make([]int, 0, len(g.Libs))
	for i, n := range dependents {
		if n == 0 {
			stack = append(stack, i)
		}
	}

	sorted := make([]string, 0, len(g.Libs))
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		sorted = append(sorted, g.Libs[i])

		for _, e := range g.Edges {
			if e.From != i {
				continue
			}
			dependents[e.To]--
			if dependents[e.To] == 0 {
				stack = append(stack, e.To)
			}
		}
	}

	return sorted
}

// BuildOrder returns the libraries with every dependency before its dependents.
func (g *Graph) BuildOrder() []string {
	order := g.Sort()
	slices.Reverse(order)
	return order
}

// Omitted returns the libraries missing from sorted, in index order. After
// Sort these are the libraries caught in a dependency cycle.
func (g *Graph) Omitted(sorted []string) []string {
	seen := make(map[string]bool, len(sorted))
	for _, s := range sorted {
		seen[s] = true
	}

	var missing []string
	for _, lib := range g.Libs {
		if !seen[lib] {
			missing = append(missing, lib)
		}
	}
	return missing
}

// Manifest returns the parsed manifest of the library rooted at path.
func (g *Graph) Manifest(path string) (*manifest.Manifest, bool) {
	i, ok := g.IndexOf(path)
	if !ok {
		return nil, false
	}
	return g.Manifests[i], true
}

// edgeCapacity bounds the edge preallocation. An acyclic graph of n nodes has
// at most n(n-1)/2 edges, but real crate graphs are sparse.
func edgeCapacity(n int) int {
	if n < 2 {
		return 0
	}
	return min(n*(n-1)/2, 4*n)
}

func canonical(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return filepath.Clean(p)
}
