// Package pipeline runs scan, dependency ordering and Dockerfile rendering
// over a project tree.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/frederic-klein/cargo-dockerfile/internal/crate"
	"github.com/frederic-klein/cargo-dockerfile/internal/dockerfile"
	"github.com/frederic-klein/cargo-dockerfile/internal/graph"
	"github.com/frederic-klein/cargo-dockerfile/internal/manifest"
	"github.com/frederic-klein/cargo-dockerfile/internal/scanner"
)

const (
	DefaultOutput  = "Dockerfile"
	FallbackOutput = "cargo-dockerfile.Dockerfile"
)

// Result describes the crates of a project in build order.
type Result struct {
	Root    string
	Libs    []crate.Crate // dependencies before dependents
	Bins    []crate.Crate // traversal order
	Omitted []string      // libraries left out by a dependency cycle
}

// Crates returns libraries followed by binaries.
func (r *Result) Crates() []crate.Crate {
	out := make([]crate.Crate, 0, len(r.Libs)+len(r.Bins))
	out = append(out, r.Libs...)
	return append(out, r.Bins...)
}

// Pipeline discovers and orders crates and renders the Dockerfile.
type Pipeline struct {
	scanner *scanner.Scanner
	parser  *manifest.Parser
	log     *slog.Logger
}

// New creates a pipeline. A nil logger discards output.
func New(log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		scanner: scanner.NewScanner(log),
		parser:  manifest.NewParser(),
		log:     log,
	}
}

// Discover scans root and orders its library crates by dependency.
func (p *Pipeline) Discover(ctx context.Context, root string) (*Result, error) {
	scan, err := p.scanner.Scan(root)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g, err := graph.Build(scan.Libs, p.parser, p.log)
	if err != nil {
		return nil, fmt.Errorf("building dependency graph: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	order := g.BuildOrder()
	res := &Result{Root: scan.Root, Omitted: g.Omitted(order)}
	if len(res.Omitted) > 0 {
		p.log.Warn("libraries on a dependency cycle were left out", "crates", res.Omitted)
	}

	for _, dir := range order {
		c := crate.New(scan.Root, dir, crate.Library)
		if m, ok := g.Manifest(dir); ok {
			c.Package, c.Version = m.Package.Name, m.Package.Version
		}
		res.Libs = append(res.Libs, c)
	}

	for _, dir := range scan.Bins {
		c := crate.New(scan.Root, dir, crate.Binary)
		m, err := p.parser.Parse(crate.ManifestPath(dir))
		if err != nil {
			p.log.Debug("using directory name for binary", "crate", dir, "error", err)
		} else {
			c.Package, c.Version = m.Package.Name, m.Package.Version
		}
		res.Bins = append(res.Bins, c)
	}

	p.log.Debug("crates ordered", "libs", len(res.Libs), "bins", len(res.Bins))
	return res, nil
}

// Generate renders the Dockerfile for the project at root.
func (p *Pipeline) Generate(ctx context.Context, root string, cfg dockerfile.Config) ([]byte, *Result, error) {
	res, err := p.Discover(ctx, root)
	if err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	if err := dockerfile.NewEmitter(&buf, cfg).Emit(res.Libs, res.Bins); err != nil {
		return nil, nil, fmt.Errorf("rendering dockerfile: %w", err)
	}
	return buf.Bytes(), res, nil
}

// OutputPath picks where the Dockerfile is written: Dockerfile in root, or a
// tool-specific name if a Dockerfile already exists there.
func OutputPath(root string) string {
	path := filepath.Join(root, DefaultOutput)
	if _, err := os.Lstat(path); err == nil {
		return filepath.Join(root, FallbackOutput)
	}
	return path
}

// WriteFile writes the rendered Dockerfile to path.
func WriteFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing dockerfile: %w", err)
	}
	return nil
}
