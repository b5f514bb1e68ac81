// Package inventory reports the crates of a project in build order.
package inventory

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/frederic-klein/cargo-dockerfile/internal/pipeline"
)

// Formats accepted by Write.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Entry describes one crate.
type Entry struct {
	Order          int    `yaml:"order" json:"order"`
	Name           string `yaml:"name" json:"name"`
	Kind           string `yaml:"kind" json:"kind"`
	Path           string `yaml:"path" json:"path"`
	Package        string `yaml:"package,omitempty" json:"package,omitempty"`
	Version        string `yaml:"version,omitempty" json:"version,omitempty"`
	InvalidVersion bool   `yaml:"invalid_version,omitempty" json:"invalid_version,omitempty"`
}

// Report is the crate inventory of one project.
type Report struct {
	Root    string   `yaml:"root" json:"root"`
	Crates  []Entry  `yaml:"crates" json:"crates"`
	Omitted []string `yaml:"omitted,omitempty" json:"omitted,omitempty"`
}

// New builds a report from a pipeline result. Libraries come first in build
// order, followed by binaries.
func New(res *pipeline.Result) *Report {
	r := &Report{Root: res.Root, Crates: []Entry{}, Omitted: res.Omitted}
	for i, c := range res.Crates() {
		path := c.RelPath
		if path == "" {
			path = "."
		}
		version, valid := normalizeVersion(c.Version)
		r.Crates = append(r.Crates, Entry{
			Order:          i + 1,
			Name:           c.Name,
			Kind:           c.Kind.String(),
			Path:           path,
			Package:        c.Package,
			Version:        version,
			InvalidVersion: !valid,
		})
	}
	return r
}

// Write encodes the report to w in the given format.
func (r *Report) Write(w io.Writer, format string) error {
	switch format {
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// normalizeVersion returns the canonical semver form of v. An empty version
// is valid; an unparseable one is returned unchanged.
func normalizeVersion(v string) (string, bool) {
	if v == "" {
		return "", true
	}
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return v, false
	}
	return parsed.String(), true
}
