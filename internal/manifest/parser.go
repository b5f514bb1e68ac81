// Package manifest reads the parts of Cargo.toml needed to order crates.
package manifest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	toml "github.com/pelletier/go-toml/v2"
)

// Dependency is one entry of a dependency table. A bare version string
// ("serde = \"1\"") yields only Version; a table may carry Path.
type Dependency struct {
	Name    string
	Version string
	Path    string
}

// IsPath reports whether the dependency points at a crate on disk.
func (d Dependency) IsPath() bool {
	return d.Path != ""
}

// Package is the [package] section.
type Package struct {
	Name    string
	Version string // empty when inherited from a workspace
}

// Manifest is a parsed Cargo.toml.
type Manifest struct {
	Package           Package
	Dependencies      map[string]Dependency
	BuildDependencies map[string]Dependency
}

// PathDependencies returns the path dependencies of [dependencies] followed by
// those of [build-dependencies], each group sorted by name.
func (m *Manifest) PathDependencies() []Dependency {
	var out []Dependency
	for _, table := range []map[string]Dependency{m.Dependencies, m.BuildDependencies} {
		for _, name := range sortedKeys(table) {
			if dep := table[name]; dep.IsPath() {
				out = append(out, dep)
			}
		}
	}
	return out
}

type rawManifest struct {
	Package struct {
		Name    string `toml:"name"`
		Version any    `toml:"version"`
	} `toml:"package"`
	Dependencies      map[string]any `toml:"dependencies"`
	BuildDependencies map[string]any `toml:"build-dependencies"`
}

// Parser parses Cargo.toml files.
type Parser struct{}

// NewParser creates a new manifest parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads and parses the manifest at path.
func (p *Parser) Parse(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	m, err := p.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

// Decode parses a manifest from r.
func (p *Parser) Decode(r io.Reader) (*Manifest, error) {
	var raw rawManifest
	if err := toml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}

	m := &Manifest{
		Package:           Package{Name: raw.Package.Name},
		Dependencies:      make(map[string]Dependency, len(raw.Dependencies)),
		BuildDependencies: make(map[string]Dependency, len(raw.BuildDependencies)),
	}
	if v, ok := raw.Package.Version.(string); ok {
		m.Package.Version = v
	}

	for name, value := range raw.Dependencies {
		dep, err := dependencyFromValue(name, value)
		if err != nil {
			return nil, err
		}
		m.Dependencies[name] = dep
	}
	for name, value := range raw.BuildDependencies {
		dep, err := dependencyFromValue(name, value)
		if err != nil {
			return nil, err
		}
		m.BuildDependencies[name] = dep
	}

	return m, nil
}

// dependencyFromValue accepts either a version string or a detail table.
func dependencyFromValue(name string, value any) (Dependency, error) {
	dep := Dependency{Name: name}

	switch v := value.(type) {
	case string:
		dep.Version = v
	case map[string]any:
		if version, ok := v["version"].(string); ok {
			dep.Version = version
		}
		if raw, ok := v["path"]; ok {
			path, ok := raw.(string)
			if !ok {
				return Dependency{}, fmt.Errorf("dependency %q: path must be a string", name)
			}
			dep.Path = path
		}
	default:
		return Dependency{}, fmt.Errorf("dependency %q: unsupported value of type %T", name, value)
	}

	return dep, nil
}

func sortedKeys(m map[string]Dependency) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
