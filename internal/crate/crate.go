package crate

import (
	"path/filepath"
	"strings"
)

// File names that identify a crate in a Cargo source tree.
const (
	LibEntry     = "lib.rs"
	BinEntry     = "main.rs"
	ManifestFile = "Cargo.toml"
)

// Kind tells a library crate apart from a binary crate.
type Kind int

const (
	Library Kind = iota
	Binary
)

func (k Kind) String() string {
	if k == Binary {
		return "bin"
	}
	return "lib"
}

// Crate is a compilation unit rooted at a directory.
type Crate struct {
	Dir     string // canonical absolute crate root
	Name    string // final path segment of Dir
	RelPath string // slash-separated, relative to the scan root; "" for the root itself
	Kind    Kind
	Package string // package.name from the manifest, if known
	Version string // package.version from the manifest, if known
}

// New builds a Crate for dir, which must live under root.
func New(root, dir string, kind Kind) Crate {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		rel = ""
	}
	return Crate{
		Dir:     dir,
		Name:    filepath.Base(dir),
		RelPath: filepath.ToSlash(rel),
		Kind:    kind,
	}
}

// IsRoot reports whether the crate is rooted at the scan root.
func (c Crate) IsRoot() bool {
	return c.RelPath == ""
}

// ArtifactName is the file name cargo gives the crate's compiled binary.
func (c Crate) ArtifactName() string {
	if c.Package != "" {
		return c.Package
	}
	return c.Name
}

// DepsPrefix is the prefix of the crate's object files under target/release/deps.
func (c Crate) DepsPrefix() string {
	return strings.ReplaceAll(c.ArtifactName(), "-", "_")
}

// ManifestPath returns the location of Cargo.toml for the crate rooted at dir.
func ManifestPath(dir string) string {
	return filepath.Join(dir, ManifestFile)
}
