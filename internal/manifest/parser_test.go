package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_Decode(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantPackage Package
		wantPaths   []Dependency
	}{
		{
			name: "registry only",
			content: `[package]
name = "core"
version = "0.1.0"

[dependencies]
serde = "1.0"
tokio = { version = "1", features = ["full"] }
`,
			wantPackage: Package{Name: "core", Version: "0.1.0"},
		},
		{
			name: "inline path dependency",
			content: `[package]
name = "api"
version = "0.2.0"

[dependencies]
core = { path = "../core" }
serde = "1.0"
`,
			wantPackage: Package{Name: "api", Version: "0.2.0"},
			wantPaths:   []Dependency{{Name: "core", Path: "../core"}},
		},
		{
			name: "dotted table path dependency",
			content: `[package]
name = "api"

[dependencies.util]
path = "../util"
version = "0.3"
`,
			wantPackage: Package{Name: "api"},
			wantPaths:   []Dependency{{Name: "util", Version: "0.3", Path: "../util"}},
		},
		{
			name: "sorted with build dependencies last",
			content: `[package]
name = "app"

[build-dependencies]
codegen = { path = "../codegen" }

[dependencies]
zeta = { path = "../zeta" }
alpha = { path = "../alpha" }
`,
			wantPackage: Package{Name: "app"},
			wantPaths: []Dependency{
				{Name: "alpha", Path: "../alpha"},
				{Name: "zeta", Path: "../zeta"},
				{Name: "codegen", Path: "../codegen"},
			},
		},
		{
			name: "workspace inherited version",
			content: `[package]
name = "member"
version.workspace = true
`,
			wantPackage: Package{Name: "member"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewParser().Decode(strings.NewReader(tt.content))

			require.NoError(t, err)
			assert.Equal(t, tt.wantPackage, m.Package)
			assert.Equal(t, tt.wantPaths, m.PathDependencies())
		})
	}
}

func TestParser_Decode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed toml", "[package\nname = \"x\""},
		{"non-string path", "[dependencies]\nfoo = { path = 3 }\n"},
		{"unsupported value", "[dependencies]\nfoo = 3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().Decode(strings.NewReader(tt.content))
			assert.Error(t, err)
		})
	}
}

func TestParser_Parse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Cargo.toml")
	require.NoError(t, os.WriteFile(path, []byte("[package]\nname = \"x\"\n"), 0644))

	m, err := NewParser().Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "x", m.Package.Name)
	assert.Empty(t, m.PathDependencies())
}

func TestParser_Parse_Missing(t *testing.T) {
	_, err := NewParser().Parse(filepath.Join(t.TempDir(), "Cargo.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading manifest")
}

func TestParser_Parse_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Cargo.toml")
	require.NoError(t, os.WriteFile(path, []byte("[dependencies\n"), 0644))

	_, err := NewParser().Parse(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}
