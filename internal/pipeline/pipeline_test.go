package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frederic-klein/cargo-dockerfile/internal/crate"
	"github.com/frederic-klein/cargo-dockerfile/internal/dockerfile"
)

var testConfig = dockerfile.Config{BuilderImage: "rust:latest", AppPath: "/app", User: "app"}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func names(crates []crate.Crate) []string {
	out := make([]string, len(crates))
	for i, c := range crates {
		out[i] = c.RelPath
	}
	return out
}

var scaffoldRe = regexp.MustCompile(`(?m)^RUN USER=root cargo new --(?:lib|bin) (\S+)$`)

func scaffolds(dockerfile []byte) []string {
	var out []string
	for _, m := range scaffoldRe.FindAllSubmatch(dockerfile, -1) {
		out = append(out, string(m[1]))
	}
	return out
}

// workspace: a depends on b, binary c depends on both.
var workspace = map[string]string{
	"a/Cargo.toml":  "[package]\nname = \"a\"\nversion = \"0.1.0\"\n\n[dependencies]\nb = { path = \"../b\" }\n",
	"a/src/lib.rs":  "",
	"b/Cargo.toml":  "[package]\nname = \"b\"\nversion = \"0.2.0\"\n\n[dependencies]\nserde = \"1\"\n",
	"b/src/lib.rs":  "",
	"c/Cargo.toml":  "[package]\nname = \"c-server\"\nversion = \"1.0.0\"\n\n[dependencies]\na = { path = \"../a\" }\nb = { path = \"../b\" }\n",
	"c/src/main.rs": "",
}

func TestPipeline_Discover(t *testing.T) {
	// Arrange
	root := writeTree(t, workspace)

	// Act
	res, err := New(nil).Discover(context.Background(), root)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, names(res.Libs))
	assert.Equal(t, []string{"c"}, names(res.Bins))
	assert.Empty(t, res.Omitted)

	assert.Equal(t, "b", res.Libs[0].Package)
	assert.Equal(t, "0.2.0", res.Libs[0].Version)
	assert.Equal(t, "c-server", res.Bins[0].Package)
	assert.Equal(t, []string{"b", "a", "c"}, names(res.Crates()))
}

func TestPipeline_Generate_LayerOrder(t *testing.T) {
	root := writeTree(t, workspace)

	out, _, err := New(nil).Generate(context.Background(), root, testConfig)

	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, scaffolds(out))
	assert.Contains(t, string(out), "RUN rm src/*.rs ./target/release/deps/c_server*\n")
	assert.Contains(t, string(out), "RUN cp /c/target/release/c-server $APP/c-server\n")
}

func TestPipeline_Generate_Deterministic(t *testing.T) {
	root := writeTree(t, map[string]string{
		"z/Cargo.toml":       "[package]\nname = \"z\"\n",
		"z/src/lib.rs":       "",
		"m/Cargo.toml":       "[package]\nname = \"m\"\n[dependencies]\nz = { path = \"../z\" }\n",
		"m/src/lib.rs":       "",
		"k/Cargo.toml":       "[package]\nname = \"k\"\n[dependencies]\nz = { path = \"../z\" }\nm = { path = \"../m\" }\n",
		"k/src/lib.rs":       "",
		"tools/x/src/main.rs": "",
	})
	cfg := testConfig
	cfg.RunnerImage = "debian:bookworm-slim"
	cfg.Entrypoint = "x --serve"

	first, _, err := New(nil).Generate(context.Background(), root, cfg)
	require.NoError(t, err)
	second, _, err := New(nil).Generate(context.Background(), root, cfg)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, []string{"z", "m", "k", "tools/x"}, scaffolds(first))
}

func TestPipeline_Generate_RootBinary(t *testing.T) {
	root := writeTree(t, map[string]string{
		"Cargo.toml":  "[package]\nname = \"hello\"\nversion = \"0.1.0\"\n",
		"src/main.rs": "fn main() {}\n",
	})
	dirName := filepath.Base(root)

	out, res, err := New(nil).Generate(context.Background(), root, testConfig)

	require.NoError(t, err)
	text := string(out)
	assert.Equal(t, 1, strings.Count(text, "cargo new"))
	assert.Contains(t, text, "RUN USER=root cargo new --bin "+dirName+"\n")
	assert.Equal(t, 2, strings.Count(text, "RUN cargo build --release"))
	assert.Equal(t, 1, strings.Count(text, "FROM "))
	assert.Contains(t, text, "RUN cp /"+dirName+"/target/release/hello $APP/hello\n")
	require.Len(t, res.Bins, 1)
	assert.True(t, res.Bins[0].IsRoot())
}

func TestPipeline_Generate_EntryFilesInRootIgnored(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.rs":         "",
		"core/Cargo.toml": "[package]\nname = \"core\"\n",
		"core/src/lib.rs": "",
	})

	data, res, err := New(nil).Generate(context.Background(), root, testConfig)

	require.NoError(t, err)
	assert.Equal(t, []string{"core"}, names(res.Libs))
	assert.Empty(t, res.Bins)
	assert.Equal(t, []string{"core"}, scaffolds(data))
	assert.NotContains(t, string(data), "..")
}

func TestPipeline_Discover_BinaryWithoutManifest(t *testing.T) {
	root := writeTree(t, map[string]string{"tool/src/main.rs": ""})

	res, err := New(nil).Discover(context.Background(), root)

	require.NoError(t, err)
	require.Len(t, res.Bins, 1)
	assert.Empty(t, res.Bins[0].Package)
	assert.Equal(t, "tool", res.Bins[0].ArtifactName())
}

func TestPipeline_Discover_Cycle(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a/Cargo.toml": "[dependencies]\nb = { path = \"../b\" }\n",
		"a/src/lib.rs": "",
		"b/Cargo.toml": "[dependencies]\na = { path = \"../a\" }\n",
		"b/src/lib.rs": "",
		"c/Cargo.toml": "",
		"c/src/lib.rs": "",
	})

	res, err := New(nil).Discover(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, names(res.Libs))
	require.Len(t, res.Omitted, 2)
	assert.Equal(t, "a", filepath.Base(res.Omitted[0]))
	assert.Equal(t, "b", filepath.Base(res.Omitted[1]))
}

func TestPipeline_Discover_MalformedManifest(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a/Cargo.toml": "[package\n",
		"a/src/lib.rs": "",
	})

	_, err := New(nil).Discover(context.Background(), root)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "building dependency graph")
}

func TestPipeline_Discover_MissingLibraryManifest(t *testing.T) {
	root := writeTree(t, map[string]string{"a/src/lib.rs": ""})

	_, err := New(nil).Discover(context.Background(), root)

	assert.Error(t, err)
}

func TestPipeline_Discover_Cancelled(t *testing.T) {
	root := writeTree(t, workspace)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).Discover(ctx, root)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestOutputPath(t *testing.T) {
	root := t.TempDir()
	assert.Equal(t, filepath.Join(root, DefaultOutput), OutputPath(root))

	require.NoError(t, os.WriteFile(filepath.Join(root, DefaultOutput), []byte("FROM scratch\n"), 0644))
	assert.Equal(t, filepath.Join(root, FallbackOutput), OutputPath(root))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultOutput)

	require.NoError(t, WriteFile(path, []byte("FROM scratch\n")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "FROM scratch\n", string(data))

	err = WriteFile(filepath.Join(t.TempDir(), "missing", DefaultOutput), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "writing dockerfile")
}
