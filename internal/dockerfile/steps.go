package dockerfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/frederic-klein/cargo-dockerfile/internal/crate"
)

const (
	buildReleaseCmd = "RUN cargo build --release"
	releaseDir      = "target/release"
)

// Step is a named group of Dockerfile instructions.
type Step struct {
	Name         string
	Instructions []string
}

// Block is a run of steps rendered without blank lines between them.
type Block []Step

// Names lists the step names of the block in order.
func (b Block) Names() []string {
	names := make([]string, len(b))
	for i, s := range b {
		names[i] = s.Name
	}
	return names
}

// cacheLayer builds one crate in two phases. The first build sees only the
// real Cargo.toml next to placeholder sources, so its layer holds the compiled
// dependencies and stays cached until the manifest changes. The second build
// compiles the real sources on top of it.
type cacheLayer struct {
	workdir string
	crate   crate.Crate
}

// dir is where the crate lives below the working directory.
func (l cacheLayer) dir() string {
	if l.crate.IsRoot() {
		return l.crate.Name
	}
	return l.crate.RelPath
}

// source is the crate's location in the build context.
func (l cacheLayer) source() string {
	if l.crate.IsRoot() {
		return "."
	}
	return "./" + l.crate.RelPath
}

func (l cacheLayer) blocks() []Block {
	return []Block{
		{l.workdirStep()},
		{
			l.scaffold(),
			l.copyManifest(),
			l.buildDependencies(),
			l.removePlaceholder(),
			l.copySources(),
			l.buildRelease(),
		},
	}
}

func (l cacheLayer) workdirStep() Step {
	return Step{Name: "workdir", Instructions: []string{"WORKDIR " + l.workdir}}
}

func (l cacheLayer) scaffold() Step {
	flag := "--lib"
	if l.crate.Kind == crate.Binary {
		flag = "--bin"
	}
	return Step{Name: "scaffold", Instructions: []string{
		fmt.Sprintf("RUN USER=root cargo new %s %s", flag, l.dir()),
		"WORKDIR ./" + l.dir(),
	}}
}

func (l cacheLayer) copyManifest() Step {
	return Step{Name: "copy-manifest", Instructions: []string{
		fmt.Sprintf("COPY %s/%s ./%s", l.source(), crate.ManifestFile, crate.ManifestFile),
	}}
}

func (l cacheLayer) buildDependencies() Step {
	return Step{Name: "build-dependencies", Instructions: []string{buildReleaseCmd}}
}

func (l cacheLayer) removePlaceholder() Step {
	return Step{Name: "remove-placeholder", Instructions: []string{removePlaceholder(l.crate)}}
}

func (l cacheLayer) copySources() Step {
	return Step{Name: "copy-sources", Instructions: []string{fmt.Sprintf("ADD %s ./", l.source())}}
}

func (l cacheLayer) buildRelease() Step {
	return Step{Name: "build-release", Instructions: []string{buildReleaseCmd}}
}

// removePlaceholder deletes the stub sources. For binaries it also deletes the
// stub's compiled objects so cargo relinks the real binary.
func removePlaceholder(c crate.Crate) string {
	if c.Kind == crate.Binary {
		return fmt.Sprintf("RUN rm src/*.rs ./%s/deps/%s*", releaseDir, c.DepsPrefix())
	}
	return "RUN rm src/*.rs"
}

// execForm renders s as a JSON exec array of its fields. Fields are separated
// by ASCII whitespace only; other spaces such as NBSP stay inside a field.
func execForm(s string) (string, bool) {
	fields := strings.FieldsFunc(s, isASCIISpace)
	if len(fields) == 0 {
		return "", false
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = jsonString(f)
	}
	return "[" + strings.Join(quoted, ", ") + "]", true
}

func isASCIISpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\f', '\r':
		return true
	}
	return false
}

// jsonString quotes s as a JSON string literal, as the exec form requires.
func jsonString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) // a string always encodes
	return strings.TrimSuffix(buf.String(), "\n")
}

// artifactPath is where a binary's release build ends up inside the builder.
func artifactPath(workdir string, c crate.Crate) string {
	if c.IsRoot() {
		return path.Join(workdir, releaseDir, c.ArtifactName())
	}
	return path.Join(workdir, c.RelPath, releaseDir, c.ArtifactName())
}
