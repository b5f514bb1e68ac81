// Package dockerfile renders a layered Dockerfile for a set of ordered crates.
package dockerfile

import (
	"fmt"
	"io"

	"github.com/frederic-klein/cargo-dockerfile/internal/crate"
)

const builderStage = "builder"

// Emitter writes Dockerfiles.
type Emitter struct {
	w   io.Writer
	cfg Config
}

// NewEmitter creates a new Dockerfile emitter.
func NewEmitter(w io.Writer, cfg Config) *Emitter {
	return &Emitter{w: w, cfg: cfg}
}

// Emit writes the Dockerfile for libs, given in build order, and bins.
func (e *Emitter) Emit(libs, bins []crate.Crate) error {
	for i, block := range Plan(e.cfg, libs, bins) {
		if i > 0 {
			if _, err := fmt.Fprint(e.w, "\n"); err != nil {
				return err
			}
		}
		for _, step := range block {
			for _, instr := range step.Instructions {
				if _, err := fmt.Fprintf(e.w, "%s\n", instr); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Plan lays out the Dockerfile as blocks of named steps. Blocks are separated
// by one blank line when rendered.
func Plan(cfg Config, libs, bins []crate.Crate) []Block {
	rootBin, hasRootBin := findRootBinary(bins)

	workdir := "/"
	header := Block{{Name: "builder-header", Instructions: []string{
		fmt.Sprintf("FROM %s as %s", cfg.BuilderImage, builderStage),
	}}}
	if hasRootBin {
		workdir = "/" + rootBin.Name
		header = append(header, Step{Name: "root-binary-scaffold", Instructions: []string{
			"RUN USER=root cargo new --bin " + rootBin.Name,
		}})
	}
	blocks := []Block{header}

	for _, c := range layerCrates(libs, bins, hasRootBin) {
		blocks = append(blocks, cacheLayer{workdir: workdir, crate: c}.blocks()...)
	}

	if hasRootBin {
		blocks = append(blocks,
			Block{{Name: "workdir", Instructions: []string{"WORKDIR " + workdir}}},
			rootBinaryBuild(rootBin),
		)
	}

	if cfg.MultiStage() {
		blocks = append(blocks, Block{{Name: "runner-header", Instructions: []string{"FROM " + cfg.RunnerImage}}})
	}

	blocks = append(blocks,
		Block{{Name: "arguments", Instructions: []string{
			"ARG APP=" + cfg.AppPath,
			"ARG APP_USER=" + cfg.User,
		}}},
		Block{
			{Name: "user-setup", Instructions: []string{
				"RUN groupadd $APP_USER && useradd -g $APP_USER $APP_USER && mkdir -p $APP",
			}},
			installBinaries(cfg, workdir, bins),
		},
		Block{{Name: "runtime", Instructions: []string{
			"USER $APP_USER",
			"WORKDIR $APP",
		}}},
	)

	if entrypoint, ok := execForm(cfg.Entrypoint); ok {
		blocks = append(blocks, Block{{Name: "entrypoint", Instructions: []string{"ENTRYPOINT " + entrypoint}}})
	}
	if cmd, ok := execForm(cfg.Cmd); ok {
		blocks = append(blocks, Block{{Name: "cmd", Instructions: []string{"CMD " + cmd}}})
	}

	return blocks
}

// findRootBinary returns the binary rooted at the scan root, if any.
func findRootBinary(bins []crate.Crate) (crate.Crate, bool) {
	for _, b := range bins {
		if b.IsRoot() {
			return b, true
		}
	}
	return crate.Crate{}, false
}

// layerCrates lists the crates that get their own cache layer: libraries in
// the given order, then binaries. The root package is built separately when
// it has a binary, so it is skipped here in either role.
func layerCrates(libs, bins []crate.Crate, hasRootBin bool) []crate.Crate {
	out := make([]crate.Crate, 0, len(libs)+len(bins))
	for _, c := range libs {
		if hasRootBin && c.IsRoot() {
			continue
		}
		out = append(out, c)
	}
	for _, c := range bins {
		if c.IsRoot() {
			continue
		}
		out = append(out, c)
	}
	return out
}

// rootBinaryBuild builds the root package on top of the scaffold created in
// the builder header, after every other crate has been cached.
func rootBinaryBuild(c crate.Crate) Block {
	return Block{
		{Name: "copy-manifest", Instructions: []string{
			fmt.Sprintf("COPY ./%s ./%s", crate.ManifestFile, crate.ManifestFile),
		}},
		{Name: "build-dependencies", Instructions: []string{buildReleaseCmd}},
		{Name: "remove-placeholder", Instructions: []string{removePlaceholder(c)}},
		{Name: "copy-sources", Instructions: []string{"ADD . ./"}},
		{Name: "build-release", Instructions: []string{buildReleaseCmd}},
	}
}

func installBinaries(cfg Config, workdir string, bins []crate.Crate) Step {
	copyCmd := "RUN cp"
	if cfg.MultiStage() {
		copyCmd = "COPY --from=" + builderStage
	}

	step := Step{Name: "install-binaries"}
	for _, b := range bins {
		step.Instructions = append(step.Instructions,
			fmt.Sprintf("%s %s $APP/%s", copyCmd, artifactPath(workdir, b), b.ArtifactName()))
	}
	return step
}
