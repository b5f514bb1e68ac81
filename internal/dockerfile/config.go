package dockerfile

// Config is the image configuration the generated Dockerfile is built for.
// Empty optional fields are treated as unset.
type Config struct {
	BuilderImage string
	RunnerImage  string // optional; adds a runtime stage
	AppPath      string
	User         string
	Cmd          string // optional
	Entrypoint   string // optional
}

// MultiStage reports whether binaries are copied into a separate runner stage.
func (c Config) MultiStage() bool {
	return c.RunnerImage != ""
}
