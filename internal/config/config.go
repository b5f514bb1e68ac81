// Package config resolves the generator settings from flags, environment
// variables and an optional .cargo-dockerfile.yaml in the project root.
//
// Precedence, highest first: flag, CARGO_DOCKERFILE_* env var, config file,
// default.
package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/frederic-klein/cargo-dockerfile/internal/dockerfile"
)

const (
	DefaultBuilderImage = "rust:latest"
	DefaultAppPath      = "/app"
	DefaultLogFormat    = "text"

	EnvPrefix = "CARGO_DOCKERFILE"
	FileName  = ".cargo-dockerfile"
)

// Setting keys. They double as flag names and, upper-cased with '-' -> '_',
// as env var suffixes.
const (
	KeyBuilderImage = "builder-image"
	KeyRunnerImage  = "runner-image"
	KeyAppPath      = "app-path"
	KeyUser         = "user"
	KeyCmd          = "cmd"
	KeyEntrypoint   = "entrypoint"
	KeyDir          = "dir"
	KeyOutput       = "output"
	KeyStdout       = "stdout"
	KeyVerbose      = "verbose"
	KeyLogFormat    = "log-format"
)

// Options is everything a generate run needs.
type Options struct {
	Dockerfile dockerfile.Config
	Dir        string
	Output     string // explicit output path; empty selects the default name
	Stdout     bool
	Verbose    bool
	LogFormat  string
}

// RegisterFlags defines the generator flags on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP(KeyBuilderImage, "b", DefaultBuilderImage, "The builder image to use. Normally you would want to use rust:<tag>")
	fs.StringP(KeyRunnerImage, "r", "", "The runner image for a final stage holding only the binaries. Without it no runner stage is generated")
	fs.StringP(KeyAppPath, "a", DefaultAppPath, "The path where the binaries will be installed")
	fs.StringP(KeyUser, "u", DefaultUser(), "The user to create inside the image")
	fs.StringP(KeyCmd, "c", "", "The command to set for Dockerfile CMD")
	fs.StringP(KeyEntrypoint, "e", "", "The entrypoint to set for Dockerfile ENTRYPOINT")
	fs.StringP(KeyDir, "d", ".", "Project root to scan")
	fs.StringP(KeyOutput, "o", "", "Output path (default: Dockerfile, or cargo-dockerfile.Dockerfile if that exists)")
	fs.Bool(KeyStdout, false, "Print the Dockerfile instead of writing it")
	fs.BoolP(KeyVerbose, "v", false, "Verbose output")
	fs.String(KeyLogFormat, DefaultLogFormat, "Log format: text or json")
}

// New returns a viper instance bound to fs and the environment.
func New(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return v, nil
}

// Load reads the optional config file from the project directory and
// returns the resolved options.
func Load(v *viper.Viper) (*Options, error) {
	dir := v.GetString(KeyDir)
	if dir == "" {
		dir = "."
	}

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	opts := &Options{
		Dockerfile: dockerfile.Config{
			BuilderImage: strings.TrimSpace(v.GetString(KeyBuilderImage)),
			RunnerImage:  strings.TrimSpace(v.GetString(KeyRunnerImage)),
			AppPath:      strings.TrimSpace(v.GetString(KeyAppPath)),
			User:         strings.TrimSpace(v.GetString(KeyUser)),
			Cmd:          v.GetString(KeyCmd),
			Entrypoint:   v.GetString(KeyEntrypoint),
		},
		Dir:       dir,
		Output:    v.GetString(KeyOutput),
		Stdout:    v.GetBool(KeyStdout),
		Verbose:   v.GetBool(KeyVerbose),
		LogFormat: v.GetString(KeyLogFormat),
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Validate checks the settings the generator cannot default.
func (o *Options) Validate() error {
	var errs []error
	if o.Dockerfile.BuilderImage == "" {
		errs = append(errs, errors.New("builder image must not be empty"))
	}
	if o.Dockerfile.AppPath == "" {
		errs = append(errs, errors.New("app path must not be empty"))
	}
	if o.Dockerfile.User == "" {
		errs = append(errs, errors.New("user must not be empty"))
	}
	switch o.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", o.LogFormat))
	}
	return errors.Join(errs...)
}

// DefaultUser returns the name of the invoking OS user.
func DefaultUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		// Windows reports DOMAIN\name.
		if i := strings.LastIndex(u.Username, `\`); i >= 0 {
			return u.Username[i+1:]
		}
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "app"
}
