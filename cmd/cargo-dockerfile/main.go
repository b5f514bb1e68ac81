package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/frederic-klein/cargo-dockerfile/internal/config"
	"github.com/frederic-klein/cargo-dockerfile/internal/inventory"
	"github.com/frederic-klein/cargo-dockerfile/internal/logging"
	"github.com/frederic-klein/cargo-dockerfile/internal/pipeline"
)

const version = "0.2.0"

// cargoSubcommand is the name cargo passes as the first argument when the
// tool runs as `cargo dockerfile`.
const cargoSubcommand = "dockerfile"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := newRootCmd()
	rootCmd.SetArgs(stripCargoSubcommand(os.Args[1:]))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "cargo-dockerfile",
		Short:        "Generate a layered Dockerfile for a Cargo project",
		Long:         "cargo-dockerfile finds every crate in a Cargo source tree, orders the libraries by their path dependencies and writes a Dockerfile that caches each crate's dependencies in its own layer.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runGenerate,
	}

	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newCratesCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newCratesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "crates",
		Short: "List the crates of the project in build order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			log := logging.New(logging.Level(opts.Verbose), opts.LogFormat, cmd.ErrOrStderr())

			res, err := pipeline.New(log).Discover(cmd.Context(), opts.Dir)
			if err != nil {
				return fmt.Errorf("discovering crates: %w", err)
			}
			return inventory.New(res).Write(cmd.OutOrStdout(), format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", inventory.FormatYAML, "Output format: yaml or json")

	return cmd
}

// newVersionCmd creates the "version" command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print cargo-dockerfile version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cargo-dockerfile %s\n", version)
		},
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	log := logging.New(logging.Level(opts.Verbose), opts.LogFormat, cmd.ErrOrStderr())

	log.Debug("generating dockerfile", "dir", opts.Dir, "builder", opts.Dockerfile.BuilderImage, "runner", opts.Dockerfile.RunnerImage)
	data, res, err := pipeline.New(log).Generate(cmd.Context(), opts.Dir, opts.Dockerfile)
	if err != nil {
		return fmt.Errorf("generating dockerfile: %w", err)
	}

	if opts.Stdout {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}

	outPath := opts.Output
	if outPath == "" {
		outPath = pipeline.OutputPath(res.Root)
	}
	if err := pipeline.WriteFile(outPath, data); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Generated %s with %d crates\n", outPath, len(res.Libs)+len(res.Bins))
	return nil
}

func loadOptions(cmd *cobra.Command) (*config.Options, error) {
	v, err := config.New(cmd.Flags())
	if err != nil {
		return nil, err
	}
	opts, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return opts, nil
}

// stripCargoSubcommand drops the subcommand name cargo inserts before the
// user's arguments.
func stripCargoSubcommand(args []string) []string {
	if len(args) > 0 && args[0] == cargoSubcommand {
		return args[1:]
	}
	return args
}
