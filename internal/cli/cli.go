package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/asynkron/versionpatcher/internal/config"
	"github.com/asynkron/versionpatcher/internal/logging"
	"github.com/asynkron/versionpatcher/internal/report"
	"github.com/asynkron/versionpatcher/internal/source"
	"github.com/asynkron/versionpatcher/pkg/patch"
)

// Name is the binary name shown in help output.
const Name = "versionpatcher"

// failure marks errors raised after argument parsing succeeded. Everything
// else returned by the command tree is a usage error.
type failure struct{ err error }

func (f failure) Error() string { return f.err.Error() }
func (f failure) Unwrap() error { return f.err }

// Run executes the versionpatcher command tree using the provided CLI
// arguments (without the program name). It returns a POSIX-style exit code:
// 0 on success, 1 when an update or inspection fails, 2 on usage errors.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	app := newApp(stdout, stderr)
	err := app.Run(ctx, append([]string{Name}, args...))
	if err == nil {
		return 0
	}
	var f failure
	if errors.As(err, &f) {
		report.NewPrinter(stderr, !app.Bool("no-color")).Error(f.err)
		return 1
	}
	fmt.Fprintf(stderr, "%s: %v\n", Name, err)
	return 2
}

func newApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      Name,
		Usage:     "apply versioned update containers to a directory tree",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to the YAML configuration file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (overrides configuration)",
			},
			&cli.BoolFlag{
				Name:    "no-color",
				Usage:   "disable styled output",
				Sources: cli.EnvVars("NO_COLOR"),
			},
		},
		Commands: []*cli.Command{
			applyCommand(stdout, stderr, false),
			applyCommand(stdout, stderr, true),
			inspectCommand(stdout),
		},
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}

func applyCommand(stdout, stderr io.Writer, planOnly bool) *cli.Command {
	name, usage := "apply", "apply a container to a source directory, writing the result to a destination"
	if planOnly {
		name, usage = "plan", "show what apply would do without writing anything"
	}
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "source",
			Aliases:  []string{"s"},
			Usage:    "directory holding the current version",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "dest",
			Aliases: []string{"d"},
			Usage:   "directory to write the new version to (defaults to --source)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "list unchanged files copied to the destination",
		},
	}
	if !planOnly {
		flags = append(flags,
			&cli.BoolFlag{Name: "dry-run", Usage: "plan only; do not write to the destination"},
			&cli.BoolFlag{Name: "strict-deletions", Usage: "fail when an obsolete file cannot be deleted"},
		)
	}

	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<container>",
		Flags:     flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			location, err := containerArg(cmd)
			if err != nil {
				return err
			}
			env, err := setup(cmd, stderr)
			if err != nil {
				return failure{err}
			}

			src := cmd.String("source")
			dst := cmd.String("dest")
			if strings.TrimSpace(dst) == "" {
				dst = src
			}
			dryRun := planOnly || cmd.Bool("dry-run")

			handle, m, err := openManifest(ctx, location, env.cfg)
			if err != nil {
				return failure{err}
			}
			defer handle.Close()

			opts := patch.Options{
				Logger:          env.log,
				StrictDeletions: env.cfg.StrictDeletions || (!planOnly && cmd.Bool("strict-deletions")),
			}
			ctx = logging.WithTraceID(ctx, logging.NewTraceID())
			env.log.Info(ctx, "container opened",
				patch.F("location", location),
				patch.F("version", m.Version),
				patch.F("source", src),
				patch.F("dest", dst),
				patch.F("dry_run", dryRun))

			var results []patch.Result
			if dryRun {
				results, err = patch.Plan(m, src, dst, opts)
			} else {
				results, err = patch.Apply(ctx, m, src, dst, opts)
			}
			printer := report.NewPrinter(stdout, !cmd.Bool("no-color"))
			if err != nil {
				if len(results) > 0 && !dryRun {
					printer.Results(results, dryRun, cmd.Bool("verbose"))
				}
				env.log.Error(ctx, "update failed", err)
				return failure{err}
			}
			printer.Results(results, dryRun, cmd.Bool("verbose"))
			return nil
		},
	}
}

func inspectCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "list the patches, additions and deletions in a container",
		ArgsUsage: "<container>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			location, err := containerArg(cmd)
			if err != nil {
				return err
			}
			env, err := setup(cmd, io.Discard)
			if err != nil {
				return failure{err}
			}
			handle, m, err := openManifest(ctx, location, env.cfg)
			if err != nil {
				return failure{err}
			}
			defer handle.Close()

			report.NewPrinter(stdout, !cmd.Bool("no-color")).Manifest(location, handle.Size, m)
			return nil
		},
	}
}

type environment struct {
	cfg config.Config
	log *logging.Logger
}

func setup(cmd *cli.Command, logOut io.Writer) (environment, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return environment{}, err
	}
	levelName := cfg.LogLevel
	if v := strings.TrimSpace(cmd.String("log-level")); v != "" {
		levelName = v
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return environment{}, fmt.Errorf("log level %q: %w", levelName, err)
	}
	return environment{cfg: cfg, log: logging.New(logOut, level)}, nil
}

func containerArg(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", fmt.Errorf("%s: expected exactly one container argument, got %d", cmd.Name, cmd.Args().Len())
	}
	return cmd.Args().First(), nil
}

func openManifest(ctx context.Context, location string, cfg config.Config) (*source.Handle, *patch.Manifest, error) {
	handle, err := source.Open(ctx, location, source.Options{
		S3Config: source.S3Config{
			Region:    cfg.S3.Region,
			Profile:   cfg.S3.Profile,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		},
	})
	if err != nil {
		return nil, nil, err
	}
	m, err := patch.Parse(handle)
	if err != nil {
		_ = handle.Close()
		return nil, nil, err
	}
	return handle, m, nil
}
