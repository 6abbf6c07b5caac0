package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/xctools/xctools/config"
)

const AppName = "xctools"

type App struct {
	logger zerolog.Logger
	cli    *cli.App
	cfg    *config.Config
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger: logger,
		cfg:    config.New(),
		cli: &cli.App{
			Name:  AppName,
			Usage: "Run Xcode UI tests and extract their results",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "verbose",
					Usage: "Enable verbose (debug) logging",
				},
				&cli.StringFlag{
					Name:  "config",
					Usage: "Path to the project configuration (default: nearest " + config.FileName + ")",
				},
			},
		},
	}
	app.cli.Before = app.before

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "run",
		Usage:     "Run the tests of a scheme with xcodebuild",
		ArgsUsage: "[PROJECT [SCHEME [DESTINATION [TEST...]]]]",
		Action:    app.run,
		Description: `Run a clean test action and print the path of the result bundle.

Project, scheme and destination default to the run section of the project
configuration. Any further arguments restrict the run to the given tests.

Examples:
  xctools run App.xcodeproj App "platform=iOS Simulator,name=iPhone 15"
  xctools run App.xcodeproj App "id=ABCD" AppUITests/LoginTests`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "configuration",
				Aliases: []string{"c"},
				Usage:   "Configuration to build: Debug | Release",
			},
			&cli.StringFlag{
				Name:  "results-path",
				Usage: "Directory receiving the result bundle (rawOutput.xcresult)",
			},
			&cli.StringFlag{
				Name:  "swift-packages-path",
				Usage: "Path to look for or download Swift packages",
			},
			&cli.StringFlag{
				Name:  "xcode-override",
				Usage: "Override path of Xcode used by xcrun",
			},
			&cli.StringFlag{
				Name:  "sym-root",
				Usage: "Override the build products directory",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "extract",
		Usage:     "Extract test results from a result bundle",
		ArgsUsage: "XCRESULT [DESTINATION]",
		Action:    app.extract,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "extract-logs",
				Usage: "Also export build and test diagnostics",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"j"},
				Usage:   "Number of concurrent attachment exports",
			},
			&cli.BoolFlag{
				Name:  "profile",
				Usage: "Write a pprof timing profile next to each suite report",
			},
			&cli.StringFlag{
				Name:  "ffmpeg",
				Usage: "Path of the ffmpeg binary used to capture failure screenshots",
			},
			&cli.BoolFlag{
				Name:  "upload",
				Usage: "Upload the archive to the configured bucket",
			},
			&cli.BoolFlag{
				Name:  "legacy",
				Usage: "Pass --legacy to xcresulttool (required by Xcode 16 and later)",
				Value: true,
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "list",
		Usage:  "List extracted suite reports",
		Action: app.list,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Directory to search for suite reports",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Filter by suite name",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of results (default: 20)",
				Value:   20,
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:            "view",
		Usage:           "View an extracted suite report",
		ArgsUsage:       "[INDEX|NAME] [-- PPROF ARGS]",
		Action:          app.view,
		SkipFlagParsing: true,
		Description: `View the step tree of a suite report found below the current directory.

Arguments:
  0           View the newest suite (default)
  -1          View the 2nd newest suite
  <name>      View the newest suite whose name starts with <name>

Any further arguments open the suite's timing profile (written by
extract --profile) with go tool pprof.

Examples:
  xctools view                  # View newest suite
  xctools view -1               # View 2nd newest suite
  xctools view Smoke -- -top    # Top steps of the newest SmokeTests run`,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "flatten",
		Usage:     "Collapse chains of single subdirectories",
		ArgsUsage: "DIR",
		Action:    app.flatten,
	})
	return app
}

func (a *App) before(ctx *cli.Context) error {
	if ctx.Bool("verbose") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg, err := config.Load(ctx.String("config"), wd)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := config.LoadEnv(wd); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to load .env")
	}
	return nil
}

func (a *App) Run(ctx context.Context, args []string) error {
	return a.cli.RunContext(ctx, args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && len(commit) >= 8 {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}
