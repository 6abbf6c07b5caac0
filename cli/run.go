package cli

// This file contains the run command, which runs a test action with
// xcodebuild and reports the result bundle it produced.

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/xctools/xctools/config"
	"github.com/xctools/xctools/xcodebuild"
)

const rawOutputName = "rawOutput.xcresult"

type runArgs struct {
	project     string
	scheme      string
	destination string
	tests       []string
}

// parseRunArgs fills the positional arguments of the run command, falling
// back to the configured defaults for the ones left out.
func parseRunArgs(args []string, cfg config.RunConfig) (runArgs, error) {
	r := runArgs{
		project:     cfg.Project,
		scheme:      cfg.Scheme,
		destination: cfg.Destination,
	}
	fields := []*string{&r.project, &r.scheme, &r.destination}
	for i, arg := range args {
		if i < len(fields) {
			*fields[i] = arg
			continue
		}
		r.tests = append(r.tests, arg)
	}

	switch {
	case r.project == "":
		return runArgs{}, fmt.Errorf("no project specified")
	case r.scheme == "":
		return runArgs{}, fmt.Errorf("no scheme specified")
	case r.destination == "":
		return runArgs{}, fmt.Errorf("destination must be a valid xcodebuild destination")
	}
	return r, nil
}

// runEnv returns the environment of xcodebuild. PATH is passed through so
// that the tools xcodebuild invokes can be found.
func runEnv(xcodePath, path string) []string {
	var env []string
	if xcodePath != "" {
		env = append(env, "DEVELOPER_DIR="+xcodePath)
	}
	if path != "" {
		env = append(env, "PATH="+path)
	}
	return env
}

func (a *App) run(ctx *cli.Context) error {
	args, err := parseRunArgs(ctx.Args().Slice(), a.cfg.Run)
	if err != nil {
		return err
	}

	configuration, err := xcodebuild.ParseConfiguration(stringOr(ctx, "configuration", a.cfg.Run.Configuration))
	if err != nil {
		return err
	}
	packagesPath := stringOr(ctx, "swift-packages-path", a.cfg.Run.SwiftPackagesPath)
	xcodePath := stringOr(ctx, "xcode-override", a.cfg.Run.XcodePath)

	for _, p := range []struct{ what, path string }{
		{"project", args.project},
		{"Swift packages", packagesPath},
		{"Xcode", xcodePath},
	} {
		if p.path == "" {
			continue
		}
		if _, err := os.Stat(p.path); err != nil {
			return fmt.Errorf("invalid %s path: %w", p.what, err)
		}
	}

	resultsPath := ctx.String("results-path")
	if resultsPath != "" {
		resultsPath = filepath.Join(resultsPath, rawOutputName)
	}

	process := xcodebuild.Process{
		ProjectPath:              args.project,
		Configuration:            configuration,
		Scheme:                   args.scheme,
		ClonedSourcePackagesPath: packagesPath,
		SymRoot:                  ctx.String("sym-root"),
	}

	bundlePath, err := process.RunTests(ctx.Context, a.logger, xcodebuild.TestRun{
		Destination: args.destination,
		ResultsPath: resultsPath,
		TestNames:   args.tests,
		Env:         runEnv(xcodePath, os.Getenv("PATH")),
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}, nil)
	if err != nil {
		return err
	}

	fmt.Println(bundlePath)
	return nil
}

// stringOr returns the flag value when it was set on the command line and
// fallback otherwise.
func stringOr(ctx *cli.Context, name, fallback string) string {
	if ctx.IsSet(name) {
		return ctx.String(name)
	}
	return fallback
}
