package xcodebuild

// xcodebuild.go provides utilities for running test actions with xcodebuild
// and locating the result bundle they produce.

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"
)

// Configuration is the build configuration passed to xcodebuild.
type Configuration string

const (
	ConfigurationDebug   Configuration = "Debug"
	ConfigurationRelease Configuration = "Release"
)

// ParseConfiguration validates a configuration name.
func ParseConfiguration(s string) (Configuration, error) {
	switch c := Configuration(s); c {
	case ConfigurationDebug, ConfigurationRelease:
		return c, nil
	case "":
		return ConfigurationRelease, nil
	default:
		return "", fmt.Errorf("invalid configuration %q: must be Debug or Release", s)
	}
}

// Process describes the project an xcodebuild invocation builds.
type Process struct {
	ProjectPath   string
	Configuration Configuration
	Scheme        string
	// ClonedSourcePackagesPath is where Swift packages are looked up or
	// downloaded. Optional.
	ClonedSourcePackagesPath string
	// SymRoot overrides the build products directory. Optional.
	SymRoot string
}

// TestRun holds the arguments of a single test action.
type TestRun struct {
	Destination string
	// ResultsPath is where the result bundle is written. Optional.
	ResultsPath string
	// TestNames restricts the run to the given test identifiers.
	TestNames []string
	// Env is the environment of the xcodebuild process.
	Env []string
	// Stdout and Stderr receive the captured output when the result bundle
	// path cannot be found in it.
	Stdout io.Writer
	Stderr io.Writer
}

// Error is returned when xcodebuild could not be run or was killed by a
// signal.
type Error struct {
	Err    error
	Stderr string
}

func (e *Error) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("xcodebuild failed: %v", e.Err)
	}
	return fmt.Sprintf("xcodebuild failed: %v (stderr: %s)", e.Err, e.Stderr)
}

func (e *Error) Unwrap() error { return e.Err }

// Result is the outcome of a finished process.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Runner starts a process and waits for it. A non-zero exit code is not an
// error.
type Runner func(ctx context.Context, env []string, name string, args ...string) (Result, error)

var resultsPathPattern = regexp.MustCompile(`Test session results, code coverage, and logs:\n\t(.*)\n`)

// TestArgs returns the command line of a clean test action.
func (p Process) TestArgs(run TestRun) []string {
	args := []string{
		"xcrun", "xcodebuild", "clean", "test",
		"-project", p.ProjectPath,
		"-configuration", string(p.configuration()),
		"-scheme", p.Scheme,
		"-skipPackageUpdates",
		"-disableAutomaticPackageResolution",
	}
	if run.ResultsPath != "" {
		args = append(args, "-resultBundlePath", run.ResultsPath)
	}
	if run.Destination != "" {
		args = append(args, "-destination", run.Destination)
	}
	if p.ClonedSourcePackagesPath != "" {
		args = append(args, "-clonedSourcePackagesDirPath", p.ClonedSourcePackagesPath)
	}
	if p.SymRoot != "" {
		args = append(args, "SYMROOT="+p.SymRoot)
	}
	for _, name := range run.TestNames {
		args = append(args, "-only-testing:"+name)
	}
	return args
}

func (p Process) configuration() Configuration {
	if p.Configuration == "" {
		return ConfigurationRelease
	}
	return p.Configuration
}

// RunTests runs the test action and returns the path of the result bundle
// reported by xcodebuild.
func (p Process) RunTests(ctx context.Context, logger zerolog.Logger, run TestRun, runner Runner) (string, error) {
	if run.Destination == "" {
		return "", fmt.Errorf("destination must be a valid xcodebuild destination")
	}
	if runner == nil {
		runner = RunCommand
	}

	args := p.TestArgs(run)
	logger.Info().Str("command", shellescape.QuoteCommand(args)).Msg("Running tests")

	result, err := runner(ctx, run.Env, args[0], args[1:]...)
	if err != nil {
		return "", err
	}

	logger.Debug().Int("exit_code", result.ExitCode).Msg("xcodebuild finished")

	path, ok := ResultsPath(result.Stdout)
	if !ok {
		if run.Stdout != nil {
			run.Stdout.Write(result.Stdout)
		}
		if run.Stderr != nil {
			run.Stderr.Write(result.Stderr)
		}
		return "", fmt.Errorf("unable to find test results path in xcodebuild output (exit code: %d)", result.ExitCode)
	}
	return path, nil
}

// ResultsPath extracts the result bundle path from xcodebuild output.
func ResultsPath(stdout []byte) (string, bool) {
	m := resultsPathPattern.FindSubmatch(stdout)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}

// RunCommand is the default Runner.
func RunCommand(ctx context.Context, env []string, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return result, &Error{Err: err, Stderr: stderr.String()}
}
