package xcresult

// This file contains the xcresulttool client used to read objects from a
// result bundle and to export attachment payloads and diagnostics.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"
)

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Tool reads a single result bundle through `xcrun xcresulttool`.
type Tool struct {
	logger     zerolog.Logger
	bundlePath string
	legacy     bool
	run        Runner
}

// Option configures a Tool.
type Option func(*Tool)

// WithRunner replaces the command runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(t *Tool) {
		t.run = r
	}
}

// WithLegacyFlag controls whether --legacy is passed to xcresulttool. Xcode
// 16 and later require it to access the object graph; older releases reject it.
func WithLegacyFlag(legacy bool) Option {
	return func(t *Tool) {
		t.legacy = legacy
	}
}

// New creates a Tool for the result bundle at bundlePath.
func New(logger zerolog.Logger, bundlePath string, opts ...Option) *Tool {
	t := &Tool{
		logger:     logger,
		bundlePath: bundlePath,
		legacy:     true,
		run:        runCommand,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// BundlePath returns the path of the result bundle.
func (t *Tool) BundlePath() string {
	return t.bundlePath
}

// InvocationRecord reads the root object of the bundle.
func (t *Tool) InvocationRecord(ctx context.Context) (*ActionsInvocationRecord, error) {
	output, err := t.get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read invocation record: %w", err)
	}
	return DecodeInvocationRecord(output)
}

// TestPlanRunSummaries resolves an action's tests reference.
func (t *Tool) TestPlanRunSummaries(ctx context.Context, ref Reference) (*ActionTestPlanRunSummaries, error) {
	output, err := t.resolve(ctx, ref, KindActionTestPlanRunSummaries)
	if err != nil {
		return nil, err
	}
	return DecodeTestPlanRunSummaries(output)
}

// TestSummary resolves a test's summary reference.
func (t *Tool) TestSummary(ctx context.Context, ref Reference) (*ActionTestSummary, error) {
	output, err := t.resolve(ctx, ref, KindActionTestSummary)
	if err != nil {
		return nil, err
	}
	return DecodeTestSummary(output)
}

// ExportAttachment writes the payload of att into dir and returns the path
// of the written file.
func (t *Tool) ExportAttachment(ctx context.Context, att *ActionTestAttachment, dir string) (string, error) {
	if att.PayloadRef == nil || att.PayloadRef.ID == "" {
		return "", fmt.Errorf("%w: attachment has no payload reference", ErrUnresolved)
	}

	outputPath := filepath.Join(dir, att.ExportFilename())
	args := t.args("export", "--type", "file", "--path", t.bundlePath, "--id", att.PayloadRef.ID, "--output-path", outputPath)
	if _, err := t.run(ctx, "xcrun", args...); err != nil {
		return "", fmt.Errorf("failed to export attachment %s: %w", att.PayloadRef.ID, err)
	}

	t.logger.Debug().
		Str("id", att.PayloadRef.ID).
		Str("output", outputPath).
		Msg("Exported attachment")

	return outputPath, nil
}

// ExportDirectory exports a directory object, such as an action's
// diagnostics, into dir. The directory is created when missing.
func (t *Tool) ExportDirectory(ctx context.Context, id, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	args := t.args("export", "--type", "directory", "--path", t.bundlePath, "--id", id, "--output-path", dir)
	if _, err := t.run(ctx, "xcrun", args...); err != nil {
		return fmt.Errorf("failed to export directory %s: %w", id, err)
	}
	return nil
}

func (t *Tool) resolve(ctx context.Context, ref Reference, kind string) ([]byte, error) {
	if ref.ID == "" {
		return nil, fmt.Errorf("%w: empty reference to %s", ErrUnresolved, kind)
	}
	if ref.TargetType != "" && ref.TargetType != kind {
		return nil, fmt.Errorf("%w: reference %s targets %s, expected %s", ErrUnresolved, ref.ID, ref.TargetType, kind)
	}

	output, err := t.get(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reference %s: %w", ref.ID, err)
	}

	if got := kindOf(output); got != kind {
		return nil, fmt.Errorf("%w: reference %s resolved to %q, expected %s", ErrUnresolved, ref.ID, got, kind)
	}
	return output, nil
}

func (t *Tool) get(ctx context.Context, id string) ([]byte, error) {
	args := t.args("get", "--format", "json", "--path", t.bundlePath)
	if id != "" {
		args = append(args, "--id", id)
	}
	return t.run(ctx, "xcrun", args...)
}

func (t *Tool) args(subcommand string, rest ...string) []string {
	args := []string{"xcresulttool", subcommand}
	if t.legacy {
		args = append(args, "--legacy")
	}
	args = append(args, rest...)

	t.logger.Debug().
		Str("command", "xcrun "+shellescape.QuoteCommand(args)).
		Msg("Running xcresulttool")

	return args
}

func kindOf(data []byte) string {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return ""
	}
	return e.Type.Name
}

// runCommand executes a command with the given arguments.
func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s command failed: %w (stderr: %s)", name, err, stderr.String())
	}

	return stdout.Bytes(), nil
}
