package media

// Package media extracts still frames from screen recordings and writes
// them as PNG files.

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"
)

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// FrameExtractor extracts frames by piping a single PNG out of ffmpeg.
type FrameExtractor struct {
	logger zerolog.Logger
	ffmpeg string
	run    Runner
}

// Option configures a FrameExtractor.
type Option func(*FrameExtractor)

// WithFFmpegPath sets the ffmpeg binary. It defaults to "ffmpeg" on PATH.
func WithFFmpegPath(path string) Option {
	return func(f *FrameExtractor) {
		if path != "" {
			f.ffmpeg = path
		}
	}
}

// WithRunner replaces the command runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(f *FrameExtractor) {
		f.run = r
	}
}

// NewFrameExtractor creates a FrameExtractor.
func NewFrameExtractor(logger zerolog.Logger, opts ...Option) *FrameExtractor {
	f := &FrameExtractor{
		logger: logger,
		ffmpeg: "ffmpeg",
		run:    runCommand,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ExtractFrame returns the frame shown seconds into video. It returns a nil
// image when the video has no frame at that offset.
func (f *FrameExtractor) ExtractFrame(ctx context.Context, seconds float64, video string) (image.Image, error) {
	if seconds < 0 {
		return nil, nil
	}

	args := []string{
		"-nostdin", "-v", "error",
		"-ss", strconv.FormatFloat(seconds, 'f', 3, 64),
		"-i", video,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	}

	f.logger.Debug().
		Str("command", shellescape.QuoteCommand(append([]string{f.ffmpeg}, args...))).
		Msg("Extracting frame")

	output, err := f.run(ctx, f.ffmpeg, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to extract frame from %s: %w", video, err)
	}
	if len(output) == 0 {
		return nil, nil
	}

	img, err := png.Decode(bytes.NewReader(output))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame from %s: %w", video, err)
	}
	return img, nil
}

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
