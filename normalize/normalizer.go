package normalize

// Package normalize turns the test results of one action record into a
// model.SuiteReport. Tests are visited strictly in declared order: screen
// recordings found in a test's activities are correlated with the test's
// later failures to derive a screenshot at the moment of failure.

import (
	"context"
	"image"
	"time"

	"github.com/rs/zerolog"
	"github.com/xctools/xctools/xcresult"
)

// Provider resolves references to typed result bundle objects. It wraps
// xcresult.ErrUnresolved when a reference cannot be resolved to the
// requested kind.
type Provider interface {
	TestPlanRunSummaries(ctx context.Context, ref xcresult.Reference) (*xcresult.ActionTestPlanRunSummaries, error)
	TestSummary(ctx context.Context, ref xcresult.Reference) (*xcresult.ActionTestSummary, error)
}

// Exporter writes the payload of a raw attachment into dir and returns the
// path of the written file.
type Exporter interface {
	ExportAttachment(ctx context.Context, att *xcresult.ActionTestAttachment, dir string) (string, error)
}

// FrameExtractor returns the frame of video shown at the given offset in
// seconds. A nil image means no frame exists at that offset.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, seconds float64, video string) (image.Image, error)
}

// ImageWriter encodes img as PNG at path.
type ImageWriter interface {
	WriteImage(img image.Image, path string) error
}

// Config holds the collaborators of a Normalizer.
type Config struct {
	Provider Provider
	Exporter Exporter
	Frames   FrameExtractor
	Images   ImageWriter
	// AttachmentsDir receives the screenshots derived from recordings.
	AttachmentsDir string
}

// Normalizer builds suite reports from action records.
type Normalizer struct {
	logger zerolog.Logger
	cfg    Config

	now        func() time.Time
	scratchDir string
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock sets the clock used for activities and failures that carry no
// timestamp.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		n.now = now
	}
}

// WithScratchDir sets the parent directory for temporary recording exports.
// The system temporary directory is used by default.
func WithScratchDir(dir string) Option {
	return func(n *Normalizer) {
		n.scratchDir = dir
	}
}

// New creates a Normalizer.
func New(logger zerolog.Logger, cfg Config, opts ...Option) *Normalizer {
	n := &Normalizer{
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}
