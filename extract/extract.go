// Package extract turns a result bundle into a directory of suite reports,
// exported attachments and optional logs, packaged as a zip archive.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/xctools/xctools/archive"
	"github.com/xctools/xctools/model"
	"github.com/xctools/xctools/normalize"
	"github.com/xctools/xctools/timeline"
	"github.com/xctools/xctools/xcresult"
)

const (
	ResultsDirName     = "TestResults"
	AttachmentsDirName = "Attachments"
	LogsDirName        = "Logs"
	ArchiveName        = "testResults.zip"

	defaultWorkers = 4
)

// Bundle is the result bundle being extracted. *xcresult.Tool implements
// it.
type Bundle interface {
	normalize.Provider
	normalize.Exporter
	BundlePath() string
	InvocationRecord(ctx context.Context) (*xcresult.ActionsInvocationRecord, error)
	ExportDirectory(ctx context.Context, id, dir string) error
}

// Uploader publishes the finished archive.
type Uploader interface {
	UploadArchive(ctx context.Context, file, name string) (string, error)
}

// Options controls a single extraction.
type Options struct {
	// Destination receives the TestResults directory and the archive.
	Destination string
	// Workers bounds the number of concurrent attachment exports.
	Workers int
	// ExtractLogs exports the build and test diagnostics of every action.
	ExtractLogs bool
	// Profile writes a timing profile next to every suite report.
	Profile bool
}

// Result describes what an extraction produced.
type Result struct {
	ResultsDir  string
	ArchivePath string
	// Suites are the paths of the written suite reports.
	Suites    []string
	UploadURL string
}

// Extractor runs extractions against one bundle.
type Extractor struct {
	logger   zerolog.Logger
	bundle   Bundle
	frames   normalize.FrameExtractor
	images   normalize.ImageWriter
	uploader Uploader
	now      func() time.Time
	newID    func() string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithUploader publishes the archive once it is written.
func WithUploader(u Uploader) Option {
	return func(e *Extractor) {
		e.uploader = u
	}
}

// WithClock sets the clock used for untimed activities and upload names.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

// WithIDGenerator sets the source of the run identifier that keeps upload
// names of concurrent runs apart.
func WithIDGenerator(newID func() string) Option {
	return func(e *Extractor) {
		e.newID = newID
	}
}

// New creates an Extractor.
func New(logger zerolog.Logger, bundle Bundle, frames normalize.FrameExtractor, images normalize.ImageWriter, opts ...Option) *Extractor {
	e := &Extractor{
		logger: logger,
		bundle: bundle,
		frames: frames,
		images: images,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run extracts every test action of the bundle. Actions are processed in
// order and the first failure aborts the extraction.
func (e *Extractor) Run(ctx context.Context, opts Options) (*Result, error) {
	record, err := e.bundle.InvocationRecord(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s does not appear to be an xcresult: %w", e.bundle.BundlePath(), err)
	}

	res := &Result{
		ResultsDir:  filepath.Join(opts.Destination, ResultsDirName),
		ArchivePath: filepath.Join(opts.Destination, ArchiveName),
	}
	attachmentsDir := filepath.Join(res.ResultsDir, AttachmentsDirName)
	if err := os.MkdirAll(attachmentsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", attachmentsDir, err)
	}

	e.logger.Info().Str("path", res.ResultsDir).Msg("Extracting test results")

	n := normalize.New(e.logger, normalize.Config{
		Provider:       e.bundle,
		Exporter:       e.bundle,
		Frames:         e.frames,
		Images:         e.images,
		AttachmentsDir: attachmentsDir,
	}, normalize.WithClock(e.now))

	for i := range record.Actions {
		action := &record.Actions[i]
		if action.ActionResult.TestsRef == nil {
			continue
		}

		path, err := e.extractAction(ctx, n, action, res.ResultsDir, opts)
		if err != nil {
			return nil, err
		}
		res.Suites = append(res.Suites, path)
	}

	if err := archive.ZipDirectory(res.ResultsDir, res.ArchivePath); err != nil {
		return nil, err
	}
	e.logger.Info().Str("path", res.ArchivePath).Msg("Test results extraction finished")

	if e.uploader != nil {
		name := uploadName(e.now(), e.newID())
		url, err := e.uploader.UploadArchive(ctx, res.ArchivePath, name)
		if err != nil {
			return nil, err
		}
		res.UploadURL = url
		e.logger.Info().Str("url", url).Msg("Uploaded test results")
	}

	return res, nil
}

func (e *Extractor) extractAction(ctx context.Context, n *normalize.Normalizer, action *xcresult.ActionRecord, resultsDir string, opts Options) (string, error) {
	suite, err := n.Normalize(ctx, action)
	if err != nil {
		return "", fmt.Errorf("failed to normalize action %s: %w", actionName(action), err)
	}

	path := filepath.Join(resultsDir, suite.Name+".json")
	if err := writeSuite(suite, path); err != nil {
		return "", err
	}
	total, failed := suite.TestCount()
	e.logger.Info().
		Str("suite", suite.Name).
		Int("tests", total).
		Int("failed", failed).
		Str("path", path).
		Msg("Wrote suite report")

	attachmentsDir := filepath.Join(resultsDir, AttachmentsDirName)
	if err := e.exportAttachments(ctx, suite.AllAttachments(), attachmentsDir, opts.Workers); err != nil {
		return "", fmt.Errorf("failed to export attachments of %s: %w", suite.Name, err)
	}

	if opts.ExtractLogs {
		if err := e.extractLogs(ctx, action, filepath.Join(resultsDir, LogsDirName)); err != nil {
			return "", fmt.Errorf("failed to extract logs of %s: %w", suite.Name, err)
		}
	}

	if opts.Profile {
		profilePath := filepath.Join(resultsDir, suite.Name+".pb.gz")
		if err := timeline.WriteFile(suite, profilePath); err != nil {
			return "", err
		}
		e.logger.Debug().Str("path", profilePath).Msg("Wrote timing profile")
	}

	return path, nil
}

// uploadName returns the object name of an archive uploaded at t.
func uploadName(t time.Time, id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s/%s", t.UTC().Format("20060102T150405Z"), id, ArchiveName)
}

func writeSuite(suite *model.SuiteReport, path string) error {
	data, err := json.MarshalIndent(suite, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode suite %s: %w", suite.Name, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func actionName(action *xcresult.ActionRecord) string {
	if action.TestPlanName != nil {
		return *action.TestPlanName
	}
	if action.Title != nil {
		return *action.Title
	}
	return action.SchemeCommandName
}

