package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/xctools/xctools/model"
	"github.com/xctools/xctools/normalize"
	"github.com/xctools/xctools/xcresult"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func at(seconds float64) *time.Time {
	t := t0.Add(time.Duration(seconds * float64(time.Second)))
	return &t
}

func str(s string) *string { return &s }

type fakeBundle struct {
	record    *xcresult.ActionsInvocationRecord
	recordErr error
	plans     map[string]*xcresult.ActionTestPlanRunSummaries
	summaries map[string]*xcresult.ActionTestSummary
	// dirs maps a diagnostics id to the files it exports, relative to the
	// output directory.
	dirs map[string][]string

	mu        sync.Mutex
	exported  []string
	exportErr error
	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

func (b *fakeBundle) BundlePath() string { return "/tmp/Run.xcresult" }

func (b *fakeBundle) InvocationRecord(context.Context) (*xcresult.ActionsInvocationRecord, error) {
	return b.record, b.recordErr
}

func (b *fakeBundle) TestPlanRunSummaries(_ context.Context, ref xcresult.Reference) (*xcresult.ActionTestPlanRunSummaries, error) {
	plan, ok := b.plans[ref.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", xcresult.ErrUnresolved, ref.ID)
	}
	return plan, nil
}

func (b *fakeBundle) TestSummary(_ context.Context, ref xcresult.Reference) (*xcresult.ActionTestSummary, error) {
	summary, ok := b.summaries[ref.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", xcresult.ErrUnresolved, ref.ID)
	}
	return summary, nil
}

func (b *fakeBundle) ExportAttachment(_ context.Context, att *xcresult.ActionTestAttachment, dir string) (string, error) {
	n := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	for {
		m := b.maxFlight.Load()
		if n <= m || b.maxFlight.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	if b.exportErr != nil {
		return "", b.exportErr
	}
	path := filepath.Join(dir, att.ExportFilename())
	if err := os.WriteFile(path, []byte("payload"), 0644); err != nil {
		return "", err
	}
	b.mu.Lock()
	b.exported = append(b.exported, att.ExportFilename())
	b.mu.Unlock()
	return path, nil
}

func (b *fakeBundle) ExportDirectory(_ context.Context, id, dir string) error {
	files, ok := b.dirs[id]
	if !ok {
		return fmt.Errorf("unknown directory %s", id)
	}
	for _, f := range files {
		path := filepath.Join(dir, f)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte("log"), 0644); err != nil {
			return err
		}
	}
	return nil
}

type noFrames struct{}

func (noFrames) ExtractFrame(context.Context, float64, string) (image.Image, error) {
	return nil, errors.New("no recordings expected")
}

type discardImages struct{}

func (discardImages) WriteImage(image.Image, string) error { return nil }

type fakeUploader struct {
	file, name string
}

func (u *fakeUploader) UploadArchive(_ context.Context, file, name string) (string, error) {
	u.file, u.name = file, name
	return "s3://ci/" + name, nil
}

func pngAttachment(name string) xcresult.ActionTestAttachment {
	return xcresult.ActionTestAttachment{
		UniformTypeIdentifier: "public.png",
		Name:                  str(name),
		Filename:              str(name + ".png"),
		Timestamp:             at(2),
		PayloadRef:            &xcresult.Reference{ID: "payload-" + name},
	}
}

func testAction(plan string) xcresult.ActionRecord {
	return xcresult.ActionRecord{
		SchemeCommandName: "Test",
		TestPlanName:      str(plan),
		StartedTime:       t0,
		EndedTime:         *at(30),
		BuildResult: xcresult.ActionResult{
			Status:         "succeeded",
			DiagnosticsRef: &xcresult.Reference{ID: "build-diag"},
		},
		ActionResult: xcresult.ActionResult{
			Status:         "failure",
			TestsRef:       &xcresult.Reference{ID: "plan-" + plan, TargetType: xcresult.KindActionTestPlanRunSummaries},
			DiagnosticsRef: &xcresult.Reference{ID: "test-diag"},
		},
	}
}

func newBundle() *fakeBundle {
	d := 3.0
	return &fakeBundle{
		record: &xcresult.ActionsInvocationRecord{
			Actions: []xcresult.ActionRecord{
				{SchemeCommandName: "Build"},
				testAction("SmokeTests"),
			},
		},
		plans: map[string]*xcresult.ActionTestPlanRunSummaries{
			"plan-SmokeTests": {
				Summaries: []xcresult.ActionTestPlanRunSummary{{
					TestableSummaries: []xcresult.ActionTestableSummary{{
						Tests: []xcresult.TestNode{{
							Kind: xcresult.TestNodeGroup,
							Name: "LoginTests",
							Subtests: []xcresult.TestNode{
								{Kind: xcresult.TestNodeTest, Name: "testLogin()", Identifier: "LoginTests/testLogin()", SummaryRef: &xcresult.Reference{ID: "login"}},
								{Kind: xcresult.TestNodeTest, Name: "testLogout()", Identifier: "LoginTests/testLogout()", SummaryRef: &xcresult.Reference{ID: "logout"}},
							},
						}},
					}},
				}},
			},
		},
		summaries: map[string]*xcresult.ActionTestSummary{
			"login": {
				Name:       "testLogin()",
				TestStatus: "Success",
				Duration:   &d,
				ActivitySummaries: []xcresult.ActionTestActivitySummary{{
					Title:        "Enter credentials",
					ActivityType: "com.apple.dt.xctest.activity-type.userCreated",
					UUID:         "a1",
					Start:        at(1),
					Finish:       at(2),
					Attachments:  []xcresult.ActionTestAttachment{pngAttachment("credentials"), pngAttachment("keyboard")},
				}},
			},
			"logout": {
				Name:       "testLogout()",
				TestStatus: "Failure",
				ActivitySummaries: []xcresult.ActionTestActivitySummary{{
					Title:        "Tap logout",
					ActivityType: "com.apple.dt.xctest.activity-type.userCreated",
					UUID:         "a2",
					Start:        at(5),
					Finish:       at(6),
					Attachments:  []xcresult.ActionTestAttachment{pngAttachment("logout")},
				}},
				FailureSummaries: []xcresult.ActionTestFailureSummary{{
					UUID:      "f1",
					IssueType: "Assertion Failure",
					Message:   str("XCTAssertTrue failed"),
					Timestamp: at(7),
				}},
			},
		},
		dirs: map[string][]string{
			"build-diag": {
				"SmokeTests-2024.03.01_10-00-00/build.log",
				"Regression-2024.03.01_09-00-00/build.log",
			},
			"test-diag": {
				"SmokeTests-2024.03.01_10-00-00/Session/session.log",
			},
		},
	}
}

func newExtractor(b *fakeBundle, opts ...Option) *Extractor {
	opts = append([]Option{
		WithClock(func() time.Time { return *at(3600) }),
		WithIDGenerator(func() string { return "0f8fad5b-d9cb-469f-a165-70867728950e" }),
	}, opts...)
	return New(zerolog.Nop(), b, noFrames{}, discardImages{}, opts...)
}

func zipNames(t *testing.T, path string) []string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func TestRun(t *testing.T) {
	b := newBundle()
	uploader := &fakeUploader{}
	dest := t.TempDir()

	res, err := newExtractor(b, WithUploader(uploader)).Run(context.Background(), Options{
		Destination: dest,
		Workers:     2,
		ExtractLogs: true,
		Profile:     true,
	})
	require.NoError(t, err)

	resultsDir := filepath.Join(dest, "TestResults")
	require.Equal(t, resultsDir, res.ResultsDir)
	require.Equal(t, filepath.Join(dest, "testResults.zip"), res.ArchivePath)
	require.Equal(t, []string{filepath.Join(resultsDir, "SmokeTests.json")}, res.Suites)

	data, err := os.ReadFile(res.Suites[0])
	require.NoError(t, err)
	var suite model.SuiteReport
	require.NoError(t, json.Unmarshal(data, &suite))
	require.Equal(t, "SmokeTests", suite.Name)
	require.False(t, suite.Successful)
	require.Len(t, suite.Tests, 2)
	require.True(t, suite.Tests[0].Successful)
	require.False(t, suite.Tests[1].Successful)
	require.Len(t, suite.Tests[1].Steps, 2)
	require.Equal(t, "XCTAssertTrue failed", suite.Tests[1].Steps[1].Name)

	sort.Strings(b.exported)
	require.Equal(t, []string{"credentials.png", "keyboard.png", "logout.png"}, b.exported)
	require.LessOrEqual(t, b.maxFlight.Load(), int32(2))

	require.Equal(t, []string{
		"TestResults/",
		"TestResults/Attachments/",
		"TestResults/Attachments/credentials.png",
		"TestResults/Attachments/keyboard.png",
		"TestResults/Attachments/logout.png",
		"TestResults/Logs/",
		"TestResults/Logs/Build/",
		"TestResults/Logs/Build/build.log",
		"TestResults/Logs/Test/",
		"TestResults/Logs/Test/session.log",
		"TestResults/SmokeTests.json",
		"TestResults/SmokeTests.pb.gz",
	}, zipNames(t, res.ArchivePath))

	require.Equal(t, res.ArchivePath, uploader.file)
	require.Equal(t, "20240301T110000Z-0f8fad5b/testResults.zip", uploader.name)
	require.Equal(t, "s3://ci/20240301T110000Z-0f8fad5b/testResults.zip", res.UploadURL)
}

func TestRunWithoutOptionalOutputs(t *testing.T) {
	b := newBundle()
	dest := t.TempDir()

	res, err := newExtractor(b).Run(context.Background(), Options{Destination: dest})
	require.NoError(t, err)
	require.Empty(t, res.UploadURL)

	require.NoDirExists(t, filepath.Join(res.ResultsDir, "Logs"))
	require.NoFileExists(t, filepath.Join(res.ResultsDir, "SmokeTests.pb.gz"))
	require.FileExists(t, res.ArchivePath)
}

func TestRunErrors(t *testing.T) {
	t.Run("not a result bundle", func(t *testing.T) {
		b := newBundle()
		b.recordErr = errors.New("exit status 1")

		_, err := newExtractor(b).Run(context.Background(), Options{Destination: t.TempDir()})
		require.ErrorContains(t, err, "/tmp/Run.xcresult does not appear to be an xcresult")
	})

	t.Run("unresolved summary aborts before writing", func(t *testing.T) {
		b := newBundle()
		delete(b.summaries, "logout")
		dest := t.TempDir()

		_, err := newExtractor(b).Run(context.Background(), Options{Destination: dest})
		var resErr *normalize.ResolutionError
		require.True(t, errors.As(err, &resErr))
		require.ErrorIs(t, err, xcresult.ErrUnresolved)

		require.NoFileExists(t, filepath.Join(dest, "TestResults", "SmokeTests.json"))
		require.NoFileExists(t, filepath.Join(dest, "testResults.zip"))
	})

	t.Run("export failure", func(t *testing.T) {
		b := newBundle()
		b.exportErr = errors.New("disk full")

		_, err := newExtractor(b).Run(context.Background(), Options{Destination: t.TempDir()})
		require.ErrorContains(t, err, "disk full")
	})
}

func TestExportAttachmentsPrecondition(t *testing.T) {
	b := newBundle()
	e := newExtractor(b)

	atts := []*model.Attachment{
		{Name: str("kept"), NeedsExtraction: false},
		{Name: str("orphan"), NeedsExtraction: true},
	}
	err := e.exportAttachments(context.Background(), atts, t.TempDir(), 1)

	var pv *normalize.PreconditionViolation
	require.True(t, errors.As(err, &pv))
	require.Empty(t, b.exported)
}

func TestPruneEntries(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"SmokeTests-1", "SmokeTests-2", "Regression-1"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, name), 0755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Other.log"), nil, 0644))

	require.NoError(t, pruneEntries(dir, "SmokeTests"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.Equal(t, []string{"SmokeTests-1", "SmokeTests-2"}, names)
}
