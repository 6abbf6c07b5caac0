package normalize

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/xctools/xctools/xcresult"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func at(seconds float64) *time.Time {
	t := t0.Add(time.Duration(seconds * float64(time.Second)))
	return &t
}

func str(s string) *string { return &s }

type fakeProvider struct {
	plans     map[string]*xcresult.ActionTestPlanRunSummaries
	summaries map[string]*xcresult.ActionTestSummary
	calls     []string
}

func (p *fakeProvider) TestPlanRunSummaries(_ context.Context, ref xcresult.Reference) (*xcresult.ActionTestPlanRunSummaries, error) {
	p.calls = append(p.calls, ref.ID)
	plan, ok := p.plans[ref.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", xcresult.ErrUnresolved, ref.ID)
	}
	return plan, nil
}

func (p *fakeProvider) TestSummary(_ context.Context, ref xcresult.Reference) (*xcresult.ActionTestSummary, error) {
	p.calls = append(p.calls, ref.ID)
	summary, ok := p.summaries[ref.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", xcresult.ErrUnresolved, ref.ID)
	}
	return summary, nil
}

type fakeExporter struct {
	exported []string
	err      error
}

func (e *fakeExporter) ExportAttachment(_ context.Context, att *xcresult.ActionTestAttachment, dir string) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	path := filepath.Join(dir, att.ExportFilename())
	if err := os.WriteFile(path, []byte("video"), 0644); err != nil {
		return "", err
	}
	e.exported = append(e.exported, path)
	return path, nil
}

type fakeFrames struct {
	offsets []float64
	videos  []string
	noFrame bool
	err     error
}

func (f *fakeFrames) ExtractFrame(_ context.Context, seconds float64, video string) (image.Image, error) {
	f.offsets = append(f.offsets, seconds)
	f.videos = append(f.videos, video)
	if f.err != nil {
		return nil, f.err
	}
	if f.noFrame {
		return nil, nil
	}
	return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
}

type fakeImages struct {
	paths []string
	err   error
}

func (w *fakeImages) WriteImage(_ image.Image, path string) error {
	if w.err != nil {
		return w.err
	}
	w.paths = append(w.paths, path)
	return nil
}

type harness struct {
	provider *fakeProvider
	exporter *fakeExporter
	frames   *fakeFrames
	images   *fakeImages
	dir      string
	scratch  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		provider: &fakeProvider{
			plans:     map[string]*xcresult.ActionTestPlanRunSummaries{},
			summaries: map[string]*xcresult.ActionTestSummary{},
		},
		exporter: &fakeExporter{},
		frames:   &fakeFrames{},
		images:   &fakeImages{},
		dir:      t.TempDir(),
		scratch:  t.TempDir(),
	}
}

func (h *harness) normalizer(opts ...Option) *Normalizer {
	opts = append([]Option{
		WithScratchDir(h.scratch),
		WithClock(func() time.Time { return *at(1000) }),
	}, opts...)
	return New(zerolog.Nop(), Config{
		Provider:       h.provider,
		Exporter:       h.exporter,
		Frames:         h.frames,
		Images:         h.images,
		AttachmentsDir: h.dir,
	}, opts...)
}

// scratchEntries reports what is left in the scratch directory.
func (h *harness) scratchEntries(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(h.scratch)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("failed to read scratch dir: %v", err)
	}
	return entries
}

func leaf(name, ref, status string) xcresult.TestNode {
	d := 1.5
	return xcresult.TestNode{
		Kind:       xcresult.TestNodeTest,
		Name:       name,
		Identifier: "Tests/" + name,
		Duration:   &d,
		TestStatus: status,
		SummaryRef: &xcresult.Reference{ID: ref, TargetType: xcresult.KindActionTestSummary},
	}
}

func group(name string, children ...xcresult.TestNode) xcresult.TestNode {
	return xcresult.TestNode{
		Kind:       xcresult.TestNodeGroup,
		Name:       name,
		Identifier: name,
		Subtests:   children,
	}
}

func plan(tests ...xcresult.TestNode) *xcresult.ActionTestPlanRunSummaries {
	return &xcresult.ActionTestPlanRunSummaries{
		Summaries: []xcresult.ActionTestPlanRunSummary{
			{
				Name: "Plan",
				TestableSummaries: []xcresult.ActionTestableSummary{
					{Name: "AppUITests", Tests: tests},
				},
			},
		},
	}
}

func action(status string) *xcresult.ActionRecord {
	return &xcresult.ActionRecord{
		SchemeCommandName: "Test",
		TestPlanName:      str("SmokeTests"),
		StartedTime:       t0,
		EndedTime:         *at(90),
		ActionResult: xcresult.ActionResult{
			Status:   status,
			TestsRef: &xcresult.Reference{ID: "plan", TargetType: xcresult.KindActionTestPlanRunSummaries},
		},
	}
}

func videoAttachment(filename string, ts *time.Time) xcresult.ActionTestAttachment {
	att := xcresult.ActionTestAttachment{
		UniformTypeIdentifier: "public.mpeg-4",
		Name:                  str("Screen Recording"),
		Timestamp:             ts,
		PayloadRef:            &xcresult.Reference{ID: "payload-" + filename},
	}
	if filename != "" {
		att.Filename = &filename
	}
	return att
}
