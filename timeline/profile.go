package timeline

// This file contains the conversion of a suite report into a pprof profile,
// so that the time spent in tests and steps can be explored with
// `go tool pprof`.

import (
	"fmt"
	"math"
	"os"

	"github.com/google/pprof/profile"

	"github.com/xctools/xctools/model"
)

const unnamedTest = "<unnamed test>"

// Builder builds a duration profile from a suite report
type Builder struct {
	profile   *profile.Profile
	functions map[string]*profile.Function
	locations map[string]*profile.Location
}

// New creates a new builder instance
func New() *Builder {
	return &Builder{
		functions: make(map[string]*profile.Function),
		locations: make(map[string]*profile.Location),
	}
}

// Build returns a profile with one sample per test and step. Stacks run from
// the innermost step up to the suite, and each sample carries the self time
// of its frame: the duration not covered by its children.
func (b *Builder) Build(suite *model.SuiteReport) *profile.Profile {
	b.profile = &profile.Profile{
		SampleType:    []*profile.ValueType{{Type: "duration", Unit: "nanoseconds"}},
		TimeNanos:     suite.StartTime.UnixNano(),
		DurationNanos: seconds(suite.Duration),
		PeriodType:    &profile.ValueType{Type: "duration", Unit: "nanoseconds"},
		Period:        1,
	}
	clear(b.functions)
	clear(b.locations)

	root := []*profile.Location{b.location(suite.Name)}

	var covered int64
	for _, test := range suite.Tests {
		covered += b.addTest(test, root)
	}
	b.addSample(root, seconds(suite.Duration)-covered)

	return b.profile
}

func (b *Builder) addTest(test model.TestReport, parent []*profile.Location) int64 {
	name := unnamedTest
	if test.Name != nil {
		name = *test.Name
	}
	stack := push(parent, b.location(name))

	var total int64
	if test.Duration != nil {
		total = seconds(*test.Duration)
	}

	var covered int64
	for _, step := range test.Steps {
		covered += b.addStep(step, stack)
	}
	if total == 0 {
		total = covered
	}
	b.addSample(stack, total-covered)
	return total
}

func (b *Builder) addStep(step model.StepReport, parent []*profile.Location) int64 {
	stack := push(parent, b.location(step.Name))

	var covered int64
	for _, sub := range step.Substeps {
		covered += b.addStep(sub, stack)
	}

	total := covered
	if step.Duration != nil {
		total = max(seconds(*step.Duration), covered)
	}
	b.addSample(stack, total-covered)
	return total
}

// push returns stack with loc as its new leaf. pprof stacks are leaf first.
func push(stack []*profile.Location, loc *profile.Location) []*profile.Location {
	out := make([]*profile.Location, 0, len(stack)+1)
	out = append(out, loc)
	return append(out, stack...)
}

// location gets or creates the location of a frame name
func (b *Builder) location(name string) *profile.Location {
	if loc, exists := b.locations[name]; exists {
		return loc
	}

	loc := &profile.Location{
		ID: uint64(len(b.profile.Location) + 1),
		Line: []profile.Line{
			{Function: b.getOrCreateFunction(name)},
		},
	}
	b.locations[name] = loc
	b.profile.Location = append(b.profile.Location, loc)
	return loc
}

// getOrCreateFunction gets or creates a function
func (b *Builder) getOrCreateFunction(name string) *profile.Function {
	if fn, exists := b.functions[name]; exists {
		return fn
	}

	fn := &profile.Function{
		ID:         uint64(len(b.profile.Function) + 1),
		Name:       name,
		SystemName: name,
	}
	b.functions[name] = fn
	b.profile.Function = append(b.profile.Function, fn)
	return fn
}

// addSample adds a sample with the given stack, merging it into an existing
// sample with the same stack
func (b *Builder) addSample(stack []*profile.Location, nanos int64) {
	if nanos <= 0 {
		return
	}

	for _, existing := range b.profile.Sample {
		if stacksEqual(existing.Location, stack) {
			existing.Value[0] += nanos
			return
		}
	}

	b.profile.Sample = append(b.profile.Sample, &profile.Sample{
		Location: stack,
		Value:    []int64{nanos},
	})
}

// stacksEqual returns true if two stacks have the same location IDs
func stacksEqual(a, b []*profile.Location) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

func seconds(s float64) int64 {
	if s <= 0 || math.IsNaN(s) {
		return 0
	}
	return int64(math.Round(s * 1e9))
}

// WriteFile writes the gzipped profile of suite to path.
func WriteFile(suite *model.SuiteReport, path string) (err error) {
	prof := New().Build(suite)
	if err := prof.CheckValid(); err != nil {
		return fmt.Errorf("invalid profile for %s: %w", suite.Name, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	if err := prof.Write(f); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}
