package normalize

// This file contains the step tree builder: activities and failures of a test
// become a single list of steps ordered by start time.

import (
	"context"
	"sort"
	"time"

	"github.com/xctools/xctools/model"
	"github.com/xctools/xctools/xcresult"
)

// testSteps builds the steps of one test. The recording cursor is created
// here and never outlives the call.
func (n *Normalizer) testSteps(ctx context.Context, summary *xcresult.ActionTestSummary) ([]model.StepReport, error) {
	cursor := &recordingCursor{}
	defer cursor.reset()

	steps := make([]model.StepReport, 0, len(summary.ActivitySummaries)+len(summary.FailureSummaries))
	for i := range summary.ActivitySummaries {
		steps = append(steps, n.activityStep(&summary.ActivitySummaries[i]))
	}

	for _, step := range steps {
		if att, ok := firstRecording(step.Attachments); ok {
			cursor.arm(att, step.StartTime)
			break
		}
	}

	for i := range summary.FailureSummaries {
		step, err := n.failureStep(ctx, &summary.FailureSummaries[i], cursor)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	sortSteps(steps)
	return steps, nil
}

func (n *Normalizer) activityStep(a *xcresult.ActionTestActivitySummary) model.StepReport {
	start := n.now()
	if a.Start != nil {
		start = *a.Start
	}

	step := model.StepReport{
		Name:         a.Title,
		UUID:         a.UUID,
		ActivityType: model.ParseActivityType(a.ActivityType),
		StartTime:    start,
		Successful:   len(a.FailureSummaryIDs) == 0,
		Attachments:  projectAttachments(a.Attachments, start),
		Substeps:     make([]model.StepReport, 0, len(a.Subactivities)),
	}
	if a.Start != nil && a.Finish != nil {
		d := a.Finish.Sub(*a.Start).Seconds()
		step.Duration = &d
	}

	for i := range a.Subactivities {
		step.Substeps = append(step.Substeps, n.activityStep(&a.Subactivities[i]))
	}
	sortSteps(step.Substeps)

	return step
}

func (n *Normalizer) failureStep(ctx context.Context, f *xcresult.ActionTestFailureSummary, cursor *recordingCursor) (model.StepReport, error) {
	start := n.now()
	if f.Timestamp != nil {
		start = *f.Timestamp
	}
	name := f.UUID
	if f.Message != nil {
		name = *f.Message
	}

	attachments := projectAttachments(f.Attachments, start)
	if rec, ok := cursor.take(); ok {
		shot, err := n.screenshot(ctx, rec, name, f.UUID, start)
		if err != nil {
			return model.StepReport{}, err
		}
		attachments = append(attachments, shot)
	}

	zero := 0.0
	return model.StepReport{
		Name:         name,
		UUID:         f.UUID,
		ActivityType: model.ActivityTypeUserCreated,
		StartTime:    start,
		Duration:     &zero,
		Successful:   false,
		Attachments:  attachments,
	}, nil
}

func failureRecord(f *xcresult.ActionTestFailureSummary) model.FailureRecord {
	return model.FailureRecord{
		UUID:       f.UUID,
		Type:       model.ParseFailureType(f.IssueType),
		Message:    f.Message,
		FilePath:   f.FileName,
		LineNumber: f.LineNumber,
		Timestamp:  f.Timestamp,
	}
}

// sortSteps orders steps by start time, keeping the input order of steps
// that start at the same instant.
func sortSteps(steps []model.StepReport) {
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].StartTime.Before(steps[j].StartTime)
	})
}

func timePtr(t time.Time) *time.Time { return &t }
