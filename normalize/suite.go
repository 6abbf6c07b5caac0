package normalize

// This file contains the suite flattener: it resolves an action's test plan,
// flattens the group hierarchy into its leaf tests and builds a report for
// each of them in declared order.

import (
	"context"
	"fmt"

	"github.com/xctools/xctools/model"
	"github.com/xctools/xctools/xcresult"
)

const successStatus = "success"

// Normalize builds the suite report of a test action. The first error aborts
// the whole action; no partial report is returned.
func (n *Normalizer) Normalize(ctx context.Context, action *xcresult.ActionRecord) (*model.SuiteReport, error) {
	if n.cfg.Provider == nil {
		return nil, &PreconditionViolation{Description: "normalizer has no provider"}
	}

	ref := action.ActionResult.TestsRef
	if ref == nil {
		return nil, &ResolutionError{
			Kind:   xcresult.KindActionTestPlanRunSummaries,
			Reason: "action has no tests reference",
		}
	}

	plan, err := n.cfg.Provider.TestPlanRunSummaries(ctx, *ref)
	if err != nil {
		return nil, &ResolutionError{Reference: ref.ID, Kind: xcresult.KindActionTestPlanRunSummaries, Err: err}
	}

	var leaves []*xcresult.TestNode
	for i := range plan.Summaries {
		for j := range plan.Summaries[i].TestableSummaries {
			leaves = collectLeaves(plan.Summaries[i].TestableSummaries[j].Tests, leaves)
		}
	}

	suite := &model.SuiteReport{
		Name:           suiteName(action),
		StartTime:      action.StartedTime,
		Duration:       action.EndedTime.Sub(action.StartedTime).Seconds(),
		Successful:     action.ActionResult.Status == successStatus,
		RunDestination: model.NewRunDestination(action.RunDestination),
		Tests:          make([]model.TestReport, 0, len(leaves)),
	}

	n.logger.Debug().
		Str("suite", suite.Name).
		Int("tests", len(leaves)).
		Msg("Normalizing suite")

	for _, leaf := range leaves {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		test, err := n.testReport(ctx, leaf)
		if err != nil {
			return nil, fmt.Errorf("test %s: %w", leaf.Identifier, err)
		}
		suite.Tests = append(suite.Tests, test)
	}

	return suite, nil
}

func (n *Normalizer) testReport(ctx context.Context, leaf *xcresult.TestNode) (model.TestReport, error) {
	if leaf.SummaryRef == nil {
		return model.TestReport{}, &ResolutionError{
			Reference: leaf.Identifier,
			Kind:      xcresult.KindActionTestSummary,
			Reason:    "test has no summary reference",
		}
	}

	summary, err := n.cfg.Provider.TestSummary(ctx, *leaf.SummaryRef)
	if err != nil {
		return model.TestReport{}, &ResolutionError{Reference: leaf.SummaryRef.ID, Kind: xcresult.KindActionTestSummary, Err: err}
	}

	steps, err := n.testSteps(ctx, summary)
	if err != nil {
		return model.TestReport{}, err
	}

	test := model.TestReport{
		Duration:   leaf.Duration,
		Successful: leaf.TestStatus == "Success",
		Steps:      steps,
		Failures:   make([]model.FailureRecord, 0, len(summary.FailureSummaries)),
	}
	if leaf.Name != "" {
		name := leaf.Name
		test.Name = &name
	}
	if len(summary.ActivitySummaries) > 0 && summary.ActivitySummaries[0].Start != nil {
		test.StartTime = timePtr(*summary.ActivitySummaries[0].Start)
	}
	for i := range summary.FailureSummaries {
		test.Failures = append(test.Failures, failureRecord(&summary.FailureSummaries[i]))
	}

	n.logger.Debug().
		Str("test", leaf.Identifier).
		Int("steps", len(test.Steps)).
		Int("failures", len(test.Failures)).
		Msg("Normalized test")

	return test, nil
}

// collectLeaves appends the tests below nodes to out in declared order.
func collectLeaves(nodes []xcresult.TestNode, out []*xcresult.TestNode) []*xcresult.TestNode {
	for i := range nodes {
		switch nodes[i].Kind {
		case xcresult.TestNodeTest:
			out = append(out, &nodes[i])
		case xcresult.TestNodeGroup:
			out = collectLeaves(nodes[i].Subtests, out)
		}
	}
	return out
}

func suiteName(action *xcresult.ActionRecord) string {
	if action.TestPlanName != nil && *action.TestPlanName != "" {
		return *action.TestPlanName
	}
	if action.Title != nil && *action.Title != "" {
		return *action.Title
	}
	return action.SchemeCommandName
}
