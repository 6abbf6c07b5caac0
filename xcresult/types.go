package xcresult

// Package xcresult provides typed access to the contents of an Xcode result
// bundle. Objects are read through xcresulttool and decoded from its legacy
// JSON representation into the types below.

import (
	"errors"
	"time"
)

// Model kinds as reported in a reference's target type and in the "_type"
// envelope of every decoded object.
const (
	KindActionsInvocationRecord    = "ActionsInvocationRecord"
	KindActionTestPlanRunSummaries = "ActionTestPlanRunSummaries"
	KindActionTestSummary          = "ActionTestSummary"
	KindActionTestSummaryGroup     = "ActionTestSummaryGroup"
	KindActionTestMetadata         = "ActionTestMetadata"
)

// ErrUnresolved is returned (wrapped) when a reference is absent or resolves
// to a model of a different kind than requested.
var ErrUnresolved = errors.New("unresolved reference")

// Reference points at another object stored in the bundle.
type Reference struct {
	ID string
	// TargetType is the model kind the reference claims to point at. It may
	// be empty for references written by older tools.
	TargetType string
}

// ActionsInvocationRecord is the root object of a result bundle.
type ActionsInvocationRecord struct {
	Actions []ActionRecord
}

// ActionRecord is one executed action (build, test, ...) of an invocation.
type ActionRecord struct {
	SchemeCommandName string
	SchemeTaskName    string
	Title             *string
	TestPlanName      *string
	StartedTime       time.Time
	EndedTime         time.Time
	RunDestination    ActionRunDestinationRecord
	BuildResult       ActionResult
	ActionResult      ActionResult
}

// ActionResult holds the outcome of a build or test action.
type ActionResult struct {
	ResultName     string
	Status         string
	TestsRef       *Reference
	DiagnosticsRef *Reference
	LogRef         *Reference
}

// ActionRunDestinationRecord describes the device and SDK an action ran on.
type ActionRunDestinationRecord struct {
	DisplayName         string
	TargetArchitecture  string
	TargetDeviceRecord  ActionDeviceRecord
	LocalComputerRecord ActionDeviceRecord
	TargetSDKRecord     ActionSDKRecord
}

type ActionDeviceRecord struct {
	Name                                  string
	Identifier                            string
	ModelName                             string
	ModelCode                             string
	NativeArchitecture                    string
	OperatingSystemVersion                string
	OperatingSystemVersionWithBuildNumber string
	PlatformRecord                        ActionPlatformRecord
}

type ActionPlatformRecord struct {
	Identifier      string
	UserDescription string
}

type ActionSDKRecord struct {
	Name                   string
	Identifier             string
	OperatingSystemVersion string
}

// ActionTestPlanRunSummaries is the target of an action's tests reference.
type ActionTestPlanRunSummaries struct {
	Summaries []ActionTestPlanRunSummary
}

type ActionTestPlanRunSummary struct {
	Name              string
	TestableSummaries []ActionTestableSummary
}

type ActionTestableSummary struct {
	Name          string
	TargetName    string
	IdentifierURL string
	Tests         []TestNode
}

// TestNodeKind tags the two variants of a TestNode.
type TestNodeKind int

const (
	// TestNodeGroup is a container (test class, bundle) holding Subtests.
	TestNodeGroup TestNodeKind = iota
	// TestNodeTest is a concrete test case pointing at its summary.
	TestNodeTest
)

func (k TestNodeKind) String() string {
	switch k {
	case TestNodeGroup:
		return "group"
	case TestNodeTest:
		return "test"
	default:
		return "unknown"
	}
}

// TestNode is one node of the test hierarchy: either a group or a test.
// Subtests is only set for groups; TestStatus and SummaryRef only for tests.
type TestNode struct {
	Kind       TestNodeKind
	Name       string
	Identifier string
	Duration   *float64

	TestStatus string
	SummaryRef *Reference

	Subtests []TestNode
}

// ActionTestSummary is the detailed record of a single test execution.
type ActionTestSummary struct {
	Name              string
	Identifier        string
	TestStatus        string
	Duration          *float64
	ActivitySummaries []ActionTestActivitySummary
	FailureSummaries  []ActionTestFailureSummary
}

// ActionTestActivitySummary is a logged activity, possibly nested.
type ActionTestActivitySummary struct {
	Title             string
	ActivityType      string
	UUID              string
	Start             *time.Time
	Finish            *time.Time
	Attachments       []ActionTestAttachment
	Subactivities     []ActionTestActivitySummary
	FailureSummaryIDs []string
}

// ActionTestFailureSummary is a recorded assertion or error.
type ActionTestFailureSummary struct {
	UUID        string
	IssueType   string
	Message     *string
	FileName    *string
	LineNumber  *int
	Timestamp   *time.Time
	Attachments []ActionTestAttachment
}

// ActionTestAttachment is an attachment blob stored in the bundle.
type ActionTestAttachment struct {
	UniformTypeIdentifier string
	Name                  *string
	UUID                  *string
	Filename              *string
	Timestamp             *time.Time
	PayloadRef            *Reference
	PayloadSize           int
	// UserInfo holds the attachment's user dictionary in declaration order.
	// Values are type-erased: string, bool, int64, float64, []byte,
	// map[string]any or []any.
	UserInfo []KeyValue
}

// KeyValue is one entry of a type-erased dictionary.
type KeyValue struct {
	Key   string
	Value any
}

// ExportFilename is the file name an exported attachment is written under.
func (a *ActionTestAttachment) ExportFilename() string {
	if a.Filename != nil && *a.Filename != "" {
		return *a.Filename
	}
	if a.PayloadRef != nil {
		return a.PayloadRef.ID
	}
	return ""
}
