package xcresult

// This file contains the decoder for the legacy JSON format emitted by
// `xcresulttool get --legacy --format json`. Every value is wrapped in an
// envelope carrying its type name, scalars are encoded as strings in
// "_value" and arrays as "_values".

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// dateLayout is the format xcresulttool uses for Date values.
const dateLayout = "2006-01-02T15:04:05.000-0700"

type typeInfo struct {
	Name      string    `json:"_name"`
	Supertype *typeInfo `json:"_supertype,omitempty"`
}

type scalar struct {
	Type  typeInfo `json:"_type"`
	Value string   `json:"_value"`
}

type array[T any] struct {
	Values []T `json:"_values"`
}

type envelope struct {
	Type typeInfo `json:"_type"`
}

func (s *scalar) text() string {
	if s == nil {
		return ""
	}
	return s.Value
}

func (s *scalar) optText() *string {
	if s == nil {
		return nil
	}
	v := s.Value
	return &v
}

func (s *scalar) optDate() (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := parseDate(s.Value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *scalar) optFloat() (*float64, error) {
	if s == nil {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s.Value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s.Value, err)
	}
	return &f, nil
}

func (s *scalar) optInt() (*int, error) {
	if s == nil {
		return nil, nil
	}
	i, err := strconv.Atoi(s.Value)
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q: %w", s.Value, err)
	}
	return &i, nil
}

func parseDate(v string) (time.Time, error) {
	t, err := time.Parse(dateLayout, v)
	if err == nil {
		return t, nil
	}
	// Newer tool versions emit RFC 3339.
	if t, err2 := time.Parse(time.RFC3339Nano, v); err2 == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: %w", v, err)
}

func texts(a *array[scalar]) []string {
	if a == nil {
		return nil
	}
	out := make([]string, 0, len(a.Values))
	for _, v := range a.Values {
		out = append(out, v.Value)
	}
	return out
}

type wireReference struct {
	ID         *scalar `json:"id"`
	TargetType *struct {
		Name *scalar `json:"name"`
	} `json:"targetType"`
}

func (r *wireReference) toReference() *Reference {
	if r == nil || r.ID == nil {
		return nil
	}
	ref := &Reference{ID: r.ID.Value}
	if r.TargetType != nil {
		ref.TargetType = r.TargetType.Name.text()
	}
	return ref
}

type wireInvocationRecord struct {
	Type    typeInfo                 `json:"_type"`
	Actions *array[wireActionRecord] `json:"actions"`
}

type wireActionRecord struct {
	SchemeCommandName *scalar             `json:"schemeCommandName"`
	SchemeTaskName    *scalar             `json:"schemeTaskName"`
	Title             *scalar             `json:"title"`
	TestPlanName      *scalar             `json:"testPlanName"`
	StartedTime       *scalar             `json:"startedTime"`
	EndedTime         *scalar             `json:"endedTime"`
	RunDestination    *wireRunDestination `json:"runDestination"`
	BuildResult       *wireActionResult   `json:"buildResult"`
	ActionResult      *wireActionResult   `json:"actionResult"`
}

type wireActionResult struct {
	ResultName     *scalar        `json:"resultName"`
	Status         *scalar        `json:"status"`
	TestsRef       *wireReference `json:"testsRef"`
	DiagnosticsRef *wireReference `json:"diagnosticsRef"`
	LogRef         *wireReference `json:"logRef"`
}

type wireRunDestination struct {
	DisplayName         *scalar        `json:"displayName"`
	TargetArchitecture  *scalar        `json:"targetArchitecture"`
	TargetDeviceRecord  *wireDevice    `json:"targetDeviceRecord"`
	LocalComputerRecord *wireDevice    `json:"localComputerRecord"`
	TargetSDKRecord     *wireSDKRecord `json:"targetSDKRecord"`
}

type wireDevice struct {
	Name                                  *scalar `json:"name"`
	Identifier                            *scalar `json:"identifier"`
	ModelName                             *scalar `json:"modelName"`
	ModelCode                             *scalar `json:"modelCode"`
	NativeArchitecture                    *scalar `json:"nativeArchitecture"`
	OperatingSystemVersion                *scalar `json:"operatingSystemVersion"`
	OperatingSystemVersionWithBuildNumber *scalar `json:"operatingSystemVersionWithBuildNumber"`
	PlatformRecord                        *struct {
		Identifier      *scalar `json:"identifier"`
		UserDescription *scalar `json:"userDescription"`
	} `json:"platformRecord"`
}

type wireSDKRecord struct {
	Name                   *scalar `json:"name"`
	Identifier             *scalar `json:"identifier"`
	OperatingSystemVersion *scalar `json:"operatingSystemVersion"`
}

func (d *wireDevice) toDevice() ActionDeviceRecord {
	if d == nil {
		return ActionDeviceRecord{}
	}
	rec := ActionDeviceRecord{
		Name:                                  d.Name.text(),
		Identifier:                            d.Identifier.text(),
		ModelName:                             d.ModelName.text(),
		ModelCode:                             d.ModelCode.text(),
		NativeArchitecture:                    d.NativeArchitecture.text(),
		OperatingSystemVersion:                d.OperatingSystemVersion.text(),
		OperatingSystemVersionWithBuildNumber: d.OperatingSystemVersionWithBuildNumber.text(),
	}
	if d.PlatformRecord != nil {
		rec.PlatformRecord = ActionPlatformRecord{
			Identifier:      d.PlatformRecord.Identifier.text(),
			UserDescription: d.PlatformRecord.UserDescription.text(),
		}
	}
	return rec
}

func (r *wireActionResult) toActionResult() ActionResult {
	if r == nil {
		return ActionResult{}
	}
	return ActionResult{
		ResultName:     r.ResultName.text(),
		Status:         r.Status.text(),
		TestsRef:       r.TestsRef.toReference(),
		DiagnosticsRef: r.DiagnosticsRef.toReference(),
		LogRef:         r.LogRef.toReference(),
	}
}

func (a *wireActionRecord) toActionRecord() (ActionRecord, error) {
	rec := ActionRecord{
		SchemeCommandName: a.SchemeCommandName.text(),
		SchemeTaskName:    a.SchemeTaskName.text(),
		Title:             a.Title.optText(),
		TestPlanName:      a.TestPlanName.optText(),
		BuildResult:       a.BuildResult.toActionResult(),
		ActionResult:      a.ActionResult.toActionResult(),
	}

	started, err := a.StartedTime.optDate()
	if err != nil {
		return ActionRecord{}, fmt.Errorf("startedTime: %w", err)
	}
	if started != nil {
		rec.StartedTime = *started
	}
	ended, err := a.EndedTime.optDate()
	if err != nil {
		return ActionRecord{}, fmt.Errorf("endedTime: %w", err)
	}
	if ended != nil {
		rec.EndedTime = *ended
	}

	if rd := a.RunDestination; rd != nil {
		rec.RunDestination = ActionRunDestinationRecord{
			DisplayName:         rd.DisplayName.text(),
			TargetArchitecture:  rd.TargetArchitecture.text(),
			TargetDeviceRecord:  rd.TargetDeviceRecord.toDevice(),
			LocalComputerRecord: rd.LocalComputerRecord.toDevice(),
		}
		if sdk := rd.TargetSDKRecord; sdk != nil {
			rec.RunDestination.TargetSDKRecord = ActionSDKRecord{
				Name:                   sdk.Name.text(),
				Identifier:             sdk.Identifier.text(),
				OperatingSystemVersion: sdk.OperatingSystemVersion.text(),
			}
		}
	}

	return rec, nil
}

// DecodeInvocationRecord decodes the root object of a result bundle.
func DecodeInvocationRecord(data []byte) (*ActionsInvocationRecord, error) {
	var wire wireInvocationRecord
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse invocation record: %w", err)
	}
	if wire.Type.Name != KindActionsInvocationRecord {
		return nil, fmt.Errorf("%w: expected %s, got %q", ErrUnresolved, KindActionsInvocationRecord, wire.Type.Name)
	}

	record := &ActionsInvocationRecord{}
	if wire.Actions == nil {
		return record, nil
	}
	for i := range wire.Actions.Values {
		action, err := wire.Actions.Values[i].toActionRecord()
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		record.Actions = append(record.Actions, action)
	}
	return record, nil
}

type wirePlanRunSummaries struct {
	Type      typeInfo `json:"_type"`
	Summaries *array[struct {
		Name              *scalar `json:"name"`
		TestableSummaries *array[struct {
			Name          *scalar              `json:"name"`
			TargetName    *scalar              `json:"targetName"`
			IdentifierURL *scalar              `json:"identifierURL"`
			Tests         *array[wireTestNode] `json:"tests"`
		}] `json:"testableSummaries"`
	}] `json:"summaries"`
}

type wireTestNode struct {
	Type       typeInfo             `json:"_type"`
	Name       *scalar              `json:"name"`
	Identifier *scalar              `json:"identifier"`
	Duration   *scalar              `json:"duration"`
	TestStatus *scalar              `json:"testStatus"`
	SummaryRef *wireReference       `json:"summaryRef"`
	Subtests   *array[wireTestNode] `json:"subtests"`
}

func (n *wireTestNode) toTestNode() (TestNode, error) {
	node := TestNode{
		Name:       n.Name.text(),
		Identifier: n.Identifier.text(),
	}
	duration, err := n.Duration.optFloat()
	if err != nil {
		return TestNode{}, fmt.Errorf("test %q duration: %w", node.Identifier, err)
	}
	node.Duration = duration

	switch n.Type.Name {
	case KindActionTestMetadata:
		node.Kind = TestNodeTest
		node.TestStatus = n.TestStatus.text()
		node.SummaryRef = n.SummaryRef.toReference()
	case KindActionTestSummaryGroup:
		node.Kind = TestNodeGroup
		if n.Subtests != nil {
			for i := range n.Subtests.Values {
				child, err := n.Subtests.Values[i].toTestNode()
				if err != nil {
					return TestNode{}, err
				}
				node.Subtests = append(node.Subtests, child)
			}
		}
	default:
		return TestNode{}, fmt.Errorf("%w: unhandled test node type %q", ErrUnresolved, n.Type.Name)
	}
	return node, nil
}

// DecodeTestPlanRunSummaries decodes the target of an action's tests reference.
func DecodeTestPlanRunSummaries(data []byte) (*ActionTestPlanRunSummaries, error) {
	var wire wirePlanRunSummaries
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse test plan run summaries: %w", err)
	}
	if wire.Type.Name != KindActionTestPlanRunSummaries {
		return nil, fmt.Errorf("%w: expected %s, got %q", ErrUnresolved, KindActionTestPlanRunSummaries, wire.Type.Name)
	}

	out := &ActionTestPlanRunSummaries{}
	if wire.Summaries == nil {
		return out, nil
	}
	for _, s := range wire.Summaries.Values {
		summary := ActionTestPlanRunSummary{Name: s.Name.text()}
		if s.TestableSummaries != nil {
			for _, ts := range s.TestableSummaries.Values {
				testable := ActionTestableSummary{
					Name:          ts.Name.text(),
					TargetName:    ts.TargetName.text(),
					IdentifierURL: ts.IdentifierURL.text(),
				}
				if ts.Tests != nil {
					for i := range ts.Tests.Values {
						node, err := ts.Tests.Values[i].toTestNode()
						if err != nil {
							return nil, err
						}
						testable.Tests = append(testable.Tests, node)
					}
				}
				summary.TestableSummaries = append(summary.TestableSummaries, testable)
			}
		}
		out.Summaries = append(out.Summaries, summary)
	}
	return out, nil
}

type wireTestSummary struct {
	Type              typeInfo                    `json:"_type"`
	Name              *scalar                     `json:"name"`
	Identifier        *scalar                     `json:"identifier"`
	TestStatus        *scalar                     `json:"testStatus"`
	Duration          *scalar                     `json:"duration"`
	ActivitySummaries *array[wireActivitySummary] `json:"activitySummaries"`
	FailureSummaries  *array[wireFailureSummary]  `json:"failureSummaries"`
}

type wireActivitySummary struct {
	Title             *scalar                     `json:"title"`
	ActivityType      *scalar                     `json:"activityType"`
	UUID              *scalar                     `json:"uuid"`
	Start             *scalar                     `json:"start"`
	Finish            *scalar                     `json:"finish"`
	Attachments       *array[wireAttachment]      `json:"attachments"`
	Subactivities     *array[wireActivitySummary] `json:"subactivities"`
	FailureSummaryIDs *array[scalar]              `json:"failureSummaryIDs"`
}

type wireFailureSummary struct {
	UUID        *scalar                `json:"uuid"`
	IssueType   *scalar                `json:"issueType"`
	Message     *scalar                `json:"message"`
	FileName    *scalar                `json:"fileName"`
	LineNumber  *scalar                `json:"lineNumber"`
	Timestamp   *scalar                `json:"timestamp"`
	Attachments *array[wireAttachment] `json:"attachments"`
}

type wireAttachment struct {
	UniformTypeIdentifier *scalar        `json:"uniformTypeIdentifier"`
	Name                  *scalar        `json:"name"`
	UUID                  *scalar        `json:"uuid"`
	Filename              *scalar        `json:"filename"`
	Timestamp             *scalar        `json:"timestamp"`
	PayloadRef            *wireReference `json:"payloadRef"`
	PayloadSize           *scalar        `json:"payloadSize"`
	UserInfo              *struct {
		Storage *array[struct {
			Key   *scalar         `json:"key"`
			Value json.RawMessage `json:"value"`
		}] `json:"storage"`
	} `json:"userInfo"`
}

func (a *wireAttachment) toAttachment() (ActionTestAttachment, error) {
	att := ActionTestAttachment{
		UniformTypeIdentifier: a.UniformTypeIdentifier.text(),
		Name:                  a.Name.optText(),
		UUID:                  a.UUID.optText(),
		Filename:              a.Filename.optText(),
		PayloadRef:            a.PayloadRef.toReference(),
	}
	ts, err := a.Timestamp.optDate()
	if err != nil {
		return ActionTestAttachment{}, fmt.Errorf("attachment timestamp: %w", err)
	}
	att.Timestamp = ts
	if size, err := a.PayloadSize.optInt(); err == nil && size != nil {
		att.PayloadSize = *size
	}
	if a.UserInfo != nil && a.UserInfo.Storage != nil {
		for _, pair := range a.UserInfo.Storage.Values {
			value, ok := decodeAny(pair.Value)
			if !ok {
				continue
			}
			att.UserInfo = append(att.UserInfo, KeyValue{Key: pair.Key.text(), Value: value})
		}
	}
	return att, nil
}

func toAttachments(a *array[wireAttachment]) ([]ActionTestAttachment, error) {
	if a == nil {
		return nil, nil
	}
	out := make([]ActionTestAttachment, 0, len(a.Values))
	for i := range a.Values {
		att, err := a.Values[i].toAttachment()
		if err != nil {
			return nil, err
		}
		out = append(out, att)
	}
	return out, nil
}

func (w *wireActivitySummary) toActivity() (ActionTestActivitySummary, error) {
	activity := ActionTestActivitySummary{
		Title:             w.Title.text(),
		ActivityType:      w.ActivityType.text(),
		UUID:              w.UUID.text(),
		FailureSummaryIDs: texts(w.FailureSummaryIDs),
	}
	var err error
	if activity.Start, err = w.Start.optDate(); err != nil {
		return ActionTestActivitySummary{}, fmt.Errorf("activity %s start: %w", activity.UUID, err)
	}
	if activity.Finish, err = w.Finish.optDate(); err != nil {
		return ActionTestActivitySummary{}, fmt.Errorf("activity %s finish: %w", activity.UUID, err)
	}
	if activity.Attachments, err = toAttachments(w.Attachments); err != nil {
		return ActionTestActivitySummary{}, fmt.Errorf("activity %s: %w", activity.UUID, err)
	}
	if w.Subactivities != nil {
		for i := range w.Subactivities.Values {
			sub, err := w.Subactivities.Values[i].toActivity()
			if err != nil {
				return ActionTestActivitySummary{}, err
			}
			activity.Subactivities = append(activity.Subactivities, sub)
		}
	}
	return activity, nil
}

func (w *wireFailureSummary) toFailure() (ActionTestFailureSummary, error) {
	failure := ActionTestFailureSummary{
		UUID:      w.UUID.text(),
		IssueType: w.IssueType.text(),
		Message:   w.Message.optText(),
		FileName:  w.FileName.optText(),
	}
	var err error
	if failure.LineNumber, err = w.LineNumber.optInt(); err != nil {
		return ActionTestFailureSummary{}, fmt.Errorf("failure %s: %w", failure.UUID, err)
	}
	if failure.Timestamp, err = w.Timestamp.optDate(); err != nil {
		return ActionTestFailureSummary{}, fmt.Errorf("failure %s timestamp: %w", failure.UUID, err)
	}
	if failure.Attachments, err = toAttachments(w.Attachments); err != nil {
		return ActionTestFailureSummary{}, fmt.Errorf("failure %s: %w", failure.UUID, err)
	}
	return failure, nil
}

// DecodeTestSummary decodes the target of a test's summary reference.
func DecodeTestSummary(data []byte) (*ActionTestSummary, error) {
	var wire wireTestSummary
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse test summary: %w", err)
	}
	if wire.Type.Name != KindActionTestSummary {
		return nil, fmt.Errorf("%w: expected %s, got %q", ErrUnresolved, KindActionTestSummary, wire.Type.Name)
	}

	summary := &ActionTestSummary{
		Name:       wire.Name.text(),
		Identifier: wire.Identifier.text(),
		TestStatus: wire.TestStatus.text(),
	}
	var err error
	if summary.Duration, err = wire.Duration.optFloat(); err != nil {
		return nil, fmt.Errorf("test summary duration: %w", err)
	}
	if wire.ActivitySummaries != nil {
		for i := range wire.ActivitySummaries.Values {
			activity, err := wire.ActivitySummaries.Values[i].toActivity()
			if err != nil {
				return nil, err
			}
			summary.ActivitySummaries = append(summary.ActivitySummaries, activity)
		}
	}
	if wire.FailureSummaries != nil {
		for i := range wire.FailureSummaries.Values {
			failure, err := wire.FailureSummaries.Values[i].toFailure()
			if err != nil {
				return nil, err
			}
			summary.FailureSummaries = append(summary.FailureSummaries, failure)
		}
	}
	return summary, nil
}

// decodeAny converts a type-erased value into plain Go values. The second
// result is false for values that cannot be represented.
func decodeAny(raw json.RawMessage) (any, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var head struct {
		Type    typeInfo          `json:"_type"`
		Value   *string           `json:"_value"`
		Values  []json.RawMessage `json:"_values"`
		Storage *struct {
			Values []struct {
				Key   *scalar         `json:"key"`
				Value json.RawMessage `json:"value"`
			} `json:"_values"`
		} `json:"storage"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, false
	}

	switch head.Type.Name {
	case "String":
		if head.Value == nil {
			return nil, false
		}
		return *head.Value, true
	case "Bool":
		if head.Value == nil {
			return nil, false
		}
		b, err := strconv.ParseBool(*head.Value)
		return b, err == nil
	case "Int", "Int8", "Int16", "Int32", "Int64", "UInt8", "UInt16", "UInt32", "UInt64":
		if head.Value == nil {
			return nil, false
		}
		i, err := strconv.ParseInt(*head.Value, 10, 64)
		return i, err == nil
	case "Double", "Float":
		if head.Value == nil {
			return nil, false
		}
		f, err := strconv.ParseFloat(*head.Value, 64)
		return f, err == nil
	case "Data":
		if head.Value == nil {
			return nil, false
		}
		b, err := base64.StdEncoding.DecodeString(*head.Value)
		return b, err == nil
	case "Array":
		out := make([]any, 0, len(head.Values))
		for _, v := range head.Values {
			if item, ok := decodeAny(v); ok {
				out = append(out, item)
			}
		}
		return out, true
	case "SortedKeyValueArray":
		out := map[string]any{}
		if head.Storage != nil {
			for _, pair := range head.Storage.Values {
				if pair.Key == nil {
					continue
				}
				if item, ok := decodeAny(pair.Value); ok {
					out[pair.Key.Value] = item
				}
			}
		}
		return out, true
	default:
		return nil, false
	}
}
