package model

// Package model defines the normalized test report written by xctools. It is
// the serialized form of one test action: a suite holding tests, each test
// holding a tree of steps with their attachments.

import "time"

// SuiteReport represents one executed test action.
type SuiteReport struct {
	// Test plan name, title or scheme command name, whichever is set first
	Name string `json:"name"`
	// Time the action started
	StartTime time.Time `json:"startTime"`
	// Duration of the action in seconds
	Duration float64 `json:"duration"`
	// Whether the action itself reported success
	Successful bool `json:"successful"`
	// Device and SDK the action ran on, nil when not representable
	RunDestination *RunDestination `json:"runDestination,omitempty"`
	// Test cases in declared order
	Tests []TestReport `json:"tests"`
}

// TestReport represents a single test case.
type TestReport struct {
	Name       *string    `json:"name,omitempty"`
	StartTime  *time.Time `json:"startTime,omitempty"`
	Duration   *float64   `json:"duration,omitempty"`
	Successful bool       `json:"successful"`

	// Activity and failure steps ordered by start time
	Steps []StepReport `json:"steps"`
	// Failures in the order they were recorded
	Failures []FailureRecord `json:"failures"`
}

// StepReport is one activity or failure within a test.
type StepReport struct {
	Name         string       `json:"name"`
	UUID         string       `json:"uuid"`
	ActivityType ActivityType `json:"activityType"`
	StartTime    time.Time    `json:"startTime"`
	// Duration in seconds; nil when the activity never finished
	Duration   *float64 `json:"duration,omitempty"`
	Successful bool     `json:"successful"`

	Attachments []Attachment `json:"attachments"`
	Substeps    []StepReport `json:"substeps,omitempty"`
}

// FailureRecord is a recorded assertion or error.
type FailureRecord struct {
	UUID       string      `json:"uuid"`
	Type       FailureType `json:"type"`
	Message    *string     `json:"message,omitempty"`
	FilePath   *string     `json:"filePath,omitempty"`
	LineNumber *int        `json:"lineNumber,omitempty"`
	Timestamp  *time.Time  `json:"timestamp,omitempty"`
}

// ActivityType classifies a step.
type ActivityType string

const (
	ActivityTypeInternal    ActivityType = "com.apple.dt.xctest.activity-type.internal"
	ActivityTypeUserCreated ActivityType = "com.apple.dt.xctest.activity-type.userCreated"
	ActivityTypeUnknown     ActivityType = "com.genexus.ios.activity-type.unknown"
)

// ParseActivityType maps a raw XCTest activity type to a known value.
func ParseActivityType(raw string) ActivityType {
	switch t := ActivityType(raw); t {
	case ActivityTypeInternal, ActivityTypeUserCreated:
		return t
	default:
		return ActivityTypeUnknown
	}
}

// FailureType classifies a failure.
type FailureType string

const (
	FailureTypeAssertion FailureType = "Assertion Failure"
	FailureTypeUnknown   FailureType = "Unknown"
)

// ParseFailureType maps a raw issue type to a known value.
func ParseFailureType(raw string) FailureType {
	if FailureType(raw) == FailureTypeAssertion {
		return FailureTypeAssertion
	}
	return FailureTypeUnknown
}

// AllAttachments returns the attachments of every step of every test, in
// traversal order.
func (s *SuiteReport) AllAttachments() []*Attachment {
	var out []*Attachment
	for i := range s.Tests {
		for j := range s.Tests[i].Steps {
			out = append(out, s.Tests[i].Steps[j].AllAttachments()...)
		}
	}
	return out
}

// AllAttachments returns the attachments of the step followed by those of its
// substeps, depth first.
func (s *StepReport) AllAttachments() []*Attachment {
	out := make([]*Attachment, 0, len(s.Attachments))
	for i := range s.Attachments {
		out = append(out, &s.Attachments[i])
	}
	for i := range s.Substeps {
		out = append(out, s.Substeps[i].AllAttachments()...)
	}
	return out
}

// TestCount returns the number of tests and how many of them failed.
func (s *SuiteReport) TestCount() (total, failed int) {
	for _, t := range s.Tests {
		total++
		if !t.Successful {
			failed++
		}
	}
	return total, failed
}
