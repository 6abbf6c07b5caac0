package normalize

import "fmt"

// ResolutionError is returned when a required reference cannot be resolved
// to the expected model kind.
type ResolutionError struct {
	// Reference is the unresolved reference ID, or the test identifier when
	// the test carries no reference at all.
	Reference string
	// Kind is the model kind that was expected.
	Kind   string
	Reason string
	Err    error
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("failed to resolve %s reference %q", e.Kind, e.Reference)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ExtractionError is returned when a screenshot cannot be derived from a
// screen recording.
type ExtractionError struct {
	// Recording is the file name of the recording, if known.
	Recording string
	Reason    string
	Err       error
}

func (e *ExtractionError) Error() string {
	msg := "failed to extract screenshot"
	if e.Recording != "" {
		msg += fmt.Sprintf(" from %q", e.Recording)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PreconditionViolation reports a broken caller invariant, such as an
// attachment flagged for extraction without its raw handle.
type PreconditionViolation struct {
	Description string
}

func (e *PreconditionViolation) Error() string {
	return "precondition violation: " + e.Description
}
