package domain

import (
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventSubmissionReceived           EventType = "submission_received"
	EventCompleteSubmissionReceived   EventType = "complete_submission_received"
	EventIncompleteSubmissionReceived EventType = "incomplete_submission_received"
	EventValueProduced                EventType = "value_produced"
	EventDisplayedValueProduced       EventType = "displayed_value_produced"
	EventEvaluationFailed             EventType = "evaluation_failed"
	EventEvaluationSucceeded          EventType = "evaluation_succeeded"
)

// Common MIME types carried by FormattedValue.
const (
	MimeTextPlain    = "text/plain"
	MimeTextHTML     = "text/html"
	MimeTextMarkdown = "text/markdown"
)

// Event is a lifecycle notification. Consumers correlate events with
// submissions exclusively through SubmissionID and ParentID.
type Event interface {
	Base() EventBase
}

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp    time.Time `json:"timestamp"`
	Type         EventType `json:"type"`
	SubmissionID string    `json:"submission_id"`
	ParentID     string    `json:"parent_id,omitempty"`
}

func (b EventBase) Base() EventBase { return b }

func newBase(t EventType, s Submission) EventBase {
	return EventBase{
		Timestamp:    time.Now(),
		Type:         t,
		SubmissionID: s.ID,
		ParentID:     s.ParentID,
	}
}

// FormattedValue is a value paired with the MIME type it is rendered as.
type FormattedValue struct {
	MimeType string `json:"mime_type"`
	Value    string `json:"value"`
}

// PlainText is shorthand for a text/plain value.
func PlainText(v string) FormattedValue {
	return FormattedValue{MimeType: MimeTextPlain, Value: v}
}

// Markdown is shorthand for a text/markdown value.
func Markdown(v string) FormattedValue {
	return FormattedValue{MimeType: MimeTextMarkdown, Value: v}
}

// HTML is shorthand for a text/html value.
func HTML(v string) FormattedValue {
	return FormattedValue{MimeType: MimeTextHTML, Value: v}
}

// SubmissionReceived is emitted as soon as a submission enters the kernel.
type SubmissionReceived struct {
	EventBase
	Code string `json:"code"`
}

// CompleteSubmissionReceived is emitted when buffered text forms a complete unit.
type CompleteSubmissionReceived struct {
	EventBase
	Code string `json:"code"`
}

// IncompleteSubmissionReceived is emitted when more input is needed.
type IncompleteSubmissionReceived struct {
	EventBase
}

// ValueProduced carries the value of the trailing expression of a unit.
type ValueProduced struct {
	EventBase
	Value FormattedValue `json:"value"`
}

// DisplayedValueProduced carries output that should be displayed (magics, stdout).
// Alternates hold the same content in other MIME types.
type DisplayedValueProduced struct {
	EventBase
	Value      FormattedValue   `json:"value"`
	Alternates []FormattedValue `json:"alternates,omitempty"`
}

// Formats returns Value followed by every alternate.
func (e DisplayedValueProduced) Formats() []FormattedValue {
	return append([]FormattedValue{e.Value}, e.Alternates...)
}

// Preferred returns the first format matching mimeTypes, in order of preference.
func (e DisplayedValueProduced) Preferred(mimeTypes ...string) (FormattedValue, bool) {
	formats := e.Formats()
	for _, mt := range mimeTypes {
		for _, f := range formats {
			if f.MimeType == mt {
				return f, true
			}
		}
	}
	return FormattedValue{}, false
}

// EvaluationFailed reports a faulted execution.
// Message holds the formatted diagnostics when available, otherwise the error text.
type EvaluationFailed struct {
	EventBase
	Err         error        `json:"-"`
	Error       string       `json:"error"`
	Message     string       `json:"message"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// EvaluationSucceeded is always the last event of a successful execution.
type EvaluationSucceeded struct {
	EventBase
}

func NewSubmissionReceived(s Submission) SubmissionReceived {
	return SubmissionReceived{EventBase: newBase(EventSubmissionReceived, s), Code: s.Code}
}

func NewCompleteSubmissionReceived(s Submission) CompleteSubmissionReceived {
	return CompleteSubmissionReceived{EventBase: newBase(EventCompleteSubmissionReceived, s), Code: s.Code}
}

func NewIncompleteSubmissionReceived(s Submission) IncompleteSubmissionReceived {
	return IncompleteSubmissionReceived{EventBase: newBase(EventIncompleteSubmissionReceived, s)}
}

func NewValueProduced(s Submission, v FormattedValue) ValueProduced {
	return ValueProduced{EventBase: newBase(EventValueProduced, s), Value: v}
}

func NewDisplayedValueProduced(s Submission, v FormattedValue, alternates ...FormattedValue) DisplayedValueProduced {
	return DisplayedValueProduced{EventBase: newBase(EventDisplayedValueProduced, s), Value: v, Alternates: alternates}
}

// NewEvaluationFailed builds a failure event. When diagnostics are present
// they are formatted into the message; otherwise the error text is used.
func NewEvaluationFailed(s Submission, err error, diags []Diagnostic) EvaluationFailed {
	ev := EvaluationFailed{
		EventBase:   newBase(EventEvaluationFailed, s),
		Err:         err,
		Diagnostics: diags,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if len(diags) > 0 {
		ev.Message = FormatDiagnostics(diags)
	} else {
		ev.Message = ev.Error
	}
	return ev
}

func NewEvaluationSucceeded(s Submission) EvaluationSucceeded {
	return EvaluationSucceeded{EventBase: newBase(EventEvaluationSucceeded, s)}
}

// IsTerminal reports whether e closes an execution (success or failure).
func IsTerminal(e Event) bool {
	switch e.Base().Type {
	case EventEvaluationSucceeded, EventEvaluationFailed:
		return true
	}
	return false
}
