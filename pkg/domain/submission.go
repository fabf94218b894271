package domain

import "github.com/google/uuid"

// Submission is one logical chunk of user supplied text.
// It is immutable: re-dispatching residual text builds a new value.
type Submission struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
	Code     string `json:"code"`
}

// NewSubmission creates a root submission with a fresh identity.
func NewSubmission(code string) Submission {
	return Submission{
		ID:   uuid.NewString(),
		Code: code,
	}
}

// Derive returns a submission carrying new text under the same identity.
// Used when residual text is handed back to the pipeline.
func (s Submission) Derive(code string) Submission {
	return Submission{
		ID:       s.ID,
		ParentID: s.ParentID,
		Code:     code,
	}
}

// Child returns a nested submission whose parent is s.
func (s Submission) Child(code string) Submission {
	return Submission{
		ID:       uuid.NewString(),
		ParentID: s.ID,
		Code:     code,
	}
}

// Command is a request dispatched to a kernel.
type Command interface {
	Submission() Submission
	WithSubmission(Submission) Command
}

// SubmitCode asks the kernel to route, buffer and execute code.
type SubmitCode struct {
	Sub Submission `json:"submission"`
}

// NewSubmitCode wraps code in a fresh root submission.
func NewSubmitCode(code string) SubmitCode {
	return SubmitCode{Sub: NewSubmission(code)}
}

func (c SubmitCode) Submission() Submission { return c.Sub }

func (c SubmitCode) WithSubmission(s Submission) Command {
	c.Sub = s
	return c
}

// RequestDiagnostics asks the front-end for diagnostics without executing.
type RequestDiagnostics struct {
	Sub Submission `json:"submission"`
}

func (c RequestDiagnostics) Submission() Submission { return c.Sub }

func (c RequestDiagnostics) WithSubmission(s Submission) Command {
	c.Sub = s
	return c
}
