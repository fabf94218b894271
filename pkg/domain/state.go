package domain

import "time"

// ExecutionStatus defines the lifecycle of one engine execution.
type ExecutionStatus string

const (
	StatusIdle      ExecutionStatus = "idle"
	StatusRunning   ExecutionStatus = "running"
	StatusSucceeded ExecutionStatus = "succeeded"
	StatusFaulted   ExecutionStatus = "faulted"
)

// SessionRecord is the durable history of a kernel session.
// Units holds every unit that completed successfully, in execution order,
// so a fresh engine can be brought back to the same state.
type SessionRecord struct {
	ID        string    `json:"id"`
	Language  string    `json:"language"`
	Units     []string  `json:"units"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSessionRecord creates an empty history for the given session.
func NewSessionRecord(id, language string) *SessionRecord {
	return &SessionRecord{
		ID:        id,
		Language:  language,
		Units:     []string{},
		UpdatedAt: time.Now().UTC(),
	}
}

// Append records a completed unit.
func (r *SessionRecord) Append(unit string) {
	r.Units = append(r.Units, unit)
	r.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy so stores never share slices with callers.
func (r *SessionRecord) Clone() *SessionRecord {
	c := *r
	c.Units = append([]string(nil), r.Units...)
	return &c
}
