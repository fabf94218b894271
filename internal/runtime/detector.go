package runtime

import (
	"strings"
	"sync"

	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/ports"
)

// DetectorResult is the outcome of feeding one line to a Detector.
type DetectorResult struct {
	// Complete is true when Text holds a unit ready for execution.
	Complete bool
	Text     string
	// Fault carries the last BufferingError seen while buffering this unit.
	Fault error
}

// Detector accumulates lines until the front-end accepts them as a unit.
// The buffer belongs to one session and is never shared.
type Detector struct {
	frontEnd ports.FrontEnd

	mu    sync.Mutex
	buf   strings.Builder
	fault error
}

// NewDetector creates a detector backed by the given front-end.
func NewDetector(frontEnd ports.FrontEnd) *Detector {
	return &Detector{frontEnd: frontEnd}
}

// Submit appends line to the buffer and checks it for completeness.
// On completion the buffer is cleared before Submit returns.
func (d *Detector) Submit(line string) DetectorResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	line = strings.TrimRight(line, "\r\n")
	if d.buf.Len() == 0 && strings.TrimSpace(line) == "" {
		return DetectorResult{}
	}
	d.buf.WriteString(line)
	d.buf.WriteByte('\n')

	text := d.buf.String()
	if strings.TrimSpace(text) == "" {
		return DetectorResult{}
	}

	complete, err := d.frontEnd.IsCompleteUnit(text)
	if err != nil {
		d.fault = &domain.BufferingError{Text: text, Err: err}
		return DetectorResult{Fault: d.fault}
	}
	if !complete {
		return DetectorResult{Fault: d.fault}
	}

	res := DetectorResult{Complete: true, Text: text, Fault: d.fault}
	d.reset()
	return res
}

// Pending returns the buffered text not yet emitted as a unit.
func (d *Detector) Pending() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.String()
}

// Buffering reports whether a partial unit is waiting for more lines.
func (d *Detector) Buffering() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.Len() > 0
}

// Fault returns the tokenize failure recorded for the current buffer, if any.
func (d *Detector) Fault() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fault
}

// Abandon drops the buffer and returns what it held, with any tokenize failure.
func (d *Detector) Abandon() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	text, fault := d.buf.String(), d.fault
	d.reset()
	return text, fault
}

func (d *Detector) reset() {
	d.buf.Reset()
	d.fault = nil
}
