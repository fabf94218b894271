package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Severity ranks a diagnostic. Higher values are more severe.
type Severity int

const (
	SeverityHidden Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "hidden"
	}
}

// MarshalText renders the severity by name in JSON payloads.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Position locates a diagnostic inside a unit. Offset is a byte offset.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Offset int `json:"offset"`
}

// Diagnostic is a message produced by a front-end for a unit of code.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Position Position `json:"position"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("(%d,%d): %s: %s", d.Position.Line, d.Position.Column, d.Severity, d.Message)
}

// SortDiagnostics orders diagnostics by severity descending, then by
// source position ascending. Ties keep their input order.
func SortDiagnostics(diags []Diagnostic) []Diagnostic {
	out := append([]Diagnostic(nil), diags...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		return out[i].Position.Offset < out[j].Position.Offset
	})
	return out
}

// FormatDiagnostics joins diagnostics one per line.
func FormatDiagnostics(diags []Diagnostic) string {
	lines := make([]string, 0, len(diags))
	for _, d := range diags {
		lines = append(lines, d.String())
	}
	return strings.Join(lines, "\n")
}
