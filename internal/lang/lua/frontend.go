package lua

import (
	"errors"
	"strings"

	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/yuin/gopher-lua/parse"
)

// Language is the name this back-end registers under.
const Language = "lua"

// FrontEnd implements ports.FrontEnd for Lua 5.1 source.
// A unit is tried both as an expression (prefixed with "return") and as a chunk,
// the same way the reference Lua REPL does.
type FrontEnd struct{}

// NewFrontEnd creates a Lua front-end.
func NewFrontEnd() *FrontEnd {
	return &FrontEnd{}
}

func (f *FrontEnd) Language() string { return Language }

// IsCompleteUnit reports whether text parses. A parse that fails because the
// input ended early means more lines are expected.
func (f *FrontEnd) IsCompleteUnit(text string) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, nil
	}

	exprErr := parseChunk("return " + text)
	if exprErr == nil {
		return true, nil
	}
	stmtErr := parseChunk(text)
	if stmtErr == nil {
		return true, nil
	}

	if isTokenizeError(stmtErr) {
		return false, stmtErr
	}
	if atEOF(stmtErr) || atEOF(exprErr) {
		return false, nil
	}
	// A genuine syntax error: the unit is complete and will fault on execution.
	return true, nil
}

// HasTrailingValue reports whether the unit can be evaluated as an expression list.
func (f *FrontEnd) HasTrailingValue(text string) bool {
	return parseChunk("return "+text) == nil
}

// Diagnostics returns the first syntax error of text, if any.
// gopher-lua stops at the first error, so at most one diagnostic is produced.
func (f *FrontEnd) Diagnostics(text string) []domain.Diagnostic {
	if parseChunk("return "+text) == nil {
		return nil
	}
	err := parseChunk(text)
	if err == nil {
		return nil
	}

	var perr *parse.Error
	if !errors.As(err, &perr) {
		return []domain.Diagnostic{{Severity: domain.SeverityError, Message: err.Error()}}
	}

	msg := perr.Message
	if perr.Token != "" {
		msg += " near '" + perr.Token + "'"
	}
	return []domain.Diagnostic{{
		Severity: domain.SeverityError,
		Message:  msg,
		Position: position(text, perr),
	}}
}

func parseChunk(src string) error {
	_, err := parse.Parse(strings.NewReader(src), "<unit>")
	return err
}

func atEOF(err error) bool {
	var perr *parse.Error
	return errors.As(err, &perr) && perr.Pos.Line == parse.EOF
}

// isTokenizeError matches lexer failures that no further input can repair.
func isTokenizeError(err error) bool {
	var perr *parse.Error
	if !errors.As(err, &perr) || perr.Pos.Line == parse.EOF {
		return false
	}
	switch perr.Message {
	case "unterminated string", "Invalid token", "illegal hexadecimal number", "invalid multiline string":
		return true
	}
	return strings.HasPrefix(perr.Message, "Invalid")
}

func position(text string, perr *parse.Error) domain.Position {
	if perr.Pos.Line == parse.EOF {
		return domain.Position{
			Line:   strings.Count(text, "\n") + 1,
			Offset: len(text),
		}
	}
	offset := 0
	for i := 1; i < perr.Pos.Line; i++ {
		nl := strings.IndexByte(text[offset:], '\n')
		if nl < 0 {
			break
		}
		offset += nl + 1
	}
	return domain.Position{
		Line:   perr.Pos.Line,
		Column: perr.Pos.Column,
		Offset: offset + perr.Pos.Column,
	}
}
