package golang

import (
	"errors"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"strings"

	"github.com/aretw0/gokernel/pkg/domain"
)

// Language is the name this back-end registers under.
const Language = "go"

const (
	declPrefix = "package main\n"
	stmtPrefix = "package main\nfunc _() {\n"
	stmtSuffix = "\n}\n"
)

// FrontEnd implements ports.FrontEnd for Go source typed at a prompt.
// A unit is either a run of top-level declarations or a run of statements,
// so every check parses both shapes.
type FrontEnd struct{}

// NewFrontEnd creates a Go front-end.
func NewFrontEnd() *FrontEnd {
	return &FrontEnd{}
}

func (f *FrontEnd) Language() string { return Language }

// attempt is the outcome of parsing the unit in one shape.
type attempt struct {
	file      *ast.File
	errs      scanner.ErrorList
	prefixLen int
	lineShift int
}

func parseAs(text string, stmts bool) attempt {
	src := declPrefix + text
	a := attempt{prefixLen: len(declPrefix), lineShift: 1}
	if stmts {
		src = stmtPrefix + text + stmtSuffix
		a.prefixLen = len(stmtPrefix)
		a.lineShift = 2
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "unit.go", src, parser.AllErrors)
	a.file = file
	if err != nil {
		var list scanner.ErrorList
		if errors.As(err, &list) {
			a.errs = list
		} else {
			a.errs = scanner.ErrorList{{Msg: err.Error()}}
		}
	}
	return a
}

func (a attempt) ok() bool { return len(a.errs) == 0 }

// reachedEnd reports whether the first error sits past the user's text, which
// means the parser ran out of input rather than meeting a bad token.
func (a attempt) reachedEnd(text string) bool {
	if a.ok() {
		return false
	}
	first := a.errs[0]
	// The statement shape closes the wrapper early on a stray '}'.
	if strings.HasPrefix(first.Msg, "expected declaration") {
		return false
	}
	end := len(strings.TrimRight(text, " \t\r\n"))
	return first.Pos.Offset-a.prefixLen >= end
}

// IsCompleteUnit reports whether text parses as declarations or statements.
func (f *FrontEnd) IsCompleteUnit(text string) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, nil
	}

	decl := parseAs(text, false)
	if decl.ok() {
		return true, nil
	}
	stmt := parseAs(text, true)
	if stmt.ok() {
		return true, nil
	}

	for _, a := range []attempt{decl, stmt} {
		for _, e := range a.errs {
			switch {
			case isMultilineToken(e.Msg):
				return false, nil
			case isTokenizeError(e.Msg):
				return false, e
			}
		}
	}

	if decl.reachedEnd(text) || stmt.reachedEnd(text) {
		return false, nil
	}
	return true, nil
}

// HasTrailingValue reports whether the last statement is a bare expression.
func (f *FrontEnd) HasTrailingValue(text string) bool {
	stmt := parseAs(text, true)
	if !stmt.ok() {
		return false
	}
	for _, d := range stmt.file.Decls {
		fn, ok := d.(*ast.FuncDecl)
		if !ok || fn.Body == nil || len(fn.Body.List) == 0 {
			continue
		}
		_, isExpr := fn.Body.List[len(fn.Body.List)-1].(*ast.ExprStmt)
		return isExpr
	}
	return false
}

// Diagnostics reports the syntax errors of the shape that parsed furthest.
func (f *FrontEnd) Diagnostics(text string) []domain.Diagnostic {
	decl := parseAs(text, false)
	if decl.ok() {
		return nil
	}
	stmt := parseAs(text, true)
	if stmt.ok() {
		return nil
	}

	best := decl
	if stmt.errs[0].Pos.Offset-stmt.prefixLen > decl.errs[0].Pos.Offset-decl.prefixLen {
		best = stmt
	}

	diags := make([]domain.Diagnostic, 0, len(best.errs))
	for _, e := range best.errs {
		offset := e.Pos.Offset - best.prefixLen
		if offset < 0 {
			offset = 0
		}
		diags = append(diags, domain.Diagnostic{
			Severity: domain.SeverityError,
			Message:  e.Msg,
			Position: domain.Position{
				Line:   max(e.Pos.Line-best.lineShift, 1),
				Column: e.Pos.Column,
				Offset: offset,
			},
		})
	}
	return diags
}

// Raw strings and block comments may legitimately span lines.
func isMultilineToken(msg string) bool {
	return msg == "raw string literal not terminated" || msg == "comment not terminated"
}

func isTokenizeError(msg string) bool {
	return strings.HasSuffix(msg, "literal not terminated") ||
		strings.HasPrefix(msg, "illegal character") ||
		strings.HasPrefix(msg, "invalid character")
}
