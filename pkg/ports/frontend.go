package ports

import (
	"context"
	"io"

	"github.com/aretw0/gokernel/pkg/domain"
)

// FrontEnd is the grammar service of one language.
// Implementations must be safe for concurrent use; they hold no session state.
type FrontEnd interface {
	// Language returns the short language name (e.g. "go", "lua").
	Language() string

	// IsCompleteUnit reports whether text parses as a self-contained unit.
	// A non-nil error means the text cannot even be tokenized.
	IsCompleteUnit(text string) (bool, error)

	// Diagnostics returns the messages the front-end produces for text, in
	// the order it found them.
	Diagnostics(text string) []domain.Diagnostic

	// HasTrailingValue reports whether the last statement of text yields a value.
	HasTrailingValue(text string) bool
}

// Interpreter owns the execution state of a language back-end.
// Eval is never called concurrently on the same instance.
type Interpreter interface {
	// Eval runs unit against the accumulated state. It returns the value of
	// the trailing expression, or nil when there is none.
	Eval(ctx context.Context, unit string) (*domain.FormattedValue, error)

	// SetOutput redirects what the interpreted code prints.
	SetOutput(w io.Writer)

	Close() error
}
