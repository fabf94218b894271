package golang

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sync"

	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Interpreter implements ports.Interpreter on a yaegi interpreter.
// yaegi runs incrementally, so imports, declarations and variables of earlier
// units stay in scope for later ones.
type Interpreter struct {
	yaegi *interp.Interpreter
	out   *outputSwitch
}

// NewInterpreter creates a yaegi interpreter with the standard library exported.
func NewInterpreter() (*Interpreter, error) {
	out := &outputSwitch{w: io.Discard}
	i := interp.New(interp.Options{
		Stdout: out,
		Stderr: out,
	})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib symbols: %w", err)
	}
	return &Interpreter{yaegi: i, out: out}, nil
}

func (in *Interpreter) SetOutput(w io.Writer) {
	in.out.set(w)
}

// Eval runs unit. yaegi aborts the evaluation when ctx is done.
func (in *Interpreter) Eval(ctx context.Context, unit string) (*domain.FormattedValue, error) {
	res, err := in.yaegi.EvalWithContext(ctx, unit)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &domain.CancellationError{Cause: ctxErr}
		}
		return nil, err
	}
	if !res.IsValid() || !res.CanInterface() {
		return nil, nil
	}
	if res.Kind() == reflect.Func {
		return nil, nil
	}
	v := domain.PlainText(fmt.Sprint(res.Interface()))
	return &v, nil
}

func (in *Interpreter) Close() error { return nil }

// outputSwitch lets the target of the interpreter's stdout change per unit,
// since yaegi fixes its writers at construction.
type outputSwitch struct {
	mu sync.Mutex
	w  io.Writer
}

func (o *outputSwitch) set(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	o.mu.Lock()
	o.w = w
	o.mu.Unlock()
}

func (o *outputSwitch) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.w.Write(p)
}
