package lua

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/gokernel/pkg/domain"
	glua "github.com/yuin/gopher-lua"
)

// Interpreter implements ports.Interpreter on a single gopher-lua state.
// Globals defined by one unit are visible to every later unit.
type Interpreter struct {
	state *glua.LState
	out   io.Writer
}

// NewInterpreter creates a Lua state with the standard libraries loaded and
// print redirected to the interpreter output.
func NewInterpreter() *Interpreter {
	in := &Interpreter{
		state: glua.NewState(),
		out:   io.Discard,
	}
	in.state.SetGlobal("print", in.state.NewFunction(in.print))
	return in
}

func (in *Interpreter) SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	in.out = w
}

// Eval compiles unit as an expression list first, falling back to a chunk.
// The VM observes ctx between instructions, so runaway loops are interruptible.
func (in *Interpreter) Eval(ctx context.Context, unit string) (*domain.FormattedValue, error) {
	L := in.state
	fn, err := L.Load(strings.NewReader("return "+unit), "<unit>")
	if err != nil {
		fn, err = L.Load(strings.NewReader(unit), "<unit>")
		if err != nil {
			return nil, err
		}
	}

	L.SetContext(ctx)
	defer L.RemoveContext()

	base := L.GetTop()
	L.Push(fn)
	if err := L.PCall(0, glua.MultRet, nil); err != nil {
		L.SetTop(base)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &domain.CancellationError{Cause: ctxErr}
		}
		return nil, err
	}

	n := L.GetTop() - base
	if n == 0 {
		return nil, nil
	}
	values := make([]string, 0, n)
	for idx := base + 1; idx <= base+n; idx++ {
		values = append(values, L.ToStringMeta(L.Get(idx)).String())
	}
	L.SetTop(base)

	v := domain.PlainText(strings.Join(values, "\t"))
	return &v, nil
}

func (in *Interpreter) Close() error {
	in.state.Close()
	return nil
}

func (in *Interpreter) print(L *glua.LState) int {
	n := L.GetTop()
	parts := make([]string, 0, n)
	for idx := 1; idx <= n; idx++ {
		parts = append(parts, L.ToStringMeta(L.Get(idx)).String())
	}
	fmt.Fprintln(in.out, strings.Join(parts, "\t"))
	return 0
}
