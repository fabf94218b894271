package gokernel

import (
	"fmt"
	"sort"

	"github.com/aretw0/gokernel/internal/lang/golang"
	"github.com/aretw0/gokernel/internal/lang/lua"
	"github.com/aretw0/gokernel/pkg/ports"
)

// Version is overridden at build time through -ldflags.
var Version = "dev"

type backendFactory func() (ports.FrontEnd, ports.Interpreter, error)

var backends = map[string]backendFactory{
	lua.Language: func() (ports.FrontEnd, ports.Interpreter, error) {
		return lua.NewFrontEnd(), lua.NewInterpreter(), nil
	},
	golang.Language: func() (ports.FrontEnd, ports.Interpreter, error) {
		interp, err := golang.NewInterpreter()
		if err != nil {
			return nil, nil, err
		}
		return golang.NewFrontEnd(), interp, nil
	},
}

// Languages lists the built-in back-ends.
func Languages() []string {
	out := make([]string, 0, len(backends))
	for name := range backends {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ErrUnknownLanguage is returned by New for a language without a back-end.
type ErrUnknownLanguage struct {
	Language string
}

func (e *ErrUnknownLanguage) Error() string {
	return fmt.Sprintf("unknown language %q (available: %v)", e.Language, Languages())
}
