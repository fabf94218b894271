package directive

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/pipeline"
	"github.com/spf13/pflag"
)

// Kind tells whether a directive applies to one line or to the rest of the cell.
type Kind string

const (
	KindLine Kind = "line"
	KindCell Kind = "cell"
)

// KindOf infers the kind from the token prefix ("%%" for cells).
func KindOf(token string) Kind {
	if strings.HasPrefix(token, "%%") {
		return KindCell
	}
	return KindLine
}

// Request is what a handler receives for one matched directive line.
type Request struct {
	// Token is the directive as written, e.g. "%%writefile".
	Token string
	// Args holds the positional arguments left after flag parsing.
	Args  []string
	Flags *pflag.FlagSet
	// Remaining is the text after the directive line, under the original submission identity.
	Remaining domain.Submission
	Pipeline  *pipeline.Context
}

// Handler processes a directive and returns the residual submission that
// routing continues with. Returning Remaining.Derive("") consumes the rest.
type Handler func(ctx context.Context, req Request) (domain.Submission, error)

// Directive is one registered magic command.
type Directive struct {
	Name        string `json:"name"`
	Kind        Kind   `json:"kind"`
	Description string `json:"description,omitempty"`
	// Flags returns a fresh flag set for each invocation. Nil means no flags.
	Flags   func() *pflag.FlagSet `json:"-"`
	Handler Handler               `json:"-"`
}

// NewFlagSet returns a flag set suited to directive parsing: it reports
// errors instead of exiting and prints nothing.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(discard{})
	fs.Usage = func() {}
	return fs
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

var (
	ErrEmptyToken     = errors.New("directive token is empty")
	ErrDuplicateToken = errors.New("directive token already registered")
	ErrNoHandler      = errors.New("directive has no handler")
)

// Registry holds the directives known to one kernel.
type Registry struct {
	mu         sync.RWMutex
	directives map[string]Directive
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{directives: make(map[string]Directive)}
}

// Register adds d. Tokens must be non-empty, free of whitespace and unique.
func (r *Registry) Register(d Directive) error {
	if strings.TrimSpace(d.Name) == "" || strings.ContainsAny(d.Name, " \t\r\n") {
		return fmt.Errorf("%w: %q", ErrEmptyToken, d.Name)
	}
	if d.Handler == nil {
		return fmt.Errorf("%w: %s", ErrNoHandler, d.Name)
	}
	if d.Kind == "" {
		d.Kind = KindOf(d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.directives[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateToken, d.Name)
	}
	r.directives[d.Name] = d
	return nil
}

// MustRegister is like Register but panics on error. Intended for built-ins.
func (r *Registry) MustRegister(d Directive) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Lookup finds the directive registered under token.
func (r *Registry) Lookup(token string) (Directive, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.directives[token]
	return d, ok
}

// Directives lists every registration sorted by token.
func (r *Registry) Directives() []Directive {
	r.mu.RLock()
	out := make([]Directive, 0, len(r.directives))
	for _, d := range r.directives {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ByKind returns the sorted directives of one kind.
func (r *Registry) ByKind(kind Kind) []Directive {
	var out []Directive
	for _, d := range r.Directives() {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}
