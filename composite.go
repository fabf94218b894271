package gokernel

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/gokernel/internal/logging"
	"github.com/aretw0/gokernel/pkg/directive"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/magics"
	"github.com/aretw0/gokernel/pkg/observability"
	"github.com/aretw0/gokernel/pkg/pipeline"
)

// CompositeKernel hosts several language kernels behind one pipeline.
// Plain code goes to the default kernel; %%<language> cells go to the named one.
type CompositeKernel struct {
	kernels     map[string]*Kernel
	defaultLang string

	registry   *directive.Registry
	router     *directive.Router
	events     *observability.Channel
	middleware []pipeline.Middleware
	logger     *slog.Logger

	cancel   context.CancelFunc
	forwards []func()

	mu     sync.RWMutex
	closed bool
}

var _ Interactive = (*CompositeKernel)(nil)

// CompositeOption configures a CompositeKernel.
type CompositeOption func(*CompositeKernel)

// WithCompositeLogger sets the logger of the composite itself.
func WithCompositeLogger(logger *slog.Logger) CompositeOption {
	return func(c *CompositeKernel) {
		c.logger = logger
	}
}

// WithCompositeMiddleware adds middleware in front of the composite's router.
func WithCompositeMiddleware(mw ...pipeline.Middleware) CompositeOption {
	return func(c *CompositeKernel) {
		c.middleware = append(c.middleware, mw...)
	}
}

// NewComposite combines kernels. defaultLanguage must name one of them.
// The composite takes ownership of the kernels and closes them on Close.
func NewComposite(defaultLanguage string, kernels []*Kernel, opts ...CompositeOption) (*CompositeKernel, error) {
	c := &CompositeKernel{
		kernels:     make(map[string]*Kernel, len(kernels)),
		defaultLang: defaultLanguage,
		registry:    directive.NewRegistry(),
		events:      observability.NewChannel(),
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, k := range kernels {
		if _, dup := c.kernels[k.Language()]; dup {
			return nil, fmt.Errorf("kernel %q registered twice", k.Language())
		}
		c.kernels[k.Language()] = k
	}
	if _, ok := c.kernels[defaultLanguage]; !ok {
		return nil, &ErrUnknownLanguage{Language: defaultLanguage}
	}

	if err := magics.Register(c.registry, c, c.listings); err != nil {
		return nil, err
	}
	for _, name := range c.names() {
		if err := c.registry.Register(magics.Switch(name, c.kernels[name])); err != nil {
			return nil, err
		}
	}
	c.router = directive.NewRouter(c.registry, directive.WithLogger(c.logger))

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	for _, name := range c.names() {
		c.forwards = append(c.forwards, observability.Forward(ctx, c.kernels[name].Events(), c.events))
	}
	c.forwards = append(c.forwards, c.events.Observe(observability.LogEvents(c.logger)))

	return c, nil
}

// Language returns the default language.
func (c *CompositeKernel) Language() string { return c.defaultLang }

// Events returns the composite channel. Events of the sub-kernels are forwarded to it.
func (c *CompositeKernel) Events() *observability.Channel { return c.events }

// Directives returns the composite's own registry.
func (c *CompositeKernel) Directives() *directive.Registry { return c.registry }

// Buffering reports whether the default kernel holds an incomplete unit.
func (c *CompositeKernel) Buffering() bool { return c.kernels[c.defaultLang].Buffering() }

// Kernel returns the sub-kernel for language.
func (c *CompositeKernel) Kernel(language string) (*Kernel, bool) {
	k, ok := c.kernels[language]
	return k, ok
}

// Send processes cmd and publishes its events on the composite channel.
func (c *CompositeKernel) Send(ctx context.Context, cmd domain.Command) (pipeline.Result, error) {
	return c.Dispatch(ctx, cmd, c.events.Publish)
}

// Dispatch is like Send but publishes to publish.
func (c *CompositeKernel) Dispatch(ctx context.Context, cmd domain.Command, publish func(domain.Event)) (pipeline.Result, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return pipeline.Result{}, domain.ErrKernelClosed
	}
	chain := pipeline.Chain(append(append([]pipeline.Middleware{}, c.middleware...), c.router.Middleware())...)
	return dispatch(ctx, cmd, publish, c.logger, chain, c.handle)
}

// handle forwards whatever routing left over to the default kernel.
func (c *CompositeKernel) handle(_ context.Context, cmd domain.Command, pc *pipeline.Context) error {
	target := c.kernels[c.defaultLang]
	if _, ok := cmd.(domain.SubmitCode); ok && strings.TrimSpace(cmd.Submission().Code) == "" && !target.Buffering() {
		return nil
	}
	return pc.Register(func(ic *pipeline.InvocationContext) error {
		res, err := target.Dispatch(ic.Context(), cmd, ic.Emit)
		if err != nil {
			return err
		}
		return res.Err()
	})
}

func (c *CompositeKernel) names() []string {
	out := make([]string, 0, len(c.kernels))
	for name := range c.kernels {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// listings shows the composite first, then each sub-kernel by name.
func (c *CompositeKernel) listings() []magics.Listing {
	out := []magics.Listing{{Kernel: "gokernel (composite)", Registry: c.registry}}
	for _, name := range c.names() {
		out = append(out, c.kernels[name].listings()...)
	}
	return out
}

// Close stops forwarding and closes every sub-kernel.
func (c *CompositeKernel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var firstErr error
	for _, name := range c.names() {
		if err := c.kernels[name].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.cancel()
	c.events.Close()
	for _, stop := range c.forwards {
		stop()
	}
	return firstErr
}
