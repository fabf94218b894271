package gokernel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/gokernel/internal/logging"
	"github.com/aretw0/gokernel/internal/runtime"
	"github.com/aretw0/gokernel/pkg/directive"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/magics"
	"github.com/aretw0/gokernel/pkg/observability"
	"github.com/aretw0/gokernel/pkg/pipeline"
	"github.com/aretw0/gokernel/pkg/ports"
)

// Interactive is what transports need from a kernel. Kernel and
// CompositeKernel both implement it.
type Interactive interface {
	Language() string
	Send(ctx context.Context, cmd domain.Command) (pipeline.Result, error)
	Events() *observability.Channel
	Directives() *directive.Registry
	Close() error
}

// UnitHook is called after a unit executed successfully.
type UnitHook func(ctx context.Context, unit domain.Submission)

// Kernel hosts one language back-end: a completion detector, an execution
// engine and the directive pipeline in front of them.
type Kernel struct {
	language string
	frontEnd ports.FrontEnd
	interp   ports.Interpreter

	detector *runtime.Detector
	engine   *runtime.Engine
	registry *directive.Registry
	router   *directive.Router
	events   *observability.Channel

	// turn serialises submissions: the buffer and the interpreter see one
	// submission at a time, in the order they obtain the turn.
	turn chan struct{}

	middleware []pipeline.Middleware
	directives []directive.Directive
	metrics    *observability.Metrics
	output     io.Writer
	onUnit     []UnitHook
	logger     *slog.Logger

	observers []func()

	mu     sync.RWMutex
	closed bool
}

var _ Interactive = (*Kernel)(nil)

// Option defines a functional option for configuring the Kernel.
type Option func(*Kernel)

// WithLogger sets a custom structured logger for the kernel.
func WithLogger(logger *slog.Logger) Option {
	return func(k *Kernel) {
		k.logger = logger
	}
}

// WithFrontEnd replaces the built-in front-end for the language.
func WithFrontEnd(fe ports.FrontEnd) Option {
	return func(k *Kernel) {
		k.frontEnd = fe
	}
}

// WithInterpreter replaces the built-in interpreter for the language.
func WithInterpreter(interp ports.Interpreter) Option {
	return func(k *Kernel) {
		k.interp = interp
	}
}

// WithMiddleware adds pipeline middleware that runs before directive routing.
func WithMiddleware(mw ...pipeline.Middleware) Option {
	return func(k *Kernel) {
		k.middleware = append(k.middleware, mw...)
	}
}

// WithDirective registers an additional directive next to the built-in magics.
func WithDirective(d directive.Directive) Option {
	return func(k *Kernel) {
		k.directives = append(k.directives, d)
	}
}

// WithMetrics records events and executions on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(k *Kernel) {
		k.metrics = m
	}
}

// WithOutput mirrors displayed values and produced values to w as plain text.
func WithOutput(w io.Writer) Option {
	return func(k *Kernel) {
		k.output = w
	}
}

// WithUnitHook registers a callback for every successfully executed unit.
func WithUnitHook(h UnitHook) Option {
	return func(k *Kernel) {
		k.onUnit = append(k.onUnit, h)
	}
}

// New creates a kernel for language. The back-end is looked up among the
// built-ins unless both WithFrontEnd and WithInterpreter are given.
func New(language string, opts ...Option) (*Kernel, error) {
	k := &Kernel{language: language}
	for _, opt := range opts {
		opt(k)
	}

	if k.frontEnd == nil || k.interp == nil {
		factory, ok := backends[language]
		if !ok {
			return nil, &ErrUnknownLanguage{Language: language}
		}
		fe, interp, err := factory()
		if err != nil {
			return nil, fmt.Errorf("failed to start %s interpreter: %w", language, err)
		}
		if k.frontEnd == nil {
			k.frontEnd = fe
		}
		if k.interp == nil {
			k.interp = interp
		} else {
			_ = interp.Close()
		}
	}

	if k.logger == nil {
		k.logger = logging.NewNop()
	}
	k.logger = k.logger.With("language", language)

	engineOpts := []runtime.EngineOption{runtime.WithLogger(k.logger)}
	if k.metrics != nil {
		engineOpts = append(engineOpts, runtime.WithObserver(k.metrics.ObserveExecution))
	}
	k.engine = runtime.NewEngine(k.frontEnd, k.interp, engineOpts...)
	k.detector = runtime.NewDetector(k.frontEnd)
	k.turn = make(chan struct{}, 1)
	k.events = observability.NewChannel()

	k.registry = directive.NewRegistry()
	if err := magics.Register(k.registry, k, k.listings); err != nil {
		return nil, err
	}
	for _, d := range k.directives {
		if err := k.registry.Register(d); err != nil {
			return nil, err
		}
	}
	k.router = directive.NewRouter(k.registry, directive.WithLogger(k.logger))

	k.observers = append(k.observers, k.events.Observe(observability.LogEvents(k.logger)))
	if k.metrics != nil {
		k.observers = append(k.observers, k.events.Observe(k.metrics.ObserveEvent))
	}
	if k.output != nil {
		k.observers = append(k.observers, k.events.Observe(writeEvent(k.output)))
	}

	return k, nil
}

// Language returns the name of the back-end.
func (k *Kernel) Language() string { return k.language }

// Events returns the kernel's event channel.
func (k *Kernel) Events() *observability.Channel { return k.events }

// Directives returns the kernel's directive registry.
func (k *Kernel) Directives() *directive.Registry { return k.registry }

// Status reports the state of the last execution.
func (k *Kernel) Status() domain.ExecutionStatus { return k.engine.Status() }

// Pending returns buffered text still waiting to form a complete unit.
func (k *Kernel) Pending() string { return k.detector.Pending() }

// Buffering reports whether a partial unit is waiting for more input.
func (k *Kernel) Buffering() bool { return k.detector.Buffering() }

// Diagnostics asks the front-end about code without executing it.
func (k *Kernel) Diagnostics(code string) []domain.Diagnostic {
	return domain.SortDiagnostics(k.frontEnd.Diagnostics(code))
}

// Send processes cmd and publishes its events on the kernel channel.
func (k *Kernel) Send(ctx context.Context, cmd domain.Command) (pipeline.Result, error) {
	return k.Dispatch(ctx, cmd, k.events.Publish)
}

// Dispatch processes cmd, publishing its events to publish instead of the
// kernel channel. Routing failures abort the command and are returned;
// invocation failures are reported in the result.
func (k *Kernel) Dispatch(ctx context.Context, cmd domain.Command, publish func(domain.Event)) (pipeline.Result, error) {
	k.mu.RLock()
	closed := k.closed
	k.mu.RUnlock()
	if closed {
		return pipeline.Result{}, domain.ErrKernelClosed
	}
	return dispatch(ctx, cmd, publish, k.logger, k.chain(), k.handle)
}

func (k *Kernel) chain() pipeline.Middleware {
	return pipeline.Chain(append(append([]pipeline.Middleware{}, k.middleware...), k.router.Middleware())...)
}

// dispatch runs one command through middleware and the resulting invocations.
func dispatch(ctx context.Context, cmd domain.Command, publish func(domain.Event), logger *slog.Logger, chain pipeline.Middleware, final pipeline.Continuation) (pipeline.Result, error) {
	pc := pipeline.NewContext(cmd, pipeline.WithPublisher(publish), pipeline.WithLogger(logger))
	if err := chain(ctx, cmd, pc, final); err != nil {
		logger.Warn("Command rejected", "submission_id", cmd.Submission().ID, "err", err)
		ev := domain.NewEvaluationFailed(cmd.Submission(), err, nil)
		publish(ev)
		return pipeline.Result{Events: []domain.Event{ev}, Errs: []error{err}}, err
	}
	return pc.RunAll(ctx), nil
}

// handle registers the work for whatever routing left of cmd. The residual
// is captured here: the pipeline only knows the command as it was sent.
func (k *Kernel) handle(_ context.Context, cmd domain.Command, pc *pipeline.Context) error {
	sub := cmd.Submission()
	switch cmd.(type) {
	case domain.SubmitCode:
		return pc.Register(func(ic *pipeline.InvocationContext) error {
			return k.submit(ic, sub)
		})
	case domain.RequestDiagnostics:
		return pc.Register(func(ic *pipeline.InvocationContext) error {
			return k.diagnose(ic, sub)
		})
	default:
		return &domain.UnsupportedCommandError{Command: cmd}
	}
}

// acquire waits for the kernel's submission turn, giving up when ctx is done.
func (k *Kernel) acquire(ctx context.Context) (release func(), err error) {
	select {
	case k.turn <- struct{}{}:
		return func() { <-k.turn }, nil
	case <-ctx.Done():
		return nil, &domain.CancellationError{Cause: ctx.Err()}
	}
}

// submit buffers the residual code and executes it once it forms a unit.
func (k *Kernel) submit(ic *pipeline.InvocationContext, sub domain.Submission) error {
	ic.Emit(domain.NewSubmissionReceived(sub))

	release, err := k.acquire(ic.Context())
	if err != nil {
		ic.Emit(domain.NewEvaluationFailed(sub, err, nil))
		return err
	}
	defer release()

	if strings.TrimSpace(sub.Code) == "" {
		if k.detector.Fault() != nil {
			// A blank line ends a unit that can never tokenize.
			text, err := k.detector.Abandon()
			k.logger.Debug("Abandoned buffer", "submission_id", sub.ID, "text", text)
			ic.Emit(domain.NewEvaluationFailed(sub, err, nil))
			return err
		}
		if !k.detector.Buffering() {
			return nil
		}
	}

	res := k.detector.Submit(sub.Code)
	if !res.Complete {
		ic.Emit(domain.NewIncompleteSubmissionReceived(sub))
		return nil
	}

	unit := sub.Derive(res.Text)
	ic.Emit(domain.NewCompleteSubmissionReceived(unit))
	if res.Fault != nil {
		ic.Emit(domain.NewEvaluationFailed(unit, res.Fault, nil))
		return res.Fault
	}

	outcome := k.engine.Execute(ic.Context(), unit, ic.Emit)
	if outcome.Status == domain.StatusSucceeded {
		for _, h := range k.onUnit {
			h(ic.Context(), unit)
		}
	}
	return outcome.Err
}

func (k *Kernel) diagnose(ic *pipeline.InvocationContext, sub domain.Submission) error {
	if diags := k.Diagnostics(sub.Code); len(diags) > 0 {
		ic.Emit(domain.NewDisplayedValueProduced(sub, domain.PlainText(domain.FormatDiagnostics(diags))))
	}
	ic.Emit(domain.NewEvaluationSucceeded(sub))
	return nil
}

func (k *Kernel) listings() []magics.Listing {
	return []magics.Listing{{Kernel: "gokernel (" + k.language + ")", Registry: k.registry}}
}

// Close shuts the kernel down. Subscribers receive what was already published.
func (k *Kernel) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	k.mu.Unlock()

	err := k.engine.Close()
	k.events.Close()
	for _, stop := range k.observers {
		stop()
	}
	return err
}

func writeEvent(w io.Writer) func(domain.Event) {
	return func(e domain.Event) {
		switch ev := e.(type) {
		case domain.ValueProduced:
			fmt.Fprintln(w, ev.Value.Value)
		case domain.DisplayedValueProduced:
			f, _ := ev.Preferred(domain.MimeTextPlain, domain.MimeTextMarkdown, domain.MimeTextHTML)
			fmt.Fprint(w, f.Value)
			if !strings.HasSuffix(f.Value, "\n") {
				fmt.Fprintln(w)
			}
		case domain.EvaluationFailed:
			fmt.Fprintln(w, ev.Message)
		}
	}
}
