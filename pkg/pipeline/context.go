package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/aretw0/gokernel/internal/logging"
	"github.com/aretw0/gokernel/pkg/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Result is the merged outcome of RunAll.
type Result struct {
	// Events is the combined log, in emission order across invocations.
	Events []domain.Event
	// Errs holds one entry per failed invocation.
	Errs []error
}

// Err joins all invocation errors, or returns nil.
func (r Result) Err() error {
	return errors.Join(r.Errs...)
}

// Context collects the invocations produced for a single command and runs them.
type Context struct {
	command domain.Command
	publish func(domain.Event)
	logger  *slog.Logger
	tracer  trace.Tracer

	mu          sync.Mutex
	invocations []Invocation
	closed      bool

	logMu sync.Mutex
	log   []domain.Event
}

// Option configures a pipeline Context.
type Option func(*Context)

// WithPublisher forwards every emitted event to publish (usually a Channel).
func WithPublisher(publish func(domain.Event)) Option {
	return func(c *Context) {
		c.publish = publish
	}
}

// WithLogger configures a logger for the Context.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) {
		c.logger = logger
	}
}

// NewContext creates a pipeline context for command.
func NewContext(command domain.Command, opts ...Option) *Context {
	c := &Context{
		command: command,
		logger:  logging.NewNop(),
		tracer:  otel.Tracer("github.com/aretw0/gokernel/pkg/pipeline"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Command returns the command this context was created for.
func (c *Context) Command() domain.Command { return c.command }

// Register queues inv. It fails with domain.ErrPipelineClosed once RunAll has started.
func (c *Context) Register(inv Invocation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrPipelineClosed
	}
	c.invocations = append(c.invocations, inv)
	return nil
}

// Len returns the number of registered invocations.
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.invocations)
}

// RunAll starts every registered invocation, in registration order, and waits
// for all of them. A failing invocation never cancels its siblings.
// Invocations not yet started when ctx is cancelled are skipped and reported
// as cancellation errors.
func (c *Context) RunAll(ctx context.Context) Result {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Result{Errs: []error{domain.ErrPipelineClosed}}
	}
	c.closed = true
	invocations := c.invocations
	c.mu.Unlock()

	// Failures are collected per invocation rather than propagated, so a
	// plain WaitGroup: nothing here may cancel a sibling.
	errs := make([]error, len(invocations))
	var wg sync.WaitGroup
	for i, inv := range invocations {
		if err := ctx.Err(); err != nil {
			errs[i] = &domain.CancellationError{Cause: err}
			continue
		}
		wg.Go(func() {
			errs[i] = c.start(ctx, i, inv)
		})
	}
	wg.Wait()

	res := Result{Events: c.Events()}
	for _, err := range errs {
		if err != nil {
			res.Errs = append(res.Errs, err)
		}
	}
	return res
}

// start runs inv unless ctx was cancelled before its goroutine got going.
func (c *Context) start(ctx context.Context, index int, inv Invocation) error {
	if err := ctx.Err(); err != nil {
		return &domain.CancellationError{Cause: err}
	}
	return c.run(ctx, index, inv)
}

func (c *Context) run(ctx context.Context, index int, inv Invocation) error {
	sub := c.command.Submission()
	ctx, span := c.tracer.Start(ctx, "pipeline.invocation", trace.WithAttributes(
		attribute.String("submission.id", sub.ID),
		attribute.Int("invocation.index", index),
	))
	defer span.End()

	ic := NewInvocationContext(ctx, c.command, c.record)
	err := ic.RunToCompletion(func(ic *InvocationContext) error {
		err := inv(ic)
		if err != nil && domain.IsCancellation(err) && !ic.Terminated() {
			var ce *domain.CancellationError
			if !errors.As(err, &ce) {
				err = &domain.CancellationError{Cause: err}
			}
			ic.Emit(domain.NewEvaluationFailed(ic.Submission(), err, nil))
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("Invocation failed", "submission_id", sub.ID, "index", index, "err", err)
	}
	return err
}

// record appends to the combined log and publishes under one lock, so the
// log and the channel observe the same interleaving.
func (c *Context) record(e domain.Event) {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	c.log = append(c.log, e)
	if c.publish != nil {
		c.publish(e)
	}
}

// Events returns a snapshot of the combined log.
func (c *Context) Events() []domain.Event {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	out := make([]domain.Event, len(c.log))
	copy(out, c.log)
	return out
}
