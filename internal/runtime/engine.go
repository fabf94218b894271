package runtime

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/gokernel/internal/logging"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Outcome describes how one execution resolved.
type Outcome struct {
	Status      domain.ExecutionStatus
	Value       *domain.FormattedValue
	Err         error
	Diagnostics []domain.Diagnostic
	Duration    time.Duration
}

// Observer is notified after every execution (metrics, auditing).
type Observer func(ctx context.Context, language string, outcome Outcome)

// Engine executes complete units against the persistent state of one
// interpreter. Executions are strictly sequential: a single-slot channel
// guards the interpreter, and waiting for it honours cancellation.
type Engine struct {
	frontEnd ports.FrontEnd
	interp   ports.Interpreter

	slot chan struct{}

	mu     sync.Mutex
	status domain.ExecutionStatus

	logger   *slog.Logger
	observer Observer
	tracer   trace.Tracer
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger configures a logger for the Engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithObserver registers a callback run after each execution.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		e.observer = o
	}
}

// NewEngine creates an engine over the given front-end and interpreter.
func NewEngine(frontEnd ports.FrontEnd, interp ports.Interpreter, opts ...EngineOption) *Engine {
	e := &Engine{
		frontEnd: frontEnd,
		interp:   interp,
		slot:     make(chan struct{}, 1),
		status:   domain.StatusIdle,
		logger:   logging.NewNop(),
		tracer:   otel.Tracer("github.com/aretw0/gokernel/internal/runtime"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Status returns the state of the last (or current) execution.
func (e *Engine) Status() domain.ExecutionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Engine) setStatus(s domain.ExecutionStatus) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
}

// Execute runs the unit held by sub and reports its lifecycle through emit.
// On success it emits ValueProduced (when the unit ends in a value) followed by
// EvaluationSucceeded; on failure it emits a single EvaluationFailed.
// State mutations are never rolled back, including after cancellation.
func (e *Engine) Execute(ctx context.Context, sub domain.Submission, emit func(domain.Event)) Outcome {
	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		// The slot belongs to another execution; leave its status alone.
		emit(domain.NewEvaluationFailed(sub, &domain.CancellationError{Cause: ctx.Err()}, nil))
		return Outcome{Status: domain.StatusFaulted, Err: &domain.CancellationError{Cause: ctx.Err()}}
	}
	defer func() { <-e.slot }()

	if err := ctx.Err(); err != nil {
		return e.fail(ctx, sub, &domain.CancellationError{Cause: err}, nil, 0, emit)
	}

	e.setStatus(domain.StatusRunning)
	ctx, span := e.tracer.Start(ctx, "kernel.execute", trace.WithAttributes(
		attribute.String("kernel.language", e.frontEnd.Language()),
		attribute.String("submission.id", sub.ID),
	))
	defer span.End()

	var out bytes.Buffer
	e.interp.SetOutput(&out)
	start := time.Now()
	value, err := e.interp.Eval(ctx, sub.Code)
	elapsed := time.Since(start)
	e.interp.SetOutput(nil)

	if out.Len() > 0 {
		emit(domain.NewDisplayedValueProduced(sub, domain.PlainText(out.String())))
	}

	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		var diags []domain.Diagnostic
		switch {
		case domain.IsCancellation(err):
			var ce *domain.CancellationError
			if !errors.As(err, &ce) {
				err = &domain.CancellationError{Cause: err}
			}
		default:
			diags = domain.SortDiagnostics(e.frontEnd.Diagnostics(sub.Code))
			err = &domain.EvaluationError{Err: err, Diagnostics: diags}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return e.fail(ctx, sub, err, diags, elapsed, emit)
	}

	if value != nil && e.frontEnd.HasTrailingValue(sub.Code) {
		emit(domain.NewValueProduced(sub, *value))
	} else {
		value = nil
	}
	emit(domain.NewEvaluationSucceeded(sub))

	outcome := Outcome{Status: domain.StatusSucceeded, Value: value, Duration: elapsed}
	e.finish(ctx, sub, outcome)
	return outcome
}

func (e *Engine) fail(ctx context.Context, sub domain.Submission, err error, diags []domain.Diagnostic, elapsed time.Duration, emit func(domain.Event)) Outcome {
	emit(domain.NewEvaluationFailed(sub, err, diags))
	outcome := Outcome{
		Status:      domain.StatusFaulted,
		Err:         err,
		Diagnostics: diags,
		Duration:    elapsed,
	}
	e.finish(ctx, sub, outcome)
	return outcome
}

func (e *Engine) finish(ctx context.Context, sub domain.Submission, outcome Outcome) {
	e.setStatus(outcome.Status)
	e.logger.Debug("Execution finished",
		"submission_id", sub.ID,
		"language", e.frontEnd.Language(),
		"status", outcome.Status,
		"duration", outcome.Duration,
		"err", outcome.Err,
	)
	if e.observer != nil {
		e.observer(ctx, e.frontEnd.Language(), outcome)
	}
}

// Close releases the interpreter.
func (e *Engine) Close() error {
	e.slot <- struct{}{}
	defer func() { <-e.slot }()
	return e.interp.Close()
}
