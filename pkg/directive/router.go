package directive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/gokernel/internal/logging"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/pipeline"
)

// Router strips directive lines out of submissions and dispatches them.
type Router struct {
	registry *Registry
	logger   *slog.Logger
}

// RouterOption configures the Router.
type RouterOption func(*Router)

// WithLogger configures a logger for the Router.
func WithLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// NewRouter creates a router over registry.
func NewRouter(registry *Registry, opts ...RouterOption) *Router {
	r := &Router{
		registry: registry,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Process walks sub line by line. Directive lines are handed to their handler
// together with the text that follows; the residual the handler returns
// replaces the rest of the walk. Lines no directive claims are kept verbatim
// and returned under the identity of sub.
//
// The first failure aborts the whole submission and is returned as a
// *domain.SubmissionProcessingError. Handlers that already ran are not undone.
func (r *Router) Process(ctx context.Context, sub domain.Submission, pc *pipeline.Context) (domain.Submission, error) {
	queue := splitLines(sub.Code)
	var unhandled []string
	handled := false

	for i := 0; i < len(queue); {
		if err := ctx.Err(); err != nil {
			return sub, &domain.SubmissionProcessingError{Submission: sub, Err: err}
		}

		line := queue[i]
		i++

		fields := strings.Fields(line)
		if len(fields) == 0 {
			unhandled = append(unhandled, line)
			continue
		}
		d, ok := r.registry.Lookup(fields[0])
		if !ok {
			unhandled = append(unhandled, line)
			continue
		}
		handled = true

		fs := NewFlagSet(d.Name)
		if d.Flags != nil {
			fs = d.Flags()
		}
		if err := fs.Parse(fields[1:]); err != nil {
			return sub, &domain.SubmissionProcessingError{
				Submission: sub,
				Err:        fmt.Errorf("%s: %w", d.Name, err),
			}
		}

		r.logger.Debug("Directive matched", "submission_id", sub.ID, "directive", d.Name, "args", fs.Args())

		residual, err := d.Handler(ctx, Request{
			Token:     d.Name,
			Args:      fs.Args(),
			Flags:     fs,
			Remaining: sub.Derive(strings.Join(queue[i:], "\n")),
			Pipeline:  pc,
		})
		if err != nil {
			return sub, &domain.SubmissionProcessingError{
				Submission: sub,
				Err:        fmt.Errorf("%s: %w", d.Name, err),
			}
		}

		queue = splitLines(residual.Code)
		i = 0
	}

	if !handled {
		return sub, nil
	}
	return sub.Derive(strings.Join(unhandled, "\n")), nil
}

// Middleware exposes the router as a pipeline stage that replaces the
// command's submission with the residual before continuing.
func (r *Router) Middleware() pipeline.Middleware {
	return func(ctx context.Context, cmd domain.Command, pc *pipeline.Context, next pipeline.Continuation) error {
		if _, ok := cmd.(domain.SubmitCode); !ok {
			return next(ctx, cmd, pc)
		}
		residual, err := r.Process(ctx, cmd.Submission(), pc)
		if err != nil {
			return err
		}
		return next(ctx, cmd.WithSubmission(residual), pc)
	}
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}
