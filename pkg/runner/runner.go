package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/gokernel/internal/logging"
	"github.com/aretw0/gokernel/pkg/domain"
)

// Runner handles the interactive loop of a kernel using the provided IO.
// It uses an IOHandler strategy to abstract the interaction mode (Text vs JSON).
type Runner struct {
	// Handler is the strategy for IO. Defaults to a TextHandler on Stdin/Stdout.
	Handler IOHandler

	// Kernel receives every command read.
	Kernel Kernel

	// Logger is used for internal debug logging.
	Logger *slog.Logger

	// InterruptSource behaves like Ctrl-C when it receives or is closed.
	InterruptSource <-chan struct{}
}

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithInterruptSource sets a channel that signals the runner to interrupt current execution.
func WithInterruptSource(ch <-chan struct{}) Option {
	return func(r *Runner) {
		r.InterruptSource = ch
	}
}

// NewRunner creates a Runner for kernel.
func NewRunner(kernel Kernel, opts ...Option) *Runner {
	r := &Runner{
		Kernel: kernel,
		Logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stdout, WithStdin())
	}
	return r
}

// Run reads and submits commands until input ends, the user types exit or
// quit, Ctrl-C arrives at an idle prompt, or ctx is done.
// Failed submissions are shown, not returned.
func (r *Runner) Run(ctx context.Context) error {
	signals := NewSignalManager(r.InterruptSource)
	defer signals.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		continuation := r.buffering()

		// A. Input
		prompt := signals.Arm(ctx, "")
		cmd, err := r.Handler.Input(prompt.Context(), continuation)
		if err != nil {
			signals.CheckRace(prompt)
		}
		signals.Release(prompt)

		if err != nil {
			switch {
			case prompt.Interrupted():
				r.Logger.Debug("Runner input: interrupted at prompt")
				_ = r.Handler.SystemOutput(ctx, "Interrupted")
				return nil
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, io.EOF):
				return nil
			default:
				return fmt.Errorf("input error: %w", err)
			}
		}

		if sc, ok := cmd.(domain.SubmitCode); ok && !continuation && isExit(sc.Sub.Code) {
			return nil
		}

		// B. Execute
		exec := signals.Arm(ctx, cmd.Submission().ID)
		res, err := r.Kernel.Send(exec.Context(), cmd)
		signals.Release(exec)

		// C. Output
		if outErr := r.Handler.Output(ctx, res.Events); outErr != nil {
			return fmt.Errorf("output error: %w", outErr)
		}

		if err == nil {
			err = res.Err()
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if exec.Interrupted() && domain.IsCancellation(err) {
				r.Logger.Debug("Submission interrupted", "submission_id", exec.SubmissionID())
				_ = r.Handler.SystemOutput(ctx, "Execution interrupted")
				continue
			}
			r.Logger.Debug("Submission failed", "submission_id", cmd.Submission().ID, "err", err)
		}
	}
}

func (r *Runner) buffering() bool {
	if b, ok := r.Kernel.(interface{ Buffering() bool }); ok {
		return b.Buffering()
	}
	return false
}

func isExit(code string) bool {
	switch strings.TrimSpace(code) {
	case "exit", "quit":
		return true
	}
	return false
}
