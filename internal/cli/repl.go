package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/gokernel"
	"github.com/aretw0/gokernel/internal/presentation/tui"
	"github.com/aretw0/gokernel/pkg/runner"
)

// ReplOptions configures an interactive session.
type ReplOptions struct {
	Language  string
	SessionID string
	JSON      bool
	NoBanner  bool

	// Stdin and Stdout default to the process streams.
	Stdin  io.Reader
	Stdout io.Writer
}

func (o *ReplOptions) streams() (io.Reader, io.Writer, bool) {
	in, out := o.Stdin, o.Stdout
	terminal := false
	if in == nil {
		in = os.Stdin
		terminal = tui.IsTerminal(os.Stdin)
	}
	if out == nil {
		out = os.Stdout
	}
	return in, out, terminal
}

// RunRepl runs an interactive session until input ends or the user quits.
func RunRepl(ctx context.Context, env *Env, opts ReplOptions) error {
	if opts.Language == "" {
		opts.Language = env.Config.Language
	}
	in, out, terminal := opts.streams()

	if terminal && !opts.JSON && !opts.NoBanner {
		tui.PrintBanner(out, gokernel.Version, gokernel.Languages())
	}

	k, err := env.Kernel(ctx, opts.Language, opts.SessionID)
	if err != nil {
		return fmt.Errorf("failed to start kernel: %w", err)
	}
	defer k.Close()

	if opts.SessionID != "" {
		env.Logger.Info("Session active", "session_id", opts.SessionID, "language", opts.Language)
		if terminal && !opts.JSON {
			printSystemMessage(out, "Session '%s' active.", opts.SessionID)
		}
	}

	var handler runner.IOHandler
	if opts.JSON {
		handler = runner.NewJSONHandler(in, out).WithMaxInput(env.Config.MaxInputSize)
	} else {
		textOpts := []runner.TextHandlerOption{
			runner.WithInputReader(in),
			runner.WithPrompts(terminal),
			runner.WithTextHandlerMaxInput(env.Config.MaxInputSize),
		}
		if terminal {
			textOpts = append(textOpts, runner.WithTextHandlerRenderer(tui.NewRenderer()))
		}
		handler = runner.NewTextHandler(out, textOpts...)
	}

	r := runner.NewRunner(k,
		runner.WithLogger(env.Logger),
		runner.WithInputHandler(handler),
	)
	return r.Run(ctx)
}
