package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/gokernel"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/runner"
)

// ErrUnterminated is wrapped in the BufferingError of a file that ends mid-unit.
var ErrUnterminated = errors.New("unexpected end of file")

// RunOptions configures the run command.
type RunOptions struct {
	Path     string
	Language string
	Watch    bool

	// Stdout defaults to os.Stdout.
	Stdout io.Writer

	afterRun func(error)
}

// languageFor picks the language from the file extension, falling back to fallback.
func languageFor(path, fallback string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	for _, lang := range gokernel.Languages() {
		if ext == lang {
			return lang
		}
	}
	return fallback
}

// RunFile submits the contents of a file as one submission on a fresh
// kernel. With Watch set it re-runs on every change until ctx is done.
func RunFile(ctx context.Context, env *Env, opts RunOptions) error {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Language == "" {
		opts.Language = languageFor(opts.Path, env.Config.Language)
	}
	if opts.Watch {
		return RunWatch(ctx, env, opts)
	}
	return runOnce(ctx, env, opts)
}

func runOnce(ctx context.Context, env *Env, opts RunOptions) error {
	code, err := os.ReadFile(opts.Path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", opts.Path, err)
	}

	k, err := env.NewComposite(opts.Language)
	if err != nil {
		return err
	}
	defer k.Close()

	res, err := k.Send(ctx, domain.NewSubmitCode(string(code)))
	handler := runner.NewTextHandler(opts.Stdout, runner.WithPrompts(false))
	if outErr := handler.Output(ctx, res.Events); outErr != nil {
		return outErr
	}
	if err == nil {
		err = res.Err()
	}
	if err == nil && k.Buffering() {
		pending := ""
		if sub, ok := k.Kernel(opts.Language); ok {
			pending = sub.Pending()
		}
		err = &domain.BufferingError{Text: pending, Err: ErrUnterminated}
	}
	env.Logger.Debug("File executed", "path", opts.Path, "language", opts.Language, "err", err)
	return err
}
