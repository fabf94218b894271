package runner

import (
	"context"

	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/pipeline"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Input reads the next command. continuation is true while the kernel
	// is buffering an incomplete unit.
	Input(ctx context.Context, continuation bool) (domain.Command, error)

	// Output presents the events produced by one command.
	Output(ctx context.Context, events []domain.Event) error

	// SystemOutput presents a meta-message to the user (e.g. status updates).
	// This is distinct from content rendering.
	SystemOutput(ctx context.Context, msg string) error
}

// Kernel is the part of a kernel the Runner drives.
type Kernel interface {
	Send(ctx context.Context, cmd domain.Command) (pipeline.Result, error)
}

// ContentRenderer transforms markdown before it is printed.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)
