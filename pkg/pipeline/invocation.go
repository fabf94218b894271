package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/gokernel/pkg/domain"
)

// Invocation is a unit of asynchronous work registered on a pipeline.
type Invocation func(ic *InvocationContext) error

// InvocationContext is the per-invocation view of a command.
type InvocationContext struct {
	ctx     context.Context
	cancel  context.CancelFunc
	command domain.Command
	publish func(domain.Event)

	mu       sync.Mutex
	events   []domain.Event
	terminal bool

	done     chan struct{}
	doneOnce sync.Once
}

// NewInvocationContext derives a cancellable context from ctx for command.
// publish receives each emitted event synchronously; it may be nil.
func NewInvocationContext(ctx context.Context, command domain.Command, publish func(domain.Event)) *InvocationContext {
	ctx, cancel := context.WithCancel(ctx)
	if publish == nil {
		publish = func(domain.Event) {}
	}
	return &InvocationContext{
		ctx:     ctx,
		cancel:  cancel,
		command: command,
		publish: publish,
		done:    make(chan struct{}),
	}
}

// Context is cancelled when the caller's context is, or once the invocation completes.
func (ic *InvocationContext) Context() context.Context { return ic.ctx }

// Command returns the command being processed.
func (ic *InvocationContext) Command() domain.Command { return ic.command }

// Submission is shorthand for Command().Submission().
func (ic *InvocationContext) Submission() domain.Submission { return ic.command.Submission() }

// Emit records event locally and forwards it before returning.
func (ic *InvocationContext) Emit(event domain.Event) {
	ic.mu.Lock()
	ic.events = append(ic.events, event)
	if domain.IsTerminal(event) {
		ic.terminal = true
	}
	ic.mu.Unlock()

	ic.publish(event)
}

// Events returns a snapshot of everything emitted so far.
func (ic *InvocationContext) Events() []domain.Event {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	out := make([]domain.Event, len(ic.events))
	copy(out, ic.events)
	return out
}

// Terminated reports whether a terminal event (succeeded or failed) was emitted.
func (ic *InvocationContext) Terminated() bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.terminal
}

// Done is closed when the invocation has finished and its record is final.
func (ic *InvocationContext) Done() <-chan struct{} { return ic.done }

// RunToCompletion runs inv and marks the record complete however it returns.
// A panic inside inv is recovered and returned as an error.
func (ic *InvocationContext) RunToCompletion(inv Invocation) (err error) {
	defer ic.complete()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invocation panicked: %v", r)
		}
	}()
	return inv(ic)
}

func (ic *InvocationContext) complete() {
	ic.doneOnce.Do(func() {
		ic.cancel()
		close(ic.done)
	})
}
