package runtime

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/gokernel/pkg/domain"
)

type fakeFrontEnd struct {
	complete  func(string) (bool, error)
	diags     []domain.Diagnostic
	trailing  bool
	completes int
}

func (f *fakeFrontEnd) Language() string { return "fake" }

func (f *fakeFrontEnd) IsCompleteUnit(text string) (bool, error) {
	f.completes++
	if f.complete != nil {
		return f.complete(text)
	}
	return true, nil
}

func (f *fakeFrontEnd) Diagnostics(string) []domain.Diagnostic { return f.diags }

func (f *fakeFrontEnd) HasTrailingValue(string) bool { return f.trailing }

type fakeInterpreter struct {
	mu      sync.Mutex
	calls   []string
	eval    func(ctx context.Context, unit string) (*domain.FormattedValue, error)
	out     io.Writer
	running int32
	maxSeen int32
}

func (f *fakeInterpreter) Eval(ctx context.Context, unit string) (*domain.FormattedValue, error) {
	n := atomic.AddInt32(&f.running, 1)
	defer atomic.AddInt32(&f.running, -1)
	for {
		prev := atomic.LoadInt32(&f.maxSeen)
		if n <= prev || atomic.CompareAndSwapInt32(&f.maxSeen, prev, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, unit)
	f.mu.Unlock()

	if f.eval != nil {
		return f.eval(ctx, unit)
	}
	time.Sleep(time.Millisecond)
	return nil, nil
}

func (f *fakeInterpreter) SetOutput(w io.Writer) { f.out = w }

func (f *fakeInterpreter) Close() error { return nil }

func (f *fakeInterpreter) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// recorder collects emitted events.
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) emit(e domain.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Base().Type)
	}
	return out
}
