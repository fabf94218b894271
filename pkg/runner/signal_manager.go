package runner

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"
)

// ErrInterrupted is the cancellation cause of a scope hit by Ctrl-C.
var ErrInterrupted = errors.New("interrupted")

// raceWindow is how long CheckRace waits for a signal to follow a read error.
const raceWindow = 100 * time.Millisecond

// SignalManager delivers Ctrl-C to the phase the runner is in: the prompt,
// or the submission being executed. Each phase arms a Scope; an interrupt
// cancels the armed scope only, so the kernel and the next phase are
// untouched. An interrupt that arrives between phases is held for the next
// scope.
type SignalManager struct {
	notify chan os.Signal
	source <-chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
	stop   sync.Once

	mu      sync.Mutex
	current *Scope
	pending bool
	latched bool // source was closed: every scope is interrupted
}

// Scope is one interruptible phase of the runner.
type Scope struct {
	ctx          context.Context
	cancel       context.CancelCauseFunc
	fired        atomic.Bool
	submissionID string
}

// NewSignalManager starts listening for os.Interrupt and, when source is not
// nil, for sends on source. Closing source interrupts every later scope.
func NewSignalManager(source <-chan struct{}) *SignalManager {
	sm := &SignalManager{
		notify: make(chan os.Signal, 1),
		source: source,
		done:   make(chan struct{}),
	}
	signal.Notify(sm.notify, os.Interrupt)
	sm.wg.Add(1)
	go sm.loop()
	return sm
}

func (sm *SignalManager) loop() {
	defer sm.wg.Done()
	source := sm.source
	for {
		select {
		case <-sm.done:
			return
		case <-sm.notify:
			sm.interrupt(false)
		case _, ok := <-source:
			if !ok {
				source = nil
			}
			sm.interrupt(!ok)
		}
	}
}

func (sm *SignalManager) interrupt(latch bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if latch {
		sm.latched = true
	}
	if sm.current != nil && !sm.current.fired.Load() {
		sm.current.fire()
		return
	}
	sm.pending = true
}

// Arm starts a scope derived from parent. submissionID names the submission
// the scope guards and is empty at the prompt. A held interrupt fires the
// scope at once.
func (sm *SignalManager) Arm(parent context.Context, submissionID string) *Scope {
	ctx, cancel := context.WithCancelCause(parent)
	s := &Scope{ctx: ctx, cancel: cancel, submissionID: submissionID}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.current = s
	if sm.pending || sm.latched {
		sm.pending = false
		s.fire()
	}
	return s
}

// Release ends s. Interrupts from now on belong to the next scope.
func (sm *SignalManager) Release(s *Scope) {
	sm.mu.Lock()
	if sm.current == s {
		sm.current = nil
	}
	sm.mu.Unlock()
	s.cancel(context.Canceled)
}

// CheckRace waits briefly for an interrupt to hit s. Some terminals deliver
// Ctrl-C as an EOF or read error slightly before the signal itself.
func (sm *SignalManager) CheckRace(s *Scope) {
	if s.Interrupted() {
		return
	}
	select {
	case <-s.ctx.Done():
	case <-time.After(raceWindow):
	}
}

// Stop detaches from the signal and the source and waits for the listener to exit.
func (sm *SignalManager) Stop() {
	sm.stop.Do(func() {
		signal.Stop(sm.notify)
		close(sm.done)
		sm.wg.Wait()
	})
}

// Context is cancelled when the scope is interrupted or released.
func (s *Scope) Context() context.Context { return s.ctx }

// Interrupted reports whether Ctrl-C ended the scope.
func (s *Scope) Interrupted() bool { return s.fired.Load() }

// SubmissionID is the submission the scope guards, if any.
func (s *Scope) SubmissionID() string { return s.submissionID }

func (s *Scope) fire() {
	s.fired.Store(true)
	s.cancel(ErrInterrupted)
}
