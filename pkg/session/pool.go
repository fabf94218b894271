package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/gokernel"
	"github.com/aretw0/gokernel/internal/logging"
)

// ErrPoolClosed is returned by Get after Close.
var ErrPoolClosed = errors.New("session pool closed")

// Factory builds the kernel serving a session.
type Factory func(ctx context.Context, sessionID string) (gokernel.Interactive, error)

// Pool keeps one live kernel per session ID.
type Pool struct {
	factory Factory
	logger  *slog.Logger

	mu      sync.Mutex
	kernels map[string]gokernel.Interactive
	closed  bool
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolLogger sets the pool logger.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

// NewPool creates an empty pool backed by factory.
func NewPool(factory Factory, opts ...PoolOption) *Pool {
	p := &Pool{
		factory: factory,
		logger:  logging.NewNop(),
		kernels: make(map[string]gokernel.Interactive),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get returns the kernel of sessionID, creating it on first use.
func (p *Pool) Get(ctx context.Context, sessionID string) (gokernel.Interactive, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if k, ok := p.kernels[sessionID]; ok {
		p.mu.Unlock()
		return k, nil
	}
	p.mu.Unlock()

	// Building may replay a long history, so it runs unlocked.
	k, err := p.factory(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to start kernel for session %s: %w", sessionID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = k.Close()
		return nil, ErrPoolClosed
	}
	if existing, ok := p.kernels[sessionID]; ok {
		_ = k.Close()
		return existing, nil
	}
	p.kernels[sessionID] = k
	p.logger.Debug("Kernel started", "session_id", sessionID, "language", k.Language())
	return k, nil
}

// Drop closes and forgets the kernel of sessionID, if any.
func (p *Pool) Drop(sessionID string) error {
	p.mu.Lock()
	k, ok := p.kernels[sessionID]
	delete(p.kernels, sessionID)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return k.Close()
}

// IDs lists the sessions with a live kernel.
func (p *Pool) IDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.kernels))
	for id := range p.kernels {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Close closes every kernel. Later Get calls fail.
func (p *Pool) Close() error {
	p.mu.Lock()
	kernels := p.kernels
	p.kernels = make(map[string]gokernel.Interactive)
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for _, k := range kernels {
		if err := k.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Factory returns a Factory that opens the session, starts a language
// kernel recording into it and replays the recorded history.
func (m *Manager) Factory(language string, opts ...gokernel.Option) Factory {
	return func(ctx context.Context, sessionID string) (gokernel.Interactive, error) {
		if _, err := m.Open(ctx, sessionID, language); err != nil {
			return nil, err
		}
		kopts := append(append([]gokernel.Option{}, opts...), gokernel.WithUnitHook(m.Recorder(sessionID)))
		k, err := gokernel.New(language, kopts...)
		if err != nil {
			return nil, err
		}
		n, err := m.Replay(ctx, sessionID, k)
		if err != nil {
			_ = k.Close()
			return nil, err
		}
		if n > 0 {
			m.logger.Info("Session restored", "session_id", sessionID, "units", n)
		}
		return k, nil
	}
}
