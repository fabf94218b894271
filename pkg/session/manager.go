package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/aretw0/gokernel/internal/logging"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/pipeline"
	"github.com/aretw0/gokernel/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed session lock is held.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.HistoryStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.SessionLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.SessionLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Session Manager with the given history store.
func NewManager(store ports.HistoryStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Open loads the session or creates an empty one for language.
// Opening an existing session with another language fails.
func (m *Manager) Open(ctx context.Context, sessionID, language string) (*domain.SessionRecord, error) {
	var record *domain.SessionRecord
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		record, err = m.store.Load(ctx, sessionID)
		if err == nil {
			if record.Language != language {
				return fmt.Errorf("session %s belongs to %s, not %s", sessionID, record.Language, language)
			}
			return nil
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		record = domain.NewSessionRecord(sessionID, language)
		// Persist immediately to reserve the ID
		if err := m.store.Save(ctx, sessionID, record); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		return nil
	})
	return record, err
}

// Load retrieves an existing session from the store.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	var record *domain.SessionRecord
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		record, err = m.store.Load(ctx, sessionID)
		return err
	})
	return record, err
}

// Record appends a completed unit to the session history.
func (m *Manager) Record(ctx context.Context, sessionID, unit string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		record, err := m.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		record.Append(unit)
		return m.store.Save(ctx, sessionID, record)
	})
}

// Recorder returns a hook that records every unit a kernel completes.
// Units executed by Replay are skipped. Failures are logged, not returned,
// since the unit already ran.
func (m *Manager) Recorder(sessionID string) func(context.Context, domain.Submission) {
	return func(ctx context.Context, unit domain.Submission) {
		if isReplay(ctx) {
			return
		}
		// Recording outlives a cancelled execution context.
		code := strings.TrimRight(unit.Code, "\n")
		if err := m.Record(context.WithoutCancel(ctx), sessionID, code); err != nil {
			m.logger.Warn("Failed to record unit", "session_id", sessionID, "submission_id", unit.ID, "err", err)
		}
	}
}

// Sender is the part of a kernel Replay needs.
type Sender interface {
	Send(ctx context.Context, cmd domain.Command) (pipeline.Result, error)
}

// Replay re-executes the recorded units of a session on k, in order.
// It returns the number of units replayed.
func (m *Manager) Replay(ctx context.Context, sessionID string, k Sender) (int, error) {
	record, err := m.Load(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	ctx = withReplay(ctx)
	for i, unit := range record.Units {
		res, err := k.Send(ctx, domain.NewSubmitCode(unit))
		if err == nil {
			err = res.Err()
		}
		if err != nil {
			return i, fmt.Errorf("failed to replay unit %d of session %s: %w", i+1, sessionID, err)
		}
	}
	m.logger.Debug("Session replayed", "session_id", sessionID, "units", len(record.Units))
	return len(record.Units), nil
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying history store.
func (m *Manager) Store() ports.HistoryStore {
	return m.store
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	// Distributed Locking
	if m.locker != nil {
		unlock, err := m.locker.LockSession(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

type replayKey struct{}

func withReplay(ctx context.Context) context.Context {
	return context.WithValue(ctx, replayKey{}, true)
}

func isReplay(ctx context.Context) bool {
	v, _ := ctx.Value(replayKey{}).(bool)
	return v
}
