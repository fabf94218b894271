package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/gokernel/pkg/adapters/memory"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/pipeline"
	"github.com/aretw0/gokernel/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sender records the code of every submission it receives.
type sender struct {
	mu    sync.Mutex
	codes []string
	fail  string
	ctxs  []context.Context
}

func (s *sender) Send(ctx context.Context, cmd domain.Command) (pipeline.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := cmd.Submission().Code
	s.codes = append(s.codes, code)
	s.ctxs = append(s.ctxs, ctx)
	if code == s.fail {
		return pipeline.Result{}, errors.New("boom")
	}
	return pipeline.Result{}, nil
}

func TestManager_OpenCreatesAndReuses(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()

	rec, err := mgr.Open(ctx, "s1", "lua")
	require.NoError(t, err)
	assert.Equal(t, "lua", rec.Language)
	assert.Empty(t, rec.Units)

	require.NoError(t, mgr.Record(ctx, "s1", "x = 1"))

	rec, err = mgr.Open(ctx, "s1", "lua")
	require.NoError(t, err)
	assert.Equal(t, []string{"x = 1"}, rec.Units)

	_, err = mgr.Open(ctx, "s1", "go")
	assert.ErrorContains(t, err, "belongs to lua")
}

func TestManager_RecordMissingSession(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	err := mgr.Record(context.Background(), "ghost", "x = 1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_ReplayInOrder(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()
	_, err := mgr.Open(ctx, "s1", "lua")
	require.NoError(t, err)
	for _, u := range []string{"a = 1", "b = 2", "c = a + b"} {
		require.NoError(t, mgr.Record(ctx, "s1", u))
	}

	s := &sender{}
	n, err := mgr.Replay(ctx, "s1", s)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"a = 1", "b = 2", "c = a + b"}, s.codes)
	for _, c := range s.ctxs {
		assert.True(t, isReplay(c))
	}
}

func TestManager_ReplayStopsAtFirstFailure(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()
	_, err := mgr.Open(ctx, "s1", "lua")
	require.NoError(t, err)
	for _, u := range []string{"a = 1", "bad", "c = 3"} {
		require.NoError(t, mgr.Record(ctx, "s1", u))
	}

	s := &sender{fail: "bad"}
	n, err := mgr.Replay(ctx, "s1", s)
	assert.Equal(t, 1, n)
	assert.ErrorContains(t, err, "unit 2 of session s1")
	assert.Equal(t, []string{"a = 1", "bad"}, s.codes)
}

func TestManager_RecorderSkipsReplay(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()
	_, err := mgr.Open(ctx, "s1", "lua")
	require.NoError(t, err)

	hook := mgr.Recorder("s1")
	hook(ctx, domain.NewSubmission("x = 1"))
	hook(withReplay(ctx), domain.NewSubmission("replayed"))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	hook(cancelled, domain.NewSubmission("y = 2"))

	rec, err := mgr.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"x = 1", "y = 2"}, rec.Units)
}

func TestManager_DeleteAndList(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()
	for _, id := range []string{"b", "a"} {
		_, err := mgr.Open(ctx, id, "go")
		require.NoError(t, err)
	}

	ids, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, mgr.Delete(ctx, "a"))
	_, err = mgr.Load(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_ConcurrentRecordsAreSerialized(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()
	_, err := mgr.Open(ctx, "s1", "lua")
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, mgr.Record(ctx, "s1", fmt.Sprintf("x = %d", i)))
		}(i)
	}
	wg.Wait()

	rec, err := mgr.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, rec.Units, n, "no append may be lost")
}

func TestManager_LocksAreReleased(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10000; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = mgr.Open(ctx, fmt.Sprintf("s%d", i), "lua")
		}(i)
	}
	wg.Wait()

	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	assert.Empty(t, mgr.locks, "lock entries must be garbage collected")
}

// countingLocker is an in-process SessionLocker.
type countingLocker struct {
	locked   atomic.Int32
	unlocked atomic.Int32
	err      error
}

func (l *countingLocker) LockSession(ctx context.Context, sessionID string, ttl time.Duration) (ports.ReleaseFunc, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.locked.Add(1)
	return func(context.Context) error {
		l.unlocked.Add(1)
		return nil
	}, nil
}

func TestManager_DistributedLock(t *testing.T) {
	locker := &countingLocker{}
	mgr := NewManager(memory.NewStore(), WithLocker(locker), WithLockTTL(time.Second))
	ctx := context.Background()

	_, err := mgr.Open(ctx, "s1", "lua")
	require.NoError(t, err)
	require.NoError(t, mgr.Record(ctx, "s1", "x = 1"))

	assert.Equal(t, int32(2), locker.locked.Load())
	assert.Equal(t, int32(2), locker.unlocked.Load())

	locker.err = errors.New("redis down")
	err = mgr.Record(ctx, "s1", "y = 2")
	assert.ErrorContains(t, err, "failed to acquire distributed lock")
}
