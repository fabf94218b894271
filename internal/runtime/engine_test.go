package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/gokernel/internal/lang/lua"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLuaEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	e := NewEngine(lua.NewFrontEnd(), lua.NewInterpreter(), opts...)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngine_ExpressionProducesValue(t *testing.T) {
	e := newLuaEngine(t)
	rec := &recorder{}

	out := e.Execute(context.Background(), domain.NewSubmission("1 + 1"), rec.emit)

	require.Equal(t, domain.StatusSucceeded, out.Status)
	require.NotNil(t, out.Value)
	assert.Equal(t, "2", out.Value.Value)
	assert.Equal(t, []domain.EventType{
		domain.EventValueProduced,
		domain.EventEvaluationSucceeded,
	}, rec.types())

	vp := rec.events[0].(domain.ValueProduced)
	assert.Equal(t, domain.MimeTextPlain, vp.Value.MimeType)
	assert.Equal(t, domain.StatusSucceeded, e.Status())
}

func TestEngine_StatementProducesNoValue(t *testing.T) {
	e := newLuaEngine(t)
	rec := &recorder{}

	out := e.Execute(context.Background(), domain.NewSubmission("x = 41\n"), rec.emit)

	assert.Equal(t, domain.StatusSucceeded, out.Status)
	assert.Nil(t, out.Value)
	assert.Equal(t, []domain.EventType{domain.EventEvaluationSucceeded}, rec.types())
}

func TestEngine_StatePersistsAcrossExecutions(t *testing.T) {
	e := newLuaEngine(t)
	ctx := context.Background()
	noop := func(domain.Event) {}

	require.Equal(t, domain.StatusSucceeded, e.Execute(ctx, domain.NewSubmission("x = 41"), noop).Status)
	out := e.Execute(ctx, domain.NewSubmission("x + 1"), noop)

	require.NotNil(t, out.Value)
	assert.Equal(t, "42", out.Value.Value)
}

func TestEngine_EnginesAreIsolated(t *testing.T) {
	a := newLuaEngine(t)
	b := newLuaEngine(t)
	ctx := context.Background()
	noop := func(domain.Event) {}

	a.Execute(ctx, domain.NewSubmission("x = 1"), noop)
	out := b.Execute(ctx, domain.NewSubmission("x"), noop)

	require.NotNil(t, out.Value)
	assert.Equal(t, "nil", out.Value.Value)
}

func TestEngine_FaultThenSuccess(t *testing.T) {
	e := newLuaEngine(t)
	ctx := context.Background()

	rec := &recorder{}
	out := e.Execute(ctx, domain.NewSubmission("error('boom')"), rec.emit)
	require.Equal(t, domain.StatusFaulted, out.Status)
	var evalErr *domain.EvaluationError
	assert.True(t, errors.As(out.Err, &evalErr))
	assert.Equal(t, []domain.EventType{domain.EventEvaluationFailed}, rec.types())
	failed := rec.events[0].(domain.EvaluationFailed)
	assert.Contains(t, failed.Message, "boom")

	rec = &recorder{}
	out = e.Execute(ctx, domain.NewSubmission("1"), rec.emit)
	assert.Equal(t, domain.StatusSucceeded, out.Status)
	assert.Equal(t, domain.StatusSucceeded, e.Status())
}

func TestEngine_SyntaxErrorCarriesDiagnostics(t *testing.T) {
	e := newLuaEngine(t)
	rec := &recorder{}

	out := e.Execute(context.Background(), domain.NewSubmission("x = = 1"), rec.emit)

	require.Equal(t, domain.StatusFaulted, out.Status)
	require.NotEmpty(t, out.Diagnostics)
	assert.Equal(t, domain.SeverityError, out.Diagnostics[0].Severity)
	failed := rec.events[0].(domain.EvaluationFailed)
	assert.Equal(t, domain.FormatDiagnostics(out.Diagnostics), failed.Message)
}

func TestEngine_DiagnosticsAreSorted(t *testing.T) {
	fe := &fakeFrontEnd{diags: []domain.Diagnostic{
		{Severity: domain.SeverityWarning, Position: domain.Position{Offset: 1}, Message: "w"},
		{Severity: domain.SeverityError, Position: domain.Position{Offset: 9}, Message: "late"},
		{Severity: domain.SeverityError, Position: domain.Position{Offset: 2}, Message: "early"},
	}}
	interp := &fakeInterpreter{eval: func(context.Context, string) (*domain.FormattedValue, error) {
		return nil, errors.New("compile failed")
	}}
	e := NewEngine(fe, interp)

	out := e.Execute(context.Background(), domain.NewSubmission("bad"), func(domain.Event) {})

	require.Len(t, out.Diagnostics, 3)
	assert.Equal(t, "early", out.Diagnostics[0].Message)
	assert.Equal(t, "late", out.Diagnostics[1].Message)
	assert.Equal(t, "w", out.Diagnostics[2].Message)
}

func TestEngine_PrintedOutputIsDisplayedBeforeTerminal(t *testing.T) {
	e := newLuaEngine(t)
	rec := &recorder{}

	e.Execute(context.Background(), domain.NewSubmission("print('hi')"), rec.emit)

	require.Equal(t, []domain.EventType{
		domain.EventDisplayedValueProduced,
		domain.EventEvaluationSucceeded,
	}, rec.types())
	dv := rec.events[0].(domain.DisplayedValueProduced)
	assert.Equal(t, "hi\n", dv.Value.Value)
}

func TestEngine_CancelledBeforeStart(t *testing.T) {
	interp := &fakeInterpreter{}
	e := NewEngine(&fakeFrontEnd{}, interp)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &recorder{}
	out := e.Execute(ctx, domain.NewSubmission("1"), rec.emit)

	assert.Equal(t, domain.StatusFaulted, out.Status)
	var ce *domain.CancellationError
	assert.True(t, errors.As(out.Err, &ce))
	assert.True(t, errors.Is(out.Err, context.Canceled))
	assert.Equal(t, []domain.EventType{domain.EventEvaluationFailed}, rec.types())
	assert.Empty(t, interp.Calls(), "cancelled work never reaches the interpreter")
}

func TestEngine_CancelledMidExecution(t *testing.T) {
	e := newLuaEngine(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	rec := &recorder{}
	out := e.Execute(ctx, domain.NewSubmission("while true do end"), rec.emit)

	assert.Equal(t, domain.StatusFaulted, out.Status)
	assert.True(t, domain.IsCancellation(out.Err))
	assert.Equal(t, []domain.EventType{domain.EventEvaluationFailed}, rec.types())

	// The session stays usable afterwards.
	next := e.Execute(context.Background(), domain.NewSubmission("1"), func(domain.Event) {})
	assert.Equal(t, domain.StatusSucceeded, next.Status)
}

func TestEngine_ExecutionsAreSerialized(t *testing.T) {
	interp := &fakeInterpreter{eval: func(context.Context, string) (*domain.FormattedValue, error) {
		time.Sleep(2 * time.Millisecond)
		return nil, nil
	}}
	e := NewEngine(&fakeFrontEnd{}, interp)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Execute(context.Background(), domain.NewSubmission("x"), func(domain.Event) {})
		}()
	}
	wg.Wait()

	assert.Len(t, interp.Calls(), 8)
	assert.EqualValues(t, 1, interp.maxSeen)
}

func TestEngine_ObserverSeesOutcome(t *testing.T) {
	var got []Outcome
	e := newLuaEngine(t, WithObserver(func(_ context.Context, language string, o Outcome) {
		assert.Equal(t, lua.Language, language)
		got = append(got, o)
	}))

	e.Execute(context.Background(), domain.NewSubmission("1"), func(domain.Event) {})
	e.Execute(context.Background(), domain.NewSubmission("error('x')"), func(domain.Event) {})

	require.Len(t, got, 2)
	assert.Equal(t, domain.StatusSucceeded, got[0].Status)
	assert.Equal(t, domain.StatusFaulted, got[1].Status)
}
