package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForward(t *testing.T) {
	from := NewChannel()
	to := NewChannel()
	sub := to.Subscribe()

	stop := Forward(context.Background(), from, to)
	from.Publish(event("a"))
	from.Publish(event("b"))

	var got []domain.Event
	for len(got) < 2 {
		select {
		case e := <-sub.C():
			got = append(got, e)
		case <-time.After(2 * time.Second):
			t.Fatal("forwarded events did not arrive")
		}
	}
	assert.Equal(t, []string{"a", "b"}, codes(got))

	stop()
	from.Close()
	to.Close()
	sub.Close()
}

func TestForward_StopsWithContext(t *testing.T) {
	from := NewChannel()
	to := NewChannel()
	ctx, cancel := context.WithCancel(context.Background())

	stop := Forward(ctx, from, to)
	cancel()
	stop()

	sub := to.Subscribe()
	from.Publish(event("after"))
	to.Close()
	assert.Empty(t, collect(sub))
	from.Close()
}

func TestLogEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	log := LogEvents(logger)

	sub := domain.NewSubmission("1")
	log(domain.NewEvaluationSucceeded(sub))
	log(domain.NewEvaluationFailed(sub, assert.AnError, nil))

	out := buf.String()
	require.Contains(t, out, "submission_id="+sub.ID)
	assert.Contains(t, out, "type=evaluation_succeeded")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "Evaluation failed")
}
