package observability

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/gokernel/internal/runtime"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	sub := domain.NewSubmission("1")

	m.ObserveEvent(domain.NewEvaluationSucceeded(sub))
	m.ObserveEvent(domain.NewEvaluationSucceeded(sub))
	m.ObserveExecution(context.Background(), "lua", runtime.Outcome{Status: domain.StatusSucceeded, Duration: time.Millisecond})
	m.ObserveExecution(context.Background(), "lua", runtime.Outcome{
		Status: domain.StatusFaulted,
		Err:    &domain.CancellationError{},
	})

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				key := f.GetName()
				for _, l := range metric.GetLabel() {
					key += "/" + l.GetValue()
				}
				counts[key] = c.GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, counts["gokernel_events_total/evaluation_succeeded"])
	assert.Equal(t, 1.0, counts["gokernel_executions_total/lua/succeeded"])
	assert.Equal(t, 1.0, counts["gokernel_executions_total/lua/cancelled"])

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "gokernel_execution_duration_seconds")
}
