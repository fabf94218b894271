package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/gokernel"
	"github.com/aretw0/gokernel/pkg/adapters/memory"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/observability"
	"github.com/aretw0/gokernel/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type submitResult struct {
	Events []map[string]any `json:"events"`
	Error  string           `json:"error"`
}

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, *session.Manager) {
	t.Helper()
	mgr := session.NewManager(memory.NewStore())
	pool := session.NewPool(mgr.Factory("lua"))
	t.Cleanup(func() { _ = pool.Close() })

	srv, err := NewServer(pool, append(opts, WithSessions(mgr))...)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, mgr
}

func post(t *testing.T, url, body string) (*http.Response, submitResult) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out submitResult
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func eventTypes(events []map[string]any) []string {
	var out []string
	for _, e := range events {
		out = append(out, e["type"].(string))
	}
	return out
}

func TestLoadSpec(t *testing.T) {
	doc, err := LoadSpec(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", doc.Info.Version)
}

func TestSubmit_KeepsSessionState(t *testing.T) {
	ts, mgr := newTestServer(t)

	resp, out := post(t, ts.URL+"/sessions/s1/submit", `{"code":"x = 41"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, out.Error)

	_, out = post(t, ts.URL+"/sessions/s1/submit", `{"code":"x + 1"}`)
	assert.Empty(t, out.Error)
	var value string
	for _, e := range out.Events {
		if e["type"] == string(domain.EventValueProduced) {
			value = e["value"].(map[string]any)["value"].(string)
		}
	}
	assert.Equal(t, "42", value)

	rec, err := mgr.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"x = 41", "x + 1"}, rec.Units)
}

func TestSubmit_DirectiveThenCode(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, out := post(t, ts.URL+"/sessions/s1/submit", `{"code":"%lsmagic\n1 + 1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, out.Error)

	types := eventTypes(out.Events)
	assert.Contains(t, types, string(domain.EventDisplayedValueProduced))
	assert.NotContains(t, types, string(domain.EventEvaluationFailed))
	var values []string
	for _, e := range out.Events {
		if e["type"] == string(domain.EventValueProduced) {
			values = append(values, e["value"].(map[string]any)["value"].(string))
		}
	}
	assert.Equal(t, []string{"2"}, values)
}

func TestSubmit_EvaluationErrorIsReported(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, out := post(t, ts.URL+"/sessions/s1/submit", `{"code":"error('boom')"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, out.Error, "boom")
	assert.Contains(t, eventTypes(out.Events), string(domain.EventEvaluationFailed))
}

func TestSubmit_Diagnostics(t *testing.T) {
	ts, _ := newTestServer(t)

	_, out := post(t, ts.URL+"/sessions/s1/submit", `{"code":"x = = 1","command":"diagnostics"}`)
	assert.Empty(t, out.Error)
	assert.Contains(t, eventTypes(out.Events), string(domain.EventDisplayedValueProduced))
	assert.NotContains(t, eventTypes(out.Events), string(domain.EventValueProduced))
}

func TestSubmit_RejectsInvalidBodies(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `code`},
		{"not an object", `"x = 1"`},
		{"unknown field", `{"code":"x","extra":1}`},
		{"unknown command", `{"code":"x","command":"run"}`},
		{"wrong type", `{"code":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/sessions/s1/submit", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestSubscribeEvents(t *testing.T) {
	ts, _ := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/sessions/s1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: ping", lines.Text())

	// The subscription exists once the ping arrived.
	_, out := post(t, ts.URL+"/sessions/s1/submit", `{"code":"1 + 1"}`)
	require.Empty(t, out.Error)

	var seen []string
	for lines.Scan() {
		line := lines.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			seen = append(seen, name)
			if name == string(domain.EventEvaluationSucceeded) {
				break
			}
		}
	}
	assert.Contains(t, seen, string(domain.EventValueProduced))
	assert.Equal(t, string(domain.EventEvaluationSucceeded), seen[len(seen)-1])
}

func TestListDirectives(t *testing.T) {
	k, err := gokernel.New("lua")
	require.NoError(t, err)
	defer k.Close()
	ts, _ := newTestServer(t, WithDirectives(k.Directives()))

	resp, err := http.Get(ts.URL + "/directives")
	require.NoError(t, err)
	defer resp.Body.Close()

	var list []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	var names []string
	for _, d := range list {
		names = append(names, d.Name)
	}
	assert.Contains(t, names, "%lsmagic")
	assert.Contains(t, names, "%%time")
}

func TestListSessions(t *testing.T) {
	ts, _ := newTestServer(t)
	post(t, ts.URL+"/sessions/b/submit", `{"code":"1"}`)
	post(t, ts.URL+"/sessions/a/submit", `{"code":"1"}`)

	resp, err := http.Get(ts.URL + "/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	var ids []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ids))
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestHealthInfoAndSpec(t *testing.T) {
	ts, _ := newTestServer(t, WithMetrics(observability.NewMetrics()))

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/info")
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	resp.Body.Close()
	assert.Equal(t, "1.0.0", info["api_version"])
	assert.Equal(t, "gokernel-http", info["app"])

	resp, err = http.Get(ts.URL + "/openapi.yaml")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "text/yaml", resp.Header.Get("Content-Type"))

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t)
	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/sessions/s1/submit", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
