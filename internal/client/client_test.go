package client

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/cadence/internal/config"
	"github.com/lazypower/cadence/internal/engine"
	"github.com/lazypower/cadence/internal/notes"
	"github.com/lazypower/cadence/internal/server"
	"github.com/lazypower/cadence/internal/session"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg, err := session.NewRegistry(config.DefaultEngine(), config.DefaultCache(), session.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	ts := httptest.NewServer(server.New(reg, nil, "test", logger))
	t.Cleanup(ts.Close)
	return ts
}

func TestNewClientURL(t *testing.T) {
	t.Setenv("CADENCE_URL", "")
	assert.Equal(t, DefaultServerURL, NewClient("").URL())

	t.Setenv("CADENCE_URL", "http://example.test:9000/")
	assert.Equal(t, "http://example.test:9000", NewClient("").URL())
	assert.Equal(t, "http://other:1", NewClient("http://other:1").URL())
}

func TestHealthy(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	assert.True(t, NewClient(ts.URL).Healthy(ctx))

	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	assert.False(t, NewClient(dead.URL).Healthy(ctx))
}

func TestSessionRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	c := NewClient(ts.URL)
	ctx := context.Background()

	id, err := c.InitSession(ctx, "", "checkout")
	require.NoError(t, err)
	assert.Len(t, id, 36)

	count, err := c.PushNotes(ctx, id, []notes.Note{
		notes.Scored(0, 5, "cart loads"),
		notes.Scored(time.Second, 5, "cart loads"),
		notes.Scored(2*time.Second, 5, "cart loads"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	res, err := c.Aggregate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Aggregated.TotalNotes)
	assert.Len(t, res.Aggregated.Windows, 1)

	d, err := c.Decide(ctx, id, engine.DecisionContext{GoalCompleted: true})
	require.NoError(t, err)
	assert.True(t, d.ShouldPrompt)
	assert.Equal(t, engine.UrgencyHigh, d.Urgency)

	require.NoError(t, c.EndSession(ctx, id))
	_, err = c.Aggregate(ctx, id)
	assert.ErrorContains(t, err, "status 404")
}

func TestDecideSendsLastPrompt(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sessions/s%201/decide", r.URL.EscapedPath())
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"should_prompt":false,"reason":"waiting","urgency":"low"}`))
	}))
	defer ts.Close()

	last := time.UnixMilli(1700000000000)
	d, err := NewClient(ts.URL).Decide(context.Background(), "s 1", engine.DecisionContext{LastPromptAt: &last})
	require.NoError(t, err)
	assert.False(t, d.ShouldPrompt)
	assert.Equal(t, float64(1700000000000), got["last_prompt_at"])
}

func TestErrorStatus(t *testing.T) {
	ts := newTestServer(t)

	_, err := NewClient(ts.URL).PushNotes(context.Background(), "missing", []notes.Note{notes.Scored(0, 5, "")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
