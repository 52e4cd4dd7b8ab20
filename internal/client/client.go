// Package client talks to a running cadence server over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/lazypower/cadence/internal/engine"
	"github.com/lazypower/cadence/internal/notes"
)

const (
	DefaultServerURL = "http://127.0.0.1:37778"
	httpTimeout      = 5 * time.Second
)

// Client talks to the cadence server.
type Client struct {
	http      *http.Client
	serverURL string
}

// NewClient creates a client for serverURL. An empty URL falls back to
// CADENCE_URL and then to http://127.0.0.1:37778.
func NewClient(serverURL string) *Client {
	if serverURL == "" {
		serverURL = os.Getenv("CADENCE_URL")
	}
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: strings.TrimRight(serverURL, "/"),
	}
}

// URL returns the server base URL the client targets.
func (c *Client) URL() string {
	return c.serverURL
}

// Post sends a POST request with JSON body. Returns response body.
func (c *Client) Post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// Get sends a GET request. Returns response body.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	path := req.URL.Path
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return data, fmt.Errorf("%s %s: status %d: %s", req.Method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	return data, nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	_, err := c.Get(ctx, "/api/health")
	return err == nil
}

// InitSession creates or resumes a session and returns its id. An empty id
// lets the server generate one.
func (c *Client) InitSession(ctx context.Context, id, project string) (string, error) {
	body, err := json.Marshal(map[string]string{"session_id": id, "project": project})
	if err != nil {
		return "", err
	}
	data, err := c.Post(ctx, "/api/sessions/init", body)
	if err != nil {
		return "", err
	}
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode init response: %w", err)
	}
	return resp.SessionID, nil
}

// PushNotes appends ns to the session and returns its new note count.
func (c *Client) PushNotes(ctx context.Context, id string, ns []notes.Note) (int, error) {
	body, err := json.Marshal(ns)
	if err != nil {
		return 0, err
	}
	data, err := c.Post(ctx, sessionPath(id, "notes"), body)
	if err != nil {
		return 0, err
	}
	var resp struct {
		NoteCount int `json:"note_count"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, fmt.Errorf("decode notes response: %w", err)
	}
	return resp.NoteCount, nil
}

// Aggregate fetches the processor's aggregation for the session.
func (c *Client) Aggregate(ctx context.Context, id string) (engine.ProcessResult, error) {
	var res engine.ProcessResult
	data, err := c.Get(ctx, sessionPath(id, "aggregate"))
	if err != nil {
		return res, err
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return res, fmt.Errorf("decode aggregate response: %w", err)
	}
	return res, nil
}

// Decide asks the server whether to prompt now.
func (c *Client) Decide(ctx context.Context, id string, dc engine.DecisionContext) (engine.Decision, error) {
	var d engine.Decision
	req := map[string]any{
		"stage":          dc.Stage,
		"critical":       dc.Critical,
		"goal_completed": dc.GoalCompleted,
		"recent_action":  dc.RecentAction,
		"current_state":  dc.CurrentState,
		"previous_state": dc.PreviousState,
	}
	if dc.LastPromptAt != nil {
		req["last_prompt_at"] = dc.LastPromptAt.UnixMilli()
	}
	body, err := json.Marshal(req)
	if err != nil {
		return d, err
	}
	data, err := c.Post(ctx, sessionPath(id, "decide"), body)
	if err != nil {
		return d, err
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("decode decision: %w", err)
	}
	return d, nil
}

// EndSession ends the session on the server.
func (c *Client) EndSession(ctx context.Context, id string) error {
	_, err := c.Post(ctx, sessionPath(id, "end"), nil)
	return err
}

func sessionPath(id, action string) string {
	return "/api/sessions/" + url.PathEscape(id) + "/" + action
}
