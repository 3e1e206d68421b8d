package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	DefaultServerURL = "http://127.0.0.1:37780"
	httpTimeout      = 60 * time.Second
)

// Client talks to the visarea server.
type Client struct {
	http      *http.Client
	serverURL string
}

// New creates a client for serverURL. An empty URL falls back to the
// VISAREA_URL env var, then to DefaultServerURL.
func New(serverURL string) *Client {
	if serverURL == "" {
		serverURL = os.Getenv("VISAREA_URL")
	}
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: serverURL,
	}
}

// BatchResult is the server's summary of a batch ingest.
type BatchResult struct {
	Ingested int `json:"ingested"`
	Scored   int `json:"scored"`
	Nodes    int `json:"nodes"`
}

// Tail is a node's two most recent locations as the server holds them.
type Tail struct {
	Node  string    `json:"node"`
	Older *Location `json:"older"`
	Newer *Location `json:"newer"`
	Full  bool      `json:"full"`
}

// Location is a location as rendered by the server. Score is a number,
// "inf", or nil when unset.
type Location struct {
	ID    string  `json:"id"`
	Node  string  `json:"node"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	TS    int64   `json:"ts"`
	Score any     `json:"score"`
}

// Node is a node as rendered by the server.
type Node struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

// EnsureNode creates a node on the server, or returns the existing one.
func (c *Client) EnsureNode(ctx context.Context, id, name string) (*Node, error) {
	body, err := json.Marshal(map[string]string{"id": id, "name": name})
	if err != nil {
		return nil, err
	}
	data, err := c.do(ctx, http.MethodPost, "/api/nodes", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode node: %w", err)
	}
	return &n, nil
}

// PushBatch posts a JSONL or CSV body to the batch endpoint.
func (c *Client) PushBatch(ctx context.Context, body io.Reader, contentType string) (*BatchResult, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/locations/batch", contentType, body)
	if err != nil {
		return nil, err
	}
	var res BatchResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode batch result: %w", err)
	}
	return &res, nil
}

// Tail fetches a node's current tail.
func (c *Client) Tail(ctx context.Context, nodeID string) (*Tail, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/nodes/"+nodeID+"/tail", "", nil)
	if err != nil {
		return nil, err
	}
	var t Tail
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode tail: %w", err)
	}
	return &t, nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	_, err := c.do(ctx, http.MethodGet, "/api/health", "", nil)
	return err == nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return data, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: bytes.TrimSpace(data)}
	}
	return data, nil
}

// StatusError is returned for HTTP responses with an error status.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}
