// Package transport is the HTTP plumbing shared by the session manager and
// the content API client: JSON request encoding, bearer credentials, request
// ids, and the error-message extraction policy for failed responses.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"postdesk/internal/logging"
)

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// Client sends requests to one API server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New returns a Client for baseURL. A zero timeout means none.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Response is a fully read HTTP response.
type Response struct {
	Status    int
	Body      string
	RequestID string
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Do sends a request. payload, when non-nil, is JSON encoded; token, when
// non-empty, is sent as a bearer credential. A non-2xx status is not an
// error here: callers decide how to report it.
func (c *Client) Do(ctx context.Context, method, path string, payload interface{}, token string) (*Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)

	api := logging.Get(logging.CategoryAPI)
	api.Request(reqID, method+" "+path, map[string]interface{}{
		"authenticated": token != "",
	})

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		api.Warn("%s %s failed: %v (req=%s)", method, path, err, reqID)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	out := &Response{Status: resp.StatusCode, Body: string(data), RequestID: reqID}
	api.Request(reqID, fmt.Sprintf("%s %s -> %d", method, path, resp.StatusCode), map[string]interface{}{
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	if !out.OK() {
		api.Debug("error body for req=%s: %s", reqID, out.Body)
	}
	return out, nil
}

// ParseObject decodes body as a JSON object. Numbers keep their literal form.
// Anything else (invalid JSON, arrays, scalars, null) reports false.
func ParseObject(body string) (map[string]interface{}, bool) {
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	// trailing data means the body was not a single JSON value
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return obj, true
}

// ErrorMessage extracts a human-readable message from a failed response body.
// A JSON body yields its "message" string, or fallback when it has none.
// A non-JSON body yields the raw text, or fallback when empty.
func ErrorMessage(body, fallback string) string {
	var data interface{}
	if err := json.Unmarshal([]byte(body), &data); err == nil {
		if obj, ok := data.(map[string]interface{}); ok {
			if msg, ok := obj["message"].(string); ok && msg != "" {
				return msg
			}
		}
		return fallback
	}
	if body != "" {
		return body
	}
	return fallback
}
