// Package client provides a typed Go SDK for the Retrace REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Attribution headers understood by the server.
const (
	headerActorType    = "X-Audit-Actor-Type"
	headerActorID      = "X-Audit-Actor-Id"
	headerActorName    = "X-Audit-Actor"
	headerGroupTag     = "X-Audit-Group-Tag"
	headerGroupComment = "X-Audit-Group-Comment"
)

// Client is the top-level Retrace API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	headers    map[string]string

	Audits    *AuditService
	Entities  *EntityService
	Revisions *RevisionService
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a Retrace client for the given base URL (e.g. "http://localhost:3040").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		headers:    make(map[string]string),
	}
	for _, o := range opts {
		o(c)
	}
	c.attach()
	return c
}

// attach (re)binds the resource services to this client instance.
func (c *Client) attach() {
	c.Audits = &AuditService{c: c}
	c.Entities = &EntityService{c: c}
	c.Revisions = &RevisionService{c: c}
}

// clone returns a copy of the client with its own header map, sharing the
// underlying HTTP client.
func (c *Client) clone() *Client {
	dup := &Client{
		baseURL:    c.baseURL,
		apiKey:     c.apiKey,
		httpClient: c.httpClient,
		headers:    make(map[string]string, len(c.headers)),
	}
	for k, v := range c.headers {
		dup.headers[k] = v
	}
	dup.attach()
	return dup
}

// As returns a derived client whose requests are attributed to the given
// structured actor. The receiver is unchanged.
func (c *Client) As(actorType, actorID string) *Client {
	dup := c.clone()
	delete(dup.headers, headerActorName)
	dup.headers[headerActorType] = actorType
	dup.headers[headerActorID] = actorID
	return dup
}

// AsName returns a derived client whose requests are attributed to the given
// display-name actor. The receiver is unchanged.
func (c *Client) AsName(name string) *Client {
	dup := c.clone()
	delete(dup.headers, headerActorType)
	delete(dup.headers, headerActorID)
	dup.headers[headerActorName] = name
	return dup
}

// Grouped returns a derived client whose changes carry the given change-group
// tag and comment. The receiver is unchanged.
func (c *Client) Grouped(tag, comment string) *Client {
	dup := c.clone()
	dup.headers[headerGroupTag] = tag
	dup.headers[headerGroupComment] = comment
	return dup
}

// Health returns the liveness check response.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/api/v1/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Types returns the audited type names registered on the server.
func (c *Client) Types(ctx context.Context) ([]string, error) {
	var resp struct {
		Types []string `json:"types"`
	}
	if err := c.get(ctx, "/api/v1/types", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Types, nil
}

// do executes an HTTP request and decodes the JSON response.
func (c *Client) do(ctx context.Context, method, path string, body any, result any) error {
	u := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseAPIError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// get is a convenience wrapper for GET requests with query parameters.
func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// post is a convenience wrapper for POST requests.
func (c *Client) post(ctx context.Context, path string, body any, result any) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

// put is a convenience wrapper for PUT requests.
func (c *Client) put(ctx context.Context, path string, body any, result any) error {
	return c.do(ctx, http.MethodPut, path, body, result)
}

// del is a convenience wrapper for DELETE requests.
func (c *Client) del(ctx context.Context, path string, params url.Values, result any) error {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return c.do(ctx, http.MethodDelete, path, nil, result)
}
