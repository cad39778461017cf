package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Views the client never redirects away from on a 401.
const (
	ViewLogin    = "login"
	ViewRegister = "register"
)

// Session is the part of the session store the client reads the bearer
// token from and clears when the backend rejects it.
type Session interface {
	Token() string
	Logout() error
}

// Navigator is implemented by whatever owns the current view.
type Navigator interface {
	CurrentView() string
	Redirect(view string)
}

// Client is the single point of egress to the platform backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    Session
	navigator  Navigator
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithSession attaches the session whose token is sent on every request.
func WithSession(s Session) Option {
	return func(c *Client) { c.session = s }
}

// WithNavigator sets the view owner that receives login redirects.
func WithNavigator(n Navigator) Option {
	return func(c *Client) { c.navigator = n }
}

// WithLogger sets the logger; the default discards.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new backend client. A zero timeout leaves requests
// bounded only by the context and the transport.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend origin the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one outbound call
type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

// do executes req and decodes a successful JSON body into out (if non-nil).
func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	data, err := c.doRaw(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response from %s %s: %w", req.method, req.path, err)
	}
	return nil
}

// doRaw executes req and returns the raw body of a 2xx response.
func (c *Client) doRaw(ctx context.Context, req request) ([]byte, error) {
	fullURL := c.baseURL + req.path
	if len(req.query) > 0 {
		fullURL += "?" + req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, fullURL, req.body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if c.session != nil {
		if token := c.session.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("request failed",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Error(err))
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("request completed",
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode == http.StatusUnauthorized {
		c.handleUnauthorized()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, body)
	}

	return body, nil
}

// handleUnauthorized drops the rejected session and sends the user to the
// login view, unless they are already on an authentication view.
func (c *Client) handleUnauthorized() {
	if c.session != nil {
		if err := c.session.Logout(); err != nil {
			c.logger.Warn("failed to clear session after 401", zap.Error(err))
		}
	}

	if c.navigator == nil {
		return
	}
	switch c.navigator.CurrentView() {
	case ViewLogin, ViewRegister:
		return
	}
	c.logger.Info("session rejected, redirecting to login")
	c.navigator.Redirect(ViewLogin)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, request{method: http.MethodGet, path: path, query: query}, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out interface{}) error {
	req := request{method: method, path: path}
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		req.body = bytes.NewReader(jsonData)
		req.contentType = "application/json"
	}
	return c.do(ctx, req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out interface{}) error {
	return c.sendJSON(ctx, http.MethodPost, path, in, out)
}

func (c *Client) patchJSON(ctx context.Context, path string, in, out interface{}) error {
	return c.sendJSON(ctx, http.MethodPatch, path, in, out)
}

func (c *Client) deleteJSON(ctx context.Context, path string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: path}, nil)
}

// HealthCheck verifies that the backend is reachable
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var status struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, "/health/", nil, &status); err != nil {
		return fmt.Errorf("backend is unreachable at %s: %w", c.baseURL, err)
	}
	return nil
}

// pageQuery builds skip/limit paging parameters, leaving out zero values
// so the backend applies its defaults.
func pageQuery(skip, limit int) url.Values {
	q := url.Values{}
	if skip > 0 {
		q.Set("skip", fmt.Sprint(skip))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	return q
}

// pathID escapes a single path segment.
func pathID(id string) string {
	return url.PathEscape(id)
}
