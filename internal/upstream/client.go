package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-dashboard/internal/models"
	"github.com/noah-isme/sma-adp-dashboard/pkg/config"
	appErrors "github.com/noah-isme/sma-adp-dashboard/pkg/errors"
	"github.com/noah-isme/sma-adp-dashboard/pkg/middleware/requestid"
)

const (
	maxErrorBody = 4 << 10
	probePath    = "/teachers"
)

// ErrTransport marks failures where no HTTP response was received.
var ErrTransport = errors.New("upstream transport failure")

// StatusError is returned for any non-2xx upstream response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s %s: status %d", e.Method, e.Path, e.Status)
}

// Unauthorized reports a 401/403, the only statuses the dashboard branches on.
func (e *StatusError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// Observer receives one observation per upstream call.
type Observer interface {
	ObserveUpstreamRequest(method, route string, status int, duration time.Duration)
}

// Client talks to the school REST API with per-call Basic-Auth credentials.
type Client struct {
	baseURL  string
	http     *http.Client
	observer Observer
	logger   *zap.Logger
}

// NewClient constructs a Client. A nil observer or logger is allowed.
func NewClient(cfg config.UpstreamConfig, observer Observer, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		observer: observer,
		logger:   logger,
	}
}

// Get issues a GET and decodes the JSON response into out (if non-nil).
func (c *Client) Get(ctx context.Context, creds models.Credentials, path string, out interface{}) error {
	return c.do(ctx, creds, http.MethodGet, path, nil, out)
}

// Post issues a POST with a JSON body and decodes the response into out (if non-nil).
func (c *Client) Post(ctx context.Context, creds models.Credentials, path string, body, out interface{}) error {
	return c.do(ctx, creds, http.MethodPost, path, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, creds models.Credentials, path string) error {
	return c.do(ctx, creds, http.MethodDelete, path, nil, nil)
}

// Probe verifies credentials by listing teachers, the same request the login form
// has always used.
func (c *Client) Probe(ctx context.Context, creds models.Credentials) error {
	return c.do(ctx, creds, http.MethodGet, probePath, nil, nil)
}

func (c *Client) do(ctx context.Context, creds models.Credentials, method, path string, body, out interface{}) error {
	if creds.Empty() {
		return appErrors.ErrNotAuthenticated
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode upstream body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Authorization", creds.BasicAuth())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if id := requestid.FromContext(ctx); id != "" {
		req.Header.Set(requestid.Header, id)
	}

	route := routeLabel(path)
	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.observe(method, route, 0, duration)
		c.logger.Warn("upstream request failed",
			zap.String("method", method),
			zap.String("route", route),
			zap.Duration("latency", duration),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, route, err)
	}
	defer resp.Body.Close()
	c.observe(method, route, resp.StatusCode, duration)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{Method: method, Path: route, Status: resp.StatusCode, Detail: strings.TrimSpace(string(detail))}
		c.logger.Debug("upstream rejected request",
			zap.String("method", method),
			zap.String("route", route),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", statusErr.Detail),
		)
		return statusErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode upstream %s %s: %w", method, route, err)
	}
	return nil
}

func (c *Client) observe(method, route string, status int, duration time.Duration) {
	if c.observer != nil {
		c.observer.ObserveUpstreamRequest(method, route, status, duration)
	}
}

// routeLabel replaces id segments so metric labels stay bounded.
func routeLabel(path string) string {
	if u, err := url.Parse(path); err == nil {
		path = u.Path
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg != "" && isID(seg) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func isID(seg string) bool {
	for _, r := range seg {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
