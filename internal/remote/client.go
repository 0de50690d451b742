// internal/remote/client.go
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	apperrors "github.com/Corphon/ScriptBreakdown/internal/errors"
	"github.com/Corphon/ScriptBreakdown/internal/utils"
)

// Messages surfaced to the user for transport-level failures
const (
	MsgAuthRequired = "Authentication required. Please log in again."
	MsgNetworkError = "Network error: Unable to connect to server"
)

// maxErrorBody bounds how much of an error response is read
const maxErrorBody = 1 << 20

// TokenSource returns the current bearer token, or "" when logged out
type TokenSource func() string

// Options configures a Client
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Token      TokenSource
	Metrics    *utils.APIMetrics
	Logger     *utils.Logger
}

// Client talks to the remote breakdown service. One method per endpoint;
// every call is bounded by ctx and by the transport timeout.
type Client struct {
	baseURL string
	client  *http.Client
	metrics *utils.APIMetrics
	logger  *utils.Logger

	mu    sync.RWMutex
	token TokenSource
}

// New creates a client
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = utils.NewAPIMetrics()
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.GetLogger()
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  httpClient,
		metrics: metrics,
		logger:  logger,
		token:   opts.Token,
	}
}

// BaseURL returns the service base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetTokenSource replaces the bearer token source
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ts
}

func (c *Client) bearer() string {
	c.mu.RLock()
	ts := c.token
	c.mu.RUnlock()
	if ts == nil {
		return ""
	}
	return ts()
}

// request describes one call
type request struct {
	method   string
	path     string
	endpoint string // metrics name
	query    url.Values

	// exactly one of jsonBody / body is used
	jsonBody    any
	body        io.Reader
	contentType string
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var body io.Reader
	contentType := r.contentType
	if r.jsonBody != nil {
		data, err := json.Marshal(r.jsonBody)
		if err != nil {
			return apperrors.NewValidationError("invalid request body", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	} else if r.body != nil {
		body = r.body
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return apperrors.NewValidationError("invalid request", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RecordRemoteCall(r.endpoint, r.method, 0, time.Since(start))
		c.logger.Warn("remote call failed", map[string]interface{}{
			"endpoint": r.endpoint,
			"error":    err,
		})
		return apperrors.NewNetworkError(MsgNetworkError, err)
	}
	defer resp.Body.Close()
	c.metrics.RecordRemoteCall(r.endpoint, r.method, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewProcessingError("invalid response from server", err)
	}
	return nil
}

// responseError maps a non-2xx response. 401 is always an authentication
// failure; otherwise the body's "detail" is used when it is a string.
func responseError(resp *http.Response) error {
	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		e := apperrors.NewUnauthorizedError(MsgAuthRequired, nil)
		e.Status = http.StatusUnauthorized
		return e
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	message := ""
	if json.Unmarshal(data, &payload) == nil && len(payload.Detail) > 0 {
		var detail string
		if json.Unmarshal(payload.Detail, &detail) == nil {
			message = detail
		}
	}
	if message == "" {
		message = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return apperrors.NewRemoteError(resp.StatusCode, message)
}

func escape(id string) string {
	return url.PathEscape(id)
}
