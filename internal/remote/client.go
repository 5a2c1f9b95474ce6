package remote

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paveg/crosstab/internal/errors"
	"github.com/paveg/crosstab/internal/monitoring"
	"github.com/paveg/crosstab/internal/version"
)

// DefaultBaseURL is the analytics API of a locally running service.
const DefaultBaseURL = "http://localhost:8080/api/analytics"

// RequestIDHeader carries the request id to the service.
const RequestIDHeader = "X-Request-ID"

var (
	errSuperseded = stderrors.New("superseded by a newer request")
	errCancelled  = stderrors.New("cancelled by caller")
)

// ServerError is a non-2xx response. Message is the service's error text,
// passed through verbatim.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// Client executes pivots on a remote aggregation service. It allows at most
// one in-flight request per request id: starting a request cancels the
// previous one with the same id. One client should back one editing
// session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *monitoring.MetricsCollector

	mu       sync.Mutex
	inflight map[string]*inflightRequest
}

type inflightRequest struct {
	cancel context.CancelCauseFunc
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics records every pivot call into mc.
func WithMetrics(mc *monitoring.MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = mc
	}
}

// NewClient creates a client for the service at baseURL, DefaultBaseURL
// when empty.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		inflight:   make(map[string]*inflightRequest),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "remote")
	return c
}

// BaseURL returns the service base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ExecutePivot posts req and returns the service response. With a non-empty
// requestID any in-flight request with the same id is cancelled first.
//
// A request cancelled through CancelRequest, CancelAllRequests, a newer
// request with the same id or the cancellation of ctx fails with an error
// matching errors.ErrCancelled. A response received in full is returned even
// when cancellation happens afterwards.
func (c *Client) ExecutePivot(ctx context.Context, req *Request, requestID string) (*Response, error) {
	const op = "ExecutePivot"

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	if requestID != "" {
		entry := &inflightRequest{cancel: cancel}
		c.mu.Lock()
		if prev, ok := c.inflight[requestID]; ok {
			prev.cancel(errSuperseded)
		}
		c.inflight[requestID] = entry
		c.mu.Unlock()
		defer c.release(requestID, entry)
	}

	start := time.Now()
	resp, err := c.executePivot(ctx, op, req, requestID)
	m := monitoring.OperationMetrics{
		Duration:  time.Since(start),
		Operation: monitoring.OpRemotePivot,
		Failed:    err != nil,
	}
	if resp != nil {
		m.RecordsProcessed = int64(len(resp.Data))
		m.Cached = resp.Metadata.Cached
	}
	monitoring.Resolve(c.metrics).Record(m)

	if err != nil {
		if errors.IsCancelled(err) {
			c.logger.Debug("pivot request cancelled", "request_id", requestID)
		} else {
			c.logger.Warn("pivot request failed", "request_id", requestID, "error", err)
		}
		return nil, err
	}
	c.logger.Debug("pivot request completed",
		"request_id", requestID,
		"rows", len(resp.Data),
		"cached", resp.Metadata.Cached,
		"execution_ms", resp.Metadata.ExecutionTimeMs)
	return resp, nil
}

func (c *Client) executePivot(ctx context.Context, op string, req *Request, requestID string) (*Response, error) {
	if req == nil {
		return nil, errors.NewInvalidInputError(op, "request is required")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.NewInvalidInputError(op, fmt.Sprintf("encoding request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pivot", bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewInvalidInputError(op, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set(RequestIDHeader, requestID)

	var out Response
	if err := c.do(httpReq, &out); err != nil {
		return nil, transportError(ctx, op, err)
	}
	return &out, nil
}

// release removes the in-flight entry unless a newer request took the id.
func (c *Client) release(requestID string, entry *inflightRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[requestID] == entry {
		delete(c.inflight, requestID)
	}
}

// CancelRequest cancels the in-flight request with the given id. Unknown ids
// are ignored.
func (c *Client) CancelRequest(requestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.inflight[requestID]; ok {
		entry.cancel(errCancelled)
		delete(c.inflight, requestID)
	}
}

// CancelAllRequests cancels every in-flight request.
func (c *Client) CancelAllRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, entry := range c.inflight {
		entry.cancel(errCancelled)
		delete(c.inflight, id)
	}
}

// InFlight reports whether a request with the given id is running.
func (c *Client) InFlight(requestID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[requestID]
	return ok
}

// SupportedAggregators lists the aggregator names the service accepts.
func (c *Client) SupportedAggregators(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.get(ctx, "SupportedAggregators", "/aggregators", &names); err != nil {
		return nil, err
	}
	return names, nil
}

// AggregatorDisplayNames returns the service's aggregator labels.
func (c *Client) AggregatorDisplayNames(ctx context.Context) (map[string]string, error) {
	var names map[string]string
	if err := c.get(ctx, "AggregatorDisplayNames", "/aggregators/display-names", &names); err != nil {
		return nil, err
	}
	return names, nil
}

// Health checks the service.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.get(ctx, "Health", "/health", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// CacheStats returns the service's response cache statistics.
func (c *Client) CacheStats(ctx context.Context) (*CacheStats, error) {
	var stats CacheStats
	if err := c.get(ctx, "CacheStats", "/cache/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ClearCache empties the service's response cache.
func (c *Client) ClearCache(ctx context.Context) error {
	const op = "ClearCache"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/cache/clear", http.NoBody)
	if err != nil {
		return errors.NewInvalidInputError(op, err.Error())
	}
	if err := c.do(httpReq, nil); err != nil {
		return transportError(ctx, op, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return errors.NewInvalidInputError(op, err.Error())
	}
	if err := c.do(httpReq, out); err != nil {
		return transportError(ctx, op, err)
	}
	return nil
}

// do sends the request and decodes a 2xx body into out. Non-2xx responses
// become a *ServerError.
func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return serverError(resp)
	}
	if out == nil {
		_, err := io.Copy(io.Discard, resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func serverError(resp *http.Response) *ServerError {
	fallback := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &ServerError{StatusCode: resp.StatusCode, Message: fallback}
	}
	var er ErrorResponse
	if json.Unmarshal(body, &er) != nil || er.Error == "" {
		return &ServerError{StatusCode: resp.StatusCode, Message: fallback}
	}
	return &ServerError{StatusCode: resp.StatusCode, Message: er.Error}
}

// transportError classifies err: server errors pass through, aborts caused
// by cancellation become ErrCancelled, anything else is a failure.
func transportError(ctx context.Context, op string, err error) error {
	var se *ServerError
	if stderrors.As(err, &se) {
		return se
	}
	if cause := context.Cause(ctx); cause != nil && !stderrors.Is(cause, context.DeadlineExceeded) {
		return errors.NewCancelledError(op, cause)
	}
	return &errors.PivotError{
		Op:      op,
		Message: fmt.Sprintf("request failed: %v", err),
		Cause:   err,
	}
}
