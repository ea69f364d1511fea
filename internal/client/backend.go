// Package client provides the outbound HTTP client for the fixed backend.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"audit-gateway/internal/config"
	"audit-gateway/internal/metrics"
	"audit-gateway/internal/model"
)

// BackendClient sends requests to the backend service.
type BackendClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewBackendClient creates a BackendClient with connection pooling and a
// request timeout. The metrics parameter is optional; pass nil to disable
// upstream metrics recording.
func NewBackendClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *BackendClient {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Backend.IdleConnections,
		MaxIdleConnsPerHost: cfg.Backend.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		// The gateway relays bodies byte-for-byte, so it must not negotiate
		// gzip on the caller's behalf.
		DisableCompression: true,
	}

	return &BackendClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
			// Redirects are relayed to the caller, not followed.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:  logger.With("component", "backend_client"),
		metrics: m,
	}
}

// Forward sends one request to url and returns the backend's status, headers
// and fully buffered body. The response body is always closed before Forward
// returns. The context controls the lifetime of the call: when the caller
// disconnects, the backend request is abandoned.
//
// Round-trip failures are returned as *model.TransportError and failures
// reading the body as *model.BodyDrainError.
func (c *BackendClient) Forward(ctx context.Context, method, url string, header http.Header, body []byte) (*model.ProxyResponse, error) {
	var reqBody io.Reader = http.NoBody
	if len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, &model.TransportError{Op: "build request", URL: url, Err: err}
	}
	if header != nil {
		req.Header = header
	}
	// An empty value keeps net/http from adding its own User-Agent.
	if _, ok := req.Header["User-Agent"]; !ok {
		req.Header["User-Agent"] = []string{""}
	}

	c.logger.Debug("backend request",
		"method", req.Method,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	labelMethod := metrics.NormalizeMethod(method)
	if err != nil {
		c.observe(labelMethod, "", time.Since(start))
		return nil, &model.TransportError{Op: "backend request", URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	c.observe(labelMethod, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return nil, &model.BodyDrainError{Err: fmt.Errorf("read backend body: %w", err)}
	}

	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (c *BackendClient) observe(method, status string, d time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamDuration.WithLabelValues(method).Observe(d.Seconds())
	if status != "" {
		c.metrics.UpstreamResponses.WithLabelValues(method, status).Inc()
	}
}
