// Package service implements the core proxy forwarding logic.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"audit-gateway/internal/config"
	"audit-gateway/internal/model"
)

// Forwarder performs the single backend round trip for a request.
type Forwarder interface {
	Forward(ctx context.Context, method, url string, header http.Header, body []byte) (*model.ProxyResponse, error)
}

// ProxyService handles the forwarding logic for proxy requests.
type ProxyService struct {
	client  Forwarder
	logger  *slog.Logger
	baseURL string // without trailing slash
}

// NewProxyService creates a ProxyService forwarding to the configured backend.
func NewProxyService(c Forwarder, cfg *config.Config, logger *slog.Logger) *ProxyService {
	return newProxyService(c, cfg.Backend.BaseURL(), logger)
}

func newProxyService(c Forwarder, baseURL string, logger *slog.Logger) *ProxyService {
	return &ProxyService{
		client:  c,
		logger:  logger.With("component", "proxy_service"),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// BaseURL returns the backend base URL requests are forwarded to.
func (s *ProxyService) BaseURL() string {
	return s.baseURL + "/"
}

// Forward reads the request body, sends the request to the backend and
// returns the fully buffered response. There is exactly one attempt; errors
// are returned to the caller unchanged apart from wrapping.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	var body []byte
	if pr.Body != nil {
		var err error
		body, err = io.ReadAll(pr.Body)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
	}

	backendURL := s.buildBackendURL(pr.Path, pr.RawQuery)

	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"url", backendURL,
	)

	resp, err := s.client.Forward(pr.Ctx, pr.Method, backendURL, filterRequestHeaders(pr.Header), body)
	if err != nil {
		return nil, fmt.Errorf("forward to backend: %w", err)
	}

	resp.Header = filterResponseHeaders(resp.Header)
	return resp, nil
}

// buildBackendURL appends the path to the base URL verbatim. No cleaning or
// traversal filtering is done: "/a/../b" reaches the backend as "/a/../b".
func (s *ProxyService) buildBackendURL(path, rawQuery string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := s.baseURL + path
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	return u
}
