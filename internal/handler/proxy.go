package handler

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"audit-gateway/internal/model"
	"audit-gateway/internal/service"
)

// ProxyHandler forwards every non-local request to the backend service.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle relays the request to the backend and writes the backend's status,
// headers and body back unchanged. Errors are returned as is; turning them
// into a client response is the interceptor's job.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	pr := &model.ProxyRequest{
		Ctx:      req.Context(),
		Method:   req.Method,
		Path:     req.URL.EscapedPath(),
		RawQuery: req.URL.RawQuery,
		Header:   req.Header,
		Body:     req.Body,
	}

	resp, err := h.service.Forward(pr)
	if err != nil {
		return err
	}

	h.logger.Debug("received response from backend",
		"method", req.Method,
		"path", pr.Path,
		"status", resp.StatusCode,
		"bytes", len(resp.Body),
	)

	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}

	c.Response().WriteHeader(resp.StatusCode)
	_, err = c.Response().Write(resp.Body)
	return err
}
