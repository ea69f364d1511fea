package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"audit-gateway/internal/config"
	"audit-gateway/internal/metrics"
)

// ProxyMethods are the methods relayed to the backend.
var ProxyMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
}

// RegisterRoutes wires all route handlers onto the Echo instance. Local
// endpoints other than "/" live under config.ReservedPrefix so they never
// shadow a backend path.
func RegisterRoutes(e *echo.Echo, proxy *ProxyHandler, health *HealthHandler, cfg *config.Config, m *metrics.Metrics) {
	e.GET("/", health.Root)
	e.GET(config.ReservedPrefix+"/healthz", health.Healthz)
	e.GET(config.ReservedPrefix+"/status", health.Status)

	if cfg.Metrics.Enabled && m != nil {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	e.Match(ProxyMethods, "/*", proxy.Handle)
}
