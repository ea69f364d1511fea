package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	dto "github.com/prometheus/client_model/go"

	"audit-gateway/internal/audit"
	"audit-gateway/internal/metrics"
)

// findMetric returns the sample of family name whose labels include want.
func findMetric(t *testing.T, m *metrics.Metrics, name string, want map[string]string) *dto.Metric {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			match := true
			for k, v := range want {
				if labels[k] != v {
					match = false
					break
				}
			}
			if match {
				return metric
			}
		}
	}
	return nil
}

func TestMetricsMiddleware_IncrementsCounter(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/items/", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/items/", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	metric := findMetric(t, m, "audit_gateway_http_requests_total", map[string]string{"route": "proxy", "status_code": "200"})
	if metric == nil {
		t.Fatal("expected audit_gateway_http_requests_total with route=proxy")
	}
	if v := metric.GetCounter().GetValue(); v != 1 {
		t.Errorf("counter value = %v, want 1", v)
	}
}

func TestMetricsMiddleware_RecordsDuration(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/_gateway/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/_gateway/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	metric := findMetric(t, m, "audit_gateway_http_request_duration_seconds", map[string]string{"route": "/_gateway"})
	if metric == nil || metric.GetHistogram().GetSampleCount() == 0 {
		t.Error("expected audit_gateway_http_request_duration_seconds with at least one sample")
	}
}

func TestMetricsMiddleware_HTTPErrorStatus(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/events/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	})

	req := httptest.NewRequest(http.MethodGet, "/events/9", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if findMetric(t, m, "audit_gateway_http_requests_total", map[string]string{"route": "proxy", "status_code": "404"}) == nil {
		t.Error("expected audit_gateway_http_requests_total with route=proxy status_code=404")
	}
}

func TestMetricsMiddleware_UnknownMethodNormalized(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.Any("/items/", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("XYZZY", "/items/", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if findMetric(t, m, "audit_gateway_http_requests_total", map[string]string{"route": "proxy", "method": "other"}) == nil {
		t.Error("expected audit_gateway_http_requests_total with route=proxy and method=other")
	}
}

func TestMetricsMiddleware_RootRoute(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Hello World"})
	})

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if findMetric(t, m, "audit_gateway_http_requests_total", map[string]string{"route": "/", "method": "GET", "status_code": "200"}) == nil {
		t.Error("expected audit_gateway_http_requests_total with route=/")
	}
}

func TestMetricsMiddleware_StatusBehindInterceptor(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.Use(Interceptor(InterceptorConfig{
		Audit:  audit.NewWithWriter(io.Discard, "gateway", slog.LevelInfo),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}))
	e.GET("/events/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	})
	e.GET("/boom", func(c echo.Context) error {
		panic("boom")
	})

	for _, path := range []string{"/events/9", "/boom"} {
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		e.ServeHTTP(httptest.NewRecorder(), req)
	}

	if findMetric(t, m, "audit_gateway_http_requests_total", map[string]string{"route": "proxy", "status_code": "404"}) == nil {
		t.Error("expected status_code=404 for a rendered router error")
	}
	if findMetric(t, m, "audit_gateway_http_requests_total", map[string]string{"route": "proxy", "status_code": "500"}) == nil {
		t.Error("expected status_code=500 for the fallback response")
	}
}
