package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

func TestRateLimiter_RejectionIsAuditedAsResponse(t *testing.T) {
	g := newTestGateway(0)

	// 1 request per second, burst of 1; later requests are rejected.
	store := echomw.NewRateLimiterMemoryStore(rate.Limit(1))
	g.echo.Use(echomw.RateLimiter(store))
	g.echo.GET("/items/", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	rec := g.serve(httptest.NewRequest(http.MethodGet, "/items/", http.NoBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want %d", rec.Code, http.StatusOK)
	}

	got429 := false
	for i := 0; i < 10; i++ {
		rec = g.serve(httptest.NewRequest(http.MethodGet, "/items/", http.NoBody))
		if rec.Code == http.StatusTooManyRequests {
			got429 = true
			break
		}
	}
	if !got429 {
		t.Fatal("expected at least one 429 response after burst, got none")
	}

	recs := auditRecords(t, g.audit)
	last := recs[len(recs)-1]
	if last.level != "INFO" || !strings.HasPrefix(last.msg, "Response: 429, Body: ") {
		t.Errorf("last audit record = %+v, want INFO Response: 429", last)
	}
	for _, r := range recs {
		if r.level == "ERROR" {
			t.Errorf("unexpected ERROR record %q", r.msg)
		}
	}
}
