package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"audit-gateway/internal/audit"
	"audit-gateway/internal/metrics"
	"audit-gateway/internal/model"
)

// FallbackMessage is the body of the generic 500 returned on any failure.
const FallbackMessage = "Internal Server Error"

// Failure kinds used as the fallback metric label.
const (
	kindTransport = "transport"
	kindBodyDrain = "body_drain"
	kindOverflow  = "overflow"
	kindPanic     = "panic"
	kindCanceled  = "canceled"
	kindOther     = "other"
)

// autoHeaders are filled in by net/http when a response lacks them.
var autoHeaders = []string{echo.HeaderContentType, "Date"}

// InterceptorConfig configures Interceptor.
type InterceptorConfig struct {
	Audit   *audit.Logger
	Logger  *slog.Logger
	Metrics *metrics.Metrics // optional

	// ResponseMaxBytes caps the buffered response body. 0 disables the cap.
	ResponseMaxBytes int64
}

// Interceptor returns an Echo middleware that writes one audit record before
// the next stage runs and exactly one response or error record after it.
//
// The stage's response is buffered in full, logged, and then written to the
// client with Content-Length restated for the buffered length. *echo.HTTPError
// results (router 404/405, body limit, rate limit) are rendered and logged as
// ordinary responses. Every other failure, panics included, is logged at ERROR
// and answered with a 500 and {"message": "Internal Server Error"}; the error
// is never returned up the chain.
func Interceptor(cfg InterceptorConfig) echo.MiddlewareFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "interceptor")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()

			cfg.Audit.InfoContext(ctx, fmt.Sprintf("Request: %s %s", req.Method, requestURL(req)))

			res := c.Response()
			orig := res.Writer
			bw := newBufferedWriter(cfg.ResponseMaxBytes)
			res.Writer = bw

			err := runStage(next, c)

			var he *echo.HTTPError
			if err != nil && !bw.overflow && errors.As(err, &he) {
				c.Echo().HTTPErrorHandler(he, c)
				err = nil
			}
			if err == nil && bw.overflow {
				err = &model.BodyDrainError{Err: fmt.Errorf("response exceeds %d bytes", cfg.ResponseMaxBytes)}
			}

			res.Writer = orig
			res.Committed = false
			res.Size = 0

			if err != nil {
				kind := failureKind(c.Request().Context(), err, bw)
				cfg.Audit.ErrorContext(ctx, "Error: "+err.Error())
				logger.Error("request failed",
					"method", req.Method,
					"path", req.URL.Path,
					"kind", kind,
					"err", err,
				)
				if cfg.Metrics != nil {
					cfg.Metrics.FallbackResponses.WithLabelValues(kind).Inc()
				}
				if kind == kindCanceled {
					// Nobody is listening for a response.
					return nil
				}
				if werr := c.JSON(http.StatusInternalServerError, map[string]string{"message": FallbackMessage}); werr != nil {
					logger.Warn("write fallback response", "err", werr)
				}
				return nil
			}

			status := bw.Status()
			body := bw.body.Bytes()

			h := res.Header()
			for key, vals := range bw.header {
				h[key] = vals
			}
			// A nil value stops net/http from sniffing or stamping its own.
			for _, key := range autoHeaders {
				if _, ok := bw.header[key]; !ok {
					h[key] = nil
				}
			}
			sendBody := bodyAllowed(status) && req.Method != http.MethodHead
			if sendBody {
				h.Set(echo.HeaderContentLength, strconv.Itoa(len(body)))
			} else if !bodyAllowed(status) {
				h.Del(echo.HeaderContentLength)
			}

			cfg.Audit.InfoContext(ctx, fmt.Sprintf("Response: %d, Body: %s", status, strings.ToValidUTF8(string(body), "\uFFFD")))

			res.WriteHeader(status)
			if sendBody && len(body) > 0 {
				if _, werr := res.Write(body); werr != nil {
					logger.Warn("write response", "err", werr, "path", req.URL.Path)
				}
			}
			return nil
		}
	}
}

// runStage invokes next, converting a panic into an error.
func runStage(next echo.HandlerFunc, c echo.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = &panicError{err: e}
			} else {
				err = &panicError{err: fmt.Errorf("%v", r)}
			}
		}
	}()
	return next(c)
}

type panicError struct {
	err error
}

func (e *panicError) Error() string { return "panic: " + e.err.Error() }
func (e *panicError) Unwrap() error { return e.err }

func failureKind(ctx context.Context, err error, bw *bufferedWriter) string {
	var (
		te *model.TransportError
		de *model.BodyDrainError
		pe *panicError
	)
	switch {
	case ctx.Err() != nil:
		return kindCanceled
	case errors.As(err, &pe):
		return kindPanic
	case bw.overflow:
		return kindOverflow
	case errors.As(err, &te):
		return kindTransport
	case errors.As(err, &de):
		return kindBodyDrain
	default:
		return kindOther
	}
}

// requestURL reconstructs the full URL the client asked for.
func requestURL(req *http.Request) string {
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + req.Host + req.URL.RequestURI()
}
