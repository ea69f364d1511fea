package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"golang.org/x/time/rate"

	"audit-gateway/internal/audit"
	"audit-gateway/internal/client"
	"audit-gateway/internal/config"
	"audit-gateway/internal/handler"
	"audit-gateway/internal/metrics"
	"audit-gateway/internal/middleware"
	"audit-gateway/internal/service"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("gateway"),
		kong.Description("Audit-logging reverse proxy in front of a single backend service."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			metrics.New,
			newAuditLogger,
			newEcho,
			fx.Annotate(client.NewBackendClient, fx.As(new(service.Forwarder))),
			service.NewProxyService,
			handler.NewProxyHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(handler.RegisterRoutes, warnConfigPermissions, startServer),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: config.ParseLevel(cfg.Log.Level)}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

// newAuditLogger opens the audit file once for the whole process and closes
// it after the server has stopped.
func newAuditLogger(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (*audit.Logger, error) {
	al, err := audit.New(cfg)
	if err != nil {
		return nil, err
	}

	size, err := al.Size()
	if err != nil {
		logger.Warn("cannot stat audit log", "err", err)
	}
	logger.Info("audit log opened",
		"path", al.Path(),
		"level", cfg.Audit.Level,
		"size", humanize.IBytes(uint64(size)),
	)

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return al.Close()
		},
	})
	return al, nil
}

func newEcho(cfg *config.Config, logger *slog.Logger, al *audit.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Inbound timeouts to mitigate slow-client attacks.
	e.Server.ReadTimeout = 30 * time.Second
	// The backend client timeout bounds how long a response can take.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.MetricsMiddleware(m))
	e.Use(middleware.Interceptor(middleware.InterceptorConfig{
		Audit:            al,
		Logger:           logger,
		Metrics:          m,
		ResponseMaxBytes: cfg.Server.ResponseMaxBytes,
	}))
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))

	if cfg.Server.RateLimit.Enabled {
		store := echomw.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RateLimit.RequestsPerSecond))
		e.Use(echomw.RateLimiter(store))
		logger.Info("rate limiter enabled", "rps", cfg.Server.RateLimit.RequestsPerSecond)
	}

	return e
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, svc *service.ProxyService, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting server",
				"addr", addr,
				"backend", svc.BaseURL(),
				"body_limit", humanize.IBytes(uint64(cfg.Server.BodyMaxBytes)),
				"response_limit", humanize.IBytes(uint64(cfg.Server.ResponseMaxBytes)),
			)
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}
