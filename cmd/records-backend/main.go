package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/alecthomas/kong"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"

	"audit-gateway/internal/audit"
	"audit-gateway/internal/config"
	"audit-gateway/internal/middleware"
	"audit-gateway/internal/records"
)

type cli struct {
	Host      string `kong:"default='0.0.0.0',help='Listen host.',env='HOST'"`
	Port      int    `kong:"short='p',default='8001',help='Listen port.',env='PORT'"`
	LogLevel  string `kong:"default='info',help='Log level: debug|info|warn|error.',env='LOG_LEVEL'"`
	AuditPath string `kong:"default='logs/app.log',help='File receiving the service log lines; empty writes them to stdout.',env='AUDIT_PATH'"`
}

func main() {
	var c cli
	kong.Parse(&c,
		kong.Name("records-backend"),
		kong.Description("In-memory items and events service."),
	)

	fx.New(
		fx.Supply(&c),
		fx.Provide(newLogger, newRecordsLogger, newEcho),
		fx.Invoke(startServer),
	).Run()
}

func newLogger(c *cli) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: config.ParseLevel(c.LogLevel)}))
}

// recordsLogger carries the service's own log lines, written in the same
// line format as the gateway's audit log.
type recordsLogger struct {
	*slog.Logger
}

func newRecordsLogger(lc fx.Lifecycle, c *cli) (recordsLogger, error) {
	level := config.ParseLevel(c.LogLevel)
	if c.AuditPath == "" {
		return recordsLogger{audit.NewWithWriter(os.Stdout, "records", level).Logger}, nil
	}

	al, err := audit.Open(c.AuditPath, "records", level)
	if err != nil {
		return recordsLogger{}, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return al.Close()
		},
	})
	return recordsLogger{al.Logger}, nil
}

func newEcho(logger *slog.Logger, rl recordsLogger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))

	records.NewHandler(rl.Logger).Register(e)
	return e
}

func startServer(lc fx.Lifecycle, e *echo.Echo, c *cli, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting records backend", "addr", addr)
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down records backend")
			return e.Shutdown(ctx)
		},
	})
}
