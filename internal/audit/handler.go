package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// TimeLayout is the timestamp layout of every audit line.
const TimeLayout = "2006-01-02 15:04:05,000"

// lineEscaper keeps one record on one line.
var lineEscaper = strings.NewReplacer("\r", `\r`, "\n", `\n`)

// sink serializes writes from every handler derived from the same root.
type sink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *sink) write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.w == nil {
		return errClosed
	}
	_, err := s.w.Write(p)
	return err
}

// Handler is a slog.Handler that renders records as
//
//	<timestamp> - <logger name> - <LEVEL> - <message>[ key=value...]
//
// and appends each one to the underlying writer with a single Write call.
type Handler struct {
	sink   *sink
	name   string
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string // group prefix for attrs added after WithGroup
}

// NewHandler returns a Handler writing to w. Writes are serialized, so w need
// not be safe for concurrent use.
func NewHandler(w io.Writer, name string, level slog.Leveler) *Handler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &Handler{
		sink:  &sink{w: w},
		name:  name,
		level: level,
	}
}

// Enabled reports whether records at level l are written.
func (h *Handler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

// Handle formats r and appends it to the sink.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	buf := make([]byte, 0, 128+len(r.Message))
	buf = ts.AppendFormat(buf, TimeLayout)
	buf = append(buf, " - "...)
	buf = append(buf, h.name...)
	buf = append(buf, " - "...)
	buf = append(buf, LevelName(r.Level)...)
	buf = append(buf, " - "...)
	buf = append(buf, lineEscaper.Replace(r.Message)...)

	for _, a := range h.attrs {
		buf = appendAttr(buf, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		buf = appendAttr(buf, h.prefix, a)
		return true
	})
	buf = append(buf, '\n')

	return h.sink.write(buf)
}

// WithAttrs returns a handler that appends attrs to every record.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	h2.attrs = append(h2.attrs, h.attrs...)
	for _, a := range attrs {
		h2.attrs = append(h2.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &h2
}

// WithGroup returns a handler that qualifies later attribute keys with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}

func appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			buf = appendAttr(buf, p, ga)
		}
		return buf
	}

	buf = append(buf, ' ')
	buf = append(buf, prefix...)
	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	return append(buf, lineEscaper.Replace(fmt.Sprint(a.Value.Any()))...)
}

// LevelName returns the level label used in audit lines.
func LevelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}
