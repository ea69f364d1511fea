package middleware

import (
	"bytes"
	"fmt"
	"net/http"

	"audit-gateway/internal/model"
)

// bufferedWriter captures a complete response in memory so it can be logged
// and then written to the client once.
type bufferedWriter struct {
	header   http.Header
	status   int
	body     bytes.Buffer
	max      int64 // 0 means unbounded
	overflow bool
}

func newBufferedWriter(limit int64) *bufferedWriter {
	return &bufferedWriter{header: make(http.Header), max: limit}
}

func (w *bufferedWriter) Header() http.Header {
	return w.header
}

func (w *bufferedWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
}

func (w *bufferedWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	if w.max > 0 && int64(w.body.Len())+int64(len(p)) > w.max {
		w.overflow = true
		return 0, &model.BodyDrainError{Err: fmt.Errorf("response exceeds %d bytes", w.max)}
	}
	return w.body.Write(p)
}

// Flush is a no-op; the body is delivered only after the stage returns.
func (w *bufferedWriter) Flush() {}

// Status returns the captured status, defaulting to 200 like net/http.
func (w *bufferedWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// bodyAllowed reports whether a response with this status may carry a body.
func bodyAllowed(status int) bool {
	return status >= http.StatusOK && status != http.StatusNoContent && status != http.StatusNotModified
}
