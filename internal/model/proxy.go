// Package model defines shared types for the gateway.
package model

import (
	"context"
	"io"
	"net/http"
)

// ProxyRequest represents an inbound request to be forwarded to the backend.
type ProxyRequest struct {
	Ctx    context.Context
	Method string
	// Path is the escaped request path exactly as received. It is not
	// cleaned, so dot segments reach the backend unchanged.
	Path     string
	RawQuery string
	Header   http.Header
	Body     io.Reader
}

// ProxyResponse is a fully buffered backend response.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}
