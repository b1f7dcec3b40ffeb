// Package http provides the JSON API server and its handlers.
//
// This file implements a small builder for JSON responses and the mapping
// from domain errors to HTTP status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"gastos/internal/core"
	"gastos/internal/log"
)

const (
	msgUnauthorized       = "Unauthorized"
	msgInvalidCredentials = "Invalid credentials"
	msgDuplicateEmail     = "Email already exists"
	msgNotFound           = "Not found"
	msgServerError        = "Server error"
	msgRateLimited        = "Too many requests"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a builder with a default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value to encode. A nil pointer encodes as null.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

type errorBody struct {
	Error string `json:"error"`
}

type successBody struct {
	Success bool `json:"success"`
}

// ErrorResponse creates an error response with the {"error": msg} body.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Body(v).Write(w)
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

// statusFor maps an error to the status code and public message.
func statusFor(err error) (int, string) {
	var ve *core.ValidationError
	switch {
	case errors.Is(err, core.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgInvalidCredentials
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized, msgUnauthorized
	case errors.Is(err, core.ErrDuplicateEmail):
		return http.StatusBadRequest, msgDuplicateEmail
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	default:
		return http.StatusInternalServerError, msgServerError
	}
}

// writeError writes the mapped error response. Server errors are logged with
// the cause; the client only sees the generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger := log.FromContext(r.Context())
		log.NewStructuredLogger(logger).LogError(r.Context(), "request failed", err, log.ComponentHTTP, r.Method+" "+r.URL.Path, nil)
	}
	ErrorResponse(status, msg).Write(w)
}

func writeNotFound(w http.ResponseWriter, _ *http.Request) {
	ErrorResponse(http.StatusNotFound, msgNotFound).Write(w)
}

func writeRateLimited(w http.ResponseWriter, _ *http.Request) {
	ErrorResponse(http.StatusTooManyRequests, msgRateLimited).Header("Retry-After", "60").Write(w)
}
