// Package http provides the JSON API server and its handlers.
//
// This file implements the builder used by every handler to write JSON
// responses and the mapping from service errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"conti/internal/core"
	applog "conti/internal/log"
	"conti/internal/ports"
	"conti/internal/services"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(payload, '\n'))
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(errorBody{Error: message, Code: code})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, "bad_request", message)
}

// UnauthorizedError creates a 401 Unauthorized error response.
func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, "unauthorized", message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, "validation_failed", message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, "not_found", message)
}

// BadGatewayError creates a 502 Bad Gateway error response.
func BadGatewayError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadGateway, "rate_unavailable", message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal_error", message)
}

var validationSentinels = []error{
	services.ErrInvalidInput,
	core.ErrMissingOwner,
	core.ErrInvalidAmount,
	core.ErrInvalidCurrency,
	core.ErrInvalidDateRange,
	core.ErrInvalidFrequency,
	core.ErrInvalidInterval,
	core.ErrEmptyDescription,
	core.ErrEmptyName,
	core.ErrInvalidCategoryType,
	core.ErrInvalidWalletType,
}

func isValidationError(err error) bool {
	var verrs core.ValidationErrors
	if errors.As(err, &verrs) {
		return true
	}
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// errorFor maps a service error to its response and log category.
// Validation messages are returned to the caller; everything else is generic.
func errorFor(err error) (*JSONResponseBuilder, string) {
	switch {
	case isValidationError(err):
		return UnprocessableEntityError(err.Error()), applog.ErrorTypeValidation
	case errors.Is(err, ports.ErrNotFound):
		return NotFoundError("resource not found"), applog.ErrorTypeNotFound
	case errors.Is(err, services.ErrRateUnavailable):
		return BadGatewayError("exchange rate unavailable"), applog.ErrorTypeUpstream
	default:
		return InternalServerError("internal error"), applog.ErrorTypeInternal
	}
}

// writeServiceError logs err with request context and writes the mapped response.
func writeServiceError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	resp, errType := errorFor(err)
	applog.NewStructuredLogger(applog.FromContext(r.Context())).LogError(r.Context(),
		"Request failed", err, errType, operation,
		applog.NewFields().WithUser(userFromContext(r.Context())).WithRequestID(requestIDFrom(r)))
	resp.Write(w)
}
