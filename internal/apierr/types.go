// Package apierr defines the error taxonomy of §7 Error Handling
// Design: a small set of machine-readable codes carried on every
// HTTP/SSE-surfaced error, with an HTTP status and an optional
// underlying cause. Grounded on the teacher's internal/errors package
// (AppError/ErrorResponse/RespondWithError), generalized from the
// teacher's auth/inventory/crafting domain codes to the turn-pipeline
// domain codes in domain.go.
package apierr

import (
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"net/http"
)

// AppError is an application-level error carrying HTTP/SSE context.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// Common templates (§7 "Kinds").
var (
	ErrInvalidInput            = &AppError{Code: "bad_request", Message: "invalid input", HTTPStatus: http.StatusBadRequest}
	ErrNotFound                = &AppError{Code: "not_found", Message: "not found", HTTPStatus: http.StatusNotFound}
	ErrConflict                = &AppError{Code: "conflict", Message: "conflict", HTTPStatus: http.StatusConflict}
	ErrInternalServer          = &AppError{Code: "internal_error", Message: "internal server error", HTTPStatus: http.StatusInternalServerError}
	ErrInsufficientEnergy      = &AppError{Code: "insufficient_energy", Message: "insufficient energy", HTTPStatus: http.StatusPaymentRequired}
	ErrConcurrencyLimitReached = &AppError{Code: "concurrency_limit_reached", Message: "model router is at capacity", HTTPStatus: http.StatusTooManyRequests}
	ErrCatastrophic            = &AppError{Code: "catastrophic", Message: "store is corrupted; refusing to run turns until recovery", HTTPStatus: http.StatusInternalServerError}
)

// Wrap creates a copy of base with message and err attached.
func Wrap(base *AppError, message string, err error) *AppError {
	return &AppError{Code: base.Code, Message: message, HTTPStatus: base.HTTPStatus, Err: err}
}

// New builds a custom AppError.
func New(code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

// NewInvalidInput returns a bad_request error naming the offending field
// (§7 "{code: bad_request, message, field?}").
func NewInvalidInput(field, format string, args ...any) *AppError {
	return &AppError{Code: ErrInvalidInput.Code, Message: fmt.Sprintf(format, args...), Field: field, HTTPStatus: http.StatusBadRequest}
}

// NewInsufficientEnergy reports need/have inside the message text only;
// the returned error has no separate need or have fields.
func NewInsufficientEnergy(need, have float64) *AppError {
	return &AppError{
		Code:       ErrInsufficientEnergy.Code,
		Message:    fmt.Sprintf("need %.2f energy, have %.2f", need, have),
		HTTPStatus: ErrInsufficientEnergy.HTTPStatus,
	}
}

// NewConcurrencyLimitReached reports the router's current queue depth.
func NewConcurrencyLimitReached(queued int64) *AppError {
	return &AppError{
		Code:       ErrConcurrencyLimitReached.Code,
		Message:    fmt.Sprintf("%d requests queued", queued),
		HTTPStatus: ErrConcurrencyLimitReached.HTTPStatus,
	}
}

// ErrorResponse is the JSON shape surfaced by the API and SSE stream.
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Field   string `json:"field,omitempty"`
	} `json:"error"`
}

// RespondWithError writes err to w as an ErrorResponse, defaulting to a
// 500 internal_error for errors that are not an *AppError.
func RespondWithError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if !stdErrors.As(err, &appErr) {
		appErr = &AppError{Code: "internal_error", Message: "an unexpected error occurred", HTTPStatus: http.StatusInternalServerError, Err: err}
	}
	resp := ErrorResponse{}
	resp.Error.Code = appErr.Code
	resp.Error.Message = appErr.Message
	resp.Error.Field = appErr.Field

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// SSEEvent renders err as the `{type: "error", message, category}` shape
// the SSE stream emits per §7's propagation policy.
func SSEEvent(err error) map[string]any {
	var appErr *AppError
	if !stdErrors.As(err, &appErr) {
		return map[string]any{"type": "error", "message": err.Error(), "category": "internal_error"}
	}
	return map[string]any{"type": "error", "message": appErr.Message, "category": appErr.Code}
}
