// Package core provides the shared JSON response and HTTP error shapes
// used by every handler.
package core

import (
	"encoding/json"
	"net/http"
)

// HTTPError represents an HTTP error with a status code and a stable
// machine-readable key.
type HTTPError struct {
	Code int    // HTTP status code
	Key  string // stable error key (e.g. "not_found", "payment_required")
}

// Error implements the error interface.
func (e HTTPError) Error() string { return e.Key }

var (
	ErrBadRequest          = HTTPError{Code: http.StatusBadRequest, Key: "bad_request"}
	ErrPaymentRequired     = HTTPError{Code: http.StatusPaymentRequired, Key: "payment_required"}
	ErrForbidden           = HTTPError{Code: http.StatusForbidden, Key: "forbidden"}
	ErrNotFound            = HTTPError{Code: http.StatusNotFound, Key: "not_found"}
	ErrConflict            = HTTPError{Code: http.StatusConflict, Key: "conflict"}
	ErrUnprocessableEntity = HTTPError{Code: http.StatusUnprocessableEntity, Key: "unprocessable_entity"}
	ErrInternalServerError = HTTPError{Code: http.StatusInternalServerError, Key: "internal_error"}
	ErrBadGateway          = HTTPError{Code: http.StatusBadGateway, Key: "bad_gateway"}
)

// NewHTTPError creates a custom HTTP error.
func NewHTTPError(code int, key string) HTTPError {
	return HTTPError{Code: code, Key: key}
}

// JSONResponse is the standard JSON response envelope.
type JSONResponse struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail carries error information in the response body.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// JSON writes a success response with the given payload.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, JSONResponse{Success: true, Data: data})
}

// JSONError writes an error response. HTTPError values map to their status
// code and key; anything else becomes a generic internal error, keeping
// upstream details out of user-facing bodies.
func JSONError(w http.ResponseWriter, err error, message string) {
	status := http.StatusInternalServerError
	code := "internal_error"
	if httpErr, ok := err.(HTTPError); ok {
		status = httpErr.Code
		code = httpErr.Key
	}
	write(w, status, JSONResponse{
		Success: false,
		Error:   &ErrorDetail{Code: code, Message: message},
	})
}

func write(w http.ResponseWriter, status int, body JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
