// ABOUTME: Standardized JSON error responses for HTTP handlers.
// ABOUTME: Maps store, table and equipment sentinel errors to status codes and machine-readable codes.

package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/2389/sitewalk/internal/equipment"
	"github.com/2389/sitewalk/internal/store"
	"github.com/2389/sitewalk/internal/table"
)

// ErrorResponse is the error body every JSON endpoint returns.
//
//	WriteError(w, http.StatusBadRequest, ErrInvalidBody, "The request body is malformed")
type ErrorResponse struct {
	Code    string `json:"code"`              // machine-readable, e.g. "not_found"
	Message string `json:"message"`           // human-readable
	Status  int    `json:"status"`            // HTTP status code
	Field   string `json:"field,omitempty"`   // field that failed validation
	Details string `json:"details,omitempty"` // extra context
}

// Error codes shared by every handler.
const (
	ErrInvalidRequest   = "invalid_request"
	ErrInvalidBody      = "invalid_request_body"
	ErrMissingField     = "missing_field"
	ErrUnknownField     = "unknown_field"
	ErrValidationFailed = "validation_failed"
	ErrNotFound         = "not_found"
	ErrUnauthorized     = "unauthorized"
	ErrConflict         = "conflict"

	ErrInternal           = "internal_error"
	ErrDatabaseError      = "database_error"
	ErrServiceUnavailable = "service_unavailable"
)

func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeErrorResponse(w, ErrorResponse{Code: code, Message: message, Status: status})
}

// WriteErrorWithField names the request field that caused a validation error.
func WriteErrorWithField(w http.ResponseWriter, status int, code, message, field string) {
	writeErrorResponse(w, ErrorResponse{Code: code, Message: message, Status: status, Field: field})
}

func WriteErrorWithDetails(w http.ResponseWriter, status int, code, message, details string) {
	writeErrorResponse(w, ErrorResponse{Code: code, Message: message, Status: status, Details: details})
}

// Classify maps an error from the store, table or equipment packages to a
// status and code. ok is false for errors it does not recognize.
func Classify(err error) (status int, code string, ok bool) {
	switch {
	case stderrors.Is(err, store.ErrNotFound),
		stderrors.Is(err, equipment.ErrRowNotFound),
		stderrors.Is(err, equipment.ErrUnknownKind),
		stderrors.Is(err, table.ErrInvalidRow),
		stderrors.Is(err, table.ErrColumnNotFound):
		return http.StatusNotFound, ErrNotFound, true
	case stderrors.Is(err, store.ErrUnknownField):
		return http.StatusBadRequest, ErrUnknownField, true
	case stderrors.Is(err, store.ErrInvalidField),
		stderrors.Is(err, table.ErrInvalidDraft),
		stderrors.Is(err, table.ErrUnknownOption):
		return http.StatusUnprocessableEntity, ErrValidationFailed, true
	case stderrors.Is(err, table.ErrNotSortable),
		stderrors.Is(err, table.ErrNotEditable),
		stderrors.Is(err, table.ErrNotEditing),
		stderrors.Is(err, table.ErrWrongEditor),
		stderrors.Is(err, table.ErrNoSearchColumn):
		return http.StatusConflict, ErrConflict, true
	}
	return http.StatusInternalServerError, ErrInternal, false
}

// WriteStoreError writes the Classify response for err. Unrecognized errors
// are logged and reported as 500s without leaking their text.
func WriteStoreError(w http.ResponseWriter, log zerolog.Logger, err error) {
	status, code, ok := Classify(err)
	if !ok {
		log.Error().Err(err).Msg("request failed")
		WriteError(w, status, code, "Internal server error")
		return
	}
	WriteError(w, status, code, err.Error())
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorResponse(w http.ResponseWriter, resp ErrorResponse) {
	WriteJSON(w, resp.Status, resp)
}
