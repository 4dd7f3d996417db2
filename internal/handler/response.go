package handler

// RESPONSE HELPERS:
// Every API handler answers through writeJSON or writeError, so the error
// body always has the same shape:
//
//	{"error": "not_found", "message": "book not found with id 12"}
//	{"error": "validation_error", "message": "days must be at least 1", "field": "days"}
//
// The page script only has to look at "message" to show a dialog.

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/sakif/biblioteca/internal/apperror"
)

// json is a drop-in for encoding/json with the same tag semantics.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodyBytes caps request bodies; the largest legitimate one is a book form.
const maxBodyBytes = 64 << 10

// ErrorResponse is the error format of all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// writeJSON sends data with the given status. Headers must be set before
// WriteHeader; anything after that is ignored by net/http.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Status and headers are already out; logging is all that is left.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a service error to an HTTP status.
//
//	apperror.ErrValidation → 400
//	apperror.ErrNotFound   → 404
//	anything else          → 500, details hidden
//
// errors.As walks the %w chain, so "registering loan: <AppError>" still maps.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		}

		if status != http.StatusInternalServerError {
			writeJSON(w, status, ErrorResponse{
				Error:   errorType,
				Message: appErr.Message,
				Field:   appErr.Field,
			})
			return
		}
	}

	// The raw message may contain SQL or file paths: log it, do not send it.
	logger.Error("request failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a single JSON object from the request body into v.
// Malformed or oversized bodies come back as validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.ValidationFailed("body", "request body is empty")
		}
		return apperror.ValidationFailed("body", "request body is not valid JSON")
	}
	return nil
}
