// Package shared holds response helpers used by every handler.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "taxbridge/pkg/errors"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// WriteError maps a coded error onto an HTTP status and the error envelope.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	status := http.StatusInternalServerError
	code := apperrors.CodeInternal
	message := ""
	if errors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message
		status = toHTTPStatus(code)
	}
	WriteJSON(w, status, ErrorResponse{Error: string(code), Message: message})
}

func toHTTPStatus(code apperrors.Code) int {
	switch code {
	case apperrors.CodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeConflict:
		return http.StatusConflict
	case apperrors.CodeInvalidState:
		return http.StatusUnprocessableEntity
	case apperrors.CodeUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
