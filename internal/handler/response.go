// Package handler holds the JSON response helpers and HTTP middleware shared by controllers.
package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	appErrors "github.com/lewisgerrard/divafitness-backend/internal/errors"
	"github.com/lewisgerrard/divafitness-backend/internal/logging"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success      bool           `json:"success"`
	Kind         appErrors.Kind `json:"kind"`
	Error        string         `json:"error"`
	Details      string         `json:"details"`
	SubmissionID any            `json:"submissionId,omitempty"`
}

// RespondJSON writes payload with the given status.
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind appErrors.Kind) int {
	switch kind {
	case appErrors.KindInvalidInput:
		return http.StatusBadRequest
	case appErrors.KindNotFound:
		return http.StatusNotFound
	case appErrors.KindTransient, appErrors.KindExternalFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RespondError renders err through the shared error shape. Untyped errors become 500s.
func RespondError(w http.ResponseWriter, log *zap.SugaredLogger, err error) {
	appErr := appErrors.As(err)
	status := StatusFor(appErr.Kind)
	if status >= http.StatusInternalServerError {
		logging.OrNop(log).Errorw("Request failed", "kind", appErr.Kind, "error", err)
	}
	RespondJSON(w, status, ErrorResponse{
		Success:      false,
		Kind:         appErr.Kind,
		Error:        appErr.Message,
		Details:      appErr.Details,
		SubmissionID: appErr.SubjectID,
	})
}
