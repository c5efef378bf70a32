package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vedran77/dermacheck/internal/domain"
	"github.com/vedran77/dermacheck/internal/session"
	"github.com/vedran77/dermacheck/pkg/validator"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func writeValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"code":   "VALIDATION_ERROR",
			"fields": errs,
		},
	})
}

// errorStatus maps an intent failure to a status code and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUsernameTaken):
		return http.StatusConflict, "USERNAME_TAKEN"
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, "EMAIL_TAKEN"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS"
	case errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict, "SUPERSEDED"
	case errors.Is(err, domain.ErrClosed):
		return http.StatusServiceUnavailable, "CLOSED"
	}

	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case domain.KindNotAuthenticated:
		return http.StatusUnauthorized, "NOT_AUTHENTICATED"
	case domain.KindStore:
		return http.StatusBadGateway, "STORE_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func writeIntentError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	writeError(w, status, code, domain.Message(err, ""))
}
