package apiserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nordiqpay/qcert-pki/pkg/qcerr"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func respondError(w http.ResponseWriter, status int, apiErr *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiErr)
}

func respondBadRequest(w http.ResponseWriter, message string) {
	respondError(w, http.StatusBadRequest, &APIError{Code: "INVALID_REQUEST", Message: message})
}

// handleRepositoryError maps repository/manager errors to an HTTP
// response, following the taxonomy of spec.md §7.
func handleRepositoryError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, qcerr.ErrNotFound):
		respondError(w, http.StatusNotFound, &APIError{Code: "CERT_NOT_FOUND", Message: err.Error()})
	case errors.Is(err, qcerr.ErrDuplicateKeyID):
		respondError(w, http.StatusConflict, &APIError{Code: "DUPLICATE_KEY_ID", Message: err.Error()})
	case errors.Is(err, qcerr.ErrInvalidRequest):
		respondError(w, http.StatusBadRequest, &APIError{Code: "INVALID_REQUEST", Message: err.Error()})
	default:
		respondError(w, http.StatusInternalServerError, &APIError{
			Code:    "INTERNAL_ERROR",
			Message: err.Error(),
			Details: map[string]string{"operation": op},
		})
	}
}
