package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"metricgate/internal/domain"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var (
		extraction *domain.ExtractionError
		violation  *domain.IntentViolation
		notFound   *domain.NotFoundError
		validation *domain.ValidationError
		unsafe     *domain.SQLViolation
		generation *domain.GenerationError
		execution  *domain.ExecutionError
	)

	switch {
	case errors.As(err, &extraction), errors.As(err, &violation),
		errors.As(err, &notFound), errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &unsafe):
		return http.StatusUnprocessableEntity
	case errors.As(err, &generation):
		return http.StatusBadGateway
	case errors.As(err, &execution):
		if execution.Kind == domain.QueryTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError writes err with its mapped status. Internal errors are
// not echoed to the caller.
func writeDomainError(w http.ResponseWriter, err error) {
	status := httpStatusFromDomainError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, status, domain.ErrorKind(err), msg)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorBody{Code: status, Kind: kind, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
