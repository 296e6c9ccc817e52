package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shijin-alpha/buildhub-main-sub011/internal/calculator"
	"github.com/shijin-alpha/buildhub-main-sub011/internal/gateway"
	"github.com/shijin-alpha/buildhub-main-sub011/internal/service"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors onto HTTP status codes. Unrecognized
// errors become an opaque 500 so storage details never leak to clients.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, calculator.ErrInvalidAmount),
		errors.Is(err, calculator.ErrSplitLimitExceeded):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "access denied")
	case errors.Is(err, service.ErrGroupNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrSequenceViolation),
		errors.Is(err, service.ErrAlreadyProcessed),
		errors.Is(err, service.ErrGroupCancelled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrSignatureVerificationFailed):
		writeError(w, http.StatusUnprocessableEntity, "signature verification failed")
	case errors.Is(err, gateway.ErrOrderCreation):
		writeError(w, http.StatusBadGateway, "gateway order creation failed")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// pathSequence extracts the {seq} path parameter as a positive integer.
func pathSequence(r *http.Request) (int, bool) {
	seq, err := strconv.Atoi(r.PathValue("seq"))
	if err != nil || seq < 1 {
		return 0, false
	}
	return seq, true
}

// decodeBody decodes the request body into v, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
