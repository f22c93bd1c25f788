package web

import (
	"encoding/json"
	"net/http"

	"accounting-engine/internal/core"
	"accounting-engine/internal/logger"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// statusFor maps an engine error kind to its HTTP status.
func statusFor(kind string) int {
	switch kind {
	case "NOT_FOUND":
		return http.StatusNotFound
	case "CONFLICT":
		return http.StatusConflict
	case "BUSINESS_RULE_VIOLATION":
		return http.StatusUnprocessableEntity
	case "CONCURRENCY_FAILURE":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders an error returned by the ApplicationService. Internal errors
// are logged and their text is not exposed.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.ErrorKind(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		log := logger.WithRequestID(requestIDFromContext(r.Context()))
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, r, "internal server error", "INTERNAL_ERROR", status)
		return
	}
	writeError(w, r, core.Reason(err), kind, status)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
