package handler

import (
	"encoding/json"
	"net/http"
)

// errorResponse is the uniform error body. The correlation id mirrors the
// X-Correlation-ID header set by the logging middleware so clients can quote
// it when reporting a failure.
type errorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{
		Error:         message,
		CorrelationID: w.Header().Get("X-Correlation-ID"),
	})
}
