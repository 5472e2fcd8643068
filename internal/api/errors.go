package api

import (
	"encoding/json"
	"net/http"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // Headers already sent
}

// writeError writes the error envelope.
func writeError(w http.ResponseWriter, status int, msg string, detail string) {
	writeJSON(w, status, errorResponse{Error: msg, Detail: detail})
}
