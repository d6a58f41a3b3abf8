package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// errorResponse is the standard error envelope. Details is only set for
// internal failures.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeJSON encodes v as JSON and writes it with the given status code. An
// unencodable value becomes a 500 instead of a truncated body.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("encode response failed", "err", err)
		body, _ = json.Marshal(errorResponse{Error: "failed to encode response", Details: err.Error()})
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeInternalError(w http.ResponseWriter, msg string, err error) {
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msg, Details: err.Error()})
}
