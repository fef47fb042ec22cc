// Package response writes the service's JSON wire format. Error bodies are
// always {"status":"error","message":...}; success bodies are written
// verbatim.
package response

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// JSON writes v with status 200.
func JSON(w http.ResponseWriter, v any) {
	Write(w, http.StatusOK, v)
}

// Accepted writes v with status 202.
func Accepted(w http.ResponseWriter, v any) {
	Write(w, http.StatusAccepted, v)
}

// Error writes a standard error body with the given status.
func Error(w http.ResponseWriter, status int, message string) {
	Write(w, status, errorBody{Status: "error", Message: message})
}

// Write encodes v as the response body with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
