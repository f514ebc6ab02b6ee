package user

import (
	"encoding/json"
	"net/http"
	"strconv"
)

const (
	msgInvalidRequest = "Invalid request."
	msgInternal       = "Internal server error."
)

type failure struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, failure{Success: false, Message: message})
}

func writeInternal(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, failure{Success: false, Message: msgInternal})
}

// parseID parses a required integer query parameter.
func parseID(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil
}

func parseInt(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}
