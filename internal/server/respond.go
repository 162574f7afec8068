package server

import (
	"encoding/json"
	"net/http"
)

// errorResponse is the Telegram-style failure envelope.
type errorResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, description string) {
	writeJSON(w, status, errorResponse{
		OK:          false,
		ErrorCode:   status,
		Description: description,
	})
}
