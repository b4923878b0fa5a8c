package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/thepathwise/intake/internal/apperr"
)

// envelope is the body shape of every form and admin response.
type envelope struct {
	Success bool               `json:"success"`
	Data    any                `json:"data,omitempty"`
	Message string             `json:"message,omitempty"`
	Errors  []apperr.Violation `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, envelope{Success: false, Message: message}, status)
}
