package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
)

// envelope is the response shape every endpoint returns:
// {success, message, data, error?, meta?}.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

// JSON writes a successful envelope with the given data.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	writeEnvelope(w, status, envelope{Success: true, Data: data})
}

// JSONMeta writes a successful envelope with data and a meta block.
func JSONMeta(w http.ResponseWriter, status int, data, meta interface{}) {
	writeEnvelope(w, status, envelope{Success: true, Data: data, Meta: meta})
}

// JSONMessage writes a successful envelope with a human-readable message.
func JSONMessage(w http.ResponseWriter, status int, message string, data interface{}) {
	writeEnvelope(w, status, envelope{Success: true, Message: message, Data: data})
}

// JSONError writes a failure envelope. The message is safe to show a client.
func JSONError(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, envelope{Success: false, Error: message})
}

func writeEnvelope(w http.ResponseWriter, status int, e envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(e)
}

// isDuplicateKeyError checks if a PostgreSQL error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "23505")
}
