package utils

import (
	"encoding/json"
	"net/http"
	"time"
)

// APIResponse is the envelope every booking endpoint returns. Data carries
// the payload, Error the machine-readable cause; the timestamp lets support
// staff match a response to the service log.
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// WriteJSON writes an envelope with the JSON content type and given status.
func WriteJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	WriteJSON(w, status, APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	})
}

func WriteError(w http.ResponseWriter, status int, message, cause string) {
	WriteJSON(w, status, APIResponse{
		Success:   false,
		Message:   message,
		Error:     cause,
		Timestamp: time.Now(),
	})
}
