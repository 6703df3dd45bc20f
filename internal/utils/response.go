package utils

import (
	"encoding/json"
	"net/http"
)

// MessageResponse is the body of every non-envelope reply: errors, deletes.
type MessageResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// SendJSON writes data as JSON with the given status.
func SendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// headers are gone at this point, nothing useful to do with an encode error
	_ = json.NewEncoder(w).Encode(data)
}

func SendMessage(w http.ResponseWriter, status int, message string) {
	SendJSON(w, status, MessageResponse{Message: message})
}

func SendFieldErrors(w http.ResponseWriter, status int, message string, fields map[string]string) {
	SendJSON(w, status, MessageResponse{Message: message, Errors: fields})
}
