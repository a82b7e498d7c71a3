package apiresp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

const requestIDHeader = "X-Request-Id"

type ErrorPayload struct {
	Error string `json:"error"`
}

// StatusPayload is the {success, message} shape used by login and the
// administrative question endpoints.
type StatusPayload struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func WriteJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if r != nil {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(requestIDHeader, id)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	WriteJSON(w, r, status, ErrorPayload{Error: msg})
}

func WriteStatus(w http.ResponseWriter, r *http.Request, status int, success bool, msg string) {
	WriteJSON(w, r, status, StatusPayload{Success: success, Message: msg})
}
