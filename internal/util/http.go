// Package util holds the shared JSON response vocabulary: every handler
// replies through WriteJSON and every failure through the APIError
// envelope.
package util

import (
	"encoding/json"
	"net/http"
)

// APIError is the uniform error envelope: a stable machine-readable code,
// a human-readable message, and the request id for log correlation.
// Business declinations (an admin submitting an agreement, a duplicate
// request) are outcomes, not errors, and never use this shape.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, msg, reqID string) {
	WriteJSON(w, status, APIError{Code: code, Message: msg, RequestID: reqID})
}
