// Package httputil writes the JSON envelopes shared by every endpoint.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "eventreg/pkg/domain-errors"
)

// ErrorResponse is the envelope for every failed request.
type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

const genericFailure = "processing failed"

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to its status and public message. Errors
// without a domain code become a generic 500 so store details never leak.
func WriteError(w http.ResponseWriter, err error) {
	de, ok := dErrors.As(err)
	if !ok {
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Message: genericFailure})
		return
	}
	message := de.Message
	if message == "" {
		message = genericFailure
	}
	WriteJSON(w, dErrors.HTTPStatus(de.Code), ErrorResponse{Message: message})
}
