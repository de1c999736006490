// Package httpx provides the JSON response envelope used by every API handler.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/invoiceapp/invoiceapp/internal/shared"
)

// Envelope is the response body shape: {success, message, data|error}.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Meta    any    `json:"meta,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Success writes a successful envelope.
func Success(w http.ResponseWriter, status int, message string, data any) {
	JSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// Page writes a successful envelope carrying pagination metadata.
func Page(w http.ResponseWriter, data any, pagination shared.Pagination) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data, Meta: pagination})
}

// Fail writes a failed envelope.
func Fail(w http.ResponseWriter, status int, message, detail string) {
	JSON(w, status, Envelope{Success: false, Message: message, Error: detail})
}

// DecodeJSON decodes JSON request body into the target struct. Malformed bodies are
// reported as validation errors.
func DecodeJSON(r *http.Request, target any) error {
	if r.Body == nil {
		return shared.NewValidationError("body", "is required")
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return shared.NewValidationError("body", "is required")
		}
		return &shared.ValidationError{Field: "body", Reason: fmt.Sprintf("is not valid JSON: %v", err)}
	}
	return nil
}
