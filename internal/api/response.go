package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/strefethen/sonos-display-go/internal/apperrors"
)

// ErrorResponse wraps errors in the standard envelope.
type ErrorResponse struct {
	Error apperrors.ErrorBody `json:"error"`
}

// ListResponse is the list envelope for collection endpoints.
// Example: {"object": "list", "data": [...], "has_more": false, "url": "/history"}
type ListResponse struct {
	Object  string `json:"object"`   // Always "list"
	Data    any    `json:"data"`     // Array of resources
	HasMore bool   `json:"has_more"` // Whether more items exist beyond this page
	URL     string `json:"url"`      // The URL for this list endpoint
}

// WriteJSON sends a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}

// WriteText sends a plain-text response. The control API and operator
// scripts expect a bare "OK" acknowledgement.
func WriteText(w http.ResponseWriter, status int, text string) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write([]byte(text))
	return err
}

// WriteOK acknowledges a command.
func WriteOK(w http.ResponseWriter) error {
	return WriteText(w, http.StatusOK, "OK")
}

// WriteError serializes an AppError into the error envelope.
// Response format: {"error": {"type": "...", "code": "...", "message": "..."}}
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.EnsureAppError(err)
	if appErr.StatusCode >= 500 {
		log.Printf("request %s %s failed (request_id=%s): %v", r.Method, r.URL.Path, GetRequestID(r), err)
	}

	_ = WriteJSON(w, appErr.StatusCode, ErrorResponse{Error: appErr.ErrorBody()})
}

// WriteList writes a list response.
// Example: WriteList(w, "/history", entries, false)
func WriteList(w http.ResponseWriter, url string, data any, hasMore bool) error {
	return WriteJSON(w, http.StatusOK, ListResponse{
		Object:  "list",
		Data:    data,
		HasMore: hasMore,
		URL:     url,
	})
}
