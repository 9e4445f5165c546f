// Package httputil provides shared HTTP utilities for consistent response handling.
package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Content types written by the exposition routes.
const (
	ContentTypeJSON = "application/json"
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeText = "text/plain; charset=utf-8"
)

// CacheControlNoCache forbids clients and proxies from caching a response.
const CacheControlNoCache = "must-revalidate,no-cache,no-store"

// NoCache marks the response as uncacheable.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", CacheControlNoCache)
}

// WriteBody writes an already rendered body with the given content type and
// status code. Content-Length is set so HEAD responses carry it too.
func WriteBody(w http.ResponseWriter, status int, contentType string, body []byte) {
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// WriteJSONBytes writes a pre-encoded JSON document.
func WriteJSONBytes(w http.ResponseWriter, status int, body []byte) {
	WriteBody(w, status, ContentTypeJSON, body)
}

// WriteHTML writes an HTML document.
func WriteHTML(w http.ResponseWriter, status int, body []byte) {
	WriteBody(w, status, ContentTypeHTML, body)
}

// WriteText writes a plain text document.
func WriteText(w http.ResponseWriter, status int, body []byte) {
	WriteBody(w, status, ContentTypeText, body)
}

// WriteJSON writes a JSON response with the given status code.
// It sets the Content-Type header to application/json.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes a JSON error response with the given status code.
// The error response includes an error code and a human-readable message.
func WriteError(w http.ResponseWriter, status int, errCode, message string) {
	WriteJSON(w, status, map[string]string{
		"error":   errCode,
		"message": message,
	})
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, errCode, message string) {
	WriteError(w, http.StatusInternalServerError, errCode, message)
}
