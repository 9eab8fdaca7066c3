// Package api provides HTTP response utilities for the AfyaDial gateway.
package api

import (
	"log/slog"
	"net/http"
)

// writeTextResponse writes a plain-text response with the given status code.
// USSD aggregators expect text/plain bodies, not JSON.
func writeTextResponse(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Error("Server.writeTextResponse: failed to write response", "error", err)
	}
}
