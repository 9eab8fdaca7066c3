// Package api provides HTTP handlers for the AfyaDial gateway endpoints.
package api

import (
	"log/slog"
	"net/http"

	"github.com/AfyaLink/AfyaDial/internal/models"
)

// ussdHandler processes one aggregator callback. The gateway POSTs form fields
// sessionId, phoneNumber, and text (the full *-joined entry history) and
// renders the plain-text reply to the handset.
func (s *Server) ussdHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.ussdHandler: processing callback", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.ussdHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.ussdHandler: failed to parse form", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	req := models.UssdRequest{
		SessionID:   r.PostFormValue("sessionId"),
		PhoneNumber: r.PostFormValue("phoneNumber"),
		Text:        r.PostFormValue("text"),
	}
	if req.PhoneNumber == "" {
		slog.Warn("Server.ussdHandler: missing phoneNumber")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	resp, err := s.engine.Handle(r.Context(), req)
	if err != nil {
		slog.Error("Server.ussdHandler: engine failed", "error", err, "session_id", req.SessionID)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	slog.Debug("Server.ussdHandler: replying", "session_id", req.SessionID, "kind", resp.Kind)
	writeTextResponse(w, http.StatusOK, resp.Render())
}

// healthHandler reports liveness for load balancers and uptime checks.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeTextResponse(w, http.StatusOK, "ok")
}
