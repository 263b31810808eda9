package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/glarson/lensproxy/internal/lens"
)

func (s *Server) handleLens(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.lens.Diagnostics())
	case http.MethodPost:
		s.handleSummarize(w, r)
	default:
		s.writeError(w, r, lens.ErrMethodNotAllowed(r.Method))
	}
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	origin := requestOrigin(r, s.cfg.Server.TrustProxyHeaders)
	lens.LoggerFrom(r.Context()).Info("Received lens request",
		"content_length", r.ContentLength,
		"origin", origin,
	)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, lens.ErrBodyTooLarge(tooLarge.Limit))
			return
		}
		s.writeError(w, r, lens.ErrInvalidJSON(err))
		return
	}

	req, err := lens.ParseRequest(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.lens.Summarize(r.Context(), req, origin)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordLens("ok")
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	lensErr := lens.AsError(err)
	level := slog.LevelWarn
	if lensErr.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	lens.LoggerFrom(r.Context()).Log(r.Context(), level, "Lens request failed",
		"kind", lensErr.Kind.String(),
		"status", lensErr.Status,
		"error", err,
	)
	if s.metrics != nil && r.Method == http.MethodPost {
		s.metrics.RecordLens(lensErr.Kind.String())
	}
	writeJSON(w, lensErr.Status, lensErr.Response)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// requestOrigin returns scheme://host for the request. X-Forwarded-Proto and X-Forwarded-Host
// are read only when trustProxy is set.
func requestOrigin(r *http.Request, trustProxy bool) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host
	if trustProxy {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
		}
		if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
			host = strings.TrimSpace(strings.Split(fwd, ",")[0])
		}
	}
	return scheme + "://" + host
}
