package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// fail logs err and answers 500. The error text reaches the client only in
// debug mode.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, what string, err error) {
	s.log.Error(what,
		zap.String("path", r.URL.Path),
		zap.String("request_id", RequestIDFrom(r.Context())),
		zap.Error(err),
	)
	msg := "Internal server error"
	if s.cfg.Debug {
		msg = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: what, Message: msg})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.log.Warn("health check: store unreachable", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) characters(w http.ResponseWriter, r *http.Request) {
	chars, err := s.svc.Characters(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to fetch characters", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"characters": chars,
		"count":      len(chars),
	})
}

func (s *Server) records(w http.ResponseWriter, r *http.Request) {
	character := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("character")))
	if character == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:   "Missing required parameter",
			Message: "Parameter 'character' is required",
		})
		return
	}

	page, err := s.svc.RecordsByCharacter(r.Context(), character)
	if err != nil {
		s.fail(w, r, "Failed to fetch records", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Stats(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to fetch statistics", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
