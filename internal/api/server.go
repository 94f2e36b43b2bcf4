// Package api exposes the export service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Uni298/OSMStudio/internal/export"
	"github.com/Uni298/OSMStudio/internal/session"
	"github.com/Uni298/OSMStudio/internal/studio"
	"github.com/Uni298/OSMStudio/pkg/core"
)

// Server routes export requests to the studio service.
type Server struct {
	studio *studio.Service
	logger *slog.Logger
	router *mux.Router
}

// NewServer creates an API server and registers its routes.
func NewServer(svc *studio.Service, logger *slog.Logger) *Server {
	s := &Server{
		studio: svc,
		logger: logger,
		router: mux.NewRouter(),
	}
	s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/exports", s.handleStartExport).Methods("POST")
	v1.HandleFunc("/exports", s.handleListExports).Methods("GET")
	v1.HandleFunc("/exports/{id}", s.handleGetExport).Methods("GET")
	v1.HandleFunc("/exports/{id}", s.handleDeleteExport).Methods("DELETE")
	v1.HandleFunc("/exports/{id}/cancel", s.handleCancelExport).Methods("POST")
	v1.HandleFunc("/exports/{id}/artifact", s.handleDownloadArtifact).Methods("GET")
}

// ExportRequest is the POST /exports body.
type ExportRequest struct {
	Settings  core.ExportSettings `json:"settings"`
	Keyframes []core.Keyframe     `json:"keyframes"`
}

// ExportCreated is the POST /exports response.
type ExportCreated struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps service errors to HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		s.writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, studio.ErrInvalidSettings), errors.Is(err, export.ErrNoKeyframes):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, studio.ErrArtifactNotReady):
		s.writeError(w, http.StatusConflict, "artifact not ready")
	case errors.Is(err, context.Canceled):
		s.writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		s.logger.Error("Request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStartExport(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.studio.StartExport(r.Context(), req.Settings, req.Keyframes)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, ExportCreated{ID: id})
}

func (s *Server) handleListExports(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.studio.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetExport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sess, err := s.studio.GetStatus(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteExport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.studio.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelExport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.studio.Cancel(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (s *Server) handleDownloadArtifact(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	path, err := s.studio.ArtifactPath(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, path)
}
