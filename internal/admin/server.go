// Package admin exposes the operator HTTP surface: a health probe and
// the replay endpoint that returns errored letter files to the scanning
// pipeline.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"postroom/internal/types"
)

// Replayer is the pipeline surface the admin server drives.
type Replayer interface {
	ReplayErroredFiles(ctx context.Context, filename string) error
}

// Server is the operator API.
type Server struct {
	replayer Replayer
	apiKey   types.SecretString
	logger   types.Logger
}

// NewServer creates the admin server.
func NewServer(replayer Replayer, apiKey types.SecretString, logger types.Logger) *Server {
	return &Server{
		replayer: replayer,
		apiKey:   apiKey,
		logger:   logger,
	}
}

// Handler builds the chi router with the middleware chain and routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Post("/letters/replay", s.handleReplay)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// replayRequest is the replay endpoint body. An empty or absent filename
// sweeps the whole error archive.
type replayRequest struct {
	Filename string `json:"filename"`
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	var req replayRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, types.NewAppError(types.ErrCodeValidationMissingField,
				"request body is not valid JSON", err))
			return
		}
	}

	s.logger.Info("replay requested", "filename", req.Filename)

	if err := s.replayer.ReplayErroredFiles(r.Context(), req.Filename); err != nil {
		s.logger.Error("replay failed", "filename", req.Filename, "error", err.Error())
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"result": "replayed"})
}

// requireAPIKey guards the v1 routes with a constant-time key check
// against the X-Api-Key header.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provided := r.Header.Get("X-Api-Key")
		expected := s.apiKey.Unmask()
		if provided == "" || expected == "" ||
			subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "invalid or missing API key",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// errorResponse is the JSON error body for the admin surface.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.HTTPStatus(), errorResponse{
			Code:    string(appErr.Code),
			Message: appErr.Message,
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Code:    string(types.ErrCodeInternalUnexpected),
		Message: "internal error",
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
