package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tatianab/spyfall-agents/internal/analytics"
	"github.com/tatianab/spyfall-agents/internal/models"
	"github.com/tatianab/spyfall-agents/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encoding response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ListLocations(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.opts.Catalog.Packs())
}

// ListHistory returns past games when the recorder can list them.
func (s *Server) ListHistory(w http.ResponseWriter, r *http.Request) {
	lister, ok := s.opts.Recorder.(analytics.Lister)
	if !ok {
		s.writeJSON(w, http.StatusOK, []analytics.Summary{})
		return
	}
	games, err := lister.ListGames(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, games)
}

type createResponse struct {
	ID string `json:"id"`
}

func (s *Server) CreateGame(w http.ResponseWriter, r *http.Request) {
	var cfg models.GameConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	game, err := s.StartGame(cfg)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, createResponse{ID: game.ID})
}

func (s *Server) ListGames(w http.ResponseWriter, r *http.Request) {
	games := s.store.List()
	views := make([]store.View, 0, len(games))
	for _, g := range games {
		views = append(views, g.View())
	}
	s.writeJSON(w, http.StatusOK, views)
}

type gameResponse struct {
	store.View
	PendingInput string `json:"pending_input,omitempty"`
}

func (s *Server) GetGame(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	game, err := s.store.Get(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	resp := gameResponse{View: game.View()}
	if l, err := s.liveGame(id); err == nil {
		resp.PendingInput, _ = l.input.Pending()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) DeleteGameHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.DeleteGame(mux.Vars(r)["id"]); err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type inputRequest struct {
	Text string `json:"text"`
}

func (s *Server) SubmitInput(w http.ResponseWriter, r *http.Request) {
	l, err := s.liveGame(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := l.input.Submit(req.Text); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrNoPendingInput) {
			status = http.StatusConflict
		}
		s.writeError(w, status, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
