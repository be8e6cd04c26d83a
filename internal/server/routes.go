package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	r.Use(s.corsMiddleware)

	r.HandleFunc("/healthz", s.HealthHandler).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/locations", s.ListLocations).Methods(http.MethodGet)
	api.HandleFunc("/history", s.ListHistory).Methods(http.MethodGet)
	api.HandleFunc("/games", s.CreateGame).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/games", s.ListGames).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}", s.GetGame).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}", s.DeleteGameHandler).Methods(http.MethodDelete, http.MethodOptions)
	api.HandleFunc("/games/{id}/events", s.HandleSSE).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}/ws", s.HandleWebSocket).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}/input", s.SubmitInput).Methods(http.MethodPost, http.MethodOptions)

	return r
}

// CORS middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")

		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
