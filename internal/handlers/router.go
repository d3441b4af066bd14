// internal/handlers/router.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/codearena/internal/middleware"
	"github.com/jason-s-yu/codearena/internal/models"
	"github.com/jason-s-yu/codearena/internal/session"
	"github.com/sirupsen/logrus"
)

// RoomLister is the read side of the room store.
type RoomLister interface {
	List() []models.RoomSummary
}

// ChallengeLister is the read side of the challenge catalog.
type ChallengeLister interface {
	List() []models.Challenge
}

// RouterDeps are what the HTTP surface needs.
type RouterDeps struct {
	Base           context.Context
	Logger         *logrus.Logger
	Coordinator    *session.Coordinator
	Rooms          RoomLister
	Challenges     ChallengeLister
	AllowedOrigins []string
	OnlineCount    func() int
}

// NewRouter mounts the websocket endpoint and the read-only JSON endpoints.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.LogMiddleware(d.Logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins(d.AllowedOrigins),
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
	})
	r.Get("/rooms", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"rooms": d.Rooms.List()})
	})
	r.Get("/challenges", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"challenges": d.Challenges.List()})
	})
	if d.OnlineCount != nil {
		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"online": d.OnlineCount()})
		})
	}

	base := d.Base
	if base == nil {
		base = context.Background()
	}
	r.Get("/ws", DuelWSHandler(base, d.Logger, d.Coordinator, d.AllowedOrigins))
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// corsOrigins turns bare hosts into the scheme-qualified patterns cors expects.
func corsOrigins(allowed []string) []string {
	out := make([]string, 0, len(allowed)*2)
	for _, o := range allowed {
		if o == "*" {
			return []string{"https://*", "http://*"}
		}
		out = append(out, "https://"+o, "http://"+o)
	}
	return out
}
