package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ManishG04/Convex/internal/config"
	"github.com/ManishG04/Convex/internal/session"
	"github.com/ManishG04/Convex/internal/ws"
)

// SetupRoutes builds the HTTP surface: service info, health, metrics, room
// code minting, and the websocket entrypoint.
func SetupRoutes(coord *session.Coordinator, cfg *config.Config, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Metrics first to capture all requests.
	r.Use(Metrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", Root)
	r.Get("/health", Health)
	r.Post("/rooms", CreateRoom(coord))
	r.Get("/ws", ws.Handler(coord, cfg, logger))

	return r
}
