package api

import (
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter assembles the HTTP surface. Every route except the health check
// sits behind the API key and the resolved user identity.
func NewRouter(h *Handlers, apiKey, corsOrigins string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute)) // batch downloads stream for a while

	origins := []string{"*"}
	if corsOrigins != "" {
		origins = strings.Split(corsOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key", "X-User-Id", "X-User-Email"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/v1", func(r chi.Router) {
		r.Use(APIKeyAuth(apiKey))
		r.Use(h.UserResolver)

		r.Route("/batches", func(r chi.Router) {
			r.Post("/", h.CreateBatch)
			r.Get("/", h.ListBatches)
			r.Get("/{batchID}", h.GetBatch)
			r.Post("/{batchID}/process", h.ProcessBatch)
			r.Get("/{batchID}/download", h.DownloadBatch)
		})

		r.Route("/items/{itemID}", func(r chi.Router) {
			r.Post("/regenerate", h.RegenerateItem)
			r.Post("/render", h.RenderItem)
			r.Get("/outputs", h.GetItemOutputs)
		})

		r.Route("/scenes/{sceneID}", func(r chi.Router) {
			r.Post("/regenerate-content", h.RegenerateSceneContent)
			r.Post("/regenerate-animation", h.RegenerateSceneAnimation)
			r.Get("/history", h.GetSceneHistory)
		})

		r.Get("/presets", h.ListStylePresets)
		r.Get("/providers", h.ListProviders)
	})

	return r
}
