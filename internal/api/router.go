package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds settings for the API router.
type RouterConfig struct {
	// BackendAPIKey must be provided in X-API-Key or Authorization: Bearer <key>.
	// If empty, auth middleware is skipped (development mode).
	BackendAPIKey string

	// CorsAllowedOrigins is a comma-separated list of allowed origins.
	// If empty, defaults to "*" (development mode).
	CorsAllowedOrigins string

	// VideoDir is served under /videos/ for locally published renders.
	// Empty disables the static route.
	VideoDir string
}

func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	allowedOrigins := []string{"*"}
	if cfg.CorsAllowedOrigins != "" {
		origins := strings.Split(cfg.CorsAllowedOrigins, ",")
		trimmed := make([]string, 0, len(origins))
		for _, o := range origins {
			if s := strings.TrimSpace(o); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			allowedOrigins = trimmed
		}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check — public, no auth required
	r.Get("/health", h.Health)

	// Locally published renders
	if cfg.VideoDir != "" {
		fs := http.StripPrefix("/videos/", http.FileServer(http.Dir(cfg.VideoDir)))
		r.Get("/videos/*", fs.ServeHTTP)
	}

	r.Route("/v1", func(r chi.Router) {
		if cfg.BackendAPIKey != "" {
			r.Use(APIKeyAuth(cfg.BackendAPIKey))
		}

		// Render jobs
		r.Post("/render", h.SubmitRender)
		r.Get("/render/{jobId}", h.GetRenderStatus)
		r.Post("/render/{jobId}/cancel", h.CancelRender)
		r.Post("/render/{jobId}/pause", h.PauseRender)

		// Storyboard drafting
		r.Post("/storyboard/generate", h.GenerateStoryboard)

		// Stock media lookup
		r.Get("/media/search", h.SearchMedia)

		// Voice profiles
		r.Get("/voices", h.ListVoices)
	})

	return r
}
