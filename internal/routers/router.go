package routers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"collabdocs/internal/api"
	"collabdocs/internal/collab"
	ratelimit "collabdocs/internal/middleware"
	"collabdocs/internal/metrics"
	"collabdocs/internal/utils"
)

type Options struct {
	AllowedOrigins   []string
	QueueSize        int
	ReadLimit        int64
	ConnectRateRPS   float64
	ConnectRateBurst int
}

// New builds the HTTP surface. ctx bounds background work owned by the router.
func New(ctx context.Context, log *utils.Logger, coord *collab.Coordinator, opts Options) http.Handler {
	h := api.NewHandlers(log, coord, api.Options{QueueSize: opts.QueueSize, ReadLimit: opts.ReadLimit})

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}),
		metrics.Middleware,
	)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		r.Get("/healthz", h.Health)
		r.Get("/documents", h.ListDocuments)
		r.Get("/documents/{id}", h.GetDocument)
		r.Get("/stats", h.Stats)
	})

	r.With(ratelimit.RateLimit(ctx, opts.ConnectRateRPS, opts.ConnectRateBurst)).Get("/ws", h.CollabWS)

	return r
}
