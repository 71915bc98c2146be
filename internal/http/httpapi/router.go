package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Hemang2904/jewelbench-flux-gen/internal/http/handlers"
	"github.com/Hemang2904/jewelbench-flux-gen/internal/middleware"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimiddleware.RealIP,
		middleware.RequestID,
		middleware.Logger(app.Logger),
		chimiddleware.Recoverer,
	)
	if len(app.Config.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(app.Config.AllowedOrigins))
	}
	if app.Config.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/batches", func(r chi.Router) {
		r.Post("/", app.CreateBatch)
		r.Get("/", app.ListBatches)
		r.Get("/{run_id}", app.BatchStatus)
		r.Get("/{run_id}/archive", app.BatchArchive)
	})

	return r
}
