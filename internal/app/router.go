package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/wardbook/wardbook/internal/accounts"
	"github.com/wardbook/wardbook/internal/authz"
	"github.com/wardbook/wardbook/internal/observability"
	"github.com/wardbook/wardbook/internal/patients"
	"github.com/wardbook/wardbook/internal/records"
	"github.com/wardbook/wardbook/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Actors          ActorSource
	AccountsHandler *accounts.Handler
	PatientsHandler *patients.Handler
	RecordsHandler  *records.Handler
	ReportHandler   *authz.ReportHandler
	JobsHandler     *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with wardbook defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Actors:  params.Actors,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/accounts", params.AccountsHandler.MountRoutes)
	r.Route("/patients", params.PatientsHandler.MountRoutes)
	r.Route("/records", params.RecordsHandler.MountRoutes)
	r.Route("/authz", params.ReportHandler.MountRoutes)
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
