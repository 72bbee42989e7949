package authz

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wardbook/wardbook/internal/shared"
)

// ReportHandler serves the operational inspection report.
type ReportHandler struct {
	logger   *slog.Logger
	resolver *Resolver
	mw       Middleware
	now      func() time.Time
}

// NewReportHandler builds a ReportHandler.
func NewReportHandler(logger *slog.Logger, resolver *Resolver, mw Middleware) *ReportHandler {
	return &ReportHandler{logger: logger, resolver: resolver, mw: mw, now: time.Now}
}

// MountRoutes registers the report route.
func (h *ReportHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(shared.PermAuthzInspect))
		r.Get("/report", h.report)
	})
}

func (h *ReportHandler) report(w http.ResponseWriter, r *http.Request) {
	report := h.resolver.Snapshot(h.now().UTC())
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		h.logger.Error("encode authz report", slog.Any("error", err))
	}
}
