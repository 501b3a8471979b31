package query

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Wuchinator/landing-analytics/internal/httpapi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Limits struct {
	Default int
	Max     int
}

type Handler struct {
	service *Service
	limits  Limits
	logger  *zap.Logger
}

func NewHandler(service *Service, limits Limits, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		limits:  limits,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/overview", h.Overview)
	r.Get("/technical", h.Technical)
	r.Get("/sessions", h.Sessions)
	r.Get("/form-submissions", h.FormSubmissions)
	r.Get("/video-stats", h.VideoStats)
	r.Get("/clicks", h.Clicks)
	r.Get("/clicks-timeline", h.ClicksTimeline)
	r.Get("/time-distribution", h.TimeDistribution)
	r.Get("/locations", h.Locations)
	r.Get("/regions", h.Regions)
	r.Get("/interactions", h.Interactions)
	r.Get("/export", h.Export)
}

func (h *Handler) limit(r *http.Request) int {
	return httpapi.ParseLimit(r, h.limits.Default, h.limits.Max)
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	respond(h, w, r, "failed to get overview", h.service.Overview)
}

func (h *Handler) Technical(w http.ResponseWriter, r *http.Request) {
	respond(h, w, r, "failed to get technical stats", h.service.Technical)
}

func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	respond(h, w, r, "failed to get sessions", withLimit(h.limit(r), h.service.Sessions))
}

func (h *Handler) FormSubmissions(w http.ResponseWriter, r *http.Request) {
	respond(h, w, r, "failed to get form submissions", withLimit(h.limit(r), h.service.FormSubmissions))
}

func (h *Handler) VideoStats(w http.ResponseWriter, r *http.Request) {
	respond(h, w, r, "failed to get video stats", h.service.VideoStats)
}

func (h *Handler) Clicks(w http.ResponseWriter, r *http.Request) {
	respond(h, w, r, "failed to get clicks", withLimit(h.limit(r), h.service.Clicks))
}

func (h *Handler) ClicksTimeline(w http.ResponseWriter, r *http.Request) {
	respond(h, w, r, "failed to get clicks timeline", h.service.ClicksTimeline)
}

func (h *Handler) TimeDistribution(w http.ResponseWriter, r *http.Request) {
	respond(h, w, r, "failed to get time distribution", h.service.TimeDistribution)
}

func (h *Handler) Locations(w http.ResponseWriter, r *http.Request) {
	respond(h, w, r, "failed to get locations", h.service.Locations)
}

func (h *Handler) Regions(w http.ResponseWriter, r *http.Request) {
	respond(h, w, r, "failed to get regions", h.service.Regions)
}

func (h *Handler) Interactions(w http.ResponseWriter, r *http.Request) {
	respond(h, w, r, "failed to get interactions", withLimit(h.limit(r), h.service.Interactions))
}

// Export buffers the CSV so a failed query still yields a JSON error.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), &buf); err != nil {
		httpapi.WriteError(w, h.logger, err, "failed to export sessions")
		return
	}

	name := fmt.Sprintf("sessions-%s.csv", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func withLimit[T any](limit int, fn func(context.Context, int) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		return fn(ctx, limit)
	}
}

func respond[T any](
	h *Handler,
	w http.ResponseWriter,
	r *http.Request,
	failMsg string,
	fn func(context.Context) (T, error),
) {
	v, err := fn(r.Context())
	if err != nil {
		httpapi.WriteError(w, h.logger, err, failMsg)
		return
	}
	httpapi.Write(w, http.StatusOK, v)
}
