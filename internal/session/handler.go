package session

import (
	"net/http"

	"github.com/Wuchinator/landing-analytics/internal/httpapi"
	"github.com/Wuchinator/landing-analytics/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.Track)
	// Heartbeats use PUT, the unload beacon can only POST.
	r.Put("/session/{session_id}", h.TrackMetrics)
	r.Post("/session/{session_id}", h.TrackMetrics)
}

// Track handles the initial beacon and the geolocation patch.
func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	var patch Patch
	if !httpapi.Read(w, r, &patch) {
		return
	}
	h.upsert(w, r, &patch)
}

// TrackMetrics handles behavioral updates addressed by path. The body's
// session_id is ignored and a missing timestamp defaults to receive time.
func (h *Handler) TrackMetrics(w http.ResponseWriter, r *http.Request) {
	var patch Patch
	if !httpapi.Read(w, r, &patch) {
		return
	}
	patch.SessionID = chi.URLParam(r, "session_id")
	if patch.Timestamp.IsZero() {
		patch.Timestamp = store.Now()
	}
	h.upsert(w, r, &patch)
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request, patch *Patch) {
	result, err := h.service.Upsert(r.Context(), patch)
	if err != nil {
		httpapi.WriteError(w, h.logger, err, "failed to track session")
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httpapi.Write(w, status, httpapi.Ack{Success: true, Created: &result.Created})
}
