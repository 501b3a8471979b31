package event

import (
	"context"
	"net/http"

	"github.com/Wuchinator/landing-analytics/internal/httpapi"
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
	r.Post("/video", h.TrackVideo)
	r.Post("/click", h.TrackClick)
	r.Post("/form", h.TrackForm)
	r.Post("/interaction", h.TrackInteraction)
}

func (h *Handler) TrackVideo(w http.ResponseWriter, r *http.Request) {
	var e VideoEvent
	handle(h, w, r, &e, "failed to track video event", h.service.RecordVideo)
}

func (h *Handler) TrackClick(w http.ResponseWriter, r *http.Request) {
	var c ButtonClick
	handle(h, w, r, &c, "failed to track click", h.service.RecordClick)
}

func (h *Handler) TrackForm(w http.ResponseWriter, r *http.Request) {
	var f FormSubmission
	handle(h, w, r, &f, "failed to track form submission", h.service.RecordForm)
}

func (h *Handler) TrackInteraction(w http.ResponseWriter, r *http.Request) {
	var e InteractionEvent
	handle(h, w, r, &e, "failed to track interaction", h.service.RecordInteraction)
}

func handle[T any](
	h *Handler,
	w http.ResponseWriter,
	r *http.Request,
	v *T,
	failMsg string,
	record func(context.Context, *T) (int64, error),
) {
	if !httpapi.Read(w, r, v) {
		return
	}

	id, err := record(r.Context(), v)
	if err != nil {
		httpapi.WriteError(w, h.logger, err, failMsg)
		return
	}
	httpapi.Write(w, http.StatusOK, httpapi.Ack{Success: true, ID: &id})
}
