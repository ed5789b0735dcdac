package handler

import (
	"errors"
	"net/http"

	"github.com/herogram/herogram/internal/repository"
	"github.com/herogram/herogram/internal/service"
)

// EnqueueDeliveryRequest is the enqueue payload
type EnqueueDeliveryRequest struct {
	AvatarRequestID string `json:"avatar_request_id"`
	RecipientEmail  string `json:"recipient_email"`
	RecipientName   string `json:"recipient_name"`
}

// EnqueueDelivery accepts a delivery request onto the queue. Acceptance only
// means the request was recorded; sending happens asynchronously.
func (h *Handler) EnqueueDelivery(w http.ResponseWriter, r *http.Request) {
	var req EnqueueDeliveryRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Request body must be valid JSON")
		return
	}

	id, err := h.deliverySvc.Enqueue(r.Context(), req.AvatarRequestID, req.RecipientEmail, req.RecipientName)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail):
			writeError(w, http.StatusBadRequest, "validation_error", "A valid recipient email address is required")
		case errors.Is(err, service.ErrInvalidName):
			writeError(w, http.StatusBadRequest, "validation_error", "A recipient name is required")
		case errors.Is(err, service.ErrAvatarNotFound):
			writeError(w, http.StatusNotFound, "not_found", "Avatar request not found")
		case errors.Is(err, service.ErrAvatarNotReady):
			writeError(w, http.StatusConflict, "avatar_not_ready", "The avatar has no generated image yet")
		default:
			h.log.Error().Err(err).Msg("failed to enqueue delivery")
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to enqueue delivery")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"delivery_id": id,
		"status":      "pending",
	})
}

// GetDelivery returns the current state of a delivery request
func (h *Handler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Delivery ID is required")
		return
	}

	d, err := h.deliverySvc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Delivery not found")
			return
		}
		h.log.Error().Err(err).Msg("failed to get delivery")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to get delivery")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// DeliveryStats returns queue monitoring counters
func (h *Handler) DeliveryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deliverySvc.Stats(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to get delivery stats")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to get delivery stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
