package handler

import (
	"errors"
	"net/http"

	"github.com/herogram/herogram/internal/repository"
	"github.com/herogram/herogram/internal/service"
)

// CreateAvatar registers a new avatar generation request
func (h *Handler) CreateAvatar(w http.ResponseWriter, r *http.Request) {
	var in service.AvatarInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Request body must be valid JSON")
		return
	}

	avatar, err := h.avatarSvc.Create(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingField):
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		case errors.Is(err, service.ErrInvalidEmail):
			writeError(w, http.StatusBadRequest, "validation_error", "A valid email address is required")
		default:
			h.log.Error().Err(err).Msg("failed to create avatar request")
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to create avatar request")
		}
		return
	}

	writeJSON(w, http.StatusCreated, avatar)
}

// GetAvatar returns an avatar request by ID
func (h *Handler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Avatar request ID is required")
		return
	}

	avatar, err := h.avatarSvc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Avatar request not found")
			return
		}
		h.log.Error().Err(err).Msg("failed to get avatar request")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to get avatar request")
		return
	}

	writeJSON(w, http.StatusOK, avatar)
}

// CompleteAvatar records the outcome of a generation run
func (h *Handler) CompleteAvatar(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Avatar request ID is required")
		return
	}

	var in service.CompletionInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Request body must be valid JSON")
		return
	}

	if err := h.avatarSvc.Complete(r.Context(), id, in); err != nil {
		switch {
		case errors.Is(err, service.ErrMissingField):
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "Avatar request not found")
		default:
			h.log.Error().Err(err).Msg("failed to record avatar completion")
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to record completion")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Generation recorded"})
}
