package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/herogram/herogram/internal/repository"
	"github.com/herogram/herogram/internal/service"
	"github.com/herogram/herogram/internal/storage"
)

// AvatarQR returns a QR code PNG encoding a signed download link
func (h *Handler) AvatarQR(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Avatar request ID is required")
		return
	}

	png, err := h.shareSvc.QRCode(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "Avatar request not found")
		case errors.Is(err, service.ErrAvatarNotReady):
			writeError(w, http.StatusConflict, "avatar_not_ready", "The avatar has no generated image yet")
		default:
			h.log.Error().Err(err).Msg("failed to generate QR code")
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to generate QR code")
		}
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

// DownloadAvatar serves the generated image for a valid signed token
func (h *Handler) DownloadAvatar(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	token := r.URL.Query().Get("token")
	if id == "" || token == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Avatar request ID and token are required")
		return
	}

	if _, err := h.shareSvc.ValidateToken(token, id); err != nil {
		switch {
		case errors.Is(err, service.ErrTokenExpired):
			writeError(w, http.StatusGone, "token_expired", "This download link has expired")
		default:
			writeError(w, http.StatusForbidden, "token_invalid", "This download link is not valid")
		}
		return
	}

	data, avatar, err := h.shareSvc.AvatarImage(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "Avatar request not found")
		case errors.Is(err, service.ErrAvatarNotReady), errors.Is(err, storage.ErrAssetMissing):
			writeError(w, http.StatusNotFound, "not_found", "Avatar image not available")
		default:
			h.log.Error().Err(err).Msg("failed to load avatar image")
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to load avatar image")
		}
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="superhero-%s.png"`, avatar.RequestID))
	w.Write(data)
}
