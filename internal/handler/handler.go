package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/herogram/herogram/internal/config"
	"github.com/herogram/herogram/internal/database"
	"github.com/herogram/herogram/internal/logger"
	"github.com/herogram/herogram/internal/service"
)

// Handler holds all HTTP handlers
type Handler struct {
	db          *database.Postgres
	rdb         *database.Redis
	log         *logger.Logger
	cfg         *config.Config
	avatarSvc   *service.AvatarService
	deliverySvc *service.DeliveryService
	shareSvc    *service.ShareService
}

// New creates a new Handler instance
func New(db *database.Postgres, rdb *database.Redis, log *logger.Logger, cfg *config.Config, avatarSvc *service.AvatarService, deliverySvc *service.DeliveryService, shareSvc *service.ShareService) *Handler {
	return &Handler{
		db:          db,
		rdb:         rdb,
		log:         log,
		cfg:         cfg,
		avatarSvc:   avatarSvc,
		deliverySvc: deliverySvc,
		shareSvc:    shareSvc,
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	})
}

func readJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.New("request body is empty")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
