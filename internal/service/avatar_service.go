package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/herogram/herogram/internal/logger"
	"github.com/herogram/herogram/internal/model"
)

// Avatar intake validation errors
var (
	ErrMissingField = errors.New("required field is missing")
)

// AvatarService handles avatar request intake and generation results. The
// image generation itself happens out of process; this service records its
// lifecycle.
type AvatarService struct {
	avatars AvatarStore
	log     *logger.Logger
}

// NewAvatarService creates a new AvatarService
func NewAvatarService(avatars AvatarStore, log *logger.Logger) *AvatarService {
	return &AvatarService{
		avatars: avatars,
		log:     log.WithComponent("avatar"),
	}
}

// AvatarInput is the intake payload for a new avatar request
type AvatarInput struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	Superhero         string `json:"superhero"`
	Car               string `json:"car"`
	Color             string `json:"color"`
	OriginalImagePath string `json:"original_image_path"`
}

// Create registers a new avatar request in pending state
func (s *AvatarService) Create(ctx context.Context, in AvatarInput) (*model.AvatarRequest, error) {
	for field, value := range map[string]string{
		"name":      in.Name,
		"email":     in.Email,
		"superhero": in.Superhero,
		"car":       in.Car,
		"color":     in.Color,
	} {
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, field)
		}
	}

	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Name != "" {
		return nil, ErrInvalidEmail
	}

	req := &model.AvatarRequest{
		RequestID:   uuid.New().String(),
		Name:        strings.TrimSpace(in.Name),
		Email:       addr.Address,
		Superhero:   in.Superhero,
		Car:         in.Car,
		Color:       in.Color,
		Status:      model.AvatarStatusPending,
		RequestTime: time.Now().UTC(),
	}
	if in.OriginalImagePath != "" {
		req.OriginalImagePath = &in.OriginalImagePath
	}

	if err := s.avatars.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create avatar request: %w", err)
	}

	s.log.Info().
		Str("avatar_request_id", req.RequestID).
		Str("superhero", req.Superhero).
		Msg("avatar request created")
	return req, nil
}

// CompletionInput records the outcome of an avatar generation run
type CompletionInput struct {
	GeneratedImagePath string `json:"generated_image_path"`
	GenerationSeconds  int    `json:"generation_time_seconds"`
	ErrorMessage       string `json:"error_message"`
}

// Complete records a finished generation, successful or not
func (s *AvatarService) Complete(ctx context.Context, id string, in CompletionInput) error {
	status := model.AvatarStatusCompleted
	if in.ErrorMessage != "" {
		status = model.AvatarStatusFailed
	} else if in.GeneratedImagePath == "" {
		return fmt.Errorf("%w: generated_image_path", ErrMissingField)
	}

	if err := s.avatars.UpdateGeneration(ctx, id, status, in.GeneratedImagePath, in.GenerationSeconds, in.ErrorMessage); err != nil {
		return err
	}

	s.log.Info().
		Str("avatar_request_id", id).
		Str("status", string(status)).
		Msg("avatar generation recorded")
	return nil
}

// Get returns an avatar request by ID
func (s *AvatarService) Get(ctx context.Context, id string) (*model.AvatarRequest, error) {
	return s.avatars.GetByID(ctx, id)
}
