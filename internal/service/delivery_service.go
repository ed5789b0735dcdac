package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/herogram/herogram/internal/logger"
	"github.com/herogram/herogram/internal/model"
	"github.com/herogram/herogram/internal/repository"
)

// Enqueue validation errors. These are rejected synchronously; nothing is
// persisted for an invalid request.
var (
	ErrInvalidEmail   = errors.New("recipient email is not a valid address")
	ErrInvalidName    = errors.New("recipient name is required")
	ErrAvatarNotFound = errors.New("avatar request not found")
	ErrAvatarNotReady = errors.New("avatar request has no generated image")
)

// DeliveryService is the enqueue and monitoring surface of the email queue.
// The interactive app only ever calls Enqueue; status transitions belong to
// the queue processor alone.
type DeliveryService struct {
	deliveries DeliveryStore
	avatars    AvatarStore
	cache      *SentCache
	log        *logger.Logger
}

// NewDeliveryService creates a new DeliveryService. cache may be nil.
func NewDeliveryService(deliveries DeliveryStore, avatars AvatarStore, cache *SentCache, log *logger.Logger) *DeliveryService {
	return &DeliveryService{
		deliveries: deliveries,
		avatars:    avatars,
		cache:      cache,
		log:        log.WithComponent("delivery"),
	}
}

// Enqueue validates the request and persists a pending delivery.
// Downstream delivery failures are invisible to the caller; only validation
// is reported synchronously.
func (s *DeliveryService) Enqueue(ctx context.Context, avatarRequestID, recipientEmail, recipientName string) (string, error) {
	recipientName = strings.TrimSpace(recipientName)
	if recipientName == "" {
		return "", ErrInvalidName
	}

	addr, err := mail.ParseAddress(recipientEmail)
	if err != nil || addr.Name != "" {
		return "", ErrInvalidEmail
	}

	avatar, err := s.avatars.GetByID(ctx, avatarRequestID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrAvatarNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up avatar request: %w", err)
	}
	if !avatar.HasGeneratedImage() {
		return "", ErrAvatarNotReady
	}

	id, err := s.deliveries.Create(ctx, avatarRequestID, addr.Address, recipientName)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue delivery: %w", err)
	}

	if err := s.avatars.MarkEmailRequested(ctx, avatarRequestID, time.Now().UTC()); err != nil {
		// The delivery row exists; tracking on the avatar is best-effort
		s.log.Warn().Err(err).Str("avatar_request_id", avatarRequestID).Msg("failed to mark email requested")
	}

	s.log.Info().
		Str("delivery_id", id).
		Str("avatar_request_id", avatarRequestID).
		Msg("delivery enqueued")
	return id, nil
}

// Get returns the current state of a delivery request. Sent deliveries are
// served from the Redis cache when possible since they never change again.
func (s *DeliveryService) Get(ctx context.Context, id string) (*model.DeliveryRequest, error) {
	if s.cache != nil {
		if d, ok := s.cache.Get(ctx, id); ok {
			return d, nil
		}
	}

	d, err := s.deliveries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && d.Status == model.DeliveryStatusSent {
		if err := s.cache.Store(ctx, d); err != nil {
			s.log.Warn().Err(err).Str("delivery_id", id).Msg("failed to cache sent delivery")
		}
	}
	return d, nil
}

// Stats returns the operator monitoring summary
func (s *DeliveryService) Stats(ctx context.Context) (*model.DeliveryStats, error) {
	return s.deliveries.Stats(ctx)
}
