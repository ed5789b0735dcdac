package service

import (
	"context"
	"time"

	"github.com/herogram/herogram/internal/model"
)

// DeliveryStore is the persistence surface the delivery services consume.
// *repository.DeliveryRepository is the production implementation.
type DeliveryStore interface {
	Create(ctx context.Context, avatarRequestID, recipientEmail, recipientName string) (string, error)
	GetByID(ctx context.Context, id string) (*model.DeliveryRequest, error)
	FetchEligible(ctx context.Context, batchSize int, now time.Time) ([]model.DeliveryJob, error)
	MarkSending(ctx context.Context, id string) (bool, error)
	MarkSent(ctx context.Context, id string, smtpMessageID string) error
	MarkFailed(ctx context.Context, id string, errorCode, errorMessage string, terminal bool) error
	Stats(ctx context.Context) (*model.DeliveryStats, error)
}

// AvatarStore is the avatar request surface the delivery services consume.
// *repository.AvatarRepository is the production implementation.
type AvatarStore interface {
	Create(ctx context.Context, req *model.AvatarRequest) error
	GetByID(ctx context.Context, id string) (*model.AvatarRequest, error)
	UpdateGeneration(ctx context.Context, id string, status model.AvatarStatus, generatedImagePath string, generationSeconds int, errorMessage string) error
	MarkEmailRequested(ctx context.Context, id string, at time.Time) error
}
