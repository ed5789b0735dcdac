package model

import (
	"time"
)

// DeliveryStatus represents the lifecycle state of a delivery request
type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSending DeliveryStatus = "sending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// Delivery error codes persisted on failed rows
const (
	ErrCodeAssetMissing      = "asset_missing"
	ErrCodeTemplate          = "template_error"
	ErrCodeAuthFailure       = "auth_failure"
	ErrCodeRecipientRejected = "recipient_rejected"
	ErrCodeRateLimited       = "rate_limited"
	ErrCodeTransientNetwork  = "transient_network"
)

// DeliveryRequest is one queued intent to email a specific avatar to a
// specific recipient. Rows are never deleted; terminal failures stay for
// operator review.
type DeliveryRequest struct {
	ID              string         `json:"id"`
	AvatarRequestID string         `json:"avatarRequestId"`
	RecipientEmail  string         `json:"recipientEmail"`
	RecipientName   string         `json:"recipientName"`
	Status          DeliveryStatus `json:"status"`
	RetryCount      int            `json:"retryCount"`
	MaxRetries      int            `json:"maxRetries"`
	NextRetryAt     *time.Time     `json:"nextRetryAt,omitempty"`
	RequestedAt     time.Time      `json:"requestedAt"`
	SentAt          *time.Time     `json:"sentAt,omitempty"`
	ErrorMessage    *string        `json:"errorMessage,omitempty"`
	ErrorCode       *string        `json:"errorCode,omitempty"`
	SMTPMessageID   *string        `json:"smtpMessageId,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// CanRetry reports whether the request still has retry budget
func (d *DeliveryRequest) CanRetry() bool {
	return (d.Status == DeliveryStatusFailed || d.Status == DeliveryStatusPending) &&
		d.RetryCount < d.MaxRetries
}

// IsTerminal reports whether the request will never be processed again
func (d *DeliveryRequest) IsTerminal() bool {
	if d.Status == DeliveryStatusSent {
		return true
	}
	return d.Status == DeliveryStatusFailed && d.RetryCount >= d.MaxRetries
}

// EligibleAt reports whether the request may be claimed at the given time
func (d *DeliveryRequest) EligibleAt(now time.Time) bool {
	switch d.Status {
	case DeliveryStatusPending:
		return true
	case DeliveryStatusFailed:
		if d.RetryCount >= d.MaxRetries {
			return false
		}
		return d.NextRetryAt == nil || !d.NextRetryAt.After(now)
	default:
		return false
	}
}

// DeliveryJob pairs an eligible delivery request with the avatar data the
// composer needs to render the message.
type DeliveryJob struct {
	Delivery DeliveryRequest
	Avatar   AvatarRequest
}

// DeliveryStats is the operator-facing monitoring summary
type DeliveryStats struct {
	Total          int64   `json:"total"`
	Pending        int64   `json:"pending"`
	Sending        int64   `json:"sending"`
	Sent           int64   `json:"sent"`
	Failed         int64   `json:"failed"`
	Retrying       int64   `json:"retrying"`
	AverageRetries float64 `json:"averageRetries"`
	SuccessRate    float64 `json:"successRate"`
}
