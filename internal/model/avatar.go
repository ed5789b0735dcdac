package model

import (
	"time"
)

// AvatarStatus represents the status of an avatar generation request
type AvatarStatus string

const (
	AvatarStatusPending    AvatarStatus = "pending"
	AvatarStatusProcessing AvatarStatus = "processing"
	AvatarStatusCompleted  AvatarStatus = "completed"
	AvatarStatusFailed     AvatarStatus = "failed"
)

// AvatarRequest represents one attendee's avatar generation request.
// The interactive app owns these rows; the delivery queue only reads them
// for the recipient's chosen persona, color and vehicle.
type AvatarRequest struct {
	RequestID             string       `json:"requestId"`
	Name                  string       `json:"name"`
	Email                 string       `json:"email"`
	Superhero             string       `json:"superhero"`
	Car                   string       `json:"car"`
	Color                 string       `json:"color"`
	Status                AvatarStatus `json:"status"`
	ErrorMessage          *string      `json:"errorMessage,omitempty"`
	OriginalImagePath     *string      `json:"-"`
	GeneratedImagePath    *string      `json:"-"`
	GenerationTimeSeconds *int         `json:"generationTimeSeconds,omitempty"`
	EmailRequested        bool         `json:"emailRequested"`
	EmailRequestTime      *time.Time   `json:"emailRequestTime,omitempty"`
	RequestTime           time.Time    `json:"requestTime"`
}

// HasGeneratedImage reports whether a finished avatar artifact is recorded
func (a *AvatarRequest) HasGeneratedImage() bool {
	return a.GeneratedImagePath != nil && *a.GeneratedImagePath != ""
}
