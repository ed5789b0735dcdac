package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/herogram/herogram/internal/database"
	"github.com/herogram/herogram/internal/model"
)

// AvatarRepository handles avatar request persistence
type AvatarRepository struct {
	db *database.Postgres
}

// NewAvatarRepository creates a new AvatarRepository
func NewAvatarRepository(db *database.Postgres) *AvatarRepository {
	return &AvatarRepository{db: db}
}

// Create inserts a new avatar request
func (r *AvatarRepository) Create(ctx context.Context, req *model.AvatarRequest) error {
	query := `
		INSERT INTO avatar_requests (request_id, name, email, superhero, car, color, status, original_image_path, request_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		req.RequestID,
		req.Name,
		req.Email,
		req.Superhero,
		req.Car,
		req.Color,
		req.Status,
		req.OriginalImagePath,
		req.RequestTime,
	)
	if err != nil {
		return fmt.Errorf("failed to create avatar request: %w", err)
	}
	return nil
}

// GetByID retrieves an avatar request by ID
func (r *AvatarRepository) GetByID(ctx context.Context, id string) (*model.AvatarRequest, error) {
	query := `
		SELECT request_id, name, email, superhero, car, color, status,
		       error_message, original_image_path, generated_image_path,
		       generation_time_seconds, email_requested, email_request_time, request_time
		FROM avatar_requests
		WHERE request_id = $1
	`
	var a model.AvatarRequest
	var status string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.RequestID,
		&a.Name,
		&a.Email,
		&a.Superhero,
		&a.Car,
		&a.Color,
		&status,
		&a.ErrorMessage,
		&a.OriginalImagePath,
		&a.GeneratedImagePath,
		&a.GenerationTimeSeconds,
		&a.EmailRequested,
		&a.EmailRequestTime,
		&a.RequestTime,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get avatar request: %w", err)
	}
	a.Status = model.AvatarStatus(status)
	return &a, nil
}

// UpdateGeneration records the outcome of avatar generation
func (r *AvatarRepository) UpdateGeneration(ctx context.Context, id string, status model.AvatarStatus, generatedImagePath string, generationSeconds int, errorMessage string) error {
	query := `
		UPDATE avatar_requests
		SET status = $2,
		    generated_image_path = NULLIF($3, ''),
		    generation_time_seconds = $4,
		    error_message = NULLIF($5, '')
		WHERE request_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, status, generatedImagePath, generationSeconds, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to update avatar generation: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkEmailRequested flags the avatar request as having a queued email delivery
func (r *AvatarRepository) MarkEmailRequested(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE avatar_requests
		SET email_requested = true, email_request_time = $2
		WHERE request_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark email requested: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
