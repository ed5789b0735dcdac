package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/herogram/herogram/internal/database"
	"github.com/herogram/herogram/internal/model"
)

// DeliveryRepository handles delivery request persistence and the atomic
// status transitions of the email queue. It is the single source of truth
// for what has and has not been sent.
type DeliveryRepository struct {
	db          *database.Postgres
	maxRetries  int
	backoffBase time.Duration
}

// NewDeliveryRepository creates a new DeliveryRepository.
// maxRetries is captured onto each row at creation; backoffBase is the delay
// before the first retry and doubles with every further attempt.
func NewDeliveryRepository(db *database.Postgres, maxRetries int, backoffBase time.Duration) *DeliveryRepository {
	return &DeliveryRepository{
		db:          db,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
	}
}

// Backoff returns the delay before retry number retryCount (1-based)
func (r *DeliveryRepository) Backoff(retryCount int) time.Duration {
	d := r.backoffBase
	for i := 1; i < retryCount; i++ {
		d *= 2
	}
	return d
}

// RetryTransition computes the stored retry state after a failed attempt.
// retryCount is the count before this failure. A terminal failure, or one
// that exhausts the budget, forces the count to maxRetries and clears the
// schedule; otherwise the next attempt is scheduled with exponential backoff
// from now.
func (r *DeliveryRepository) RetryTransition(retryCount, maxRetries int, terminal bool, now time.Time) (int, *time.Time) {
	retryCount++
	if terminal || retryCount >= maxRetries {
		return maxRetries, nil
	}
	t := now.Add(r.Backoff(retryCount))
	return retryCount, &t
}

// Create inserts a new pending delivery request and returns its ID
func (r *DeliveryRepository) Create(ctx context.Context, avatarRequestID, recipientEmail, recipientName string) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	query := `
		INSERT INTO email_requests (
			email_request_id, avatar_request_id, recipient_email, recipient_name,
			status, retry_count, max_retries, requested_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $7, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		id,
		avatarRequestID,
		recipientEmail,
		recipientName,
		model.DeliveryStatusPending,
		r.maxRetries,
		now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create delivery request: %w", err)
	}
	return id, nil
}

// GetByID retrieves a delivery request by ID
func (r *DeliveryRepository) GetByID(ctx context.Context, id string) (*model.DeliveryRequest, error) {
	query := selectDeliveryColumns + ` WHERE email_request_id = $1`
	return r.scanDelivery(r.db.QueryRowContext(ctx, query, id))
}

// FetchEligible returns up to batchSize deliveries eligible for processing at
// the given time, oldest first, each joined with its avatar request data.
// Rows claimed by a concurrent run (status = sending) are never returned.
func (r *DeliveryRepository) FetchEligible(ctx context.Context, batchSize int, now time.Time) ([]model.DeliveryJob, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be > 0: %w", ErrInvalidInput)
	}

	query := `
		SELECT e.email_request_id, e.avatar_request_id, e.recipient_email, e.recipient_name,
		       e.status, e.retry_count, e.max_retries, e.next_retry_at, e.requested_at,
		       e.sent_at, e.error_message, e.error_code, e.smtp_message_id,
		       e.created_at, e.updated_at,
		       a.request_id, a.name, a.email, a.superhero, a.car, a.color, a.status,
		       a.generated_image_path, a.request_time
		FROM email_requests e
		JOIN avatar_requests a ON a.request_id = e.avatar_request_id
		WHERE e.status = 'pending'
		   OR (e.status = 'failed'
		       AND e.retry_count < e.max_retries
		       AND (e.next_retry_at IS NULL OR e.next_retry_at <= $2))
		ORDER BY e.requested_at ASC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, batchSize, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch eligible deliveries: %w", err)
	}
	defer rows.Close()

	var jobs []model.DeliveryJob
	for rows.Next() {
		var job model.DeliveryJob
		var dStatus, aStatus string
		if err := rows.Scan(
			&job.Delivery.ID,
			&job.Delivery.AvatarRequestID,
			&job.Delivery.RecipientEmail,
			&job.Delivery.RecipientName,
			&dStatus,
			&job.Delivery.RetryCount,
			&job.Delivery.MaxRetries,
			&job.Delivery.NextRetryAt,
			&job.Delivery.RequestedAt,
			&job.Delivery.SentAt,
			&job.Delivery.ErrorMessage,
			&job.Delivery.ErrorCode,
			&job.Delivery.SMTPMessageID,
			&job.Delivery.CreatedAt,
			&job.Delivery.UpdatedAt,
			&job.Avatar.RequestID,
			&job.Avatar.Name,
			&job.Avatar.Email,
			&job.Avatar.Superhero,
			&job.Avatar.Car,
			&job.Avatar.Color,
			&aStatus,
			&job.Avatar.GeneratedImagePath,
			&job.Avatar.RequestTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan delivery job: %w", err)
		}
		job.Delivery.Status = model.DeliveryStatus(dStatus)
		job.Avatar.Status = model.AvatarStatus(aStatus)
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate delivery jobs: %w", err)
	}
	return jobs, nil
}

// MarkSending atomically claims a delivery for this processor run.
// The conditional update is the sole concurrency guard in the system:
// exactly one of any number of concurrent claims on the same row wins.
func (r *DeliveryRepository) MarkSending(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE email_requests
		SET status = 'sending', updated_at = $2
		WHERE email_request_id = $1
		  AND status IN ('pending', 'failed')
		  AND retry_count < max_retries
	`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to claim delivery: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return rowsAffected == 1, nil
}

// MarkSent records a successful send and clears any previous error fields
func (r *DeliveryRepository) MarkSent(ctx context.Context, id string, smtpMessageID string) error {
	query := `
		UPDATE email_requests
		SET status = 'sent',
		    sent_at = $2,
		    smtp_message_id = NULLIF($3, ''),
		    error_message = NULL,
		    error_code = NULL,
		    next_retry_at = NULL,
		    updated_at = $2
		WHERE email_request_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC(), smtpMessageID)
	if err != nil {
		return fmt.Errorf("failed to mark delivery sent: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed records a failed attempt. The retry count advances; once the
// budget is exhausted, or when terminal is true, the row becomes a terminal
// failure (retry_count forced to max_retries, next_retry_at cleared).
// Otherwise the next retry is scheduled with exponential backoff.
func (r *DeliveryRepository) MarkFailed(ctx context.Context, id string, errorCode, errorMessage string, terminal bool) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var retryCount, maxRetries int
	err = tx.QueryRowContext(ctx, `
		SELECT retry_count, max_retries
		FROM email_requests
		WHERE email_request_id = $1
		FOR UPDATE
	`, id).Scan(&retryCount, &maxRetries)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock delivery row: %w", err)
	}

	now := time.Now().UTC()
	retryCount, nextRetryAt := r.RetryTransition(retryCount, maxRetries, terminal, now)

	_, err = tx.ExecContext(ctx, `
		UPDATE email_requests
		SET status = 'failed',
		    retry_count = $2,
		    next_retry_at = $3,
		    error_code = NULLIF($4, ''),
		    error_message = NULLIF($5, ''),
		    updated_at = $6
		WHERE email_request_id = $1
	`, id, retryCount, nextRetryAt, errorCode, errorMessage, now)
	if err != nil {
		return fmt.Errorf("failed to mark delivery failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit failure update: %w", err)
	}
	return nil
}

// Stats returns per-status counts and the average retry count
func (r *DeliveryRepository) Stats(ctx context.Context) (*model.DeliveryStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'sending'),
		       COUNT(*) FILTER (WHERE status = 'sent'),
		       COUNT(*) FILTER (WHERE status = 'failed'),
		       COUNT(*) FILTER (WHERE status = 'failed' AND retry_count < max_retries),
		       COALESCE(AVG(retry_count), 0)
		FROM email_requests
	`
	var stats model.DeliveryStats
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Sending,
		&stats.Sent,
		&stats.Failed,
		&stats.Retrying,
		&stats.AverageRetries,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery stats: %w", err)
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Sent) / float64(stats.Total) * 100
	}
	return &stats, nil
}

const selectDeliveryColumns = `
	SELECT email_request_id, avatar_request_id, recipient_email, recipient_name,
	       status, retry_count, max_retries, next_retry_at, requested_at,
	       sent_at, error_message, error_code, smtp_message_id, created_at, updated_at
	FROM email_requests`

// scanDelivery scans a single delivery request row
func (r *DeliveryRepository) scanDelivery(row *sql.Row) (*model.DeliveryRequest, error) {
	var d model.DeliveryRequest
	var status string
	err := row.Scan(
		&d.ID,
		&d.AvatarRequestID,
		&d.RecipientEmail,
		&d.RecipientName,
		&status,
		&d.RetryCount,
		&d.MaxRetries,
		&d.NextRetryAt,
		&d.RequestedAt,
		&d.SentAt,
		&d.ErrorMessage,
		&d.ErrorCode,
		&d.SMTPMessageID,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan delivery request: %w", err)
	}
	d.Status = model.DeliveryStatus(status)
	return &d, nil
}
