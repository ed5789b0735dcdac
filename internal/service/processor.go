package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/herogram/herogram/internal/email"
	"github.com/herogram/herogram/internal/logger"
	"github.com/herogram/herogram/internal/model"
	"github.com/herogram/herogram/internal/storage"
)

// ProcessorOptions configures one queue processing run
type ProcessorOptions struct {
	BatchSize int
	DryRun    bool
}

// Summary reports what one processor run did. Failed counts terminal
// outcomes only; Retried counts failures that stay in the queue with
// budget left. Dry runs report WouldSend instead of Sent.
type Summary struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Retried   int `json:"retried"`
	Skipped   int `json:"skipped"`
	WouldSend int `json:"would_send,omitempty"`
}

// Processor drains the delivery queue: it claims eligible requests one at a
// time, renders and sends each, and persists the outcome. It holds no state
// between runs; overlapping runs are safe because the store's claim is the
// sole synchronization primitive.
type Processor struct {
	deliveries DeliveryStore
	artifacts  storage.Store
	composer   *email.Composer
	sender     email.Sender
	cache      *SentCache
	log        *logger.Logger
	opts       ProcessorOptions
}

// NewProcessor creates a new Processor. cache may be nil.
func NewProcessor(deliveries DeliveryStore, artifacts storage.Store, composer *email.Composer, sender email.Sender, cache *SentCache, log *logger.Logger, opts ProcessorOptions) *Processor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	return &Processor{
		deliveries: deliveries,
		artifacts:  artifacts,
		composer:   composer,
		sender:     sender,
		cache:      cache,
		log:        log.WithComponent("processor"),
		opts:       opts,
	}
}

// Run executes one queue processing pass. Per-request failures are recorded
// in the store and never abort the pass; only invocation-level errors (the
// store itself unreachable) are returned.
func (p *Processor) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	p.log.Info().
		Int("batch_size", p.opts.BatchSize).
		Bool("dry_run", p.opts.DryRun).
		Msg("queue processing started")

	jobs, err := p.deliveries.FetchEligible(ctx, p.opts.BatchSize, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch eligible deliveries: %w", err)
	}

	summary := &Summary{}
	if len(jobs) == 0 {
		p.log.Info().Msg("no eligible deliveries")
		return summary, nil
	}

	// Sequential on purpose: SMTP throughput at this volume does not
	// justify intra-batch parallelism, and ordering stays trivial.
	for _, job := range jobs {
		p.processOne(ctx, job, summary)
	}

	p.log.Info().
		Int("processed", summary.Processed).
		Int("sent", summary.Sent).
		Int("failed", summary.Failed).
		Int("retried", summary.Retried).
		Int("skipped", summary.Skipped).
		Int("would_send", summary.WouldSend).
		Dur("duration", time.Since(start)).
		Msg("queue processing completed")
	return summary, nil
}

func (p *Processor) processOne(ctx context.Context, job model.DeliveryJob, summary *Summary) {
	d := job.Delivery
	log := p.log.WithDeliveryID(d.ID)

	if p.opts.DryRun {
		// Dry runs mutate nothing: no claim, no retry budget consumed,
		// so repeated dry runs are idempotent.
		summary.Processed++
		summary.WouldSend++
		log.Info().
			Str("recipient", d.RecipientEmail).
			Str("avatar_request_id", d.AvatarRequestID).
			Msg("dry run: would send delivery")
		return
	}

	claimed, err := p.deliveries.MarkSending(ctx, d.ID)
	if err != nil {
		summary.Skipped++
		log.Error().Err(err).Msg("failed to claim delivery")
		return
	}
	if !claimed {
		// Another run owns it, or the state moved under us. Not an error.
		summary.Skipped++
		log.Debug().Msg("delivery already claimed")
		return
	}

	summary.Processed++

	imageBytes, err := p.resolveAvatar(ctx, job.Avatar)
	if err != nil {
		p.fail(ctx, log, summary, d, model.ErrCodeAssetMissing, err.Error(), true)
		return
	}

	msg, err := p.composer.Render(d.RecipientEmail, email.RenderData{
		Name:            d.RecipientName,
		Superhero:       job.Avatar.Superhero,
		Color:           job.Avatar.Color,
		Car:             job.Avatar.Car,
		AvatarRequestID: d.AvatarRequestID,
	}, imageBytes)
	if err != nil {
		// Template failures are permanent; retrying cannot fix them
		p.fail(ctx, log, summary, d, model.ErrCodeTemplate, err.Error(), true)
		return
	}

	smtpMessageID, err := p.sender.Send(ctx, msg)
	if err != nil {
		code := model.ErrCodeTransientNetwork
		message := err.Error()
		var tErr *email.TransportError
		if errors.As(err, &tErr) {
			code = tErr.Code
			message = tErr.Message
		}
		p.fail(ctx, log, summary, d, code, message, false)
		return
	}

	if err := p.deliveries.MarkSent(ctx, d.ID, smtpMessageID); err != nil {
		// The message went out but the row still says sending. Push it back
		// into the retry path rather than stranding it in a state nothing
		// picks up again; a rare duplicate send beats a lost delivery.
		log.Error().Err(err).Msg("message sent but status update failed")
		p.fail(ctx, log, summary, d, model.ErrCodeTransientNetwork,
			fmt.Sprintf("sent but status update failed: %v", err), false)
		return
	}

	summary.Sent++
	if p.cache != nil {
		if updated, err := p.deliveries.GetByID(ctx, d.ID); err == nil {
			if err := p.cache.Store(ctx, updated); err != nil {
				log.Warn().Err(err).Msg("failed to cache sent delivery")
			}
		}
	}
	log.DeliveryOutcome(d.ID, d.RecipientEmail, "sent", d.RetryCount, "")
}

// resolveAvatar fetches the generated image bytes for a delivery
func (p *Processor) resolveAvatar(ctx context.Context, avatar model.AvatarRequest) ([]byte, error) {
	if !avatar.HasGeneratedImage() {
		return nil, fmt.Errorf("%w: avatar %s has no generated image", storage.ErrAssetMissing, avatar.RequestID)
	}
	return p.artifacts.Resolve(ctx, *avatar.GeneratedImagePath)
}

func (p *Processor) fail(ctx context.Context, log *logger.Logger, summary *Summary, d model.DeliveryRequest, code, message string, terminal bool) {
	if terminal || d.RetryCount+1 >= d.MaxRetries {
		summary.Failed++
	} else {
		summary.Retried++
	}

	if err := p.deliveries.MarkFailed(ctx, d.ID, code, message, terminal); err != nil {
		log.Error().Err(err).Msg("failed to record delivery failure")
		return
	}
	log.DeliveryOutcome(d.ID, d.RecipientEmail, "failed", d.RetryCount+1, code)
}
