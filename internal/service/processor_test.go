package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/herogram/herogram/internal/email"
	"github.com/herogram/herogram/internal/logger"
	"github.com/herogram/herogram/internal/model"
	"github.com/herogram/herogram/internal/service"
	"github.com/herogram/herogram/internal/storage"
)

func testLogger() *logger.Logger {
	return logger.New("disabled", "json")
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))); err != nil {
		t.Fatalf("failed to encode test png: %v", err)
	}
	return buf.Bytes()
}

type recordedFailure struct {
	id       string
	code     string
	message  string
	terminal bool
}

// fakeDeliveryStore implements service.DeliveryStore in memory
type fakeDeliveryStore struct {
	jobs        []model.DeliveryJob
	fetchErr    error
	markSentErr error

	denyClaim map[string]bool

	claims   []string
	sent     map[string]string
	failures []recordedFailure
}

func newFakeDeliveryStore(jobs ...model.DeliveryJob) *fakeDeliveryStore {
	return &fakeDeliveryStore{
		jobs:      jobs,
		denyClaim: map[string]bool{},
		sent:      map[string]string{},
	}
}

func (f *fakeDeliveryStore) Create(ctx context.Context, avatarRequestID, recipientEmail, recipientName string) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeDeliveryStore) GetByID(ctx context.Context, id string) (*model.DeliveryRequest, error) {
	for _, job := range f.jobs {
		if job.Delivery.ID == id {
			d := job.Delivery
			if msgID, ok := f.sent[id]; ok {
				d.Status = model.DeliveryStatusSent
				d.SMTPMessageID = &msgID
			}
			return &d, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeDeliveryStore) FetchEligible(ctx context.Context, batchSize int, now time.Time) ([]model.DeliveryJob, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if len(f.jobs) > batchSize {
		return f.jobs[:batchSize], nil
	}
	return f.jobs, nil
}

func (f *fakeDeliveryStore) MarkSending(ctx context.Context, id string) (bool, error) {
	if f.denyClaim[id] {
		return false, nil
	}
	f.claims = append(f.claims, id)
	return true, nil
}

func (f *fakeDeliveryStore) MarkSent(ctx context.Context, id string, smtpMessageID string) error {
	if f.markSentErr != nil {
		return f.markSentErr
	}
	f.sent[id] = smtpMessageID
	return nil
}

func (f *fakeDeliveryStore) MarkFailed(ctx context.Context, id string, errorCode, errorMessage string, terminal bool) error {
	f.failures = append(f.failures, recordedFailure{id: id, code: errorCode, message: errorMessage, terminal: terminal})
	return nil
}

func (f *fakeDeliveryStore) Stats(ctx context.Context) (*model.DeliveryStats, error) {
	return &model.DeliveryStats{}, nil
}

// fakeArtifactStore serves avatar bytes from a map
type fakeArtifactStore struct {
	files map[string][]byte
}

func (f *fakeArtifactStore) Resolve(ctx context.Context, path string) ([]byte, error) {
	data, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrAssetMissing, path)
	}
	return data, nil
}

func (f *fakeArtifactStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	if f.files == nil {
		f.files = map[string][]byte{}
	}
	f.files[name] = data
	return name, nil
}

// fakeSender records send attempts
type fakeSender struct {
	err   error
	calls int
}

func (f *fakeSender) Send(ctx context.Context, msg *email.Message) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "smtp-msg-1", nil
}

func testJob(id, imagePath string) model.DeliveryJob {
	job := model.DeliveryJob{
		Delivery: model.DeliveryRequest{
			ID:              id,
			AvatarRequestID: "avatar-" + id,
			RecipientEmail:  "kid@example.com",
			RecipientName:   "Alex",
			Status:          model.DeliveryStatusPending,
			MaxRetries:      3,
			RequestedAt:     time.Now().UTC(),
		},
		Avatar: model.AvatarRequest{
			RequestID: "avatar-" + id,
			Name:      "Alex",
			Email:     "kid@example.com",
			Superhero: "Thunderbolt",
			Car:       "Lightning Roadster",
			Color:     "electric blue",
			Status:    model.AvatarStatusCompleted,
		},
	}
	if imagePath != "" {
		job.Avatar.GeneratedImagePath = &imagePath
	}
	return job
}

func newTestProcessor(store *fakeDeliveryStore, artifacts *fakeArtifactStore, sender email.Sender, opts service.ProcessorOptions) *service.Processor {
	return service.NewProcessor(store, artifacts, email.NewComposer("", "", ""), sender, nil, testLogger(), opts)
}

func TestProcessor_SendsEligibleDelivery(t *testing.T) {
	t.Parallel()

	store := newFakeDeliveryStore(testJob("d1", "avatars/d1.png"))
	artifacts := &fakeArtifactStore{files: map[string][]byte{"avatars/d1.png": pngBytes(t, 100, 100)}}
	sender := &fakeSender{}

	p := newTestProcessor(store, artifacts, sender, service.ProcessorOptions{BatchSize: 10})
	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Sent != 1 || summary.Processed != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if sender.calls != 1 {
		t.Fatalf("expected 1 send, got %d", sender.calls)
	}
	if store.sent["d1"] != "smtp-msg-1" {
		t.Fatalf("expected message id recorded, got %q", store.sent["d1"])
	}
	if len(store.claims) != 1 || store.claims[0] != "d1" {
		t.Fatalf("expected claim of d1, got %+v", store.claims)
	}
}

func TestProcessor_TransportErrorSchedulesRetry(t *testing.T) {
	t.Parallel()

	store := newFakeDeliveryStore(testJob("d1", "avatars/d1.png"))
	artifacts := &fakeArtifactStore{files: map[string][]byte{"avatars/d1.png": pngBytes(t, 100, 100)}}
	sender := &fakeSender{err: &email.TransportError{Code: email.CodeRateLimited, Message: "too many"}}

	p := newTestProcessor(store, artifacts, sender, service.ProcessorOptions{BatchSize: 10})
	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Retried != 1 || summary.Failed != 0 || summary.Sent != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(store.failures) != 1 {
		t.Fatalf("expected 1 failure, got %+v", store.failures)
	}
	f := store.failures[0]
	if f.code != model.ErrCodeRateLimited {
		t.Fatalf("expected code %q, got %q", model.ErrCodeRateLimited, f.code)
	}
	if f.terminal {
		t.Fatal("transport failures must not be terminal")
	}
}

func TestProcessor_UnclassifiedSendErrorIsTransient(t *testing.T) {
	t.Parallel()

	store := newFakeDeliveryStore(testJob("d1", "avatars/d1.png"))
	artifacts := &fakeArtifactStore{files: map[string][]byte{"avatars/d1.png": pngBytes(t, 100, 100)}}
	sender := &fakeSender{err: errors.New("connection reset")}

	p := newTestProcessor(store, artifacts, sender, service.ProcessorOptions{BatchSize: 10})
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.failures) != 1 || store.failures[0].code != model.ErrCodeTransientNetwork {
		t.Fatalf("expected transient_network failure, got %+v", store.failures)
	}
}

func TestProcessor_MissingAssetIsTerminal(t *testing.T) {
	t.Parallel()

	// No generated image recorded at all
	noPath := testJob("d1", "")
	// Path recorded but the file is gone
	gonePath := testJob("d2", "avatars/vanished.png")

	store := newFakeDeliveryStore(noPath, gonePath)
	artifacts := &fakeArtifactStore{}
	sender := &fakeSender{}

	p := newTestProcessor(store, artifacts, sender, service.ProcessorOptions{BatchSize: 10})
	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Failed != 2 {
		t.Fatalf("expected 2 failures, got %+v", summary)
	}
	if sender.calls != 0 {
		t.Fatalf("expected no send attempts, got %d", sender.calls)
	}
	for _, f := range store.failures {
		if f.code != model.ErrCodeAssetMissing {
			t.Fatalf("expected asset_missing, got %q", f.code)
		}
		if !f.terminal {
			t.Fatalf("missing asset failure for %s must be terminal", f.id)
		}
	}
}

func TestProcessor_TemplateFailureIsTerminal(t *testing.T) {
	t.Parallel()

	job := testJob("d1", "avatars/d1.png")
	job.Avatar.Superhero = ""

	store := newFakeDeliveryStore(job)
	artifacts := &fakeArtifactStore{files: map[string][]byte{"avatars/d1.png": pngBytes(t, 100, 100)}}
	sender := &fakeSender{}

	p := newTestProcessor(store, artifacts, sender, service.ProcessorOptions{BatchSize: 10})
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sender.calls != 0 {
		t.Fatalf("expected no send attempts, got %d", sender.calls)
	}
	if len(store.failures) != 1 {
		t.Fatalf("expected 1 failure, got %+v", store.failures)
	}
	f := store.failures[0]
	if f.code != model.ErrCodeTemplate || !f.terminal {
		t.Fatalf("expected terminal template_error, got %+v", f)
	}
}

func TestProcessor_ExhaustedBudgetCountsAsFailed(t *testing.T) {
	t.Parallel()

	// Third attempt of three: a transport error here exhausts the budget,
	// so the summary reports it failed rather than retried.
	job := testJob("d1", "avatars/d1.png")
	job.Delivery.RetryCount = 2

	store := newFakeDeliveryStore(job)
	artifacts := &fakeArtifactStore{files: map[string][]byte{"avatars/d1.png": pngBytes(t, 100, 100)}}
	sender := &fakeSender{err: &email.TransportError{Code: email.CodeTransientNetwork, Message: "timeout"}}

	p := newTestProcessor(store, artifacts, sender, service.ProcessorOptions{BatchSize: 10})
	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Failed != 1 || summary.Retried != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestProcessor_MarkSentFailureReschedules(t *testing.T) {
	t.Parallel()

	store := newFakeDeliveryStore(testJob("d1", "avatars/d1.png"))
	store.markSentErr = errors.New("connection lost")
	artifacts := &fakeArtifactStore{files: map[string][]byte{"avatars/d1.png": pngBytes(t, 100, 100)}}
	sender := &fakeSender{}

	p := newTestProcessor(store, artifacts, sender, service.ProcessorOptions{BatchSize: 10})
	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The send went out but the status update was lost. The row must go back
	// through MarkFailed so it stays reachable by the eligibility scan,
	// rather than sitting in sending forever.
	if sender.calls != 1 {
		t.Fatalf("expected 1 send, got %d", sender.calls)
	}
	if summary.Sent != 0 || summary.Retried != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(store.failures) != 1 {
		t.Fatalf("expected the delivery rescheduled via MarkFailed, got %+v", store.failures)
	}
	f := store.failures[0]
	if f.id != "d1" || f.code != model.ErrCodeTransientNetwork || f.terminal {
		t.Fatalf("expected non-terminal transient_network reschedule, got %+v", f)
	}
}

func TestProcessor_ClaimMissIsSkipped(t *testing.T) {
	t.Parallel()

	store := newFakeDeliveryStore(testJob("d1", "avatars/d1.png"), testJob("d2", "avatars/d2.png"))
	store.denyClaim["d1"] = true
	artifacts := &fakeArtifactStore{files: map[string][]byte{
		"avatars/d1.png": pngBytes(t, 100, 100),
		"avatars/d2.png": pngBytes(t, 100, 100),
	}}
	sender := &fakeSender{}

	p := newTestProcessor(store, artifacts, sender, service.ProcessorOptions{BatchSize: 10})
	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Skipped != 1 || summary.Sent != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if sender.calls != 1 {
		t.Fatalf("expected exactly one send, got %d", sender.calls)
	}
}

func TestProcessor_DryRunMutatesNothing(t *testing.T) {
	t.Parallel()

	store := newFakeDeliveryStore(testJob("d1", "avatars/d1.png"))
	artifacts := &fakeArtifactStore{files: map[string][]byte{"avatars/d1.png": pngBytes(t, 100, 100)}}
	sender := &fakeSender{}

	p := newTestProcessor(store, artifacts, sender, service.ProcessorOptions{BatchSize: 10, DryRun: true})

	// Two passes; a dry run must be repeatable with identical results
	for i := 0; i < 2; i++ {
		summary, err := p.Run(context.Background())
		if err != nil {
			t.Fatalf("unexpected error on pass %d: %v", i, err)
		}
		if summary.WouldSend != 1 || summary.Sent != 0 {
			t.Fatalf("pass %d: unexpected summary: %+v", i, summary)
		}
	}

	if sender.calls != 0 {
		t.Fatalf("dry run must not send, got %d calls", sender.calls)
	}
	if len(store.claims) != 0 || len(store.sent) != 0 || len(store.failures) != 0 {
		t.Fatalf("dry run must not mutate: claims=%v sent=%v failures=%v",
			store.claims, store.sent, store.failures)
	}
}

func TestProcessor_BatchSizeLimitsClaims(t *testing.T) {
	t.Parallel()

	var jobs []model.DeliveryJob
	files := map[string][]byte{}
	img := pngBytes(t, 50, 50)
	for i := 0; i < 60; i++ {
		id := fmt.Sprintf("d%02d", i)
		path := "avatars/" + id + ".png"
		jobs = append(jobs, testJob(id, path))
		files[path] = img
	}

	store := newFakeDeliveryStore(jobs...)
	artifacts := &fakeArtifactStore{files: files}
	sender := &fakeSender{}

	p := newTestProcessor(store, artifacts, sender, service.ProcessorOptions{BatchSize: 50})
	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Sent != 50 {
		t.Fatalf("expected 50 sent, got %+v", summary)
	}
	if sender.calls != 50 {
		t.Fatalf("expected 50 sends, got %d", sender.calls)
	}
}

func TestProcessor_FetchErrorAbortsRun(t *testing.T) {
	t.Parallel()

	store := newFakeDeliveryStore()
	store.fetchErr = errors.New("connection refused")

	p := newTestProcessor(store, &fakeArtifactStore{}, &fakeSender{}, service.ProcessorOptions{BatchSize: 10})
	if _, err := p.Run(context.Background()); err == nil {
		t.Fatal("expected an error when the store is unreachable")
	}
}
