package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/herogram/herogram/internal/config"
	"github.com/herogram/herogram/internal/handler"
	"github.com/herogram/herogram/internal/logger"
	"github.com/herogram/herogram/internal/model"
	"github.com/herogram/herogram/internal/repository"
	"github.com/herogram/herogram/internal/service"
)

type stubDeliveryStore struct {
	deliveries map[string]*model.DeliveryRequest
	created    []string
}

func (s *stubDeliveryStore) Create(ctx context.Context, avatarRequestID, recipientEmail, recipientName string) (string, error) {
	s.created = append(s.created, avatarRequestID)
	return "delivery-1", nil
}

func (s *stubDeliveryStore) GetByID(ctx context.Context, id string) (*model.DeliveryRequest, error) {
	d, ok := s.deliveries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return d, nil
}

func (s *stubDeliveryStore) FetchEligible(ctx context.Context, batchSize int, now time.Time) ([]model.DeliveryJob, error) {
	return nil, nil
}

func (s *stubDeliveryStore) MarkSending(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func (s *stubDeliveryStore) MarkSent(ctx context.Context, id string, smtpMessageID string) error {
	return nil
}

func (s *stubDeliveryStore) MarkFailed(ctx context.Context, id string, errorCode, errorMessage string, terminal bool) error {
	return nil
}

func (s *stubDeliveryStore) Stats(ctx context.Context) (*model.DeliveryStats, error) {
	return &model.DeliveryStats{Total: 4, Sent: 3, Failed: 1, SuccessRate: 75}, nil
}

type stubAvatarStore struct {
	avatars map[string]*model.AvatarRequest
}

func (s *stubAvatarStore) Create(ctx context.Context, req *model.AvatarRequest) error {
	return nil
}

func (s *stubAvatarStore) GetByID(ctx context.Context, id string) (*model.AvatarRequest, error) {
	a, ok := s.avatars[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

func (s *stubAvatarStore) UpdateGeneration(ctx context.Context, id string, status model.AvatarStatus, generatedImagePath string, generationSeconds int, errorMessage string) error {
	return nil
}

func (s *stubAvatarStore) MarkEmailRequested(ctx context.Context, id string, at time.Time) error {
	return nil
}

func newTestHandler(deliveries *stubDeliveryStore, avatars *stubAvatarStore) *handler.Handler {
	log := logger.New("disabled", "json")
	deliverySvc := service.NewDeliveryService(deliveries, avatars, nil, log)
	avatarSvc := service.NewAvatarService(avatars, log)
	return handler.New(nil, nil, log, &config.Config{}, avatarSvc, deliverySvc, nil)
}

func readyStubAvatar(id string) *model.AvatarRequest {
	path := "avatars/" + id + ".png"
	return &model.AvatarRequest{
		RequestID:          id,
		Status:             model.AvatarStatusCompleted,
		GeneratedImagePath: &path,
	}
}

func TestEnqueueDelivery_Accepted(t *testing.T) {
	t.Parallel()

	deliveries := &stubDeliveryStore{}
	avatars := &stubAvatarStore{avatars: map[string]*model.AvatarRequest{"a1": readyStubAvatar("a1")}}
	h := newTestHandler(deliveries, avatars)

	body := `{"avatar_request_id":"a1","recipient_email":"kid@example.com","recipient_name":"Alex"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/deliveries", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.EnqueueDelivery(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if resp["delivery_id"] != "delivery-1" || resp["status"] != "pending" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(deliveries.created) != 1 {
		t.Fatalf("expected 1 created delivery, got %d", len(deliveries.created))
	}
}

func TestEnqueueDelivery_ValidationErrors(t *testing.T) {
	t.Parallel()

	avatars := &stubAvatarStore{avatars: map[string]*model.AvatarRequest{"a1": readyStubAvatar("a1")}}

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"bad email", `{"avatar_request_id":"a1","recipient_email":"nope","recipient_name":"Alex"}`, http.StatusBadRequest},
		{"missing name", `{"avatar_request_id":"a1","recipient_email":"kid@example.com","recipient_name":""}`, http.StatusBadRequest},
		{"unknown avatar", `{"avatar_request_id":"zz","recipient_email":"kid@example.com","recipient_name":"Alex"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deliveries := &stubDeliveryStore{}
			h := newTestHandler(deliveries, avatars)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/deliveries", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.EnqueueDelivery(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if len(deliveries.created) != 0 {
				t.Fatal("rejected request must not create a delivery")
			}
		})
	}
}

func TestGetDelivery(t *testing.T) {
	t.Parallel()

	deliveries := &stubDeliveryStore{deliveries: map[string]*model.DeliveryRequest{
		"d1": {ID: "d1", Status: model.DeliveryStatusSent, RetryCount: 1, MaxRetries: 3},
	}}
	h := newTestHandler(deliveries, &stubAvatarStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deliveries/d1", nil)
	req.SetPathValue("id", "d1")
	rec := httptest.NewRecorder()

	h.GetDelivery(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var d model.DeliveryRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if d.ID != "d1" || d.Status != model.DeliveryStatusSent {
		t.Fatalf("unexpected delivery: %+v", d)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/deliveries/nope", nil)
	req.SetPathValue("id", "nope")
	rec = httptest.NewRecorder()

	h.GetDelivery(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDeliveryStats(t *testing.T) {
	t.Parallel()

	h := newTestHandler(&stubDeliveryStore{}, &stubAvatarStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deliveries/stats", nil)
	rec := httptest.NewRecorder()

	h.DeliveryStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats model.DeliveryStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if stats.Total != 4 || stats.SuccessRate != 75 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
