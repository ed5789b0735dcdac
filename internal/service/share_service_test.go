package service_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/herogram/herogram/internal/model"
	"github.com/herogram/herogram/internal/service"
)

func newShareFixture(t *testing.T, ttl time.Duration) (*service.ShareService, *fakeArtifactStore) {
	t.Helper()

	avatars := &fakeAvatarStore{avatars: map[string]*model.AvatarRequest{
		"a1": readyAvatar("a1"),
	}}
	artifacts := &fakeArtifactStore{files: map[string][]byte{
		"avatars/a1.png": pngBytes(t, 100, 100),
	}}

	svc, err := service.NewShareService(avatars, artifacts, "test-signing-key", "https://avatars.example.com", ttl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc, artifacts
}

func TestShareService_DownloadURLRoundTrip(t *testing.T) {
	t.Parallel()

	svc, _ := newShareFixture(t, time.Hour)

	url, err := svc.DownloadURL(context.Background(), "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(url, "https://avatars.example.com/api/v1/avatars/a1/download?token=") {
		t.Fatalf("unexpected url: %q", url)
	}

	token := url[strings.Index(url, "token=")+len("token="):]
	subject, err := svc.ValidateToken(token, "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "a1" {
		t.Fatalf("expected subject a1, got %q", subject)
	}
}

func TestShareService_TokenScopedToAvatar(t *testing.T) {
	t.Parallel()

	svc, _ := newShareFixture(t, time.Hour)

	url, err := svc.DownloadURL(context.Background(), "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token := url[strings.Index(url, "token=")+len("token="):]

	if _, err := svc.ValidateToken(token, "other-avatar"); !errors.Is(err, service.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestShareService_ExpiredToken(t *testing.T) {
	t.Parallel()

	svc, _ := newShareFixture(t, -time.Minute)

	url, err := svc.DownloadURL(context.Background(), "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token := url[strings.Index(url, "token=")+len("token="):]

	if _, err := svc.ValidateToken(token, "a1"); !errors.Is(err, service.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestShareService_GarbageToken(t *testing.T) {
	t.Parallel()

	svc, _ := newShareFixture(t, time.Hour)

	if _, err := svc.ValidateToken("not.a.token", "a1"); !errors.Is(err, service.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestShareService_QRCodeIsPNG(t *testing.T) {
	t.Parallel()

	svc, _ := newShareFixture(t, time.Hour)

	png, err := svc.QRCode(context.Background(), "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatal("expected PNG magic bytes")
	}
}

func TestShareService_RefusesUnfinishedAvatar(t *testing.T) {
	t.Parallel()

	avatars := &fakeAvatarStore{avatars: map[string]*model.AvatarRequest{
		"a2": {RequestID: "a2", Status: model.AvatarStatusPending},
	}}
	svc, err := service.NewShareService(avatars, &fakeArtifactStore{}, "key", "https://example.com", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.DownloadURL(context.Background(), "a2"); !errors.Is(err, service.ErrAvatarNotReady) {
		t.Fatalf("expected ErrAvatarNotReady, got %v", err)
	}
	if _, err := svc.QRCode(context.Background(), "a2"); !errors.Is(err, service.ErrAvatarNotReady) {
		t.Fatalf("expected ErrAvatarNotReady, got %v", err)
	}
}
