package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/skip2/go-qrcode"

	"github.com/herogram/herogram/internal/model"
	"github.com/herogram/herogram/internal/storage"
)

// Share token errors
var (
	ErrTokenInvalid = errors.New("download token is invalid")
	ErrTokenExpired = errors.New("download token has expired")
)

const qrImageSize = 512

// ShareService issues signed avatar download links and renders them as QR
// codes for on-site kiosks. Tokens are HS256 JWTs scoped to one avatar
// request, so a leaked link exposes only that single image.
type ShareService struct {
	avatars    AvatarStore
	artifacts  storage.Store
	signingKey []byte
	baseURL    string
	tokenTTL   time.Duration
}

// NewShareService creates a new ShareService
func NewShareService(avatars AvatarStore, artifacts storage.Store, signingKey, baseURL string, tokenTTL time.Duration) (*ShareService, error) {
	if signingKey == "" {
		return nil, errors.New("share signing key is required")
	}
	if baseURL == "" {
		return nil, errors.New("share base URL is required")
	}
	return &ShareService{
		avatars:    avatars,
		artifacts:  artifacts,
		signingKey: []byte(signingKey),
		baseURL:    baseURL,
		tokenTTL:   tokenTTL,
	}, nil
}

// DownloadURL returns a signed, time-limited download link for the avatar
func (s *ShareService) DownloadURL(ctx context.Context, avatarRequestID string) (string, error) {
	avatar, err := s.avatars.GetByID(ctx, avatarRequestID)
	if err != nil {
		return "", err
	}
	if !avatar.HasGeneratedImage() {
		return "", ErrAvatarNotReady
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   avatar.RequestID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign download token: %w", err)
	}

	return fmt.Sprintf("%s/api/v1/avatars/%s/download?token=%s", s.baseURL, avatar.RequestID, token), nil
}

// ValidateToken checks the token signature and expiry and returns the avatar
// request ID it was issued for. The avatarRequestID argument must match the
// token subject.
func (s *ShareService) ValidateToken(tokenString, avatarRequestID string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", ErrTokenInvalid
	}
	if claims.Subject != avatarRequestID {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}

// QRCode renders the signed download link as a PNG QR code
func (s *ShareService) QRCode(ctx context.Context, avatarRequestID string) ([]byte, error) {
	url, err := s.DownloadURL(ctx, avatarRequestID)
	if err != nil {
		return nil, err
	}

	png, err := qrcode.Encode(url, qrcode.High, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}
	return png, nil
}

// AvatarImage returns the generated image bytes for a validated download
func (s *ShareService) AvatarImage(ctx context.Context, avatarRequestID string) ([]byte, *model.AvatarRequest, error) {
	avatar, err := s.avatars.GetByID(ctx, avatarRequestID)
	if err != nil {
		return nil, nil, err
	}
	if !avatar.HasGeneratedImage() {
		return nil, nil, ErrAvatarNotReady
	}

	data, err := s.artifacts.Resolve(ctx, *avatar.GeneratedImagePath)
	if err != nil {
		return nil, nil, err
	}
	return data, avatar, nil
}
