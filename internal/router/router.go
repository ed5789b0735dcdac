package router

import (
	"net/http"
	"time"

	"github.com/herogram/herogram/internal/config"
	"github.com/herogram/herogram/internal/handler"
	"github.com/herogram/herogram/internal/logger"
	"github.com/herogram/herogram/internal/middleware"
)

// New creates and configures the HTTP router
func New(h *handler.Handler, mw *middleware.Middleware, log *logger.Logger, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoints
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)

	// API v1 routes
	mux.HandleFunc("GET /api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"Herogram API v1","version":"0.1.0"}`))
	})

	// Rate limits for public endpoints
	enqueueLimit, lookupLimit := rateLimitSettings(cfg)
	enqueueRateLimit := mw.RateLimit(enqueueLimit)
	lookupRateLimit := mw.RateLimit(lookupLimit)

	// Avatar request lifecycle
	mux.Handle("POST /api/v1/avatars", enqueueRateLimit(http.HandlerFunc(h.CreateAvatar)))
	mux.Handle("GET /api/v1/avatars/{id}", lookupRateLimit(http.HandlerFunc(h.GetAvatar)))
	mux.Handle("POST /api/v1/avatars/{id}/complete", http.HandlerFunc(h.CompleteAvatar))

	// Email delivery queue
	mux.Handle("POST /api/v1/deliveries", enqueueRateLimit(http.HandlerFunc(h.EnqueueDelivery)))
	mux.Handle("GET /api/v1/deliveries/stats", http.HandlerFunc(h.DeliveryStats))
	mux.Handle("GET /api/v1/deliveries/{id}", lookupRateLimit(http.HandlerFunc(h.GetDelivery)))

	// QR share links
	mux.Handle("GET /api/v1/avatars/{id}/qr", lookupRateLimit(http.HandlerFunc(h.AvatarQR)))
	mux.Handle("GET /api/v1/avatars/{id}/download", lookupRateLimit(http.HandlerFunc(h.DownloadAvatar)))

	// Apply middleware stack
	var handler http.Handler = mux

	// Security headers
	handler = mw.SecurityHeaders(handler)

	// Request logging
	handler = mw.Logger(handler)

	// Timing
	handler = mw.Timing(handler)

	// Request ID
	handler = mw.RequestID(handler)

	// Panic recovery (outermost)
	handler = mw.Recover(handler)

	return handler
}

// rateLimitSettings derives the per-minute limits for the write-heavy
// enqueue endpoints and the read-only lookup endpoints from configuration,
// falling back to the defaults for unset or invalid values.
func rateLimitSettings(cfg *config.Config) (enqueue, lookup middleware.RateLimitConfig) {
	enqueuePerMinute := cfg.RateLimit.EnqueuePerMinute
	if enqueuePerMinute <= 0 {
		enqueuePerMinute = 30
	}
	lookupPerMinute := cfg.RateLimit.LookupPerMinute
	if lookupPerMinute <= 0 {
		lookupPerMinute = 120
	}

	enqueue = middleware.RateLimitConfig{
		Limit:  enqueuePerMinute,
		Window: 1 * time.Minute,
		KeyFn:  middleware.IPKey,
	}
	lookup = middleware.RateLimitConfig{
		Limit:  lookupPerMinute,
		Window: 1 * time.Minute,
		KeyFn:  middleware.IPKey,
	}
	return enqueue, lookup
}
