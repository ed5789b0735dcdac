package email

import (
	"context"
	"fmt"

	"github.com/herogram/herogram/internal/config"
)

// NewSender builds the configured transport
func NewSender(ctx context.Context, cfg config.EmailConfig) (Sender, error) {
	switch cfg.Provider {
	case "smtp", "":
		return NewSMTPSender(cfg)
	case "gmail":
		if cfg.Gmail.CredentialsJSON != "" {
			return NewGmailSender(ctx, cfg.Gmail.CredentialsJSON, cfg.FromAddress, cfg.FromName, cfg.ReplyTo)
		}
		return NewGmailSenderWithToken(ctx, cfg.Gmail.ClientID, cfg.Gmail.ClientSecret, cfg.Gmail.RefreshToken, cfg.FromAddress, cfg.FromName, cfg.ReplyTo)
	default:
		return nil, fmt.Errorf("unknown email provider: %q", cfg.Provider)
	}
}
