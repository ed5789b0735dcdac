package email

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GmailSender implements Sender using the Gmail API. It is the alternative
// transport for deployments without an SMTP relay account.
type GmailSender struct {
	service     *gmail.Service
	fromAddress string
	fromName    string
	replyTo     string
}

// NewGmailSender creates a GmailSender from service account credentials JSON
// with domain-wide delegation, impersonating the sender mailbox.
func NewGmailSender(ctx context.Context, credentialsJSON, fromAddress, fromName, replyTo string) (*GmailSender, error) {
	if credentialsJSON == "" {
		return nil, fmt.Errorf("gmail: credentials JSON is required")
	}
	if fromAddress == "" {
		return nil, fmt.Errorf("gmail: from address is required")
	}

	jwtConfig, err := google.JWTConfigFromJSON([]byte(credentialsJSON), gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("gmail: failed to parse credentials: %w", err)
	}
	jwtConfig.Subject = fromAddress

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("gmail: failed to create service: %w", err)
	}

	return &GmailSender{
		service:     svc,
		fromAddress: fromAddress,
		fromName:    fromName,
		replyTo:     replyTo,
	}, nil
}

// NewGmailSenderWithToken creates a GmailSender using OAuth2 client
// credentials plus a refresh token. Useful for mailboxes without
// domain-wide delegation.
func NewGmailSenderWithToken(ctx context.Context, clientID, clientSecret, refreshToken, fromAddress, fromName, replyTo string) (*GmailSender, error) {
	if fromAddress == "" {
		return nil, fmt.Errorf("gmail: from address is required")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailSendScope},
	}
	token := &oauth2.Token{RefreshToken: refreshToken}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("gmail: failed to create service: %w", err)
	}

	return &GmailSender{
		service:     svc,
		fromAddress: fromAddress,
		fromName:    fromName,
		replyTo:     replyTo,
	}, nil
}

// Send uploads the serialized message via the Gmail API
func (g *GmailSender) Send(ctx context.Context, msg *Message) (string, error) {
	from := (&mail.Address{Name: g.fromName, Address: g.fromAddress}).String()
	replyTo := g.replyTo
	if replyTo == "" {
		replyTo = g.fromAddress
	}

	raw, err := msg.Bytes(from, replyTo)
	if err != nil {
		return "", fmt.Errorf("failed to serialize message: %w", err)
	}

	gmailMsg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}

	sent, err := g.service.Users.Messages.Send("me", gmailMsg).Context(ctx).Do()
	if err != nil {
		return "", classifyGmail(err)
	}

	if sent.Id != "" {
		return sent.Id, nil
	}
	return msg.MessageID, nil
}

// classifyGmail maps Gmail API errors onto the transport taxonomy
func classifyGmail(err error) *TransportError {
	if apiErr, ok := err.(*googleapi.Error); ok {
		switch {
		case apiErr.Code == 401 || apiErr.Code == 403:
			return &TransportError{Code: CodeAuthFailure, Message: apiErr.Message}
		case apiErr.Code == 429:
			return &TransportError{Code: CodeRateLimited, Message: apiErr.Message}
		case apiErr.Code == 400:
			return &TransportError{Code: CodeRecipientRejected, Message: apiErr.Message}
		}
	}
	return &TransportError{Code: CodeTransientNetwork, Message: err.Error()}
}
