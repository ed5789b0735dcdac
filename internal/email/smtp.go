package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"time"

	"github.com/herogram/herogram/internal/config"
)

// SMTPSender implements Sender over an authenticated SMTP relay session.
// A fresh session is opened per call; delivery is batched at multi-minute
// intervals, so connection reuse buys nothing. TLS is negotiated via
// STARTTLS before credentials are sent.
type SMTPSender struct {
	cfg config.EmailConfig
}

// NewSMTPSender creates a new SMTPSender
func NewSMTPSender(cfg config.EmailConfig) (*SMTPSender, error) {
	if cfg.SMTP.Host == "" {
		return nil, fmt.Errorf("smtp: host is required")
	}
	if cfg.SMTP.Login == "" || cfg.SMTP.Password == "" {
		return nil, fmt.Errorf("smtp: login and password are required")
	}
	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("smtp: from address is required")
	}
	return &SMTPSender{cfg: cfg}, nil
}

// Send delivers the message and returns its Message-ID on success
func (s *SMTPSender) Send(ctx context.Context, msg *Message) (string, error) {
	timeout := s.cfg.SMTP.SendTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	from := (&mail.Address{Name: s.cfg.FromName, Address: s.cfg.FromAddress}).String()
	replyTo := s.cfg.ReplyTo
	if replyTo == "" {
		replyTo = s.cfg.FromAddress
	}

	raw, err := msg.Bytes(from, replyTo)
	if err != nil {
		return "", fmt.Errorf("failed to serialize message: %w", err)
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.cfg.SMTP.Addr())
	if err != nil {
		return "", classify(err)
	}
	// One deadline bounds the whole session so a stalled recipient
	// connection cannot hold up the rest of the batch.
	_ = conn.SetDeadline(time.Now().Add(timeout))

	client, err := smtp.NewClient(conn, s.cfg.SMTP.Host)
	if err != nil {
		_ = conn.Close()
		return "", classify(err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); !ok {
		// Never send credentials over plaintext
		return "", &TransportError{Code: CodeTransientNetwork, Message: "server does not offer STARTTLS"}
	}
	if err := client.StartTLS(&tls.Config{ServerName: s.cfg.SMTP.Host}); err != nil {
		return "", classify(err)
	}

	auth := smtp.PlainAuth("", s.cfg.SMTP.Login, s.cfg.SMTP.Password, s.cfg.SMTP.Host)
	if err := client.Auth(auth); err != nil {
		return "", classifyAuth(err)
	}

	if err := client.Mail(s.cfg.FromAddress); err != nil {
		return "", classify(err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return "", classifyRcpt(err)
	}

	w, err := client.Data()
	if err != nil {
		return "", classify(err)
	}
	if _, err := w.Write(raw); err != nil {
		return "", classify(err)
	}
	if err := w.Close(); err != nil {
		return "", classify(err)
	}

	_ = client.Quit()
	return msg.MessageID, nil
}

// classify maps an SMTP-phase error onto the closed transport taxonomy
func classify(err error) *TransportError {
	if tpErr, ok := err.(*textproto.Error); ok {
		switch tpErr.Code {
		case 530, 534, 535, 538:
			return &TransportError{Code: CodeAuthFailure, Message: tpErr.Msg}
		case 450, 452:
			return &TransportError{Code: CodeRateLimited, Message: tpErr.Msg}
		case 550, 551, 553:
			return &TransportError{Code: CodeRecipientRejected, Message: tpErr.Msg}
		}
		return &TransportError{Code: CodeTransientNetwork, Message: tpErr.Msg}
	}
	return &TransportError{Code: CodeTransientNetwork, Message: err.Error()}
}

// classifyAuth treats any server rejection during AUTH as an auth failure
func classifyAuth(err error) *TransportError {
	if tpErr, ok := err.(*textproto.Error); ok {
		return &TransportError{Code: CodeAuthFailure, Message: tpErr.Msg}
	}
	return classify(err)
}

// classifyRcpt treats permanent rejections of the RCPT command as a bad
// recipient; transient codes keep their usual meaning
func classifyRcpt(err error) *TransportError {
	if tpErr, ok := err.(*textproto.Error); ok && tpErr.Code >= 500 {
		return &TransportError{Code: CodeRecipientRejected, Message: tpErr.Msg}
	}
	return classify(err)
}
