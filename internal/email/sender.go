package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"time"
)

// Sender is the interface that all email transports must implement.
// This abstraction allows swapping transports (SMTP relay, Gmail API, etc.)
// without changing the queue processor.
type Sender interface {
	// Send delivers one composed message and returns the transport message ID.
	// Failures are reported as *TransportError so callers can classify them.
	Send(ctx context.Context, msg *Message) (string, error)
}

// Transport error codes. recipient_rejected and auth_failure will not be
// cured by retrying; transient_network and rate_limited are the retry targets.
const (
	CodeAuthFailure       = "auth_failure"
	CodeRecipientRejected = "recipient_rejected"
	CodeRateLimited       = "rate_limited"
	CodeTransientNetwork  = "transient_network"
)

// TransportError is a classified transport failure. It is assigned exactly
// once at the transport boundary and never re-interpreted downstream.
type TransportError struct {
	Code    string
	Message string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (%s): %s", e.Code, e.Message)
}

// Message represents a fully composed avatar email ready for a transport.
type Message struct {
	To        string // recipient email address
	ToName    string // recipient display name
	Subject   string // email subject
	HTMLBody  string // HTML email body, inline image referenced by cid
	TextBody  string // plain-text fallback body
	Image     []byte // avatar PNG, embedded inline and attached for download
	ImageCID  string // content ID the HTML body references
	MessageID string // RFC 5322 Message-ID, set by the composer

	// AvatarRequestID is carried in a tracking header
	AvatarRequestID string
}

const attachmentFilename = "superhero_avatar.png"

// Bytes serializes the message to RFC 5322 form: a multipart/related
// envelope holding a text/html alternative pair plus the avatar image twice
// from the same buffer, once inline by content ID and once as a named
// attachment.
func (m *Message) Bytes(from, replyTo string) ([]byte, error) {
	var buf bytes.Buffer

	related := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", m.To)
	if replyTo != "" {
		fmt.Fprintf(&buf, "Reply-To: %s\r\n", replyTo)
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", m.Subject)
	fmt.Fprintf(&buf, "Message-ID: %s\r\n", m.MessageID)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	if m.AvatarRequestID != "" {
		fmt.Fprintf(&buf, "X-Avatar-Request-ID: %s\r\n", m.AvatarRequestID)
	}
	fmt.Fprintf(&buf, "X-Mailer: Herogram Avatar Generator\r\n")
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/related; boundary=%s\r\n\r\n", related.Boundary())

	// Alternative pair: plain text first, HTML last (preferred)
	altBuf := &bytes.Buffer{}
	alt := multipart.NewWriter(altBuf)

	textPart, err := alt.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=UTF-8"},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create text part: %w", err)
	}
	fmt.Fprintf(textPart, "%s\r\n", m.TextBody)

	htmlPart, err := alt.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/html; charset=UTF-8"},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create html part: %w", err)
	}
	fmt.Fprintf(htmlPart, "%s\r\n", m.HTMLBody)

	if err := alt.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish alternative part: %w", err)
	}

	altPart, err := related.CreatePart(textproto.MIMEHeader{
		"Content-Type": {fmt.Sprintf("multipart/alternative; boundary=%s", alt.Boundary())},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create alternative container: %w", err)
	}
	if _, err := altPart.Write(altBuf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to write alternative container: %w", err)
	}

	encoded := encodeBase64Wrapped(m.Image)

	// Inline copy for the HTML body
	inline, err := related.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"image/png"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-ID":                {fmt.Sprintf("<%s>", m.ImageCID)},
		"Content-Disposition":       {fmt.Sprintf("inline; filename=%q", attachmentFilename)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create inline image part: %w", err)
	}
	if _, err := inline.Write(encoded); err != nil {
		return nil, fmt.Errorf("failed to write inline image: %w", err)
	}

	// Downloadable copy, same buffer
	attachment, err := related.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"application/octet-stream"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", attachmentFilename)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create attachment part: %w", err)
	}
	if _, err := attachment.Write(encoded); err != nil {
		return nil, fmt.Errorf("failed to write attachment: %w", err)
	}

	if err := related.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}

	return buf.Bytes(), nil
}

// encodeBase64Wrapped base64-encodes data with RFC 2045 76-column lines
func encodeBase64Wrapped(data []byte) []byte {
	encoded := base64.StdEncoding.EncodeToString(data)

	const lineLen = 76
	var out bytes.Buffer
	for len(encoded) > lineLen {
		out.WriteString(encoded[:lineLen])
		out.WriteString("\r\n")
		encoded = encoded[lineLen:]
	}
	out.WriteString(encoded)
	out.WriteString("\r\n")
	return out.Bytes()
}
