package email_test

import (
	"bytes"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/herogram/herogram/internal/email"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))); err != nil {
		t.Fatalf("failed to encode test png: %v", err)
	}
	return buf.Bytes()
}

func testRenderData() email.RenderData {
	return email.RenderData{
		Name:            "Alex",
		Superhero:       "Thunderbolt",
		Color:           "electric blue",
		Car:             "Lightning Roadster",
		AvatarRequestID: "a1",
	}
}

func TestComposer_RenderSubstitutesAllPlaceholders(t *testing.T) {
	t.Parallel()

	c := email.NewComposer("", "", "")
	msg, err := c.Render("kid@example.com", testRenderData(), pngBytes(t, 400, 400))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, body := range []string{msg.Subject, msg.HTMLBody, msg.TextBody} {
		if strings.Contains(body, "{{") {
			t.Fatalf("unsubstituted placeholder left in output: %q", body)
		}
	}
	if !strings.Contains(msg.HTMLBody, "Thunderbolt") {
		t.Fatal("expected superhero name in HTML body")
	}
	if !strings.Contains(msg.HTMLBody, "cid:avatar") {
		t.Fatal("expected inline image reference in HTML body")
	}
	if msg.MessageID == "" || !strings.HasPrefix(msg.MessageID, "<") {
		t.Fatalf("expected RFC 5322 message id, got %q", msg.MessageID)
	}
}

func TestComposer_MissingFieldIsTemplateError(t *testing.T) {
	t.Parallel()

	data := testRenderData()
	data.Superhero = ""

	c := email.NewComposer("", "", "")
	_, err := c.Render("kid@example.com", data, pngBytes(t, 100, 100))

	var tErr *email.TemplateError
	if !asTemplateError(err, &tErr) {
		t.Fatalf("expected *TemplateError, got %v", err)
	}
	if !strings.Contains(tErr.Message, "SUPERHERO") {
		t.Fatalf("expected the missing field named, got %q", tErr.Message)
	}
}

func TestComposer_UnknownPlaceholderIsTemplateError(t *testing.T) {
	t.Parallel()

	c := email.NewComposer("Hello {{NAME}} {{NONSENSE}}", "", "")
	_, err := c.Render("kid@example.com", testRenderData(), pngBytes(t, 100, 100))

	var tErr *email.TemplateError
	if !asTemplateError(err, &tErr) {
		t.Fatalf("expected *TemplateError, got %v", err)
	}
}

func TestComposer_UndecodableImageIsTemplateError(t *testing.T) {
	t.Parallel()

	c := email.NewComposer("", "", "")
	_, err := c.Render("kid@example.com", testRenderData(), []byte("not an image"))

	var tErr *email.TemplateError
	if !asTemplateError(err, &tErr) {
		t.Fatalf("expected *TemplateError, got %v", err)
	}
}

func TestComposer_DownscalesWideImages(t *testing.T) {
	t.Parallel()

	c := email.NewComposer("", "", "")
	msg, err := c.Render("kid@example.com", testRenderData(), pngBytes(t, 1600, 1200))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(msg.Image))
	if err != nil {
		t.Fatalf("embedded image is not valid png: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 800 {
		t.Fatalf("expected width 800, got %d", bounds.Dx())
	}
	if bounds.Dy() != 600 {
		t.Fatalf("expected aspect ratio preserved (height 600), got %d", bounds.Dy())
	}
}

func TestComposer_KeepsNarrowImages(t *testing.T) {
	t.Parallel()

	c := email.NewComposer("", "", "")
	msg, err := c.Render("kid@example.com", testRenderData(), pngBytes(t, 640, 480))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(msg.Image))
	if err != nil {
		t.Fatalf("embedded image is not valid png: %v", err)
	}
	if img.Bounds().Dx() != 640 {
		t.Fatalf("narrow image must not be resized, got width %d", img.Bounds().Dx())
	}
}

func TestMessage_BytesStructure(t *testing.T) {
	t.Parallel()

	c := email.NewComposer("", "", "")
	msg, err := c.Render("kid@example.com", testRenderData(), pngBytes(t, 100, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := msg.Bytes("Herogram <avatars@herogram.dev>", "avatars@herogram.dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := string(raw)

	for _, want := range []string{
		"multipart/related",
		"multipart/alternative",
		"text/plain; charset=UTF-8",
		"text/html; charset=UTF-8",
		"Content-ID: <avatar>",
		`attachment; filename="superhero_avatar.png"`,
		"X-Avatar-Request-ID: a1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in serialized message", want)
		}
	}
}

func asTemplateError(err error, target **email.TemplateError) bool {
	if err == nil {
		return false
	}
	if te, ok := err.(*email.TemplateError); ok {
		*target = te
		return true
	}
	return false
}
