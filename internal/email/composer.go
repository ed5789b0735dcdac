package email

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"regexp"
	"strings"

	_ "image/jpeg"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

// maxImageWidth is the widest an embedded avatar may be; wider source
// images are downscaled proportionally before embedding.
const maxImageWidth = 800

// inlineImageCID is the content ID the HTML body references
const inlineImageCID = "avatar"

// TemplateError is a permanent rendering failure. No amount of retrying
// fixes a malformed template or missing field, so the processor treats it
// as a terminal delivery failure.
type TemplateError struct {
	Message string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error: %s", e.Message)
}

// RenderData is the per-recipient data substituted into the templates
type RenderData struct {
	Name            string
	Superhero       string
	Color           string
	Car             string
	AvatarRequestID string
}

// Composer renders delivery emails. It is pure: the only input beside the
// render data is the avatar image bytes, already fetched by the caller.
type Composer struct {
	subjectTemplate string
	htmlTemplate    string
	textTemplate    string
}

// NewComposer creates a Composer. Empty template arguments fall back to the
// built-in defaults.
func NewComposer(subjectTemplate, htmlTemplate, textTemplate string) *Composer {
	if subjectTemplate == "" {
		subjectTemplate = DefaultSubjectTemplate
	}
	if htmlTemplate == "" {
		htmlTemplate = DefaultHTMLTemplate
	}
	if textTemplate == "" {
		textTemplate = DefaultTextTemplate
	}
	return &Composer{
		subjectTemplate: subjectTemplate,
		htmlTemplate:    htmlTemplate,
		textTemplate:    textTemplate,
	}
}

var placeholderPattern = regexp.MustCompile(`\{\{[A-Z_]+\}\}`)

// Render produces a ready-to-send Message for one recipient.
// It fails with *TemplateError when a required field is empty or when a
// template contains a placeholder that has no substitution.
func (c *Composer) Render(to string, data RenderData, imageBytes []byte) (*Message, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}

	img, err := prepareImage(imageBytes)
	if err != nil {
		return nil, err
	}

	replacements := map[string]string{
		"{{NAME}}":       data.Name,
		"{{SUPERHERO}}":  data.Superhero,
		"{{COLOR}}":      data.Color,
		"{{CAR}}":        data.Car,
		"{{AVATAR_CID}}": inlineImageCID,
	}

	subject, err := substitute(c.subjectTemplate, replacements)
	if err != nil {
		return nil, err
	}
	htmlBody, err := substitute(c.htmlTemplate, replacements)
	if err != nil {
		return nil, err
	}
	textBody, err := substitute(c.textTemplate, replacements)
	if err != nil {
		return nil, err
	}

	return &Message{
		To:              to,
		ToName:          data.Name,
		Subject:         subject,
		HTMLBody:        htmlBody,
		TextBody:        textBody,
		Image:           img,
		ImageCID:        inlineImageCID,
		MessageID:       fmt.Sprintf("<%s@herogram>", uuid.New().String()),
		AvatarRequestID: data.AvatarRequestID,
	}, nil
}

func (d RenderData) validate() error {
	missing := []string{}
	if d.Name == "" {
		missing = append(missing, "NAME")
	}
	if d.Superhero == "" {
		missing = append(missing, "SUPERHERO")
	}
	if d.Color == "" {
		missing = append(missing, "COLOR")
	}
	if d.Car == "" {
		missing = append(missing, "CAR")
	}
	if len(missing) > 0 {
		return &TemplateError{Message: "missing required fields: " + strings.Join(missing, ", ")}
	}
	return nil
}

// substitute replaces placeholders by exact string match and rejects any
// placeholder token left over afterwards as a template authoring error.
func substitute(template string, replacements map[string]string) (string, error) {
	out := template
	for placeholder, value := range replacements {
		out = strings.ReplaceAll(out, placeholder, value)
	}
	if leftover := placeholderPattern.FindString(out); leftover != "" {
		return "", &TemplateError{Message: fmt.Sprintf("unknown placeholder %s", leftover)}
	}
	return out, nil
}

// prepareImage decodes the avatar, downscales it to maxImageWidth when wider
// (preserving aspect ratio), and re-encodes it as PNG.
func prepareImage(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &TemplateError{Message: fmt.Sprintf("failed to decode avatar image: %v", err)}
	}

	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width > maxImageWidth {
		newHeight := height * maxImageWidth / width
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newHeight))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		src = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return nil, fmt.Errorf("failed to encode avatar image: %w", err)
	}
	return buf.Bytes(), nil
}
