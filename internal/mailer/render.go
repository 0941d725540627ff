package mailer

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"maps"
	texttemplate "text/template"

	"github.com/sungwon/report-mailer/internal/compose"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	htmlTemplate = "monthly_report.html.tmpl"
	textTemplate = "monthly_report.txt.tmpl"
)

// Renderer turns a composed message into text and HTML bodies.
type Renderer struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

// NewRenderer parses the embedded report templates.
func NewRenderer() (*Renderer, error) {
	html, err := htmltemplate.New(htmlTemplate).Option("missingkey=zero").ParseFS(templateFS, "templates/"+htmlTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse html template: %w", err)
	}
	text, err := texttemplate.New(textTemplate).Option("missingkey=zero").ParseFS(templateFS, "templates/"+textTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse text template: %w", err)
	}
	return &Renderer{html: html, text: text}, nil
}

// Render executes both templates against the message context.
func (r *Renderer) Render(msg *compose.Message) (textBody, htmlBody string, err error) {
	data := make(map[string]string, len(msg.Context)+1)
	maps.Copy(data, msg.Context)
	data["subject"] = msg.Subject

	var tb, hb bytes.Buffer
	if err := r.text.Execute(&tb, data); err != nil {
		return "", "", fmt.Errorf("render text body: %w", err)
	}
	if err := r.html.Execute(&hb, data); err != nil {
		return "", "", fmt.Errorf("render html body: %w", err)
	}
	return tb.String(), hb.String(), nil
}
