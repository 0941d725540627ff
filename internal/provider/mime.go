package provider

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"sort"
	"strings"
	"time"
)

const base64LineLen = 76

// BuildMIME renders msg as an RFC 5322 message: a multipart/mixed body with
// a multipart/alternative text+HTML part followed by the attachments.
func BuildMIME(msg *Message, now time.Time) ([]byte, error) {
	if msg.From == "" {
		return nil, fmt.Errorf("mime: from address is required")
	}
	if len(msg.To) == 0 {
		return nil, fmt.Errorf("mime: at least one recipient is required")
	}

	var buf bytes.Buffer
	mixed := multipart.NewWriter(&buf)

	from := (&mail.Address{Name: msg.FromName, Address: msg.From}).String()
	to := make([]string, len(msg.To))
	for i, addr := range msg.To {
		to[i] = (&mail.Address{Address: addr}).String()
	}

	var head bytes.Buffer
	writeHeader(&head, "From", from)
	writeHeader(&head, "To", strings.Join(to, ", "))
	writeHeader(&head, "Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader(&head, "Date", now.Format(time.RFC1123Z))
	if msg.ID != "" {
		writeHeader(&head, "Message-ID", "<"+msg.ID+"@report-mailer>")
	}
	writeHeader(&head, "MIME-Version", "1.0")
	keys := make([]string, 0, len(msg.Headers))
	for k := range msg.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeHeader(&head, textproto.CanonicalMIMEHeaderKey(k), msg.Headers[k])
	}
	writeHeader(&head, "Content-Type", "multipart/mixed; boundary="+mixed.Boundary())
	head.WriteString("\r\n")

	if err := writeAlternative(mixed, msg); err != nil {
		return nil, err
	}
	for _, att := range msg.Attachments {
		if err := writeAttachment(mixed, att); err != nil {
			return nil, err
		}
	}
	if err := mixed.Close(); err != nil {
		return nil, fmt.Errorf("mime: close multipart: %w", err)
	}

	return append(head.Bytes(), buf.Bytes()...), nil
}

func writeHeader(w *bytes.Buffer, key, value string) {
	w.WriteString(key)
	w.WriteString(": ")
	w.WriteString(value)
	w.WriteString("\r\n")
}

func writeAlternative(mixed *multipart.Writer, msg *Message) error {
	var altBuf bytes.Buffer
	alt := multipart.NewWriter(&altBuf)

	parts := []struct{ contentType, body string }{
		{"text/plain; charset=utf-8", msg.TextBody},
		{"text/html; charset=utf-8", msg.HTMLBody},
	}
	for _, p := range parts {
		if p.body == "" {
			continue
		}
		pw, err := alt.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return fmt.Errorf("mime: create text part: %w", err)
		}
		qp := quotedprintable.NewWriter(pw)
		if _, err := io.WriteString(qp, p.body); err != nil {
			return fmt.Errorf("mime: write text part: %w", err)
		}
		if err := qp.Close(); err != nil {
			return fmt.Errorf("mime: flush text part: %w", err)
		}
	}
	if err := alt.Close(); err != nil {
		return fmt.Errorf("mime: close alternative: %w", err)
	}

	w, err := mixed.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"multipart/alternative; boundary=" + alt.Boundary()},
	})
	if err != nil {
		return fmt.Errorf("mime: create alternative part: %w", err)
	}
	_, err = w.Write(altBuf.Bytes())
	return err
}

func writeAttachment(mixed *multipart.Writer, att Attachment) error {
	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w, err := mixed.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {mime.FormatMediaType(contentType, map[string]string{"name": att.Filename})},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename})},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return fmt.Errorf("mime: create attachment part: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(att.Content)
	for len(encoded) > base64LineLen {
		if _, err := io.WriteString(w, encoded[:base64LineLen]+"\r\n"); err != nil {
			return err
		}
		encoded = encoded[base64LineLen:]
	}
	_, err = io.WriteString(w, encoded+"\r\n")
	return err
}
