package gmail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"google.golang.org/api/gmail/v1"

	"triage_server/core/domain"
	"triage_server/pkg/apperr"
)

const (
	defaultSubject = "No Subject"
	defaultSender  = "Unknown"
)

func parseMessage(msg *gmail.Message) *domain.InboundEmail {
	email := &domain.InboundEmail{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Sender:   defaultSender,
		Subject:  defaultSubject,
		Snippet:  msg.Snippet,
	}
	if msg.InternalDate > 0 {
		email.ReceivedAt = time.UnixMilli(msg.InternalDate).UTC()
	}
	if msg.Payload == nil {
		return email
	}

	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			if h.Value != "" {
				email.Sender = h.Value
			}
		case "subject":
			if h.Value != "" {
				email.Subject = h.Value
			}
		case "message-id":
			email.MessageID = h.Value
		}
	}
	email.Body = extractBody(msg.Payload)
	return email
}

// extractBody prefers the first text/plain part, then text/html, then the top-level body.
func extractBody(payload *gmail.MessagePart) string {
	if text := findPart(payload, "text/plain"); text != "" {
		return text
	}
	if html := findPart(payload, "text/html"); html != "" {
		return html
	}
	if payload.Body != nil {
		return decodeData(payload.Body.Data)
	}
	return ""
}

func findPart(part *gmail.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if part.MimeType == mimeType && part.Filename == "" && part.Body != nil {
		if s := decodeData(part.Body.Data); s != "" {
			return s
		}
	}
	for _, child := range part.Parts {
		if s := findPart(child, mimeType); s != "" {
			return s
		}
	}
	return ""
}

// decodeData accepts padded or unpadded base64url.
func decodeData(data string) string {
	if data == "" {
		return ""
	}
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	if b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "=")); err == nil {
		return string(b)
	}
	return ""
}

// composeRaw builds a plain-text RFC 5322 message encoded for the Gmail send API.
func composeRaw(from string, email *domain.OutboundEmail, now time.Time) (string, error) {
	to, err := mail.ParseAddressList(email.To)
	if err != nil || len(to) == 0 {
		return "", apperr.ValidationFailed("to", fmt.Sprintf("invalid address %q", email.To))
	}

	var h mail.Header
	h.SetDate(now)
	if from != "" {
		h.SetAddressList("From", []*mail.Address{{Address: from}})
	}
	h.SetAddressList("To", to)
	h.SetSubject(email.Subject)
	if email.InReplyTo != "" {
		h.Set("In-Reply-To", email.InReplyTo)
		h.Set("References", email.InReplyTo)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return "", fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, email.Body); err != nil {
		return "", fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finish message: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}
