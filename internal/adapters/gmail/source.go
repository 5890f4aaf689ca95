package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/utils"
	"go.uber.org/zap"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const (
	defaultSender  = "Unknown"
	defaultSubject = "No Subject"
)

// Source fetches the latest messages from a Gmail mailbox
type Source struct {
	service       *gmailapi.Service
	user          string
	maxResults    int64
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewSource creates a Gmail message source on top of an authenticated client.
// Extra options are appended after the HTTP client.
func NewSource(
	ctx context.Context,
	client *http.Client,
	user string,
	maxResults int64,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
	opts ...option.ClientOption,
) (*Source, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	service, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	if user == "" {
		user = "me"
	}

	return &Source{
		service:       service,
		user:          user,
		maxResults:    maxResults,
		textProcessor: textProcessor,
		logger:        logger,
	}, nil
}

// Fetch implements core.MessageSource
func (s *Source) Fetch(ctx context.Context) ([]*core.Message, error) {
	call := s.service.Users.Messages.List(s.user).Context(ctx)
	if s.maxResults > 0 {
		call = call.MaxResults(s.maxResults)
	}
	list, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list Gmail messages: %w", err)
	}

	msgs := make([]*core.Message, 0, len(list.Messages))
	for _, ref := range list.Messages {
		full, err := s.service.Users.Messages.Get(s.user, ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to get Gmail message %s: %w", ref.Id, err)
		}
		msgs = append(msgs, s.toMessage(full))
	}

	s.logger.Debug("Fetched Gmail messages", zap.Int("count", len(msgs)))
	return msgs, nil
}

func (s *Source) toMessage(m *gmailapi.Message) *core.Message {
	msg := &core.Message{
		ID:      m.Id,
		Sender:  defaultSender,
		Subject: defaultSubject,
	}
	if m.Payload == nil {
		return msg
	}

	for _, h := range m.Payload.Headers {
		switch h.Name {
		case "From":
			if h.Value != "" {
				msg.Sender = h.Value
			}
		case "Subject":
			if h.Value != "" {
				msg.Subject = h.Value
			}
		}
	}

	msg.Body = s.extractBody(m.Payload)
	msg.Attachments = collectAttachments(m.Payload, nil)
	return msg
}

// collectAttachments lists named parts. Content stays on the server, so
// attachments carry no digest.
func collectAttachments(part *gmailapi.MessagePart, out []core.Attachment) []core.Attachment {
	if part == nil {
		return out
	}
	if part.Filename != "" {
		att := core.Attachment{Filename: part.Filename, ContentType: part.MimeType}
		if part.Body != nil {
			att.Size = part.Body.Size
		}
		out = append(out, att)
	}
	for _, p := range part.Parts {
		out = collectAttachments(p, out)
	}
	return out
}

// extractBody picks the body in order: payload data, the first text/plain part,
// the first text/html part rendered as text, then nested parts
func (s *Source) extractBody(part *gmailapi.MessagePart) string {
	if part == nil {
		return ""
	}

	if part.Body != nil && part.Body.Data != "" {
		text := decodeData(part.Body.Data)
		if part.MimeType == "text/html" {
			return s.textProcessor.HTMLToText(text)
		}
		return text
	}

	for _, p := range part.Parts {
		if p.MimeType == "text/plain" && p.Body != nil && p.Body.Data != "" {
			return decodeData(p.Body.Data)
		}
	}

	for _, p := range part.Parts {
		if p.MimeType == "text/html" && p.Body != nil && p.Body.Data != "" {
			return s.textProcessor.HTMLToText(decodeData(p.Body.Data))
		}
	}

	for _, p := range part.Parts {
		if len(p.Parts) > 0 {
			if nested := s.extractBody(p); nested != "" {
				return nested
			}
		}
	}

	return ""
}

// decodeData decodes Gmail's base64url body data, padded or not
func decodeData(data string) string {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(b)
}
