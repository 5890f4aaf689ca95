package filter

import (
	"bytes"
	"fmt"
	"mime"
	"strings"

	"github.com/jhillyerd/enmime"
	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/utils"
)

// ParseMessage decodes a raw RFC 5322 message into the fields the scorer reads.
// Text parts are preferred; HTML-only messages are rendered to text with links kept.
// Attachments are described by name, type, size and digest.
func ParseMessage(raw []byte, tp *utils.TextProcessor) (*core.Message, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	body := env.Text
	if strings.TrimSpace(body) == "" && env.HTML != "" {
		body = tp.HTMLToText(env.HTML)
	}

	var attachments []core.Attachment
	for _, part := range env.Attachments {
		attachments = append(attachments, core.NewAttachment(part.FileName, part.ContentType, part.Content))
	}

	return &core.Message{
		ID:          strings.Trim(env.GetHeader("Message-Id"), "<>"),
		Sender:      env.GetHeader("From"),
		Subject:     env.GetHeader("Subject"),
		Body:        body,
		Attachments: attachments,
	}, nil
}

// headerField is a single header line to add to a message
type headerField struct {
	name  string
	value string
}

// rewriteHeaders prepends fields to the header block of raw and, when subject is
// non-empty, replaces the Subject header. The body is left untouched.
func rewriteHeaders(raw []byte, fields []headerField, subject string) []byte {
	head, body, sep := splitHeader(raw)

	var out bytes.Buffer
	for _, f := range fields {
		fmt.Fprintf(&out, "%s: %s\r\n", f.name, sanitizeHeaderValue(f.value))
	}

	replaced := false
	skipping := false
	for _, line := range splitLines(head) {
		// Continuation lines belong to the previous field
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			if !skipping {
				out.Write(line)
				out.WriteString("\r\n")
			}
			continue
		}
		skipping = false
		if subject != "" && isHeader(line, "Subject") {
			if !replaced {
				fmt.Fprintf(&out, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
				replaced = true
			}
			skipping = true
			continue
		}
		out.Write(line)
		out.WriteString("\r\n")
	}
	if subject != "" && !replaced {
		fmt.Fprintf(&out, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	}

	if sep == nil {
		sep = []byte("\r\n")
	}
	out.Write(sep)
	out.Write(body)
	return out.Bytes()
}

// splitHeader splits raw at the first blank line
func splitHeader(raw []byte) (head, body, sep []byte) {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return raw[:i], raw[i+4:], []byte("\r\n")
	}
	if i := bytes.Index(raw, []byte("\n\n")); i >= 0 {
		return raw[:i], raw[i+2:], []byte("\r\n")
	}
	return raw, nil, nil
}

func splitLines(head []byte) [][]byte {
	if len(head) == 0 {
		return nil
	}
	lines := bytes.Split(head, []byte("\n"))
	for i, l := range lines {
		lines[i] = bytes.TrimSuffix(l, []byte("\r"))
	}
	return lines
}

func isHeader(line []byte, name string) bool {
	colon := bytes.IndexByte(line, ':')
	return colon > 0 && strings.EqualFold(strings.TrimSpace(string(line[:colon])), name)
}

// sanitizeHeaderValue keeps header values on one line
func sanitizeHeaderValue(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
