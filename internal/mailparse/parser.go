package mailparse

import (
	"errors"
	"html"
	"io"
	"mime"
	"regexp"
	"strings"

	"client-profile-service/internal/models"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

// ErrNoBody is returned when the fetched message carries no body section.
var ErrNoBody = errors.New("message has no body")

var (
	emailAddressRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	htmlBreakRe    = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</li>|</tr>`)
	htmlDropRe     = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	htmlTagRe      = regexp.MustCompile(`<[^>]+>`)
	blankLinesRe   = regexp.MustCompile(`\n{3,}`)
)

// Parse normalizes a fetched IMAP message into an InboundEmail. The plain-text
// part is preferred; an HTML-only message is flattened to text.
func Parse(msg *imap.Message) (*models.InboundEmail, error) {
	section := &imap.BodySectionName{}
	r := msg.GetBody(section)
	if r == nil {
		return nil, ErrNoBody
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, err
	}

	email := &models.InboundEmail{
		UID:          msg.Uid,
		InternalDate: msg.InternalDate,
		TraceID:      uuid.New().String(),
	}

	header := mr.Header

	// Extract From
	if from, err := header.AddressList("From"); err == nil && len(from) > 0 {
		email.From = from[0].Address
	} else {
		email.From = extractEmailAddress(header.Get("From"))
	}

	// Decode Subject
	decodedSubject, err := DecodeHeader(header.Get("Subject"))
	if err != nil {
		return nil, err
	}
	email.Subject = decodedSubject

	var htmlBody string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := h.ContentType()
		if err != nil {
			continue
		}
		body, err := io.ReadAll(p.Body)
		if err != nil {
			continue
		}
		switch contentType {
		case "text/plain":
			if email.BodyText == "" {
				email.BodyText = string(body)
			}
		case "text/html":
			if htmlBody == "" {
				htmlBody = string(body)
			}
		}
	}

	if strings.TrimSpace(email.BodyText) == "" && htmlBody != "" {
		email.BodyText = HTMLToText(htmlBody)
	}

	return email, nil
}

// ThreadText is the text submitted to the profile pipeline for email: the
// body with normalized line endings, or the subject when the body is empty.
func ThreadText(email *models.InboundEmail) string {
	body := strings.ReplaceAll(email.BodyText, "\r\n", "\n")
	body = strings.TrimSpace(body)
	if body == "" {
		return strings.TrimSpace(email.Subject)
	}
	return body
}

// HTMLToText strips markup from an HTML body, keeping line structure.
func HTMLToText(s string) string {
	s = htmlDropRe.ReplaceAllString(s, "")
	s = htmlBreakRe.ReplaceAllString(s, "\n")
	s = htmlTagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(s, "\n\n"))
}

// Simple regex to extract email address from "From" header, which may contain name and email
func extractEmailAddress(fromHeader string) string {
	return emailAddressRe.FindString(fromHeader)
}

// DecodeHeader decodes MIME-encoded headers (e.g., "=?UTF-8?B?...?=") to plain text
func DecodeHeader(encoded string) (string, error) {
	decoder := new(mime.WordDecoder)
	decoded, err := decoder.DecodeHeader(encoded)
	if err != nil {
		return "", err
	}
	return decoded, nil
}
