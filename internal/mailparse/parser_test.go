package mailparse

import (
	"bytes"
	"testing"
	"time"

	"client-profile-service/internal/models"

	"github.com/emersion/go-imap"
)

func TestDecodeHeader(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			name:     "Plain ASCII",
			input:    "Hello World",
			expected: "Hello World",
			wantErr:  false,
		},
		{
			name:     "UTF-8 encoded",
			input:    "=?UTF-8?Q?Important_:_comment_mettre_=C3=A0_jour?=",
			expected: "Important : comment mettre à jour",
			wantErr:  false,
		},
		{
			name:     "ISO-8859-1 encoded",
			input:    "=?ISO-8859-1?Q?Caf=E9?=",
			expected: "Café",
			wantErr:  false,
		},
		{
			name:     "Base64 encoded",
			input:    "=?UTF-8?B?SGVsbG8gV29ybGQ=?=",
			expected: "Hello World",
			wantErr:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeHeader(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeHeader() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.expected {
				t.Errorf("DecodeHeader() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestExtractEmailAddress(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Simple email",
			input:    "agent@realty.example.com",
			expected: "agent@realty.example.com",
		},
		{
			name:     "Email with name",
			input:    "Jane Realtor <agent@realty.example.com>",
			expected: "agent@realty.example.com",
		},
		{
			name:     "Email with quotes",
			input:    `"Sunset Realty" <agent@realty.example.com>`,
			expected: "agent@realty.example.com",
		},
		{
			name:     "No email",
			input:    "Just some text",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractEmailAddress(tt.input)
			if got != tt.expected {
				t.Errorf("extractEmailAddress() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func newMessage(uid uint32, raw string) *imap.Message {
	return &imap.Message{
		Uid:          uid,
		InternalDate: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Body: map[*imap.BodySectionName]imap.Literal{
			{}: bytes.NewBufferString(raw),
		},
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name            string
		raw             string
		expectedFrom    string
		expectedSubject string
		expectedBody    string
	}{
		{
			name: "Plain text",
			raw: "From: James Doe <James@Example.com>\r\n" +
				"Subject: Looking for a 2BR\r\n" +
				"Content-Type: text/plain; charset=utf-8\r\n" +
				"\r\n" +
				"Hi, this is James, looking for a 2BR by June\r\n",
			expectedFrom:    "James@Example.com",
			expectedSubject: "Looking for a 2BR",
			expectedBody:    "Hi, this is James, looking for a 2BR by June\r\n",
		},
		{
			name: "Multipart prefers text/plain",
			raw: "From: ann@example.com\r\n" +
				"Subject: =?UTF-8?Q?Caf=C3=A9_nearby?=\r\n" +
				"Content-Type: multipart/alternative; boundary=XYZ\r\n" +
				"\r\n" +
				"--XYZ\r\n" +
				"Content-Type: text/plain\r\n" +
				"\r\n" +
				"plain version\r\n" +
				"--XYZ\r\n" +
				"Content-Type: text/html\r\n" +
				"\r\n" +
				"<p>html version</p>\r\n" +
				"--XYZ--\r\n",
			expectedFrom:    "ann@example.com",
			expectedSubject: "Café nearby",
			expectedBody:    "plain version",
		},
		{
			name: "HTML only",
			raw: "From: bob@example.com\r\n" +
				"Subject: Hello\r\n" +
				"Content-Type: text/html\r\n" +
				"\r\n" +
				"<html><body><p>Need a condo</p><p>Budget &amp; timing flexible</p></body></html>\r\n",
			expectedFrom:    "bob@example.com",
			expectedSubject: "Hello",
			expectedBody:    "Need a condo\nBudget & timing flexible",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email, err := Parse(newMessage(42, tt.raw))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if email.UID != 42 {
				t.Errorf("UID = %d, want 42", email.UID)
			}
			if email.From != tt.expectedFrom {
				t.Errorf("From = %q, want %q", email.From, tt.expectedFrom)
			}
			if email.Subject != tt.expectedSubject {
				t.Errorf("Subject = %q, want %q", email.Subject, tt.expectedSubject)
			}
			if got := ThreadText(email); got != ThreadText(&models.InboundEmail{BodyText: tt.expectedBody}) {
				t.Errorf("ThreadText() = %q, want %q", got, tt.expectedBody)
			}
			if email.TraceID == "" {
				t.Error("TraceID not set")
			}
		})
	}
}

func TestParseNoBody(t *testing.T) {
	_, err := Parse(&imap.Message{Uid: 1})
	if err != ErrNoBody {
		t.Errorf("Parse() error = %v, want %v", err, ErrNoBody)
	}
}

func TestThreadText(t *testing.T) {
	tests := []struct {
		name     string
		email    models.InboundEmail
		expected string
	}{
		{
			name:     "CRLF normalized and trimmed",
			email:    models.InboundEmail{BodyText: "  line one\r\nline two\r\n\r\n"},
			expected: "line one\nline two",
		},
		{
			name:     "Empty body falls back to subject",
			email:    models.InboundEmail{Subject: " Viewing on Saturday? ", BodyText: "\r\n"},
			expected: "Viewing on Saturday?",
		},
		{
			name:     "Nothing at all",
			email:    models.InboundEmail{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ThreadText(&tt.email); got != tt.expected {
				t.Errorf("ThreadText() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestHTMLToText(t *testing.T) {
	in := "<style>p{color:red}</style><div>Hello<br>there</div>\n\n\n\n<p>&lt;3 bedrooms&gt;</p>"
	expected := "Hello\nthere\n\n<3 bedrooms>"
	if got := HTMLToText(in); got != expected {
		t.Errorf("HTMLToText() = %q, want %q", got, expected)
	}
}
