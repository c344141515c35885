package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"client-profile-service/internal/llm"
	"client-profile-service/internal/models"

	"github.com/tidwall/jsonc"
)

// ErrUnparseable is returned when the model output is not a profile object.
var ErrUnparseable = errors.New("extraction output is not a profile object")

const extractPrompt = `Given the current client profile (which may be empty) and an email thread with the client, update the client's profile.
If the client's name is mentioned in the thread (e.g. "Hi, this is James"), use that as the name.
Describe what they are looking for in "preferences", when they want it in "timeline", and any worries or objections in "concerns".
Leave a field as an empty string when the thread says nothing about it.

Current Profile:
%s

Email Thread:
"""%s"""

Return only the updated profile in this JSON format:
{
  "name": "...",
  "preferences": "...",
  "timeline": "...",
  "concerns": "..."
}`

// Extractor pulls structured profile fields out of a thread.
type Extractor struct {
	provider llm.Provider
}

// NewExtractor builds an extractor on provider.
func NewExtractor(provider llm.Provider) *Extractor {
	return &Extractor{provider: provider}
}

// Extract asks the model for the profile fields of thread, given the current
// profile. A response that cannot be read as a profile object yields an error
// wrapping ErrUnparseable.
func (e *Extractor) Extract(ctx context.Context, current models.Profile, thread string) (*models.Extraction, error) {
	currentJSON, err := json.MarshalIndent(map[string]string{
		"name":        current.Name,
		"preferences": current.Preferences,
		"timeline":    current.Timeline,
		"concerns":    current.Concerns,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding current profile: %w", err)
	}

	answer, err := e.provider.Complete(ctx, fmt.Sprintf(extractPrompt, currentJSON, thread), llm.CompletionOpts{})
	if err != nil {
		return nil, fmt.Errorf("extracting profile with %s: %w", e.provider.Name(), err)
	}
	return ParseExtraction(answer)
}

// ParseExtraction reads model output into an Extraction. It tolerates code
// fences, prose around the object, comments and trailing commas, and fields
// given as null, numbers or lists of strings.
func ParseExtraction(raw string) (*models.Extraction, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in %q", ErrUnparseable, abbreviate(raw))
	}

	var out struct {
		Name        textField `json:"name"`
		Preferences textField `json:"preferences"`
		Timeline    textField `json:"timeline"`
		Concerns    textField `json:"concerns"`
	}
	if err := json.Unmarshal(jsonc.ToJSON([]byte(raw[start:end+1])), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	return &models.Extraction{
		Name:        string(out.Name),
		Preferences: string(out.Preferences),
		Timeline:    string(out.Timeline),
		Concerns:    string(out.Concerns),
	}, nil
}

// textField accepts a JSON string, null, number, bool or list of those.
type textField string

func (f *textField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = textField(strings.TrimSpace(s))
	case len(data) > 0 && data[0] == '[':
		var items []textField
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		parts := make([]string, 0, len(items))
		for _, it := range items {
			if it != "" {
				parts = append(parts, string(it))
			}
		}
		*f = textField(strings.Join(parts, ", "))
	case len(data) > 0 && data[0] == '{':
		return fmt.Errorf("object where text expected")
	default:
		if _, err := strconv.ParseFloat(string(data), 64); err == nil {
			*f = textField(data)
			return nil
		}
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*f = textField(strconv.FormatBool(b))
	}
	return nil
}

func abbreviate(s string) string {
	const limit = 80
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
