// Package merge reconciles extracted fields into a stored profile.
package merge

import (
	"strings"
	"time"

	"client-profile-service/internal/models"
)

// blankValues are answers models give for "nothing known"; they never count
// as information.
var blankValues = map[string]bool{
	"":        true,
	"unknown": true,
	"n/a":     true,
	"none":    true,
	"null":    true,
	"...":     true,
}

// IsBlank reports whether a field value carries no information.
func IsBlank(v string) bool {
	return blankValues[strings.ToLower(strings.TrimSpace(v))]
}

// Apply returns the next profile state:
//   - name is only filled in while the current one is blank
//   - preferences, timeline and concerns are replaced by any non-blank extracted value
//   - notes are never changed
//   - updated_at advances to at (never backwards)
func Apply(existing models.Profile, ext *models.Extraction, at time.Time) models.Profile {
	next := Touch(existing, at)
	if ext == nil {
		return next
	}

	if IsBlank(existing.Name) && !IsBlank(ext.Name) {
		next.Name = strings.TrimSpace(ext.Name)
	}
	next.Preferences = replace(existing.Preferences, ext.Preferences)
	next.Timeline = replace(existing.Timeline, ext.Timeline)
	next.Concerns = replace(existing.Concerns, ext.Concerns)
	return next
}

// Touch records activity without changing content fields.
func Touch(existing models.Profile, at time.Time) models.Profile {
	next := existing
	if at.After(existing.UpdatedAt) {
		next.UpdatedAt = at
	}
	return next
}

func replace(current, extracted string) string {
	if IsBlank(extracted) {
		return current
	}
	return strings.TrimSpace(extracted)
}
