// Package threadmatch decides how an incoming thread snapshot relates to the
// snapshots already stored for a profile, and rebuilds the full thread text.
package threadmatch

import (
	"strings"

	"client-profile-service/internal/models"
)

// Kind is the outcome of matching an incoming thread against stored messages
type Kind int

const (
	// New means no stored message is contained in the incoming text.
	New Kind = iota
	// Duplicate means a stored message equals the incoming text after trimming.
	Duplicate
	// Supersede means a stored message is a strict substring of the incoming text.
	Supersede
)

func (k Kind) String() string {
	switch k {
	case Duplicate:
		return "duplicate"
	case Supersede:
		return "supersede"
	default:
		return "new"
	}
}

// Decision names the outcome and, for Duplicate and Supersede, the stored message that matched
type Decision struct {
	Kind   Kind
	Target *models.Message
}

// Match compares incoming (already trimmed) against stored, which must be in
// canonical thread order. An exact match anywhere wins over a containment
// match; otherwise the first stored message contained in incoming is superseded.
func Match(stored []models.Message, incoming string) Decision {
	var superseded *models.Message
	for i := range stored {
		content := strings.TrimSpace(stored[i].Content)
		if content == "" {
			continue
		}
		if content == incoming {
			return Decision{Kind: Duplicate, Target: &stored[i]}
		}
		if superseded == nil && strings.Contains(incoming, content) {
			superseded = &stored[i]
		}
	}

	if superseded != nil {
		return Decision{Kind: Supersede, Target: superseded}
	}
	return Decision{Kind: New}
}

// Thread joins the stored snapshots, minus the superseded one, with incoming
// appended, separated by blank lines.
func Thread(stored []models.Message, d Decision, incoming string) string {
	parts := make([]string, 0, len(stored)+1)
	for i := range stored {
		if d.Kind == Supersede && d.Target != nil && stored[i].ID == d.Target.ID {
			continue
		}
		parts = append(parts, stored[i].Content)
	}
	parts = append(parts, incoming)
	return strings.Join(parts, "\n\n")
}
