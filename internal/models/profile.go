package models

import "time"

// Profile is the durable per-client record, keyed by email
type Profile struct {
	ID          int64     `json:"-"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Preferences string    `json:"preferences"`
	Timeline    string    `json:"timeline"`
	Concerns    string    `json:"concerns"`
	Notes       string    `json:"notes"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Message is one stored snapshot of a client thread
type Message struct {
	ID        int64
	ProfileID int64
	Content   string
	Timestamp time.Time
}

// Extraction holds the structured fields returned by the extraction step.
// Empty strings mean the field was absent.
type Extraction struct {
	Name        string
	Preferences string
	Timeline    string
	Concerns    string
}
