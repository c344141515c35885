package models

import "time"

// InboundEmail represents a normalized message fetched from the mailbox
type InboundEmail struct {
	UID          uint32
	From         string
	Subject      string
	BodyText     string
	InternalDate time.Time
	TraceID      string
}
