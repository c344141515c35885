package imap

import (
	"time"

	"github.com/emersion/go-imap"
)

// Client is the mailbox surface the inbox poller needs. All message
// identifiers are IMAP UIDs.
type Client interface {
	Connect(server string) error
	Login(user, password string) error
	SelectMailbox(name string) error
	ListUnseenUIDs(since time.Time) ([]uint32, error)
	FetchMessage(uid uint32) (*imap.Message, error)
	MarkSeen(uid uint32) error
	Close() error
}

// Dialer opens a fresh Client for one polling round.
type Dialer func() Client

// NewDialer returns a Dialer producing TLS clients with the default timeout.
func NewDialer() Dialer {
	return func() Client {
		return NewStandardClient()
	}
}
