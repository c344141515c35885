package imap

import (
	"errors"
	"fmt"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

var errNotConnected = errors.New("not connected")

// StandardClient talks to a real IMAP server over TLS.
type StandardClient struct {
	client  *client.Client
	timeout time.Duration
}

// NewStandardClient creates a new StandardClient with a default timeout of 30 seconds for IMAP operations
func NewStandardClient() *StandardClient {
	return &StandardClient{
		timeout: 30 * time.Second,
	}
}

// Connect dials server (host:port) over TLS.
func (c *StandardClient) Connect(server string) error {
	cl, err := client.DialTLS(server, nil)
	if err != nil {
		return fmt.Errorf("IMAP connection error: %w", err)
	}
	cl.Timeout = c.timeout
	c.client = cl
	return nil
}

// Login authenticates against the connected server.
func (c *StandardClient) Login(user, password string) error {
	if c.client == nil {
		return errNotConnected
	}
	if err := c.client.Login(user, password); err != nil {
		return fmt.Errorf("IMAP login as %s: %w", user, err)
	}
	return nil
}

// SelectMailbox opens name read-write so messages can be flagged as seen.
func (c *StandardClient) SelectMailbox(name string) error {
	if c.client == nil {
		return errNotConnected
	}
	if _, err := c.client.Select(name, false); err != nil {
		return fmt.Errorf("selecting mailbox %s: %w", name, err)
	}
	return nil
}

// ListUnseenUIDs returns the UIDs of unseen messages received on or after since.
// IMAP SINCE has day granularity, so callers may still see slightly older mail.
func (c *StandardClient) ListUnseenUIDs(since time.Time) ([]uint32, error) {
	if c.client == nil {
		return nil, errNotConnected
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	if !since.IsZero() {
		criteria.Since = since
	}

	uids, err := c.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("searching unseen messages: %w", err)
	}
	return uids, nil
}

// FetchMessage retrieves the full RFC 822 body, internal date and envelope of uid
// without setting the \Seen flag.
func (c *StandardClient) FetchMessage(uid uint32) (*imap.Message, error) {
	if c.client == nil {
		return nil, errNotConnected
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchInternalDate, imap.FetchUid, imap.FetchEnvelope}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- c.client.UidFetch(seqSet, items, messages)
	}()

	var msg *imap.Message
	for m := range messages {
		msg = m
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetching message UID %d: %w", uid, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("no message retrieved for UID %d", uid)
	}
	return msg, nil
}

// MarkSeen adds the \Seen flag to uid.
func (c *StandardClient) MarkSeen(uid uint32) error {
	if c.client == nil {
		return errNotConnected
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}

	if err := c.client.UidStore(seqSet, item, flags, nil); err != nil {
		return fmt.Errorf("marking UID %d seen: %w", uid, err)
	}
	return nil
}

// Close logs out and drops the connection. Closing an unconnected client is a no-op.
func (c *StandardClient) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Logout()
	c.client = nil
	return err
}
