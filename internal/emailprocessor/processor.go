package emailprocessor

import (
	"context"
	"fmt"
	"time"

	imapclient "client-profile-service/internal/imap"
	"client-profile-service/internal/logging"
	"client-profile-service/internal/mailparse"
	"client-profile-service/internal/models"
	"client-profile-service/internal/profile"

	"github.com/sirupsen/logrus"
)

// Resolver feeds one thread into the profile pipeline.
type Resolver interface {
	Resolve(ctx context.Context, email, thread string) (*profile.Result, error)
}

// Processor turns fetched mailbox messages into profile updates.
type Processor struct {
	imapClient imapclient.Client
	resolver   Resolver
	lookback   time.Duration
	now        func() time.Time
}

// NewProcessor creates a new Processor. Messages older than lookback are
// skipped; zero disables the age check.
func NewProcessor(imapClient imapclient.Client, resolver Resolver, lookback time.Duration) *Processor {
	return &Processor{
		imapClient: imapClient,
		resolver:   resolver,
		lookback:   lookback,
		now:        time.Now,
	}
}

// ProcessEmail orchestrates the complete email processing workflow:
// fetch → parse → validate age → resolve profile → mark as seen
func (p *Processor) ProcessEmail(ctx context.Context, uid uint32) error {
	// Fetch message from IMAP
	msg, err := p.imapClient.FetchMessage(uid)
	if err != nil {
		return err
	}

	// Parse email to normalized structure
	email, err := mailparse.Parse(msg)
	if err != nil {
		logging.Log.WithField("trace_id", "unknown").Errorf("Error parsing email UID %d: %v", uid, err)
		return err
	}

	ctx = logging.ContextWithTrace(ctx, email.TraceID)
	locallog := logging.FromContext(ctx).WithField("uid", uid)

	// IMAP SINCE only filters by day
	if !p.isEmailValidAt(email, p.now()) {
		locallog.Infof("Message is older than %v (date: %v), skipping", p.lookback, email.InternalDate)
		return nil
	}

	thread := mailparse.ThreadText(email)
	if email.From == "" || thread == "" {
		locallog.Warn("Message has no sender address or no text, marking seen without processing")
		p.markSeen(locallog, uid)
		return nil
	}

	res, err := p.resolver.Resolve(ctx, email.From, thread)
	if err != nil {
		// left unseen so the next poll retries it
		return fmt.Errorf("resolving profile for UID %d: %w", uid, err)
	}

	locallog.WithField("outcome", string(res.Outcome)).Infof("Processed message from %s", email.From)
	p.markSeen(locallog, uid)
	return nil
}

func (p *Processor) markSeen(locallog *logrus.Entry, uid uint32) {
	if err := p.imapClient.MarkSeen(uid); err != nil {
		locallog.Errorf("Error marking message UID %d as seen: %v", uid, err)
	}
}

// isEmailValidAt allows testing with a fixed "now" time for deterministic unit tests
func (p *Processor) isEmailValidAt(email *models.InboundEmail, now time.Time) bool {
	if email.InternalDate.IsZero() || p.lookback <= 0 {
		return true
	}

	cutoff := now.Add(-p.lookback)
	return !email.InternalDate.Before(cutoff) // inclusive
}
