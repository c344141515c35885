package emailprocessor

import (
	"context"
	"time"

	imapclient "client-profile-service/internal/imap"
	"client-profile-service/internal/logging"
	"client-profile-service/internal/models"
)

const (
	failureThreshold     = 5
	failureBaseBackoff   = 5 * time.Minute
	failureSleepDuration = 30 * time.Minute
)

// Poller periodically drains unseen mail from one mailbox into the pipeline.
type Poller struct {
	cfg      models.EmailConfig
	dial     imapclient.Dialer
	resolver Resolver

	failures int
	now      func() time.Time
}

// NewPoller creates a Poller for cfg. dial is called once per round.
func NewPoller(cfg models.EmailConfig, dial imapclient.Dialer, resolver Resolver) *Poller {
	return &Poller{
		cfg:      cfg,
		dial:     dial,
		resolver: resolver,
		now:      time.Now,
	}
}

// Run polls every RefreshTime until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	logging.Log.Infof("Starting inbox polling of %s/%s, refresh every %s", p.cfg.Imap, p.cfg.MailBox, p.cfg.RefreshTime)

	for {
		wait := p.cfg.RefreshTime
		if err := p.PollOnce(ctx); err != nil {
			if b := p.backoff(); b > wait {
				logging.Log.Warnf("IMAP failed %d times, waiting %s before next attempt", p.failures, b)
				wait = b
			}
		}

		select {
		case <-ctx.Done():
			logging.Log.Info("Inbox polling stopped")
			return
		case <-time.After(wait):
		}
	}
}

// PollOnce connects, lists unseen messages inside the lookback window and
// processes each. It returns an error only when the mailbox could not be
// reached; per-message failures are logged and retried on the next round.
func (p *Poller) PollOnce(ctx context.Context) error {
	client := p.dial()

	// Connect
	if err := client.Connect(p.cfg.Imap); err != nil {
		p.failures++
		logging.Log.Errorf("IMAP connection error: %v", err)
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	// Reset failure count on successful connection
	p.failures = 0

	// Login
	if err := client.Login(p.cfg.Login, p.cfg.Password); err != nil {
		logging.Log.Errorf("Login error: %v", err)
		return nil
	}

	// Select mailbox
	if err := client.SelectMailbox(p.cfg.MailBox); err != nil {
		logging.Log.Errorf("Folder selection error: %v", err)
		return nil
	}

	var since time.Time
	if p.cfg.Lookback > 0 {
		since = p.now().Add(-p.cfg.Lookback)
	}
	uids, err := client.ListUnseenUIDs(since)
	if err != nil {
		logging.Log.Errorf("Error searching for recent emails: %v", err)
		return nil
	}

	if len(uids) == 0 {
		return nil
	}

	processor := NewProcessor(client, p.resolver, p.cfg.Lookback)
	processor.now = p.now

	for _, uid := range uids {
		if ctx.Err() != nil {
			return nil
		}
		if err := processor.ProcessEmail(ctx, uid); err != nil {
			logging.Log.Errorf("Error processing email UID %d: %v", uid, err)
		}
	}
	return nil
}

// backoff is the extra wait after consecutive connection failures: nothing
// below the threshold, then doubling from five minutes, capped at thirty.
func (p *Poller) backoff() time.Duration {
	return backoffFor(p.failures)
}

func backoffFor(failures int) time.Duration {
	if failures < failureThreshold {
		return 0
	}

	n := failures - failureThreshold
	if n > 10 {
		n = 10
	}

	backoff := failureBaseBackoff * time.Duration(1<<n)
	if backoff > failureSleepDuration {
		backoff = failureSleepDuration
	}
	return backoff
}
