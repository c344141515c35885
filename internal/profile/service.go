// Package profile runs the thread-to-profile pipeline: dedup against stored
// history, persist the snapshot, classify, extract, merge, and read back.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"client-profile-service/internal/logging"
	"client-profile-service/internal/merge"
	"client-profile-service/internal/models"
	"client-profile-service/internal/store"
	"client-profile-service/internal/threadmatch"
)

// ErrInvalidInput marks requests rejected before any store or model call.
var ErrInvalidInput = errors.New("invalid input")

// Classifier decides whether a thread is a client conversation.
type Classifier interface {
	IsClientThread(ctx context.Context, thread string) (bool, error)
}

// Extractor pulls profile fields from a thread.
type Extractor interface {
	Extract(ctx context.Context, current models.Profile, thread string) (*models.Extraction, error)
}

// Outcome is the terminal branch a Resolve call took.
type Outcome string

const (
	OutcomeSkipped      Outcome = "skipped"
	OutcomeMerged       Outcome = "merged"
	OutcomeActivityOnly Outcome = "activity_only"
	OutcomeNotClient    Outcome = "not_client"
)

// Result is what Resolve reports back. Profile is nil only for OutcomeNotClient.
type Result struct {
	Profile *models.Profile
	Outcome Outcome
	Match   threadmatch.Kind
}

// Options holds pipeline policy switches.
type Options struct {
	// ClassifyNewProfiles classifies the first message of an unknown sender
	// before creating a profile; a non-client sender gets no row.
	ClassifyNewProfiles bool
}

// Service runs the profile pipeline against a store and a model backend.
type Service struct {
	store      store.Store
	classifier Classifier
	extractor  Extractor
	opts       Options
	locks      *keyedMutex
	now        func() time.Time
}

// NewService creates a new instance of the profile Service
func NewService(st store.Store, classifier Classifier, extractor Extractor, opts Options) *Service {
	return &Service{
		store:      st,
		classifier: classifier,
		extractor:  extractor,
		opts:       opts,
		locks:      newKeyedMutex(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Resolve merges thread into the profile for email and returns the persisted
// profile. Requests for the same email run one at a time.
func (s *Service) Resolve(ctx context.Context, email, thread string) (*Result, error) {
	email = store.NormalizeEmail(email)
	thread = strings.TrimSpace(thread)
	if email == "" || thread == "" {
		return nil, fmt.Errorf("%w: email and thread content are required", ErrInvalidInput)
	}

	locallog := logging.FromContext(ctx).WithField("email", email)

	unlock := s.locks.Lock(email)
	defer unlock()

	// Profile
	var classifiedThread string
	p, err := s.store.GetProfileByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		if s.opts.ClassifyNewProfiles {
			if !s.isClient(ctx, thread) {
				locallog.Info("Unknown sender is not a client, no profile created")
				return &Result{Outcome: OutcomeNotClient}, nil
			}
			classifiedThread = thread
		}
		var created bool
		p, created, err = s.store.EnsureProfile(ctx, email, s.now())
		if err != nil {
			return nil, fmt.Errorf("creating profile: %w", err)
		}
		if created {
			locallog.Info("Created profile")
		}
	} else if err != nil {
		return nil, fmt.Errorf("looking up profile: %w", err)
	}

	// Dedup
	stored, err := s.store.ListMessages(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	decision := threadmatch.Match(stored, thread)
	locallog = locallog.WithField("match", decision.Kind.String())

	now := s.now()
	at := now
	if n := len(stored); n > 0 && stored[n-1].Timestamp.After(at) {
		at = stored[n-1].Timestamp
	}

	switch decision.Kind {
	case threadmatch.Duplicate:
		locallog.Info("Thread already stored, skipping")
		return &Result{Profile: p, Outcome: OutcomeSkipped, Match: decision.Kind}, nil
	case threadmatch.Supersede:
		if _, err := s.store.ReplaceMessage(ctx, decision.Target.ID, p.ID, thread, at); err != nil {
			return nil, fmt.Errorf("replacing message %d: %w", decision.Target.ID, err)
		}
	default:
		if _, err := s.store.InsertMessage(ctx, p.ID, thread, at); err != nil {
			return nil, fmt.Errorf("storing message: %w", err)
		}
	}

	// Classify, extract, merge
	full := threadmatch.Thread(stored, decision, thread)
	outcome := OutcomeActivityOnly
	client := full == classifiedThread || s.isClient(ctx, full)
	if client {
		ext, err := s.extractor.Extract(ctx, *p, full)
		if err != nil {
			locallog.WithError(err).Warn("Extraction failed, recording activity only")
		} else {
			next := merge.Apply(*p, ext, now)
			if err := s.store.UpdateProfile(ctx, &next); err != nil {
				return nil, fmt.Errorf("saving profile: %w", err)
			}
			outcome = OutcomeMerged
		}
	}
	if outcome == OutcomeActivityOnly {
		if err := s.store.TouchProfile(ctx, p.ID, now); err != nil {
			return nil, fmt.Errorf("touching profile: %w", err)
		}
	}

	final, err := s.store.GetProfile(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("reading back profile: %w", err)
	}

	locallog.WithField("outcome", string(outcome)).Info("Profile processed")
	return &Result{Profile: final, Outcome: outcome, Match: decision.Kind}, nil
}

// isClient runs the classifier; a failed call counts as "not a client".
func (s *Service) isClient(ctx context.Context, thread string) bool {
	ok, err := s.classifier.IsClientThread(ctx, thread)
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Classification failed, treating thread as non-client")
		return false
	}
	return ok
}

// UpdateNotes overwrites the notes of an existing profile. It returns an error
// wrapping store.ErrNotFound for unknown emails.
func (s *Service) UpdateNotes(ctx context.Context, email, notes string) error {
	email = store.NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	unlock := s.locks.Lock(email)
	defer unlock()

	if err := s.store.UpdateNotes(ctx, email, strings.TrimSpace(notes), s.now()); err != nil {
		return err
	}
	logging.FromContext(ctx).WithField("email", email).Info("Notes updated")
	return nil
}
