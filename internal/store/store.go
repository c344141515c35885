// Package store persists profiles and their message history in a relational
// database. SQLite (modernc.org/sqlite) is the embedded default; Postgres
// (lib/pq) is available for shared deployments. Both use the same queries.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"client-profile-service/internal/models"
)

// ErrNotFound is returned when a profile or message does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the record store used by the profile pipeline.
type Store interface {
	// Profiles
	GetProfile(ctx context.Context, id int64) (*models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	EnsureProfile(ctx context.Context, email string, at time.Time) (*models.Profile, bool, error)
	UpdateProfile(ctx context.Context, p *models.Profile) error
	TouchProfile(ctx context.Context, id int64, at time.Time) error
	UpdateNotes(ctx context.Context, email, notes string, at time.Time) error

	// Messages
	ListMessages(ctx context.Context, profileID int64) ([]models.Message, error)
	InsertMessage(ctx context.Context, profileID int64, content string, at time.Time) (int64, error)
	DeleteMessage(ctx context.Context, id int64) error
	ReplaceMessage(ctx context.Context, oldID, profileID int64, content string, at time.Time) (int64, error)

	Close() error
}

// New opens the backend selected by cfg.Driver
func New(cfg models.StoreConfig) (*SQLStore, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres":
		return NewPostgres(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

// NormalizeEmail is the canonical form emails are stored and looked up under.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type dialect struct {
	name     string
	numbered bool // $1, $2 placeholders instead of ?
	schema   []string
}

// SQLStore implements Store on database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders for drivers that use numbered ones.
func (s *SQLStore) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

const profileColumns = `id, email, name, preferences, timeline, concerns, notes, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (*models.Profile, error) {
	var (
		p       models.Profile
		updated int64
	)
	err := row.Scan(&p.ID, &p.Email, &p.Name, &p.Preferences, &p.Timeline, &p.Concerns, &p.Notes, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.UpdatedAt = fromMicros(updated)
	return &p, nil
}

// GetProfile retrieves a profile by id
func (s *SQLStore) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+profileColumns+` FROM profiles WHERE id = ?`), id)
	p, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("selecting profile %d: %w", id, err)
	}
	return p, nil
}

// GetProfileByEmail retrieves a profile by its (normalized) email
func (s *SQLStore) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+profileColumns+` FROM profiles WHERE email = ?`), NormalizeEmail(email))
	p, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("selecting profile %s: %w", email, err)
	}
	return p, nil
}

// EnsureProfile returns the profile for email, inserting an empty one if none
// exists. The unique email constraint makes concurrent callers converge on one
// row; created reports whether this call inserted it.
func (s *SQLStore) EnsureProfile(ctx context.Context, email string, at time.Time) (*models.Profile, bool, error) {
	email = NormalizeEmail(email)
	res, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO profiles (email, name, preferences, timeline, concerns, notes, updated_at)
		 VALUES (?, '', '', '', '', '', ?)
		 ON CONFLICT (email) DO NOTHING`),
		email, toMicros(at),
	)
	if err != nil {
		return nil, false, fmt.Errorf("inserting profile %s: %w", email, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("inserting profile %s: %w", email, err)
	}

	p, err := s.GetProfileByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	return p, affected == 1, nil
}

// UpdateProfile writes the extracted content fields and updated_at. Notes are
// left alone.
func (s *SQLStore) UpdateProfile(ctx context.Context, p *models.Profile) error {
	at := toMicros(p.UpdatedAt)
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE profiles
		 SET name = ?, preferences = ?, timeline = ?, concerns = ?,
		     updated_at = CASE WHEN updated_at > ? THEN updated_at ELSE ? END
		 WHERE id = ?`),
		p.Name, p.Preferences, p.Timeline, p.Concerns, at, at, p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating profile %d: %w", p.ID, err)
	}
	return expectRow(res, fmt.Sprintf("profile %d", p.ID))
}

// TouchProfile advances updated_at only
func (s *SQLStore) TouchProfile(ctx context.Context, id int64, at time.Time) error {
	ts := toMicros(at)
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE profiles
		 SET updated_at = CASE WHEN updated_at > ? THEN updated_at ELSE ? END
		 WHERE id = ?`),
		ts, ts, id,
	)
	if err != nil {
		return fmt.Errorf("touching profile %d: %w", id, err)
	}
	return expectRow(res, fmt.Sprintf("profile %d", id))
}

// UpdateNotes overwrites the notes of the profile with the given email
func (s *SQLStore) UpdateNotes(ctx context.Context, email, notes string, at time.Time) error {
	ts := toMicros(at)
	email = NormalizeEmail(email)
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE profiles
		 SET notes = ?, updated_at = CASE WHEN updated_at > ? THEN updated_at ELSE ? END
		 WHERE email = ?`),
		notes, ts, ts, email,
	)
	if err != nil {
		return fmt.Errorf("updating notes for %s: %w", email, err)
	}
	return expectRow(res, "profile "+email)
}

// ListMessages returns the stored snapshots of a profile in thread order
func (s *SQLStore) ListMessages(ctx context.Context, profileID int64) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, profile_id, content, received_at FROM messages
		 WHERE profile_id = ?
		 ORDER BY received_at ASC, id ASC`),
		profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages for profile %d: %w", profileID, err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var (
			m  models.Message
			ts int64
		)
		if err := rows.Scan(&m.ID, &m.ProfileID, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Timestamp = fromMicros(ts)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing messages for profile %d: %w", profileID, err)
	}
	return messages, nil
}

// InsertMessage appends a snapshot and returns its id
func (s *SQLStore) InsertMessage(ctx context.Context, profileID int64, content string, at time.Time) (int64, error) {
	id, err := insertMessage(ctx, s.db, s.rebind, profileID, content, at)
	if err != nil {
		return 0, fmt.Errorf("inserting message for profile %d: %w", profileID, err)
	}
	return id, nil
}

// DeleteMessage removes a snapshot by id
func (s *SQLStore) DeleteMessage(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM messages WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting message %d: %w", id, err)
	}
	return expectRow(res, fmt.Sprintf("message %d", id))
}

// ReplaceMessage deletes oldID and inserts content for the same profile in one
// transaction, so a failed insert never loses the older snapshot.
func (s *SQLStore) ReplaceMessage(ctx context.Context, oldID, profileID int64, content string, at time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM messages WHERE id = ? AND profile_id = ?`), oldID, profileID)
	if err != nil {
		return 0, fmt.Errorf("deleting message %d: %w", oldID, err)
	}
	if err := expectRow(res, fmt.Sprintf("message %d", oldID)); err != nil {
		return 0, err
	}

	id, err := insertMessage(ctx, tx, s.rebind, profileID, content, at)
	if err != nil {
		return 0, fmt.Errorf("inserting replacement for message %d: %w", oldID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing replacement of message %d: %w", oldID, err)
	}
	return id, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertMessage(ctx context.Context, q queryRower, rebind func(string) string, profileID int64, content string, at time.Time) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, rebind(
		`INSERT INTO messages (profile_id, content, received_at) VALUES (?, ?, ?) RETURNING id`),
		profileID, content, toMicros(at),
	).Scan(&id)
	return id, err
}

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func toMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}
