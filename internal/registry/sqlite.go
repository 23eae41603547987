package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
)

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a SQLite-backed enrollment store at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, ferrors.StoreError("failed to open enrollment database").
			WithContext("path", dbPath).
			WithContext("error", err.Error()).
			Build()
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// initialize applies connection pragmas and creates the schema.
func (s *SQLiteStore) initialize() error {
	pragmas := []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA foreign_keys = ON`,
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return ferrors.StoreError("failed to apply database pragma").
				WithContext("pragma", pragma).
				WithContext("error", err.Error()).
				Build()
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS enrollments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner TEXT NOT NULL,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		default_branch TEXT NOT NULL,
		status TEXT NOT NULL,
		last_synced_revision TEXT NOT NULL DEFAULT '',
		last_synced_at INTEGER,
		last_outcome TEXT NOT NULL DEFAULT '',
		last_error TEXT NOT NULL DEFAULT '',
		sync_seq INTEGER NOT NULL DEFAULT 0,
		enrolled_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(owner, name)
	);

	CREATE INDEX IF NOT EXISTS idx_enrollments_status ON enrollments(status);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return ferrors.StoreError("failed to initialize enrollment schema").
			WithContext("error", err.Error()).
			Build()
	}

	return nil
}

// Enroll registers a repository for documentation inclusion. An active
// enrollment for the same repository fails; a suspended one is reactivated
// under its original slug so published URLs stay stable.
func (s *SQLiteStore) Enroll(ctx context.Context, owner, name, defaultBranch string) (*Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, ferrors.StoreError("failed to begin enrollment transaction").
			WithContext("error", err.Error()).
			Build()
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanEnrollment(tx.QueryRowContext(ctx,
		selectEnrollment+` WHERE owner = ? AND name = ?`, owner, name))
	switch {
	case err == nil:
		if existing.Status == StatusActive {
			return nil, ferrors.AlreadyEnrolledError("repository is already enrolled").
				WithContext("repository", owner+"/"+name).
				WithContext("slug", existing.Slug).
				Build()
		}
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE enrollments SET status = ?, default_branch = ?, last_error = '', updated_at = ? WHERE owner = ? AND name = ?`,
			StatusActive, defaultBranch, now.Unix(), owner, name); err != nil {
			return nil, ferrors.StoreError("failed to reactivate enrollment").
				WithContext("repository", owner+"/"+name).
				WithContext("error", err.Error()).
				Build()
		}
		if err := tx.Commit(); err != nil {
			return nil, commitError(err)
		}
		existing.Status = StatusActive
		existing.DefaultBranch = defaultBranch
		existing.LastError = ""
		existing.UpdatedAt = now
		return existing, nil
	case errors.Is(err, sql.ErrNoRows):
		// new enrollment below
	default:
		return nil, err
	}

	slug, err := s.uniqueSlug(ctx, tx, name)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	enrollment := &Enrollment{
		Owner:         owner,
		Name:          name,
		Slug:          slug,
		DefaultBranch: defaultBranch,
		Status:        StatusActive,
		EnrolledAt:    now,
		UpdatedAt:     now,
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO enrollments (owner, name, slug, default_branch, status, enrolled_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		owner, name, slug, defaultBranch, StatusActive, now.Unix(), now.Unix()); err != nil {
		return nil, ferrors.StoreError("failed to insert enrollment").
			WithContext("repository", owner+"/"+name).
			WithContext("error", err.Error()).
			Build()
	}
	if err := tx.Commit(); err != nil {
		return nil, commitError(err)
	}

	return enrollment, nil
}

// uniqueSlug derives the namespace slug for name, suffixing -2, -3, ... until
// it collides with no existing enrollment.
func (s *SQLiteStore) uniqueSlug(ctx context.Context, tx *sql.Tx, name string) (string, error) {
	base := DeriveSlug(name)
	candidate := base
	for n := 2; ; n++ {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM enrollments WHERE slug = ?`, candidate).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return candidate, nil
		}
		if err != nil {
			return "", ferrors.StoreError("failed to probe slug uniqueness").
				WithContext("slug", candidate).
				WithContext("error", err.Error()).
				Build()
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

// Unenroll suspends the enrollment. The record is retained so the slug stays
// reserved for the repository. Suspending twice is not an error.
func (s *SQLiteStore) Unenroll(ctx context.Context, owner, name string) error {
	return s.setStatus(ctx, owner, name, StatusSuspended, "")
}

// Suspend marks the enrollment suspended and records the reason in its
// last_error field so operators can see why syncing stopped.
func (s *SQLiteStore) Suspend(ctx context.Context, owner, name, reason string) error {
	return s.setStatus(ctx, owner, name, StatusSuspended, reason)
}

func (s *SQLiteStore) setStatus(ctx context.Context, owner, name string, status Status, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result sql.Result
	var err error
	if reason != "" {
		result, err = s.db.ExecContext(ctx,
			`UPDATE enrollments SET status = ?, last_error = ?, updated_at = ? WHERE owner = ? AND name = ?`,
			status, reason, time.Now().UTC().Unix(), owner, name)
	} else {
		result, err = s.db.ExecContext(ctx,
			`UPDATE enrollments SET status = ?, updated_at = ? WHERE owner = ? AND name = ?`,
			status, time.Now().UTC().Unix(), owner, name)
	}
	if err != nil {
		return ferrors.StoreError("failed to update enrollment status").
			WithContext("repository", owner+"/"+name).
			WithContext("error", err.Error()).
			Build()
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return ferrors.StoreError("failed to read status update result").
			WithContext("error", err.Error()).
			Build()
	}
	if affected == 0 {
		return notEnrolled(owner, name)
	}
	return nil
}

// Get returns the enrollment for a repository.
func (s *SQLiteStore) Get(ctx context.Context, owner, name string) (*Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	enrollment, err := scanEnrollment(s.db.QueryRowContext(ctx,
		selectEnrollment+` WHERE owner = ? AND name = ?`, owner, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notEnrolled(owner, name)
	}
	return enrollment, err
}

// GetBySlug returns the enrollment owning a namespace slug.
func (s *SQLiteStore) GetBySlug(ctx context.Context, slug string) (*Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	enrollment, err := scanEnrollment(s.db.QueryRowContext(ctx,
		selectEnrollment+` WHERE slug = ?`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ferrors.NotFoundError("no enrollment owns this slug").
			WithContext("slug", slug).
			Build()
	}
	return enrollment, err
}

// List returns all enrollments ordered by slug.
func (s *SQLiteStore) List(ctx context.Context) ([]*Enrollment, error) {
	return s.list(ctx, selectEnrollment+` ORDER BY slug`)
}

// ListActive returns active enrollments ordered by slug. This is the set the
// unified configuration and search surfaces are built from.
func (s *SQLiteStore) ListActive(ctx context.Context) ([]*Enrollment, error) {
	return s.list(ctx, selectEnrollment+` WHERE status = ? ORDER BY slug`, StatusActive)
}

func (s *SQLiteStore) list(ctx context.Context, query string, args ...any) ([]*Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ferrors.StoreError("failed to query enrollments").
			WithContext("error", err.Error()).
			Build()
	}
	defer func() { _ = rows.Close() }()

	var enrollments []*Enrollment
	for rows.Next() {
		enrollment, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, enrollment)
	}
	if err := rows.Err(); err != nil {
		return nil, ferrors.StoreError("failed to iterate enrollments").
			WithContext("error", err.Error()).
			Build()
	}

	return enrollments, nil
}

// RecordSyncOutcome applies a terminal sync result. The update only lands if
// the enrollment's sequence still matches the one observed when the job
// started; otherwise a newer outcome has already been applied and the stale
// one is rejected. Failed outcomes keep the last successfully synced revision.
func (s *SQLiteStore) RecordSyncOutcome(ctx context.Context, owner, name string, rec OutcomeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	completed := rec.CompletedAt
	if completed.IsZero() {
		completed = time.Now().UTC()
	}

	var result sql.Result
	var err error
	if rec.Outcome == OutcomeSuccess {
		result, err = s.db.ExecContext(ctx,
			`UPDATE enrollments
			 SET last_synced_revision = ?, last_synced_at = ?, last_outcome = ?, last_error = '',
			     sync_seq = sync_seq + 1, updated_at = ?
			 WHERE owner = ? AND name = ? AND sync_seq = ?`,
			rec.Revision, completed.Unix(), rec.Outcome, completed.Unix(), owner, name, rec.ObservedSeq)
	} else {
		result, err = s.db.ExecContext(ctx,
			`UPDATE enrollments
			 SET last_outcome = ?, last_error = ?,
			     sync_seq = sync_seq + 1, updated_at = ?
			 WHERE owner = ? AND name = ? AND sync_seq = ?`,
			rec.Outcome, rec.Error, completed.Unix(), owner, name, rec.ObservedSeq)
	}
	if err != nil {
		return ferrors.StoreError("failed to record sync outcome").
			WithContext("repository", owner+"/"+name).
			WithContext("revision", rec.Revision).
			WithContext("error", err.Error()).
			Build()
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return ferrors.StoreError("failed to read outcome update result").
			WithContext("error", err.Error()).
			Build()
	}
	if affected > 0 {
		return nil
	}

	// Distinguish a vanished enrollment from a sequence conflict.
	var seq int64
	err = s.db.QueryRowContext(ctx,
		`SELECT sync_seq FROM enrollments WHERE owner = ? AND name = ?`, owner, name).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return notEnrolled(owner, name)
	}
	if err != nil {
		return ferrors.StoreError("failed to inspect enrollment sequence").
			WithContext("repository", owner+"/"+name).
			WithContext("error", err.Error()).
			Build()
	}
	return ferrors.StaleRevisionError("a newer sync outcome was already recorded").
		WithContext("repository", owner+"/"+name).
		WithContext("revision", rec.Revision).
		WithContext("observed_seq", rec.ObservedSeq).
		WithContext("current_seq", seq).
		Build()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return ferrors.StoreError("failed to close enrollment database").
			WithContext("error", err.Error()).
			Build()
	}
	return nil
}

const selectEnrollment = `
	SELECT owner, name, slug, default_branch, status,
	       last_synced_revision, last_synced_at, last_outcome, last_error,
	       sync_seq, enrolled_at, updated_at
	FROM enrollments`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnrollment(row rowScanner) (*Enrollment, error) {
	var (
		e          Enrollment
		syncedAt   sql.NullInt64
		enrolledAt int64
		updatedAt  int64
	)
	err := row.Scan(&e.Owner, &e.Name, &e.Slug, &e.DefaultBranch, &e.Status,
		&e.LastSyncedRevision, &syncedAt, &e.LastOutcome, &e.LastError,
		&e.SyncSeq, &enrolledAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, ferrors.StoreError("failed to scan enrollment row").
			WithContext("error", err.Error()).
			Build()
	}

	if syncedAt.Valid {
		t := time.Unix(syncedAt.Int64, 0).UTC()
		e.LastSyncedAt = &t
	}
	e.EnrolledAt = time.Unix(enrolledAt, 0).UTC()
	e.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &e, nil
}

func notEnrolled(owner, name string) error {
	return ferrors.NotFoundError("repository is not enrolled").
		WithContext("repository", owner+"/"+name).
		Build()
}

func commitError(err error) error {
	return ferrors.StoreError("failed to commit enrollment transaction").
		WithContext("error", err.Error()).
		Build()
}
