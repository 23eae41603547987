// Package registry holds the durable record of enrolled repositories and
// their sync state. Enrollment slugs are derived once at enrollment and
// never change for the enrollment's lifetime; re-enrollment after an
// unenroll reuses the original slug.
package registry

import (
	"context"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Status represents the lifecycle state of an enrollment.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Outcome represents the terminal result of a sync job.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// Enrollment is a repository registered for unified documentation inclusion.
// Sync-state fields are mutated only through RecordSyncOutcome; status only
// through Enroll, Unenroll, and Suspend.
type Enrollment struct {
	Owner              string     `json:"owner"`
	Name               string     `json:"name"`
	Slug               string     `json:"slug"`
	DefaultBranch      string     `json:"default_branch"`
	Status             Status     `json:"status"`
	LastSyncedRevision string     `json:"last_synced_revision,omitempty"`
	LastSyncedAt       *time.Time `json:"last_synced_at,omitempty"`
	LastOutcome        Outcome    `json:"last_outcome,omitempty"`
	LastError          string     `json:"last_error,omitempty"`
	SyncSeq            int64      `json:"-"`
	EnrolledAt         time.Time  `json:"enrolled_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// FullName returns the owner/name identity of the repository.
func (e *Enrollment) FullName() string {
	return e.Owner + "/" + e.Name
}

// OutcomeRecord carries the result of a finished sync job. ObservedSeq is the
// enrollment's SyncSeq captured when the job started; outcomes presented with
// a stale sequence are rejected so out-of-order application cannot clobber a
// newer result.
type OutcomeRecord struct {
	Revision    string
	Outcome     Outcome
	Error       string
	ObservedSeq int64
	CompletedAt time.Time
}

// Store defines the persistence contract for enrollments.
type Store interface {
	// Enroll registers a repository, deriving a unique slug. Fails with an
	// already-enrolled error if active; reactivates (same slug) if suspended.
	Enroll(ctx context.Context, owner, name, defaultBranch string) (*Enrollment, error)

	// Unenroll sets the enrollment to suspended. Idempotent; the record is
	// retained for audit and slug stability.
	Unenroll(ctx context.Context, owner, name string) error

	// Get returns the enrollment for a repository, or a not-found error.
	Get(ctx context.Context, owner, name string) (*Enrollment, error)

	// GetBySlug returns the enrollment owning a namespace slug.
	GetBySlug(ctx context.Context, slug string) (*Enrollment, error)

	// List returns all enrollments ordered by slug.
	List(ctx context.Context) ([]*Enrollment, error)

	// ListActive returns active enrollments ordered by slug.
	ListActive(ctx context.Context) ([]*Enrollment, error)

	// RecordSyncOutcome applies a terminal sync result. The only mutator of
	// sync-state fields. Rejects stale sequences; failures never overwrite
	// the last successfully synced revision.
	RecordSyncOutcome(ctx context.Context, owner, name string, rec OutcomeRecord) error

	// Suspend marks the enrollment suspended with an operator-visible reason.
	Suspend(ctx context.Context, owner, name, reason string) error

	// Close releases store resources.
	Close() error
}

// DeriveSlug produces the unified namespace slug for a repository name:
// unicode-decomposed with combining marks stripped, lowercased, runs of
// non-alphanumerics collapsed to single hyphens. Uniqueness across
// enrollments is enforced by the store, not here.
func DeriveSlug(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, name)
	if err != nil {
		normalized = name
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(normalized) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingDash = b.Len() > 0
			continue
		}
		if pendingDash {
			b.WriteByte('-')
			pendingDash = false
		}
		b.WriteRune(r)
	}

	slug := b.String()
	if slug == "" {
		return "repo"
	}
	return slug
}
