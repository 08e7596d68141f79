package dnc

import (
	"context"

	"github.com/ignite/crm-suppression/internal/domain"
)

// Matcher is the read-side contract the evaluator needs from a
// do-not-contact store: an existence check per matchable field plus a
// batched variant. Implementations answer each call against a consistent
// snapshot of the list; a write racing an in-flight check may or may not be
// visible, but must never be partially applied.
//
// A failed lookup is not evidence of non-suppression: implementations must
// return the underlying error, never a clean false.
type Matcher interface {
	HasEmail(ctx context.Context, email string) (bool, error)
	HasExternalIDA(ctx context.Context, id string) (bool, error)
	HasExternalIDB(ctx context.Context, id string) (bool, error)
	HasCompoundHash(ctx context.Context, hash string) (bool, error)

	// MatchValues answers set membership for every queried value in one
	// batched lookup. Each returned set holds exactly the queried values
	// that are present on the list.
	MatchValues(ctx context.Context, q ValueQuery) (*ValueMatches, error)
}

// Repository extends Matcher with the management side of the list.
type Repository interface {
	Matcher

	// Insert adds an entry. Idempotent: re-inserting an identical value
	// tuple preserves the existing record.
	Insert(ctx context.Context, e *domain.SuppressionEntry) error

	// Delete removes an entry by ID. Returns ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, id string) error

	// List returns entries matching the filter plus the total entry count.
	List(ctx context.Context, f ListFilter) ([]domain.SuppressionEntry, int, error)

	// Count returns the total number of entries.
	Count(ctx context.Context) (int, error)

	// AllEntries returns every entry on the list, for snapshot rebuilds.
	AllEntries(ctx context.Context) ([]domain.SuppressionEntry, error)
}

// ListFilter controls pagination and filtering for entry listings.
type ListFilter struct {
	Source string
	Search string
	Limit  int
	Offset int
}

// ValueQuery carries the distinct matchable values of a batch of contacts,
// grouped by field.
type ValueQuery struct {
	Emails         []string
	ExternalIDAs   []string
	ExternalIDBs   []string
	CompoundHashes []string
}

// IsEmpty reports whether the query carries no values at all.
func (q ValueQuery) IsEmpty() bool {
	return len(q.Emails) == 0 && len(q.ExternalIDAs) == 0 &&
		len(q.ExternalIDBs) == 0 && len(q.CompoundHashes) == 0
}

// ValueMatches holds, per field, the queried values found on the list.
type ValueMatches struct {
	Emails         map[string]struct{}
	ExternalIDAs   map[string]struct{}
	ExternalIDBs   map[string]struct{}
	CompoundHashes map[string]struct{}
}

// NewValueMatches returns an empty result with all sets allocated.
func NewValueMatches() *ValueMatches {
	return &ValueMatches{
		Emails:         make(map[string]struct{}),
		ExternalIDAs:   make(map[string]struct{}),
		ExternalIDBs:   make(map[string]struct{}),
		CompoundHashes: make(map[string]struct{}),
	}
}

// Has reports whether the given value was found on the list under the
// field belonging to reason.
func (m *ValueMatches) Has(reason domain.MatchReason, value string) bool {
	if value == "" {
		return false
	}
	var set map[string]struct{}
	switch reason {
	case domain.MatchReasonEmail:
		set = m.Emails
	case domain.MatchReasonExternalIDA:
		set = m.ExternalIDAs
	case domain.MatchReasonExternalIDB:
		set = m.ExternalIDBs
	case domain.MatchReasonCompoundKey:
		set = m.CompoundHashes
	}
	_, ok := set[value]
	return ok
}
