package dnc

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/crm-suppression/internal/domain"
	"github.com/ignite/crm-suppression/internal/normalize"
)

// matchRules is the ordered rule set. First match wins; later rules are not
// evaluated once an earlier one fires, which is what makes the reported
// reason deterministic when several rules would match. A rule is skipped
// when the contact's value for it is empty — that guard is what forbids
// company-only and name-only matches: a contact without both name and
// company has no compound hash and so can never hit rule 4.
//
// Order changes here are a behavioral change for every consumer that
// persists verdict reasons. Don't reorder casually.
var matchRules = []struct {
	reason domain.MatchReason
	value  func(*domain.Contact) string
}{
	{domain.MatchReasonEmail, func(c *domain.Contact) string { return c.NormalizedEmail }},
	{domain.MatchReasonExternalIDA, func(c *domain.Contact) string { return c.ExternalIDA }},
	{domain.MatchReasonExternalIDB, func(c *domain.Contact) string { return c.ExternalIDB }},
	{domain.MatchReasonCompoundKey, func(c *domain.Contact) string { return c.CompoundHash }},
}

// Service implements do-not-contact business logic. It is stateless and
// safe for concurrent use; the list store is injected, never ambient.
type Service struct {
	repo    Repository
	matcher Matcher
}

// NewService creates a service backed by the given repository. Reads go
// through the repository too unless UseMatcher installs a snapshot store.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, matcher: repo}
}

// UseMatcher routes evaluation reads through m (an in-RAM or Redis
// snapshot) while management writes keep going to the repository.
func (s *Service) UseMatcher(m Matcher) {
	s.matcher = m
}

// Evaluate checks one contact against the list and returns the verdict of
// the highest-priority matching rule, or an unmatched verdict. The
// contact's derived fields must be current (see normalize.Apply). A store
// failure propagates unchanged: callers must not treat it as "not
// suppressed".
func (s *Service) Evaluate(ctx context.Context, c *domain.Contact) (domain.MatchVerdict, error) {
	for _, r := range matchRules {
		v := r.value(c)
		if v == "" {
			continue
		}
		hit, err := s.hasValue(ctx, r.reason, v)
		if err != nil {
			return domain.MatchVerdict{}, fmt.Errorf("dnc check %s: %w", r.reason, err)
		}
		if hit {
			return domain.MatchVerdict{Matched: true, Reason: r.reason}, nil
		}
	}
	return domain.MatchVerdict{}, nil
}

// EvaluateBulk checks many contacts in one batched store lookup and returns
// a sparse map: contact ID → reason, matched contacts only. Results are
// identical to calling Evaluate once per contact — the bulk path prefetches
// membership for every distinct value, then walks the same matchRules table
// per contact. Dropping unmatched contacts is pure post-processing; the
// match condition is never derived a second time.
func (s *Service) EvaluateBulk(ctx context.Context, contacts []domain.Contact) (map[string]domain.MatchReason, error) {
	out := make(map[string]domain.MatchReason)
	if len(contacts) == 0 {
		return out, nil
	}

	q := buildValueQuery(contacts)
	if q.IsEmpty() {
		return out, nil
	}

	matches, err := s.matcher.MatchValues(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("dnc bulk check: %w", err)
	}

	for i := range contacts {
		c := &contacts[i]
		for _, r := range matchRules {
			v := r.value(c)
			if v == "" {
				continue
			}
			if matches.Has(r.reason, v) {
				out[c.ID] = r.reason
				break
			}
		}
	}
	return out, nil
}

// CountByReason summarizes a bulk verdict map into per-reason totals. A
// reporting convenience over the map, not a separate rule.
func CountByReason(verdicts map[string]domain.MatchReason) map[domain.MatchReason]int {
	counts := make(map[domain.MatchReason]int)
	for _, reason := range verdicts {
		counts[reason]++
	}
	return counts
}

func (s *Service) hasValue(ctx context.Context, reason domain.MatchReason, v string) (bool, error) {
	switch reason {
	case domain.MatchReasonEmail:
		return s.matcher.HasEmail(ctx, v)
	case domain.MatchReasonExternalIDA:
		return s.matcher.HasExternalIDA(ctx, v)
	case domain.MatchReasonExternalIDB:
		return s.matcher.HasExternalIDB(ctx, v)
	case domain.MatchReasonCompoundKey:
		return s.matcher.HasCompoundHash(ctx, v)
	}
	return false, fmt.Errorf("unknown match reason %q", reason)
}

// buildValueQuery collects the distinct matchable values of a batch,
// grouped by field, so the store sees each value once.
func buildValueQuery(contacts []domain.Contact) ValueQuery {
	seen := map[domain.MatchReason]map[string]struct{}{}
	var q ValueQuery
	for i := range contacts {
		c := &contacts[i]
		for _, r := range matchRules {
			v := r.value(c)
			if v == "" {
				continue
			}
			set := seen[r.reason]
			if set == nil {
				set = make(map[string]struct{})
				seen[r.reason] = set
			}
			if _, dup := set[v]; dup {
				continue
			}
			set[v] = struct{}{}
			switch r.reason {
			case domain.MatchReasonEmail:
				q.Emails = append(q.Emails, v)
			case domain.MatchReasonExternalIDA:
				q.ExternalIDAs = append(q.ExternalIDAs, v)
			case domain.MatchReasonExternalIDB:
				q.ExternalIDBs = append(q.ExternalIDBs, v)
			case domain.MatchReasonCompoundKey:
				q.CompoundHashes = append(q.CompoundHashes, v)
			}
		}
	}
	return q
}

// AddEntry adds an entry to the list. The email value is normalized before
// storage; external IDs and the compound hash are stored as given. Entries
// with no matchable value are rejected with ErrNotMatchable. Idempotent —
// re-adding an identical value tuple preserves the existing record.
func (s *Service) AddEntry(ctx context.Context, e *domain.SuppressionEntry) error {
	e.NormalizedEmail = normalize.Email(e.NormalizedEmail)
	if !e.Matchable() {
		return ErrNotMatchable
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Source == "" {
		e.Source = domain.SourceManual
	}
	return s.repo.Insert(ctx, e)
}

// RemoveEntry deletes an entry by ID. Returns ErrNotFound if it doesn't exist.
func (s *Service) RemoveEntry(ctx context.Context, id string) error {
	if id == "" {
		return ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}

// ListEntries returns entries matching the given filter.
func (s *Service) ListEntries(ctx context.Context, f ListFilter) ([]domain.SuppressionEntry, int, error) {
	return s.repo.List(ctx, f)
}

// Count returns the total number of entries on the list.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Stats holds aggregate entry counts for the admin dashboard.
type Stats struct {
	Total            int            `json:"total"`
	BySource         map[string]int `json:"by_source"`
	WithEmail        int            `json:"with_email"`
	WithExternalIDA  int            `json:"with_external_id_a"`
	WithExternalIDB  int            `json:"with_external_id_b"`
	WithCompoundHash int            `json:"with_compound_hash"`
}

// GetStats computes list statistics.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	entries, total, err := s.repo.List(ctx, ListFilter{Limit: 0})
	if err != nil {
		return nil, err
	}

	stats := &Stats{Total: total, BySource: make(map[string]int)}
	for i := range entries {
		e := &entries[i]
		stats.BySource[string(e.Source)]++
		if e.NormalizedEmail != "" {
			stats.WithEmail++
		}
		if e.ExternalIDA != "" {
			stats.WithExternalIDA++
		}
		if e.ExternalIDB != "" {
			stats.WithExternalIDB++
		}
		if e.CompoundHash != "" {
			stats.WithCompoundHash++
		}
	}
	return stats, nil
}
