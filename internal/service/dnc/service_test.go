package dnc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ignite/crm-suppression/internal/domain"
	"github.com/ignite/crm-suppression/internal/normalize"
)

// mockRepo is an in-memory repository for testing.
type mockRepo struct {
	mu      sync.RWMutex
	entries map[string]*domain.SuppressionEntry // keyed by ID
	failAll error                               // when set, every call fails
}

func newMockRepo() *mockRepo {
	return &mockRepo{entries: make(map[string]*domain.SuppressionEntry)}
}

func (m *mockRepo) has(match func(*domain.SuppressionEntry) bool) (bool, error) {
	if m.failAll != nil {
		return false, m.failAll
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if match(e) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) HasEmail(_ context.Context, v string) (bool, error) {
	return m.has(func(e *domain.SuppressionEntry) bool { return v != "" && e.NormalizedEmail == v })
}

func (m *mockRepo) HasExternalIDA(_ context.Context, v string) (bool, error) {
	return m.has(func(e *domain.SuppressionEntry) bool { return v != "" && e.ExternalIDA == v })
}

func (m *mockRepo) HasExternalIDB(_ context.Context, v string) (bool, error) {
	return m.has(func(e *domain.SuppressionEntry) bool { return v != "" && e.ExternalIDB == v })
}

func (m *mockRepo) HasCompoundHash(_ context.Context, v string) (bool, error) {
	return m.has(func(e *domain.SuppressionEntry) bool { return v != "" && e.CompoundHash == v })
}

func (m *mockRepo) MatchValues(ctx context.Context, q ValueQuery) (*ValueMatches, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	out := NewValueMatches()
	for _, v := range q.Emails {
		if ok, _ := m.HasEmail(ctx, v); ok {
			out.Emails[v] = struct{}{}
		}
	}
	for _, v := range q.ExternalIDAs {
		if ok, _ := m.HasExternalIDA(ctx, v); ok {
			out.ExternalIDAs[v] = struct{}{}
		}
	}
	for _, v := range q.ExternalIDBs {
		if ok, _ := m.HasExternalIDB(ctx, v); ok {
			out.ExternalIDBs[v] = struct{}{}
		}
	}
	for _, v := range q.CompoundHashes {
		if ok, _ := m.HasCompoundHash(ctx, v); ok {
			out.CompoundHashes[v] = struct{}{}
		}
	}
	return out, nil
}

func (m *mockRepo) Insert(_ context.Context, e *domain.SuppressionEntry) error {
	if m.failAll != nil {
		return m.failAll
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.entries {
		if ex.NormalizedEmail == e.NormalizedEmail && ex.ExternalIDA == e.ExternalIDA &&
			ex.ExternalIDB == e.ExternalIDB && ex.CompoundHash == e.CompoundHash {
			return nil // idempotent
		}
	}
	m.entries[e.ID] = e
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, f ListFilter) ([]domain.SuppressionEntry, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.SuppressionEntry
	for _, e := range m.entries {
		if f.Source != "" && string(e.Source) != f.Source {
			continue
		}
		if f.Search != "" && !strings.Contains(e.NormalizedEmail, f.Search) {
			continue
		}
		out = append(out, *e)
	}
	return out, len(m.entries), nil
}

func (m *mockRepo) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func (m *mockRepo) AllEntries(_ context.Context) ([]domain.SuppressionEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.SuppressionEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, *e)
	}
	return out, nil
}

// newContact builds a contact with derived fields computed, the way the
// import/update path would hand it to the evaluator.
func newContact(id, email, first, last, company, idA, idB string) domain.Contact {
	c := domain.Contact{
		ID: id, Email: email, FirstName: first, LastName: last,
		CompanyName: company, ExternalIDA: idA, ExternalIDB: idB,
	}
	normalize.Apply(&c)
	return c
}

func compoundEntry(fullName, company string) *domain.SuppressionEntry {
	return &domain.SuppressionEntry{
		CompoundHash: normalize.CompoundHash(normalize.Text(fullName), normalize.Text(company)),
		Reason:       "do not contact",
	}
}

func TestEvaluate_EmailMatchIsCaseInsensitive(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	// Entry arrives upper-cased from the source system; AddEntry normalizes.
	err := svc.AddEntry(ctx, &domain.SuppressionEntry{
		NormalizedEmail: "JOHN.DOE@EXAMPLE.COM",
		Reason:          "unsubscribe request",
	})
	if err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	c := newContact("c1", "john.doe@example.com", "", "", "", "", "")
	v, err := svc.Evaluate(ctx, &c)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !v.Matched || v.Reason != domain.MatchReasonEmail {
		t.Errorf("verdict = %+v, want email match", v)
	}
}

func TestEvaluate_ExternalIDMatches(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_ = svc.AddEntry(ctx, &domain.SuppressionEntry{ExternalIDA: "SRC-001", Reason: "legal"})
	_ = svc.AddEntry(ctx, &domain.SuppressionEntry{ExternalIDB: "crm-77", Reason: "legal"})

	cA := newContact("a", "", "", "", "", "SRC-001", "")
	if v, _ := svc.Evaluate(ctx, &cA); !v.Matched || v.Reason != domain.MatchReasonExternalIDA {
		t.Errorf("external ID A verdict = %+v", v)
	}

	cB := newContact("b", "", "", "", "", "", "crm-77")
	if v, _ := svc.Evaluate(ctx, &cB); !v.Matched || v.Reason != domain.MatchReasonExternalIDB {
		t.Errorf("external ID B verdict = %+v", v)
	}

	// Opaque keys are compared byte-for-byte: case matters.
	cLower := newContact("c", "", "", "", "", "src-001", "")
	if v, _ := svc.Evaluate(ctx, &cLower); v.Matched {
		t.Errorf("external IDs must not be case-folded, got %+v", v)
	}
}

func TestEvaluate_CompoundKeyMatch(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_ = svc.AddEntry(ctx, compoundEntry("John Doe", "Acme Corp"))

	c := newContact("c1", "", "John", "Doe", "Acme   Corp", "", "")
	v, err := svc.Evaluate(ctx, &c)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !v.Matched || v.Reason != domain.MatchReasonCompoundKey {
		t.Errorf("verdict = %+v, want compound_key match", v)
	}
}

// Same company, different name: the compound rule must not fire. There is
// no company-only match path.
func TestEvaluate_CompanyOnlyIsNotAMatch(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_ = svc.AddEntry(ctx, compoundEntry("jane smith", "acme corp"))

	c := newContact("c1", "", "Jane", "Doe", "Acme Corp", "", "")
	v, err := svc.Evaluate(ctx, &c)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Matched {
		t.Errorf("company-only overlap must not match, got %+v", v)
	}
}

// A contact with a name but no company has no compound hash, so the
// compound rule can never fire for it regardless of store contents.
func TestEvaluate_NoCompoundKeyWithoutCompany(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_ = svc.AddEntry(ctx, compoundEntry("john doe", "acme corp"))

	c := newContact("c1", "", "John", "Doe", "", "", "")
	if c.CompoundHash != "" {
		t.Fatalf("contact without company must have no compound hash, got %q", c.CompoundHash)
	}
	v, err := svc.Evaluate(ctx, &c)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Matched {
		t.Errorf("verdict = %+v, want no match", v)
	}
}

// A contact matching several rules against different entries reports the
// highest-priority reason: email before external IDs before compound key.
func TestEvaluate_RulePriorityOrder(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_ = svc.AddEntry(ctx, &domain.SuppressionEntry{NormalizedEmail: "both@example.com", Reason: "r"})
	_ = svc.AddEntry(ctx, &domain.SuppressionEntry{ExternalIDA: "id-a", Reason: "r"})
	_ = svc.AddEntry(ctx, &domain.SuppressionEntry{ExternalIDB: "id-b", Reason: "r"})
	_ = svc.AddEntry(ctx, compoundEntry("john doe", "acme corp"))

	c := newContact("c1", "both@example.com", "John", "Doe", "Acme Corp", "id-a", "id-b")
	if v, _ := svc.Evaluate(ctx, &c); v.Reason != domain.MatchReasonEmail {
		t.Errorf("email rule must win, got %+v", v)
	}

	noEmail := newContact("c2", "", "John", "Doe", "Acme Corp", "id-a", "id-b")
	if v, _ := svc.Evaluate(ctx, &noEmail); v.Reason != domain.MatchReasonExternalIDA {
		t.Errorf("external ID A must beat B and compound, got %+v", v)
	}

	onlyBAndCompound := newContact("c3", "", "John", "Doe", "Acme Corp", "", "id-b")
	if v, _ := svc.Evaluate(ctx, &onlyBAndCompound); v.Reason != domain.MatchReasonExternalIDB {
		t.Errorf("external ID B must beat compound, got %+v", v)
	}
}

func TestEvaluate_EmptyContactYieldsNoMatch(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_ = svc.AddEntry(ctx, &domain.SuppressionEntry{NormalizedEmail: "x@example.com", Reason: "r"})

	c := newContact("c1", "", "", "", "", "", "")
	v, err := svc.Evaluate(ctx, &c)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Matched {
		t.Errorf("empty contact matched: %+v", v)
	}
}

func TestEvaluate_StoreErrorPropagates(t *testing.T) {
	repo := newMockRepo()
	repo.failAll = errors.New("connection refused")
	svc := NewService(repo)
	ctx := context.Background()

	c := newContact("c1", "x@example.com", "", "", "", "", "")
	if _, err := svc.Evaluate(ctx, &c); !errors.Is(err, repo.failAll) {
		t.Errorf("Evaluate error = %v, want wrapped store error", err)
	}
	if _, err := svc.EvaluateBulk(ctx, []domain.Contact{c}); !errors.Is(err, repo.failAll) {
		t.Errorf("EvaluateBulk error = %v, want wrapped store error", err)
	}
}

// seedList populates the repo with a mix of entry shapes.
func seedList(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 40; i++ {
		var err error
		switch i % 4 {
		case 0:
			err = svc.AddEntry(ctx, &domain.SuppressionEntry{
				NormalizedEmail: fmt.Sprintf("blocked%d@example.com", i), Reason: "seed",
			})
		case 1:
			err = svc.AddEntry(ctx, &domain.SuppressionEntry{ExternalIDA: fmt.Sprintf("A-%d", i), Reason: "seed"})
		case 2:
			err = svc.AddEntry(ctx, &domain.SuppressionEntry{ExternalIDB: fmt.Sprintf("B-%d", i), Reason: "seed"})
		case 3:
			err = svc.AddEntry(ctx, compoundEntry(fmt.Sprintf("Person %d", i), "Acme Corp"))
		}
		if err != nil {
			t.Fatalf("seed entry %d: %v", i, err)
		}
	}
}

// makeContacts generates n contacts with a spread of matchable and
// unmatchable shapes, some hitting the seeded list and some not.
func makeContacts(n int) []domain.Contact {
	out := make([]domain.Contact, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("contact-%d", i)
		switch i % 7 {
		case 0:
			out = append(out, newContact(id, fmt.Sprintf("Blocked%d@Example.com", (i*4)%40), "", "", "", "", ""))
		case 1:
			out = append(out, newContact(id, fmt.Sprintf("clean%d@example.com", i), "", "", "", "", ""))
		case 2:
			out = append(out, newContact(id, "", "", "", "", fmt.Sprintf("A-%d", (i*4+1)%40), ""))
		case 3:
			out = append(out, newContact(id, "", "", "", "", "", fmt.Sprintf("B-%d", (i*4+2)%40)))
		case 4:
			out = append(out, newContact(id, "", fmt.Sprintf("Person %d", (i*4+3)%40), "", "Acme Corp", "", ""))
		case 5:
			// Multiple matchable fields: priority tie-break exercised.
			out = append(out, newContact(id, fmt.Sprintf("blocked%d@example.com", (i*4)%40), "Person 3", "", "Acme Corp", fmt.Sprintf("A-%d", (i*4+1)%40), ""))
		case 6:
			// No matchable fields at all.
			out = append(out, newContact(id, "", "", "", "Lonely Company", "", ""))
		}
	}
	return out
}

// Bulk evaluation is a batching optimization only: for every contact its
// result must equal the single-contact path, at every batch size.
func TestEvaluateBulk_MatchesSingleEvaluation(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()
	seedList(t, svc)

	for _, n := range []int{0, 1, 50, 1000} {
		contacts := makeContacts(n)
		bulk, err := svc.EvaluateBulk(ctx, contacts)
		if err != nil {
			t.Fatalf("EvaluateBulk(n=%d): %v", n, err)
		}

		for i := range contacts {
			c := &contacts[i]
			single, err := svc.Evaluate(ctx, c)
			if err != nil {
				t.Fatalf("Evaluate(%s): %v", c.ID, err)
			}
			reason, inBulk := bulk[c.ID]
			if single.Matched != inBulk {
				t.Errorf("n=%d %s: single matched=%v, bulk present=%v", n, c.ID, single.Matched, inBulk)
				continue
			}
			if single.Matched && reason != single.Reason {
				t.Errorf("n=%d %s: single reason=%s, bulk reason=%s", n, c.ID, single.Reason, reason)
			}
		}

		// Sparse map: nothing but matched contacts may appear.
		if len(bulk) > n {
			t.Errorf("n=%d: bulk map has %d entries", n, len(bulk))
		}
	}
}

func TestCountByReason(t *testing.T) {
	verdicts := map[string]domain.MatchReason{
		"a": domain.MatchReasonEmail,
		"b": domain.MatchReasonEmail,
		"c": domain.MatchReasonCompoundKey,
		"d": domain.MatchReasonExternalIDA,
	}
	counts := CountByReason(verdicts)
	if counts[domain.MatchReasonEmail] != 2 ||
		counts[domain.MatchReasonCompoundKey] != 1 ||
		counts[domain.MatchReasonExternalIDA] != 1 ||
		counts[domain.MatchReasonExternalIDB] != 0 {
		t.Errorf("counts = %v", counts)
	}
}

func TestAddEntry_RejectsUnmatchableEntry(t *testing.T) {
	svc := NewService(newMockRepo())
	err := svc.AddEntry(context.Background(), &domain.SuppressionEntry{Reason: "nothing to match"})
	if !errors.Is(err, ErrNotMatchable) {
		t.Errorf("AddEntry error = %v, want ErrNotMatchable", err)
	}

	// Whitespace-only email normalizes to empty and is just as unmatchable.
	err = svc.AddEntry(context.Background(), &domain.SuppressionEntry{NormalizedEmail: "   "})
	if !errors.Is(err, ErrNotMatchable) {
		t.Errorf("AddEntry error = %v, want ErrNotMatchable", err)
	}
}

func TestAddEntry_Idempotent(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := svc.AddEntry(ctx, &domain.SuppressionEntry{
			NormalizedEmail: "Dup@Example.com", Reason: "r", Source: domain.SourceImport,
		})
		if err != nil {
			t.Fatalf("AddEntry #%d: %v", i, err)
		}
	}

	count, _ := svc.Count(ctx)
	if count != 1 {
		t.Errorf("expected 1 entry, got %d", count)
	}
}

func TestRemoveEntry_NotFound(t *testing.T) {
	svc := NewService(newMockRepo())
	if err := svc.RemoveEntry(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RemoveEntry error = %v, want ErrNotFound", err)
	}
}

func TestGetStats(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_ = svc.AddEntry(ctx, &domain.SuppressionEntry{NormalizedEmail: "a@example.com", Source: domain.SourceManual})
	_ = svc.AddEntry(ctx, &domain.SuppressionEntry{NormalizedEmail: "b@example.com", ExternalIDA: "A-1", Source: domain.SourceImport})
	_ = svc.AddEntry(ctx, compoundEntry("john doe", "acme corp"))

	stats, err := svc.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.WithEmail != 2 || stats.WithExternalIDA != 1 || stats.WithCompoundHash != 1 {
		t.Errorf("field counts = %+v", stats)
	}
	if stats.BySource["import"] != 1 {
		t.Errorf("BySource = %v", stats.BySource)
	}
}
