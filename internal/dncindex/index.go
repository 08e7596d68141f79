// Package dncindex pins the do-not-contact list in RAM for deployments
// where Postgres round-trips per check are too slow (dialer hot paths).
//
// The index is an immutable snapshot: Rebuild constructs the four value
// sets off to the side and swaps them in under a write lock, so a lookup
// never observes a partially-loaded list. Lookups are exact set membership,
// same semantics as the SQL EXISTS path — the verdict must not change with
// the matcher backend.
package dncindex

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/crm-suppression/internal/domain"
	"github.com/ignite/crm-suppression/internal/service/dnc"
)

// Index is an in-memory dnc.Matcher. Safe for concurrent use.
type Index struct {
	mu   sync.RWMutex
	snap *snapshot

	checksTotal   uint64
	checksMatched uint64
}

type snapshot struct {
	emails      map[string]struct{}
	externalIDA map[string]struct{}
	externalIDB map[string]struct{}
	compounds   map[string]struct{}
	entryCount  int
	loadedAt    time.Time
}

func emptySnapshot() *snapshot {
	return &snapshot{
		emails:      map[string]struct{}{},
		externalIDA: map[string]struct{}{},
		externalIDB: map[string]struct{}{},
		compounds:   map[string]struct{}{},
	}
}

// New returns an empty index. Every check answers "not suppressed" until
// the first Rebuild, so callers should rebuild before serving traffic.
func New() *Index {
	return &Index{snap: emptySnapshot()}
}

// Rebuild replaces the whole snapshot with the given entries.
func (ix *Index) Rebuild(_ context.Context, entries []domain.SuppressionEntry) error {
	next := emptySnapshot()
	next.entryCount = len(entries)
	next.loadedAt = time.Now()
	for i := range entries {
		e := &entries[i]
		if e.NormalizedEmail != "" {
			next.emails[e.NormalizedEmail] = struct{}{}
		}
		if e.ExternalIDA != "" {
			next.externalIDA[e.ExternalIDA] = struct{}{}
		}
		if e.ExternalIDB != "" {
			next.externalIDB[e.ExternalIDB] = struct{}{}
		}
		if e.CompoundHash != "" {
			next.compounds[e.CompoundHash] = struct{}{}
		}
	}

	ix.mu.Lock()
	ix.snap = next
	ix.mu.Unlock()
	return nil
}

func (ix *Index) current() *snapshot {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.snap
}

func (ix *Index) contains(set map[string]struct{}, v string) (bool, error) {
	atomic.AddUint64(&ix.checksTotal, 1)
	if v == "" {
		return false, nil
	}
	if _, ok := set[v]; ok {
		atomic.AddUint64(&ix.checksMatched, 1)
		return true, nil
	}
	return false, nil
}

func (ix *Index) HasEmail(_ context.Context, email string) (bool, error) {
	return ix.contains(ix.current().emails, email)
}

func (ix *Index) HasExternalIDA(_ context.Context, id string) (bool, error) {
	return ix.contains(ix.current().externalIDA, id)
}

func (ix *Index) HasExternalIDB(_ context.Context, id string) (bool, error) {
	return ix.contains(ix.current().externalIDB, id)
}

func (ix *Index) HasCompoundHash(_ context.Context, hash string) (bool, error) {
	return ix.contains(ix.current().compounds, hash)
}

// MatchValues answers the whole query against one snapshot grab, so every
// value in a batch sees the same list generation.
func (ix *Index) MatchValues(_ context.Context, q dnc.ValueQuery) (*dnc.ValueMatches, error) {
	snap := ix.current()
	out := dnc.NewValueMatches()
	for _, v := range q.Emails {
		if _, ok := snap.emails[v]; ok {
			out.Emails[v] = struct{}{}
		}
	}
	for _, v := range q.ExternalIDAs {
		if _, ok := snap.externalIDA[v]; ok {
			out.ExternalIDAs[v] = struct{}{}
		}
	}
	for _, v := range q.ExternalIDBs {
		if _, ok := snap.externalIDB[v]; ok {
			out.ExternalIDBs[v] = struct{}{}
		}
	}
	for _, v := range q.CompoundHashes {
		if _, ok := snap.compounds[v]; ok {
			out.CompoundHashes[v] = struct{}{}
		}
	}
	return out, nil
}

// Stats describes the loaded snapshot and lookup counters.
type Stats struct {
	EntryCount    int       `json:"entry_count"`
	Emails        int       `json:"emails"`
	ExternalIDAs  int       `json:"external_id_as"`
	ExternalIDBs  int       `json:"external_id_bs"`
	CompoundKeys  int       `json:"compound_keys"`
	LoadedAt      time.Time `json:"loaded_at"`
	ChecksTotal   uint64    `json:"checks_total"`
	ChecksMatched uint64    `json:"checks_matched"`
}

// Stats returns a point-in-time view of the index.
func (ix *Index) Stats() Stats {
	snap := ix.current()
	return Stats{
		EntryCount:    snap.entryCount,
		Emails:        len(snap.emails),
		ExternalIDAs:  len(snap.externalIDA),
		ExternalIDBs:  len(snap.externalIDB),
		CompoundKeys:  len(snap.compounds),
		LoadedAt:      snap.loadedAt,
		ChecksTotal:   atomic.LoadUint64(&ix.checksTotal),
		ChecksMatched: atomic.LoadUint64(&ix.checksMatched),
	}
}
