// Package redisstore keeps a snapshot of the do-not-contact list in Redis
// sets, one per matchable field, for fleets that share a hot list across
// several API instances. The sets are rebuilt wholesale from Postgres by
// the sync worker; single checks use SISMEMBER and bulk checks pipeline
// their membership probes.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/crm-suppression/internal/domain"
	"github.com/ignite/crm-suppression/internal/service/dnc"
)

const (
	keyEmails       = "dnc:emails"
	keyExternalIDA  = "dnc:external_id_a"
	keyExternalIDB  = "dnc:external_id_b"
	keyCompoundHash = "dnc:compound_hash"
	keySyncedAt     = "dnc:synced_at"

	rebuildSuffix = ":rebuild"

	// SAdd batch size during rebuilds. Keeps pipeline memory bounded when
	// the list runs to millions of entries.
	rebuildChunk = 5000
)

// Store implements dnc.Matcher on Redis sets.
type Store struct {
	rdb *redis.Client
}

// New creates a Redis-backed snapshot store.
func New(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

func (s *Store) hasMember(ctx context.Context, key, value string) (bool, error) {
	if value == "" {
		return false, nil
	}
	ok, err := s.rdb.SIsMember(ctx, key, value).Result()
	if err != nil {
		return false, fmt.Errorf("dnc redis lookup %s: %w", key, err)
	}
	return ok, nil
}

func (s *Store) HasEmail(ctx context.Context, email string) (bool, error) {
	return s.hasMember(ctx, keyEmails, email)
}

func (s *Store) HasExternalIDA(ctx context.Context, id string) (bool, error) {
	return s.hasMember(ctx, keyExternalIDA, id)
}

func (s *Store) HasExternalIDB(ctx context.Context, id string) (bool, error) {
	return s.hasMember(ctx, keyExternalIDB, id)
}

func (s *Store) HasCompoundHash(ctx context.Context, hash string) (bool, error) {
	return s.hasMember(ctx, keyCompoundHash, hash)
}

// MatchValues pipelines one SISMEMBER per queried value — a single round
// trip regardless of batch size.
func (s *Store) MatchValues(ctx context.Context, q dnc.ValueQuery) (*dnc.ValueMatches, error) {
	type probe struct {
		value string
		set   map[string]struct{}
		cmd   *redis.BoolCmd
	}

	out := dnc.NewValueMatches()
	pipe := s.rdb.Pipeline()
	var probes []probe

	queue := func(key string, values []string, set map[string]struct{}) {
		for _, v := range values {
			probes = append(probes, probe{value: v, set: set, cmd: pipe.SIsMember(ctx, key, v)})
		}
	}
	queue(keyEmails, q.Emails, out.Emails)
	queue(keyExternalIDA, q.ExternalIDAs, out.ExternalIDAs)
	queue(keyExternalIDB, q.ExternalIDBs, out.ExternalIDBs)
	queue(keyCompoundHash, q.CompoundHashes, out.CompoundHashes)

	if len(probes) == 0 {
		return out, nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("dnc redis bulk lookup: %w", err)
	}

	for _, p := range probes {
		if p.cmd.Val() {
			p.set[p.value] = struct{}{}
		}
	}
	return out, nil
}

// Rebuild replaces the snapshot with the given entries. Values are staged
// into temp sets and swapped in with RENAME inside a transaction, so
// readers see either the old snapshot or the new one, never a mix of
// fields from both.
func (s *Store) Rebuild(ctx context.Context, entries []domain.SuppressionEntry) error {
	live := []string{keyEmails, keyExternalIDA, keyExternalIDB, keyCompoundHash}
	staged := make(map[string]int, len(live))

	pipe := s.rdb.Pipeline()
	for _, key := range live {
		pipe.Del(ctx, key+rebuildSuffix)
	}

	pending := 0
	flush := func() error {
		if pending == 0 && pipe.Len() == 0 {
			return nil
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("dnc redis rebuild stage: %w", err)
		}
		pipe = s.rdb.Pipeline()
		pending = 0
		return nil
	}
	stage := func(key, value string) {
		if value == "" {
			return
		}
		pipe.SAdd(ctx, key+rebuildSuffix, value)
		staged[key]++
		pending++
	}

	for i := range entries {
		e := &entries[i]
		stage(keyEmails, e.NormalizedEmail)
		stage(keyExternalIDA, e.ExternalIDA)
		stage(keyExternalIDB, e.ExternalIDB)
		stage(keyCompoundHash, e.CompoundHash)
		if pending >= rebuildChunk {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	swap := s.rdb.TxPipeline()
	for _, key := range live {
		if staged[key] > 0 {
			swap.Rename(ctx, key+rebuildSuffix, key)
		} else {
			// Nothing staged for this field: the live set must go too,
			// or removed entries would keep matching.
			swap.Del(ctx, key)
		}
	}
	swap.Set(ctx, keySyncedAt, time.Now().UTC().Format(time.RFC3339), 0)
	if _, err := swap.Exec(ctx); err != nil {
		return fmt.Errorf("dnc redis rebuild swap: %w", err)
	}
	return nil
}

// SyncedAt returns the timestamp recorded by the last successful Rebuild,
// or the zero time when the snapshot has never been built.
func (s *Store) SyncedAt(ctx context.Context) (time.Time, error) {
	raw, err := s.rdb.Get(ctx, keySyncedAt).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("dnc redis synced_at: %w", err)
	}
	return time.Parse(time.RFC3339, raw)
}
