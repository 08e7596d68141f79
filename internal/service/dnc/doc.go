// Package dnc implements the do-not-contact matching engine.
//
// This is the single source of truth for whether a CRM contact may be
// reached by any campaign or dialer queue. Entries flow in from multiple
// sources (manual admin action, list imports, complaints, legal demands)
// and every contact is checked before outreach is enqueued.
//
// Matching is a closed set of exact-match rules evaluated in a fixed
// priority order — no fuzzy, phonetic, or partial matching of any kind.
// The rule order and empty-value guards live in one table in this package
// (matchRules) shared by the single and bulk paths, so the two can never
// drift apart and the reported reason is always the highest-priority hit.
//
// The service layer contains pure business logic and depends on the
// Matcher/Repository interfaces defined in repository.go. It never imports
// net/http or database/sql directly.
package dnc
