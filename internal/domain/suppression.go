package domain

import "time"

// MatchReason identifies which rule suppressed a contact. The strings are
// stable and surfaced verbatim to API consumers and audit logs.
type MatchReason string

const (
	MatchReasonEmail       MatchReason = "email"
	MatchReasonExternalIDA MatchReason = "external_id_a"
	MatchReasonExternalIDB MatchReason = "external_id_b"
	MatchReasonCompoundKey MatchReason = "compound_key"
)

// MatchVerdict is the outcome of evaluating one contact against the
// do-not-contact list. Exactly one reason is reported even when several
// rules would match; rule priority decides which.
type MatchVerdict struct {
	Matched bool        `json:"matched"`
	Reason  MatchReason `json:"reason,omitempty"`
}

// EntrySource indicates where a do-not-contact entry originated.
type EntrySource string

const (
	SourceManual      EntrySource = "manual"
	SourceImport      EntrySource = "import"
	SourceComplaint   EntrySource = "complaint"
	SourceLegal       EntrySource = "legal"
	SourceUnsubscribe EntrySource = "unsubscribe"
)

// SuppressionEntry is one reason a party must never be contacted. Each of
// the four matchable values is optional (empty string means absent), but at
// least one must be set for the entry to mean anything.
type SuppressionEntry struct {
	ID              string      `json:"id" db:"id"`
	NormalizedEmail string      `json:"normalized_email,omitempty" db:"normalized_email"`
	ExternalIDA     string      `json:"external_id_a,omitempty" db:"external_id_a"`
	ExternalIDB     string      `json:"external_id_b,omitempty" db:"external_id_b"`
	CompoundHash    string      `json:"compound_hash,omitempty" db:"compound_hash"`
	Reason          string      `json:"reason" db:"reason"`
	Source          EntrySource `json:"source" db:"source"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
}

// Matchable reports whether the entry carries at least one matchable value.
// Entries failing this check are rejected at creation.
func (e *SuppressionEntry) Matchable() bool {
	return e.NormalizedEmail != "" || e.ExternalIDA != "" ||
		e.ExternalIDB != "" || e.CompoundHash != ""
}
