// Package normalize turns raw contact fields into the canonical forms the
// do-not-contact matcher compares on. Every function here is pure and total:
// no I/O, no panics, and missing input is treated identically to blank input
// (both yield the empty string).
//
// List entries and contacts are normalized independently and compared only
// by equality, so these functions must produce byte-identical output for
// identical input on every machine. Nothing here may depend on locale,
// timezone, or process state.
package normalize

import (
	"strings"

	"github.com/ignite/crm-suppression/internal/domain"
)

// Email canonicalizes an email address for equality comparison: trim and
// lower-case only. No format validation — a structurally invalid address is
// normalized as given and simply never matches anything real.
func Email(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Text canonicalizes a free-text field (company names): trim, collapse
// internal whitespace runs to a single space, lower-case.
func Text(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

// FullName joins independently-trimmed first and last name parts with a
// single space and applies the same collapse/lower-casing as Text. Returns
// "" when both parts are blank.
func FullName(first, last string) string {
	return Text(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

// Apply recomputes the derived fields on a contact from its raw fields.
// Collaborators must call this whenever email, first/last name, or company
// change, before requesting any suppression evaluation. It is the only
// writer of the derived fields — there is no database trigger keeping them
// in sync.
func Apply(c *domain.Contact) {
	c.NormalizedEmail = Email(c.Email)
	c.NormalizedFullName = FullName(c.FirstName, c.LastName)
	c.NormalizedCompany = Text(c.CompanyName)
	c.CompoundHash = CompoundHash(c.NormalizedFullName, c.NormalizedCompany)
}
