package domain

// Contact is the subset of a CRM contact record relevant to do-not-contact
// matching. Raw fields come from the source system as-is; the Normalized*
// fields and CompoundHash are a derived cache recomputed by normalize.Apply
// whenever any raw field is written. Evaluation assumes the derived fields
// are current; that is a caller precondition, not re-checked per call.
type Contact struct {
	ID          string `json:"id" db:"id"`
	Email       string `json:"email" db:"email"`
	FirstName   string `json:"first_name" db:"first_name"`
	LastName    string `json:"last_name" db:"last_name"`
	CompanyName string `json:"company_name" db:"company_name"`

	// Opaque keys from upstream source systems. Compared byte-for-byte,
	// never normalized.
	ExternalIDA string `json:"external_id_a" db:"external_id_a"`
	ExternalIDB string `json:"external_id_b" db:"external_id_b"`

	// Derived fields. Empty string means absent. CompoundHash is non-empty
	// iff both NormalizedFullName and NormalizedCompany are non-empty.
	NormalizedEmail    string `json:"-" db:"normalized_email"`
	NormalizedFullName string `json:"-" db:"normalized_full_name"`
	NormalizedCompany  string `json:"-" db:"normalized_company"`
	CompoundHash       string `json:"-" db:"compound_hash"`
}
