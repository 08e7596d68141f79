package normalize

import (
	"crypto/sha256"
	"encoding/hex"
)

// CompoundHash derives the compound-key digest from an already-normalized
// full name and company. Returns "" unless both inputs are non-empty: a
// name without a company (or vice versa) is not a usable compound key.
//
// The digest is SHA-256 over name + "|" + company, lower-case hex. The "|"
// separator keeps ("ab", "c") and ("a", "bc") from colliding.
func CompoundHash(normFullName, normCompany string) string {
	if normFullName == "" || normCompany == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normFullName + "|" + normCompany))
	return hex.EncodeToString(sum[:])
}
