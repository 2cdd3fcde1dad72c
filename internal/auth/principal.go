// Package auth resolves inbound request credentials to a Principal.
//
// Resolution is split into two phases: a pure identity phase (Resolve)
// with no side effects, and an explicit audit phase (RecordKeyUse) the
// caller runs after a successful resolution. Authorization policy —
// mapping a resolved principal to allow/deny — belongs to the caller.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Role collapses the various surface roles to the platform's four tiers.
type Role string

const (
	RoleOwnerAdmin   Role = "owner_admin"
	RoleLimitedStaff Role = "limited_staff"
	RoleLearner      Role = "learner"
)

// CredentialKind records which resolution path produced the principal.
type CredentialKind string

const (
	KindAPIKeySubject    CredentialKind = "api-key-subject"
	KindAPIKeyTenant     CredentialKind = "api-key-tenant"
	KindBearerMembership CredentialKind = "bearer-membership"
)

// Principal is the resolved identity for one request. It is immutable and
// request-scoped: never cache it across requests, credentials can be
// revoked or rotated between calls.
type Principal struct {
	OrgID     string
	SubjectID string // empty when the credential resolves only to the org
	Role      Role
	Kind      CredentialKind
	Scopes    []string

	// keyID identifies the matched org key row for the audit phase only.
	keyID string
}

// HasScope reports whether the principal carries the given scope. Bearer
// and subject-key principals have no scope list; for those, role checks
// apply instead.
func (p *Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

var (
	// ErrUnauthenticated means no credential resolved. Callers map it to 401.
	ErrUnauthenticated = errors.New("no valid credential")

	// ErrForbidden means a credential resolved but lacks the required
	// role or scope. Callers map it to 403.
	ErrForbidden = errors.New("insufficient role or scope")

	// ErrUpstreamUnavailable means the identity provider or store failed.
	ErrUpstreamUnavailable = errors.New("identity backend unavailable")
)

// HashAPIKey returns the hex-encoded SHA-256 digest used for key lookups.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
