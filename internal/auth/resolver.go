package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/msaada/backend/internal/database"
)

// CredentialStore is the subset of store lookups the resolver needs.
type CredentialStore interface {
	GetStudentByKeyHash(ctx context.Context, keyHash string) (*database.Student, error)
	GetOrgKeyByHash(ctx context.Context, keyHash string) (*database.OrgAPIKey, error)
	GetOrganization(ctx context.Context, orgID string) (*database.Organization, error)
	GetMembership(ctx context.Context, orgID, userID string) (*database.OrgMember, error)
	FindStudentByUserID(ctx context.Context, userID string) (*database.Student, error)
	TouchStudentLastActive(ctx context.Context, studentID string) error
	TouchOrgKeyLastUsed(ctx context.Context, keyID string) error
}

// IdentityProvider validates bearer tokens, yielding the subject user id.
type IdentityProvider interface {
	UserIDFromToken(ctx context.Context, token string) (string, error)
}

// Credentials are the raw credential materials extracted from a request.
type Credentials struct {
	APIKey      string // x-api-key header
	BearerToken string // Authorization: Bearer <token>
	OrgIDHint   string // explicit org_id query parameter, may be empty
}

// CredentialsFromRequest pulls credential materials out of an HTTP request.
func CredentialsFromRequest(r *http.Request) Credentials {
	creds := Credentials{
		APIKey:    r.Header.Get("x-api-key"),
		OrgIDHint: r.URL.Query().Get("org_id"),
	}
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		creds.BearerToken = strings.TrimPrefix(authz, "Bearer ")
	}
	return creds
}

// Resolver resolves credentials against the store and identity provider.
type Resolver struct {
	store        CredentialStore
	idp          IdentityProvider
	requiredTier string // product tier an org must hold for key-as-tenant access
}

// NewResolver builds a resolver. requiredTier gates the api-key-as-tenant
// path; pass the tier name the consuming product requires.
func NewResolver(store CredentialStore, idp IdentityProvider, requiredTier string) *Resolver {
	return &Resolver{store: store, idp: idp, requiredTier: requiredTier}
}

// Resolve tries each credential scheme in strict priority order and stops
// at the first success:
//
//  1. API key as subject (student record keyed by SHA-256 of the key)
//  2. API key as tenant (org key table, active, org on the required tier)
//  3. Bearer token membership (identity provider + org membership row)
//
// It is side-effect free; the caller applies RecordKeyUse afterwards.
// Inactive or expired credentials resolve to ErrUnauthenticated, never to
// a principal carrying a disabled flag.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials) (*Principal, error) {
	if creds.APIKey != "" {
		keyHash := HashAPIKey(creds.APIKey)

		p, err := r.resolveSubjectKey(ctx, keyHash)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}

		p, err = r.resolveTenantKey(ctx, keyHash)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}

	if creds.BearerToken != "" {
		p, err := r.resolveBearer(ctx, creds)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}

	return nil, ErrUnauthenticated
}

func (r *Resolver) resolveSubjectKey(ctx context.Context, keyHash string) (*Principal, error) {
	student, err := r.store.GetStudentByKeyHash(ctx, keyHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if student == nil {
		return nil, nil
	}
	return &Principal{
		OrgID:     student.OrgID,
		SubjectID: student.StudentID,
		Role:      RoleLearner,
		Kind:      KindAPIKeySubject,
	}, nil
}

func (r *Resolver) resolveTenantKey(ctx context.Context, keyHash string) (*Principal, error) {
	key, err := r.store.GetOrgKeyByHash(ctx, keyHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if key == nil || !key.IsActive {
		return nil, nil
	}
	if key.ExpiresAt != nil && key.ExpiresAt.Before(time.Now()) {
		// Expired keys are indistinguishable from revoked ones to callers.
		return nil, nil
	}

	org, err := r.store.GetOrganization(ctx, key.OrgID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if org == nil || org.Status != "active" {
		return nil, nil
	}
	if r.requiredTier != "" && org.ProductTier != r.requiredTier {
		return nil, nil
	}

	role := RoleOwnerAdmin
	if len(key.Scopes) > 0 && !containsWriteScope(key.Scopes) {
		role = RoleLimitedStaff
	}

	return &Principal{
		OrgID:  key.OrgID,
		Role:   role,
		Kind:   KindAPIKeyTenant,
		Scopes: key.Scopes,
		keyID:  key.KeyID,
	}, nil
}

func (r *Resolver) resolveBearer(ctx context.Context, creds Credentials) (*Principal, error) {
	userID, err := r.idp.UserIDFromToken(ctx, creds.BearerToken)
	if err != nil {
		// An outage at the identity provider must not masquerade as a
		// rejected credential; only genuine rejections fall through.
		if errors.Is(err, ErrUpstreamUnavailable) {
			return nil, err
		}
		slog.Debug("bearer token rejected", "error", err)
		return nil, nil
	}

	if creds.OrgIDHint != "" {
		member, err := r.store.GetMembership(ctx, creds.OrgIDHint, userID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		if member == nil {
			return nil, nil
		}
		return &Principal{
			OrgID:     member.OrgID,
			SubjectID: userID,
			Role:      roleFromMembership(member.Role),
			Kind:      KindBearerMembership,
		}, nil
	}

	// No explicit org: the token is accepted if the user is uniquely a
	// student somewhere.
	student, err := r.store.FindStudentByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if student == nil {
		return nil, nil
	}
	return &Principal{
		OrgID:     student.OrgID,
		SubjectID: student.StudentID,
		Role:      RoleLearner,
		Kind:      KindBearerMembership,
	}, nil
}

// RecordKeyUse applies the accepted audit side effect after a successful
// resolution: a last-active timestamp on the matched record. Failures are
// logged and swallowed — liveness bookkeeping never fails a request.
func (r *Resolver) RecordKeyUse(ctx context.Context, p *Principal) {
	var err error
	switch p.Kind {
	case KindAPIKeySubject:
		err = r.store.TouchStudentLastActive(ctx, p.SubjectID)
	case KindAPIKeyTenant:
		err = r.store.TouchOrgKeyLastUsed(ctx, p.keyID)
	}
	if err != nil {
		slog.Warn("failed to record key use", "kind", p.Kind, "error", err)
	}
}

func containsWriteScope(scopes []string) bool {
	for _, s := range scopes {
		if strings.HasSuffix(s, ":write") {
			return true
		}
	}
	return false
}

func roleFromMembership(role string) Role {
	switch role {
	case "owner", "admin":
		return RoleOwnerAdmin
	case "student", "learner":
		return RoleLearner
	default:
		return RoleLimitedStaff
	}
}
