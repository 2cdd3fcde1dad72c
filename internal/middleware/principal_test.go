package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msaada/backend/internal/auth"
	"github.com/msaada/backend/internal/database"
)

// minimal store fake: one student key, optional hard failure.
type stubStore struct {
	student  *database.Student
	failWith error
}

func (s *stubStore) GetStudentByKeyHash(ctx context.Context, keyHash string) (*database.Student, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	if s.student != nil && auth.HashAPIKey("good-key") == keyHash {
		return s.student, nil
	}
	return nil, nil
}

func (s *stubStore) GetOrgKeyByHash(ctx context.Context, keyHash string) (*database.OrgAPIKey, error) {
	return nil, nil
}

func (s *stubStore) GetOrganization(ctx context.Context, orgID string) (*database.Organization, error) {
	return nil, nil
}

func (s *stubStore) GetMembership(ctx context.Context, orgID, userID string) (*database.OrgMember, error) {
	return nil, nil
}

func (s *stubStore) FindStudentByUserID(ctx context.Context, userID string) (*database.Student, error) {
	return nil, nil
}

func (s *stubStore) TouchStudentLastActive(ctx context.Context, studentID string) error { return nil }
func (s *stubStore) TouchOrgKeyLastUsed(ctx context.Context, keyID string) error        { return nil }

type stubIDP struct{}

func (stubIDP) UserIDFromToken(ctx context.Context, token string) (string, error) {
	return "", errors.New("token rejected")
}

func okHandler(captured **auth.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := PrincipalFrom(r.Context()); ok && captured != nil {
			*captured = p
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestPrincipalMiddleware_InjectsPrincipal(t *testing.T) {
	store := &stubStore{student: &database.Student{StudentID: "stu-1", OrgID: "org-1"}}
	resolver := auth.NewResolver(store, stubIDP{}, "standard")

	var got *auth.Principal
	handler := Principal(resolver)(okHandler(&got))

	r := httptest.NewRequest("GET", "/api/v1/education/cases", nil)
	r.Header.Set("x-api-key", "good-key")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, "org-1", got.OrgID)
	assert.Equal(t, auth.RoleLearner, got.Role)
}

func TestPrincipalMiddleware_NoCredentialsIs401(t *testing.T) {
	resolver := auth.NewResolver(&stubStore{}, stubIDP{}, "standard")
	handler := Principal(resolver)(okHandler(nil))

	r := httptest.NewRequest("GET", "/api/v1/education/cases", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPrincipalMiddleware_BackendOutageIs503(t *testing.T) {
	store := &stubStore{failWith: errors.New("connection refused")}
	resolver := auth.NewResolver(store, stubIDP{}, "standard")
	handler := Principal(resolver)(okHandler(nil))

	r := httptest.NewRequest("GET", "/api/v1/education/cases", nil)
	r.Header.Set("x-api-key", "any")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(auth.RoleOwnerAdmin)(okHandler(nil))

	// Wrong role -> 403
	r := httptest.NewRequest("GET", "/api/v1/org/usage", nil)
	r = r.WithContext(WithPrincipal(r.Context(), &auth.Principal{Role: auth.RoleLearner}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Allowed role -> pass through
	r = httptest.NewRequest("GET", "/api/v1/org/usage", nil)
	r = r.WithContext(WithPrincipal(r.Context(), &auth.Principal{Role: auth.RoleOwnerAdmin}))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	// No principal at all -> 401
	r = httptest.NewRequest("GET", "/api/v1/org/usage", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireScope_GatesTenantKeys(t *testing.T) {
	handler := RequireScope("cases:write")(okHandler(nil))

	// Tenant key without the scope -> 403
	r := httptest.NewRequest("POST", "/api/v1/education/cases", nil)
	r = r.WithContext(WithPrincipal(r.Context(), &auth.Principal{
		Kind:   auth.KindAPIKeyTenant,
		Scopes: []string{"cases:read"},
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Tenant key with the scope -> pass
	r = httptest.NewRequest("POST", "/api/v1/education/cases", nil)
	r = r.WithContext(WithPrincipal(r.Context(), &auth.Principal{
		Kind:   auth.KindAPIKeyTenant,
		Scopes: []string{"cases:read", "cases:write"},
	}))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	// Non-tenant principals are governed by role checks, not scopes.
	r = httptest.NewRequest("POST", "/api/v1/education/cases", nil)
	r = r.WithContext(WithPrincipal(r.Context(), &auth.Principal{
		Kind: auth.KindBearerMembership,
		Role: auth.RoleOwnerAdmin,
	}))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.7:51234"
	assert.Equal(t, "192.0.2.7", ClientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.4")
	assert.Equal(t, "198.51.100.4", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(r), "first forwarded hop wins")
}
