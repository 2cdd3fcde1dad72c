package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// SupabaseIdentityProvider validates bearer tokens against the Supabase
// auth endpoint (GoTrue). It only extracts the user id; memberships are
// resolved separately against the store.
type SupabaseIdentityProvider struct {
	baseURL string
	anonKey string
	client  *http.Client
}

// NewSupabaseIdentityProvider builds a provider for the given project URL.
func NewSupabaseIdentityProvider(baseURL, anonKey string) *SupabaseIdentityProvider {
	return &SupabaseIdentityProvider{
		baseURL: baseURL,
		anonKey: anonKey,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// UserIDFromToken asks the auth endpoint who the token belongs to.
func (p *SupabaseIdentityProvider) UserIDFromToken(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("apikey", p.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", errors.New("token rejected")
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: auth endpoint returned %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("decode auth response: %w", err)
	}
	if user.ID == "" {
		return "", errors.New("auth response missing user id")
	}
	return user.ID, nil
}
