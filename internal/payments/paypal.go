// Package payments receives payment-provider webhooks. Signature
// verification is delegated entirely to the provider's verification API;
// on success the handler applies one idempotent state transition keyed by
// the embedded correlation id. There is no retry logic here — a non-2xx
// response leaves redelivery to the provider's webhook retry policy.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Verifier checks a webhook delivery's signature with the provider.
type Verifier interface {
	Verify(ctx context.Context, headers http.Header, body []byte) (bool, error)
}

// PayPalVerifier calls PayPal's verify-webhook-signature endpoint.
type PayPalVerifier struct {
	baseURL   string
	clientID  string
	secret    string
	webhookID string
	client    *http.Client
}

// NewPayPalVerifier builds a verifier. baseURL is the API base, e.g.
// https://api-m.paypal.com or the sandbox equivalent.
func NewPayPalVerifier(baseURL, clientID, secret, webhookID string) *PayPalVerifier {
	return &PayPalVerifier{
		baseURL:   strings.TrimRight(baseURL, "/"),
		clientID:  clientID,
		secret:    secret,
		webhookID: webhookID,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Verify obtains an access token and asks PayPal whether the delivery's
// transmission signature is valid for our webhook id.
func (v *PayPalVerifier) Verify(ctx context.Context, headers http.Header, body []byte) (bool, error) {
	token, err := v.accessToken(ctx)
	if err != nil {
		return false, fmt.Errorf("paypal oauth: %w", err)
	}

	payload := map[string]interface{}{
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"webhook_id":        v.webhookID,
		"webhook_event":     json.RawMessage(body),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		v.baseURL+"/v1/notifications/verify-webhook-signature", bytes.NewReader(raw))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("verify call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("verify endpoint returned %d", resp.StatusCode)
	}

	var result struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, err
	}
	return result.VerificationStatus == "SUCCESS", nil
}

func (v *PayPalVerifier) accessToken(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		v.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(v.clientID, v.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}
	return result.AccessToken, nil
}
