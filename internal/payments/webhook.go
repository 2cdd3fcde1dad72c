package payments

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/msaada/backend/internal/database"
	"github.com/msaada/backend/internal/monitoring"
)

// Store is the subset of database operations the webhook handler needs.
type Store interface {
	GetDonation(ctx context.Context, donationID string) (*database.Donation, error)
	MarkDonationCompleted(ctx context.Context, donationID, paymentRef string) error
	GetJobPosting(ctx context.Context, postingID string) (*database.JobPosting, error)
	ActivateJobPosting(ctx context.Context, postingID, paymentRef string) error
}

// jobCorrelationPrefix marks a correlation id that refers to a job posting
// instead of a donation. Set in the custom field when the order is created.
const jobCorrelationPrefix = "job:"

// webhookEvent is the subset of PayPal's event envelope we act on.
type webhookEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID       string `json:"id"`
		Custom   string `json:"custom"`
		CustomID string `json:"custom_id"`
	} `json:"resource"`
}

// correlation returns the id we embedded at order creation. Older captures
// carry it in "custom", newer Orders-API captures in "custom_id".
func (e *webhookEvent) correlation() string {
	if e.Resource.CustomID != "" {
		return e.Resource.CustomID
	}
	return e.Resource.Custom
}

// WebhookHandler processes PayPal webhook deliveries: verify the signature,
// then apply the matching idempotent state transition. PayPal retries on
// any non-2xx, so transient failures map to 5xx and permanent rejections
// to 4xx.
type WebhookHandler struct {
	verifier Verifier
	store    Store
}

func NewWebhookHandler(verifier Verifier, store Store) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, store: store}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	verified, err := h.verifier.Verify(r.Context(), r.Header, body)
	if err != nil {
		slog.Error("webhook signature verification failed", "error", err)
		monitoring.WebhookEvents.WithLabelValues("verify_error").Inc()
		http.Error(w, "verification unavailable", http.StatusBadGateway)
		return
	}
	if !verified {
		slog.Warn("rejected webhook with invalid signature", "source_ip", r.RemoteAddr)
		monitoring.WebhookEvents.WithLabelValues("rejected").Inc()
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}

	switch event.EventType {
	case "PAYMENT.CAPTURE.COMPLETED", "CHECKOUT.ORDER.APPROVED":
		if err := h.applyCompletion(r.Context(), &event); err != nil {
			slog.Error("failed to apply payment completion",
				"event_id", event.ID,
				"correlation", event.correlation(),
				"error", err,
			)
			monitoring.WebhookEvents.WithLabelValues("error").Inc()
			http.Error(w, "processing failed", http.StatusInternalServerError)
			return
		}
		monitoring.WebhookEvents.WithLabelValues("processed").Inc()
	default:
		// Unhandled event types are acknowledged so PayPal stops retrying.
		monitoring.WebhookEvents.WithLabelValues("ignored").Inc()
	}

	w.WriteHeader(http.StatusOK)
}

// applyCompletion routes the correlation id to the right transition. Both
// transitions are idempotent overwrites, so re-delivery of an event that
// was already applied succeeds without changing anything.
func (h *WebhookHandler) applyCompletion(ctx context.Context, event *webhookEvent) error {
	correlation := event.correlation()
	if correlation == "" {
		// Nothing to correlate against; acknowledge rather than retry
		// forever on an event we can never apply.
		slog.Warn("payment event without correlation id", "event_id", event.ID)
		return nil
	}

	if postingID, ok := strings.CutPrefix(correlation, jobCorrelationPrefix); ok {
		posting, err := h.store.GetJobPosting(ctx, postingID)
		if err != nil {
			return err
		}
		if posting == nil {
			slog.Warn("payment event for unknown job posting", "posting_id", postingID)
			return nil
		}
		if posting.Status == "active" && posting.PaymentStatus == "completed" {
			return nil // already applied
		}
		return h.store.ActivateJobPosting(ctx, postingID, event.Resource.ID)
	}

	donation, err := h.store.GetDonation(ctx, correlation)
	if err != nil {
		return err
	}
	if donation == nil {
		slog.Warn("payment event for unknown donation", "donation_id", correlation)
		return nil
	}
	if donation.Status == "completed" {
		return nil // already applied
	}
	return h.store.MarkDonationCompleted(ctx, correlation, event.Resource.ID)
}
