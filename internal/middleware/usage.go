package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/msaada/backend/internal/database"
)

// UsageWriter persists usage events.
type UsageWriter interface {
	InsertUsageEvent(ctx context.Context, event *database.UsageEvent) error
}

// statusRecorder captures the response status for the usage log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// UsageRecorder appends one usage event per authenticated request. The
// insert runs in a goroutine after the response is written — usage
// logging is best-effort and never delays or fails a request.
func UsageRecorder(store UsageWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				return
			}

			event := &database.UsageEvent{
				EventID:       uuid.NewString(),
				OrgID:         principal.OrgID,
				SubjectID:     principal.SubjectID,
				Endpoint:      r.URL.Path,
				Method:        r.Method,
				StatusCode:    rec.status,
				SourceIP:      ClientIP(r),
				IsSandboxCall: r.URL.Query().Get("sandbox") == "true",
				CreatedAt:     time.Now().UTC().Format(time.RFC3339),
			}

			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := store.InsertUsageEvent(ctx, event); err != nil {
					slog.Error("failed to persist usage event",
						"org_id", event.OrgID,
						"endpoint", event.Endpoint,
						"error", err,
					)
				}
			}()
		})
	}
}

// ClientIP extracts the caller's IP. Priority: X-Forwarded-For →
// X-Real-IP → RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return ip
}
