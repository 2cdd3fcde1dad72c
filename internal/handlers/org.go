package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/msaada/backend/internal/anomaly"
	"github.com/msaada/backend/internal/database"
	"github.com/msaada/backend/internal/middleware"
	"github.com/msaada/backend/internal/monitoring"
)

// HandleOrgUsage returns recent usage events for the caller's org.
// GET /api/v1/org/usage?limit=
func HandleOrgUsage(db *database.SupabaseClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := middleware.PrincipalFrom(r.Context())
		if !ok {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		events, err := db.ListUsageEvents(r.Context(), principal.OrgID, limit)
		if err != nil {
			writeInternalError(w, "failed to list usage events", err)
			return
		}
		if events == nil {
			events = []database.UsageEvent{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"org_id": principal.OrgID,
			"events": events,
			"count":  len(events),
		})
	}
}

// HandleOrgAnomalies builds an on-demand anomaly report over the caller's
// recent usage. Admin-only; the route is gated by RequireRole upstream.
// GET /api/v1/org/usage/anomalies
func HandleOrgAnomalies(reader anomaly.UsageReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := middleware.PrincipalFrom(r.Context())
		if !ok {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}

		report, err := anomaly.BuildReport(r.Context(), reader, principal.OrgID, time.Now().UTC())
		if err != nil {
			writeInternalError(w, "failed to build anomaly report", err)
			return
		}

		for _, flag := range report.Flags {
			monitoring.AnomalyFlags.WithLabelValues(string(flag.Type), string(flag.Severity)).Inc()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	}
}
