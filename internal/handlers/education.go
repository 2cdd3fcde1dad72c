package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/msaada/backend/internal/auth"
	"github.com/msaada/backend/internal/database"
	"github.com/msaada/backend/internal/middleware"
)

// HandleListCases lists synthetic case records for the education API.
// Learner principals only ever see sandbox records.
// GET /api/v1/education/cases?limit=&offset=
func HandleListCases(db *database.SupabaseClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := middleware.PrincipalFrom(r.Context())
		if !ok {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		sandboxOnly := principal.Role == auth.RoleLearner
		records, err := db.ListCaseRecords(r.Context(), sandboxOnly, limit, offset)
		if err != nil {
			writeInternalError(w, "failed to list case records", err)
			return
		}
		if records == nil {
			records = []database.CaseRecord{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"cases":  records,
			"count":  len(records),
			"offset": offset,
		})
	}
}

// CreateCaseRequest is the JSON request body for POST /api/v1/education/cases
type CreateCaseRequest struct {
	Category     string `json:"category"`
	Region       string `json:"region"`
	UrgencyLevel string `json:"urgency_level"`
	Language     string `json:"language"`
	Narrative    string `json:"narrative"`
}

// HandleCreateCase adds a synthetic training case for the caller's org.
// Tenant keys need the cases:write scope; gated upstream by RequireScope.
// POST /api/v1/education/cases
func HandleCreateCase(db *database.SupabaseClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := middleware.PrincipalFrom(r.Context())
		if !ok {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}

		var req CreateCaseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Category == "" || req.Narrative == "" {
			http.Error(w, `{"error":"category and narrative are required"}`, http.StatusBadRequest)
			return
		}
		if req.UrgencyLevel == "" {
			req.UrgencyLevel = "medium"
		}

		record := &database.CaseRecord{
			CaseID:       uuid.NewString(),
			OrgID:        principal.OrgID,
			Category:     req.Category,
			Region:       req.Region,
			UrgencyLevel: req.UrgencyLevel,
			Language:     req.Language,
			Narrative:    req.Narrative,
			IsSandbox:    true, // API-created cases are always synthetic
		}
		if err := db.InsertCaseRecord(r.Context(), record); err != nil {
			writeInternalError(w, "failed to create case record", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(record)
	}
}

// HandleGetCase returns one synthetic case record.
// GET /api/v1/education/cases/{id}
func HandleGetCase(db *database.SupabaseClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := middleware.PrincipalFrom(r.Context())
		if !ok {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}

		caseID := mux.Vars(r)["id"]
		record, err := db.GetCaseRecord(r.Context(), caseID)
		if err != nil {
			writeInternalError(w, "failed to get case record", err)
			return
		}
		if record == nil {
			http.Error(w, `{"error":"case not found"}`, http.StatusNotFound)
			return
		}
		// Learners are sandbox-only; a real record behaves as not-found
		// rather than hinting it exists.
		if principal.Role == auth.RoleLearner && !record.IsSandbox {
			http.Error(w, `{"error":"case not found"}`, http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(record)
	}
}
