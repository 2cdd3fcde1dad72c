package database

import (
	"context"
	"fmt"
	"os"
	"time"

	supabase "github.com/supabase-community/supabase-go"
)

// ============================================================================
// SUPABASE CLIENT - CRUD operations for all platform tables
// ============================================================================

// SupabaseClient wraps the Supabase Go client with all platform operations
type SupabaseClient struct {
	client *supabase.Client
}

// NewSupabaseClient creates a new Supabase client
func NewSupabaseClient() (*SupabaseClient, error) {
	url := os.Getenv("SUPABASE_URL")
	key := os.Getenv("SUPABASE_SERVICE_KEY")

	if url == "" || key == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY must be set")
	}

	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}

	return &SupabaseClient{client: client}, nil
}

// ============================================================================
// DATA MODELS
// ============================================================================

// Organization represents a partner organization (NGO, academic partner)
type Organization struct {
	OrgID       string `json:"org_id"`
	Name        string `json:"name"`
	ProductTier string `json:"product_tier"`
	Status      string `json:"status"`
	ContactMail string `json:"contact_email,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"` // String to handle Supabase timestamp format
}

// OrgAPIKey represents an organization-level API key
type OrgAPIKey struct {
	KeyID      string     `json:"key_id"`
	OrgID      string     `json:"org_id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"key_hash"`
	Scopes     []string   `json:"scopes"`
	IsActive   bool       `json:"is_active"`
	ExpiresAt  *time.Time `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

// Student represents a learner enrolled under an academic partner org
type Student struct {
	StudentID    string     `json:"student_id"`
	OrgID        string     `json:"org_id"`
	UserID       string     `json:"user_id,omitempty"`
	APIKeyHash   string     `json:"api_key_hash"`
	Status       string     `json:"status"`
	LastActiveAt *time.Time `json:"last_active_at"`
}

// OrgMember represents a user's membership and role within an organization
type OrgMember struct {
	OrgID     string `json:"org_id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at,omitempty"`
}

// UsageEvent is one row of the append-only API usage log
type UsageEvent struct {
	EventID       string `json:"event_id,omitempty"`
	OrgID         string `json:"org_id"`
	SubjectID     string `json:"subject_id,omitempty"`
	Endpoint      string `json:"endpoint"`
	Method        string `json:"method"`
	StatusCode    int    `json:"status_code"`
	SourceIP      string `json:"source_ip,omitempty"`
	IsSandboxCall bool   `json:"is_sandbox_call"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// Donation represents a donation and its payment status
type Donation struct {
	DonationID string  `json:"donation_id"`
	DonorName  string  `json:"donor_name,omitempty"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	Status     string  `json:"status"`
	PaymentRef string  `json:"payment_ref,omitempty"`
	CreatedAt  string  `json:"created_at,omitempty"`
}

// JobPosting represents an employer job posting and its payment pair
type JobPosting struct {
	PostingID     string `json:"posting_id"`
	OrgID         string `json:"org_id,omitempty"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	PaymentRef    string `json:"payment_ref,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// CaseRecord is a synthetic case exposed through the education API
type CaseRecord struct {
	CaseID       string `json:"case_id"`
	OrgID        string `json:"org_id,omitempty"`
	Category     string `json:"category"`
	Region       string `json:"region,omitempty"`
	UrgencyLevel string `json:"urgency_level"`
	Language     string `json:"language,omitempty"`
	Narrative    string `json:"narrative"`
	IsSandbox    bool   `json:"is_sandbox"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// Service represents an entry in the support-service catalog
type Service struct {
	ServiceID   string   `json:"service_id"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description,omitempty"`
	Languages   []string `json:"languages,omitempty"`
	Region      string   `json:"region,omitempty"`
}

// ============================================================================
// ORGANIZATION OPERATIONS
// ============================================================================

// GetOrganization retrieves an organization by ID
func (sc *SupabaseClient) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	var orgs []Organization
	_, err := sc.client.From("organizations").
		Select("*", "", false).
		Eq("org_id", orgID).
		ExecuteTo(&orgs)

	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	if len(orgs) == 0 {
		return nil, nil
	}
	return &orgs[0], nil
}

// ============================================================================
// CREDENTIAL LOOKUPS
// ============================================================================

// GetStudentByKeyHash retrieves a student record by the SHA-256 hash of its
// API key. Inactive students are filtered at this level.
func (sc *SupabaseClient) GetStudentByKeyHash(ctx context.Context, keyHash string) (*Student, error) {
	var students []Student
	_, err := sc.client.From("students").
		Select("*", "", false).
		Eq("api_key_hash", keyHash).
		Eq("status", "active").
		ExecuteTo(&students)

	if err != nil {
		return nil, fmt.Errorf("failed to look up student key: %w", err)
	}
	if len(students) == 0 {
		return nil, nil
	}
	return &students[0], nil
}

// GetOrgKeyByHash retrieves an org API key by the SHA-256 hash of the key
func (sc *SupabaseClient) GetOrgKeyByHash(ctx context.Context, keyHash string) (*OrgAPIKey, error) {
	var keys []OrgAPIKey
	_, err := sc.client.From("org_api_keys").
		Select("*", "", false).
		Eq("key_hash", keyHash).
		ExecuteTo(&keys)

	if err != nil {
		return nil, fmt.Errorf("failed to look up org key: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return &keys[0], nil
}

// GetMembership retrieves a user's membership in an organization
func (sc *SupabaseClient) GetMembership(ctx context.Context, orgID, userID string) (*OrgMember, error) {
	var members []OrgMember
	_, err := sc.client.From("org_members").
		Select("*", "", false).
		Eq("org_id", orgID).
		Eq("user_id", userID).
		ExecuteTo(&members)

	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	return &members[0], nil
}

// FindStudentByUserID retrieves the student row for an identity-provider
// user id. Returns nil when the user is not enrolled anywhere.
func (sc *SupabaseClient) FindStudentByUserID(ctx context.Context, userID string) (*Student, error) {
	var students []Student
	_, err := sc.client.From("students").
		Select("*", "", false).
		Eq("user_id", userID).
		Eq("status", "active").
		ExecuteTo(&students)

	if err != nil {
		return nil, fmt.Errorf("failed to find student by user: %w", err)
	}
	if len(students) == 0 {
		return nil, nil
	}
	return &students[0], nil
}

// TouchStudentLastActive updates the last-active timestamp on a student.
// Concurrent writers racing on this field is a benign race — it is a soft
// liveness indicator, not correctness-relevant state.
func (sc *SupabaseClient) TouchStudentLastActive(ctx context.Context, studentID string) error {
	update := map[string]interface{}{
		"last_active_at": time.Now().UTC(),
	}
	var result []Student
	_, err := sc.client.From("students").
		Update(update, "", "").
		Eq("student_id", studentID).
		ExecuteTo(&result)
	return err
}

// TouchOrgKeyLastUsed updates the last-used timestamp on an org API key
func (sc *SupabaseClient) TouchOrgKeyLastUsed(ctx context.Context, keyID string) error {
	update := map[string]interface{}{
		"last_used_at": time.Now().UTC(),
	}
	var result []OrgAPIKey
	_, err := sc.client.From("org_api_keys").
		Update(update, "", "").
		Eq("key_id", keyID).
		ExecuteTo(&result)
	return err
}

// ============================================================================
// USAGE EVENT OPERATIONS
// ============================================================================

// InsertUsageEvent appends one usage event row
func (sc *SupabaseClient) InsertUsageEvent(ctx context.Context, event *UsageEvent) error {
	var result []UsageEvent
	_, err := sc.client.From("usage_events").
		Insert(event, false, "", "", "").
		ExecuteTo(&result)
	return err
}

// ListUsageEvents lists recent usage events for an organization
func (sc *SupabaseClient) ListUsageEvents(ctx context.Context, orgID string, limit int) ([]UsageEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []UsageEvent
	_, err := sc.client.From("usage_events").
		Select("*", "", false).
		Eq("org_id", orgID).
		Order("created_at", nil).
		Limit(limit, "").
		ExecuteTo(&events)
	return events, err
}

// ============================================================================
// DONATION / JOB POSTING OPERATIONS
// ============================================================================

// GetDonation retrieves a donation by ID
func (sc *SupabaseClient) GetDonation(ctx context.Context, donationID string) (*Donation, error) {
	var donations []Donation
	_, err := sc.client.From("donations").
		Select("*", "", false).
		Eq("donation_id", donationID).
		ExecuteTo(&donations)

	if err != nil {
		return nil, fmt.Errorf("failed to get donation: %w", err)
	}
	if len(donations) == 0 {
		return nil, nil
	}
	return &donations[0], nil
}

// MarkDonationCompleted transitions a donation to completed. The write is
// an idempotent overwrite keyed by donation_id, so webhook re-delivery is
// a no-op.
func (sc *SupabaseClient) MarkDonationCompleted(ctx context.Context, donationID, paymentRef string) error {
	update := map[string]interface{}{
		"status":      "completed",
		"payment_ref": paymentRef,
	}
	var result []Donation
	_, err := sc.client.From("donations").
		Update(update, "", "").
		Eq("donation_id", donationID).
		ExecuteTo(&result)
	return err
}

// GetJobPosting retrieves a job posting by ID
func (sc *SupabaseClient) GetJobPosting(ctx context.Context, postingID string) (*JobPosting, error) {
	var postings []JobPosting
	_, err := sc.client.From("job_postings").
		Select("*", "", false).
		Eq("posting_id", postingID).
		ExecuteTo(&postings)

	if err != nil {
		return nil, fmt.Errorf("failed to get job posting: %w", err)
	}
	if len(postings) == 0 {
		return nil, nil
	}
	return &postings[0], nil
}

// ActivateJobPosting marks a posting active and its payment completed.
// Idempotent overwrite keyed by posting_id.
func (sc *SupabaseClient) ActivateJobPosting(ctx context.Context, postingID, paymentRef string) error {
	update := map[string]interface{}{
		"status":         "active",
		"payment_status": "completed",
		"payment_ref":    paymentRef,
	}
	var result []JobPosting
	_, err := sc.client.From("job_postings").
		Update(update, "", "").
		Eq("posting_id", postingID).
		ExecuteTo(&result)
	return err
}

// ============================================================================
// EDUCATION API OPERATIONS
// ============================================================================

// ListCaseRecords lists synthetic case records, optionally sandbox-only
func (sc *SupabaseClient) ListCaseRecords(ctx context.Context, sandboxOnly bool, limit, offset int) ([]CaseRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := sc.client.From("case_records").
		Select("*", "", false).
		Order("created_at", nil)

	if sandboxOnly {
		query = query.Eq("is_sandbox", "true")
	}
	query = query.Range(offset, offset+limit-1, "")

	var records []CaseRecord
	_, err := query.ExecuteTo(&records)
	return records, err
}

// InsertCaseRecord appends one synthetic case record
func (sc *SupabaseClient) InsertCaseRecord(ctx context.Context, record *CaseRecord) error {
	var result []CaseRecord
	_, err := sc.client.From("case_records").
		Insert(record, false, "", "", "").
		ExecuteTo(&result)
	return err
}

// GetCaseRecord retrieves one synthetic case record
func (sc *SupabaseClient) GetCaseRecord(ctx context.Context, caseID string) (*CaseRecord, error) {
	var records []CaseRecord
	_, err := sc.client.From("case_records").
		Select("*", "", false).
		Eq("case_id", caseID).
		ExecuteTo(&records)

	if err != nil {
		return nil, fmt.Errorf("failed to get case record: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// ============================================================================
// SERVICE CATALOG OPERATIONS
// ============================================================================

// ListServices lists catalog services, optionally filtered by category
func (sc *SupabaseClient) ListServices(ctx context.Context, category string, limit int) ([]Service, error) {
	if limit <= 0 {
		limit = 50
	}
	query := sc.client.From("services").
		Select("*", "", false)

	if category != "" {
		query = query.Eq("category", category)
	}
	query = query.Limit(limit, "")

	var services []Service
	_, err := query.ExecuteTo(&services)
	return services, err
}
