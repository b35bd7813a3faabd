package reporting

import (
	"time"

	"crm-webhook/internal/analysis"
	"crm-webhook/internal/leads"
)

// Lead is the export shape of leads.Lead: event times are real timestamps
// so they render as RFC 3339.
type Lead struct {
	ID            int64      `json:"id"`
	OwnerID       *int64     `json:"owner_id"`
	AccountID     *int64     `json:"account_id"`
	ElementID     *int64     `json:"element_id"`
	ElementType   *int64     `json:"element_type"`
	ManagerID     int64      `json:"manager_id"`
	IntegrationID int64      `json:"integration_id"`
	TextMessage   *string    `json:"text_message"`
	TimestampX    *string    `json:"timestamp_x"`
	CreatedAt     *time.Time `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at"`
	LeadStatus    string     `json:"lead_status"`
}

// Summary aggregates the snapshot for a quick look.
type Summary struct {
	Integrations      int `json:"integrations"`
	Managers          int `json:"managers"`
	PermittedManagers int `json:"permitted_managers"`

	Leads          int `json:"leads"`
	TelephonyLeads int `json:"telephony_leads"`
	MessageLeads   int `json:"message_leads"`

	Calls                  int   `json:"calls"`
	RecordedCalls          int   `json:"recorded_calls"`
	TotalDurationSeconds   int64 `json:"total_duration_seconds"`
	AverageDurationSeconds int64 `json:"average_duration_seconds"`

	Analyses int `json:"analyses"`
	Analysed int `json:"analysed"`
	Denied   int `json:"denied"`
}

// Snapshot is the full read-only export of the stored data.
type Snapshot struct {
	GeneratedAt  time.Time            `json:"generated_at"`
	Summary      Summary              `json:"summary"`
	Integrations []leads.Integration  `json:"integrations"`
	Managers     []leads.Manager      `json:"managers"`
	Leads        []Lead               `json:"leads"`
	Calls        []leads.Call         `json:"calls"`
	CallLeads    []leads.CallLeadLink `json:"call_leads"`
	Analyses     []analysis.Analysis  `json:"analyses"`
}
