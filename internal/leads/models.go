package leads

import "time"

// Integration is a CRM account (one per subdomain).
type Integration struct {
	ID        int64   `json:"id" db:"id"`
	Subdomain string  `json:"subdomain" db:"subdomain"`
	Link      *string `json:"link" db:"link"`
}

// Manager is a CRM user seen as the source of an event.
// IsPermitted is managed by an operator, never by the webhook path.
type Manager struct {
	ID          int64   `json:"id" db:"id"`
	CRMUserID   int64   `json:"crm_user_id" db:"crm_user_id"`
	Username    *string `json:"username" db:"username"`
	Type        *string `json:"type" db:"type"`
	IsPermitted bool    `json:"is_permitted" db:"is_permitted"`
}

// Lead is one inbound CRM event. Rows are append-only and not deduplicated
// by element id.
//
// OwnerID and AccountID are both filled from main_user_id.
type Lead struct {
	ID            int64   `json:"id" db:"id"`
	OwnerID       *int64  `json:"owner_id" db:"owner_id"`
	AccountID     *int64  `json:"account_id" db:"account_id"`
	ElementID     *int64  `json:"element_id" db:"element_id"`
	ElementType   *int64  `json:"element_type" db:"element_type"`
	ManagerID     int64   `json:"manager_id" db:"manager_id"`
	IntegrationID int64   `json:"integration_id" db:"integration_id"`
	TextMessage   *string `json:"text_message" db:"text_message"`
	TimestampX    *string `json:"timestamp_x" db:"timestamp_x"`
	// CreatedAt and UpdatedAt are UTC civil times, "2006-01-02 15:04:05".
	CreatedAt  *string `json:"created_at" db:"created_at"`
	UpdatedAt  *string `json:"updated_at" db:"updated_at"`
	LeadStatus string  `json:"lead_status" db:"lead_status"`
}

// Call is a telephony event attached to a lead.
// CallStatus and CallResult are opaque provider codes.
type Call struct {
	ID          int64   `json:"id" db:"id"`
	UniqueUUID  string  `json:"unique_uuid" db:"unique_uuid"`
	AudioMP3    *string `json:"audio_mp3" db:"audio_mp3"`
	PhoneNumber *string `json:"phone_number" db:"phone_number"`
	Duration    *int64  `json:"duration" db:"duration"`
	CallStatus  *string `json:"call_status" db:"call_status"`
	CallResult  *string `json:"call_result" db:"call_result"`
}

// CallLeadLink ties a Call to the Lead it was attributed to.
type CallLeadLink struct {
	CallID     int64     `json:"call_id" db:"call_id"`
	LeadID     int64     `json:"lead_id" db:"lead_id"`
	LastUpdate time.Time `json:"last_update" db:"last_update"`
}

// Bundle holds the drafts produced from one webhook. Nil means "not present".
// IDs and foreign keys inside drafts are ignored; Persist assigns them.
type Bundle struct {
	Integration *Integration
	Manager     *Manager
	Lead        *Lead
	Call        *Call
	Link        *CallLeadLink
}

// Result carries the ids later stages need. Zero means "not created".
type Result struct {
	IntegrationID int64
	ManagerID     int64
	LeadID        int64
	CallID        int64
	// LeadElementID is the CRM-side id of the lead, used for callbacks.
	LeadElementID *int64
}
