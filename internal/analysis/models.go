package analysis

import "time"

// Analysis is the transcript of one lead's call and, when the manager is
// permitted, the assistant's analysis of it.
//
// Invariants:
// - Rows are append-only.
// - IsAnalysed is true only when AnalysedText came back from the analyzer.
type Analysis struct {
	ID           int64     `json:"id" db:"id"`
	LeadID       int64     `json:"lead_id" db:"lead_id"`
	AudioText    string    `json:"audio_text" db:"audio_text"`
	AnalysedText *string   `json:"analysed_text" db:"analysed_text"`
	IsAnalysed   bool      `json:"is_analysed" db:"is_analysed"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Assistant is an analysis template. At most one row is active.
// An empty Model means the configured default.
type Assistant struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Instructions string    `json:"instructions" db:"instructions"`
	Model        string    `json:"model" db:"model"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
