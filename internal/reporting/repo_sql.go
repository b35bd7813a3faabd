package reporting

import (
	"context"
	"database/sql"
	"time"

	"crm-webhook/internal/analysis"
	"crm-webhook/internal/leads"
)

// SQLRepo reads the export straight from the service tables.
type SQLRepo struct {
	db *sql.DB
}

func NewSQLRepo(db *sql.DB) *SQLRepo { return &SQLRepo{db: db} }

// scanAll runs q and hands every row to scan.
func scanAll[T any](ctx context.Context, db *sql.DB, q string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *SQLRepo) ListIntegrations(ctx context.Context) ([]leads.Integration, error) {
	const q = `SELECT id, subdomain, link FROM integrations ORDER BY id`
	return scanAll(ctx, r.db, q, func(rows *sql.Rows) (leads.Integration, error) {
		var in leads.Integration
		var link sql.NullString
		err := rows.Scan(&in.ID, &in.Subdomain, &link)
		in.Link = nullString(link)
		return in, err
	})
}

func (r *SQLRepo) ListManagers(ctx context.Context) ([]leads.Manager, error) {
	const q = `SELECT id, crm_user_id, username, type, is_permitted FROM managers ORDER BY id`
	return scanAll(ctx, r.db, q, func(rows *sql.Rows) (leads.Manager, error) {
		var m leads.Manager
		var username, typ sql.NullString
		err := rows.Scan(&m.ID, &m.CRMUserID, &username, &typ, &m.IsPermitted)
		m.Username, m.Type = nullString(username), nullString(typ)
		return m, err
	})
}

func (r *SQLRepo) ListLeads(ctx context.Context) ([]Lead, error) {
	const q = `
SELECT id, owner_id, account_id, element_id, element_type,
       manager_id, integration_id, text_message, timestamp_x,
       created_at, updated_at, lead_status
FROM leads
ORDER BY id
`
	return scanAll(ctx, r.db, q, func(rows *sql.Rows) (Lead, error) {
		var l Lead
		var owner, account, element, elementType sql.NullInt64
		var text, tsx sql.NullString
		var created, updated sql.NullTime
		err := rows.Scan(&l.ID, &owner, &account, &element, &elementType,
			&l.ManagerID, &l.IntegrationID, &text, &tsx,
			&created, &updated, &l.LeadStatus)
		l.OwnerID, l.AccountID = nullInt(owner), nullInt(account)
		l.ElementID, l.ElementType = nullInt(element), nullInt(elementType)
		l.TextMessage, l.TimestampX = nullString(text), nullString(tsx)
		l.CreatedAt, l.UpdatedAt = nullTime(created), nullTime(updated)
		return l, err
	})
}

func (r *SQLRepo) ListCalls(ctx context.Context) ([]leads.Call, error) {
	const q = `
SELECT id, unique_uuid, audio_mp3, phone_number, duration, call_status, call_result
FROM calls
ORDER BY id
`
	return scanAll(ctx, r.db, q, func(rows *sql.Rows) (leads.Call, error) {
		var c leads.Call
		var audio, phone, status, result sql.NullString
		var duration sql.NullInt64
		err := rows.Scan(&c.ID, &c.UniqueUUID, &audio, &phone, &duration, &status, &result)
		c.AudioMP3, c.PhoneNumber = nullString(audio), nullString(phone)
		c.Duration = nullInt(duration)
		c.CallStatus, c.CallResult = nullString(status), nullString(result)
		return c, err
	})
}

func (r *SQLRepo) ListCallLeads(ctx context.Context) ([]leads.CallLeadLink, error) {
	const q = `SELECT call_id, lead_id, last_update FROM call_leads ORDER BY call_id, lead_id`
	return scanAll(ctx, r.db, q, func(rows *sql.Rows) (leads.CallLeadLink, error) {
		var l leads.CallLeadLink
		err := rows.Scan(&l.CallID, &l.LeadID, &l.LastUpdate)
		l.LastUpdate = l.LastUpdate.UTC()
		return l, err
	})
}

func (r *SQLRepo) ListAnalyses(ctx context.Context) ([]analysis.Analysis, error) {
	const q = `
SELECT id, lead_id, audio_text, analysed_text, is_analysed, created_at
FROM analyses
ORDER BY id
`
	return scanAll(ctx, r.db, q, func(rows *sql.Rows) (analysis.Analysis, error) {
		var a analysis.Analysis
		var text sql.NullString
		err := rows.Scan(&a.ID, &a.LeadID, &a.AudioText, &text, &a.IsAnalysed, &a.CreatedAt)
		a.AnalysedText = nullString(text)
		a.CreatedAt = a.CreatedAt.UTC()
		return a, err
	})
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}
