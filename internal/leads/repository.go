package leads

import (
	"context"
	"database/sql"
	"errors"

	"crm-webhook/pkg/utils"
)

// NOTE: This repository assumes the schema in internal/migrations:
// - integrations (UNIQUE subdomain)
// - managers (UNIQUE crm_user_id)
// - leads, calls, call_leads
//
// Upserts look up first, then INSERT ... ON CONFLICT DO NOTHING and look up
// again, so concurrent first sightings converge on one row.

func findIntegrationID(ctx context.Context, q utils.Querier, subdomain string) (int64, error) {
	const stmt = `
SELECT id
FROM integrations
WHERE subdomain = $1
`
	var id int64
	if err := q.QueryRowContext(ctx, stmt, subdomain).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return id, nil
}

func insertIntegration(ctx context.Context, q utils.Querier, in Integration) (int64, error) {
	const stmt = `
INSERT INTO integrations (subdomain, link)
VALUES ($1, $2)
ON CONFLICT (subdomain) DO NOTHING
RETURNING id
`
	var id int64
	if err := q.QueryRowContext(ctx, stmt, in.Subdomain, in.Link).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, errConflict
		}
		return 0, err
	}
	return id, nil
}

func findManagerID(ctx context.Context, q utils.Querier, crmUserID int64) (int64, error) {
	const stmt = `
SELECT id
FROM managers
WHERE crm_user_id = $1
`
	var id int64
	if err := q.QueryRowContext(ctx, stmt, crmUserID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return id, nil
}

func insertManager(ctx context.Context, q utils.Querier, m Manager) (int64, error) {
	const stmt = `
INSERT INTO managers (crm_user_id, username, type)
VALUES ($1, $2, $3)
ON CONFLICT (crm_user_id) DO NOTHING
RETURNING id
`
	var id int64
	if err := q.QueryRowContext(ctx, stmt, m.CRMUserID, m.Username, m.Type).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, errConflict
		}
		return 0, err
	}
	return id, nil
}

func insertLead(ctx context.Context, q utils.Querier, l Lead) (int64, error) {
	const stmt = `
INSERT INTO leads (
  owner_id, account_id, element_id, element_type,
  manager_id, integration_id,
  text_message, timestamp_x, created_at, updated_at, lead_status
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id
`
	var id int64
	err := q.QueryRowContext(ctx, stmt,
		l.OwnerID,
		l.AccountID,
		l.ElementID,
		l.ElementType,
		l.ManagerID,
		l.IntegrationID,
		l.TextMessage,
		l.TimestampX,
		l.CreatedAt,
		l.UpdatedAt,
		l.LeadStatus,
	).Scan(&id)
	return id, err
}

func insertCall(ctx context.Context, q utils.Querier, c Call) (int64, error) {
	const stmt = `
INSERT INTO calls (unique_uuid, audio_mp3, phone_number, duration, call_status, call_result)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`
	var id int64
	err := q.QueryRowContext(ctx, stmt,
		c.UniqueUUID,
		c.AudioMP3,
		c.PhoneNumber,
		c.Duration,
		c.CallStatus,
		c.CallResult,
	).Scan(&id)
	return id, err
}

func insertCallLead(ctx context.Context, q utils.Querier, l CallLeadLink) error {
	const stmt = `
INSERT INTO call_leads (call_id, lead_id, last_update)
VALUES ($1, $2, $3)
`
	_, err := q.ExecContext(ctx, stmt, l.CallID, l.LeadID, l.LastUpdate)
	return err
}

func managerPermitted(ctx context.Context, q utils.Querier, managerID int64) (bool, error) {
	const stmt = `
SELECT is_permitted
FROM managers
WHERE id = $1
`
	var ok bool
	if err := q.QueryRowContext(ctx, stmt, managerID).Scan(&ok); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, err
	}
	return ok, nil
}

func setManagerPermission(ctx context.Context, q utils.Querier, crmUserID int64, permitted bool) error {
	const stmt = `
UPDATE managers
SET is_permitted = $1
WHERE crm_user_id = $2
`
	res, err := q.ExecContext(ctx, stmt, permitted, crmUserID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
