package analysis

import (
	"context"
	"database/sql"
	"errors"
)

// SQLRepo stores analyses in the analyses/assistants tables.
type SQLRepo struct {
	db *sql.DB
}

func NewSQLRepo(db *sql.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) Append(ctx context.Context, a Analysis) (int64, error) {
	const q = `
INSERT INTO analyses (lead_id, audio_text, analysed_text, is_analysed, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id
`
	var id int64
	err := r.db.QueryRowContext(ctx, q, a.LeadID, a.AudioText, a.AnalysedText, a.IsAnalysed, a.CreatedAt).Scan(&id)
	return id, err
}

func (r *SQLRepo) ActiveAssistant(ctx context.Context) (Assistant, error) {
	const q = `
SELECT id, name, instructions, model, is_active, created_at
FROM assistants
WHERE is_active = $1
ORDER BY id DESC
LIMIT 1
`
	var a Assistant
	err := r.db.QueryRowContext(ctx, q, true).Scan(&a.ID, &a.Name, &a.Instructions, &a.Model, &a.IsActive, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Assistant{}, ErrNotFound
	}
	return a, err
}

// CreateAssistant inserts a template. Activating it deactivates the current one.
func (r *SQLRepo) CreateAssistant(ctx context.Context, a Assistant) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if a.IsActive {
		if _, err := tx.ExecContext(ctx, `UPDATE assistants SET is_active = $1 WHERE is_active = $2`, false, true); err != nil {
			return 0, err
		}
	}
	const q = `
INSERT INTO assistants (name, instructions, model, is_active, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id
`
	var id int64
	if err := tx.QueryRowContext(ctx, q, a.Name, a.Instructions, a.Model, a.IsActive, a.CreatedAt).Scan(&id); err != nil {
		return 0, err
	}
	return id, tx.Commit()
}
