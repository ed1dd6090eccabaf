package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends journal events. Insert-only; the table carries no
// update path by design.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events
			(id, type, lead_id, order_id, call_id, from_status, to_status, disposition, message, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		e.ID, string(e.Type), e.LeadID, e.OrderID, e.CallID,
		e.FromStatus, e.ToStatus, e.Disposition, e.Message, e.Metadata, e.CreatedAt,
	)
	return err
}
