package reporting

import (
	"context"
	"database/sql"
	"time"

	"dialer-core/internal/calls"
	"dialer-core/internal/leads"
)

// PostgresRepo reads attempt rows straight from the calls table, only
// the columns the summaries need.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListCalls(ctx context.Context, orderID string, from, to time.Time) ([]calls.Call, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT direction, status, talk_seconds, started_at, answered_at, ended_at
		FROM calls
		WHERE order_id = $1 AND started_at >= $2 AND started_at < $3`,
		orderID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calls.Call
	for rows.Next() {
		var (
			c        calls.Call
			status   int64
			answered sql.NullTime
			ended    sql.NullTime
		)
		if err := rows.Scan(&c.Direction, &status, &c.TalkSeconds, &c.StartedAt, &answered, &ended); err != nil {
			return nil, err
		}
		c.OrderID = orderID
		c.Status = leads.StatusCode(status)
		if answered.Valid {
			c.AnsweredAt = answered.Time
		}
		if ended.Valid {
			c.EndedAt = ended.Time
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
