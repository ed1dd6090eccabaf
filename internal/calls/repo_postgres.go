package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dialer-core/internal/leads"
	"dialer-core/pkg/utils"
)

// PostgresRepo stores call attempts in Postgres (pgx stdlib driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const callColumns = `
	id, session_id, order_id, lead_id, agent_id, trunk_id,
	direction, phone, status, flow_at_dial, backup_dials,
	started_at, answered_at, ended_at, talk_seconds`

func (r *PostgresRepo) Get(ctx context.Context, id string) (Call, error) {
	if id == "" {
		return Call{}, ErrInvalidArgument
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+callColumns+` FROM calls WHERE id = $1`, id)
	c, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, ErrNotFound
	}
	return c, err
}

func (r *PostgresRepo) GetBySession(ctx context.Context, sessionID string) (Call, error) {
	if sessionID == "" {
		return Call{}, ErrInvalidArgument
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+callColumns+` FROM calls WHERE session_id = $1`, sessionID)
	c, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, ErrNotFound
	}
	return c, err
}

func (r *PostgresRepo) Create(ctx context.Context, c Call) error {
	if c.ID == "" || c.SessionID == "" {
		return ErrInvalidArgument
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO calls (`+callColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		c.ID, c.SessionID, c.OrderID, nullStr(c.LeadID), nullStr(c.AgentID), nullStr(c.TrunkID),
		c.Direction, c.Phone, int64(c.Status), c.FlowAtDial, c.BackupDials,
		nullTime(c.StartedAt), nullTime(c.AnsweredAt), nullTime(c.EndedAt), c.TalkSeconds,
	)
	return err
}

func (r *PostgresRepo) Update(ctx context.Context, c Call) error {
	if c.ID == "" {
		return ErrInvalidArgument
	}
	err := utils.ExecAffectingOne(ctx, r.db, `
		UPDATE calls SET
			agent_id = $1, trunk_id = $2, status = $3, backup_dials = $4,
			answered_at = $5, ended_at = $6, talk_seconds = $7
		WHERE id = $8`,
		nullStr(c.AgentID), nullStr(c.TrunkID), int64(c.Status), c.BackupDials,
		nullTime(c.AnsweredAt), nullTime(c.EndedAt), c.TalkSeconds, c.ID,
	)
	if errors.Is(err, utils.ErrNoRowAffected) {
		return ErrNotFound
	}
	return err
}

func (r *PostgresRepo) ListSince(ctx context.Context, orderID string, since time.Time, limit int) ([]Call, error) {
	if orderID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+callColumns+` FROM calls
		WHERE order_id = $1 AND started_at >= $2
		ORDER BY started_at DESC
		LIMIT $3`, orderID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListForLead(ctx context.Context, leadID string) ([]Call, error) {
	if leadID == "" {
		return nil, ErrInvalidArgument
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+callColumns+` FROM calls
		WHERE lead_id = $1 AND ended_at IS NOT NULL
		ORDER BY ended_at`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCall(row interface{ Scan(...any) error }) (Call, error) {
	var (
		c          Call
		leadID     sql.NullString
		agentID    sql.NullString
		trunkID    sql.NullString
		status     int64
		startedAt  sql.NullTime
		answeredAt sql.NullTime
		endedAt    sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.SessionID, &c.OrderID, &leadID, &agentID, &trunkID,
		&c.Direction, &c.Phone, &status, &c.FlowAtDial, &c.BackupDials,
		&startedAt, &answeredAt, &endedAt, &c.TalkSeconds,
	)
	if err != nil {
		return Call{}, err
	}
	c.LeadID = leadID.String
	c.AgentID = agentID.String
	c.TrunkID = trunkID.String
	c.Status = leads.StatusCode(status)
	c.StartedAt = startedAt.Time
	c.AnsweredAt = answeredAt.Time
	c.EndedAt = endedAt.Time
	return c, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
