package agents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"dialer-core/pkg/utils"
)

// PostgresRepo stores agent seats in Postgres (pgx stdlib driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const agentColumns = `id, name, extension, phone_mode, group_ids, is_training, missed_streak`

func (r *PostgresRepo) Get(ctx context.Context, id string) (Agent, error) {
	if id == "" {
		return Agent{}, ErrInvalidArgument
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)
	a, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	return a, err
}

func (r *PostgresRepo) List(ctx context.Context) ([]Agent, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Agent, 0)
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) SetMissedStreak(ctx context.Context, id string, streak int) error {
	if id == "" || streak < 0 {
		return ErrInvalidArgument
	}
	err := utils.ExecAffectingOne(ctx, r.db, `
		UPDATE agents SET missed_streak = $1, updated_at = now() WHERE id = $2`, streak, id)
	if errors.Is(err, utils.ErrNoRowAffected) {
		return ErrNotFound
	}
	return err
}

func scanAgent(row interface{ Scan(...any) error }) (Agent, error) {
	var (
		a         Agent
		mode      string
		groupsRaw []byte
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Extension, &mode, &groupsRaw, &a.Training, &a.MissedStreak); err != nil {
		return Agent{}, err
	}
	a.Mode = PhoneMode(mode)
	if len(groupsRaw) > 0 {
		if err := json.Unmarshal(groupsRaw, &a.GroupIDs); err != nil {
			return Agent{}, fmt.Errorf("agents: decode groups for %s: %w", a.ID, err)
		}
	}
	return a, nil
}
