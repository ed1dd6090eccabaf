package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dialer-core/internal/schedule"
	"dialer-core/pkg/utils"
)

// PostgresRepo stores orders in Postgres (pgx stdlib driver).
//
// The calendar is persisted as JSONB: work_week maps weekday number (0=Sunday,
// matching time.Weekday) to window strings, holidays is a flat string array.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const orderColumns = `
	id, name, status, mode,
	retry_intervals_minutes, max_total_calls, reset_allowed,
	callback_delay_seconds, callback_from_history,
	work_week, holidays, timezone,
	trunk_scheme, agent_ids, agent_groups, unknown_lead_action,
	created_at, updated_at`

func (r *PostgresRepo) Get(ctx context.Context, id string) (Order, error) {
	if id == "" {
		return Order{}, ErrInvalidArgument
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

func (r *PostgresRepo) ListActive(ctx context.Context) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at`, StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) SetStatus(ctx context.Context, id string, status Status) error {
	if id == "" {
		return ErrInvalidArgument
	}
	err := utils.ExecAffectingOne(ctx, r.db,
		`UPDATE orders SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	if errors.Is(err, utils.ErrNoRowAffected) {
		return ErrNotFound
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var (
		o              Order
		intervalsRaw   []byte
		cbDelaySeconds int64
		workWeekRaw    []byte
		holidaysRaw    []byte
		timezone       string
		trunkScheme    sql.NullString
		agentIDsRaw    []byte
		agentGroupsRaw []byte
		unknownAction  sql.NullString
	)
	err := row.Scan(
		&o.ID, &o.Name, &o.Status, &o.Mode,
		&intervalsRaw, &o.Plan.MaxTotalCalls, &o.Plan.ResetAllowed,
		&cbDelaySeconds, &o.Plan.CallbackDelayFromHistory,
		&workWeekRaw, &holidaysRaw, &timezone,
		&trunkScheme, &agentIDsRaw, &agentGroupsRaw, &unknownAction,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return Order{}, err
	}
	o.Plan.CallbackDelay = time.Duration(cbDelaySeconds) * time.Second
	o.TrunkScheme = trunkScheme.String
	o.UnknownLead = UnknownLeadAction(unknownAction.String)

	if len(agentIDsRaw) > 0 {
		if err := json.Unmarshal(agentIDsRaw, &o.AgentIDs); err != nil {
			return Order{}, fmt.Errorf("orders: bad agent_ids for %s: %w", o.ID, err)
		}
	}
	if len(agentGroupsRaw) > 0 {
		if err := json.Unmarshal(agentGroupsRaw, &o.AgentGroups); err != nil {
			return Order{}, fmt.Errorf("orders: bad agent_groups for %s: %w", o.ID, err)
		}
	}

	var intervalMinutes []int
	if len(intervalsRaw) > 0 {
		if err := json.Unmarshal(intervalsRaw, &intervalMinutes); err != nil {
			return Order{}, fmt.Errorf("orders: bad retry_intervals_minutes for %s: %w", o.ID, err)
		}
	}
	o.Plan.RetryIntervals = make([]time.Duration, 0, len(intervalMinutes))
	for _, m := range intervalMinutes {
		o.Plan.RetryIntervals = append(o.Plan.RetryIntervals, time.Duration(m)*time.Minute)
	}

	cal, err := decodeCalendar(workWeekRaw, holidaysRaw, timezone)
	if err != nil {
		return Order{}, fmt.Errorf("orders: bad calendar for %s: %w", o.ID, err)
	}
	o.Calendar = cal
	return o, nil
}

func decodeCalendar(workWeekRaw, holidaysRaw []byte, timezone string) (schedule.Calendar, error) {
	loc := time.Local
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return schedule.Calendar{}, err
		}
		loc = l
	}

	var rawWeek map[string][]string
	if len(workWeekRaw) > 0 {
		if err := json.Unmarshal(workWeekRaw, &rawWeek); err != nil {
			return schedule.Calendar{}, err
		}
	}
	week := schedule.WorkWeek{}
	for dayStr, windows := range rawWeek {
		var dayNum int
		if _, err := fmt.Sscanf(dayStr, "%d", &dayNum); err != nil || dayNum < 0 || dayNum > 6 {
			return schedule.Calendar{}, fmt.Errorf("bad weekday key %q", dayStr)
		}
		day := time.Weekday(dayNum)
		for _, ws := range windows {
			w, err := schedule.ParseWindow(ws)
			if err != nil {
				return schedule.Calendar{}, err
			}
			week[day] = append(week[day], w)
		}
	}

	var holidays []string
	if len(holidaysRaw) > 0 {
		if err := json.Unmarshal(holidaysRaw, &holidays); err != nil {
			return schedule.Calendar{}, err
		}
	}
	return schedule.NewCalendar(week, holidays, loc)
}
