package leads

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dialer-core/pkg/utils"
)

// PostgresRepo stores leads in Postgres (pgx stdlib driver).
//
// Staging uses an optimistic WHERE guard instead of row locks; losing the
// race surfaces as ErrAlreadyStaged and the caller simply moves on.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const leadColumns = `
	id, order_id, phone, country_code, time_zone, status, priority,
	attempt_count, good_attempt_count, counted_attempts,
	reset_count, wrap_offset, missed_streak, hung_up_count,
	confirmed, comment, utc_offset_seconds,
	next_call_at, last_call_at, staged_at, session_id,
	linked_from_id, created_at, updated_at`

func (r *PostgresRepo) Get(ctx context.Context, id string) (Lead, error) {
	if id == "" {
		return Lead{}, ErrInvalidArgument
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return l, err
}

func (r *PostgresRepo) Create(ctx context.Context, l Lead) error {
	if l.ID == "" || l.OrderID == "" || l.Phone == "" {
		return ErrInvalidArgument
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO leads (`+leadColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,now(),now())`,
		l.ID, l.OrderID, l.Phone, l.CountryCode, l.TimeZone, int64(l.Status), l.Priority,
		l.AttemptCount, l.GoodAttemptCount, l.CountedAttempts,
		l.ResetCount, l.WrapOffset, l.MissedStreak, l.HungUpCount,
		l.Confirmed, l.Comment, l.UTCOffsetSeconds,
		nullTime(l.NextCallAt), nullTime(l.LastCallAt), nullTime(l.StagedAt), nullStr(l.SessionID),
		nullStr(l.LinkedFromID),
	)
	return err
}

func (r *PostgresRepo) Update(ctx context.Context, l Lead) error {
	if l.ID == "" {
		return ErrInvalidArgument
	}
	err := utils.ExecAffectingOne(ctx, r.db, `
		UPDATE leads SET
			status = $1, priority = $2,
			attempt_count = $3, good_attempt_count = $4, counted_attempts = $5,
			reset_count = $6, wrap_offset = $7,
			missed_streak = $8, hung_up_count = $9,
			confirmed = $10, comment = $11, utc_offset_seconds = $12,
			next_call_at = $13, last_call_at = $14,
			staged_at = $15, session_id = $16,
			linked_from_id = $17, updated_at = now()
		WHERE id = $18`,
		int64(l.Status), l.Priority,
		l.AttemptCount, l.GoodAttemptCount, l.CountedAttempts,
		l.ResetCount, l.WrapOffset,
		l.MissedStreak, l.HungUpCount,
		l.Confirmed, l.Comment, l.UTCOffsetSeconds,
		nullTime(l.NextCallAt), nullTime(l.LastCallAt),
		nullTime(l.StagedAt), nullStr(l.SessionID),
		nullStr(l.LinkedFromID), l.ID,
	)
	if errors.Is(err, utils.ErrNoRowAffected) {
		return ErrNotFound
	}
	return err
}

func (r *PostgresRepo) FindByPhone(ctx context.Context, phone string) (Lead, error) {
	if phone == "" {
		return Lead{}, ErrInvalidArgument
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE phone = $1
		ORDER BY updated_at DESC
		LIMIT 1`, phone)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return l, err
}

func (r *PostgresRepo) ListForOrder(ctx context.Context, orderID string) ([]Lead, error) {
	if orderID == "" {
		return nil, ErrInvalidArgument
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE order_id = $1 AND status NOT IN ($2,$3,$4,$5,$6,$7,$8)
		ORDER BY priority DESC, next_call_at`,
		orderID,
		int64(StatusCompleted), int64(StatusRecallConverted), int64(StatusAgreedPending),
		int64(StatusWrongNumber), int64(StatusRefused),
		int64(StatusCallLimit), int64(StatusDisqualified),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Stage(ctx context.Context, id, sessionID string, at time.Time) error {
	if id == "" || sessionID == "" {
		return ErrInvalidArgument
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE leads SET staged_at = $1, session_id = $2, updated_at = now()
		WHERE id = $3 AND staged_at IS NULL`,
		at, sessionID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	// Row missing or already held; disambiguate for the caller.
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT true FROM leads WHERE id = $1`, id).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return ErrAlreadyStaged
}

func (r *PostgresRepo) Release(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidArgument
	}
	err := utils.ExecAffectingOne(ctx, r.db, `
		UPDATE leads SET staged_at = NULL, session_id = NULL, updated_at = now()
		WHERE id = $1`, id)
	if errors.Is(err, utils.ErrNoRowAffected) {
		return ErrNotFound
	}
	return err
}

func (r *PostgresRepo) ReleaseStale(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE leads SET staged_at = NULL, session_id = NULL, updated_at = now()
		WHERE staged_at IS NOT NULL AND staged_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanLead(row interface{ Scan(...any) error }) (Lead, error) {
	var (
		l          Lead
		status     int64
		nextCall   sql.NullTime
		lastCall   sql.NullTime
		stagedAt   sql.NullTime
		sessionID  sql.NullString
		linkedFrom sql.NullString
	)
	err := row.Scan(
		&l.ID, &l.OrderID, &l.Phone, &l.CountryCode, &l.TimeZone, &status, &l.Priority,
		&l.AttemptCount, &l.GoodAttemptCount, &l.CountedAttempts,
		&l.ResetCount, &l.WrapOffset, &l.MissedStreak, &l.HungUpCount,
		&l.Confirmed, &l.Comment, &l.UTCOffsetSeconds,
		&nextCall, &lastCall, &stagedAt, &sessionID,
		&linkedFrom, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return Lead{}, err
	}
	l.Status = StatusCode(status)
	l.NextCallAt = nextCall.Time
	l.LastCallAt = lastCall.Time
	l.StagedAt = stagedAt.Time
	l.SessionID = sessionID.String
	l.LinkedFromID = linkedFrom.String
	return l, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
