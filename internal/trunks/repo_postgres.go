package trunks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresRepo loads the trunk pool. Country codes are persisted as a JSONB
// string array.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

// ListEnabled returns every trunk the selector may hand out.
func (r *PostgresRepo) ListEnabled(ctx context.Context) ([]Trunk, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, number, sip_reg_id, order_id, channels, country_codes, is_default
		FROM trunks WHERE enabled ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Trunk, 0)
	for rows.Next() {
		var (
			t                       Trunk
			rawCodes                []byte
			number, sipReg, orderID sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Name, &number, &sipReg, &orderID, &t.Channels, &rawCodes, &t.Default); err != nil {
			return nil, err
		}
		t.Number = number.String
		t.SIPRegID = sipReg.String
		t.OrderID = orderID.String
		if len(rawCodes) > 0 {
			if err := json.Unmarshal(rawCodes, &t.CountryCodes); err != nil {
				return nil, fmt.Errorf("trunks: decode country codes for %s: %w", t.ID, err)
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
