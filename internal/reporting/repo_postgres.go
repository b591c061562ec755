package reporting

import (
	"context"
	"database/sql"
	"time"
)

// PostgresRepo reads reporting rows straight from the operational tables.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListCalls(ctx context.Context, userID string, from, to time.Time) ([]CallRow, error) {
	const q = `
SELECT 'inbound', status, COALESCE(duration_seconds, 0), COALESCE(recording_url, '') <> ''
FROM calls
WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
UNION ALL
SELECT 'campaign', status, COALESCE(duration_seconds, 0), COALESCE(recording_url, '') <> ''
FROM campaign_calls
WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
`
	return r.callRows(ctx, q, userID, from, to)
}

func (r *PostgresRepo) ListCampaignCalls(ctx context.Context, userID, campaignID string) ([]CallRow, error) {
	const q = `
SELECT 'campaign', status, COALESCE(duration_seconds, 0), COALESCE(recording_url, '') <> ''
FROM campaign_calls
WHERE user_id = $1 AND campaign_id = $2
`
	return r.callRows(ctx, q, userID, campaignID)
}

func (r *PostgresRepo) callRows(ctx context.Context, q string, args ...any) ([]CallRow, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CallRow, 0)
	for rows.Next() {
		var c CallRow
		if err := rows.Scan(
			&c.Source,
			&c.Status,
			&c.DurationSeconds,
			&c.Recorded,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListOrders(ctx context.Context, userID string, from, to time.Time) ([]OrderRow, error) {
	const q = `
SELECT estado, total
FROM pedidos
WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
`
	rows, err := r.db.QueryContext(ctx, q, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]OrderRow, 0)
	for rows.Next() {
		var o OrderRow
		if err := rows.Scan(&o.Estado, &o.Total); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListReservations(ctx context.Context, userID string, from, to time.Time) ([]ReservationRow, error) {
	const q = `
SELECT estado, numero_personas
FROM reservaciones
WHERE user_id = $1 AND fecha >= $2::date AND fecha::timestamptz < $3
`
	rows, err := r.db.QueryContext(ctx, q, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ReservationRow, 0)
	for rows.Next() {
		var res ReservationRow
		if err := rows.Scan(&res.Estado, &res.NumeroPersonas); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CampaignExists(ctx context.Context, userID, campaignID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM campaigns WHERE user_id = $1 AND id = $2)`, userID, campaignID).Scan(&ok)
	return ok, err
}

func (r *PostgresRepo) CountConversions(ctx context.Context, userID, campaignID string) (int, error) {
	const q = `
SELECT
  (SELECT count(*) FROM pedidos p
     JOIN campaign_calls cc ON cc.id = p.campaign_call_id
    WHERE p.user_id = $1 AND cc.user_id = $1 AND cc.campaign_id = $2)
+ (SELECT count(*) FROM reservaciones r
     JOIN campaign_calls cc ON cc.id = r.campaign_call_id
    WHERE r.user_id = $1 AND cc.user_id = $1 AND cc.campaign_id = $2)
`
	var n int
	if err := r.db.QueryRowContext(ctx, q, userID, campaignID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
