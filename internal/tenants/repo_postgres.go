package tenants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"voicedesk/internal/apperr"
	"voicedesk/pkg/utils"
)

// PostgresRepo implements Repository over user_profiles, user_subscriptions,
// plans, user_assistants and phone_numbers.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const profileSelect = `
SELECT
  p.id, p.email, COALESCE(p.password_hash, ''), COALESCE(p.full_name, ''),
  COALESCE(p.business_name, ''), COALESCE(p.phone, ''), COALESCE(p.industry, ''),
  p.role, COALESCE(s.plan_id::text, ''), p.created_at, p.updated_at
FROM user_profiles p
LEFT JOIN user_subscriptions s ON s.user_id = p.id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.PasswordHash,
		&p.FullName,
		&p.BusinessName,
		&p.Phone,
		&p.Industry,
		&p.Role,
		&p.PlanID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func (r *PostgresRepo) getOne(ctx context.Context, where string, arg any) (Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx, profileSelect+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, apperr.ErrNotFound
		}
		return Profile{}, err
	}
	return p, nil
}

func (r *PostgresRepo) GetProfile(ctx context.Context, userID string) (Profile, error) {
	return r.getOne(ctx, "WHERE p.id = $1", userID)
}

func (r *PostgresRepo) ProfileByEmail(ctx context.Context, email string) (Profile, error) {
	return r.getOne(ctx, "WHERE lower(p.email) = lower($1)", email)
}

func (r *PostgresRepo) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch, now time.Time) (Profile, error) {
	const q = `
UPDATE user_profiles SET
  full_name     = COALESCE($2, full_name),
  business_name = COALESCE($3, business_name),
  phone         = COALESCE($4, phone),
  industry      = COALESCE($5, industry),
  updated_at    = $6
WHERE id = $1
`
	var industry *string
	if patch.Industry != nil {
		v := string(*patch.Industry)
		industry = &v
	}
	res, err := r.db.ExecContext(ctx, q,
		userID,
		optString(patch.FullName),
		optString(patch.BusinessName),
		optString(patch.Phone),
		optString(industry),
		now,
	)
	if err != nil {
		return Profile{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return Profile{}, err
	} else if n == 0 {
		return Profile{}, apperr.ErrNotFound
	}
	return r.GetProfile(ctx, userID)
}

func (r *PostgresRepo) ListProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := r.db.QueryContext(ctx, profileSelect+"ORDER BY p.created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) SetRole(ctx context.Context, userID, role string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE user_profiles SET role = $2, updated_at = $3 WHERE id = $1`, userID, role, now)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) SetPlan(ctx context.Context, userID, planID string, now time.Time) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM plans WHERE id = $1)`, planID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: plan %q", apperr.ErrNotFound, planID)
		}

		const q = `
INSERT INTO user_subscriptions (user_id, plan_id, status, started_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE SET
  plan_id    = EXCLUDED.plan_id,
  status     = EXCLUDED.status,
  started_at = EXCLUDED.started_at
`
		_, err := tx.ExecContext(ctx, q, userID, planID, SubscriptionActive, now)
		return err
	})
}

func (r *PostgresRepo) ListPlans(ctx context.Context) ([]Plan, error) {
	const q = `
SELECT id, name, monthly_price, max_campaign_recipients, active
FROM plans
ORDER BY monthly_price ASC, name ASC
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Plan, 0)
	for rows.Next() {
		var p Plan
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.MonthlyPrice,
			&p.MaxCampaignRecipients,
			&p.Active,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) UserByAssistant(ctx context.Context, assistantID string) (string, error) {
	const q = `SELECT user_id FROM user_assistants WHERE assistant_id = $1 LIMIT 1`
	return r.userID(ctx, q, assistantID)
}

func (r *PostgresRepo) UserByPhoneNumber(ctx context.Context, variants []string) (string, error) {
	// $1 is bound as text[] by the pgx stdlib driver.
	const q = `SELECT user_id FROM phone_numbers WHERE phone_number = ANY($1) LIMIT 1`
	return r.userID(ctx, q, variants)
}

func (r *PostgresRepo) userID(ctx context.Context, q string, arg any) (string, error) {
	var uid string
	if err := r.db.QueryRowContext(ctx, q, arg).Scan(&uid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperr.ErrNotFound
		}
		return "", err
	}
	return uid, nil
}

func optString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}
