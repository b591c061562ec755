package campaigns

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"voicedesk/internal/apperr"
	"voicedesk/internal/calls"
	"voicedesk/pkg/utils"
)

// NOTE: This repository assumes the following tables exist:
// - campaigns
// - campaign_calls, with UNIQUE (provider_call_id) where provider_call_id IS NOT NULL
//
// Counter updates never read-then-write: see applyCounterDeltaTx.

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const campaignColumns = `
id, user_id, name, assistant_id, phone_number_id, status,
total_recipients, completed_calls, failed_calls, assistant_overrides,
started_at, completed_at, created_at, updated_at`

const callColumns = `
id, campaign_id, user_id, phone_number, COALESCE(customer_name, ''), COALESCE(customer_email, ''),
COALESCE(lead_id, ''), COALESCE(provider_call_id, ''), status, COALESCE(transcript, ''),
COALESCE(recording_url, ''), COALESCE(duration_seconds, 0), structured_data, COALESCE(summary, ''),
COALESCE(ended_reason, ''), started_at, ended_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (Campaign, error) {
	var c Campaign
	var overrides []byte
	var started, completed sql.NullTime
	if err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&c.AssistantID,
		&c.PhoneNumberID,
		&c.Status,
		&c.TotalRecipients,
		&c.CompletedCalls,
		&c.FailedCalls,
		&overrides,
		&started,
		&completed,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return Campaign{}, err
	}
	if err := utils.ScanJSONB(overrides, &c.AssistantOverrides); err != nil {
		return Campaign{}, fmt.Errorf("campaigns: decode assistant_overrides: %w", err)
	}
	c.StartedAt = utils.TimePtr(started)
	c.CompletedAt = utils.TimePtr(completed)
	return c, nil
}

func scanCall(row rowScanner) (calls.CampaignCall, error) {
	var cc calls.CampaignCall
	var data []byte
	var started, ended sql.NullTime
	if err := row.Scan(
		&cc.ID,
		&cc.CampaignID,
		&cc.UserID,
		&cc.PhoneNumber,
		&cc.CustomerName,
		&cc.CustomerEmail,
		&cc.LeadID,
		&cc.ProviderCallID,
		&cc.Status,
		&cc.Transcript,
		&cc.RecordingURL,
		&cc.DurationSeconds,
		&data,
		&cc.Summary,
		&cc.EndedReason,
		&started,
		&ended,
		&cc.CreatedAt,
		&cc.UpdatedAt,
	); err != nil {
		return calls.CampaignCall{}, err
	}
	if err := utils.ScanJSONB(data, &cc.StructuredData); err != nil {
		return calls.CampaignCall{}, fmt.Errorf("campaigns: decode structured_data: %w", err)
	}
	cc.StartedAt = utils.TimePtr(started)
	cc.EndedAt = utils.TimePtr(ended)
	return cc, nil
}

func (r *PostgresRepo) CreateWithCalls(ctx context.Context, c Campaign, rows []calls.CampaignCall) error {
	overrides, err := utils.JSONB(c.AssistantOverrides)
	if err != nil {
		return err
	}
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const qc = `
INSERT INTO campaigns (
  id, user_id, name, assistant_id, phone_number_id, status,
  total_recipients, completed_calls, failed_calls, assistant_overrides,
  started_at, completed_at, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10::jsonb,$11,$12,$13,$14
)
`
		if _, err := tx.ExecContext(ctx, qc,
			c.ID,
			c.UserID,
			c.Name,
			c.AssistantID,
			c.PhoneNumberID,
			c.Status,
			c.TotalRecipients,
			c.CompletedCalls,
			c.FailedCalls,
			overrides,
			utils.NullTime(c.StartedAt),
			utils.NullTime(c.CompletedAt),
			c.CreatedAt,
			c.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert campaign: %w", err)
		}

		const qr = `
INSERT INTO campaign_calls (
  id, campaign_id, user_id, phone_number, customer_name, customer_email, lead_id,
  provider_call_id, status, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
`
		stmt, err := tx.PrepareContext(ctx, qr)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx,
				row.ID,
				row.CampaignID,
				row.UserID,
				row.PhoneNumber,
				utils.NullString(row.CustomerName),
				utils.NullString(row.CustomerEmail),
				utils.NullString(row.LeadID),
				utils.NullString(row.ProviderCallID),
				row.Status,
				row.CreatedAt,
				row.UpdatedAt,
			); err != nil {
				return fmt.Errorf("insert campaign call: %w", err)
			}
		}
		return nil
	})
}

func (r *PostgresRepo) List(ctx context.Context, userID string, status Status) ([]Campaign, error) {
	q := "SELECT" + campaignColumns + "\nFROM campaigns\nWHERE user_id = $1 AND ($2 = '' OR status = $2)\nORDER BY created_at DESC"
	rows, err := r.db.QueryContext(ctx, q, userID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, userID, id string) (Campaign, error) {
	q := "SELECT" + campaignColumns + "\nFROM campaigns\nWHERE user_id = $1 AND id = $2"
	c, err := scanCampaign(r.db.QueryRowContext(ctx, q, userID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, apperr.ErrNotFound
		}
		return Campaign{}, err
	}
	return c, nil
}

func (r *PostgresRepo) ListCalls(ctx context.Context, userID, campaignID string) ([]calls.CampaignCall, error) {
	q := "SELECT" + callColumns + "\nFROM campaign_calls\nWHERE user_id = $1 AND campaign_id = $2\nORDER BY created_at DESC, id"
	rows, err := r.db.QueryContext(ctx, q, userID, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]calls.CampaignCall, 0)
	for rows.Next() {
		cc, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Cancel(ctx context.Context, userID, id string, now time.Time) (Campaign, error) {
	q := `
UPDATE campaigns
SET status = 'cancelled', completed_at = $3, updated_at = $3
WHERE user_id = $1 AND id = $2 AND status NOT IN ('completed', 'cancelled')
RETURNING` + campaignColumns

	c, err := scanCampaign(r.db.QueryRowContext(ctx, q, userID, id, now))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Campaign{}, err
	}
	// Zero rows: either absent/foreign or already final.
	existing, gerr := r.Get(ctx, userID, id)
	if gerr != nil {
		return Campaign{}, gerr
	}
	return Campaign{}, errAlreadyFinal(existing.Status)
}

func (r *PostgresRepo) RecordOutcome(ctx context.Context, providerCallID string, o CallOutcome, now time.Time) (OutcomeResult, error) {
	var res OutcomeResult
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		// Lock the call row to serialize racing deliveries for the same call.
		q := "SELECT" + callColumns + "\nFROM campaign_calls\nWHERE provider_call_id = $1\nFOR UPDATE"
		cc, err := scanCall(tx.QueryRowContext(ctx, q, providerCallID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.ErrNotFound
			}
			return err
		}
		res.Call, res.Previous = cc, cc.Status

		if o.OnlyIfOpen && cc.Status.IsTerminal() {
			c, err := getCampaignTx(ctx, tx, cc.UserID, cc.CampaignID)
			res.Campaign = c
			return err
		}

		cc = applyOutcome(cc, o, now)
		if err := updateCallTx(ctx, tx, cc); err != nil {
			return err
		}
		res.Call, res.Applied = cc, true

		dc, df := calls.CounterDelta(res.Previous, cc.Status)
		c, err := applyCounterDeltaTx(ctx, tx, cc.UserID, cc.CampaignID, dc, df, now)
		if err != nil {
			return err
		}
		res.Campaign = c
		return nil
	})
	if err != nil {
		return OutcomeResult{}, err
	}
	return res, nil
}

func updateCallTx(ctx context.Context, tx *sql.Tx, cc calls.CampaignCall) error {
	const q = `
UPDATE campaign_calls SET
  status = $3, transcript = $4, recording_url = $5, duration_seconds = $6,
  structured_data = $7::jsonb, summary = $8, ended_reason = $9,
  started_at = $10, ended_at = $11, updated_at = $12
WHERE user_id = $1 AND id = $2
`
	data, err := utils.JSONB(cc.StructuredData)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, q,
		cc.UserID,
		cc.ID,
		cc.Status,
		utils.NullString(cc.Transcript),
		utils.NullString(cc.RecordingURL),
		cc.DurationSeconds,
		data,
		utils.NullString(cc.Summary),
		utils.NullString(cc.EndedReason),
		utils.NullTime(cc.StartedAt),
		utils.NullTime(cc.EndedAt),
		cc.UpdatedAt,
	)
	return err
}

// applyCounterDeltaTx adjusts the counters in one guarded statement and flips a
// running campaign to completed once every recipient has an outcome. When the
// guard rejects the delta the campaign is returned unchanged.
func applyCounterDeltaTx(ctx context.Context, tx *sql.Tx, userID, campaignID string, dc, df int, now time.Time) (Campaign, error) {
	if dc == 0 && df == 0 {
		return getCampaignTx(ctx, tx, userID, campaignID)
	}
	q := `
UPDATE campaigns SET
  completed_calls = completed_calls + $3,
  failed_calls    = failed_calls + $4,
  status = CASE
    WHEN status = 'running' AND completed_calls + $3 + failed_calls + $4 = total_recipients THEN 'completed'
    ELSE status
  END,
  completed_at = CASE
    WHEN status = 'running' AND completed_calls + $3 + failed_calls + $4 = total_recipients THEN $5::timestamptz
    ELSE completed_at
  END,
  updated_at = $5
WHERE user_id = $1 AND id = $2
  AND completed_calls + $3 >= 0
  AND failed_calls + $4 >= 0
  AND completed_calls + $3 + failed_calls + $4 <= total_recipients
RETURNING` + campaignColumns

	c, err := scanCampaign(tx.QueryRowContext(ctx, q, userID, campaignID, dc, df, now))
	if errors.Is(err, sql.ErrNoRows) {
		return getCampaignTx(ctx, tx, userID, campaignID)
	}
	return c, err
}

func getCampaignTx(ctx context.Context, tx *sql.Tx, userID, id string) (Campaign, error) {
	q := "SELECT" + campaignColumns + "\nFROM campaigns\nWHERE user_id = $1 AND id = $2"
	c, err := scanCampaign(tx.QueryRowContext(ctx, q, userID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Campaign{}, apperr.ErrNotFound
	}
	return c, err
}
