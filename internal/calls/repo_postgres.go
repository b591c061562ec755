package calls

import (
	"context"
	"database/sql"
	"fmt"

	"voicedesk/internal/apperr"
	"voicedesk/pkg/utils"
)

// Repository stores inbound calls. A second row for the same provider call id
// yields apperr.ErrConflict.
type Repository interface {
	Insert(ctx context.Context, c Call) error
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Insert(ctx context.Context, c Call) error {
	const q = `
INSERT INTO calls (
  id, user_id, provider_call_id, assistant_id, from_number, to_number, status,
  transcript, recording_url, duration_seconds, structured_data, summary,
  ended_reason, started_at, ended_at, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::jsonb,$12,$13,$14,$15,$16
)
`
	data, err := utils.JSONB(c.StructuredData)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q,
		c.ID,
		c.UserID,
		c.ProviderCallID,
		utils.NullString(c.AssistantID),
		utils.NullString(c.From),
		utils.NullString(c.To),
		c.Status,
		utils.NullString(c.Transcript),
		utils.NullString(c.RecordingURL),
		c.DurationSeconds,
		data,
		utils.NullString(c.Summary),
		utils.NullString(c.EndedReason),
		utils.NullTime(c.StartedAt),
		utils.NullTime(c.EndedAt),
		c.CreatedAt,
	)
	if utils.IsUniqueViolation(err) {
		return fmt.Errorf("%w: call %s already recorded", apperr.ErrConflict, c.ProviderCallID)
	}
	return err
}
