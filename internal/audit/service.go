package audit

import (
	"context"
	"errors"
	"time"

	"voicedesk/internal/auth"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only: no Update/Delete methods.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records internal audit information.
// Callers treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.UserID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogAdminAction records an admin mutation of another tenant's account.
// Actor and IP come from the request context.
func (s *Service) LogAdminAction(ctx context.Context, targetUserID, message, metadata string) error {
	actor, role := actorFrom(ctx)
	return s.Append(ctx, Event{
		UserID:      targetUserID,
		Type:        EventTypeAdminAction,
		ActorUserID: actor,
		ActorRole:   role,
		IPAddress:   ClientIPFromContext(ctx),
		Message:     message,
		Metadata:    metadata,
	})
}

// LogCampaignCancelled records a campaign cancellation.
func (s *Service) LogCampaignCancelled(ctx context.Context, userID, campaignID string) error {
	actor, role := actorFrom(ctx)
	return s.Append(ctx, Event{
		UserID:      userID,
		Type:        EventTypeCampaignCancelled,
		ActorUserID: actor,
		ActorRole:   role,
		IPAddress:   ClientIPFromContext(ctx),
		CampaignID:  campaignID,
		Message:     "campaign cancelled",
	})
}

func actorFrom(ctx context.Context) (string, string) {
	uid, _ := auth.UserID(ctx)
	role, _ := auth.Role(ctx)
	return uid, role
}
