package audit

import (
	"context"
	"testing"

	"voicedesk/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_AppendRequiresTenantAndType(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	assert.ErrorIs(t, svc.Append(context.Background(), Event{Type: EventTypeAdminAction}), ErrInvalidEvent)
	assert.ErrorIs(t, svc.Append(context.Background(), Event{UserID: "u"}), ErrInvalidEvent)
}

func TestService_LogAdminActionCapturesActor(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	ctx := auth.WithIdentity(context.Background(), "admin-1", "admin")
	ctx = WithClientIP(ctx, "1.2.3.4")
	require.NoError(t, svc.LogAdminAction(ctx, "tenant-7", "role changed", `{"role":"admin"}`))

	evs := repo.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, EventTypeAdminAction, evs[0].Type)
	assert.Equal(t, "tenant-7", evs[0].UserID)
	assert.Equal(t, "admin-1", evs[0].ActorUserID)
	assert.Equal(t, "admin", evs[0].ActorRole)
	assert.Equal(t, "1.2.3.4", evs[0].IPAddress)
	assert.NotEmpty(t, evs[0].ID)
	assert.False(t, evs[0].CreatedAt.IsZero())
}

func TestService_LogCampaignCancelled(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	ctx := auth.WithIdentity(context.Background(), "tenant-1", "user")
	require.NoError(t, svc.LogCampaignCancelled(ctx, "tenant-1", "camp-1"))

	evs := repo.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, EventTypeCampaignCancelled, evs[0].Type)
	assert.Equal(t, "camp-1", evs[0].CampaignID)
	assert.Equal(t, "", evs[0].IPAddress)
}
