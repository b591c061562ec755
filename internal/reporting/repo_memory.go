package reporting

import (
	"context"
	"sync"
	"time"

	"voicedesk/internal/calls"
	"voicedesk/internal/records"
)

// MemoryRepo is an in-memory reporting repository for tests.
// It enforces tenant isolation on reads.
type MemoryRepo struct {
	mu sync.Mutex

	Calls         []calls.Call
	CampaignCalls []calls.CampaignCall
	Orders        []records.Order
	Reservations  []records.Reservation

	// Campaigns maps campaign id to owning user id.
	Campaigns map[string]string
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{Campaigns: map[string]string{}} }

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func (r *MemoryRepo) ListCalls(_ context.Context, userID string, from, to time.Time) ([]CallRow, error) {
	if userID == "" {
		return nil, errTenantRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallRow, 0)
	for _, c := range r.Calls {
		if c.UserID == userID && inRange(c.CreatedAt, from, to) {
			out = append(out, CallRow{Source: SourceInbound, Status: c.Status, DurationSeconds: c.DurationSeconds, Recorded: c.RecordingURL != ""})
		}
	}
	for _, c := range r.CampaignCalls {
		if c.UserID == userID && inRange(c.CreatedAt, from, to) {
			out = append(out, campaignRow(c))
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListCampaignCalls(_ context.Context, userID, campaignID string) ([]CallRow, error) {
	if userID == "" {
		return nil, errTenantRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallRow, 0)
	for _, c := range r.CampaignCalls {
		if c.UserID == userID && c.CampaignID == campaignID {
			out = append(out, campaignRow(c))
		}
	}
	return out, nil
}

func campaignRow(c calls.CampaignCall) CallRow {
	return CallRow{Source: SourceCampaign, Status: c.Status, DurationSeconds: c.DurationSeconds, Recorded: c.RecordingURL != ""}
}

func (r *MemoryRepo) ListOrders(_ context.Context, userID string, from, to time.Time) ([]OrderRow, error) {
	if userID == "" {
		return nil, errTenantRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]OrderRow, 0)
	for _, o := range r.Orders {
		if o.UserID == userID && inRange(o.CreatedAt, from, to) {
			out = append(out, OrderRow{Estado: string(o.Estado), Total: o.Total})
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListReservations(_ context.Context, userID string, from, to time.Time) ([]ReservationRow, error) {
	if userID == "" {
		return nil, errTenantRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ReservationRow, 0)
	for _, res := range r.Reservations {
		if res.UserID != userID {
			continue
		}
		day, err := time.Parse("2006-01-02", res.Fecha)
		if err != nil || !inRange(day, from.Truncate(24*time.Hour), to) {
			continue
		}
		out = append(out, ReservationRow{Estado: string(res.Estado), NumeroPersonas: res.NumeroPersonas})
	}
	return out, nil
}

func (r *MemoryRepo) CampaignExists(_ context.Context, userID, campaignID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.Campaigns[campaignID]
	return ok && owner == userID, nil
}

func (r *MemoryRepo) CountConversions(_ context.Context, userID, campaignID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := map[string]bool{}
	for _, c := range r.CampaignCalls {
		if c.UserID == userID && c.CampaignID == campaignID {
			ids[c.ID] = true
		}
	}
	n := 0
	for _, o := range r.Orders {
		if o.UserID == userID && ids[o.CampaignCallID] {
			n++
		}
	}
	for _, res := range r.Reservations {
		if res.UserID == userID && ids[res.CampaignCallID] {
			n++
		}
	}
	return n, nil
}
