package campaigns

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"voicedesk/internal/apperr"
	"voicedesk/internal/calls"
)

// MemoryRepo is an in-memory Repository for tests. A single mutex plays the
// role of the row lock and transaction the Postgres implementation uses.
type MemoryRepo struct {
	mu        sync.Mutex
	campaigns map[string]Campaign
	calls     map[string]calls.CampaignCall // by row id

	// FailCreate makes CreateWithCalls fail without writing anything.
	FailCreate error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{campaigns: map[string]Campaign{}, calls: map[string]calls.CampaignCall{}}
}

func (r *MemoryRepo) CreateWithCalls(_ context.Context, c Campaign, rows []calls.CampaignCall) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailCreate != nil {
		return r.FailCreate
	}
	for _, row := range rows {
		if row.ProviderCallID == "" {
			continue
		}
		for _, existing := range r.calls {
			if existing.ProviderCallID == row.ProviderCallID {
				return errors.New("duplicate provider_call_id")
			}
		}
	}
	r.campaigns[c.ID] = c
	for _, row := range rows {
		r.calls[row.ID] = row
	}
	return nil
}

func (r *MemoryRepo) List(_ context.Context, userID string, status Status) ([]Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Campaign, 0)
	for _, c := range r.campaigns {
		if c.UserID != userID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) Get(_ context.Context, userID, id string) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.UserID != userID {
		return Campaign{}, apperr.ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) ListCalls(_ context.Context, userID, campaignID string) ([]calls.CampaignCall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.CampaignCall, 0)
	for _, cc := range r.calls {
		if cc.UserID == userID && cc.CampaignID == campaignID {
			out = append(out, cc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) Cancel(_ context.Context, userID, id string, now time.Time) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.UserID != userID {
		return Campaign{}, apperr.ErrNotFound
	}
	if c.Status.IsFinal() {
		return Campaign{}, errAlreadyFinal(c.Status)
	}
	c.Status = StatusCancelled
	c.CompletedAt = &now
	c.UpdatedAt = now
	r.campaigns[id] = c
	return c, nil
}

func (r *MemoryRepo) RecordOutcome(_ context.Context, providerCallID string, o CallOutcome, now time.Time) (OutcomeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cc calls.CampaignCall
	found := false
	for _, row := range r.calls {
		if row.ProviderCallID == providerCallID {
			cc, found = row, true
			break
		}
	}
	if !found {
		return OutcomeResult{}, apperr.ErrNotFound
	}
	c := r.campaigns[cc.CampaignID]
	res := OutcomeResult{Call: cc, Previous: cc.Status, Campaign: c}
	if o.OnlyIfOpen && cc.Status.IsTerminal() {
		return res, nil
	}

	cc = applyOutcome(cc, o, now)
	r.calls[cc.ID] = cc

	dc, df := calls.CounterDelta(res.Previous, cc.Status)
	if next, ok := applyCounterDelta(c, dc, df, now); ok {
		c = next
		r.campaigns[c.ID] = c
	}
	res.Call, res.Campaign, res.Applied = cc, c, true
	return res, nil
}

// Calls returns every stored campaign call regardless of tenant.
func (r *MemoryRepo) Calls() []calls.CampaignCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.CampaignCall, 0, len(r.calls))
	for _, cc := range r.calls {
		out = append(out, cc)
	}
	return out
}

// Campaigns returns every stored campaign regardless of tenant.
func (r *MemoryRepo) Campaigns() []Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Campaign, 0, len(r.campaigns))
	for _, c := range r.campaigns {
		out = append(out, c)
	}
	return out
}

// applyOutcome writes o onto cc. Content fields stay untouched for status-only outcomes.
func applyOutcome(cc calls.CampaignCall, o CallOutcome, now time.Time) calls.CampaignCall {
	cc.Status = o.Status
	cc.UpdatedAt = now
	if o.OnlyIfOpen {
		return cc
	}
	cc.Transcript = o.Transcript
	cc.RecordingURL = o.RecordingURL
	cc.DurationSeconds = o.DurationSeconds
	cc.StructuredData = o.StructuredData
	cc.Summary = o.Summary
	cc.EndedReason = o.EndedReason
	if o.StartedAt != nil {
		cc.StartedAt = o.StartedAt
	}
	cc.EndedAt = o.EndedAt
	if cc.EndedAt == nil {
		cc.EndedAt = &now
	}
	return cc
}

// applyCounterDelta mirrors the guarded counter UPDATE in repo_postgres.go.
// It reports false when the delta would break the counter invariant.
func applyCounterDelta(c Campaign, dc, df int, now time.Time) (Campaign, bool) {
	if dc == 0 && df == 0 {
		return c, false
	}
	completed, failed := c.CompletedCalls+dc, c.FailedCalls+df
	if completed < 0 || failed < 0 || completed+failed > c.TotalRecipients {
		return c, false
	}
	c.CompletedCalls, c.FailedCalls = completed, failed
	c.UpdatedAt = now
	if c.Status == StatusRunning && completed+failed == c.TotalRecipients {
		c.Status = StatusCompleted
		c.CompletedAt = &now
	}
	return c, true
}

func errAlreadyFinal(s Status) error {
	return fmt.Errorf("%w: campaign is already %s", apperr.ErrConflict, s)
}
