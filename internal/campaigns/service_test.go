package campaigns

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"voicedesk/internal/apperr"
	"voicedesk/internal/calls"
	"voicedesk/internal/telephony"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu       sync.Mutex
	requests []telephony.BatchCallRequest
	ended    []string
	err      error

	// respond builds the placed calls; default echoes one call per customer.
	respond func(req telephony.BatchCallRequest) []telephony.PlacedCall
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) PlaceBatchCalls(_ context.Context, req telephony.BatchCallRequest) ([]telephony.PlacedCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.respond != nil {
		return f.respond(req), nil
	}
	out := make([]telephony.PlacedCall, len(req.Customers))
	for i, c := range req.Customers {
		out[i] = telephony.PlacedCall{ProviderCallID: fmt.Sprintf("call-%d", i), CustomerNumber: c.Number}
	}
	return out, nil
}

func (f *fakeProvider) EndCall(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, id)
	return nil
}

type fakeLimiter struct {
	mu       sync.Mutex
	held     map[string]bool
	released int
}

func (l *fakeLimiter) Acquire(_ context.Context, userID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[userID] {
		return false, nil
	}
	l.held[userID] = true
	return true, nil
}

func (l *fakeLimiter) Release(_ context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, userID)
	l.released++
	return nil
}

type fakeAudit struct{ cancelled []string }

func (a *fakeAudit) LogCampaignCancelled(_ context.Context, _, campaignID string) error {
	a.cancelled = append(a.cancelled, campaignID)
	return nil
}

var testNow = time.Date(2025, 1, 10, 18, 0, 0, 0, time.UTC)

func newTestService(p *fakeProvider, opts Options) (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	svc := NewService(repo, p, opts)
	svc.clock = func() time.Time { return testNow }
	return svc, repo
}

func validRequest() CreateRequest {
	return CreateRequest{
		Name:          "Promo enero",
		AssistantID:   "asst-1",
		PhoneNumberID: "line-1",
		Recipients: []Recipient{
			{PhoneNumber: "55 1234 5678", Name: "Ana"},
			{PhoneNumber: "+52 55 8765 4321", Name: "Luis", LeadID: "lead-9"},
		},
		PromotionalVariable: "2x1 en tacos",
	}
}

func TestCreate_RequiresFields(t *testing.T) {
	p := &fakeProvider{}
	svc, repo := newTestService(p, Options{})
	ctx := context.Background()

	mutations := []func(*CreateRequest){
		func(r *CreateRequest) { r.Name = " " },
		func(r *CreateRequest) { r.AssistantID = "" },
		func(r *CreateRequest) { r.PhoneNumberID = "" },
		func(r *CreateRequest) { r.Recipients = nil },
		func(r *CreateRequest) { r.Recipients = []Recipient{{Name: "sin numero"}} },
		func(r *CreateRequest) { r.Recipients[1].PhoneNumber = "123" },
	}
	for i, m := range mutations {
		req := validRequest()
		m(&req)
		_, err := svc.Create(ctx, "t1", req)
		assert.ErrorIs(t, err, apperr.ErrInvalidArgument, "case %d", i)
	}
	assert.Empty(t, p.requests)
	assert.Empty(t, repo.Campaigns())
}

func TestCreate_MaxRecipients(t *testing.T) {
	p := &fakeProvider{}
	svc, _ := newTestService(p, Options{MaxRecipients: 1})
	_, err := svc.Create(context.Background(), "t1", validRequest())
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	assert.Empty(t, p.requests)
}

type fakePlans map[string]int

func (f fakePlans) RecipientLimit(_ context.Context, userID string) (int, error) {
	if userID == "broken" {
		return 0, errors.New("db down")
	}
	return f[userID], nil
}

func TestCreate_PlanRecipientLimit(t *testing.T) {
	p := &fakeProvider{}
	svc, _ := newTestService(p, Options{Plans: fakePlans{"basic": 1, "pro": 5}})
	ctx := context.Background()

	_, err := svc.Create(ctx, "basic", validRequest())
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "at most 1")
	assert.Empty(t, p.requests)

	_, err = svc.Create(ctx, "broken", validRequest())
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = svc.Create(ctx, "pro", validRequest())
	require.NoError(t, err)
	_, err = svc.Create(ctx, "no-plan", validRequest())
	require.NoError(t, err)
	assert.Len(t, p.requests, 2)
}

func TestCreate_PlacesOneBatchAndPersists(t *testing.T) {
	p := &fakeProvider{}
	svc, repo := newTestService(p, Options{DefaultCountryCode: "52"})

	d, err := svc.Create(context.Background(), "t1", validRequest())
	require.NoError(t, err)

	require.Len(t, p.requests, 1)
	req := p.requests[0]
	assert.Equal(t, "asst-1", req.AssistantID)
	assert.Equal(t, "line-1", req.PhoneNumberID)
	assert.Equal(t, []string{"+525512345678", "+525587654321"}, []string{req.Customers[0].Number, req.Customers[1].Number})
	assert.Equal(t, map[string]any{"promocion": "2x1 en tacos"}, req.AssistantOverrides["variableValues"])

	assert.Equal(t, StatusRunning, d.Status)
	assert.Equal(t, 2, d.TotalRecipients)
	require.NotNil(t, d.StartedAt)
	require.Len(t, d.Calls, 2)
	for _, c := range d.Calls {
		assert.Equal(t, calls.CallStatusCalling, c.Status)
		assert.NotEmpty(t, c.ProviderCallID)
		assert.Equal(t, d.ID, c.CampaignID)
	}
	assert.Len(t, repo.Campaigns(), 1)
	assert.Len(t, repo.Calls(), 2)
}

func TestCreate_NoPromotionMeansNoOverrides(t *testing.T) {
	p := &fakeProvider{}
	svc, _ := newTestService(p, Options{})
	req := validRequest()
	req.PromotionalVariable = ""
	_, err := svc.Create(context.Background(), "t1", req)
	require.NoError(t, err)
	assert.Nil(t, p.requests[0].AssistantOverrides)
}

func TestCreate_MatchesCallsByNumberThenOrder(t *testing.T) {
	p := &fakeProvider{respond: func(req telephony.BatchCallRequest) []telephony.PlacedCall {
		// Reversed order, and one call without a number.
		return []telephony.PlacedCall{
			{ProviderCallID: "for-luis", CustomerNumber: "+525587654321"},
			{ProviderCallID: "anonymous"},
		}
	}}
	svc, _ := newTestService(p, Options{})
	req := validRequest()
	req.Recipients = append(req.Recipients, Recipient{PhoneNumber: "5511112222"})

	d, err := svc.Create(context.Background(), "t1", req)
	require.NoError(t, err)
	byNumber := map[string]calls.CampaignCall{}
	for _, c := range d.Calls {
		byNumber[c.PhoneNumber] = c
	}
	assert.Equal(t, "for-luis", byNumber["+525587654321"].ProviderCallID)
	assert.Equal(t, "anonymous", byNumber["+525512345678"].ProviderCallID)
	assert.Equal(t, calls.CallStatusPending, byNumber["+525511112222"].Status)
	assert.Equal(t, "", byNumber["+525511112222"].ProviderCallID)
}

func TestCreate_UpstreamFailurePersistsNothing(t *testing.T) {
	p := &fakeProvider{err: &telephony.ProviderError{StatusCode: 500, Body: "boom"}}
	svc, repo := newTestService(p, Options{})

	_, err := svc.Create(context.Background(), "t1", validRequest())
	assert.ErrorIs(t, err, apperr.ErrUpstream)
	assert.Equal(t, 502, apperr.Status(err))
	assert.Empty(t, repo.Campaigns())
	assert.Empty(t, repo.Calls())
}

func TestCreate_PersistFailureEndsPlacedCalls(t *testing.T) {
	p := &fakeProvider{}
	svc, repo := newTestService(p, Options{})
	repo.FailCreate = errors.New("connection reset")

	_, err := svc.Create(context.Background(), "t1", validRequest())
	require.Error(t, err)
	assert.Equal(t, 500, apperr.Status(err))
	assert.ElementsMatch(t, []string{"call-0", "call-1"}, p.ended)
	assert.Empty(t, repo.Campaigns())
}

func TestCreate_LimiterRejectsConcurrentCreate(t *testing.T) {
	p := &fakeProvider{}
	lim := &fakeLimiter{held: map[string]bool{"t1": true}}
	svc, _ := newTestService(p, Options{Limiter: lim})

	_, err := svc.Create(context.Background(), "t1", validRequest())
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Empty(t, p.requests)

	_, err = svc.Create(context.Background(), "t2", validRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, lim.released)
	assert.False(t, lim.held["t2"])
}

func TestCancel(t *testing.T) {
	p := &fakeProvider{}
	audit := &fakeAudit{}
	svc, _ := newTestService(p, Options{Audit: audit})
	ctx := context.Background()

	d, err := svc.Create(ctx, "t1", validRequest())
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, "t2", d.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	c, err := svc.Cancel(ctx, "t1", d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, c.Status)
	require.NotNil(t, c.CompletedAt)
	assert.Equal(t, []string{d.ID}, audit.cancelled)

	_, err = svc.Cancel(ctx, "t1", d.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Len(t, audit.cancelled, 1)
}

func TestCancel_CompletedIsConflict(t *testing.T) {
	p := &fakeProvider{}
	svc, _ := newTestService(p, Options{})
	ctx := context.Background()

	d, err := svc.Create(ctx, "t1", validRequest())
	require.NoError(t, err)
	for _, c := range d.Calls {
		_, err := svc.RecordOutcome(ctx, c.ProviderCallID, CallOutcome{Status: calls.CallStatusAnswered})
		require.NoError(t, err)
	}
	got, err := svc.Get(ctx, "t1", d.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)

	_, err = svc.Cancel(ctx, "t1", d.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestListAndGet_AreTenantScoped(t *testing.T) {
	p := &fakeProvider{}
	svc, _ := newTestService(p, Options{})
	ctx := context.Background()

	d, err := svc.Create(ctx, "t1", validRequest())
	require.NoError(t, err)

	mine, err := svc.List(ctx, "t1", "")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	running, err := svc.List(ctx, "t1", "running")
	require.NoError(t, err)
	assert.Len(t, running, 1)

	theirs, err := svc.List(ctx, "t2", "")
	require.NoError(t, err)
	assert.Empty(t, theirs)

	_, err = svc.List(ctx, "t1", "paused")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = svc.Get(ctx, "t2", d.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := svc.Get(ctx, "t1", d.ID)
	require.NoError(t, err)
	assert.Len(t, got.Calls, 2)
}

func TestRecordOutcome_CounterInvariant(t *testing.T) {
	p := &fakeProvider{}
	svc, repo := newTestService(p, Options{})
	ctx := context.Background()

	req := validRequest()
	req.Recipients = append(req.Recipients, Recipient{PhoneNumber: "5511112222"}, Recipient{PhoneNumber: "5533334444"})
	d, err := svc.Create(ctx, "t1", req)
	require.NoError(t, err)

	ids := make([]string, 0, len(d.Calls))
	for _, c := range d.Calls {
		ids = append(ids, c.ProviderCallID)
	}
	check := func() Campaign {
		t.Helper()
		c, err := repo.Get(ctx, "t1", d.ID)
		require.NoError(t, err)
		assert.LessOrEqual(t, c.CompletedCalls+c.FailedCalls, c.TotalRecipients)
		if c.Status == StatusCompleted {
			assert.Equal(t, c.TotalRecipients, c.CompletedCalls+c.FailedCalls)
		}
		return c
	}

	statuses := []calls.CallStatus{calls.CallStatusAnswered, calls.CallStatusMissed, calls.CallStatusFailed}
	var wg sync.WaitGroup
	for round := 0; round < 5; round++ {
		for i, id := range ids {
			wg.Add(1)
			go func(id string, st calls.CallStatus) {
				defer wg.Done()
				_, err := svc.RecordOutcome(ctx, id, CallOutcome{Status: st})
				assert.NoError(t, err)
			}(id, statuses[(i+round)%len(statuses)])
		}
		wg.Wait()
		check()
	}

	c := check()
	assert.Equal(t, StatusCompleted, c.Status)
	assert.Equal(t, 4, c.CompletedCalls+c.FailedCalls)
}

func TestRecordOutcome_OnlyIfOpen(t *testing.T) {
	p := &fakeProvider{}
	svc, repo := newTestService(p, Options{})
	ctx := context.Background()

	d, err := svc.Create(ctx, "t1", validRequest())
	require.NoError(t, err)
	id := d.Calls[0].ProviderCallID

	res, err := svc.RecordOutcome(ctx, id, CallOutcome{Status: calls.CallStatusAnswered, Transcript: "hola"})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, calls.CallStatusCalling, res.Previous)

	res, err = svc.RecordOutcome(ctx, id, CallOutcome{Status: calls.CallStatusMissed, OnlyIfOpen: true})
	require.NoError(t, err)
	assert.False(t, res.Applied)

	c, err := repo.Get(ctx, "t1", d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.CompletedCalls)
	assert.Equal(t, 0, c.FailedCalls)

	_, err = svc.RecordOutcome(ctx, "unknown", CallOutcome{Status: calls.CallStatusAnswered})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.RecordOutcome(ctx, id, CallOutcome{Status: calls.CallStatusCalling})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestRecordOutcome_ReportOverridesMissed(t *testing.T) {
	p := &fakeProvider{}
	svc, repo := newTestService(p, Options{})
	ctx := context.Background()

	d, err := svc.Create(ctx, "t1", validRequest())
	require.NoError(t, err)
	id := d.Calls[0].ProviderCallID

	_, err = svc.RecordOutcome(ctx, id, CallOutcome{Status: calls.CallStatusMissed, OnlyIfOpen: true})
	require.NoError(t, err)
	c, _ := repo.Get(ctx, "t1", d.ID)
	assert.Equal(t, [2]int{0, 1}, [2]int{c.CompletedCalls, c.FailedCalls})

	res, err := svc.RecordOutcome(ctx, id, CallOutcome{Status: calls.CallStatusAnswered, Transcript: "hola"})
	require.NoError(t, err)
	assert.Equal(t, calls.CallStatusMissed, res.Previous)
	assert.Equal(t, "hola", res.Call.Transcript)
	c, _ = repo.Get(ctx, "t1", d.ID)
	assert.Equal(t, [2]int{1, 0}, [2]int{c.CompletedCalls, c.FailedCalls})
}
