package campaigns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voicedesk/internal/apperr"
	"voicedesk/internal/calls"
	"voicedesk/internal/phone"
	"voicedesk/internal/telephony"
	"voicedesk/pkg/logger"
	"voicedesk/pkg/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Repository persists campaigns and their per-recipient call rows.
//
// Tenancy: reads and tenant mutations filter on userID. RecordOutcome is
// called from the provider webhook and is keyed by provider call id instead.
type Repository interface {
	// CreateWithCalls inserts the campaign and all of its calls in one transaction.
	CreateWithCalls(ctx context.Context, c Campaign, rows []calls.CampaignCall) error
	List(ctx context.Context, userID string, status Status) ([]Campaign, error)
	Get(ctx context.Context, userID, id string) (Campaign, error)
	ListCalls(ctx context.Context, userID, campaignID string) ([]calls.CampaignCall, error)

	// Cancel moves a non-final campaign to cancelled. A final campaign yields
	// apperr.ErrConflict; a missing or foreign one apperr.ErrNotFound.
	Cancel(ctx context.Context, userID, id string, now time.Time) (Campaign, error)

	// RecordOutcome locks the call row, writes the outcome and applies the
	// counter delta to the parent campaign in one transaction. An unknown
	// provider call id yields apperr.ErrNotFound.
	RecordOutcome(ctx context.Context, providerCallID string, o CallOutcome, now time.Time) (OutcomeResult, error)
}

// CreationLimiter caps concurrent campaign creation per tenant.
type CreationLimiter interface {
	Acquire(ctx context.Context, userID string) (bool, error)
	Release(ctx context.Context, userID string) error
}

// AuditLogger receives cancellation events. Implemented by audit.Service.
type AuditLogger interface {
	LogCampaignCancelled(ctx context.Context, userID, campaignID string) error
}

// PlanLimits reports the tenant's plan cap on recipients per campaign, 0 for
// none. Implemented by tenants.Service.
type PlanLimits interface {
	RecipientLimit(ctx context.Context, userID string) (int, error)
}

type Options struct {
	DefaultCountryCode string
	// MaxRecipients is the global cap; Plans may lower it per tenant.
	MaxRecipients int
	Plans         PlanLimits
	Limiter       CreationLimiter
	Audit         AuditLogger
}

type Service struct {
	repo     Repository
	provider telephony.VoiceProvider
	opts     Options
	validate *validator.Validate
	clock    func() time.Time
}

func NewService(repo Repository, provider telephony.VoiceProvider, opts Options) *Service {
	if opts.DefaultCountryCode == "" {
		opts.DefaultCountryCode = "52"
	}
	return &Service{
		repo:     repo,
		provider: provider,
		opts:     opts,
		validate: apperr.NewValidator(),
		clock:    time.Now,
	}
}

const compensateTimeout = 10 * time.Second

// Create places one batch of outbound calls and records the campaign.
//
// Provider failure persists nothing. If persisting fails after the provider
// accepted the batch, every placed call is ended again (best-effort) and an
// internal error is returned.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (Detail, error) {
	if userID == "" {
		return Detail{}, errors.New("campaigns: user_id required")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.AssistantID = strings.TrimSpace(req.AssistantID)
	req.PhoneNumberID = strings.TrimSpace(req.PhoneNumberID)
	if err := s.validate.Struct(req); err != nil {
		return Detail{}, apperr.Validation(err)
	}
	if s.opts.MaxRecipients > 0 && len(req.Recipients) > s.opts.MaxRecipients {
		return Detail{}, fmt.Errorf("%w: at most %d recipients per campaign", apperr.ErrInvalidArgument, s.opts.MaxRecipients)
	}
	if s.opts.Plans != nil {
		limit, err := s.opts.Plans.RecipientLimit(ctx, userID)
		if err != nil {
			return Detail{}, fmt.Errorf("campaigns: plan limit: %w", err)
		}
		if limit > 0 && len(req.Recipients) > limit {
			return Detail{}, fmt.Errorf("%w: your plan allows at most %d recipients per campaign", apperr.ErrInvalidArgument, limit)
		}
	}

	req.Recipients = append([]Recipient(nil), req.Recipients...)
	customers := make([]telephony.Customer, len(req.Recipients))
	for i, r := range req.Recipients {
		n, err := phone.Normalize(r.PhoneNumber, s.opts.DefaultCountryCode)
		if err != nil {
			return Detail{}, fmt.Errorf("%w: recipients[%d].phone_number %q is not a valid phone number", apperr.ErrInvalidArgument, i, r.PhoneNumber)
		}
		req.Recipients[i].PhoneNumber = n
		customers[i] = telephony.Customer{Number: n, Name: strings.TrimSpace(r.Name), Email: strings.TrimSpace(r.Email)}
	}

	if s.opts.Limiter != nil {
		ok, err := s.opts.Limiter.Acquire(ctx, userID)
		if err != nil {
			return Detail{}, fmt.Errorf("campaigns: creation limiter: %w", err)
		}
		if !ok {
			return Detail{}, fmt.Errorf("%w: another campaign is being created for this account", apperr.ErrConflict)
		}
		defer func() {
			if err := s.opts.Limiter.Release(context.WithoutCancel(ctx), userID); err != nil {
				logger.From(ctx).Warn("campaign limiter release failed", "user_id", userID, "error", err)
			}
		}()
	}

	var overrides map[string]any
	if promo := strings.TrimSpace(req.PromotionalVariable); promo != "" {
		overrides = map[string]any{"variableValues": map[string]any{"promocion": promo}}
	}

	log := logger.From(ctx).With("user_id", userID, "provider", s.provider.Name())
	placed, err := s.provider.PlaceBatchCalls(ctx, telephony.BatchCallRequest{
		AssistantID:        req.AssistantID,
		PhoneNumberID:      req.PhoneNumberID,
		Customers:          customers,
		AssistantOverrides: overrides,
	})
	if err != nil {
		metrics.OutboundCalls("error", len(customers))
		log.Error("batch call placement failed", "recipients", len(customers), "error", err)
		return Detail{}, fmt.Errorf("%w: call placement failed: %v", apperr.ErrUpstream, err)
	}
	metrics.OutboundCalls("placed", len(placed))

	now := s.clock().UTC()
	c := Campaign{
		ID:                 uuid.NewString(),
		UserID:             userID,
		Name:               req.Name,
		AssistantID:        req.AssistantID,
		PhoneNumberID:      req.PhoneNumberID,
		Status:             StatusRunning,
		TotalRecipients:    len(req.Recipients),
		AssistantOverrides: overrides,
		StartedAt:          &now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	ids := matchPlacedCalls(req.Recipients, placed, s.opts.DefaultCountryCode)
	rows := make([]calls.CampaignCall, len(req.Recipients))
	for i, r := range req.Recipients {
		status := calls.CallStatusPending
		if ids[i] != "" {
			status = calls.CallStatusCalling
		}
		rows[i] = calls.CampaignCall{
			ID:             uuid.NewString(),
			CampaignID:     c.ID,
			UserID:         userID,
			PhoneNumber:    r.PhoneNumber,
			CustomerName:   strings.TrimSpace(r.Name),
			CustomerEmail:  strings.TrimSpace(r.Email),
			LeadID:         strings.TrimSpace(r.LeadID),
			ProviderCallID: ids[i],
			Status:         status,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}

	if err := s.repo.CreateWithCalls(ctx, c, rows); err != nil {
		log.Error("campaign persist failed after calls were placed; ending placed calls", "campaign_id", c.ID, "placed", len(placed), "error", err)
		s.compensate(ctx, placed)
		return Detail{}, fmt.Errorf("campaigns: persist campaign: %w", err)
	}
	log.Info("campaign created", "campaign_id", c.ID, "recipients", c.TotalRecipients, "placed", len(placed))

	return Detail{Campaign: c, Calls: rows}, nil
}

// compensate ends every placed call. Failures are logged and counted, never returned.
func (s *Service) compensate(ctx context.Context, placed []telephony.PlacedCall) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()
	log := logger.From(ctx)
	for _, p := range placed {
		if p.ProviderCallID == "" {
			continue
		}
		if err := s.provider.EndCall(ctx, p.ProviderCallID); err != nil {
			metrics.OutboundCalls("compensation_failed", 1)
			log.Error("compensating end-call failed", "provider_call_id", p.ProviderCallID, "error", err)
			continue
		}
		metrics.OutboundCalls("compensated", 1)
		log.Warn("compensating end-call sent", "provider_call_id", p.ProviderCallID)
	}
}

// matchPlacedCalls pairs provider call ids with recipients by normalized
// customer number, then hands leftover ids to unmatched recipients in response order.
func matchPlacedCalls(recipients []Recipient, placed []telephony.PlacedCall, defaultCC string) []string {
	ids := make([]string, len(recipients))
	byNumber := make(map[string][]int, len(recipients))
	for i, r := range recipients {
		byNumber[r.PhoneNumber] = append(byNumber[r.PhoneNumber], i)
	}

	leftover := make([]string, 0)
	for _, p := range placed {
		if p.ProviderCallID == "" {
			continue
		}
		n, err := phone.Normalize(p.CustomerNumber, defaultCC)
		if err == nil {
			if idx := byNumber[n]; len(idx) > 0 {
				ids[idx[0]] = p.ProviderCallID
				byNumber[n] = idx[1:]
				continue
			}
		}
		leftover = append(leftover, p.ProviderCallID)
	}
	for i := range ids {
		if len(leftover) == 0 {
			break
		}
		if ids[i] == "" {
			ids[i] = leftover[0]
			leftover = leftover[1:]
		}
	}
	return ids
}

func (s *Service) Cancel(ctx context.Context, userID, id string) (Campaign, error) {
	if userID == "" {
		return Campaign{}, errors.New("campaigns: user_id required")
	}
	c, err := s.repo.Cancel(ctx, userID, id, s.clock().UTC())
	if err != nil {
		return Campaign{}, err
	}
	if s.opts.Audit != nil {
		if err := s.opts.Audit.LogCampaignCancelled(ctx, userID, id); err != nil {
			logger.From(ctx).Warn("audit write failed", "campaign_id", id, "error", err)
		}
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, userID string, status string) ([]Campaign, error) {
	if userID == "" {
		return nil, errors.New("campaigns: user_id required")
	}
	st := Status(status)
	if st != "" && !st.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrInvalidArgument, status)
	}
	return s.repo.List(ctx, userID, st)
}

func (s *Service) Get(ctx context.Context, userID, id string) (Detail, error) {
	if userID == "" {
		return Detail{}, errors.New("campaigns: user_id required")
	}
	c, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return Detail{}, err
	}
	rows, err := s.repo.ListCalls(ctx, userID, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Campaign: c, Calls: rows}, nil
}

// RecordOutcome applies a webhook-reported outcome to the campaign call with
// the given provider id. An unknown id yields apperr.ErrNotFound.
func (s *Service) RecordOutcome(ctx context.Context, providerCallID string, o CallOutcome) (OutcomeResult, error) {
	if providerCallID == "" {
		return OutcomeResult{}, fmt.Errorf("%w: provider call id required", apperr.ErrInvalidArgument)
	}
	if !o.Status.IsTerminal() {
		return OutcomeResult{}, fmt.Errorf("%w: outcome status %q is not terminal", apperr.ErrInvalidArgument, o.Status)
	}
	res, err := s.repo.RecordOutcome(ctx, providerCallID, o, s.clock().UTC())
	if err != nil {
		return OutcomeResult{}, err
	}
	if res.Applied {
		logger.From(ctx).Debug("campaign call outcome recorded",
			"provider_call_id", providerCallID,
			"previous", res.Previous,
			"status", o.Status,
			"campaign_id", res.Campaign.ID,
			"completed_calls", res.Campaign.CompletedCalls,
			"failed_calls", res.Campaign.FailedCalls,
			"total_recipients", res.Campaign.TotalRecipients,
		)
	}
	return res, nil
}
