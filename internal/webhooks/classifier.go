// Package webhooks turns voice-provider webhook deliveries into campaign
// outcomes, inbound call rows and derived records.
package webhooks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voicedesk/internal/apperr"
	"voicedesk/internal/calls"
	"voicedesk/internal/campaigns"
	"voicedesk/internal/records"
	"voicedesk/internal/telephony"
	"voicedesk/internal/tenants"
	"voicedesk/pkg/logger"
	"voicedesk/pkg/metrics"

	"github.com/google/uuid"
)

// CampaignOutcomes is implemented by campaigns.Service.
type CampaignOutcomes interface {
	RecordOutcome(ctx context.Context, providerCallID string, o campaigns.CallOutcome) (campaigns.OutcomeResult, error)
}

// TenantDirectory is implemented by tenants.Service.
type TenantDirectory interface {
	ResolveTenant(ctx context.Context, assistantID, calledNumber string) (string, error)
	Industry(ctx context.Context, userID string) (tenants.Industry, error)
}

// RecordSink is implemented by records.Service.
type RecordSink interface {
	SaveDerived(ctx context.Context, userID string, link records.Link, d records.Derived) (string, error)
}

// Outcome labels what a delivery did. Used for metrics and the response body.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeCampaign  Outcome = "campaign"
	OutcomeInbound   Outcome = "inbound"
	OutcomeUnknown   Outcome = "unknown_call"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
)

type Result struct {
	Kind    telephony.EventKind
	Outcome Outcome
	// Derived is the record kind created from structured data, if any.
	Derived string
}

func (r Result) Duplicate() bool { return r.Outcome == OutcomeDuplicate }

type Classifier struct {
	campaigns CampaignOutcomes
	tenants   TenantDirectory
	records   RecordSink
	calls     calls.Repository
	dedup     Deduper
	clock     func() time.Time
}

// NewClassifier wires the classifier. dedup may be nil, which disables
// redelivery detection.
func NewClassifier(c CampaignOutcomes, t TenantDirectory, r RecordSink, callRepo calls.Repository, dedup Deduper) *Classifier {
	return &Classifier{campaigns: c, tenants: t, records: r, calls: callRepo, dedup: dedup, clock: time.Now}
}

const releaseTimeout = 5 * time.Second

// Handle processes one raw webhook body.
//
// Malformed bodies and inbound calls with no resolvable tenant fail with
// apperr.ErrInvalidArgument before anything is written.
func (c *Classifier) Handle(ctx context.Context, body []byte) (Result, error) {
	ev, err := telephony.ParseVapiEvent(body)
	if err != nil {
		metrics.WebhookEvent("invalid", string(OutcomeRejected))
		return Result{Outcome: OutcomeRejected}, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	if ev.Kind == telephony.EventIgnored || (ev.Kind == telephony.EventStatusUpdate && !strings.EqualFold(ev.Status, "ended")) {
		metrics.WebhookEvent(string(ev.Kind), string(OutcomeIgnored))
		return Result{Kind: ev.Kind, Outcome: OutcomeIgnored}, nil
	}

	log := logger.From(ctx).With("event", ev.Kind, "provider_call_id", ev.ProviderCallID)
	ctx = logger.With(ctx, log)

	key := ev.DedupKey()
	if c.dedup != nil {
		first, err := c.dedup.Claim(ctx, key)
		if err != nil {
			metrics.WebhookEvent(string(ev.Kind), string(OutcomeFailed))
			return Result{Kind: ev.Kind, Outcome: OutcomeFailed}, fmt.Errorf("webhooks: dedup claim: %w", err)
		}
		if !first {
			log.Info("duplicate webhook delivery dropped")
			metrics.WebhookEvent(string(ev.Kind), string(OutcomeDuplicate))
			return Result{Kind: ev.Kind, Outcome: OutcomeDuplicate}, nil
		}
	}

	var res Result
	switch ev.Kind {
	case telephony.EventEndOfCallReport:
		res, err = c.endOfCallReport(ctx, ev)
	default:
		res, err = c.statusEnded(ctx, ev)
	}
	res.Kind = ev.Kind
	if err != nil {
		c.release(ctx, key)
		if res.Outcome == "" {
			res.Outcome = OutcomeFailed
		}
		metrics.WebhookEvent(string(ev.Kind), string(res.Outcome))
		return res, err
	}
	metrics.WebhookEvent(string(ev.Kind), string(res.Outcome))
	return res, nil
}

func (c *Classifier) release(ctx context.Context, key string) {
	if c.dedup == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := c.dedup.Release(ctx, key); err != nil {
		logger.From(ctx).Warn("dedup release failed", "key", key, "error", err)
	}
}

func (c *Classifier) endOfCallReport(ctx context.Context, ev telephony.CallEvent) (Result, error) {
	status := calls.StatusFromEndedReason(ev.EndedReason)
	out, err := c.campaigns.RecordOutcome(ctx, ev.ProviderCallID, campaigns.CallOutcome{
		Status:          status,
		Transcript:      ev.Transcript,
		RecordingURL:    ev.RecordingURL,
		DurationSeconds: ev.DurationSeconds,
		StructuredData:  storedStructuredData(ctx, ev),
		Summary:         ev.Summary,
		EndedReason:     ev.EndedReason,
		StartedAt:       ev.StartedAt,
		EndedAt:         ev.EndedAt,
	})
	switch {
	case err == nil:
		caller := out.Call.PhoneNumber
		if caller == "" {
			caller = ev.CustomerNumber
		}
		kind := c.derive(ctx, out.Call.UserID, records.Link{CampaignCallID: out.Call.ID}, ev.StructuredData, caller)
		return Result{Outcome: OutcomeCampaign, Derived: kind}, nil
	case errors.Is(err, apperr.ErrNotFound) && ev.CallType == telephony.CallTypeOutbound:
		// The placement may not be committed yet. Fail so the provider redelivers.
		return Result{Outcome: OutcomeUnknown}, fmt.Errorf("webhooks: outbound call %s has no campaign call yet", ev.ProviderCallID)
	case errors.Is(err, apperr.ErrNotFound):
		return c.inbound(ctx, ev, status)
	default:
		return Result{}, fmt.Errorf("webhooks: record campaign outcome: %w", err)
	}
}

func (c *Classifier) inbound(ctx context.Context, ev telephony.CallEvent, status calls.CallStatus) (Result, error) {
	userID, err := c.tenants.ResolveTenant(ctx, ev.AssistantID, ev.CalledNumber)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			logger.From(ctx).Warn("inbound call with no tenant", "assistant_id", ev.AssistantID, "called_number", ev.CalledNumber)
			return Result{Outcome: OutcomeRejected}, fmt.Errorf("%w: no tenant owns this call", apperr.ErrInvalidArgument)
		}
		return Result{}, fmt.Errorf("webhooks: resolve tenant: %w", err)
	}

	call := calls.Call{
		ID:              uuid.NewString(),
		UserID:          userID,
		ProviderCallID:  ev.ProviderCallID,
		AssistantID:     ev.AssistantID,
		From:            ev.CustomerNumber,
		To:              ev.CalledNumber,
		Status:          status,
		Transcript:      ev.Transcript,
		RecordingURL:    ev.RecordingURL,
		DurationSeconds: ev.DurationSeconds,
		StructuredData:  storedStructuredData(ctx, ev),
		Summary:         ev.Summary,
		EndedReason:     ev.EndedReason,
		StartedAt:       ev.StartedAt,
		EndedAt:         ev.EndedAt,
		CreatedAt:       c.clock().UTC(),
	}
	if err := c.calls.Insert(ctx, call); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			// Stored by an earlier delivery whose dedup record has expired.
			return Result{Outcome: OutcomeDuplicate}, nil
		}
		return Result{}, fmt.Errorf("webhooks: insert inbound call: %w", err)
	}
	logger.From(ctx).Info("inbound call recorded", "user_id", userID, "call_id", call.ID, "status", status)

	kind := c.derive(ctx, userID, records.Link{CallID: call.ID}, ev.StructuredData, ev.CustomerNumber)
	return Result{Outcome: OutcomeInbound, Derived: kind}, nil
}

// storedStructuredData is what gets persisted on the call row. Structured data
// that is not an object is kept as {"raw": text} and never derives a record.
func storedStructuredData(ctx context.Context, ev telephony.CallEvent) map[string]any {
	if ev.UnparsedStructuredData == "" {
		return ev.StructuredData
	}
	logger.From(ctx).Warn("structured data is not an object; recording outcome without it",
		"provider_call_id", ev.ProviderCallID)
	return map[string]any{"raw": ev.UnparsedStructuredData}
}

// statusEnded marks an open campaign call missed. Calls that already have an
// outcome, and calls that are not campaign calls, are left alone.
func (c *Classifier) statusEnded(ctx context.Context, ev telephony.CallEvent) (Result, error) {
	_, err := c.campaigns.RecordOutcome(ctx, ev.ProviderCallID, campaigns.CallOutcome{
		Status:     calls.CallStatusMissed,
		OnlyIfOpen: true,
	})
	switch {
	case err == nil:
		return Result{Outcome: OutcomeCampaign}, nil
	case errors.Is(err, apperr.ErrNotFound):
		return Result{Outcome: OutcomeUnknown}, nil
	default:
		return Result{}, fmt.Errorf("webhooks: record status update: %w", err)
	}
}

// derive creates an order or reservation for restaurant tenants. The call
// outcome is already committed, so failures are reported and swallowed.
func (c *Classifier) derive(ctx context.Context, userID string, link records.Link, data map[string]any, caller string) string {
	if len(data) == 0 || userID == "" {
		return ""
	}
	log := logger.From(ctx)
	industry, err := c.tenants.Industry(ctx, userID)
	if err != nil {
		log.Error("industry lookup failed; skipping record derivation", "user_id", userID, "error", err)
		logger.CaptureError(ctx, err, map[string]string{"stage": "derive"})
		return ""
	}
	if industry != tenants.IndustryRestaurant {
		return ""
	}
	d := records.Derive(data, caller)
	if d.Kind() == "" {
		return ""
	}
	kind, err := c.records.SaveDerived(ctx, userID, link, d)
	if errors.Is(err, apperr.ErrConflict) {
		log.Info("record already derived from this call", "user_id", userID, "kind", d.Kind())
		return ""
	}
	if err != nil {
		log.Error("derived record not saved", "user_id", userID, "kind", d.Kind(), "error", err)
		logger.CaptureError(ctx, err, map[string]string{"stage": "derive", "kind": d.Kind()})
		return ""
	}
	metrics.DerivedRecord(kind)
	log.Info("record derived from call", "user_id", userID, "kind", kind)
	return kind
}
