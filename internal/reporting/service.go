package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voicedesk/internal/apperr"
	"voicedesk/internal/calls"
	"voicedesk/internal/records"
)

// Repository abstracts data access for reporting.
//
// Every method filters on userID.
type Repository interface {
	// ListCalls returns inbound and campaign calls created in [from, to).
	ListCalls(ctx context.Context, userID string, from, to time.Time) ([]CallRow, error)
	// ListCampaignCalls returns every call of one campaign.
	ListCampaignCalls(ctx context.Context, userID, campaignID string) ([]CallRow, error)
	// ListOrders returns orders created in [from, to).
	ListOrders(ctx context.Context, userID string, from, to time.Time) ([]OrderRow, error)
	// ListReservations returns reservations whose fecha falls in [from, to).
	ListReservations(ctx context.Context, userID string, from, to time.Time) ([]ReservationRow, error)

	CampaignExists(ctx context.Context, userID, campaignID string) (bool, error)
	// CountConversions counts orders and reservations derived from the campaign's calls.
	CountConversions(ctx context.Context, userID, campaignID string) (int, error)
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service { return &Service{repo: repo, clock: time.Now} }

var errTenantRequired = errors.New("reporting: user_id required")

func (s *Service) Summary(ctx context.Context, req SummaryRequest) (Summary, error) {
	if req.UserID == "" {
		return Summary{}, errTenantRequired
	}
	rng, err := s.resolveRange(req.Range)
	if err != nil {
		return Summary{}, err
	}

	callRows, err := s.repo.ListCalls(ctx, req.UserID, rng.From, rng.To)
	if err != nil {
		return Summary{}, err
	}
	orders, err := s.repo.ListOrders(ctx, req.UserID, rng.From, rng.To)
	if err != nil {
		return Summary{}, err
	}
	reservations, err := s.repo.ListReservations(ctx, req.UserID, rng.From, rng.To)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{UserID: req.UserID, Range: rng, Calls: summarizeCalls(callRows)}
	for _, o := range orders {
		out.Orders.Count++
		if o.Estado == string(records.OrderCancelado) {
			out.Orders.Cancelled++
			continue
		}
		out.Orders.Revenue += o.Total
	}
	out.Orders.Revenue = records.RoundCents(out.Orders.Revenue)
	for _, r := range reservations {
		out.Reservations.Count++
		if r.Estado == string(records.ReservationCancelada) {
			out.Reservations.Cancelled++
			continue
		}
		out.Reservations.Covers += r.NumeroPersonas
	}
	return out, nil
}

// resolveRange fills in a zero range and rejects an inverted one.
func (s *Service) resolveRange(r TimeRange) (TimeRange, error) {
	if r.To.IsZero() {
		r.To = s.clock().UTC()
	}
	if r.From.IsZero() {
		r.From = r.To.Add(-DefaultSummaryWindow)
	}
	if !r.To.After(r.From) {
		return TimeRange{}, fmt.Errorf("%w: from must be before to", apperr.ErrInvalidArgument)
	}
	return r, nil
}

func summarizeCalls(rows []CallRow) CallsSummary {
	var out CallsSummary
	for _, c := range rows {
		out.TotalCalls++
		if c.Source == SourceCampaign {
			out.CampaignCalls++
		} else {
			out.InboundCalls++
		}
		out.TotalDurationSeconds += c.DurationSeconds
		if c.Recorded {
			out.RecordedCalls++
		}
		switch c.Status {
		case calls.CallStatusAnswered:
			out.AnsweredCalls++
		case calls.CallStatusMissed:
			out.MissedCalls++
		case calls.CallStatusFailed:
			out.FailedCalls++
		case calls.CallStatusPending, calls.CallStatusCalling:
			out.InProgressCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out
}

func (s *Service) ConversionMetrics(ctx context.Context, userID, campaignID string) (ConversionMetrics, error) {
	if userID == "" {
		return ConversionMetrics{}, errTenantRequired
	}
	if campaignID == "" {
		return ConversionMetrics{}, fmt.Errorf("%w: campaign id required", apperr.ErrInvalidArgument)
	}
	ok, err := s.repo.CampaignExists(ctx, userID, campaignID)
	if err != nil {
		return ConversionMetrics{}, err
	}
	if !ok {
		return ConversionMetrics{}, apperr.ErrNotFound
	}

	rows, err := s.repo.ListCampaignCalls(ctx, userID, campaignID)
	if err != nil {
		return ConversionMetrics{}, err
	}
	conv, err := s.repo.CountConversions(ctx, userID, campaignID)
	if err != nil {
		return ConversionMetrics{}, err
	}

	out := ConversionMetrics{UserID: userID, CampaignID: campaignID, CallsAttempted: len(rows), Conversions: conv}
	for _, c := range rows {
		if c.Status == calls.CallStatusAnswered {
			out.CallsConnected++
		}
	}
	if out.CallsAttempted > 0 {
		out.ConnectionRate = float64(out.CallsConnected) / float64(out.CallsAttempted)
		out.ConversionRate = float64(out.Conversions) / float64(out.CallsAttempted)
	}
	return out, nil
}
