package reporting

import (
	"time"

	"voicedesk/internal/calls"
)

// TimeRange is half-open: From <= t < To.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Call sources.
const (
	SourceInbound  = "inbound"
	SourceCampaign = "campaign"
)

// CallRow is the slice of a call row the summaries need.
type CallRow struct {
	Source          string
	Status          calls.CallStatus
	DurationSeconds int
	Recorded        bool
}

type OrderRow struct {
	Estado string
	Total  float64
}

type ReservationRow struct {
	Estado         string
	NumeroPersonas int
}

// SummaryRequest asks for a tenant's dashboard numbers. A zero range means
// the last DefaultSummaryWindow.
type SummaryRequest struct {
	UserID string    `json:"user_id"`
	Range  TimeRange `json:"range"`
}

const DefaultSummaryWindow = 30 * 24 * time.Hour

type Summary struct {
	UserID       string              `json:"user_id"`
	Range        TimeRange           `json:"range"`
	Calls        CallsSummary        `json:"calls"`
	Orders       OrdersSummary       `json:"pedidos"`
	Reservations ReservationsSummary `json:"reservaciones"`
}

type CallsSummary struct {
	TotalCalls    int `json:"total_calls"`
	InboundCalls  int `json:"inbound_calls"`
	CampaignCalls int `json:"campaign_calls"`

	AnsweredCalls   int `json:"answered_calls"`
	MissedCalls     int `json:"missed_calls"`
	FailedCalls     int `json:"failed_calls"`
	InProgressCalls int `json:"in_progress_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	RecordedCalls int `json:"recorded_calls"`
}

type OrdersSummary struct {
	Count     int `json:"count"`
	Cancelled int `json:"cancelled"`
	// Revenue excludes cancelled orders.
	Revenue float64 `json:"revenue"`
}

type ReservationsSummary struct {
	Count     int `json:"count"`
	Cancelled int `json:"cancelled"`
	// Covers is the number of guests across non-cancelled reservations.
	Covers int `json:"covers"`
}

// ConversionMetrics measures one campaign: how many recipients were reached and
// how many calls turned into an order or reservation.
type ConversionMetrics struct {
	UserID     string `json:"user_id"`
	CampaignID string `json:"campaign_id"`

	CallsAttempted int `json:"calls_attempted"`
	CallsConnected int `json:"calls_connected"`
	Conversions    int `json:"conversions"`

	ConnectionRate float64 `json:"connection_rate"`
	ConversionRate float64 `json:"conversion_rate"`
}
