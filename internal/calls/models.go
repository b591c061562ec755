package calls

import (
	"strings"
	"time"
)

// Call is an inbound call captured from a provider webhook.
//
// Tenancy: UserID is required on every row. Outbound campaign calls live in
// CampaignCall and never produce a Call row.
type Call struct {
	ID             string `json:"id" db:"id"`
	UserID         string `json:"user_id" db:"user_id"`
	ProviderCallID string `json:"provider_call_id" db:"provider_call_id"`
	AssistantID    string `json:"assistant_id,omitempty" db:"assistant_id"`

	From string `json:"from_number" db:"from_number"`
	To   string `json:"to_number" db:"to_number"`

	Status CallStatus `json:"status" db:"status"`

	Transcript      string         `json:"transcript,omitempty" db:"transcript"`
	RecordingURL    string         `json:"recording_url,omitempty" db:"recording_url"`
	DurationSeconds int            `json:"duration_seconds" db:"duration_seconds"`
	StructuredData  map[string]any `json:"structured_data,omitempty" db:"structured_data"`
	Summary         string         `json:"summary,omitempty" db:"summary"`
	EndedReason     string         `json:"ended_reason,omitempty" db:"ended_reason"`

	StartedAt *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// CampaignCall is one recipient of an outbound campaign.
type CampaignCall struct {
	ID         string `json:"id" db:"id"`
	CampaignID string `json:"campaign_id" db:"campaign_id"`
	UserID     string `json:"user_id" db:"user_id"`

	PhoneNumber   string `json:"phone_number" db:"phone_number"`
	CustomerName  string `json:"customer_name,omitempty" db:"customer_name"`
	CustomerEmail string `json:"customer_email,omitempty" db:"customer_email"`
	LeadID        string `json:"lead_id,omitempty" db:"lead_id"`

	// ProviderCallID is empty when the provider did not acknowledge this recipient.
	ProviderCallID string     `json:"provider_call_id,omitempty" db:"provider_call_id"`
	Status         CallStatus `json:"status" db:"status"`

	Transcript      string         `json:"transcript,omitempty" db:"transcript"`
	RecordingURL    string         `json:"recording_url,omitempty" db:"recording_url"`
	DurationSeconds int            `json:"duration_seconds" db:"duration_seconds"`
	StructuredData  map[string]any `json:"structured_data,omitempty" db:"structured_data"`
	Summary         string         `json:"summary,omitempty" db:"summary"`
	EndedReason     string         `json:"ended_reason,omitempty" db:"ended_reason"`

	StartedAt *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	CallStatusPending  CallStatus = "pending"
	CallStatusCalling  CallStatus = "calling"
	CallStatusAnswered CallStatus = "answered"
	CallStatusMissed   CallStatus = "missed"
	CallStatusFailed   CallStatus = "failed"
)

// IsTerminal reports whether the call has a final outcome.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusAnswered, CallStatusMissed, CallStatusFailed:
		return true
	}
	return false
}

func (s CallStatus) Valid() bool {
	switch s {
	case CallStatusPending, CallStatusCalling, CallStatusAnswered, CallStatusMissed, CallStatusFailed:
		return true
	}
	return false
}

// StatusFromEndedReason maps a provider end reason to a terminal status.
// Failure wins over no-answer so "pipeline-error-busy" style reasons count as failed.
func StatusFromEndedReason(reason string) CallStatus {
	r := strings.ToLower(reason)
	switch {
	case strings.Contains(r, "fail"), strings.Contains(r, "error"):
		return CallStatusFailed
	case strings.Contains(r, "no-answer"),
		strings.Contains(r, "no_answer"),
		strings.Contains(r, "did-not-answer"),
		strings.Contains(r, "busy"),
		strings.Contains(r, "voicemail"):
		return CallStatusMissed
	default:
		return CallStatusAnswered
	}
}

// Bucket is the campaign counter a status contributes to.
type Bucket int

const (
	BucketNone Bucket = iota
	BucketCompleted
	BucketFailed
)

func (s CallStatus) Bucket() Bucket {
	switch s {
	case CallStatusAnswered:
		return BucketCompleted
	case CallStatusMissed, CallStatusFailed:
		return BucketFailed
	}
	return BucketNone
}

// CounterDelta is the change to a campaign's completed and failed counters
// when one call moves from prev to next.
func CounterDelta(prev, next CallStatus) (completed, failed int) {
	switch prev.Bucket() {
	case BucketCompleted:
		completed--
	case BucketFailed:
		failed--
	}
	switch next.Bucket() {
	case BucketCompleted:
		completed++
	case BucketFailed:
		failed++
	}
	return completed, failed
}
