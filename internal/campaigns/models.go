package campaigns

import (
	"time"

	"voicedesk/internal/calls"
)

// Campaign is a batch outbound-calling job.
//
// Counter invariant: CompletedCalls + FailedCalls <= TotalRecipients, and
// Status == completed only when the sum equals TotalRecipients.
type Campaign struct {
	ID            string `json:"id" db:"id"`
	UserID        string `json:"user_id" db:"user_id"`
	Name          string `json:"name" db:"name"`
	AssistantID   string `json:"assistant_id" db:"assistant_id"`
	PhoneNumberID string `json:"phone_number_id" db:"phone_number_id"`

	Status Status `json:"status" db:"status"`

	TotalRecipients int `json:"total_recipients" db:"total_recipients"`
	CompletedCalls  int `json:"completed_calls" db:"completed_calls"`
	FailedCalls     int `json:"failed_calls" db:"failed_calls"`

	AssistantOverrides map[string]any `json:"assistant_overrides,omitempty" db:"assistant_overrides"`

	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusRunning, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsFinal reports whether the campaign can no longer be cancelled.
func (s Status) IsFinal() bool { return s == StatusCompleted || s == StatusCancelled }

// Detail is a campaign with its per-recipient rows, newest first.
type Detail struct {
	Campaign
	Calls []calls.CampaignCall `json:"calls"`
}

type Recipient struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
	Name        string `json:"name"`
	Email       string `json:"email" validate:"omitempty,email"`
	LeadID      string `json:"lead_id"`
}

type CreateRequest struct {
	Name          string      `json:"name" validate:"required"`
	AssistantID   string      `json:"assistant_id" validate:"required"`
	PhoneNumberID string      `json:"phone_number_id" validate:"required"`
	Recipients    []Recipient `json:"recipients" validate:"required,min=1,dive"`

	// PromotionalVariable reaches the assistant as the "promocion" variable.
	PromotionalVariable string `json:"promotional_variable"`
}

// CallOutcome is what a provider webhook reports for one campaign call.
type CallOutcome struct {
	Status calls.CallStatus

	// OnlyIfOpen applies the outcome only while the call is pending or calling.
	// Content fields are ignored when set.
	OnlyIfOpen bool

	Transcript      string
	RecordingURL    string
	DurationSeconds int
	StructuredData  map[string]any
	Summary         string
	EndedReason     string
	StartedAt       *time.Time
	EndedAt         *time.Time
}

// OutcomeResult reports what RecordOutcome did.
type OutcomeResult struct {
	Call     calls.CampaignCall
	Previous calls.CallStatus
	Campaign Campaign

	// Applied is false when OnlyIfOpen found the call already terminal.
	Applied bool
}
