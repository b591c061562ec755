package telephony

import (
	"context"
	"time"
)

// VoiceProvider is the provider-agnostic interface used by campaign orchestration.
//
// Rules:
// - No provider HTTP calls outside telephony adapters.
// - Request/response types stay provider-agnostic.
type VoiceProvider interface {
	Name() string

	// PlaceBatchCalls asks the provider to dial every customer in one request.
	PlaceBatchCalls(ctx context.Context, req BatchCallRequest) ([]PlacedCall, error)

	// EndCall is the compensating action for a call whose local rows could not be persisted.
	EndCall(ctx context.Context, providerCallID string) error
}

// Customer is one dial target. Number must already be E.164.
type Customer struct {
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
}

type BatchCallRequest struct {
	AssistantID   string
	PhoneNumberID string
	Customers     []Customer

	// AssistantOverrides is passed through to the provider unchanged.
	AssistantOverrides map[string]any
}

// PlacedCall is the provider's acknowledgement for one dialed customer.
type PlacedCall struct {
	ProviderCallID string
	CustomerNumber string
	Status         string
}

// EventKind tags a normalized webhook event.
type EventKind string

const (
	EventEndOfCallReport EventKind = "end-of-call-report"
	EventStatusUpdate    EventKind = "status-update"
	EventIgnored         EventKind = "ignored"
)

// CallTypeOutbound marks calls the API placed through the provider.
const CallTypeOutbound = "outboundPhoneCall"

// CallEvent is the single internal shape every provider webhook is normalized to
// before any business logic runs.
type CallEvent struct {
	Kind    EventKind
	RawType string

	ProviderCallID string
	// CallType is the provider's call direction, e.g. "outboundPhoneCall".
	CallType      string
	AssistantID   string
	PhoneNumberID string

	// CalledNumber is the tenant's line; CustomerNumber is the other party.
	CalledNumber   string
	CustomerNumber string

	// Status is only set for status-update events.
	Status string

	EndedReason     string
	Transcript      string
	RecordingURL    string
	Summary         string
	StructuredData  map[string]any
	DurationSeconds int

	// UnparsedStructuredData holds structured data that was not a JSON object.
	UnparsedStructuredData string

	StartedAt *time.Time
	EndedAt   *time.Time
}

// DedupKey identifies one delivery of one event for one call.
func (e CallEvent) DedupKey() string {
	k := string(e.Kind)
	if e.Kind == EventStatusUpdate {
		k += ":" + e.Status
	}
	return k + ":" + e.ProviderCallID
}
