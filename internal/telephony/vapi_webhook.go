package telephony

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidEvent is returned for webhook bodies that cannot be normalized.
var ErrInvalidEvent = errors.New("telephony: invalid webhook event")

// Vapi message types we act on.
const (
	vapiTypeEndOfCallReport = "end-of-call-report"
	vapiTypeStatusUpdate    = "status-update"
)

type vapiEnvelope struct {
	Message *vapiMessage `json:"message"`
}

type vapiMessage struct {
	Type            string         `json:"type"`
	Status          string         `json:"status"`
	EndedReason     string         `json:"endedReason"`
	StartedAt       string         `json:"startedAt"`
	EndedAt         string         `json:"endedAt"`
	DurationSeconds *float64       `json:"durationSeconds"`
	Transcript      string         `json:"transcript"`
	RecordingURL    string         `json:"recordingUrl"`
	Summary         string         `json:"summary"`
	Artifact        *vapiArtifact  `json:"artifact"`
	Analysis        *vapiAnalysis  `json:"analysis"`
	Call            *vapiCall      `json:"call"`
	Assistant       *vapiAssistant `json:"assistant"`
	PhoneNumber     *vapiPhone     `json:"phoneNumber"`
	Customer        *vapiCustomer  `json:"customer"`
}

type vapiArtifact struct {
	Transcript   string `json:"transcript"`
	RecordingURL string `json:"recordingUrl"`
}

type vapiAnalysis struct {
	Summary        string          `json:"summary"`
	StructuredData json.RawMessage `json:"structuredData"`
}

type vapiCall struct {
	ID            string        `json:"id"`
	Type          string        `json:"type"`
	AssistantID   string        `json:"assistantId"`
	PhoneNumberID string        `json:"phoneNumberId"`
	EndedReason   string        `json:"endedReason"`
	Customer      *vapiCustomer `json:"customer"`
	PhoneNumber   *vapiPhone    `json:"phoneNumber"`
}

type vapiAssistant struct {
	ID string `json:"id"`
}

type vapiPhone struct {
	ID     string `json:"id"`
	Number string `json:"number"`
}

type vapiCustomer struct {
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
}

// ParseVapiEvent normalizes a Vapi webhook body into a CallEvent.
// Unknown message types come back as EventIgnored; malformed bodies and
// actionable events without a call id are rejected.
func ParseVapiEvent(body []byte) (CallEvent, error) {
	var env vapiEnvelope
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&env); err != nil {
		return CallEvent{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	m := env.Message
	if m == nil {
		return CallEvent{}, fmt.Errorf("%w: missing message", ErrInvalidEvent)
	}
	if strings.TrimSpace(m.Type) == "" {
		return CallEvent{}, fmt.Errorf("%w: missing message.type", ErrInvalidEvent)
	}

	ev := CallEvent{RawType: m.Type}
	switch m.Type {
	case vapiTypeEndOfCallReport:
		ev.Kind = EventEndOfCallReport
	case vapiTypeStatusUpdate:
		ev.Kind = EventStatusUpdate
	default:
		ev.Kind = EventIgnored
		return ev, nil
	}

	if m.Call == nil || strings.TrimSpace(m.Call.ID) == "" {
		return CallEvent{}, fmt.Errorf("%w: missing message.call.id", ErrInvalidEvent)
	}
	c := m.Call
	ev.ProviderCallID = strings.TrimSpace(c.ID)
	ev.CallType = strings.TrimSpace(c.Type)
	ev.Status = strings.TrimSpace(m.Status)

	ev.AssistantID = firstNonEmpty(c.AssistantID, assistantID(m.Assistant))
	ev.PhoneNumberID = firstNonEmpty(c.PhoneNumberID, phoneID(m.PhoneNumber), phoneID(c.PhoneNumber))
	ev.CalledNumber = firstNonEmpty(phoneNumber(m.PhoneNumber), phoneNumber(c.PhoneNumber))
	ev.CustomerNumber = firstNonEmpty(customerNumber(c.Customer), customerNumber(m.Customer))
	ev.EndedReason = firstNonEmpty(m.EndedReason, c.EndedReason)

	if m.Artifact != nil {
		ev.Transcript = m.Artifact.Transcript
		ev.RecordingURL = m.Artifact.RecordingURL
	}
	ev.Transcript = firstNonEmpty(ev.Transcript, m.Transcript)
	ev.RecordingURL = firstNonEmpty(ev.RecordingURL, m.RecordingURL)

	ev.Summary = m.Summary
	if m.Analysis != nil {
		ev.Summary = firstNonEmpty(m.Analysis.Summary, ev.Summary)
		ev.StructuredData, ev.UnparsedStructuredData = decodeStructuredData(m.Analysis.StructuredData)
	}

	ev.StartedAt = parseTime(m.StartedAt)
	ev.EndedAt = parseTime(m.EndedAt)
	switch {
	case m.DurationSeconds != nil && *m.DurationSeconds >= 0:
		ev.DurationSeconds = int(math.Round(*m.DurationSeconds))
	case ev.StartedAt != nil && ev.EndedAt != nil && ev.EndedAt.After(*ev.StartedAt):
		ev.DurationSeconds = int(math.Round(ev.EndedAt.Sub(*ev.StartedAt).Seconds()))
	}

	return ev, nil
}

// decodeStructuredData accepts an object, null, or a JSON string holding an
// object. Anything else (free text, arrays, scalars) comes back as unparsed
// text so the call outcome can still be recorded.
func decodeStructuredData(raw json.RawMessage) (map[string]any, string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ""
	}
	text := string(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			text = strings.TrimSpace(s)
		}
		if text == "" {
			return nil, ""
		}
		raw = []byte(text)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return nil, text
	}
	return out, ""
}

func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func assistantID(a *vapiAssistant) string {
	if a == nil {
		return ""
	}
	return a.ID
}

func phoneID(p *vapiPhone) string {
	if p == nil {
		return ""
	}
	return p.ID
}

func phoneNumber(p *vapiPhone) string {
	if p == nil {
		return ""
	}
	return p.Number
}

func customerNumber(c *vapiCustomer) string {
	if c == nil {
		return ""
	}
	return c.Number
}
