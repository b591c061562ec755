package telephony

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVapiEvent_EndOfCallReport(t *testing.T) {
	body := []byte(`{
	  "message": {
	    "type": "end-of-call-report",
	    "endedReason": "customer-ended-call",
	    "startedAt": "2025-01-10T19:00:00Z",
	    "endedAt": "2025-01-10T19:02:05Z",
	    "artifact": {"transcript": "hola", "recordingUrl": "https://rec/1.wav"},
	    "analysis": {"summary": "pidio tacos", "structuredData": {"tipo": "pedido"}},
	    "call": {"id": "call-1", "type": "outboundPhoneCall", "assistantId": "asst-1", "customer": {"number": "+525512345678"}},
	    "phoneNumber": {"id": "pn-1", "number": "+525500000000"}
	  }
	}`)

	ev, err := ParseVapiEvent(body)
	require.NoError(t, err)
	assert.Equal(t, EventEndOfCallReport, ev.Kind)
	assert.Equal(t, "call-1", ev.ProviderCallID)
	assert.Equal(t, CallTypeOutbound, ev.CallType)
	assert.Equal(t, "asst-1", ev.AssistantID)
	assert.Equal(t, "pn-1", ev.PhoneNumberID)
	assert.Equal(t, "+525500000000", ev.CalledNumber)
	assert.Equal(t, "+525512345678", ev.CustomerNumber)
	assert.Equal(t, "customer-ended-call", ev.EndedReason)
	assert.Equal(t, "hola", ev.Transcript)
	assert.Equal(t, "https://rec/1.wav", ev.RecordingURL)
	assert.Equal(t, "pidio tacos", ev.Summary)
	assert.Equal(t, "pedido", ev.StructuredData["tipo"])
	assert.Equal(t, 125, ev.DurationSeconds)
	require.NotNil(t, ev.EndedAt)
	assert.Equal(t, "end-of-call-report:call-1", ev.DedupKey())
}

func TestParseVapiEvent_AlternateShapes(t *testing.T) {
	body := []byte(`{
	  "message": {
	    "type": "end-of-call-report",
	    "transcript": "top level",
	    "recordingUrl": "https://rec/2.wav",
	    "durationSeconds": 41.6,
	    "assistant": {"id": "asst-2"},
	    "analysis": {"structuredData": "{\"fecha\":\"2025-01-10\",\"hora\":\"19:00\"}"},
	    "call": {"id": "call-2", "phoneNumber": {"number": "5500000000"}, "endedReason": "no-answer"}
	  }
	}`)

	ev, err := ParseVapiEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "asst-2", ev.AssistantID)
	assert.Equal(t, "5500000000", ev.CalledNumber)
	assert.Equal(t, "no-answer", ev.EndedReason)
	assert.Equal(t, "top level", ev.Transcript)
	assert.Equal(t, "https://rec/2.wav", ev.RecordingURL)
	assert.Equal(t, 42, ev.DurationSeconds)
	assert.Equal(t, "19:00", ev.StructuredData["hora"])
}

func TestParseVapiEvent_StatusUpdate(t *testing.T) {
	ev, err := ParseVapiEvent([]byte(`{"message":{"type":"status-update","status":"ended","call":{"id":"c"}}}`))
	require.NoError(t, err)
	assert.Equal(t, EventStatusUpdate, ev.Kind)
	assert.Equal(t, "ended", ev.Status)
	assert.Equal(t, "status-update:ended:c", ev.DedupKey())
}

func TestParseVapiEvent_IgnoresOtherTypes(t *testing.T) {
	ev, err := ParseVapiEvent([]byte(`{"message":{"type":"speech-update"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventIgnored, ev.Kind)
	assert.Equal(t, "speech-update", ev.RawType)
}

func TestParseVapiEvent_FailsClosed(t *testing.T) {
	bodies := []string{
		``,
		`not json`,
		`{}`,
		`{"message":{}}`,
		`{"message":{"type":"end-of-call-report"}}`,
		`{"message":{"type":"end-of-call-report","call":{"id":""}}}`,
		`{"message":{"type":"status-update","status":"ended"}}`,
	}
	for _, b := range bodies {
		_, err := ParseVapiEvent([]byte(b))
		assert.True(t, errors.Is(err, ErrInvalidEvent), "body %q", b)
	}
}

func TestParseVapiEvent_NonObjectStructuredData(t *testing.T) {
	cases := map[string]struct {
		raw      string
		unparsed string
	}{
		"free text":        {`"Cliente pidió 2 tacos"`, "Cliente pidió 2 tacos"},
		"array":            {`[{"nombre":"taco"}]`, `[{"nombre":"taco"}]`},
		"number":           {`42`, "42"},
		"broken json text": {`"[1,2"`, "[1,2"},
		"blank string":     {`"  "`, ""},
		"null":             {`null`, ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			body := `{"message":{"type":"end-of-call-report","endedReason":"customer-ended-call",` +
				`"analysis":{"summary":"ok","structuredData":` + tc.raw + `},"call":{"id":"c"}}}`
			ev, err := ParseVapiEvent([]byte(body))
			require.NoError(t, err)
			assert.Nil(t, ev.StructuredData)
			assert.Equal(t, tc.unparsed, ev.UnparsedStructuredData)
			assert.Equal(t, "ok", ev.Summary)
			assert.Equal(t, "c", ev.ProviderCallID)
		})
	}
}
