package calls

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusFromEndedReason(t *testing.T) {
	cases := map[string]CallStatus{
		"customer-ended-call":              CallStatusAnswered,
		"assistant-ended-call":             CallStatusAnswered,
		"":                                 CallStatusAnswered,
		"customer-did-not-answer":          CallStatusMissed,
		"no-answer":                        CallStatusMissed,
		"customer_no_answer":               CallStatusMissed,
		"customer-busy":                    CallStatusMissed,
		"voicemail":                        CallStatusMissed,
		"twilio-failed-to-connect-call":    CallStatusFailed,
		"pipeline-error-openai-llm-failed": CallStatusFailed,
		"Pipeline-Error-Busy":              CallStatusFailed,
	}
	for reason, want := range cases {
		assert.Equal(t, want, StatusFromEndedReason(reason), reason)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, CallStatusPending.IsTerminal())
	assert.False(t, CallStatusCalling.IsTerminal())
	assert.True(t, CallStatusAnswered.IsTerminal())
	assert.True(t, CallStatusMissed.IsTerminal())
	assert.True(t, CallStatusFailed.IsTerminal())
	assert.False(t, CallStatus("queued").Valid())
}

func TestCounterDelta(t *testing.T) {
	c, f := CounterDelta(CallStatusCalling, CallStatusAnswered)
	assert.Equal(t, [2]int{1, 0}, [2]int{c, f})

	c, f = CounterDelta(CallStatusPending, CallStatusMissed)
	assert.Equal(t, [2]int{0, 1}, [2]int{c, f})

	c, f = CounterDelta(CallStatusMissed, CallStatusAnswered)
	assert.Equal(t, [2]int{1, -1}, [2]int{c, f})

	c, f = CounterDelta(CallStatusMissed, CallStatusFailed)
	assert.Equal(t, [2]int{0, 0}, [2]int{c, f})

	c, f = CounterDelta(CallStatusAnswered, CallStatusAnswered)
	assert.Equal(t, [2]int{0, 0}, [2]int{c, f})
}
