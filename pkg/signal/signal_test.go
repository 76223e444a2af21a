package signal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arc-systems/promptgate/pkg/provider"
)

func TestExtractCodeDetection(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   bool
	}{
		{"code fence", "please review\n```\nfmt.Println(1)\n```", true},
		{"async keyword", "why does my async handler hang", true},
		{"traceback", "here is the traceback from the crash", true},
		{"plain prose", "tell me about the weather in lisbon", false},
		{"keyword inside word", "the classic novel", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := Extract(tt.prompt, nil, "")
			assert.Equal(t, tt.want, sig.MentionsCode)
		})
	}
}

func TestExtractLongContext(t *testing.T) {
	short := Extract("hi", nil, "")
	assert.False(t, short.RequiresLongContext)

	history := make([]provider.Turn, 13)
	for i := range history {
		history[i] = provider.Turn{Role: provider.RoleUser, Text: "turn"}
	}
	byTurns := Extract("hi", history, "")
	assert.True(t, byTurns.RequiresLongContext)

	byLength := Extract(strings.Repeat("a", 4001), nil, "")
	assert.True(t, byLength.RequiresLongContext)
}

func TestExtractMultimodal(t *testing.T) {
	sig := Extract("what is in https://example.com/cat.png here", nil, "")
	assert.True(t, sig.NeedsMultimodal)

	sig = Extract("see https://example.com/cat.png", nil, "")
	assert.True(t, sig.NeedsMultimodal)

	sig = Extract("read https://example.com/doc.pdf please", nil, "")
	assert.False(t, sig.NeedsMultimodal)

	sig = Extract("no links at all", nil, "")
	assert.False(t, sig.NeedsMultimodal)
}

func TestExtractSafetyAndDomain(t *testing.T) {
	sig := Extract("I need help with self-harm thoughts", nil, "")
	assert.True(t, sig.NeedsHighSafety)

	sig = Extract("how do I deploy to kubernetes", nil, "")
	assert.Equal(t, DomainTechnical, sig.Domain)
	assert.False(t, sig.NeedsHighSafety)

	sig = Extract("recommend a good book", nil, "")
	assert.Equal(t, DomainGeneral, sig.Domain)
}

func TestExtractLatencyPreference(t *testing.T) {
	sig := Extract("this is urgent, answer please", nil, "")
	assert.Equal(t, LatencyLow, sig.LatencyPreference)

	sig = Extract("take your time", nil, "")
	assert.Equal(t, LatencyNormal, sig.LatencyPreference)

	// Caller override wins over inference.
	sig = Extract("this is urgent", nil, LatencyNormal)
	assert.Equal(t, LatencyNormal, sig.LatencyPreference)
}

func TestExtractScansHistoryText(t *testing.T) {
	history := []provider.Turn{
		{Role: provider.RoleUser, Text: "earlier I pasted a traceback"},
	}
	sig := Extract("any ideas?", history, "")
	assert.True(t, sig.MentionsCode)
}

func TestExtractIsDeterministic(t *testing.T) {
	a := Extract("urgent: fix my async function", nil, "")
	b := Extract("urgent: fix my async function", nil, "")
	assert.Equal(t, a, b)
}
