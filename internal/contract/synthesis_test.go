package contract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTopicData() map[string]any {
	return map[string]any{
		"topic":           "Skip tracing costs are eating wholesaler margins",
		"audience":        "Operator",
		"platform_target": "BiggerPockets",
		"priority":        float64(2),
		"hook":            "Everyone is complaining about data costs.",
		"key_points":      []any{"Point one", "Point two", "Point three"},
		"proof_points":    []any{"Thread with 40 replies"},
		"mention_ids":     []any{"m1", "m2"},
	}
}

func TestParseSynthesis_Valid(t *testing.T) {
	raw := `{"topics": [{
		"topic": "Skip tracing costs are eating wholesaler margins",
		"audience": "Operator",
		"platform_target": "BiggerPockets",
		"priority": 2,
		"hook": "Everyone is complaining about data costs.",
		"key_points": ["Point one", "Point two", "Point three"],
		"proof_points": [],
		"mention_ids": ["m1", "m2"]
	}]}`

	result, err := ParseSynthesis(raw, 3)
	require.NoError(t, err)
	require.Len(t, result.Topics, 1)
	assert.Equal(t, 2, result.Topics[0].Priority)
	assert.Equal(t, []string{"m1", "m2"}, result.Topics[0].MentionIDs)
}

func TestParseSynthesis_MalformedJSON(t *testing.T) {
	_, err := ParseSynthesis("```json\n{}\n```", 3)
	require.Error(t, err)
	assert.False(t, IsViolation(err))
}

func TestNormalizeSynthesis_CleansTopics(t *testing.T) {
	topic := validTopicData()
	topic["topic"] = "  Skip   tracing\tcosts "
	topic["key_points"] = []any{"Do X.", "do x.", " Do X. ", "Point two", "Point three"}
	topic["mention_ids"] = []any{"m1", "m1", " m2 ", "", 42}
	data := map[string]any{"topics": []any{topic}}

	NormalizeSynthesis(data)

	assert.Equal(t, "Skip tracing costs", topic["topic"])
	assert.Equal(t, []any{"Do X.", "Point two", "Point three"}, topic["key_points"])
	assert.Equal(t, []any{"m1", "m2"}, topic["mention_ids"])
}

func TestNormalizeSynthesis_TruncatesLongTopic(t *testing.T) {
	topic := validTopicData()
	topic["topic"] = strings.Repeat("a", 200)
	data := map[string]any{"topics": []any{topic}}

	NormalizeSynthesis(data)

	assert.Len(t, topic["topic"], maxTopicLen)
}

func TestDedupMentionIDs_Cap(t *testing.T) {
	var ids []any
	for i := 0; i < 20; i++ {
		ids = append(ids, string(rune('a'+i)))
	}
	assert.Len(t, DedupMentionIDs(ids), maxMentionIDs)
	assert.Equal(t, []string{}, DedupMentionIDs("not a list"))
}

func TestValidateSynthesis_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
		substr string
	}{
		{name: "Short topic", mutate: func(topic map[string]any) {
			topic["topic"] = "Hi"
		}, substr: "at least 5 characters"},
		{name: "Too few key points", mutate: func(topic map[string]any) {
			topic["key_points"] = []any{"one", "two"}
		}, substr: "at least 3 entries"},
		{name: "No mention ids", mutate: func(topic map[string]any) {
			topic["mention_ids"] = []any{}
		}, substr: "at least 1 entry"},
		{name: "Priority out of range", mutate: func(topic map[string]any) {
			topic["priority"] = float64(0)
		}, substr: "must be in [1,5]"},
		{name: "Undeclared key", mutate: func(topic map[string]any) {
			topic["rationale"] = "because"
		}, substr: "undeclared key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topic := validTopicData()
			tt.mutate(topic)
			_, err := ValidateSynthesis(map[string]any{"topics": []any{topic}}, 3)
			require.Error(t, err)
			assert.True(t, IsViolation(err))
			assert.Contains(t, err.Error(), tt.substr)
		})
	}
}

func TestValidateSynthesis_TopicCount(t *testing.T) {
	_, err := ValidateSynthesis(map[string]any{"topics": []any{}}, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 1 and 3")

	topics := []any{validTopicData(), validTopicData(), validTopicData(), validTopicData()}
	_, err = ValidateSynthesis(map[string]any{"topics": topics}, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 1 and 3")
}

func TestNormalizeChoice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Exact match", input: "Operator", expected: "Operator"},
		{name: "Case fold", input: "operator", expected: "Operator"},
		{name: "Padded case fold", input: " hnwi/lp ", expected: "HNWI/LP"},
		{name: "Unknown falls back", input: "Investor", expected: DefaultAudience},
		{name: "Empty falls back", input: "", expected: DefaultAudience},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeChoice(tt.input, AllowedAudiences, DefaultAudience))
		})
	}

	assert.Equal(t, "LinkedIn", NormalizeChoice("linkedin", AllowedPlatformTargets, DefaultPlatformTarget))
}
