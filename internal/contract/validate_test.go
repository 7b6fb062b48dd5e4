package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTriageData() map[string]any {
	return map[string]any{
		"sentiment":       SentimentNegative,
		"priority":        float64(2),
		"compliance_mode": false,
		"routes":          map[string]any{"lead": false, "reputation": true, "content": false},
		"entities":        []any{"Sunbelt Capital"},
		"metros":          []any{"Tampa"},
		"confidence":      0.9,
		"lead":            map[string]any{"title": "", "draft_reply": ""},
		"reputation": map[string]any{
			"title":       "Negative thread about fund fees",
			"draft_reply": "Thanks for raising this...",
			"risk_level":  RiskMedium,
		},
		"content": map[string]any{
			"title":           "",
			"angle":           "",
			"outline_bullets": []any{},
			"canva_prompts":   []any{},
		},
		"notes": "",
	}
}

func TestValidateTriage_Valid(t *testing.T) {
	result, err := ValidateTriage(validTriageData())
	require.NoError(t, err)

	assert.Equal(t, SentimentNegative, result.Sentiment)
	assert.Equal(t, 2, result.Priority)
	assert.False(t, result.ComplianceMode)
	assert.True(t, result.Routes.Reputation)
	assert.Equal(t, []string{"Sunbelt Capital"}, result.Entities)
	assert.Equal(t, []string{"Tampa"}, result.Metros)
	assert.Equal(t, 0.9, result.Confidence)
	assert.Equal(t, RiskMedium, result.Reputation.RiskLevel)
}

func TestValidateTriage_UndeclaredKey(t *testing.T) {
	data := validTriageData()
	data["reasoning"] = "because"

	_, err := ValidateTriage(data)
	require.Error(t, err)
	assert.True(t, IsViolation(err))
	assert.Contains(t, err.Error(), `undeclared key "reasoning"`)
}

func TestValidateTriage_MissingKey(t *testing.T) {
	data := validTriageData()
	delete(data, "confidence")

	_, err := ValidateTriage(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required key "confidence"`)
}

func TestValidateTriage_NestedUndeclaredKey(t *testing.T) {
	data := validTriageData()
	data["routes"].(map[string]any)["urgent"] = true

	_, err := ValidateTriage(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `undeclared key "routes.urgent"`)
}

func TestValidateTriage_Ranges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{name: "Priority zero", mutate: func(d map[string]any) { d["priority"] = float64(0) }},
		{name: "Priority six", mutate: func(d map[string]any) { d["priority"] = float64(6) }},
		{name: "Priority fractional", mutate: func(d map[string]any) { d["priority"] = 2.5 }},
		{name: "Confidence above one", mutate: func(d map[string]any) { d["confidence"] = 1.2 }},
		{name: "Confidence negative", mutate: func(d map[string]any) { d["confidence"] = -0.1 }},
		{name: "Bad sentiment", mutate: func(d map[string]any) { d["sentiment"] = "angry" }},
		{name: "Bad risk level", mutate: func(d map[string]any) {
			d["reputation"].(map[string]any)["risk_level"] = "Critical"
		}},
		{name: "Non-bool compliance", mutate: func(d map[string]any) { d["compliance_mode"] = "yes" }},
		{name: "Non-string entity", mutate: func(d map[string]any) { d["entities"] = []any{42.0} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := validTriageData()
			tt.mutate(data)
			_, err := ValidateTriage(data)
			require.Error(t, err)
			assert.True(t, IsViolation(err))
		})
	}
}

func TestValidateTriage_ListCaps(t *testing.T) {
	data := validTriageData()
	entities := make([]any, maxEntities+1)
	for i := range entities {
		entities[i] = "e"
	}
	data["entities"] = entities

	_, err := ValidateTriage(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entities must have at most 20 items")
}

func TestValidateTriage_AccumulatesViolations(t *testing.T) {
	data := validTriageData()
	data["sentiment"] = "angry"
	data["priority"] = float64(9)

	_, err := ValidateTriage(data)
	require.Error(t, err)

	var v *ViolationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "triage", v.Contract)
	assert.Len(t, v.Violations, 2)
}

func TestParseTriage_MalformedJSON(t *testing.T) {
	_, err := ParseTriage("not json at all")
	require.Error(t, err)
	assert.False(t, IsViolation(err))
	assert.Contains(t, err.Error(), "malformed completion response")
}

func TestParseTriage_NormalizesThenValidates(t *testing.T) {
	raw := `{
		"sentiment": "negative",
		"priority": "2",
		"compliance_mode": true,
		"routes": {"lead": false, "reputation": true, "content": false},
		"entities": "Sunbelt Capital",
		"metros": [],
		"confidence": "0.9",
		"reputation": {"title": "t", "draft_reply": "r", "risk_level": 2},
		"lead": {},
		"content": {}
	}`

	result, err := ParseTriage(raw)
	require.NoError(t, err)
	assert.Equal(t, SentimentNegative, result.Sentiment)
	assert.Equal(t, 2, result.Priority)
	assert.True(t, result.ComplianceMode)
	assert.Equal(t, []string{"Sunbelt Capital"}, result.Entities)
	assert.Equal(t, 0.9, result.Confidence)
	assert.Equal(t, RiskHigh, result.Reputation.RiskLevel)
}
