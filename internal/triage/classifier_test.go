package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/contentops/social-listening-bot/internal/contract"
	"github.com/contentops/social-listening-bot/internal/llm"
	"github.com/contentops/social-listening-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCompletions is a mock implementation of the completion client
type MockCompletions struct {
	mock.Mock
}

func (m *MockCompletions) Complete(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// triageJSON renders a complete, contract-valid completion with the given
// overrides applied to the top-level object.
func triageJSON(t *testing.T, overrides map[string]any) string {
	t.Helper()
	data := map[string]any{
		"sentiment":       "Neutral",
		"priority":        3,
		"compliance_mode": false,
		"routes":          map[string]any{"lead": false, "reputation": false, "content": true},
		"entities":        []string{},
		"metros":          []string{},
		"confidence":      0.9,
		"lead":            map[string]any{"title": "", "draft_reply": ""},
		"reputation":      map[string]any{"title": "", "draft_reply": "", "risk_level": "Low"},
		"content": map[string]any{
			"title": "t", "angle": "a",
			"outline_bullets": []string{"one"}, "canva_prompts": []string{},
		},
		"notes": "",
	}
	for k, v := range overrides {
		data[k] = v
	}
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return string(raw)
}

func TestShouldEscalate(t *testing.T) {
	tests := []struct {
		name     string
		result   contract.TriageResult
		expected bool
	}{
		{
			name:     "Calm content mention stays on cheap pass",
			result:   contract.TriageResult{Priority: 3, Confidence: 0.9},
			expected: false,
		},
		{
			name:     "Compliance mode escalates",
			result:   contract.TriageResult{Priority: 4, Confidence: 0.95, ComplianceMode: true},
			expected: true,
		},
		{
			name: "Reputation route escalates",
			result: contract.TriageResult{
				Priority: 4, Confidence: 0.95,
				Routes: contract.Routes{Reputation: true},
			},
			expected: true,
		},
		{
			name:     "Priority 2 escalates",
			result:   contract.TriageResult{Priority: 2, Confidence: 0.95},
			expected: true,
		},
		{
			name:     "Priority 1 escalates",
			result:   contract.TriageResult{Priority: 1, Confidence: 0.95},
			expected: true,
		},
		{
			name:     "Low confidence escalates",
			result:   contract.TriageResult{Priority: 4, Confidence: 0.69},
			expected: true,
		},
		{
			name:     "Confidence exactly at threshold does not escalate",
			result:   contract.TriageResult{Priority: 3, Confidence: 0.7},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShouldEscalate(&tt.result))
		})
	}
}

func TestClassify_SinglePass(t *testing.T) {
	mockLLM := &MockCompletions{}
	classifier := NewClassifier(mockLLM, "cheap-model", "strong-model")

	mockLLM.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return req.Model == "cheap-model"
	})).Return(triageJSON(t, nil), nil).Once()

	result, pass, err := classifier.Classify(context.Background(), models.Mention{URL: "https://x.test/1", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, PassCheap, pass)
	assert.Equal(t, 3, result.Priority)
	mockLLM.AssertExpectations(t)
}

func TestClassify_EscalatesWithPriorHint(t *testing.T) {
	mockLLM := &MockCompletions{}
	classifier := NewClassifier(mockLLM, "cheap-model", "strong-model")

	pass1 := triageJSON(t, map[string]any{
		"compliance_mode": true,
		"priority":        2,
		"sentiment":       "Negative",
		"routes":          map[string]any{"lead": false, "reputation": true, "content": false},
		"reputation":      map[string]any{"title": "Scam claim", "draft_reply": "…", "risk_level": "High"},
	})
	pass2 := triageJSON(t, map[string]any{
		"compliance_mode": true,
		"priority":        1,
		"sentiment":       "Negative",
		"routes":          map[string]any{"lead": false, "reputation": true, "content": false},
		"reputation":      map[string]any{"title": "Scam claim", "draft_reply": "…", "risk_level": "High"},
	})

	mockLLM.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return req.Model == "cheap-model"
	})).Return(pass1, nil).Once()
	mockLLM.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		// The strong pass carries the pass-1 result as a correctable hint.
		return req.Model == "strong-model" && strings.Contains(req.UserJSON, "prior_triage")
	})).Return(pass2, nil).Once()

	result, pass, err := classifier.Classify(context.Background(), models.Mention{URL: "https://x.test/1", Text: "scam!"})
	require.NoError(t, err)
	assert.Equal(t, PassStrong, pass)
	assert.Equal(t, 1, result.Priority)
	assert.True(t, result.ComplianceMode)
	mockLLM.AssertExpectations(t)
}

func TestClassify_MalformedFirstPass(t *testing.T) {
	mockLLM := &MockCompletions{}
	classifier := NewClassifier(mockLLM, "cheap-model", "strong-model")

	mockLLM.On("Complete", mock.Anything, mock.Anything).Return("I think this mention is neutral.", nil).Once()

	_, _, err := classifier.Classify(context.Background(), models.Mention{URL: "https://x.test/1", Text: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "triage pass failed")
	assert.Contains(t, err.Error(), "malformed completion response")
	mockLLM.AssertExpectations(t)
}

func TestClassify_ContractViolationOnEscalation(t *testing.T) {
	mockLLM := &MockCompletions{}
	classifier := NewClassifier(mockLLM, "cheap-model", "strong-model")

	pass1 := triageJSON(t, map[string]any{"confidence": 0.4})
	pass2 := triageJSON(t, map[string]any{"reasoning": "extra key"})

	mockLLM.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return req.Model == "cheap-model"
	})).Return(pass1, nil).Once()
	mockLLM.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return req.Model == "strong-model"
	})).Return(pass2, nil).Once()

	_, pass, err := classifier.Classify(context.Background(), models.Mention{URL: "https://x.test/1", Text: "hi"})
	require.Error(t, err)
	assert.Equal(t, PassStrong, pass)
	assert.True(t, contract.IsViolation(err))
	mockLLM.AssertExpectations(t)
}

func TestClassify_TransportError(t *testing.T) {
	mockLLM := &MockCompletions{}
	classifier := NewClassifier(mockLLM, "cheap-model", "strong-model")

	mockLLM.On("Complete", mock.Anything, mock.Anything).Return("", fmt.Errorf("status 500")).Once()

	_, _, err := classifier.Classify(context.Background(), models.Mention{URL: "https://x.test/1", Text: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	mockLLM.AssertExpectations(t)
}
