// Package contract defines the output contracts enforced against LLM
// completions: the canonical triage and synthesis shapes, the normalization
// rules that absorb known model drift, and the validators that convert a
// loose JSON object into a typed result or reject it outright.
//
// The flow is always parse → normalize → validate. Normalization repairs
// cosmetic deviations (casing, type drift, missing keys) so that a validation
// failure signals genuinely unusable output. Validation is all-or-nothing:
// no partial result ever leaves this package.
package contract

import (
	"encoding/json"
	"fmt"
)

// Sentiment values accepted by the triage contract, exact casing.
const (
	SentimentPositive = "Positive"
	SentimentNeutral  = "Neutral"
	SentimentNegative = "Negative"
	SentimentMixed    = "Mixed"
)

// Risk levels accepted by the reputation payload, exact casing.
const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

// Routes holds the three independent routing decisions for a mention.
type Routes struct {
	Lead       bool `json:"lead"`
	Reputation bool `json:"reputation"`
	Content    bool `json:"content"`
}

// LeadPayload is populated when routes.lead is true.
type LeadPayload struct {
	Title      string `json:"title"`
	DraftReply string `json:"draft_reply"`
}

// ReputationPayload is populated when routes.reputation is true.
type ReputationPayload struct {
	Title      string `json:"title"`
	DraftReply string `json:"draft_reply"`
	RiskLevel  string `json:"risk_level"`
}

// ContentPayload is populated when routes.content is true.
type ContentPayload struct {
	Title          string   `json:"title"`
	Angle          string   `json:"angle"`
	OutlineBullets []string `json:"outline_bullets"`
	CanvaPrompts   []string `json:"canva_prompts"`
}

// TriageResult is the validated, strictly typed classification of one mention.
// Downstream components (escalation, routing) only ever see this type; the
// loose JSON shape never escapes the parse boundary.
type TriageResult struct {
	Sentiment      string            `json:"sentiment"`
	Priority       int               `json:"priority"` // 1..5, 1 most urgent
	ComplianceMode bool              `json:"compliance_mode"`
	Routes         Routes            `json:"routes"`
	Entities       []string          `json:"entities"`
	Metros         []string          `json:"metros"`
	Confidence     float64           `json:"confidence"`
	Lead           LeadPayload       `json:"lead"`
	Reputation     ReputationPayload `json:"reputation"`
	Content        ContentPayload    `json:"content"`
	Notes          string            `json:"notes"`
}

// triageKeys enumerates the closed top-level object. Any key outside this set
// is a violation; any key missing after normalization is a violation.
var triageKeys = map[string]bool{
	"sentiment": true, "priority": true, "compliance_mode": true,
	"routes": true, "entities": true, "metros": true, "confidence": true,
	"lead": true, "reputation": true, "content": true, "notes": true,
}

var routesKeys = map[string]bool{"lead": true, "reputation": true, "content": true}
var leadKeys = map[string]bool{"title": true, "draft_reply": true}
var reputationKeys = map[string]bool{"title": true, "draft_reply": true, "risk_level": true}
var contentKeys = map[string]bool{"title": true, "angle": true, "outline_bullets": true, "canva_prompts": true}

const (
	maxEntities       = 20
	maxMetros         = 10
	maxOutlineBullets = 12
	maxCanvaPrompts   = 6
)

// ParseTriage takes raw completion text, normalizes known model drift and
// validates the result against the triage contract. Non-JSON input is a
// malformed-response error (transport class), not a contract violation.
func ParseTriage(raw string) (*TriageResult, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("malformed completion response: %w", err)
	}
	NormalizeTriage(data)
	return ValidateTriage(data)
}
