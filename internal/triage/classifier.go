// Package triage implements the two-pass classification of mentions: a cheap
// model triages every mention, and compliance/risk/urgency/low-confidence
// results are re-classified by a stronger model with the first result as a
// correctable hint.
package triage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/contentops/social-listening-bot/internal/contract"
	"github.com/contentops/social-listening-bot/internal/llm"
	"github.com/contentops/social-listening-bot/internal/models"
)

// Pass identifies which model produced the final result. Retained for
// observability only; routing never looks at it.
type Pass string

const (
	PassCheap  Pass = "triage"
	PassStrong Pass = "high"
)

const systemPrompt = `You are a triage + routing engine for social listening mentions for a real estate investor / fund operator.

Return ONLY a single JSON object. No markdown. No explanations. No extra keys.
All keys MUST be present even if values are empty.
Use EXACT casing for enumerations (case-sensitive).

OUTPUT MUST MATCH THIS EXACT SHAPE:
{
  "sentiment": "Positive" | "Neutral" | "Negative" | "Mixed",
  "priority": 1 | 2 | 3 | 4 | 5,
  "compliance_mode": true | false,
  "routes": { "lead": true|false, "reputation": true|false, "content": true|false },
  "entities": [string],
  "metros": [string],
  "confidence": number,

  "lead": { "title": string, "draft_reply": string },

  "reputation": { "title": string, "draft_reply": string, "risk_level": "Low" | "Medium" | "High" },

  "content": { "title": string, "angle": string, "outline_bullets": [string], "canva_prompts": [string] },

  "notes": string
}

DECISION RULES:
- routes.lead = true if the author is asking for funding, a lender, JV, deal help, investor services, referrals/recommendations, or a direct connection.
- routes.reputation = true if there are complaints, accusations, threats, fraud/scam claims, legal disputes, or reputational risk about a person/company.
- routes.content = true if the theme is broadly educational and could become a BiggerPockets-style blog topic.
- compliance_mode = true if ANY of the following are present: allegations, disputes, threats, doxxing, licensing claims, fraud/scam/illegal activity claims, anything legally sensitive.
  When compliance_mode = true, draft replies must be conservative: no admissions, no accusations, no promises; suggest moving to private channel and/or consulting counsel.

PRIORITY (1 is highest urgency):
1 = urgent, high-stakes, time-sensitive, strong lead intent OR high reputation risk
2 = important, high-value lead OR material reputation concern
3 = normal lead/content opportunity
4 = low impact informational
5 = noise / very low signal

FIELD POPULATION RULES (IMPORTANT):
- If routes.lead is false: set lead.title="" and lead.draft_reply=""
- If routes.reputation is false: set reputation.title="", reputation.draft_reply="", and reputation.risk_level="Low"
- If routes.content is false: set content.title="", content.angle="", content.outline_bullets=[], content.canva_prompts=[]
- notes: 1-3 short sentences summarizing why you routed/prioritized the way you did.

If prior_triage is provided, use it as a hint but correct it if wrong.`

// Classifier runs the two-pass classification state machine.
type Classifier struct {
	llm         llm.CompletionInterface
	cheapModel  string
	strongModel string
}

// NewClassifier creates a two-pass classifier over the given completion
// client and model pair.
func NewClassifier(completions llm.CompletionInterface, cheapModel, strongModel string) *Classifier {
	return &Classifier{
		llm:         completions,
		cheapModel:  cheapModel,
		strongModel: strongModel,
	}
}

// ShouldEscalate evaluates the escalation predicate on a normalized,
// validated pass-1 result. Compliance, reputation risk, high urgency, and low
// confidence are exactly where the cheap model's error cost is highest.
func ShouldEscalate(t *contract.TriageResult) bool {
	return t.ComplianceMode ||
		t.Routes.Reputation ||
		t.Priority <= 2 ||
		t.Confidence < 0.7
}

// Classify runs pass 1 on the cheap model and, when the escalation predicate
// holds, pass 2 on the strong model with the pass-1 result as a correctable
// hint. Any transport failure or contract violation on either pass is fatal
// for this mention's processing.
func (c *Classifier) Classify(ctx context.Context, mention models.Mention) (*contract.TriageResult, Pass, error) {
	first, err := c.classifyOnce(ctx, c.cheapModel, mention, nil)
	if err != nil {
		return nil, PassCheap, fmt.Errorf("triage pass failed: %w", err)
	}

	if !ShouldEscalate(first) {
		return first, PassCheap, nil
	}

	final, err := c.classifyOnce(ctx, c.strongModel, mention, first)
	if err != nil {
		return nil, PassStrong, fmt.Errorf("escalation pass failed: %w", err)
	}
	return final, PassStrong, nil
}

type classifyPayload struct {
	Mention     models.Mention         `json:"mention"`
	PriorTriage *contract.TriageResult `json:"prior_triage,omitempty"`
}

func (c *Classifier) classifyOnce(ctx context.Context, model string, mention models.Mention, prior *contract.TriageResult) (*contract.TriageResult, error) {
	payload, err := json.Marshal(classifyPayload{Mention: mention, PriorTriage: prior})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal classification payload: %w", err)
	}

	raw, err := c.llm.Complete(ctx, llm.Request{
		Model:       model,
		System:      systemPrompt,
		UserJSON:    string(payload),
		Temperature: 0.2,
		JSONOnly:    true,
	})
	if err != nil {
		return nil, err
	}

	return contract.ParseTriage(raw)
}
