package contract

import (
	"fmt"
	"math"
	"sort"
)

// ValidateTriage converts a normalized loose object into a typed TriageResult,
// or returns a *ViolationError listing every failed constraint. The object is
// all-or-nothing: any violation rejects the whole result.
func ValidateTriage(data map[string]any) (*TriageResult, error) {
	v := &validator{contract: "triage"}

	v.closedObject("", data, triageKeys)

	result := &TriageResult{}
	result.Sentiment = v.enum("sentiment", data["sentiment"],
		SentimentPositive, SentimentNeutral, SentimentNegative, SentimentMixed)
	result.Priority = v.intRange("priority", data["priority"], 1, 5)
	result.ComplianceMode = v.boolean("compliance_mode", data["compliance_mode"])
	result.Confidence = v.numberRange("confidence", data["confidence"], 0, 1)
	result.Entities = v.stringList("entities", data["entities"], maxEntities)
	result.Metros = v.stringList("metros", data["metros"], maxMetros)
	result.Notes = v.str("notes", data["notes"])

	if routes, ok := data["routes"].(map[string]any); ok {
		v.closedObject("routes", routes, routesKeys)
		result.Routes.Lead = v.boolean("routes.lead", routes["lead"])
		result.Routes.Reputation = v.boolean("routes.reputation", routes["reputation"])
		result.Routes.Content = v.boolean("routes.content", routes["content"])
	} else {
		v.fail("routes must be an object")
	}

	if lead, ok := data["lead"].(map[string]any); ok {
		v.closedObject("lead", lead, leadKeys)
		result.Lead.Title = v.str("lead.title", lead["title"])
		result.Lead.DraftReply = v.str("lead.draft_reply", lead["draft_reply"])
	} else {
		v.fail("lead must be an object")
	}

	if rep, ok := data["reputation"].(map[string]any); ok {
		v.closedObject("reputation", rep, reputationKeys)
		result.Reputation.Title = v.str("reputation.title", rep["title"])
		result.Reputation.DraftReply = v.str("reputation.draft_reply", rep["draft_reply"])
		result.Reputation.RiskLevel = v.enum("reputation.risk_level", rep["risk_level"],
			RiskLow, RiskMedium, RiskHigh)
	} else {
		v.fail("reputation must be an object")
	}

	if content, ok := data["content"].(map[string]any); ok {
		v.closedObject("content", content, contentKeys)
		result.Content.Title = v.str("content.title", content["title"])
		result.Content.Angle = v.str("content.angle", content["angle"])
		result.Content.OutlineBullets = v.stringList("content.outline_bullets", content["outline_bullets"], maxOutlineBullets)
		result.Content.CanvaPrompts = v.stringList("content.canva_prompts", content["canva_prompts"], maxCanvaPrompts)
	} else {
		v.fail("content must be an object")
	}

	if err := v.err(); err != nil {
		return nil, err
	}
	return result, nil
}

// validator accumulates constraint failures so a rejected result reports
// everything wrong with it, not just the first field.
type validator struct {
	contract   string
	violations []string
}

func (v *validator) fail(format string, args ...any) {
	v.violations = append(v.violations, fmt.Sprintf(format, args...))
}

func (v *validator) err() error {
	if len(v.violations) == 0 {
		return nil
	}
	return &ViolationError{Contract: v.contract, Violations: v.violations}
}

// closedObject rejects undeclared keys and missing required keys.
func (v *validator) closedObject(path string, obj map[string]any, allowed map[string]bool) {
	prefix := ""
	if path != "" {
		prefix = path + "."
	}
	var extra []string
	for key := range obj {
		if !allowed[key] {
			extra = append(extra, prefix+key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		v.fail("undeclared key %q", key)
	}
	var missing []string
	for key := range allowed {
		if _, ok := obj[key]; !ok {
			missing = append(missing, prefix+key)
		}
	}
	sort.Strings(missing)
	for _, key := range missing {
		v.fail("missing required key %q", key)
	}
}

func (v *validator) str(field string, value any) string {
	s, ok := value.(string)
	if !ok {
		v.fail("%s must be a string, got %T", field, value)
		return ""
	}
	return s
}

func (v *validator) boolean(field string, value any) bool {
	b, ok := value.(bool)
	if !ok {
		v.fail("%s must be a boolean, got %T", field, value)
		return false
	}
	return b
}

func (v *validator) enum(field string, value any, allowed ...string) string {
	s, ok := value.(string)
	if !ok {
		v.fail("%s must be a string, got %T", field, value)
		return ""
	}
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	v.fail("%s must be one of %v, got %q", field, allowed, s)
	return ""
}

func (v *validator) intRange(field string, value any, min, max int) int {
	f, ok := value.(float64)
	if !ok {
		v.fail("%s must be an integer, got %T", field, value)
		return 0
	}
	if f != math.Trunc(f) {
		v.fail("%s must be an integer, got %v", field, f)
		return 0
	}
	n := int(f)
	if n < min || n > max {
		v.fail("%s must be in [%d,%d], got %d", field, min, max, n)
		return 0
	}
	return n
}

func (v *validator) numberRange(field string, value any, min, max float64) float64 {
	f, ok := value.(float64)
	if !ok {
		v.fail("%s must be a number, got %T", field, value)
		return 0
	}
	if f < min || f > max {
		v.fail("%s must be in [%v,%v], got %v", field, min, max, f)
		return 0
	}
	return f
}

func (v *validator) stringList(field string, value any, maxItems int) []string {
	items, ok := value.([]any)
	if !ok {
		v.fail("%s must be an array, got %T", field, value)
		return nil
	}
	if len(items) > maxItems {
		v.fail("%s must have at most %d items, got %d", field, maxItems, len(items))
		return nil
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			v.fail("%s[%d] must be a string, got %T", field, i, item)
			continue
		}
		out = append(out, s)
	}
	return out
}
