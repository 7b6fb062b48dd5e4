package contract

import (
	"math"
	"strconv"
	"strings"
)

var sentimentCanon = map[string]string{
	"positive": SentimentPositive,
	"neutral":  SentimentNeutral,
	"negative": SentimentNegative,
	"mixed":    SentimentMixed,
}

var riskCanon = map[string]string{
	"low":    RiskLow,
	"medium": RiskMedium,
	"high":   RiskHigh,
}

// NormalizeTriage repairs the known shapes of model non-compliance in place:
// enum casing, nested objects returned as something else, missing required
// leaves, and numeric fields returned as strings or floats. Every rule is
// idempotent. Values that cannot be repaired are left untouched so validation
// rejects them instead of silently accepting garbage.
func NormalizeTriage(data map[string]any) {
	// Sentiment casing. Unrecognized values pass through and fail validation.
	if s, ok := data["sentiment"].(string); ok {
		if canon, ok := sentimentCanon[strings.ToLower(strings.TrimSpace(s))]; ok {
			data["sentiment"] = canon
		}
	}

	// Nested payloads must be objects; anything else becomes an empty object
	// before defaults are filled.
	routes := ensureObject(data, "routes")
	lead := ensureObject(data, "lead")
	reputation := ensureObject(data, "reputation")
	content := ensureObject(data, "content")

	setDefault(lead, "title", "")
	setDefault(lead, "draft_reply", "")

	setDefault(reputation, "title", "")
	setDefault(reputation, "draft_reply", "")
	setDefault(reputation, "risk_level", RiskLow)

	setDefault(content, "title", "")
	setDefault(content, "angle", "")
	setDefault(content, "outline_bullets", []any{})
	setDefault(content, "canva_prompts", []any{})

	setDefault(routes, "lead", false)
	setDefault(routes, "reputation", false)
	setDefault(routes, "content", false)

	// Risk level: numeric 0 -> Low, 1 -> Medium, >=2 -> High; string through
	// the lookup table, defaulting to Low when unrecognized.
	switch rl := reputation["risk_level"].(type) {
	case float64:
		switch {
		case rl <= 0:
			reputation["risk_level"] = RiskLow
		case rl == 1:
			reputation["risk_level"] = RiskMedium
		default:
			reputation["risk_level"] = RiskHigh
		}
	case string:
		if canon, ok := riskCanon[strings.ToLower(strings.TrimSpace(rl))]; ok {
			reputation["risk_level"] = canon
		} else {
			reputation["risk_level"] = RiskLow
		}
	default:
		reputation["risk_level"] = RiskLow
	}

	// Priority: numeric string parses, float rounds to nearest integer.
	switch pr := data["priority"].(type) {
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(pr)); err == nil {
			data["priority"] = float64(n)
		}
	case float64:
		data["priority"] = math.Round(pr)
	}

	// Confidence: numeric string parses; a failed parse is left alone so a
	// garbage confidence fails validation rather than sneaking through.
	if cf, ok := data["confidence"].(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(cf), 64); err == nil {
			data["confidence"] = f
		}
	}

	// Entities and metros must be lists; a bare non-empty string becomes a
	// single-element list, anything else non-list becomes empty.
	for _, key := range []string{"entities", "metros"} {
		switch v := data[key].(type) {
		case []any:
			// already a list
		case string:
			if s := strings.TrimSpace(v); s != "" {
				data[key] = []any{s}
			} else {
				data[key] = []any{}
			}
		default:
			data[key] = []any{}
		}
	}

	setDefault(data, "notes", "")
}

// ensureObject replaces a non-object value under key with an empty object and
// returns the object for further default filling.
func ensureObject(data map[string]any, key string) map[string]any {
	if obj, ok := data[key].(map[string]any); ok {
		return obj
	}
	obj := map[string]any{}
	data[key] = obj
	return obj
}

func setDefault(obj map[string]any, key string, value any) {
	if _, ok := obj[key]; !ok {
		obj[key] = value
	}
}

// CollapseWhitespace trims and folds internal runs of whitespace to single
// spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CleanBullets normalizes a bullet list from a loose value: non-strings and
// blanks are dropped, whitespace is collapsed, duplicates are removed
// case-insensitively keeping the first occurrence, and the list is capped at
// maxN entries.
func CleanBullets(v any, maxN int) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = CollapseWhitespace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
		if len(out) >= maxN {
			break
		}
	}
	return out
}
