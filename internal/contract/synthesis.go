package contract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Audience and platform targets accepted by the synthesis contract. Drifted
// casing is folded back through NormalizeChoice; unknown values fall back to
// the defaults.
var (
	AllowedAudiences       = []string{"CashBuyer", "Operator", "HNWI/LP"}
	AllowedPlatformTargets = []string{"BiggerPockets", "LinkedIn", "X", "Substack"}
)

const (
	DefaultAudience       = "Operator"
	DefaultPlatformTarget = "BiggerPockets"

	maxTopicLen    = 120
	minTopicLen    = 5
	maxKeyPoints   = 10
	minKeyPoints   = 3
	maxProofPoints = 8
	maxMentionIDs  = 15
)

// Topic is one synthesized content idea aggregated from multiple mentions.
type Topic struct {
	Topic          string   `json:"topic"`
	Audience       string   `json:"audience"`
	PlatformTarget string   `json:"platform_target"`
	Priority       int      `json:"priority"`
	Hook           string   `json:"hook"`
	KeyPoints      []string `json:"key_points"`
	ProofPoints    []string `json:"proof_points"`
	MentionIDs     []string `json:"mention_ids"`
}

// SynthesisResult is the validated output of one synthesis call.
type SynthesisResult struct {
	Topics []Topic `json:"topics"`
}

var topicKeys = map[string]bool{
	"topic": true, "audience": true, "platform_target": true, "priority": true,
	"hook": true, "key_points": true, "proof_points": true, "mention_ids": true,
}

// ParseSynthesis parses raw completion text against the synthesis contract.
// topicsMax caps the number of topics a single call may return. Non-JSON
// input is a malformed-response error, not a contract violation.
func ParseSynthesis(raw string, topicsMax int) (*SynthesisResult, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("malformed completion response: %w", err)
	}
	NormalizeSynthesis(data)
	return ValidateSynthesis(data, topicsMax)
}

// NormalizeSynthesis applies the synthesis cleaning rules in place: topic text
// is whitespace-collapsed and truncated to 120 characters, bullet lists are
// trimmed/deduplicated/capped, and mention ids are deduplicated preserving
// first-seen order and capped at 15.
func NormalizeSynthesis(data map[string]any) {
	topics, ok := data["topics"].([]any)
	if !ok {
		return
	}
	for _, raw := range topics {
		t, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if s, ok := t["topic"].(string); ok {
			s = CollapseWhitespace(s)
			if len(s) > maxTopicLen {
				s = s[:maxTopicLen]
			}
			t["topic"] = s
		}
		t["key_points"] = toAny(CleanBullets(t["key_points"], maxKeyPoints))
		t["proof_points"] = toAny(CleanBullets(t["proof_points"], maxProofPoints))
		t["mention_ids"] = toAny(DedupMentionIDs(t["mention_ids"]))
	}
}

// DedupMentionIDs drops non-string and blank entries, removes duplicates
// keeping the first occurrence, and caps the list at 15 ids.
func DedupMentionIDs(v any) []string {
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
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) >= maxMentionIDs {
			break
		}
	}
	return out
}

// ValidateSynthesis converts a normalized loose object into a typed
// SynthesisResult or rejects it with a *ViolationError.
func ValidateSynthesis(data map[string]any, topicsMax int) (*SynthesisResult, error) {
	v := &validator{contract: "synthesis"}

	v.closedObject("", data, map[string]bool{"topics": true})

	rawTopics, ok := data["topics"].([]any)
	if !ok {
		v.fail("topics must be an array, got %T", data["topics"])
		return nil, v.err()
	}
	if len(rawTopics) < 1 || len(rawTopics) > topicsMax {
		v.fail("topics must have between 1 and %d items, got %d", topicsMax, len(rawTopics))
	}

	result := &SynthesisResult{}
	for i, raw := range rawTopics {
		obj, ok := raw.(map[string]any)
		if !ok {
			v.fail("topics[%d] must be an object, got %T", i, raw)
			continue
		}
		prefix := fmt.Sprintf("topics[%d]", i)
		v.closedObject(prefix, obj, topicKeys)

		topic := Topic{
			Topic:          v.str(prefix+".topic", obj["topic"]),
			Audience:       v.str(prefix+".audience", obj["audience"]),
			PlatformTarget: v.str(prefix+".platform_target", obj["platform_target"]),
			Priority:       v.intRange(prefix+".priority", obj["priority"], 1, 5),
			Hook:           v.str(prefix+".hook", obj["hook"]),
			KeyPoints:      v.stringList(prefix+".key_points", obj["key_points"], maxKeyPoints),
			ProofPoints:    v.stringList(prefix+".proof_points", obj["proof_points"], maxProofPoints),
			MentionIDs:     v.stringList(prefix+".mention_ids", obj["mention_ids"], maxMentionIDs),
		}
		if len(topic.Topic) < minTopicLen {
			v.fail("%s.topic must be at least %d characters, got %d", prefix, minTopicLen, len(topic.Topic))
		}
		if len(topic.KeyPoints) < minKeyPoints {
			v.fail("%s.key_points must have at least %d entries after cleaning, got %d", prefix, minKeyPoints, len(topic.KeyPoints))
		}
		if len(topic.MentionIDs) < 1 {
			v.fail("%s.mention_ids must have at least 1 entry, got 0", prefix)
		}
		result.Topics = append(result.Topics, topic)
	}

	if err := v.err(); err != nil {
		return nil, err
	}
	return result, nil
}

// NormalizeChoice folds a drifted enum value back onto the allowed set,
// matching case-insensitively, and falls back to the default when the value
// is unrecognized.
func NormalizeChoice(value string, allowed []string, fallback string) string {
	v := strings.TrimSpace(value)
	for _, a := range allowed {
		if a == v {
			return a
		}
	}
	for _, a := range allowed {
		if strings.EqualFold(a, v) {
			return a
		}
	}
	return fallback
}

func toAny(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}
