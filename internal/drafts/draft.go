// Package drafts generates platform-optimized content drafts from accepted
// content opportunities and validates them against the draft contract before
// anything is written back.
package drafts

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/contentops/social-listening-bot/internal/contract"
)

// SEOMetadata carries the search-facing fields of a draft.
type SEOMetadata struct {
	TitleTag        string   `json:"title_tag"`
	MetaDescription string   `json:"meta_description"`
	Keywords        []string `json:"keywords"`
	SuggestedTags   []string `json:"suggested_tags"`
}

// Draft is one generated content draft.
type Draft struct {
	Headline              string      `json:"headline"`
	Hook                  string      `json:"hook"`
	Body                  string      `json:"body"`
	KeyPointsFormatted    []string    `json:"key_points_formatted"`
	ProofPointsFormatted  []string    `json:"proof_points_formatted"`
	CTA                   string      `json:"cta"`
	SEOMetadata           SEOMetadata `json:"seo_metadata"`
	ImagePlaceholders     []string    `json:"image_placeholders"`
	ContentStructureNotes string      `json:"content_structure_notes"`
}

var draftKeys = map[string]bool{
	"headline": true, "hook": true, "body": true,
	"key_points_formatted": true, "proof_points_formatted": true,
	"cta": true, "seo_metadata": true, "image_placeholders": true,
	"content_structure_notes": true,
}

// ParseDraft parses raw completion text against the closed draft schema.
func ParseDraft(raw string) (*Draft, error) {
	var loose map[string]any
	if err := json.Unmarshal([]byte(raw), &loose); err != nil {
		return nil, fmt.Errorf("malformed completion response: %w", err)
	}

	var violations []string
	var extra, missing []string
	for key := range loose {
		if !draftKeys[key] {
			extra = append(extra, key)
		}
	}
	for key := range draftKeys {
		if _, ok := loose[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(extra)
	sort.Strings(missing)
	for _, key := range extra {
		violations = append(violations, fmt.Sprintf("undeclared key %q", key))
	}
	for _, key := range missing {
		violations = append(violations, fmt.Sprintf("missing required key %q", key))
	}
	if len(violations) > 0 {
		return nil, &contract.ViolationError{Contract: "draft", Violations: violations}
	}

	var draft Draft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return nil, &contract.ViolationError{Contract: "draft", Violations: []string{err.Error()}}
	}
	return &draft, nil
}

// platformGuideline describes how a platform wants its content shaped.
type platformGuideline struct {
	MinWords   int
	MaxWords   int
	MinTweets  int // X only
	MaxTweets  int // X only
	Structure  string
	Tone       string
	Formatting string
}

var platformGuidelines = map[string]platformGuideline{
	"BiggerPockets": {
		MinWords: 2000, MaxWords: 3000,
		Structure:  "Problem -> Framework -> Step-by-step -> Examples -> Checklist",
		Tone:       "Helpful peer, conversational but authoritative",
		Formatting: "Markdown with H2/H3 headers, bullet lists, numbered steps",
	},
	"LinkedIn": {
		MinWords: 800, MaxWords: 1200,
		Structure:  "Hook -> Insight -> Framework -> Proof -> CTA",
		Tone:       "Professional thought leadership",
		Formatting: "Short paragraphs (2-3 lines), numbered lists",
	},
	"X": {
		MinTweets: 8, MaxTweets: 12,
		Structure:  "Hook tweet -> Context -> Framework -> CTA",
		Tone:       "Direct and conversational",
		Formatting: "One idea per tweet, 280 chars max",
	},
	"Substack": {
		MinWords: 2500, MaxWords: 4000,
		Structure:  "Story -> Problem -> Solution -> Cases -> Steps",
		Tone:       "Trusted advisor, storytelling with data",
		Formatting: "Markdown with section breaks, image placeholders",
	},
}

type audienceProfile struct {
	Focus    string
	Language string
}

var audienceProfiles = map[string]audienceProfile{
	"CashBuyer": {
		Focus:    "ROI, time to close, risk mitigation",
		Language: "Practical, numbers-focused, efficiency-driven",
	},
	"Operator": {
		Focus:    "Cash flow, scalability, operational efficiency",
		Language: "Technical, process-oriented, systems-thinking",
	},
	"HNWI/LP": {
		Focus:    "Capital preservation, passive income, tax efficiency",
		Language: "Conservative, compliance-aware, relationship-focused",
	},
}

// Phrases that must never appear in drafts written for HNWI/LP audiences.
var prohibitedTerms = []string{
	"guaranteed returns", "guaranteed profit", "legal advice", "tax advice",
}

// lengthTolerance is applied around the platform word range: 10% either way.
const lengthTolerance = 0.1

// ValidateDraft checks a parsed draft against its platform and audience
// rules. Length tolerance is 10% either side of the platform range; X is
// counted in tweets (blank-line separated).
func ValidateDraft(draft *Draft, platformTarget, audience string) []string {
	guide, ok := platformGuidelines[platformTarget]
	if !ok {
		guide = platformGuidelines[contract.DefaultPlatformTarget]
	}

	var errs []string

	if platformTarget == "X" {
		tweets := 0
		for _, block := range strings.Split(draft.Body, "\n\n") {
			if strings.TrimSpace(block) != "" {
				tweets++
			}
		}
		if tweets < guide.MinTweets || tweets > guide.MaxTweets {
			errs = append(errs, fmt.Sprintf("Tweet count %d outside range %d-%d", tweets, guide.MinTweets, guide.MaxTweets))
		}
	} else {
		words := len(strings.Fields(draft.Body))
		minWords := int(float64(guide.MinWords) * (1 - lengthTolerance))
		maxWords := int(float64(guide.MaxWords) * (1 + lengthTolerance))
		if words < minWords || words > maxWords {
			errs = append(errs, fmt.Sprintf("Word count %d outside range %d-%d", words, minWords, maxWords))
		}
	}

	if len(draft.Headline) < 10 {
		errs = append(errs, "Headline too short")
	}
	if len(draft.Hook) < 20 {
		errs = append(errs, "Hook too short")
	}
	if len(draft.KeyPointsFormatted) < 3 {
		errs = append(errs, fmt.Sprintf("Need at least 3 key points, got %d", len(draft.KeyPointsFormatted)))
	}

	if audience == "HNWI/LP" {
		body := strings.ToLower(draft.Body)
		for _, term := range prohibitedTerms {
			if strings.Contains(body, term) {
				errs = append(errs, fmt.Sprintf("Compliance violation: %q in body", term))
			}
		}
	}

	return errs
}
