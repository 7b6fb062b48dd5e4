package drafts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/contentops/social-listening-bot/internal/config"
	"github.com/contentops/social-listening-bot/internal/llm"
	"github.com/contentops/social-listening-bot/internal/workspace"
	"github.com/sirupsen/logrus"
)

// Content collection property names used by draft generation.
const (
	PropTopic          = "Topic"
	PropAudience       = "Audience"
	PropPlatformTarget = "Platform Target"
	PropStatus         = "Status"
	PropSourceMentions = "Source Mentions"
	PropDraftContent   = "Draft Content"
	PropHeadline       = "Headline"
	PropHook           = "Hook"
	PropSEOTitle       = "SEO Title"
	PropSEODesc        = "SEO Description"
	PropDraftAt        = "Draft Generated At"
)

// Status values driving the draft workflow.
const (
	statusReady  = "Ready to Draft"
	statusDone   = "Draft Ready for Review"
	statusFailed = "Draft Failed"
)

const (
	maxSourceMentions = 10
	maxDraftBodyLen   = 2000
)

// sourceMention is the condensed mention context handed to the model.
type sourceMention struct {
	Platform string `json:"platform"`
	Author   string `json:"author"`
	Text     string `json:"text"`
}

// Service generates drafts for content opportunities marked ready.
type Service struct {
	config *config.Config
	ws     workspace.WorkspaceInterface
	llm    llm.CompletionInterface
}

// NewService creates a new draft generation service
func NewService(cfg *config.Config, ws workspace.WorkspaceInterface, completions llm.CompletionInterface) *Service {
	return &Service{config: cfg, ws: ws, llm: completions}
}

// Run generates drafts for up to MaxDraftsPerRun opportunities. Per-record
// failures mark the record failed and continue.
func (s *Service) Run(ctx context.Context) error {
	start := time.Now()
	logrus.Infof("Starting draft generation run (status=%q)", statusReady)

	records, err := s.ws.QueryDatabase(ctx, s.config.ContentDBID, workspace.Query{
		Filter: map[string]any{
			"property": PropStatus,
			"status":   map[string]any{"equals": statusReady},
		},
		PageSize: s.config.MaxDraftsPerRun,
	})
	if err != nil {
		return fmt.Errorf("failed to query content opportunities: %w", err)
	}

	if len(records) == 0 {
		logrus.Info("No content opportunities ready to draft")
		return nil
	}

	success := 0
	for i := range records {
		record := &records[i]
		if err := s.processOpportunity(ctx, record); err != nil {
			logrus.Errorf("SKIP content opportunity %s: %v", record.ID, err)
			s.markFailed(ctx, record.ID)
			continue
		}
		success++
	}

	logrus.Infof("Draft generation completed in %v: %d/%d successful", time.Since(start), success, len(records))
	return nil
}

func (s *Service) processOpportunity(ctx context.Context, record *workspace.Record) error {
	topic := record.Prop(PropTopic).Text()
	audience := record.Prop(PropAudience).SelectName()
	platformTarget := record.Prop(PropPlatformTarget).SelectName()

	logrus.Infof("Generating draft | topic=%q platform=%s audience=%s", topic, platformTarget, audience)

	mentions := s.fetchSourceMentions(ctx, record.Prop(PropSourceMentions).RelationIDs())

	draft, err := s.generateDraft(ctx, topic, audience, platformTarget, mentions)
	if err != nil {
		return err
	}

	if errs := ValidateDraft(draft, platformTarget, audience); len(errs) > 0 {
		return fmt.Errorf("draft validation failed: %s", strings.Join(errs, "; "))
	}

	body := draft.Body
	if len(body) > maxDraftBodyLen {
		body = body[:maxDraftBodyLen]
	}

	if err := s.ws.UpdatePage(ctx, record.ID, map[string]any{
		PropDraftContent: workspace.RichText(body),
		PropHeadline:     workspace.RichText(draft.Headline),
		PropHook:         workspace.RichText(draft.Hook),
		PropSEOTitle:     workspace.RichText(draft.SEOMetadata.TitleTag),
		PropSEODesc:      workspace.RichText(draft.SEOMetadata.MetaDescription),
		PropStatus:       workspace.Status(statusDone),
		PropDraftAt:      workspace.Date(time.Now()),
	}); err != nil {
		return fmt.Errorf("failed to persist draft: %w", err)
	}

	logrus.Infof("Draft persisted for %s | %d words", record.ID, len(strings.Fields(draft.Body)))
	return nil
}

// fetchSourceMentions pulls up to maxSourceMentions mentions for prompt
// context. Individual fetch failures are logged and skipped; context is
// best-effort.
func (s *Service) fetchSourceMentions(ctx context.Context, ids []string) []sourceMention {
	if len(ids) > maxSourceMentions {
		ids = ids[:maxSourceMentions]
	}
	var mentions []sourceMention
	for _, id := range ids {
		record, err := s.ws.GetPage(ctx, id)
		if err != nil {
			logrus.Errorf("Failed to fetch source mention %s: %v", id, err)
			continue
		}
		mentions = append(mentions, sourceMention{
			Platform: record.Prop("Platform").Text(),
			Author:   record.Prop("Author").Text(),
			Text:     record.Prop("Source Text").Text(),
		})
	}
	return mentions
}

func (s *Service) generateDraft(ctx context.Context, topic, audience, platformTarget string, mentions []sourceMention) (*Draft, error) {
	guide, ok := platformGuidelines[platformTarget]
	if !ok {
		guide = platformGuidelines["BiggerPockets"]
	}
	profile, ok := audienceProfiles[audience]
	if !ok {
		profile = audienceProfiles["Operator"]
	}

	var lengthInstruction string
	if platformTarget == "X" {
		target := (guide.MinTweets + guide.MaxTweets) / 2
		lengthInstruction = fmt.Sprintf("Write EXACTLY %d tweets (between %d-%d). Each tweet must be under 280 characters, separated by blank lines.",
			target, guide.MinTweets, guide.MaxTweets)
	} else {
		target := (guide.MinWords + guide.MaxWords) / 2
		lengthInstruction = fmt.Sprintf("Write EXACTLY %d words (minimum %d, maximum %d words). Count your words carefully - this is critical.",
			target, guide.MinWords, guide.MaxWords)
	}

	system := fmt.Sprintf(`You are an expert content writer for %s audiences in real estate investing.

PLATFORM: %s
TARGET LENGTH: %s
STRUCTURE: %s
TONE: %s
FORMATTING: %s

AUDIENCE PROFILE:
- Focus: %s
- Language: %s

Return ONLY valid JSON with EXACTLY these keys and no others:
{
  "headline": "Platform-optimized title (60-80 chars)",
  "hook": "Opening 2-3 sentences that grab attention",
  "body": "FULL MARKDOWN CONTENT at the target length. Use headers, bullets, bold text.",
  "key_points_formatted": ["Actionable point 1", "Actionable point 2", "Actionable point 3"],
  "proof_points_formatted": ["Data/example 1", "Case study 2"],
  "cta": "Clear call-to-action",
  "seo_metadata": {
    "title_tag": "SEO title (50-60 chars)",
    "meta_description": "Description (150-160 chars)",
    "keywords": ["keyword1", "keyword2", "keyword3"],
    "suggested_tags": ["tag1", "tag2"]
  },
  "image_placeholders": ["[IMAGE_0] Hero image description"],
  "content_structure_notes": "One or two sentences on why the draft is structured this way."
}`,
		audience, platformTarget, lengthInstruction, guide.Structure, guide.Tone, guide.Formatting,
		profile.Focus, profile.Language)

	payload, err := json.Marshal(map[string]any{
		"topic":           topic,
		"source_mentions": mentions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal draft payload: %w", err)
	}

	raw, err := s.llm.Complete(ctx, llm.Request{
		Model:       s.config.ModelContent,
		System:      system,
		UserJSON:    string(payload),
		Temperature: 0.7,
		JSONOnly:    true,
		MaxTokens:   4000,
	})
	if err != nil {
		return nil, fmt.Errorf("draft generation call failed: %w", err)
	}

	return ParseDraft(raw)
}

func (s *Service) markFailed(ctx context.Context, pageID string) {
	if err := s.ws.UpdatePage(ctx, pageID, map[string]any{
		PropStatus: workspace.Status(statusFailed),
	}); err != nil {
		logrus.Errorf("Failed to mark content opportunity %s as failed: %v", pageID, err)
	}
}
