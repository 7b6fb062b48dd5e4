// Package synthesis batches recent, not-yet-synthesized mentions into a small
// number of content topics via a single completion call, persists accepted
// topics to the Content queue, and stamps every contributing mention so it is
// ineligible for future synthesis windows.
package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/contentops/social-listening-bot/internal/config"
	"github.com/contentops/social-listening-bot/internal/contract"
	"github.com/contentops/social-listening-bot/internal/llm"
	"github.com/contentops/social-listening-bot/internal/workspace"
	"github.com/sirupsen/logrus"
)

// Mentions collection property names used by synthesis.
const (
	PropDetectedAt    = "Detected At"
	PropSynthesizedAt = "Synthesized At"
	PropPlatform      = "Platform"
	PropURL           = "URL"
	PropAuthor        = "Author"
	PropSourceText    = "Source Text"
	PropSourceQuery   = "Source Query"
)

// Content collection property names. Topic through Source Mentions are
// required; the rest are written only when the schema declares them.
const (
	PropTopic          = "Topic"
	PropAudience       = "Audience"
	PropPlatformTarget = "Platform Target"
	PropPriority       = "Priority"
	PropStatus         = "Status"
	PropSourceMentions = "Source Mentions"
	PropHook           = "Hook"
	PropKeyPoints      = "Key Points"
	PropProofPoints    = "Proof Points"
	PropSourceLinks    = "Source Links"
)

const (
	defaultStatus   = "Backlog"
	maxRichTextLen  = 1800
	minTopicChars   = 5
	minResolvedRefs = 2
)

var mentionsRequired = []string{
	PropDetectedAt, PropSynthesizedAt, PropPlatform, PropURL, PropAuthor, PropSourceText,
}

var contentRequired = []string{
	PropTopic, PropAudience, PropPlatformTarget, PropPriority, PropStatus, PropSourceMentions,
}

// batchMention is the per-mention payload handed to the model.
type batchMention struct {
	ID          string `json:"id"`
	Platform    string `json:"platform"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	Text        string `json:"text"`
	SourceQuery string `json:"source_query"`
}

// Service runs the daily synthesis aggregation.
type Service struct {
	config *config.Config
	ws     workspace.WorkspaceInterface
	llm    llm.CompletionInterface
	now    func() time.Time
}

// NewService creates a new synthesis service
func NewService(cfg *config.Config, ws workspace.WorkspaceInterface, completions llm.CompletionInterface) *Service {
	return &Service{
		config: cfg,
		ws:     ws,
		llm:    completions,
		now:    time.Now,
	}
}

// Run performs one synthesis pass. Unlike triage, the completion call covers
// the whole batch, so any failure aborts the run rather than skipping a
// record.
func (s *Service) Run(ctx context.Context) error {
	start := s.now()
	logrus.Info("Starting synthesis run")

	contentProps, err := s.preflight(ctx)
	if err != nil {
		return err
	}

	mentions, err := s.fetchEligibleMentions(ctx)
	if err != nil {
		return err
	}
	if len(mentions) == 0 {
		logrus.Info("No mentions eligible for synthesis (detection window + not yet synthesized)")
		return nil
	}

	logrus.Infof("Synthesizing %d mentions into up to %d topics", len(mentions), s.config.SynthTopicsMax)

	result, err := s.synthesize(ctx, mentions)
	if err != nil {
		return err
	}

	idToURL := make(map[string]string, len(mentions))
	for _, m := range mentions {
		idToURL[m.ID] = m.URL
	}

	created := 0
	touched := make(map[string]bool)

	for _, topic := range result.Topics {
		resolved := resolveMentionIDs(topic.MentionIDs, idToURL)
		if len(strings.TrimSpace(topic.Topic)) < minTopicChars {
			logrus.Infof("Dropping topic with short title: %q", topic.Topic)
			continue
		}
		if len(resolved) < minResolvedRefs {
			logrus.Infof("Dropping topic %q: only %d resolvable mention ids", topic.Topic, len(resolved))
			continue
		}

		pageID, err := s.createTopic(ctx, topic, resolved, idToURL, contentProps)
		if err != nil {
			return fmt.Errorf("failed to create content record for topic %q: %w", topic.Topic, err)
		}

		logrus.Infof("CREATED content topic %s | %s", pageID, topic.Topic)
		created++
		for _, id := range resolved {
			touched[id] = true
		}
	}

	// Stamp every contributing mention exactly once, regardless of how many
	// topics referenced it.
	if len(touched) > 0 {
		stamp := workspace.Date(s.now())
		for id := range touched {
			if err := s.ws.UpdatePage(ctx, id, map[string]any{PropSynthesizedAt: stamp}); err != nil {
				return fmt.Errorf("failed to stamp synthesized mention %s: %w", id, err)
			}
		}
		logrus.Infof("Stamped %s on %d mentions", PropSynthesizedAt, len(touched))
	}

	if created == 0 {
		logrus.Info("No content topics created (all topics discarded)")
	}
	logrus.Infof("Synthesis run completed in %v: %d topics created", time.Since(start), created)
	return nil
}

// preflight verifies both collection schemas carry the required properties.
// A missing property is a configuration failure: the run aborts before
// touching any record. Returns the Content schema so optional fields are only
// written when declared.
func (s *Service) preflight(ctx context.Context) (*workspace.Database, error) {
	mentionsDB, err := s.ws.GetDatabase(ctx, s.config.MentionsDBID)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect mentions database: %w", err)
	}
	if missing := mentionsDB.MissingProperties(mentionsRequired); len(missing) > 0 {
		return nil, fmt.Errorf("mentions database missing required properties: %v", missing)
	}

	contentDB, err := s.ws.GetDatabase(ctx, s.config.ContentDBID)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect content database: %w", err)
	}
	if missing := contentDB.MissingProperties(contentRequired); len(missing) > 0 {
		return nil, fmt.Errorf("content database missing required properties: %v", missing)
	}

	return contentDB, nil
}

func (s *Service) fetchEligibleMentions(ctx context.Context) ([]batchMention, error) {
	windowStart := s.now().Add(-time.Duration(s.config.SynthWindowHours) * time.Hour)

	records, err := s.ws.QueryDatabase(ctx, s.config.MentionsDBID, workspace.Query{
		Filter: map[string]any{
			"and": []map[string]any{
				{"property": PropDetectedAt, "date": map[string]any{
					"on_or_after": windowStart.UTC().Truncate(time.Second).Format(time.RFC3339),
				}},
				{"property": PropSynthesizedAt, "date": map[string]any{"is_empty": true}},
			},
		},
		Sorts:    []map[string]any{{"property": PropDetectedAt, "direction": "descending"}},
		PageSize: 100,
		Paginate: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible mentions: %w", err)
	}

	if len(records) > s.config.SynthMaxMentions {
		records = records[:s.config.SynthMaxMentions]
	}

	mentions := make([]batchMention, 0, len(records))
	for _, record := range records {
		mentions = append(mentions, batchMention{
			ID:          record.ID,
			Platform:    record.Prop(PropPlatform).Text(),
			URL:         record.Prop(PropURL).Text(),
			Author:      record.Prop(PropAuthor).Text(),
			Text:        record.Prop(PropSourceText).Text(),
			SourceQuery: record.Prop(PropSourceQuery).Text(),
		})
	}
	return mentions, nil
}

func (s *Service) synthesize(ctx context.Context, mentions []batchMention) (*contract.SynthesisResult, error) {
	system := fmt.Sprintf(`You produce DAILY CONTENT IDEAS from social listening mentions.

Return ONLY a single JSON object. No markdown. No commentary.
Follow the output shape exactly.

Create 1 to %d high-signal topics from the mentions.
Each topic must link to 2-15 mention_ids from the input list. If you cannot find at least 2 mention_ids for a topic, do NOT include that topic.
Prefer themes that recur or show strong operator pain.

ENUMS (case-sensitive):
- audience: %v
- platform_target: %v
- priority: integer 1-5 where 1 is highest urgency/value.

OUTPUT SHAPE:
{
  "topics": [
    {
      "topic": "string",
      "audience": "CashBuyer|Operator|HNWI/LP",
      "platform_target": "BiggerPockets|LinkedIn|X|Substack",
      "priority": 1-5,
      "hook": "1-2 lines",
      "key_points": ["3-10 bullets"],
      "proof_points": ["0-8 bullets"],
      "mention_ids": ["2-15 ids from input"]
    }
  ]
}`, s.config.SynthTopicsMax, contract.AllowedAudiences, contract.AllowedPlatformTargets)

	payload, err := json.Marshal(map[string]any{
		"mentions":   mentions,
		"topics_max": s.config.SynthTopicsMax,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis payload: %w", err)
	}

	raw, err := s.llm.Complete(ctx, llm.Request{
		Model:       s.config.ModelSynthesis,
		System:      system,
		UserJSON:    string(payload),
		Temperature: 0.2,
		JSONOnly:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesis call failed: %w", err)
	}

	return contract.ParseSynthesis(raw, s.config.SynthTopicsMax)
}

func (s *Service) createTopic(ctx context.Context, topic contract.Topic, resolved []string, idToURL map[string]string, contentDB *workspace.Database) (string, error) {
	audience := contract.NormalizeChoice(topic.Audience, contract.AllowedAudiences, contract.DefaultAudience)
	platformTarget := contract.NormalizeChoice(topic.PlatformTarget, contract.AllowedPlatformTargets, contract.DefaultPlatformTarget)
	priority := clamp(topic.Priority, 1, 5)

	props := map[string]any{
		PropTopic:          workspace.Title(topic.Topic),
		PropAudience:       workspace.Select(audience),
		PropPlatformTarget: workspace.Select(platformTarget),
		PropPriority:       workspace.Number(float64(priority)),
		PropStatus:         workspace.Status(defaultStatus),
		PropSourceMentions: workspace.Relation(resolved...),
	}

	if contentDB.HasProperty(PropHook) {
		props[PropHook] = workspace.RichText(truncate(strings.TrimSpace(topic.Hook), maxRichTextLen))
	}
	if contentDB.HasProperty(PropKeyPoints) {
		props[PropKeyPoints] = workspace.RichText(truncate(bulletText(topic.KeyPoints), maxRichTextLen))
	}
	if contentDB.HasProperty(PropProofPoints) {
		props[PropProofPoints] = workspace.RichText(truncate(bulletText(topic.ProofPoints), maxRichTextLen))
	}
	if contentDB.HasProperty(PropSourceLinks) {
		props[PropSourceLinks] = workspace.RichText(truncate(sourceLinks(resolved, idToURL), maxRichTextLen))
	}

	return s.ws.CreatePage(ctx, s.config.ContentDBID, props)
}

// resolveMentionIDs keeps only the ids present in the input batch, preserving
// order.
func resolveMentionIDs(ids []string, idToURL map[string]string) []string {
	var resolved []string
	for _, id := range ids {
		if _, ok := idToURL[id]; ok {
			resolved = append(resolved, id)
		}
	}
	return resolved
}

func sourceLinks(ids []string, idToURL map[string]string) string {
	var urls []string
	for _, id := range ids {
		if url := idToURL[id]; url != "" {
			urls = append(urls, url)
		}
	}
	return strings.Join(urls, "\n")
}

func bulletText(items []string) string {
	var lines []string
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}

func clamp(n, min, max int) int {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
