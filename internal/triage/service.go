package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/contentops/social-listening-bot/internal/config"
	"github.com/contentops/social-listening-bot/internal/contract"
	"github.com/contentops/social-listening-bot/internal/models"
	"github.com/contentops/social-listening-bot/internal/notifications"
	"github.com/contentops/social-listening-bot/internal/router"
	"github.com/contentops/social-listening-bot/internal/workspace"
	"github.com/sirupsen/logrus"
)

// Mentions collection property names. These must match the workspace schema
// exactly.
const (
	PropPlatform      = "Platform"
	PropURL           = "URL"
	PropSourceText    = "Source Text"
	PropAuthor        = "Author"
	PropPostCreatedAt = "Post Created At"
	PropSourceQuery   = "Source Query"
	PropSentiment     = "Sentiment"
	PropPriority      = "Priority"
	PropCompliance    = "Compliance Mode"
	PropEntities      = "Entities"
	PropMetro         = "Metro"
)

// Metrics holds triage run metrics
type Metrics struct {
	Processed          int            `json:"processed"`
	Escalated          int            `json:"escalated"`
	Skipped            int            `json:"skipped"`
	ErrorCount         int            `json:"error_count"`
	SentimentBreakdown map[string]int `json:"sentiment_breakdown"`
	QueueRecords       map[string]int `json:"queue_records"`
	LastRun            time.Time      `json:"last_run"`
	LastRunDuration    string         `json:"last_run_duration"`
}

// Service runs the triage loop: pull untriaged mentions, classify each with
// the two-pass classifier, persist the classification fields, and route to
// the downstream queues. Processing is sequential; one mention completes
// (success or terminal failure) before the next begins.
type Service struct {
	config     *config.Config
	ws         workspace.WorkspaceInterface
	classifier *Classifier
	router     *router.Router
	notifier   notifications.NotificationInterface
	metrics    *Metrics
	mu         sync.RWMutex
}

// NewService creates a new triage service
func NewService(cfg *config.Config, ws workspace.WorkspaceInterface, classifier *Classifier, rt *router.Router, notifier notifications.NotificationInterface) *Service {
	return &Service{
		config:     cfg,
		ws:         ws,
		classifier: classifier,
		router:     rt,
		notifier:   notifier,
		metrics: &Metrics{
			SentimentBreakdown: make(map[string]int),
			QueueRecords:       make(map[string]int),
		},
	}
}

// Run performs one triage pass over the untriaged mentions. Per-mention
// failures are logged as skips and the mention is left untouched so it stays
// eligible for the next run; only the query itself failing aborts the run.
func (s *Service) Run(ctx context.Context) error {
	start := time.Now()
	logrus.Info("Starting triage run")

	records, err := s.ws.QueryDatabase(ctx, s.config.MentionsDBID, workspace.Query{
		Filter: map[string]any{
			"or": []map[string]any{
				{"property": PropSentiment, "select": map[string]any{"is_empty": true}},
				{"property": PropPriority, "number": map[string]any{"is_empty": true}},
			},
		},
		PageSize: s.config.TriagePageSize,
	})
	if err != nil {
		return fmt.Errorf("failed to query untriaged mentions: %w", err)
	}

	if len(records) == 0 {
		logrus.Info("No untriaged mentions found")
		return nil
	}

	logrus.Infof("Found %d untriaged mentions", len(records))

	summary := &models.RunSummary{
		RunType:   "triage",
		StartedAt: start,
		Created:   make(map[string]int),
	}

	for i := range records {
		record := &records[i]
		if err := s.processMention(ctx, record, summary); err != nil {
			logrus.Errorf("SKIP mention %s: %v", record.ID, err)
			summary.ErrorCount++
		}
		time.Sleep(s.config.RecordDelay)
	}

	summary.Duration = time.Since(start).String()
	s.updateMetrics(summary, time.Since(start))

	if s.notifier != nil {
		if err := s.notifier.SendRunSummary(summary); err != nil {
			logrus.Errorf("Failed to send triage run summary: %v", err)
		}
	}

	logrus.Infof("Triage run completed in %v: %d processed, %d escalated, %d errors",
		time.Since(start), summary.Processed, summary.Escalated, summary.ErrorCount)
	return nil
}

func (s *Service) processMention(ctx context.Context, record *workspace.Record, summary *models.RunSummary) error {
	mention := mentionFromRecord(record)
	if mention.URL == "" || mention.Text == "" {
		logrus.Infof("SKIP mention %s: missing url or text", record.ID)
		summary.Skipped++
		return nil
	}

	result, pass, err := s.classifier.Classify(ctx, mention)
	if err != nil {
		// Transport failure or contract violation: leave the record untouched
		// so it remains eligible for retry on the next run.
		return err
	}
	if pass == PassStrong {
		summary.Escalated++
	}

	if err := s.ws.UpdatePage(ctx, record.ID, map[string]any{
		PropSentiment:  workspace.Select(result.Sentiment),
		PropPriority:   workspace.Number(float64(result.Priority)),
		PropCompliance: workspace.Checkbox(result.ComplianceMode),
		PropEntities:   workspace.MultiSelect(result.Entities),
		PropMetro:      workspace.MultiSelect(result.Metros),
	}); err != nil {
		return fmt.Errorf("failed to persist classification: %w", err)
	}

	created, err := s.router.Route(ctx, record.ID, mention, router.RelationsFromRecord(record), result)
	for _, dest := range created {
		summary.Created[string(dest)]++
	}
	if err != nil {
		return err
	}

	s.maybeAlert(mention, result)

	summary.Processed++
	s.recordSentiment(result.Sentiment)
	logrus.Infof("TRIAGED %s | %s P%d | %s | lead=%t reputation=%t content=%t",
		record.ID, result.Sentiment, result.Priority, pass,
		result.Routes.Lead, result.Routes.Reputation, result.Routes.Content)
	return nil
}

// maybeAlert raises a compliance alert for high-risk reputation mentions so
// a human sees them before any reply goes out.
func (s *Service) maybeAlert(mention models.Mention, result *contract.TriageResult) {
	if s.notifier == nil {
		return
	}
	if !result.ComplianceMode || result.Reputation.RiskLevel != contract.RiskHigh {
		return
	}
	alert := &models.ComplianceAlert{
		MentionURL: mention.URL,
		Platform:   mention.Platform,
		Author:     mention.Author,
		RiskLevel:  result.Reputation.RiskLevel,
		Title:      result.Reputation.Title,
		CreatedAt:  time.Now(),
	}
	if err := s.notifier.SendComplianceAlert(alert); err != nil {
		logrus.Errorf("Failed to send compliance alert: %v", err)
	}
}

func mentionFromRecord(record *workspace.Record) models.Mention {
	mention := models.Mention{
		ID:          record.ID,
		Platform:    record.Prop(PropPlatform).SelectName(),
		URL:         record.Prop(PropURL).URL(),
		Text:        record.Prop(PropSourceText).Text(),
		Author:      record.Prop(PropAuthor).Text(),
		CreatedAt:   record.Prop(PropPostCreatedAt).DateStart(),
		SourceQuery: record.Prop(PropSourceQuery).Text(),
	}
	if mention.Platform == "" {
		mention.Platform = "Other"
	}
	return mention
}

func (s *Service) recordSentiment(sentiment string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.SentimentBreakdown[sentiment]++
}

func (s *Service) updateMetrics(summary *models.RunSummary, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.Processed = summary.Processed
	s.metrics.Escalated = summary.Escalated
	s.metrics.Skipped = summary.Skipped
	s.metrics.ErrorCount = summary.ErrorCount
	s.metrics.LastRun = time.Now()
	s.metrics.LastRunDuration = duration.String()
	for dest, count := range summary.Created {
		s.metrics.QueueRecords[dest] += count
	}
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}
