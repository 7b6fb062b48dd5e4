package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/contentops/social-listening-bot/internal/config"
	"github.com/contentops/social-listening-bot/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Service sends run summaries and compliance alerts via the configured
// channels (Teams webhook, email, or both).
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type     string         `json:"@type"`
	Context  string         `json:"@context"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Sections []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	ActivityText  string      `json:"activityText,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Markdown      bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// SendRunSummary sends a pipeline run summary via the configured channels.
// Channel failures are collected, not short-circuited, so one broken channel
// does not silence the other.
func (s *Service) SendRunSummary(summary *models.RunSummary) error {
	title := fmt.Sprintf("Social Listening Run: %s", summary.RunType)
	text := fmt.Sprintf("Processed %d mentions in %s (%d escalated, %d errors)",
		summary.Processed, summary.Duration, summary.Escalated, summary.ErrorCount)

	facts := []TeamsFact{
		{Name: "Processed", Value: fmt.Sprintf("%d", summary.Processed)},
		{Name: "Escalated", Value: fmt.Sprintf("%d", summary.Escalated)},
		{Name: "Skipped", Value: fmt.Sprintf("%d", summary.Skipped)},
		{Name: "Errors", Value: fmt.Sprintf("%d", summary.ErrorCount)},
		{Name: "Started", Value: summary.StartedAt.Format("2006-01-02 15:04:05 UTC")},
	}
	for dest, count := range summary.Created {
		facts = append(facts, TeamsFact{
			Name:  fmt.Sprintf("%s Queue Records", dest),
			Value: fmt.Sprintf("%d", count),
		})
	}

	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   title,
		Text:    text,
		Sections: []TeamsSection{
			{ActivityTitle: "Summary", Facts: facts, Markdown: true},
		},
	}

	return s.dispatch(title, text, message)
}

// SendComplianceAlert sends an immediate alert for a high-risk mention.
func (s *Service) SendComplianceAlert(alert *models.ComplianceAlert) error {
	title := "Compliance Alert: high-risk mention"
	text := fmt.Sprintf("Risk %s mention by %s on %s requires review before any reply: %s",
		alert.RiskLevel, alert.Author, alert.Platform, alert.MentionURL)

	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   title,
		Text:    text,
		Sections: []TeamsSection{
			{
				ActivityTitle: alert.Title,
				Facts: []TeamsFact{
					{Name: "Platform", Value: alert.Platform},
					{Name: "Author", Value: alert.Author},
					{Name: "Risk Level", Value: alert.RiskLevel},
					{Name: "URL", Value: alert.MentionURL},
				},
				Markdown: true,
			},
		},
	}

	return s.dispatch(title, text, message)
}

func (s *Service) dispatch(subject, textBody string, message *TeamsMessage) error {
	var errors []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(message); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(subject, textBody); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}
	return nil
}

func (s *Service) sendToTeams(message *TeamsMessage) error {
	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)
	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	return nil
}

func (s *Service) sendEmail(subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
