package models

import (
	"strings"
	"time"
)

// Mention is one observed piece of social content flowing through the pipeline.
// CreatedAt is the source timestamp as reported by the platform (ISO 8601);
// the ingestion service stamps Detected At separately on the workspace record.
type Mention struct {
	ID          string `json:"id,omitempty"`
	Platform    string `json:"platform"`
	URL         string `json:"url"`
	Text        string `json:"text"`
	Author      string `json:"author"`
	CreatedAt   string `json:"created_at"`
	SourceQuery string `json:"source_query,omitempty"`
}

// Fingerprint is the deduplication key for a mention. Two mentions with the
// same platform and URL are the same mention.
func (m Mention) Fingerprint() string {
	return m.Platform + "|" + m.URL
}

// Title builds the record title used when a mention is written to the
// workspace: "<platform> — <author> — <first 60 chars of text>".
func (m Mention) Title() string {
	text := m.Text
	if len(text) > 60 {
		text = text[:60]
	}
	title := m.Platform + " — " + m.Author + " — " + text
	return strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
}

// RunSummary describes the outcome of one pipeline run for notifications.
type RunSummary struct {
	RunType    string         `json:"run_type"` // "triage", "synthesis", "drafts", "ingest"
	StartedAt  time.Time      `json:"started_at"`
	Duration   string         `json:"duration"`
	Processed  int            `json:"processed"`
	Escalated  int            `json:"escalated"`
	Created    map[string]int `json:"created"`
	Skipped    int            `json:"skipped"`
	ErrorCount int            `json:"error_count"`
}

// ComplianceAlert is raised when an escalated mention carries legal or
// reputational risk that warrants a human look before any reply goes out.
type ComplianceAlert struct {
	MentionURL string    `json:"mention_url"`
	Platform   string    `json:"platform"`
	Author     string    `json:"author"`
	RiskLevel  string    `json:"risk_level"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
}
