package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the pipeline, loaded once at process
// start and passed into each component. No component reads environment state
// directly.
type Config struct {
	// Server configuration
	Port  string
	Debug bool
	// Optional log file; when set, logs are teed to it in addition to stdout.
	LogFile string

	// Workspace (record store) credentials and collection ids
	WorkspaceToken string
	MentionsDBID   string
	LeadsDBID      string
	ReputationDBID string
	ContentDBID    string

	// Completion endpoint credentials and model names
	OpenAIAPIKey   string
	ModelTriage    string
	ModelHigh      string
	ModelSynthesis string
	ModelContent   string

	// Triage run tuning
	TriagePageSize int
	RecordDelay    time.Duration

	// Synthesis run tuning
	SynthWindowHours int
	SynthMaxMentions int
	SynthTopicsMax   int

	// Draft generation tuning
	MaxDraftsPerRun int

	// Inbox ingestion directories
	InboxDir     string
	ProcessedDir string

	// Azure archive configuration (optional)
	StorageAccount   string
	StorageContainer string

	// Notification configuration (optional)
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string

	// Cron schedules (with-seconds expressions)
	IngestSchedule    string
	TriageSchedule    string
	SynthesisSchedule string
	DraftsSchedule    string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:    getEnv("PORT", "8080"),
		Debug:   getBoolEnv("DEBUG", false),
		LogFile: getEnv("LOG_FILE", ""),

		WorkspaceToken: getEnv("NOTION_TOKEN", ""),
		MentionsDBID:   getEnv("MENTIONS_DB_ID", ""),
		LeadsDBID:      getEnv("LEADS_DB_ID", ""),
		ReputationDBID: getEnv("REPUTATION_DB_ID", ""),
		ContentDBID:    getEnv("CONTENT_DB_ID", ""),

		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		ModelTriage:    getEnv("OPENAI_MODEL_TRIAGE", "gpt-4o-mini"),
		ModelHigh:      getEnv("OPENAI_MODEL_HIGH", "gpt-4o"),
		ModelSynthesis: getEnv("MODEL_SYNTHESIS", "gpt-4o-mini"),
		ModelContent:   getEnv("OPENAI_MODEL_CONTENT", "gpt-4o"),

		TriagePageSize: getIntEnv("TRIAGE_PAGE_SIZE", 25),
		RecordDelay:    time.Duration(getIntEnv("RECORD_DELAY_MS", 250)) * time.Millisecond,

		SynthWindowHours: getIntEnv("SYNTH_WINDOW_HOURS", 24),
		SynthMaxMentions: getIntEnv("SYNTH_MAX_MENTIONS", 60),
		SynthTopicsMax:   getIntEnv("SYNTH_TOPICS_MAX", 3),

		MaxDraftsPerRun: getIntEnv("MAX_DRAFTS_PER_RUN", 5),

		InboxDir:     getEnv("INBOX_DIR", "inbox"),
		ProcessedDir: getEnv("PROCESSED_DIR", "processed"),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "mentions"),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),

		IngestSchedule:    getEnv("INGEST_SCHEDULE", "0 */15 * * * *"),
		TriageSchedule:    getEnv("TRIAGE_SCHEDULE", "0 5 * * * *"),
		SynthesisSchedule: getEnv("SYNTHESIS_SCHEDULE", "0 0 7 * * *"),
		DraftsSchedule:    getEnv("DRAFTS_SCHEDULE", "0 0 8 * * *"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validate rejects an incomplete configuration before the run touches any
// record.
func (c *Config) validate() error {
	if c.WorkspaceToken == "" {
		return fmt.Errorf("NOTION_TOKEN is required")
	}
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.MentionsDBID == "" {
		return fmt.Errorf("MENTIONS_DB_ID is required")
	}
	if c.LeadsDBID == "" || c.ReputationDBID == "" || c.ContentDBID == "" {
		return fmt.Errorf("LEADS_DB_ID, REPUTATION_DB_ID and CONTENT_DB_ID are all required")
	}
	if c.SynthTopicsMax < 1 {
		return fmt.Errorf("SYNTH_TOPICS_MAX must be at least 1")
	}
	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
