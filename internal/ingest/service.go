// Package ingest moves raw mention payloads from the filesystem inbox into
// the workspace, deduplicating on fingerprint (platform + url) so the same
// mention never produces two records.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/contentops/social-listening-bot/internal/config"
	"github.com/contentops/social-listening-bot/internal/models"
	"github.com/contentops/social-listening-bot/internal/storage"
	"github.com/contentops/social-listening-bot/internal/triage"
	"github.com/contentops/social-listening-bot/internal/workspace"
	"github.com/sirupsen/logrus"
)

const (
	PropMention     = "Mention"
	PropDetectedAt  = "Detected At"
	PropFingerprint = "Fingerprint"
)

// Service ingests inbox files into the mentions collection.
type Service struct {
	config  *config.Config
	ws      workspace.WorkspaceInterface
	archive storage.ArchiveInterface // optional
	now     func() time.Time
}

// NewService creates a new ingestion service. archive may be nil when no
// archive storage is configured.
func NewService(cfg *config.Config, ws workspace.WorkspaceInterface, archive storage.ArchiveInterface) *Service {
	return &Service{config: cfg, ws: ws, archive: archive, now: time.Now}
}

// Run ingests every inbox/*.json file in name order. Invalid payloads are
// logged and left in place; duplicates and created mentions are moved to the
// processed directory.
func (s *Service) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.config.ProcessedDir, 0o755); err != nil {
		return fmt.Errorf("failed to create processed directory: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(s.config.InboxDir, "*.json"))
	if err != nil {
		return fmt.Errorf("failed to list inbox: %w", err)
	}
	sort.Strings(files)

	if len(files) == 0 {
		logrus.Debug("No inbox files found")
		return nil
	}

	logrus.Infof("Ingesting %d inbox files", len(files))

	for _, path := range files {
		if err := s.ingestFile(ctx, path); err != nil {
			logrus.Errorf("SKIP inbox file %s: %v", filepath.Base(path), err)
		}
	}

	return nil
}

func (s *Service) ingestFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var mention models.Mention
	if err := json.Unmarshal(data, &mention); err != nil {
		return fmt.Errorf("invalid JSON payload: %w", err)
	}
	if err := validateMention(mention); err != nil {
		return err
	}

	fingerprint := mention.Fingerprint()

	exists, err := s.fingerprintExists(ctx, fingerprint)
	if err != nil {
		return err
	}

	if exists {
		logrus.Infof("DUPLICATE (skipping): %s | %s", fingerprint, filepath.Base(path))
	} else {
		pageID, err := s.createMention(ctx, mention, fingerprint)
		if err != nil {
			return err
		}
		logrus.Infof("CREATED mention %s | %s", pageID, fingerprint)
	}

	if s.archive != nil {
		if err := s.archive.Store(storage.BlobName(filepath.Base(path)), data); err != nil {
			logrus.Errorf("Failed to archive %s: %v", filepath.Base(path), err)
		}
	}

	dest := filepath.Join(s.config.ProcessedDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return fmt.Errorf("failed to move processed file: %w", err)
	}
	return nil
}

func validateMention(m models.Mention) error {
	switch {
	case m.Platform == "":
		return fmt.Errorf("mention payload missing platform")
	case m.URL == "":
		return fmt.Errorf("mention payload missing url")
	case m.Text == "":
		return fmt.Errorf("mention payload missing text")
	case m.Author == "":
		return fmt.Errorf("mention payload missing author")
	case m.CreatedAt == "":
		return fmt.Errorf("mention payload missing created_at")
	}
	return nil
}

func (s *Service) fingerprintExists(ctx context.Context, fingerprint string) (bool, error) {
	records, err := s.ws.QueryDatabase(ctx, s.config.MentionsDBID, workspace.Query{
		Filter: map[string]any{
			"property":  PropFingerprint,
			"rich_text": map[string]any{"equals": fingerprint},
		},
	})
	if err != nil {
		return false, fmt.Errorf("fingerprint lookup failed: %w", err)
	}
	return len(records) > 0, nil
}

func (s *Service) createMention(ctx context.Context, m models.Mention, fingerprint string) (string, error) {
	pageID, err := s.ws.CreatePage(ctx, s.config.MentionsDBID, map[string]any{
		PropMention:              workspace.Title(m.Title()),
		triage.PropPlatform:      workspace.Select(m.Platform),
		triage.PropURL:           workspace.URLValue(m.URL),
		triage.PropSourceText:    workspace.RichText(m.Text),
		triage.PropAuthor:        workspace.RichText(m.Author),
		triage.PropPostCreatedAt: workspace.DateString(m.CreatedAt),
		PropDetectedAt:           workspace.Date(s.now()),
		triage.PropSourceQuery:   workspace.RichText(m.SourceQuery),
		PropFingerprint:          workspace.RichText(fingerprint),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create mention record: %w", err)
	}
	return pageID, nil
}
