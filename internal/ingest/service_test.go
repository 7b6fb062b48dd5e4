package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/contentops/social-listening-bot/internal/config"
	"github.com/contentops/social-listening-bot/internal/models"
	"github.com/contentops/social-listening-bot/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockWorkspace is a mock implementation of the workspace client
type MockWorkspace struct {
	mock.Mock
}

func (m *MockWorkspace) QueryDatabase(ctx context.Context, databaseID string, query workspace.Query) ([]workspace.Record, error) {
	args := m.Called(ctx, databaseID, query)
	return args.Get(0).([]workspace.Record), args.Error(1)
}

func (m *MockWorkspace) GetPage(ctx context.Context, pageID string) (*workspace.Record, error) {
	args := m.Called(ctx, pageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workspace.Record), args.Error(1)
}

func (m *MockWorkspace) CreatePage(ctx context.Context, databaseID string, properties map[string]any) (string, error) {
	args := m.Called(ctx, databaseID, properties)
	return args.String(0), args.Error(1)
}

func (m *MockWorkspace) UpdatePage(ctx context.Context, pageID string, properties map[string]any) error {
	args := m.Called(ctx, pageID, properties)
	return args.Error(0)
}

func (m *MockWorkspace) GetDatabase(ctx context.Context, databaseID string) (*workspace.Database, error) {
	args := m.Called(ctx, databaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workspace.Database), args.Error(1)
}

// MockArchive is a mock implementation of the archive storage
type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Store(name string, data []byte) error {
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockArchive) Retrieve(name string) ([]byte, error) {
	args := m.Called(name)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockArchive) List(prefix string) ([]string, error) {
	args := m.Called(prefix)
	return args.Get(0).([]string), args.Error(1)
}

const validPayload = `{
	"platform": "Reddit",
	"url": "https://reddit.com/r/realestate/1",
	"text": "Anyone know a hard money lender in Tampa?",
	"author": "u/flipper",
	"created_at": "2026-08-19T14:00:00Z",
	"source_query": "hard money lender"
}`

func ingestTestSetup(t *testing.T) (*config.Config, *MockWorkspace, *Service) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		MentionsDBID: "mentions-db",
		InboxDir:     filepath.Join(dir, "inbox"),
		ProcessedDir: filepath.Join(dir, "processed"),
	}
	require.NoError(t, os.MkdirAll(cfg.InboxDir, 0o755))

	ws := &MockWorkspace{}
	service := NewService(cfg, ws, nil)
	service.now = func() time.Time { return time.Date(2026, 8, 20, 7, 0, 0, 0, time.UTC) }
	return cfg, ws, service
}

func writeInbox(t *testing.T, cfg *config.Config, name, content string) string {
	t.Helper()
	path := filepath.Join(cfg.InboxDir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_CreatesMentionAndMovesFile(t *testing.T) {
	cfg, ws, service := ingestTestSetup(t)
	writeInbox(t, cfg, "mention-001.json", validPayload)

	// No record with this fingerprint yet.
	ws.On("QueryDatabase", mock.Anything, "mentions-db", mock.MatchedBy(func(q workspace.Query) bool {
		filter, ok := q.Filter["rich_text"].(map[string]any)
		return ok && filter["equals"] == "Reddit|https://reddit.com/r/realestate/1"
	})).Return([]workspace.Record{}, nil).Once()

	ws.On("CreatePage", mock.Anything, "mentions-db", mock.MatchedBy(func(props map[string]any) bool {
		_, hasTitle := props[PropMention]
		_, hasFingerprint := props[PropFingerprint]
		_, hasDetected := props[PropDetectedAt]
		return hasTitle && hasFingerprint && hasDetected
	})).Return("mention-1", nil).Once()

	require.NoError(t, service.Run(context.Background()))

	assert.NoFileExists(t, filepath.Join(cfg.InboxDir, "mention-001.json"))
	assert.FileExists(t, filepath.Join(cfg.ProcessedDir, "mention-001.json"))
	ws.AssertExpectations(t)
}

func TestRun_DuplicateFingerprintSkipsCreate(t *testing.T) {
	cfg, ws, service := ingestTestSetup(t)
	writeInbox(t, cfg, "mention-001.json", validPayload)

	existing := workspace.Record{ID: "mention-1"}
	ws.On("QueryDatabase", mock.Anything, "mentions-db", mock.Anything).
		Return([]workspace.Record{existing}, nil).Once()

	require.NoError(t, service.Run(context.Background()))

	// Duplicate is still moved out of the inbox, just not created.
	ws.AssertNotCalled(t, "CreatePage", mock.Anything, mock.Anything, mock.Anything)
	assert.FileExists(t, filepath.Join(cfg.ProcessedDir, "mention-001.json"))
}

func TestRun_InvalidPayloadStaysInInbox(t *testing.T) {
	cfg, ws, service := ingestTestSetup(t)
	writeInbox(t, cfg, "broken.json", `{"platform": "Reddit"`)
	writeInbox(t, cfg, "missing-author.json", `{
		"platform": "Reddit",
		"url": "https://reddit.com/1",
		"text": "hello",
		"created_at": "2026-08-19T14:00:00Z"
	}`)

	require.NoError(t, service.Run(context.Background()))

	// Bad payloads are left in place for inspection, nothing is created.
	assert.FileExists(t, filepath.Join(cfg.InboxDir, "broken.json"))
	assert.FileExists(t, filepath.Join(cfg.InboxDir, "missing-author.json"))
	ws.AssertNotCalled(t, "QueryDatabase", mock.Anything, mock.Anything, mock.Anything)
	ws.AssertNotCalled(t, "CreatePage", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_ArchivesPayload(t *testing.T) {
	cfg, ws, service := ingestTestSetup(t)
	archive := &MockArchive{}
	service.archive = archive
	writeInbox(t, cfg, "mention-001.json", validPayload)

	ws.On("QueryDatabase", mock.Anything, "mentions-db", mock.Anything).
		Return([]workspace.Record{}, nil).Once()
	ws.On("CreatePage", mock.Anything, "mentions-db", mock.Anything).Return("mention-1", nil).Once()
	archive.On("Store", mock.MatchedBy(func(name string) bool {
		return filepath.Base(name) == "mention-001.json"
	}), []byte(validPayload)).Return(nil).Once()

	require.NoError(t, service.Run(context.Background()))
	archive.AssertExpectations(t)
}

func TestRun_EmptyInbox(t *testing.T) {
	_, ws, service := ingestTestSetup(t)
	require.NoError(t, service.Run(context.Background()))
	ws.AssertNotCalled(t, "QueryDatabase", mock.Anything, mock.Anything, mock.Anything)
}

func TestValidateMention_RequiredFields(t *testing.T) {
	valid := models.Mention{
		Platform:  "Reddit",
		URL:       "https://reddit.com/1",
		Text:      "hello",
		Author:    "u/flipper",
		CreatedAt: "2026-08-19T14:00:00Z",
	}
	assert.NoError(t, validateMention(valid))

	tests := []struct {
		name   string
		mutate func(*models.Mention)
	}{
		{name: "Missing platform", mutate: func(m *models.Mention) { m.Platform = "" }},
		{name: "Missing url", mutate: func(m *models.Mention) { m.URL = "" }},
		{name: "Missing text", mutate: func(m *models.Mention) { m.Text = "" }},
		{name: "Missing author", mutate: func(m *models.Mention) { m.Author = "" }},
		{name: "Missing created_at", mutate: func(m *models.Mention) { m.CreatedAt = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid
			tt.mutate(&m)
			assert.Error(t, validateMention(m))
		})
	}
}
