package drafts

import (
	"context"
	"strings"
	"testing"

	"github.com/contentops/social-listening-bot/internal/config"
	"github.com/contentops/social-listening-bot/internal/llm"
	"github.com/contentops/social-listening-bot/internal/workspace"
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

// MockCompletions is a mock implementation of the completion client
type MockCompletions struct {
	mock.Mock
}

func (m *MockCompletions) Complete(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func draftsTestConfig() *config.Config {
	return &config.Config{
		ContentDBID:     "content-db",
		MaxDraftsPerRun: 5,
		ModelContent:    "content-model",
	}
}

func opportunityRecord(id string) workspace.Record {
	return workspace.Record{
		ID: id,
		Properties: map[string]workspace.Property{
			PropTopic: {
				"type":  "title",
				"title": []any{map[string]any{"plain_text": "Cutting skip tracing costs"}},
			},
			PropAudience:       {"type": "select", "select": map[string]any{"name": "Operator"}},
			PropPlatformTarget: {"type": "select", "select": map[string]any{"name": "LinkedIn"}},
			PropStatus:         {"type": "status", "status": map[string]any{"name": statusReady}},
		},
	}
}

func TestRun_PersistsValidDraft(t *testing.T) {
	cfg := draftsTestConfig()
	ws := &MockWorkspace{}
	mockLLM := &MockCompletions{}
	service := NewService(cfg, ws, mockLLM)

	ws.On("QueryDatabase", mock.Anything, "content-db", mock.MatchedBy(func(q workspace.Query) bool {
		return q.PageSize == 5
	})).Return([]workspace.Record{opportunityRecord("opp-1")}, nil).Once()

	mockLLM.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return req.Model == "content-model" && req.MaxTokens == 4000
	})).Return(draftJSON(t, validDraft(1000)), nil).Once()

	ws.On("UpdatePage", mock.Anything, "opp-1", mock.MatchedBy(func(props map[string]any) bool {
		status, ok := props[PropStatus].(map[string]any)
		if !ok {
			return false
		}
		name := status["status"].(map[string]any)["name"]
		_, hasBody := props[PropDraftContent]
		return name == statusDone && hasBody
	})).Return(nil).Once()

	require.NoError(t, service.Run(context.Background()))
	ws.AssertExpectations(t)
	mockLLM.AssertExpectations(t)
}

func TestRun_InvalidDraftMarksFailed(t *testing.T) {
	cfg := draftsTestConfig()
	ws := &MockWorkspace{}
	mockLLM := &MockCompletions{}
	service := NewService(cfg, ws, mockLLM)

	ws.On("QueryDatabase", mock.Anything, "content-db", mock.Anything).
		Return([]workspace.Record{opportunityRecord("opp-1")}, nil).Once()

	// 100 words is far below the LinkedIn floor.
	mockLLM.On("Complete", mock.Anything, mock.Anything).
		Return(draftJSON(t, validDraft(100)), nil).Once()

	ws.On("UpdatePage", mock.Anything, "opp-1", map[string]any{
		PropStatus: workspace.Status(statusFailed),
	}).Return(nil).Once()

	require.NoError(t, service.Run(context.Background()))
	ws.AssertExpectations(t)
}

func TestRun_TruncatesOversizedBody(t *testing.T) {
	cfg := draftsTestConfig()
	ws := &MockWorkspace{}
	mockLLM := &MockCompletions{}
	service := NewService(cfg, ws, mockLLM)

	draft := validDraft(1000)
	ws.On("QueryDatabase", mock.Anything, "content-db", mock.Anything).
		Return([]workspace.Record{opportunityRecord("opp-1")}, nil).Once()
	mockLLM.On("Complete", mock.Anything, mock.Anything).Return(draftJSON(t, draft), nil).Once()

	ws.On("UpdatePage", mock.Anything, "opp-1", mock.MatchedBy(func(props map[string]any) bool {
		body, ok := props[PropDraftContent].(map[string]any)
		if !ok {
			return false
		}
		segments := body["rich_text"].([]map[string]any)
		content := segments[0]["text"].(map[string]any)["content"].(string)
		return len(content) <= maxDraftBodyLen && strings.HasPrefix(draft.Body, content)
	})).Return(nil).Once()

	require.NoError(t, service.Run(context.Background()))
	ws.AssertExpectations(t)
}

func TestRun_NoReadyOpportunities(t *testing.T) {
	cfg := draftsTestConfig()
	ws := &MockWorkspace{}
	service := NewService(cfg, ws, &MockCompletions{})

	ws.On("QueryDatabase", mock.Anything, "content-db", mock.Anything).
		Return([]workspace.Record{}, nil).Once()

	require.NoError(t, service.Run(context.Background()))
	ws.AssertNotCalled(t, "UpdatePage", mock.Anything, mock.Anything, mock.Anything)
}
