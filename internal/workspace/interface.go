package workspace

import "context"

// WorkspaceInterface defines the contract for the hosted record store:
// filtered/paginated queries, record reads, creates, updates, and collection
// schema introspection.
type WorkspaceInterface interface {
	QueryDatabase(ctx context.Context, databaseID string, query Query) ([]Record, error)
	GetPage(ctx context.Context, pageID string) (*Record, error)
	CreatePage(ctx context.Context, databaseID string, properties map[string]any) (string, error)
	UpdatePage(ctx context.Context, pageID string, properties map[string]any) error
	GetDatabase(ctx context.Context, databaseID string) (*Database, error)
}
