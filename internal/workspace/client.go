// Package workspace implements the client for the hosted collaboration tool
// that serves as the pipeline's durable store. Records live in collections
// ("databases") with typed properties; the pipeline reads and writes plain
// semantic values through the extraction helpers and property builders in
// props.go.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/contentops/social-listening-bot/internal/retry"
	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	apiVersion     = "2022-06-28"
)

// Query describes a filtered database query. Filter and Sorts carry the
// store's native JSON filter shapes; PageSize limits a single page (0 means
// store default). When Paginate is set the cursor is followed until
// exhaustion, otherwise only the first page is returned.
type Query struct {
	Filter   map[string]any
	Sorts    []map[string]any
	PageSize int
	Paginate bool
}

// Record is one stored record with its typed properties.
type Record struct {
	ID         string              `json:"id"`
	Properties map[string]Property `json:"properties"`
}

// Prop returns the named property, or a nil Property whose extractors all
// yield safe zero values.
func (r *Record) Prop(name string) Property {
	return r.Properties[name]
}

// Database is a collection schema: property names mapped to their types.
type Database struct {
	ID         string                  `json:"id"`
	Properties map[string]PropertySpec `json:"properties"`
}

// PropertySpec is the declared type of one collection property.
type PropertySpec struct {
	Type string `json:"type"`
}

// HasProperty reports whether the collection declares the named property.
func (d *Database) HasProperty(name string) bool {
	_, ok := d.Properties[name]
	return ok
}

// TitleProperty returns the name of the collection's title property. Every
// collection has exactly one; a schema without it is unusable as a routing
// target.
func (d *Database) TitleProperty() (string, error) {
	for name, spec := range d.Properties {
		if spec.Type == "title" {
			return name, nil
		}
	}
	return "", fmt.Errorf("no title property found in database %s", d.ID)
}

// MissingProperties returns the required property names the collection does
// not declare, for preflight checks at process start.
func (d *Database) MissingProperties(required []string) []string {
	var missing []string
	for _, name := range required {
		if !d.HasProperty(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// apiError is a terminal HTTP response from the record store.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("workspace API returned status %d: %s", e.StatusCode, e.Body)
}

func (e *apiError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client talks to the record store over HTTP with bounded retries on
// transient failures.
type Client struct {
	client *resty.Client
	policy retry.Policy
}

// Ensure Client implements WorkspaceInterface
var _ WorkspaceInterface = (*Client)(nil)

// NewClient creates a record store client authenticated with the given token.
func NewClient(token string) *Client {
	policy := retry.DefaultPolicy()
	policy.Retryable = func(err error) bool {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			return apiErr.retryable()
		}
		return true
	}
	return &Client{
		client: resty.New().
			SetBaseURL(defaultBaseURL).
			SetTimeout(60 * time.Second).
			SetHeader("Authorization", "Bearer "+token).
			SetHeader("Content-Type", "application/json").
			SetHeader("Notion-Version", apiVersion),
		policy: policy,
	}
}

// SetBaseURL overrides the store base URL.
func (c *Client) SetBaseURL(url string) *Client {
	c.client.SetBaseURL(url)
	return c
}

type queryResponse struct {
	Results    []Record `json:"results"`
	HasMore    bool     `json:"has_more"`
	NextCursor string   `json:"next_cursor"`
}

// QueryDatabase runs a filtered query against a collection, following the
// cursor across pages when the query asks for full pagination.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, query Query) ([]Record, error) {
	payload := map[string]any{}
	if query.Filter != nil {
		payload["filter"] = query.Filter
	}
	if len(query.Sorts) > 0 {
		payload["sorts"] = query.Sorts
	}
	if query.PageSize > 0 {
		payload["page_size"] = query.PageSize
	}

	var all []Record
	cursor := ""
	for {
		body := map[string]any{}
		for k, v := range payload {
			body[k] = v
		}
		if cursor != "" {
			body["start_cursor"] = cursor
		}

		var page queryResponse
		err := c.do(ctx, "database query", func() (*resty.Response, error) {
			return c.client.R().
				SetContext(ctx).
				SetBody(body).
				SetResult(&page).
				Post(fmt.Sprintf("/databases/%s/query", databaseID))
		})
		if err != nil {
			return nil, err
		}

		all = append(all, page.Results...)
		if !query.Paginate || !page.HasMore {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

// GetPage fetches one record by id.
func (c *Client) GetPage(ctx context.Context, pageID string) (*Record, error) {
	var record Record
	err := c.do(ctx, "page fetch", func() (*resty.Response, error) {
		return c.client.R().
			SetContext(ctx).
			SetResult(&record).
			Get("/pages/" + pageID)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

type createResponse struct {
	ID string `json:"id"`
}

// CreatePage creates a record in a collection and returns its id.
func (c *Client) CreatePage(ctx context.Context, databaseID string, properties map[string]any) (string, error) {
	var created createResponse
	err := c.do(ctx, "page create", func() (*resty.Response, error) {
		return c.client.R().
			SetContext(ctx).
			SetBody(map[string]any{
				"parent":     map[string]any{"database_id": databaseID},
				"properties": properties,
			}).
			SetResult(&created).
			Post("/pages")
	})
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

// UpdatePage patches properties on an existing record.
func (c *Client) UpdatePage(ctx context.Context, pageID string, properties map[string]any) error {
	return c.do(ctx, "page update", func() (*resty.Response, error) {
		return c.client.R().
			SetContext(ctx).
			SetBody(map[string]any{"properties": properties}).
			Patch("/pages/" + pageID)
	})
}

// GetDatabase fetches a collection schema.
func (c *Client) GetDatabase(ctx context.Context, databaseID string) (*Database, error) {
	var db Database
	err := c.do(ctx, "database fetch", func() (*resty.Response, error) {
		return c.client.R().
			SetContext(ctx).
			SetResult(&db).
			Get("/databases/" + databaseID)
	})
	if err != nil {
		return nil, err
	}
	return &db, nil
}

func (c *Client) do(ctx context.Context, label string, call func() (*resty.Response, error)) error {
	return c.policy.Do(ctx, label, func() error {
		resp, err := call()
		if err != nil {
			return err
		}
		if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
			return &apiError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
		}
		return nil
	})
}
