package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
)

const (
	// defaultMaxRetries bounds retries of read-only calls.
	defaultMaxRetries = 3
	// pageSize is the result cap requested from the store. Callers cap
	// again after post-filtering, so there is no point asking for more.
	pageSize = 25
)

// HTTPClient implements Client against the store's REST API.
type HTTPClient struct {
	http       *resty.Client
	maxRetries uint64
}

// Opts holds parameters for creating an HTTPClient.
type Opts struct {
	BaseURL    string
	Token      string
	APIVersion string        // sent as the Notion-Version header
	Timeout    time.Duration // per-request timeout (default 10s)
	MaxRetries int           // read retries (default 3)
	// Debug enables resty's request/response tracing.
	Debug bool
}

// NewHTTPClient creates an HTTPClient.
func NewHTTPClient(opts Opts) (*HTTPClient, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("docstore: base URL is required")
	}
	if opts.Token == "" {
		return nil, fmt.Errorf("docstore: token is required")
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	hc := resty.New().
		SetBaseURL(opts.BaseURL).
		SetAuthToken(opts.Token).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetDebug(opts.Debug)
	if opts.APIVersion != "" {
		hc.SetHeader("Notion-Version", opts.APIVersion)
	}

	return &HTTPClient{http: hc, maxRetries: uint64(retries)}, nil
}

// --- wire types ---

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type richTextValue struct {
	Content string `json:"content"`
}

type richText struct {
	Type      string         `json:"type,omitempty"`
	PlainText string         `json:"plain_text,omitempty"`
	Text      *richTextValue `json:"text,omitempty"`
}

// plain concatenates a rich text array into a plain string.
func plain(parts []richText) string {
	var s string
	for _, p := range parts {
		if p.PlainText != "" {
			s += p.PlainText
		} else if p.Text != nil {
			s += p.Text.Content
		}
	}
	return s
}

type searchRequest struct {
	Query    string        `json:"query,omitempty"`
	Filter   *searchFilter `json:"filter,omitempty"`
	PageSize int           `json:"page_size,omitempty"`
}

type searchFilter struct {
	Property string `json:"property"`
	Value    string `json:"value"`
}

type searchResponse struct {
	Results []searchResultWire `json:"results"`
}

type searchResultWire struct {
	Object string     `json:"object"`
	ID     string     `json:"id"`
	Title  []richText `json:"title"`
}

type queryRequest struct {
	Filter   *titleFilter `json:"filter,omitempty"`
	PageSize int          `json:"page_size,omitempty"`
}

type titleFilter struct {
	Property string         `json:"property"`
	Title    titleCondition `json:"title"`
}

type titleCondition struct {
	Contains string `json:"contains"`
}

type queryResponse struct {
	Results []recordWire `json:"results"`
}

type recordWire struct {
	ID         string                      `json:"id"`
	Properties map[string]recordProperties `json:"properties"`
}

type recordProperties struct {
	Type  string     `json:"type"`
	Title []richText `json:"title"`
}

type createPageRequest struct {
	Parent     pageParent                `json:"parent"`
	Properties map[string]map[string]any `json:"properties"`
}

type pageParent struct {
	DatabaseID string `json:"database_id"`
}

type createPageResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type appendRequest struct {
	Children []map[string]any `json:"children"`
}

// --- Client implementation ---

// Search finds entities of the given kind matching query. An empty query
// returns the store's default listing. Retried on transient failures.
func (c *HTTPClient) Search(ctx context.Context, query, kind string) ([]SearchResult, error) {
	req := searchRequest{Query: query, PageSize: pageSize}
	if kind != "" {
		req.Filter = &searchFilter{Property: "object", Value: kind}
	}

	var out searchResponse
	err := c.retryRead(ctx, func() error {
		return c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
			return r.SetBody(req).SetResult(&out).Post("/v1/search")
		})
	})
	if err != nil {
		return nil, fmt.Errorf("docstore: search: %w", err)
	}

	results := make([]SearchResult, 0, len(out.Results))
	for _, r := range out.Results {
		results = append(results, SearchResult{
			ID:    r.ID,
			Title: plain(r.Title),
			Kind:  r.Object,
		})
	}
	return results, nil
}

// GetSchema retrieves a database's property definitions in declaration
// order. Retried on transient failures.
func (c *HTTPClient) GetSchema(ctx context.Context, databaseID string) (Schema, error) {
	var body []byte
	err := c.retryRead(ctx, func() error {
		return c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
			resp, err := r.Get("/v1/databases/" + databaseID)
			if resp != nil {
				body = resp.Body()
			}
			return resp, err
		})
	})
	if err != nil {
		return Schema{}, fmt.Errorf("docstore: get schema %s: %w", databaseID, err)
	}

	props, err := parseSchemaProperties(body)
	if err != nil {
		return Schema{}, fmt.Errorf("docstore: get schema %s: %w", databaseID, err)
	}
	return Schema{DatabaseID: databaseID, Properties: props}, nil
}

// QueryRecords lists records in the database whose title contains
// titleContains; an empty filter returns the unfiltered listing.
// titleProperty names the database's title property, needed both to build
// the filter and to read titles back out. Retried on transient failures.
func (c *HTTPClient) QueryRecords(ctx context.Context, databaseID, titleProperty, titleContains string) ([]Record, error) {
	req := queryRequest{PageSize: pageSize}
	if titleContains != "" {
		req.Filter = &titleFilter{
			Property: titleProperty,
			Title:    titleCondition{Contains: titleContains},
		}
	}

	var out queryResponse
	err := c.retryRead(ctx, func() error {
		return c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
			return r.SetBody(req).SetResult(&out).Post("/v1/databases/" + databaseID + "/query")
		})
	})
	if err != nil {
		return nil, fmt.Errorf("docstore: query records %s: %w", databaseID, err)
	}

	records := make([]Record, 0, len(out.Results))
	for _, r := range out.Results {
		records = append(records, Record{
			ID:    r.ID,
			Title: recordTitle(r, titleProperty),
		})
	}
	return records, nil
}

// recordTitle extracts a record's title, preferring the named property and
// falling back to whichever property is title-typed.
func recordTitle(r recordWire, titleProperty string) string {
	if p, ok := r.Properties[titleProperty]; ok && len(p.Title) > 0 {
		return plain(p.Title)
	}
	for _, p := range r.Properties {
		if p.Type == PropertyTitle {
			return plain(p.Title)
		}
	}
	return ""
}

// CreateRecord creates a page in the database. Never retried: a transient
// failure after the store accepted the write would duplicate the record.
func (c *HTTPClient) CreateRecord(ctx context.Context, req CreateRecordRequest) (CreatedRecord, error) {
	props := map[string]map[string]any{
		req.TitleProperty: {
			"title": []map[string]any{
				{"text": map[string]any{"content": req.Title}},
			},
		},
	}
	if req.RelationProperty != "" && req.ParentID != "" {
		props[req.RelationProperty] = map[string]any{
			"relation": []map[string]any{{"id": req.ParentID}},
		}
	}

	var out createPageResponse
	err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(createPageRequest{
			Parent:     pageParent{DatabaseID: req.DatabaseID},
			Properties: props,
		}).SetResult(&out).Post("/v1/pages")
	})
	if err != nil {
		return CreatedRecord{}, fmt.Errorf("docstore: create record: %w", err)
	}
	return CreatedRecord{ID: out.ID, URL: out.URL}, nil
}

// AppendBlocks appends content blocks to a record. Never retried.
func (c *HTTPClient) AppendBlocks(ctx context.Context, recordID string, blocks []Block) error {
	if len(blocks) == 0 {
		return nil
	}

	children := make([]map[string]any, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case BlockParagraph:
			children = append(children, map[string]any{
				"object": "block",
				"type":   "paragraph",
				"paragraph": map[string]any{
					"rich_text": []map[string]any{
						{"type": "text", "text": map[string]any{"content": b.Text}},
					},
				},
			})
		case BlockBookmark:
			children = append(children, map[string]any{
				"object":   "block",
				"type":     "bookmark",
				"bookmark": map[string]any{"url": b.URL},
			})
		default:
			return fmt.Errorf("docstore: append blocks: unknown block type %q", b.Type)
		}
	}

	err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(appendRequest{Children: children}).Patch("/v1/blocks/" + recordID + "/children")
	})
	if err != nil {
		return fmt.Errorf("docstore: append blocks: %w", err)
	}
	return nil
}

// do runs a single request and normalizes non-2xx responses into *APIError.
func (c *HTTPClient) do(ctx context.Context, send func(*resty.Request) (*resty.Response, error)) error {
	var apiErr wireError
	resp, err := send(c.http.R().SetContext(ctx).SetError(&apiErr))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &APIError{Status: resp.StatusCode(), Code: apiErr.Code, Message: apiErr.Message}
	}
	return nil
}

// retryRead retries op with exponential backoff for transient failures.
// Permanent API errors (4xx other than 429) abort immediately.
func (c *HTTPClient) retryRead(ctx context.Context, op func() error) error {
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
}
