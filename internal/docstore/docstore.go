// Package docstore provides a client for a Notion-compatible structured
// document store: databases with typed property schemas, pages within them,
// and content blocks appended to pages.
package docstore

import (
	"context"
	"fmt"
)

// Kind values accepted by Search.
const (
	KindDatabase = "database"
	KindPage     = "page"
)

// Block types accepted by AppendBlocks.
const (
	BlockParagraph = "paragraph"
	BlockBookmark  = "bookmark"
)

// Property types that matter to callers resolving a database schema.
const (
	PropertyTitle    = "title"
	PropertyRelation = "relation"
)

// SearchResult is one entity returned by Search.
type SearchResult struct {
	ID    string
	Title string
	Kind  string
}

// Property is a single named, typed property of a database schema.
// RelationTargetID is set only for relation-typed properties.
type Property struct {
	Name             string
	Type             string
	RelationTargetID string
}

// Schema is a database's property definitions, in declaration order.
// The store serializes properties as a JSON object; the client preserves
// member order so that callers can disambiguate deterministically.
type Schema struct {
	DatabaseID string
	Properties []Property
}

// Record is a page within a database, reduced to what callers display.
type Record struct {
	ID    string
	Title string
}

// CreateRecordRequest describes a page to create.
type CreateRecordRequest struct {
	DatabaseID    string
	TitleProperty string // schema property name holding the title
	Title         string
	// RelationProperty/ParentID are both set or both empty.
	RelationProperty string
	ParentID         string
}

// CreatedRecord is the outcome of CreateRecord.
type CreatedRecord struct {
	ID  string
	URL string
}

// Block is a content block to append to a record.
type Block struct {
	Type string // BlockParagraph or BlockBookmark
	Text string // paragraph content
	URL  string // bookmark target
}

// Client is the document store surface Notary depends on. Search, GetSchema
// and QueryRecords are read-only and safe to retry; CreateRecord and
// AppendBlocks are writes and must never be retried automatically.
type Client interface {
	Search(ctx context.Context, query, kind string) ([]SearchResult, error)
	GetSchema(ctx context.Context, databaseID string) (Schema, error)
	QueryRecords(ctx context.Context, databaseID, titleProperty, titleContains string) ([]Record, error)
	CreateRecord(ctx context.Context, req CreateRecordRequest) (CreatedRecord, error)
	AppendBlocks(ctx context.Context, recordID string, blocks []Block) error
}

// APIError is a non-2xx response from the store.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("docstore: api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("docstore: api error %d: %s", e.Status, e.Message)
}

// Retryable reports whether the error is transient: rate limiting or a
// server-side failure. Client errors (4xx) are permanent.
func (e *APIError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}
