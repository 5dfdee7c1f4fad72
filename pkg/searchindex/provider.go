// Package searchindex is the shared search-index client: a pluggable
// document store used by the audit-log pipeline to upsert testcase
// snapshots and by the regression replay cache to fetch them back on a
// cache miss. Two backends are wired: Bleve (embedded, default) and
// Meilisearch (networked, alternate).
package searchindex

import "context"

// Document is a single upserted record: a set of JSON-marshalable fields
// keyed by id. The backend stores the whole field set (returned by Get) and
// indexes the fields so they can be queried (e.g. solution_id, case_code).
type Document struct {
	ID     string
	Fields map[string]interface{}
}

// Provider is the backend-agnostic search-index contract. Every
// operation is idempotent: upserting the same id twice replaces the prior
// document rather than erroring.
type Provider interface {
	Name() string

	// Upsert indexes or replaces a document.
	Upsert(ctx context.Context, doc Document) error

	// BulkUpsert indexes or replaces a set of documents in one batch.
	BulkUpsert(ctx context.Context, docs []Document) error

	// Get fetches a document's full field set by id. Returns a *NotFoundError
	// when no document with that id exists.
	Get(ctx context.Context, id string) (map[string]interface{}, error)

	// Count returns the total number of indexed documents.
	Count(ctx context.Context) (int64, error)

	// DeleteByQuery deletes every document whose field equals value.
	DeleteByQuery(ctx context.Context, field, value string) error

	// Scroll walks every indexed document, invoking fn for each. fn returns
	// false to stop the scroll early.
	Scroll(ctx context.Context, fn func(id string, fields map[string]interface{}) bool) error

	Close() error
}
