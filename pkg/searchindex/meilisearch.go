package searchindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/meilisearch/meilisearch-go"
)

// MeilisearchConfig configures the networked Meilisearch-backed Provider.
type MeilisearchConfig struct {
	Host      string
	APIKey    string
	IndexName string
}

type meiliProvider struct {
	client meilisearch.ServiceManager
	index  meilisearch.IndexManager
}

// NewMeilisearchProvider connects to a Meilisearch instance and ensures the
// configured index exists with "id" as its primary key.
func NewMeilisearchProvider(cfg MeilisearchConfig) (Provider, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("meilisearch host required")
	}
	if cfg.IndexName == "" {
		return nil, fmt.Errorf("meilisearch index name required")
	}

	client := meilisearch.New(cfg.Host, meilisearch.WithAPIKey(cfg.APIKey))

	if _, err := client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        cfg.IndexName,
		PrimaryKey: "id",
	}); err != nil {
		// Index-already-exists is not fatal; any other setup failure is.
		if !isMeiliAPIError(err, "index_already_exists") {
			return nil, fmt.Errorf("failed to create meilisearch index: %w", err)
		}
	}

	return &meiliProvider{
		client: client,
		index:  client.Index(cfg.IndexName),
	}, nil
}

// isMeiliAPIError reports whether err is a Meilisearch API error carrying
// the given error code (e.g. "index_already_exists", "document_not_found").
func isMeiliAPIError(err error, code string) bool {
	var apiErr *meilisearch.Error
	return errors.As(err, &apiErr) && apiErr.MeilisearchApiError.Code == code
}

func (p *meiliProvider) Name() string { return "meilisearch" }

func toMeiliDoc(doc Document) map[string]interface{} {
	out := make(map[string]interface{}, len(doc.Fields)+1)
	for k, v := range doc.Fields {
		out[k] = v
	}
	out["id"] = doc.ID
	return out
}

func (p *meiliProvider) Upsert(ctx context.Context, doc Document) error {
	if _, err := p.index.AddDocumentsWithContext(ctx, []map[string]interface{}{toMeiliDoc(doc)}, nil); err != nil {
		return &RequestError{Op: "upsert", Err: err}
	}
	return nil
}

func (p *meiliProvider) BulkUpsert(ctx context.Context, docs []Document) error {
	batch := make([]map[string]interface{}, len(docs))
	for i, doc := range docs {
		batch[i] = toMeiliDoc(doc)
	}
	if _, err := p.index.AddDocumentsWithContext(ctx, batch, nil); err != nil {
		return &RequestError{Op: "bulk_upsert", Err: err}
	}
	return nil
}

func (p *meiliProvider) Get(ctx context.Context, id string) (map[string]interface{}, error) {
	var doc map[string]interface{}
	if err := p.index.GetDocumentWithContext(ctx, id, nil, &doc); err != nil {
		if isMeiliAPIError(err, "document_not_found") {
			return nil, &NotFoundError{ID: id}
		}
		return nil, &RequestError{Op: "get", Err: err}
	}
	return doc, nil
}

func (p *meiliProvider) Count(ctx context.Context) (int64, error) {
	stats, err := p.index.GetStatsWithContext(ctx)
	if err != nil {
		return 0, &RequestError{Op: "count", Err: err}
	}
	return stats.NumberOfDocuments, nil
}

func (p *meiliProvider) DeleteByQuery(ctx context.Context, field, value string) error {
	filter := fmt.Sprintf("%s = %q", field, value)
	if _, err := p.index.DeleteDocumentsByFilterWithContext(ctx, filter); err != nil {
		return &RequestError{Op: "delete_by_query", Err: err}
	}
	return nil
}

func (p *meiliProvider) Scroll(ctx context.Context, fn func(id string, fields map[string]interface{}) bool) error {
	const pageSize = 500

	for offset := int64(0); ; offset += pageSize {
		var page meilisearch.DocumentsResult
		if err := p.index.GetDocumentsWithContext(ctx, &meilisearch.DocumentsQuery{
			Offset: offset,
			Limit:  pageSize,
		}, &page); err != nil {
			return &RequestError{Op: "scroll", Err: err}
		}
		if len(page.Results) == 0 {
			return nil
		}

		for _, hit := range page.Results {
			fields := make(map[string]interface{}, len(hit))
			if err := hit.DecodeInto(&fields); err != nil {
				return &RequestError{Op: "scroll", Err: err}
			}
			id, _ := fields["id"].(string)
			if !fn(id, fields) {
				return nil
			}
		}
	}
}

func (p *meiliProvider) Close() error {
	return nil
}
