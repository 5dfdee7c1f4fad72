package searchindex

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
)

// BleveConfig configures the embedded Bleve-backed Provider.
type BleveConfig struct {
	IndexPath string // on-disk path for the index; empty uses an in-memory index
}

// bleveProvider implements Provider on top of an embedded Bleve index. Full
// field sets are kept in Bleve's internal key/value store (SetInternal /
// GetInternal) alongside the searchable document, since Bleve's own stored
// fields are awkward to reassemble into an arbitrary nested map on read.
type bleveProvider struct {
	index bleve.Index
}

// NewBleveProvider opens or creates the embedded index at cfg.IndexPath.
func NewBleveProvider(cfg BleveConfig) (Provider, error) {
	var idx bleve.Index
	var err error

	if cfg.IndexPath == "" {
		idx, err = bleve.NewMemOnly(bleve.NewIndexMapping())
	} else {
		idx, err = bleve.Open(cfg.IndexPath)
		if err == bleve.ErrorIndexPathDoesNotExist {
			if mkErr := os.MkdirAll(cfg.IndexPath, 0o755); mkErr != nil {
				return nil, fmt.Errorf("failed to create bleve index directory: %w", mkErr)
			}
			idx, err = bleve.New(cfg.IndexPath, bleve.NewIndexMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open bleve index: %w", err)
	}

	return &bleveProvider{index: idx}, nil
}

func (p *bleveProvider) Name() string { return "bleve" }

func internalKey(id string) []byte {
	return []byte("doc:" + id)
}

func (p *bleveProvider) Upsert(ctx context.Context, doc Document) error {
	if err := p.index.Index(doc.ID, doc.Fields); err != nil {
		return &RequestError{Op: "upsert", Err: err}
	}
	blob, err := json.Marshal(doc.Fields)
	if err != nil {
		return &RequestError{Op: "upsert", Err: err}
	}
	if err := p.index.SetInternal(internalKey(doc.ID), blob); err != nil {
		return &RequestError{Op: "upsert", Err: err}
	}
	return nil
}

func (p *bleveProvider) BulkUpsert(ctx context.Context, docs []Document) error {
	batch := p.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, doc.Fields); err != nil {
			return &RequestError{Op: "bulk_upsert", Err: err}
		}
		blob, err := json.Marshal(doc.Fields)
		if err != nil {
			return &RequestError{Op: "bulk_upsert", Err: err}
		}
		batch.SetInternal(internalKey(doc.ID), blob)
	}
	if err := p.index.Batch(batch); err != nil {
		return &RequestError{Op: "bulk_upsert", Err: err}
	}
	return nil
}

func (p *bleveProvider) Get(ctx context.Context, id string) (map[string]interface{}, error) {
	blob, err := p.index.GetInternal(internalKey(id))
	if err != nil {
		return nil, &RequestError{Op: "get", Err: err}
	}
	if blob == nil {
		return nil, &NotFoundError{ID: id}
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(blob, &fields); err != nil {
		return nil, &RequestError{Op: "get", Err: err}
	}
	return fields, nil
}

func (p *bleveProvider) Count(ctx context.Context) (int64, error) {
	n, err := p.index.DocCount()
	if err != nil {
		return 0, &RequestError{Op: "count", Err: err}
	}
	return int64(n), nil
}

func (p *bleveProvider) DeleteByQuery(ctx context.Context, field, value string) error {
	q := bleve.NewMatchQuery(value)
	q.SetField(field)

	req := bleve.NewSearchRequest(q)
	req.Size = 10000

	result, err := p.index.Search(req)
	if err != nil {
		return &RequestError{Op: "delete_by_query", Err: err}
	}

	for _, hit := range result.Hits {
		if err := p.index.Delete(hit.ID); err != nil {
			return &RequestError{Op: "delete_by_query", Err: err}
		}
		if err := p.index.DeleteInternal(internalKey(hit.ID)); err != nil {
			return &RequestError{Op: "delete_by_query", Err: err}
		}
	}
	return nil
}

func (p *bleveProvider) Scroll(ctx context.Context, fn func(id string, fields map[string]interface{}) bool) error {
	const pageSize = 500

	q := bleve.NewMatchAllQuery()
	for from := 0; ; from += pageSize {
		req := bleve.NewSearchRequest(q)
		req.From = from
		req.Size = pageSize

		result, err := p.index.Search(req)
		if err != nil {
			return &RequestError{Op: "scroll", Err: err}
		}
		if len(result.Hits) == 0 {
			return nil
		}

		for _, hit := range result.Hits {
			fields, err := p.Get(ctx, hit.ID)
			if err != nil {
				return err
			}
			if !fn(hit.ID, fields) {
				return nil
			}
		}
	}
}

func (p *bleveProvider) Close() error {
	return p.index.Close()
}
