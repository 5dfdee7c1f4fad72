// Package replaycache implements the regression replay cache: a
// process-local LRU of testcase_id -> recorded services snapshot, backing
// a set of HTTP mock endpoints that serve previously recorded external
// service responses during a replay run.
package replaycache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru"

	"github.com/ascendops/inquiry-pipeline/pkg/searchindex"
)

// Cache is the bounded, process-local memo of recorded service snapshots.
// A miss fetches the "services" field from the search index by document
// id (the go_transaction_id a testcase was upserted under) and memoizes
// it.
type Cache struct {
	lru    *lru.Cache
	index  searchindex.Provider
	logger hclog.Logger
}

// NewCache builds a replay cache bounded to size entries.
func NewCache(size int, index searchindex.Provider, logger hclog.Logger) (*Cache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to construct lru cache: %w", err)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Cache{lru: c, index: index, logger: logger.Named("replay-cache")}, nil
}

// GetServices returns the recorded services snapshot for testcaseID,
// fetching it from the search index on a cache miss.
func (c *Cache) GetServices(ctx context.Context, testcaseID string) (map[string]interface{}, error) {
	if v, ok := c.lru.Get(testcaseID); ok {
		services, _ := v.(map[string]interface{})
		return services, nil
	}

	doc, err := c.index.Get(ctx, testcaseID)
	if err != nil {
		c.logger.Error("failed to fetch testcase from search index", "testcase_id", testcaseID, "error", err)
		return nil, err
	}

	raw, _ := doc["services"].(string)
	var services map[string]interface{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &services); err != nil {
			return nil, fmt.Errorf("failed to parse recorded services for %s: %w", testcaseID, err)
		}
	}

	c.lru.Add(testcaseID, services)
	return services, nil
}
