package objectstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// defaultAllowlistKey is the object-store key (not a local path) holding
// the super-store solution-id allow-list, used when the caller doesn't
// configure ObjectStoreConfig.ConfigObjectKey.
const defaultAllowlistKey = "superstore_config.json"

type allowlistDoc struct {
	Config []string `json:"config"`
}

// Allowlist caches the super-store solution-id allow-list, loaded from the
// object store on first use and held for the lifetime of the process. Only
// a successful load is memoized: a transient fetch failure is returned to
// the caller and the next lookup retries, so a blip at first load can't
// wedge every subsequent lookup behind a cached error. There is no
// background refresh path; a config change requires a restart.
type Allowlist struct {
	client *Client
	key    string

	mu  sync.Mutex
	ids map[string]struct{} // nil until a load succeeds
}

// NewAllowlist builds an allow-list cache backed by client, reading the
// allow-list document from key (ObjectStoreConfig.ConfigObjectKey, falling
// back to defaultAllowlistKey when empty).
func NewAllowlist(client *Client, key string) *Allowlist {
	if key == "" {
		key = defaultAllowlistKey
	}
	return &Allowlist{client: client, key: key}
}

func (a *Allowlist) load(ctx context.Context) (map[string]struct{}, error) {
	raw, err := a.client.Get(ctx, a.key)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", a.key, err)
	}

	var doc allowlistDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", a.key, err)
	}

	ids := make(map[string]struct{}, len(doc.Config))
	for _, id := range doc.Config {
		ids[id] = struct{}{}
	}
	return ids, nil
}

// Allowed reports whether solutionID is present in the cached allow-list,
// fetching and memoizing the list on the first call that succeeds.
func (a *Allowlist) Allowed(ctx context.Context, solutionID string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ids == nil {
		ids, err := a.load(ctx)
		if err != nil {
			return false, err
		}
		a.ids = ids
	}

	_, ok := a.ids[solutionID]
	return ok, nil
}
