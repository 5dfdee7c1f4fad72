package searchindex

import "fmt"

// Options selects and configures whichever Provider backend a pipeline
// binary was configured to use.
type Options struct {
	Backend     string // "bleve" or "meilisearch"
	Bleve       BleveConfig
	Meilisearch MeilisearchConfig
}

// New builds the configured Provider, wrapped so that backend-level
// failures retry with a fixed short backoff.
func New(opts Options) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch opts.Backend {
	case "", "bleve":
		p, err = NewBleveProvider(opts.Bleve)
	case "meilisearch":
		p, err = NewMeilisearchProvider(opts.Meilisearch)
	default:
		return nil, fmt.Errorf("unsupported search index backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return withRetries(p), nil
}
