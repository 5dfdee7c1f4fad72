package searchindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyProvider fails its first failures calls to Upsert/Get with a
// RequestError, then delegates to an embedded in-memory Bleve provider.
type flakyProvider struct {
	Provider
	failures int
	calls    int
}

func (f *flakyProvider) Upsert(ctx context.Context, doc Document) error {
	f.calls++
	if f.calls <= f.failures {
		return &RequestError{Op: "upsert", Err: assert.AnError}
	}
	return f.Provider.Upsert(ctx, doc)
}

func (f *flakyProvider) Get(ctx context.Context, id string) (map[string]interface{}, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &RequestError{Op: "get", Err: assert.AnError}
	}
	return f.Provider.Get(ctx, id)
}

func TestRetryProvider_RetriesRequestErrors(t *testing.T) {
	inner := newTestBleveProvider(t)
	flaky := &flakyProvider{Provider: inner, failures: 2}
	p := withRetries(flaky)

	err := p.Upsert(context.Background(), Document{ID: "tc-1", Fields: map[string]interface{}{"case_code": "HIT"}})
	require.NoError(t, err, "two transient failures are within the retry budget")
	assert.Equal(t, 3, flaky.calls)
}

func TestRetryProvider_GivesUpAfterRetryBudget(t *testing.T) {
	inner := newTestBleveProvider(t)
	flaky := &flakyProvider{Provider: inner, failures: 10}
	p := withRetries(flaky)

	err := p.Upsert(context.Background(), Document{ID: "tc-1"})
	require.Error(t, err)

	var reqErr *RequestError
	assert.ErrorAs(t, err, &reqErr)
	assert.Equal(t, retryAttempts, flaky.calls)
}

func TestRetryProvider_DoesNotRetryNotFound(t *testing.T) {
	inner := newTestBleveProvider(t)
	flaky := &flakyProvider{Provider: inner}
	p := withRetries(flaky)

	_, err := p.Get(context.Background(), "missing")
	require.Error(t, err)

	var nfe *NotFoundError
	assert.ErrorAs(t, err, &nfe)
	assert.Equal(t, 1, flaky.calls, "a not-found result must be surfaced without retrying")
}
