package searchindex

import (
	"context"
	"errors"
	"time"
)

const (
	retryAttempts = 3
	retryBackoff  = 500 * time.Millisecond
)

// retryProvider retries backend-level failures (RequestError) with a fixed
// short backoff. NotFoundError and context cancellation are surfaced
// immediately. Scroll is not retried: a walk that failed partway cannot be
// resumed without re-delivering documents the callback already saw.
type retryProvider struct {
	inner Provider
}

func withRetries(p Provider) Provider {
	return &retryProvider{inner: p}
}

func (r *retryProvider) do(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff):
			}
		}
		err = op()
		var reqErr *RequestError
		if err == nil || !errors.As(err, &reqErr) {
			return err
		}
	}
	return err
}

func (r *retryProvider) Name() string { return r.inner.Name() }

func (r *retryProvider) Upsert(ctx context.Context, doc Document) error {
	return r.do(ctx, func() error { return r.inner.Upsert(ctx, doc) })
}

func (r *retryProvider) BulkUpsert(ctx context.Context, docs []Document) error {
	return r.do(ctx, func() error { return r.inner.BulkUpsert(ctx, docs) })
}

func (r *retryProvider) Get(ctx context.Context, id string) (map[string]interface{}, error) {
	var fields map[string]interface{}
	err := r.do(ctx, func() error {
		var opErr error
		fields, opErr = r.inner.Get(ctx, id)
		return opErr
	})
	return fields, err
}

func (r *retryProvider) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.do(ctx, func() error {
		var opErr error
		n, opErr = r.inner.Count(ctx)
		return opErr
	})
	return n, err
}

func (r *retryProvider) DeleteByQuery(ctx context.Context, field, value string) error {
	return r.do(ctx, func() error { return r.inner.DeleteByQuery(ctx, field, value) })
}

func (r *retryProvider) Scroll(ctx context.Context, fn func(id string, fields map[string]interface{}) bool) error {
	return r.inner.Scroll(ctx, fn)
}

func (r *retryProvider) Close() error {
	return r.inner.Close()
}
