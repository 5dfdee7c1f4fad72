package searchindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBleveProvider(t *testing.T) Provider {
	t.Helper()
	p, err := NewBleveProvider(BleveConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestBleveProvider_UpsertIsIdempotent(t *testing.T) {
	p := newTestBleveProvider(t)
	ctx := context.Background()

	doc := Document{ID: "tc-1", Fields: map[string]interface{}{"solution_id": "AOEXETER", "case_code": "HIT"}}
	require.NoError(t, p.Upsert(ctx, doc))
	require.NoError(t, p.Upsert(ctx, doc))

	count, err := p.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count, "upserting the same id twice must not duplicate the document")

	fields, err := p.Get(ctx, "tc-1")
	require.NoError(t, err)
	assert.Equal(t, "AOEXETER", fields["solution_id"])
}

func TestBleveProvider_GetMissingReturnsNotFoundError(t *testing.T) {
	p := newTestBleveProvider(t)

	_, err := p.Get(context.Background(), "does-not-exist")
	require.Error(t, err)

	var nfe *NotFoundError
	assert.ErrorAs(t, err, &nfe)
}

func TestBleveProvider_BulkUpsertAndScroll(t *testing.T) {
	p := newTestBleveProvider(t)
	ctx := context.Background()

	docs := []Document{
		{ID: "tc-1", Fields: map[string]interface{}{"case_code": "HIT"}},
		{ID: "tc-2", Fields: map[string]interface{}{"case_code": "NOHIT"}},
		{ID: "tc-3", Fields: map[string]interface{}{"case_code": "HIT"}},
	}
	require.NoError(t, p.BulkUpsert(ctx, docs))

	count, err := p.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	seen := map[string]bool{}
	require.NoError(t, p.Scroll(ctx, func(id string, fields map[string]interface{}) bool {
		seen[id] = true
		return true
	}))
	assert.Len(t, seen, 3)
	assert.True(t, seen["tc-1"] && seen["tc-2"] && seen["tc-3"])
}

func TestBleveProvider_DeleteByQuery(t *testing.T) {
	p := newTestBleveProvider(t)
	ctx := context.Background()

	require.NoError(t, p.BulkUpsert(ctx, []Document{
		{ID: "tc-1", Fields: map[string]interface{}{"case_code": "HIT"}},
		{ID: "tc-2", Fields: map[string]interface{}{"case_code": "NOHIT"}},
	}))

	require.NoError(t, p.DeleteByQuery(ctx, "case_code", "NOHIT"))

	count, err := p.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	_, err = p.Get(ctx, "tc-1")
	assert.NoError(t, err)
}

func TestBleveProvider_Name(t *testing.T) {
	p := newTestBleveProvider(t)
	assert.Equal(t, "bleve", p.Name())
}
