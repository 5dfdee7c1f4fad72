package pipelines

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

func versionedGzipRecord(t *testing.T, payload map[string]interface{}) *kgo.Record {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err = w.Write(raw)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return &kgo.Record{
		Headers: []kgo.RecordHeader{{Key: "v1"}},
		Value:   buf.Bytes(),
	}
}

// A handler with nil store/allowlist/pgp is safe to exercise as long as
// every record is skipped before those fields are ever touched: missing
// flow_tags.solution_id is the first gate in handleOne, well before the
// allow-list lookup or PGP step.
func TestSuperStoreHandler_SkipsRecordWithNoSolutionID(t *testing.T) {
	h := NewSuperStoreHandler(nil, nil, nil, "superstore", nil)

	record := versionedGzipRecord(t, map[string]interface{}{
		"flow_tags": map[string]interface{}{},
	})

	err := h.Handle(context.Background(), []*kgo.Record{record})
	require.NoError(t, err)
}

func TestSuperStoreHandler_EmptyBatchIsNoop(t *testing.T) {
	h := NewSuperStoreHandler(nil, nil, nil, "superstore", nil)
	err := h.Handle(context.Background(), nil)
	require.NoError(t, err)
}

func TestSuperStoreHandler_SkipsRecordWithPlainEnvelope(t *testing.T) {
	h := NewSuperStoreHandler(nil, nil, nil, "superstore", nil)

	plain := map[string]interface{}{"service_name": "INQUIRY_REQUEST"}
	raw, err := json.Marshal(plain)
	require.NoError(t, err)

	// No headers: Split routes this to the plain batch, which the
	// super-store pipeline never consumes.
	err = h.Handle(context.Background(), []*kgo.Record{{Value: raw}})
	require.NoError(t, err)
}
