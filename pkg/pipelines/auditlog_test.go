package pipelines

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ascendops/inquiry-pipeline/pkg/searchindex"
)

func gzipJSON(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func newMemoryIndex(t *testing.T) searchindex.Provider {
	t.Helper()
	idx, err := searchindex.NewBleveProvider(searchindex.BleveConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func versionedRecord(t *testing.T, payload map[string]interface{}) *kgo.Record {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &kgo.Record{
		Headers: []kgo.RecordHeader{{Key: "v1"}},
		Value:   gzipJSON(t, string(raw)),
	}
}

func TestAuditLogHandler_UpsertsVersionedTestcase(t *testing.T) {
	index := newMemoryIndex(t)
	h := NewAuditLogHandler(index, nil)

	record := versionedRecord(t, map[string]interface{}{
		"is_testcase":       true,
		"go_transaction_id": "gtx-1",
		"services": []interface{}{
			map[string]interface{}{"service_name": "EXPERIAN"},
		},
		"response_payload": map[string]interface{}{"ok": true},
	})

	err := h.Handle(context.Background(), []*kgo.Record{record})
	require.NoError(t, err)

	doc, err := index.Get(context.Background(), "gtx-1")
	require.NoError(t, err)
	assert.Equal(t, "gtx-1", doc["testcase_id"])
	assert.Contains(t, doc["services"], "EXPERIAN")
}

func TestAuditLogHandler_IgnoresNonTestcaseVersionedRecord(t *testing.T) {
	index := newMemoryIndex(t)
	h := NewAuditLogHandler(index, nil)

	record := versionedRecord(t, map[string]interface{}{
		"is_testcase":       false,
		"go_transaction_id": "gtx-2",
	})

	err := h.Handle(context.Background(), []*kgo.Record{record})
	require.NoError(t, err)

	_, err = index.Get(context.Background(), "gtx-2")
	assert.Error(t, err, "non-testcase record should never be upserted")
}

func TestAuditLogHandler_DisambiguatesModelServiceByModelUID(t *testing.T) {
	index := newMemoryIndex(t)
	h := NewAuditLogHandler(index, nil)

	record := versionedRecord(t, map[string]interface{}{
		"is_testcase":       true,
		"go_transaction_id": "gtx-3",
		"services": []interface{}{
			map[string]interface{}{
				"service_name": "SAGEMAKER",
				"content": map[string]interface{}{
					"request": map[string]interface{}{"model_uid": "model-a"},
				},
			},
			map[string]interface{}{
				"service_name": "SAGEMAKER",
				"content": map[string]interface{}{
					"request": map[string]interface{}{"model_uid": "model-b"},
				},
			},
		},
		"response_payload": nil,
	})

	err := h.Handle(context.Background(), []*kgo.Record{record})
	require.NoError(t, err)

	doc, err := index.Get(context.Background(), "gtx-3")
	require.NoError(t, err)
	assert.Contains(t, doc["services"], "SAGEMAKER_model-a")
	assert.Contains(t, doc["services"], "SAGEMAKER_model-b")
}

func TestAuditLogHandler_DuplicateServiceKeySkipsRecord(t *testing.T) {
	index := newMemoryIndex(t)
	h := NewAuditLogHandler(index, nil)

	record := versionedRecord(t, map[string]interface{}{
		"is_testcase":       true,
		"go_transaction_id": "gtx-dup",
		"services": []interface{}{
			map[string]interface{}{"service_name": "EXPERIAN"},
			map[string]interface{}{"service_name": "EXPERIAN"},
		},
		"response_payload": nil,
	})

	// The record is skipped (logged), never upserted; the batch still
	// succeeds so the offset commits.
	err := h.Handle(context.Background(), []*kgo.Record{record})
	require.NoError(t, err)

	_, err = index.Get(context.Background(), "gtx-dup")
	assert.Error(t, err, "a snapshot with colliding service keys must not be stored")
}

func TestAuditLogHandler_PlainInquiryRequestUpsertsByCaseCode(t *testing.T) {
	index := newMemoryIndex(t)
	h := NewAuditLogHandler(index, nil)

	plain := map[string]interface{}{
		"service_name": "INQUIRY_REQUEST",
		"content": map[string]interface{}{
			"request_headers": map[string]interface{}{"Test-Engine": "Record-EXETER-CM"},
			"request_payload": map[string]interface{}{"solution_id": "AOEXETER"},
		},
		"go_transaction_id": "gtx-4",
	}
	raw, err := json.Marshal(plain)
	require.NoError(t, err)

	err = h.Handle(context.Background(), []*kgo.Record{{Value: raw}})
	require.NoError(t, err)

	doc, err := index.Get(context.Background(), "gtx-4")
	require.NoError(t, err)
	assert.Equal(t, "EXETER-CM", doc["case_code"])
	assert.Equal(t, "AOEXETER", doc["solution_id"])
}

func TestAuditLogHandler_PlainRecordWithoutTestEngineHeaderIsIgnored(t *testing.T) {
	index := newMemoryIndex(t)
	h := NewAuditLogHandler(index, nil)

	plain := map[string]interface{}{
		"service_name":      "INQUIRY_REQUEST",
		"content":           map[string]interface{}{"request_headers": map[string]interface{}{}},
		"go_transaction_id": "gtx-5",
	}
	raw, err := json.Marshal(plain)
	require.NoError(t, err)

	err = h.Handle(context.Background(), []*kgo.Record{{Value: raw}})
	require.NoError(t, err)

	_, err = index.Get(context.Background(), "gtx-5")
	assert.Error(t, err)
}
