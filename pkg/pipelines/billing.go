// Package pipelines implements the three pipeline handlers: thin
// orchestrators that decode a polled batch, drive the domain-specific leaf
// components, and submit the results downstream. Each handler is wired as
// a kafka.Handler and shares its leaf components (the relational writer,
// object store, search index, and crypto pool) with every other consumer
// in the same process.
package pipelines

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ascendops/inquiry-pipeline/pkg/billing"
	"github.com/ascendops/inquiry-pipeline/pkg/crypto"
	"github.com/ascendops/inquiry-pipeline/pkg/relational"
)

// BillingHandler implements the billing pipeline: for each record,
// validate, format PII, encode the billing record, and accumulate rows for
// a single two-table bulk insert per batch.
type BillingHandler struct {
	writer   *relational.Writer
	crypto   *crypto.Pool
	literals billing.Literals

	summaryTable      string
	productCodesTable string

	logger hclog.Logger
}

// NewBillingHandler builds the billing pipeline handler.
func NewBillingHandler(writer *relational.Writer, pool *crypto.Pool, literals billing.Literals, summaryTable, productCodesTable string, logger hclog.Logger) *BillingHandler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &BillingHandler{
		writer:            writer,
		crypto:            pool,
		literals:          literals,
		summaryTable:      summaryTable,
		productCodesTable: productCodesTable,
		logger:            logger.Named("billing-handler"),
	}
}

// Handle decodes and processes one polled batch. It never returns an error
// for individual record failures (those are logged and skipped); it only
// returns an error when the final bulk submission itself cannot be
// attempted.
func (h *BillingHandler) Handle(ctx context.Context, records []*kgo.Record) error {
	var summaryRows [][]interface{}
	var productRows [][]interface{}

	for _, record := range records {
		var msg billing.BillingMessage
		if err := json.Unmarshal(record.Value, &msg); err != nil {
			h.logger.Warn("skipping record: invalid json", "key", string(record.Key), "error", err)
			continue
		}
		if err := msg.Validate(); err != nil {
			h.logger.Warn("skipping record: validation failed", "key", string(record.Key), "error", err)
			continue
		}

		formatted := billing.FormatPII(msg.ApplicantPII)

		chunks, err := billing.EncodeChunks(msg, formatted, h.literals)
		if err != nil {
			h.logger.Warn("skipping record: encode failed", "key", string(record.Key), "error", err)
			continue
		}

		encryptedRecord, err := billing.EncryptedRecord(chunks, func(plaintext []byte) ([]byte, error) {
			ciphertext, _, err := h.crypto.Encrypt(ctx, plaintext)
			return ciphertext, err
		})
		if err != nil {
			h.logger.Warn("skipping record: encrypt failed", "key", string(record.Key), "error", err)
			continue
		}

		summary, productCodes, err := billing.BuildRows(msg, encryptedRecord)
		if err != nil {
			h.logger.Warn("skipping record: row build failed", "key", string(record.Key), "error", err)
			continue
		}

		summaryRows = append(summaryRows, []interface{}{
			summary.TransactionID, summary.InquiryTimestampUTC, summary.BillingRecord,
			summary.SilentLaunch, summary.SolutionID, summary.Subcode,
		})
		for _, row := range productCodes {
			productRows = append(productRows, []interface{}{
				row.TransactionID, row.InquiryTimestampUTC, row.SolutionID, row.Subcode,
				row.ProductCode, row.ProductCodeType, row.SilentLaunch,
			})
		}
	}

	if len(summaryRows) == 0 && len(productRows) == 0 {
		return nil
	}

	err := h.writer.BulkInsert(ctx,
		relational.Table{
			Name:    h.summaryTable,
			Columns: []string{"transaction_id", "inquiry_timestamp", "billing_record", "silent_launch", "solution_id", "subcode"},
			Rows:    summaryRows,
		},
		relational.Table{
			Name:    h.productCodesTable,
			Columns: []string{"transaction_id", "inquiry_timestamp", "solution_id", "subcode", "product_code", "product_code_type", "silent_launch"},
			Rows:    productRows,
		},
	)
	if err != nil {
		return fmt.Errorf("billing batch bulk insert failed: %w", err)
	}
	return nil
}
