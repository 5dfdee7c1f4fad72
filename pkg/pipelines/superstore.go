package pipelines

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ascendops/inquiry-pipeline/pkg/crypto"
	"github.com/ascendops/inquiry-pipeline/pkg/envelope"
	"github.com/ascendops/inquiry-pipeline/pkg/objectstore"
)

// SuperStoreHandler implements the super-store pipeline: filter by
// solution-id allow-list, PGP-encrypt and gzip the raw payload, and land it
// in object storage under a date-partitioned key.
type SuperStoreHandler struct {
	store      *objectstore.Client
	allowlist  *objectstore.Allowlist
	pgp        *crypto.PGPEncryptor
	basePrefix string
	logger     hclog.Logger
}

// NewSuperStoreHandler builds the super-store pipeline handler.
func NewSuperStoreHandler(store *objectstore.Client, allowlist *objectstore.Allowlist, pgp *crypto.PGPEncryptor, basePrefix string, logger hclog.Logger) *SuperStoreHandler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &SuperStoreHandler{
		store:      store,
		allowlist:  allowlist,
		pgp:        pgp,
		basePrefix: basePrefix,
		logger:     logger.Named("superstore-handler"),
	}
}

// Handle processes one polled batch. Records with empty headers or missing
// fields are skipped per step 1, and allow-list misses skip with the offset
// still committed by the caller; an upload or allow-list load failure fails
// the whole batch so the broker redelivers it.
func (h *SuperStoreHandler) Handle(ctx context.Context, records []*kgo.Record) error {
	versioned, _, errs := envelope.Split(records)
	for _, e := range errs {
		h.logger.Warn("skipping record: envelope decode failed", "error", e)
	}

	for _, v := range versioned {
		if err := h.handleOne(ctx, v); err != nil {
			return fmt.Errorf("super-store record %s failed: %w", v.TransactionIDHint(), err)
		}
	}
	return nil
}

// handleOne uploads a single allow-listed record. Data problems in the
// record itself are logged and swallowed (the record is skipped); only
// infrastructure failures are returned.
func (h *SuperStoreHandler) handleOne(ctx context.Context, v envelope.Versioned) error {
	flowTags, _ := v.Decoded["flow_tags"].(map[string]interface{})
	solutionID, _ := flowTags["solution_id"].(string)
	if solutionID == "" {
		h.logger.Warn("skipping record: no flow_tags.solution_id")
		return nil
	}

	allowed, err := h.allowlist.Allowed(ctx, solutionID)
	if err != nil {
		return fmt.Errorf("allow-list lookup failed: %w", err)
	}
	if !allowed {
		h.logger.Info("skipping record: solution id not allow-listed", "solution_id", solutionID)
		return nil
	}

	inquiry, _ := v.Decoded["INQUIRY"].(map[string]interface{})
	inqreq, _ := inquiry["INQREQ"].(map[string]interface{})
	transactionID, _ := inqreq["transaction_id"].(string)
	inqreqSolutionID, _ := inqreq["solution_id"].(string)
	if transactionID == "" {
		h.logger.Warn("skipping record: INQUIRY.INQREQ.transaction_id missing", "solution_id", solutionID)
		return nil
	}
	if inqreqSolutionID != "" {
		solutionID = inqreqSolutionID
	}

	key, err := objectstore.SuperStoreKey(h.basePrefix, solutionID, transactionID)
	if err != nil {
		h.logger.Warn("skipping record: malformed transaction id", "transaction_id", transactionID, "error", err)
		return nil
	}

	line, err := json.Marshal(v.Decoded)
	if err != nil {
		h.logger.Error("dropping record: failed to serialize object", "transaction_id", transactionID, "error", err)
		return nil
	}
	line = append(line, '\n')

	encrypted, err := h.pgp.Encrypt(line)
	if err != nil {
		h.logger.Error("dropping record: pgp encryption failed", "transaction_id", transactionID, "error", err)
		return nil
	}

	if err := h.store.PutGzip(ctx, key, encrypted); err != nil {
		return fmt.Errorf("failed to upload object %s: %w", key, err)
	}

	h.logger.Debug("super-store object written", "key", key, "transaction_id", transactionID)
	return nil
}
