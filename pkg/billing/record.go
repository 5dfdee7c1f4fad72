package billing

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	// RecordLength is the total length every encoded chunk must satisfy:
	// the 39-char prefix plus the 746-char body.
	RecordLength = 785
	prefixLength = 39

	chunkCodeSlotWidth  = 70
	maxCodesPerChunk    = 10
	maxCodesPerTxn      = 30
	billingRecordPrefix = "GCRGOINQ   00                          "
)

// Literals carries the two configurable subsystem-name literals the
// encoder embeds verbatim.
type Literals struct {
	OwningSubsystem  string
	CallingSubsystem string
}

// Chunk is one 785-char encoded billing record chunk, along with the
// product codes it carries (for building the product-code rows).
type Chunk struct {
	Record       string
	ProductCodes []productCodeAssignment
}

type productCodeAssignment struct {
	code     string
	codeType string
}

// EncodeChunks builds the ordered billing-record chunks for a transaction.
// A transaction with more than 10 product codes produces multiple chunks;
// the base product (index "10") is always placed first, ahead of the
// optional codes in their input order. At most 30 product codes are kept;
// the rest are silently truncated.
func EncodeChunks(msg BillingMessage, formatted FormattedPII, lit Literals) ([]Chunk, error) {
	cstDateTime, err := ConvertUTCToCST(msg.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to convert transaction time to CST: %w", err)
	}
	if len(cstDateTime) != 14 {
		return nil, fmt.Errorf("unexpected CST timestamp length %d", len(cstDateTime))
	}

	ordered := orderProductCodes(msg.ProductCodes)

	before := "B" + "1.00" +
		pad(msg.TransactionID[:23], 23) +
		pad("GOINQ", 8) +
		strings.Repeat(" ", 8) +
		strings.Repeat(" ", 8) +
		cstDateTime[0:8] +
		cstDateTime[8:14] + "00" +
		lit.OwningSubsystem

	middle := strings.Repeat(" ", 50) +
		msg.Subcode +
		strings.Repeat(" ", 4) +
		strings.Repeat(" ", 4) +
		msg.ARFVersion +
		strings.Repeat(" ", 53) +
		formatted.SSN +
		formatted.YearOfBirth +
		formatted.ConsumerName +
		formatted.CurrentAddress +
		formatted.FirstPreviousAddr +
		formatted.SecondPreviousAddr

	tail := lit.CallingSubsystem + strings.Repeat(" ", 46)

	var chunks []Chunk
	for offset := 0; offset < len(ordered); offset += maxCodesPerChunk {
		end := offset + maxCodesPerChunk
		if end > len(ordered) {
			end = len(ordered)
		}
		slice := ordered[offset:end]

		var codesStr strings.Builder
		for _, a := range slice {
			codesStr.WriteString(a.code)
		}
		productCodesSlot := pad(codesStr.String(), chunkCodeSlotWidth)

		continuationFlag := "0"
		if offset%maxCodesPerChunk == 0 && (len(ordered)-offset) > maxCodesPerChunk {
			continuationFlag = "1"
		}

		record := billingRecordPrefix + before + productCodesSlot + middle + continuationFlag + tail
		if len(record) != RecordLength {
			return nil, fmt.Errorf("billing record length %d != expected %d", len(record), RecordLength)
		}

		chunks = append(chunks, Chunk{Record: record, ProductCodes: slice})
	}

	return chunks, nil
}

// orderProductCodes places the base product first, followed by the
// optional codes in their input order, capped at 30 entries total.
func orderProductCodes(codes []ProductCode) []productCodeAssignment {
	var base *productCodeAssignment
	var optional []productCodeAssignment

	for _, c := range codes {
		a := productCodeAssignment{code: c.ProductCode, codeType: "optional"}
		if c.IsBase() {
			baseCopy := productCodeAssignment{code: c.ProductCode, codeType: "base"}
			base = &baseCopy
			continue
		}
		optional = append(optional, a)
	}

	var ordered []productCodeAssignment
	if base != nil {
		ordered = append(ordered, *base)
	}
	ordered = append(ordered, optional...)

	if len(ordered) > maxCodesPerTxn {
		ordered = ordered[:maxCodesPerTxn]
	}
	return ordered
}

// EncryptedRecord JSON-serializes the ordered chunks as an object keyed by
// their 0-based chunk index, encrypts it, and returns the stored
// billing_record column value: base64(ciphertext) prefixed with "SEncr:".
func EncryptedRecord(chunks []Chunk, encrypt func([]byte) ([]byte, error)) (string, error) {
	keyed := make(map[string]string, len(chunks))
	for i, c := range chunks {
		keyed[strconv.Itoa(i)] = c.Record
	}

	raw, err := json.Marshal(keyed)
	if err != nil {
		return "", fmt.Errorf("failed to serialize chunk dictionary: %w", err)
	}

	ciphertext, err := encrypt(raw)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt billing record: %w", err)
	}

	return "SEncr:" + base64.StdEncoding.EncodeToString(ciphertext), nil
}
