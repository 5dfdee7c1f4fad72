// Package envelope implements the message envelope decoder: it classifies
// each Kafka record by header presence and decompresses the versioned,
// gzipped form.
package envelope

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Versioned is a decoded gzip+JSON envelope. The first header key on the
// record is the envelope version string.
type Versioned struct {
	Version string
	Key     string
	Decoded map[string]interface{}
	Headers []kgo.RecordHeader
}

// Plain is a decoded uncompressed single-record message.
type Plain struct {
	ServiceName     string      `json:"service_name"`
	Content         interface{} `json:"content"`
	GoTransactionID string      `json:"go_transaction_id"`
}

// DecodeError records why a single record could not be decoded. Decode
// errors are never fatal to the batch; they are surfaced so the caller can
// log them with whatever transaction identifier is extractable.
type DecodeError struct {
	Record *kgo.Record
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("envelope decode failed at offset %d: %v", e.Record.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Split partitions a batch into its versioned and plain groups, decoding
// each record along the way. A record that fails to decode is dropped from
// both groups and reported in errs; it never aborts the rest of the batch.
func Split(records []*kgo.Record) (versioned []Versioned, plain []Plain, errs []*DecodeError) {
	for _, record := range records {
		if len(record.Headers) > 0 {
			v, err := decodeVersioned(record)
			if err != nil {
				errs = append(errs, &DecodeError{Record: record, Err: err})
				continue
			}
			versioned = append(versioned, v)
			continue
		}

		p, err := decodePlain(record)
		if err != nil {
			errs = append(errs, &DecodeError{Record: record, Err: err})
			continue
		}
		plain = append(plain, p)
	}
	return versioned, plain, errs
}

func decodeVersioned(record *kgo.Record) (Versioned, error) {
	reader, err := gzip.NewReader(bytes.NewReader(record.Value))
	if err != nil {
		return Versioned{}, fmt.Errorf("failed to open gzip payload: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return Versioned{}, fmt.Errorf("failed to decompress payload: %w", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Versioned{}, fmt.Errorf("failed to parse decompressed payload as json: %w", err)
	}

	return Versioned{
		Version: record.Headers[0].Key,
		Key:     string(record.Key),
		Decoded: decoded,
		Headers: record.Headers,
	}, nil
}

func decodePlain(record *kgo.Record) (Plain, error) {
	var p Plain
	if err := json.Unmarshal(record.Value, &p); err != nil {
		return Plain{}, fmt.Errorf("failed to parse plain payload as json: %w", err)
	}
	return p, nil
}

// TransactionIDHint extracts whatever transaction identifier is available
// from a versioned envelope, for inclusion in error logs. Returns "" if
// none is present.
func (v Versioned) TransactionIDHint() string {
	if id, ok := v.Decoded["transaction_id"].(string); ok {
		return id
	}
	return ""
}
