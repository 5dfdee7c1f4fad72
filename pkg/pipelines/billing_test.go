package pipelines

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ascendops/inquiry-pipeline/pkg/billing"
	cryptopkg "github.com/ascendops/inquiry-pipeline/pkg/crypto"
	"github.com/ascendops/inquiry-pipeline/pkg/relational"
)

func newBillingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Exec(`CREATE TABLE billing_summary (
		transaction_id TEXT, inquiry_timestamp TEXT, billing_record TEXT,
		silent_launch INTEGER, solution_id TEXT, subcode TEXT
	)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE billing_product_codes (
		transaction_id TEXT, inquiry_timestamp TEXT, solution_id TEXT, subcode TEXT,
		product_code TEXT, product_code_type TEXT, silent_launch INTEGER
	)`).Error)
	return db
}

func newTestCryptoPool(t *testing.T) *cryptopkg.Pool {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	pool, err := cryptopkg.NewPool(key, 2, nil)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func billingKafkaRecord(t *testing.T, msg billing.BillingMessage) *kgo.Record {
	t.Helper()
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	return &kgo.Record{Key: []byte(msg.TransactionID), Value: raw}
}

func TestBillingHandler_ValidRecordWritesBothTables(t *testing.T) {
	db := newBillingTestDB(t)
	writer := relational.NewWriter(db, nil)
	pool := newTestCryptoPool(t)
	literals := billing.Literals{OwningSubsystem: "GOCR", CallingSubsystem: "GOXX"}

	h := NewBillingHandler(writer, pool, literals, "billing_summary", "billing_product_codes", nil)

	msg := billing.BillingMessage{
		TransactionID: "01152024120000ABCDEFGHIJK",
		SolutionID:    "AOEXETER",
		Subcode:       "SUBCODE1",
		ARFVersion:    "1",
		ProductCodes: []billing.ProductCode{
			{ProductCode: "BASEPROD", Index: "10"},
			{ProductCode: "OPTPROD1", Index: "20"},
		},
		ApplicantPII: billing.ApplicantPII{
			Name: billing.Name{Last: "SMITH", First: "JOHN"},
			InquiryAddress: billing.Address{
				Line1: "123 Main St", City: "Austin", State: "TX", ZipCode: "78701",
			},
		},
	}

	err := h.Handle(context.Background(), []*kgo.Record{billingKafkaRecord(t, msg)})
	require.NoError(t, err)

	var summaryCount int64
	require.NoError(t, db.Table("billing_summary").Count(&summaryCount).Error)
	assert.EqualValues(t, 1, summaryCount)

	var productCount int64
	require.NoError(t, db.Table("billing_product_codes").Count(&productCount).Error)
	assert.EqualValues(t, 2, productCount)
}

func TestBillingHandler_InvalidJSONIsSkippedNotFatal(t *testing.T) {
	db := newBillingTestDB(t)
	writer := relational.NewWriter(db, nil)
	pool := newTestCryptoPool(t)

	h := NewBillingHandler(writer, pool, billing.Literals{}, "billing_summary", "billing_product_codes", nil)

	err := h.Handle(context.Background(), []*kgo.Record{{Value: []byte("not json")}})
	assert.NoError(t, err)

	var count int64
	require.NoError(t, db.Table("billing_summary").Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestBillingHandler_ValidationFailureIsSkippedNotFatal(t *testing.T) {
	db := newBillingTestDB(t)
	writer := relational.NewWriter(db, nil)
	pool := newTestCryptoPool(t)

	h := NewBillingHandler(writer, pool, billing.Literals{}, "billing_summary", "billing_product_codes", nil)

	msg := billing.BillingMessage{TransactionID: "short"}
	err := h.Handle(context.Background(), []*kgo.Record{billingKafkaRecord(t, msg)})
	assert.NoError(t, err)

	var count int64
	require.NoError(t, db.Table("billing_summary").Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestBillingHandler_EmptyBatchIsNoop(t *testing.T) {
	db := newBillingTestDB(t)
	writer := relational.NewWriter(db, nil)
	pool := newTestCryptoPool(t)

	h := NewBillingHandler(writer, pool, billing.Literals{}, "billing_summary", "billing_product_codes", nil)

	err := h.Handle(context.Background(), nil)
	assert.NoError(t, err)
}
