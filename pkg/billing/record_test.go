package billing

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLiterals is the fixed owning/calling subsystem pair used across these
// tests (4 chars each). testMessage's Subcode (8 chars) and ARFVersion (1
// char) are sized so that, together with testLiterals, every composed
// record totals exactly RecordLength.
var testLiterals = Literals{OwningSubsystem: "GOCR", CallingSubsystem: "GOXX"}

func testMessage(productCodes []ProductCode) BillingMessage {
	return BillingMessage{
		TransactionID: "01152024120000" + "ABC123XYZ",
		SolutionID:    "AOEXETER",
		Subcode:       "SUBCODE1",
		ARFVersion:    "1",
		ProductCodes:  productCodes,
	}
}

// blankPII is FormatPII's output for an entirely empty ApplicantPII: every
// field is correctly padded-blank, unlike the zero value of FormattedPII
// itself (which is all empty strings and would throw off the encoder's
// fixed-width arithmetic).
var blankPII = FormatPII(ApplicantPII{})

func TestEncodeChunks_ElevenProductCodesOneBase(t *testing.T) {
	codes := []ProductCode{{ProductCode: "PPC0001", Index: "10"}}
	for i := 0; i < 10; i++ {
		codes = append(codes, ProductCode{ProductCode: "OPT0000" + string(rune('A'+i)), Index: "20"})
	}

	chunks, err := EncodeChunks(testMessage(codes), blankPII, testLiterals)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	for _, c := range chunks {
		assert.Len(t, c.Record, RecordLength)
	}

	// The continuation flag sits immediately before the tail (calling
	// subsystem + 46 trailing spaces).
	tailLen := len(testLiterals.CallingSubsystem) + 46
	flagAt := func(record string) string {
		i := len(record) - tailLen - 1
		return record[i : i+1]
	}
	assert.Equal(t, "1", flagAt(chunks[0].Record))
	assert.Equal(t, "0", flagAt(chunks[1].Record))

	assert.Len(t, chunks[0].ProductCodes, 10)
	assert.Equal(t, "PPC0001", chunks[0].ProductCodes[0].code)
	assert.Len(t, chunks[1].ProductCodes, 1)
}

func TestEncodeChunks_ChunkCountIsCeilingOfTen(t *testing.T) {
	for _, k := range []int{1, 5, 10, 11, 20, 25, 30} {
		var codes []ProductCode
		for i := 0; i < k; i++ {
			codes = append(codes, ProductCode{ProductCode: "P", Index: "20"})
		}
		chunks, err := EncodeChunks(testMessage(codes), blankPII, testLiterals)
		require.NoError(t, err)

		expected := (k + 9) / 10
		assert.Equal(t, expected, len(chunks), "k=%d", k)
	}
}

func TestEncodeChunks_CapsAtThirtyProductCodes(t *testing.T) {
	var codes []ProductCode
	for i := 0; i < 40; i++ {
		codes = append(codes, ProductCode{ProductCode: "P", Index: "20"})
	}
	chunks, err := EncodeChunks(testMessage(codes), blankPII, testLiterals)
	require.NoError(t, err)

	total := 0
	for _, c := range chunks {
		total += len(c.ProductCodes)
	}
	assert.Equal(t, 30, total)
}

func TestEncodeChunks_AllChunksAre785Chars(t *testing.T) {
	codes := []ProductCode{{ProductCode: "BASE", Index: "10"}}
	formatted := FormatPII(ApplicantPII{SSN: "123456789", DOB: "01011990"})
	chunks, err := EncodeChunks(testMessage(codes), formatted, testLiterals)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.Equal(t, RecordLength, len(c.Record))
	}
}

func TestEncryptedRecord_RoundTripsThroughJSONKeyOrder(t *testing.T) {
	chunks := []Chunk{
		{Record: strings.Repeat("A", RecordLength)},
		{Record: strings.Repeat("B", RecordLength)},
		{Record: strings.Repeat("C", RecordLength)},
	}

	var capturedPlaintext []byte
	identity := func(b []byte) ([]byte, error) {
		capturedPlaintext = b
		return b, nil
	}

	result, err := EncryptedRecord(chunks, identity)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result, "SEncr:"))

	assert.Contains(t, string(capturedPlaintext), `"0":`)
	assert.Contains(t, string(capturedPlaintext), `"1":`)
	assert.Contains(t, string(capturedPlaintext), `"2":`)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(capturedPlaintext, &decoded))
	assert.Equal(t, map[string]string{"0": chunks[0].Record, "1": chunks[1].Record, "2": chunks[2].Record}, decoded)
}

func TestOrderProductCodes_BaseFirst(t *testing.T) {
	codes := []ProductCode{
		{ProductCode: "OPT1", Index: "20"},
		{ProductCode: "BASE", Index: "10"},
		{ProductCode: "OPT2", Index: "30"},
	}
	ordered := orderProductCodes(codes)
	require.Len(t, ordered, 3)
	assert.Equal(t, "BASE", ordered[0].code)
	assert.Equal(t, "OPT1", ordered[1].code)
	assert.Equal(t, "OPT2", ordered[2].code)
}
