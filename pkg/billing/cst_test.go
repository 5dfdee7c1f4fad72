package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertUTCToCST_WinterNoSavingsOffset(t *testing.T) {
	// Jan 15 2024, 12:00:00 UTC -> 06:00:00 CST (UTC-6).
	got, err := ConvertUTCToCST("01152024120000suffix")
	require.NoError(t, err)
	assert.Equal(t, "01152024060000", got)
}

func TestConvertUTCToCST_SummerDaylightOffset(t *testing.T) {
	// Jul 15 2024, 12:00:00 UTC -> 07:00:00 CDT (UTC-5).
	got, err := ConvertUTCToCST("07152024120000suffix")
	require.NoError(t, err)
	assert.Equal(t, "07152024070000", got)
}

func TestConvertUTCToCST_RejectsShortTransactionID(t *testing.T) {
	_, err := ConvertUTCToCST("0115202412")
	assert.Error(t, err)
}

func TestConvertUTCToCST_RejectsUnparseableTimestamp(t *testing.T) {
	_, err := ConvertUTCToCST("not-a-valid14c-x")
	assert.Error(t, err)
}

func TestInquiryTimestampUTC_FormatsAsRFC3339(t *testing.T) {
	got, err := InquiryTimestampUTC("01152024120000suffix")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15T12:00:00Z", got)
}

func TestInquiryTimestampUTC_RejectsShortTransactionID(t *testing.T) {
	_, err := InquiryTimestampUTC("short")
	assert.Error(t, err)
}
