package billing

import (
	"fmt"
	"time"
)

// transactionIDTimeLayout matches MMDDYYYYHHMMSS against Go's reference
// time (Mon Jan 2 15:04:05 MST 2006).
const transactionIDTimeLayout = "01022006150405"

// ConvertUTCToCST parses the first 14 characters of a transaction id as a
// UTC timestamp and converts it to US Central time, returning the same
// MMDDYYYYHHMMSS layout.
func ConvertUTCToCST(transactionID string) (string, error) {
	if len(transactionID) < 14 {
		return "", fmt.Errorf("transaction_id too short to contain a timestamp: %q", transactionID)
	}

	utcTime, err := time.ParseInLocation(transactionIDTimeLayout, transactionID[:14], time.UTC)
	if err != nil {
		return "", fmt.Errorf("failed to parse transaction_id timestamp: %w", err)
	}

	central, err := time.LoadLocation("America/Chicago")
	if err != nil {
		return "", fmt.Errorf("failed to load America/Chicago location: %w", err)
	}

	return utcTime.In(central).Format(transactionIDTimeLayout), nil
}

// InquiryTimestampUTC parses transaction_id[0:14] as a UTC timestamp,
// returned in RFC3339 for storage in the relational tables.
func InquiryTimestampUTC(transactionID string) (string, error) {
	if len(transactionID) < 14 {
		return "", fmt.Errorf("transaction_id too short to contain a timestamp: %q", transactionID)
	}
	t, err := time.ParseInLocation(transactionIDTimeLayout, transactionID[:14], time.UTC)
	if err != nil {
		return "", fmt.Errorf("failed to parse transaction_id timestamp: %w", err)
	}
	return t.Format(time.RFC3339), nil
}
