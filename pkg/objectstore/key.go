package objectstore

import "fmt"

// SuperStoreKey builds the date-partitioned object key for a super-store
// upload: {base_prefix}/{solution_id}/{YYYY}/{MM}/{YYYYMMDD}/raw_data/{transaction_id}.json.gz.
// The date is derived from the first 8 characters of transactionID, which
// encode MMDDYYYY (not YYYYMMDD) per the transaction-id timestamp format.
func SuperStoreKey(basePrefix, solutionID, transactionID string) (string, error) {
	if len(transactionID) < 8 {
		return "", fmt.Errorf("transaction id %q shorter than 8 characters", transactionID)
	}

	month := transactionID[0:2]
	day := transactionID[2:4]
	year := transactionID[4:8]
	yyyymmdd := year + month + day

	prefix := basePrefix
	if prefix != "" {
		prefix += "/"
	}

	return fmt.Sprintf("%s%s/%s/%s/%s/raw_data/%s.json.gz",
		prefix, solutionID, year, month, yyyymmdd, transactionID), nil
}
