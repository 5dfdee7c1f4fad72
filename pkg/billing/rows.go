package billing

import "fmt"

// BuildRows derives the summary row and the full set of product-code rows
// for a transaction. Unlike EncodeChunks' 30-code cap on the wire format,
// every input product code gets its own row here — the cap only bounds
// what is encoded into the billing record itself.
func BuildRows(msg BillingMessage, encryptedRecord string) (SummaryRow, []ProductCodeRow, error) {
	inquiryTimestamp, err := InquiryTimestampUTC(msg.TransactionID)
	if err != nil {
		return SummaryRow{}, nil, fmt.Errorf("failed to derive inquiry timestamp: %w", err)
	}

	summary := SummaryRow{
		TransactionID:       msg.TransactionID[:23],
		InquiryTimestampUTC: inquiryTimestamp,
		BillingRecord:       encryptedRecord,
		SilentLaunch:        msg.IsSilentLaunchEnabled,
		SolutionID:          msg.SolutionID,
		Subcode:             msg.Subcode,
	}

	rows := make([]ProductCodeRow, 0, len(msg.ProductCodes))
	for _, c := range msg.ProductCodes {
		codeType := "optional"
		if c.IsBase() {
			codeType = "base"
		}
		rows = append(rows, ProductCodeRow{
			TransactionID:       msg.TransactionID[:23],
			InquiryTimestampUTC: inquiryTimestamp,
			SolutionID:          msg.SolutionID,
			Subcode:             msg.Subcode,
			ProductCode:         c.ProductCode,
			ProductCodeType:     codeType,
			SilentLaunch:        msg.IsSilentLaunchEnabled,
		})
	}

	return summary, rows, nil
}
