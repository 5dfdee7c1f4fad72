// Package billing implements the fixed-width billing record encoder and
// the applicant-PII formatter, plus the data model they share.
package billing

import "fmt"

// ProductCode is one entry in a BillingMessage's product_codes list. The
// product whose Index is "10" is the transaction's single base product;
// every other index value marks an optional product.
type ProductCode struct {
	ProductCode string `json:"productCode"`
	Index       string `json:"index"`
}

// IsBase reports whether this product code is the transaction's base
// product.
func (p ProductCode) IsBase() bool { return p.Index == "10" }

// Name is the applicant's name, broken into the fixed-width fields the
// consumer-name block requires.
type Name struct {
	Last           string `json:"last_name"`
	SecondLast     string `json:"second_last_name"`
	First          string `json:"first_name"`
	Middle         string `json:"middle_name"`
	GenerationCode string `json:"generation_code"`
}

// Address is a street address as carried in the inquiry or in one of the
// previous addresses (FormatPII uses only the first two of those).
type Address struct {
	Line1        string `json:"line1"`
	Line2        string `json:"line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zip_code"`
	StreetSuffix string `json:"street_suffix"`
	UnitID       string `json:"unit_id"`
}

// ApplicantPII is the nested PII block of a BillingMessage.
type ApplicantPII struct {
	Name            Name      `json:"name"`
	SSN             string    `json:"ssn"`
	DOB             string    `json:"dob"`
	InquiryAddress  Address   `json:"inquiry_address"`
	PreviousAddress []Address `json:"previous_address"`
}

// BillingMessage is the validated input for the billing pipeline.
type BillingMessage struct {
	TransactionID         string        `json:"transaction_id"`
	SolutionID            string        `json:"solution_id"`
	Subcode               string        `json:"subcode"`
	ARFVersion            string        `json:"arf_version"`
	IsSilentLaunchEnabled bool          `json:"is_silent_launch_enabled"`
	ApplicantPII          ApplicantPII  `json:"applicant_pii"`
	ProductCodes          []ProductCode `json:"product_codes"`
}

// Validate checks the required-field contract the billing handler applies
// before formatting or encoding a message. Validation failures are logged
// with the record key and the record is skipped — never retried.
func (m BillingMessage) Validate() error {
	if len(m.TransactionID) < 23 {
		return fmt.Errorf("transaction_id must be at least 23 characters, got %d", len(m.TransactionID))
	}
	if m.SolutionID == "" {
		return fmt.Errorf("solution_id is required")
	}
	if m.Subcode == "" {
		return fmt.Errorf("subcode is required")
	}
	if m.ARFVersion == "" {
		return fmt.Errorf("arf_version is required")
	}
	if len(m.ProductCodes) == 0 {
		return fmt.Errorf("at least one product code is required")
	}
	return nil
}

// SummaryRow is one row for the billing summary table.
type SummaryRow struct {
	TransactionID       string
	InquiryTimestampUTC string // RFC3339, derived from transaction_id[0:14]
	BillingRecord       string
	SilentLaunch        bool
	SolutionID          string
	Subcode             string
}

// ProductCodeRow is one row for the billing product-codes table.
type ProductCodeRow struct {
	TransactionID       string
	InquiryTimestampUTC string
	SolutionID          string
	Subcode             string
	ProductCode         string
	ProductCodeType     string // "base" or "optional"
	SilentLaunch        bool
}
