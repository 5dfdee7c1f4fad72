package billing

import "strings"

// FormattedPII holds the six fixed-length strings the billing record
// encoder embeds verbatim.
type FormattedPII struct {
	SSN                string // 9
	YearOfBirth        string // 4
	ConsumerName       string // 129
	CurrentAddress     string // 97
	FirstPreviousAddr  string // 97
	SecondPreviousAddr string // 97
}

// FormatPII builds the fixed-length PII blocks from an ApplicantPII.
// Any sub-field that cannot be formatted degrades to an all-space block of
// the correct width rather than a short result.
func FormatPII(pii ApplicantPII) FormattedPII {
	prev := pii.PreviousAddress
	var first, second Address
	if len(prev) > 0 {
		first = prev[0]
	}
	if len(prev) > 1 {
		second = prev[1]
	}

	return FormattedPII{
		SSN:                pad(pii.SSN, 9),
		YearOfBirth:        pad(yearOfBirth(pii.DOB), 4),
		ConsumerName:       consumerName(pii.Name),
		CurrentAddress:     formatAddress(pii.InquiryAddress),
		FirstPreviousAddr:  formatAddress(first),
		SecondPreviousAddr: formatAddress(second),
	}
}

// yearOfBirth returns the trailing 4 characters of dob, or "" when dob is
// too short to contain one.
func yearOfBirth(dob string) string {
	if len(dob) > 3 {
		return dob[len(dob)-4:]
	}
	return ""
}

// generationCode returns the uppercased first character of the raw
// generation field, or "" when absent.
func generationCode(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.ToUpper(raw[:1])
}

// consumerName assembles the 129-char consumer-name block:
// last(32) + second_last(32) + first(32) + middle(32) + generation(1).
func consumerName(n Name) string {
	return pad(n.Last, 32) +
		pad(n.SecondLast, 32) +
		pad(n.First, 32) +
		pad(n.Middle, 32) +
		pad(generationCode(n.GenerationCode), 1)
}

// formatAddress assembles the 97-char address block:
// street_number(10) + street_name(32) + street_suffix(4) + city(32) +
// state(2) + unit_id(8) + zip_code(9).
func formatAddress(a Address) string {
	streetNumber, streetName := streetNumberAndName(a.Line1 + a.Line2)

	return pad(streetNumber, 10) +
		pad(streetName, 32) +
		pad(a.StreetSuffix, 4) +
		pad(a.City, 32) +
		pad(a.State, 2) +
		pad(a.UnitID, 8) +
		pad(a.ZipCode, 9)
}

// streetNumberAndName splits a concatenated address line on whitespace,
// taking the leading token as the street number only when it is entirely
// digits; otherwise the token stays in the name and the street number is
// empty.
func streetNumberAndName(streetAddress string) (number, name string) {
	tokens := strings.Fields(streetAddress)
	if len(tokens) == 0 {
		return "", ""
	}

	if isAllDigits(tokens[0]) {
		return tokens[0], strings.Join(tokens[1:], " ")
	}
	return "", strings.Join(tokens, " ")
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
