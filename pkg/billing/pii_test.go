package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatPII_MinimalPII(t *testing.T) {
	pii := ApplicantPII{
		Name: Name{Last: "ANASTASIO", First: "JESSE"},
		InquiryAddress: Address{
			Line1:   "2752 SOLOMONS ISLAND RD",
			City:    "EDGEWATER",
			State:   "MD",
			ZipCode: "210371211",
		},
	}

	got := FormatPII(pii)

	assert.Equal(t, "         ", got.SSN)
	assert.Equal(t, "    ", got.YearOfBirth)
	assert.Equal(t,
		"2752      SOLOMONS ISLAND RD                  EDGEWATER                       MD        210371211",
		got.CurrentAddress)
	assert.Len(t, got.CurrentAddress, 97)
	assert.Equal(t, blanks(97), got.FirstPreviousAddr)
	assert.Equal(t, blanks(97), got.SecondPreviousAddr)
}

func TestFormatPII_FullPIIWithTwoPreviousAddresses(t *testing.T) {
	pii := ApplicantPII{
		Name: Name{Last: "BARNETT", First: "IRENE", GenerationCode: "f"},
		SSN:  "666444255",
		InquiryAddress: Address{
			Line1:   "2752 SOLOMONS ISLAND RD",
			City:    "EDGEWATER",
			State:   "MD",
			ZipCode: "210371211",
		},
		PreviousAddress: []Address{
			{Line1: "999 Oak Street", City: "Orange", State: "CA", ZipCode: "92544"},
			{Line1: "1001 Oak Street", Line2: "Apt 1122", City: "Orange", State: "CA", ZipCode: "92544"},
		},
	}

	got := FormatPII(pii)

	assert.Equal(t, "666444255", got.SSN)
	assert.Equal(t,
		"1001      Oak StreetApt 1122                  Orange                          CA        92544    ",
		got.SecondPreviousAddr)
	assert.Len(t, got.SecondPreviousAddr, 97)

	// Generation code is uppercased to the first character.
	assert.Equal(t, "F", got.ConsumerName[128:129])
	assert.Len(t, got.ConsumerName, 129)
}

func TestFormatPII_YearOfBirth(t *testing.T) {
	pii := ApplicantPII{DOB: "01151988"}
	got := FormatPII(pii)
	assert.Equal(t, "1988", got.YearOfBirth)
}

func TestFormatPII_YearOfBirthTooShort(t *testing.T) {
	pii := ApplicantPII{DOB: "88"}
	got := FormatPII(pii)
	assert.Equal(t, "    ", got.YearOfBirth)
}

func TestStreetNumberAndName_NonNumericLeadingToken(t *testing.T) {
	number, name := streetNumberAndName("Oak Street")
	assert.Equal(t, "", number)
	assert.Equal(t, "Oak Street", name)
}

func TestStreetNumberAndName_Empty(t *testing.T) {
	number, name := streetNumberAndName("")
	assert.Equal(t, "", number)
	assert.Equal(t, "", name)
}

func blanks(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
