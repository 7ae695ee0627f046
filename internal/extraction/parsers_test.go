package extraction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "veridoc/pkg/domain"
)

func TestParsePassportText(t *testing.T) {
	t.Run("mrz wins over labels", func(t *testing.T) {
		text := strings.Join([]string{
			"PASSPORT",
			"Surname: WRONG",
			validMRZLine1,
			validMRZLine2,
		}, "\n")

		data := ParseText(text, id.DocumentTypePassport)
		assert.Equal(t, "DOE", data.Surname)
		assert.Equal(t, "JOHN", data.GivenName)
		assert.Equal(t, "AB123456", data.DocumentNumber)
		assert.Equal(t, "USA", data.Nationality)
		assert.NotEmpty(t, data.MRZ)
		assert.InDelta(t, 0.9, data.Confidence, 0.001)
	})

	t.Run("failed check digits lower confidence", func(t *testing.T) {
		corrupted := "AB123456<5" + validMRZLine2[10:]
		text := validMRZLine1 + "\n" + corrupted

		data := ParseText(text, id.DocumentTypePassport)
		assert.Equal(t, "AB123456", data.DocumentNumber)
		assert.InDelta(t, 0.6, data.Confidence, 0.001)
	})

	t.Run("falls back to labels without an mrz", func(t *testing.T) {
		text := strings.Join([]string{
			"PASSPORT",
			"Surname: Doe",
			"Given names: John",
			"Passport No: X1234567",
			"Date of birth: 15 JAN 1990",
			"Date of expiry: 2030-01-15",
		}, "\n")

		data := ParseText(text, id.DocumentTypePassport)
		assert.Equal(t, "Doe", data.Surname)
		assert.Equal(t, "John", data.GivenName)
		assert.Equal(t, "X1234567", data.DocumentNumber)
		require.NotNil(t, data.DateOfBirth)
		assert.Equal(t, 1990, data.DateOfBirth.Year())
		require.NotNil(t, data.ExpiryDate)
		assert.Equal(t, 2030, data.ExpiryDate.Year())
		assert.Greater(t, data.Confidence, 0.5)
		assert.LessOrEqual(t, data.Confidence, 0.75)
	})
}

func TestParseCardText(t *testing.T) {
	t.Run("labeled license fields", func(t *testing.T) {
		text := strings.Join([]string{
			"DRIVER LICENSE",
			"License No: D1234-56789",
			"Last Name: Smith",
			"First Name: Alice",
			"DOB: 03/22/1985",
			"Exp: 2027-03-22",
		}, "\n")

		data := ParseText(text, id.DocumentTypeDriversLicense)
		assert.Equal(t, "Smith", data.Surname)
		assert.Equal(t, "Alice", data.GivenName)
		assert.Equal(t, "D123456789", data.DocumentNumber, "separators stripped")
		require.NotNil(t, data.DateOfBirth)
		assert.Equal(t, 1985, data.DateOfBirth.Year())
		require.NotNil(t, data.ExpiryDate)
	})

	t.Run("bare uppercase name line on captionless licenses", func(t *testing.T) {
		text := strings.Join([]string{
			"DRIVER LICENSE",
			"SMITH ALICE",
			"DL 98765432",
		}, "\n")

		data := ParseText(text, id.DocumentTypeDriversLicense)
		assert.Equal(t, "SMITH ALICE", data.FullName)
		assert.Equal(t, "98765432", data.DocumentNumber)
	})

	t.Run("national id with generic labels", func(t *testing.T) {
		text := strings.Join([]string{
			"NATIONAL IDENTITY CARD",
			"Name: Maria Garcia",
			"ID Number: 123456789",
			"Nationality: Spanish",
			"Sex: F",
		}, "\n")

		data := ParseText(text, id.DocumentTypeNationalID)
		assert.Equal(t, "Maria Garcia", data.FullName)
		assert.Equal(t, "123456789", data.DocumentNumber)
		assert.Equal(t, "Spanish", data.Nationality)
		assert.Equal(t, "F", data.Sex)
	})

	t.Run("nothing recovered scores zero", func(t *testing.T) {
		data := ParseText("completely unrelated text", id.DocumentTypeNationalID)
		assert.False(t, data.HasIdentity())
		assert.Zero(t, data.Confidence)
	})
}

func TestCanonicalKey(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "Family Name", want: "surname"},
		{raw: "last-name", want: "surname"},
		{raw: "FIRST_NAME", want: "given_name"},
		{raw: "Passport Number", want: "document_number"},
		{raw: "DOB", want: "date_of_birth"},
		{raw: "valid until", want: "expiry_date"},
		{raw: "zip", want: "postal_code"},
		{raw: "something else", want: ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, CanonicalKey(tc.raw), "raw %q", tc.raw)
	}
}

func TestResolvedName(t *testing.T) {
	assert.Equal(t, "Jane Doe", (&Data{FullName: "Jane Doe", Surname: "Ignored"}).ResolvedName())
	assert.Equal(t, "Jane Doe", (&Data{GivenName: "Jane", Surname: "Doe"}).ResolvedName())
	assert.Equal(t, "Doe", (&Data{Surname: "Doe"}).ResolvedName())
	assert.Equal(t, "", (&Data{}).ResolvedName())
}
