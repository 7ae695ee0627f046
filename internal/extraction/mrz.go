package extraction

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TD3 is the 2x44 machine-readable zone format on passport data pages.
const td3LineLength = 44

// MRZResult carries the decoded fields of a passport MRZ along with the
// check-digit verdicts.
type MRZResult struct {
	DocumentNumber string
	Surname        string
	GivenNames     string
	IssuingCountry string
	Nationality    string
	Sex            string
	DateOfBirth    *time.Time
	ExpiryDate     *time.Time

	// CheckDigitsValid is true when every verifiable check digit matched.
	CheckDigitsValid bool
	// CheckErrors lists which check digits failed, for diagnostics.
	CheckErrors []string
}

// icaoValue maps an MRZ character to its ICAO 9303 numeric value:
// digits map to themselves, A-Z to 10-35, the filler '<' to 0.
func icaoValue(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10, true
	case c == '<':
		return 0, true
	}
	return 0, false
}

// CheckDigit computes the ICAO 9303 check digit over s using the cycling
// 7,3,1 weights. Returns false when s contains characters outside the MRZ
// alphabet.
func CheckDigit(s string) (int, bool) {
	weights := [3]int{7, 3, 1}
	sum := 0
	for i := 0; i < len(s); i++ {
		v, ok := icaoValue(s[i])
		if !ok {
			return 0, false
		}
		sum += v * weights[i%3]
	}
	return sum % 10, true
}

// verifyCheckDigit checks a data segment against its trailing check digit
// character. A filler '<' in the check position is accepted for optional
// segments whose data is entirely filler.
func verifyCheckDigit(data string, check byte, optional bool) bool {
	if optional && check == '<' && strings.Trim(data, "<") == "" {
		return true
	}
	if check < '0' || check > '9' {
		return false
	}
	digit, ok := CheckDigit(data)
	return ok && digit == int(check-'0')
}

var mrzLinePattern = regexp.MustCompile(`^[A-Z0-9<]{40,44}$`)

// FindTD3 scans raw OCR text for the two 44-character MRZ lines of a
// passport data page. OCR sometimes drops trailing fillers, so candidate
// lines are right-padded back to 44 characters.
func FindTD3(text string) (line1, line2 string, ok bool) {
	var candidates []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
		if mrzLinePattern.MatchString(line) {
			for len(line) < td3LineLength {
				line += "<"
			}
			candidates = append(candidates, line)
		}
	}
	for i := 0; i+1 < len(candidates); i++ {
		if candidates[i][0] == 'P' {
			return candidates[i], candidates[i+1], true
		}
	}
	return "", "", false
}

// ParseTD3 decodes the two lines of a passport MRZ.
//
// Line 1: document code, issuing country, surname<<given names.
// Line 2: number+check, nationality, birth date+check, sex, expiry
// date+check, personal number+check, composite check.
func ParseTD3(line1, line2 string) (*MRZResult, error) {
	if len(line1) != td3LineLength || len(line2) != td3LineLength {
		return nil, fmt.Errorf("mrz: lines must be %d characters, got %d and %d",
			td3LineLength, len(line1), len(line2))
	}
	if line1[0] != 'P' {
		return nil, fmt.Errorf("mrz: not a passport document code: %q", line1[0])
	}

	result := &MRZResult{
		IssuingCountry: strings.Trim(line1[2:5], "<"),
		Nationality:    strings.Trim(line2[10:13], "<"),
	}

	// Name field: SURNAME<<GIVEN<NAMES with '<' as the space filler.
	nameField := strings.TrimRight(line1[5:], "<")
	if surname, given, found := strings.Cut(nameField, "<<"); found {
		result.Surname = strings.ReplaceAll(surname, "<", " ")
		result.GivenNames = strings.ReplaceAll(given, "<", " ")
	} else {
		result.Surname = strings.ReplaceAll(nameField, "<", " ")
	}

	result.DocumentNumber = strings.Trim(line2[0:9], "<")
	if sex := line2[20]; sex == 'M' || sex == 'F' {
		result.Sex = string(sex)
	}
	if dob, ok := ParseMRZDate(line2[13:19]); ok {
		result.DateOfBirth = &dob
	}
	if expiry, ok := ParseMRZDate(line2[21:27]); ok {
		result.ExpiryDate = &expiry
	}

	result.CheckDigitsValid = true
	if !verifyCheckDigit(line2[0:9], line2[9], false) {
		result.CheckDigitsValid = false
		result.CheckErrors = append(result.CheckErrors, "document_number")
	}
	if !verifyCheckDigit(line2[13:19], line2[19], false) {
		result.CheckDigitsValid = false
		result.CheckErrors = append(result.CheckErrors, "date_of_birth")
	}
	if !verifyCheckDigit(line2[21:27], line2[27], false) {
		result.CheckDigitsValid = false
		result.CheckErrors = append(result.CheckErrors, "expiry_date")
	}
	if !verifyCheckDigit(line2[28:42], line2[42], true) {
		result.CheckDigitsValid = false
		result.CheckErrors = append(result.CheckErrors, "personal_number")
	}
	composite := line2[0:10] + line2[13:20] + line2[21:43]
	if !verifyCheckDigit(composite, line2[43], false) {
		result.CheckDigitsValid = false
		result.CheckErrors = append(result.CheckErrors, "composite")
	}

	return result, nil
}
