// Package docid validates extracted document numbers against
// jurisdiction-specific format and checksum rules. Format failures are hard
// rejections of the document, raised before any verification decision runs.
package docid

import (
	"fmt"
	"strings"

	"veridoc/internal/extraction"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

// Result is the validation verdict for one document number.
type Result struct {
	IsValid          bool     `json:"is_valid"`
	NormalizedNumber string   `json:"normalized_number"`
	Country          string   `json:"country,omitempty"`
	State            string   `json:"state,omitempty"`
	Errors           []string `json:"errors,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
}

// countryAliases folds the three-letter codes extraction tends to produce
// (MRZ country fields) onto the two-letter table keys.
var countryAliases = map[string]string{
	"USA": "US", "CAN": "CA", "GBR": "GB", "IND": "IN",
	"AUS": "AU", "DEU": "DE", "FRA": "FR",
}

// Normalize uppercases a raw document number and strips the separators that
// appear in printed forms.
func Normalize(raw string) string {
	return strings.ToUpper(strings.NewReplacer(" ", "", "-", "", ".", "").Replace(strings.TrimSpace(raw)))
}

// Validate checks a document number against the pattern table for its type.
// countryHint narrows overlapping jurisdiction shapes; lastName enables the
// Ontario license prefix rule.
func Validate(rawNumber string, docType id.DocumentType, countryHint, lastName string) *Result {
	result := &Result{NormalizedNumber: Normalize(rawNumber)}
	if result.NormalizedNumber == "" {
		result.Errors = append(result.Errors, "document number is missing")
		return result
	}

	switch docType {
	case id.DocumentTypePassport:
		validatePassport(result, countryHint)
	case id.DocumentTypeDriversLicense:
		validateLicense(result, countryHint, lastName)
	case id.DocumentTypePermanentResident:
		validatePRCard(result)
	default:
		validateGeneric(result)
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// Check runs Validate and converts a failed verdict into an input-rejection
// error for the processing pipeline.
func Check(rawNumber string, docType id.DocumentType, countryHint, lastName string) (*Result, error) {
	result := Validate(rawNumber, docType, countryHint, lastName)
	if !result.IsValid {
		return result, dErrors.New(dErrors.CodeInvalidInput,
			"document number failed validation: "+strings.Join(result.Errors, "; "))
	}
	return result, nil
}

func normalizeCountry(hint string) string {
	hint = strings.ToUpper(strings.TrimSpace(hint))
	if alias, ok := countryAliases[hint]; ok {
		return alias
	}
	return hint
}

func validatePassport(result *Result, countryHint string) {
	number := result.NormalizedNumber
	hint := normalizeCountry(countryHint)

	if hint != "" {
		for _, j := range passportPatterns {
			if j.country != hint {
				continue
			}
			result.Country = j.country
			if !j.pattern.MatchString(number) {
				result.Errors = append(result.Errors,
					fmt.Sprintf("number does not match the %s passport format", j.country))
				return
			}
			if j.country == "CA" {
				verifyCanadianPassport(result)
			}
			return
		}
		// Unknown issuing country, fall through to shape detection.
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("no passport format rules for country %q", hint))
	}

	for _, j := range passportPatterns {
		if j.pattern.MatchString(number) {
			result.Country = j.country
			if j.country == "CA" {
				verifyCanadianPassport(result)
			}
			return
		}
	}

	result.Warnings = append(result.Warnings, "no passport format matched, generic check applied")
	validateGeneric(result)
}

// verifyCanadianPassport enforces the ICAO 9303 check digit when the
// nine-character number+check form was supplied. The plain eight-character
// form carries no checksum to verify.
func verifyCanadianPassport(result *Result) {
	number := result.NormalizedNumber
	if len(number) != 9 {
		return
	}
	digit, ok := extraction.CheckDigit(number[:8])
	if !ok || digit != int(number[8]-'0') {
		result.Errors = append(result.Errors, "passport check digit mismatch")
	}
}

func validateLicense(result *Result, countryHint, lastName string) {
	number := result.NormalizedNumber
	hint := normalizeCountry(countryHint)

	for _, j := range licensePatterns {
		if hint != "" && j.country != hint {
			continue
		}
		if !j.pattern.MatchString(number) {
			continue
		}
		result.Country = j.country
		result.State = j.state
		if j.state == "ON" {
			verifyOntarioPrefix(result, lastName)
		}
		return
	}

	result.Warnings = append(result.Warnings, "no license format matched, generic check applied")
	validateGeneric(result)
}

// verifyOntarioPrefix enforces Ontario's rule that the license number starts
// with the first letter of the holder's last name.
func verifyOntarioPrefix(result *Result, lastName string) {
	lastName = strings.ToUpper(strings.TrimSpace(lastName))
	if lastName == "" {
		result.Warnings = append(result.Warnings,
			"no extracted last name, ontario prefix rule not checked")
		return
	}
	if result.NormalizedNumber[0] != lastName[0] {
		result.Errors = append(result.Errors,
			"ontario license number must start with the first letter of the last name")
	}
}

func validatePRCard(result *Result) {
	if prCardPattern.MatchString(result.NormalizedNumber) {
		result.Country = "US"
		return
	}
	validateGeneric(result)
}

// validateGeneric is the fallback for types and jurisdictions without a
// structural rule: sane length and alphabet, and not an obvious junk entry.
func validateGeneric(result *Result) {
	number := result.NormalizedNumber
	if !genericPattern.MatchString(number) {
		result.Errors = append(result.Errors, "document number must be 6-20 letters and digits")
		return
	}
	if strings.Count(number, number[:1]) == len(number) {
		result.Errors = append(result.Errors, "document number is a single repeated character")
		return
	}
	if isKeyboardSequence(number) {
		result.Errors = append(result.Errors, "document number is a keyboard sequence")
	}
}

func isKeyboardSequence(number string) bool {
	for _, row := range keyboardRows {
		if strings.Contains(row, number) || strings.Contains(reverse(row), number) {
			return true
		}
	}
	return false
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
