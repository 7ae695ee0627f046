package extraction

import (
	"regexp"
	"strings"
	"time"

	id "veridoc/pkg/domain"
)

// Regex-based field parsing for raw provider text. These parsers back the
// vision and OCR links of the fallback chain; the structured provider never
// needs them.

var (
	surnameLabelPattern = regexp.MustCompile(`(?im)^(?:surname|last name|family name|nom)\s*[:/]?\s*([A-Za-z' -]{2,40})$`)
	givenLabelPattern   = regexp.MustCompile(`(?im)^(?:given names?|first name|forename|prenoms?)\s*[:/]?\s*([A-Za-z' -]{2,40})$`)
	fullNameLabel       = regexp.MustCompile(`(?im)^(?:name|full name)\s*[:/]?\s*([A-Za-z' -]{2,60})$`)

	docNumberLabel = regexp.MustCompile(`(?im)\b(?:document|passport|licen[cs]e|card|id)\s*(?:no|number|#)\.?\s*[:/]?\s*([A-Z0-9][A-Z0-9 -]{3,20})`)
	dlShortLabel   = regexp.MustCompile(`(?im)^(?:dl|lic)\s*(?:no|#)?\.?\s*[:/]?\s*([A-Z0-9][A-Z0-9 -]{3,20})`)

	dobLabel    = regexp.MustCompile(`(?im)(?:date of birth|birth date|dob|ne\(?e?\)? le)\s*[:/]?\s*(.+)$`)
	expiryLabel = regexp.MustCompile(`(?im)(?:date of expiry|expiration date|expiry date|expires|exp|valid until)\s*[:/.]?\s*(.+)$`)
	issueLabel  = regexp.MustCompile(`(?im)(?:date of issue|issue date|issued|iss)\s*[:/.]?\s*(.+)$`)

	nationalityLabel = regexp.MustCompile(`(?im)^nationality\s*[:/]?\s*([A-Za-z ]{2,30})$`)
	sexLabel         = regexp.MustCompile(`(?im)^(?:sex|gender)\s*[:/]?\s*([MF])\b`)

	// licenseNameLine finds a bare two-or-three-word uppercase line, the way
	// names print on North American licenses without a caption.
	licenseNameLine = regexp.MustCompile(`(?m)^([A-Z][A-Z'-]+(?: [A-Z][A-Z'-]+){1,2})$`)
)

// ParseText runs the type-specialized regex parser over raw text.
func ParseText(text string, docType id.DocumentType) *Data {
	switch docType {
	case id.DocumentTypePassport:
		return parsePassportText(text)
	default:
		return parseCardText(text, docType)
	}
}

// parsePassportText prefers the MRZ when present: it is machine-printed and
// check-digit protected, so it beats any label parsing.
func parsePassportText(text string) *Data {
	data := &Data{DocumentType: id.DocumentTypePassport}

	if line1, line2, ok := FindTD3(text); ok {
		mrz, err := ParseTD3(line1, line2)
		if err == nil {
			data.Surname = strings.TrimSpace(mrz.Surname)
			data.GivenName = strings.TrimSpace(mrz.GivenNames)
			data.DocumentNumber = mrz.DocumentNumber
			data.DateOfBirth = mrz.DateOfBirth
			data.ExpiryDate = mrz.ExpiryDate
			data.Nationality = mrz.Nationality
			data.Country = mrz.IssuingCountry
			data.Sex = mrz.Sex
			data.MRZ = line1 + "\n" + line2
			if mrz.CheckDigitsValid {
				data.Confidence = 0.9
			} else {
				data.Confidence = 0.6
			}
			// Labeled fields can still fill gaps the MRZ does not carry.
			fillFromLabels(data, text)
			return data
		}
	}

	fillFromLabels(data, text)
	data.Confidence = labelConfidence(data)
	return data
}

// parseCardText handles licenses, national IDs, and residence/PR cards.
func parseCardText(text string, docType id.DocumentType) *Data {
	data := &Data{DocumentType: docType}
	fillFromLabels(data, text)

	if docType == id.DocumentTypeDriversLicense {
		if data.DocumentNumber == "" {
			if m := dlShortLabel.FindStringSubmatch(text); m != nil {
				data.DocumentNumber = normalizeNumberToken(m[1])
			}
		}
		if data.Surname == "" && data.FullName == "" {
			for _, m := range licenseNameLine.FindAllStringSubmatch(text, -1) {
				if candidate := strings.TrimSpace(m[1]); !isCaptionLine(candidate) {
					data.FullName = candidate
					break
				}
			}
		}
	}

	data.Confidence = labelConfidence(data)
	return data
}

// fillFromLabels extracts every labeled field it can find.
func fillFromLabels(data *Data, text string) {
	if data.Surname == "" {
		if m := surnameLabelPattern.FindStringSubmatch(text); m != nil {
			data.Surname = strings.TrimSpace(m[1])
		}
	}
	if data.GivenName == "" {
		if m := givenLabelPattern.FindStringSubmatch(text); m != nil {
			data.GivenName = strings.TrimSpace(m[1])
		}
	}
	if data.FullName == "" && data.Surname == "" {
		if m := fullNameLabel.FindStringSubmatch(text); m != nil {
			data.FullName = strings.TrimSpace(m[1])
		}
	}
	if data.DocumentNumber == "" {
		if m := docNumberLabel.FindStringSubmatch(text); m != nil {
			data.DocumentNumber = normalizeNumberToken(m[1])
		}
	}
	if data.DateOfBirth == nil {
		if t, ok := findDate(dobLabel, text); ok {
			data.DateOfBirth = &t
		}
	}
	if data.ExpiryDate == nil {
		if t, ok := findDate(expiryLabel, text); ok {
			data.ExpiryDate = &t
		}
	}
	if data.IssueDate == nil {
		if t, ok := findDate(issueLabel, text); ok {
			data.IssueDate = &t
		}
	}
	if data.Nationality == "" {
		if m := nationalityLabel.FindStringSubmatch(text); m != nil {
			data.Nationality = strings.TrimSpace(m[1])
		}
	}
	if data.Sex == "" {
		if m := sexLabel.FindStringSubmatch(text); m != nil {
			data.Sex = m[1]
		}
	}
}

// captionWords are uppercase words that appear in document headers and must
// not be mistaken for a printed holder name.
var captionWords = map[string]bool{
	"DRIVER": true, "DRIVERS": true, "LICENSE": true, "LICENCE": true,
	"IDENTITY": true, "IDENTIFICATION": true, "NATIONAL": true, "CARD": true,
	"PERMIT": true, "RESIDENT": true, "RESIDENCE": true, "PERMANENT": true,
	"PASSPORT": true, "PROVINCE": true, "STATE": true, "REPUBLIC": true,
	"UNITED": true, "STATES": true, "CANADA": true, "ONTARIO": true,
}

func isCaptionLine(line string) bool {
	for _, word := range strings.Fields(line) {
		if captionWords[word] {
			return true
		}
	}
	return false
}

// findDate captures the text after a date label and tries progressively
// shorter token prefixes until one parses; labels often share a line with
// unrelated trailing text.
func findDate(label *regexp.Regexp, text string) (time.Time, bool) {
	m := label.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	tokens := strings.Fields(strings.TrimSpace(m[1]))
	for n := len(tokens); n >= 1; n-- {
		if n > 4 {
			continue
		}
		if t, ok := ParseDate(strings.Join(tokens[:n], " ")); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// normalizeNumberToken strips the separators OCR tends to keep inside
// document numbers.
func normalizeNumberToken(s string) string {
	return strings.Trim(strings.NewReplacer(" ", "", "-", "").Replace(s), " -")
}

// labelConfidence scores a label-parsed result by how many of the essential
// fields were recovered. It never reaches structured-provider territory.
func labelConfidence(data *Data) float64 {
	score := 0.0
	if data.ResolvedName() != "" {
		score += 0.25
	}
	if data.DocumentNumber != "" {
		score += 0.25
	}
	if data.DateOfBirth != nil {
		score += 0.1
	}
	if data.ExpiryDate != nil {
		score += 0.1
	}
	if data.Nationality != "" || data.Country != "" {
		score += 0.05
	}
	if score > 0 {
		score += 0.15
	}
	if score > 0.75 {
		score = 0.75
	}
	return score
}
