package classifier

import (
	"regexp"

	id "veridoc/pkg/domain"
)

// keyword is one weighted vocabulary entry for a document type.
type keyword struct {
	text   string
	weight float64
}

// typeVocabulary pairs per-type keywords with regex patterns that match
// structural markers (MRZ prefixes, license-number captions) the keyword list
// cannot express.
type typeVocabulary struct {
	keywords []keyword
	patterns []*regexp.Regexp
	// patternWeight is credited once per matching pattern.
	patternWeight float64
}

var vocabularies = map[id.DocumentType]typeVocabulary{
	id.DocumentTypeDriversLicense: {
		keywords: []keyword{
			{"driver license", 0.30},
			{"driver's license", 0.30},
			{"driving licence", 0.30},
			{"operator license", 0.25},
			{"class", 0.10},
			{"endorsements", 0.15},
			{"restrictions", 0.15},
			{"motor vehicle", 0.20},
			{"dmv", 0.20},
			{"organ donor", 0.10},
			{"hgt", 0.05},
			{"wgt", 0.05},
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bDL\s*(?:NO|#|:)`),
			regexp.MustCompile(`(?i)\bLIC(?:ENSE)?\s*(?:NO|#|:)`),
			regexp.MustCompile(`(?i)\bCLASS\s*[A-Z]\b`),
		},
		patternWeight: 0.20,
	},
	id.DocumentTypePassport: {
		keywords: []keyword{
			{"passport", 0.35},
			{"passeport", 0.30},
			{"pasaporte", 0.30},
			{"nationality", 0.15},
			{"place of birth", 0.15},
			{"date of issue", 0.10},
			{"issuing authority", 0.15},
			{"surname", 0.10},
			{"given names", 0.10},
		},
		patterns: []*regexp.Regexp{
			// MRZ first line of a TD3 passport.
			regexp.MustCompile(`P[A-Z<][A-Z]{3}[A-Z]+<<[A-Z]`),
			regexp.MustCompile(`(?i)\bpassport\s*(?:no|number)\b`),
		},
		patternWeight: 0.30,
	},
	id.DocumentTypeNationalID: {
		keywords: []keyword{
			{"national identity", 0.35},
			{"national id", 0.35},
			{"identity card", 0.30},
			{"identification card", 0.25},
			{"citizen", 0.15},
			{"republic of", 0.10},
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bID\s*(?:NO|#|:)`),
		},
		patternWeight: 0.15,
	},
	id.DocumentTypeResidencePermit: {
		keywords: []keyword{
			{"residence permit", 0.40},
			{"resident permit", 0.35},
			{"permit", 0.10},
			{"visa", 0.15},
			{"immigration", 0.15},
			{"valid until", 0.10},
		},
		patternWeight: 0.15,
	},
	id.DocumentTypePermanentResident: {
		keywords: []keyword{
			{"permanent resident", 0.40},
			{"green card", 0.35},
			{"uscis", 0.30},
			{"resident since", 0.20},
			{"card expires", 0.10},
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bUSCIS\s*(?:NO|#|:)`),
		},
		patternWeight: 0.20,
	},
}
