package extraction

import (
	"strings"
	"time"

	id "veridoc/pkg/domain"
)

// Data is the canonical field set every extraction strategy maps onto.
// Pointers distinguish "absent" from "zero"; the decision engine merges these
// newest-wins across a verification's documents.
type Data struct {
	Surname        string     `json:"surname,omitempty"`
	GivenName      string     `json:"given_name,omitempty"`
	FullName       string     `json:"full_name,omitempty"`
	DocumentNumber string     `json:"document_number,omitempty"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	IssueDate      *time.Time `json:"issue_date,omitempty"`
	ExpiryDate     *time.Time `json:"expiry_date,omitempty"`
	Address        string     `json:"address,omitempty"`
	City           string     `json:"city,omitempty"`
	State          string     `json:"state,omitempty"`
	PostalCode     string     `json:"postal_code,omitempty"`
	Country        string     `json:"country,omitempty"`
	Nationality    string     `json:"nationality,omitempty"`
	Sex            string     `json:"sex,omitempty"`
	MRZ            string     `json:"mrz,omitempty"`

	DocumentType id.DocumentType `json:"document_type,omitempty"`
	// Confidence is the extracting strategy's overall confidence in [0,1].
	Confidence float64 `json:"confidence"`
	// Source names the provider or strategy that produced the data.
	Source string `json:"source,omitempty"`
}

// HasIdentity reports whether extraction recovered enough to proceed: either
// a usable name or a document number. The engine's validation gate rejects
// results without both.
func (d *Data) HasIdentity() bool {
	return d.ResolvedName() != "" || d.DocumentNumber != ""
}

// ResolvedName returns the best available full name, assembling it from the
// name parts when no single full-name field was extracted.
func (d *Data) ResolvedName() string {
	if d.FullName != "" {
		return d.FullName
	}
	parts := make([]string, 0, 2)
	if d.GivenName != "" {
		parts = append(parts, d.GivenName)
	}
	if d.Surname != "" {
		parts = append(parts, d.Surname)
	}
	return strings.Join(parts, " ")
}

// canonicalKeys maps the many provider-specific entity names onto one
// canonical key per field. Lookup is case-insensitive with spaces and dashes
// folded to underscores.
var canonicalKeys = map[string]string{
	"surname":       "surname",
	"family_name":   "surname",
	"last_name":     "surname",
	"lastname":      "surname",
	"nom":           "surname",
	"given_name":    "given_name",
	"given_names":   "given_name",
	"first_name":    "given_name",
	"firstname":     "given_name",
	"forename":      "given_name",
	"middle_name":   "given_name",
	"prenom":        "given_name",
	"full_name":     "full_name",
	"name":          "full_name",
	"holder_name":   "full_name",
	"complete_name": "full_name",

	"document_number": "document_number",
	"document_id":     "document_number",
	"doc_number":      "document_number",
	"license_number":  "document_number",
	"licence_number":  "document_number",
	"passport_number": "document_number",
	"id_number":       "document_number",
	"card_number":     "document_number",
	"number":          "document_number",

	"date_of_birth": "date_of_birth",
	"birth_date":    "date_of_birth",
	"birthdate":     "date_of_birth",
	"dob":           "date_of_birth",

	"issue_date":    "issue_date",
	"date_of_issue": "issue_date",
	"issued":        "issue_date",
	"issued_on":     "issue_date",

	"expiry_date":     "expiry_date",
	"expiration_date": "expiry_date",
	"date_of_expiry":  "expiry_date",
	"expires":         "expiry_date",
	"expiry":          "expiry_date",
	"valid_until":     "expiry_date",

	"address":        "address",
	"street_address": "address",
	"address_line":   "address",
	"residence":      "address",

	"city":     "city",
	"locality": "city",
	"town":     "city",

	"state":    "state",
	"province": "state",
	"region":   "state",

	"postal_code": "postal_code",
	"zip":         "postal_code",
	"zip_code":    "postal_code",
	"postcode":    "postal_code",

	"country":         "country",
	"issuing_country": "country",
	"country_code":    "country",

	"nationality": "nationality",

	"sex":    "sex",
	"gender": "sex",

	"mrz":                   "mrz",
	"machine_readable_zone": "mrz",
	"mrz_text":              "mrz",
}

// CanonicalKey folds a provider entity name onto its canonical field key.
// Unknown keys return empty.
func CanonicalKey(raw string) string {
	folded := strings.ToLower(strings.TrimSpace(raw))
	folded = strings.NewReplacer(" ", "_", "-", "_").Replace(folded)
	return canonicalKeys[folded]
}

// setField assigns a canonical key's value onto the data struct. Date fields
// run through the bilingual date parser; unparseable dates are skipped rather
// than failing the whole extraction.
func (d *Data) setField(key, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	switch key {
	case "surname":
		d.Surname = value
	case "given_name":
		if d.GivenName == "" {
			d.GivenName = value
		} else {
			d.GivenName += " " + value
		}
	case "full_name":
		d.FullName = value
	case "document_number":
		d.DocumentNumber = value
	case "date_of_birth":
		if t, ok := ParseDate(value); ok {
			d.DateOfBirth = &t
		}
	case "issue_date":
		if t, ok := ParseDate(value); ok {
			d.IssueDate = &t
		}
	case "expiry_date":
		if t, ok := ParseDate(value); ok {
			d.ExpiryDate = &t
		}
	case "address":
		d.Address = value
	case "city":
		d.City = value
	case "state":
		d.State = value
	case "postal_code":
		d.PostalCode = value
	case "country":
		d.Country = value
	case "nationality":
		d.Nationality = value
	case "sex":
		d.Sex = value
	case "mrz":
		d.MRZ = value
	}
}
