package docid

import "regexp"

// jurisdiction is one row of the per-type pattern tables.
type jurisdiction struct {
	country string
	state   string
	pattern *regexp.Regexp
}

// passportPatterns covers the issuing countries we validate structurally.
// Canadian numbers get an additional check-digit pass when the nine-character
// form is supplied.
var passportPatterns = []jurisdiction{
	{country: "US", pattern: regexp.MustCompile(`^(?:\d{9}|[A-Z]\d{8})$`)},
	{country: "CA", pattern: regexp.MustCompile(`^[A-Z]{2}\d{6}\d?$`)},
	{country: "GB", pattern: regexp.MustCompile(`^\d{9}$`)},
	{country: "IN", pattern: regexp.MustCompile(`^[A-Z]\d{7}$`)},
	{country: "AU", pattern: regexp.MustCompile(`^[A-Z]{1,2}\d{7}$`)},
	{country: "DE", pattern: regexp.MustCompile(`^[CFGHJK][CFGHJKLMNPRTVWXYZ0-9]{8}$`)},
	{country: "FR", pattern: regexp.MustCompile(`^\d{2}[A-Z]{2}\d{5}$`)},
}

// licensePatterns covers the US states and Canadian provinces with distinctive
// formats. Shapes overlap between jurisdictions, so an issuing-country hint
// narrows the table before matching.
var licensePatterns = []jurisdiction{
	{country: "US", state: "CA", pattern: regexp.MustCompile(`^[A-Z]\d{7}$`)},
	{country: "US", state: "NY", pattern: regexp.MustCompile(`^\d{9}$`)},
	{country: "US", state: "TX", pattern: regexp.MustCompile(`^\d{8}$`)},
	{country: "US", state: "FL", pattern: regexp.MustCompile(`^[A-Z]\d{12}$`)},
	{country: "US", state: "IL", pattern: regexp.MustCompile(`^[A-Z]\d{11}$`)},
	{country: "US", state: "OH", pattern: regexp.MustCompile(`^[A-Z]{2}\d{6}$`)},
	{country: "US", state: "PA", pattern: regexp.MustCompile(`^\d{8}$`)},
	{country: "US", state: "WA", pattern: regexp.MustCompile(`^[A-Z0-9]{12}$`)},
	{country: "US", state: "NJ", pattern: regexp.MustCompile(`^[A-Z]\d{14}$`)},

	{country: "CA", state: "ON", pattern: regexp.MustCompile(`^[A-Z]\d{14}$`)},
	{country: "CA", state: "BC", pattern: regexp.MustCompile(`^\d{7}$`)},
	{country: "CA", state: "AB", pattern: regexp.MustCompile(`^\d{6,9}$`)},
	{country: "CA", state: "QC", pattern: regexp.MustCompile(`^[A-Z]\d{12}$`)},
}

// prCardPattern is the USCIS receipt-number shape on US permanent-resident
// cards. Other residence permits fall through to the generic check.
var prCardPattern = regexp.MustCompile(`^[A-Z]{3}\d{10}$`)

var genericPattern = regexp.MustCompile(`^[A-Z0-9]{6,20}$`)

// keyboardRows are the layouts scanned for sequential junk entries.
var keyboardRows = []string{
	"0123456789",
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ",
	"QWERTYUIOP",
	"ASDFGHJKL",
	"ZXCVBNM",
}
