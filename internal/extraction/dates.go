package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// monthNames folds month spellings from document text onto month numbers.
// Covers English and French (Canadian permits and passports carry French
// captions); Korean dates use positional suffixes and are handled by the
// hangulDatePattern instead.
var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,

	"janv": time.January, "janvier": time.January,
	"fevr": time.February, "fevrier": time.February,
	"fev": time.February,
	"mars": time.March,
	"avr":  time.April, "avril": time.April,
	"mai":  time.May,
	"juin": time.June,
	"juil": time.July, "juillet": time.July,
	"aout":      time.August,
	"septembre": time.September,
	"octobre":   time.October,
	"novembre":  time.November,
	"decembre":  time.December,
}

var (
	isoDatePattern    = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	slashDatePattern  = regexp.MustCompile(`^(\d{1,2})[/.](\d{1,2})[/.](\d{4})$`)
	yearFirstPattern  = regexp.MustCompile(`^(\d{4})[/.](\d{1,2})[/.](\d{1,2})$`)
	dayMonthPattern   = regexp.MustCompile(`^(\d{1,2})\s+([a-z]+)\.?\s+(\d{4})$`)
	monthDayPattern   = regexp.MustCompile(`^([a-z]+)\.?\s+(\d{1,2}),?\s+(\d{4})$`)
	hangulDatePattern = regexp.MustCompile(`^(\d{4})\s*년\s*(\d{1,2})\s*월\s*(\d{1,2})\s*일$`)
)

// foldAccents maps the accented characters that appear in French month names
// onto their ASCII forms so one lookup table serves both spellings.
var foldAccents = strings.NewReplacer(
	"é", "e", "è", "e", "ê", "e", "û", "u", "î", "i", "à", "a", "ô", "o", "ç", "c",
)

// ParseDate parses a document date in any of the supported written formats:
// ISO, slash-separated (month first, the North American document
// convention), day-month-name-year, month-name-day-year, French month names,
// and Korean positional dates.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(strings.ToLower(raw))
	s = foldAccents.Replace(s)
	if s == "" {
		return time.Time{}, false
	}

	if m := isoDatePattern.FindStringSubmatch(s); m != nil {
		return makeDate(m[1], m[2], m[3])
	}
	if m := yearFirstPattern.FindStringSubmatch(s); m != nil {
		return makeDate(m[1], m[2], m[3])
	}
	if m := slashDatePattern.FindStringSubmatch(s); m != nil {
		// MM/DD/YYYY; dates like 25/12/1990 only parse day-first.
		if t, ok := makeDate(m[3], m[1], m[2]); ok {
			return t, true
		}
		return makeDate(m[3], m[2], m[1])
	}
	if m := hangulDatePattern.FindStringSubmatch(s); m != nil {
		return makeDate(m[1], m[2], m[3])
	}
	if m := dayMonthPattern.FindStringSubmatch(s); m != nil {
		if month, ok := monthNames[m[2]]; ok {
			return makeDate(m[3], strconv.Itoa(int(month)), m[1])
		}
	}
	if m := monthDayPattern.FindStringSubmatch(s); m != nil {
		if month, ok := monthNames[m[1]]; ok {
			return makeDate(m[3], strconv.Itoa(int(month)), m[2])
		}
	}
	return time.Time{}, false
}

// ParseMRZDate parses the YYMMDD form used in machine-readable zones.
// Two-digit years pivot at 50: 50-99 map to the 1900s, 00-49 to the 2000s.
func ParseMRZDate(raw string) (time.Time, bool) {
	if len(raw) != 6 {
		return time.Time{}, false
	}
	yy, err := strconv.Atoi(raw[0:2])
	if err != nil {
		return time.Time{}, false
	}
	year := 2000 + yy
	if yy >= 50 {
		year = 1900 + yy
	}
	return makeDate(strconv.Itoa(year), raw[2:4], raw[4:6])
}

func makeDate(year, month, day string) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// Reject normalized overflow like February 30.
	if t.Day() != d || t.Month() != time.Month(m) {
		return time.Time{}, false
	}
	return t, true
}
