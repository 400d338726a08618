// Package normalize converts raw survey labels into the keys used by the
// document views: ISO periods, classification slugs and commerce divisions.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
)

// monthNumbers is the single source of truth for Portuguese month names.
//
//nolint:gochecknoglobals // Static lookup table
var monthNumbers = map[string]int{
	"janeiro": 1, "fevereiro": 2, "março": 3, "abril": 4,
	"maio": 5, "junho": 6, "julho": 7, "agosto": 8,
	"setembro": 9, "outubro": 10, "novembro": 11, "dezembro": 12,
}

//nolint:gochecknoglobals // Inverse of monthNumbers
var monthNames = func() [13]string {
	var names [13]string
	for name, n := range monthNumbers {
		names[n] = name
	}
	return names
}()

var (
	// Anchored at the start, lowercase letters (ç included) then a year.
	// The separator may be any Unicode space, NBSP included.
	monthYearPattern = regexp.MustCompile(`^([a-zç]+)[\s\p{Z}]+(\d{4})`)
	yearPattern      = regexp.MustCompile(`\d{4}`)
)

// SplitMonthYear matches "<month-name> <year>" at the start of raw and
// returns the lowercased month word and the year. The month word is not
// checked against the month table.
func SplitMonthYear(raw string) (month, year string, ok bool) {
	m := monthYearPattern.FindStringSubmatch(strings.ToLower(raw))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// ParseMonthYear converts "março 2024" into "2024-03". It reports false when
// the pattern does not match or the month name is unknown; callers drop the
// observation in that case.
func ParseMonthYear(raw string) (string, bool) {
	month, year, ok := SplitMonthYear(raw)
	if !ok {
		return "", false
	}
	n, known := monthNumbers[month]
	if !known {
		return "", false
	}
	return fmt.Sprintf("%s-%02d", year, n), true
}

// ExtractYear returns the first four consecutive digits in raw.
func ExtractYear(raw string) (string, bool) {
	y := yearPattern.FindString(raw)
	return y, y != ""
}

// MonthYearLabel is the inverse of ParseMonthYear: (2024, 3) gives "março 2024".
func MonthYearLabel(year, month int) (string, bool) {
	if month < 1 || month > 12 || year < 0 || year > 9999 {
		return "", false
	}
	return fmt.Sprintf("%s %04d", monthNames[month], year), true
}

// LabelFromISO turns "2024-03" back into "março 2024".
func LabelFromISO(iso string) (string, bool) {
	var year, month int
	if _, err := fmt.Sscanf(iso, "%4d-%2d", &year, &month); err != nil {
		return "", false
	}
	return MonthYearLabel(year, month)
}
