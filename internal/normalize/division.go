package normalize

import "strings"

// Division is a top-level commerce bucket derived from a group code prefix.
type Division string

// Commerce divisions.
const (
	DivisionVehicles  Division = "vehicle_parts_motorcycle"
	DivisionWholesale Division = "wholesale_trade"
	DivisionRetail    Division = "retail_trade"
	// DivisionOther only appears in the grouped revenue/expense view.
	DivisionOther Division = "other"
)

//nolint:gochecknoglobals // Ordered prefix table
var divisionPrefixes = []struct {
	prefix   string
	division Division
}{
	{"2.", DivisionVehicles},
	{"3.", DivisionWholesale},
	{"4.", DivisionRetail},
}

// Divisions returns the three commerce divisions in display order.
func Divisions() []Division {
	return []Division{DivisionVehicles, DivisionWholesale, DivisionRetail}
}

// ResolveDivision maps a group label such as "4.5 Hipermercados" to its division.
func ResolveDivision(code string) (Division, bool) {
	for _, p := range divisionPrefixes {
		if strings.HasPrefix(code, p.prefix) {
			return p.division, true
		}
	}
	return "", false
}

// ResolveDivisionOrOther is ResolveDivision with unmatched codes bucketed as other.
func ResolveDivisionOrOther(code string) Division {
	if d, ok := ResolveDivision(code); ok {
		return d
	}
	return DivisionOther
}
