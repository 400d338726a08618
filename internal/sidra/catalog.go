package sidra

// Periods requested per dataset kind.
const (
	periodLookup  = "last 2"
	periodYearly  = "last 12"
	periodMonthly = "last 60"
)

//nolint:gochecknoglobals // Static category selections
var (
	commerceGroups = Classification{
		Code: "11070",
		Categories: "4765,4766,4767,4768,4778,6554,6654,6799,6800," +
			"90130,90131,90132,90152,90156,90157,106765,106774",
	}
	industryActivities = Classification{Code: "544", Categories: "129314,129315,129316"}
	industryCNAE       = Classification{
		Code: "12762",
		Categories: "116881,116884,116887,116897,116905,116911," +
			"116952,116960,116965,116985,116994,117007,117015," +
			"117029,117039,117048,117082,117089,117099,117116," +
			"117136,117159,117179,117196,117229,117245,117261," +
			"117267,117283",
	}
	serviceVolumeSegments  = []Classification{{Code: "11046", Categories: "56726"}, {Code: "1274", Categories: "all"}}
	serviceRevenueSegments = []Classification{{Code: "11046", Categories: "56725"}, {Code: "1274", Categories: "all"}}
)

// Dataset names one extract the pipeline fetches.
type Dataset struct {
	Sector string
	Name   string
	Query  Query
}

// Catalog returns every dataset fetched per run, grouped by sector.
func Catalog() map[string][]Dataset {
	return map[string][]Dataset{
		"commerce": {
			{"commerce", "group", Query{"1403", "310", periodLookup, []Classification{commerceGroups}}},
			{"commerce", "volume", Query{"1403", "310", periodYearly, []Classification{commerceGroups}}},
			{"commerce", "revenue", Query{"1400", "501", periodYearly, []Classification{commerceGroups}}},
			{"commerce", "expense", Query{"1401", "1401", periodYearly, []Classification{commerceGroups}}},
		},
		"industry": {
			{"industry", "activity", Query{"8888", "12607", periodLookup, []Classification{industryActivities}}},
			{"industry", "activity_cnae", Query{"1853", "805", periodLookup, []Classification{industryCNAE}}},
			{"industry", "production", Query{"8888", "12607", periodMonthly, []Classification{industryActivities}}},
			{"industry", "revenue", Query{"1853", "805", periodYearly, []Classification{industryCNAE}}},
		},
		"service": {
			{"service", "segment", Query{"8163", "7168", periodLookup, serviceVolumeSegments}},
			{"service", "volume", Query{"8163", "7168", periodMonthly, serviceVolumeSegments}},
			{"service", "revenue", Query{"8163", "7168", periodMonthly, serviceRevenueSegments}},
		},
	}
}
