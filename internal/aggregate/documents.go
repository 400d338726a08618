package aggregate

import (
	"github.com/gabriellymonarca/Ecotrack/internal/docstore"
)

// Sector names.
const (
	SectorCommerce = "commerce"
	SectorIndustry = "industry"
	SectorService  = "service"
)

// Sectors lists the sectors in pipeline order.
func Sectors() []string {
	return []string{SectorCommerce, SectorIndustry, SectorService}
}

// CommerceCollections names the commerce bulk collections.
type CommerceCollections struct {
	Volume                string `json:"volume"`
	Division              string `json:"division"`
	Ranking               string `json:"ranking"`
	RevenueExpense        string `json:"revenue_expense"`
	RevenueExpenseGrouped string `json:"revenue_expense_grouped"`
}

// IndustryCollections names the industry bulk collections.
type IndustryCollections struct {
	Production    string `json:"production"`
	RevenueYearly string `json:"revenue_yearly"`
}

// ServiceCollections names the service bulk collections.
type ServiceCollections struct {
	VolumeMonthly  string `json:"volume_monthly"`
	VolumeRanking  string `json:"volume_ranking"`
	RevenueMonthly string `json:"revenue_monthly"`
	RevenueRanking string `json:"revenue_ranking"`
}

// Collections is the handle the aggregate stage hands to the view layer.
type Collections struct {
	Commerce CommerceCollections `json:"commerce"`
	Industry IndustryCollections `json:"industry"`
	Service  ServiceCollections  `json:"service"`
}

// DefaultCollections returns the bulk collection names.
func DefaultCollections() Collections {
	return Collections{
		Commerce: CommerceCollections{
			Volume:                "commerce_volume",
			Division:              "commerce_division",
			Ranking:               "commerce_ranking",
			RevenueExpense:        "commerce_revenue_expense_year",
			RevenueExpenseGrouped: "commerce_revenue_expense_grouped",
		},
		Industry: IndustryCollections{
			Production:    "industry_production_series",
			RevenueYearly: "industry_revenue_yearly",
		},
		Service: ServiceCollections{
			VolumeMonthly:  "service_volume_monthly",
			VolumeRanking:  "service_volume_ranking",
			RevenueMonthly: "service_revenue_monthly",
			RevenueRanking: "service_revenue_ranking",
		},
	}
}

// Names returns every bulk collection name.
func (c Collections) Names() []string {
	return []string{
		c.Commerce.Volume, c.Commerce.Division, c.Commerce.Ranking,
		c.Commerce.RevenueExpense, c.Commerce.RevenueExpenseGrouped,
		c.Industry.Production, c.Industry.RevenueYearly,
		c.Service.VolumeMonthly, c.Service.VolumeRanking,
		c.Service.RevenueMonthly, c.Service.RevenueRanking,
	}
}

// On-demand collections.
const (
	CollectionCommerceVolumeYearly         = "commerce_volume_yearly"
	CollectionCommerceRevenueExpenseYearly = "commerce_revenue_expense_yearly"
	CollectionCommerceDivisionYear         = "commerce_division_year"
	CollectionCommerceRankingYear          = "commerce_ranking_year"
	CollectionCommerceRevenueExpenseYear   = "commerce_revenue_expense_grouped_year"
	CollectionIndustryProductionYear       = "industrial_production_series"
	CollectionIndustryRevenueActivity      = "industrial_revenue_yearly"
)

// Point is one value of a time series.
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// NamedPoint is a series value tagged with a name (division, group label,
// "revenue" or "expense").
type NamedPoint struct {
	Date  string  `json:"date"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// TypedPoint is a revenue/expense value split by division.
type TypedPoint struct {
	Date  string  `json:"date"`
	Name  string  `json:"name"`
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// RankEntry is one position of a ranking.
type RankEntry struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// AreaTotals holds one division's revenue and expense for a year.
type AreaTotals struct {
	Area    string  `json:"area"`
	Revenue float64 `json:"revenue"`
	Expense float64 `json:"expense"`
}

func keyedDoc(key string, data any) docstore.Document {
	return docstore.Document{docstore.IDField: key, "data": data}
}
