package relational

// Metric describes one metric table and the lookup it references.
type Metric struct {
	Table      string // e.g. "commerce_volume"
	Column     string // value column, e.g. "volume"
	ForeignKey string // column referencing Lookup.id
	Lookup     string // classification table, e.g. "commerce_group"
}

// CommerceTables names the commerce lookup and metric tables.
type CommerceTables struct {
	Group   string
	Volume  string
	Revenue string
	Expense string
}

// IndustryTables names the industry lookup and metric tables.
type IndustryTables struct {
	Activity     string
	ActivityCNAE string
	Production   string
	Revenue      string
}

// ServiceTables names the service lookup and metric tables.
type ServiceTables struct {
	Segment string
	Volume  string
	Revenue string
}

// Tables is the handle the populate stage passes to aggregation.
type Tables struct {
	Commerce CommerceTables
	Industry IndustryTables
	Service  ServiceTables
}

// DefaultTables returns the table names created by the embedded schema.
func DefaultTables() Tables {
	return Tables{
		Commerce: CommerceTables{
			Group:   "commerce_group",
			Volume:  "commerce_volume",
			Revenue: "commerce_revenue",
			Expense: "commerce_expense",
		},
		Industry: IndustryTables{
			Activity:     "industrial_activity",
			ActivityCNAE: "industrial_activity_cnae",
			Production:   "industrial_production",
			Revenue:      "industrial_revenue",
		},
		Service: ServiceTables{
			Segment: "service_segment",
			Volume:  "service_volume",
			Revenue: "service_revenue",
		},
	}
}

func (t CommerceTables) VolumeMetric() Metric {
	return Metric{Table: t.Volume, Column: "volume", ForeignKey: "id_commerce_group", Lookup: t.Group}
}

func (t CommerceTables) RevenueMetric() Metric {
	return Metric{Table: t.Revenue, Column: "revenue", ForeignKey: "id_commerce_group", Lookup: t.Group}
}

func (t CommerceTables) ExpenseMetric() Metric {
	return Metric{Table: t.Expense, Column: "expense", ForeignKey: "id_commerce_group", Lookup: t.Group}
}

func (t IndustryTables) ProductionMetric() Metric {
	return Metric{Table: t.Production, Column: "production", ForeignKey: "id_activity", Lookup: t.Activity}
}

func (t IndustryTables) RevenueMetric() Metric {
	return Metric{Table: t.Revenue, Column: "revenue", ForeignKey: "id_activity_cnae", Lookup: t.ActivityCNAE}
}

func (t ServiceTables) VolumeMetric() Metric {
	return Metric{Table: t.Volume, Column: "volume", ForeignKey: "id_service", Lookup: t.Segment}
}

func (t ServiceTables) RevenueMetric() Metric {
	return Metric{Table: t.Revenue, Column: "revenue", ForeignKey: "id_service", Lookup: t.Segment}
}

// quoted returns the metric's identifiers validated and quoted, in the
// order table, column, foreign key, lookup.
func (m Metric) quoted() (table, column, fk, lookup string, err error) {
	if table, err = quoteIdent(m.Table); err != nil {
		return
	}
	if column, err = quoteIdent(m.Column); err != nil {
		return
	}
	if fk, err = quoteIdent(m.ForeignKey); err != nil {
		return
	}
	lookup, err = quoteIdent(m.Lookup)
	return
}

// LookupRef names one classification lookup table.
type LookupRef struct {
	Sector string `json:"sector"`
	Kind   string `json:"kind"`
	Table  string `json:"table"`
}

// Lookups lists every classification lookup table.
func (t Tables) Lookups() []LookupRef {
	return []LookupRef{
		{Sector: "commerce", Kind: "group", Table: t.Commerce.Group},
		{Sector: "industry", Kind: "activity", Table: t.Industry.Activity},
		{Sector: "industry", Kind: "activity_cnae", Table: t.Industry.ActivityCNAE},
		{Sector: "service", Kind: "segment", Table: t.Service.Segment},
	}
}

// Lookup returns the lookup table for a sector and kind.
func (t Tables) Lookup(sector, kind string) (string, bool) {
	for _, l := range t.Lookups() {
		if l.Sector == sector && l.Kind == kind {
			return l.Table, true
		}
	}
	return "", false
}
