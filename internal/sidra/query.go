package sidra

import (
	"net/url"
	"strings"
)

// Classification selects categories of one SIDRA classification, e.g.
// {Code: "544", Categories: "129314,129315,129316"} or {Code: "1274", Categories: "all"}.
type Classification struct {
	Code       string
	Categories string
}

// Query addresses one SIDRA table extract.
type Query struct {
	Table           string
	Variable        string
	Period          string // "last 12", "202301-202312", ...
	Classifications []Classification
}

// labelColumn is the response column carrying the category label. With a
// single classification it is the 4th dimension; with two it is the 5th.
func (q Query) labelColumn() string {
	if len(q.Classifications) > 1 {
		return "D5N"
	}
	return "D4N"
}

// Path renders the query as a SIDRA values path at the national level with
// the header row requested:
//
//	/values/t/1403/n1/all/v/310/p/last%2012/c11070/4765,4766/h/y
func (q Query) Path() string {
	var b strings.Builder
	b.WriteString("/values/t/")
	b.WriteString(url.PathEscape(q.Table))
	b.WriteString("/n1/all/v/")
	b.WriteString(url.PathEscape(q.Variable))
	b.WriteString("/p/")
	b.WriteString(url.PathEscape(q.Period))
	for _, c := range q.Classifications {
		b.WriteString("/c")
		b.WriteString(url.PathEscape(c.Code))
		b.WriteByte('/')
		b.WriteString(c.Categories)
	}
	b.WriteString("/h/y")
	return b.String()
}
