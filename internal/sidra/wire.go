package sidra

import (
	"encoding/json"
	"strconv"
	"strings"

	domainerrors "github.com/gabriellymonarca/Ecotrack/internal/errors"
)

// Response columns used by the adapter.
const (
	columnPeriod = "D2N"
	columnValue  = "V"
)

// Observation is one cleaned (label, period, value) triple.
type Observation struct {
	Label  string
	Period string
	Value  float64
}

//nolint:gochecknoglobals // Aggregate rows that never feed a view
var excludedLabels = map[string]struct{}{
	"Total": {},
	"Índice de receita nominal de serviços": {},
}

// decodeTable turns a SIDRA values response into observations. The first
// element of the array is the header row and is skipped. Rows without a
// period, label or value column are dropped; a label column missing from
// the header is a shape error.
func decodeTable(body []byte, labelColumn string) ([]Observation, int, error) {
	var rows []map[string]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, 0, domainerrors.DataShapef("decode response: %v", err)
	}
	if len(rows) == 0 {
		return nil, 0, nil
	}

	header := rows[0]
	for _, col := range []string{columnPeriod, columnValue, labelColumn} {
		if _, ok := header[col]; !ok {
			return nil, 0, domainerrors.DataShapef("response has no %s column", col)
		}
	}

	out := make([]Observation, 0, len(rows)-1)
	dropped := 0
	for _, row := range rows[1:] {
		period := strings.TrimSpace(row[columnPeriod])
		label := strings.TrimSpace(row[labelColumn])
		raw, hasValue := row[columnValue]
		if period == "" || label == "" || !hasValue {
			dropped++
			continue
		}
		if _, skip := excludedLabels[label]; skip {
			continue
		}
		out = append(out, Observation{Label: label, Period: period, Value: parseValue(raw)})
	}
	return out, dropped, nil
}

// parseValue reads a SIDRA cell. Suppression markers ("-", "...", "X")
// and anything else non-numeric count as zero.
func parseValue(raw string) float64 {
	raw = strings.TrimSpace(raw)
	switch raw {
	case "", "-", "..", "...", "X":
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}
