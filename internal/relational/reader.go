package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domainerrors "github.com/gabriellymonarca/Ecotrack/internal/errors"
)

// Row is one observation joined with its classification label.
type Row struct {
	Label  string
	Period string
	Value  float64
}

// PeriodTotal is a metric summed over all classifications for one period.
type PeriodTotal struct {
	Period string
	Value  float64
}

// LabelTotal is a metric summed over periods for one classification.
type LabelTotal struct {
	Label string
	Value float64
}

// SumByPeriod totals a metric per raw period label.
func (s *Store) SumByPeriod(ctx context.Context, m Metric) ([]PeriodTotal, error) {
	table, column, fk, lookup, err := m.quoted()
	if err != nil {
		return nil, queryError(m, err)
	}
	query := fmt.Sprintf(`
		SELECT t.date, SUM(COALESCE(t.%[2]s, 0))
		FROM %[1]s t
		JOIN %[4]s l ON t.%[3]s = l.id
		GROUP BY t.date
		ORDER BY t.date`, table, column, fk, lookup)

	var out []PeriodTotal
	err = s.readTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var p PeriodTotal
			if err := rows.Scan(&p.Period, &p.Value); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, queryError(m, err)
	}
	return out, nil
}

// SumByLabelPeriod totals a metric per (classification, period), ordered by
// period then label.
func (s *Store) SumByLabelPeriod(ctx context.Context, m Metric) ([]Row, error) {
	return s.queryRows(ctx, m, `
		SELECT l.type, t.date, SUM(COALESCE(t.%[2]s, 0))
		FROM %[1]s t
		JOIN %[4]s l ON t.%[3]s = l.id
		GROUP BY l.type, t.date
		ORDER BY t.date, l.type`)
}

// Rows returns every observation of a metric, ordered by period then label.
func (s *Store) Rows(ctx context.Context, m Metric) ([]Row, error) {
	return s.queryRows(ctx, m, `
		SELECT l.type, t.date, COALESCE(t.%[2]s, 0)
		FROM %[1]s t
		JOIN %[4]s l ON t.%[3]s = l.id
		ORDER BY t.date, l.type`)
}

// RowsForLabel returns one classification's observations whose period label
// ends with periodSuffix (typically a year). An empty suffix matches all.
func (s *Store) RowsForLabel(ctx context.Context, m Metric, label, periodSuffix string) ([]Row, error) {
	return s.queryRows(ctx, m, `
		SELECT l.type, t.date, COALESCE(t.%[2]s, 0)
		FROM %[1]s t
		JOIN %[4]s l ON t.%[3]s = l.id
		WHERE l.type = ? AND t.date LIKE '%%' || ?
		ORDER BY t.id`, label, periodSuffix)
}

// TotalsByLabel sums a metric per classification over periods ending with
// periodSuffix, largest first. limit <= 0 returns every classification.
func (s *Store) TotalsByLabel(ctx context.Context, m Metric, periodSuffix string, limit int) ([]LabelTotal, error) {
	table, column, fk, lookup, err := m.quoted()
	if err != nil {
		return nil, queryError(m, err)
	}
	if limit <= 0 {
		limit = -1
	}
	query := fmt.Sprintf(`
		SELECT l.type, SUM(COALESCE(t.%[2]s, 0)) AS total
		FROM %[1]s t
		JOIN %[4]s l ON t.%[3]s = l.id
		WHERE t.date LIKE '%%' || ?
		GROUP BY l.type
		ORDER BY total DESC, l.type
		LIMIT ?`, table, column, fk, lookup)

	var out []LabelTotal
	err = s.readTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, periodSuffix, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var lt LabelTotal
			if err := rows.Scan(&lt.Label, &lt.Value); err != nil {
				return err
			}
			out = append(out, lt)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, queryError(m, err)
	}
	return out, nil
}

// LookupID returns the id of label in a lookup table, or a lookup-miss error.
func (s *Store) LookupID(ctx context.Context, lookup, label string) (int64, error) {
	qt, err := quoteIdent(lookup)
	if err != nil {
		return 0, domainerrors.Wrapf(err, domainerrors.CodeInternal, "lookup %s", lookup)
	}

	var id int64
	err = s.readTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE type = ?`, qt), label).Scan(&id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domainerrors.LookupMissf("%q not found in %s", label, lookup)
	}
	if err != nil {
		return 0, domainerrors.Wrapf(err, domainerrors.CodeInternal, "lookup %s", lookup)
	}
	return id, nil
}

// Labels lists a lookup table's labels alphabetically.
func (s *Store) Labels(ctx context.Context, lookup string) ([]string, error) {
	qt, err := quoteIdent(lookup)
	if err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeInternal, "list %s", lookup)
	}

	var out []string
	err = s.readTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, fmt.Sprintf(`SELECT type FROM %s ORDER BY type`, qt))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var label string
			if err := rows.Scan(&label); err != nil {
				return err
			}
			out = append(out, label)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeInternal, "list %s", lookup)
	}
	return out, nil
}

// queryRows formats tmpl with the metric's quoted identifiers (%[1]s table,
// %[2]s column, %[3]s foreign key, %[4]s lookup) and scans (label, period, value).
func (s *Store) queryRows(ctx context.Context, m Metric, tmpl string, args ...any) ([]Row, error) {
	table, column, fk, lookup, err := m.quoted()
	if err != nil {
		return nil, queryError(m, err)
	}
	query := fmt.Sprintf(tmpl, table, column, fk, lookup)

	var out []Row
	err = s.readTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r Row
			if err := rows.Scan(&r.Label, &r.Period, &r.Value); err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, queryError(m, err)
	}
	return out, nil
}

func queryError(m Metric, err error) error {
	return domainerrors.Wrapf(err, domainerrors.CodeInternal, "query %s", m.Table)
}
