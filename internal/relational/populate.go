package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	domainerrors "github.com/gabriellymonarca/Ecotrack/internal/errors"
)

// Observation is one cleaned upstream value ready to be stored.
type Observation struct {
	Label  string
	Period string
	Value  float64
}

// CommerceInput holds the fetched commerce datasets.
type CommerceInput struct {
	Groups  []Observation
	Volume  []Observation
	Revenue []Observation
	Expense []Observation
}

// IndustryInput holds the fetched industry datasets.
type IndustryInput struct {
	Activities     []Observation
	ActivitiesCNAE []Observation
	Production     []Observation
	Revenue        []Observation
}

// ServiceInput holds the fetched service datasets.
type ServiceInput struct {
	Segments []Observation
	Volume   []Observation
	Revenue  []Observation
}

// PopulateStats counts what a populate call wrote and skipped.
type PopulateStats struct {
	Labels       int // lookup rows newly inserted
	Inserted     int // metric rows newly inserted
	Duplicates   int // metric rows already present for (classification, period)
	Incomplete   int // rows without label or period
	LookupMisses int // metric rows whose label has no lookup row
}

func (p *PopulateStats) add(o PopulateStats) {
	p.Labels += o.Labels
	p.Inserted += o.Inserted
	p.Duplicates += o.Duplicates
	p.Incomplete += o.Incomplete
	p.LookupMisses += o.LookupMisses
}

// PopulateCommerce stores commerce groups first, then volume, revenue and
// expense, in one transaction.
func (s *Store) PopulateCommerce(ctx context.Context, t CommerceTables, in CommerceInput) (PopulateStats, error) {
	return s.populate(ctx, "commerce", []lookupLoad{{t.Group, in.Groups}}, []metricLoad{
		{t.VolumeMetric(), in.Volume},
		{t.RevenueMetric(), in.Revenue},
		{t.ExpenseMetric(), in.Expense},
	})
}

// PopulateIndustry stores activity and CNAE lookups, then production and revenue.
func (s *Store) PopulateIndustry(ctx context.Context, t IndustryTables, in IndustryInput) (PopulateStats, error) {
	return s.populate(ctx, "industry", []lookupLoad{
		{t.Activity, in.Activities},
		{t.ActivityCNAE, in.ActivitiesCNAE},
	}, []metricLoad{
		{t.ProductionMetric(), in.Production},
		{t.RevenueMetric(), in.Revenue},
	})
}

// PopulateService stores service segments, then volume and revenue.
func (s *Store) PopulateService(ctx context.Context, t ServiceTables, in ServiceInput) (PopulateStats, error) {
	return s.populate(ctx, "service", []lookupLoad{{t.Segment, in.Segments}}, []metricLoad{
		{t.VolumeMetric(), in.Volume},
		{t.RevenueMetric(), in.Revenue},
	})
}

type lookupLoad struct {
	table string
	rows  []Observation
}

type metricLoad struct {
	metric Metric
	rows   []Observation
}

func (s *Store) populate(ctx context.Context, sector string, lookups []lookupLoad, metrics []metricLoad) (PopulateStats, error) {
	var stats PopulateStats

	err := s.writeTx(ctx, func(tx *sql.Tx) error {
		for _, l := range lookups {
			n, skipped, err := insertLabels(ctx, tx, l.table, l.rows)
			if err != nil {
				return err
			}
			stats.Labels += n
			stats.Incomplete += skipped
		}
		for _, m := range metrics {
			st, err := s.insertMetric(ctx, tx, m.metric, m.rows)
			if err != nil {
				return err
			}
			stats.add(st)
		}
		return nil
	})
	if err != nil {
		return PopulateStats{}, domainerrors.Wrapf(err, domainerrors.CodeInternal, "populate %s", sector)
	}

	s.logger.Info("sector populated",
		"sector", sector,
		"labels", stats.Labels,
		"inserted", stats.Inserted,
		"duplicates", stats.Duplicates,
		"lookup_misses", stats.LookupMisses,
		"incomplete", stats.Incomplete,
	)
	return stats, nil
}

func insertLabels(ctx context.Context, tx *sql.Tx, table string, rows []Observation) (inserted, skipped int, err error) {
	qt, err := quoteIdent(table)
	if err != nil {
		return 0, 0, err
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (type) VALUES (?) ON CONFLICT (type) DO NOTHING`, qt))
	if err != nil {
		return 0, 0, fmt.Errorf("prepare %s insert: %w", table, err)
	}
	defer stmt.Close()

	for _, r := range rows {
		label := strings.TrimSpace(r.Label)
		if label == "" {
			skipped++
			continue
		}
		res, err := stmt.ExecContext(ctx, label)
		if err != nil {
			return 0, 0, fmt.Errorf("insert %s label %q: %w", table, label, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, skipped, nil
}

func (s *Store) insertMetric(ctx context.Context, tx *sql.Tx, m Metric, rows []Observation) (PopulateStats, error) {
	var stats PopulateStats

	table, column, fk, lookup, err := m.quoted()
	if err != nil {
		return stats, err
	}

	find, err := tx.PrepareContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE type = ?`, lookup))
	if err != nil {
		return stats, fmt.Errorf("prepare %s lookup: %w", m.Lookup, err)
	}
	defer find.Close()

	insert, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (%s, date, %s) VALUES (?, ?, ?) ON CONFLICT (%s, date) DO NOTHING`,
		table, fk, column, fk))
	if err != nil {
		return stats, fmt.Errorf("prepare %s insert: %w", m.Table, err)
	}
	defer insert.Close()

	ids := make(map[string]int64)
	missed := make(map[string]bool)

	for _, r := range rows {
		label := strings.TrimSpace(r.Label)
		if label == "" || strings.TrimSpace(r.Period) == "" {
			stats.Incomplete++
			continue
		}

		id, ok := ids[label]
		if !ok && !missed[label] {
			err := find.QueryRowContext(ctx, label).Scan(&id)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				missed[label] = true
				s.logger.Warn("label not found in lookup table, skipping",
					"label", label, "lookup", m.Lookup, "metric", m.Table)
			case err != nil:
				return stats, fmt.Errorf("lookup %q in %s: %w", label, m.Lookup, err)
			default:
				ids[label] = id
				ok = true
			}
		}
		if !ok {
			stats.LookupMisses++
			continue
		}

		res, err := insert.ExecContext(ctx, id, r.Period, r.Value)
		if err != nil {
			return stats, fmt.Errorf("insert %s row: %w", m.Table, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			stats.Inserted++
		} else {
			stats.Duplicates++
		}
	}
	return stats, nil
}
