package waterml

import (
	"github.com/wanluwen/dataRetrieval/internal/frame"
)

// identityCols lead every row-block and align series during joins.
var identityCols = []string{"agency_cd", "site_no", "datetime", "tz_cd"}

// accumulator folds per-series extraction results into one wide observation
// table plus three deduplicating metadata tables. Strictly sequential: each
// fold depends on the previous state, which has a single owner throughout.
type accumulator struct {
	wide       frame.Table
	sites      frame.Table
	variables  frame.Table
	statistics frame.Table
	seeded     bool
}

// fold merges one series into the accumulated state.
func (a *accumulator) fold(rec SeriesRecord) error {
	block := rowBlock(rec)

	if !a.seeded {
		a.wide = block
		a.sites = rec.Site
		a.variables = rec.Variable
		a.statistics = rec.Statistic
		a.seeded = true
		return nil
	}

	if err := a.mergeWide(rec, block); err != nil {
		return err
	}

	var err error
	if a.sites, err = joinMeta(a.sites, rec.Site, "site metadata join"); err != nil {
		return err
	}
	if a.variables, err = joinMeta(a.variables, rec.Variable, "variable metadata join"); err != nil {
		return err
	}
	a.statistics, err = joinMeta(a.statistics, rec.Statistic, "statistic metadata join")
	return err
}

// mergeWide aligns the series' row-block with the wide table. A site that
// already has rows gets its new parameters joined onto existing timestamps;
// a new site accumulates through an outer join on whatever column names the
// two sides share, leaving each side's unique columns sparse.
func (a *accumulator) mergeWide(rec SeriesRecord, block frame.Table) error {
	sameSite, otherSite := a.wide.Partition(func(r frame.Row) bool {
		return r["site_no"] == rec.SiteNo
	})

	if sameSite.Len() == 0 {
		joined, err := frame.OuterJoin(a.wide, block, frame.Intersection(a.wide, block))
		if err != nil {
			return &MergeInvariantError{Op: "disjoint-site join", Err: err}
		}
		a.wide = joined
		return nil
	}

	// Placeholder columns from an earlier outer join that never received data
	// for this site/parameter would shadow the real ones; drop them first.
	// Exact comparison against the series' generated column names, never a
	// substring match.
	for _, col := range rec.columnNames() {
		if sameSite.HasColumn(col) && sameSite.ColumnAllMissing(col) {
			sameSite.DropColumn(col)
		}
	}

	joined, err := frame.OuterJoin(sameSite, block, frame.Intersection(sameSite, block))
	if err != nil {
		return &MergeInvariantError{Op: "same-site join", Err: err}
	}
	joined.SortBy("datetime")

	// Only the same-site block is resorted; rows never reorder across the
	// site boundary.
	a.wide = frame.Concat(otherSite, joined)
	return nil
}

// joinMeta accretes a single-row descriptor onto a metadata table. The join
// keys on the table's full current column set: a descriptor identical on all
// known columns merges into its existing row, while new field names become
// new columns instead of being dropped by an intersection join.
func joinMeta(acc, one frame.Table, op string) (frame.Table, error) {
	out, err := frame.OuterJoin(acc, one, acc.Columns())
	if err != nil {
		return frame.Table{}, &MergeInvariantError{Op: op, Err: err}
	}
	return out, nil
}

// rowBlock builds the series' contribution to the wide table: one row per
// observation, identity columns plus this series' value column and, when any
// observation carries a qualifier, its qualifier column.
func rowBlock(rec SeriesRecord) frame.Table {
	cols := append(append([]string(nil), identityCols...), rec.ValueColumn())
	if rec.HasQualifiers {
		cols = append(cols, rec.QualifierColumn())
	}

	block := frame.New(cols...)
	for _, obs := range rec.Observations {
		row := frame.Row{
			"agency_cd":      rec.AgencyCd,
			"site_no":        rec.SiteNo,
			"datetime":       obs.Timestamp,
			"tz_cd":          obs.TimezoneLabel,
			rec.ValueColumn(): obs.Value,
		}
		if rec.HasQualifiers {
			row[rec.QualifierColumn()] = obs.Qualifier
		}
		block.Append(row)
	}
	return block
}
