// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package drift

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/gamebot/internal/database"
	"github.com/tomtom215/gamebot/internal/registry"
	"github.com/tomtom215/gamebot/internal/runs"
)

// Checker runs checks against merged warehouse tables. It only reads.
type Checker struct {
	db     *database.DB
	reg    *registry.Registry
	schema string
}

// NewChecker creates a checker over the bronze schema.
func NewChecker(db *database.DB, reg *registry.Registry) *Checker {
	return &Checker{db: db, reg: reg, schema: db.Schemas().Bronze}
}

// CheckReferences reports rows of spec whose references resolve to no
// parent row. Rows with a NULL reference column pass when the reference
// allows nulls and count as violations otherwise.
func (c *Checker) CheckReferences(ctx context.Context, spec *registry.TableSpec) ([]Finding, error) {
	findings := make([]Finding, 0, len(spec.References))
	for _, fk := range spec.References {
		f, err := c.checkReference(ctx, spec.Name, fk)
		if err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}
	return findings, nil
}

func (c *Checker) checkReference(ctx context.Context, table string, fk registry.ForeignKey) (Finding, error) {
	d := c.db.Dialect()
	f := Finding{Table: table, Kind: KindReference, Check: fk.String(), Severity: registry.SeveritySoft}

	childCols := make([]string, len(fk.Columns))
	notNull := make([]string, len(fk.Columns))
	anyNull := make([]string, len(fk.Columns))
	join := make([]string, len(fk.Columns))
	for i, col := range fk.Columns {
		childCols[i] = "CAST(c." + d.Quote(col) + " AS TEXT)"
		notNull[i] = "c." + d.Quote(col) + " IS NOT NULL"
		anyNull[i] = "c." + d.Quote(col) + " IS NULL"
		join[i] = fmt.Sprintf("CAST(p.%s AS TEXT) = CAST(c.%s AS TEXT)", d.Quote(fk.RefColumns[i]), d.Quote(col))
	}
	from := fmt.Sprintf("%s c WHERE %s AND NOT EXISTS (SELECT 1 FROM %s p WHERE %s)",
		d.Qualified(c.schema, table), strings.Join(notNull, " AND "),
		d.Qualified(c.schema, fk.RefTable), strings.Join(join, " AND "))

	var orphans int
	if err := c.db.Conn().QueryRowContext(ctx, "SELECT COUNT(*) FROM "+from).Scan(&orphans); err != nil {
		return f, fmt.Errorf("failed to check reference %s of %s: %w", fk, table, err)
	}
	f.Observed = orphans

	if orphans > 0 {
		samples, err := c.sample(ctx, fmt.Sprintf("SELECT DISTINCT %s FROM %s LIMIT %d",
			strings.Join(childCols, ", "), from, maxSamples), len(fk.Columns))
		if err != nil {
			return f, fmt.Errorf("failed to sample orphans of %s: %w", table, err)
		}
		f.Samples = samples
	}

	var nulls int
	nullQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s c WHERE %s",
		d.Qualified(c.schema, table), strings.Join(anyNull, " OR "))
	if err := c.db.Conn().QueryRowContext(ctx, nullQuery).Scan(&nulls); err != nil {
		return f, fmt.Errorf("failed to count null references of %s: %w", table, err)
	}
	if nulls > 0 {
		if fk.AllowNull {
			f.Detail = fmt.Sprintf("%d rows have a NULL reference", nulls)
		} else {
			f.Observed += nulls
			f.Detail = fmt.Sprintf("%d rows have a NULL reference where none is allowed", nulls)
		}
	}
	f.Passed = f.Observed == 0
	return f, nil
}

func (c *Checker) sample(ctx context.Context, query string, width int) ([][]string, error) {
	rows, err := c.db.Conn().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		vals := make([]*string, width)
		dest := make([]any, width)
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		tuple := make([]string, width)
		for i, v := range vals {
			if v == nil {
				tuple[i] = "NULL"
			} else {
				tuple[i] = *v
			}
		}
		out = append(out, tuple)
	}
	return out, rows.Err()
}

// CheckKeyVersions reports, for each declared business key version other
// than the active one, whether the stored rows are unique under it. A table
// can only be rekeyed to a version that passes.
func (c *Checker) CheckKeyVersions(ctx context.Context, spec *registry.TableSpec, active registry.BusinessKeyVersion) ([]Finding, error) {
	var findings []Finding
	for _, k := range spec.BusinessKeys {
		if k.Version == active.Version {
			continue
		}
		dups, err := c.db.DuplicateKeys(ctx, c.schema, spec.Name, k.Columns, maxSamples)
		if err != nil {
			return nil, err
		}
		findings = append(findings, Finding{
			Table:    spec.Name,
			Kind:     KindKeyUnique,
			Check:    fmt.Sprintf("unique_v%d(%s)", k.Version, strings.Join(k.Columns, ", ")),
			Severity: registry.SeveritySoft,
			Passed:   len(dups) == 0,
			Observed: len(dups),
			Detail:   fmt.Sprintf("candidate key v%d; active key is v%d", k.Version, active.Version),
			Samples:  dups,
		})
	}
	return findings, nil
}

// CheckStaleRuns reports runs other than current still marked running after
// olderThan.
func CheckStaleRuns(ctx context.Context, tracker *runs.Tracker, current string, olderThan time.Duration) (Finding, error) {
	f := Finding{
		Kind:     KindStaleRun,
		Check:    fmt.Sprintf("running_longer_than(%s)", olderThan),
		Severity: registry.SeveritySoft,
	}
	stale, err := tracker.Stale(ctx, olderThan)
	if err != nil {
		return f, err
	}
	for _, r := range stale {
		if r.RunID == current {
			continue
		}
		f.Observed++
		if len(f.Samples) < maxSamples {
			f.Samples = append(f.Samples, []string{r.RunID, r.StartedAt.Format(time.RFC3339)})
		}
	}
	f.Passed = f.Observed == 0
	return f, nil
}
