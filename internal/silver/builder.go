// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package silver

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/gamebot/internal/database"
	"github.com/tomtom215/gamebot/internal/drift"
	"github.com/tomtom215/gamebot/internal/keys"
	"github.com/tomtom215/gamebot/internal/logging"
	"github.com/tomtom215/gamebot/internal/merge"
	"github.com/tomtom215/gamebot/internal/registry"
	"github.com/tomtom215/gamebot/internal/snapshot"
)

const maxSamples = 10

// Builder rebuilds the silver models from the current bronze contents.
type Builder struct {
	db     *database.DB
	bronze *registry.Registry
	models []*Model
	reg    *registry.Registry
	engine *merge.Engine
}

// NewBuilder compiles models against bronze. Engine options apply to the
// silver merge engine; the schema is always the silver schema.
func NewBuilder(db *database.DB, bronze *registry.Registry, models []*Model, opts ...merge.Option) (*Builder, error) {
	specs, err := compile(models, bronze)
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(specs)
	if err != nil {
		return nil, fmt.Errorf("silver registry: %w", err)
	}
	opts = append(opts, merge.WithSchema(db.Schemas().Silver))
	return &Builder{
		db:     db,
		bronze: bronze,
		models: models,
		reg:    reg,
		engine: merge.NewEngine(db, reg, opts...),
	}, nil
}

// Registry returns the silver table catalog.
func (b *Builder) Registry() *registry.Registry {
	return b.reg
}

// EnsureSchema creates the silver tables if absent.
func (b *Builder) EnsureSchema(ctx context.Context) error {
	d := b.db.Dialect()
	for _, name := range b.reg.Order() {
		spec, _ := b.reg.Table(name)
		if err := b.db.CreateTable(ctx, d.LayerTableDef(b.db.Schemas().Silver, spec, spec.LatestKey())); err != nil {
			return err
		}
	}
	return nil
}

// Build derives every model from bronze and merges it into silver under
// runID. Reference and key findings go to report when it is non-nil.
func (b *Builder) Build(ctx context.Context, runID string, report *drift.Report) ([]*merge.Result, error) {
	log := logging.Ctx(ctx).With().Str("layer", "silver").Logger()
	resolver := keys.NewResolver()

	batches := make([]merge.Batch, 0, len(b.models))
	var findings []drift.Finding
	for _, m := range b.models {
		batch, found, err := b.derive(ctx, m, resolver)
		if err != nil {
			return nil, err
		}
		findings = append(findings, found...)
		batches = append(batches, batch)
		log.Debug().Str("model", m.Name).Int("rows", batch.Rows.Len()).Msg("Silver model derived")
	}

	if report != nil {
		for _, m := range b.models {
			report.Table(m.Name, m.Source)
		}
		report.AddFindings(findings...)
	}

	results, err := b.engine.MergeAll(ctx, runID, batches)
	if err != nil {
		return results, fmt.Errorf("silver merge: %w", err)
	}
	log.Info().Int("models", len(results)).Msg("Silver layer built")
	return results, nil
}

// derive turns the bronze rows of m into a silver batch and registers the
// derived keys with resolver.
func (b *Builder) derive(ctx context.Context, m *Model, resolver *keys.Resolver) (merge.Batch, []drift.Finding, error) {
	spec, _ := b.reg.Table(m.Name)
	src, _ := b.bronze.Table(m.Source)

	cols := m.SourceColumns()
	rows, err := b.readSource(ctx, src, cols)
	if err != nil {
		return merge.Batch{}, nil, err
	}
	pos := make(map[string]int, len(cols))
	for i, c := range cols {
		pos[c] = i
	}
	pick := func(values []snapshot.Value, names []string) []snapshot.Value {
		out := make([]snapshot.Value, len(names))
		for i, n := range names {
			out[i] = values[pos[n]]
		}
		return out
	}

	t, err := snapshot.NewTable(m.Name, spec.ColumnNames())
	if err != nil {
		return merge.Batch{}, nil, err
	}

	nullKeys := 0
	var nullSamples [][]string
	dangling := make([]int, len(m.References))
	samples := make([][][]string, len(m.References))
	seenSample := make([]map[string]bool, len(m.References))
	for i := range seenSample {
		seenSample[i] = make(map[string]bool)
	}

	for _, values := range rows {
		natural := pick(values, m.Key.Columns)
		if hasNull(natural) {
			nullKeys++
			if len(nullSamples) < maxSamples {
				nullSamples = append(nullSamples, render(natural))
			}
			continue
		}
		key, err := keys.Derive(m.Key.Domain, natural...)
		if err != nil {
			return merge.Batch{}, nil, fmt.Errorf("model %s: %w", m.Name, err)
		}
		resolver.Register(m.Key.Domain, key)

		out := make([]snapshot.Value, 0, len(spec.Columns))
		out = append(out, snapshot.Text(string(key)))
		out = append(out, pick(values, m.Attributes)...)
		for i, ref := range m.References {
			refVals := pick(values, ref.Columns)
			refKey, res, err := resolver.Resolve(ref.Domain, refVals...)
			if err != nil {
				return merge.Batch{}, nil, fmt.Errorf("model %s reference %s: %w", m.Name, ref.Column, err)
			}
			switch res {
			case keys.Resolved:
				out = append(out, snapshot.Text(string(*refKey)))
			case keys.Dangling:
				dangling[i]++
				sample := render(refVals)
				if id := strings.Join(sample, "\x1f"); !seenSample[i][id] && len(samples[i]) < maxSamples {
					seenSample[i][id] = true
					samples[i] = append(samples[i], sample)
				}
				out = append(out, snapshot.Null())
			default:
				out = append(out, snapshot.Null())
			}
		}
		if err := t.Append(out...); err != nil {
			return merge.Batch{}, nil, fmt.Errorf("model %s: %w", m.Name, err)
		}
	}

	findings := []drift.Finding{{
		Table:    m.Name,
		Kind:     drift.KindKeyNotNull,
		Check:    fmt.Sprintf("not_null(%s)", strings.Join(m.Key.Columns, ", ")),
		Severity: registry.SeveritySoft,
		Passed:   nullKeys == 0,
		Observed: nullKeys,
		Detail:   "rows skipped",
		Samples:  nullSamples,
	}}
	for i, ref := range m.References {
		findings = append(findings, drift.Finding{
			Table:    m.Name,
			Kind:     drift.KindReference,
			Check:    fmt.Sprintf("resolves(%s -> %s)", ref.Column, ref.Target),
			Severity: registry.SeveritySoft,
			Passed:   dangling[i] == 0,
			Observed: dangling[i],
			Detail:   "dangling references stored as NULL",
			Samples:  samples[i],
		})
	}

	return merge.Batch{Spec: spec, Key: []string{m.Key.Column}, Rows: t}, findings, nil
}

// readSource reads cols from every bronze row of src, typed as declared.
func (b *Builder) readSource(ctx context.Context, src *registry.TableSpec, cols []string) ([][]snapshot.Value, error) {
	d := b.db.Dialect()
	types := make([]registry.ColumnType, len(cols))
	for i, c := range cols {
		col, _ := src.Column(c)
		types[i] = col.Type
	}

	sb := d.Flavor.NewSelectBuilder()
	sb.Select(d.QuoteAll(cols)...).From(d.Qualified(b.db.Schemas().Bronze, src.Name))
	query, args := sb.Build()

	rows, err := b.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read bronze %s: %w", src.Name, err)
	}
	defer rows.Close()

	var out [][]snapshot.Value
	for rows.Next() {
		raw := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan bronze %s: %w", src.Name, err)
		}
		values := make([]snapshot.Value, len(cols))
		for i, v := range raw {
			values[i], _ = snapshot.Coerce(snapshot.FromSQL(v), types[i])
		}
		out = append(out, values)
	}
	return out, rows.Err()
}

func hasNull(values []snapshot.Value) bool {
	for _, v := range values {
		if v.IsNull() {
			return true
		}
	}
	return false
}

func render(values []snapshot.Value) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if v.IsNull() {
			out[i] = "NULL"
		} else {
			out[i] = v.String()
		}
	}
	return out
}
