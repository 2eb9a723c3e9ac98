// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package registry

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tomtom215/gamebot/internal/validation"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// ColumnType is a portable warehouse column type.
type ColumnType string

// Supported column types.
const (
	TypeText      ColumnType = "TEXT"
	TypeInteger   ColumnType = "INTEGER"
	TypeBigint    ColumnType = "BIGINT"
	TypeDouble    ColumnType = "DOUBLE"
	TypeBoolean   ColumnType = "BOOLEAN"
	TypeDate      ColumnType = "DATE"
	TypeTimestamp ColumnType = "TIMESTAMP"
)

// Lineage columns added to every bronze table.
const (
	ColumnIngestRunID = "ingest_run_id"
	ColumnIngestedAt  = "ingested_at"
)

// Column is a declared table column.
type Column struct {
	Name string     `yaml:"name" validate:"required,sqlident"`
	Type ColumnType `yaml:"type" validate:"required,sqltype"`
}

// BusinessKeyVersion is one historical definition of a table's natural key.
type BusinessKeyVersion struct {
	Version int      `yaml:"version" validate:"gte=1"`
	Columns []string `yaml:"columns" validate:"min=1,dive,sqlident"`
	Since   string   `yaml:"since"`
}

// ForeignKey links columns to a parent table's key.
type ForeignKey struct {
	Columns    []string `yaml:"columns" validate:"min=1,dive,sqlident"`
	RefTable   string   `yaml:"ref_table" validate:"required,sqlident"`
	RefColumns []string `yaml:"ref_columns" validate:"min=1,dive,sqlident"`

	// Enforced references become constraints and order merges.
	Enforced bool `yaml:"enforced"`

	// AllowNull lets a row with any NULL reference column pass the check.
	AllowNull bool `yaml:"allow_null"`
}

// String renders the reference as cols -> table(cols).
func (fk ForeignKey) String() string {
	return fmt.Sprintf("(%s) -> %s(%s)",
		strings.Join(fk.Columns, ", "), fk.RefTable, strings.Join(fk.RefColumns, ", "))
}

// TableSpec is the declared shape of one bronze table.
type TableSpec struct {
	Name string `yaml:"name" validate:"required,sqlident"`

	// Dataset is the upstream export name; defaults to Name.
	Dataset string `yaml:"dataset" validate:"omitempty,sqlident"`

	Columns      []Column             `yaml:"columns" validate:"min=1,dive"`
	BusinessKeys []BusinessKeyVersion `yaml:"business_keys" validate:"min=1,dive"`
	References   []ForeignKey         `yaml:"references" validate:"dive"`
	Checks       []Rule               `yaml:"checks" validate:"dive"`

	// Renames maps upstream column names to declared ones.
	Renames map[string]string `yaml:"renames"`

	columnIndex map[string]int
}

// Column returns the declared column by name.
func (t *TableSpec) Column(name string) (Column, bool) {
	i, ok := t.columnIndex[name]
	if !ok {
		return Column{}, false
	}
	return t.Columns[i], true
}

// ColumnNames returns declared column names in declaration order.
func (t *TableSpec) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// NonKeyColumns returns declared columns not part of key.
func (t *TableSpec) NonKeyColumns(key []string) []string {
	inKey := make(map[string]bool, len(key))
	for _, k := range key {
		inKey[k] = true
	}
	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !inKey[c.Name] {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// LatestKey returns the highest declared business key version.
func (t *TableSpec) LatestKey() BusinessKeyVersion {
	latest := t.BusinessKeys[0]
	for _, k := range t.BusinessKeys[1:] {
		if k.Version > latest.Version {
			latest = k
		}
	}
	return latest
}

// ActiveKey selects the business key version pinned in versions, or the
// latest when the table is not pinned.
func (t *TableSpec) ActiveKey(versions map[string]int) (BusinessKeyVersion, error) {
	want, pinned := versions[t.Name]
	if !pinned {
		return t.LatestKey(), nil
	}
	for _, k := range t.BusinessKeys {
		if k.Version == want {
			return k, nil
		}
	}
	return BusinessKeyVersion{}, fmt.Errorf("table %s has no business key version %d", t.Name, want)
}

// EnforcedParents returns the distinct parent tables of enforced references.
func (t *TableSpec) EnforcedParents() []string {
	var parents []string
	seen := make(map[string]bool)
	for _, fk := range t.References {
		if fk.Enforced && fk.RefTable != t.Name && !seen[fk.RefTable] {
			seen[fk.RefTable] = true
			parents = append(parents, fk.RefTable)
		}
	}
	return parents
}

// Catalog is the YAML document shape.
type Catalog struct {
	Tables []*TableSpec `yaml:"tables" validate:"min=1,dive,required"`
}

// Registry is a validated, ordered catalog. It is immutable after Load.
type Registry struct {
	tables []*TableSpec
	byName map[string]*TableSpec
	order  []string
	rank   map[string]int
}

// Default loads the embedded survivoR catalog.
func Default() (*Registry, error) {
	return Load(defaultCatalog)
}

// Load decodes and validates a catalog document.
func Load(data []byte) (*Registry, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return New(cat.Tables)
}

// New validates table specs and computes the merge order.
func New(tables []*TableSpec) (*Registry, error) {
	if err := validation.ValidateStruct(&Catalog{Tables: tables}); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	r := &Registry{
		tables: tables,
		byName: make(map[string]*TableSpec, len(tables)),
	}
	for _, t := range tables {
		if _, dup := r.byName[t.Name]; dup {
			return nil, fmt.Errorf("table %s declared twice", t.Name)
		}
		if t.Dataset == "" {
			t.Dataset = t.Name
		}
		if err := indexColumns(t); err != nil {
			return nil, err
		}
		r.byName[t.Name] = t
	}

	for _, t := range tables {
		if err := r.checkTable(t); err != nil {
			return nil, err
		}
	}

	order, err := topoOrder(tables)
	if err != nil {
		return nil, err
	}
	r.order = order
	r.rank = make(map[string]int, len(order))
	for i, name := range order {
		r.rank[name] = i
	}
	return r, nil
}

func indexColumns(t *TableSpec) error {
	t.columnIndex = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if c.Name == ColumnIngestRunID || c.Name == ColumnIngestedAt {
			return fmt.Errorf("table %s: column %s is reserved for lineage", t.Name, c.Name)
		}
		if _, dup := t.columnIndex[c.Name]; dup {
			return fmt.Errorf("table %s: column %s declared twice", t.Name, c.Name)
		}
		t.columnIndex[c.Name] = i
		t.Columns[i].Type = ColumnType(strings.ToUpper(string(c.Type)))
	}
	return nil
}

func (r *Registry) checkTable(t *TableSpec) error {
	versions := make(map[int]bool, len(t.BusinessKeys))
	for _, k := range t.BusinessKeys {
		if versions[k.Version] {
			return fmt.Errorf("table %s: business key version %d declared twice", t.Name, k.Version)
		}
		versions[k.Version] = true
		if err := t.requireColumns(k.Columns, "business key"); err != nil {
			return err
		}
	}

	for _, fk := range t.References {
		if len(fk.Columns) != len(fk.RefColumns) {
			return fmt.Errorf("table %s: reference %s has mismatched column counts", t.Name, fk)
		}
		if err := t.requireColumns(fk.Columns, "reference"); err != nil {
			return err
		}
		parent, ok := r.byName[fk.RefTable]
		if !ok {
			return fmt.Errorf("table %s: reference %s targets unknown table", t.Name, fk)
		}
		if err := parent.requireColumns(fk.RefColumns, "referenced"); err != nil {
			return err
		}
		if fk.Enforced && !parent.isKey(fk.RefColumns) {
			return fmt.Errorf("table %s: enforced reference %s must target a business key of %s", t.Name, fk, parent.Name)
		}
	}

	for _, rule := range t.Checks {
		parsed, err := rule.Parse()
		if err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
		if err := t.requireColumns([]string{parsed.Column}, "check"); err != nil {
			return err
		}
	}

	for from, to := range t.Renames {
		if _, ok := t.columnIndex[to]; !ok {
			return fmt.Errorf("table %s: rename %s -> %s targets undeclared column", t.Name, from, to)
		}
	}
	return nil
}

func (t *TableSpec) requireColumns(cols []string, what string) error {
	for _, c := range cols {
		if _, ok := t.columnIndex[c]; !ok {
			return fmt.Errorf("table %s: %s column %s is not declared", t.Name, what, c)
		}
	}
	return nil
}

// isKey reports whether cols equals some business key version.
func (t *TableSpec) isKey(cols []string) bool {
	for _, k := range t.BusinessKeys {
		if equalStrings(k.Columns, cols) {
			return true
		}
	}
	return false
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Table returns the definition registered under name.
func (r *Registry) Table(name string) (*TableSpec, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Tables returns specs in declaration order.
func (r *Registry) Tables() []*TableSpec {
	out := make([]*TableSpec, len(r.tables))
	copy(out, r.tables)
	return out
}

// Order returns every table name in merge order, parents first.
func (r *Registry) Order() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Rank returns the position of name in Order, or -1.
func (r *Registry) Rank(name string) int {
	if i, ok := r.rank[name]; ok {
		return i
	}
	return -1
}

// OrderOf returns the given table names sorted into merge order.
// Unknown names produce an error.
func (r *Registry) OrderOf(names []string) ([]string, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := r.byName[n]; !ok {
			return nil, fmt.Errorf("unknown table %q", n)
		}
		want[n] = true
	}
	out := make([]string, 0, len(want))
	for _, n := range r.order {
		if want[n] {
			out = append(out, n)
		}
	}
	return out, nil
}

// ByDataset returns the table loaded from an upstream dataset.
func (r *Registry) ByDataset(dataset string) (*TableSpec, bool) {
	for _, t := range r.tables {
		if t.Dataset == dataset {
			return t, true
		}
	}
	return nil, false
}
