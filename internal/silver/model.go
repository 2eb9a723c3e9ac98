// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package silver

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/tomtom215/gamebot/internal/registry"
	"github.com/tomtom215/gamebot/internal/validation"
)

//go:embed models.yaml
var defaultModels []byte

// Key declares a model's surrogate key.
type Key struct {
	// Column stores the derived key.
	Column string `yaml:"column" validate:"required,sqlident"`

	// Domain namespaces the derivation; models sharing a domain share keys.
	Domain string `yaml:"domain" validate:"required"`

	// Columns are the natural key columns of the source table, in
	// derivation order.
	Columns []string `yaml:"columns" validate:"min=1,dive,sqlident"`
}

// Reference links a model row to another model's entity.
type Reference struct {
	Column  string   `yaml:"column" validate:"required,sqlident"`
	Target  string   `yaml:"target" validate:"required,sqlident"`
	Domain  string   `yaml:"domain"`
	Columns []string `yaml:"columns" validate:"min=1,dive,sqlident"`
}

// Model is one silver table.
type Model struct {
	Name       string      `yaml:"name" validate:"required,sqlident"`
	Source     string      `yaml:"source" validate:"required,sqlident"`
	Key        Key         `yaml:"key"`
	Attributes []string    `yaml:"attributes" validate:"dive,sqlident"`
	References []Reference `yaml:"references" validate:"dive"`
}

// SourceColumns lists the bronze columns the model reads, without repeats.
func (m *Model) SourceColumns() []string {
	var cols []string
	seen := make(map[string]bool)
	add := func(names []string) {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				cols = append(cols, n)
			}
		}
	}
	add(m.Key.Columns)
	add(m.Attributes)
	for _, ref := range m.References {
		add(ref.Columns)
	}
	return cols
}

// Models is the models.yaml document shape.
type Models struct {
	Models []*Model `yaml:"models" validate:"min=1,dive,required"`
}

// DefaultModels decodes the embedded model catalog.
func DefaultModels() ([]*Model, error) {
	return LoadModels(defaultModels)
}

// LoadModels decodes and validates a model document.
func LoadModels(data []byte) ([]*Model, error) {
	var doc Models
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode models: %w", err)
	}
	if err := validation.ValidateStruct(&doc); err != nil {
		return nil, fmt.Errorf("invalid models: %w", err)
	}
	return doc.Models, nil
}

// compile checks models against the bronze registry and returns the silver
// table specs in model order. Reference domains left empty are filled from
// their target.
func compile(models []*Model, bronze *registry.Registry) ([]*registry.TableSpec, error) {
	byName := make(map[string]*Model, len(models))
	specs := make([]*registry.TableSpec, 0, len(models))

	for _, m := range models {
		if _, dup := byName[m.Name]; dup {
			return nil, fmt.Errorf("model %s declared twice", m.Name)
		}
		src, ok := bronze.Table(m.Source)
		if !ok {
			return nil, fmt.Errorf("model %s: unknown source table %s", m.Name, m.Source)
		}
		for _, c := range m.SourceColumns() {
			if _, ok := src.Column(c); !ok {
				return nil, fmt.Errorf("model %s: source %s has no column %s", m.Name, m.Source, c)
			}
		}

		spec := &registry.TableSpec{
			Name:         m.Name,
			Dataset:      m.Source,
			Columns:      []registry.Column{{Name: m.Key.Column, Type: registry.TypeText}},
			BusinessKeys: []registry.BusinessKeyVersion{{Version: 1, Columns: []string{m.Key.Column}}},
		}
		for _, a := range m.Attributes {
			col, _ := src.Column(a)
			spec.Columns = append(spec.Columns, col)
		}

		for i := range m.References {
			ref := &m.References[i]
			target, ok := byName[ref.Target]
			if !ok {
				return nil, fmt.Errorf("model %s: reference %s targets %s, which must be declared earlier",
					m.Name, ref.Column, ref.Target)
			}
			if ref.Domain == "" {
				ref.Domain = target.Key.Domain
			}
			if ref.Domain != target.Key.Domain {
				return nil, fmt.Errorf("model %s: reference %s uses domain %s but %s keys are %s",
					m.Name, ref.Column, ref.Domain, target.Name, target.Key.Domain)
			}
			if len(ref.Columns) != len(target.Key.Columns) {
				return nil, fmt.Errorf("model %s: reference %s has %d columns, %s key has %d",
					m.Name, ref.Column, len(ref.Columns), target.Name, len(target.Key.Columns))
			}
			spec.Columns = append(spec.Columns, registry.Column{Name: ref.Column, Type: registry.TypeText})
			spec.References = append(spec.References, registry.ForeignKey{
				Columns:    []string{ref.Column},
				RefTable:   target.Name,
				RefColumns: []string{target.Key.Column},
				AllowNull:  true,
			})
		}

		byName[m.Name] = m
		specs = append(specs, spec)
	}
	return specs, nil
}
