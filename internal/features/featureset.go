// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package features

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/tomtom215/gamebot/internal/database"
	"github.com/tomtom215/gamebot/internal/validation"
)

//go:embed features.yaml
var defaultFeatureSets string

// FeatureSet is a named, totally ordered query over the warehouse.
type FeatureSet struct {
	Name        string   `yaml:"name" validate:"required,sqlident"`
	Description string   `yaml:"description"`
	Query       string   `yaml:"query" validate:"required"`
	OrderBy     []string `yaml:"order_by" validate:"min=1,dive,sqlident"`
}

type featureSets struct {
	Sets []FeatureSet `yaml:"feature_sets" validate:"min=1,dive"`
}

// DefaultFeatureSets renders the embedded feature sets for schemas.
func DefaultFeatureSets(schemas database.Schemas) ([]FeatureSet, error) {
	return LoadFeatureSets(defaultFeatureSets, schemas)
}

// LoadFeatureSets renders doc as a template over schemas, then decodes and
// validates it.
func LoadFeatureSets(doc string, schemas database.Schemas) ([]FeatureSet, error) {
	tmpl, err := template.New("features").Option("missingkey=error").Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feature sets: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, schemas); err != nil {
		return nil, fmt.Errorf("failed to render feature sets: %w", err)
	}

	var sets featureSets
	if err := yaml.Unmarshal(buf.Bytes(), &sets); err != nil {
		return nil, fmt.Errorf("failed to decode feature sets: %w", err)
	}
	if err := validation.ValidateStruct(&sets); err != nil {
		return nil, fmt.Errorf("invalid feature sets: %w", err)
	}
	seen := make(map[string]bool, len(sets.Sets))
	for _, fs := range sets.Sets {
		if seen[fs.Name] {
			return nil, fmt.Errorf("feature set %s declared twice", fs.Name)
		}
		seen[fs.Name] = true
	}
	return sets.Sets, nil
}
