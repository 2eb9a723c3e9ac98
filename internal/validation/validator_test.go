// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package validation

import (
	"strings"
	"sync"
	"testing"
)

type column struct {
	Name string `yaml:"name" validate:"required,sqlident"`
	Type string `yaml:"type" validate:"required,sqltype"`
}

type table struct {
	Name    string   `yaml:"name" validate:"required,sqlident"`
	Columns []column `yaml:"columns" validate:"min=1,dive"`
	Layer   string   `json:"layer" validate:"omitempty,oneof=bronze silver gold"`
}

func TestGetValidatorSingleton(t *testing.T) {
	var wg sync.WaitGroup
	results := make(chan interface{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- GetValidator()
		}()
	}
	wg.Wait()
	close(results)

	first := GetValidator()
	for v := range results {
		if v != first {
			t.Fatal("GetValidator returned different instances")
		}
	}
}

func TestValidateStructValid(t *testing.T) {
	tbl := table{
		Name:    "castaways",
		Columns: []column{{Name: "castaway_id", Type: "text"}, {Name: "age", Type: "INTEGER"}},
		Layer:   "bronze",
	}
	if err := ValidateStruct(&tbl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateStructCustomTags(t *testing.T) {
	tests := []struct {
		name      string
		tbl       table
		wantField string
		wantTag   string
	}{
		{
			name:      "uppercase table name",
			tbl:       table{Name: "Castaways", Columns: []column{{Name: "a", Type: "TEXT"}}},
			wantField: "table.name",
			wantTag:   "sqlident",
		},
		{
			name:      "unknown column type",
			tbl:       table{Name: "t", Columns: []column{{Name: "a", Type: "BLOB"}}},
			wantField: "table.columns[0].type",
			wantTag:   "sqltype",
		},
		{
			name:      "no columns",
			tbl:       table{Name: "t"},
			wantField: "table.columns",
			wantTag:   "min",
		},
		{
			name:      "bad layer",
			tbl:       table{Name: "t", Columns: []column{{Name: "a", Type: "TEXT"}}, Layer: "platinum"},
			wantField: "table.layer",
			wantTag:   "oneof",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.tbl)
			if err == nil {
				t.Fatal("expected validation error")
			}
			errs := err.Errors()
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(errs), err)
			}
			if errs[0].Field() != tt.wantField {
				t.Errorf("Field() = %q, want %q", errs[0].Field(), tt.wantField)
			}
			if errs[0].Tag() != tt.wantTag {
				t.Errorf("Tag() = %q, want %q", errs[0].Tag(), tt.wantTag)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	tbl := table{Name: "Bad Name"}
	err := ValidateStruct(&tbl)
	if err == nil {
		t.Fatal("expected validation error")
	}
	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q", apiErr.Code)
	}
	if _, ok := apiErr.Details["fields"]; !ok {
		t.Errorf("multi-error details should list fields, got %v", apiErr.Details)
	}
	if !strings.Contains(apiErr.Message, "table.columns must be at least 1 items") {
		t.Errorf("Message = %q", apiErr.Message)
	}
}
