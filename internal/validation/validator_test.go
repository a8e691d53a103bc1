// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

package validation

import (
	"errors"
	"strings"
	"testing"
)

type sampleResponse struct {
	Author string `validate:"required"`
	Year   int    `validate:"required,min=2000"`
	Round  int    `validate:"min=1,max=2"`
}

func TestStruct(t *testing.T) {
	t.Run("valid struct passes", func(t *testing.T) {
		s := sampleResponse{Author: "x", Year: 2022, Round: 1}
		if err := Struct(&s); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("reports every failed field", func(t *testing.T) {
		s := sampleResponse{Round: 3}
		err := Struct(&s)
		if err == nil {
			t.Fatal("expected validation error")
		}
		var se *StructError
		if !errors.As(err, &se) {
			t.Fatalf("expected *StructError, got %T", err)
		}
		if len(se.Fields) != 3 {
			t.Errorf("got %d field errors, want 3: %v", len(se.Fields), se)
		}
		if !strings.Contains(se.Error(), "Author") {
			t.Errorf("message missing field name: %s", se.Error())
		}
	})

	t.Run("non-struct input is an error", func(t *testing.T) {
		if err := Struct("not a struct"); err == nil {
			t.Error("expected error for non-struct input")
		}
	})
}

func TestVar(t *testing.T) {
	if err := Var(1, "min=1,max=2"); err != nil {
		t.Errorf("unexpected error for round 1: %v", err)
	}
	if err := Var(3, "min=1,max=2"); err == nil {
		t.Error("expected error for round 3")
	}
}
