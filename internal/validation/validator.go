// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

// Package validation provides struct validation using go-playground/validator
// v10 behind a thread-safe singleton instance.
//
// The pipeline validates two kinds of structs: configuration on startup and
// externally-typed API responses at the ingestion boundary, so shape
// mismatches are rejected or flagged instead of propagating zero values
// silently through the run.
//
//	type Page struct {
//	    Items []PortalAmendment `validate:"dive"`
//	}
//	if err := validation.Struct(&page); err != nil { ... }
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// instance returns the singleton validator, initializing it on first use.
// The validator caches struct metadata, so a single shared instance is both
// safe and faster than per-call construction.
func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// FieldError describes a single field that failed validation.
type FieldError struct {
	Field string
	Tag   string
	Param string
}

// Error returns a human-readable message for the failed field.
func (e FieldError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("field %s failed %s=%s validation", e.Field, e.Tag, e.Param)
	}
	return fmt.Sprintf("field %s failed %s validation", e.Field, e.Tag)
}

// StructError aggregates every field failure found in one struct.
type StructError struct {
	Fields []FieldError
}

// Error joins the individual field messages.
func (e *StructError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Struct validates a struct according to its `validate` tags.
// Returns a *StructError listing every failed field, or nil.
func Struct(s interface{}) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError: caller passed a non-struct.
		return fmt.Errorf("validation: %w", err)
	}

	se := &StructError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		se.Fields = append(se.Fields, FieldError{
			Field: fe.Field(),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return se
}

// Var validates a single value against a tag expression, e.g.
// validation.Var(round, "min=1,max=2").
func Var(value interface{}, tag string) error {
	return instance().Var(value, tag)
}
