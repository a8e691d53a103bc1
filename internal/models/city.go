// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

package models

import (
	"time"

	"github.com/google/uuid"
)

// City source values. Auto-created placeholder cities carry SourceAuto so
// downstream review can find records whose descriptive fields were invented
// by the pipeline rather than entered by a person.
const (
	CitySourceAuto   = "auto"
	CitySourceManual = "manual"
)

// City is the identity entity of the municipality catalog.
//
// The normalized comparison key (see internal/normalize) is derived from
// Name and stored in a dedicated indexed column; two display names that
// normalize identically refer to the same city.
type City struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name" validate:"required"`
	NormalizedKey string    `json:"normalized_key" validate:"required"`
	State         string    `json:"state"`
	Mayor         string    `json:"mayor"`
	Population    int64     `json:"population"`
	Source        string    `json:"source"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsPlaceholder reports whether the city was auto-created by the pipeline
// on a resolution miss and still carries invented descriptive fields.
func (c *City) IsPlaceholder() bool {
	return c.Source == CitySourceAuto
}
