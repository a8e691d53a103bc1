// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

package models

import (
	"time"

	"github.com/google/uuid"
)

// Electoral office codes as used by the TSE results files.
const (
	OfficePresident     = 1
	OfficeGovernor      = 3
	OfficeFederalDeputy = 6
)

// Vote kinds. Nominal votes are cast for an individual candidate; legend
// votes are cast for a party list.
const (
	VoteKindNominal = "nominal"
	VoteKindLegend  = "legend"
)

// VoteKey is the natural key of a vote aggregate: one total per
// (city, office, year, round, candidate-or-party number) tuple.
type VoteKey struct {
	CityID     uuid.UUID `json:"city_id"`
	OfficeCode int       `json:"office_code"`
	Year       int       `json:"year"`
	Round      int       `json:"round"`
	Number     string    `json:"number"`
}

// VoteAggregate holds the consolidated vote total for one VoteKey.
//
// Total equals the sum of every source row matching the key, however many
// electoral zones reported it. RowCount records how many source rows
// contributed. The record is only ever written whole by the reconciler,
// never patched field-by-field.
type VoteAggregate struct {
	ID        uuid.UUID `json:"id"`
	Key       VoteKey   `json:"key"`
	Kind      string    `json:"kind" validate:"oneof=nominal legend"`
	Candidate string    `json:"candidate"`
	Party     string    `json:"party"`
	Total     int64     `json:"total" validate:"min=0"`
	RowCount  int       `json:"row_count" validate:"min=0"`
	UpdatedAt time.Time `json:"updated_at"`
}
