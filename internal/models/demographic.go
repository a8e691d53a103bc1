// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

package models

import (
	"time"

	"github.com/google/uuid"
)

// DemographicSnapshot holds census-derived figures for one city.
//
// Percentage fields for a partition (urban/rural, religion shares) are
// independently sourced and are not guaranteed to sum to exactly 100;
// consumers must not assume normalization.
type DemographicSnapshot struct {
	CityID            uuid.UUID `json:"city_id"`
	UrbanPercent      float64   `json:"urban_percent"`
	RuralPercent      float64   `json:"rural_percent"`
	LiteracyRate      float64   `json:"literacy_rate"`
	CatholicPercent   float64   `json:"catholic_percent"`
	EvangelicPercent  float64   `json:"evangelic_percent"`
	SpiritistPercent  float64   `json:"spiritist_percent"`
	NoReligionPercent float64   `json:"no_religion_percent"`
	Districts         []string  `json:"districts"`
	CollectedAt       time.Time `json:"collected_at"`
}

// CensusValueSet is one tabular result from the census aggregates API:
// a named series with one value per requested locality.
type CensusValueSet struct {
	SeriesID string `json:"id" validate:"required"`
	Variable string `json:"variavel"`
	Unit     string `json:"unidade"`
	// Results maps locality code to the reported value. Values arrive as
	// strings; "-" and ".." mark suppressed or unavailable figures.
	Results []CensusResult `json:"resultados" validate:"required,dive"`
}

// CensusResult is one locality/value pairing inside a CensusValueSet.
type CensusResult struct {
	LocalityCode string `json:"localidade" validate:"required"`
	Value        string `json:"valor"`
}

// CensusDistrict is one entry of the hierarchical locality lookup,
// used as a neighborhood proxy for a municipality.
type CensusDistrict struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"nome" validate:"required"`
}
