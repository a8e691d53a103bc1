// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

package models

import (
	"time"

	"github.com/google/uuid"
)

// AmendmentRecord is a budget amendment line item tied to one beneficiary
// city.
//
// Natural key: (CityID, Code) when the transparency portal supplies an
// amendment code. Records without a code cannot be matched across runs and
// are always inserted as new rows.
type AmendmentRecord struct {
	ID              uuid.UUID `json:"id"`
	CityID          uuid.UUID `json:"city_id"`
	Code            string    `json:"code"`
	Author          string    `json:"author"`
	Year            int       `json:"year"`
	CommittedAmount float64   `json:"committed_amount"`
	PaidAmount      float64   `json:"paid_amount"`
	Status          string    `json:"status"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasCode reports whether the record carries an external amendment code and
// can therefore be matched for upsert across runs.
func (a *AmendmentRecord) HasCode() bool {
	return a.Code != ""
}

// PortalAmendment is one amendment entry as returned by the transparency
// portal API. Validated at the ingestion boundary so shape mismatches are
// flagged instead of propagating zero values silently.
type PortalAmendment struct {
	Code            string `json:"codigoEmenda"`
	Year            int    `json:"ano" validate:"required"`
	Author          string `json:"autor" validate:"required"`
	Beneficiary     string `json:"localidadeDoGasto" validate:"required"`
	Function        string `json:"funcao"`
	Status          string `json:"situacao"`
	CommittedAmount string `json:"valorEmpenhado"`
	PaidAmount      string `json:"valorPago"`
}
