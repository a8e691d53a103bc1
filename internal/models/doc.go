// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

// Package models defines the persisted entities of the reconciliation
// pipeline (City, VoteAggregate, AmendmentRecord, DemographicSnapshot) and
// the validated response shapes of the external government APIs.
//
// Entities are created lazily during a pipeline run and are idempotently
// updatable by subsequent runs; the pipeline never deletes them.
package models
