// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

// Package ingest implements the batch reconciliation jobs: streaming reads
// of delimited electoral-results files, paginated reads of the
// transparency-portal and census APIs, in-memory aggregation by natural
// key, and idempotent reconciliation against the persisted store.
//
// Data flow per job:
//
//	source -> Reader / fetch.Client -> resolver.Resolver -> Aggregator -> Reconciler -> store
//
// Jobs are single-threaded and batch-oriented: a row is fully consumed
// before the next is read, so memory is bounded by one row plus the
// aggregator's key set. Independent jobs may run as separate processes,
// but each owns its resolver cache for the run.
package ingest
