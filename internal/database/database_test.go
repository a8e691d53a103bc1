// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

package database

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/mandatolab/reconcilia/internal/config"
	"github.com/mandatolab/reconcilia/internal/models"
	"github.com/mandatolab/reconcilia/internal/normalize"
)

// newTestDB opens an in-memory DuckDB store with the full schema.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(&config.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}

func TestFindOrCreateCity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	t.Run("creates on first sight", func(t *testing.T) {
		city := &models.City{
			Name:          "São José",
			NormalizedKey: normalize.Key("São José"),
			State:         "SC",
			Source:        models.CitySourceAuto,
		}
		created, err := db.FindOrCreateCity(ctx, city)
		if err != nil {
			t.Fatalf("FindOrCreateCity: %v", err)
		}
		if !created {
			t.Error("expected created = true on first sight")
		}
		if city.ID == uuid.Nil {
			t.Error("expected non-nil city id")
		}
	})

	t.Run("diacritic variant resolves to same city", func(t *testing.T) {
		city := &models.City{
			Name:          "Sao Jose",
			NormalizedKey: normalize.Key("Sao Jose"),
			Source:        models.CitySourceAuto,
		}
		created, err := db.FindOrCreateCity(ctx, city)
		if err != nil {
			t.Fatalf("FindOrCreateCity: %v", err)
		}
		if created {
			t.Error("expected created = false for normalized-key match")
		}

		existing, err := db.GetCityByKey(ctx, normalize.Key("SÃO JOSÉ"))
		if err != nil {
			t.Fatalf("GetCityByKey: %v", err)
		}
		if existing.ID != city.ID {
			t.Errorf("variant resolved to %s, want %s", city.ID, existing.ID)
		}
		// Display name stays as first seen.
		if existing.Name != "São José" {
			t.Errorf("display name = %q, want original", existing.Name)
		}
	})

	t.Run("lookup miss returns ErrNotFound", func(t *testing.T) {
		_, err := db.GetCityByKey(ctx, "NOWHERE")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestUpsertVoteAggregate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	city := &models.City{Name: "Campinas", NormalizedKey: "CAMPINAS", Source: models.CitySourceManual}
	if _, err := db.FindOrCreateCity(ctx, city); err != nil {
		t.Fatal(err)
	}

	key := models.VoteKey{CityID: city.ID, OfficeCode: models.OfficeFederalDeputy, Year: 2022, Round: 1, Number: "1234"}
	agg := &models.VoteAggregate{
		Key:       key,
		Kind:      models.VoteKindNominal,
		Candidate: "Fulano de Tal",
		Party:     "XYZ",
		Total:     360,
		RowCount:  3,
	}

	created, err := db.UpsertVoteAggregate(ctx, agg)
	if err != nil {
		t.Fatalf("UpsertVoteAggregate: %v", err)
	}
	if !created {
		t.Error("expected created = true on first upsert")
	}

	t.Run("re-run overwrites instead of accumulating", func(t *testing.T) {
		again := &models.VoteAggregate{
			Key:       key,
			Kind:      models.VoteKindNominal,
			Candidate: "Fulano de Tal",
			Party:     "XYZ",
			Total:     360,
			RowCount:  3,
		}
		created, err := db.UpsertVoteAggregate(ctx, again)
		if err != nil {
			t.Fatalf("UpsertVoteAggregate: %v", err)
		}
		if created {
			t.Error("expected created = false on re-run")
		}

		stored, err := db.GetVoteAggregate(ctx, key, models.VoteKindNominal)
		if err != nil {
			t.Fatalf("GetVoteAggregate: %v", err)
		}
		if stored.Total != 360 {
			t.Errorf("total = %d after re-run, want 360 (no doubling)", stored.Total)
		}
		if stored.RowCount != 3 {
			t.Errorf("row count = %d, want 3", stored.RowCount)
		}

		n, err := db.CountVoteAggregates(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("aggregate rows = %d, want 1", n)
		}
	})

	t.Run("nominal and legend kinds are distinct rows", func(t *testing.T) {
		legend := &models.VoteAggregate{
			Key:   key,
			Kind:  models.VoteKindLegend,
			Party: "XYZ",
			Total: 42,
		}
		created, err := db.UpsertVoteAggregate(ctx, legend)
		if err != nil {
			t.Fatalf("UpsertVoteAggregate: %v", err)
		}
		if !created {
			t.Error("expected separate row for legend votes")
		}
	})
}

func TestUpsertAmendment(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	city := &models.City{Name: "Itabirito", NormalizedKey: "ITABIRITO", Source: models.CitySourceManual}
	if _, err := db.FindOrCreateCity(ctx, city); err != nil {
		t.Fatal(err)
	}

	t.Run("same code updates in place", func(t *testing.T) {
		first := &models.AmendmentRecord{
			CityID: city.ID, Code: "202212345", Author: "Deputado A", Year: 2022,
			PaidAmount: 1000, Status: "empenhada",
		}
		created, err := db.UpsertAmendment(ctx, first)
		if err != nil {
			t.Fatalf("UpsertAmendment: %v", err)
		}
		if !created {
			t.Error("expected created = true for new code")
		}

		second := &models.AmendmentRecord{
			CityID: city.ID, Code: "202212345", Author: "Deputado A", Year: 2022,
			PaidAmount: 2500, Status: "paga",
		}
		created, err = db.UpsertAmendment(ctx, second)
		if err != nil {
			t.Fatalf("UpsertAmendment: %v", err)
		}
		if created {
			t.Error("expected created = false for existing code")
		}

		stored, err := db.GetAmendment(ctx, city.ID, "202212345")
		if err != nil {
			t.Fatalf("GetAmendment: %v", err)
		}
		if stored.PaidAmount != 2500 {
			t.Errorf("paid amount = %v, want 2500 (second run wins)", stored.PaidAmount)
		}
		if stored.Status != "paga" {
			t.Errorf("status = %q, want paga", stored.Status)
		}

		n, err := db.CountAmendments(ctx, city.ID)
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("amendment rows = %d, want 1 (no duplicate for code)", n)
		}
	})

	t.Run("no code always inserts", func(t *testing.T) {
		before, err := db.CountAmendments(ctx, city.ID)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 2; i++ {
			rec := &models.AmendmentRecord{CityID: city.ID, Author: "Deputado B", Year: 2023, PaidAmount: 10}
			created, err := db.UpsertAmendment(ctx, rec)
			if err != nil {
				t.Fatalf("UpsertAmendment: %v", err)
			}
			if !created {
				t.Error("expected created = true for codeless record")
			}
		}
		after, err := db.CountAmendments(ctx, city.ID)
		if err != nil {
			t.Fatal(err)
		}
		if after != before+2 {
			t.Errorf("amendment rows = %d, want %d", after, before+2)
		}
	})
}

func TestUpsertDemographicSnapshot(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	city := &models.City{Name: "Ouro Preto", NormalizedKey: "OURO PRETO", Source: models.CitySourceManual}
	if _, err := db.FindOrCreateCity(ctx, city); err != nil {
		t.Fatal(err)
	}

	snap := &models.DemographicSnapshot{
		CityID:       city.ID,
		UrbanPercent: 87.3, RuralPercent: 12.9, // independently sourced, need not sum to 100
		LiteracyRate: 91.2,
		Districts:    []string{"Centro", "Cachoeira do Campo"},
	}
	created, err := db.UpsertDemographicSnapshot(ctx, snap)
	if err != nil {
		t.Fatalf("UpsertDemographicSnapshot: %v", err)
	}
	if !created {
		t.Error("expected created = true for first snapshot")
	}

	snap.LiteracyRate = 92.0
	snap.Districts = append(snap.Districts, "Lavras Novas")
	created, err = db.UpsertDemographicSnapshot(ctx, snap)
	if err != nil {
		t.Fatalf("UpsertDemographicSnapshot: %v", err)
	}
	if created {
		t.Error("expected created = false for second snapshot")
	}

	stored, err := db.GetDemographicSnapshot(ctx, city.ID)
	if err != nil {
		t.Fatalf("GetDemographicSnapshot: %v", err)
	}
	if stored.LiteracyRate != 92.0 {
		t.Errorf("literacy = %v, want 92.0", stored.LiteracyRate)
	}
	if len(stored.Districts) != 3 {
		t.Errorf("districts = %v, want 3 entries", stored.Districts)
	}
	if stored.UrbanPercent != 87.3 || stored.RuralPercent != 12.9 {
		t.Errorf("urban/rural = %v/%v, want 87.3/12.9 unnormalized", stored.UrbanPercent, stored.RuralPercent)
	}
}
