//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"bendgen/internal/model"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "bendgen.db"))
	t.Cleanup(func() { _ = store.Close() })
	exerciseStore(t, store)
}

func TestSQLiteStoreUpsertsPopulation(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "bendgen.db"))
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	for _, angle := range []float64{10, 20} {
		population := model.PopulationRecord{
			VersionedRecord: CurrentVersion(),
			RunID:           "run",
			Generation:      0,
			Organisms:       []model.Organism{sampleOrganism("a", angle)},
		}
		if err := store.SavePopulation(ctx, population); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	loaded, ok, err := store.GetPopulation(ctx, "run", 0)
	if err != nil || !ok {
		t.Fatalf("get: ok=%t err=%v", ok, err)
	}
	if *loaded.Organisms[0].Angle != 20 {
		t.Fatalf("expected latest write to win, got %f", *loaded.Organisms[0].Angle)
	}
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	if err := NewSQLiteStore("").Init(context.Background()); err == nil {
		t.Fatal("expected missing path error")
	}
}
