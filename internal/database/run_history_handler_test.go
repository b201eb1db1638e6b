package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ipsift/internal/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRunHistoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := SetupDB(WithDialector(sqlite.Open(dsn)))
	if err != nil {
		t.Fatalf("setup database: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestSetupDBRequiresConnection(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := SetupDB(); err == nil {
		t.Fatal("SetupDB without a DSN should fail")
	}
}

func TestRecordRunAndLatest(t *testing.T) {
	db := setupRunHistoryTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	runs := []domain.PublishRun{
		{StartedAt: base, FinishedAt: base.Add(time.Second), Repository: "octo/lists", Path: "ips.txt", Published: 10, Created: true},
		{StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour + time.Second), Repository: "octo/lists", Path: "ips.txt", Published: 12, PreviousToken: "sha1",
			Countries: domain.CountryCounts{{Country: "US", Count: 7}, {Country: "??", Count: 5}}},
		{StartedAt: base.Add(2 * time.Hour), FinishedAt: base.Add(2 * time.Hour), Repository: "octo/other", Path: "ips.txt", Published: 1},
	}
	for i := range runs {
		if err := RecordRun(ctx, db, &runs[i]); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
		if runs[i].ID == 0 {
			t.Fatalf("RecordRun did not assign an ID")
		}
	}

	latest, err := LatestRun(ctx, db, "octo/lists", "ips.txt")
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if latest == nil || latest.Published != 12 {
		t.Fatalf("LatestRun returned %+v, want the run with 12 published", latest)
	}
	if latest.PreviousToken != "sha1" || latest.Created {
		t.Fatalf("unexpected token fields: %+v", latest)
	}
	if len(latest.Countries) != 2 || latest.Countries[0] != (domain.CountryCount{Country: "US", Count: 7}) {
		t.Fatalf("countries did not round-trip: %+v", latest.Countries)
	}

	missing, err := LatestRun(ctx, db, "octo/none", "ips.txt")
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if missing != nil {
		t.Fatalf("LatestRun returned %+v for an unknown target, want nil", missing)
	}
}
