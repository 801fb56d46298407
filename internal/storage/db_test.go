package storage

import (
	"path/filepath"
	"testing"
	"time"

	"packtrack/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "packtrack.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func mustInsert(t *testing.T, db *DB, p internal.PackageRecord) int {
	t.Helper()
	id, err := db.InsertPackage(p)
	if err != nil {
		t.Fatal(err)
	}
	return int(id)
}

func TestInsertPackageIfAbsent(t *testing.T) {
	db := openTestDB(t)

	mustInsert(t, db, internal.PackageRecord{
		TrackingNumber: "TBA1",
		ItemName:       "Original",
		Status:         internal.StatusOnTime,
		Source:         internal.SourceManifest,
		DateExpected:   "2026-09-01",
		Quantity:       1,
	})

	inserted, err := db.InsertPackageIfAbsent(internal.PackageRecord{
		TrackingNumber: "TBA1",
		ItemName:       "From email",
		Status:         internal.StatusExpected,
		Source:         internal.SourceAutoEmail,
		DateExpected:   internal.PendingDate,
		Quantity:       1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Fatal("existing record clobbered")
	}

	rec, err := db.GetPackageByTracking("TBA1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.ItemName != "Original" || rec.Source != internal.SourceManifest {
		t.Fatalf("record changed: %+v", rec)
	}
}

func TestApplySyncPlanPrunesOnlyManifestRecords(t *testing.T) {
	db := openTestDB(t)

	manifestID := mustInsert(t, db, internal.PackageRecord{
		TrackingNumber: "GONE",
		Status:         internal.StatusOnTime,
		Source:         internal.SourceManifest,
		DateExpected:   "2026-09-01",
		Quantity:       1,
	})
	if err := db.InsertHistory(manifestID, "auto_added", ""); err != nil {
		t.Fatal(err)
	}

	err := db.ApplySyncPlan(SyncPlan{Prunes: []string{"GONE"}})
	if err != nil {
		t.Fatal(err)
	}

	rec, err := db.GetPackageByTracking("GONE")
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Fatal("manifest record not pruned")
	}

	// Pruning a scan-sourced tracking number must be a no-op even if the
	// plan names it.
	mustInsert(t, db, internal.PackageRecord{
		TrackingNumber: "SCANNED",
		Status:         internal.StatusReceived,
		Source:         internal.SourceScan,
		DateExpected:   internal.PendingDate,
		Quantity:       1,
	})
	if err := db.ApplySyncPlan(SyncPlan{Prunes: []string{"SCANNED"}}); err != nil {
		t.Fatal(err)
	}
	rec, err = db.GetPackageByTracking("SCANNED")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("scan record deleted by prune")
	}
}

func TestApplySyncPlanRollsBackOnConflict(t *testing.T) {
	db := openTestDB(t)

	mustInsert(t, db, internal.PackageRecord{
		TrackingNumber: "DUP",
		Status:         internal.StatusOnTime,
		Source:         internal.SourceManifest,
		DateExpected:   "2026-09-01",
		Quantity:       1,
	})

	plan := SyncPlan{
		Creates: []internal.PackageRecord{
			{TrackingNumber: "NEW", Status: internal.StatusOnTime, DateExpected: "2026-09-01", Quantity: 1},
			{TrackingNumber: "DUP", Status: internal.StatusOnTime, DateExpected: "2026-09-01", Quantity: 1},
		},
	}
	if err := db.ApplySyncPlan(plan); err == nil {
		t.Fatal("expected unique constraint error")
	}

	rec, err := db.GetPackageByTracking("NEW")
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Fatal("partial apply: NEW exists after failed transaction")
	}
}

func TestSetManualDateUpdatesExpected(t *testing.T) {
	db := openTestDB(t)

	mustInsert(t, db, internal.PackageRecord{
		TrackingNumber: "TBA1",
		Status:         internal.StatusExpected,
		Source:         internal.SourceManifest,
		DateExpected:   internal.PendingDate,
		Quantity:       1,
	})

	if err := db.SetManualDate("TBA1", "2026-09-10"); err != nil {
		t.Fatal(err)
	}
	rec, _ := db.GetPackageByTracking("TBA1")
	if rec.DateExpected != "2026-09-10" {
		t.Fatalf("date_expected %q", rec.DateExpected)
	}
	if rec.ManualDate == nil || *rec.ManualDate != "2026-09-10" {
		t.Fatalf("manual_date %v", rec.ManualDate)
	}

	if err := db.SetManualDate("MISSING", "2026-09-10"); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestTrimStalePackages(t *testing.T) {
	db := openTestDB(t)

	staleID := mustInsert(t, db, internal.PackageRecord{
		TrackingNumber: "OLD",
		Status:         internal.StatusReceived,
		Source:         internal.SourceManifest,
		DateExpected:   "2026-06-01",
		Quantity:       1,
	})
	if err := db.MarkScanned(staleID, internal.StatusReceived); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertHistory(staleID, "received", "Qty: 1"); err != nil {
		t.Fatal(err)
	}

	// Pending-dated and unscanned rows must survive any cutoff.
	mustInsert(t, db, internal.PackageRecord{
		TrackingNumber: "PENDING",
		Status:         internal.StatusExpected,
		Source:         internal.SourceManifest,
		DateExpected:   internal.PendingDate,
		Quantity:       1,
	})
	mustInsert(t, db, internal.PackageRecord{
		TrackingNumber: "UNSCANNED",
		Status:         internal.StatusPastDue,
		Source:         internal.SourceManifest,
		DateExpected:   "2026-06-01",
		Quantity:       1,
	})

	trimmed, err := db.TrimStalePackages("2026-08-01")
	if err != nil {
		t.Fatal(err)
	}
	if trimmed != 1 {
		t.Fatalf("trimmed=%d", trimmed)
	}

	for _, tn := range []string{"PENDING", "UNSCANNED"} {
		rec, err := db.GetPackageByTracking(tn)
		if err != nil {
			t.Fatal(err)
		}
		if rec == nil {
			t.Fatalf("%s trimmed", tn)
		}
	}
}

func TestDashboardStats(t *testing.T) {
	db := openTestDB(t)
	// MarkScanned stamps with the database clock, so the test day has to be
	// the real one.
	today := time.Now().UTC()
	todayStr := today.Format("2006-01-02")

	scannedID := mustInsert(t, db, internal.PackageRecord{
		TrackingNumber: "T1",
		Status:         internal.StatusReceived,
		Source:         internal.SourceManifest,
		DateExpected:   todayStr,
		Quantity:       1,
	})
	if err := db.MarkScanned(scannedID, internal.StatusReceived); err != nil {
		t.Fatal(err)
	}
	mustInsert(t, db, internal.PackageRecord{
		TrackingNumber: "T2",
		Status:         internal.StatusExpected,
		Source:         internal.SourceManifest,
		DateExpected:   todayStr,
		Quantity:       1,
	})
	mustInsert(t, db, internal.PackageRecord{
		TrackingNumber: "T3",
		Status:         internal.StatusPastDue,
		Source:         internal.SourceManifest,
		DateExpected:   "2026-08-20",
		Quantity:       1,
	})
	mustInsert(t, db, internal.PackageRecord{
		TrackingNumber: "T4",
		Status:         internal.StatusReturnPending,
		Source:         internal.SourceScan,
		DateExpected:   "2026-08-10",
		Quantity:       1,
	})

	stats, err := db.DashboardStats(today)
	if err != nil {
		t.Fatal(err)
	}
	if stats.ExpectedTotal != 2 || stats.ExpectedScanned != 1 {
		t.Fatalf("expected %d/%d", stats.ExpectedScanned, stats.ExpectedTotal)
	}
	if stats.PastDue != 1 {
		t.Fatalf("pastDue=%d", stats.PastDue)
	}
	if stats.OpenReturns != 1 {
		t.Fatalf("openReturns=%d", stats.OpenReturns)
	}
}

func TestDailyScanCountsZeroFilled(t *testing.T) {
	db := openTestDB(t)
	today := time.Now().UTC()

	id := mustInsert(t, db, internal.PackageRecord{
		TrackingNumber: "T1",
		Status:         internal.StatusReceived,
		Source:         internal.SourceScan,
		DateExpected:   internal.PendingDate,
		Quantity:       1,
	})
	if err := db.InsertHistory(id, "received", ""); err != nil {
		t.Fatal(err)
	}

	counts, err := db.DailyScanCounts(today, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 7 {
		t.Fatalf("days=%d", len(counts))
	}
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	if total != 1 {
		t.Fatalf("total=%d counts=%+v", total, counts)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	db := openTestDB(t)

	v, err := db.GetMetadata("missing")
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Fatalf("got %v", *v)
	}

	if err := db.SetMetadata("k", "1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMetadata("k", "2"); err != nil {
		t.Fatal(err)
	}
	v, err = db.GetMetadata("k")
	if err != nil {
		t.Fatal(err)
	}
	if v == nil || *v != "2" {
		t.Fatalf("got %v", v)
	}
}
