package pipeline

import (
	"path/filepath"
	"testing"
	"time"

	"packtrack/internal"
	"packtrack/internal/config"
	"packtrack/internal/storage"
)

func testService(t *testing.T) (*Service, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "packtrack.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	svc := NewService(db, config.Config{})
	svc.now = func() time.Time {
		return time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	}
	return svc, db
}

func csvManifest(lines ...string) []byte {
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return []byte(out)
}

func TestIngestCreatesAndMerges(t *testing.T) {
	svc, db := testService(t)

	summary, err := svc.Ingest(csvManifest(
		"TrackingNumber,ItemName,Date,Quantity",
		"TBA100,Stapler,2026-09-02,1",
		"TBA100,Staples,2026-09-02,4",
		"TBA200,Tape,,2",
		",Ghost,,1",
	), internal.FormatCSV)
	if err != nil {
		t.Fatal(err)
	}

	if summary.RowsRead != 4 || summary.RowsSkipped != 1 || summary.RowsMerged != 2 {
		t.Fatalf("summary %+v", summary)
	}
	if summary.Created != 2 || summary.Updated != 0 || summary.Pruned != 0 {
		t.Fatalf("summary %+v", summary)
	}

	rec, err := db.GetPackageByTracking("TBA100")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("TBA100 missing")
	}
	if rec.Quantity != 5 {
		t.Fatalf("merged quantity=%d", rec.Quantity)
	}
	if rec.ItemName != "Stapler + Staples" {
		t.Fatalf("merged name %q", rec.ItemName)
	}
	if rec.Status != internal.StatusOnTime {
		t.Fatalf("future date status %q", rec.Status)
	}

	pending, err := db.GetPackageByTracking("TBA200")
	if err != nil {
		t.Fatal(err)
	}
	if pending.DateExpected != internal.PendingDate {
		t.Fatalf("date %q", pending.DateExpected)
	}
	if pending.Status != internal.StatusExpected {
		t.Fatalf("pending-date status %q", pending.Status)
	}
}

func TestStrictMirrorPrunes(t *testing.T) {
	svc, db := testService(t)

	_, err := svc.Ingest(csvManifest(
		"TrackingNumber,ItemName,Date,Quantity",
		"A,Item A,2026-09-02,1",
		"B,Item B,2026-09-02,1",
		"C,Item C,2026-09-02,1",
	), internal.FormatCSV)
	if err != nil {
		t.Fatal(err)
	}

	summary, err := svc.Ingest(csvManifest(
		"TrackingNumber,ItemName,Date,Quantity",
		"A,Item A renamed,2026-09-02,1",
		"D,Item D,2026-09-02,1",
	), internal.FormatCSV)
	if err != nil {
		t.Fatal(err)
	}

	if summary.Created != 1 || summary.Updated != 1 || summary.Pruned != 2 {
		t.Fatalf("summary %+v", summary)
	}

	packages, err := db.ListPackages()
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]string{}
	for _, p := range packages {
		got[p.TrackingNumber] = p.ItemName
	}
	if len(got) != 2 {
		t.Fatalf("store not mirrored: %v", got)
	}
	if got["A"] != "Item A renamed" {
		t.Fatalf("A not updated: %v", got)
	}
	if _, ok := got["D"]; !ok {
		t.Fatalf("D not created: %v", got)
	}
}

func TestReingestIsIdempotent(t *testing.T) {
	svc, _ := testService(t)

	manifest := csvManifest(
		"TrackingNumber,ItemName,Date,Quantity",
		"A,Item A,2026-09-02,1",
		"B,Item B,,3",
	)

	if _, err := svc.Ingest(manifest, internal.FormatCSV); err != nil {
		t.Fatal(err)
	}
	second, err := svc.Ingest(manifest, internal.FormatCSV)
	if err != nil {
		t.Fatal(err)
	}
	if second.Created != 0 || second.Updated != 0 || second.Pruned != 0 {
		t.Fatalf("second run not idempotent: %+v", second)
	}
}

func TestScanRecordsSurviveMirror(t *testing.T) {
	svc, db := testService(t)

	if _, err := db.InsertPackage(internal.PackageRecord{
		TrackingNumber: "1Z999AA10123456784",
		ItemName:       "Walk-up delivery",
		Status:         internal.StatusReceived,
		Source:         internal.SourceScan,
		DateExpected:   internal.PendingDate,
		Quantity:       1,
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Ingest(csvManifest(
		"TrackingNumber,ItemName,Date,Quantity",
		"A,Item A,2026-09-02,1",
	), internal.FormatCSV); err != nil {
		t.Fatal(err)
	}

	rec, err := db.GetPackageByTracking("1Z999AA10123456784")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("scan-sourced record pruned by manifest mirror")
	}
}

func TestColumnErrorAbortsBeforeMutation(t *testing.T) {
	svc, db := testService(t)

	if _, err := svc.Ingest(csvManifest(
		"TrackingNumber,ItemName,Date,Quantity",
		"A,Item A,2026-09-02,1",
	), internal.FormatCSV); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Ingest(csvManifest(
		"ItemName,Quantity",
		"No tracking here,1",
	), internal.FormatCSV)
	if err == nil {
		t.Fatal("expected ColumnDetectionError")
	}

	packages, err := db.ListPackages()
	if err != nil {
		t.Fatal(err)
	}
	if len(packages) != 1 || packages[0].TrackingNumber != "A" {
		t.Fatalf("store mutated by failed ingest: %+v", packages)
	}
}

func TestPastDueEvaluation(t *testing.T) {
	svc, db := testService(t)

	if _, err := svc.Ingest(csvManifest(
		"TrackingNumber,ItemName,Date,Quantity",
		"LATE,Item,2026-08-20,1",
		"TODAY,Item,2026-08-31,1",
	), internal.FormatCSV); err != nil {
		t.Fatal(err)
	}

	late, _ := db.GetPackageByTracking("LATE")
	if late.Status != internal.StatusPastDue {
		t.Fatalf("late status %q", late.Status)
	}
	today, _ := db.GetPackageByTracking("TODAY")
	if today.Status != internal.StatusExpected {
		t.Fatalf("today status %q", today.Status)
	}
}
