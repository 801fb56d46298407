package storage

import (
	"packtrack/internal"
)

// PackageUpdate carries the mutable fields of one mirrored record.
// Priority, manual dates and scan timestamps are deliberately absent:
// ingest never touches them.
type PackageUpdate struct {
	TrackingNumber string
	ItemName       string
	DateExpected   string
	Quantity       int
	ImageURL       string
	Status         internal.PackageStatus
}

// SyncPlan is the precomputed diff of one manifest ingest against the
// store. Applying it is all-or-nothing.
type SyncPlan struct {
	Creates []internal.PackageRecord
	Updates []PackageUpdate
	Prunes  []string
}

// ApplySyncPlan executes a mirror diff inside a single transaction, so
// concurrent readers never observe a half-pruned store.
func (d *DB) ApplySyncPlan(plan SyncPlan) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	insertStmt, err := tx.Prepare(`
INSERT INTO packages (tracking_number, item_name, status, source, date_expected, quantity, priority, image_url)
VALUES (?, ?, ?, 'manifest', ?, ?, 0, ?)
`)
	if err != nil {
		return err
	}
	defer insertStmt.Close()

	for _, p := range plan.Creates {
		if _, err := insertStmt.Exec(p.TrackingNumber, p.ItemName, string(p.Status), p.DateExpected, p.Quantity, p.ImageURL); err != nil {
			return err
		}
	}

	updateStmt, err := tx.Prepare(`
UPDATE packages
SET item_name = ?, date_expected = ?, quantity = ?, image_url = ?, status = ?, updatedAt = CURRENT_TIMESTAMP
WHERE tracking_number = ?
`)
	if err != nil {
		return err
	}
	defer updateStmt.Close()

	for _, u := range plan.Updates {
		if _, err := updateStmt.Exec(u.ItemName, u.DateExpected, u.Quantity, u.ImageURL, string(u.Status), u.TrackingNumber); err != nil {
			return err
		}
	}

	// Prune is restricted to manifest-sourced rows; scan and email records
	// are not part of the uploaded snapshot.
	for _, tracking := range plan.Prunes {
		if _, err := tx.Exec(`DELETE FROM history WHERE packageId IN (SELECT id FROM packages WHERE tracking_number = ? AND source = 'manifest')`, tracking); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM packages WHERE tracking_number = ? AND source = 'manifest'`, tracking); err != nil {
			return err
		}
	}

	return tx.Commit()
}
