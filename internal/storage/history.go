package storage

import (
	"packtrack/internal"
)

func (d *DB) InsertHistory(packageID int, action, details string) error {
	_, err := d.conn.Exec(`INSERT INTO history (packageId, action, details) VALUES (?, ?, ?)`, packageID, action, details)
	return err
}

func (d *DB) ListHistory(limit int) ([]internal.HistoryRow, error) {
	rows, err := d.conn.Query(`
SELECT h.id, h.packageId, h.action, h.timestamp, h.details, p.tracking_number, p.item_name
FROM history h
JOIN packages p ON p.id = h.packageId
ORDER BY h.timestamp DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.HistoryRow
	for rows.Next() {
		var row internal.HistoryRow
		if err := rows.Scan(&row.ID, &row.PackageID, &row.Action, &row.Timestamp, &row.Details, &row.TrackingNumber, &row.ItemName); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) HasReceiptHistory(tracking string) (bool, error) {
	var count int
	err := d.conn.QueryRow(`
SELECT count(*) FROM history h
JOIN packages p ON p.id = h.packageId
WHERE p.tracking_number = ? AND h.action = 'received'
`, tracking).Scan(&count)
	return count > 0, err
}

// TrimStalePackages removes received or past-due packages whose expected
// date fell before the cutoff, along with their history. Pending-dated
// rows are never trimmed.
func (d *DB) TrimStalePackages(cutoff string) (int, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	where := `date_scanned IS NOT NULL
  AND status IN ('received', 'past_due')
  AND date_expected != 'Pending'
  AND date_expected < ?`

	if _, err := tx.Exec(`DELETE FROM history WHERE packageId IN (SELECT id FROM packages WHERE `+where+`)`, cutoff); err != nil {
		return 0, err
	}
	result, err := tx.Exec(`DELETE FROM packages WHERE `+where, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), tx.Commit()
}

// TrimHistory drops history rows older than the cutoff timestamp.
func (d *DB) TrimHistory(cutoff string) (int, error) {
	result, err := d.conn.Exec(`DELETE FROM history WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}
