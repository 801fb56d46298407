package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"packtrack/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(`PRAGMA busy_timeout = 10000;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS packages (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  tracking_number TEXT UNIQUE NOT NULL,
  item_name TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'pending',
  source TEXT NOT NULL DEFAULT 'manifest',
  date_expected TEXT NOT NULL DEFAULT 'Pending',
  manual_date TEXT,
  date_scanned TEXT,
  quantity INTEGER NOT NULL DEFAULT 1,
  priority INTEGER NOT NULL DEFAULT 0,
  image_url TEXT NOT NULL DEFAULT '',
  refund_date TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_packages_tracking ON packages(tracking_number);
CREATE INDEX IF NOT EXISTS idx_packages_status ON packages(status);
CREATE INDEX IF NOT EXISTS idx_packages_date_expected ON packages(date_expected);

CREATE TABLE IF NOT EXISTS history (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  packageId INTEGER NOT NULL,
  action TEXT NOT NULL,
  timestamp TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  details TEXT NOT NULL DEFAULT '',
  FOREIGN KEY(packageId) REFERENCES packages(id)
);
CREATE INDEX IF NOT EXISTS idx_history_action ON history(action);

CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

const packageColumns = `id, tracking_number, item_name, status, source, date_expected, manual_date, date_scanned, quantity, priority, image_url, refund_date`

func scanPackage(scanner interface{ Scan(...any) error }) (internal.PackageRecord, error) {
	var p internal.PackageRecord
	var priority int
	err := scanner.Scan(
		&p.ID, &p.TrackingNumber, &p.ItemName, &p.Status, &p.Source,
		&p.DateExpected, &p.ManualDate, &p.DateScanned, &p.Quantity,
		&priority, &p.ImageURL, &p.RefundDate,
	)
	p.Priority = priority != 0
	return p, err
}

func (d *DB) ListPackages() ([]internal.PackageRecord, error) {
	return d.queryPackages(`SELECT ` + packageColumns + ` FROM packages ORDER BY id ASC`)
}

func (d *DB) ListPackagesBySource(source internal.PackageSource) ([]internal.PackageRecord, error) {
	return d.queryPackages(`SELECT `+packageColumns+` FROM packages WHERE source = ? ORDER BY id ASC`, string(source))
}

func (d *DB) ListPackagesByStatus(status internal.PackageStatus) ([]internal.PackageRecord, error) {
	return d.queryPackages(`SELECT `+packageColumns+` FROM packages WHERE status = ? ORDER BY id ASC`, string(status))
}

func (d *DB) queryPackages(query string, args ...any) ([]internal.PackageRecord, error) {
	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.PackageRecord
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *DB) GetPackageByTracking(tracking string) (*internal.PackageRecord, error) {
	row := d.conn.QueryRow(`SELECT `+packageColumns+` FROM packages WHERE tracking_number = ?`, tracking)
	p, err := scanPackage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DB) InsertPackage(p internal.PackageRecord) (int64, error) {
	result, err := d.conn.Exec(`
INSERT INTO packages (tracking_number, item_name, status, source, date_expected, quantity, priority, image_url)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, p.TrackingNumber, p.ItemName, string(p.Status), string(p.Source), p.DateExpected, p.Quantity, boolToInt(p.Priority), p.ImageURL)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// InsertPackageIfAbsent adds a package only when the tracking number is new.
// Used by email ingest, which must never clobber manifest or scan records.
func (d *DB) InsertPackageIfAbsent(p internal.PackageRecord) (bool, error) {
	result, err := d.conn.Exec(`
INSERT INTO packages (tracking_number, item_name, status, source, date_expected, quantity, priority, image_url)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(tracking_number) DO NOTHING
`, p.TrackingNumber, p.ItemName, string(p.Status), string(p.Source), p.DateExpected, p.Quantity, boolToInt(p.Priority), p.ImageURL)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (d *DB) DeletePackage(tracking string) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM history WHERE packageId IN (SELECT id FROM packages WHERE tracking_number = ?)`, tracking); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM packages WHERE tracking_number = ?`, tracking); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *DB) SetPackageStatus(tracking string, status internal.PackageStatus) error {
	return d.execForTracking(`UPDATE packages SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE tracking_number = ?`, string(status), tracking)
}

func (d *DB) SetManualDate(tracking, date string) error {
	return d.execForTracking(`UPDATE packages SET manual_date = ?, date_expected = ?, updatedAt = CURRENT_TIMESTAMP WHERE tracking_number = ?`, date, date, tracking)
}

func (d *DB) SetPriority(tracking string, priority bool) error {
	return d.execForTracking(`UPDATE packages SET priority = ?, updatedAt = CURRENT_TIMESTAMP WHERE tracking_number = ?`, boolToInt(priority), tracking)
}

func (d *DB) MarkScanned(id int, status internal.PackageStatus) error {
	_, err := d.conn.Exec(`UPDATE packages SET date_scanned = CURRENT_TIMESTAMP, status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, string(status), id)
	return err
}

func (d *DB) SetRefunded(tracking, refundDate string) error {
	return d.execForTracking(`UPDATE packages SET status = 'refunded', refund_date = ?, updatedAt = CURRENT_TIMESTAMP WHERE tracking_number = ?`, refundDate, tracking)
}

func (d *DB) execForTracking(query string, args ...any) error {
	result, err := d.conn.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("package not found: %s", args[len(args)-1])
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
