package storage

import (
	"time"

	"packtrack/internal"
	"packtrack/internal/util"
)

// DashboardStats aggregates the receiving-dashboard tiles for one day.
// A package expected today counts as expected while unscanned, or when it
// was scanned today; packages scanned on earlier days are done.
func (d *DB) DashboardStats(today time.Time) (internal.DashboardStats, error) {
	stats := internal.DashboardStats{}
	todayStr := today.Format(util.ISODate)

	rows, err := d.conn.Query(`SELECT date_scanned FROM packages WHERE date_expected = ?`, todayStr)
	if err != nil {
		return stats, err
	}
	for rows.Next() {
		var scanned *string
		if err := rows.Scan(&scanned); err != nil {
			_ = rows.Close()
			return stats, err
		}
		switch {
		case scanned == nil:
			stats.ExpectedTotal++
		case len(*scanned) >= len(todayStr) && (*scanned)[:len(todayStr)] == todayStr:
			stats.ExpectedTotal++
			stats.ExpectedScanned++
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return stats, err
	}
	_ = rows.Close()

	if err := d.conn.QueryRow(`SELECT count(*) FROM packages WHERE status = 'past_due' AND date_scanned IS NULL`).Scan(&stats.PastDue); err != nil {
		return stats, err
	}
	if err := d.conn.QueryRow(`SELECT count(*) FROM packages WHERE status = 'return_pending'`).Scan(&stats.OpenReturns); err != nil {
		return stats, err
	}

	thirtyDaysAgo := today.AddDate(0, 0, -30).Format(util.ISODate)
	if err := d.conn.QueryRow(`SELECT count(*) FROM packages WHERE status = 'refunded' AND refund_date > ?`, thirtyDaysAgo).Scan(&stats.RefundedLast30d); err != nil {
		return stats, err
	}

	return stats, nil
}

// DailyScanCounts returns received-scan counts per day for the last n days,
// zero-filled so every day appears.
func (d *DB) DailyScanCounts(today time.Time, days int) ([]internal.DailyScanCount, error) {
	start := today.AddDate(0, 0, -(days - 1))

	counts := make(map[string]int, days)
	out := make([]internal.DailyScanCount, 0, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i).Format(util.ISODate)
		counts[day] = 0
		out = append(out, internal.DailyScanCount{Date: day})
	}

	rows, err := d.conn.Query(`
SELECT date(timestamp) AS day, count(*) AS c
FROM history
WHERE action = 'received' AND date(timestamp) >= ?
GROUP BY day
`, start.Format(util.ISODate))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var day string
		var c int
		if err := rows.Scan(&day, &c); err != nil {
			return nil, err
		}
		if _, ok := counts[day]; ok {
			counts[day] = c
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		out[i].Count = counts[out[i].Date]
	}
	return out, nil
}
