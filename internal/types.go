package internal

// PendingDate is the sentinel stored when a manifest row has no usable
// delivery date. It keeps order-date-only rows from showing up as overdue.
const PendingDate = "Pending"

type PackageStatus string

const (
	StatusPending       PackageStatus = "pending"
	StatusOnTime        PackageStatus = "on_time"
	StatusExpected      PackageStatus = "expected"
	StatusPastDue       PackageStatus = "past_due"
	StatusReceived      PackageStatus = "received"
	StatusReturnPending PackageStatus = "return_pending"
	StatusReturned      PackageStatus = "returned"
	StatusRefunded      PackageStatus = "refunded"
)

type PackageSource string

const (
	SourceManifest  PackageSource = "manifest"
	SourceScan      PackageSource = "scan"
	SourceAutoEmail PackageSource = "auto-email"
)

type ManifestFormat string

const (
	FormatCSV  ManifestFormat = "csv"
	FormatXLSX ManifestFormat = "xlsx"
)

// CanonicalRow is a manifest row after normalization and merge. The tracking
// number is opaque text and is never parsed numerically.
type CanonicalRow struct {
	TrackingNumber string
	ItemName       string
	Date           string // YYYY-MM-DD or PendingDate
	Quantity       int
	ImageURL       string
}

// PackageRecord is a persisted package in the active store.
type PackageRecord struct {
	ID             int
	TrackingNumber string
	ItemName       string
	Status         PackageStatus
	Source         PackageSource
	DateExpected   string
	ManualDate     *string
	DateScanned    *string
	Quantity       int
	Priority       bool
	ImageURL       string
	RefundDate     *string
}

// IngestSummary reports what one manifest ingest did, for operator display.
type IngestSummary struct {
	RowsRead    int `json:"rowsRead"`
	RowsSkipped int `json:"rowsSkipped"`
	RowsMerged  int `json:"rowsMerged"`
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Pruned      int `json:"pruned"`
}

type HistoryRow struct {
	ID             int
	PackageID      int
	Action         string
	Timestamp      string
	Details        string
	TrackingNumber string
	ItemName       string
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

// ScannedPackage is a tracking number pulled out of a shipping email,
// with whatever context the message offered.
type ScannedPackage struct {
	TrackingNumber string
	ItemName       string
	Date           string
	ImageURL       string
}

// DashboardStats mirrors the receiving dashboard tiles.
type DashboardStats struct {
	ExpectedTotal   int `json:"expectedTotal"`
	ExpectedScanned int `json:"expectedScanned"`
	PastDue         int `json:"pastDue"`
	OpenReturns     int `json:"openReturns"`
	RefundedLast30d int `json:"refundedLast30d"`
}

type DailyScanCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}
