package pipeline

import "fmt"

// IngestFormatError means the uploaded file could not be read at all.
// Nothing is written to the store when it is returned.
type IngestFormatError struct {
	Format string
	Err    error
}

func (e *IngestFormatError) Error() string {
	return fmt.Sprintf("unreadable %s manifest: %v", e.Format, e.Err)
}

func (e *IngestFormatError) Unwrap() error { return e.Err }

// ColumnDetectionError means no plausible tracking-number column exists.
// Like format errors it aborts the batch before any mutation.
type ColumnDetectionError struct {
	Headers []string
}

func (e *ColumnDetectionError) Error() string {
	return fmt.Sprintf("no tracking-number column found among headers %v", e.Headers)
}
