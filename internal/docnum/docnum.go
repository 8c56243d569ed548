// Package docnum formats sale document numbers.
package docnum

import (
	"fmt"
	"time"
)

const ReceiptPrefix = "RCPT"

// Receipt renders a per-year sequential receipt number, e.g. RCPT-2026-000042.
func Receipt(year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%06d", ReceiptPrefix, year, seq)
}

// Invoice renders a timestamp-based invoice number with microsecond precision,
// e.g. INV-20260831-142233-012345.
func Invoice(issuedAt time.Time) string {
	ts := issuedAt.UTC()
	return fmt.Sprintf("INV-%s-%06d", ts.Format("20060102-150405"), ts.Nanosecond()/1000)
}
