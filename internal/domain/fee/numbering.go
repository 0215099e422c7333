package fee

import (
	"fmt"
	"time"
)

// Number scopes used with SequenceCounter
const (
	ScopeReceipt = "RECEIPT"
	ScopeInvoice = "INVOICE"
)

// PeriodKey is the yyyymm bucket a sequence resets on.
func PeriodKey(t time.Time) string {
	return t.Format("200601")
}

// FormatNumber renders PREFIX-yyyymm-NNNN. Sequences past 9999 keep all
// their digits.
func FormatNumber(prefix string, period time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, PeriodKey(period), seq)
}
