package fee

import (
	"context"

	"github.com/academy/backend/internal/domain/fee"
	"github.com/google/uuid"
)

// WarningArchiveFailed marks an invoice that was issued but not archived.
const WarningArchiveFailed = "ARCHIVE_FAILED"

// InvoiceArchive keeps an immutable copy of each issued invoice breakdown.
// Archive returns the key the snapshot was stored under.
type InvoiceArchive interface {
	Archive(ctx context.Context, tenantID uuid.UUID, invoice fee.InvoiceBreakdown) (string, error)
}
