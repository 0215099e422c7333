package fee

import "github.com/academy/backend/internal/domain/shared"

var (
	ErrAccountNotFound         = shared.NewDomainError("FEE_ACCOUNT_NOT_FOUND", "Fee account not found")
	ErrEntryNotFound           = shared.NewDomainError("LEDGER_ENTRY_NOT_FOUND", "Ledger entry not found")
	ErrInvalidPlanType         = shared.NewDomainError("INVALID_PLAN_TYPE", "Unknown payment plan type")
	ErrPlanMismatch            = shared.NewDomainError("PLAN_MISMATCH", "Payment plan type does not match the fee account")
	ErrEMIIndexRequired        = shared.NewDomainError("EMI_INDEX_REQUIRED", "EMI payments must identify the installment being paid")
	ErrEMIIndexOutOfRange      = shared.NewDomainError("EMI_INDEX_OUT_OF_RANGE", "EMI index is outside the schedule")
	ErrEMIAlreadyPaid          = shared.NewDomainError("EMI_ALREADY_PAID", "EMI installment is already paid")
	ErrEMIOutOfOrder           = shared.NewDomainError("EMI_OUT_OF_ORDER", "EMI installments must be paid in order")
	ErrEMIScheduleMissing      = shared.NewDomainError("EMI_SCHEDULE_MISSING", "EMI plan has no schedule")
	ErrInvalidInstallmentCount = shared.NewDomainError("INVALID_INSTALLMENT_COUNT", "Installment count must be positive")
	ErrInvalidScheduleTotal    = shared.NewDomainError("INVALID_SCHEDULE_TOTAL", "Schedule amounts must be positive")
	ErrScheduleOutOfOrder      = shared.NewDomainError("INVALID_SCHEDULE", "Schedule indices must be contiguous and paid in order")
	ErrNegativeFee             = shared.NewDomainError("NEGATIVE_FEE", "Fee components cannot be negative")
	ErrInvalidDueDay           = shared.NewDomainError("INVALID_DUE_DAY", "Monthly due day must be between 1 and 31")
	ErrEntryDeleted            = shared.NewDomainError("LEDGER_ENTRY_DELETED", "Ledger entry has been deleted")
	ErrInvalidAmount           = shared.NewDomainError("INVALID_AMOUNT", "Amount must be greater than zero")
	ErrInvalidEntryStatus      = shared.NewDomainError("INVALID_ENTRY_STATUS", "Invalid ledger entry status transition")
)
