package enums

import "fmt"

// FinancialRecordStatus tracks a seller ledger entry from earned to disbursed.
type FinancialRecordStatus string

const (
	FinancialRecordStatusPending   FinancialRecordStatus = "pending"
	FinancialRecordStatusCleared   FinancialRecordStatus = "cleared"
	FinancialRecordStatusPaid      FinancialRecordStatus = "paid"
	FinancialRecordStatusCancelled FinancialRecordStatus = "cancelled"
)

var validFinancialRecordStatuses = []FinancialRecordStatus{
	FinancialRecordStatusPending,
	FinancialRecordStatusCleared,
	FinancialRecordStatusPaid,
	FinancialRecordStatusCancelled,
}

// String implements fmt.Stringer.
func (f FinancialRecordStatus) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FinancialRecordStatus.
func (f FinancialRecordStatus) IsValid() bool {
	for _, candidate := range validFinancialRecordStatuses {
		if candidate == f {
			return true
		}
	}
	return false
}

// CanTransitionTo enforces the ledger state machine:
// pending -> cleared -> paid, with pending/cleared -> cancelled.
func (f FinancialRecordStatus) CanTransitionTo(target FinancialRecordStatus) bool {
	switch f {
	case FinancialRecordStatusPending:
		return target == FinancialRecordStatusCleared || target == FinancialRecordStatusCancelled
	case FinancialRecordStatusCleared:
		return target == FinancialRecordStatusPaid || target == FinancialRecordStatusCancelled
	default:
		return false
	}
}

// ParseFinancialRecordStatus converts raw input into a FinancialRecordStatus.
func ParseFinancialRecordStatus(value string) (FinancialRecordStatus, error) {
	for _, candidate := range validFinancialRecordStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid financial record status %q", value)
}
