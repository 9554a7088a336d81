package credit

import "greenloan-engine/internal/domain/loan"

// DeltaForRepayment maps a settled repayment status to its score delta:
// fully paid on time +10, fully paid late -15, still pending (overdue
// check) -30. Partial payments carry no adjustment until the installment
// settles.
func DeltaForRepayment(status loan.RepaymentStatus) int {
	switch status {
	case loan.RepaymentPaid:
		return DeltaPaidOnTime
	case loan.RepaymentLate:
		return DeltaPaidLate
	case loan.RepaymentPending:
		return DeltaOverdue
	default:
		return 0
	}
}
