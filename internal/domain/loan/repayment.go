package loan

import (
	"time"

	"github.com/shopspring/decimal"
)

type RepaymentStatus string

const (
	RepaymentPending RepaymentStatus = "pending"
	RepaymentPartial RepaymentStatus = "partial"
	RepaymentPaid    RepaymentStatus = "paid"
	RepaymentLate    RepaymentStatus = "late"
)

type Repayment struct {
	ID               int64
	LoanID           int64
	Month            int
	DueDate          time.Time
	AmountDue        decimal.Decimal
	AmountPaid       decimal.Decimal
	PaidDate         *time.Time
	Status           RepaymentStatus
	OverduePenalized bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Remaining is the outstanding balance of this installment.
func (r *Repayment) Remaining() decimal.Decimal {
	remaining := r.AmountDue.Sub(r.AmountPaid)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

func (r *Repayment) IsSettled() bool {
	return r.Status == RepaymentPaid || r.Status == RepaymentLate
}

// IsLate reports whether the installment was fully covered after its due
// date.
func (r *Repayment) IsLate() bool {
	return r.PaidDate != nil && dateAfter(*r.PaidDate, r.DueDate)
}

// ApplyPayment credits amount against this installment and recomputes the
// status per the canonical rule: paid when fully covered on time, late when
// fully covered after the due date, partial otherwise.
func (r *Repayment) ApplyPayment(amount decimal.Decimal, paidDate time.Time) {
	r.AmountPaid = r.AmountPaid.Add(amount)
	day := paidDate.Truncate(24 * time.Hour)
	r.PaidDate = &day
	r.RecomputeStatus()
}

// RecomputeStatus must run whenever AmountPaid or PaidDate changes.
func (r *Repayment) RecomputeStatus() {
	switch {
	case r.AmountPaid.GreaterThanOrEqual(r.AmountDue) && r.PaidDate != nil:
		if dateAfter(*r.PaidDate, r.DueDate) {
			r.Status = RepaymentLate
		} else {
			r.Status = RepaymentPaid
		}
	case r.AmountPaid.IsPositive():
		r.Status = RepaymentPartial
	default:
		r.Status = RepaymentPending
	}
}

// dateAfter compares only the date components of a and b.
func dateAfter(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay > by
	}
	if am != bm {
		return am > bm
	}
	return ad > bd
}
