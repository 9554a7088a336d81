package payment

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"greenloan-engine/internal/domain/loan"
	"greenloan-engine/internal/pkg/apperrors"
)

// Allocation is the outcome of funding one repayment: the slice of the
// incoming amount applied to it and the status the repayment settled on.
type Allocation struct {
	Repayment *loan.Repayment
	Applied   decimal.Decimal
}

// Allocate distributes amount across the given repayments in ascending
// due-date order, funding each installment's remaining balance until the
// amount is exhausted. The repayments are mutated in place (amount paid,
// paid date, recomputed status). Leftover is whatever could not be applied
// because every balance was cleared.
//
// The ascending due-date order is load-bearing: it decides which
// obligations clear first when a bulk payment under-covers the selection.
func Allocate(repayments []*loan.Repayment, amount decimal.Decimal, paidAt time.Time) ([]Allocation, decimal.Decimal, error) {
	if !amount.IsPositive() {
		return nil, decimal.Zero, fmt.Errorf("%w: payment amount must be positive, got %s",
			apperrors.ErrInvalidPaymentAmount, amount.StringFixed(2))
	}

	ordered := make([]*loan.Repayment, len(repayments))
	copy(ordered, repayments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].DueDate.Before(ordered[j].DueDate)
	})

	payable := false
	for _, r := range ordered {
		if r.Remaining().IsPositive() {
			payable = true
			break
		}
	}
	if !payable {
		return nil, decimal.Zero, fmt.Errorf("%w: every selected repayment is already settled", apperrors.ErrNoPayableRepayment)
	}

	remaining := amount
	allocations := make([]Allocation, 0, len(ordered))

	for _, r := range ordered {
		if !remaining.IsPositive() {
			break
		}
		balance := r.Remaining()
		if !balance.IsPositive() {
			continue
		}

		applied := decimal.Min(remaining, balance)
		r.ApplyPayment(applied, paidAt)
		remaining = remaining.Sub(applied)

		allocations = append(allocations, Allocation{Repayment: r, Applied: applied})
	}

	return allocations, remaining, nil
}
