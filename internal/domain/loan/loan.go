package loan

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"greenloan-engine/internal/pkg/apperrors"
)

type LoanStatus string

const (
	StatusActive    LoanStatus = "active"
	StatusClosed    LoanStatus = "closed"
	StatusDefaulted LoanStatus = "defaulted"
)

// ApprovedLoan is created exactly once when an application reaches the
// approved status. Principal, rate and tenure are copied from the
// application at approval time and never change afterwards.
type ApprovedLoan struct {
	ID            int64
	ApplicationID int64
	ApplicantID   int64
	Principal     decimal.Decimal
	InterestRate  decimal.Decimal
	TenureMonths  int
	ApprovedBy    int64
	ApprovedAt    time.Time
	Status        LoanStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewApprovedLoan(applicationID, applicantID int64, principal, interestRate decimal.Decimal, tenureMonths int, approvedBy int64, approvedAt time.Time) (*ApprovedLoan, error) {
	if !principal.IsPositive() {
		return nil, fmt.Errorf("%w: principal must be positive", apperrors.ErrInvalidArgument)
	}
	if tenureMonths <= 0 {
		return nil, fmt.Errorf("%w: tenure months must be positive", apperrors.ErrInvalidArgument)
	}
	if interestRate.IsNegative() {
		return nil, fmt.Errorf("%w: interest rate cannot be negative", apperrors.ErrInvalidArgument)
	}
	if approvedAt.IsZero() {
		approvedAt = time.Now().Truncate(24 * time.Hour)
	}

	return &ApprovedLoan{
		ApplicationID: applicationID,
		ApplicantID:   applicantID,
		Principal:     principal,
		InterestRate:  interestRate,
		TenureMonths:  tenureMonths,
		ApprovedBy:    approvedBy,
		ApprovedAt:    approvedAt,
		Status:        StatusActive,
	}, nil
}

// GenerateSchedule produces the full repayment schedule: one installment per
// tenure month, due 30*i days after approval, equal amounts with the
// rounding remainder folded into the last installment so the rows sum to
// the principal exactly. Pure; persistence must run it exactly once per
// loan.
func (l *ApprovedLoan) GenerateSchedule() ([]Repayment, error) {
	if l.TenureMonths <= 0 || !l.Principal.IsPositive() {
		return nil, fmt.Errorf("%w: invalid loan terms for schedule generation", apperrors.ErrInvalidArgument)
	}

	installment := l.Principal.Div(decimal.NewFromInt(int64(l.TenureMonths))).Round(2)

	schedule := make([]Repayment, 0, l.TenureMonths)
	accumulated := decimal.Zero

	for month := 1; month <= l.TenureMonths; month++ {
		amount := installment
		if month == l.TenureMonths {
			amount = l.Principal.Sub(accumulated)
			if amount.IsNegative() {
				amount = decimal.Zero
			}
		}

		entry := Repayment{
			Month:      month,
			DueDate:    l.ApprovedAt.AddDate(0, 0, 30*month),
			AmountDue:  amount,
			AmountPaid: decimal.Zero,
			Status:     RepaymentPending,
		}
		schedule = append(schedule, entry)
		accumulated = accumulated.Add(amount)
	}

	if !accumulated.Equal(l.Principal) {
		return nil, fmt.Errorf("%w: schedule generation failed sanity check - total due %s != principal %s",
			apperrors.ErrInternalServer, accumulated.StringFixed(2), l.Principal.StringFixed(2))
	}

	return schedule, nil
}
