package application

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"greenloan-engine/internal/domain/catalog"
	"greenloan-engine/internal/pkg/apperrors"
)

type Status string

const (
	StatusSubmitted         Status = "submitted"
	StatusUnderReview       Status = "under_review"
	StatusInfoRequested     Status = "info_requested"
	StatusInfoProvided      Status = "info_provided"
	StatusDocumentsVerified Status = "documents_verified"
	StatusSalaryVerified    Status = "salary_verified"
	StatusProposalApproved  Status = "proposal_approved"
	StatusFinalReview       Status = "final_review"
	StatusApproved          Status = "approved"
	StatusRejected          Status = "rejected"
)

// IsTerminal reports whether no further transition can leave the status.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// StatusChange is one entry of the append-only status history. The history
// is the authoritative audit trail of an application and is never rewritten.
type StatusChange struct {
	Status    Status
	ActorID   int64
	ActorName string
	Note      string
	Timestamp time.Time
}

type Application struct {
	ID                int64
	ApplicantID       int64
	LoanTypeID        int64
	Amount            decimal.Decimal
	DurationMonths    int
	Purpose           string
	MonthlyIncome     decimal.Decimal
	Address           string
	CitizenshipNumber string
	Status            Status
	OfficerID         *int64
	StatusHistory     []StatusChange
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewApplication validates a loan request against the product limits and the
// global income rule. allowedIncomePercent is the configured maximum loan
// amount as a percentage of declared monthly income.
func NewApplication(applicantID int64, loanType *catalog.LoanType, amount decimal.Decimal, durationMonths int,
	purpose string, monthlyIncome decimal.Decimal, address, citizenshipNumber string,
	allowedIncomePercent decimal.Decimal) (*Application, error) {

	if loanType == nil {
		return nil, fmt.Errorf("%w: loan type is required", apperrors.ErrInvalidArgument)
	}
	if !loanType.IsActive {
		return nil, apperrors.NewValidationError("loanType", fmt.Sprintf("loan type '%s' is not active", loanType.Name))
	}
	if !amount.IsPositive() {
		return nil, apperrors.NewValidationError("amount", "loan amount must be positive")
	}
	if amount.GreaterThan(loanType.AmountLimit) {
		return nil, apperrors.NewValidationError("amount",
			fmt.Sprintf("loan amount exceeds limit of %s", loanType.AmountLimit.StringFixed(2)))
	}
	if durationMonths <= 0 {
		return nil, apperrors.NewValidationError("durationMonths", "duration must be positive")
	}

	maxAllowed := monthlyIncome.Mul(allowedIncomePercent).Div(decimal.NewFromInt(100))
	if amount.GreaterThan(maxAllowed) {
		return nil, apperrors.NewValidationError("amount",
			fmt.Sprintf("requested loan amount cannot exceed %s%% of your monthly income", allowedIncomePercent.String()))
	}

	return &Application{
		ApplicantID:       applicantID,
		LoanTypeID:        loanType.ID,
		Amount:            amount,
		DurationMonths:    durationMonths,
		Purpose:           purpose,
		MonthlyIncome:     monthlyIncome,
		Address:           address,
		CitizenshipNumber: citizenshipNumber,
		Status:            StatusSubmitted,
	}, nil
}

// AppendHistory records a status change in memory. Persistence appends the
// entry to the history table; existing entries are never touched.
func (a *Application) AppendHistory(status Status, actorID int64, actorName, note string, at time.Time) StatusChange {
	change := StatusChange{
		Status:    status,
		ActorID:   actorID,
		ActorName: actorName,
		Note:      note,
		Timestamp: at,
	}
	a.StatusHistory = append(a.StatusHistory, change)
	return change
}
