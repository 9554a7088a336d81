package loan

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type Repository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CommitTx(ctx context.Context, tx pgx.Tx) error
	RollbackTx(ctx context.Context, tx pgx.Tx) error

	// CreateLoanWithScheduleInTx inserts the loan and its full schedule in
	// the caller's transaction. The loans table carries a unique constraint
	// on application_id so schedule generation can never run twice for the
	// same application.
	CreateLoanWithScheduleInTx(ctx context.Context, tx pgx.Tx, l *ApprovedLoan, schedule []Repayment) (*ApprovedLoan, error)
	GetLoanByID(ctx context.Context, id int64) (*ApprovedLoan, error)
	GetLoanByApplicationID(ctx context.Context, applicationID int64) (*ApprovedLoan, error)
	ListLoansByApplicant(ctx context.Context, applicantID int64) ([]*ApprovedLoan, error)
	UpdateLoanStatus(ctx context.Context, id int64, status LoanStatus) error

	GetScheduleByLoanID(ctx context.Context, loanID int64) ([]Repayment, error)
	GetTotalOutstandingAmount(ctx context.Context, loanID int64) (decimal.Decimal, error)
	// GetOverdueUnpenalizedRepayments returns unpaid installments past their
	// due date that have not yet received the overdue credit penalty.
	GetOverdueUnpenalizedRepayments(ctx context.Context) ([]Repayment, error)
	MarkRepaymentPenalized(ctx context.Context, tx pgx.Tx, repaymentID int64) error
	CountOverdueUnpaid(ctx context.Context, loanID int64) (int, error)
}
