package payment

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"greenloan-engine/internal/domain/loan"
)

type Repository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CommitTx(ctx context.Context, tx pgx.Tx) error
	RollbackTx(ctx context.Context, tx pgx.Tx) error

	// ReferenceExists reports whether the external reference already
	// appears in the ledger. Checked inside the confirmation transaction so
	// callback replays cannot double-credit.
	ReferenceExists(ctx context.Context, tx pgx.Tx, reference string) (bool, error)

	// GetRepaymentsForUpdate loads the applicant's selected repayments
	// under row-level locks, ordered by due date ascending. Rows not owned
	// by the applicant are silently excluded.
	GetRepaymentsForUpdate(ctx context.Context, tx pgx.Tx, applicantID int64, repaymentIDs []int64) ([]*loan.Repayment, error)

	UpdateRepaymentInTx(ctx context.Context, tx pgx.Tx, r *loan.Repayment) error
	InsertPaymentInTx(ctx context.Context, tx pgx.Tx, p *Payment) (*Payment, error)
	ListPaymentsByRepayment(ctx context.Context, repaymentID int64) ([]*Payment, error)

	// GetLoanOutstandingInTx returns the remaining balance across a loan's
	// schedule, observed under the current transaction.
	GetLoanOutstandingInTx(ctx context.Context, tx pgx.Tx, loanID int64) (decimal.Decimal, error)
	CloseLoanInTx(ctx context.Context, tx pgx.Tx, loanID int64) error

	CreateGatewayTransaction(ctx context.Context, gt *GatewayTransaction) (*GatewayTransaction, error)
	GetGatewayTransactionByUUID(ctx context.Context, transactionUUID string) (*GatewayTransaction, error)
	UpdateGatewayTransactionStatus(ctx context.Context, transactionUUID string, status GatewayStatus, refID *string) error
}
