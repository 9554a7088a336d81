package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"greenloan-engine/internal/domain/loan"
	"greenloan-engine/internal/domain/payment"
	"greenloan-engine/internal/pkg/apperrors"
)

type PaymentRepository struct {
	db     DBPool
	logger *slog.Logger
}

func NewPaymentRepository(db DBPool, logger *slog.Logger) *PaymentRepository {
	return &PaymentRepository{db: db, logger: logger.With("component", "PaymentRepository")}
}

var _ payment.Repository = (*PaymentRepository)(nil)

func (r *PaymentRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return tx, nil
}

func (r *PaymentRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Commit(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *PaymentRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *PaymentRepository) ReferenceExists(ctx context.Context, tx pgx.Tx, reference string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM payments WHERE reference = $1)`

	err := tx.QueryRow(ctx, query, reference).Scan(&exists)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to check payment reference", "reference", reference, "error", err)
		return false, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return exists, nil
}

func (r *PaymentRepository) GetRepaymentsForUpdate(ctx context.Context, tx pgx.Tx, applicantID int64, repaymentIDs []int64) ([]*loan.Repayment, error) {
	query := `
        SELECT r.id, r.loan_id, r.month, r.due_date, r.amount_due, r.amount_paid, r.paid_date, r.status, r.overdue_penalized, r.created_at, r.updated_at
        FROM repayments r
        JOIN approved_loans l ON l.id = r.loan_id
        WHERE r.id = ANY($1) AND l.applicant_id = $2
        ORDER BY r.due_date ASC
        FOR UPDATE OF r`

	rows, err := tx.Query(ctx, query, repaymentIDs, applicantID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to lock repayment rows", "applicant_id", applicantID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	repayments := make([]*loan.Repayment, 0, len(repaymentIDs))
	for rows.Next() {
		var entry loan.Repayment
		err := rows.Scan(
			&entry.ID, &entry.LoanID, &entry.Month, &entry.DueDate,
			&entry.AmountDue, &entry.AmountPaid, &entry.PaidDate,
			&entry.Status, &entry.OverduePenalized, &entry.CreatedAt, &entry.UpdatedAt,
		)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan locked repayment row", "applicant_id", applicantID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		repayments = append(repayments, &entry)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating locked repayment rows", "applicant_id", applicantID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return repayments, nil
}

func (r *PaymentRepository) UpdateRepaymentInTx(ctx context.Context, tx pgx.Tx, rp *loan.Repayment) error {
	sql := `
        UPDATE repayments
        SET amount_paid = $1, paid_date = $2, status = $3, updated_at = NOW()
        WHERE id = $4 AND loan_id = $5`

	cmdTag, err := tx.Exec(ctx, sql, rp.AmountPaid, rp.PaidDate, rp.Status, rp.ID, rp.LoanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update repayment", "repayment_id", rp.ID, "loan_id", rp.LoanID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.ErrorContext(ctx, "Repayment update affected zero rows", "repayment_id", rp.ID, "loan_id", rp.LoanID)
		return fmt.Errorf("%w: repayment update affected zero rows", apperrors.ErrDatabase)
	}
	return nil
}

func (r *PaymentRepository) InsertPaymentInTx(ctx context.Context, tx pgx.Tx, p *payment.Payment) (*payment.Payment, error) {
	sql := `
        INSERT INTO payments (repayment_id, amount, method, reference, paid_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id`

	created := *p
	err := tx.QueryRow(ctx, sql, p.RepaymentID, p.Amount, p.Method, p.Reference, p.PaidAt).Scan(&created.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert payment ledger entry", "repayment_id", p.RepaymentID, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	return &created, nil
}

func (r *PaymentRepository) ListPaymentsByRepayment(ctx context.Context, repaymentID int64) ([]*payment.Payment, error) {
	query := `
        SELECT id, repayment_id, amount, method, reference, paid_at
        FROM payments
        WHERE repayment_id = $1
        ORDER BY paid_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, repaymentID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query payments", "repayment_id", repaymentID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	payments := make([]*payment.Payment, 0)
	for rows.Next() {
		var p payment.Payment
		if err := rows.Scan(&p.ID, &p.RepaymentID, &p.Amount, &p.Method, &p.Reference, &p.PaidAt); err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan payment row", "repayment_id", repaymentID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		payments = append(payments, &p)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating payment rows", "repayment_id", repaymentID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return payments, nil
}

func (r *PaymentRepository) GetLoanOutstandingInTx(ctx context.Context, tx pgx.Tx, loanID int64) (decimal.Decimal, error) {
	var outstanding decimal.Decimal

	query := `
        SELECT COALESCE(SUM(amount_due - amount_paid), 0.00)
        FROM repayments
        WHERE loan_id = $1 AND status NOT IN ('paid', 'late')`

	err := tx.QueryRow(ctx, query, loanID).Scan(&outstanding)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to calculate outstanding in transaction", "loan_id", loanID, "error", err)
		return decimal.Zero, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	if outstanding.IsNegative() {
		return decimal.Zero, nil
	}
	return outstanding, nil
}

func (r *PaymentRepository) CloseLoanInTx(ctx context.Context, tx pgx.Tx, loanID int64) error {
	sql := `UPDATE approved_loans SET status = 'closed', updated_at = NOW() WHERE id = $1 AND status = 'active'`

	cmdTag, err := tx.Exec(ctx, sql, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to close loan", "loan_id", loanID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.WarnContext(ctx, "Loan close affected zero rows", "loan_id", loanID)
		return fmt.Errorf("%w: loan %d not active", apperrors.ErrConflict, loanID)
	}
	r.logger.InfoContext(ctx, "Loan closed in DB", "loan_id", loanID)
	return nil
}

func (r *PaymentRepository) CreateGatewayTransaction(ctx context.Context, gt *payment.GatewayTransaction) (*payment.GatewayTransaction, error) {
	sql := `
        INSERT INTO gateway_transactions (user_id, provider, amount, product_code, transaction_uuid, status, repayment_ids, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
        RETURNING id, created_at`

	created := *gt
	err := r.db.QueryRow(ctx, sql,
		gt.UserID, gt.Provider, gt.Amount, gt.ProductCode, gt.TransactionUUID, gt.Status, gt.RepaymentIDs,
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert gateway transaction", "provider", gt.Provider, "transaction_uuid", gt.TransactionUUID, "error", err)
		return nil, translateDBError(err, r.logger)
	}

	r.logger.InfoContext(ctx, "Gateway transaction created in DB", "gateway_transaction_id", created.ID, "transaction_uuid", created.TransactionUUID)
	return &created, nil
}

func (r *PaymentRepository) GetGatewayTransactionByUUID(ctx context.Context, transactionUUID string) (*payment.GatewayTransaction, error) {
	query := `
        SELECT id, user_id, provider, amount, product_code, transaction_uuid, status, ref_id, repayment_ids, created_at
        FROM gateway_transactions
        WHERE transaction_uuid = $1`

	var gt payment.GatewayTransaction
	err := r.db.QueryRow(ctx, query, transactionUUID).Scan(
		&gt.ID, &gt.UserID, &gt.Provider, &gt.Amount, &gt.ProductCode,
		&gt.TransactionUUID, &gt.Status, &gt.RefID, &gt.RepaymentIDs, &gt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Gateway transaction not found", "transaction_uuid", transactionUUID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get gateway transaction", "transaction_uuid", transactionUUID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return &gt, nil
}

func (r *PaymentRepository) UpdateGatewayTransactionStatus(ctx context.Context, transactionUUID string, status payment.GatewayStatus, refID *string) error {
	sql := `UPDATE gateway_transactions SET status = $1, ref_id = COALESCE($2, ref_id) WHERE transaction_uuid = $3`

	cmdTag, err := r.db.Exec(ctx, sql, status, refID, transactionUUID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update gateway transaction status", "transaction_uuid", transactionUUID, "status", status, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.WarnContext(ctx, "Gateway transaction status update affected zero rows", "transaction_uuid", transactionUUID)
		return apperrors.ErrNotFound
	}

	r.logger.InfoContext(ctx, "Gateway transaction status updated in DB", "transaction_uuid", transactionUUID, "status", status)
	return nil
}
