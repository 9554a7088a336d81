package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"greenloan-engine/internal/domain/loan"
	"greenloan-engine/internal/infrastructure/monitoring"
	"greenloan-engine/internal/pkg/apperrors"
)

type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	return &LoanRepository{db: db, logger: logger.With("component", "LoanRepository")}
}

var _ loan.Repository = (*LoanRepository)(nil)

func (r *LoanRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return tx, nil
}

func (r *LoanRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Commit(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

const approvedLoanColumns = `id, application_id, applicant_id, principal, interest_rate, tenure_months, approved_by, approved_at, status, created_at, updated_at`

func scanApprovedLoan(row pgx.Row) (*loan.ApprovedLoan, error) {
	var l loan.ApprovedLoan
	err := row.Scan(
		&l.ID, &l.ApplicationID, &l.ApplicantID, &l.Principal, &l.InterestRate,
		&l.TenureMonths, &l.ApprovedBy, &l.ApprovedAt, &l.Status,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateLoanWithScheduleInTx relies on the unique constraint over
// application_id: a second approval attempt for the same application fails
// with ErrAlreadyExists instead of producing a second schedule.
func (r *LoanRepository) CreateLoanWithScheduleInTx(ctx context.Context, tx pgx.Tx, l *loan.ApprovedLoan, schedule []loan.Repayment) (*loan.ApprovedLoan, error) {
	loanSQL := `
        INSERT INTO approved_loans (application_id, applicant_id, principal, interest_rate, tenure_months, approved_by, approved_at, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	created := *l
	err := tx.QueryRow(ctx, loanSQL,
		l.ApplicationID, l.ApplicantID, l.Principal, l.InterestRate,
		l.TenureMonths, l.ApprovedBy, l.ApprovedAt, l.Status,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert approved loan", "application_id", l.ApplicationID, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	r.logger.InfoContext(ctx, "Approved loan created in DB", "loan_id", created.ID, "application_id", created.ApplicationID)

	if len(schedule) > 0 {
		scheduleSQL := `
            INSERT INTO repayments (loan_id, month, due_date, amount_due, amount_paid, status, overdue_penalized, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, FALSE, NOW(), NOW())`

		batch := &pgx.Batch{}
		for _, entry := range schedule {
			batch.Queue(scheduleSQL, created.ID, entry.Month, entry.DueDate, entry.AmountDue, entry.AmountPaid, entry.Status)
		}

		results := tx.SendBatch(ctx, batch)

		for i := 0; i < len(schedule); i++ {
			if _, err = results.Exec(); err != nil {
				results.Close()
				r.logger.ErrorContext(ctx, "Failed executing repayment batch insert", "error", err, "entry_index", i, "loan_id", created.ID)
				return nil, fmt.Errorf("%w: failed inserting repayment %d: %w", apperrors.ErrDatabase, i+1, err)
			}
		}
		if err = results.Close(); err != nil {
			r.logger.ErrorContext(ctx, "Failed closing repayment batch results", "error", err, "loan_id", created.ID)
			return nil, fmt.Errorf("%w: closing batch results failed: %w", apperrors.ErrDatabase, err)
		}
	}
	r.logger.InfoContext(ctx, "Repayment schedule created in DB", "loan_id", created.ID, "num_entries", len(schedule))

	return &created, nil
}

func (r *LoanRepository) GetLoanByID(ctx context.Context, id int64) (*loan.ApprovedLoan, error) {
	query := `SELECT ` + approvedLoanColumns + ` FROM approved_loans WHERE id = $1`
	status := "success"
	startTime := time.Now()

	l, err := scanApprovedLoan(r.db.QueryRow(ctx, query, id))

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetLoanByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found", "loan_id", id)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by ID", "loan_id", id, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return l, nil
}

func (r *LoanRepository) GetLoanByApplicationID(ctx context.Context, applicationID int64) (*loan.ApprovedLoan, error) {
	query := `SELECT ` + approvedLoanColumns + ` FROM approved_loans WHERE application_id = $1`

	l, err := scanApprovedLoan(r.db.QueryRow(ctx, query, applicationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by application ID", "application_id", applicationID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return l, nil
}

func (r *LoanRepository) ListLoansByApplicant(ctx context.Context, applicantID int64) ([]*loan.ApprovedLoan, error) {
	query := `SELECT ` + approvedLoanColumns + ` FROM approved_loans WHERE applicant_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, applicantID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loans by applicant", "applicant_id", applicantID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	loans := make([]*loan.ApprovedLoan, 0)
	for rows.Next() {
		l, err := scanApprovedLoan(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan loan row", "applicant_id", applicantID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		loans = append(loans, l)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating loan rows", "applicant_id", applicantID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return loans, nil
}

func (r *LoanRepository) UpdateLoanStatus(ctx context.Context, id int64, status loan.LoanStatus) error {
	sql := `UPDATE approved_loans SET status = $1, updated_at = NOW() WHERE id = $2`

	cmdTag, err := r.db.Exec(ctx, sql, status, id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update loan status", "loan_id", id, "status", status, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.ErrorContext(ctx, "Loan status update affected zero rows", "loan_id", id, "status", status)
		return fmt.Errorf("%w: loan status update affected zero rows", apperrors.ErrDatabase)
	}
	r.logger.InfoContext(ctx, "Loan status updated in DB", "loan_id", id, "new_status", status)
	return nil
}

const repaymentColumns = `id, loan_id, month, due_date, amount_due, amount_paid, paid_date, status, overdue_penalized, created_at, updated_at`

func scanRepayment(row pgx.Row) (loan.Repayment, error) {
	var entry loan.Repayment
	err := row.Scan(
		&entry.ID, &entry.LoanID, &entry.Month, &entry.DueDate,
		&entry.AmountDue, &entry.AmountPaid, &entry.PaidDate,
		&entry.Status, &entry.OverduePenalized, &entry.CreatedAt, &entry.UpdatedAt,
	)
	return entry, err
}

func (r *LoanRepository) GetScheduleByLoanID(ctx context.Context, loanID int64) ([]loan.Repayment, error) {
	query := `SELECT ` + repaymentColumns + ` FROM repayments WHERE loan_id = $1 ORDER BY month ASC`

	rows, err := r.db.Query(ctx, query, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query repayment schedule", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	schedule := make([]loan.Repayment, 0)
	for rows.Next() {
		entry, err := scanRepayment(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan repayment row", "loan_id", loanID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		schedule = append(schedule, entry)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating repayment rows", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return schedule, nil
}

func (r *LoanRepository) GetTotalOutstandingAmount(ctx context.Context, loanID int64) (decimal.Decimal, error) {
	var totalOutstanding decimal.Decimal

	query := `
        SELECT COALESCE(SUM(amount_due - amount_paid), 0.00)
        FROM repayments
        WHERE loan_id = $1 AND status NOT IN ('paid', 'late')`

	err := r.db.QueryRow(ctx, query, loanID).Scan(&totalOutstanding)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.ErrorContext(ctx, "Failed to calculate total outstanding amount", "loan_id", loanID, "error", err)
			return decimal.Zero, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
	}

	if totalOutstanding.IsNegative() {
		r.logger.WarnContext(ctx, "Calculated outstanding amount is negative, returning 0", "loan_id", loanID, "calculated_value", totalOutstanding)
		return decimal.Zero, nil
	}

	return totalOutstanding, nil
}

func (r *LoanRepository) GetOverdueUnpenalizedRepayments(ctx context.Context) ([]loan.Repayment, error) {
	logCtx := r.logger.With(slog.String("operation", "GetOverdueUnpenalizedRepayments"))

	query := `SELECT ` + repaymentColumns + `
        FROM repayments
        WHERE status NOT IN ('paid', 'late')
        AND due_date < NOW()
        AND overdue_penalized = FALSE
        ORDER BY due_date ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to query overdue repayments", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to query overdue repayments: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	overdue := make([]loan.Repayment, 0)
	for rows.Next() {
		entry, err := scanRepayment(rows)
		if err != nil {
			logCtx.ErrorContext(ctx, "Failed to scan overdue repayment row", slog.Any("error", err))
			return nil, fmt.Errorf("%w: failed scanning overdue repayment: %w", apperrors.ErrDatabase, err)
		}
		overdue = append(overdue, entry)
	}

	if err = rows.Err(); err != nil {
		logCtx.ErrorContext(ctx, "Error iterating overdue repayment rows", slog.Any("error", err))
		return nil, fmt.Errorf("%w: error iterating overdue repayments: %w", apperrors.ErrDatabase, err)
	}

	logCtx.DebugContext(ctx, "Finished getting overdue repayments", slog.Int("count", len(overdue)))
	return overdue, nil
}

func (r *LoanRepository) MarkRepaymentPenalized(ctx context.Context, tx pgx.Tx, repaymentID int64) error {
	sql := `UPDATE repayments SET overdue_penalized = TRUE, updated_at = NOW() WHERE id = $1 AND overdue_penalized = FALSE`

	cmdTag, err := tx.Exec(ctx, sql, repaymentID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to mark repayment penalized", "repayment_id", repaymentID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.WarnContext(ctx, "Repayment already penalized or missing", "repayment_id", repaymentID)
		return fmt.Errorf("%w: repayment %d already penalized", apperrors.ErrConflict, repaymentID)
	}
	return nil
}

func (r *LoanRepository) CountOverdueUnpaid(ctx context.Context, loanID int64) (int, error) {
	var count int
	query := `
        SELECT COUNT(*)
        FROM repayments
        WHERE loan_id = $1 AND status NOT IN ('paid', 'late') AND due_date < NOW()`

	err := r.db.QueryRow(ctx, query, loanID).Scan(&count)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to count overdue repayments", "loan_id", loanID, "error", err)
		return 0, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return count, nil
}
