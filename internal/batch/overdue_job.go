package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"greenloan-engine/internal/domain/credit"
	"greenloan-engine/internal/domain/loan"
	"greenloan-engine/internal/pkg/apperrors"
)

// defaultThreshold is the number of overdue unpaid installments after which
// a loan is marked defaulted.
const defaultThreshold = 2

// OverdueCheckJob applies the overdue credit penalty to every unpaid
// installment past its due date, at most once per installment, and marks
// loans with too many overdue installments as defaulted.
type OverdueCheckJob struct {
	loanRepo      loan.Repository
	creditService credit.CreditService
	logger        *slog.Logger
}

func NewOverdueCheckJob(
	loanRepo loan.Repository,
	creditSvc credit.CreditService,
	logger *slog.Logger,
) *OverdueCheckJob {
	if loanRepo == nil || creditSvc == nil || logger == nil {
		panic("OverdueCheckJob dependencies cannot be nil")
	}
	return &OverdueCheckJob{
		loanRepo:      loanRepo,
		creditService: creditSvc,
		logger:        logger.With("job", "OverdueCheck"),
	}
}

func (j *OverdueCheckJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.InfoContext(ctx, "Starting overdue repayment check job.")

	overdue, err := j.loanRepo.GetOverdueUnpenalizedRepayments(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to get overdue repayments, aborting job.", slog.Any("error", err))
		return fmt.Errorf("cannot run job, failed to get overdue repayments: %w", err)
	}
	j.logger.InfoContext(ctx, "Fetched overdue repayments.", slog.Int("count", len(overdue)))

	if len(overdue) == 0 {
		j.logger.InfoContext(ctx, "No overdue repayments to process.", slog.Duration("duration", time.Since(startTime)))
		return nil
	}

	var penalizedCount, defaultedCount, errorCount int
	applicantByLoan := make(map[int64]int64)

	for _, entry := range overdue {
		logCtx := j.logger.With(slog.Int64("repaymentID", entry.ID), slog.Int64("loanID", entry.LoanID))

		applicantID, ok := applicantByLoan[entry.LoanID]
		if !ok {
			l, lookupErr := j.loanRepo.GetLoanByID(ctx, entry.LoanID)
			if lookupErr != nil {
				logCtx.ErrorContext(ctx, "Failed to look up loan for overdue repayment", slog.Any("error", lookupErr))
				errorCount++
				continue
			}
			applicantID = l.ApplicantID
			applicantByLoan[entry.LoanID] = applicantID
		}

		if err := j.penalize(ctx, entry.ID, applicantID); err != nil {
			// A conflict means another run already penalized this row.
			if errors.Is(err, apperrors.ErrConflict) {
				logCtx.WarnContext(ctx, "Repayment already penalized, skipping.")
				continue
			}
			logCtx.ErrorContext(ctx, "Failed to penalize overdue repayment", slog.Any("error", err))
			errorCount++
			continue
		}
		penalizedCount++
	}

	for loanID := range applicantByLoan {
		logCtx := j.logger.With(slog.Int64("loanID", loanID))

		count, countErr := j.loanRepo.CountOverdueUnpaid(ctx, loanID)
		if countErr != nil {
			logCtx.ErrorContext(ctx, "Failed to count overdue installments", slog.Any("error", countErr))
			errorCount++
			continue
		}
		if count < defaultThreshold {
			continue
		}

		l, lookupErr := j.loanRepo.GetLoanByID(ctx, loanID)
		if lookupErr != nil {
			logCtx.ErrorContext(ctx, "Failed to look up loan for default check", slog.Any("error", lookupErr))
			errorCount++
			continue
		}
		if l.Status != loan.StatusActive {
			continue
		}

		if updErr := j.loanRepo.UpdateLoanStatus(ctx, loanID, loan.StatusDefaulted); updErr != nil {
			logCtx.ErrorContext(ctx, "Failed to mark loan defaulted", slog.Any("error", updErr))
			errorCount++
			continue
		}
		logCtx.WarnContext(ctx, "Loan marked defaulted.", slog.Int("overdue_installments", count))
		defaultedCount++
	}

	duration := time.Since(startTime)
	summaryLog := j.logger.With(
		slog.Duration("duration", duration),
		slog.Int("overdue_found", len(overdue)),
		slog.Int("penalized", penalizedCount),
		slog.Int("loans_defaulted", defaultedCount),
		slog.Int("errors_encountered", errorCount),
	)
	if errorCount > 0 {
		summaryLog.WarnContext(ctx, "Overdue repayment check job finished with errors.")
		return fmt.Errorf("job completed with %d errors", errorCount)
	}
	summaryLog.InfoContext(ctx, "Overdue repayment check job finished successfully.")
	return nil
}

// penalize flags the repayment and applies the overdue credit delta in one
// transaction so the penalty can never be applied twice.
func (j *OverdueCheckJob) penalize(ctx context.Context, repaymentID, applicantID int64) (err error) {
	tx, err := j.loanRepo.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = j.loanRepo.RollbackTx(ctx, tx)
		}
	}()

	if err = j.loanRepo.MarkRepaymentPenalized(ctx, tx, repaymentID); err != nil {
		return err
	}
	if _, err = j.creditService.AdjustForRepayment(ctx, tx, applicantID, loan.RepaymentPending); err != nil {
		return err
	}
	return j.loanRepo.CommitTx(ctx, tx)
}
