package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"greenloan-engine/internal/infrastructure/monitoring"
	"greenloan-engine/internal/pkg/apperrors"
)

// CreateFromApplicationInput carries the terms copied from an approved
// application at approval time.
type CreateFromApplicationInput struct {
	ApplicationID int64
	ApplicantID   int64
	Principal     decimal.Decimal
	InterestRate  decimal.Decimal
	TenureMonths  int
	ApprovedBy    int64
	ApprovedAt    time.Time
}

type LoanService interface {
	// CreateFromApplication creates the approved loan and generates its
	// full repayment schedule inside the caller's transaction, so the
	// workflow transition and the loan creation commit atomically.
	CreateFromApplication(ctx context.Context, tx pgx.Tx, in CreateFromApplicationInput) (*ApprovedLoan, error)

	GetLoan(ctx context.Context, loanID int64) (*ApprovedLoan, error)

	GetLoanSchedule(ctx context.Context, loanID int64) ([]Repayment, error)

	GetOutstanding(ctx context.Context, loanID int64) (decimal.Decimal, error)

	ListLoansByApplicant(ctx context.Context, applicantID int64) ([]*ApprovedLoan, error)
}

type loanServiceImpl struct {
	repo   Repository
	logger *slog.Logger
}

func NewLoanService(r Repository, logger *slog.Logger) LoanService {
	return &loanServiceImpl{repo: r, logger: logger.With("component", "LoanService")}
}

func (s *loanServiceImpl) CreateFromApplication(ctx context.Context, tx pgx.Tx, in CreateFromApplicationInput) (*ApprovedLoan, error) {
	s.logger.Info("Creating approved loan", "applicationID", in.ApplicationID, "tenureMonths", in.TenureMonths)

	existing, err := s.repo.GetLoanByApplicationID(ctx, in.ApplicationID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing loan for application %d: %w", in.ApplicationID, err)
	}
	if existing != nil {
		s.logger.Error("Application already has an approved loan", "applicationID", in.ApplicationID, "loanID", existing.ID)
		return nil, fmt.Errorf("%w: application %d already has loan %d", apperrors.ErrScheduleExists, in.ApplicationID, existing.ID)
	}

	newLoan, err := NewApprovedLoan(in.ApplicationID, in.ApplicantID, in.Principal, in.InterestRate, in.TenureMonths, in.ApprovedBy, in.ApprovedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create loan object: %w", err)
	}

	schedule, err := newLoan.GenerateSchedule()
	if err != nil {
		s.logger.Error("Failed to generate repayment schedule", "applicationID", in.ApplicationID, "error", err)
		return nil, fmt.Errorf("failed to generate schedule: %w", err)
	}

	created, err := s.repo.CreateLoanWithScheduleInTx(ctx, tx, newLoan, schedule)
	if err != nil {
		s.logger.Error("Failed to save loan and schedule", "applicationID", in.ApplicationID, "error", err)
		return nil, fmt.Errorf("failed to save loan and schedule: %w", err)
	}

	monitoring.Business.LoansApprovedTotal.Inc()
	s.logger.Info("Approved loan created", "loanID", created.ID, "installments", len(schedule))
	return created, nil
}

func (s *loanServiceImpl) GetLoan(ctx context.Context, loanID int64) (*ApprovedLoan, error) {
	l, err := s.repo.GetLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: loan %d not found", apperrors.ErrNotFound, loanID)
		}
		return nil, fmt.Errorf("failed to get loan %d: %w", loanID, err)
	}
	return l, nil
}

func (s *loanServiceImpl) GetLoanSchedule(ctx context.Context, loanID int64) ([]Repayment, error) {
	if _, err := s.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	schedule, err := s.repo.GetScheduleByLoanID(ctx, loanID)
	if err != nil {
		s.logger.Error("Failed to get loan schedule", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("failed to get schedule for loan %d: %w", loanID, err)
	}
	return schedule, nil
}

func (s *loanServiceImpl) GetOutstanding(ctx context.Context, loanID int64) (decimal.Decimal, error) {
	outstanding, err := s.repo.GetTotalOutstandingAmount(ctx, loanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%w: loan %d not found", apperrors.ErrNotFound, loanID)
		}
		s.logger.Error("Failed to get outstanding amount", "loanID", loanID, "error", err)
		return decimal.Zero, fmt.Errorf("failed to get outstanding amount for loan %d: %w", loanID, err)
	}
	return outstanding, nil
}

func (s *loanServiceImpl) ListLoansByApplicant(ctx context.Context, applicantID int64) ([]*ApprovedLoan, error) {
	loans, err := s.repo.ListLoansByApplicant(ctx, applicantID)
	if err != nil {
		s.logger.Error("Failed to list loans", "applicantID", applicantID, "error", err)
		return nil, fmt.Errorf("failed to list loans for applicant %d: %w", applicantID, err)
	}
	return loans, nil
}
