package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"greenloan-engine/internal/domain/credit"
	"greenloan-engine/internal/domain/loan"
	"greenloan-engine/internal/infrastructure/monitoring"
	"greenloan-engine/internal/pkg/apperrors"
)

// ConfirmPaymentInput is the single confirmation entrypoint payload shared
// by every payment channel: a validated external transaction of Amount,
// identified by Reference, to be allocated across the applicant's selected
// repayments.
type ConfirmPaymentInput struct {
	ApplicantID  int64
	RepaymentIDs []int64
	Amount       decimal.Decimal
	Method       Method
	Reference    string
	PaidAt       time.Time
}

type AllocationResult struct {
	RepaymentID int64
	Applied     decimal.Decimal
	Status      loan.RepaymentStatus
}

type ConfirmPaymentResult struct {
	Allocations []AllocationResult
	Leftover    decimal.Decimal
	ClosedLoans []int64
	CreditScore int
}

type PaymentService interface {
	// ConfirmPayment allocates a confirmed external payment across the
	// applicant's repayments, appends the ledger entries and adjusts the
	// credit score, all inside one transaction.
	ConfirmPayment(ctx context.Context, in ConfirmPaymentInput) (*ConfirmPaymentResult, error)

	ListPaymentsByRepayment(ctx context.Context, repaymentID int64) ([]*Payment, error)

	InitiateGatewayPayment(ctx context.Context, userID int64, provider GatewayProvider, amount decimal.Decimal, repaymentIDs []int64) (*GatewayTransaction, error)
	CompleteGatewayPayment(ctx context.Context, transactionUUID, refID string) (*ConfirmPaymentResult, error)
	FailGatewayPayment(ctx context.Context, transactionUUID string) error
}

type paymentServiceImpl struct {
	repo          Repository
	creditService credit.CreditService
	productCode   string
	logger        *slog.Logger
}

func NewPaymentService(r Repository, cs credit.CreditService, productCode string, logger *slog.Logger) PaymentService {
	return &paymentServiceImpl{
		repo:          r,
		creditService: cs,
		productCode:   productCode,
		logger:        logger.With("component", "PaymentService"),
	}
}

func (s *paymentServiceImpl) ConfirmPayment(ctx context.Context, in ConfirmPaymentInput) (res *ConfirmPaymentResult, err error) {
	s.logger.Info("Confirming payment", "applicantID", in.ApplicantID, "amount", in.Amount.StringFixed(2),
		"method", in.Method, "reference", in.Reference, "repayments", len(in.RepaymentIDs))

	defer func() {
		status := "success"
		switch {
		case errors.Is(err, apperrors.ErrInvalidPaymentAmount):
			status = "failure_amount"
		case errors.Is(err, apperrors.ErrDuplicateReference):
			status = "failure_duplicate"
		case errors.Is(err, apperrors.ErrNoPayableRepayment):
			status = "failure_not_payable"
		case err != nil:
			status = "failure_internal"
		}
		monitoring.RecordPayment(string(in.Method), status)
	}()

	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be positive, got %s",
			apperrors.ErrInvalidPaymentAmount, in.Amount.StringFixed(2))
	}
	if in.Reference == "" {
		return nil, fmt.Errorf("%w: external reference is required", apperrors.ErrInvalidArgument)
	}
	if len(in.RepaymentIDs) == 0 {
		return nil, fmt.Errorf("%w: no repayments selected", apperrors.ErrNoPayableRepayment)
	}

	paidAt := in.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = s.repo.RollbackTx(ctx, tx)
			panic(p)
		}
		if err != nil {
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	// Replaying the same external reference must not double-credit.
	exists, err := s.repo.ReferenceExists(ctx, tx, in.Reference)
	if err != nil {
		return nil, fmt.Errorf("failed to check payment reference: %w", err)
	}
	if exists {
		s.logger.Warn("Duplicate payment reference, ignoring", "reference", in.Reference)
		return nil, fmt.Errorf("%w: reference '%s'", apperrors.ErrDuplicateReference, in.Reference)
	}

	// Row locks serialize concurrent bulk payments over the same rows.
	repayments, err := s.repo.GetRepaymentsForUpdate(ctx, tx, in.ApplicantID, in.RepaymentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load repayments: %w", err)
	}
	if len(repayments) == 0 {
		return nil, fmt.Errorf("%w: no matching repayments for applicant %d", apperrors.ErrNoPayableRepayment, in.ApplicantID)
	}

	allocations, leftover, err := Allocate(repayments, in.Amount, paidAt)
	if err != nil {
		return nil, err
	}

	result := &ConfirmPaymentResult{Leftover: leftover}
	touchedLoans := make(map[int64]struct{})

	for _, alloc := range allocations {
		r := alloc.Repayment
		if err = s.repo.UpdateRepaymentInTx(ctx, tx, r); err != nil {
			return nil, fmt.Errorf("failed to update repayment %d: %w", r.ID, err)
		}
		if _, err = s.repo.InsertPaymentInTx(ctx, tx, &Payment{
			RepaymentID: r.ID,
			Amount:      alloc.Applied,
			Method:      in.Method,
			Reference:   in.Reference,
			PaidAt:      paidAt,
		}); err != nil {
			return nil, fmt.Errorf("failed to append payment ledger entry: %w", err)
		}

		var score int
		score, err = s.creditService.AdjustForRepayment(ctx, tx, in.ApplicantID, r.Status)
		if err != nil {
			return nil, fmt.Errorf("failed to adjust credit score: %w", err)
		}
		result.CreditScore = score

		touchedLoans[r.LoanID] = struct{}{}
		result.Allocations = append(result.Allocations, AllocationResult{
			RepaymentID: r.ID,
			Applied:     alloc.Applied,
			Status:      r.Status,
		})
	}

	for loanID := range touchedLoans {
		var outstanding decimal.Decimal
		outstanding, err = s.repo.GetLoanOutstandingInTx(ctx, tx, loanID)
		if err != nil {
			return nil, fmt.Errorf("failed to check outstanding for loan %d: %w", loanID, err)
		}
		if outstanding.IsZero() {
			if err = s.repo.CloseLoanInTx(ctx, tx, loanID); err != nil {
				return nil, fmt.Errorf("failed to close loan %d: %w", loanID, err)
			}
			var score int
			score, err = s.creditService.AdjustForLoanClosure(ctx, tx, in.ApplicantID)
			if err != nil {
				return nil, fmt.Errorf("failed to apply loan closure bonus: %w", err)
			}
			result.CreditScore = score
			result.ClosedLoans = append(result.ClosedLoans, loanID)
			s.logger.Info("Loan fully repaid, closing", "loanID", loanID)
		}
	}

	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return nil, fmt.Errorf("%w: could not commit payment: %v", apperrors.ErrInternalServer, err)
	}

	s.logger.Info("Payment confirmed", "applicantID", in.ApplicantID, "allocated", len(result.Allocations),
		"leftover", leftover.StringFixed(2))
	return result, nil
}

func (s *paymentServiceImpl) ListPaymentsByRepayment(ctx context.Context, repaymentID int64) ([]*Payment, error) {
	payments, err := s.repo.ListPaymentsByRepayment(ctx, repaymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments for repayment %d: %w", repaymentID, err)
	}
	return payments, nil
}

func (s *paymentServiceImpl) InitiateGatewayPayment(ctx context.Context, userID int64, provider GatewayProvider, amount decimal.Decimal, repaymentIDs []int64) (*GatewayTransaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: gateway amount must be positive", apperrors.ErrInvalidPaymentAmount)
	}
	if len(repaymentIDs) == 0 {
		return nil, fmt.Errorf("%w: no repayments selected", apperrors.ErrNoPayableRepayment)
	}

	gt := &GatewayTransaction{
		UserID:          userID,
		Provider:        provider,
		Amount:          amount,
		ProductCode:     s.productCode,
		TransactionUUID: uuid.NewString(),
		Status:          GatewayPending,
		RepaymentIDs:    repaymentIDs,
	}

	created, err := s.repo.CreateGatewayTransaction(ctx, gt)
	if err != nil {
		s.logger.Error("Failed to create gateway transaction", "provider", provider, "error", err)
		return nil, fmt.Errorf("failed to create gateway transaction: %w", err)
	}
	s.logger.Info("Gateway payment initiated", "provider", provider, "transactionUUID", created.TransactionUUID,
		"amount", amount.StringFixed(2))
	return created, nil
}

func (s *paymentServiceImpl) CompleteGatewayPayment(ctx context.Context, transactionUUID, refID string) (*ConfirmPaymentResult, error) {
	gt, err := s.repo.GetGatewayTransactionByUUID(ctx, transactionUUID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: gateway transaction '%s' not found", apperrors.ErrNotFound, transactionUUID)
		}
		return nil, fmt.Errorf("failed to load gateway transaction: %w", err)
	}
	if gt.Status == GatewaySuccess {
		s.logger.Warn("Gateway callback replay ignored", "transactionUUID", transactionUUID)
		return nil, fmt.Errorf("%w: transaction '%s' already settled", apperrors.ErrDuplicateReference, transactionUUID)
	}

	result, err := s.ConfirmPayment(ctx, ConfirmPaymentInput{
		ApplicantID:  gt.UserID,
		RepaymentIDs: gt.RepaymentIDs,
		Amount:       gt.Amount,
		Method:       Method(gt.Provider),
		Reference:    refID,
	})
	if err != nil {
		// A callback that cannot be applied is a failed payment, recorded
		// as such; the system carries on.
		if updErr := s.repo.UpdateGatewayTransactionStatus(ctx, transactionUUID, GatewayFailure, &refID); updErr != nil {
			s.logger.Error("Failed to mark gateway transaction failed", "transactionUUID", transactionUUID, "error", updErr)
		}
		return nil, err
	}

	if err := s.repo.UpdateGatewayTransactionStatus(ctx, transactionUUID, GatewaySuccess, &refID); err != nil {
		s.logger.Error("Failed to mark gateway transaction settled", "transactionUUID", transactionUUID, "error", err)
		return result, fmt.Errorf("payment applied but gateway record update failed: %w", err)
	}

	s.logger.Info("Gateway payment settled", "transactionUUID", transactionUUID, "refID", refID)
	return result, nil
}

func (s *paymentServiceImpl) FailGatewayPayment(ctx context.Context, transactionUUID string) error {
	if err := s.repo.UpdateGatewayTransactionStatus(ctx, transactionUUID, GatewayFailure, nil); err != nil {
		s.logger.Error("Failed to mark gateway transaction failed", "transactionUUID", transactionUUID, "error", err)
		return fmt.Errorf("failed to mark gateway transaction failed: %w", err)
	}
	s.logger.Info("Gateway payment marked failed", "transactionUUID", transactionUUID)
	return nil
}
