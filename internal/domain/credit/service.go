package credit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"greenloan-engine/internal/domain/loan"
	"greenloan-engine/internal/infrastructure/monitoring"
	"greenloan-engine/internal/pkg/apperrors"
)

type CreditService interface {
	GetScore(ctx context.Context, userID int64) (*CreditScore, error)

	// AdjustForRepayment applies the engine delta for a repayment whose
	// status has just settled, inside the caller's transaction. Returns the
	// new score.
	AdjustForRepayment(ctx context.Context, tx pgx.Tx, userID int64, status loan.RepaymentStatus) (int, error)

	// AdjustForLoanClosure applies the closure bonus when a loan's last
	// installment is cleared.
	AdjustForLoanClosure(ctx context.Context, tx pgx.Tx, userID int64) (int, error)
}

type creditServiceImpl struct {
	repo   Repository
	logger *slog.Logger
}

func NewCreditService(r Repository, logger *slog.Logger) CreditService {
	return &creditServiceImpl{repo: r, logger: logger.With("component", "CreditService")}
}

func (s *creditServiceImpl) GetScore(ctx context.Context, userID int64) (*CreditScore, error) {
	score, err := s.repo.GetScore(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// No adjustment has happened yet; report the initial score
			// without creating a row.
			return &CreditScore{UserID: userID, Score: InitialScore}, nil
		}
		return nil, fmt.Errorf("failed to get credit score for user %d: %w", userID, err)
	}
	return score, nil
}

func (s *creditServiceImpl) AdjustForRepayment(ctx context.Context, tx pgx.Tx, userID int64, status loan.RepaymentStatus) (int, error) {
	delta := DeltaForRepayment(status)
	if delta == 0 {
		score, err := s.repo.GetOrCreateForUpdate(ctx, tx, userID)
		if err != nil {
			return 0, fmt.Errorf("failed to load credit score for user %d: %w", userID, err)
		}
		return score.Score, nil
	}
	return s.apply(ctx, tx, userID, delta, string(status))
}

func (s *creditServiceImpl) AdjustForLoanClosure(ctx context.Context, tx pgx.Tx, userID int64) (int, error) {
	return s.apply(ctx, tx, userID, DeltaLoanClosed, "loan_closed")
}

func (s *creditServiceImpl) apply(ctx context.Context, tx pgx.Tx, userID int64, delta int, reason string) (int, error) {
	score, err := s.repo.GetOrCreateForUpdate(ctx, tx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load credit score for user %d: %w", userID, err)
	}

	score.Adjust(delta)

	if err := s.repo.UpdateScoreInTx(ctx, tx, userID, score.Score); err != nil {
		s.logger.Error("Failed to update credit score", "userID", userID, "error", err)
		return 0, fmt.Errorf("failed to update credit score for user %d: %w", userID, err)
	}

	monitoring.RecordCreditAdjustment(reason)
	s.logger.Info("Credit score adjusted", "userID", userID, "delta", delta, "newScore", score.Score, "reason", reason)
	return score.Score, nil
}
