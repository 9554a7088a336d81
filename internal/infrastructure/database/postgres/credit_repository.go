package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"greenloan-engine/internal/domain/credit"
	"greenloan-engine/internal/pkg/apperrors"
)

type CreditRepository struct {
	db     DBPool
	logger *slog.Logger
}

func NewCreditRepository(db DBPool, logger *slog.Logger) *CreditRepository {
	return &CreditRepository{db: db, logger: logger.With("component", "CreditRepository")}
}

var _ credit.Repository = (*CreditRepository)(nil)

func (r *CreditRepository) GetScore(ctx context.Context, userID int64) (*credit.CreditScore, error) {
	query := `SELECT user_id, score, updated_at FROM credit_scores WHERE user_id = $1`

	var cs credit.CreditScore
	err := r.db.QueryRow(ctx, query, userID).Scan(&cs.UserID, &cs.Score, &cs.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get credit score", "user_id", userID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return &cs, nil
}

// GetOrCreateForUpdate uses an upsert so the first adjustment for a user
// creates the row at the initial score; the returned row is locked for the
// remainder of the transaction.
func (r *CreditRepository) GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (*credit.CreditScore, error) {
	insertSQL := `
        INSERT INTO credit_scores (user_id, score, created_at, updated_at)
        VALUES ($1, $2, NOW(), NOW())
        ON CONFLICT (user_id) DO NOTHING`

	if _, err := tx.Exec(ctx, insertSQL, userID, credit.InitialScore); err != nil {
		r.logger.ErrorContext(ctx, "Failed to ensure credit score row", "user_id", userID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	query := `SELECT user_id, score, updated_at FROM credit_scores WHERE user_id = $1 FOR UPDATE`

	var cs credit.CreditScore
	err := tx.QueryRow(ctx, query, userID).Scan(&cs.UserID, &cs.Score, &cs.LastUpdated)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to lock credit score row", "user_id", userID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return &cs, nil
}

func (r *CreditRepository) UpdateScoreInTx(ctx context.Context, tx pgx.Tx, userID int64, score int) error {
	sql := `UPDATE credit_scores SET score = $1, updated_at = NOW() WHERE user_id = $2`

	cmdTag, err := tx.Exec(ctx, sql, score, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update credit score", "user_id", userID, "score", score, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.ErrorContext(ctx, "Credit score update affected zero rows", "user_id", userID)
		return fmt.Errorf("%w: credit score update affected zero rows", apperrors.ErrDatabase)
	}
	return nil
}
