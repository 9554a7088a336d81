package credit

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type Repository interface {
	GetScore(ctx context.Context, userID int64) (*CreditScore, error)
	// GetOrCreateForUpdate loads the user's score row under a row-level
	// lock, inserting the initial score when none exists yet.
	GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (*CreditScore, error)
	UpdateScoreInTx(ctx context.Context, tx pgx.Tx, userID int64, score int) error
}
