package credit

import "time"

const (
	MinScore     = 300
	MaxScore     = 900
	InitialScore = 300
)

// Adjustment deltas applied after a repayment's status settles.
const (
	DeltaPaidOnTime = 10
	DeltaPaidLate   = -15
	DeltaOverdue    = -30
	DeltaLoanClosed = 20
)

// CreditScore is one per user, created lazily on first adjustment and only
// ever mutated by the engine.
type CreditScore struct {
	UserID      int64
	Score       int
	LastUpdated time.Time
}

// Clamp bounds a score to [MinScore, MaxScore].
func Clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// Adjust applies a delta and clamps the result.
func (c *CreditScore) Adjust(delta int) {
	c.Score = Clamp(c.Score + delta)
}
