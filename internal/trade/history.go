package trade

import (
	"context"

	"bronxbot/internal/store"
)

// History returns the newest trade records involving the user, or all
// users when userID is empty.
func (e *Engine) History(ctx context.Context, userID string, limit int) ([]store.TradeRecord, error) {
	return e.st.TradeRecords(ctx, userID, limit)
}

// UserStats summarizes a user's completed trades.
type UserStats struct {
	Trades        int
	ValueGiven    int64
	ValueReceived int64
	Balanced      int
}

// Stats aggregates the audit history for one user.
func (e *Engine) Stats(ctx context.Context, userID string) (UserStats, error) {
	recs, err := e.st.TradeRecords(ctx, userID, 0)
	if err != nil {
		return UserStats{}, err
	}
	var s UserStats
	for _, rec := range recs {
		s.Trades++
		given, received := rec.InitiatorValue, rec.TargetValue
		if rec.TargetID == userID {
			given, received = received, given
		}
		s.ValueGiven += given
		s.ValueReceived += received
		if Balanced(rec.InitiatorValue, rec.TargetValue) {
			s.Balanced++
		}
	}
	return s, nil
}
