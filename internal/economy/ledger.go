package economy

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"bronxbot/internal/store"
)

// Ledger is the sole mutator of wallet and bank balances. Every write
// goes through the store's atomic ApplyDelta; a transient storage
// failure is retried once before being surfaced.
type Ledger struct {
	store store.Store
	log   *slog.Logger
}

func NewLedger(st store.Store, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: st, log: logger}
}

func (l *Ledger) Account(ctx context.Context, userID string) (store.Account, error) {
	return l.store.EnsureUser(ctx, userID)
}

func (l *Ledger) WalletBalance(ctx context.Context, userID string) (int64, error) {
	acc, err := l.store.EnsureUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return acc.Wallet, nil
}

func (l *Ledger) BankBalance(ctx context.Context, userID string) (int64, error) {
	acc, err := l.store.EnsureUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return acc.Bank, nil
}

func (l *Ledger) BankLimit(ctx context.Context, userID string) (int64, error) {
	acc, err := l.store.EnsureUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return acc.BankLimit, nil
}

// apply runs one atomic delta, retrying once when storage is
// unavailable.
func (l *Ledger) apply(ctx context.Context, userID string, d store.Delta) (store.Account, error) {
	acc, err := l.store.ApplyDelta(ctx, userID, d)
	if errors.Is(err, store.ErrUnavailable) {
		l.log.Warn("storage unavailable, retrying delta", "user", userID, "err", err)
		acc, err = l.store.ApplyDelta(ctx, userID, d)
	}
	return acc, err
}

func (l *Ledger) CreditWallet(ctx context.Context, userID string, amount int64) (store.Account, error) {
	if amount <= 0 {
		return store.Account{}, ErrInvalidAmount
	}
	return l.apply(ctx, userID, store.Delta{Wallet: amount})
}

func (l *Ledger) DebitWallet(ctx context.Context, userID string, amount int64) (store.Account, error) {
	if amount <= 0 {
		return store.Account{}, ErrInvalidAmount
	}
	return l.apply(ctx, userID, store.Delta{Wallet: -amount})
}

// Deposit moves amount from wallet to bank in one atomic delta. Either
// both balances move or neither does.
func (l *Ledger) Deposit(ctx context.Context, userID string, amount int64) (store.Account, error) {
	if amount <= 0 {
		return store.Account{}, ErrInvalidAmount
	}
	return l.apply(ctx, userID, store.Delta{Wallet: -amount, Bank: amount})
}

func (l *Ledger) Withdraw(ctx context.Context, userID string, amount int64) (store.Account, error) {
	if amount <= 0 {
		return store.Account{}, ErrInvalidAmount
	}
	return l.apply(ctx, userID, store.Delta{Wallet: amount, Bank: -amount})
}

func (l *Ledger) RaiseBankLimit(ctx context.Context, userID string, delta int64) (store.Account, error) {
	if delta <= 0 {
		return store.Account{}, ErrInvalidAmount
	}
	return l.apply(ctx, userID, store.Delta{BankLimit: delta})
}

// Transfer debits the sender and credits the receiver. The two writes
// are not a single atomic act: if the credit fails the sender is
// refunded, and if the refund also fails the sender's account is frozen
// for operator review.
func (l *Ledger) Transfer(ctx context.Context, fromID, toID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if fromID == toID {
		return ErrInvalidAmount
	}
	if _, err := l.apply(ctx, fromID, store.Delta{Wallet: -amount}); err != nil {
		return err
	}
	if _, err := l.apply(ctx, toID, store.Delta{Wallet: amount}); err != nil {
		if _, undoErr := l.apply(ctx, fromID, store.Delta{Wallet: amount}); undoErr != nil {
			incident := uuid.NewString()
			l.log.Error("transfer refund failed, freezing sender",
				"incident", incident,
				"from", fromID, "to", toID, "amount", amount,
				"credit_err", err, "refund_err", undoErr)
			if frErr := l.store.SetFrozen(ctx, fromID, true); frErr != nil {
				l.log.Error("freeze failed", "incident", incident, "user", fromID, "err", frErr)
			}
		}
		return err
	}
	return nil
}

// Interest accrual. Rate is 0.03% base plus 0.05% per interest level,
// computed on the bank balance and credited to the wallet, bounded to
// at least 1 and at most 1% of total holdings.
func (l *Ledger) ApplyDailyInterest(ctx context.Context, userID string) (int64, error) {
	acc, err := l.store.EnsureUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	total := acc.Wallet + acc.Bank
	if total <= 0 || acc.Bank <= 0 {
		return 0, nil
	}
	rate := 0.0003 + 0.0005*float64(acc.InterestLevel)
	earn := int64(math.Round(float64(acc.Bank) * rate))
	if earn < 1 {
		earn = 1
	}
	if bound := total / 100; bound >= 1 && earn > bound {
		earn = bound
	}
	if _, err := l.apply(ctx, userID, store.Delta{Wallet: earn}); err != nil {
		return 0, err
	}
	return earn, nil
}

// UpgradeInterestCost returns the wallet cost of moving from the given
// level to the next.
func UpgradeInterestCost(level int) int64 {
	return 1000 * int64(level+1)
}

// UpgradeInterest debits the upgrade cost and bumps the interest level
// in one atomic delta. Levels cap at 30.
func (l *Ledger) UpgradeInterest(ctx context.Context, userID string) (store.Account, error) {
	acc, err := l.store.EnsureUser(ctx, userID)
	if err != nil {
		return store.Account{}, err
	}
	cost := UpgradeInterestCost(acc.InterestLevel)
	return l.apply(ctx, userID, store.Delta{Wallet: -cost, InterestLevel: 1})
}
