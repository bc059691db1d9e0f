package economy

import (
	"context"
	"errors"
	"testing"

	"bronxbot/internal/store"
)

func seed(t *testing.T, st store.Store, userID string, wallet, bank int64) {
	t.Helper()
	if _, err := st.ApplyDelta(context.Background(), userID, store.Delta{Wallet: wallet, Bank: bank}); err != nil {
		t.Fatalf("seed %s: %v", userID, err)
	}
}

func TestDepositFlow(t *testing.T) {
	st := store.NewMemory()
	l := NewLedger(st, nil)
	ctx := context.Background()
	seed(t, st, "u1", 500, 0)

	acc, err := l.Deposit(ctx, "u1", 200)
	if err != nil {
		t.Fatalf("deposit 200: %v", err)
	}
	if acc.Wallet != 300 || acc.Bank != 200 {
		t.Fatalf("after deposit 200: wallet=%d bank=%d, want 300/200", acc.Wallet, acc.Bank)
	}

	n, err := ResolveAmount("all", acc.Wallet)
	if err != nil {
		t.Fatalf("resolve all: %v", err)
	}
	acc, err = l.Deposit(ctx, "u1", n)
	if err != nil {
		t.Fatalf("deposit all: %v", err)
	}
	if acc.Wallet != 0 || acc.Bank != 300 {
		t.Fatalf("after deposit all: wallet=%d bank=%d, want 0/300", acc.Wallet, acc.Bank)
	}
}

func TestWithdrawPercent(t *testing.T) {
	st := store.NewMemory()
	l := NewLedger(st, nil)
	ctx := context.Background()
	seed(t, st, "u1", 0, 300)

	n, err := ResolveAmount("50%", 300)
	if err != nil {
		t.Fatalf("resolve 50%%: %v", err)
	}
	acc, err := l.Withdraw(ctx, "u1", n)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if acc.Wallet != 150 || acc.Bank != 150 {
		t.Fatalf("after withdraw 50%%: wallet=%d bank=%d, want 150/150", acc.Wallet, acc.Bank)
	}
}

func TestDepositOverLimitMovesNothing(t *testing.T) {
	st := store.NewMemory()
	l := NewLedger(st, nil)
	ctx := context.Background()
	seed(t, st, "u1", 20_000, 0)

	if _, err := l.Deposit(ctx, "u1", 10_001); !errors.Is(err, store.ErrOverLimit) {
		t.Fatalf("deposit over limit err = %v, want ErrOverLimit", err)
	}
	acc, _ := st.ReadUser(ctx, "u1")
	if acc.Wallet != 20_000 || acc.Bank != 0 {
		t.Fatalf("balances moved on refused deposit: %+v", acc)
	}
}

func TestDebitInsufficient(t *testing.T) {
	st := store.NewMemory()
	l := NewLedger(st, nil)
	ctx := context.Background()
	seed(t, st, "u1", 100, 0)

	if _, err := l.DebitWallet(ctx, "u1", 101); !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("overdraw err = %v, want ErrInsufficientFunds", err)
	}
	if bal, _ := l.WalletBalance(ctx, "u1"); bal != 100 {
		t.Fatalf("wallet changed on refused debit: %d", bal)
	}
}

func TestTransfer(t *testing.T) {
	st := store.NewMemory()
	l := NewLedger(st, nil)
	ctx := context.Background()
	seed(t, st, "a", 1000, 0)

	if err := l.Transfer(ctx, "a", "b", 400); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	aBal, _ := l.WalletBalance(ctx, "a")
	bBal, _ := l.WalletBalance(ctx, "b")
	if aBal != 600 || bBal != 400 {
		t.Fatalf("after transfer: a=%d b=%d, want 600/400", aBal, bBal)
	}

	if err := l.Transfer(ctx, "a", "a", 10); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("self transfer err = %v, want ErrInvalidAmount", err)
	}
}

func TestTransferRefundsSenderWhenCreditFails(t *testing.T) {
	st := store.NewMemory()
	l := NewLedger(st, nil)
	ctx := context.Background()
	seed(t, st, "a", 1000, 0)
	seed(t, st, "b", 0, 0)
	if err := st.SetFrozen(ctx, "b", true); err != nil {
		t.Fatalf("freeze b: %v", err)
	}

	if err := l.Transfer(ctx, "a", "b", 400); !errors.Is(err, store.ErrFrozen) {
		t.Fatalf("transfer to frozen err = %v, want ErrFrozen", err)
	}
	aBal, _ := l.WalletBalance(ctx, "a")
	if aBal != 1000 {
		t.Fatalf("sender not made whole: %d", aBal)
	}
}

func TestDailyInterestBounds(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		wallet int64
		bank   int64
		level  int
		want   int64
	}{
		{"floor of one", 0, 100, 0, 1},
		{"base rate", 0, 10_000, 0, 3},
		{"level raises rate", 0, 10_000, 10, 53},
		{"capped at one percent of total", 0, 10_000, 30, 100},
		{"no bank no interest", 500, 0, 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := store.NewMemory()
			l := NewLedger(st, nil)
			seed(t, st, "u1", tc.wallet, 0)
			if _, err := st.ApplyDelta(ctx, "u1", store.Delta{Bank: 0, BankLimit: tc.bank, InterestLevel: tc.level}); err != nil {
				t.Fatalf("raise limit: %v", err)
			}
			if tc.bank > 0 {
				if _, err := st.ApplyDelta(ctx, "u1", store.Delta{Wallet: tc.bank, Bank: 0}); err != nil {
					t.Fatalf("fund wallet: %v", err)
				}
				if _, err := l.Deposit(ctx, "u1", tc.bank); err != nil {
					t.Fatalf("deposit: %v", err)
				}
			}
			earn, err := l.ApplyDailyInterest(ctx, "u1")
			if err != nil {
				t.Fatalf("interest: %v", err)
			}
			if earn != tc.want {
				t.Fatalf("interest = %d, want %d", earn, tc.want)
			}
		})
	}
}

func TestUpgradeInterest(t *testing.T) {
	st := store.NewMemory()
	l := NewLedger(st, nil)
	ctx := context.Background()
	seed(t, st, "u1", 5000, 0)

	acc, err := l.UpgradeInterest(ctx, "u1")
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if acc.InterestLevel != 1 || acc.Wallet != 4000 {
		t.Fatalf("after upgrade: level=%d wallet=%d, want 1/4000", acc.InterestLevel, acc.Wallet)
	}
	// second upgrade costs 2000
	acc, err = l.UpgradeInterest(ctx, "u1")
	if err != nil {
		t.Fatalf("second upgrade: %v", err)
	}
	if acc.InterestLevel != 2 || acc.Wallet != 2000 {
		t.Fatalf("after second upgrade: level=%d wallet=%d, want 2/2000", acc.InterestLevel, acc.Wallet)
	}
}

func TestUpgradeInterestAtMaxLevel(t *testing.T) {
	st := store.NewMemory()
	l := NewLedger(st, nil)
	ctx := context.Background()
	seed(t, st, "u1", 100_000, 0)
	if _, err := st.ApplyDelta(ctx, "u1", store.Delta{InterestLevel: 30}); err != nil {
		t.Fatalf("raise level: %v", err)
	}

	if _, err := l.UpgradeInterest(ctx, "u1"); !errors.Is(err, store.ErrInterestCap) {
		t.Fatalf("upgrade at max err = %v, want ErrInterestCap", err)
	}
	acc, _ := st.ReadUser(ctx, "u1")
	if acc.Wallet != 100_000 {
		t.Fatalf("wallet charged on refused upgrade: %d", acc.Wallet)
	}
}
