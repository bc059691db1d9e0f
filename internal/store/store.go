package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOverLimit         = errors.New("bank limit exceeded")
	ErrInsufficientItems = errors.New("insufficient items")
	ErrInterestCap       = errors.New("interest level is at the maximum")
	ErrFrozen            = errors.New("account frozen pending operator review")
	ErrUnavailable       = errors.New("storage unavailable")
)

// Delta is a combined balance adjustment applied atomically to a single
// account. A delta that would leave wallet or bank negative, or push the
// bank above its limit, is refused and nothing moves.
type Delta struct {
	Wallet        int64
	Bank          int64
	BankLimit     int64
	InterestLevel int
}

// Store is the persistence boundary. Every operation is atomic at
// single-document (single-user-row) granularity; there are no
// multi-document transactions. Implementations: Postgres and Memory.
type Store interface {
	// EnsureUser creates the account on first touch (bank limit defaults
	// to 10 000) and returns it.
	EnsureUser(ctx context.Context, userID string) (Account, error)
	ReadUser(ctx context.Context, userID string) (Account, error)
	ApplyDelta(ctx context.Context, userID string, d Delta) (Account, error)
	SetFrozen(ctx context.Context, userID string, frozen bool) error

	Inventory(ctx context.Context, userID string) ([]InventoryEntry, error)
	PushInventory(ctx context.Context, userID string, entry InventoryEntry) error
	PopInventory(ctx context.Context, userID, itemID string, count int) error

	FishingGear(ctx context.Context, userID string) (FishingGear, error)
	AddRod(ctx context.Context, userID string, rod Rod) error
	AddBait(ctx context.Context, userID string, bait BaitStack) error
	// ConsumeBait decrements one use from the stack and removes it when
	// empty.
	ConsumeBait(ctx context.Context, userID, baitID string) error

	Catches(ctx context.Context, userID string) ([]FishCatch, error)
	AddCatch(ctx context.Context, userID string, c FishCatch) error
	RemoveCatch(ctx context.Context, userID, catchID string) (FishCatch, error)

	ActivePotions(ctx context.Context, userID string) ([]ActivePotion, error)
	AddPotion(ctx context.Context, userID string, p ActivePotion) error

	FindShopItem(ctx context.Context, scope, itemID string) (ShopItem, error)
	ListShopItems(ctx context.Context, scope string) ([]ShopItem, error)
	UpsertShopItem(ctx context.Context, scope string, item ShopItem) error

	GuildSettings(ctx context.Context, guildID string) (GuildSettings, error)
	UpdateGuildSettings(ctx context.Context, gs GuildSettings) error
	GuildStats(ctx context.Context, guildID string) (Stats, error)
	BumpStat(ctx context.Context, guildID, field string, delta int64) error

	// AppendTradeRecord is append-only; no update or delete path exists.
	AppendTradeRecord(ctx context.Context, rec TradeRecord) error
	TradeRecords(ctx context.Context, userID string, limit int) ([]TradeRecord, error)

	TopAccounts(ctx context.Context, limit int) ([]Account, error)
}

// checkDelta validates a delta against the current account state and
// returns the refusal error, if any. Shared by both implementations.
func checkDelta(acc Account, d Delta) error {
	if acc.Frozen {
		return ErrFrozen
	}
	if acc.Wallet+d.Wallet < 0 {
		return ErrInsufficientFunds
	}
	if acc.Bank+d.Bank < 0 {
		return ErrInsufficientFunds
	}
	if acc.BankLimit+d.BankLimit < 0 {
		return ErrOverLimit
	}
	if acc.Bank+d.Bank > acc.BankLimit+d.BankLimit {
		return ErrOverLimit
	}
	if acc.InterestLevel+d.InterestLevel < 0 || acc.InterestLevel+d.InterestLevel > 30 {
		return ErrInterestCap
	}
	return nil
}
