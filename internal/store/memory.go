package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

const DefaultBankLimit = int64(10_000)

// Memory is an in-process Store used by tests and local development. All
// operations take the single mutex, which gives the same single-document
// atomicity the Postgres implementation gets from row-level check-and-set.
type Memory struct {
	mu       sync.Mutex
	accounts map[string]*Account
	invs     map[string][]InventoryEntry
	gear     map[string]*FishingGear
	catches  map[string][]FishCatch
	potions  map[string][]ActivePotion
	shops    map[string]map[string]ShopItem
	guilds   map[string]GuildSettings
	stats    map[string]*Stats
	trades   []TradeRecord
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]*Account),
		invs:     make(map[string][]InventoryEntry),
		gear:     make(map[string]*FishingGear),
		catches:  make(map[string][]FishCatch),
		potions:  make(map[string][]ActivePotion),
		shops:    make(map[string]map[string]ShopItem),
		guilds:   make(map[string]GuildSettings),
		stats:    make(map[string]*Stats),
	}
}

func (m *Memory) ensureLocked(userID string) *Account {
	acc, ok := m.accounts[userID]
	if !ok {
		now := time.Now().UTC()
		acc = &Account{
			UserID:    userID,
			BankLimit: DefaultBankLimit,
			CreatedAt: now,
			UpdatedAt: now,
		}
		m.accounts[userID] = acc
	}
	return acc
}

func (m *Memory) EnsureUser(_ context.Context, userID string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.ensureLocked(userID), nil
}

func (m *Memory) ReadUser(_ context.Context, userID string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[userID]
	if !ok {
		return Account{}, ErrNotFound
	}
	return *acc, nil
}

func (m *Memory) ApplyDelta(_ context.Context, userID string, d Delta) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc := m.ensureLocked(userID)
	if err := checkDelta(*acc, d); err != nil {
		return *acc, err
	}
	acc.Wallet += d.Wallet
	acc.Bank += d.Bank
	acc.BankLimit += d.BankLimit
	acc.InterestLevel += d.InterestLevel
	acc.UpdatedAt = time.Now().UTC()
	return *acc, nil
}

func (m *Memory) SetFrozen(_ context.Context, userID string, frozen bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLocked(userID).Frozen = frozen
	return nil
}

func (m *Memory) Inventory(_ context.Context, userID string) ([]InventoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]InventoryEntry, len(m.invs[userID]))
	copy(out, m.invs[userID])
	return out, nil
}

func (m *Memory) PushInventory(_ context.Context, userID string, entry InventoryEntry) error {
	if entry.Quantity <= 0 {
		entry.Quantity = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inv := m.invs[userID]
	for i := range inv {
		if inv[i].ItemID == entry.ItemID {
			inv[i].Quantity += entry.Quantity
			return nil
		}
	}
	m.invs[userID] = append(inv, entry)
	return nil
}

func (m *Memory) PopInventory(_ context.Context, userID, itemID string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv := m.invs[userID]
	for i := range inv {
		if inv[i].ItemID != itemID {
			continue
		}
		if inv[i].Quantity < count {
			return ErrInsufficientItems
		}
		inv[i].Quantity -= count
		if inv[i].Quantity == 0 {
			m.invs[userID] = append(inv[:i], inv[i+1:]...)
		}
		return nil
	}
	return ErrInsufficientItems
}

func (m *Memory) gearLocked(userID string) *FishingGear {
	g, ok := m.gear[userID]
	if !ok {
		g = &FishingGear{}
		m.gear[userID] = g
	}
	return g
}

func (m *Memory) FishingGear(_ context.Context, userID string) (FishingGear, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.gearLocked(userID)
	out := FishingGear{
		Rods: append([]Rod(nil), g.Rods...),
		Bait: append([]BaitStack(nil), g.Bait...),
	}
	return out, nil
}

func (m *Memory) AddRod(_ context.Context, userID string, rod Rod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.gearLocked(userID)
	g.Rods = append(g.Rods, rod)
	return nil
}

func (m *Memory) AddBait(_ context.Context, userID string, bait BaitStack) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.gearLocked(userID)
	g.Bait = append(g.Bait, bait)
	return nil
}

func (m *Memory) ConsumeBait(_ context.Context, userID, baitID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.gearLocked(userID)
	for i := range g.Bait {
		if g.Bait[i].ID != baitID {
			continue
		}
		g.Bait[i].Remaining--
		if g.Bait[i].Remaining <= 0 {
			g.Bait = append(g.Bait[:i], g.Bait[i+1:]...)
		}
		return nil
	}
	return ErrInsufficientItems
}

func (m *Memory) Catches(_ context.Context, userID string) ([]FishCatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FishCatch, len(m.catches[userID]))
	copy(out, m.catches[userID])
	return out, nil
}

func (m *Memory) AddCatch(_ context.Context, userID string, c FishCatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catches[userID] = append(m.catches[userID], c)
	return nil
}

func (m *Memory) RemoveCatch(_ context.Context, userID, catchID string) (FishCatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.catches[userID]
	for i := range list {
		if list[i].ID == catchID {
			c := list[i]
			m.catches[userID] = append(list[:i], list[i+1:]...)
			return c, nil
		}
	}
	return FishCatch{}, ErrNotFound
}

func (m *Memory) ActivePotions(_ context.Context, userID string) ([]ActivePotion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var out []ActivePotion
	for _, p := range m.potions[userID] {
		if p.ExpiresAt.After(now) {
			out = append(out, p)
		}
	}
	m.potions[userID] = out
	return append([]ActivePotion(nil), out...), nil
}

func (m *Memory) AddPotion(_ context.Context, userID string, p ActivePotion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.potions[userID] = append(m.potions[userID], p)
	return nil
}

func (m *Memory) FindShopItem(_ context.Context, scope, itemID string) (ShopItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.shops[scope][itemID]
	if !ok {
		return ShopItem{}, ErrNotFound
	}
	return item, nil
}

func (m *Memory) ListShopItems(_ context.Context, scope string) ([]ShopItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ShopItem
	for _, item := range m.shops[scope] {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpsertShopItem(_ context.Context, scope string, item ShopItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shops[scope] == nil {
		m.shops[scope] = make(map[string]ShopItem)
	}
	m.shops[scope][item.ID] = item
	return nil
}

func (m *Memory) GuildSettings(_ context.Context, guildID string) (GuildSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gs, ok := m.guilds[guildID]
	if !ok {
		return GuildSettings{GuildID: guildID, Prefixes: []string{"."}}, nil
	}
	return gs, nil
}

func (m *Memory) UpdateGuildSettings(_ context.Context, gs GuildSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(gs.Prefixes) == 0 {
		gs.Prefixes = []string{"."}
	}
	if gs.ServerBalance < 0 {
		return ErrInsufficientFunds
	}
	m.guilds[gs.GuildID] = gs
	return nil
}

func (m *Memory) GuildStats(_ context.Context, guildID string) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.stats[guildID]
	if !ok {
		return Stats{GuildID: guildID}, nil
	}
	return *st, nil
}

func (m *Memory) BumpStat(_ context.Context, guildID, field string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.stats[guildID]
	if !ok {
		st = &Stats{GuildID: guildID}
		m.stats[guildID] = st
	}
	switch field {
	case "messages":
		st.Messages += delta
	case "gained":
		st.Gained += delta
	case "lost":
		st.Lost += delta
	case "donated":
		st.Donated += delta
	case "giveaway_won":
		st.GiveawayWon += delta
	default:
		return ErrNotFound
	}
	return nil
}

func (m *Memory) AppendTradeRecord(_ context.Context, rec TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, rec)
	return nil
}

func (m *Memory) TradeRecords(_ context.Context, userID string, limit int) ([]TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TradeRecord
	for i := len(m.trades) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		rec := m.trades[i]
		if userID == "" || rec.InitiatorID == userID || rec.TargetID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *Memory) TopAccounts(_ context.Context, limit int) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		out = append(out, *acc)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Wallet+out[i].Bank > out[j].Wallet+out[j].Bank
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
