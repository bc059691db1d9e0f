package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the production Store. Each user is a single row; balance
// writes lock the row with FOR UPDATE, validate the delta in Go, and
// commit, which gives single-document check-and-set semantics.
type Postgres struct {
	db *pgxpool.Pool
}

func Connect(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Postgres{db: pool}, nil
}

func (p *Postgres) Close() {
	p.db.Close()
}

// storeErr maps driver failures onto the store error taxonomy.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

const accountColumns = `id, wallet, bank, bank_limit, interest_level, frozen, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var acc Account
	err := row.Scan(&acc.UserID, &acc.Wallet, &acc.Bank, &acc.BankLimit,
		&acc.InterestLevel, &acc.Frozen, &acc.CreatedAt, &acc.UpdatedAt)
	return acc, err
}

func (p *Postgres) EnsureUser(ctx context.Context, userID string) (Account, error) {
	_, err := p.db.Exec(ctx, `
		INSERT INTO users (id, wallet, bank, bank_limit)
		VALUES ($1, 0, 0, $2)
		ON CONFLICT (id) DO NOTHING
	`, userID, DefaultBankLimit)
	if err != nil {
		return Account{}, storeErr(err)
	}
	return p.ReadUser(ctx, userID)
}

func (p *Postgres) ReadUser(ctx context.Context, userID string) (Account, error) {
	acc, err := scanAccount(p.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM users
		WHERE id = $1
	`, userID))
	if err != nil {
		return Account{}, storeErr(err)
	}
	return acc, nil
}

func (p *Postgres) ApplyDelta(ctx context.Context, userID string, d Delta) (Account, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return Account{}, storeErr(err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, wallet, bank, bank_limit)
		VALUES ($1, 0, 0, $2)
		ON CONFLICT (id) DO NOTHING
	`, userID, DefaultBankLimit)
	if err != nil {
		return Account{}, storeErr(err)
	}

	acc, err := scanAccount(tx.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM users
		WHERE id = $1
		FOR UPDATE
	`, userID))
	if err != nil {
		return Account{}, storeErr(err)
	}
	if err := checkDelta(acc, d); err != nil {
		return acc, err
	}

	acc, err = scanAccount(tx.QueryRow(ctx, `
		UPDATE users
		SET wallet = wallet + $2,
		    bank = bank + $3,
		    bank_limit = bank_limit + $4,
		    interest_level = interest_level + $5,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+accountColumns+`
	`, userID, d.Wallet, d.Bank, d.BankLimit, d.InterestLevel))
	if err != nil {
		return Account{}, storeErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Account{}, storeErr(err)
	}
	return acc, nil
}

func (p *Postgres) SetFrozen(ctx context.Context, userID string, frozen bool) error {
	cmd, err := p.db.Exec(ctx, `
		UPDATE users SET frozen = $2, updated_at = now() WHERE id = $1
	`, userID, frozen)
	if err != nil {
		return storeErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// mutateDoc rewrites one jsonb column of the user row under a row lock.
// fn receives the current value (or nil) and returns the replacement.
func (p *Postgres) mutateDoc(ctx context.Context, userID, column string, fn func(raw []byte) ([]byte, error)) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, wallet, bank, bank_limit)
		VALUES ($1, 0, 0, $2)
		ON CONFLICT (id) DO NOTHING
	`, userID, DefaultBankLimit)
	if err != nil {
		return storeErr(err)
	}

	var raw []byte
	if err := tx.QueryRow(ctx, `
		SELECT `+column+` FROM users WHERE id = $1 FOR UPDATE
	`, userID).Scan(&raw); err != nil {
		return storeErr(err)
	}
	next, err := fn(raw)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE users SET `+column+` = $2, updated_at = now() WHERE id = $1
	`, userID, next); err != nil {
		return storeErr(err)
	}
	return storeErr(tx.Commit(ctx))
}

func (p *Postgres) readDoc(ctx context.Context, userID, column string, out any) error {
	var raw []byte
	err := p.db.QueryRow(ctx, `SELECT `+column+` FROM users WHERE id = $1`, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return storeErr(err)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (p *Postgres) Inventory(ctx context.Context, userID string) ([]InventoryEntry, error) {
	var inv []InventoryEntry
	if err := p.readDoc(ctx, userID, "inventory", &inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (p *Postgres) PushInventory(ctx context.Context, userID string, entry InventoryEntry) error {
	if entry.Quantity <= 0 {
		entry.Quantity = 1
	}
	return p.mutateDoc(ctx, userID, "inventory", func(raw []byte) ([]byte, error) {
		var inv []InventoryEntry
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &inv); err != nil {
				return nil, err
			}
		}
		merged := false
		for i := range inv {
			if inv[i].ItemID == entry.ItemID {
				inv[i].Quantity += entry.Quantity
				merged = true
				break
			}
		}
		if !merged {
			inv = append(inv, entry)
		}
		return json.Marshal(inv)
	})
}

func (p *Postgres) PopInventory(ctx context.Context, userID, itemID string, count int) error {
	return p.mutateDoc(ctx, userID, "inventory", func(raw []byte) ([]byte, error) {
		var inv []InventoryEntry
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &inv); err != nil {
				return nil, err
			}
		}
		for i := range inv {
			if inv[i].ItemID != itemID {
				continue
			}
			if inv[i].Quantity < count {
				return nil, ErrInsufficientItems
			}
			inv[i].Quantity -= count
			if inv[i].Quantity == 0 {
				inv = append(inv[:i], inv[i+1:]...)
			}
			return json.Marshal(inv)
		}
		return nil, ErrInsufficientItems
	})
}

func (p *Postgres) FishingGear(ctx context.Context, userID string) (FishingGear, error) {
	var g FishingGear
	if err := p.readDoc(ctx, userID, "gear", &g); err != nil {
		return FishingGear{}, err
	}
	return g, nil
}

func (p *Postgres) AddRod(ctx context.Context, userID string, rod Rod) error {
	return p.mutateGear(ctx, userID, func(g *FishingGear) error {
		g.Rods = append(g.Rods, rod)
		return nil
	})
}

func (p *Postgres) AddBait(ctx context.Context, userID string, bait BaitStack) error {
	return p.mutateGear(ctx, userID, func(g *FishingGear) error {
		g.Bait = append(g.Bait, bait)
		return nil
	})
}

func (p *Postgres) ConsumeBait(ctx context.Context, userID, baitID string) error {
	return p.mutateGear(ctx, userID, func(g *FishingGear) error {
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
	})
}

func (p *Postgres) mutateGear(ctx context.Context, userID string, fn func(*FishingGear) error) error {
	return p.mutateDoc(ctx, userID, "gear", func(raw []byte) ([]byte, error) {
		var g FishingGear
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &g); err != nil {
				return nil, err
			}
		}
		if err := fn(&g); err != nil {
			return nil, err
		}
		return json.Marshal(g)
	})
}

func (p *Postgres) Catches(ctx context.Context, userID string) ([]FishCatch, error) {
	var out []FishCatch
	if err := p.readDoc(ctx, userID, "catches", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Postgres) AddCatch(ctx context.Context, userID string, c FishCatch) error {
	return p.mutateDoc(ctx, userID, "catches", func(raw []byte) ([]byte, error) {
		var list []FishCatch
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &list); err != nil {
				return nil, err
			}
		}
		return json.Marshal(append(list, c))
	})
}

func (p *Postgres) RemoveCatch(ctx context.Context, userID, catchID string) (FishCatch, error) {
	var removed FishCatch
	err := p.mutateDoc(ctx, userID, "catches", func(raw []byte) ([]byte, error) {
		var list []FishCatch
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &list); err != nil {
				return nil, err
			}
		}
		for i := range list {
			if list[i].ID == catchID {
				removed = list[i]
				return json.Marshal(append(list[:i], list[i+1:]...))
			}
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return FishCatch{}, err
	}
	return removed, nil
}

func (p *Postgres) ActivePotions(ctx context.Context, userID string) ([]ActivePotion, error) {
	var all []ActivePotion
	if err := p.readDoc(ctx, userID, "potions", &all); err != nil {
		return nil, err
	}
	now := time.Now()
	var out []ActivePotion
	for _, pot := range all {
		if pot.ExpiresAt.After(now) {
			out = append(out, pot)
		}
	}
	return out, nil
}

func (p *Postgres) AddPotion(ctx context.Context, userID string, pot ActivePotion) error {
	return p.mutateDoc(ctx, userID, "potions", func(raw []byte) ([]byte, error) {
		var list []ActivePotion
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &list); err != nil {
				return nil, err
			}
		}
		now := time.Now()
		kept := list[:0]
		for _, existing := range list {
			if existing.ExpiresAt.After(now) {
				kept = append(kept, existing)
			}
		}
		return json.Marshal(append(kept, pot))
	})
}

func (p *Postgres) FindShopItem(ctx context.Context, scope, itemID string) (ShopItem, error) {
	var raw []byte
	err := p.db.QueryRow(ctx, `
		SELECT doc FROM shop_items WHERE scope = $1 AND id = $2
	`, scope, itemID).Scan(&raw)
	if err != nil {
		return ShopItem{}, storeErr(err)
	}
	var item ShopItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return ShopItem{}, err
	}
	return item, nil
}

func (p *Postgres) ListShopItems(ctx context.Context, scope string) ([]ShopItem, error) {
	rows, err := p.db.Query(ctx, `
		SELECT doc FROM shop_items WHERE scope = $1 ORDER BY id
	`, scope)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()
	var out []ShopItem
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, storeErr(err)
		}
		var item ShopItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, storeErr(rows.Err())
}

func (p *Postgres) UpsertShopItem(ctx context.Context, scope string, item ShopItem) error {
	doc, err := json.Marshal(item)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(ctx, `
		INSERT INTO shop_items (scope, id, doc)
		VALUES ($1, $2, $3)
		ON CONFLICT (scope, id) DO UPDATE SET doc = $3
	`, scope, item.ID, doc)
	return storeErr(err)
}

func (p *Postgres) GuildSettings(ctx context.Context, guildID string) (GuildSettings, error) {
	var raw []byte
	err := p.db.QueryRow(ctx, `SELECT doc FROM guild_settings WHERE id = $1`, guildID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return GuildSettings{GuildID: guildID, Prefixes: []string{"."}}, nil
	}
	if err != nil {
		return GuildSettings{}, storeErr(err)
	}
	var gs GuildSettings
	if err := json.Unmarshal(raw, &gs); err != nil {
		return GuildSettings{}, err
	}
	return gs, nil
}

func (p *Postgres) UpdateGuildSettings(ctx context.Context, gs GuildSettings) error {
	if len(gs.Prefixes) == 0 {
		gs.Prefixes = []string{"."}
	}
	if gs.ServerBalance < 0 {
		return ErrInsufficientFunds
	}
	doc, err := json.Marshal(gs)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(ctx, `
		INSERT INTO guild_settings (id, doc)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET doc = $2
	`, gs.GuildID, doc)
	return storeErr(err)
}

var statColumns = map[string]string{
	"messages":     "messages",
	"gained":       "gained",
	"lost":         "lost",
	"donated":      "donated",
	"giveaway_won": "giveaway_won",
}

func (p *Postgres) GuildStats(ctx context.Context, guildID string) (Stats, error) {
	var st Stats
	err := p.db.QueryRow(ctx, `
		SELECT id, messages, gained, lost, donated, giveaway_won
		FROM guild_stats
		WHERE id = $1
	`, guildID).Scan(&st.GuildID, &st.Messages, &st.Gained, &st.Lost, &st.Donated, &st.GiveawayWon)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stats{GuildID: guildID}, nil
	}
	if err != nil {
		return Stats{}, storeErr(err)
	}
	return st, nil
}

func (p *Postgres) BumpStat(ctx context.Context, guildID, field string, delta int64) error {
	col, ok := statColumns[field]
	if !ok {
		return ErrNotFound
	}
	_, err := p.db.Exec(ctx, `
		INSERT INTO guild_stats (id, `+col+`)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET `+col+` = guild_stats.`+col+` + $2
	`, guildID, delta)
	return storeErr(err)
}

func (p *Postgres) AppendTradeRecord(ctx context.Context, rec TradeRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(ctx, `
		INSERT INTO trade_history (trade_id, initiator_id, target_id, guild_id, completed_at, doc)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.TradeID, rec.InitiatorID, rec.TargetID, rec.GuildID, rec.CompletedAt, doc)
	return storeErr(err)
}

func (p *Postgres) TradeRecords(ctx context.Context, userID string, limit int) ([]TradeRecord, error) {
	// limit 0 means "all"; cap it to keep the query bounded
	if limit <= 0 {
		limit = 10_000
	}
	query := `
		SELECT doc FROM trade_history
		WHERE $1 = '' OR initiator_id = $1 OR target_id = $1
		ORDER BY completed_at DESC
		LIMIT $2
	`
	rows, err := p.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()
	var out []TradeRecord
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, storeErr(err)
		}
		var rec TradeRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, storeErr(rows.Err())
}

func (p *Postgres) TopAccounts(ctx context.Context, limit int) ([]Account, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := p.db.Query(ctx, `
		SELECT `+accountColumns+`
		FROM users
		WHERE wallet > 0 OR bank > 0
		ORDER BY wallet + bank DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		out = append(out, acc)
	}
	return out, storeErr(rows.Err())
}
