package shop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bronxbot/internal/store"
)

// Catalog scopes, searched in order. A guild's custom scope is the
// guild id itself and is searched last.
const (
	ScopeFishing  = "fishing"
	ScopeGeneral  = "general"
	ScopeSeasonal = "seasonal"
)

var (
	ErrItemNotFound    = errors.New("item not found")
	ErrItemUnavailable = errors.New("item unavailable")
)

// Catalog resolves item ids against the shop scopes and enforces
// per-buyer availability rules.
type Catalog struct {
	st  store.Store
	now func() time.Time
}

func NewCatalog(st store.Store) *Catalog {
	return &Catalog{st: st, now: time.Now}
}

// Resolve finds the catalog entry for an item id. Fishing wins over
// general, general over seasonal, seasonal over the guild's custom
// scope. Seasonal items outside their active months do not resolve.
func (c *Catalog) Resolve(ctx context.Context, guildID, itemID string) (store.ShopItem, string, error) {
	scopes := []string{ScopeFishing, ScopeGeneral, ScopeSeasonal}
	if guildID != "" {
		scopes = append(scopes, guildID)
	}
	for _, scope := range scopes {
		item, err := c.st.FindShopItem(ctx, scope, itemID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return store.ShopItem{}, "", err
		}
		if scope == ScopeSeasonal && !item.AvailableIn(c.now().Month()) {
			continue
		}
		return item, scope, nil
	}
	return store.ShopItem{}, "", fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
}

// CheckAvailable applies the starter-item rules: at most one starter
// rod per user, and starter bait cannot be re-acquired once any bait
// stack is owned.
func (c *Catalog) CheckAvailable(ctx context.Context, userID string, item store.ShopItem) error {
	switch item.ID {
	case "beginner_rod":
		gear, err := c.st.FishingGear(ctx, userID)
		if err != nil {
			return err
		}
		for _, rod := range gear.Rods {
			if rod.ID == "beginner_rod" {
				return fmt.Errorf("%w: you already own the starter rod", ErrItemUnavailable)
			}
		}
	case "beginner_bait":
		gear, err := c.st.FishingGear(ctx, userID)
		if err != nil {
			return err
		}
		if len(gear.Bait) > 0 {
			return fmt.Errorf("%w: starter bait is only for users with no bait", ErrItemUnavailable)
		}
	}
	return nil
}

// List returns the visible items of one scope; seasonal entries are
// filtered to the current month.
func (c *Catalog) List(ctx context.Context, scope string) ([]store.ShopItem, error) {
	items, err := c.st.ListShopItems(ctx, scope)
	if err != nil {
		return nil, err
	}
	if scope != ScopeSeasonal {
		return items, nil
	}
	month := c.now().Month()
	var out []store.ShopItem
	for _, item := range items {
		if item.AvailableIn(month) {
			out = append(out, item)
		}
	}
	return out, nil
}

// Value returns the catalog value of an item id for trade balance
// estimation, zero when it cannot be resolved.
func (c *Catalog) Value(ctx context.Context, guildID, itemID string) int64 {
	item, _, err := c.Resolve(ctx, guildID, itemID)
	if err != nil {
		return 0
	}
	return item.Price
}

// SeedDefaults loads the built-in fishing, general and seasonal
// catalogs. Existing entries with the same id are overwritten.
func SeedDefaults(ctx context.Context, st store.Store) error {
	defaults := map[string][]store.ShopItem{
		ScopeFishing: {
			{ID: "beginner_rod", Name: "Beginner Rod", Kind: store.KindRod, Price: 0,
				Multiplier: 1.0, Description: "Free starter rod. One per angler."},
			{ID: "advanced_rod", Name: "Advanced Rod", Kind: store.KindRod, Price: 2_500,
				Multiplier: 1.5, Description: "Better odds on rare catches."},
			{ID: "pro_rod", Name: "Pro Rod", Kind: store.KindRod, Price: 10_000,
				Multiplier: 2.2, Description: "Top of the line."},
			{ID: "beginner_bait", Name: "Beginner Bait", Kind: store.KindBait, Price: 0,
				BaitAmount: 10, CatchRates: map[string]float64{"normal": 1.0},
				Description: "Free starter bait for new anglers."},
			{ID: "pro_bait", Name: "Pro Bait", Kind: store.KindBait, Price: 50,
				BaitAmount: 10, CatchRates: map[string]float64{"normal": 0.8, "rare": 0.2},
				Description: "Attracts rarer fish."},
			{ID: "mutated_bait", Name: "Mutated Bait", Kind: store.KindBait, Price: 500,
				BaitAmount: 5, CatchRates: map[string]float64{"normal": 0.5, "rare": 0.35, "mutated": 0.15},
				Description: "Do not ask what is in it."},
		},
		ScopeGeneral: {
			{ID: "vip", Name: "VIP Role", Kind: store.KindRole, Price: 10_000,
				RoleID: "vip", Description: "Shiny VIP role."},
			{ID: "color_role", Name: "Custom Color Role", Kind: store.KindRole, Price: 5_000,
				RoleID: "color", Description: "Pick your name color."},
			{ID: "bank_upgrade", Name: "Bank Upgrade", Kind: store.KindUpgrade, Price: 2_500,
				LimitBoost: 5_000, Description: "Raises your bank limit by 5,000."},
			{ID: "luck_potion", Name: "Luck Potion", Kind: store.KindPotion, Price: 750,
				BuffType: "luck", Multiplier: 1.25, Duration: time.Hour,
				Description: "Better fishing odds for an hour."},
			{ID: "gold_trophy", Name: "Gold Trophy", Kind: store.KindGeneric, Price: 25_000,
				Description: "Pure flex."},
		},
		ScopeSeasonal: {
			{ID: "summer_rod", Name: "Summer Rod", Kind: store.KindRod, Price: 5_000,
				Multiplier: 1.8, ActiveMonths: []time.Month{time.June, time.July, time.August},
				Description: "Summer only."},
			{ID: "spooky_bait", Name: "Spooky Bait", Kind: store.KindBait, Price: 200,
				BaitAmount: 10, CatchRates: map[string]float64{"normal": 0.4, "event": 0.6},
				ActiveMonths: []time.Month{time.October},
				Description: "October only. Attracts event fish."},
		},
	}
	for scope, items := range defaults {
		for _, item := range items {
			if err := st.UpsertShopItem(ctx, scope, item); err != nil {
				return fmt.Errorf("seed %s/%s: %w", scope, item.ID, err)
			}
		}
	}
	return nil
}
