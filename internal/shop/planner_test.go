package shop

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"bronxbot/internal/economy"
	"bronxbot/internal/store"
)

func newPlanner(t *testing.T) (*Planner, store.Store) {
	t.Helper()
	st := store.NewMemory()
	if err := SeedDefaults(context.Background(), st); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ledger := economy.NewLedger(st, nil)
	return NewPlanner(st, NewCatalog(st), ledger, nil), st
}

func fund(t *testing.T, st store.Store, userID string, wallet int64) {
	t.Helper()
	if _, err := st.ApplyDelta(context.Background(), userID, store.Delta{Wallet: wallet}); err != nil {
		t.Fatalf("fund: %v", err)
	}
}

func TestBulkBuyDiscount(t *testing.T) {
	p, st := newPlanner(t)
	ctx := context.Background()
	fund(t, st, "buyer", 1000)

	plan, err := p.BuildPlan(ctx, "", "buyer", []Request{{ItemID: "pro_bait", Quantity: 10}})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Total != 450 {
		t.Fatalf("total = %d, want 450", plan.Total)
	}
	if plan.NeedsConfirm {
		t.Fatalf("450 over one line should not need confirmation")
	}

	res, err := p.Execute(ctx, plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Succeeded != 10 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}
	if res.Balance != 550 {
		t.Fatalf("balance = %d, want 550", res.Balance)
	}
	gear, _ := st.FishingGear(ctx, "buyer")
	if len(gear.Bait) != 10 {
		t.Fatalf("bait stacks = %d, want 10", len(gear.Bait))
	}
}

func TestSinglePurchaseRule(t *testing.T) {
	p, st := newPlanner(t)
	ctx := context.Background()
	fund(t, st, "buyer", 20_000)

	_, err := p.BuildPlan(ctx, "", "buyer", []Request{{ItemID: "vip", Quantity: 2}})
	if !errors.Is(err, ErrSinglePurchase) {
		t.Fatalf("err = %v, want ErrSinglePurchase", err)
	}
	acc, _ := st.ReadUser(ctx, "buyer")
	if acc.Wallet != 20_000 {
		t.Fatalf("wallet changed on rejected plan: %d", acc.Wallet)
	}
}

func TestPlanAffordabilityLeavesStateUnchanged(t *testing.T) {
	p, st := newPlanner(t)
	ctx := context.Background()
	fund(t, st, "buyer", 100)

	_, err := p.BuildPlan(ctx, "", "buyer", []Request{{ItemID: "pro_bait", Quantity: 5}})
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	acc, _ := st.ReadUser(ctx, "buyer")
	inv, _ := st.Inventory(ctx, "buyer")
	gear, _ := st.FishingGear(ctx, "buyer")
	if acc.Wallet != 100 || len(inv) != 0 || len(gear.Bait) != 0 {
		t.Fatalf("state changed on unaffordable plan: wallet=%d inv=%d bait=%d",
			acc.Wallet, len(inv), len(gear.Bait))
	}
}

func TestQuantityRange(t *testing.T) {
	p, st := newPlanner(t)
	fund(t, st, "buyer", 100_000)
	for _, q := range []int{0, -1, 101} {
		if _, err := p.BuildPlan(context.Background(), "", "buyer",
			[]Request{{ItemID: "pro_bait", Quantity: q}}); !errors.Is(err, ErrQuantityRange) {
			t.Fatalf("quantity %d err = %v, want ErrQuantityRange", q, err)
		}
	}
}

func TestConfirmationThresholds(t *testing.T) {
	p, st := newPlanner(t)
	ctx := context.Background()
	fund(t, st, "buyer", 100_000)

	plan, err := p.BuildPlan(ctx, "", "buyer", []Request{{ItemID: "vip", Quantity: 1}, {ItemID: "color_role", Quantity: 1}})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if !plan.NeedsConfirm {
		t.Fatalf("15000 total should need confirmation")
	}

	plan, err = p.BuildPlan(ctx, "", "buyer", []Request{
		{ItemID: "pro_bait", Quantity: 1},
		{ItemID: "mutated_bait", Quantity: 1},
		{ItemID: "luck_potion", Quantity: 1},
		{ItemID: "beginner_bait", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.NeedsConfirm {
		t.Fatalf("free line must not count toward the line threshold")
	}
}

func TestStarterRules(t *testing.T) {
	p, st := newPlanner(t)
	ctx := context.Background()
	fund(t, st, "buyer", 1000)

	plan, err := p.BuildPlan(ctx, "", "buyer", []Request{{ItemID: "beginner_rod", Quantity: 1}})
	if err != nil {
		t.Fatalf("first starter rod: %v", err)
	}
	if _, err := p.Execute(ctx, plan); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, err := p.BuildPlan(ctx, "", "buyer", []Request{{ItemID: "beginner_rod", Quantity: 1}}); !errors.Is(err, ErrItemUnavailable) {
		t.Fatalf("second starter rod err = %v, want ErrItemUnavailable", err)
	}

	if err := st.AddBait(ctx, "buyer", store.BaitStack{ID: "pro_bait", Remaining: 1}); err != nil {
		t.Fatalf("add bait: %v", err)
	}
	if _, err := p.BuildPlan(ctx, "", "buyer", []Request{{ItemID: "beginner_bait", Quantity: 1}}); !errors.Is(err, ErrItemUnavailable) {
		t.Fatalf("starter bait with bait owned err = %v, want ErrItemUnavailable", err)
	}
}

func TestSeasonalResolution(t *testing.T) {
	st := store.NewMemory()
	if err := SeedDefaults(context.Background(), st); err != nil {
		t.Fatalf("seed: %v", err)
	}
	c := NewCatalog(st)

	c.now = func() time.Time { return time.Date(2024, time.October, 15, 0, 0, 0, 0, time.UTC) }
	if _, scope, err := c.Resolve(context.Background(), "", "spooky_bait"); err != nil || scope != ScopeSeasonal {
		t.Fatalf("october resolve: scope=%q err=%v", scope, err)
	}

	c.now = func() time.Time { return time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC) }
	if _, _, err := c.Resolve(context.Background(), "", "spooky_bait"); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("march resolve err = %v, want ErrItemNotFound", err)
	}
}

func TestGuildCustomScopeResolvesLast(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	if err := SeedDefaults(ctx, st); err != nil {
		t.Fatalf("seed: %v", err)
	}
	custom := store.ShopItem{ID: "house_badge", Name: "House Badge", Kind: store.KindGeneric, Price: 300}
	if err := st.UpsertShopItem(ctx, "guild-1", custom); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	c := NewCatalog(st)

	item, scope, err := c.Resolve(ctx, "guild-1", "house_badge")
	if err != nil || scope != "guild-1" || item.Price != 300 {
		t.Fatalf("custom resolve: item=%+v scope=%q err=%v", item, scope, err)
	}
	if _, _, err := c.Resolve(ctx, "guild-2", "house_badge"); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("wrong guild resolve err = %v, want ErrItemNotFound", err)
	}
}

// failingBaitStore fails every bait add after the first, to exercise
// the per-unit refund path.
type failingBaitStore struct {
	store.Store
	adds int
}

func (f *failingBaitStore) AddBait(ctx context.Context, userID string, bait store.BaitStack) error {
	f.adds++
	if f.adds > 1 {
		return fmt.Errorf("%w: bait add", store.ErrUnavailable)
	}
	return f.Store.AddBait(ctx, userID, bait)
}

func TestExecuteRefundsFailedUnits(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	if err := SeedDefaults(ctx, mem); err != nil {
		t.Fatalf("seed: %v", err)
	}
	st := &failingBaitStore{Store: mem}
	ledger := economy.NewLedger(mem, nil)
	p := NewPlanner(st, NewCatalog(mem), ledger, nil)
	fund(t, mem, "buyer", 1000)

	plan, err := p.BuildPlan(ctx, "", "buyer", []Request{{ItemID: "pro_bait", Quantity: 3}})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Total != 150 {
		t.Fatalf("total = %d, want 150", plan.Total)
	}

	res, err := p.Execute(ctx, plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Succeeded != 1 || res.Failed != 2 || res.Refunded != 100 {
		t.Fatalf("result = %+v", res)
	}
	// wallet = 1000 - cost of the one successful unit
	if res.Balance != 950 {
		t.Fatalf("balance = %d, want 950", res.Balance)
	}
}
