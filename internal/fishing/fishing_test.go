package fishing

import (
	"context"
	"errors"
	"testing"

	"bronxbot/internal/economy"
	"bronxbot/internal/store"
)

func newFisher(t *testing.T) (*Fisher, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	return NewFisher(st, economy.NewLedger(st, nil), nil), st
}

func gearUp(t *testing.T, st store.Store, userID string) {
	t.Helper()
	ctx := context.Background()
	if err := st.AddRod(ctx, userID, store.Rod{ID: "beginner_rod", Name: "Beginner Rod", Multiplier: 1.0}); err != nil {
		t.Fatalf("add rod: %v", err)
	}
	err := st.AddBait(ctx, userID, store.BaitStack{
		ID: "pro_bait", Name: "Pro Bait", Remaining: 3,
		CatchRates: map[string]float64{"normal": 0.8, "rare": 0.2},
	})
	if err != nil {
		t.Fatalf("add bait: %v", err)
	}
}

func TestFishRequiresGear(t *testing.T) {
	f, st := newFisher(t)
	ctx := context.Background()

	if _, err := f.Fish(ctx, "u1", "beginner_rod", "pro_bait"); !errors.Is(err, ErrNoRod) {
		t.Fatalf("no rod err = %v", err)
	}
	if err := st.AddRod(ctx, "u1", store.Rod{ID: "beginner_rod", Multiplier: 1.0}); err != nil {
		t.Fatalf("add rod: %v", err)
	}
	if _, err := f.Fish(ctx, "u1", "beginner_rod", "pro_bait"); !errors.Is(err, ErrNoBait) {
		t.Fatalf("no bait err = %v", err)
	}
}

func TestFishConsumesBaitAndRecordsCatch(t *testing.T) {
	f, st := newFisher(t)
	ctx := context.Background()
	gearUp(t, st, "u1")
	f.rng = func() float64 { return 0.5 }

	c, err := f.Fish(ctx, "u1", "beginner_rod", "pro_bait")
	if err != nil {
		t.Fatalf("fish: %v", err)
	}
	if c.Type != "normal" {
		t.Fatalf("type = %s, want normal at roll 0.5", c.Type)
	}
	r := valueRanges[c.Type]
	if c.Value < r[0] || c.Value > r[1] {
		t.Fatalf("value %d outside [%d, %d]", c.Value, r[0], r[1])
	}
	if c.BaitUsed != "pro_bait" || c.RodUsed != "beginner_rod" {
		t.Fatalf("catch provenance = %+v", c)
	}

	gear, _ := st.FishingGear(ctx, "u1")
	if gear.Bait[0].Remaining != 2 {
		t.Fatalf("bait remaining = %d, want 2", gear.Bait[0].Remaining)
	}
	catches, _ := st.Catches(ctx, "u1")
	if len(catches) != 1 {
		t.Fatalf("catches = %d, want 1", len(catches))
	}
}

func TestRareRoll(t *testing.T) {
	f, st := newFisher(t)
	ctx := context.Background()
	gearUp(t, st, "u1")
	// 0.9 lands past the 0.8 normal weight
	f.rng = func() float64 { return 0.9 }

	c, err := f.Fish(ctx, "u1", "beginner_rod", "pro_bait")
	if err != nil {
		t.Fatalf("fish: %v", err)
	}
	if c.Type != "rare" {
		t.Fatalf("type = %s, want rare at roll 0.9", c.Type)
	}
	r := valueRanges["rare"]
	if c.Value < r[0] || c.Value > r[1] {
		t.Fatalf("value %d outside [%d, %d]", c.Value, r[0], r[1])
	}
}

func TestRodMultiplierCapsAtRange(t *testing.T) {
	f, st := newFisher(t)
	ctx := context.Background()
	if err := st.AddRod(ctx, "u1", store.Rod{ID: "pro_rod", Multiplier: 2.2}); err != nil {
		t.Fatalf("add rod: %v", err)
	}
	err := st.AddBait(ctx, "u1", store.BaitStack{
		ID: "worm", Remaining: 1, CatchRates: map[string]float64{"normal": 1},
	})
	if err != nil {
		t.Fatalf("add bait: %v", err)
	}
	f.rng = func() float64 { return 0.99 }

	c, err := f.Fish(ctx, "u1", "pro_rod", "worm")
	if err != nil {
		t.Fatalf("fish: %v", err)
	}
	if c.Value > valueRanges["normal"][1] {
		t.Fatalf("multiplied value %d exceeds range cap", c.Value)
	}
}

func TestSellCreditsWallet(t *testing.T) {
	f, st := newFisher(t)
	ctx := context.Background()
	gearUp(t, st, "u1")
	f.rng = func() float64 { return 0.5 }

	c, err := f.Fish(ctx, "u1", "beginner_rod", "pro_bait")
	if err != nil {
		t.Fatalf("fish: %v", err)
	}
	v, err := f.Sell(ctx, "u1", c.ID)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if v != c.Value {
		t.Fatalf("sold for %d, catch worth %d", v, c.Value)
	}
	acc, _ := st.ReadUser(ctx, "u1")
	if acc.Wallet != c.Value {
		t.Fatalf("wallet = %d, want %d", acc.Wallet, c.Value)
	}
	if catches, _ := st.Catches(ctx, "u1"); len(catches) != 0 {
		t.Fatalf("catch not removed after sale")
	}
	if _, err := f.Sell(ctx, "u1", c.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("double sell err = %v", err)
	}
}

func TestSellAll(t *testing.T) {
	f, st := newFisher(t)
	ctx := context.Background()
	gearUp(t, st, "u1")
	f.rng = func() float64 { return 0.5 }

	var want int64
	for i := 0; i < 3; i++ {
		c, err := f.Fish(ctx, "u1", "beginner_rod", "pro_bait")
		if err != nil {
			t.Fatalf("fish %d: %v", i, err)
		}
		want += c.Value
	}
	total, sold, err := f.SellAll(ctx, "u1")
	if err != nil {
		t.Fatalf("sell all: %v", err)
	}
	if sold != 3 || total != want {
		t.Fatalf("sold %d for %d, want 3 for %d", sold, total, want)
	}
}
