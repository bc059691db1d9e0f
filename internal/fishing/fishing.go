package fishing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"bronxbot/internal/economy"
	"bronxbot/internal/store"
)

var (
	ErrNoRod  = errors.New("you need a fishing rod")
	ErrNoBait = errors.New("you need bait")
)

// value ranges per catch type
var valueRanges = map[string][2]int64{
	"normal":  {10, 100},
	"rare":    {100, 500},
	"event":   {500, 2_000},
	"mutated": {2_000, 10_000},
}

var catchNames = map[string][]string{
	"normal":  {"Carp", "Perch", "Bass", "Trout", "Bronx Minnow"},
	"rare":    {"Golden Koi", "Sturgeon", "Giant Catfish"},
	"event":   {"Ghost Pike", "Solar Eel"},
	"mutated": {"Three-Eyed Bass", "Glowing Leviathan"},
}

// Fisher runs the fishing loop: consume bait, roll a catch against the
// bait's rates and the rod's multiplier, store the catch, and sell
// catches back through the ledger.
type Fisher struct {
	st     store.Store
	ledger *economy.Ledger
	log    *slog.Logger
	rng    func() float64
}

func NewFisher(st store.Store, ledger *economy.Ledger, logger *slog.Logger) *Fisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fisher{st: st, ledger: ledger, log: logger, rng: rand.Float64}
}

// Fish performs one cast with the given rod and bait. The bait use is
// consumed whether or not the catch is a good one.
func (f *Fisher) Fish(ctx context.Context, userID, rodID, baitID string) (store.FishCatch, error) {
	gear, err := f.st.FishingGear(ctx, userID)
	if err != nil {
		return store.FishCatch{}, err
	}
	var rod *store.Rod
	for i := range gear.Rods {
		if gear.Rods[i].ID == rodID {
			rod = &gear.Rods[i]
			break
		}
	}
	if rod == nil {
		return store.FishCatch{}, fmt.Errorf("%w: %s not owned", ErrNoRod, rodID)
	}
	var bait *store.BaitStack
	for i := range gear.Bait {
		if gear.Bait[i].ID == baitID {
			bait = &gear.Bait[i]
			break
		}
	}
	if bait == nil || bait.Remaining <= 0 {
		return store.FishCatch{}, fmt.Errorf("%w: %s not owned", ErrNoBait, baitID)
	}

	if err := f.st.ConsumeBait(ctx, userID, baitID); err != nil {
		return store.FishCatch{}, err
	}

	luck, err := f.luckMultiplier(ctx, userID)
	if err != nil {
		return store.FishCatch{}, err
	}
	catchType := f.rollType(bait.CatchRates, luck)
	c := store.FishCatch{
		ID:       uuid.NewString(),
		Type:     catchType,
		Name:     f.pickName(catchType),
		Value:    f.rollValue(catchType, rod.Multiplier),
		CaughtAt: time.Now().UTC(),
		BaitUsed: baitID,
		RodUsed:  rodID,
	}
	if err := f.st.AddCatch(ctx, userID, c); err != nil {
		return store.FishCatch{}, err
	}
	f.log.Info("fish caught", "user", userID, "type", c.Type, "value", c.Value)
	return c, nil
}

// luckMultiplier folds active luck potions into one factor. Potions of
// the same type stack multiplicatively.
func (f *Fisher) luckMultiplier(ctx context.Context, userID string) (float64, error) {
	potions, err := f.st.ActivePotions(ctx, userID)
	if err != nil {
		return 1, err
	}
	mult := 1.0
	for _, p := range potions {
		if p.BuffType == "luck" {
			mult *= p.Multiplier
		}
	}
	return mult, nil
}

// rollType picks a catch type from the bait's weighted rates. Luck
// scales every non-normal weight before the roll.
func (f *Fisher) rollType(rates map[string]float64, luck float64) string {
	if len(rates) == 0 {
		return "normal"
	}
	total := 0.0
	weights := make(map[string]float64, len(rates))
	for typ, w := range rates {
		if typ != "normal" {
			w *= luck
		}
		weights[typ] = w
		total += w
	}
	roll := f.rng() * total
	for _, typ := range []string{"normal", "rare", "event", "mutated"} {
		w, ok := weights[typ]
		if !ok {
			continue
		}
		if roll < w {
			return typ
		}
		roll -= w
	}
	return "normal"
}

func (f *Fisher) rollValue(catchType string, rodMultiplier float64) int64 {
	r, ok := valueRanges[catchType]
	if !ok {
		r = valueRanges["normal"]
	}
	base := r[0] + int64(f.rng()*float64(r[1]-r[0]))
	if rodMultiplier < 1 {
		rodMultiplier = 1
	}
	v := int64(float64(base) * rodMultiplier)
	if v > r[1] {
		v = r[1]
	}
	return v
}

func (f *Fisher) pickName(catchType string) string {
	names, ok := catchNames[catchType]
	if !ok || len(names) == 0 {
		return "Fish"
	}
	return names[int(f.rng()*float64(len(names)))%len(names)]
}

// Sell converts one catch to wallet credit. The catch is restored if
// the credit fails.
func (f *Fisher) Sell(ctx context.Context, userID, catchID string) (int64, error) {
	c, err := f.st.RemoveCatch(ctx, userID, catchID)
	if err != nil {
		return 0, err
	}
	if _, err := f.ledger.CreditWallet(ctx, userID, c.Value); err != nil {
		if undoErr := f.st.AddCatch(ctx, userID, c); undoErr != nil {
			f.log.Error("catch restore failed", "user", userID, "catch", c.ID,
				"credit_err", err, "undo_err", undoErr)
		}
		return 0, err
	}
	return c.Value, nil
}

// SellAll sells every catch and returns the total credited.
func (f *Fisher) SellAll(ctx context.Context, userID string) (int64, int, error) {
	catches, err := f.st.Catches(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	var total int64
	sold := 0
	for _, c := range catches {
		v, err := f.Sell(ctx, userID, c.ID)
		if err != nil {
			return total, sold, err
		}
		total += v
		sold++
	}
	return total, sold, nil
}
