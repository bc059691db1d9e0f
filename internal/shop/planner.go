package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"bronxbot/internal/economy"
	"bronxbot/internal/store"
)

var (
	ErrQuantityRange  = errors.New("quantity must be between 1 and 100")
	ErrSinglePurchase = errors.New("item can only be bought once per request")
)

// ConfirmTotalThreshold and ConfirmLineThreshold decide when a plan
// needs explicit buyer confirmation before execute.
const (
	ConfirmTotalThreshold = 10_000
	ConfirmLineThreshold  = 3
	ConfirmTimeout        = 30 * time.Second
)

// Request is one (item, quantity) pair of a buy command.
type Request struct {
	ItemID   string
	Quantity int
}

// Line is one planned purchase line with its discount applied.
type Line struct {
	Item     store.ShopItem
	Scope    string
	Quantity int
	Discount float64
	Cost     int64
}

// Plan is a validated, priced purchase ready for execution.
type Plan struct {
	BuyerID      string
	GuildID      string
	Lines        []Line
	Total        int64
	NeedsConfirm bool
}

// Result reports what the execute step achieved.
type Result struct {
	Succeeded int
	Failed    int
	Refunded  int64
	Balance   int64
	Failures  []string
}

// Planner validates purchase requests and drives the rollback-safe
// execute sequence against the ledger and store.
type Planner struct {
	st      store.Store
	catalog *Catalog
	ledger  *economy.Ledger
	log     *slog.Logger
	now     func() time.Time
}

func NewPlanner(st store.Store, catalog *Catalog, ledger *economy.Ledger, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{st: st, catalog: catalog, ledger: ledger, log: logger, now: time.Now}
}

// singlePurchaseOnly reports whether the item is restricted to
// quantity 1 per request.
func singlePurchaseOnly(item store.ShopItem) bool {
	if item.Kind == store.KindRole || item.Kind == store.KindRod {
		return true
	}
	switch item.ID {
	case "vip", "color_role", "beginner_rod", "beginner_bait":
		return true
	}
	return strings.Contains(item.ID, "upgrade")
}

// bulkDiscount returns the discount fraction for one line. Quantities
// below 10 earn nothing; from 10 up the discount grows in 5% steps per
// five units, capped at 20%.
func bulkDiscount(quantity int) float64 {
	if quantity < 10 {
		return 0
	}
	return math.Min(0.20, 0.05*math.Floor(float64(quantity)/5))
}

// BuildPlan resolves and prices the request. Nothing is mutated; a plan
// that fails affordability is rejected outright.
func (p *Planner) BuildPlan(ctx context.Context, guildID, buyerID string, reqs []Request) (*Plan, error) {
	plan := &Plan{BuyerID: buyerID, GuildID: guildID}
	paidLines := 0
	for _, req := range reqs {
		if req.Quantity < 1 || req.Quantity > 100 {
			return nil, fmt.Errorf("%w: %s x%d", ErrQuantityRange, req.ItemID, req.Quantity)
		}
		item, scope, err := p.catalog.Resolve(ctx, guildID, req.ItemID)
		if err != nil {
			return nil, err
		}
		if err := p.catalog.CheckAvailable(ctx, buyerID, item); err != nil {
			return nil, err
		}
		if req.Quantity > 1 && singlePurchaseOnly(item) {
			return nil, fmt.Errorf("%w: %s", ErrSinglePurchase, item.ID)
		}
		discount := bulkDiscount(req.Quantity)
		cost := int64(math.Round(float64(item.Price) * float64(req.Quantity) * (1 - discount)))
		plan.Lines = append(plan.Lines, Line{
			Item:     item,
			Scope:    scope,
			Quantity: req.Quantity,
			Discount: discount,
			Cost:     cost,
		})
		plan.Total += cost
		if item.Price > 0 {
			paidLines++
		}
	}

	wallet, err := p.ledger.WalletBalance(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if wallet < plan.Total {
		return nil, fmt.Errorf("%w: need %d, have %d", store.ErrInsufficientFunds, plan.Total, wallet)
	}
	plan.NeedsConfirm = plan.Total > ConfirmTotalThreshold || paidLines > ConfirmLineThreshold
	return plan, nil
}

// Execute debits the full plan cost, performs every item add, and
// credits back the unit cost of each add that failed in a single
// refund at the end.
func (p *Planner) Execute(ctx context.Context, plan *Plan) (*Result, error) {
	if plan.Total > 0 {
		if _, err := p.ledger.DebitWallet(ctx, plan.BuyerID, plan.Total); err != nil {
			return nil, err
		}
	}

	res := &Result{}
	var refund int64
	for _, line := range plan.Lines {
		unitRefund := int64(math.Round(float64(line.Item.Price) * (1 - line.Discount)))
		for i := 0; i < line.Quantity; i++ {
			if err := p.addUnit(ctx, plan.BuyerID, line.Item); err != nil {
				p.log.Warn("purchase add failed",
					"buyer", plan.BuyerID, "item", line.Item.ID, "err", err)
				refund += unitRefund
				res.Failed++
				res.Failures = append(res.Failures, line.Item.ID)
				continue
			}
			res.Succeeded++
		}
	}

	if refund > 0 {
		if _, err := p.ledger.CreditWallet(ctx, plan.BuyerID, refund); err != nil {
			p.log.Error("purchase refund failed",
				"buyer", plan.BuyerID, "refund", refund, "err", err)
			return res, err
		}
		res.Refunded = refund
	}

	balance, err := p.ledger.WalletBalance(ctx, plan.BuyerID)
	if err != nil {
		return res, err
	}
	res.Balance = balance
	return res, nil
}

func (p *Planner) addUnit(ctx context.Context, buyerID string, item store.ShopItem) error {
	switch item.Kind {
	case store.KindRod:
		return p.st.AddRod(ctx, buyerID, store.Rod{
			ID:         item.ID,
			Name:       item.Name,
			Multiplier: item.Multiplier,
		})
	case store.KindBait:
		return p.st.AddBait(ctx, buyerID, store.BaitStack{
			ID:         item.ID,
			Name:       item.Name,
			Remaining:  item.BaitAmount,
			CatchRates: item.CatchRates,
		})
	case store.KindPotion:
		return p.st.AddPotion(ctx, buyerID, store.ActivePotion{
			ID:         uuid.NewString(),
			Name:       item.Name,
			BuffType:   item.BuffType,
			Multiplier: item.Multiplier,
			ExpiresAt:  p.now().Add(item.Duration),
		})
	case store.KindUpgrade:
		_, err := p.ledger.RaiseBankLimit(ctx, buyerID, item.LimitBoost)
		return err
	default:
		return p.st.PushInventory(ctx, buyerID, store.InventoryEntry{
			ItemID:      item.ID,
			Name:        item.Name,
			Kind:        item.Kind,
			Quantity:    1,
			Value:       item.Price,
			Description: item.Description,
		})
	}
}
