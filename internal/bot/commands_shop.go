package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"bronxbot/internal/shop"
	"bronxbot/internal/store"
)

func (r *Router) cmdShop(ctx context.Context, cmd Command) (string, error) {
	scope := shop.ScopeGeneral
	if len(cmd.Args) > 0 {
		switch strings.ToLower(cmd.Args[0]) {
		case "fishing":
			scope = shop.ScopeFishing
		case "seasonal":
			scope = shop.ScopeSeasonal
		case "server", "guild":
			if cmd.GuildID == "" {
				return "Server shops only exist in a server.", nil
			}
			scope = cmd.GuildID
		}
	}
	items, err := r.catalog.List(ctx, scope)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "Nothing for sale here right now.", nil
	}
	var b strings.Builder
	b.WriteString("**Shop**\n")
	for _, item := range items {
		price := "free"
		if item.Price > 0 {
			price = formatMoney(item.Price)
		}
		fmt.Fprintf(&b, "`%s` — %s (%s): %s\n", item.ID, item.Name, price, item.Description)
	}
	return b.String(), nil
}

// parseBuyArgs turns "pro_bait 10 vip" into request pairs. A missing
// quantity means 1.
func parseBuyArgs(args []string) []shop.Request {
	var reqs []shop.Request
	for i := 0; i < len(args); i++ {
		req := shop.Request{ItemID: strings.ToLower(args[i]), Quantity: 1}
		if i+1 < len(args) {
			if q, err := strconv.Atoi(args[i+1]); err == nil {
				req.Quantity = q
				i++
			}
		}
		reqs = append(reqs, req)
	}
	return reqs
}

func (r *Router) cmdBuy(ctx context.Context, cmd Command) (string, error) {
	if len(cmd.Args) < 1 {
		return "Usage: `buy <item> [n] [<item> [n] ...]`", nil
	}
	plan, err := r.planner.BuildPlan(ctx, cmd.GuildID, cmd.AuthorID, parseBuyArgs(cmd.Args))
	if err != nil {
		return "", err
	}

	if plan.NeedsConfirm {
		prompt := fmt.Sprintf("This purchase costs **%s** across %d lines. Confirm?",
			formatMoney(plan.Total), len(plan.Lines))
		ok, err := r.confirm.Await(ctx, cmd.ChannelID, cmd.AuthorID, prompt, shop.ConfirmTimeout)
		if err != nil {
			return "", err
		}
		if !ok {
			return "Purchase cancelled.", nil
		}
	}

	res, err := r.planner.Execute(ctx, plan)
	if err != nil {
		return "", err
	}
	reply := fmt.Sprintf("Bought %d item(s) for **%s**. Wallet: %s",
		res.Succeeded, formatMoney(plan.Total-res.Refunded), formatMoney(res.Balance))
	if res.Failed > 0 {
		reply += fmt.Sprintf("\n%d item(s) failed and were refunded (%s): %s",
			res.Failed, formatMoney(res.Refunded), strings.Join(res.Failures, ", "))
	}
	return reply, nil
}

func (r *Router) cmdInventory(ctx context.Context, cmd Command) (string, error) {
	inv, err := r.st.Inventory(ctx, cmd.AuthorID)
	if err != nil {
		return "", err
	}
	gear, err := r.st.FishingGear(ctx, cmd.AuthorID)
	if err != nil {
		return "", err
	}
	if len(inv) == 0 && len(gear.Rods) == 0 && len(gear.Bait) == 0 {
		return "Your pockets are empty.", nil
	}
	var b strings.Builder
	b.WriteString("**Inventory**\n")
	for _, entry := range inv {
		fmt.Fprintf(&b, "`%s` ×%d — %s\n", entry.ItemID, entry.Quantity, entry.Name)
	}
	for _, rod := range gear.Rods {
		fmt.Fprintf(&b, "`%s` — %s (rod, ×%.1f)\n", rod.ID, rod.Name, rod.Multiplier)
	}
	for _, bait := range gear.Bait {
		fmt.Fprintf(&b, "`%s` — %s (bait, %d left)\n", bait.ID, bait.Name, bait.Remaining)
	}
	return b.String(), nil
}

// cmdUse consumes one inventory item. Potion entries acquired through
// trades activate on use; anything else just gets flavor text.
func (r *Router) cmdUse(ctx context.Context, cmd Command) (string, error) {
	if len(cmd.Args) < 1 {
		return "Usage: `use <item>`", nil
	}
	itemID := strings.ToLower(cmd.Args[0])
	inv, err := r.st.Inventory(ctx, cmd.AuthorID)
	if err != nil {
		return "", err
	}
	var entry *store.InventoryEntry
	for i := range inv {
		if inv[i].ItemID == itemID {
			entry = &inv[i]
			break
		}
	}
	if entry == nil {
		return "", fmt.Errorf("%w: you do not own %s", store.ErrInsufficientItems, itemID)
	}

	if entry.Kind == store.KindPotion {
		item, _, err := r.catalog.Resolve(ctx, cmd.GuildID, itemID)
		if err != nil {
			return "", err
		}
		if err := r.st.PopInventory(ctx, cmd.AuthorID, itemID, 1); err != nil {
			return "", err
		}
		pot := store.ActivePotion{
			ID:         uuid.NewString(),
			Name:       item.Name,
			BuffType:   item.BuffType,
			Multiplier: item.Multiplier,
			ExpiresAt:  timeNow().Add(item.Duration),
		}
		if err := r.st.AddPotion(ctx, cmd.AuthorID, pot); err != nil {
			// put the potion back rather than eat it silently
			_ = r.st.PushInventory(ctx, cmd.AuthorID, store.InventoryEntry{
				ItemID: entry.ItemID, Name: entry.Name, Kind: entry.Kind, Quantity: 1, Value: entry.Value,
			})
			return "", err
		}
		return fmt.Sprintf("You drank the %s. Buff active until it wears off.", item.Name), nil
	}

	if err := r.st.PopInventory(ctx, cmd.AuthorID, itemID, 1); err != nil {
		return "", err
	}
	return fmt.Sprintf("You used the %s. Nothing obvious happened.", entry.Name), nil
}
