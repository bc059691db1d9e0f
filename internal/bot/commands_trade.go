package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"bronxbot/internal/economy"
	"bronxbot/internal/store"
	"bronxbot/internal/trade"
)

func (r *Router) cmdTrade(ctx context.Context, cmd Command) (string, error) {
	if len(cmd.Args) < 1 {
		return "Usage: `trade offer|add|remove|show|send|confirm|cancel|history|stats`", nil
	}
	sub := strings.ToLower(cmd.Args[0])
	rest := cmd.Args[1:]
	switch sub {
	case "offer":
		return r.tradeOffer(ctx, cmd)
	case "add":
		return r.tradeAdd(ctx, cmd, rest)
	case "remove":
		return r.tradeRemove(ctx, cmd, rest)
	case "show":
		return r.tradeShow(ctx, cmd)
	case "send":
		return r.tradeSend(ctx, cmd)
	case "confirm":
		return r.tradeConfirm(ctx, cmd)
	case "cancel":
		return r.tradeCancel(ctx, cmd)
	case "history":
		return r.tradeHistory(ctx, cmd)
	case "stats":
		return r.tradeStats(ctx, cmd)
	default:
		return fmt.Sprintf("Unknown trade subcommand `%s`.", sub), nil
	}
}

func (r *Router) tradeOffer(ctx context.Context, cmd Command) (string, error) {
	if len(cmd.Mentions) < 1 {
		return "Usage: `trade offer <user>`", nil
	}
	o, err := r.engine.Open(ctx, cmd.GuildID, cmd.AuthorID, cmd.Mentions[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Trade `%s` opened with <@%s>. Add items with `trade add item <id> [n]` or money with `trade add money <n>`.",
		o.ID, o.TargetID), nil
}

func (r *Router) tradeAdd(ctx context.Context, cmd Command, args []string) (string, error) {
	if len(args) < 2 {
		return "Usage: `trade add item <id> [n]` or `trade add money <n>`", nil
	}
	switch strings.ToLower(args[0]) {
	case "money":
		wallet, err := r.ledger.WalletBalance(ctx, cmd.AuthorID)
		if err != nil {
			return "", err
		}
		amount, err := economy.ResolveAmount(args[1], wallet)
		if err != nil {
			return "", err
		}
		o, err := r.engine.AddCurrency(ctx, cmd.AuthorID, amount)
		if err != nil {
			return "", err
		}
		return r.offerSummary(o, cmd.AuthorID), nil
	case "item":
		qty := 1
		if len(args) > 2 {
			q, err := strconv.Atoi(args[2])
			if err != nil {
				return "", economy.ErrInvalidAmount
			}
			qty = q
		}
		o, err := r.engine.AddItem(ctx, cmd.AuthorID, strings.ToLower(args[1]), qty)
		if err != nil {
			return "", err
		}
		return r.offerSummary(o, cmd.AuthorID), nil
	default:
		return "You can add `item` or `money`.", nil
	}
}

func (r *Router) tradeRemove(ctx context.Context, cmd Command, args []string) (string, error) {
	if len(args) < 2 {
		return "Usage: `trade remove item <id> [n]` or `trade remove money <n>`", nil
	}
	switch strings.ToLower(args[0]) {
	case "money":
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return "", economy.ErrInvalidAmount
		}
		o, err := r.engine.RemoveCurrency(ctx, cmd.AuthorID, amount)
		if err != nil {
			return "", err
		}
		return r.offerSummary(o, cmd.AuthorID), nil
	case "item":
		qty := 1
		if len(args) > 2 {
			q, err := strconv.Atoi(args[2])
			if err != nil {
				return "", economy.ErrInvalidAmount
			}
			qty = q
		}
		o, err := r.engine.RemoveItem(ctx, cmd.AuthorID, strings.ToLower(args[1]), qty)
		if err != nil {
			return "", err
		}
		return r.offerSummary(o, cmd.AuthorID), nil
	default:
		return "You can remove `item` or `money`.", nil
	}
}

func sideLines(b *strings.Builder, label, userID string, items []store.InventoryEntry, currency int64) {
	fmt.Fprintf(b, "%s (<@%s>):\n", label, userID)
	if len(items) == 0 && currency == 0 {
		b.WriteString("  nothing yet\n")
		return
	}
	for _, it := range items {
		fmt.Fprintf(b, "  `%s` ×%d\n", it.ItemID, it.Quantity)
	}
	if currency > 0 {
		fmt.Fprintf(b, "  money: %s\n", formatMoney(currency))
	}
}

func (r *Router) offerSummary(o trade.Offer, viewerID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Trade `%s`** (%s)\n", o.ID, o.Status)
	sideLines(&b, "Offering", o.InitiatorID, o.InitiatorItems, o.InitiatorCurrency)
	sideLines(&b, "For", o.TargetID, o.TargetItems, o.TargetCurrency)
	v1 := o.InitiatorCurrency
	for _, it := range o.InitiatorItems {
		v1 += it.Value * int64(it.Quantity)
	}
	v2 := o.TargetCurrency
	for _, it := range o.TargetItems {
		v2 += it.Value * int64(it.Quantity)
	}
	if !trade.Balanced(v1, v2) {
		b.WriteString("⚠ This trade looks unbalanced. Double-check before confirming.\n")
	}
	return b.String()
}

func (r *Router) tradeShow(ctx context.Context, cmd Command) (string, error) {
	o, err := r.engine.Show(cmd.AuthorID)
	if err != nil {
		return "", err
	}
	return r.offerSummary(o, cmd.AuthorID), nil
}

func (r *Router) tradeSend(ctx context.Context, cmd Command) (string, error) {
	o, err := r.engine.Send(ctx, cmd.AuthorID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Trade `%s` sent to <@%s>. Both of you: `trade confirm` within 5 minutes.", o.ID, o.TargetID), nil
}

func (r *Router) tradeConfirm(ctx context.Context, cmd Command) (string, error) {
	o, done, err := r.engine.Confirm(ctx, cmd.AuthorID)
	if err != nil {
		if done {
			return fmt.Sprintf("Trade `%s` went through, but recording it failed. Staff have been notified.", o.ID), nil
		}
		return "", err
	}
	if !done {
		return fmt.Sprintf("Confirmation recorded for trade `%s`. Waiting on the other side.", o.ID), nil
	}
	return fmt.Sprintf("Trade `%s` completed. Pleasure doing business.", o.ID), nil
}

func (r *Router) tradeCancel(ctx context.Context, cmd Command) (string, error) {
	if err := r.engine.Cancel(ctx, cmd.AuthorID); err != nil {
		return "", err
	}
	return "Trade cancelled.", nil
}

func (r *Router) tradeHistory(ctx context.Context, cmd Command) (string, error) {
	userID := targetUser(cmd, 0)
	recs, err := r.engine.History(ctx, userID, 5)
	if err != nil {
		return "", err
	}
	if len(recs) == 0 {
		return "No completed trades.", nil
	}
	var b strings.Builder
	b.WriteString("**Recent trades**\n")
	for _, rec := range recs {
		fmt.Fprintf(&b, "`%s` <@%s> ⇄ <@%s> (%s vs %s) at %s\n",
			rec.TradeID, rec.InitiatorID, rec.TargetID,
			formatMoney(rec.InitiatorValue), formatMoney(rec.TargetValue),
			rec.CompletedAt.Format("2006-01-02 15:04"))
	}
	return b.String(), nil
}

func (r *Router) tradeStats(ctx context.Context, cmd Command) (string, error) {
	userID := targetUser(cmd, 0)
	s, err := r.engine.Stats(ctx, userID)
	if err != nil {
		return "", err
	}
	if s.Trades == 0 {
		return "No completed trades.", nil
	}
	return fmt.Sprintf("<@%s>: %d trades, gave %s, received %s, %d balanced.",
		userID, s.Trades, formatMoney(s.ValueGiven), formatMoney(s.ValueReceived), s.Balanced), nil
}
