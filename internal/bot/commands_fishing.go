package bot

import (
	"context"
	"fmt"
	"strings"
)

func (r *Router) cmdFish(ctx context.Context, cmd Command) (string, error) {
	gear, err := r.st.FishingGear(ctx, cmd.AuthorID)
	if err != nil {
		return "", err
	}
	rodID := ""
	if len(gear.Rods) > 0 {
		rodID = gear.Rods[len(gear.Rods)-1].ID
	}
	baitID := ""
	if len(gear.Bait) > 0 {
		baitID = gear.Bait[0].ID
	}
	if len(cmd.Args) > 0 {
		rodID = strings.ToLower(cmd.Args[0])
	}
	if len(cmd.Args) > 1 {
		baitID = strings.ToLower(cmd.Args[1])
	}

	c, err := r.fisher.Fish(ctx, cmd.AuthorID, rodID, baitID)
	if err != nil {
		return "", err
	}
	prefix := ""
	switch c.Type {
	case "rare":
		prefix = "Rare catch! "
	case "event":
		prefix = "Event catch!! "
	case "mutated":
		prefix = "MUTATED catch!!! "
	}
	return fmt.Sprintf("%sYou caught a **%s** worth %s. `sell %s` to cash in.",
		prefix, c.Name, formatMoney(c.Value), c.ID[:8]), nil
}

func (r *Router) cmdCatches(ctx context.Context, cmd Command) (string, error) {
	catches, err := r.st.Catches(ctx, cmd.AuthorID)
	if err != nil {
		return "", err
	}
	if len(catches) == 0 {
		return "Your bucket is empty. Go `fish`!", nil
	}
	var b strings.Builder
	b.WriteString("**Your bucket**\n")
	var total int64
	for _, c := range catches {
		fmt.Fprintf(&b, "`%s` %s (%s) — %s\n", c.ID[:8], c.Name, c.Type, formatMoney(c.Value))
		total += c.Value
	}
	fmt.Fprintf(&b, "Total value: %s. `sell all` to sell everything.", formatMoney(total))
	return b.String(), nil
}

func (r *Router) cmdSell(ctx context.Context, cmd Command) (string, error) {
	if len(cmd.Args) < 1 {
		return "Usage: `sell <catch-id>|all`", nil
	}
	if strings.EqualFold(cmd.Args[0], "all") {
		total, sold, err := r.fisher.SellAll(ctx, cmd.AuthorID)
		if err != nil {
			return "", err
		}
		if sold == 0 {
			return "Nothing to sell.", nil
		}
		if cmd.GuildID != "" {
			_ = r.st.BumpStat(ctx, cmd.GuildID, "gained", total)
		}
		return fmt.Sprintf("Sold %d fish for **%s**.", sold, formatMoney(total)), nil
	}

	// accept the short id shown in the catch list
	catches, err := r.st.Catches(ctx, cmd.AuthorID)
	if err != nil {
		return "", err
	}
	want := strings.ToLower(cmd.Args[0])
	for _, c := range catches {
		if c.ID == want || strings.HasPrefix(c.ID, want) {
			v, err := r.fisher.Sell(ctx, cmd.AuthorID, c.ID)
			if err != nil {
				return "", err
			}
			if cmd.GuildID != "" {
				_ = r.st.BumpStat(ctx, cmd.GuildID, "gained", v)
			}
			return fmt.Sprintf("Sold %s for **%s**.", c.Name, formatMoney(v)), nil
		}
	}
	return "No catch with that id.", nil
}
