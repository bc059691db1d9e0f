package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"bronxbot/internal/economy"
	"bronxbot/internal/fishing"
	"bronxbot/internal/shop"
	"bronxbot/internal/store"
	"bronxbot/internal/trade"
)

// stubConfirmer answers every prompt the same way.
type stubConfirmer struct {
	answer bool
	asked  int
}

func (s *stubConfirmer) Await(_ context.Context, _, _, _ string, _ time.Duration) (bool, error) {
	s.asked++
	return s.answer, nil
}

func newRouter(t *testing.T, confirm *stubConfirmer) (*Router, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	if err := shop.SeedDefaults(context.Background(), st); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ledger := economy.NewLedger(st, nil)
	catalog := shop.NewCatalog(st)
	planner := shop.NewPlanner(st, catalog, ledger, nil)
	engine := trade.NewEngine(st, ledger, nil)
	fisher := fishing.NewFisher(st, ledger, nil)
	return NewRouter(st, ledger, catalog, planner, engine, fisher, confirm, nil, "."), st
}

func say(t *testing.T, r *Router, userID, guildID, content string, mentions ...string) (string, bool) {
	t.Helper()
	return r.Dispatch(context.Background(), Command{
		GuildID:   guildID,
		ChannelID: "chan",
		AuthorID:  userID,
		Mentions:  mentions,
	}, content)
}

func TestDispatchIgnoresNonCommands(t *testing.T) {
	r, _ := newRouter(t, &stubConfirmer{})
	if _, ok := say(t, r, "u1", "g1", "hello there"); ok {
		t.Fatalf("plain chat dispatched")
	}
	if _, ok := say(t, r, "u1", "g1", ".notacommand"); ok {
		t.Fatalf("unknown command dispatched")
	}
}

func TestCustomGuildPrefix(t *testing.T) {
	r, st := newRouter(t, &stubConfirmer{})
	ctx := context.Background()
	err := st.UpdateGuildSettings(ctx, store.GuildSettings{GuildID: "g1", Prefixes: []string{"!"}})
	if err != nil {
		t.Fatalf("settings: %v", err)
	}

	if _, ok := say(t, r, "u1", "g1", ".balance"); ok {
		t.Fatalf("default prefix should not work with custom prefix set")
	}
	reply, ok := say(t, r, "u1", "g1", "!balance")
	if !ok || !strings.Contains(reply, "Wallet") {
		t.Fatalf("custom prefix reply = %q ok=%v", reply, ok)
	}
}

func TestDepositWithdrawCommands(t *testing.T) {
	r, st := newRouter(t, &stubConfirmer{})
	ctx := context.Background()
	if _, err := st.ApplyDelta(ctx, "u1", store.Delta{Wallet: 500}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	reply, ok := say(t, r, "u1", "g1", ".deposit 200")
	if !ok || !strings.Contains(reply, "200") {
		t.Fatalf("deposit reply = %q", reply)
	}
	reply, _ = say(t, r, "u1", "g1", ".withdraw half")
	if !strings.Contains(reply, "100") {
		t.Fatalf("withdraw half reply = %q", reply)
	}
	acc, _ := st.ReadUser(ctx, "u1")
	if acc.Wallet != 400 || acc.Bank != 100 {
		t.Fatalf("balances = %d/%d, want 400/100", acc.Wallet, acc.Bank)
	}

	reply, _ = say(t, r, "u1", "g1", ".deposit nonsense")
	if !strings.Contains(reply, "valid amount") {
		t.Fatalf("bad amount reply = %q", reply)
	}
}

func TestPayCommand(t *testing.T) {
	r, st := newRouter(t, &stubConfirmer{})
	ctx := context.Background()
	if _, err := st.ApplyDelta(ctx, "u1", store.Delta{Wallet: 1000}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	reply, ok := say(t, r, "u1", "g1", ".pay <@u2> 250", "u2")
	if !ok || !strings.Contains(reply, "250") {
		t.Fatalf("pay reply = %q", reply)
	}
	u2, _ := st.ReadUser(ctx, "u2")
	if u2.Wallet != 250 {
		t.Fatalf("u2 wallet = %d", u2.Wallet)
	}
	stats, _ := st.GuildStats(ctx, "g1")
	if stats.Donated != 250 {
		t.Fatalf("donated stat = %d", stats.Donated)
	}
}

func TestBuyWithConfirmation(t *testing.T) {
	confirm := &stubConfirmer{answer: true}
	r, st := newRouter(t, confirm)
	ctx := context.Background()
	if _, err := st.ApplyDelta(ctx, "u1", store.Delta{Wallet: 20_000}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	reply, ok := say(t, r, "u1", "g1", ".buy vip 1 color_role 1")
	if !ok || !strings.Contains(reply, "Bought 2") {
		t.Fatalf("buy reply = %q", reply)
	}
	if confirm.asked != 1 {
		t.Fatalf("confirmation asked %d times, want 1", confirm.asked)
	}
	acc, _ := st.ReadUser(ctx, "u1")
	if acc.Wallet != 5_000 {
		t.Fatalf("wallet = %d, want 5000", acc.Wallet)
	}
}

func TestBuyDeclinedLeavesWallet(t *testing.T) {
	confirm := &stubConfirmer{answer: false}
	r, st := newRouter(t, confirm)
	ctx := context.Background()
	if _, err := st.ApplyDelta(ctx, "u1", store.Delta{Wallet: 20_000}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	reply, _ := say(t, r, "u1", "g1", ".buy vip 1 color_role 1")
	if !strings.Contains(reply, "cancelled") {
		t.Fatalf("declined reply = %q", reply)
	}
	acc, _ := st.ReadUser(ctx, "u1")
	if acc.Wallet != 20_000 {
		t.Fatalf("wallet changed on declined purchase: %d", acc.Wallet)
	}
}

func TestSinglePurchaseReply(t *testing.T) {
	r, st := newRouter(t, &stubConfirmer{answer: true})
	if _, err := st.ApplyDelta(context.Background(), "u1", store.Delta{Wallet: 30_000}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	reply, _ := say(t, r, "u1", "g1", ".buy vip 2")
	if !strings.Contains(strings.ToLower(reply), "once per request") {
		t.Fatalf("single purchase reply = %q", reply)
	}
}

func TestTradeCommandFlow(t *testing.T) {
	r, st := newRouter(t, &stubConfirmer{})
	ctx := context.Background()
	if err := st.PushInventory(ctx, "u1", store.InventoryEntry{ItemID: "gold_trophy", Name: "Gold Trophy", Quantity: 2, Value: 25_000}); err != nil {
		t.Fatalf("seed inv: %v", err)
	}
	if _, err := st.ApplyDelta(ctx, "u2", store.Delta{Wallet: 30_000}); err != nil {
		t.Fatalf("seed wallet: %v", err)
	}

	if reply, _ := say(t, r, "u1", "g1", ".trade offer <@u2>", "u2"); !strings.Contains(reply, "opened") {
		t.Fatalf("offer reply = %q", reply)
	}
	if reply, _ := say(t, r, "u1", "g1", ".trade add item gold_trophy 1"); !strings.Contains(reply, "gold_trophy") {
		t.Fatalf("add item reply = %q", reply)
	}
	if reply, _ := say(t, r, "u1", "g1", ".trade send"); !strings.Contains(reply, "sent") {
		t.Fatalf("send reply = %q", reply)
	}
	if reply, _ := say(t, r, "u2", "g1", ".trade add money 25000"); !strings.Contains(reply, "25,000") {
		t.Fatalf("add money reply = %q", reply)
	}
	if reply, _ := say(t, r, "u1", "g1", ".trade confirm"); !strings.Contains(reply, "Waiting") {
		t.Fatalf("first confirm reply = %q", reply)
	}
	if reply, _ := say(t, r, "u2", "g1", ".trade confirm"); !strings.Contains(reply, "completed") {
		t.Fatalf("second confirm reply = %q", reply)
	}

	u1, _ := st.ReadUser(ctx, "u1")
	if u1.Wallet != 25_000 {
		t.Fatalf("u1 wallet = %d, want 25000", u1.Wallet)
	}
	inv, _ := st.Inventory(ctx, "u2")
	if len(inv) != 1 || inv[0].Quantity != 1 {
		t.Fatalf("u2 inventory = %+v", inv)
	}
}

func TestFishAndSellCommands(t *testing.T) {
	r, st := newRouter(t, &stubConfirmer{answer: true})
	ctx := context.Background()
	if _, err := st.ApplyDelta(ctx, "u1", store.Delta{Wallet: 100}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// buy starter gear and bait through the shop
	if reply, _ := say(t, r, "u1", "g1", ".buy beginner_rod 1"); !strings.Contains(reply, "Bought") {
		t.Fatalf("rod buy reply = %q", reply)
	}
	if reply, _ := say(t, r, "u1", "g1", ".buy pro_bait 1"); !strings.Contains(reply, "Bought") {
		t.Fatalf("bait buy reply = %q", reply)
	}

	reply, ok := say(t, r, "u1", "g1", ".fish")
	if !ok || !strings.Contains(reply, "caught") {
		t.Fatalf("fish reply = %q", reply)
	}
	reply, _ = say(t, r, "u1", "g1", ".sell all")
	if !strings.Contains(reply, "Sold 1") {
		t.Fatalf("sell reply = %q", reply)
	}
	acc, _ := st.ReadUser(ctx, "u1")
	if acc.Wallet <= 50 {
		t.Fatalf("wallet after selling = %d, want more than 50", acc.Wallet)
	}
}

func TestFrozenAccountReply(t *testing.T) {
	r, st := newRouter(t, &stubConfirmer{})
	ctx := context.Background()
	if _, err := st.ApplyDelta(ctx, "u1", store.Delta{Wallet: 100}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := st.SetFrozen(ctx, "u1", true); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	reply, _ := say(t, r, "u1", "g1", ".deposit 50")
	if !strings.Contains(reply, "frozen") {
		t.Fatalf("frozen reply = %q", reply)
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-4500, "-4,500"},
	}
	for _, tc := range tests {
		if got := formatMoney(tc.in); got != tc.want {
			t.Fatalf("formatMoney(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
