package bot

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"bronxbot/internal/economy"
)

// targetUser picks the mentioned user, or falls back to a raw id
// argument, or the author.
func targetUser(cmd Command, argIndex int) string {
	if len(cmd.Mentions) > 0 {
		return cmd.Mentions[0]
	}
	if len(cmd.Args) > argIndex {
		return strings.Trim(cmd.Args[argIndex], "<@!>")
	}
	return cmd.AuthorID
}

func (r *Router) cmdBalance(ctx context.Context, cmd Command) (string, error) {
	userID := targetUser(cmd, 0)
	acc, err := r.ledger.Account(ctx, userID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Wallet: **%s** | Bank: **%s** / %s",
		formatMoney(acc.Wallet), formatMoney(acc.Bank), formatMoney(acc.BankLimit)), nil
}

func (r *Router) cmdDeposit(ctx context.Context, cmd Command) (string, error) {
	if len(cmd.Args) < 1 {
		return "Usage: `deposit <amount>`", nil
	}
	wallet, err := r.ledger.WalletBalance(ctx, cmd.AuthorID)
	if err != nil {
		return "", err
	}
	amount, err := economy.ResolveAmount(cmd.Args[0], wallet)
	if err != nil {
		return "", err
	}
	acc, err := r.ledger.Deposit(ctx, cmd.AuthorID, amount)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Deposited **%s**. Bank: %s / %s",
		formatMoney(amount), formatMoney(acc.Bank), formatMoney(acc.BankLimit)), nil
}

func (r *Router) cmdWithdraw(ctx context.Context, cmd Command) (string, error) {
	if len(cmd.Args) < 1 {
		return "Usage: `withdraw <amount>`", nil
	}
	bank, err := r.ledger.BankBalance(ctx, cmd.AuthorID)
	if err != nil {
		return "", err
	}
	amount, err := economy.ResolveAmount(cmd.Args[0], bank)
	if err != nil {
		return "", err
	}
	acc, err := r.ledger.Withdraw(ctx, cmd.AuthorID, amount)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Withdrew **%s**. Wallet: %s", formatMoney(amount), formatMoney(acc.Wallet)), nil
}

func (r *Router) cmdPay(ctx context.Context, cmd Command) (string, error) {
	if len(cmd.Mentions) < 1 || len(cmd.Args) < 2 {
		return "Usage: `pay <user> <amount>`", nil
	}
	toID := cmd.Mentions[0]
	wallet, err := r.ledger.WalletBalance(ctx, cmd.AuthorID)
	if err != nil {
		return "", err
	}
	amount, err := economy.ResolveAmount(cmd.Args[len(cmd.Args)-1], wallet)
	if err != nil {
		return "", err
	}
	if err := r.ledger.Transfer(ctx, cmd.AuthorID, toID, amount); err != nil {
		return "", err
	}
	if cmd.GuildID != "" {
		_ = r.st.BumpStat(ctx, cmd.GuildID, "donated", amount)
	}
	return fmt.Sprintf("Sent **%s** to <@%s>.", formatMoney(amount), toID), nil
}

func (r *Router) cmdWork(ctx context.Context, cmd Command) (string, error) {
	earned := int64(50 + rand.Intn(151))
	if _, err := r.ledger.CreditWallet(ctx, cmd.AuthorID, earned); err != nil {
		return "", err
	}
	if cmd.GuildID != "" {
		_ = r.st.BumpStat(ctx, cmd.GuildID, "gained", earned)
	}
	return fmt.Sprintf("You worked hard and earned **%s**.", formatMoney(earned)), nil
}

func (r *Router) cmdDaily(ctx context.Context, cmd Command) (string, error) {
	const daily = 500
	if _, err := r.ledger.CreditWallet(ctx, cmd.AuthorID, daily); err != nil {
		return "", err
	}
	if cmd.GuildID != "" {
		_ = r.st.BumpStat(ctx, cmd.GuildID, "gained", daily)
	}
	return fmt.Sprintf("Daily reward: **%s**.", formatMoney(int64(daily))), nil
}

func (r *Router) cmdBeg(ctx context.Context, cmd Command) (string, error) {
	if rand.Intn(100) < 30 {
		return "Nobody gave you anything. Tough crowd.", nil
	}
	earned := int64(1 + rand.Intn(100))
	if _, err := r.ledger.CreditWallet(ctx, cmd.AuthorID, earned); err != nil {
		return "", err
	}
	return fmt.Sprintf("Someone took pity and gave you **%s**.", formatMoney(earned)), nil
}

func (r *Router) cmdRob(ctx context.Context, cmd Command) (string, error) {
	if len(cmd.Mentions) < 1 {
		return "Usage: `rob <user>`", nil
	}
	victimID := cmd.Mentions[0]
	if victimID == cmd.AuthorID {
		return "Robbing yourself is just moving money between pockets.", nil
	}
	victimWallet, err := r.ledger.WalletBalance(ctx, victimID)
	if err != nil {
		return "", err
	}
	if victimWallet < 100 {
		return "They're too broke to be worth robbing.", nil
	}
	if rand.Intn(100) < 60 {
		// failed attempt costs the robber
		fine := int64(100)
		if _, err := r.ledger.DebitWallet(ctx, cmd.AuthorID, fine); err != nil {
			return "You got caught, and you couldn't even pay the fine.", nil
		}
		if cmd.GuildID != "" {
			_ = r.st.BumpStat(ctx, cmd.GuildID, "lost", fine)
		}
		return fmt.Sprintf("You got caught and paid a **%s** fine.", formatMoney(fine)), nil
	}
	take := victimWallet / 10
	if take < 1 {
		take = 1
	}
	if err := r.ledger.Transfer(ctx, victimID, cmd.AuthorID, take); err != nil {
		return "", err
	}
	return fmt.Sprintf("You robbed <@%s> for **%s**!", victimID, formatMoney(take)), nil
}

func (r *Router) cmdInterest(ctx context.Context, cmd Command) (string, error) {
	if len(cmd.Args) > 0 && strings.EqualFold(cmd.Args[0], "upgrade") {
		acc, err := r.ledger.UpgradeInterest(ctx, cmd.AuthorID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Interest level is now **%d**. Next upgrade costs %s.",
			acc.InterestLevel, formatMoney(economy.UpgradeInterestCost(acc.InterestLevel))), nil
	}
	acc, err := r.ledger.Account(ctx, cmd.AuthorID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Interest level **%d**. Upgrade costs %s (`interest upgrade`).",
		acc.InterestLevel, formatMoney(economy.UpgradeInterestCost(acc.InterestLevel))), nil
}

func (r *Router) cmdLeaderboard(ctx context.Context, cmd Command) (string, error) {
	accounts, err := r.st.TopAccounts(ctx, 10)
	if err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		return "Nobody has any money yet.", nil
	}
	var b strings.Builder
	b.WriteString("**Richest users**\n")
	for i, acc := range accounts {
		fmt.Fprintf(&b, "%d. <@%s> — %s\n", i+1, acc.UserID, formatMoney(acc.Wallet+acc.Bank))
	}
	return b.String(), nil
}

func (r *Router) cmdStats(ctx context.Context, cmd Command) (string, error) {
	if cmd.GuildID == "" {
		return "Stats only work in a server.", nil
	}
	st, err := r.st.GuildStats(ctx, cmd.GuildID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Messages: %s | Gained: %s | Lost: %s | Donated: %s | Giveaways won: %s",
		formatMoney(st.Messages), formatMoney(st.Gained), formatMoney(st.Lost),
		formatMoney(st.Donated), formatMoney(st.GiveawayWon)), nil
}
