package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bronxbot/internal/config"
	"bronxbot/internal/economy"
	"bronxbot/internal/shop"
	"bronxbot/internal/store"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
)

func main() {
	root := &cobra.Command{
		Use:          "bronxctl",
		Short:        "BronxBot operator tooling",
		SilenceUsage: true,
	}

	root.AddCommand(
		newShopCmd(),
		newAccountCmd(),
		newTradeCmd(),
	)

	if err := root.Execute(); err != nil {
		danger.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// withStore connects, runs fn, and tears down.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, st *store.Postgres) error) error {
	cfg, err := config.LoadCTLFromEnv()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	st, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, st)
}

func newShopCmd() *cobra.Command {
	shopCmd := &cobra.Command{
		Use:   "shop",
		Short: "Shop catalog management",
	}
	shopCmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Load the default fishing, general and seasonal catalogs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, st *store.Postgres) error {
				if err := st.Migrate(ctx); err != nil {
					return err
				}
				if err := shop.SeedDefaults(ctx, st); err != nil {
					return err
				}
				success.Println("default catalogs seeded")
				return nil
			})
		},
	})
	return shopCmd
}

func newAccountCmd() *cobra.Command {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Inspect and adjust user accounts",
	}
	accountCmd.AddCommand(
		&cobra.Command{
			Use:   "show <user-id>",
			Short: "Print an account",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, func(ctx context.Context, st *store.Postgres) error {
					acc, err := st.ReadUser(ctx, args[0])
					if err != nil {
						return err
					}
					accent.Printf("user %s\n", acc.UserID)
					fmt.Printf("  wallet:         %d\n", acc.Wallet)
					fmt.Printf("  bank:           %d / %d\n", acc.Bank, acc.BankLimit)
					fmt.Printf("  interest level: %d\n", acc.InterestLevel)
					if acc.Frozen {
						danger.Println("  FROZEN pending operator review")
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "credit <user-id> <amount>",
			Short: "Credit a wallet (operator compensation)",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				amount, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil || amount <= 0 {
					return fmt.Errorf("amount must be a positive integer")
				}
				return withStore(cmd, func(ctx context.Context, st *store.Postgres) error {
					ledger := economy.NewLedger(st, nil)
					acc, err := ledger.CreditWallet(ctx, args[0], amount)
					if err != nil {
						return err
					}
					success.Printf("credited %d, wallet now %d\n", amount, acc.Wallet)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "freeze <user-id>",
			Short: "Freeze an account",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, func(ctx context.Context, st *store.Postgres) error {
					if err := st.SetFrozen(ctx, args[0], true); err != nil {
						return err
					}
					warn.Printf("account %s frozen\n", args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "unfreeze <user-id>",
			Short: "Clear the frozen flag after reviewing an incident",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, func(ctx context.Context, st *store.Postgres) error {
					if err := st.SetFrozen(ctx, args[0], false); err != nil {
						return err
					}
					success.Printf("account %s unfrozen\n", args[0])
					return nil
				})
			},
		},
	)
	return accountCmd
}

func newTradeCmd() *cobra.Command {
	var limit int
	tradeCmd := &cobra.Command{
		Use:   "trade",
		Short: "Trade audit history",
	}
	historyCmd := &cobra.Command{
		Use:   "history [user-id]",
		Short: "Print recent trade records",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := ""
			if len(args) > 0 {
				userID = args[0]
			}
			return withStore(cmd, func(ctx context.Context, st *store.Postgres) error {
				recs, err := st.TradeRecords(ctx, userID, limit)
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					warn.Println("no trade records")
					return nil
				}
				for _, rec := range recs {
					accent.Printf("%s  %s\n", rec.TradeID, rec.CompletedAt.Format(time.RFC3339))
					fmt.Printf("  %s gave %d in value (items %d, money %d)\n",
						rec.InitiatorID, rec.InitiatorValue, len(rec.InitiatorItems), rec.InitiatorCurrency)
					fmt.Printf("  %s gave %d in value (items %d, money %d)\n",
						rec.TargetID, rec.TargetValue, len(rec.TargetItems), rec.TargetCurrency)
				}
				return nil
			})
		},
	}
	historyCmd.Flags().IntVar(&limit, "limit", 20, "maximum records to print")
	tradeCmd.AddCommand(historyCmd)
	return tradeCmd
}
