package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"bronxbot/internal/economy"
	"bronxbot/internal/fishing"
	"bronxbot/internal/shop"
	"bronxbot/internal/store"
	"bronxbot/internal/trade"
)

// swapped in tests
var timeNow = time.Now

var commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bronxbot_commands_total",
	Help: "Commands dispatched, by command name and outcome.",
}, []string{"command", "outcome"})

// Confirmer asks a user for an explicit yes/no through the chat
// surface. A timeout resolves to false.
type Confirmer interface {
	Await(ctx context.Context, channelID, userID, prompt string, timeout time.Duration) (bool, error)
}

// Command is an invocation context stripped of transport details so
// handlers can be exercised without a live gateway.
type Command struct {
	GuildID   string
	ChannelID string
	AuthorID  string
	Args      []string
	Mentions  []string
}

type handlerFunc func(ctx context.Context, cmd Command) (string, error)

// Router parses prefixed commands and dispatches them to handlers.
// Every command resolves to exactly one reply string.
type Router struct {
	st            store.Store
	ledger        *economy.Ledger
	catalog       *shop.Catalog
	planner       *shop.Planner
	engine        *trade.Engine
	fisher        *fishing.Fisher
	confirm       Confirmer
	log           *slog.Logger
	defaultPrefix string

	commands map[string]handlerFunc
}

func NewRouter(
	st store.Store,
	ledger *economy.Ledger,
	catalog *shop.Catalog,
	planner *shop.Planner,
	engine *trade.Engine,
	fisher *fishing.Fisher,
	confirm Confirmer,
	logger *slog.Logger,
	defaultPrefix string,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultPrefix == "" {
		defaultPrefix = "."
	}
	r := &Router{
		st:            st,
		ledger:        ledger,
		catalog:       catalog,
		planner:       planner,
		engine:        engine,
		fisher:        fisher,
		confirm:       confirm,
		log:           logger,
		defaultPrefix: defaultPrefix,
	}
	r.commands = map[string]handlerFunc{
		"balance":     r.cmdBalance,
		"deposit":     r.cmdDeposit,
		"withdraw":    r.cmdWithdraw,
		"pay":         r.cmdPay,
		"work":        r.cmdWork,
		"daily":       r.cmdDaily,
		"beg":         r.cmdBeg,
		"rob":         r.cmdRob,
		"interest":    r.cmdInterest,
		"leaderboard": r.cmdLeaderboard,
		"stats":       r.cmdStats,
		"shop":        r.cmdShop,
		"buy":         r.cmdBuy,
		"inventory":   r.cmdInventory,
		"use":         r.cmdUse,
		"fish":        r.cmdFish,
		"catches":     r.cmdCatches,
		"sell":        r.cmdSell,
		"trade":       r.cmdTrade,
	}
	return r
}

// prefixes returns the guild's configured prefixes, or the default for
// DMs and unconfigured guilds.
func (r *Router) prefixes(ctx context.Context, guildID string) []string {
	if guildID == "" {
		return []string{r.defaultPrefix}
	}
	gs, err := r.st.GuildSettings(ctx, guildID)
	if err != nil || len(gs.Prefixes) == 0 {
		return []string{r.defaultPrefix}
	}
	return gs.Prefixes
}

// Dispatch routes one raw message. The bool is false when the message
// is not a command for us.
func (r *Router) Dispatch(ctx context.Context, cmd Command, content string) (string, bool) {
	var body string
	matched := false
	for _, prefix := range r.prefixes(ctx, cmd.GuildID) {
		if strings.HasPrefix(content, prefix) {
			body = strings.TrimSpace(strings.TrimPrefix(content, prefix))
			matched = true
			break
		}
	}
	if !matched || body == "" {
		return "", false
	}

	fields := strings.Fields(body)
	name := strings.ToLower(fields[0])
	handler, ok := r.commands[name]
	if !ok {
		return "", false
	}
	cmd.Args = fields[1:]

	reply, err := handler(ctx, cmd)
	if err != nil {
		commandsTotal.WithLabelValues(name, "error").Inc()
		r.log.Info("command failed", "command", name, "user", cmd.AuthorID, "err", err)
		return replyForError(err), true
	}
	commandsTotal.WithLabelValues(name, "ok").Inc()
	return reply, true
}

// replyForError maps the error taxonomy to a single user-visible line.
func replyForError(err error) string {
	switch {
	case errors.Is(err, economy.ErrInvalidAmount):
		return "That's not a valid amount."
	case errors.Is(err, store.ErrInsufficientFunds):
		return "You can't afford that."
	case errors.Is(err, store.ErrOverLimit):
		return "Your bank can't hold that much. Buy a bank upgrade!"
	case errors.Is(err, store.ErrInterestCap):
		return "Your interest level is already maxed out."
	case errors.Is(err, store.ErrInsufficientItems):
		return "You don't have enough of that item."
	case errors.Is(err, store.ErrFrozen):
		return "Your account is frozen pending review. Contact staff."
	case errors.Is(err, store.ErrUnavailable):
		return "Something went wrong talking to the database. Try again in a bit."
	case errors.Is(err, shop.ErrItemNotFound):
		return "That item isn't in any shop."
	case errors.Is(err, shop.ErrItemUnavailable),
		errors.Is(err, shop.ErrSinglePurchase),
		errors.Is(err, shop.ErrQuantityRange),
		errors.Is(err, fishing.ErrNoRod),
		errors.Is(err, fishing.ErrNoBait),
		errors.Is(err, trade.ErrSelfTrade),
		errors.Is(err, trade.ErrAlreadyTrading),
		errors.Is(err, trade.ErrNoActiveTrade),
		errors.Is(err, trade.ErrNotInitiator),
		errors.Is(err, trade.ErrWrongState),
		errors.Is(err, trade.ErrEmptyOffer),
		errors.Is(err, trade.ErrCapExceeded),
		errors.Is(err, trade.ErrTradeExpired),
		errors.Is(err, trade.ErrAssetsChanged),
		errors.Is(err, trade.ErrInvariantBreach):
		return strings.ToUpper(err.Error()[:1]) + err.Error()[1:] + "."
	case errors.Is(err, store.ErrNotFound):
		return "Couldn't find that."
	default:
		return "Something went wrong."
	}
}
