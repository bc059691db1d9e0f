package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"bronxbot/internal/economy"
	"bronxbot/internal/fishing"
	"bronxbot/internal/shop"
	"bronxbot/internal/store"
	"bronxbot/internal/trade"
)

// Bot binds the command router to a Discord gateway session.
type Bot struct {
	session *discordgo.Session
	router  *Router
	st      store.Store
	log     *slog.Logger
}

func New(
	token, defaultPrefix string,
	st store.Store,
	ledger *economy.Ledger,
	catalog *shop.Catalog,
	planner *shop.Planner,
	engine *trade.Engine,
	fisher *fishing.Fisher,
	logger *slog.Logger,
) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	confirmer := NewReactionConfirmer(session)
	router := NewRouter(st, ledger, catalog, planner, engine, fisher, confirmer, logger, defaultPrefix)

	b := &Bot{
		session: session,
		router:  router,
		st:      st,
		log:     logger,
	}
	session.AddHandler(b.onMessageCreate)
	return b, nil
}

// Run opens the gateway connection and blocks until the context is
// cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	b.log.Info("bot connected", "user", b.session.State.User.Username)
	<-ctx.Done()
	b.log.Info("bot shutting down")
	return b.session.Close()
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	ctx := context.Background()
	if m.GuildID != "" {
		_ = b.st.BumpStat(ctx, m.GuildID, "messages", 1)
	}

	cmd := Command{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		AuthorID:  m.Author.ID,
	}
	for _, u := range m.Mentions {
		cmd.Mentions = append(cmd.Mentions, u.ID)
	}

	reply, ok := b.router.Dispatch(ctx, cmd, m.Content)
	if !ok || reply == "" {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		b.log.Warn("reply failed", "channel", m.ChannelID, "err", err)
	}
}
