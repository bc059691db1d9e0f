package bot

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	confirmEmoji = "✅"
	cancelEmoji  = "❌"
)

type waiter struct {
	userID string
	ch     chan bool
}

// ReactionConfirmer implements Confirmer over message reactions: it
// posts the prompt, reacts with the two choices, and resolves on the
// first matching reaction from the right user. Timeout means no.
type ReactionConfirmer struct {
	session *discordgo.Session

	mu      sync.Mutex
	waiters map[string]waiter
}

func NewReactionConfirmer(session *discordgo.Session) *ReactionConfirmer {
	rc := &ReactionConfirmer{
		session: session,
		waiters: make(map[string]waiter),
	}
	session.AddHandler(rc.onReactionAdd)
	return rc
}

func (rc *ReactionConfirmer) Await(ctx context.Context, channelID, userID, prompt string, timeout time.Duration) (bool, error) {
	msg, err := rc.session.ChannelMessageSend(channelID, prompt)
	if err != nil {
		return false, err
	}
	_ = rc.session.MessageReactionAdd(channelID, msg.ID, confirmEmoji)
	_ = rc.session.MessageReactionAdd(channelID, msg.ID, cancelEmoji)

	ch := make(chan bool, 1)
	rc.mu.Lock()
	rc.waiters[msg.ID] = waiter{userID: userID, ch: ch}
	rc.mu.Unlock()
	defer func() {
		rc.mu.Lock()
		delete(rc.waiters, msg.ID)
		rc.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ok := <-ch:
		return ok, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (rc *ReactionConfirmer) onReactionAdd(_ *discordgo.Session, e *discordgo.MessageReactionAdd) {
	rc.mu.Lock()
	w, ok := rc.waiters[e.MessageID]
	rc.mu.Unlock()
	if !ok || e.UserID != w.userID {
		return
	}
	switch e.Emoji.Name {
	case confirmEmoji:
		select {
		case w.ch <- true:
		default:
		}
	case cancelEmoji:
		select {
		case w.ch <- false:
		default:
		}
	}
}
