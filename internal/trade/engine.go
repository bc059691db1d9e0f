package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"bronxbot/internal/economy"
	"bronxbot/internal/store"
)

var (
	ErrSelfTrade       = errors.New("cannot trade with yourself")
	ErrAlreadyTrading  = errors.New("already trading")
	ErrNoActiveTrade   = errors.New("no active trade")
	ErrNotInitiator    = errors.New("only the initiator can send the offer")
	ErrWrongState      = errors.New("offer is not in the right state")
	ErrEmptyOffer      = errors.New("offer has nothing on your side")
	ErrCapExceeded     = errors.New("offer cap exceeded")
	ErrTradeExpired    = errors.New("trade expired")
	ErrAssetsChanged   = errors.New("one or both users no longer have the required assets")
	ErrInvariantBreach = errors.New("exchange could not be undone, accounts frozen for review")
)

// Engine owns the in-memory map of live offers. All mutation goes
// through its methods under one mutex; persisted state only changes in
// the exchange step after both confirmations and revalidation.
type Engine struct {
	mu     sync.Mutex
	offers map[string]*Offer
	byUser map[string]string

	st     store.Store
	ledger *economy.Ledger
	log    *slog.Logger
	now    func() time.Time
}

func NewEngine(st store.Store, ledger *economy.Ledger, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		offers: make(map[string]*Offer),
		byUser: make(map[string]string),
		st:     st,
		ledger: ledger,
		log:    logger,
		now:    time.Now,
	}
}

// Open creates a pending offer between two users. Each user may hold at
// most one live offer.
func (e *Engine) Open(ctx context.Context, guildID, initiatorID, targetID string) (Offer, error) {
	if initiatorID == targetID {
		return Offer{}, ErrSelfTrade
	}
	if _, err := e.st.EnsureUser(ctx, initiatorID); err != nil {
		return Offer{}, err
	}
	if _, err := e.st.EnsureUser(ctx, targetID); err != nil {
		return Offer{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.expireLocked()
	if _, ok := e.byUser[initiatorID]; ok {
		return Offer{}, fmt.Errorf("%w: %s", ErrAlreadyTrading, initiatorID)
	}
	if _, ok := e.byUser[targetID]; ok {
		return Offer{}, fmt.Errorf("%w: %s", ErrAlreadyTrading, targetID)
	}

	now := e.now()
	id := newTradeID(initiatorID, targetID, now)
	for _, taken := e.offers[id]; taken; _, taken = e.offers[id] {
		now = e.now()
		id = newTradeID(initiatorID, targetID, now.Add(time.Duration(len(e.offers))))
	}
	o := &Offer{
		ID:          id,
		InitiatorID: initiatorID,
		TargetID:    targetID,
		GuildID:     guildID,
		Status:      StatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(PendingTTL),
	}
	e.offers[id] = o
	e.byUser[initiatorID] = id
	e.byUser[targetID] = id
	e.log.Info("trade opened", "trade", id, "initiator", initiatorID, "target", targetID)
	return o.snapshot(), nil
}

// liveLocked returns the caller's live offer, lazily expiring it first.
func (e *Engine) liveLocked(userID string) (*Offer, error) {
	id, ok := e.byUser[userID]
	if !ok {
		return nil, ErrNoActiveTrade
	}
	o := e.offers[id]
	if !e.now().Before(o.ExpiresAt) {
		e.dropLocked(o, StatusExpired)
		return nil, ErrTradeExpired
	}
	return o, nil
}

// editableLocked is liveLocked plus the edit gate: the target's side of
// the offer only opens once the initiator has sent it.
func (e *Engine) editableLocked(userID string) (*Offer, error) {
	o, err := e.liveLocked(userID)
	if err != nil {
		return nil, err
	}
	if userID != o.InitiatorID && o.Status != StatusSent {
		return nil, fmt.Errorf("%w: wait for the offer to be sent", ErrWrongState)
	}
	return o, nil
}

// dropLocked removes an offer from the live table. Terminal offers do
// not linger; the durable trace of a completed trade is its history
// row.
func (e *Engine) dropLocked(o *Offer, status Status) {
	o.Status = status
	delete(e.offers, o.ID)
	delete(e.byUser, o.InitiatorID)
	delete(e.byUser, o.TargetID)
}

// clearConfirmations runs on every add or remove by either party.
func (o *Offer) clearConfirmations() {
	o.initiatorConfirmed = false
	o.targetConfirmed = false
}

// AddItem records the intent to trade quantity copies of an inventory
// item. The caller must hold the full offered count at add time; the
// item stays in their inventory until the exchange.
func (e *Engine) AddItem(ctx context.Context, userID, itemID string, quantity int) (Offer, error) {
	if quantity < 1 || quantity > MaxItemAdd {
		return Offer{}, fmt.Errorf("%w: at most %d per add", ErrCapExceeded, MaxItemAdd)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.editableLocked(userID)
	if err != nil {
		return Offer{}, err
	}

	inv, err := e.st.Inventory(ctx, userID)
	if err != nil {
		return Offer{}, err
	}
	var held *store.InventoryEntry
	for i := range inv {
		if inv[i].ItemID == itemID {
			held = &inv[i]
			break
		}
	}
	if held == nil {
		return Offer{}, fmt.Errorf("%w: you do not own %s", store.ErrInsufficientItems, itemID)
	}

	items, _ := o.side(userID)
	offered := 0
	var existing *store.InventoryEntry
	for i := range *items {
		if (*items)[i].ItemID == itemID {
			offered = (*items)[i].Quantity
			existing = &(*items)[i]
		}
	}
	if offered+quantity > held.Quantity {
		return Offer{}, fmt.Errorf("%w: only %d of %s available", store.ErrInsufficientItems, held.Quantity, itemID)
	}
	if existing == nil && len(*items) >= MaxDistinct {
		return Offer{}, fmt.Errorf("%w: at most %d distinct items per side", ErrCapExceeded, MaxDistinct)
	}

	if existing != nil {
		existing.Quantity += quantity
	} else {
		entry := *held
		entry.Quantity = quantity
		*items = append(*items, entry)
	}
	o.clearConfirmations()
	return o.snapshot(), nil
}

func (e *Engine) RemoveItem(ctx context.Context, userID, itemID string, quantity int) (Offer, error) {
	if quantity < 1 {
		return Offer{}, economy.ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.editableLocked(userID)
	if err != nil {
		return Offer{}, err
	}
	items, _ := o.side(userID)
	for i := range *items {
		if (*items)[i].ItemID != itemID {
			continue
		}
		if (*items)[i].Quantity < quantity {
			return Offer{}, fmt.Errorf("%w: only %d of %s offered", store.ErrInsufficientItems, (*items)[i].Quantity, itemID)
		}
		(*items)[i].Quantity -= quantity
		if (*items)[i].Quantity == 0 {
			*items = append((*items)[:i], (*items)[i+1:]...)
		}
		o.clearConfirmations()
		return o.snapshot(), nil
	}
	return Offer{}, fmt.Errorf("%w: %s is not in the offer", store.ErrInsufficientItems, itemID)
}

// AddCurrency raises the caller's offered currency. The full offered
// total must fit the caller's wallet and the per-side cap.
func (e *Engine) AddCurrency(ctx context.Context, userID string, amount int64) (Offer, error) {
	if amount <= 0 {
		return Offer{}, economy.ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.editableLocked(userID)
	if err != nil {
		return Offer{}, err
	}
	wallet, err := e.ledger.WalletBalance(ctx, userID)
	if err != nil {
		return Offer{}, err
	}
	_, currency := o.side(userID)
	if *currency+amount > wallet {
		return Offer{}, fmt.Errorf("%w: wallet holds %d", store.ErrInsufficientFunds, wallet)
	}
	if *currency+amount > MaxCurrency {
		return Offer{}, fmt.Errorf("%w: at most %d currency per side", ErrCapExceeded, MaxCurrency)
	}
	*currency += amount
	o.clearConfirmations()
	return o.snapshot(), nil
}

func (e *Engine) RemoveCurrency(ctx context.Context, userID string, amount int64) (Offer, error) {
	if amount <= 0 {
		return Offer{}, economy.ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.editableLocked(userID)
	if err != nil {
		return Offer{}, err
	}
	_, currency := o.side(userID)
	if amount > *currency {
		return Offer{}, fmt.Errorf("%w: only %d offered", store.ErrInsufficientFunds, *currency)
	}
	*currency -= amount
	o.clearConfirmations()
	return o.snapshot(), nil
}

// Show returns a snapshot of the caller's live offer.
func (e *Engine) Show(userID string) (Offer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.liveLocked(userID)
	if err != nil {
		return Offer{}, err
	}
	return o.snapshot(), nil
}

// Send moves the offer to sent. Only the initiator may send, and only
// with a non-empty initiator side.
func (e *Engine) Send(ctx context.Context, userID string) (Offer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.liveLocked(userID)
	if err != nil {
		return Offer{}, err
	}
	if userID != o.InitiatorID {
		return Offer{}, ErrNotInitiator
	}
	if o.Status != StatusPending {
		return Offer{}, fmt.Errorf("%w: %s", ErrWrongState, o.Status)
	}
	if len(o.InitiatorItems) == 0 && o.InitiatorCurrency == 0 {
		return Offer{}, ErrEmptyOffer
	}
	o.Status = StatusSent
	o.ExpiresAt = e.now().Add(SentTTL)
	return o.snapshot(), nil
}

// Confirm records one party's confirmation. When both parties have
// confirmed, the engine revalidates live assets and runs the exchange.
// The returned bool is true once the trade completed.
func (e *Engine) Confirm(ctx context.Context, userID string) (Offer, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.liveLocked(userID)
	if err != nil {
		return Offer{}, false, err
	}
	if o.Status != StatusSent {
		return Offer{}, false, fmt.Errorf("%w: %s", ErrWrongState, o.Status)
	}
	if userID == o.InitiatorID {
		o.initiatorConfirmed = true
	} else {
		o.targetConfirmed = true
	}
	if !o.initiatorConfirmed || !o.targetConfirmed {
		return o.snapshot(), false, nil
	}

	if err := e.revalidate(ctx, o); err != nil {
		e.dropLocked(o, StatusCancelled)
		e.log.Info("trade cancelled on revalidation", "trade", o.ID, "err", err)
		return o.snapshot(), false, err
	}
	if err := e.exchange(ctx, o); err != nil {
		e.dropLocked(o, StatusCancelled)
		return o.snapshot(), false, err
	}

	rec := o.record(e.now())
	if err := e.appendRecord(ctx, rec); err != nil {
		incident := uuid.NewString()
		e.log.Error("trade record append failed",
			"incident", incident, "trade", o.ID, "record", rec, "err", err)
		e.dropLocked(o, StatusCompleted)
		return o.snapshot(), true, fmt.Errorf("record trade (incident %s): %w", incident, err)
	}
	e.dropLocked(o, StatusCompleted)
	e.log.Info("trade completed", "trade", o.ID,
		"initiator_value", rec.InitiatorValue, "target_value", rec.TargetValue,
		"balanced", Balanced(rec.InitiatorValue, rec.TargetValue))
	return o.snapshot(), true, nil
}

// appendRecord writes the audit row, retrying once when storage is
// unavailable. Every completed trade must leave exactly one record; a
// persistent failure is surfaced with an incident id so operators can
// reconcile from the log.
func (e *Engine) appendRecord(ctx context.Context, rec store.TradeRecord) error {
	err := e.st.AppendTradeRecord(ctx, rec)
	if errors.Is(err, store.ErrUnavailable) {
		e.log.Warn("trade record append retrying", "trade", rec.TradeID, "err", err)
		err = e.st.AppendTradeRecord(ctx, rec)
	}
	return err
}

// Cancel ends a live offer; either party may cancel at any point.
func (e *Engine) Cancel(ctx context.Context, userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.liveLocked(userID)
	if err != nil {
		return err
	}
	e.dropLocked(o, StatusCancelled)
	e.log.Info("trade cancelled", "trade", o.ID, "by", userID)
	return nil
}

// Sweep expires live offers past their deadline. Run periodically.
func (e *Engine) Sweep(ctx context.Context) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.expireLocked()
}

func (e *Engine) expireLocked() int {
	now := e.now()
	n := 0
	for _, o := range e.offers {
		if !now.Before(o.ExpiresAt) {
			e.dropLocked(o, StatusExpired)
			e.log.Info("trade expired", "trade", o.ID)
			n++
		}
	}
	return n
}

// revalidate re-reads live inventory and wallets and checks that both
// sides still hold everything they offered.
func (e *Engine) revalidate(ctx context.Context, o *Offer) error {
	check := func(userID string, items []store.InventoryEntry, currency int64) error {
		inv, err := e.st.Inventory(ctx, userID)
		if err != nil {
			return err
		}
		held := make(map[string]int, len(inv))
		for _, entry := range inv {
			held[entry.ItemID] = entry.Quantity
		}
		for _, offered := range items {
			if held[offered.ItemID] < offered.Quantity {
				return fmt.Errorf("%w: %s missing %s", ErrAssetsChanged, userID, offered.ItemID)
			}
		}
		if currency > 0 {
			wallet, err := e.ledger.WalletBalance(ctx, userID)
			if err != nil {
				return err
			}
			if wallet < currency {
				return fmt.Errorf("%w: %s wallet short", ErrAssetsChanged, userID)
			}
		}
		return nil
	}
	if err := check(o.InitiatorID, o.InitiatorItems, o.InitiatorCurrency); err != nil {
		return err
	}
	return check(o.TargetID, o.TargetItems, o.TargetCurrency)
}

// exchange moves items and currency between the parties. Every step
// pushes an undo onto a compensation stack; on failure the stack is
// unwound in reverse. An undo that itself fails freezes both accounts
// and surfaces an invariant breach with an incident id.
func (e *Engine) exchange(ctx context.Context, o *Offer) error {
	type undoFn func(context.Context) error
	var undos []undoFn

	abort := func(cause error) error {
		for i := len(undos) - 1; i >= 0; i-- {
			if undoErr := undos[i](ctx); undoErr != nil {
				incident := uuid.NewString()
				e.log.Error("trade exchange undo failed",
					"incident", incident, "trade", o.ID,
					"initiator", o.InitiatorID, "target", o.TargetID,
					"offer", o.record(e.now()),
					"cause", cause, "undo_err", undoErr)
				for _, userID := range []string{o.InitiatorID, o.TargetID} {
					if frErr := e.st.SetFrozen(ctx, userID, true); frErr != nil {
						e.log.Error("freeze failed", "incident", incident, "user", userID, "err", frErr)
					}
				}
				return fmt.Errorf("%w: incident %s", ErrInvariantBreach, incident)
			}
		}
		return cause
	}

	moveItems := func(fromID, toID string, items []store.InventoryEntry) error {
		for _, entry := range items {
			entry := entry
			if err := e.st.PopInventory(ctx, fromID, entry.ItemID, entry.Quantity); err != nil {
				return abort(err)
			}
			undos = append(undos, func(ctx context.Context) error {
				return e.st.PushInventory(ctx, fromID, entry)
			})
			if err := e.st.PushInventory(ctx, toID, entry); err != nil {
				return abort(err)
			}
			undos = append(undos, func(ctx context.Context) error {
				return e.st.PopInventory(ctx, toID, entry.ItemID, entry.Quantity)
			})
		}
		return nil
	}
	moveCurrency := func(fromID, toID string, amount int64) error {
		if amount <= 0 {
			return nil
		}
		if _, err := e.ledger.DebitWallet(ctx, fromID, amount); err != nil {
			return abort(err)
		}
		undos = append(undos, func(ctx context.Context) error {
			_, err := e.ledger.CreditWallet(ctx, fromID, amount)
			return err
		})
		if _, err := e.ledger.CreditWallet(ctx, toID, amount); err != nil {
			return abort(err)
		}
		undos = append(undos, func(ctx context.Context) error {
			_, err := e.ledger.DebitWallet(ctx, toID, amount)
			return err
		})
		return nil
	}

	if err := moveItems(o.InitiatorID, o.TargetID, o.InitiatorItems); err != nil {
		return err
	}
	if err := moveItems(o.TargetID, o.InitiatorID, o.TargetItems); err != nil {
		return err
	}
	if err := moveCurrency(o.InitiatorID, o.TargetID, o.InitiatorCurrency); err != nil {
		return err
	}
	return moveCurrency(o.TargetID, o.InitiatorID, o.TargetCurrency)
}
