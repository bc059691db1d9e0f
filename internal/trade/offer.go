package trade

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"bronxbot/internal/store"
)

// Status is the lifecycle state of an offer. Completed, cancelled and
// expired are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Offer caps and lifetimes.
const (
	MaxItemAdd     = 50
	MaxDistinct    = 20
	MaxCurrency    = 1_000_000
	PendingTTL     = 10 * time.Minute
	SentTTL        = 5 * time.Minute
	balancedMargin = 0.30
)

// Offer is a two-party trade in assembly. Items are recorded as intent
// only; nothing moves until both parties confirm and revalidation
// passes.
type Offer struct {
	ID                string
	InitiatorID       string
	TargetID          string
	GuildID           string
	InitiatorItems    []store.InventoryEntry
	InitiatorCurrency int64
	TargetItems       []store.InventoryEntry
	TargetCurrency    int64
	Status            Status
	CreatedAt         time.Time
	ExpiresAt         time.Time

	initiatorConfirmed bool
	targetConfirmed    bool
}

// newTradeID derives the 8-hex offer id from the parties and creation
// time. Collisions are handled by the caller with a fresh timestamp.
func newTradeID(initiatorID, targetID string, createdAt time.Time) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%s:%d", initiatorID, targetID, createdAt.UnixNano()))
	return hex.EncodeToString(sum[:4])
}

func (o *Offer) participant(userID string) bool {
	return userID == o.InitiatorID || userID == o.TargetID
}

func (o *Offer) live() bool {
	return o.Status == StatusPending || o.Status == StatusSent
}

// snapshot copies the offer with its own item slices, safe to read
// after the engine mutex is released.
func (o *Offer) snapshot() Offer {
	snap := *o
	snap.InitiatorItems = append([]store.InventoryEntry(nil), o.InitiatorItems...)
	snap.TargetItems = append([]store.InventoryEntry(nil), o.TargetItems...)
	return snap
}

// side returns the item list and currency of the given participant.
func (o *Offer) side(userID string) (*[]store.InventoryEntry, *int64) {
	if userID == o.InitiatorID {
		return &o.InitiatorItems, &o.InitiatorCurrency
	}
	return &o.TargetItems, &o.TargetCurrency
}

// sideValue sums the catalog value of one side.
func sideValue(items []store.InventoryEntry, currency int64) int64 {
	v := currency
	for _, it := range items {
		v += it.Value * int64(it.Quantity)
	}
	return v
}

// Balanced reports the advisory fairness of two side values. It never
// blocks a trade.
func Balanced(v1, v2 int64) bool {
	if v1 == 0 && v2 == 0 {
		return true
	}
	hi := v1
	if v2 > hi {
		hi = v2
	}
	diff := v1 - v2
	if diff < 0 {
		diff = -diff
	}
	return float64(diff)/float64(hi) <= balancedMargin
}

// record builds the immutable audit row for a completed offer.
func (o *Offer) record(completedAt time.Time) store.TradeRecord {
	return store.TradeRecord{
		TradeID:           o.ID,
		InitiatorID:       o.InitiatorID,
		TargetID:          o.TargetID,
		GuildID:           o.GuildID,
		InitiatorItems:    append([]store.InventoryEntry(nil), o.InitiatorItems...),
		InitiatorCurrency: o.InitiatorCurrency,
		TargetItems:       append([]store.InventoryEntry(nil), o.TargetItems...),
		TargetCurrency:    o.TargetCurrency,
		InitiatorValue:    sideValue(o.InitiatorItems, o.InitiatorCurrency),
		TargetValue:       sideValue(o.TargetItems, o.TargetCurrency),
		CompletedAt:       completedAt,
	}
}
