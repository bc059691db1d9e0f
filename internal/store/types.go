package store

import "time"

// ItemKind tags a shop entry or inventory entry with its variant.
type ItemKind string

const (
	KindGeneric ItemKind = "generic"
	KindRole    ItemKind = "role"
	KindRod     ItemKind = "rod"
	KindBait    ItemKind = "bait"
	KindPotion  ItemKind = "potion"
	KindUpgrade ItemKind = "upgrade"
)

// Account is the per-user economy document. Wallet and bank are mutated
// only through ApplyDelta so the non-negativity and capacity invariants
// hold after every write.
type Account struct {
	UserID        string    `json:"user_id"`
	Wallet        int64     `json:"wallet"`
	Bank          int64     `json:"bank"`
	BankLimit     int64     `json:"bank_limit"`
	InterestLevel int       `json:"interest_level"`
	Frozen        bool      `json:"frozen"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// InventoryEntry is one stack of a held item.
type InventoryEntry struct {
	ItemID      string   `json:"id"`
	Name        string   `json:"name"`
	Kind        ItemKind `json:"kind"`
	Quantity    int      `json:"quantity"`
	Value       int64    `json:"value"`
	Description string   `json:"description,omitempty"`
}

// Rod is a single owned fishing rod instance.
type Rod struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Multiplier float64 `json:"multiplier"`
}

// BaitStack is an owned bait stack with a remaining-use count.
type BaitStack struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Remaining  int                `json:"remaining"`
	CatchRates map[string]float64 `json:"catch_rates"`
}

// FishingGear groups a user's rods and bait stacks.
type FishingGear struct {
	Rods []Rod       `json:"rods"`
	Bait []BaitStack `json:"bait"`
}

// FishCatch is one caught fish.
type FishCatch struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"` // normal, rare, event, mutated
	Name     string    `json:"name"`
	Value    int64     `json:"value"`
	CaughtAt time.Time `json:"caught_at"`
	BaitUsed string    `json:"bait_used"`
	RodUsed  string    `json:"rod_used"`
}

// ActivePotion is a buff applied by using a potion. Potions of the same
// buff type stack: each use is its own record with its own expiry.
type ActivePotion struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	BuffType   string    `json:"buff_type"`
	Multiplier float64   `json:"multiplier"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ShopItem is one catalog entry. Kind selects which of the variant
// fields are meaningful.
type ShopItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       int64    `json:"price"`
	Description string   `json:"description"`
	Kind        ItemKind `json:"kind"`

	// rod
	Multiplier float64 `json:"multiplier,omitempty"`
	// bait
	CatchRates map[string]float64 `json:"catch_rates,omitempty"`
	BaitAmount int                `json:"bait_amount,omitempty"`
	// potion
	BuffType string        `json:"buff_type,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	// upgrade
	LimitBoost int64 `json:"limit_boost,omitempty"`
	// role
	RoleID string `json:"role_id,omitempty"`
	// seasonal availability; empty means always available
	ActiveMonths []time.Month `json:"active_months,omitempty"`
}

// AvailableIn reports whether the item can be resolved during the given
// month. Non-seasonal items are always available.
func (i ShopItem) AvailableIn(m time.Month) bool {
	if len(i.ActiveMonths) == 0 {
		return true
	}
	for _, am := range i.ActiveMonths {
		if am == m {
			return true
		}
	}
	return false
}

// WelcomeSettings configures the welcome message for a guild.
type WelcomeSettings struct {
	Enabled   bool   `json:"enabled"`
	ChannelID string `json:"channel_id"`
	Message   string `json:"message"`
}

// ModerationSettings holds the moderation channel and role wiring.
type ModerationSettings struct {
	LogChannelID string `json:"log_channel_id"`
	MuteRoleID   string `json:"mute_role_id"`
	JailRoleID   string `json:"jail_role_id"`
}

// GuildSettings is the per-guild configuration document.
type GuildSettings struct {
	GuildID       string             `json:"guild_id"`
	Prefixes      []string           `json:"prefixes"`
	Welcome       WelcomeSettings    `json:"welcome"`
	Moderation    ModerationSettings `json:"moderation"`
	ServerBalance int64              `json:"server_balance"`
}

// Stats is the per-guild counter document.
type Stats struct {
	GuildID     string `json:"guild_id"`
	Messages    int64  `json:"messages"`
	Gained      int64  `json:"gained"`
	Lost        int64  `json:"lost"`
	Donated     int64  `json:"donated"`
	GiveawayWon int64  `json:"giveaway_won"`
}

// TradeRecord is the immutable audit row appended when a trade
// completes. Records are never updated or deleted.
type TradeRecord struct {
	TradeID           string           `json:"trade_id"`
	InitiatorID       string           `json:"initiator_id"`
	TargetID          string           `json:"target_id"`
	GuildID           string           `json:"guild_id"`
	InitiatorItems    []InventoryEntry `json:"initiator_items"`
	InitiatorCurrency int64            `json:"initiator_currency"`
	TargetItems       []InventoryEntry `json:"target_items"`
	TargetCurrency    int64            `json:"target_currency"`
	InitiatorValue    int64            `json:"initiator_value"`
	TargetValue       int64            `json:"target_value"`
	CompletedAt       time.Time        `json:"completed_at"`
}
