package models

import "fmt"

// Event kinds delivered to the configured webhook endpoint and published on
// the event stream.
const (
	EventDelegationExecuted = "delegation.executed"
	EventSubscriptionPaid   = "wallet.subscription_paid"
	EventSubWalletSpent     = "wallet.subwallet_spent"
	EventSponsored          = "sponsorship.sponsored"
)

// Notification is a post-commit event describing a completed state
// transition. Delivery is best-effort and never affects the transition
// itself.
type Notification struct {
	// ID is a unique event identifier.
	ID string `json:"id"`
	// Kind is one of the Event* constants.
	Kind string `json:"kind"`
	// Wallet is the wallet involved, when applicable.
	Wallet string `json:"wallet,omitempty"`
	// Principal is the acting principal.
	Principal string `json:"principal,omitempty"`
	// Amount is the value moved, when applicable.
	Amount int64 `json:"amount,omitempty"`
	// Timestamp is the unix time the transition committed.
	Timestamp int64 `json:"timestamp"`
}

func (n *Notification) String() string {
	return fmt.Sprintf("%s wallet=%s principal=%s amount=%d", n.Kind, n.Wallet, n.Principal, n.Amount)
}
