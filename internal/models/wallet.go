package models

// Wallet represents a spending wallet in the system. There is exactly one
// wallet per owning principal; wallets are never destroyed, only drained of
// their sub-entities.
type Wallet struct {
	// Address is the wallet's own account address, derived deterministically
	// from the owner address at creation time. It is also the wallet's key
	// on the underlying ledger.
	Address string `json:"address" gorm:"column:address;primaryKey;size:42"`
	// Owner is the principal that controls the wallet. Unique: the factory
	// lookup owner -> wallet resolves through this index.
	Owner string `json:"owner" gorm:"column:owner;uniqueIndex;not null;size:42"`
	// SubscriptionCounter is the next subscription id to allocate.
	SubscriptionCounter int64 `json:"subscription_counter" gorm:"column:subscription_counter;not null;default:0"`
	// SubWalletCounter is the next sub-wallet id to allocate.
	SubWalletCounter int64 `json:"sub_wallet_counter" gorm:"column:sub_wallet_counter;not null;default:0"`
	// CreatedAt is the unix timestamp when the wallet was created.
	CreatedAt int64 `json:"created_at" gorm:"column:created_at"`
}

// Subscription is a vendor-initiated pull-payment authorization. Only
// ExecuteSubscriptionPayment mutates LastPayment, and only CancelSubscription
// clears Active.
type Subscription struct {
	// WalletAddress is the wallet the subscription is drawn from.
	WalletAddress string `json:"wallet_address" gorm:"column:wallet_address;primaryKey;size:42"`
	// ID is the subscription id, unique within the wallet.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement:false"`
	// Vendor is the principal allowed to receive the recurring payment.
	Vendor string `json:"vendor" gorm:"column:vendor;not null;index;size:42"`
	// AmountPerInterval is the amount transferred per executed payment.
	AmountPerInterval int64 `json:"amount_per_interval" gorm:"column:amount_per_interval;not null"`
	// Interval is the minimum number of seconds between payments.
	Interval int64 `json:"interval" gorm:"column:interval;not null"`
	// LastPayment is the unix timestamp of the last executed payment.
	// Monotonically non-decreasing.
	LastPayment int64 `json:"last_payment" gorm:"column:last_payment;not null"`
	// Active indicates whether payments may still execute.
	Active bool `json:"active" gorm:"column:active;not null;default:true"`
}

// SubWalletMode selects how the spending window behaves.
type SubWalletMode string

const (
	// SubWalletModeRolling resets the spent counter lazily once the period
	// has elapsed since the last reset.
	SubWalletModeRolling SubWalletMode = "rolling"
	// SubWalletModeFixed treats the limit as a lifetime cap; the spent
	// counter never resets.
	SubWalletModeFixed SubWalletMode = "fixed"
)

// SubWallet is a bounded-spending delegate of a wallet. Only the child
// principal may spend against it; only the wallet owner may administer it.
type SubWallet struct {
	// WalletAddress is the parent wallet.
	WalletAddress string `json:"wallet_address" gorm:"column:wallet_address;primaryKey;size:42"`
	// ID is the sub-wallet id, unique within the wallet.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement:false"`
	// Child is the principal allowed to spend from this sub-wallet.
	Child string `json:"child" gorm:"column:child;not null;index;size:42"`
	// SpendingLimit is the cap per period (rolling) or lifetime (fixed).
	SpendingLimit int64 `json:"spending_limit" gorm:"column:spending_limit;not null"`
	// SpentInPeriod is the stored spent amount. The effective value is
	// computed lazily: it reads as zero once the period has rolled over.
	SpentInPeriod int64 `json:"spent_in_period" gorm:"column:spent_in_period;not null;default:0"`
	// LastResetTime is the unix timestamp the current period started.
	LastResetTime int64 `json:"last_reset_time" gorm:"column:last_reset_time;not null"`
	// Period is the window length in seconds.
	Period int64 `json:"period" gorm:"column:period;not null"`
	// Mode selects rolling or fixed window semantics.
	Mode SubWalletMode `json:"mode" gorm:"column:mode;not null;size:16"`
	// Active indicates whether spends may execute. Cleared by pause and
	// by revoke.
	Active bool `json:"active" gorm:"column:active;not null;default:true"`
	// Revoked marks the terminal state. A revoked sub-wallet can never be
	// reactivated and its limit reads zero.
	Revoked bool `json:"revoked" gorm:"column:revoked;not null;default:false"`
}
