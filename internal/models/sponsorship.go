package models

// SponsorshipConfigID is the primary key of the singleton config row.
const SponsorshipConfigID = 1

// SponsorshipConfig is the singleton state of the sponsorship gate.
type SponsorshipConfig struct {
	// ID is always SponsorshipConfigID.
	ID int64 `json:"id" gorm:"column:id;primaryKey"`
	// Owner is the administrative principal of the gate.
	Owner string `json:"owner" gorm:"column:owner;not null;size:42"`
	// StakeAmount is the portion of the balance permanently earmarked as
	// underwriting capacity. Ordinary withdrawals and sponsorships never
	// take the balance below it.
	StakeAmount int64 `json:"stake_amount" gorm:"column:stake_amount;not null"`
	// Balance is the gate's current funds.
	Balance int64 `json:"balance" gorm:"column:balance;not null;default:0"`
	// MaxUnitsPerWindow caps cumulative sponsored units per principal per
	// 24h window.
	MaxUnitsPerWindow int64 `json:"max_units_per_window" gorm:"column:max_units_per_window;not null"`
	// MinTimeBetweenOps is the minimum seconds between sponsored operations
	// for one principal.
	MinTimeBetweenOps int64 `json:"min_time_between_ops" gorm:"column:min_time_between_ops;not null"`
	// Paused rejects all sponsorship while set.
	Paused bool `json:"paused" gorm:"column:paused;not null;default:false"`
	// Endpoint is the webhook URL post-commit events are delivered to.
	// Configuration passthrough only; no effect on gate decisions.
	Endpoint string `json:"endpoint" gorm:"column:endpoint"`
}

// WhitelistedAccount is a principal eligible for sponsorship.
type WhitelistedAccount struct {
	Address string `json:"address" gorm:"column:address;primaryKey;size:42"`
	AddedAt int64  `json:"added_at" gorm:"column:added_at"`
}

// Relayer is a principal allowed to call the actual underwriting operation.
type Relayer struct {
	Address string `json:"address" gorm:"column:address;primaryKey;size:42"`
	AddedAt int64  `json:"added_at" gorm:"column:added_at"`
}

// RateState is the per-principal rate budget. The day window resets lazily,
// with the same rule as sub-wallet periods: no sweeper ever runs.
type RateState struct {
	// Principal is the sponsored account.
	Principal string `json:"principal" gorm:"column:principal;primaryKey;size:42"`
	// LastOpTime is the unix timestamp of the last sponsored operation.
	LastOpTime int64 `json:"last_op_time" gorm:"column:last_op_time;not null;default:0"`
	// WindowStart is the unix timestamp the current 24h window began.
	WindowStart int64 `json:"window_start" gorm:"column:window_start;not null;default:0"`
	// UnitsUsed is the units consumed inside the current window.
	UnitsUsed int64 `json:"units_used" gorm:"column:units_used;not null;default:0"`
}
