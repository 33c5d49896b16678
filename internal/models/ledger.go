package models

// LedgerAccount is one balance on the underlying token ledger. The ledger is
// the single shared mutable resource of the system; every debiting path runs
// its authorization check and the balance mutation inside the same
// transaction.
type LedgerAccount struct {
	// Address is the account key (wallet address, vendor, child, relayer...).
	Address string `json:"address" gorm:"column:address;primaryKey;size:42"`
	// Balance is the current balance in ledger units.
	Balance int64 `json:"balance" gorm:"column:balance;not null;default:0"`
}
