package models

// DelegationRecord tracks the request counter for one delegating principal.
// The nonce is a strictly monotonic counter incremented exactly once per
// successfully executed delegated call; a principal's history is therefore a
// single totally-ordered sequence regardless of which wallet it targets.
type DelegationRecord struct {
	// Principal is the delegating account.
	Principal string `json:"principal" gorm:"column:principal;primaryKey;size:42"`
	// Nonce is the next expected request nonce.
	Nonce uint64 `json:"nonce" gorm:"column:nonce;not null;default:0"`
}

// AuthorizedPaymaster is a principal allowed to invoke delegated execution
// without presenting a signature (the trusted relay path).
type AuthorizedPaymaster struct {
	// Address is the paymaster principal.
	Address string `json:"address" gorm:"column:address;primaryKey;size:42"`
	// AddedAt is the unix timestamp the paymaster was authorized.
	AddedAt int64 `json:"added_at" gorm:"column:added_at"`
}
