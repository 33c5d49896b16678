package models

import "errors"

// Failure reasons surfaced verbatim to the relay. Every operation either
// commits fully or rejects with one of these; nothing retries inside the
// core.
var (
	// Delegation authority
	ErrExpiredDeadline  = errors.New("ExpiredDeadline")
	ErrInvalidNonce     = errors.New("InvalidNonce")
	ErrInvalidSignature = errors.New("InvalidSignature")

	// Spending wallet
	ErrPaymentIntervalNotMet = errors.New("Payment interval not met")
	ErrExceedsSpendingLimit  = errors.New("Exceeds spending limit")
	ErrOnlyChildEOA          = errors.New("Only child EOA can execute")
	ErrNotWalletOwner        = errors.New("Only wallet owner can execute")
	ErrSubWalletInactive     = errors.New("Sub-wallet is not active")
	ErrSubWalletRevoked      = errors.New("Sub-wallet is revoked")
	ErrWalletNotFound        = errors.New("Wallet not found")
	ErrSubscriptionNotFound  = errors.New("Subscription not found")
	ErrSubWalletNotFound     = errors.New("Sub-wallet not found")

	// Sponsorship gate
	ErrNotWhitelisted      = errors.New("EOA not whitelisted")
	ErrRateLimitTooSoon    = errors.New("Rate limit: operation too soon")
	ErrRateLimitWindowUsed = errors.New("Rate limit: window allowance exceeded")
	ErrSponsorshipPaused   = errors.New("Sponsorship is paused")
	ErrNotRelayer          = errors.New("Caller is not an authorized relayer")
	ErrStakeLocked         = errors.New("Amount exceeds withdrawable balance")
	ErrNotOwner            = errors.New("Caller is not the owner")

	// Ledger
	ErrInsufficientFunds = errors.New("Insufficient funds")
)
