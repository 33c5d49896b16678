package models

import (
	"encoding/json"
	"fmt"

	"github.com/tutela-wallet/tutela/pkg/validation"
)

// CommandOp enumerates every operation a delegated payload may request
// against a wallet. The payload is opaque for signing purposes (its raw
// bytes are hashed into the request digest) but is decoded into this
// exhaustive set before anything executes.
type CommandOp string

const (
	OpTransfer                 CommandOp = "transfer"
	OpBatch                    CommandOp = "batch"
	OpCreateSubscription       CommandOp = "create_subscription"
	OpCancelSubscription       CommandOp = "cancel_subscription"
	OpExecuteSubscriptionPay   CommandOp = "execute_subscription_payment"
	OpCreateSubWallet          CommandOp = "create_sub_wallet"
	OpUpdateSubWalletLimit     CommandOp = "update_sub_wallet_limit"
	OpPauseSubWallet           CommandOp = "pause_sub_wallet"
	OpResumeSubWallet          CommandOp = "resume_sub_wallet"
	OpRevokeSubWallet          CommandOp = "revoke_sub_wallet"
	OpExecuteSubWalletTransfer CommandOp = "execute_sub_wallet_transaction"
)

// WalletCommand is the tagged-variant decoding of a delegated payload.
// Fields are interpreted per Op; Validate rejects anything malformed before
// dispatch.
type WalletCommand struct {
	// Op selects the operation.
	Op CommandOp `json:"op"`
	// To is the transfer destination (transfer, execute_sub_wallet_transaction).
	To string `json:"to,omitempty"`
	// Amount is the value moved, in ledger units.
	Amount int64 `json:"amount,omitempty"`
	// Vendor is the receiving principal of a subscription.
	Vendor string `json:"vendor,omitempty"`
	// Interval is the subscription interval in seconds.
	Interval int64 `json:"interval,omitempty"`
	// Child is the spending principal of a sub-wallet.
	Child string `json:"child,omitempty"`
	// Limit is the sub-wallet spending limit.
	Limit int64 `json:"limit,omitempty"`
	// Period is the sub-wallet window length in seconds.
	Period int64 `json:"period,omitempty"`
	// Mode is the sub-wallet window mode (rolling, fixed).
	Mode SubWalletMode `json:"mode,omitempty"`
	// SubscriptionID addresses an existing subscription.
	SubscriptionID int64 `json:"subscription_id,omitempty"`
	// SubWalletID addresses an existing sub-wallet.
	SubWalletID int64 `json:"sub_wallet_id,omitempty"`
	// Batch holds the sub-commands of a batch op. Applied all-or-nothing;
	// nesting batches is not allowed.
	Batch []WalletCommand `json:"batch,omitempty"`
}

// DecodeCommand parses and validates a raw delegated payload.
func DecodeCommand(payload []byte) (*WalletCommand, error) {
	var cmd WalletCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, fmt.Errorf("malformed command payload: %w", err)
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// Validate checks the fields required by the command's Op.
func (c *WalletCommand) Validate() error {
	switch c.Op {
	case OpTransfer:
		if err := validation.ValidateAddress(c.To); err != nil {
			return fmt.Errorf("transfer: invalid destination: %w", err)
		}
		if c.Amount <= 0 {
			return fmt.Errorf("transfer: amount must be positive")
		}
	case OpBatch:
		if len(c.Batch) == 0 {
			return fmt.Errorf("batch: empty batch")
		}
		for i := range c.Batch {
			if c.Batch[i].Op == OpBatch {
				return fmt.Errorf("batch: nested batch at index %d", i)
			}
			if err := c.Batch[i].Validate(); err != nil {
				return fmt.Errorf("batch: index %d: %w", i, err)
			}
		}
	case OpCreateSubscription:
		if err := validation.ValidateAddress(c.Vendor); err != nil {
			return fmt.Errorf("create_subscription: invalid vendor: %w", err)
		}
		if c.Amount <= 0 {
			return fmt.Errorf("create_subscription: amount must be positive")
		}
		if c.Interval <= 0 {
			return fmt.Errorf("create_subscription: interval must be positive")
		}
	case OpCancelSubscription, OpExecuteSubscriptionPay:
		if c.SubscriptionID <= 0 {
			return fmt.Errorf("%s: subscription_id is required", c.Op)
		}
	case OpCreateSubWallet:
		if err := validation.ValidateAddress(c.Child); err != nil {
			return fmt.Errorf("create_sub_wallet: invalid child: %w", err)
		}
		if c.Limit <= 0 {
			return fmt.Errorf("create_sub_wallet: limit must be positive")
		}
		if c.Period <= 0 {
			return fmt.Errorf("create_sub_wallet: period must be positive")
		}
		switch c.Mode {
		case SubWalletModeRolling, SubWalletModeFixed:
		case "":
			// default applied at creation
		default:
			return fmt.Errorf("create_sub_wallet: unknown mode %q", c.Mode)
		}
	case OpUpdateSubWalletLimit:
		if c.SubWalletID <= 0 {
			return fmt.Errorf("update_sub_wallet_limit: sub_wallet_id is required")
		}
		if c.Limit <= 0 {
			return fmt.Errorf("update_sub_wallet_limit: limit must be positive")
		}
	case OpPauseSubWallet, OpResumeSubWallet, OpRevokeSubWallet:
		if c.SubWalletID <= 0 {
			return fmt.Errorf("%s: sub_wallet_id is required", c.Op)
		}
	case OpExecuteSubWalletTransfer:
		if c.SubWalletID <= 0 {
			return fmt.Errorf("execute_sub_wallet_transaction: sub_wallet_id is required")
		}
		if err := validation.ValidateAddress(c.To); err != nil {
			return fmt.Errorf("execute_sub_wallet_transaction: invalid destination: %w", err)
		}
		if c.Amount <= 0 {
			return fmt.Errorf("execute_sub_wallet_transaction: amount must be positive")
		}
	default:
		return fmt.Errorf("unknown command op %q", c.Op)
	}
	return nil
}
