package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func cmdAddr(n int) string {
	return fmt.Sprintf("0x%040x", n)
}

func TestDecodeCommand(t *testing.T) {
	payload := []byte(fmt.Sprintf(`{"op":"transfer","to":%q,"amount":100}`, cmdAddr(1)))
	cmd, err := DecodeCommand(payload)
	require.NoError(t, err)
	require.Equal(t, OpTransfer, cmd.Op)
	require.Equal(t, int64(100), cmd.Amount)

	_, err = DecodeCommand([]byte(`{not json`))
	require.Error(t, err)

	_, err = DecodeCommand([]byte(`{"op":"self_destruct"}`))
	require.Error(t, err)
}

func TestValidateTransfer(t *testing.T) {
	require.NoError(t, (&WalletCommand{Op: OpTransfer, To: cmdAddr(1), Amount: 1}).Validate())
	require.Error(t, (&WalletCommand{Op: OpTransfer, To: "bogus", Amount: 1}).Validate())
	require.Error(t, (&WalletCommand{Op: OpTransfer, To: cmdAddr(1), Amount: 0}).Validate())
	require.Error(t, (&WalletCommand{Op: OpTransfer, To: cmdAddr(1), Amount: -1}).Validate())
}

func TestValidateBatch(t *testing.T) {
	valid := WalletCommand{Op: OpTransfer, To: cmdAddr(1), Amount: 1}

	require.NoError(t, (&WalletCommand{Op: OpBatch, Batch: []WalletCommand{valid, valid}}).Validate())
	require.Error(t, (&WalletCommand{Op: OpBatch}).Validate())

	nested := WalletCommand{Op: OpBatch, Batch: []WalletCommand{valid}}
	require.Error(t, (&WalletCommand{Op: OpBatch, Batch: []WalletCommand{valid, nested}}).Validate())

	broken := WalletCommand{Op: OpTransfer, To: cmdAddr(1), Amount: 0}
	require.Error(t, (&WalletCommand{Op: OpBatch, Batch: []WalletCommand{valid, broken}}).Validate())
}

func TestValidateSubscriptionOps(t *testing.T) {
	require.NoError(t, (&WalletCommand{Op: OpCreateSubscription, Vendor: cmdAddr(1), Amount: 10, Interval: 86400}).Validate())
	require.Error(t, (&WalletCommand{Op: OpCreateSubscription, Vendor: cmdAddr(1), Amount: 10}).Validate())
	require.Error(t, (&WalletCommand{Op: OpCreateSubscription, Vendor: "bogus", Amount: 10, Interval: 86400}).Validate())

	require.NoError(t, (&WalletCommand{Op: OpCancelSubscription, SubscriptionID: 1}).Validate())
	require.Error(t, (&WalletCommand{Op: OpCancelSubscription}).Validate())
	require.NoError(t, (&WalletCommand{Op: OpExecuteSubscriptionPay, SubscriptionID: 1}).Validate())
}

func TestValidateSubWalletOps(t *testing.T) {
	require.NoError(t, (&WalletCommand{Op: OpCreateSubWallet, Child: cmdAddr(1), Limit: 50, Period: 3600}).Validate())
	require.NoError(t, (&WalletCommand{Op: OpCreateSubWallet, Child: cmdAddr(1), Limit: 50, Period: 3600, Mode: SubWalletModeFixed}).Validate())
	require.Error(t, (&WalletCommand{Op: OpCreateSubWallet, Child: cmdAddr(1), Limit: 50, Period: 3600, Mode: "hourly"}).Validate())
	require.Error(t, (&WalletCommand{Op: OpCreateSubWallet, Child: cmdAddr(1), Limit: 0, Period: 3600}).Validate())

	require.NoError(t, (&WalletCommand{Op: OpUpdateSubWalletLimit, SubWalletID: 1, Limit: 10}).Validate())
	require.Error(t, (&WalletCommand{Op: OpUpdateSubWalletLimit, SubWalletID: 1}).Validate())

	require.NoError(t, (&WalletCommand{Op: OpPauseSubWallet, SubWalletID: 1}).Validate())
	require.NoError(t, (&WalletCommand{Op: OpResumeSubWallet, SubWalletID: 1}).Validate())
	require.NoError(t, (&WalletCommand{Op: OpRevokeSubWallet, SubWalletID: 1}).Validate())
	require.Error(t, (&WalletCommand{Op: OpRevokeSubWallet}).Validate())

	require.NoError(t, (&WalletCommand{Op: OpExecuteSubWalletTransfer, SubWalletID: 1, To: cmdAddr(1), Amount: 5}).Validate())
	require.Error(t, (&WalletCommand{Op: OpExecuteSubWalletTransfer, SubWalletID: 1, To: cmdAddr(1)}).Validate())
}
