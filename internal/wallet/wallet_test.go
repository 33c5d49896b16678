package wallet

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tutela-wallet/tutela/internal/ledger"
	"github.com/tutela-wallet/tutela/internal/models"
	"github.com/tutela-wallet/tutela/internal/repository"
	"github.com/tutela-wallet/tutela/pkg/logger"
)

func newTestEngine(t *testing.T) (*Engine, *repository.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	log, err := logger.NewLogger(true)
	require.NoError(t, err)
	store, err := repository.NewStore(db, log)
	require.NoError(t, err)
	return NewEngine(store, nil, log), store
}

func testAddr(n int) string {
	return fmt.Sprintf("0x%040x", n)
}

func fund(t *testing.T, store *repository.Store, address string, amount int64) {
	t.Helper()
	require.NoError(t, store.Transaction(func(tx *gorm.DB) error {
		return ledger.Credit(tx, address, amount)
	}))
}

func balanceOf(t *testing.T, store *repository.Store, address string) int64 {
	t.Helper()
	balance, err := store.GetBalance(address)
	require.NoError(t, err)
	return balance
}

func TestCreateWalletIdempotent(t *testing.T) {
	e, _ := newTestEngine(t)

	owner := testAddr(1)
	first, err := e.CreateWallet(owner)
	require.NoError(t, err)
	require.NotEmpty(t, first.Address)
	require.Equal(t, owner, first.Owner)

	second, err := e.CreateWallet(owner)
	require.NoError(t, err)
	require.Equal(t, first.Address, second.Address)

	other, err := e.CreateWallet(testAddr(2))
	require.NoError(t, err)
	require.NotEqual(t, first.Address, other.Address)
}

func TestCreateWalletRejectsBadAddress(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.CreateWallet("not-an-address")
	require.Error(t, err)
}

func TestDirectTransferOwnerOnly(t *testing.T) {
	e, store := newTestEngine(t)

	owner := testAddr(1)
	w, err := e.CreateWallet(owner)
	require.NoError(t, err)
	fund(t, store, w.Address, 1000)

	cmd := &models.WalletCommand{Op: models.OpTransfer, To: testAddr(9), Amount: 100}
	require.NoError(t, e.Execute(owner, w.Address, cmd))
	require.Equal(t, int64(900), balanceOf(t, store, w.Address))
	require.Equal(t, int64(100), balanceOf(t, store, testAddr(9)))

	err = e.Execute(testAddr(5), w.Address, cmd)
	require.ErrorIs(t, err, models.ErrNotWalletOwner)
	require.Equal(t, int64(900), balanceOf(t, store, w.Address))
}

func TestSubscriptionTiming(t *testing.T) {
	e, store := newTestEngine(t)
	now := int64(1_700_000_000)
	e.Now = func() int64 { return now }

	owner, vendor := testAddr(1), testAddr(2)
	w, err := e.CreateWallet(owner)
	require.NoError(t, err)
	fund(t, store, w.Address, 1000)

	id, err := e.CreateSubscription(owner, w.Address, vendor, 10, 86400)
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	// The first interval has not elapsed yet.
	err = e.ExecuteSubscriptionPayment(w.Address, id)
	require.ErrorIs(t, err, models.ErrPaymentIntervalNotMet)

	now += 86400
	require.NoError(t, e.ExecuteSubscriptionPayment(w.Address, id))
	require.Equal(t, int64(990), balanceOf(t, store, w.Address))
	require.Equal(t, int64(10), balanceOf(t, store, vendor))

	// Immediately after a payment the interval gate closes again.
	err = e.ExecuteSubscriptionPayment(w.Address, id)
	require.ErrorIs(t, err, models.ErrPaymentIntervalNotMet)
}

func TestSubscriptionNoBackPay(t *testing.T) {
	e, store := newTestEngine(t)
	now := int64(1_700_000_000)
	e.Now = func() int64 { return now }

	owner, vendor := testAddr(1), testAddr(2)
	w, err := e.CreateWallet(owner)
	require.NoError(t, err)
	fund(t, store, w.Address, 1000)

	id, err := e.CreateSubscription(owner, w.Address, vendor, 10, 86400)
	require.NoError(t, err)

	// Three intervals elapse unpaid; a single call collects one amount.
	now += 3 * 86400
	require.NoError(t, e.ExecuteSubscriptionPayment(w.Address, id))
	require.Equal(t, int64(10), balanceOf(t, store, vendor))

	err = e.ExecuteSubscriptionPayment(w.Address, id)
	require.ErrorIs(t, err, models.ErrPaymentIntervalNotMet)
}

func TestSubscriptionSelfVendor(t *testing.T) {
	e, store := newTestEngine(t)
	now := int64(1_700_000_000)
	e.Now = func() int64 { return now }

	owner := testAddr(1)
	w, err := e.CreateWallet(owner)
	require.NoError(t, err)
	fund(t, store, w.Address, 1000)

	// A subscription paying the wallet itself still executes; the transfer
	// is a balance-preserving no-op.
	id, err := e.CreateSubscription(owner, w.Address, w.Address, 10, 86400)
	require.NoError(t, err)

	now += 86400
	require.NoError(t, e.ExecuteSubscriptionPayment(w.Address, id))
	require.Equal(t, int64(1000), balanceOf(t, store, w.Address))
}

func TestCancelSubscription(t *testing.T) {
	e, store := newTestEngine(t)
	now := int64(1_700_000_000)
	e.Now = func() int64 { return now }

	owner, vendor := testAddr(1), testAddr(2)
	w, err := e.CreateWallet(owner)
	require.NoError(t, err)
	fund(t, store, w.Address, 1000)

	id, err := e.CreateSubscription(owner, w.Address, vendor, 10, 86400)
	require.NoError(t, err)

	require.ErrorIs(t, e.CancelSubscription(testAddr(3), w.Address, id), models.ErrNotWalletOwner)
	require.NoError(t, e.CancelSubscription(owner, w.Address, id))
	// Idempotent.
	require.NoError(t, e.CancelSubscription(owner, w.Address, id))

	now += 86400
	err = e.ExecuteSubscriptionPayment(w.Address, id)
	require.ErrorIs(t, err, models.ErrPaymentIntervalNotMet)
	require.Equal(t, int64(0), balanceOf(t, store, vendor))
}

func TestSubscriptionInsufficientFundsRolledBack(t *testing.T) {
	e, store := newTestEngine(t)
	now := int64(1_700_000_000)
	e.Now = func() int64 { return now }

	owner, vendor := testAddr(1), testAddr(2)
	w, err := e.CreateWallet(owner)
	require.NoError(t, err)
	fund(t, store, w.Address, 5)

	id, err := e.CreateSubscription(owner, w.Address, vendor, 10, 86400)
	require.NoError(t, err)

	now += 86400
	err = e.ExecuteSubscriptionPayment(w.Address, id)
	require.ErrorIs(t, err, models.ErrInsufficientFunds)

	// LastPayment must not have advanced: funding later allows collection.
	fund(t, store, w.Address, 100)
	require.NoError(t, e.ExecuteSubscriptionPayment(w.Address, id))
	require.Equal(t, int64(10), balanceOf(t, store, vendor))
}

func TestSubWalletLimit(t *testing.T) {
	e, store := newTestEngine(t)
	now := int64(1_700_000_000)
	e.Now = func() int64 { return now }

	owner, child := testAddr(1), testAddr(2)
	w, err := e.CreateWallet(owner)
	require.NoError(t, err)
	fund(t, store, w.Address, 1000)

	id, err := e.CreateSubWallet(owner, w.Address, child, 50, models.SubWalletModeRolling, 3600)
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	require.NoError(t, e.ExecuteSubWalletTransaction(child, w.Address, id, testAddr(9), 25))

	// 25 + 30 exceeds the 50 limit.
	err = e.ExecuteSubWalletTransaction(child, w.Address, id, testAddr(9), 30)
	require.ErrorIs(t, err, models.ErrExceedsSpendingLimit)

	// 25 + 25 lands exactly on the limit.
	require.NoError(t, e.ExecuteSubWalletTransaction(child, w.Address, id, testAddr(9), 25))
	require.Equal(t, int64(50), balanceOf(t, store, testAddr(9)))

	err = e.ExecuteSubWalletTransaction(child, w.Address, id, testAddr(9), 1)
	require.ErrorIs(t, err, models.ErrExceedsSpendingLimit)
}

func TestSubWalletRollingReset(t *testing.T) {
	e, store := newTestEngine(t)
	now := int64(1_700_000_000)
	e.Now = func() int64 { return now }

	owner, child := testAddr(1), testAddr(2)
	w, err := e.CreateWallet(owner)
	require.NoError(t, err)
	fund(t, store, w.Address, 1000)

	id, err := e.CreateSubWallet(owner, w.Address, child, 50, models.SubWalletModeRolling, 3600)
	require.NoError(t, err)

	require.NoError(t, e.ExecuteSubWalletTransaction(child, w.Address, id, testAddr(9), 40))
	err = e.ExecuteSubWalletTransaction(child, w.Address, id, testAddr(9), 40)
	require.ErrorIs(t, err, models.ErrExceedsSpendingLimit)

	// The period elapses; the allowance resets lazily on the next spend.
	now += 3600
	require.NoError(t, e.ExecuteSubWalletTransaction(child, w.Address, id, testAddr(9), 40))
	require.Equal(t, int64(80), balanceOf(t, store, testAddr(9)))
}

func TestSubWalletIdleRolloverStartsNewWindow(t *testing.T) {
	e, store := newTestEngine(t)
	now := int64(1_700_000_000)
	e.Now = func() int64 { return now }

	owner, child := testAddr(1), testAddr(2)
	w, err := e.CreateWallet(owner)
	require.NoError(t, err)
	fund(t, store, w.Address, 1000)

	id, err := e.CreateSubWallet(owner, w.Address, child, 50, models.SubWalletModeRolling, 3600)
	require.NoError(t, err)

	// The sub-wallet sits idle past its period with nothing spent. The
	// first spend of the new window must anchor the window at now.
	now += 3600
	require.NoError(t, e.ExecuteSubWalletTransaction(child, w.Address, id, testAddr(9), 50))

	now += 1
	err = e.ExecuteSubWalletTransaction(child, w.Address, id, testAddr(9), 50)
	require.ErrorIs(t, err, models.ErrExceedsSpendingLimit)
	require.Equal(t, int64(50), balanceOf(t, store, testAddr(9)))

	// Only after a full period from the anchored reset does the allowance
	// reopen.
	now += 3598
	err = e.ExecuteSubWalletTransaction(child, w.Address, id, testAddr(9), 50)
	require.ErrorIs(t, err, models.ErrExceedsSpendingLimit)

	now += 1
	require.NoError(t, e.ExecuteSubWalletTransaction(child, w.Address, id, testAddr(9), 50))
}

func TestSubWalletFixedModeNeverResets(t *testing.T) {
	e, store := newTestEngine(t)
	now := int64(1_700_000_000)
	e.Now = func() int64 { return now }

	owner, child := testAddr(1), testAddr(2)
	w, err := e.CreateWallet(owner)
	require.NoError(t, err)
	fund(t, store, w.Address, 1000)

	id, err := e.CreateSubWallet(owner, w.Address, child, 50, models.SubWalletModeFixed, 3600)
	require.NoError(t, err)

	require.NoError(t, e.ExecuteSubWalletTransaction(child, w.Address, id, testAddr(9), 50))

	now += 10 * 3600
	err = e.ExecuteSubWalletTransaction(child, w.Address, id, testAddr(9), 1)
	require.ErrorIs(t, err, models.ErrExceedsSpendingLimit)
}

func TestSubWalletChildOnly(t *testing.T) {
	e, store := newTestEngine(t)

	owner, child := testAddr(1), testAddr(2)
	w, err := e.CreateWallet(owner)
	require.NoError(t, err)
	fund(t, store, w.Address, 1000)

	id, err := e.CreateSubWallet(owner, w.Address, child, 50, models.SubWalletModeRolling, 3600)
	require.NoError(t, err)

	// Not even the owner may spend the child's allowance.
	err = e.ExecuteSubWalletTransaction(owner, w.Address, id, testAddr(9), 10)
	require.ErrorIs(t, err, models.ErrOnlyChildEOA)
}

func TestSubWalletPauseResume(t *testing.T) {
	e, store := newTestEngine(t)

	owner, child := testAddr(1), testAddr(2)
	w, err := e.CreateWallet(owner)
	require.NoError(t, err)
	fund(t, store, w.Address, 1000)

	id, err := e.CreateSubWallet(owner, w.Address, child, 50, models.SubWalletModeRolling, 3600)
	require.NoError(t, err)

	require.NoError(t, e.PauseSubWallet(owner, w.Address, id))
	err = e.ExecuteSubWalletTransaction(child, w.Address, id, testAddr(9), 10)
	require.ErrorIs(t, err, models.ErrSubWalletInactive)

	require.NoError(t, e.ResumeSubWallet(owner, w.Address, id))
	require.NoError(t, e.ExecuteSubWalletTransaction(child, w.Address, id, testAddr(9), 10))
}

func TestSubWalletRevokeIsTerminal(t *testing.T) {
	e, store := newTestEngine(t)

	owner, child := testAddr(1), testAddr(2)
	w, err := e.CreateWallet(owner)
	require.NoError(t, err)
	fund(t, store, w.Address, 1000)

	id, err := e.CreateSubWallet(owner, w.Address, child, 50, models.SubWalletModeRolling, 3600)
	require.NoError(t, err)

	require.NoError(t, e.RevokeSubWallet(owner, w.Address, id))

	err = e.ExecuteSubWalletTransaction(child, w.Address, id, testAddr(9), 1)
	require.ErrorIs(t, err, models.ErrSubWalletInactive)

	require.ErrorIs(t, e.ResumeSubWallet(owner, w.Address, id), models.ErrSubWalletRevoked)
	require.ErrorIs(t, e.UpdateSubWalletLimit(owner, w.Address, id, 100), models.ErrSubWalletRevoked)

	sws, err := store.GetSubWallets(w.Address)
	require.NoError(t, err)
	require.Len(t, sws, 1)
	require.True(t, sws[0].Revoked)
	require.False(t, sws[0].Active)
	require.Equal(t, int64(0), sws[0].SpendingLimit)
}

func TestUpdateSubWalletLimit(t *testing.T) {
	e, store := newTestEngine(t)

	owner, child := testAddr(1), testAddr(2)
	w, err := e.CreateWallet(owner)
	require.NoError(t, err)
	fund(t, store, w.Address, 1000)

	id, err := e.CreateSubWallet(owner, w.Address, child, 50, models.SubWalletModeRolling, 3600)
	require.NoError(t, err)

	require.NoError(t, e.ExecuteSubWalletTransaction(child, w.Address, id, testAddr(9), 50))
	require.NoError(t, e.UpdateSubWalletLimit(owner, w.Address, id, 80))

	// The new limit applies to the already-spent window.
	require.NoError(t, e.ExecuteSubWalletTransaction(child, w.Address, id, testAddr(9), 30))
	err = e.ExecuteSubWalletTransaction(child, w.Address, id, testAddr(9), 1)
	require.ErrorIs(t, err, models.ErrExceedsSpendingLimit)
}

func TestBatchAllOrNothing(t *testing.T) {
	e, store := newTestEngine(t)

	owner := testAddr(1)
	w, err := e.CreateWallet(owner)
	require.NoError(t, err)
	fund(t, store, w.Address, 100)

	cmd := &models.WalletCommand{
		Op: models.OpBatch,
		Batch: []models.WalletCommand{
			{Op: models.OpTransfer, To: testAddr(8), Amount: 60},
			{Op: models.OpTransfer, To: testAddr(9), Amount: 60},
		},
	}
	err = e.Execute(owner, w.Address, cmd)
	require.ErrorIs(t, err, models.ErrInsufficientFunds)

	// The first transfer rolled back with the second.
	require.Equal(t, int64(100), balanceOf(t, store, w.Address))
	require.Equal(t, int64(0), balanceOf(t, store, testAddr(8)))
}

func TestBatchCommits(t *testing.T) {
	e, store := newTestEngine(t)

	owner := testAddr(1)
	w, err := e.CreateWallet(owner)
	require.NoError(t, err)
	fund(t, store, w.Address, 100)

	cmd := &models.WalletCommand{
		Op: models.OpBatch,
		Batch: []models.WalletCommand{
			{Op: models.OpTransfer, To: testAddr(8), Amount: 40},
			{Op: models.OpTransfer, To: testAddr(9), Amount: 40},
		},
	}
	require.NoError(t, e.Execute(owner, w.Address, cmd))
	require.Equal(t, int64(20), balanceOf(t, store, w.Address))
	require.Equal(t, int64(40), balanceOf(t, store, testAddr(8)))
	require.Equal(t, int64(40), balanceOf(t, store, testAddr(9)))
}

func TestEffectiveSpent(t *testing.T) {
	// Rolling windows read zero once elapsed; fixed windows never do.
	spent, rolledOver := effectiveSpent(models.SubWalletModeRolling, 2000, 1000, 500, 40)
	require.Equal(t, int64(0), spent)
	require.True(t, rolledOver)

	// An idle window counts as rolled over too.
	spent, rolledOver = effectiveSpent(models.SubWalletModeRolling, 2000, 1000, 500, 0)
	require.Equal(t, int64(0), spent)
	require.True(t, rolledOver)

	spent, rolledOver = effectiveSpent(models.SubWalletModeRolling, 1400, 1000, 500, 40)
	require.Equal(t, int64(40), spent)
	require.False(t, rolledOver)

	spent, rolledOver = effectiveSpent(models.SubWalletModeFixed, 2000, 1000, 500, 40)
	require.Equal(t, int64(40), spent)
	require.False(t, rolledOver)
}
