package delegation

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tutela-wallet/tutela/internal/ledger"
	"github.com/tutela-wallet/tutela/internal/models"
	"github.com/tutela-wallet/tutela/internal/repository"
	"github.com/tutela-wallet/tutela/internal/wallet"
	"github.com/tutela-wallet/tutela/pkg/logger"
	"github.com/tutela-wallet/tutela/pkg/validation"
)

const testChainScope = uint64(1)

var testOwner = fmt.Sprintf("0x%040x", 0xaa)

type testEnv struct {
	engine *Engine
	wallet *wallet.Engine
	store  *repository.Store
	now    int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	log, err := logger.NewLogger(true)
	require.NoError(t, err)
	store, err := repository.NewStore(db, log)
	require.NoError(t, err)

	env := &testEnv{store: store, now: 1_700_000_000}
	env.wallet = wallet.NewEngine(store, nil, log)
	env.wallet.Now = func() int64 { return env.now }
	env.engine = NewEngine(store, env.wallet, nil, testChainScope, testOwner, log)
	env.engine.Now = func() int64 { return env.now }
	return env
}

// newPrincipal generates a signing key and creates a funded wallet owned by
// its address.
func (env *testEnv) newPrincipal(t *testing.T, funds int64) (*ecdsa.PrivateKey, string, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	principal := validation.NormalizeAddress(crypto.PubkeyToAddress(key.PublicKey).Hex())

	w, err := env.wallet.CreateWallet(principal)
	require.NoError(t, err)
	require.NoError(t, env.store.Transaction(func(tx *gorm.DB) error {
		return ledger.Credit(tx, w.Address, funds)
	}))
	return key, principal, w.Address
}

func signRequest(t *testing.T, key *ecdsa.PrivateKey, walletAddr string, payload []byte, nonce uint64, deadline int64) []byte {
	t.Helper()
	digest := RequestDigest(testChainScope, common.HexToAddress(walletAddr), payload, nonce, deadline)
	signature, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)
	return signature
}

func transferPayload(t *testing.T, to string, amount int64) []byte {
	t.Helper()
	payload, err := json.Marshal(models.WalletCommand{Op: models.OpTransfer, To: to, Amount: amount})
	require.NoError(t, err)
	return payload
}

func TestExecuteOnWallet(t *testing.T) {
	env := newTestEnv(t)
	key, principal, walletAddr := env.newPrincipal(t, 1000)

	to := fmt.Sprintf("0x%040x", 0x99)
	payload := transferPayload(t, to, 100)
	deadline := env.now + 60

	req := &ExecuteRequest{
		Caller:    fmt.Sprintf("0x%040x", 0x11),
		Principal: principal,
		Wallet:    walletAddr,
		Payload:   payload,
		Nonce:     0,
		Deadline:  deadline,
		Signature: signRequest(t, key, walletAddr, payload, 0, deadline),
	}
	require.NoError(t, env.engine.ExecuteOnWallet(req))

	balance, err := env.store.GetBalance(to)
	require.NoError(t, err)
	require.Equal(t, int64(100), balance)

	nonce, err := env.engine.GetNonce(principal)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)

	// Replay with the consumed nonce.
	require.ErrorIs(t, env.engine.ExecuteOnWallet(req), models.ErrInvalidNonce)
}

func TestExpiredDeadline(t *testing.T) {
	env := newTestEnv(t)
	key, principal, walletAddr := env.newPrincipal(t, 1000)

	payload := transferPayload(t, fmt.Sprintf("0x%040x", 0x99), 100)
	deadline := env.now - 1

	err := env.engine.ExecuteOnWallet(&ExecuteRequest{
		Caller:    principal,
		Principal: principal,
		Wallet:    walletAddr,
		Payload:   payload,
		Nonce:     0,
		Deadline:  deadline,
		Signature: signRequest(t, key, walletAddr, payload, 0, deadline),
	})
	require.ErrorIs(t, err, models.ErrExpiredDeadline)
}

func TestWrongSigner(t *testing.T) {
	env := newTestEnv(t)
	_, principal, walletAddr := env.newPrincipal(t, 1000)

	intruder, err := crypto.GenerateKey()
	require.NoError(t, err)

	payload := transferPayload(t, fmt.Sprintf("0x%040x", 0x99), 100)
	deadline := env.now + 60

	err = env.engine.ExecuteOnWallet(&ExecuteRequest{
		Caller:    principal,
		Principal: principal,
		Wallet:    walletAddr,
		Payload:   payload,
		Nonce:     0,
		Deadline:  deadline,
		Signature: signRequest(t, intruder, walletAddr, payload, 0, deadline),
	})
	require.ErrorIs(t, err, models.ErrInvalidSignature)
}

func TestTamperedPayload(t *testing.T) {
	env := newTestEnv(t)
	key, principal, walletAddr := env.newPrincipal(t, 1000)

	payload := transferPayload(t, fmt.Sprintf("0x%040x", 0x99), 100)
	deadline := env.now + 60
	signature := signRequest(t, key, walletAddr, payload, 0, deadline)

	// The relay rewrites the amount after signing.
	err := env.engine.ExecuteOnWallet(&ExecuteRequest{
		Caller:    principal,
		Principal: principal,
		Wallet:    walletAddr,
		Payload:   transferPayload(t, fmt.Sprintf("0x%040x", 0x99), 900),
		Nonce:     0,
		Deadline:  deadline,
		Signature: signature,
	})
	require.ErrorIs(t, err, models.ErrInvalidSignature)
}

func TestNonceRollbackOnFailedCommand(t *testing.T) {
	env := newTestEnv(t)
	key, principal, walletAddr := env.newPrincipal(t, 50)

	to := fmt.Sprintf("0x%040x", 0x99)
	deadline := env.now + 60

	// More than the wallet holds: the transfer fails and the nonce
	// increment rolls back with it.
	payload := transferPayload(t, to, 100)
	err := env.engine.ExecuteOnWallet(&ExecuteRequest{
		Caller:    principal,
		Principal: principal,
		Wallet:    walletAddr,
		Payload:   payload,
		Nonce:     0,
		Deadline:  deadline,
		Signature: signRequest(t, key, walletAddr, payload, 0, deadline),
	})
	require.ErrorIs(t, err, models.ErrInsufficientFunds)

	nonce, err := env.engine.GetNonce(principal)
	require.NoError(t, err)
	require.Equal(t, uint64(0), nonce)

	// The same nonce admits a corrected request.
	payload = transferPayload(t, to, 40)
	require.NoError(t, env.engine.ExecuteOnWallet(&ExecuteRequest{
		Caller:    principal,
		Principal: principal,
		Wallet:    walletAddr,
		Payload:   payload,
		Nonce:     0,
		Deadline:  deadline,
		Signature: signRequest(t, key, walletAddr, payload, 0, deadline),
	}))
}

func TestPaymasterBypassesSignature(t *testing.T) {
	env := newTestEnv(t)
	_, principal, walletAddr := env.newPrincipal(t, 1000)

	paymaster := fmt.Sprintf("0x%040x", 0xbb)
	require.NoError(t, env.engine.AddAuthorizedPaymaster(testOwner, paymaster))

	to := fmt.Sprintf("0x%040x", 0x99)
	require.NoError(t, env.engine.ExecuteOnWallet(&ExecuteRequest{
		Caller:    paymaster,
		Principal: principal,
		Wallet:    walletAddr,
		Payload:   transferPayload(t, to, 100),
		Nonce:     0,
		Deadline:  env.now + 60,
	}))

	// The bypass still consumes a nonce.
	nonce, err := env.engine.GetNonce(principal)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)

	// Once removed, the unsigned request is rejected.
	require.NoError(t, env.engine.RemoveAuthorizedPaymaster(testOwner, paymaster))
	err = env.engine.ExecuteOnWallet(&ExecuteRequest{
		Caller:    paymaster,
		Principal: principal,
		Wallet:    walletAddr,
		Payload:   transferPayload(t, to, 100),
		Nonce:     1,
		Deadline:  env.now + 60,
	})
	require.ErrorIs(t, err, models.ErrInvalidSignature)
}

func TestPaymasterManagementOwnerOnly(t *testing.T) {
	env := newTestEnv(t)

	paymaster := fmt.Sprintf("0x%040x", 0xbb)
	err := env.engine.AddAuthorizedPaymaster(fmt.Sprintf("0x%040x", 0xcc), paymaster)
	require.ErrorIs(t, err, models.ErrNotOwner)

	require.NoError(t, env.engine.AddAuthorizedPaymaster(testOwner, paymaster))
	err = env.engine.RemoveAuthorizedPaymaster(fmt.Sprintf("0x%040x", 0xcc), paymaster)
	require.ErrorIs(t, err, models.ErrNotOwner)
}

func TestGetNonceUnknownPrincipal(t *testing.T) {
	env := newTestEnv(t)

	nonce, err := env.engine.GetNonce(fmt.Sprintf("0x%040x", 0xdd))
	require.NoError(t, err)
	require.Equal(t, uint64(0), nonce)
}

func TestDigestBinding(t *testing.T) {
	payload := []byte(`{"op":"transfer"}`)
	walletA := common.HexToAddress(fmt.Sprintf("0x%040x", 1))
	walletB := common.HexToAddress(fmt.Sprintf("0x%040x", 2))

	base := RequestDigest(1, walletA, payload, 0, 100)
	require.NotEqual(t, base, RequestDigest(2, walletA, payload, 0, 100))
	require.NotEqual(t, base, RequestDigest(1, walletB, payload, 0, 100))
	require.NotEqual(t, base, RequestDigest(1, walletA, []byte(`{}`), 0, 100))
	require.NotEqual(t, base, RequestDigest(1, walletA, payload, 1, 100))
	require.NotEqual(t, base, RequestDigest(1, walletA, payload, 0, 101))
	require.Equal(t, base, RequestDigest(1, walletA, payload, 0, 100))
}

func TestRecoverSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	digest := RequestDigest(1, common.HexToAddress(fmt.Sprintf("0x%040x", 1)), []byte("payload"), 0, 100)
	signature, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)

	recovered, err := RecoverSigner(digest, signature)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), recovered)

	_, err = RecoverSigner(digest, []byte("short"))
	require.Error(t, err)
}
