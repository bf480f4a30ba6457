package wallet

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known throwaway development key.
const (
	testKey  = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func testAccount(t *testing.T) (*Account, *InMemoryKeystore) {
	t.Helper()
	ks := NewInMemoryKeystore()
	account, err := AccountFromKey(ks, "dev", testKey)
	require.NoError(t, err)
	return account, ks
}

// ---------------------------------------------------------------------------
// AccountFromKey
// ---------------------------------------------------------------------------

func TestAccountFromKeyDerivesAddress(t *testing.T) {
	account, _ := testAccount(t)
	assert.Equal(t, testAddr, account.Address)
	assert.Equal(t, "dev", account.Name)
	assert.NotEmpty(t, account.KeyRef)
}

func TestAccountFromKeyWithoutPrefix(t *testing.T) {
	ks := NewInMemoryKeystore()
	account, err := AccountFromKey(ks, "dev", testKey[2:])
	require.NoError(t, err)
	assert.Equal(t, testAddr, account.Address)
}

func TestAccountFromKeyInvalid(t *testing.T) {
	ks := NewInMemoryKeystore()
	_, err := AccountFromKey(ks, "dev", "0xnothex")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

// ---------------------------------------------------------------------------
// Signer
// ---------------------------------------------------------------------------

func TestSignerAddress(t *testing.T) {
	account, ks := testAccount(t)
	s := NewSigner(account, ks)
	assert.Equal(t, testAddr, s.Address())
}

func TestSignTxProducesRawBytes(t *testing.T) {
	account, ks := testAccount(t)
	s := NewSigner(account, ks)

	to := common.HexToAddress("0x2279B7A0a67DB372996a5FaB50D91eAA73d2eBe6")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     0,
		GasTipCap: big.NewInt(1000000000),
		GasFeeCap: big.NewInt(2000000000),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(1),
	})

	raw, err := s.SignTx(tx, big.NewInt(1))
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	// Typed transaction envelope: first byte is the dynamic-fee type.
	assert.Equal(t, byte(0x02), raw[0])
}

func TestSignTxMissingKey(t *testing.T) {
	account, _ := testAccount(t)
	s := NewSigner(account, NewInMemoryKeystore()) // empty keystore

	to := common.HexToAddress("0x2279B7A0a67DB372996a5FaB50D91eAA73d2eBe6")
	tx := types.NewTx(&types.DynamicFeeTx{ChainID: big.NewInt(1), Gas: 21000, To: &to})
	_, err := s.SignTx(tx, big.NewInt(1))
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// SignMessage / VerifyMessage
// ---------------------------------------------------------------------------

func TestSignMessageRoundTrip(t *testing.T) {
	account, ks := testAccount(t)
	s := NewSigner(account, ks)

	msg := []byte("oracular login challenge")
	sig, err := s.SignMessage(msg)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])

	recovered, err := VerifyMessage(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, testAddr, recovered.Hex())
}

func TestVerifyMessageWrongMessage(t *testing.T) {
	account, ks := testAccount(t)
	s := NewSigner(account, ks)

	sig, err := s.SignMessage([]byte("original"))
	require.NoError(t, err)

	recovered, err := VerifyMessage([]byte("tampered"), sig)
	require.NoError(t, err)
	assert.NotEqual(t, testAddr, recovered.Hex())
}

func TestVerifyMessageBadLength(t *testing.T) {
	_, err := VerifyMessage([]byte("msg"), []byte{1, 2, 3})
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// InMemoryKeystore
// ---------------------------------------------------------------------------

func TestInMemoryKeystoreRoundTrip(t *testing.T) {
	ks := NewInMemoryKeystore()
	ref, err := ks.Store("dev", testKey)
	require.NoError(t, err)

	got, err := ks.Retrieve(ref)
	require.NoError(t, err)
	assert.Equal(t, testKey, got)

	require.NoError(t, ks.Delete(ref))
	_, err = ks.Retrieve(ref)
	assert.Error(t, err)
}
