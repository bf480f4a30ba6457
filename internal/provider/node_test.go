package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greyhatharold/oracular/internal/chain"
	"github.com/greyhatharold/oracular/internal/wallet"
)

const devKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func newTestProvider(t *testing.T, withAccount bool) *NodeProvider {
	t.Helper()
	reg := chain.NewRegistry()
	start, err := reg.GetByName("ethereum")
	require.NoError(t, err)

	ks := wallet.NewInMemoryKeystore()
	var accounts []*wallet.Account
	if withAccount {
		account, err := wallet.AccountFromKey(ks, "dev", devKey)
		require.NoError(t, err)
		accounts = append(accounts, account)
	}
	return NewNodeProvider(reg, ks, start, accounts)
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

func TestAccountsEmptyBeforeAuthorization(t *testing.T) {
	p := newTestProvider(t, true)
	accounts, err := p.Accounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
	assert.Nil(t, p.Signer())
}

func TestRequestAccountsAuthorizes(t *testing.T) {
	p := newTestProvider(t, true)

	accounts, err := p.RequestAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	// Authorized from here on.
	again, err := p.Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, accounts, again)
	require.NotNil(t, p.Signer())
	assert.Equal(t, accounts[0], p.Signer().Address())
}

func TestRequestAccountsEmptyKeystore(t *testing.T) {
	p := newTestProvider(t, false)
	accounts, err := p.RequestAccounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
	assert.Nil(t, p.Signer())
}

func TestRequestAccountsEmitsConnect(t *testing.T) {
	p := newTestProvider(t, true)
	var events []Event
	p.Subscribe(func(ev Event) { events = append(events, ev) })

	_, err := p.RequestAccounts(context.Background())
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, EventConnect, events[0].Type)
	assert.Equal(t, int64(1), events[0].ChainID)
}

// ---------------------------------------------------------------------------
// Chain switching
// ---------------------------------------------------------------------------

func TestChainIDInitial(t *testing.T) {
	p := newTestProvider(t, true)
	id, err := p.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestSwitchChainKnown(t *testing.T) {
	p := newTestProvider(t, true)
	var events []Event
	p.Subscribe(func(ev Event) { events = append(events, ev) })

	require.NoError(t, p.SwitchChain(context.Background(), 137))

	id, err := p.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(137), id)
	assert.Equal(t, "polygon", p.Chain().Name)

	require.Len(t, events, 1)
	assert.Equal(t, EventChainChanged, events[0].Type)
	assert.Equal(t, int64(137), events[0].ChainID)
}

func TestSwitchChainUnknownFailsWith4902(t *testing.T) {
	p := newTestProvider(t, true)
	err := p.SwitchChain(context.Background(), 424242)
	require.Error(t, err)
	assert.Equal(t, chain.CodeChainNotAdded, CodeOf(err))
}

func TestAddChainRegistersAndSwitches(t *testing.T) {
	p := newTestProvider(t, true)
	custom := chain.Chain{
		Name: "devnet", DisplayName: "Devnet", ChainID: 31337,
		NativeCurrency: "ETH", Decimals: 18,
		RPCs: []string{"http://127.0.0.1:8545"},
	}

	require.NoError(t, p.AddChain(context.Background(), custom))

	id, err := p.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(31337), id)

	// Added chains stay switchable.
	require.NoError(t, p.SwitchChain(context.Background(), 1))
	require.NoError(t, p.SwitchChain(context.Background(), 31337))
}

func TestAddChainWithoutRPCs(t *testing.T) {
	p := newTestProvider(t, true)
	err := p.AddChain(context.Background(), chain.Chain{ChainID: 31337})
	require.Error(t, err)
	assert.Equal(t, chain.CodeInternalError, CodeOf(err))
}

// ---------------------------------------------------------------------------
// Subscribe
// ---------------------------------------------------------------------------

func TestUnsubscribeStopsEvents(t *testing.T) {
	p := newTestProvider(t, true)
	calls := 0
	off := p.Subscribe(func(Event) { calls++ })

	require.NoError(t, p.SwitchChain(context.Background(), 137))
	off()
	require.NoError(t, p.SwitchChain(context.Background(), 1))

	assert.Equal(t, 1, calls)
}

// ---------------------------------------------------------------------------
// CodeOf
// ---------------------------------------------------------------------------

func TestCodeOf(t *testing.T) {
	assert.Equal(t, 4902, CodeOf(&Error{Code: 4902}))
	assert.Equal(t, 0, CodeOf(context.Canceled))
	assert.Equal(t, 0, CodeOf(nil))
}
