package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/greyhatharold/oracular/internal/chain"
	"github.com/greyhatharold/oracular/internal/event"
	"github.com/greyhatharold/oracular/internal/price"
	"github.com/greyhatharold/oracular/internal/provider"
	"github.com/greyhatharold/oracular/internal/wallet"
)

// Errors.
var (
	ErrProviderMissing     = errors.New("no wallet provider available")
	ErrUserRejected        = errors.New("user rejected the connection request")
	ErrNoAccounts          = errors.New("wallet has no accounts")
	ErrNotConnected        = errors.New("no wallet connection")
	ErrNetworkSwitchFailed = errors.New("network switch failed")
	ErrUnsupportedNetwork  = errors.New("unsupported network")
)

// State is the session connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	NetworkSwitching
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case NetworkSwitching:
		return "switching"
	default:
		return "disconnected"
	}
}

const connectionType = "node"

// Manager is the single authority over provider connectivity: connect,
// disconnect, network switching, signing, session persistence and gas-price
// monitoring. UI collaborators observe it exclusively through the event bus.
type Manager struct {
	prov         provider.Provider
	reg          *chain.Registry
	bus          *event.Bus
	store        Store
	feed         *price.Fetcher
	pollInterval time.Duration

	mu          sync.Mutex
	state       State
	account     string
	chainID     int64
	network     *chain.Chain
	connectGen  int
	pollCancel  context.CancelFunc
	offProvider func()
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore sets the session persistence store.
func WithStore(s Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithPriceFeed wires a native-token price feed for the USD leg of gas
// quotes. Without one, USD legitimately reports 0.00.
func WithPriceFeed(f *price.Fetcher) Option {
	return func(m *Manager) { m.feed = f }
}

// WithPollInterval overrides the gas poll cadence (default 15s). A
// non-positive interval disables background polling.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) { m.pollInterval = d }
}

// NewManager creates a session manager over the given provider.
func NewManager(prov provider.Provider, reg *chain.Registry, bus *event.Bus, opts ...Option) *Manager {
	m := &Manager{
		prov:         prov,
		reg:          reg,
		bus:          bus,
		store:        NewMemStore(),
		pollInterval: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize wires provider listeners and attempts session restoration.
// Fails with ErrProviderMissing when no provider is present. Listener
// registrations live until process teardown.
func (m *Manager) Initialize(ctx context.Context) error {
	if m.prov == nil {
		return ErrProviderMissing
	}

	m.mu.Lock()
	if m.offProvider == nil {
		m.offProvider = m.prov.Subscribe(m.handleProviderEvent)
	}
	m.mu.Unlock()

	return m.restore(ctx)
}

// restore auto-reconnects when a persisted account is still authorized,
// and switches to the persisted preferred network when it differs.
func (m *Manager) restore(ctx context.Context) error {
	persisted := m.store.Get(KeyAccount)
	if persisted == "" {
		return nil
	}

	accounts, err := m.prov.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}
	found := false
	for _, a := range accounts {
		if a == persisted {
			found = true
			break
		}
	}
	if !found {
		// Account no longer authorized; drop the stale session.
		m.store.Delete(KeyAccount, KeyChainID, KeyConnectionType)
		return nil
	}

	chainID, err := m.prov.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}

	m.mu.Lock()
	m.state = Connected
	m.account = persisted
	m.setChainLocked(chainID)
	m.startGasPollLocked()
	m.mu.Unlock()

	m.bus.Publish(event.Event{Type: event.Connect, Payload: persisted})

	if want := m.store.Get(KeyChainID); want != "" {
		if preferred, err := strconv.ParseInt(want, 10, 64); err == nil && preferred != chainID {
			if err := m.SwitchNetwork(ctx, preferred); err != nil {
				// Preferred-network restore is best effort.
				m.publishError(err)
			}
		}
	}
	return nil
}

// Connect requests account access. Expected rejections (user said no, no
// accounts configured) return false without an error; the UI reacts to the
// boolean and to the published error event. A concurrent Connect while one
// is in flight is a no-op.
func (m *Manager) Connect(ctx context.Context, forceNew bool) (bool, error) {
	m.mu.Lock()
	switch m.state {
	case Connecting:
		m.mu.Unlock()
		return false, nil
	case Connected, NetworkSwitching:
		m.mu.Unlock()
		return true, nil
	}
	if forceNew {
		m.store.Delete(KeyAccount, KeyChainID, KeyConnectionType)
	}
	m.state = Connecting
	m.connectGen++
	gen := m.connectGen
	m.mu.Unlock()

	accounts, err := m.prov.RequestAccounts(ctx)

	m.mu.Lock()
	if m.connectGen != gen || m.state != Connecting {
		// Disconnected while connecting: discard the late result.
		m.mu.Unlock()
		return false, nil
	}

	if err != nil {
		m.state = Disconnected
		m.mu.Unlock()
		if provider.CodeOf(err) == chain.CodeUserRejected {
			m.publishError(ErrUserRejected)
			return false, nil
		}
		wrapped := fmt.Errorf("requesting accounts: %w", err)
		m.publishError(wrapped)
		return false, wrapped
	}
	if len(accounts) == 0 {
		m.state = Disconnected
		m.mu.Unlock()
		m.publishError(ErrNoAccounts)
		return false, nil
	}
	m.mu.Unlock()

	// Provider round trip; the lock must not be held across it or a
	// provider event callback would block behind us.
	chainID, err := m.prov.ChainID(ctx)

	m.mu.Lock()
	if m.connectGen != gen || m.state != Connecting {
		m.mu.Unlock()
		return false, nil
	}
	if err != nil {
		m.state = Disconnected
		m.mu.Unlock()
		wrapped := fmt.Errorf("resolving chain: %w", err)
		m.publishError(wrapped)
		return false, wrapped
	}

	m.state = Connected
	m.account = accounts[0]
	m.setChainLocked(chainID)
	m.store.Set(KeyAccount, m.account)
	m.store.Set(KeyChainID, strconv.FormatInt(chainID, 10))
	m.store.Set(KeyConnectionType, connectionType)
	m.startGasPollLocked()
	m.mu.Unlock()

	m.bus.Publish(event.Event{Type: event.Connect, Payload: accounts[0]})
	return true, nil
}

// Disconnect tears the session down: persisted keys cleared, gas polling
// stopped, session fields nulled. Safe to call in any state, including
// mid-Connecting (the in-flight result is then discarded).
func (m *Manager) Disconnect() {
	m.mu.Lock()
	wasActive := m.state != Disconnected
	m.state = Disconnected
	m.connectGen++
	m.account = ""
	m.chainID = 0
	m.network = nil
	m.stopGasPollLocked()
	m.store.Delete(KeyAccount, KeyChainID, KeyConnectionType)
	m.mu.Unlock()

	if wasActive {
		m.bus.Publish(event.Event{Type: event.Disconnect})
	}
}

// SwitchNetwork requests a switch to targetChainID. When the provider does
// not recognize the chain (code 4902), exactly one add-chain request is
// issued from static config; the switch itself then lands via the
// provider's chainChanged event.
func (m *Manager) SwitchNetwork(ctx context.Context, targetChainID int64) error {
	m.mu.Lock()
	if m.state != Connected {
		m.mu.Unlock()
		return ErrNotConnected
	}
	m.state = NetworkSwitching
	m.mu.Unlock()

	err := m.prov.SwitchChain(ctx, targetChainID)
	if err != nil && provider.CodeOf(err) == chain.CodeChainNotAdded {
		cfg, regErr := m.reg.GetByChainID(targetChainID)
		if regErr != nil {
			err = fmt.Errorf("%w: chain %d", ErrUnsupportedNetwork, targetChainID)
		} else {
			err = m.prov.AddChain(ctx, *cfg)
		}
	}

	if err != nil {
		m.mu.Lock()
		if m.state == NetworkSwitching {
			m.state = Connected
		}
		m.mu.Unlock()
		if !errors.Is(err, ErrUnsupportedNetwork) {
			err = fmt.Errorf("%w: %v", ErrNetworkSwitchFailed, err)
		}
		m.publishError(err)
		return err
	}
	return nil
}

// TxRequest describes a transaction to sign and submit. GasLimit and
// GasPrice are optional; absent values are filled from a fresh estimate
// (+20% buffer) and the current optimal fee.
type TxRequest struct {
	To       string
	Data     string
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
}

// SignTransaction fills gas fields, signs, broadcasts, publishes
// transactionPending with the hash, waits for the receipt and publishes
// transactionConfirmed. Fails with ErrNotConnected when no account is
// active.
func (m *Manager) SignTransaction(ctx context.Context, req TxRequest) (*chain.TxReceipt, error) {
	m.mu.Lock()
	if m.state != Connected && m.state != NetworkSwitching {
		m.mu.Unlock()
		return nil, ErrNotConnected
	}
	network := m.network
	chainID := m.chainID
	m.mu.Unlock()

	signer := m.prov.Signer()
	if signer == nil {
		return nil, ErrNotConnected
	}
	client := m.prov.Client()

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		est, err := client.EstimateGas(ctx, signer.Address(), req.To, req.Data)
		if err != nil {
			wrapped := fmt.Errorf("estimating gas: %w", err)
			m.publishError(wrapped)
			return nil, wrapped
		}
		gasLimit = BufferGas(est)
	}
	if network != nil && network.GasLimitCeil > 0 && gasLimit > network.GasLimitCeil {
		gasLimit = network.GasLimitCeil
	}

	gasPrice := req.GasPrice
	if gasPrice == nil {
		fee, err := client.OptimalFee(ctx)
		if err != nil {
			wrapped := fmt.Errorf("fetching gas price: %w", err)
			m.publishError(wrapped)
			return nil, wrapped
		}
		gasPrice = fee
	}

	hash, err := m.submit(ctx, client, signer, chainID, req, gasLimit, gasPrice)
	if err != nil {
		m.publishError(err)
		return nil, err
	}

	m.bus.Publish(event.Event{Type: event.TransactionPending, Payload: hash})

	confirmations := uint64(1)
	if network != nil {
		confirmations = network.Confirmations
	}
	receipt, err := client.WaitConfirmed(ctx, hash, confirmations)
	if err != nil {
		wrapped := fmt.Errorf("awaiting receipt: %w", err)
		m.publishError(wrapped)
		return nil, wrapped
	}

	m.bus.Publish(event.Event{Type: event.TransactionConfirmed, Payload: receipt})
	return receipt, nil
}

func (m *Manager) submit(ctx context.Context, client *chain.EVMClient, signer *wallet.Signer, chainID int64, req TxRequest, gasLimit uint64, gasPrice *big.Int) (string, error) {
	nonce, err := client.GetNonce(ctx, signer.Address())
	if err != nil {
		return "", fmt.Errorf("getting nonce: %w", err)
	}

	data, err := hexToBytes(req.Data)
	if err != nil {
		return "", fmt.Errorf("decoding calldata: %w", err)
	}

	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}
	toAddr := common.HexToAddress(req.To)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(chainID),
		Nonce:     nonce,
		GasTipCap: gasPrice,
		GasFeeCap: new(big.Int).Mul(gasPrice, big.NewInt(2)),
		Gas:       gasLimit,
		To:        &toAddr,
		Value:     value,
		Data:      data,
	})

	raw, err := signer.SignTx(tx, big.NewInt(chainID))
	if err != nil {
		return "", fmt.Errorf("signing transaction: %w", err)
	}

	hash, err := client.SendRawTransaction(ctx, "0x"+fmt.Sprintf("%x", raw))
	if err != nil {
		return "", fmt.Errorf("broadcasting transaction: %w", err)
	}
	return hash, nil
}

// SignMessage signs msg with the active account (EIP-191).
func (m *Manager) SignMessage(msg []byte) ([]byte, error) {
	m.mu.Lock()
	connected := m.state == Connected || m.state == NetworkSwitching
	m.mu.Unlock()
	if !connected {
		return nil, ErrNotConnected
	}
	signer := m.prov.Signer()
	if signer == nil {
		return nil, ErrNotConnected
	}
	return signer.SignMessage(msg)
}

// Subscribe registers a lifecycle event callback and returns an
// unsubscribe function.
func (m *Manager) Subscribe(fn func(event.Event)) func() {
	return m.bus.Subscribe(fn)
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Account returns the active account address, or "".
func (m *Manager) Account() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.account
}

// ChainID returns the active chain ID, or 0 when disconnected.
func (m *Manager) ChainID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chainID
}

// Network returns the active chain config, or nil when the chain is
// unsupported or disconnected.
func (m *Manager) Network() *chain.Chain {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.network
}

// --- provider event handling ---

func (m *Manager) handleProviderEvent(ev provider.Event) {
	switch ev.Type {
	case provider.EventAccountsChanged:
		if len(ev.Accounts) == 0 {
			m.Disconnect()
			return
		}
		m.mu.Lock()
		changed := m.account != ev.Accounts[0]
		m.account = ev.Accounts[0]
		if changed {
			m.store.Set(KeyAccount, m.account)
		}
		m.mu.Unlock()
		if changed {
			m.bus.Publish(event.Event{Type: event.AccountChanged, Payload: ev.Accounts[0]})
		}

	case provider.EventChainChanged:
		m.mu.Lock()
		m.setChainLocked(ev.ChainID)
		m.store.Set(KeyChainID, strconv.FormatInt(ev.ChainID, 10))
		if m.state == NetworkSwitching {
			m.state = Connected
		}
		unsupported := m.network == nil
		m.mu.Unlock()

		m.bus.Publish(event.Event{Type: event.NetworkChanged, Payload: ev.ChainID})
		if unsupported {
			m.publishError(fmt.Errorf("%w: chain %d", ErrUnsupportedNetwork, ev.ChainID))
		}

	case provider.EventDisconnect:
		m.Disconnect()
	}
}

func (m *Manager) setChainLocked(chainID int64) {
	m.chainID = chainID
	if c, err := m.reg.GetByChainID(chainID); err == nil {
		m.network = c
	} else {
		m.network = nil
	}
}

// publishError pushes a human-readable error event through the bus. When the
// underlying failure looks like an HTML-for-JSON auth failure, the stored
// auth token is cleared to break a login redirect loop.
func (m *Manager) publishError(err error) {
	if errors.Is(err, price.ErrResponseFormat) {
		m.store.Delete(KeyAuthToken)
	}
	m.mu.Lock()
	network := m.network
	m.mu.Unlock()
	m.bus.Publish(event.Event{Type: event.Error, Payload: chain.Humanize(network, err)})
}

// BufferGas applies the 20% submission buffer to a gas estimate.
func BufferGas(estimate uint64) uint64 {
	return estimate + (estimate+4)/5
}

func hexToBytes(s string) ([]byte, error) {
	if len(s) >= 2 && s[:2] == "0x" {
		s = s[2:]
	}
	if len(s)%2 != 0 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}
	return b, nil
}
