package provider

import (
	"context"
	"sync"

	"github.com/greyhatharold/oracular/internal/chain"
	"github.com/greyhatharold/oracular/internal/wallet"
)

// NodeProvider is a headless wallet provider: accounts come from the local
// keystore and chain state from a direct node RPC connection. It plays the
// role a browser-injected wallet plays for the hosted dashboard.
type NodeProvider struct {
	reg *chain.Registry
	ks  wallet.KeystoreBackend

	mu         sync.Mutex
	accounts   []*wallet.Account
	authorized bool
	current    *chain.Chain
	client     *chain.EVMClient
	added      map[int64]chain.Chain
	nextSub    int
	subs       map[int]func(Event)
}

// NewNodeProvider creates a provider on the given chain with the given
// local accounts.
func NewNodeProvider(reg *chain.Registry, ks wallet.KeystoreBackend, start *chain.Chain, accounts []*wallet.Account) *NodeProvider {
	return &NodeProvider{
		reg:      reg,
		ks:       ks,
		accounts: accounts,
		current:  start,
		client:   chain.NewEVMClient(start.RPCs[0]),
		added:    make(map[int64]chain.Chain),
		subs:     make(map[int]func(Event)),
	}
}

// RequestAccounts authorizes and returns the locally held accounts.
// An empty keystore yields an empty list, not an error, mirroring a wallet
// with no accounts set up.
func (p *NodeProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	p.authorized = true
	addrs := p.addressesLocked()
	chainID := p.current.ChainID
	p.mu.Unlock()

	if len(addrs) > 0 {
		p.emit(Event{Type: EventConnect, ChainID: chainID})
	}
	return addrs, nil
}

// Accounts returns authorized accounts; empty before RequestAccounts has
// ever succeeded in this process, unless accounts were pre-authorized.
func (p *NodeProvider) Accounts(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addressesLocked(), nil
}

// ChainID returns the active chain's ID without a network round trip; the
// provider is the authority on which chain it is pointed at.
func (p *NodeProvider) ChainID(ctx context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.ChainID, nil
}

// SwitchChain re-points the provider at another configured chain. Chains
// neither in the registry nor previously added fail with code 4902.
func (p *NodeProvider) SwitchChain(ctx context.Context, chainID int64) error {
	p.mu.Lock()
	target, err := p.reg.GetByChainID(chainID)
	if err != nil {
		if added, ok := p.added[chainID]; ok {
			target = &added
		} else {
			p.mu.Unlock()
			return &Error{Code: chain.CodeChainNotAdded, Message: "unrecognized chain"}
		}
	}
	p.current = target
	p.client = chain.NewEVMClient(target.RPCs[0])
	p.mu.Unlock()

	p.emit(Event{Type: EventChainChanged, ChainID: chainID})
	return nil
}

// AddChain registers an out-of-registry chain and switches to it. The
// switch is surfaced through the chainChanged event, as wallets do.
func (p *NodeProvider) AddChain(ctx context.Context, c chain.Chain) error {
	if len(c.RPCs) == 0 {
		return &Error{Code: chain.CodeInternalError, Message: "chain has no RPC endpoints"}
	}
	p.mu.Lock()
	p.added[c.ChainID] = c
	p.mu.Unlock()
	return p.SwitchChain(ctx, c.ChainID)
}

// Subscribe registers fn for provider events.
func (p *NodeProvider) Subscribe(fn func(Event)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// Client returns the RPC client for the active chain.
func (p *NodeProvider) Client() *chain.EVMClient {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client
}

// Signer returns the signer for the first authorized account.
func (p *NodeProvider) Signer() *wallet.Signer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.authorized || len(p.accounts) == 0 {
		return nil
	}
	return wallet.NewSigner(p.accounts[0], p.ks)
}

// Chain returns the active chain config.
func (p *NodeProvider) Chain() *chain.Chain {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *NodeProvider) addressesLocked() []string {
	if !p.authorized {
		return nil
	}
	addrs := make([]string, 0, len(p.accounts))
	for _, a := range p.accounts {
		addrs = append(addrs, a.Address)
	}
	return addrs
}

func (p *NodeProvider) emit(ev Event) {
	p.mu.Lock()
	fns := make([]func(Event), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
