package chain

import (
	"errors"
	"strings"
)

// ErrChainNotFound is returned when a chain is not in the registry.
var ErrChainNotFound = errors.New("chain not found")

// ErrorPattern maps a substring of a raw node error to a message the
// dashboard can show directly.
type ErrorPattern struct {
	Match   string
	Message string
}

// Chain holds the static configuration for a single supported network.
type Chain struct {
	Name           string
	DisplayName    string
	ChainID        int64
	NativeCurrency string
	Decimals       int
	RPCs           []string
	ExplorerURL    string
	// Confirmations is the number of blocks required after inclusion
	// before a transaction is treated as final.
	Confirmations uint64
	// GasLimitCeil caps the gas limit this application will ever submit.
	GasLimitCeil uint64
	// ErrorPatterns are consulted before the generic provider-code table
	// when normalizing node errors for display.
	ErrorPatterns []ErrorPattern
}

// Registry is the static chain registry.
type Registry struct {
	chains []Chain
	byName map[string]*Chain
	byID   map[int64]*Chain
}

// NewRegistry creates the registry of all supported networks.
func NewRegistry() *Registry {
	chains := allChains()
	r := &Registry{
		chains: chains,
		byName: make(map[string]*Chain, len(chains)),
		byID:   make(map[int64]*Chain, len(chains)),
	}
	for i := range r.chains {
		c := &r.chains[i]
		r.byName[c.Name] = c
		r.byID[c.ChainID] = c
	}
	return r
}

// All returns every chain in the registry.
func (r *Registry) All() []Chain {
	return r.chains
}

// GetByName finds a chain by its slug name (e.g. "base", "ethereum").
func (r *Registry) GetByName(name string) (*Chain, error) {
	c, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, ErrChainNotFound
	}
	return c, nil
}

// GetByChainID finds a chain by its numeric chain ID.
func (r *Registry) GetByChainID(id int64) (*Chain, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, ErrChainNotFound
	}
	return c, nil
}

// Supported reports whether id is a configured chain.
func (r *Registry) Supported(id int64) bool {
	_, ok := r.byID[id]
	return ok
}

// --- chain data ---

var commonPatterns = []ErrorPattern{
	{Match: "insufficient funds", Message: "Insufficient ETH for gas"},
	{Match: "nonce too low", Message: "Transaction nonce out of date, retry"},
	{Match: "replacement transaction underpriced", Message: "A pending transaction is blocking this one"},
	{Match: "execution reverted", Message: "Contract rejected the request"},
}

func allChains() []Chain {
	return []Chain{
		{
			Name: "ethereum", DisplayName: "Ethereum", ChainID: 1,
			NativeCurrency: "ETH", Decimals: 18,
			RPCs:          []string{"https://eth.llamarpc.com", "https://ethereum-rpc.publicnode.com"},
			ExplorerURL:   "https://etherscan.io",
			Confirmations: 3,
			GasLimitCeil:  1_500_000,
			ErrorPatterns: commonPatterns,
		},
		{
			Name: "sepolia", DisplayName: "Sepolia", ChainID: 11155111,
			NativeCurrency: "ETH", Decimals: 18,
			RPCs:          []string{"https://rpc.sepolia.org", "https://sepolia.gateway.tenderly.co"},
			ExplorerURL:   "https://sepolia.etherscan.io",
			Confirmations: 1,
			GasLimitCeil:  3_000_000,
			ErrorPatterns: commonPatterns,
		},
		{
			Name: "polygon", DisplayName: "Polygon", ChainID: 137,
			NativeCurrency: "MATIC", Decimals: 18,
			RPCs:          []string{"https://polygon-bor-rpc.publicnode.com", "https://polygon-pokt.nodies.app"},
			ExplorerURL:   "https://polygonscan.com",
			Confirmations: 10,
			GasLimitCeil:  2_000_000,
			ErrorPatterns: append([]ErrorPattern{
				{Match: "insufficient funds", Message: "Insufficient MATIC for gas"},
			}, commonPatterns[1:]...),
		},
		{
			Name: "arbitrum", DisplayName: "Arbitrum", ChainID: 42161,
			NativeCurrency: "ETH", Decimals: 18,
			RPCs:          []string{"https://arb1.arbitrum.io/rpc", "https://arbitrum.llamarpc.com"},
			ExplorerURL:   "https://arbiscan.io",
			Confirmations: 1,
			GasLimitCeil:  5_000_000,
			ErrorPatterns: commonPatterns,
		},
		{
			Name: "base", DisplayName: "Base", ChainID: 8453,
			NativeCurrency: "ETH", Decimals: 18,
			RPCs:          []string{"https://mainnet.base.org", "https://base.llamarpc.com"},
			ExplorerURL:   "https://basescan.org",
			Confirmations: 3,
			GasLimitCeil:  2_000_000,
			ErrorPatterns: commonPatterns,
		},
	}
}
