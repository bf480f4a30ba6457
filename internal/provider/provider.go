package provider

import (
	"context"
	"fmt"

	"github.com/greyhatharold/oracular/internal/chain"
	"github.com/greyhatharold/oracular/internal/wallet"
)

// Provider event names (EIP-1193 convention).
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
	EventConnect         = "connect"
	EventDisconnect      = "disconnect"
)

// Event is one provider-level notification.
type Event struct {
	Type     string
	Accounts []string // accountsChanged
	ChainID  int64    // chainChanged, connect
}

// Error is a provider error carrying an EIP-1193/MetaMask error code.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// ErrorCode implements chain.Coded.
func (e *Error) ErrorCode() int { return e.Code }

// CodeOf returns the provider error code of err, or 0.
func CodeOf(err error) int {
	if coded, ok := err.(chain.Coded); ok {
		return coded.ErrorCode()
	}
	return 0
}

// Provider is the wallet seam: the interface through which the application
// requests accounts, chain info, chain switches, and signing capability.
// It mirrors the injected-provider surface a browser wallet exposes.
type Provider interface {
	// RequestAccounts asks the wallet for account access (eth_requestAccounts).
	RequestAccounts(ctx context.Context) ([]string, error)
	// Accounts lists already-authorized accounts (eth_accounts).
	Accounts(ctx context.Context) ([]string, error)
	// ChainID returns the active chain (eth_chainId).
	ChainID(ctx context.Context) (int64, error)
	// SwitchChain requests wallet_switchEthereumChain. Unrecognized chains
	// fail with code 4902.
	SwitchChain(ctx context.Context, chainID int64) error
	// AddChain requests wallet_addEthereumChain. The switch to the added
	// chain lands via a subsequent chainChanged event.
	AddChain(ctx context.Context, c chain.Chain) error
	// Subscribe registers fn for provider events; the returned function
	// removes the registration.
	Subscribe(fn func(Event)) func()
	// Client returns the RPC client for the active chain.
	Client() *chain.EVMClient
	// Signer returns the signer for the active account, or nil when no
	// account is authorized.
	Signer() *wallet.Signer
}
