package session

import (
	"context"
	"math/big"

	"github.com/greyhatharold/oracular/internal/chain"
)

// The methods below expose the manager as the chain backend the contract
// gateway calls through. Every method re-fetches the provider's current
// client and signer rather than caching them: the gateway's reference to
// the session is deliberately weak, and assumptions must not survive a
// suspension point across a network or account change.

// CallContract performs a read-only contract call.
func (m *Manager) CallContract(ctx context.Context, to, calldata string) (string, error) {
	return m.prov.Client().CallContract(ctx, to, calldata)
}

// EstimateGas estimates gas for a contract call from the active account.
func (m *Manager) EstimateGas(ctx context.Context, to, calldata string) (uint64, error) {
	from := ""
	if s := m.prov.Signer(); s != nil {
		from = s.Address()
	}
	return m.prov.Client().EstimateGas(ctx, from, to, calldata)
}

// OptimalFee returns the current fee to bid.
func (m *Manager) OptimalFee(ctx context.Context) (*big.Int, error) {
	return m.prov.Client().OptimalFee(ctx)
}

// SubmitTransaction signs and broadcasts a single contract call with
// explicit gas settings, returning the transaction hash. Unlike
// SignTransaction it does not wait for the receipt; the gateway owns
// confirmation handling for its submissions.
func (m *Manager) SubmitTransaction(ctx context.Context, to, calldata string, gasLimit uint64, gasPrice *big.Int) (string, error) {
	signer := m.prov.Signer()
	if signer == nil {
		return "", ErrNotConnected
	}
	m.mu.Lock()
	chainID := m.chainID
	m.mu.Unlock()

	return m.submit(ctx, m.prov.Client(), signer, chainID, TxRequest{To: to, Data: calldata}, gasLimit, gasPrice)
}

// WaitConfirmed waits for hash to be mined plus the given confirmations.
func (m *Manager) WaitConfirmed(ctx context.Context, hash string, confirmations uint64) (*chain.TxReceipt, error) {
	return m.prov.Client().WaitConfirmed(ctx, hash, confirmations)
}

// Logs queries event logs in a block range.
func (m *Manager) Logs(ctx context.Context, address string, topics []string, fromBlock, toBlock uint64) ([]chain.LogEntry, error) {
	return m.prov.Client().GetLogs(ctx, address, topics, fromBlock, toBlock)
}

// BlockNumber returns the chain head.
func (m *Manager) BlockNumber(ctx context.Context) (uint64, error) {
	return m.prov.Client().BlockNumber(ctx)
}

// BlockTime returns a block's unix timestamp.
func (m *Manager) BlockTime(ctx context.Context, block uint64) (uint64, error) {
	return m.prov.Client().BlockTime(ctx, block)
}
