package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"
)

// EVMClient is a minimal JSON-RPC client for EVM chains.
type EVMClient struct {
	url    string
	client *http.Client
}

// NewEVMClient creates a new EVM JSON-RPC client pointed at url.
func NewEVMClient(url string) *EVMClient {
	return &EVMClient{
		url: url,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// URL returns the endpoint this client talks to.
func (c *EVMClient) URL() string { return c.url }

// ChainID returns the chain's ID.
func (c *EVMClient) ChainID(ctx context.Context) (int64, error) {
	n, err := c.callBig(ctx, "eth_chainId")
	if err != nil {
		return 0, err
	}
	return n.Int64(), nil
}

// BlockNumber returns the latest block number.
func (c *EVMClient) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.callBig(ctx, "eth_blockNumber")
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

// GasPrice returns the current legacy gas price in wei.
func (c *EVMClient) GasPrice(ctx context.Context) (*big.Int, error) {
	return c.callBig(ctx, "eth_gasPrice")
}

// OptimalFee returns the fee to bid for a transaction right now: the
// EIP-1559 base fee with a small tip when the chain exposes one, falling
// back to eth_gasPrice on legacy chains.
func (c *EVMClient) OptimalFee(ctx context.Context) (*big.Int, error) {
	gp, err := c.GasPrice(ctx)
	if err != nil {
		return nil, err
	}

	result, err := c.call(ctx, "eth_getBlockByNumber", "latest", false)
	if err != nil || result == nil {
		return gp, nil
	}
	raw, _ := json.Marshal(result)
	var rb struct {
		BaseFeePerGas string `json:"baseFeePerGas"`
	}
	if json.Unmarshal(raw, &rb) != nil || rb.BaseFeePerGas == "" {
		return gp, nil
	}
	bf, ok := parseBigHex(rb.BaseFeePerGas)
	if !ok {
		return gp, nil
	}

	// base fee + 12.5% headroom covers one full upward adjustment.
	fee := new(big.Int).Mul(bf, big.NewInt(9))
	fee.Div(fee, big.NewInt(8))
	if fee.Cmp(gp) < 0 {
		return gp, nil
	}
	return fee, nil
}

// EstimateGas estimates gas for a contract call.
func (c *EVMClient) EstimateGas(ctx context.Context, from, to, data string) (uint64, error) {
	params := map[string]string{"to": to}
	if from != "" {
		params["from"] = from
	}
	if data != "" {
		params["data"] = data
	}

	n, err := c.callBigParams(ctx, "eth_estimateGas", params, "latest")
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

// GetNonce returns the pending transaction count for an address.
func (c *EVMClient) GetNonce(ctx context.Context, address string) (uint64, error) {
	n, err := c.callBigParams(ctx, "eth_getTransactionCount", address, "pending")
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

// CallContract calls a read function with the given calldata.
func (c *EVMClient) CallContract(ctx context.Context, toAddr, calldata string) (string, error) {
	result, err := c.call(ctx, "eth_call", map[string]string{
		"to":   toAddr,
		"data": calldata,
	}, "latest")
	if err != nil {
		return "", err
	}
	s, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("unexpected result: %T", result)
	}
	return s, nil
}

// SendRawTransaction broadcasts a signed raw transaction and returns its hash.
func (c *EVMClient) SendRawTransaction(ctx context.Context, rawTx string) (string, error) {
	result, err := c.call(ctx, "eth_sendRawTransaction", rawTx)
	if err != nil {
		return "", err
	}
	hash, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("unexpected result: %T", result)
	}
	return hash, nil
}

// LogEntry holds one event log.
type LogEntry struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockNumber string   `json:"blockNumber"`
	TxHash      string   `json:"transactionHash"`
	LogIndex    string   `json:"logIndex"`
}

// BlockNum returns the decoded block number of the log entry.
func (l LogEntry) BlockNum() uint64 {
	n, ok := parseBigHex(l.BlockNumber)
	if !ok {
		return 0
	}
	return n.Uint64()
}

// GetLogs queries event logs for address matching topics in [fromBlock, toBlock].
func (c *EVMClient) GetLogs(ctx context.Context, address string, topics []string, fromBlock, toBlock uint64) ([]LogEntry, error) {
	filter := map[string]interface{}{
		"address":   address,
		"fromBlock": fmt.Sprintf("0x%x", fromBlock),
		"toBlock":   fmt.Sprintf("0x%x", toBlock),
	}
	if len(topics) > 0 {
		filter["topics"] = topics
	}

	result, err := c.call(ctx, "eth_getLogs", filter)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	var logs []LogEntry
	if err := json.Unmarshal(raw, &logs); err != nil {
		return nil, fmt.Errorf("parsing logs: %w", err)
	}
	return logs, nil
}

// BlockTime returns the unix timestamp of a block.
func (c *EVMClient) BlockTime(ctx context.Context, blockNum uint64) (uint64, error) {
	result, err := c.call(ctx, "eth_getBlockByNumber", fmt.Sprintf("0x%x", blockNum), false)
	if err != nil {
		return 0, err
	}
	if result == nil {
		return 0, fmt.Errorf("block %d not found", blockNum)
	}
	raw, _ := json.Marshal(result)
	var rb struct {
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &rb); err != nil {
		return 0, err
	}
	ts, ok := parseBigHex(rb.Timestamp)
	if !ok {
		return 0, fmt.Errorf("could not parse block timestamp: %s", rb.Timestamp)
	}
	return ts.Uint64(), nil
}

// TxReceipt holds the on-chain receipt of a mined transaction.
type TxReceipt struct {
	Hash        string
	Status      uint64 // 1 = success, 0 = reverted
	BlockNumber uint64
	GasUsed     uint64
	Logs        []LogEntry
}

// GetTransactionReceipt fetches the receipt for hash.
// Returns nil, nil if the transaction is still pending.
func (c *EVMClient) GetTransactionReceipt(ctx context.Context, hash string) (*TxReceipt, error) {
	result, err := c.call(ctx, "eth_getTransactionReceipt", hash)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil // still pending
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	var r struct {
		Status      string     `json:"status"`
		BlockNumber string     `json:"blockNumber"`
		GasUsed     string     `json:"gasUsed"`
		Logs        []LogEntry `json:"logs"`
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}

	receipt := &TxReceipt{Hash: hash, Logs: r.Logs}
	if s, ok := parseBigHex(r.Status); ok {
		receipt.Status = s.Uint64()
	}
	if bn, ok := parseBigHex(r.BlockNumber); ok {
		receipt.BlockNumber = bn.Uint64()
	}
	if gu, ok := parseBigHex(r.GasUsed); ok {
		receipt.GasUsed = gu.Uint64()
	}
	return receipt, nil
}

// WaitConfirmed polls until the transaction is mined and confirmations
// subsequent blocks have been produced, or ctx expires. The receipt is
// returned as-is; callers decide how to treat a reverted status.
func (c *EVMClient) WaitConfirmed(ctx context.Context, hash string, confirmations uint64) (*TxReceipt, error) {
	var receipt *TxReceipt
	for {
		r, err := c.GetTransactionReceipt(ctx, hash)
		if err != nil {
			return nil, err
		}
		if r != nil {
			receipt = r
			break
		}
		if err := sleepCtx(ctx, 2*time.Second); err != nil {
			return nil, fmt.Errorf("transaction %s not mined: %w", hash, err)
		}
	}

	if confirmations <= 1 {
		return receipt, nil
	}
	target := receipt.BlockNumber + confirmations - 1
	for {
		head, err := c.BlockNumber(ctx)
		if err != nil {
			return nil, err
		}
		if head >= target {
			return receipt, nil
		}
		if err := sleepCtx(ctx, 2*time.Second); err != nil {
			return nil, fmt.Errorf("transaction %s not confirmed: %w", hash, err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// --- internal JSON-RPC plumbing ---

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// ErrorCode implements the Coded interface for error normalization.
func (e *rpcError) ErrorCode() int { return e.Code }

func (c *EVMClient) call(ctx context.Context, method string, params ...interface{}) (interface{}, error) {
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(string(reqBody)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("RPC request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}

	var result interface{}
	if err := json.Unmarshal(rpcResp.Result, &result); err != nil {
		return nil, fmt.Errorf("parsing result: %w", err)
	}

	return result, nil
}

func (c *EVMClient) callBig(ctx context.Context, method string) (*big.Int, error) {
	return c.callBigParams(ctx, method)
}

func (c *EVMClient) callBigParams(ctx context.Context, method string, params ...interface{}) (*big.Int, error) {
	result, err := c.call(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	hexStr, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected result: %T", result)
	}
	n, ok := parseBigHex(hexStr)
	if !ok {
		return nil, fmt.Errorf("could not parse %s result: %s", method, hexStr)
	}
	return n, nil
}

// --- math helpers ---

func parseBigHex(s string) (*big.Int, bool) {
	n, ok := new(big.Int).SetString(strings.TrimPrefix(s, "0x"), 16)
	return n, ok
}

// WeiToGwei converts a wei value to gwei as float64.
func WeiToGwei(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(wei),
		new(big.Float).SetFloat64(1e9),
	).Float64()
	return f
}

// WeiToDecimal renders a wei amount as a decimal string in whole currency
// units (18 decimal places).
func WeiToDecimal(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	div := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	f := new(big.Float).SetPrec(256).SetInt(wei)
	f.Quo(f, new(big.Float).SetPrec(256).SetInt(div))
	return f.Text('f', 18)
}
