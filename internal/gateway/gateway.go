package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/greyhatharold/oracular/internal/chain"
	"github.com/greyhatharold/oracular/internal/contract"
	"github.com/greyhatharold/oracular/internal/event"
	"github.com/greyhatharold/oracular/internal/retry"
)

// Errors.
var (
	ErrUnknownContract     = errors.New("no contract instance for address")
	ErrGasEstimationFailed = errors.New("gas estimation failed")
	ErrTransactionFailed   = errors.New("transaction failed on chain")
)

const (
	cacheTTL          = 5 * time.Minute
	submitAttempts    = 3
	retryBase         = 1 * time.Second
	eventPollInterval = 2 * time.Second
)

// Backend is the chain access surface the gateway calls through. The
// session manager implements it; tests substitute a fake.
type Backend interface {
	ChainID() int64
	CallContract(ctx context.Context, to, calldata string) (string, error)
	EstimateGas(ctx context.Context, to, calldata string) (uint64, error)
	OptimalFee(ctx context.Context) (*big.Int, error)
	SubmitTransaction(ctx context.Context, to, calldata string, gasLimit uint64, gasPrice *big.Int) (string, error)
	WaitConfirmed(ctx context.Context, hash string, confirmations uint64) (*chain.TxReceipt, error)
	Logs(ctx context.Context, address string, topics []string, fromBlock, toBlock uint64) ([]chain.LogEntry, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BlockTime(ctx context.Context, block uint64) (uint64, error)
}

type binding struct {
	address string
}

type cacheEntry struct {
	data      any
	fetchedAt time.Time
}

// Gateway mediates all on-chain reads and writes against oracle contracts:
// per-address bindings, a time-boxed read cache, retrying submission, and
// event-subscription bookkeeping. Read-only operations never retry; callers
// retry by calling again.
type Gateway struct {
	backend   Backend
	reg       *chain.Registry
	bus       *event.Bus
	addresses map[int64][]string
	policy    retry.Policy
	ttl       time.Duration
	pollEvery time.Duration
	now       func() time.Time

	mu       sync.Mutex
	chainID  int64
	bindings map[string]*binding
	cache    map[string]cacheEntry
	subs     map[string]*subscription
	offBus   func()
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithAddresses overrides the static oracle address table.
func WithAddresses(table map[int64][]string) Option {
	return func(g *Gateway) { g.addresses = table }
}

// WithRetryPolicy overrides the submission retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(g *Gateway) { g.policy = p }
}

// WithTTL overrides the read-cache TTL.
func WithTTL(d time.Duration) Option {
	return func(g *Gateway) { g.ttl = d }
}

// WithClock overrides the cache clock (for tests).
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithEventPollInterval overrides the log-filter poll cadence.
func WithEventPollInterval(d time.Duration) Option {
	return func(g *Gateway) { g.pollEvery = d }
}

// New creates a gateway over the given backend. Call Initialize before use.
func New(backend Backend, reg *chain.Registry, bus *event.Bus, opts ...Option) *Gateway {
	g := &Gateway{
		backend:   backend,
		reg:       reg,
		bus:       bus,
		addresses: contract.OracleAddresses,
		policy:    retry.Policy{MaxAttempts: submitAttempts, Delay: retry.Linear(retryBase)},
		ttl:       cacheTTL,
		pollEvery: eventPollInterval,
		now:       time.Now,
		bindings:  make(map[string]*binding),
		cache:     make(map[string]cacheEntry),
		subs:      make(map[string]*subscription),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Initialize resolves the contract bindings for the current chain. An
// unsupported chain yields an empty binding set, not an error. The first
// call also installs the lifecycle listeners: a network change rebuilds the
// binding set, a disconnect tears it down. Rebuilds are serialized under
// the gateway lock so overlapping chain-change callbacks cannot interleave
// and duplicate listeners.
func (g *Gateway) Initialize(ctx context.Context) {
	g.mu.Lock()
	g.rebindLocked()
	if g.offBus == nil {
		g.offBus = g.bus.Subscribe(func(ev event.Event) {
			switch ev.Type {
			case event.NetworkChanged:
				g.Rebuild(ctx)
			case event.Disconnect:
				g.Cleanup()
			}
		})
	}
	g.mu.Unlock()
}

// Rebuild is the network-switch transition: full teardown then rebind,
// as one step.
func (g *Gateway) Rebuild(ctx context.Context) {
	g.mu.Lock()
	g.cleanupLocked()
	g.rebindLocked()
	g.mu.Unlock()
}

// Cleanup unsubscribes every active event subscription and purges the
// entire cache. Safe to call multiple times.
func (g *Gateway) Cleanup() {
	g.mu.Lock()
	g.cleanupLocked()
	g.mu.Unlock()
}

func (g *Gateway) cleanupLocked() {
	for _, sub := range g.subs {
		sub.stop()
	}
	g.subs = make(map[string]*subscription)
	g.cache = make(map[string]cacheEntry)
}

func (g *Gateway) rebindLocked() {
	g.chainID = g.backend.ChainID()
	g.bindings = make(map[string]*binding)
	for _, addr := range g.addresses[g.chainID] {
		g.bindings[lower(addr)] = &binding{address: addr}
	}
}

// Addresses returns the bound contract addresses on the active chain.
func (g *Gateway) Addresses() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.bindings))
	for _, b := range g.bindings {
		out = append(out, b.address)
	}
	return out
}

func (g *Gateway) binding(address string) (*binding, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.bindings[lower(address)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContract, address)
	}
	return b, nil
}

// cacheKey scopes entries by chain so an address reused across chains can
// never serve a stale value after a switch.
func (g *Gateway) cacheKey(op, address string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return strconv.FormatInt(g.chainID, 10) + ":" + op + "_" + lower(address)
}

func (g *Gateway) cached(key string) (any, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.cache[key]
	if !ok || g.now().Sub(e.fetchedAt) >= g.ttl {
		return nil, false
	}
	return e.data, true
}

func (g *Gateway) storeCache(key string, data any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache[key] = cacheEntry{data: data, fetchedAt: g.now()}
}

// readField calls a single view function and returns its decoded outputs.
func (g *Gateway) readField(ctx context.Context, address, fnName string, args ...string) ([]string, error) {
	fn := contract.Find(contract.OracleABI, "function", fnName)
	if fn == nil {
		return nil, fmt.Errorf("function %q not in oracle ABI", fnName)
	}
	calldata, err := contract.EncodeCall(fn, args)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", fnName, err)
	}
	result, err := g.backend.CallContract(ctx, address, calldata)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", fnName, err)
	}
	decoded, err := contract.DecodeResult(fn, result)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", fnName, err)
	}
	return decoded, nil
}

// OracleState is the normalized state of one oracle contract.
type OracleState struct {
	LatestValue        string        // fixed-point 1e18 rendered as decimal
	LastUpdate         time.Time     // epoch seconds on chain
	UpdateCount        uint64
	MinResponses       uint64
	UpdateInterval     time.Duration // seconds on chain
	DeviationThreshold float64       // basis points on chain, fraction here
}

// OracleState returns the oracle's state, served from cache within the TTL
// window. On a miss the six fields are fetched in parallel; all must land
// before the result is assembled. Concurrent callers racing the same key
// each dispatch their own reads; reads are idempotent so the duplication
// is accepted.
func (g *Gateway) OracleState(ctx context.Context, address string) (*OracleState, error) {
	key := g.cacheKey("state", address)
	if data, ok := g.cached(key); ok {
		return data.(*OracleState), nil
	}

	if _, err := g.binding(address); err != nil {
		return nil, err
	}

	fields := []string{
		"getLatestValue", "lastUpdateTime", "updateCount",
		"minResponses", "updateInterval", "deviationThreshold",
	}
	raw := make([]string, len(fields))
	errs := make([]error, len(fields))

	var wg sync.WaitGroup
	for i, fn := range fields {
		wg.Add(1)
		go func(i int, fn string) {
			defer wg.Done()
			out, err := g.readField(ctx, address, fn)
			if err != nil {
				errs[i] = err
				return
			}
			if len(out) > 0 {
				raw[i] = out[0]
			}
		}(i, fn)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("reading oracle state: %w", err)
		}
	}

	state := &OracleState{
		LatestValue:        fixedPointToDecimal(raw[0]),
		LastUpdate:         epochToTime(raw[1]),
		UpdateCount:        parseUint(raw[2]),
		MinResponses:       parseUint(raw[3]),
		UpdateInterval:     time.Duration(parseUint(raw[4])) * time.Second,
		DeviationThreshold: bpsToFraction(raw[5]),
	}
	g.storeCache(key, state)
	return state, nil
}

// RequestParams parameterizes a data request submission.
type RequestParams struct {
	QueryID     string // bytes32, 0x-prefixed
	SourceCount uint64
}

// SubmitResult is the outcome of a confirmed data request.
type SubmitResult struct {
	Hash      string
	RequestID string // "" when no RequestSubmitted log was found
	Receipt   *chain.TxReceipt
}

// SubmitDataRequest estimates gas and submits a data request. Estimation
// failure is terminal — it is not treated as transient. Submission itself
// is retried up to 3 times with linear backoff; the last attempt's error
// propagates unwrapped. The confirmed receipt is checked for success and
// mined logs are scanned for the request identifier.
func (g *Gateway) SubmitDataRequest(ctx context.Context, address string, params RequestParams) (*SubmitResult, error) {
	if _, err := g.binding(address); err != nil {
		return nil, err
	}

	fn := contract.Find(contract.OracleABI, "function", "submitRequest")
	calldata, err := contract.EncodeCall(fn, []string{params.QueryID, strconv.FormatUint(params.SourceCount, 10)})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	estimate, err := g.backend.EstimateGas(ctx, address, calldata)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrGasEstimationFailed, err)
		g.publishError(wrapped)
		return nil, wrapped
	}
	gasLimit := bufferGas(estimate)

	var hash string
	err = g.policy.Do(ctx, func() error {
		fee, ferr := g.backend.OptimalFee(ctx)
		if ferr != nil {
			return ferr
		}
		h, serr := g.backend.SubmitTransaction(ctx, address, calldata, gasLimit, fee)
		if serr != nil {
			return serr
		}
		hash = h
		return nil
	})
	if err != nil {
		g.publishError(err)
		return nil, err
	}

	g.bus.Publish(event.Event{Type: event.TransactionPending, Payload: hash})

	confirmations := uint64(1)
	if c, err := g.reg.GetByChainID(g.backend.ChainID()); err == nil {
		confirmations = c.Confirmations
	}
	receipt, err := g.backend.WaitConfirmed(ctx, hash, confirmations)
	if err != nil {
		wrapped := fmt.Errorf("awaiting receipt: %w", err)
		g.publishError(wrapped)
		return nil, wrapped
	}
	if receipt.Status == 0 {
		wrapped := fmt.Errorf("%w: %s", ErrTransactionFailed, hash)
		g.publishError(wrapped)
		return nil, wrapped
	}

	g.bus.Publish(event.Event{Type: event.TransactionConfirmed, Payload: receipt})

	return &SubmitResult{
		Hash:      hash,
		RequestID: requestIDFromLogs(receipt.Logs),
		Receipt:   receipt,
	}, nil
}

// RequestStatus is the normalized status of one submitted request.
type RequestStatus struct {
	Completed bool
	Value     string
	Timestamp time.Time
	Err       string
}

// RequestStatus performs a single on-chain status read.
func (g *Gateway) RequestStatus(ctx context.Context, address, requestID string) (*RequestStatus, error) {
	if _, err := g.binding(address); err != nil {
		return nil, err
	}
	out, err := g.readField(ctx, address, "getRequestStatus", requestID)
	if err != nil {
		return nil, err
	}
	if len(out) < 4 {
		return nil, fmt.Errorf("short status result for request %s", requestID)
	}
	return &RequestStatus{
		Completed: out[0] == "true",
		Value:     fixedPointToDecimal(out[1]),
		Timestamp: epochToTime(out[2]),
		Err:       out[3],
	}, nil
}

// HistoricalPoint is one historical oracle update.
type HistoricalPoint struct {
	Timestamp time.Time
	Value     string
	Source    string
	TxHash    string
}

// HistoricalData queries ValueUpdated logs in [startBlock, endBlock].
func (g *Gateway) HistoricalData(ctx context.Context, address string, startBlock, endBlock uint64) ([]HistoricalPoint, error) {
	if _, err := g.binding(address); err != nil {
		return nil, err
	}

	ev := contract.Find(contract.OracleABI, "event", "ValueUpdated")
	logs, err := g.backend.Logs(ctx, address, []string{contract.EventTopic(ev)}, startBlock, endBlock)
	if err != nil {
		return nil, fmt.Errorf("querying historical data: %w", err)
	}

	points := make([]HistoricalPoint, 0, len(logs))
	for _, l := range logs {
		words := contract.DecodeWords([]string{"uint256", "address", "uint256"}, l.Data)
		if len(words) < 3 {
			continue
		}
		ts := epochToTime(words[2])
		if ts.IsZero() {
			if bt, err := g.backend.BlockTime(ctx, l.BlockNum()); err == nil {
				ts = time.Unix(int64(bt), 0)
			}
		}
		points = append(points, HistoricalPoint{
			Timestamp: ts,
			Value:     fixedPointToDecimal(words[0]),
			Source:    words[1],
			TxHash:    l.TxHash,
		})
	}
	return points, nil
}

// CostEstimate is the projected cost of a data request, in decimal
// native-currency strings.
type CostEstimate struct {
	BaseFee       string
	ComplexityFee string
	GasCost       string
	TotalCost     string
}

// CostEstimate combines the contract's fee parameters with a fresh gas
// estimate and the current optimal gas price.
func (g *Gateway) CostEstimate(ctx context.Context, address string, params RequestParams) (*CostEstimate, error) {
	if _, err := g.binding(address); err != nil {
		return nil, err
	}

	baseOut, err := g.readField(ctx, address, "getBaseFee")
	if err != nil {
		return nil, err
	}
	multOut, err := g.readField(ctx, address, "getComplexityMultiplier")
	if err != nil {
		return nil, err
	}
	srcOut, err := g.readField(ctx, address, "getSourceCount")
	if err != nil {
		return nil, err
	}

	fn := contract.Find(contract.OracleABI, "function", "submitRequest")
	calldata, err := contract.EncodeCall(fn, []string{params.QueryID, strconv.FormatUint(params.SourceCount, 10)})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	estimate, err := g.backend.EstimateGas(ctx, address, calldata)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrGasEstimationFailed, err)
		g.publishError(wrapped)
		return nil, wrapped
	}
	fee, err := g.backend.OptimalFee(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching gas price: %w", err)
	}

	baseFee := parseBig(baseOut[0])
	multiplier := parseBig(multOut[0])
	sources := parseBig(srcOut[0])

	// complexity fee = baseFee * multiplier(%) * sourceCount / 100
	complexity := new(big.Int).Mul(baseFee, multiplier)
	complexity.Mul(complexity, sources)
	complexity.Div(complexity, big.NewInt(100))

	gasCost := new(big.Int).Mul(new(big.Int).SetUint64(estimate), fee)

	total := new(big.Int).Add(baseFee, complexity)
	total.Add(total, gasCost)

	return &CostEstimate{
		BaseFee:       chain.WeiToDecimal(baseFee),
		ComplexityFee: chain.WeiToDecimal(complexity),
		GasCost:       chain.WeiToDecimal(gasCost),
		TotalCost:     chain.WeiToDecimal(total),
	}, nil
}

// publishError pushes a normalized error event; the gateway never logs
// directly, the toast layer listens on the bus.
func (g *Gateway) publishError(err error) {
	var network *chain.Chain
	if c, regErr := g.reg.GetByChainID(g.backend.ChainID()); regErr == nil {
		network = c
	}
	g.bus.Publish(event.Event{Type: event.Error, Payload: chain.Humanize(network, err)})
}

func requestIDFromLogs(logs []chain.LogEntry) string {
	ev := contract.Find(contract.OracleABI, "event", "RequestSubmitted")
	topic := contract.EventTopic(ev)
	for _, l := range logs {
		if len(l.Topics) == 0 || l.Topics[0] != topic {
			continue
		}
		if len(l.Topics) > 1 {
			return l.Topics[1]
		}
		words := contract.DecodeWords([]string{"bytes32"}, l.Data)
		if len(words) > 0 {
			return words[0]
		}
	}
	return ""
}

// bufferGas applies the 20% submission buffer, rounding up.
func bufferGas(estimate uint64) uint64 {
	return estimate + (estimate+4)/5
}
