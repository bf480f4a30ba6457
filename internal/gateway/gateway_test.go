package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greyhatharold/oracular/internal/chain"
	"github.com/greyhatharold/oracular/internal/contract"
	"github.com/greyhatharold/oracular/internal/event"
	"github.com/greyhatharold/oracular/internal/retry"
)

const oracleAddr = "0xAAAAbbbbCCCCddddEEEEffff0000111122223333"

type submitRec struct {
	gasLimit uint64
	fee      *big.Int
}

// fakeBackend is a scriptable chain backend.
type fakeBackend struct {
	mu          sync.Mutex
	chainID     int64
	returns     map[string]string // function selector -> call result
	callCounts  map[string]int
	estimate    uint64
	estimateErr error
	fee         *big.Int
	submitErrs  []error // popped per SubmitTransaction call
	submits     []submitRec
	receipt     *chain.TxReceipt
	waitErr     error
	logs        []chain.LogEntry
	head        uint64
}

func (b *fakeBackend) ChainID() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chainID
}

func (b *fakeBackend) CallContract(_ context.Context, _, calldata string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sel := calldata[:10]
	if b.callCounts == nil {
		b.callCounts = make(map[string]int)
	}
	b.callCounts[sel]++
	data, ok := b.returns[sel]
	if !ok {
		return "", fmt.Errorf("unexpected call %s", sel)
	}
	return data, nil
}

func (b *fakeBackend) EstimateGas(context.Context, string, string) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.estimateErr != nil {
		return 0, b.estimateErr
	}
	return b.estimate, nil
}

func (b *fakeBackend) OptimalFee(context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fee == nil {
		return big.NewInt(1000000000), nil
	}
	return new(big.Int).Set(b.fee), nil
}

func (b *fakeBackend) SubmitTransaction(_ context.Context, _, _ string, gasLimit uint64, fee *big.Int) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submits = append(b.submits, submitRec{gasLimit: gasLimit, fee: fee})
	if len(b.submitErrs) > 0 {
		err := b.submitErrs[0]
		b.submitErrs = b.submitErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return "0xdeadbeef", nil
}

func (b *fakeBackend) WaitConfirmed(context.Context, string, uint64) (*chain.TxReceipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.waitErr != nil {
		return nil, b.waitErr
	}
	return b.receipt, nil
}

func (b *fakeBackend) Logs(context.Context, string, []string, uint64, uint64) ([]chain.LogEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logs, nil
}

func (b *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.head, nil
}

func (b *fakeBackend) BlockTime(context.Context, uint64) (uint64, error) {
	return 1700000000, nil
}

func sel(fnName string) string {
	return contract.Selector(contract.Find(contract.OracleABI, "function", fnName))
}

func word(v uint64) string {
	return fmt.Sprintf("0x%064x", v)
}

func stateReturns() map[string]string {
	big15, _ := new(big.Int).SetString("1500000000000000000", 10) // 1.5 fixed-point
	return map[string]string{
		sel("getLatestValue"):          fmt.Sprintf("0x%064x", big15),
		sel("lastUpdateTime"):          word(1700000000),
		sel("updateCount"):             word(42),
		sel("minResponses"):            word(3),
		sel("updateInterval"):          word(3600),
		sel("deviationThreshold"):      word(250),
		sel("getBaseFee"):              word(2000000000000000), // 0.002
		sel("getComplexityMultiplier"): word(50),
		sel("getSourceCount"):          word(4),
	}
}

type harness struct {
	gw      *Gateway
	backend *fakeBackend
	bus     *event.Bus
	now     time.Time
	nowMu   sync.Mutex
	sleeps  []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		backend: &fakeBackend{
			chainID:  1,
			returns:  stateReturns(),
			estimate: 100000,
			head:     500,
			receipt:  &chain.TxReceipt{Hash: "0xdeadbeef", Status: 1, GasUsed: 90000},
		},
		bus: event.NewBus(),
		now: time.Unix(1700000000, 0),
	}
	policy := retry.Policy{
		MaxAttempts: 3,
		Delay:       retry.Linear(time.Second),
		Sleep: func(_ context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return nil
		},
	}
	h.gw = New(h.backend, chain.NewRegistry(), h.bus,
		WithAddresses(map[int64][]string{1: {oracleAddr}}),
		WithClock(h.clock),
		WithRetryPolicy(policy),
	)
	h.gw.Initialize(context.Background())
	return h
}

func (h *harness) clock() time.Time {
	h.nowMu.Lock()
	defer h.nowMu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.nowMu.Lock()
	h.now = h.now.Add(d)
	h.nowMu.Unlock()
}

func (h *harness) reads(fnName string) int {
	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	return h.backend.callCounts[sel(fnName)]
}

// ---------------------------------------------------------------------------
// OracleState
// ---------------------------------------------------------------------------

func TestOracleStateNormalizes(t *testing.T) {
	h := newHarness(t)

	state, err := h.gw.OracleState(context.Background(), oracleAddr)
	require.NoError(t, err)

	assert.Equal(t, "1.500000000000000000", state.LatestValue)
	assert.Equal(t, time.Unix(1700000000, 0), state.LastUpdate)
	assert.Equal(t, uint64(42), state.UpdateCount)
	assert.Equal(t, uint64(3), state.MinResponses)
	assert.Equal(t, time.Hour, state.UpdateInterval)
	assert.InDelta(t, 0.025, state.DeviationThreshold, 1e-9)
}

func TestOracleStateCachedWithinTTL(t *testing.T) {
	h := newHarness(t)

	first, err := h.gw.OracleState(context.Background(), oracleAddr)
	require.NoError(t, err)

	h.advance(4 * time.Minute)
	second, err := h.gw.OracleState(context.Background(), oracleAddr)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, h.reads("getLatestValue"))
}

func TestOracleStateRefetchedAfterTTL(t *testing.T) {
	h := newHarness(t)

	_, err := h.gw.OracleState(context.Background(), oracleAddr)
	require.NoError(t, err)

	h.advance(5 * time.Minute)
	_, err = h.gw.OracleState(context.Background(), oracleAddr)
	require.NoError(t, err)

	assert.Equal(t, 2, h.reads("getLatestValue"))
}

func TestOracleStateCaseInsensitiveAddress(t *testing.T) {
	h := newHarness(t)
	_, err := h.gw.OracleState(context.Background(), lower(oracleAddr))
	require.NoError(t, err)
}

func TestOracleStateUnknownContract(t *testing.T) {
	h := newHarness(t)
	_, err := h.gw.OracleState(context.Background(), "0x0000000000000000000000000000000000000bad")
	assert.ErrorIs(t, err, ErrUnknownContract)
	assert.Contains(t, err.Error(), "no contract instance for address: 0x0000000000000000000000000000000000000bad")
}

func TestOracleStatePartialFailure(t *testing.T) {
	h := newHarness(t)
	h.backend.mu.Lock()
	delete(h.backend.returns, sel("updateCount"))
	h.backend.mu.Unlock()

	_, err := h.gw.OracleState(context.Background(), oracleAddr)
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// SubmitDataRequest
// ---------------------------------------------------------------------------

func submitParams() RequestParams {
	return RequestParams{QueryID: "0x6c75", SourceCount: 3}
}

func requestLog(reqID string) chain.LogEntry {
	ev := contract.Find(contract.OracleABI, "event", "RequestSubmitted")
	return chain.LogEntry{
		Topics: []string{contract.EventTopic(ev), reqID},
		TxHash: "0xdeadbeef",
	}
}

func TestSubmitBuffersGasTwentyPercent(t *testing.T) {
	h := newHarness(t)
	h.backend.receipt.Logs = []chain.LogEntry{requestLog("0x" + "11")}

	result, err := h.gw.SubmitDataRequest(context.Background(), oracleAddr, submitParams())
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", result.Hash)

	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	require.Len(t, h.backend.submits, 1)
	assert.Equal(t, uint64(120000), h.backend.submits[0].gasLimit)
}

func TestSubmitEstimationFailureIsTerminal(t *testing.T) {
	h := newHarness(t)
	h.backend.estimateErr = errors.New("execution reverted")

	_, err := h.gw.SubmitDataRequest(context.Background(), oracleAddr, submitParams())
	assert.ErrorIs(t, err, ErrGasEstimationFailed)

	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	assert.Empty(t, h.backend.submits, "estimation failure must not reach submission")
	assert.Empty(t, h.sleeps)
}

func TestSubmitRetriesWithLinearBackoff(t *testing.T) {
	h := newHarness(t)
	h.backend.submitErrs = []error{errors.New("nonce too low"), errors.New("nonce too low")}

	_, err := h.gw.SubmitDataRequest(context.Background(), oracleAddr, submitParams())
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, h.sleeps)
	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	assert.Len(t, h.backend.submits, 3)
}

func TestSubmitFinalErrorUnwrapped(t *testing.T) {
	h := newHarness(t)
	final := errors.New("nonce too low")
	h.backend.submitErrs = []error{errors.New("a"), errors.New("b"), final}

	_, err := h.gw.SubmitDataRequest(context.Background(), oracleAddr, submitParams())
	assert.Equal(t, final, err)
}

func TestSubmitRevertedReceipt(t *testing.T) {
	h := newHarness(t)
	h.backend.receipt.Status = 0

	_, err := h.gw.SubmitDataRequest(context.Background(), oracleAddr, submitParams())
	assert.ErrorIs(t, err, ErrTransactionFailed)
}

func TestSubmitExtractsRequestID(t *testing.T) {
	h := newHarness(t)
	reqID := "0x" + fmt.Sprintf("%064d", 7)
	h.backend.receipt.Logs = []chain.LogEntry{requestLog(reqID)}

	result, err := h.gw.SubmitDataRequest(context.Background(), oracleAddr, submitParams())
	require.NoError(t, err)
	assert.Equal(t, reqID, result.RequestID)
}

func TestSubmitNoRequestLogEmptyID(t *testing.T) {
	h := newHarness(t)

	result, err := h.gw.SubmitDataRequest(context.Background(), oracleAddr, submitParams())
	require.NoError(t, err)
	assert.Empty(t, result.RequestID)
}

func TestSubmitPublishesLifecycleEvents(t *testing.T) {
	h := newHarness(t)
	var pending, confirmed int
	h.bus.Subscribe(func(ev event.Event) {
		switch ev.Type {
		case event.TransactionPending:
			pending++
		case event.TransactionConfirmed:
			confirmed++
		}
	})

	_, err := h.gw.SubmitDataRequest(context.Background(), oracleAddr, submitParams())
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
	assert.Equal(t, 1, confirmed)
}

// ---------------------------------------------------------------------------
// RequestStatus / HistoricalData
// ---------------------------------------------------------------------------

func TestRequestStatusNormalizes(t *testing.T) {
	h := newHarness(t)
	big2, _ := new(big.Int).SetString("2000000000000000000", 10)
	// completed=true, value=2.0, timestamp, empty error string at offset 128.
	h.backend.returns[sel("getRequestStatus")] = "0x" +
		fmt.Sprintf("%064d", 1) +
		fmt.Sprintf("%064x", big2) +
		fmt.Sprintf("%064x", 1700000100) +
		fmt.Sprintf("%064x", 128) +
		fmt.Sprintf("%064d", 0)

	status, err := h.gw.RequestStatus(context.Background(), oracleAddr, "0x6c75")
	require.NoError(t, err)
	assert.True(t, status.Completed)
	assert.Equal(t, "2.000000000000000000", status.Value)
	assert.Equal(t, time.Unix(1700000100, 0), status.Timestamp)
	assert.Empty(t, status.Err)
}

func TestHistoricalDataMapsLogs(t *testing.T) {
	h := newHarness(t)
	big15, _ := new(big.Int).SetString("1500000000000000000", 10)
	data := "0x" +
		fmt.Sprintf("%064x", big15) +
		fmt.Sprintf("%024d", 0) + "aaaabbbbccccddddeeeeffff0000111122223333" +
		fmt.Sprintf("%064x", 1700000000)
	h.backend.logs = []chain.LogEntry{{
		Data:        data,
		TxHash:      "0xfeed",
		BlockNumber: "0x10",
	}}

	points, err := h.gw.HistoricalData(context.Background(), oracleAddr, 1, 100)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "1.500000000000000000", points[0].Value)
	assert.Equal(t, "0xaaaabbbbccccddddeeeeffff0000111122223333", points[0].Source)
	assert.Equal(t, time.Unix(1700000000, 0), points[0].Timestamp)
	assert.Equal(t, "0xfeed", points[0].TxHash)
}

// ---------------------------------------------------------------------------
// CostEstimate
// ---------------------------------------------------------------------------

func TestCostEstimateCombinesFees(t *testing.T) {
	h := newHarness(t)
	h.backend.fee = big.NewInt(2000000000) // 2 gwei

	estimate, err := h.gw.CostEstimate(context.Background(), oracleAddr, submitParams())
	require.NoError(t, err)

	// base = 0.002, complexity = base*50*4/100 = 0.004
	assert.Equal(t, "0.002000000000000000", estimate.BaseFee)
	assert.Equal(t, "0.004000000000000000", estimate.ComplexityFee)
	// gas = 100000 * 2 gwei = 0.0002
	assert.Equal(t, "0.000200000000000000", estimate.GasCost)
	assert.Equal(t, "0.006200000000000000", estimate.TotalCost)
}

// ---------------------------------------------------------------------------
// Lifecycle: cleanup and rebuild
// ---------------------------------------------------------------------------

func TestCleanupPurgesCache(t *testing.T) {
	h := newHarness(t)
	_, err := h.gw.OracleState(context.Background(), oracleAddr)
	require.NoError(t, err)

	h.gw.Cleanup()

	_, err = h.gw.OracleState(context.Background(), oracleAddr)
	require.NoError(t, err)
	assert.Equal(t, 2, h.reads("getLatestValue"))
}

func TestCleanupIdempotent(t *testing.T) {
	h := newHarness(t)
	h.gw.Cleanup()
	assert.NotPanics(t, h.gw.Cleanup)
}

func TestNetworkChangeRebindsContracts(t *testing.T) {
	h := newHarness(t)
	require.NotEmpty(t, h.gw.Addresses())

	h.backend.mu.Lock()
	h.backend.chainID = 137
	h.backend.mu.Unlock()
	h.bus.Publish(event.Event{Type: event.NetworkChanged, Payload: int64(137)})

	// No bindings on the new chain: previous contract is gone.
	assert.Empty(t, h.gw.Addresses())
	_, err := h.gw.OracleState(context.Background(), oracleAddr)
	assert.ErrorIs(t, err, ErrUnknownContract)
}

func TestDisconnectTearsDown(t *testing.T) {
	h := newHarness(t)
	_, err := h.gw.OracleState(context.Background(), oracleAddr)
	require.NoError(t, err)

	h.bus.Publish(event.Event{Type: event.Disconnect})

	_, err = h.gw.OracleState(context.Background(), oracleAddr)
	require.NoError(t, err)
	assert.Equal(t, 2, h.reads("getLatestValue"))
}

// ---------------------------------------------------------------------------
// Subscriptions
// ---------------------------------------------------------------------------

func TestSubscribeUnknownEvent(t *testing.T) {
	h := newHarness(t)
	_, err := h.gw.SubscribeToEvents(oracleAddr, "Nope", func(OracleEvent) {})
	assert.Error(t, err)
}

func TestSubscribeUnknownContract(t *testing.T) {
	h := newHarness(t)
	_, err := h.gw.SubscribeToEvents("0x0000000000000000000000000000000000000bad", "ValueUpdated", func(OracleEvent) {})
	assert.ErrorIs(t, err, ErrUnknownContract)
}

func TestResubscribeReplacesWatcher(t *testing.T) {
	h := newHarness(t)

	off1, err := h.gw.SubscribeToEvents(oracleAddr, "ValueUpdated", func(OracleEvent) {})
	require.NoError(t, err)
	off2, err := h.gw.SubscribeToEvents(oracleAddr, "ValueUpdated", func(OracleEvent) {})
	require.NoError(t, err)

	h.gw.mu.Lock()
	active := len(h.gw.subs)
	h.gw.mu.Unlock()
	assert.Equal(t, 1, active)

	// The replaced watcher's unsubscribe must not kill the live one.
	off1()
	h.gw.mu.Lock()
	active = len(h.gw.subs)
	h.gw.mu.Unlock()
	assert.Equal(t, 1, active)

	off2()
	h.gw.mu.Lock()
	active = len(h.gw.subs)
	h.gw.mu.Unlock()
	assert.Equal(t, 0, active)
}

func TestUnsubscribeTwiceHarmless(t *testing.T) {
	h := newHarness(t)
	off, err := h.gw.SubscribeToEvents(oracleAddr, "ValueUpdated", func(OracleEvent) {})
	require.NoError(t, err)
	off()
	assert.NotPanics(t, off)
}
