package gateway

import (
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/greyhatharold/oracular/internal/chain"
	"github.com/greyhatharold/oracular/internal/contract"
)

// OracleEvent is one normalized contract event. Exactly one variant field
// is set, matching Name; numeric payloads are decimal strings so consumers
// never handle raw 256-bit words. ReceivedAt is the client-side receipt
// time, not the block time.
type OracleEvent struct {
	Name        string
	TxHash      string
	BlockNumber uint64
	ReceivedAt  time.Time

	ValueUpdated     *ValueUpdate
	RequestSubmitted *RequestLog
	RequestFulfilled *FulfillmentLog
}

// ValueUpdate carries a ValueUpdated event payload.
type ValueUpdate struct {
	Value     string
	Source    string
	Timestamp time.Time
}

// RequestLog carries a RequestSubmitted event payload.
type RequestLog struct {
	RequestID string
	Requester string
}

// FulfillmentLog carries a RequestFulfilled event payload.
type FulfillmentLog struct {
	RequestID string
	Value     string
}

func (g *Gateway) normalizeLog(ev *contract.ABIEntry, l chain.LogEntry) OracleEvent {
	out := OracleEvent{
		Name:        ev.Name,
		TxHash:      l.TxHash,
		BlockNumber: l.BlockNum(),
		ReceivedAt:  g.now(),
	}

	switch ev.Name {
	case "ValueUpdated":
		words := contract.DecodeWords([]string{"uint256", "address", "uint256"}, l.Data)
		if len(words) == 3 {
			out.ValueUpdated = &ValueUpdate{
				Value:     fixedPointToDecimal(words[0]),
				Source:    words[1],
				Timestamp: epochToTime(words[2]),
			}
		}
	case "RequestSubmitted":
		words := contract.DecodeWords([]string{"bytes32", "address"}, l.Data)
		if len(words) == 2 {
			out.RequestSubmitted = &RequestLog{
				RequestID: words[0],
				Requester: words[1],
			}
		}
	case "RequestFulfilled":
		words := contract.DecodeWords([]string{"bytes32", "uint256"}, l.Data)
		if len(words) == 2 {
			out.RequestFulfilled = &FulfillmentLog{
				RequestID: words[0],
				Value:     fixedPointToDecimal(words[1]),
			}
		}
	}
	return out
}

func lower(s string) string {
	return strings.ToLower(s)
}

func parseBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return n
}

func parseUint(s string) uint64 {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// fixedPointToDecimal renders an 18-decimal fixed-point integer (as a
// decimal string) into a human decimal string.
func fixedPointToDecimal(s string) string {
	return chain.WeiToDecimal(parseBig(s))
}

// epochToTime converts epoch seconds (decimal string) to a time. The zero
// time marks "never" on chain.
func epochToTime(s string) time.Time {
	secs := parseUint(s)
	if secs == 0 {
		return time.Time{}
	}
	return time.Unix(int64(secs), 0)
}

// bpsToFraction converts a basis-point value to a fraction (250 -> 0.025).
func bpsToFraction(s string) float64 {
	return float64(parseUint(s)) / 10000
}
