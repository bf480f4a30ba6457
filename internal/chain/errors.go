package chain

import "strings"

// Provider error codes (EIP-1193 / MetaMask convention).
const (
	CodeUserRejected    = 4001
	CodeUnauthorized    = 4100
	CodeDisconnected    = 4900
	CodeChainNotAdded   = 4902
	CodeRequestPending  = -32002
	CodeInternalError   = -32603
	CodeResourceMissing = -32601
)

// codeMessages is the generic provider-code fallback table.
var codeMessages = map[int]string{
	CodeUserRejected:    "User rejected the request",
	CodeUnauthorized:    "Wallet has not authorized this action",
	CodeDisconnected:    "Wallet is disconnected from the chain",
	CodeChainNotAdded:   "Chain not added to wallet",
	CodeRequestPending:  "A wallet request is already pending",
	CodeInternalError:   "Wallet internal error",
	CodeResourceMissing: "Wallet does not support this method",
}

// Coded is implemented by errors that carry a provider error code.
type Coded interface {
	ErrorCode() int
}

// Humanize resolves a short human-readable message for err, consulting the
// chain-specific pattern table first and the generic code table second.
// Returns the raw error text when nothing matches.
func Humanize(c *Chain, err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()

	if c != nil {
		lower := strings.ToLower(msg)
		for _, p := range c.ErrorPatterns {
			if strings.Contains(lower, p.Match) {
				return p.Message
			}
		}
	}

	if coded, ok := err.(Coded); ok {
		if m, found := codeMessages[coded.ErrorCode()]; found {
			return m
		}
	}

	return msg
}

// CodeMessage returns the generic message for a provider error code,
// or "" when the code is unknown.
func CodeMessage(code int) string {
	return codeMessages[code]
}
