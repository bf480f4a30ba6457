package contract

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ABIEntry is one ABI entry (function or event).
type ABIEntry struct {
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	Inputs          []ABIParam `json:"inputs"`
	Outputs         []ABIParam `json:"outputs"`
	StateMutability string     `json:"stateMutability"`
}

// ABIParam is a parameter in an ABI entry.
type ABIParam struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// IsReadFunction returns true if the function is read-only (view/pure).
func (e ABIEntry) IsReadFunction() bool {
	return e.Type == "function" &&
		(e.StateMutability == "view" || e.StateMutability == "pure")
}

// IsWriteFunction returns true if the function modifies state.
func (e ABIEntry) IsWriteFunction() bool {
	return e.Type == "function" &&
		(e.StateMutability == "nonpayable" || e.StateMutability == "payable")
}

// Find returns the ABI entry of the given type and name, or nil.
func Find(abi []ABIEntry, typ, name string) *ABIEntry {
	for i := range abi {
		if abi[i].Type == typ && abi[i].Name == name {
			return &abi[i]
		}
	}
	return nil
}

// EncodeCall builds calldata for fn: 4-byte selector + encoded args.
func EncodeCall(fn *ABIEntry, args []string) (string, error) {
	var encoded strings.Builder
	encoded.WriteString(Selector(fn))

	for i, param := range fn.Inputs {
		var argStr string
		if i < len(args) {
			argStr = args[i]
		}
		enc, err := encodeParam(param.Type, argStr)
		if err != nil {
			return "", fmt.Errorf("encoding param %s: %w", param.Name, err)
		}
		encoded.WriteString(enc)
	}

	return encoded.String(), nil
}

// Selector computes the 4-byte selector for a function, 0x-prefixed.
func Selector(fn *ABIEntry) string {
	return "0x" + hex.EncodeToString(keccak(signature(fn))[:4])
}

// EventTopic computes the 32-byte topic hash for an event entry, 0x-prefixed.
func EventTopic(ev *ABIEntry) string {
	return "0x" + hex.EncodeToString(keccak(signature(ev)))
}

func signature(e *ABIEntry) string {
	types := make([]string, len(e.Inputs))
	for i, p := range e.Inputs {
		types[i] = p.Type
	}
	return e.Name + "(" + strings.Join(types, ",") + ")"
}

func keccak(s string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(s))
	return h.Sum(nil)
}

// encodeParam encodes a single ABI parameter value as a 32-byte hex word.
func encodeParam(typ, val string) (string, error) {
	val = strings.TrimPrefix(val, "0x")

	switch {
	case typ == "address":
		val = strings.ToLower(val)
		if len(val) > 64 {
			return "", fmt.Errorf("invalid address: %s", val)
		}
		return strings.Repeat("0", 64-len(val)) + val, nil

	case strings.HasPrefix(typ, "uint") || strings.HasPrefix(typ, "int"):
		n := new(big.Int)
		if _, ok := n.SetString(val, 0); !ok {
			return "", fmt.Errorf("invalid integer: %s", val)
		}
		return fmt.Sprintf("%064x", n), nil

	case typ == "bool":
		if val == "true" || val == "1" {
			return fmt.Sprintf("%064d", 1), nil
		}
		return fmt.Sprintf("%064d", 0), nil

	case typ == "bytes32":
		padded := val + strings.Repeat("0", 64)
		return padded[:64], nil

	default:
		return "", fmt.Errorf("unsupported parameter type: %s", typ)
	}
}

// DecodeResult decodes the raw hex return data of fn into string values,
// one per output. Integers decode to decimal strings, addresses to
// 0x-prefixed hex, bools to "true"/"false".
func DecodeResult(fn *ABIEntry, hexData string) ([]string, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(hexData, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decoding hex result: %w", err)
	}

	if len(fn.Outputs) == 0 {
		return nil, nil
	}

	results := make([]string, 0, len(fn.Outputs))
	offset := 0

	for _, out := range fn.Outputs {
		if offset+32 > len(data) {
			results = append(results, "")
			continue
		}

		word := data[offset : offset+32]
		offset += 32

		results = append(results, decodeWord(out.Type, word, data))
	}

	return results, nil
}

// DecodeWords splits raw (unprefixed-by-selector) event data into 32-byte
// words decoded per the given types. Used by the event normalizer.
func DecodeWords(types []string, hexData string) []string {
	data, err := hex.DecodeString(strings.TrimPrefix(hexData, "0x"))
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(types))
	for i, typ := range types {
		start := i * 32
		if start+32 > len(data) {
			out = append(out, "")
			continue
		}
		out = append(out, decodeWord(typ, data[start:start+32], data))
	}
	return out
}

func decodeWord(typ string, word []byte, fullData []byte) string {
	switch {
	case typ == "address":
		return "0x" + hex.EncodeToString(word[12:])

	case strings.HasPrefix(typ, "uint") || strings.HasPrefix(typ, "int"):
		return new(big.Int).SetBytes(word).String()

	case typ == "bool":
		if word[31] == 1 {
			return "true"
		}
		return "false"

	case typ == "bytes32":
		return "0x" + hex.EncodeToString(word)

	case typ == "string":
		// Offset + length encoding.
		offsetVal := new(big.Int).SetBytes(word).Uint64()
		if int(offsetVal)+32 > len(fullData) {
			return ""
		}
		length := new(big.Int).SetBytes(fullData[offsetVal : offsetVal+32]).Uint64()
		start := offsetVal + 32
		if start+length > uint64(len(fullData)) {
			return ""
		}
		return string(fullData[start : start+length])

	default:
		return "0x" + hex.EncodeToString(word)
	}
}
