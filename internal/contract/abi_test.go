package contract

import (
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Selector / EventTopic
// ---------------------------------------------------------------------------

func TestSelectorKnownSignature(t *testing.T) {
	transfer := &ABIEntry{
		Name: "transfer",
		Type: "function",
		Inputs: []ABIParam{
			{Name: "to", Type: "address"},
			{Name: "amount", Type: "uint256"},
		},
	}
	assert.Equal(t, "0xa9059cbb", Selector(transfer))
}

func TestSelectorNoArgs(t *testing.T) {
	fn := Find(OracleABI, "function", "getLatestValue")
	require.NotNil(t, fn)
	s := Selector(fn)
	assert.Len(t, s, 10)
	assert.True(t, strings.HasPrefix(s, "0x"))
}

func TestEventTopicShape(t *testing.T) {
	ev := Find(OracleABI, "event", "ValueUpdated")
	require.NotNil(t, ev)
	topic := EventTopic(ev)
	assert.Len(t, topic, 66)
	assert.True(t, strings.HasPrefix(topic, "0x"))
}

func TestEventTopicsDistinct(t *testing.T) {
	a := EventTopic(Find(OracleABI, "event", "RequestSubmitted"))
	b := EventTopic(Find(OracleABI, "event", "RequestFulfilled"))
	assert.NotEqual(t, a, b)
}

// ---------------------------------------------------------------------------
// Find
// ---------------------------------------------------------------------------

func TestFind(t *testing.T) {
	fn := Find(OracleABI, "function", "submitRequest")
	require.NotNil(t, fn)
	assert.Equal(t, "submitRequest", fn.Name)
	assert.True(t, fn.IsWriteFunction())
}

func TestFindMissing(t *testing.T) {
	assert.Nil(t, Find(OracleABI, "function", "selfDestruct"))
	assert.Nil(t, Find(OracleABI, "event", "submitRequest"))
}

func TestReadWriteClassification(t *testing.T) {
	assert.True(t, Find(OracleABI, "function", "getLatestValue").IsReadFunction())
	assert.False(t, Find(OracleABI, "function", "getLatestValue").IsWriteFunction())
	assert.True(t, Find(OracleABI, "function", "submitRequest").IsWriteFunction())
}

// ---------------------------------------------------------------------------
// EncodeCall
// ---------------------------------------------------------------------------

func TestEncodeCallLayout(t *testing.T) {
	fn := Find(OracleABI, "function", "submitRequest")
	calldata, err := EncodeCall(fn, []string{"0xab", "3"})
	require.NoError(t, err)

	// selector + bytes32 word + uint256 word
	assert.Len(t, calldata, 10+64+64)
	assert.Equal(t, Selector(fn), calldata[:10])
	assert.Equal(t, "ab"+strings.Repeat("0", 62), calldata[10:74])
	assert.Equal(t, strings.Repeat("0", 63)+"3", calldata[74:])
}

func TestEncodeCallAddressWord(t *testing.T) {
	fn := &ABIEntry{
		Name:   "probe",
		Type:   "function",
		Inputs: []ABIParam{{Name: "who", Type: "address"}},
	}
	calldata, err := EncodeCall(fn, []string{"0xAAAAbbbbCCCCddddEEEEffff0000111122223333"})
	require.NoError(t, err)
	assert.Equal(t,
		strings.Repeat("0", 24)+"aaaabbbbccccddddeeeeffff0000111122223333",
		calldata[10:])
}

func TestEncodeCallInvalidInteger(t *testing.T) {
	fn := Find(OracleABI, "function", "submitRequest")
	_, err := EncodeCall(fn, []string{"0xab", "not-a-number"})
	assert.Error(t, err)
}

func TestEncodeCallUnsupportedType(t *testing.T) {
	fn := &ABIEntry{
		Name:   "weird",
		Type:   "function",
		Inputs: []ABIParam{{Name: "xs", Type: "uint256[]"}},
	}
	_, err := EncodeCall(fn, []string{"1"})
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// DecodeResult / DecodeWords
// ---------------------------------------------------------------------------

func TestDecodeResultUint(t *testing.T) {
	fn := Find(OracleABI, "function", "updateCount")
	out, err := DecodeResult(fn, fmt.Sprintf("0x%064x", 42))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "42", out[0])
}

func TestDecodeResultLargeUint(t *testing.T) {
	v, ok := new(big.Int).SetString("1500000000000000000", 10)
	require.True(t, ok)

	fn := Find(OracleABI, "function", "getLatestValue")
	out, err := DecodeResult(fn, fmt.Sprintf("0x%064x", v))
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", out[0])
}

func TestDecodeResultShortData(t *testing.T) {
	fn := Find(OracleABI, "function", "getRequestStatus")
	out, err := DecodeResult(fn, "0x"+fmt.Sprintf("%064d", 1))
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, "true", out[0])
	assert.Empty(t, out[1])
}

func TestDecodeResultBadHex(t *testing.T) {
	fn := Find(OracleABI, "function", "updateCount")
	_, err := DecodeResult(fn, "0xzzzz")
	assert.Error(t, err)
}

func TestDecodeWordsMixedTypes(t *testing.T) {
	v, _ := new(big.Int).SetString("2000000000000000000", 10)
	data := "0x" +
		fmt.Sprintf("%064x", v) +
		strings.Repeat("0", 24) + "aaaabbbbccccddddeeeeffff0000111122223333" +
		fmt.Sprintf("%064x", 1700000000)

	words := DecodeWords([]string{"uint256", "address", "uint256"}, data)
	require.Len(t, words, 3)
	assert.Equal(t, "2000000000000000000", words[0])
	assert.Equal(t, "0xaaaabbbbccccddddeeeeffff0000111122223333", words[1])
	assert.Equal(t, "1700000000", words[2])
}

func TestDecodeWordsTruncatedData(t *testing.T) {
	words := DecodeWords([]string{"uint256", "uint256"}, fmt.Sprintf("0x%064x", 7))
	require.Len(t, words, 2)
	assert.Equal(t, "7", words[0])
	assert.Empty(t, words[1])
}

// ---------------------------------------------------------------------------
// Oracle ABI / address table
// ---------------------------------------------------------------------------

func TestOracleABIComplete(t *testing.T) {
	for _, name := range []string{
		"getLatestValue", "lastUpdateTime", "updateCount",
		"minResponses", "updateInterval", "deviationThreshold",
		"getBaseFee", "getComplexityMultiplier", "getSourceCount",
		"getRequestStatus", "submitRequest",
	} {
		assert.NotNil(t, Find(OracleABI, "function", name), "function %s", name)
	}
	for _, name := range []string{"ValueUpdated", "RequestSubmitted", "RequestFulfilled"} {
		assert.NotNil(t, Find(OracleABI, "event", name), "event %s", name)
	}
}

func TestOracleAddressesPerChain(t *testing.T) {
	for _, id := range []int64{1, 11155111, 137, 42161, 8453} {
		assert.NotEmpty(t, OracleAddresses[id], "chain %d", id)
	}
}
