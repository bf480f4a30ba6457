package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetByName(t *testing.T) {
	reg := NewRegistry()
	c, err := reg.GetByName("ethereum")
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.ChainID)
	assert.Equal(t, "ETH", c.NativeCurrency)
}

func TestRegistryGetByNameCaseInsensitive(t *testing.T) {
	reg := NewRegistry()
	c, err := reg.GetByName("Polygon")
	require.NoError(t, err)
	assert.Equal(t, int64(137), c.ChainID)
}

func TestRegistryGetByNameUnknown(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.GetByName("dogecoin")
	assert.ErrorIs(t, err, ErrChainNotFound)
}

func TestRegistryGetByChainID(t *testing.T) {
	reg := NewRegistry()
	c, err := reg.GetByChainID(8453)
	require.NoError(t, err)
	assert.Equal(t, "base", c.Name)
}

func TestRegistryGetByChainIDUnknown(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.GetByChainID(424242)
	assert.ErrorIs(t, err, ErrChainNotFound)
}

func TestRegistrySupported(t *testing.T) {
	reg := NewRegistry()
	assert.True(t, reg.Supported(11155111))
	assert.False(t, reg.Supported(424242))
}

func TestRegistryAllChainsComplete(t *testing.T) {
	reg := NewRegistry()
	for _, c := range reg.All() {
		assert.NotEmpty(t, c.Name)
		assert.NotEmpty(t, c.DisplayName)
		assert.NotZero(t, c.ChainID)
		assert.NotEmpty(t, c.RPCs, "chain %s needs at least one RPC", c.Name)
		assert.NotZero(t, c.Confirmations, "chain %s needs a confirmation depth", c.Name)
	}
}
