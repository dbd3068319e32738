package types

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("")
	require.NoError(t, err)
	assert.Equal(t, 0, v.Sign())

	v, err = ParseAmount(" 1000 ")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), v.Int64())

	v, err = ParseAmount("0x10")
	require.NoError(t, err)
	assert.Equal(t, int64(16), v.Int64())

	v, err = ParseAmount("010")
	require.NoError(t, err)
	assert.Equal(t, int64(10), v.Int64())

	v, err = ParseAmount("0XFF")
	require.NoError(t, err)
	assert.Equal(t, int64(255), v.Int64())

	for _, bad := range []string{"-1", "0b11", "0o17", "1_000", "0x", "0x-1", "+5", "1e3"} {
		_, err = ParseAmount(bad)
		assert.Error(t, err, bad)
	}

	_, err = ParseAmount("12abc")
	assert.Error(t, err)

	tooBig := "115792089237316195423570985008687907853269984665640564039457584007913129639936"
	_, err = ParseAmount(tooBig)
	assert.Error(t, err)
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("")
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, addr)

	addr, err = ParseAddress("0x742d35cc6634c0532925a3b0f26750c66d78eb66")
	require.NoError(t, err)
	assert.Equal(t, "0x742d35Cc6634C0532925a3b0F26750C66d78EB66", addr.Hex())

	_, err = ParseAddress("0x1234")
	assert.Error(t, err)
}

func TestItemKey(t *testing.T) {
	v, err := ParseAmount("0xff")
	require.NoError(t, err)
	assert.Equal(t, "255", ItemKey(v))
}
