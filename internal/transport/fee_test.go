package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/config"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/types"
)

func TestFeeModelEstimate(t *testing.T) {
	fees, err := NewFeeModel(config.FeeConfig{
		BaseFee:         "100",
		PerByteFee:      "2",
		DstGasPrice:     map[uint16]string{10: "3"},
		DefaultGasPrice: "1",
		DefaultGasLimit: 1000,
		AltFeeBps:       2500,
	})
	require.NoError(t, err)

	payload := make([]byte, 96)

	native, alt, err := fees.Estimate(10, payload, false, nil)
	require.NoError(t, err)
	// 100 + 2*96 + 3*1000
	assert.Equal(t, int64(3292), native.Int64())
	assert.Equal(t, int64(0), alt.Int64())

	native, alt, err = fees.Estimate(11, payload, true, nil)
	require.NoError(t, err)
	// 100 + 2*96 + 1*1000
	assert.Equal(t, int64(1292), native.Int64())
	assert.Equal(t, int64(323), alt.Int64())

	native, _, err = fees.Estimate(10, payload, false, types.EncodeAdapterParams(500))
	require.NoError(t, err)
	assert.Equal(t, int64(1792), native.Int64())

	_, _, err = fees.Estimate(10, payload, false, []byte{0x01})
	assert.Error(t, err)
}

func TestFeeModelDefaults(t *testing.T) {
	fees, err := NewFeeModel(config.FeeConfig{})
	require.NoError(t, err)
	assert.Equal(t, types.DefaultAdapterGas, fees.DefaultGasLimit)

	native, _, err := fees.Estimate(1, []byte{0x01}, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, native.Sign())
}

func TestFeeModelRejectsBadConfig(t *testing.T) {
	_, err := NewFeeModel(config.FeeConfig{BaseFee: "-5"})
	assert.Error(t, err)

	_, err = NewFeeModel(config.FeeConfig{DstGasPrice: map[uint16]string{1: "abc"}})
	assert.Error(t, err)
}
