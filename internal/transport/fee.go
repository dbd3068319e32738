// Package transport provides the messaging transports that carry level-up
// requests between the bridge sender and the receivers.
package transport

import (
	"fmt"
	"math/big"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/config"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/types"
)

// FeeModel prices a message:
// native = baseFee + perByteFee*len(payload) + gasPrice(dstChain)*gasLimit
// alt    = native * altFeeBps / 10000 (only when the alt fee is requested)
type FeeModel struct {
	BaseFee         *big.Int
	PerByteFee      *big.Int
	DstGasPrice     map[uint16]*big.Int
	DefaultGasPrice *big.Int
	DefaultGasLimit uint64
	AltFeeBps       uint64
}

// NewFeeModel parses the fee section of the configuration
func NewFeeModel(cfg config.FeeConfig) (*FeeModel, error) {
	base, err := types.ParseAmount(cfg.BaseFee)
	if err != nil {
		return nil, fmt.Errorf("base_fee: %w", err)
	}
	perByte, err := types.ParseAmount(cfg.PerByteFee)
	if err != nil {
		return nil, fmt.Errorf("per_byte_fee: %w", err)
	}
	defaultGasPrice, err := types.ParseAmount(cfg.DefaultGasPrice)
	if err != nil {
		return nil, fmt.Errorf("default_gas_price: %w", err)
	}

	prices := make(map[uint16]*big.Int, len(cfg.DstGasPrice))
	for chain, raw := range cfg.DstGasPrice {
		price, err := types.ParseAmount(raw)
		if err != nil {
			return nil, fmt.Errorf("dst_gas_price[%d]: %w", chain, err)
		}
		prices[chain] = price
	}

	gasLimit := cfg.DefaultGasLimit
	if gasLimit == 0 {
		gasLimit = types.DefaultAdapterGas
	}

	return &FeeModel{
		BaseFee:         base,
		PerByteFee:      perByte,
		DstGasPrice:     prices,
		DefaultGasPrice: defaultGasPrice,
		DefaultGasLimit: gasLimit,
		AltFeeBps:       cfg.AltFeeBps,
	}, nil
}

// Estimate quotes a message of payload to dstChain
func (f *FeeModel) Estimate(dstChain uint16, payload []byte, useAltFee bool, adapterParams []byte) (nativeFee, altFee *big.Int, err error) {
	gasLimit := f.DefaultGasLimit
	if len(adapterParams) > 0 {
		gasLimit, err = types.DecodeAdapterGas(adapterParams)
		if err != nil {
			return nil, nil, err
		}
	}

	gasPrice, ok := f.DstGasPrice[dstChain]
	if !ok {
		gasPrice = f.DefaultGasPrice
	}

	nativeFee = new(big.Int).Set(orZero(f.BaseFee))
	nativeFee.Add(nativeFee, new(big.Int).Mul(orZero(f.PerByteFee), big.NewInt(int64(len(payload)))))
	nativeFee.Add(nativeFee, new(big.Int).Mul(orZero(gasPrice), new(big.Int).SetUint64(gasLimit)))

	altFee = new(big.Int)
	if useAltFee {
		altFee.Mul(nativeFee, new(big.Int).SetUint64(f.AltFeeBps))
		altFee.Div(altFee, big.NewInt(10000))
	}
	return nativeFee, altFee, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
