// Package types provides the wire encodings shared by the sender, the receivers and the transports
package types

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// AddressLength byte length of an address inside packed encodings
const AddressLength = common.AddressLength

// PathLength byte length of a trusted path: remote sender || local receiver
const PathLength = 2 * AddressLength

// DefaultAdapterGas gas limit assumed when no adapter params are supplied
const DefaultAdapterGas uint64 = 200000

var (
	// MaxUint256 largest uint256 value, also used as an unlimited allowance
	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	// NativeAsset ledger key of the chain's native coin
	NativeAsset = common.Address{}

	ErrEmptyEncoding   = errors.New("empty encoding")
	ErrEncodingTooLong = errors.New("encoding longer than 32 bytes")
	ErrInvalidPath     = errors.New("invalid path length")
)

// mustNewType creates a new ABI type, panicking on error (for use in package-level constants)
func mustNewType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("failed to create ABI type %s: %v", t, err))
	}
	return typ
}

// levelPayloadArgs abi.encode(address user, uint256 itemId, uint8 rarity)
var levelPayloadArgs = abi.Arguments{
	{Name: "user", Type: mustNewType("address")},
	{Name: "itemId", Type: mustNewType("uint256")},
	{Name: "rarity", Type: mustNewType("uint8")},
}

// LevelPayload body of a cross-chain level-up request
type LevelPayload struct {
	User   common.Address `json:"user"`
	ItemID *big.Int       `json:"item_id"`
	Rarity uint8          `json:"rarity"`
}

// EncodeLevelPayload ABI-encodes a level-up request (96 bytes)
func EncodeLevelPayload(p LevelPayload) ([]byte, error) {
	if p.ItemID == nil || p.ItemID.Sign() < 0 || p.ItemID.Cmp(MaxUint256) > 0 {
		return nil, fmt.Errorf("item id out of uint256 range")
	}
	return levelPayloadArgs.Pack(p.User, p.ItemID, p.Rarity)
}

// DecodeLevelPayload decodes a payload produced by EncodeLevelPayload
func DecodeLevelPayload(data []byte) (*LevelPayload, error) {
	unpacked, err := levelPayloadArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack level payload: %w", err)
	}
	if len(unpacked) != 3 {
		return nil, fmt.Errorf("unexpected field count %d", len(unpacked))
	}

	user, ok := unpacked[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("user field has type %T", unpacked[0])
	}
	itemID, ok := unpacked[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("itemId field has type %T", unpacked[1])
	}
	rarity, ok := unpacked[2].(uint8)
	if !ok {
		return nil, fmt.Errorf("rarity field has type %T", unpacked[2])
	}

	return &LevelPayload{User: user, ItemID: itemID, Rarity: rarity}, nil
}

// EncodeUint256 packed big-endian 32-byte encoding of an unsigned integer
func EncodeUint256(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

// DecodeUint256 reads a packed big-endian unsigned integer of at most 32 bytes
func DecodeUint256(b []byte) (*big.Int, error) {
	if len(b) == 0 {
		return nil, ErrEmptyEncoding
	}
	if len(b) > 32 {
		return nil, ErrEncodingTooLong
	}
	return new(big.Int).SetBytes(b), nil
}

// EncodePath packs a trusted path: remote sender address followed by local receiver address
func EncodePath(remote, local common.Address) []byte {
	path := make([]byte, 0, PathLength)
	path = append(path, remote.Bytes()...)
	return append(path, local.Bytes()...)
}

// SplitPath inverse of EncodePath
func SplitPath(path []byte) (remote, local common.Address, err error) {
	if len(path) != PathLength {
		return common.Address{}, common.Address{}, fmt.Errorf("%w: %d", ErrInvalidPath, len(path))
	}
	return common.BytesToAddress(path[:AddressLength]), common.BytesToAddress(path[AddressLength:]), nil
}

// DecodeAddressPath reads a packed 20-byte address destination
func DecodeAddressPath(b []byte) (common.Address, error) {
	if len(b) != AddressLength {
		return common.Address{}, fmt.Errorf("%w: %d", ErrInvalidPath, len(b))
	}
	return common.BytesToAddress(b), nil
}

// EncodeAdapterParams version 1 adapter params: uint16 version || uint256 gas
func EncodeAdapterParams(gas uint64) []byte {
	out := make([]byte, 2, 34)
	binary.BigEndian.PutUint16(out, 1)
	return append(out, EncodeUint256(new(big.Int).SetUint64(gas))...)
}

// DecodeAdapterGas returns the destination gas limit carried by adapter params.
// Empty params select DefaultAdapterGas.
func DecodeAdapterGas(params []byte) (uint64, error) {
	if len(params) == 0 {
		return DefaultAdapterGas, nil
	}
	if len(params) != 34 {
		return 0, fmt.Errorf("adapter params must be 34 bytes, got %d", len(params))
	}
	if version := binary.BigEndian.Uint16(params[:2]); version != 1 {
		return 0, fmt.Errorf("unsupported adapter params version %d", version)
	}
	gas := new(big.Int).SetBytes(params[2:])
	if !gas.IsUint64() {
		return 0, fmt.Errorf("adapter gas out of range")
	}
	return gas.Uint64(), nil
}

// DecodeHex decodes a hex string with or without 0x prefix
func DecodeHex(s string) ([]byte, error) {
	clean := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("hex decode failed: %w", err)
	}
	return b, nil
}

// EncodeHex 0x-prefixed lowercase hex
func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
