package interfaces

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// These interfaces decouple the level services from their collaborators
// (payment ledger, ownership registry, messaging transport, locks).

// OwnershipReader answers whether a holder owns a multi-token item (balance > 0)
type OwnershipReader interface {
	OwnsItem(ctx context.Context, collection, holder common.Address, itemID *big.Int) (bool, error)
}

// PaymentLedger fungible asset movements used by the level services
type PaymentLedger interface {
	BalanceOf(ctx context.Context, asset, holder common.Address) (*big.Int, error)
	// Transfer moves value owned by from (the caller itself).
	Transfer(ctx context.Context, asset, from, to common.Address, amount *big.Int) error
	// TransferFrom moves value on behalf of from, consuming spender's allowance.
	TransferFrom(ctx context.Context, asset, spender, from, to common.Address, amount *big.Int) error
	// BurnFrom destroys value of from; trusted spenders skip the allowance.
	BurnFrom(ctx context.Context, asset, spender, from common.Address, amount *big.Int) error
}

// SendRequest outbound message handed to a transport
type SendRequest struct {
	Sender        common.Address // identity of the sending component
	DstChain      uint16
	Destination   []byte // packed receiver address on the destination chain
	Payload       []byte
	RefundAddress common.Address
	NativeFee     *big.Int // value attached by the caller
	AdapterParams []byte
}

// SendReceipt result of an accepted send
type SendReceipt struct {
	Nonce     uint64   `json:"nonce"`
	NativeFee *big.Int `json:"native_fee"`
}

// MessagingTransport generic cross-chain message transport
type MessagingTransport interface {
	// Identity caller identity the transport presents to receivers
	Identity() common.Address
	EstimateFee(ctx context.Context, dstChain uint16, payload []byte, useAltFee bool, adapterParams []byte) (nativeFee, altFee *big.Int, err error)
	Send(ctx context.Context, req SendRequest) (*SendReceipt, error)
}

// InboundMessage message delivered by a transport
type InboundMessage struct {
	SrcChain uint16
	SrcPath  []byte // remote sender || local receiver
	Nonce    uint64
	Payload  []byte
}

// InboundReceiver component accepting transport deliveries
type InboundReceiver interface {
	Address() common.Address
	Receive(ctx context.Context, caller common.Address, msg InboundMessage) error
}

// ItemLocker serializes operations on one key across goroutines (and processes)
type ItemLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
