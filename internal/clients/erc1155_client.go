package clients

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const erc1155BalanceOfABI = `[{"inputs":[{"internalType":"address","name":"account","type":"address"},{"internalType":"uint256","name":"id","type":"uint256"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// ERC1155Reader reads item ownership from a multi-token contract over RPC
type ERC1155Reader struct {
	caller  ethereum.ContractCaller
	abi     abi.ABI
	timeout time.Duration
	closeFn func()
}

// DialERC1155Reader connects to rpcURL
func DialERC1155Reader(rpcURL string) (*ERC1155Reader, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to blockchain: %w", err)
	}
	reader, err := NewERC1155Reader(client)
	if err != nil {
		client.Close()
		return nil, err
	}
	reader.closeFn = client.Close
	return reader, nil
}

// NewERC1155Reader wraps an existing contract caller
func NewERC1155Reader(caller ethereum.ContractCaller) (*ERC1155Reader, error) {
	parsed, err := abi.JSON(strings.NewReader(erc1155BalanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return &ERC1155Reader{caller: caller, abi: parsed, timeout: 15 * time.Second}, nil
}

// BalanceOf holder's balance of itemID at the latest block
func (r *ERC1155Reader) BalanceOf(ctx context.Context, collection, holder common.Address, itemID *big.Int) (*big.Int, error) {
	data, err := r.abi.Pack("balanceOf", holder, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &collection, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}

	var balance *big.Int
	if err := r.abi.UnpackIntoInterface(&balance, "balanceOf", result); err != nil {
		return nil, fmt.Errorf("failed to unpack balance: %w", err)
	}
	return balance, nil
}

// OwnsItem implements interfaces.OwnershipReader
func (r *ERC1155Reader) OwnsItem(ctx context.Context, collection, holder common.Address, itemID *big.Int) (bool, error) {
	balance, err := r.BalanceOf(ctx, collection, holder, itemID)
	if err != nil {
		return false, err
	}
	return balance.Sign() > 0, nil
}

// Close releases the RPC connection
func (r *ERC1155Reader) Close() {
	if r.closeFn != nil {
		r.closeFn()
	}
}
