package clients

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCaller struct {
	balance *big.Int
	err     error
	calls   []ethereum.CallMsg
}

func (s *stubCaller) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	s.calls = append(s.calls, call)
	if s.err != nil {
		return nil, s.err
	}
	return common.LeftPadBytes(s.balance.Bytes(), 32), nil
}

func TestERC1155ReaderOwnsItem(t *testing.T) {
	collection := common.HexToAddress("0x00000000000000000000000000000000000000c1")
	holder := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	caller := &stubCaller{balance: big.NewInt(3)}

	reader, err := NewERC1155Reader(caller)
	require.NoError(t, err)

	balance, err := reader.BalanceOf(context.Background(), collection, holder, big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance.Int64())

	require.Len(t, caller.calls, 1)
	assert.Equal(t, collection, *caller.calls[0].To)
	// balanceOf(address,uint256) selector
	assert.Equal(t, []byte{0x00, 0xfd, 0xd5, 0x8e}, caller.calls[0].Data[:4])
	assert.Len(t, caller.calls[0].Data, 4+64)

	owns, err := reader.OwnsItem(context.Background(), collection, holder, big.NewInt(7))
	require.NoError(t, err)
	assert.True(t, owns)

	caller.balance = big.NewInt(0)
	owns, err = reader.OwnsItem(context.Background(), collection, holder, big.NewInt(7))
	require.NoError(t, err)
	assert.False(t, owns)
}

func TestERC1155ReaderCallError(t *testing.T) {
	reader, err := NewERC1155Reader(&stubCaller{err: errors.New("rpc down")})
	require.NoError(t, err)

	_, err = reader.OwnsItem(context.Background(), common.Address{}, common.Address{}, big.NewInt(1))
	assert.ErrorContains(t, err, "rpc down")
}
