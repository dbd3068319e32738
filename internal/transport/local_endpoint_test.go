package transport

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/config"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/interfaces"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/repository/memory"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/types"
)

var (
	identityAddr = common.HexToAddress("0x00000000000000000000000000000000000000e9")
	senderAddr   = common.HexToAddress("0x00000000000000000000000000000000000000d5")
	receiverAddr = common.HexToAddress("0x00000000000000000000000000000000000000d6")
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type recordingReceiver struct {
	addr common.Address
	err  error

	mu       sync.Mutex
	callers  []common.Address
	messages []interfaces.InboundMessage
}

func (r *recordingReceiver) Address() common.Address { return r.addr }

func (r *recordingReceiver) Receive(_ context.Context, caller common.Address, msg interfaces.InboundMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callers = append(r.callers, caller)
	r.messages = append(r.messages, msg)
	return r.err
}

func (r *recordingReceiver) received() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func newTestEndpoint(t *testing.T, baseFee string) (*LocalEndpoint, *memory.Store) {
	t.Helper()
	fees, err := NewFeeModel(config.FeeConfig{BaseFee: baseFee})
	require.NoError(t, err)
	store := memory.NewStore()
	return NewLocalEndpoint(identityAddr, 1, fees, store, testLogger()), store
}

func sendRequest(dst common.Address, value int64) interfaces.SendRequest {
	return interfaces.SendRequest{
		Sender:      senderAddr,
		DstChain:    1,
		Destination: dst.Bytes(),
		Payload:     []byte{0xaa},
		NativeFee:   big.NewInt(value),
	}
}

func TestLocalEndpointDeliversWithIdentityAndPath(t *testing.T) {
	endpoint, _ := newTestEndpoint(t, "3")
	receiver := &recordingReceiver{addr: receiverAddr}
	endpoint.Register(receiver)

	receipt, err := endpoint.Send(context.Background(), sendRequest(receiverAddr, 3))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.Nonce)
	assert.Equal(t, int64(3), receipt.NativeFee.Int64())
	assert.Equal(t, 1, endpoint.Pending())

	results := endpoint.Flush(context.Background())
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, receiverAddr, results[0].Receiver)
	assert.Equal(t, 0, endpoint.Pending())

	require.Equal(t, 1, receiver.received())
	assert.Equal(t, identityAddr, receiver.callers[0])
	msg := receiver.messages[0]
	assert.Equal(t, uint16(1), msg.SrcChain)
	assert.Equal(t, types.EncodePath(senderAddr, receiverAddr), msg.SrcPath)
	assert.Equal(t, []byte{0xaa}, msg.Payload)
}

func TestLocalEndpointNoncesArePerPath(t *testing.T) {
	endpoint, _ := newTestEndpoint(t, "0")
	other := common.HexToAddress("0x00000000000000000000000000000000000000d7")

	r1, err := endpoint.Send(context.Background(), sendRequest(receiverAddr, 0))
	require.NoError(t, err)
	r2, err := endpoint.Send(context.Background(), sendRequest(receiverAddr, 0))
	require.NoError(t, err)
	r3, err := endpoint.Send(context.Background(), sendRequest(other, 0))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), r1.Nonce)
	assert.Equal(t, uint64(2), r2.Nonce)
	assert.Equal(t, uint64(1), r3.Nonce)
}

func TestLocalEndpointSendChecks(t *testing.T) {
	endpoint, _ := newTestEndpoint(t, "10")

	_, err := endpoint.Send(context.Background(), sendRequest(receiverAddr, 9))
	assert.Error(t, err)

	req := sendRequest(receiverAddr, 10)
	req.DstChain = 2
	_, err = endpoint.Send(context.Background(), req)
	assert.Error(t, err)

	req = sendRequest(receiverAddr, 10)
	req.Destination = types.EncodePath(senderAddr, receiverAddr)
	_, err = endpoint.Send(context.Background(), req)
	assert.Error(t, err)

	assert.Equal(t, 0, endpoint.Pending())
}

func TestLocalEndpointQueuesOnlyCommittedSends(t *testing.T) {
	endpoint, store := newTestEndpoint(t, "0")

	err := store.WithTransaction(context.Background(), func(ctx context.Context) error {
		if _, err := endpoint.Send(ctx, sendRequest(receiverAddr, 0)); err != nil {
			return err
		}
		assert.Equal(t, 0, endpoint.Pending())
		return errors.New("rolled back")
	})
	require.Error(t, err)
	assert.Equal(t, 0, endpoint.Pending())

	err = store.WithTransaction(context.Background(), func(ctx context.Context) error {
		_, err := endpoint.Send(ctx, sendRequest(receiverAddr, 0))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, endpoint.Pending())
}

func TestLocalEndpointReportsDeliveryFailures(t *testing.T) {
	endpoint, _ := newTestEndpoint(t, "0")
	failing := &recordingReceiver{addr: receiverAddr, err: errors.New("rejected")}
	endpoint.Register(failing)
	missing := common.HexToAddress("0x00000000000000000000000000000000000000d7")

	_, err := endpoint.Send(context.Background(), sendRequest(receiverAddr, 0))
	require.NoError(t, err)
	_, err = endpoint.Send(context.Background(), sendRequest(missing, 0))
	require.NoError(t, err)

	results := endpoint.Flush(context.Background())
	require.Len(t, results, 2)
	assert.EqualError(t, results[0].Err, "rejected")
	assert.Error(t, results[1].Err)
	assert.Equal(t, missing, results[1].Receiver)
}

func TestLocalEndpointRunDelivers(t *testing.T) {
	endpoint, _ := newTestEndpoint(t, "0")
	receiver := &recordingReceiver{addr: receiverAddr}
	endpoint.Register(receiver)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- endpoint.Run(ctx) }()

	_, err := endpoint.Send(context.Background(), sendRequest(receiverAddr, 0))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return receiver.received() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
