package transport

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/interfaces"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/repository"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/types"
)

// DeliveryResult outcome of delivering one queued message
type DeliveryResult struct {
	Receiver common.Address
	Nonce    uint64
	Err      error
}

type pendingDelivery struct {
	receiver common.Address
	msg      interfaces.InboundMessage
}

// LocalEndpoint in-process transport for same-chain delivery. Messages are
// queued once the sending transaction commits and delivered by Flush or Run,
// so a receiver failure never reaches the sender.
type LocalEndpoint struct {
	identity common.Address
	chainID  uint16
	fees     *FeeModel
	tx       repository.TxManager
	logger   *logrus.Logger

	mu        sync.Mutex
	receivers map[common.Address]interfaces.InboundReceiver
	nonces    map[string]uint64
	queue     []pendingDelivery
	notify    chan struct{}
}

// NewLocalEndpoint creates a LocalEndpoint presenting identity to receivers
func NewLocalEndpoint(identity common.Address, chainID uint16, fees *FeeModel, tx repository.TxManager, logger *logrus.Logger) *LocalEndpoint {
	return &LocalEndpoint{
		identity:  identity,
		chainID:   chainID,
		fees:      fees,
		tx:        tx,
		logger:    logger,
		receivers: make(map[common.Address]interfaces.InboundReceiver),
		nonces:    make(map[string]uint64),
		notify:    make(chan struct{}, 1),
	}
}

// Register makes a receiver reachable at its address
func (e *LocalEndpoint) Register(receiver interfaces.InboundReceiver) {
	e.mu.Lock()
	e.receivers[receiver.Address()] = receiver
	e.mu.Unlock()
}

// Identity implements interfaces.MessagingTransport
func (e *LocalEndpoint) Identity() common.Address {
	return e.identity
}

// EstimateFee implements interfaces.MessagingTransport
func (e *LocalEndpoint) EstimateFee(_ context.Context, dstChain uint16, payload []byte, useAltFee bool, adapterParams []byte) (*big.Int, *big.Int, error) {
	return e.fees.Estimate(dstChain, payload, useAltFee, adapterParams)
}

// Send implements interfaces.MessagingTransport
func (e *LocalEndpoint) Send(ctx context.Context, req interfaces.SendRequest) (*interfaces.SendReceipt, error) {
	if req.DstChain != e.chainID {
		return nil, fmt.Errorf("local endpoint serves chain %d, not %d", e.chainID, req.DstChain)
	}
	receiver, err := types.DecodeAddressPath(req.Destination)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	nativeFee, _, err := e.fees.Estimate(req.DstChain, req.Payload, false, req.AdapterParams)
	if err != nil {
		return nil, err
	}
	if req.NativeFee == nil || req.NativeFee.Cmp(nativeFee) < 0 {
		return nil, fmt.Errorf("not enough native for fees: need %s", nativeFee)
	}

	path := types.EncodePath(req.Sender, receiver)
	payload := append([]byte(nil), req.Payload...)

	e.mu.Lock()
	pathKey := string(path)
	e.nonces[pathKey]++
	nonce := e.nonces[pathKey]
	e.mu.Unlock()

	delivery := pendingDelivery{
		receiver: receiver,
		msg: interfaces.InboundMessage{
			SrcChain: e.chainID,
			SrcPath:  path,
			Nonce:    nonce,
			Payload:  payload,
		},
	}
	e.tx.AfterCommit(ctx, func() { e.enqueue(delivery) })

	return &interfaces.SendReceipt{Nonce: nonce, NativeFee: nativeFee}, nil
}

func (e *LocalEndpoint) enqueue(d pendingDelivery) {
	e.mu.Lock()
	e.queue = append(e.queue, d)
	e.mu.Unlock()

	select {
	case e.notify <- struct{}{}:
	default:
	}
}

// Pending number of queued deliveries
func (e *LocalEndpoint) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Flush delivers every queued message in send order
func (e *LocalEndpoint) Flush(ctx context.Context) []DeliveryResult {
	e.mu.Lock()
	batch := e.queue
	e.queue = nil
	e.mu.Unlock()

	results := make([]DeliveryResult, 0, len(batch))
	for _, d := range batch {
		results = append(results, DeliveryResult{
			Receiver: d.receiver,
			Nonce:    d.msg.Nonce,
			Err:      e.deliver(ctx, d),
		})
	}
	return results
}

func (e *LocalEndpoint) deliver(ctx context.Context, d pendingDelivery) error {
	e.mu.Lock()
	receiver, ok := e.receivers[d.receiver]
	e.mu.Unlock()
	if !ok {
		e.logger.WithFields(logrus.Fields{
			"receiver": d.receiver.Hex(),
			"nonce":    d.msg.Nonce,
		}).Warn("Dropping message for unregistered receiver")
		return fmt.Errorf("no receiver registered at %s", d.receiver.Hex())
	}
	return receiver.Receive(ctx, e.identity, d.msg)
}

// Run delivers queued messages until ctx is done
func (e *LocalEndpoint) Run(ctx context.Context) error {
	e.logger.WithField("identity", e.identity.Hex()).Info("🚀 Local endpoint delivery loop started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.notify:
			e.Flush(ctx)
		}
	}
}
