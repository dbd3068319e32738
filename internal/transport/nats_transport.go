package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/clients"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/interfaces"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/metrics"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/services"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/types"
)

const subjectKindBridge = "bridge"

// Envelope wire form of a bridged message
type Envelope struct {
	SrcChain uint16 `json:"src_chain"`
	DstChain uint16 `json:"dst_chain"`
	SrcPath  string `json:"src_path"`
	Receiver string `json:"receiver"`
	Nonce    uint64 `json:"nonce"`
	Payload  string `json:"payload"`
}

// Subject returns the subject carrying messages for receiver on dstChain
func Subject(prefix string, dstChain uint16, receiver common.Address) string {
	return fmt.Sprintf("%s.%d.%s", prefix, dstChain, strings.ToLower(receiver.Hex()))
}

// NATSTransport carries messages between deployments over NATS. The sending
// side publishes inside the caller's transaction; the receiving side runs
// Listen and hands envelopes to the registered receivers.
type NATSTransport struct {
	client   *clients.NATSClient
	identity common.Address
	chainID  uint16
	prefix   string
	fees     *FeeModel
	logger   *logrus.Logger

	mu        sync.Mutex
	receivers map[common.Address]interfaces.InboundReceiver
	nonces    map[string]uint64
}

// NewNATSTransport creates a transport publishing under prefix
func NewNATSTransport(client *clients.NATSClient, identity common.Address, chainID uint16, prefix string, fees *FeeModel, logger *logrus.Logger) *NATSTransport {
	return &NATSTransport{
		client:    client,
		identity:  identity,
		chainID:   chainID,
		prefix:    prefix,
		fees:      fees,
		logger:    logger,
		receivers: make(map[common.Address]interfaces.InboundReceiver),
		nonces:    make(map[string]uint64),
	}
}

// Register makes a receiver reachable through Listen
func (t *NATSTransport) Register(receiver interfaces.InboundReceiver) {
	t.mu.Lock()
	t.receivers[receiver.Address()] = receiver
	t.mu.Unlock()
}

// Identity implements interfaces.MessagingTransport
func (t *NATSTransport) Identity() common.Address {
	return t.identity
}

// EstimateFee implements interfaces.MessagingTransport
func (t *NATSTransport) EstimateFee(_ context.Context, dstChain uint16, payload []byte, useAltFee bool, adapterParams []byte) (*big.Int, *big.Int, error) {
	return t.fees.Estimate(dstChain, payload, useAltFee, adapterParams)
}

// Send implements interfaces.MessagingTransport. Delivery on the remote side
// presents that deployment's transport identity as the caller.
func (t *NATSTransport) Send(_ context.Context, req interfaces.SendRequest) (*interfaces.SendReceipt, error) {
	receiver, err := types.DecodeAddressPath(req.Destination)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	nativeFee, _, err := t.fees.Estimate(req.DstChain, req.Payload, false, req.AdapterParams)
	if err != nil {
		return nil, err
	}
	if req.NativeFee == nil || req.NativeFee.Cmp(nativeFee) < 0 {
		return nil, fmt.Errorf("not enough native for fees: need %s", nativeFee)
	}

	path := types.EncodePath(req.Sender, receiver)
	env := Envelope{
		SrcChain: t.chainID,
		DstChain: req.DstChain,
		SrcPath:  types.EncodeHex(path),
		Receiver: receiver.Hex(),
		Payload:  types.EncodeHex(req.Payload),
	}

	// Core NATS has no sequence; number each path locally.
	if !t.client.JetStreamEnabled() {
		t.mu.Lock()
		t.nonces[string(path)]++
		env.Nonce = t.nonces[string(path)]
		t.mu.Unlock()
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	subject := Subject(t.prefix, req.DstChain, receiver)
	seq, err := t.client.Publish(subject, data)
	if err != nil {
		return nil, err
	}
	if seq > 0 {
		env.Nonce = seq
	}

	t.logger.WithFields(logrus.Fields{
		"subject": subject,
		"nonce":   env.Nonce,
	}).Info("📤 Bridge message published")

	return &interfaces.SendReceipt{Nonce: env.Nonce, NativeFee: nativeFee}, nil
}

// ListenSubject wildcard subject for every receiver on the local chain
func (t *NATSTransport) ListenSubject() string {
	return fmt.Sprintf("%s.%d.*", t.prefix, t.chainID)
}

// Listen subscribes to messages addressed to the local chain and blocks
// until ctx is done
func (t *NATSTransport) Listen(ctx context.Context) error {
	if err := t.client.EnsureStream([]string{t.prefix + ".>"}); err != nil {
		return err
	}
	if err := t.client.Subscribe(t.ListenSubject(), func(msg *nats.Msg) {
		t.handle(ctx, msg)
	}); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func (t *NATSTransport) handle(ctx context.Context, msg *nats.Msg) {
	metrics.NATSMessagesReceived.WithLabelValues(subjectKindBridge).Inc()

	err := t.deliver(ctx, msg)
	switch {
	case err == nil:
		ack(msg)
	case services.IsDomainError(err):
		// Rejections are final: the receiver audits them and redelivery cannot help.
		metrics.NATSMessagesFailed.WithLabelValues(subjectKindBridge, string(services.KindOf(err))).Inc()
		t.logger.WithError(err).WithField("subject", msg.Subject).Warn("Bridge message rejected")
		ack(msg)
	default:
		metrics.NATSMessagesFailed.WithLabelValues(subjectKindBridge, "process_error").Inc()
		t.logger.WithError(err).WithField("subject", msg.Subject).Error("❌ Bridge message processing failed")
		if msg.Reply != "" {
			_ = msg.Nak()
		}
	}
}

func (t *NATSTransport) deliver(ctx context.Context, msg *nats.Msg) error {
	var env Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		return services.ErrInvalidPayload
	}
	if env.DstChain != t.chainID {
		return fmt.Errorf("envelope for chain %d delivered to chain %d", env.DstChain, t.chainID)
	}
	receiverAddr, err := types.ParseAddress(env.Receiver)
	if err != nil {
		return services.ErrInvalidPayload
	}
	path, err := types.DecodeHex(env.SrcPath)
	if err != nil {
		return services.ErrInvalidPayload
	}
	payload, err := types.DecodeHex(env.Payload)
	if err != nil {
		return services.ErrInvalidPayload
	}

	nonce := env.Nonce
	if meta, err := msg.Metadata(); err == nil && nonce == 0 {
		nonce = meta.Sequence.Stream
	}

	t.mu.Lock()
	receiver, ok := t.receivers[receiverAddr]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("no receiver registered at %s", receiverAddr.Hex())
	}

	return receiver.Receive(ctx, t.identity, interfaces.InboundMessage{
		SrcChain: env.SrcChain,
		SrcPath:  path,
		Nonce:    nonce,
		Payload:  payload,
	})
}

func ack(msg *nats.Msg) {
	if msg.Reply != "" {
		_ = msg.Ack()
	}
}
