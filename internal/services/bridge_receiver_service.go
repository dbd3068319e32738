package services

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/interfaces"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/models"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/repository"
)

// BridgeReceiverService destination-side endpoint of the level-up relay.
// Replay protection is left to the transport.
type BridgeReceiverService struct {
	pipeline *inboundPipeline
}

// NewBridgeReceiverService creates a BridgeReceiverService identified by self
func NewBridgeReceiverService(
	self common.Address,
	repo repository.BridgeRepository,
	levels *LevelService,
	notifier *NotificationService,
	logger *logrus.Logger,
) *BridgeReceiverService {
	return &BridgeReceiverService{pipeline: &inboundPipeline{
		self:     self,
		kind:     models.ReceiverKindBridge,
		tx:       levels.tx,
		repo:     repo,
		levels:   levels,
		notifier: notifier,
		logger:   logger,
	}}
}

// Address implements interfaces.InboundReceiver
func (s *BridgeReceiverService) Address() common.Address {
	return s.pipeline.self
}

// Configure stores the owner and the transport identity on first start
func (s *BridgeReceiverService) Configure(ctx context.Context, owner, endpoint common.Address) error {
	return s.pipeline.configure(ctx, owner, endpoint)
}

// Receive implements interfaces.InboundReceiver
func (s *BridgeReceiverService) Receive(ctx context.Context, caller common.Address, msg interfaces.InboundMessage) error {
	return s.pipeline.receive(ctx, caller, msg)
}

// SetTrustedRemote sets the exact source path accepted from srcChain
func (s *BridgeReceiverService) SetTrustedRemote(ctx context.Context, caller common.Address, srcChain uint16, path []byte) error {
	return s.pipeline.setTrustedRemote(ctx, caller, srcChain, path)
}

// TrustedRemotes configured source paths
func (s *BridgeReceiverService) TrustedRemotes(ctx context.Context) ([]TrustedRemoteView, error) {
	return s.pipeline.trustedRemotes(ctx)
}

// Inbound most recent deliveries, newest first
func (s *BridgeReceiverService) Inbound(ctx context.Context, limit int) ([]*models.InboundMessage, error) {
	return s.pipeline.inbound(ctx, limit)
}
