package services

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/interfaces"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/models"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/repository"
)

// LocalMessengerService same-chain receiver bound to the in-process endpoint.
// It shares the receiver pipeline, so its checks are the bridge receiver's.
type LocalMessengerService struct {
	pipeline *inboundPipeline
}

// NewLocalMessengerService creates a LocalMessengerService identified by self
func NewLocalMessengerService(
	self common.Address,
	repo repository.BridgeRepository,
	levels *LevelService,
	notifier *NotificationService,
	logger *logrus.Logger,
) *LocalMessengerService {
	return &LocalMessengerService{pipeline: &inboundPipeline{
		self:     self,
		kind:     models.ReceiverKindLocal,
		tx:       levels.tx,
		repo:     repo,
		levels:   levels,
		notifier: notifier,
		logger:   logger,
	}}
}

// Address implements interfaces.InboundReceiver
func (s *LocalMessengerService) Address() common.Address {
	return s.pipeline.self
}

// Configure stores the owner and the endpoint identity on first start
func (s *LocalMessengerService) Configure(ctx context.Context, owner, endpoint common.Address) error {
	return s.pipeline.configure(ctx, owner, endpoint)
}

// Receive implements interfaces.InboundReceiver
func (s *LocalMessengerService) Receive(ctx context.Context, caller common.Address, msg interfaces.InboundMessage) error {
	return s.pipeline.receive(ctx, caller, msg)
}

// SetTrustedRemote sets the exact source path accepted from srcChain
func (s *LocalMessengerService) SetTrustedRemote(ctx context.Context, caller common.Address, srcChain uint16, path []byte) error {
	return s.pipeline.setTrustedRemote(ctx, caller, srcChain, path)
}

// TrustedRemotes configured source paths
func (s *LocalMessengerService) TrustedRemotes(ctx context.Context) ([]TrustedRemoteView, error) {
	return s.pipeline.trustedRemotes(ctx)
}

// Inbound most recent deliveries, newest first
func (s *LocalMessengerService) Inbound(ctx context.Context, limit int) ([]*models.InboundMessage, error) {
	return s.pipeline.inbound(ctx, limit)
}
