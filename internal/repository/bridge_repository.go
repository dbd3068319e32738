package repository

import (
	"context"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BridgeRepository defines the interface for sender/receiver configuration and message audit
type BridgeRepository interface {
	// Sender configuration
	GetSenderConfig(ctx context.Context, address string) (*models.SenderConfig, error)
	SaveSenderConfig(ctx context.Context, cfg *models.SenderConfig) error

	// Receiver configuration
	GetReceiverConfig(ctx context.Context, address string) (*models.ReceiverConfig, error)
	SaveReceiverConfig(ctx context.Context, cfg *models.ReceiverConfig) error

	// Trusted remote paths
	GetTrustedRemote(ctx context.Context, receiver string, srcChain uint16) (*models.TrustedRemote, error)
	SaveTrustedRemote(ctx context.Context, remote *models.TrustedRemote) error
	ListTrustedRemotes(ctx context.Context, receiver string) ([]*models.TrustedRemote, error)

	// Message audit
	CreateOutbound(ctx context.Context, msg *models.OutboundMessage) error
	ListOutbound(ctx context.Context, sender string, limit int) ([]*models.OutboundMessage, error)
	CreateInbound(ctx context.Context, msg *models.InboundMessage) error
	ListInbound(ctx context.Context, receiver string, limit int) ([]*models.InboundMessage, error)
}

// bridgeRepository implements BridgeRepository
type bridgeRepository struct {
	db *gorm.DB
}

// NewBridgeRepository creates a new BridgeRepository instance
func NewBridgeRepository(db *gorm.DB) BridgeRepository {
	return &bridgeRepository{db: db}
}

func (r *bridgeRepository) GetSenderConfig(ctx context.Context, address string) (*models.SenderConfig, error) {
	var cfg models.SenderConfig
	if err := conn(ctx, r.db).Where("address = ?", address).First(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *bridgeRepository) SaveSenderConfig(ctx context.Context, cfg *models.SenderConfig) error {
	return conn(ctx, r.db).Save(cfg).Error
}

func (r *bridgeRepository) GetReceiverConfig(ctx context.Context, address string) (*models.ReceiverConfig, error) {
	var cfg models.ReceiverConfig
	if err := conn(ctx, r.db).Where("address = ?", address).First(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *bridgeRepository) SaveReceiverConfig(ctx context.Context, cfg *models.ReceiverConfig) error {
	return conn(ctx, r.db).Save(cfg).Error
}

func (r *bridgeRepository) GetTrustedRemote(ctx context.Context, receiver string, srcChain uint16) (*models.TrustedRemote, error) {
	var remote models.TrustedRemote
	err := conn(ctx, r.db).
		Where("receiver = ? AND src_chain = ?", receiver, srcChain).
		First(&remote).Error
	if err != nil {
		return nil, err
	}
	return &remote, nil
}

func (r *bridgeRepository) SaveTrustedRemote(ctx context.Context, remote *models.TrustedRemote) error {
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "receiver"}, {Name: "src_chain"}},
		DoUpdates: clause.AssignmentColumns([]string{"path", "updated_by", "updated_at"}),
	}).Create(remote).Error
}

func (r *bridgeRepository) ListTrustedRemotes(ctx context.Context, receiver string) ([]*models.TrustedRemote, error) {
	var remotes []*models.TrustedRemote
	err := conn(ctx, r.db).Where("receiver = ?", receiver).Order("src_chain ASC").Find(&remotes).Error
	return remotes, err
}

func (r *bridgeRepository) CreateOutbound(ctx context.Context, msg *models.OutboundMessage) error {
	return conn(ctx, r.db).Create(msg).Error
}

func (r *bridgeRepository) ListOutbound(ctx context.Context, sender string, limit int) ([]*models.OutboundMessage, error) {
	var msgs []*models.OutboundMessage
	err := conn(ctx, r.db).
		Where("sender = ?", sender).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

func (r *bridgeRepository) CreateInbound(ctx context.Context, msg *models.InboundMessage) error {
	return conn(ctx, r.db).Create(msg).Error
}

func (r *bridgeRepository) ListInbound(ctx context.Context, receiver string, limit int) ([]*models.InboundMessage, error) {
	var msgs []*models.InboundMessage
	err := conn(ctx, r.db).
		Where("receiver = ?", receiver).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}
