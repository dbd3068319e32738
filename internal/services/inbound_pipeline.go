package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/interfaces"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/metrics"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/models"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/repository"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/types"
)

// TrustedRemoteView trusted source path of one chain
type TrustedRemoteView struct {
	SrcChain uint16 `json:"src_chain"`
	Path     string `json:"path"`
}

// inboundPipeline is the one validation path every receiver uses:
// transport identity, trusted source path, payload decoding, then LevelUp.
type inboundPipeline struct {
	self     common.Address
	kind     models.ReceiverKind
	tx       repository.TxManager
	repo     repository.BridgeRepository
	levels   *LevelService
	notifier *NotificationService
	logger   *logrus.Logger
}

// configure stores owner and endpoint unless already present
func (p *inboundPipeline) configure(ctx context.Context, owner, endpoint common.Address) error {
	if owner == (common.Address{}) || endpoint == (common.Address{}) {
		return newError(KindInvalidConfig, reasonZeroAddress)
	}
	_, err := p.repo.GetReceiverConfig(ctx, p.self.Hex())
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("load receiver config: %w", err)
	}
	return p.repo.SaveReceiverConfig(ctx, &models.ReceiverConfig{
		Address:  p.self.Hex(),
		Kind:     p.kind,
		Owner:    owner.Hex(),
		Endpoint: endpoint.Hex(),
	})
}

func (p *inboundPipeline) loadConfig(ctx context.Context) (*models.ReceiverConfig, error) {
	cfg, err := p.repo.GetReceiverConfig(ctx, p.self.Hex())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newError(KindNotInitialized, "receiver is not configured")
	}
	if err != nil {
		return nil, fmt.Errorf("load receiver config: %w", err)
	}
	return cfg, nil
}

func (p *inboundPipeline) receive(ctx context.Context, caller common.Address, msg interfaces.InboundMessage) error {
	err := p.apply(ctx, caller, msg)

	audit := &models.InboundMessage{
		ID:       uuid.New().String(),
		Receiver: p.self.Hex(),
		SrcChain: msg.SrcChain,
		SrcPath:  types.EncodeHex(msg.SrcPath),
		Nonce:    msg.Nonce,
		Payload:  types.EncodeHex(msg.Payload),
		Status:   models.InboundStatusApplied,
	}
	result := "applied"
	if err != nil {
		audit.Status = models.InboundStatusRejected
		audit.Reason = err.Error()
		result = "rejected"
	}
	metrics.InboundMessages.WithLabelValues(string(p.kind), result).Inc()

	if auditErr := p.repo.CreateInbound(ctx, audit); auditErr != nil {
		p.logger.WithFields(logrus.Fields{
			"receiver": p.self.Hex(),
			"nonce":    msg.Nonce,
			"error":    auditErr,
		}).Warn("Failed to record inbound message")
	}

	entry := p.logger.WithFields(logrus.Fields{
		"receiver":  p.self.Hex(),
		"kind":      p.kind,
		"src_chain": msg.SrcChain,
		"src_path":  audit.SrcPath,
		"nonce":     msg.Nonce,
	})
	if err != nil {
		entry.WithField("error", err).Warn("Inbound message rejected")
	} else {
		entry.Info("Inbound message applied")
	}
	return err
}

func (p *inboundPipeline) apply(ctx context.Context, caller common.Address, msg interfaces.InboundMessage) error {
	cfg, err := p.loadConfig(ctx)
	if err != nil {
		return err
	}
	if caller != common.HexToAddress(cfg.Endpoint) {
		return newError(KindAuthorization, "caller is not the messaging endpoint")
	}

	remote, err := p.repo.GetTrustedRemote(ctx, p.self.Hex(), msg.SrcChain)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newError(KindUntrustedRemote, "no trusted path for chain %d", msg.SrcChain)
	}
	if err != nil {
		return fmt.Errorf("load trusted remote: %w", err)
	}
	trusted, err := types.DecodeHex(remote.Path)
	if err != nil {
		return fmt.Errorf("stored trusted path: %w", err)
	}
	if len(trusted) == 0 || !bytes.Equal(trusted, msg.SrcPath) {
		return newError(KindUntrustedRemote, "Invalid source sending contract")
	}

	payload, err := types.DecodeLevelPayload(msg.Payload)
	if err != nil {
		return newError(KindInvalidPayload, "%v", err)
	}

	_, err = p.levels.LevelUpWith(ctx, p.self, payload.User, payload.ItemID, payload.Rarity, func(ctx context.Context, newLevel uint64) error {
		return p.notifier.Emit(ctx, models.NotificationReceivedCall, p.self, map[string]interface{}{
			"src_chain": msg.SrcChain,
			"nonce":     msg.Nonce,
			"user":      payload.User.Hex(),
			"item_id":   payload.ItemID.String(),
			"new_level": newLevel,
		})
	})
	return err
}

func (p *inboundPipeline) setTrustedRemote(ctx context.Context, caller common.Address, srcChain uint16, path []byte) error {
	if len(path) == 0 {
		return newError(KindInvalidConfig, "trusted path must not be empty")
	}
	cfg, err := p.loadConfig(ctx)
	if err != nil {
		return err
	}
	if common.HexToAddress(cfg.Owner) != caller {
		return newError(KindAuthorization, reasonCallerNotOwner)
	}

	encoded := types.EncodeHex(path)
	return p.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := p.repo.SaveTrustedRemote(ctx, &models.TrustedRemote{
			Receiver:  p.self.Hex(),
			SrcChain:  srcChain,
			Path:      encoded,
			UpdatedBy: caller.Hex(),
		}); err != nil {
			return fmt.Errorf("save trusted remote: %w", err)
		}
		return p.notifier.Emit(ctx, models.NotificationTrustedRemoteSet, p.self, map[string]interface{}{
			"src_chain": srcChain,
			"path":      encoded,
		})
	})
}

func (p *inboundPipeline) trustedRemotes(ctx context.Context) ([]TrustedRemoteView, error) {
	rows, err := p.repo.ListTrustedRemotes(ctx, p.self.Hex())
	if err != nil {
		return nil, err
	}
	out := make([]TrustedRemoteView, 0, len(rows))
	for _, row := range rows {
		out = append(out, TrustedRemoteView{SrcChain: row.SrcChain, Path: row.Path})
	}
	return out, nil
}

func (p *inboundPipeline) inbound(ctx context.Context, limit int) ([]*models.InboundMessage, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return p.repo.ListInbound(ctx, p.self.Hex(), limit)
}
