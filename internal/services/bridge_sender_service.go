package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

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

// SenderGenesis initial configuration of a bridge sender
type SenderGenesis struct {
	Owner          common.Address
	DstChain       uint16
	RemoteReceiver []byte
	Sentinel       common.Address
	FeeCollector   common.Address
	BaseCostMirror *big.Int
	MaxLevelMirror uint64
}

// SenderSettings read view of a sender configuration
type SenderSettings struct {
	Address        common.Address `json:"address"`
	Owner          common.Address `json:"owner"`
	DstChain       uint16         `json:"dst_chain"`
	RemoteReceiver string         `json:"remote_receiver"`
	Sentinel       common.Address `json:"sentinel"`
	FeeCollector   common.Address `json:"fee_collector"`
	BaseCostMirror *big.Int       `json:"base_cost_mirror"`
	MaxLevelMirror uint64         `json:"max_level_mirror"`
}

// BurnAndLevelRequest origin-side level-up request
type BurnAndLevelRequest struct {
	AmountEncoding []byte // packed uint256
	User           common.Address
	ItemIDEncoding []byte // packed uint256
	Rarity         uint8
	Value          *big.Int // native value attached for the transport fee
	AdapterParams  []byte
}

// BurnAndLevelResult accepted send
type BurnAndLevelResult struct {
	MessageID string   `json:"message_id"`
	Nonce     uint64   `json:"nonce"`
	DstChain  uint16   `json:"dst_chain"`
	ItemID    *big.Int `json:"item_id"`
	Burned    *big.Int `json:"burned"`
	NativeFee *big.Int `json:"native_fee"`
}

// BridgeSenderService burns the sentinel asset and relays a level-up request
// to the receiver on the destination chain. There is no retry: a send either
// succeeds together with the burn or nothing happens.
type BridgeSenderService struct {
	self      common.Address
	tx        repository.TxManager
	repo      repository.BridgeRepository
	ledger    interfaces.PaymentLedger
	transport interfaces.MessagingTransport
	notifier  *NotificationService
	logger    *logrus.Logger
}

// NewBridgeSenderService creates a BridgeSenderService
func NewBridgeSenderService(
	self common.Address,
	tx repository.TxManager,
	repo repository.BridgeRepository,
	ledger interfaces.PaymentLedger,
	transport interfaces.MessagingTransport,
	notifier *NotificationService,
	logger *logrus.Logger,
) *BridgeSenderService {
	return &BridgeSenderService{
		self:      self,
		tx:        tx,
		repo:      repo,
		ledger:    ledger,
		transport: transport,
		notifier:  notifier,
		logger:    logger,
	}
}

// Address identity of the sender
func (s *BridgeSenderService) Address() common.Address {
	return s.self
}

// Configure stores the initial configuration. It is a no-op when the sender
// is already configured.
func (s *BridgeSenderService) Configure(ctx context.Context, g SenderGenesis) error {
	if g.Owner == (common.Address{}) || g.Sentinel == (common.Address{}) || g.FeeCollector == (common.Address{}) {
		return newError(KindInvalidConfig, reasonZeroAddress)
	}
	if g.DstChain == 0 {
		return newError(KindInvalidConfig, "invalid destination chain")
	}
	if err := checkReceiverPath(g.RemoteReceiver); err != nil {
		return err
	}
	if g.BaseCostMirror == nil {
		g.BaseCostMirror = new(big.Int)
	}
	if err := checkAmount(g.BaseCostMirror); err != nil {
		return err
	}

	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := s.repo.GetSenderConfig(ctx, s.self.Hex())
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("load sender config: %w", err)
		}
		return s.repo.SaveSenderConfig(ctx, &models.SenderConfig{
			Address:        s.self.Hex(),
			Owner:          g.Owner.Hex(),
			DstChain:       g.DstChain,
			RemoteReceiver: types.EncodeHex(g.RemoteReceiver),
			Sentinel:       g.Sentinel.Hex(),
			FeeCollector:   g.FeeCollector.Hex(),
			BaseCostMirror: g.BaseCostMirror.String(),
			MaxLevelMirror: g.MaxLevelMirror,
		})
	})
}

// Config current sender configuration
func (s *BridgeSenderService) Config(ctx context.Context) (*SenderSettings, error) {
	row, err := s.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return toSenderSettings(row)
}

// BurnAndLevel burns amount of the sentinel asset from caller and sends a
// level-up request for (user, itemID, rarity) to the configured receiver.
func (s *BridgeSenderService) BurnAndLevel(ctx context.Context, caller common.Address, req BurnAndLevelRequest) (*BurnAndLevelResult, error) {
	result, err := s.burnAndLevel(ctx, caller, req)
	if err != nil {
		if kind := KindOf(err); kind != "" {
			metrics.BridgeSendRejections.WithLabelValues(string(kind)).Inc()
		}
		return nil, err
	}

	metrics.BridgeMessagesSent.WithLabelValues(strconv.Itoa(int(result.DstChain))).Inc()
	s.logger.WithFields(logrus.Fields{
		"message_id": result.MessageID,
		"nonce":      result.Nonce,
		"dst_chain":  result.DstChain,
		"caller":     caller.Hex(),
		"user":       req.User.Hex(),
		"item_id":    result.ItemID.String(),
		"burned":     result.Burned.String(),
		"native_fee": result.NativeFee.String(),
	}).Info("Burn-and-level message sent")
	return result, nil
}

func (s *BridgeSenderService) burnAndLevel(ctx context.Context, caller common.Address, req BurnAndLevelRequest) (*BurnAndLevelResult, error) {
	amount, err := types.DecodeUint256(req.AmountEncoding)
	if err != nil {
		return nil, newError(KindInvalidPayload, "amount encoding: %v", err)
	}
	itemID, err := types.DecodeUint256(req.ItemIDEncoding)
	if err != nil {
		return nil, newError(KindInvalidPayload, "item id encoding: %v", err)
	}
	if req.User == (common.Address{}) {
		return nil, newError(KindInvalidConfig, reasonZeroAddress)
	}
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	var result *BurnAndLevelResult
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		row, err := s.loadConfig(ctx)
		if err != nil {
			return err
		}
		cfg, err := toSenderSettings(row)
		if err != nil {
			return err
		}
		destination, err := validateSenderConfig(row)
		if err != nil {
			return err
		}

		minimum := StepCost(cfg.BaseCostMirror, 0, req.Rarity)
		if amount.Cmp(minimum) < 0 {
			return newError(KindInsufficientFunds, "burn amount %s below the cost of one level (%s)", amount, minimum)
		}

		if amount.Sign() > 0 {
			if err := s.ledger.BurnFrom(ctx, cfg.Sentinel, s.self, caller, amount); err != nil {
				if IsDomainError(err) {
					return err
				}
				return fmt.Errorf("burn sentinel: %w", err)
			}
		}

		payload, err := types.EncodeLevelPayload(types.LevelPayload{User: req.User, ItemID: itemID, Rarity: req.Rarity})
		if err != nil {
			return newError(KindInvalidPayload, "%v", err)
		}

		nativeFee, _, err := s.transport.EstimateFee(ctx, cfg.DstChain, payload, false, req.AdapterParams)
		if err != nil {
			if IsDomainError(err) {
				return err
			}
			return fmt.Errorf("estimate fee: %w", err)
		}
		if value.Cmp(nativeFee) < 0 {
			return newError(KindInsufficientFunds, "attached value %s below the message fee %s", value, nativeFee)
		}
		if nativeFee.Sign() > 0 {
			if err := s.ledger.Transfer(ctx, types.NativeAsset, caller, cfg.FeeCollector, nativeFee); err != nil {
				if IsDomainError(err) {
					return err
				}
				return fmt.Errorf("charge message fee: %w", err)
			}
		}

		receipt, err := s.transport.Send(ctx, interfaces.SendRequest{
			Sender:        s.self,
			DstChain:      cfg.DstChain,
			Destination:   destination,
			Payload:       payload,
			RefundAddress: caller,
			NativeFee:     value,
			AdapterParams: req.AdapterParams,
		})
		if err != nil {
			if IsDomainError(err) {
				return err
			}
			return fmt.Errorf("send message: %w", err)
		}

		messageID := uuid.New().String()
		if err := s.repo.CreateOutbound(ctx, &models.OutboundMessage{
			ID:          messageID,
			Sender:      s.self.Hex(),
			Caller:      caller.Hex(),
			DstChain:    cfg.DstChain,
			Destination: row.RemoteReceiver,
			Nonce:       receipt.Nonce,
			Payload:     types.EncodeHex(payload),
			BurnAmount:  amount.String(),
			NativeFee:   nativeFee.String(),
		}); err != nil {
			return fmt.Errorf("record outbound message: %w", err)
		}

		if err := s.notifier.Emit(ctx, models.NotificationBurnAndLevelSent, s.self, map[string]interface{}{
			"caller":    caller.Hex(),
			"user":      req.User.Hex(),
			"item_id":   itemID.String(),
			"rarity":    req.Rarity,
			"dst_chain": cfg.DstChain,
			"nonce":     receipt.Nonce,
			"burned":    amount.String(),
		}); err != nil {
			return err
		}

		result = &BurnAndLevelResult{
			MessageID: messageID,
			Nonce:     receipt.Nonce,
			DstChain:  cfg.DstChain,
			ItemID:    itemID,
			Burned:    amount,
			NativeFee: nativeFee,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EstimateFees transport fee quote for a payload sent to the configured destination
func (s *BridgeSenderService) EstimateFees(ctx context.Context, payload []byte, useAltFee bool, adapterParams []byte) (nativeFee, altFee *big.Int, err error) {
	row, err := s.loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	if row.DstChain == 0 {
		return nil, nil, newError(KindInvalidConfig, "invalid destination chain")
	}
	return s.transport.EstimateFee(ctx, row.DstChain, payload, useAltFee, adapterParams)
}

// Outbound most recent messages sent by this sender
func (s *BridgeSenderService) Outbound(ctx context.Context, limit int) ([]*models.OutboundMessage, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListOutbound(ctx, s.self.Hex(), limit)
}

// QuoteBurn smallest burn accepted for one level step from level at rarity,
// using the mirrored destination policy.
func (s *BridgeSenderService) QuoteBurn(ctx context.Context, level uint64, rarity uint8) (*big.Int, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.MaxLevelMirror != 0 && level >= cfg.MaxLevelMirror {
		return nil, newError(KindCapReached, reasonMaxLevel)
	}
	return StepCost(cfg.BaseCostMirror, level, rarity), nil
}

// SetDstChain changes the destination chain
func (s *BridgeSenderService) SetDstChain(ctx context.Context, caller common.Address, dstChain uint16) error {
	return s.updateConfig(ctx, caller, func(ctx context.Context, row *models.SenderConfig) error {
		if dstChain == 0 {
			return newError(KindInvalidConfig, "invalid destination chain")
		}
		row.DstChain = dstChain
		return s.notifier.Emit(ctx, models.NotificationDstChainChanged, s.self, map[string]interface{}{
			"dst_chain": dstChain,
		})
	})
}

// SetRemoteReceiver changes the packed receiver address on the destination chain
func (s *BridgeSenderService) SetRemoteReceiver(ctx context.Context, caller common.Address, path []byte) error {
	return s.updateConfig(ctx, caller, func(ctx context.Context, row *models.SenderConfig) error {
		if err := checkReceiverPath(path); err != nil {
			return err
		}
		row.RemoteReceiver = types.EncodeHex(path)
		return s.notifier.Emit(ctx, models.NotificationRemoteReceiverChanged, s.self, map[string]interface{}{
			"remote_receiver": row.RemoteReceiver,
		})
	})
}

// SetSentinel changes the burned asset
func (s *BridgeSenderService) SetSentinel(ctx context.Context, caller, sentinel common.Address) error {
	return s.updateConfig(ctx, caller, func(ctx context.Context, row *models.SenderConfig) error {
		if sentinel == (common.Address{}) {
			return newError(KindInvalidConfig, reasonZeroAddress)
		}
		row.Sentinel = sentinel.Hex()
		return s.notifier.Emit(ctx, models.NotificationSentinelChanged, s.self, map[string]interface{}{
			"sentinel": sentinel.Hex(),
		})
	})
}

// SetMirrors refreshes the local copy of the destination cost policy
func (s *BridgeSenderService) SetMirrors(ctx context.Context, caller common.Address, baseCost *big.Int, maxLevel uint64) error {
	if err := checkAmount(baseCost); err != nil {
		return err
	}
	return s.updateConfig(ctx, caller, func(ctx context.Context, row *models.SenderConfig) error {
		row.BaseCostMirror = baseCost.String()
		row.MaxLevelMirror = maxLevel
		return nil
	})
}

func (s *BridgeSenderService) updateConfig(ctx context.Context, caller common.Address, fn func(ctx context.Context, row *models.SenderConfig) error) error {
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		row, err := s.loadConfig(ctx)
		if err != nil {
			return err
		}
		if common.HexToAddress(row.Owner) != caller {
			return newError(KindAuthorization, reasonCallerNotOwner)
		}
		if err := fn(ctx, row); err != nil {
			return err
		}
		if err := s.repo.SaveSenderConfig(ctx, row); err != nil {
			return fmt.Errorf("save sender config: %w", err)
		}
		return nil
	})
}

func (s *BridgeSenderService) loadConfig(ctx context.Context) (*models.SenderConfig, error) {
	row, err := s.repo.GetSenderConfig(ctx, s.self.Hex())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newError(KindNotInitialized, "sender is not configured")
	}
	if err != nil {
		return nil, fmt.Errorf("load sender config: %w", err)
	}
	return row, nil
}

// validateSenderConfig returns the decoded destination of a usable configuration
func validateSenderConfig(row *models.SenderConfig) ([]byte, error) {
	if row.DstChain == 0 {
		return nil, newError(KindInvalidConfig, "invalid destination chain")
	}
	if common.HexToAddress(row.Sentinel) == (common.Address{}) {
		return nil, newError(KindInvalidConfig, "sentinel asset not set")
	}
	destination, err := types.DecodeHex(row.RemoteReceiver)
	if err != nil {
		return nil, newError(KindInvalidConfig, "remote receiver: %v", err)
	}
	if err := checkReceiverPath(destination); err != nil {
		return nil, err
	}
	return destination, nil
}

func checkReceiverPath(path []byte) error {
	receiver, err := types.DecodeAddressPath(path)
	if err != nil {
		return newError(KindInvalidConfig, "remote receiver must be a packed address: %v", err)
	}
	if receiver == (common.Address{}) {
		return newError(KindInvalidConfig, reasonZeroAddress)
	}
	return nil
}

func toSenderSettings(row *models.SenderConfig) (*SenderSettings, error) {
	baseCost, err := types.ParseAmount(row.BaseCostMirror)
	if err != nil {
		return nil, fmt.Errorf("stored base cost mirror: %w", err)
	}
	return &SenderSettings{
		Address:        common.HexToAddress(row.Address),
		Owner:          common.HexToAddress(row.Owner),
		DstChain:       row.DstChain,
		RemoteReceiver: row.RemoteReceiver,
		Sentinel:       common.HexToAddress(row.Sentinel),
		FeeCollector:   common.HexToAddress(row.FeeCollector),
		BaseCostMirror: baseCost,
		MaxLevelMirror: row.MaxLevelMirror,
	}, nil
}
