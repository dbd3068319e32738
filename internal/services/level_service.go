package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/interfaces"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/metrics"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/models"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/repository"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/types"
)

// Schema generations of the level state
const (
	VersionGenesis uint64 = 1 // levels, flat cost, authorized principal
	VersionRarity  uint64 = 2 // rarity-scaled cost and batch reads, no stored fields
	VersionCapped  uint64 = 3 // max level
	VersionBridged uint64 = 4 // bridge agent
)

// Unbounded max level reported before the capped generation
const Unbounded uint64 = math.MaxUint64

var versionNames = map[uint64]string{
	VersionGenesis: "genesis",
	VersionRarity:  "rarity",
	VersionCapped:  "capped",
	VersionBridged: "bridged",
}

// Policy read view of the level state configuration
type Policy struct {
	Owner        common.Address `json:"owner"`
	Authorized   common.Address `json:"authorized"`
	BridgeAgent  common.Address `json:"bridge_agent"`
	Collection   common.Address `json:"collection"`
	PaymentAsset common.Address `json:"payment_asset"`
	BaseCost     *big.Int       `json:"base_cost"`
	Capped       bool           `json:"capped"`
	MaxLevel     uint64         `json:"max_level"`
	Version      uint64         `json:"version"`
}

// GenesisParams parameters of the first initialization
type GenesisParams struct {
	Owner        common.Address
	Collection   common.Address
	PaymentAsset common.Address // zero address makes leveling free
	BaseCost     *big.Int
	Authorized   common.Address
}

// LevelUpHook runs inside the level-up transaction after the level is written
type LevelUpHook func(ctx context.Context, newLevel uint64) error

// LevelService owns the per-item level counters and the policy that governs them
type LevelService struct {
	self      common.Address // account that collects level-up fees
	tx        repository.TxManager
	repo      repository.LevelRepository
	ownership interfaces.OwnershipReader
	payment   interfaces.PaymentLedger
	notifier  *NotificationService
	locker    interfaces.ItemLocker
	logger    *logrus.Logger
}

// NewLevelService creates a LevelService
func NewLevelService(
	self common.Address,
	tx repository.TxManager,
	repo repository.LevelRepository,
	ownership interfaces.OwnershipReader,
	payment interfaces.PaymentLedger,
	notifier *NotificationService,
	locker interfaces.ItemLocker,
	logger *logrus.Logger,
) *LevelService {
	return &LevelService{
		self:      self,
		tx:        tx,
		repo:      repo,
		ownership: ownership,
		payment:   payment,
		notifier:  notifier,
		locker:    locker,
		logger:    logger,
	}
}

// Address account of the level state
func (s *LevelService) Address() common.Address {
	return s.self
}

// StepCost cost of raising an item from level to level+1: baseCost * (level+1) * rarity
func StepCost(baseCost *big.Int, level uint64, rarity uint8) *big.Int {
	cost := new(big.Int).SetUint64(level)
	cost.Add(cost, big.NewInt(1))
	cost.Mul(cost, baseCost)
	return cost.Mul(cost, big.NewInt(int64(rarity)))
}

// Initialize runs the genesis generation once
func (s *LevelService) Initialize(ctx context.Context, params GenesisParams) error {
	if params.Owner == (common.Address{}) || params.Authorized == (common.Address{}) || params.Collection == (common.Address{}) {
		return newError(KindInvalidConfig, reasonZeroAddress)
	}
	if params.BaseCost == nil {
		params.BaseCost = new(big.Int)
	}
	if err := checkAmount(params.BaseCost); err != nil {
		return err
	}

	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := s.repo.GetPolicy(ctx)
		if err == nil {
			return newError(KindAlreadyMigrated, "Initializable: contract is already initialized")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("load level policy: %w", err)
		}

		policy := &models.LevelPolicy{
			Owner:        params.Owner.Hex(),
			Authorized:   params.Authorized.Hex(),
			Collection:   params.Collection.Hex(),
			PaymentAsset: params.PaymentAsset.Hex(),
			BaseCost:     params.BaseCost.String(),
			BridgeAgent:  common.Address{}.Hex(),
			Version:      VersionGenesis,
		}
		if err := s.repo.CreatePolicy(ctx, policy); err != nil {
			return fmt.Errorf("create level policy: %w", err)
		}
		return s.recordVersion(ctx, params.Owner, VersionGenesis)
	})
}

// LevelUp raises itemID by one level, charging targetOwner the step cost.
func (s *LevelService) LevelUp(ctx context.Context, caller, targetOwner common.Address, itemID *big.Int, rarity uint8) (uint64, error) {
	return s.LevelUpWith(ctx, caller, targetOwner, itemID, rarity, nil)
}

// LevelUpWith is LevelUp with a hook executed in the same transaction.
func (s *LevelService) LevelUpWith(ctx context.Context, caller, targetOwner common.Address, itemID *big.Int, rarity uint8, hook LevelUpHook) (uint64, error) {
	start := time.Now()
	defer func() { metrics.LevelUpDuration.Observe(time.Since(start).Seconds()) }()

	if itemID == nil || itemID.Sign() < 0 || itemID.Cmp(types.MaxUint256) > 0 {
		return 0, s.rejectLevelUp(newError(KindInvalidPayload, "item id out of uint256 range"))
	}
	key := types.ItemKey(itemID)

	unlock, err := s.locker.Lock(ctx, "level:"+key)
	if err != nil {
		return 0, fmt.Errorf("lock item %s: %w", key, err)
	}
	defer unlock()

	var (
		newLevel uint64
		cost     *big.Int
		role     string
	)
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		// The share lock keeps SetMaxLevel from lowering the cap under this level-up.
		policy, err := s.loadPolicy(ctx, s.repo.GetPolicyForShare)
		if err != nil {
			return err
		}

		role = callerRole(policy, caller)
		if role == "" {
			return newError(KindAuthorization, reasonNotAuthorized)
		}

		owns, err := s.ownership.OwnsItem(ctx, policy.Collection, targetOwner, itemID)
		if err != nil {
			return fmt.Errorf("read ownership: %w", err)
		}
		if !owns {
			return newError(KindOwnershipMismatch, reasonNotOwner)
		}

		level, err := s.repo.LockLevel(ctx, key)
		if err != nil {
			return fmt.Errorf("lock level record: %w", err)
		}
		if level >= policy.MaxLevel {
			return newError(KindCapReached, reasonMaxLevel)
		}

		cost = StepCost(policy.BaseCost, level, rarity)
		if cost.Sign() > 0 && policy.PaymentAsset != (common.Address{}) {
			if err := s.payment.TransferFrom(ctx, policy.PaymentAsset, s.self, targetOwner, s.self, cost); err != nil {
				if IsDomainError(err) {
					return err
				}
				return fmt.Errorf("collect level-up payment: %w", err)
			}
		}

		newLevel = level + 1
		if err := s.repo.SetLevel(ctx, key, newLevel); err != nil {
			return fmt.Errorf("write level record: %w", err)
		}

		if err := s.notifier.Emit(ctx, models.NotificationLeveledUp, s.self, map[string]interface{}{
			"owner":     targetOwner.Hex(),
			"item_id":   key,
			"new_level": newLevel,
			"cost":      cost.String(),
			"rarity":    rarity,
		}); err != nil {
			return err
		}

		if hook != nil {
			return hook(ctx, newLevel)
		}
		return nil
	})
	if err != nil {
		return 0, s.rejectLevelUp(err)
	}

	metrics.LevelUps.WithLabelValues(role).Inc()
	s.logger.WithFields(logrus.Fields{
		"item_id":   key,
		"owner":     targetOwner.Hex(),
		"caller":    caller.Hex(),
		"new_level": newLevel,
		"cost":      cost.String(),
	}).Info("Item leveled up")
	return newLevel, nil
}

func (s *LevelService) rejectLevelUp(err error) error {
	if kind := KindOf(err); kind != "" {
		metrics.LevelUpRejections.WithLabelValues(string(kind)).Inc()
	}
	return err
}

// callerRole names the principal the caller acts as, or "" when it may not level
func callerRole(policy *Policy, caller common.Address) string {
	if caller == (common.Address{}) {
		return ""
	}
	if caller == policy.Authorized {
		return "authorized"
	}
	if policy.Version >= VersionBridged && policy.BridgeAgent != (common.Address{}) && caller == policy.BridgeAgent {
		return "bridge_agent"
	}
	return ""
}

// GetLevel current level of an item, 0 when never leveled
func (s *LevelService) GetLevel(ctx context.Context, itemID *big.Int) (uint64, error) {
	return s.repo.GetLevel(ctx, types.ItemKey(itemID))
}

// GetLevels levels of several items in request order
func (s *LevelService) GetLevels(ctx context.Context, itemIDs []*big.Int) ([]uint64, error) {
	keys := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		keys[i] = types.ItemKey(id)
	}
	found, err := s.repo.GetLevels(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, len(keys))
	for i, key := range keys {
		out[i] = found[key]
	}
	return out, nil
}

// UpgradeCost quote of the next level-up of itemID at the given rarity
func (s *LevelService) UpgradeCost(ctx context.Context, itemID *big.Int, rarity uint8) (*big.Int, error) {
	policy, err := s.loadPolicy(ctx, s.repo.GetPolicy)
	if err != nil {
		return nil, err
	}
	level, err := s.GetLevel(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if level >= policy.MaxLevel {
		return nil, newError(KindCapReached, reasonMaxLevel)
	}
	return StepCost(policy.BaseCost, level, rarity), nil
}

// Policy current configuration
func (s *LevelService) Policy(ctx context.Context) (*Policy, error) {
	return s.loadPolicy(ctx, s.repo.GetPolicy)
}

// Gates executed schema versions
func (s *LevelService) Gates(ctx context.Context) ([]*models.VersionGate, error) {
	return s.repo.ListGates(ctx)
}

// SetUpgradeCost replaces the base cost
func (s *LevelService) SetUpgradeCost(ctx context.Context, caller common.Address, cost *big.Int) error {
	if err := checkAmount(cost); err != nil {
		return err
	}
	return s.updatePolicy(ctx, caller, func(ctx context.Context, p *models.LevelPolicy) error {
		p.BaseCost = cost.String()
		return s.notifier.Emit(ctx, models.NotificationCostChanged, s.self, map[string]interface{}{
			"cost": cost.String(),
		})
	})
}

// SetAuthorized rotates the principal allowed to level items
func (s *LevelService) SetAuthorized(ctx context.Context, caller, authorized common.Address) error {
	return s.updatePolicy(ctx, caller, func(ctx context.Context, p *models.LevelPolicy) error {
		if authorized == (common.Address{}) {
			return newError(KindInvalidConfig, reasonZeroAddress)
		}
		p.Authorized = authorized.Hex()
		return s.notifier.Emit(ctx, models.NotificationAuthorizedChanged, s.self, map[string]interface{}{
			"authorized": authorized.Hex(),
		})
	})
}

// SetMaxLevel changes the cap. It cannot go below a level already reached.
func (s *LevelService) SetMaxLevel(ctx context.Context, caller common.Address, maxLevel uint64) error {
	return s.updatePolicy(ctx, caller, func(ctx context.Context, p *models.LevelPolicy) error {
		if p.Version < VersionCapped {
			return newError(KindInvalidConfig, "max level requires the capped schema")
		}
		if err := s.checkCapCoversLevels(ctx, maxLevel); err != nil {
			return err
		}
		p.MaxLevel = maxLevel
		return s.notifier.Emit(ctx, models.NotificationMaxLevelChanged, s.self, map[string]interface{}{
			"max_level": maxLevel,
		})
	})
}

// SetBridgeAgent replaces the bridge identity accepted by LevelUp
func (s *LevelService) SetBridgeAgent(ctx context.Context, caller, agent common.Address) error {
	return s.updatePolicy(ctx, caller, func(ctx context.Context, p *models.LevelPolicy) error {
		if p.Version < VersionBridged {
			return newError(KindInvalidConfig, "bridge agent requires the bridged schema")
		}
		p.BridgeAgent = agent.Hex()
		return s.notifier.Emit(ctx, models.NotificationBridgeAgentChanged, s.self, map[string]interface{}{
			"bridge_agent": agent.Hex(),
		})
	})
}

// TransferOwnership hands the owner role to another account
func (s *LevelService) TransferOwnership(ctx context.Context, caller, newOwner common.Address) error {
	return s.updatePolicy(ctx, caller, func(ctx context.Context, p *models.LevelPolicy) error {
		if newOwner == (common.Address{}) {
			return newError(KindInvalidConfig, "Ownable: new owner is the zero address")
		}
		previous := p.Owner
		p.Owner = newOwner.Hex()
		return s.notifier.Emit(ctx, models.NotificationOwnershipTransferred, s.self, map[string]interface{}{
			"previous_owner": previous,
			"new_owner":      newOwner.Hex(),
		})
	})
}

// MigrateToCapped appends the max level field. One-shot.
func (s *LevelService) MigrateToCapped(ctx context.Context, caller common.Address, initialMaxLevel uint64) error {
	return s.migrate(ctx, caller, VersionCapped, func(ctx context.Context, p *models.LevelPolicy) error {
		if err := s.checkCapCoversLevels(ctx, initialMaxLevel); err != nil {
			return err
		}
		p.Capped = true
		p.MaxLevel = initialMaxLevel
		return nil
	})
}

// MigrateToBridged appends the bridge agent field. One-shot; the zero
// address is accepted as a placeholder.
func (s *LevelService) MigrateToBridged(ctx context.Context, caller, initialBridgeAgent common.Address) error {
	return s.migrate(ctx, caller, VersionBridged, func(ctx context.Context, p *models.LevelPolicy) error {
		p.BridgeAgent = initialBridgeAgent.Hex()
		return nil
	})
}

func (s *LevelService) migrate(ctx context.Context, caller common.Address, version uint64, apply func(ctx context.Context, p *models.LevelPolicy) error) error {
	err := s.updatePolicy(ctx, caller, func(ctx context.Context, p *models.LevelPolicy) error {
		if p.Version >= version {
			return newError(KindAlreadyMigrated, "Initializable: contract is already initialized")
		}
		if err := apply(ctx, p); err != nil {
			return err
		}
		p.Version = version
		return s.recordVersion(ctx, caller, version)
	})
	if err == nil {
		s.logger.WithFields(logrus.Fields{
			"version": version,
			"name":    versionNames[version],
			"caller":  caller.Hex(),
		}).Info("Level state migrated")
	}
	return err
}

func (s *LevelService) recordVersion(ctx context.Context, caller common.Address, version uint64) error {
	gate := &models.VersionGate{
		Version:       version,
		Name:          versionNames[version],
		InitializedBy: caller.Hex(),
		InitializedAt: time.Now(),
	}
	if err := s.repo.CreateGate(ctx, gate); err != nil {
		return fmt.Errorf("record version gate %d: %w", version, err)
	}
	return s.notifier.Emit(ctx, models.NotificationInitialized, s.self, map[string]interface{}{
		"version": version,
	})
}

func (s *LevelService) checkCapCoversLevels(ctx context.Context, maxLevel uint64) error {
	highest, err := s.repo.HighestLevel(ctx)
	if err != nil {
		return fmt.Errorf("read highest level: %w", err)
	}
	if maxLevel < highest {
		return newError(KindInvalidConfig, "max level %d is below existing level %d", maxLevel, highest)
	}
	return nil
}

// updatePolicy runs an owner-only change on the locked policy row
func (s *LevelService) updatePolicy(ctx context.Context, caller common.Address, fn func(ctx context.Context, p *models.LevelPolicy) error) error {
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		row, err := s.repo.GetPolicyForUpdate(ctx)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newError(KindNotInitialized, "leveler is not initialized")
		}
		if err != nil {
			return fmt.Errorf("load level policy: %w", err)
		}
		if common.HexToAddress(row.Owner) != caller {
			return newError(KindAuthorization, reasonCallerNotOwner)
		}
		if err := fn(ctx, row); err != nil {
			return err
		}
		if err := s.repo.SavePolicy(ctx, row); err != nil {
			return fmt.Errorf("save level policy: %w", err)
		}
		return nil
	})
}

func (s *LevelService) loadPolicy(ctx context.Context, read func(context.Context) (*models.LevelPolicy, error)) (*Policy, error) {
	row, err := read(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newError(KindNotInitialized, "leveler is not initialized")
	}
	if err != nil {
		return nil, fmt.Errorf("load level policy: %w", err)
	}
	return toPolicy(row)
}

func toPolicy(row *models.LevelPolicy) (*Policy, error) {
	baseCost, err := types.ParseAmount(row.BaseCost)
	if err != nil {
		return nil, fmt.Errorf("stored base cost: %w", err)
	}
	maxLevel := Unbounded
	if row.Capped {
		maxLevel = row.MaxLevel
	}
	return &Policy{
		Owner:        common.HexToAddress(row.Owner),
		Authorized:   common.HexToAddress(row.Authorized),
		BridgeAgent:  common.HexToAddress(row.BridgeAgent),
		Collection:   common.HexToAddress(row.Collection),
		PaymentAsset: common.HexToAddress(row.PaymentAsset),
		BaseCost:     baseCost,
		Capped:       row.Capped,
		MaxLevel:     maxLevel,
		Version:      row.Version,
	}, nil
}
