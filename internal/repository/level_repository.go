package repository

import (
	"context"
	"errors"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LevelRepository defines the interface for level state data access
type LevelRepository interface {
	// Policy row (gorm.ErrRecordNotFound before genesis)
	GetPolicy(ctx context.Context) (*models.LevelPolicy, error)
	GetPolicyForUpdate(ctx context.Context) (*models.LevelPolicy, error)
	GetPolicyForShare(ctx context.Context) (*models.LevelPolicy, error) // blocks policy writers until the transaction ends
	CreatePolicy(ctx context.Context, policy *models.LevelPolicy) error
	SavePolicy(ctx context.Context, policy *models.LevelPolicy) error

	// Level records
	GetLevel(ctx context.Context, itemID string) (uint64, error)
	GetLevels(ctx context.Context, itemIDs []string) (map[string]uint64, error)
	LockLevel(ctx context.Context, itemID string) (uint64, error) // row lock until the transaction ends
	SetLevel(ctx context.Context, itemID string, level uint64) error
	HighestLevel(ctx context.Context) (uint64, error)

	// Version gates
	CreateGate(ctx context.Context, gate *models.VersionGate) error
	ListGates(ctx context.Context) ([]*models.VersionGate, error)
}

// levelRepository implements LevelRepository
type levelRepository struct {
	db *gorm.DB
}

// NewLevelRepository creates a new LevelRepository instance
func NewLevelRepository(db *gorm.DB) LevelRepository {
	return &levelRepository{db: db}
}

func (r *levelRepository) GetPolicy(ctx context.Context) (*models.LevelPolicy, error) {
	var policy models.LevelPolicy
	if err := conn(ctx, r.db).First(&policy, models.LevelPolicyID).Error; err != nil {
		return nil, err
	}
	return &policy, nil
}

func (r *levelRepository) GetPolicyForUpdate(ctx context.Context) (*models.LevelPolicy, error) {
	return r.lockPolicy(ctx, "UPDATE")
}

func (r *levelRepository) GetPolicyForShare(ctx context.Context) (*models.LevelPolicy, error) {
	return r.lockPolicy(ctx, "SHARE")
}

func (r *levelRepository) lockPolicy(ctx context.Context, strength string) (*models.LevelPolicy, error) {
	var policy models.LevelPolicy
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: strength}).
		First(&policy, models.LevelPolicyID).Error
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

func (r *levelRepository) CreatePolicy(ctx context.Context, policy *models.LevelPolicy) error {
	policy.ID = models.LevelPolicyID
	return conn(ctx, r.db).Create(policy).Error
}

func (r *levelRepository) SavePolicy(ctx context.Context, policy *models.LevelPolicy) error {
	policy.ID = models.LevelPolicyID
	return conn(ctx, r.db).Save(policy).Error
}

func (r *levelRepository) GetLevel(ctx context.Context, itemID string) (uint64, error) {
	var record models.LevelRecord
	err := conn(ctx, r.db).Where("item_id = ?", itemID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return record.Level, nil
}

func (r *levelRepository) GetLevels(ctx context.Context, itemIDs []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}

	var records []models.LevelRecord
	if err := conn(ctx, r.db).Where("item_id IN ?", itemIDs).Find(&records).Error; err != nil {
		return nil, err
	}
	for _, record := range records {
		out[record.ItemID] = record.Level
	}
	return out, nil
}

func (r *levelRepository) LockLevel(ctx context.Context, itemID string) (uint64, error) {
	db := conn(ctx, r.db)

	// A missing row cannot be locked, so materialize it first.
	seed := models.LevelRecord{ItemID: itemID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return 0, err
	}

	var record models.LevelRecord
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("item_id = ?", itemID).First(&record).Error
	if err != nil {
		return 0, err
	}
	return record.Level, nil
}

func (r *levelRepository) SetLevel(ctx context.Context, itemID string, level uint64) error {
	record := models.LevelRecord{ItemID: itemID, Level: level}
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"level", "updated_at"}),
	}).Create(&record).Error
}

func (r *levelRepository) HighestLevel(ctx context.Context) (uint64, error) {
	var highest uint64
	err := conn(ctx, r.db).Model(&models.LevelRecord{}).Select("COALESCE(MAX(level), 0)").Scan(&highest).Error
	return highest, err
}

func (r *levelRepository) CreateGate(ctx context.Context, gate *models.VersionGate) error {
	return conn(ctx, r.db).Create(gate).Error
}

func (r *levelRepository) ListGates(ctx context.Context) ([]*models.VersionGate, error) {
	var gates []*models.VersionGate
	err := conn(ctx, r.db).Order("version ASC").Find(&gates).Error
	return gates, err
}
