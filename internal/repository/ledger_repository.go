package repository

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository fungible balances, allowances and multi-token holdings
type LedgerRepository interface {
	GetBalance(ctx context.Context, asset, holder string, forUpdate bool) (*big.Int, error)
	SetBalance(ctx context.Context, asset, holder string, amount *big.Int) error
	GetAllowance(ctx context.Context, asset, owner, spender string, forUpdate bool) (*big.Int, error)
	SetAllowance(ctx context.Context, asset, owner, spender string, amount *big.Int) error

	IsTrustedSpender(ctx context.Context, asset, spender string) (bool, error)
	SetTrustedSpender(ctx context.Context, asset, spender string, trusted bool) error
	IsPaused(ctx context.Context, asset string) (bool, error)
	SetPaused(ctx context.Context, asset string, paused bool) error

	GetHolding(ctx context.Context, collection, itemID, holder string, forUpdate bool) (*big.Int, error)
	SetHolding(ctx context.Context, collection, itemID, holder string, amount *big.Int) error
}

type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new LedgerRepository instance
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) query(ctx context.Context, forUpdate bool) *gorm.DB {
	db := conn(ctx, r.db)
	if forUpdate {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func parseStored(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt stored amount %q", s)
	}
	return v, nil
}

func (r *ledgerRepository) GetBalance(ctx context.Context, asset, holder string, forUpdate bool) (*big.Int, error) {
	var row models.TokenBalance
	err := r.query(ctx, forUpdate).Where("asset = ? AND holder = ?", asset, holder).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return parseStored(row.Amount)
}

func (r *ledgerRepository) SetBalance(ctx context.Context, asset, holder string, amount *big.Int) error {
	row := models.TokenBalance{Asset: asset, Holder: holder, Amount: amount.String(), UpdatedAt: time.Now()}
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset"}, {Name: "holder"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(&row).Error
}

func (r *ledgerRepository) GetAllowance(ctx context.Context, asset, owner, spender string, forUpdate bool) (*big.Int, error) {
	var row models.TokenAllowance
	err := r.query(ctx, forUpdate).
		Where("asset = ? AND owner = ? AND spender = ?", asset, owner, spender).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return parseStored(row.Amount)
}

func (r *ledgerRepository) SetAllowance(ctx context.Context, asset, owner, spender string, amount *big.Int) error {
	row := models.TokenAllowance{Asset: asset, Owner: owner, Spender: spender, Amount: amount.String(), UpdatedAt: time.Now()}
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset"}, {Name: "owner"}, {Name: "spender"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(&row).Error
}

func (r *ledgerRepository) IsTrustedSpender(ctx context.Context, asset, spender string) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.TrustedSpender{}).
		Where("asset = ? AND spender = ?", asset, spender).
		Count(&count).Error
	return count > 0, err
}

func (r *ledgerRepository) SetTrustedSpender(ctx context.Context, asset, spender string, trusted bool) error {
	if !trusted {
		return conn(ctx, r.db).
			Where("asset = ? AND spender = ?", asset, spender).
			Delete(&models.TrustedSpender{}).Error
	}
	row := models.TrustedSpender{Asset: asset, Spender: spender}
	return conn(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (r *ledgerRepository) IsPaused(ctx context.Context, asset string) (bool, error) {
	var row models.AssetState
	err := conn(ctx, r.db).Where("asset = ?", asset).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return row.Paused, nil
}

func (r *ledgerRepository) SetPaused(ctx context.Context, asset string, paused bool) error {
	row := models.AssetState{Asset: asset, Paused: paused, UpdatedAt: time.Now()}
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset"}},
		DoUpdates: clause.AssignmentColumns([]string{"paused", "updated_at"}),
	}).Create(&row).Error
}

func (r *ledgerRepository) GetHolding(ctx context.Context, collection, itemID, holder string, forUpdate bool) (*big.Int, error) {
	var row models.ItemHolding
	err := r.query(ctx, forUpdate).
		Where("collection = ? AND item_id = ? AND holder = ?", collection, itemID, holder).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return parseStored(row.Amount)
}

func (r *ledgerRepository) SetHolding(ctx context.Context, collection, itemID, holder string, amount *big.Int) error {
	row := models.ItemHolding{Collection: collection, ItemID: itemID, Holder: holder, Amount: amount.String(), UpdatedAt: time.Now()}
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "item_id"}, {Name: "holder"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(&row).Error
}
