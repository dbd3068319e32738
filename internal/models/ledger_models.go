package models

import (
	"time"
)

// TokenBalance fungible balance per asset and holder
type TokenBalance struct {
	Asset     string    `json:"asset" gorm:"primaryKey;type:varchar(42)"`
	Holder    string    `json:"holder" gorm:"primaryKey;type:varchar(42)"`
	Amount    string    `json:"amount" gorm:"type:varchar(78);not null;default:'0'"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies table name
func (TokenBalance) TableName() string {
	return "token_balances"
}

// TokenAllowance spending allowance per asset, owner and spender
type TokenAllowance struct {
	Asset     string    `json:"asset" gorm:"primaryKey;type:varchar(42)"`
	Owner     string    `json:"owner" gorm:"primaryKey;type:varchar(42)"`
	Spender   string    `json:"spender" gorm:"primaryKey;type:varchar(42)"`
	Amount    string    `json:"amount" gorm:"type:varchar(78);not null;default:'0'"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies table name
func (TokenAllowance) TableName() string {
	return "token_allowances"
}

// TrustedSpender spender allowed to burn an asset without allowance
type TrustedSpender struct {
	Asset     string    `json:"asset" gorm:"primaryKey;type:varchar(42)"`
	Spender   string    `json:"spender" gorm:"primaryKey;type:varchar(42)"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies table name
func (TrustedSpender) TableName() string {
	return "trusted_spenders"
}

// AssetState per-asset switches
type AssetState struct {
	Asset     string    `json:"asset" gorm:"primaryKey;type:varchar(42)"`
	Paused    bool      `json:"paused" gorm:"not null;default:false"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies table name
func (AssetState) TableName() string {
	return "asset_states"
}

// ItemHolding multi-token (ERC-1155 style) balance
type ItemHolding struct {
	Collection string    `json:"collection" gorm:"primaryKey;type:varchar(42)"`
	ItemID     string    `json:"item_id" gorm:"primaryKey;type:varchar(78)"`
	Holder     string    `json:"holder" gorm:"primaryKey;type:varchar(42)"`
	Amount     string    `json:"amount" gorm:"type:varchar(78);not null;default:'0'"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies table name
func (ItemHolding) TableName() string {
	return "item_holdings"
}
