// Leveler database models
package models

import (
	"time"
)

// ============ level state ============

// LevelRecord per-item level counter. Absent rows read as level 0.
type LevelRecord struct {
	ItemID    string    `json:"item_id" gorm:"primaryKey;type:varchar(78)"` // uint256 as decimal string
	Level     uint64    `json:"level" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies table name
func (LevelRecord) TableName() string {
	return "level_records"
}

// LevelPolicyID the policy table holds a single row
const LevelPolicyID = 1

// LevelPolicy cost, cap and access policy of the level state.
// Columns are appended by later schema generations and never reordered.
type LevelPolicy struct {
	ID uint `json:"id" gorm:"primaryKey"`

	// version 1 (genesis)
	Owner        string `json:"owner" gorm:"type:varchar(42);not null"`
	Authorized   string `json:"authorized" gorm:"type:varchar(42);not null"`
	Collection   string `json:"collection" gorm:"type:varchar(42);not null"`
	PaymentAsset string `json:"payment_asset" gorm:"type:varchar(42);not null"` // zero address = free leveling
	BaseCost     string `json:"base_cost" gorm:"type:varchar(78);not null;default:'0'"`
	Version      uint64 `json:"version" gorm:"not null;default:0"`

	// version 3 (capped)
	Capped   bool   `json:"capped" gorm:"not null;default:false"`
	MaxLevel uint64 `json:"max_level" gorm:"not null;default:0"`

	// version 4 (bridged)
	BridgeAgent string `json:"bridge_agent" gorm:"type:varchar(42);not null;default:'0x0000000000000000000000000000000000000000'"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies table name
func (LevelPolicy) TableName() string {
	return "level_policies"
}

// VersionGate records a schema version that has been initialized
type VersionGate struct {
	Version       uint64    `json:"version" gorm:"primaryKey;autoIncrement:false"`
	Name          string    `json:"name" gorm:"type:varchar(32);not null"`
	InitializedBy string    `json:"initialized_by" gorm:"type:varchar(42);not null"`
	InitializedAt time.Time `json:"initialized_at" gorm:"not null"`
}

// TableName specifies table name
func (VersionGate) TableName() string {
	return "version_gates"
}

// ============ notification log ============

// NotificationName event name
type NotificationName string

const (
	NotificationInitialized           NotificationName = "Initialized"
	NotificationLeveledUp             NotificationName = "LeveledUp"
	NotificationCostChanged           NotificationName = "CostChanged"
	NotificationAuthorizedChanged     NotificationName = "AuthorizedChanged"
	NotificationMaxLevelChanged       NotificationName = "MaxLevelChanged"
	NotificationBridgeAgentChanged    NotificationName = "BridgeAgentChanged"
	NotificationOwnershipTransferred  NotificationName = "OwnershipTransferred"
	NotificationReceivedCall          NotificationName = "ReceivedCall"
	NotificationTrustedRemoteSet      NotificationName = "TrustedRemoteSet"
	NotificationDstChainChanged       NotificationName = "DstChainChanged"
	NotificationRemoteReceiverChanged NotificationName = "RemoteReceiverChanged"
	NotificationSentinelChanged       NotificationName = "SentinelChanged"
	NotificationBurnAndLevelSent      NotificationName = "BurnAndLevelSent"
)

// Notification append-only event log entry
type Notification struct {
	Seq       uint64           `json:"seq" gorm:"primaryKey;autoIncrement:false"`
	Name      NotificationName `json:"name" gorm:"type:varchar(32);index;not null"`
	Emitter   string           `json:"emitter" gorm:"type:varchar(42);index;not null"`
	Args      string           `json:"args" gorm:"type:text;not null"` // JSON object
	CreatedAt time.Time        `json:"created_at"`
}

// TableName specifies table name
func (Notification) TableName() string {
	return "notifications"
}

// NotificationCounterID the counter table holds a single row
const NotificationCounterID = 1

// NotificationCounter last allocated notification sequence. The row stays
// locked until the appending transaction ends, so sequence order is commit order.
type NotificationCounter struct {
	ID        uint   `gorm:"primaryKey;autoIncrement:false"`
	LastSeq   uint64 `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// TableName specifies table name
func (NotificationCounter) TableName() string {
	return "notification_counters"
}
