package models

import (
	"time"
)

// SenderConfig origin-side bridge configuration
type SenderConfig struct {
	Address        string    `json:"address" gorm:"primaryKey;type:varchar(42)"`
	Owner          string    `json:"owner" gorm:"type:varchar(42);not null"`
	DstChain       uint16    `json:"dst_chain" gorm:"not null"`
	RemoteReceiver string    `json:"remote_receiver" gorm:"type:varchar(130);not null"` // hex encoded path bytes
	Sentinel       string    `json:"sentinel" gorm:"type:varchar(42);not null"`
	FeeCollector   string    `json:"fee_collector" gorm:"type:varchar(42);not null"`
	BaseCostMirror string    `json:"base_cost_mirror" gorm:"type:varchar(78);not null;default:'0'"`
	MaxLevelMirror uint64    `json:"max_level_mirror" gorm:"not null;default:0"` // 0 = unknown
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies table name
func (SenderConfig) TableName() string {
	return "sender_configs"
}

// ReceiverKind kind of inbound component
type ReceiverKind string

const (
	ReceiverKindBridge ReceiverKind = "bridge"
	ReceiverKindLocal  ReceiverKind = "local"
)

// ReceiverConfig destination-side receiver configuration
type ReceiverConfig struct {
	Address   string       `json:"address" gorm:"primaryKey;type:varchar(42)"`
	Kind      ReceiverKind `json:"kind" gorm:"type:varchar(16);not null"`
	Owner     string       `json:"owner" gorm:"type:varchar(42);not null"`
	Endpoint  string       `json:"endpoint" gorm:"type:varchar(42);not null"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TableName specifies table name
func (ReceiverConfig) TableName() string {
	return "receiver_configs"
}

// TrustedRemote trusted source path per receiver and source chain
type TrustedRemote struct {
	Receiver  string    `json:"receiver" gorm:"primaryKey;type:varchar(42)"`
	SrcChain  uint16    `json:"src_chain" gorm:"primaryKey;autoIncrement:false"`
	Path      string    `json:"path" gorm:"type:varchar(130);not null"` // hex encoded
	UpdatedBy string    `json:"updated_by" gorm:"type:varchar(42)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies table name
func (TrustedRemote) TableName() string {
	return "trusted_remotes"
}

// OutboundMessage audit row of a sent level-up request
type OutboundMessage struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Sender      string    `json:"sender" gorm:"type:varchar(42);index;not null"`
	Caller      string    `json:"caller" gorm:"type:varchar(42);index;not null"`
	DstChain    uint16    `json:"dst_chain" gorm:"not null"`
	Destination string    `json:"destination" gorm:"type:varchar(130);not null"`
	Nonce       uint64    `json:"nonce" gorm:"not null"`
	Payload     string    `json:"payload" gorm:"type:text;not null"` // hex
	BurnAmount  string    `json:"burn_amount" gorm:"type:varchar(78);not null"`
	NativeFee   string    `json:"native_fee" gorm:"type:varchar(78);not null"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies table name
func (OutboundMessage) TableName() string {
	return "outbound_messages"
}

// InboundStatus processing result of an inbound message
type InboundStatus string

const (
	InboundStatusApplied  InboundStatus = "applied"
	InboundStatusRejected InboundStatus = "rejected"
)

// InboundMessage audit row of a received envelope
type InboundMessage struct {
	ID        string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Receiver  string        `json:"receiver" gorm:"type:varchar(42);index;not null"`
	SrcChain  uint16        `json:"src_chain" gorm:"not null"`
	SrcPath   string        `json:"src_path" gorm:"type:varchar(130);not null"`
	Nonce     uint64        `json:"nonce" gorm:"not null"`
	Payload   string        `json:"payload" gorm:"type:text;not null"`
	Status    InboundStatus `json:"status" gorm:"type:varchar(16);index;not null"`
	Reason    string        `json:"reason" gorm:"type:text"`
	CreatedAt time.Time     `json:"created_at"`
}

// TableName specifies table name
func (InboundMessage) TableName() string {
	return "inbound_messages"
}
