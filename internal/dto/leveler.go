package dto

// ==================== Level DTOs ====================

// LevelResponse level of one item
type LevelResponse struct {
	ItemID string `json:"item_id"`
	Level  uint64 `json:"level"`
}

// BatchLevelsRequest item ids as decimal or 0x strings
type BatchLevelsRequest struct {
	ItemIDs []string `json:"item_ids" binding:"required"`
}

// BatchLevelsResponse levels in request order
type BatchLevelsResponse struct {
	ItemIDs []string `json:"item_ids"`
	Levels  []uint64 `json:"levels"`
}

// UpgradeCostResponse quote of the next level step
type UpgradeCostResponse struct {
	ItemID       string `json:"item_id"`
	CurrentLevel uint64 `json:"current_level"`
	Rarity       uint8  `json:"rarity"`
	Cost         string `json:"cost"`
}

// LevelUpRequest level-up on behalf of targetOwner
type LevelUpRequest struct {
	TargetOwner string `json:"target_owner" binding:"required"`
	ItemID      string `json:"item_id" binding:"required"`
	Rarity      uint8  `json:"rarity"`
}

// LevelUpResponse new level after a successful level-up
type LevelUpResponse struct {
	ItemID   string `json:"item_id"`
	NewLevel uint64 `json:"new_level"`
}

// ==================== Owner DTOs ====================

// AmountRequest single uint256 amount
type AmountRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// AddressRequest single address
type AddressRequest struct {
	Address string `json:"address" binding:"required"`
}

// MaxLevelRequest cap value
type MaxLevelRequest struct {
	MaxLevel uint64 `json:"max_level"`
}

// BridgeAgentRequest agent address; the zero address is accepted by the bridged migration
type BridgeAgentRequest struct {
	Agent string `json:"agent"`
}

// DstChainRequest destination chain id
type DstChainRequest struct {
	DstChain uint16 `json:"dst_chain" binding:"required"`
}

// PathRequest hex encoded address path
type PathRequest struct {
	Path string `json:"path" binding:"required"`
}

// MirrorsRequest sender-side copies of the destination policy
type MirrorsRequest struct {
	BaseCost string `json:"base_cost" binding:"required"`
	MaxLevel uint64 `json:"max_level"`
}

// ==================== Bridge DTOs ====================

// EstimateFeesRequest either a raw payload or the fields to encode one
type EstimateFeesRequest struct {
	Payload       string `json:"payload"`
	User          string `json:"user"`
	ItemID        string `json:"item_id"`
	Rarity        uint8  `json:"rarity"`
	UseAltFee     bool   `json:"use_alt_fee"`
	AdapterParams string `json:"adapter_params"`
}

// EstimateFeesResponse transport fee quote
type EstimateFeesResponse struct {
	NativeFee string `json:"native_fee"`
	AltFee    string `json:"alt_fee"`
}

// BurnAndLevelRequest burn sentinel tokens and relay a level-up
type BurnAndLevelRequest struct {
	Amount        string `json:"amount" binding:"required"`
	User          string `json:"user" binding:"required"`
	ItemID        string `json:"item_id" binding:"required"`
	Rarity        uint8  `json:"rarity"`
	Value         string `json:"value" binding:"required"` // native value attached for the transport fee
	AdapterParams string `json:"adapter_params"`
}

// BurnAndLevelResponse accepted relay
type BurnAndLevelResponse struct {
	MessageID string `json:"message_id"`
	Nonce     uint64 `json:"nonce"`
	DstChain  uint16 `json:"dst_chain"`
	ItemID    string `json:"item_id"`
	Burned    string `json:"burned"`
	NativeFee string `json:"native_fee"`
}

// ==================== Ledger DTOs ====================

// BalanceResponse fungible balance
type BalanceResponse struct {
	Asset   string `json:"asset"`
	Holder  string `json:"holder"`
	Balance string `json:"balance"`
}

// ApproveRequest allowance grant by the session address
type ApproveRequest struct {
	Spender string `json:"spender" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
}
