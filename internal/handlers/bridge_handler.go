package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/dto"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/services"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/types"
)

// BridgeHandler user side of the bridge sender
type BridgeHandler struct {
	sender *services.BridgeSenderService
	logger *logrus.Logger
}

// NewBridgeHandler creates a BridgeHandler
func NewBridgeHandler(sender *services.BridgeSenderService, logger *logrus.Logger) *BridgeHandler {
	return &BridgeHandler{sender: sender, logger: logger}
}

// ConfigHandler GET /api/v1/bridge/config
func (h *BridgeHandler) ConfigHandler(c *gin.Context) {
	cfg, err := h.sender.Config(c.Request.Context())
	if err != nil {
		respondWithServiceError(c, h.logger, "bridge_config", err)
		return
	}
	respondOK(c, cfg)
}

// EstimateFeesHandler POST /api/v1/bridge/estimate-fees
func (h *BridgeHandler) EstimateFeesHandler(c *gin.Context) {
	var req dto.EstimateFeesRequest
	if !bindJSON(c, &req) {
		return
	}

	var payload []byte
	if req.Payload != "" {
		var ok bool
		if payload, ok = parseHexField(c, "payload", req.Payload); !ok {
			return
		}
	} else {
		user, ok := parseAddressField(c, "user", req.User)
		if !ok {
			return
		}
		itemID, ok := parseItemID(c, req.ItemID)
		if !ok {
			return
		}
		encoded, err := types.EncodeLevelPayload(types.LevelPayload{User: user, ItemID: itemID, Rarity: req.Rarity})
		if err != nil {
			respondWithError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
			return
		}
		payload = encoded
	}

	var params []byte
	if req.AdapterParams != "" {
		var ok bool
		if params, ok = parseHexField(c, "adapter_params", req.AdapterParams); !ok {
			return
		}
	}

	nativeFee, altFee, err := h.sender.EstimateFees(c.Request.Context(), payload, req.UseAltFee, params)
	if err != nil {
		respondWithServiceError(c, h.logger, "estimate_fees", err)
		return
	}
	respondOK(c, dto.EstimateFeesResponse{NativeFee: nativeFee.String(), AltFee: altFee.String()})
}

// BurnAndLevelHandler POST /api/v1/bridge/burn-and-level, caller is the session address
func (h *BridgeHandler) BurnAndLevelHandler(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req dto.BurnAndLevelRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, ok := parseAmountField(c, "amount", req.Amount)
	if !ok {
		return
	}
	user, ok := parseAddressField(c, "user", req.User)
	if !ok {
		return
	}
	itemID, ok := parseItemID(c, req.ItemID)
	if !ok {
		return
	}
	value, ok := parseAmountField(c, "value", req.Value)
	if !ok {
		return
	}
	var params []byte
	if req.AdapterParams != "" {
		if params, ok = parseHexField(c, "adapter_params", req.AdapterParams); !ok {
			return
		}
	}

	result, err := h.sender.BurnAndLevel(c.Request.Context(), caller, services.BurnAndLevelRequest{
		AmountEncoding: types.EncodeUint256(amount),
		User:           user,
		ItemIDEncoding: types.EncodeUint256(itemID),
		Rarity:         req.Rarity,
		Value:          value,
		AdapterParams:  params,
	})
	if err != nil {
		respondWithServiceError(c, h.logger, "burn_and_level", err)
		return
	}

	respondOK(c, dto.BurnAndLevelResponse{
		MessageID: result.MessageID,
		Nonce:     result.Nonce,
		DstChain:  result.DstChain,
		ItemID:    result.ItemID.String(),
		Burned:    result.Burned.String(),
		NativeFee: result.NativeFee.String(),
	})
}

// LedgerHandler balances and approvals of the payment ledger
type LedgerHandler struct {
	ledger *services.LedgerService
	logger *logrus.Logger
}

// NewLedgerHandler creates a LedgerHandler
func NewLedgerHandler(ledger *services.LedgerService, logger *logrus.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, logger: logger}
}

// BalanceHandler GET /api/v1/ledger/:asset/balances/:holder
func (h *LedgerHandler) BalanceHandler(c *gin.Context) {
	asset, ok := parseAddressField(c, "asset", c.Param("asset"))
	if !ok {
		return
	}
	holder, ok := parseAddressField(c, "holder", c.Param("holder"))
	if !ok {
		return
	}
	balance, err := h.ledger.BalanceOf(c.Request.Context(), asset, holder)
	if err != nil {
		respondWithServiceError(c, h.logger, "balance", err)
		return
	}
	respondOK(c, dto.BalanceResponse{Asset: asset.Hex(), Holder: holder.Hex(), Balance: balance.String()})
}

// ApproveHandler POST /api/v1/ledger/:asset/approve
func (h *LedgerHandler) ApproveHandler(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	asset, ok := parseAddressField(c, "asset", c.Param("asset"))
	if !ok {
		return
	}
	var req dto.ApproveRequest
	if !bindJSON(c, &req) {
		return
	}
	spender, ok := parseAddressField(c, "spender", req.Spender)
	if !ok {
		return
	}
	amount, ok := parseAmountField(c, "amount", req.Amount)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.ledger.Approve(ctx, asset, caller, spender, amount); err != nil {
		respondWithServiceError(c, h.logger, "approve", err)
		return
	}
	allowance, err := h.ledger.Allowance(ctx, asset, caller, spender)
	if err != nil {
		respondWithServiceError(c, h.logger, "approve", err)
		return
	}
	respondOK(c, gin.H{
		"asset":     asset.Hex(),
		"owner":     caller.Hex(),
		"spender":   spender.Hex(),
		"allowance": allowance.String(),
	})
}
