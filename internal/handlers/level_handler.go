package handlers

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/dto"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/services"
)

const maxBatchItems = 500

// LevelHandler level reads and the authorized level-up entry point
type LevelHandler struct {
	levels *services.LevelService
	logger *logrus.Logger
}

// NewLevelHandler creates a LevelHandler
func NewLevelHandler(levels *services.LevelService, logger *logrus.Logger) *LevelHandler {
	return &LevelHandler{levels: levels, logger: logger}
}

// GetLevelHandler GET /api/v1/levels/:itemId
func (h *LevelHandler) GetLevelHandler(c *gin.Context) {
	itemID, ok := parseItemID(c, c.Param("itemId"))
	if !ok {
		return
	}

	level, err := h.levels.GetLevel(c.Request.Context(), itemID)
	if err != nil {
		respondWithServiceError(c, h.logger, "get_level", err)
		return
	}
	respondOK(c, dto.LevelResponse{ItemID: itemID.String(), Level: level})
}

// BatchLevelsHandler POST /api/v1/levels/batch
func (h *LevelHandler) BatchLevelsHandler(c *gin.Context) {
	var req dto.BatchLevelsRequest
	if !bindJSON(c, &req) {
		return
	}
	if len(req.ItemIDs) > maxBatchItems {
		respondWithError(c, http.StatusBadRequest, "TOO_MANY_ITEMS", "At most 500 item ids per request")
		return
	}

	ids := make([]*big.Int, len(req.ItemIDs))
	normalized := make([]string, len(req.ItemIDs))
	for i, raw := range req.ItemIDs {
		id, ok := parseItemID(c, raw)
		if !ok {
			return
		}
		ids[i] = id
		normalized[i] = id.String()
	}

	levels, err := h.levels.GetLevels(c.Request.Context(), ids)
	if err != nil {
		respondWithServiceError(c, h.logger, "get_levels", err)
		return
	}
	respondOK(c, dto.BatchLevelsResponse{ItemIDs: normalized, Levels: levels})
}

// UpgradeCostHandler GET /api/v1/levels/:itemId/cost?rarity=
func (h *LevelHandler) UpgradeCostHandler(c *gin.Context) {
	itemID, ok := parseItemID(c, c.Param("itemId"))
	if !ok {
		return
	}
	rarity, err := strconv.ParseUint(c.DefaultQuery("rarity", "1"), 10, 8)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "INVALID_RARITY", "Rarity must be between 0 and 255")
		return
	}

	ctx := c.Request.Context()
	cost, err := h.levels.UpgradeCost(ctx, itemID, uint8(rarity))
	if err != nil {
		respondWithServiceError(c, h.logger, "upgrade_cost", err)
		return
	}
	level, err := h.levels.GetLevel(ctx, itemID)
	if err != nil {
		respondWithServiceError(c, h.logger, "upgrade_cost", err)
		return
	}

	respondOK(c, dto.UpgradeCostResponse{
		ItemID:       itemID.String(),
		CurrentLevel: level,
		Rarity:       uint8(rarity),
		Cost:         cost.String(),
	})
}

// PolicyHandler GET /api/v1/policy
func (h *LevelHandler) PolicyHandler(c *gin.Context) {
	ctx := c.Request.Context()
	policy, err := h.levels.Policy(ctx)
	if err != nil {
		respondWithServiceError(c, h.logger, "policy", err)
		return
	}
	gates, err := h.levels.Gates(ctx)
	if err != nil {
		respondWithServiceError(c, h.logger, "policy", err)
		return
	}

	respondOK(c, gin.H{
		"address":       h.levels.Address().Hex(),
		"owner":         policy.Owner.Hex(),
		"authorized":    policy.Authorized.Hex(),
		"bridge_agent":  policy.BridgeAgent.Hex(),
		"collection":    policy.Collection.Hex(),
		"payment_asset": policy.PaymentAsset.Hex(),
		"base_cost":     policy.BaseCost.String(),
		"capped":        policy.Capped,
		"max_level":     strconv.FormatUint(policy.MaxLevel, 10),
		"version":       policy.Version,
		"gates":         gates,
	})
}

// LevelUpHandler POST /api/v1/levels/level-up, caller is the session address
func (h *LevelHandler) LevelUpHandler(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req dto.LevelUpRequest
	if !bindJSON(c, &req) {
		return
	}
	target, ok := parseAddressField(c, "target_owner", req.TargetOwner)
	if !ok {
		return
	}
	itemID, ok := parseItemID(c, req.ItemID)
	if !ok {
		return
	}

	newLevel, err := h.levels.LevelUp(c.Request.Context(), caller, target, itemID, req.Rarity)
	if err != nil {
		respondWithServiceError(c, h.logger, "level_up", err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"caller":    caller.Hex(),
		"target":    target.Hex(),
		"item_id":   itemID.String(),
		"new_level": newLevel,
	}).Info("✅ Level up via API")

	respondOK(c, dto.LevelUpResponse{ItemID: itemID.String(), NewLevel: newLevel})
}
