package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/dto"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/models"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/services"
)

// LevelerAdminHandler owner operations on the level state
type LevelerAdminHandler struct {
	levels *services.LevelService
	logger *logrus.Logger
}

// NewLevelerAdminHandler creates a LevelerAdminHandler
func NewLevelerAdminHandler(levels *services.LevelService, logger *logrus.Logger) *LevelerAdminHandler {
	return &LevelerAdminHandler{levels: levels, logger: logger}
}

// SetUpgradeCostHandler PUT /api/v1/admin/leveler/upgrade-cost
func (h *LevelerAdminHandler) SetUpgradeCostHandler(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req dto.AmountRequest
	if !bindJSON(c, &req) {
		return
	}
	cost, ok := parseAmountField(c, "amount", req.Amount)
	if !ok {
		return
	}
	h.finish(c, "set_upgrade_cost", h.levels.SetUpgradeCost(c.Request.Context(), caller, cost))
}

// SetAuthorizedHandler PUT /api/v1/admin/leveler/authorized
func (h *LevelerAdminHandler) SetAuthorizedHandler(c *gin.Context) {
	h.withAddress(c, "set_authorized", h.levels.SetAuthorized)
}

// TransferOwnershipHandler PUT /api/v1/admin/leveler/owner
func (h *LevelerAdminHandler) TransferOwnershipHandler(c *gin.Context) {
	h.withAddress(c, "transfer_ownership", h.levels.TransferOwnership)
}

// SetMaxLevelHandler PUT /api/v1/admin/leveler/max-level
func (h *LevelerAdminHandler) SetMaxLevelHandler(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req dto.MaxLevelRequest
	if !bindJSON(c, &req) {
		return
	}
	h.finish(c, "set_max_level", h.levels.SetMaxLevel(c.Request.Context(), caller, req.MaxLevel))
}

// SetBridgeAgentHandler PUT /api/v1/admin/leveler/bridge-agent
func (h *LevelerAdminHandler) SetBridgeAgentHandler(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req dto.BridgeAgentRequest
	if !bindJSON(c, &req) {
		return
	}
	agent, ok := parseAddressField(c, "agent", req.Agent)
	if !ok {
		return
	}
	h.finish(c, "set_bridge_agent", h.levels.SetBridgeAgent(c.Request.Context(), caller, agent))
}

// MigrateToCappedHandler POST /api/v1/admin/leveler/migrations/capped
func (h *LevelerAdminHandler) MigrateToCappedHandler(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req dto.MaxLevelRequest
	if !bindJSON(c, &req) {
		return
	}
	h.finish(c, "migrate_capped", h.levels.MigrateToCapped(c.Request.Context(), caller, req.MaxLevel))
}

// MigrateToBridgedHandler POST /api/v1/admin/leveler/migrations/bridged
func (h *LevelerAdminHandler) MigrateToBridgedHandler(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req dto.BridgeAgentRequest
	if !bindJSON(c, &req) {
		return
	}
	agent, ok := parseAddressField(c, "agent", req.Agent)
	if !ok {
		return
	}
	h.finish(c, "migrate_bridged", h.levels.MigrateToBridged(c.Request.Context(), caller, agent))
}

func (h *LevelerAdminHandler) withAddress(c *gin.Context, operation string, fn func(ctx context.Context, caller, addr common.Address) error) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req dto.AddressRequest
	if !bindJSON(c, &req) {
		return
	}
	addr, ok := parseAddressField(c, "address", req.Address)
	if !ok {
		return
	}
	h.finish(c, operation, fn(c.Request.Context(), caller, addr))
}

func (h *LevelerAdminHandler) finish(c *gin.Context, operation string, err error) {
	if err != nil {
		respondWithServiceError(c, h.logger, operation, err)
		return
	}
	policy, err := h.levels.Policy(c.Request.Context())
	if err != nil {
		respondWithServiceError(c, h.logger, operation, err)
		return
	}
	respondOK(c, policy)
}

// SenderAdminHandler owner operations on the bridge sender
type SenderAdminHandler struct {
	sender *services.BridgeSenderService
	logger *logrus.Logger
}

// NewSenderAdminHandler creates a SenderAdminHandler
func NewSenderAdminHandler(sender *services.BridgeSenderService, logger *logrus.Logger) *SenderAdminHandler {
	return &SenderAdminHandler{sender: sender, logger: logger}
}

// SetDstChainHandler PUT /api/v1/admin/sender/dst-chain
func (h *SenderAdminHandler) SetDstChainHandler(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req dto.DstChainRequest
	if !bindJSON(c, &req) {
		return
	}
	h.finish(c, "set_dst_chain", h.sender.SetDstChain(c.Request.Context(), caller, req.DstChain))
}

// SetRemoteReceiverHandler PUT /api/v1/admin/sender/remote-receiver
func (h *SenderAdminHandler) SetRemoteReceiverHandler(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req dto.PathRequest
	if !bindJSON(c, &req) {
		return
	}
	path, ok := parseHexField(c, "path", req.Path)
	if !ok {
		return
	}
	h.finish(c, "set_remote_receiver", h.sender.SetRemoteReceiver(c.Request.Context(), caller, path))
}

// SetSentinelHandler PUT /api/v1/admin/sender/sentinel
func (h *SenderAdminHandler) SetSentinelHandler(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req dto.AddressRequest
	if !bindJSON(c, &req) {
		return
	}
	sentinel, ok := parseAddressField(c, "address", req.Address)
	if !ok {
		return
	}
	h.finish(c, "set_sentinel", h.sender.SetSentinel(c.Request.Context(), caller, sentinel))
}

// SetMirrorsHandler PUT /api/v1/admin/sender/mirrors
func (h *SenderAdminHandler) SetMirrorsHandler(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req dto.MirrorsRequest
	if !bindJSON(c, &req) {
		return
	}
	baseCost, ok := parseAmountField(c, "base_cost", req.BaseCost)
	if !ok {
		return
	}
	h.finish(c, "set_mirrors", h.sender.SetMirrors(c.Request.Context(), caller, baseCost, req.MaxLevel))
}

// OutboundHandler GET /api/v1/admin/sender/outbound?limit=
func (h *SenderAdminHandler) OutboundHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	msgs, err := h.sender.Outbound(c.Request.Context(), limit)
	if err != nil {
		respondWithServiceError(c, h.logger, "outbound", err)
		return
	}
	respondOK(c, msgs)
}

func (h *SenderAdminHandler) finish(c *gin.Context, operation string, err error) {
	if err != nil {
		respondWithServiceError(c, h.logger, operation, err)
		return
	}
	cfg, err := h.sender.Config(c.Request.Context())
	if err != nil {
		respondWithServiceError(c, h.logger, operation, err)
		return
	}
	respondOK(c, cfg)
}

// InboundAdmin owner operations shared by the bridge receiver and the local messenger
type InboundAdmin interface {
	Address() common.Address
	SetTrustedRemote(ctx context.Context, caller common.Address, srcChain uint16, path []byte) error
	TrustedRemotes(ctx context.Context) ([]services.TrustedRemoteView, error)
	Inbound(ctx context.Context, limit int) ([]*models.InboundMessage, error)
}

// InboundAdminHandler trusted path management and inbound audit of one receiver
type InboundAdminHandler struct {
	receiver InboundAdmin
	logger   *logrus.Logger
}

// NewInboundAdminHandler creates an InboundAdminHandler
func NewInboundAdminHandler(receiver InboundAdmin, logger *logrus.Logger) *InboundAdminHandler {
	return &InboundAdminHandler{receiver: receiver, logger: logger}
}

// SetTrustedRemoteHandler PUT .../trusted-remotes/:chainId
func (h *InboundAdminHandler) SetTrustedRemoteHandler(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	chainID, err := strconv.ParseUint(c.Param("chainId"), 10, 16)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "INVALID_CHAIN_ID", "Invalid chain id")
		return
	}
	var req dto.PathRequest
	if !bindJSON(c, &req) {
		return
	}
	path, ok := parseHexField(c, "path", req.Path)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.receiver.SetTrustedRemote(ctx, caller, uint16(chainID), path); err != nil {
		respondWithServiceError(c, h.logger, "set_trusted_remote", err)
		return
	}
	h.TrustedRemotesHandler(c)
}

// TrustedRemotesHandler GET .../trusted-remotes
func (h *InboundAdminHandler) TrustedRemotesHandler(c *gin.Context) {
	remotes, err := h.receiver.TrustedRemotes(c.Request.Context())
	if err != nil {
		respondWithServiceError(c, h.logger, "trusted_remotes", err)
		return
	}
	respondOK(c, gin.H{
		"receiver":        h.receiver.Address().Hex(),
		"trusted_remotes": remotes,
	})
}

// InboundHandler GET .../inbound?limit=
func (h *InboundAdminHandler) InboundHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	msgs, err := h.receiver.Inbound(c.Request.Context(), limit)
	if err != nil {
		respondWithServiceError(c, h.logger, "inbound", err)
		return
	}
	respondOK(c, msgs)
}
