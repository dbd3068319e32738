package handlers

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/services"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/types"
)

// context keys set by the auth middleware
const (
	ContextAddress = "address"
	ContextRole    = "role"
)

// StatusForKind HTTP status of a domain error kind
func StatusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindAuthorization, services.KindOwnershipMismatch, services.KindUntrustedRemote:
		return http.StatusForbidden
	case services.KindCapReached, services.KindAlreadyMigrated:
		return http.StatusConflict
	case services.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case services.KindInvalidConfig, services.KindInvalidPayload:
		return http.StatusBadRequest
	case services.KindNotInitialized:
		return http.StatusServiceUnavailable
	case services.KindAssetPaused:
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

// respondWithError unified error response
func respondWithError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

// respondWithServiceError maps a service error to its status and code
func respondWithServiceError(c *gin.Context, logger *logrus.Logger, operation string, err error) {
	kind := services.KindOf(err)
	if kind == "" {
		logger.WithFields(logrus.Fields{
			"operation": operation,
			"path":      c.Request.URL.Path,
		}).WithError(err).Error("❌ Request failed")
		respondWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}
	logger.WithFields(logrus.Fields{
		"operation": operation,
		"kind":      kind,
	}).Info("Request rejected: " + err.Error())
	respondWithError(c, StatusForKind(kind), string(kind), err.Error())
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// callerAddress session address stored by the auth middleware
func callerAddress(c *gin.Context) (common.Address, bool) {
	v, ok := c.Get(ContextAddress)
	if !ok {
		return common.Address{}, false
	}
	addr, ok := v.(common.Address)
	return addr, ok
}

func requireCaller(c *gin.Context) (common.Address, bool) {
	caller, ok := callerAddress(c)
	if !ok {
		respondWithError(c, http.StatusUnauthorized, "MISSING_AUTH", "Authentication required")
	}
	return caller, ok
}

func parseItemID(c *gin.Context, raw string) (*big.Int, bool) {
	id, err := types.ParseAmount(raw)
	if err != nil || raw == "" {
		respondWithError(c, http.StatusBadRequest, "INVALID_ITEM_ID", "Invalid item id")
		return nil, false
	}
	return id, true
}

func parseAddressField(c *gin.Context, field, raw string) (common.Address, bool) {
	addr, err := types.ParseAddress(raw)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "INVALID_ADDRESS", "Invalid "+field)
		return common.Address{}, false
	}
	return addr, true
}

func parseAmountField(c *gin.Context, field, raw string) (*big.Int, bool) {
	amount, err := types.ParseAmount(raw)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "INVALID_AMOUNT", "Invalid "+field)
		return nil, false
	}
	return amount, true
}

func parseHexField(c *gin.Context, field, raw string) ([]byte, bool) {
	b, err := types.DecodeHex(raw)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "INVALID_HEX", "Invalid "+field)
		return nil, false
	}
	return b, true
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request: "+err.Error())
		return false
	}
	return true
}
