package middleware

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/dto"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/handlers"
)

// AuthMiddleware JWT session checks
type AuthMiddleware struct {
	tokens *handlers.TokenIssuer
	logger *logrus.Logger
}

// NewAuthMiddleware creates an AuthMiddleware
func NewAuthMiddleware(tokens *handlers.TokenIssuer, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		logger: logger,
	}
}

// RequireAuth rejects requests without a valid bearer token and stores the
// session address and role in the context
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			a.reject(c, http.StatusUnauthorized, "Authentication required", "MISSING_AUTH_HEADER")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			a.reject(c, http.StatusUnauthorized, "Invalid authorization format", "INVALID_AUTH_FORMAT")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" {
			a.reject(c, http.StatusUnauthorized, "Empty token", "EMPTY_TOKEN")
			return
		}

		claims, err := a.tokens.Validate(tokenString)
		if err != nil {
			a.logger.WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
				"error":  err.Error(),
			}).Warn("JWT auth failed - invalid token")
			a.reject(c, http.StatusUnauthorized, "Invalid or expired token", "INVALID_TOKEN")
			return
		}

		address := common.HexToAddress(claims.Address)
		c.Set(handlers.ContextAddress, address)
		c.Set(handlers.ContextRole, claims.Role)

		a.logger.WithFields(logrus.Fields{
			"path":    c.Request.URL.Path,
			"method":  c.Request.Method,
			"address": address.Hex(),
			"role":    claims.Role,
		}).Debug("JWT auth success")

		c.Next()
	}
}

// RequireOwnerRole must run after RequireAuth; admits only owner-role sessions
func (a *AuthMiddleware) RequireOwnerRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		if role := c.GetString(handlers.ContextRole); role != dto.RoleOwner {
			a.logger.WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
				"role":   role,
			}).Warn("Owner auth failed - insufficient permissions")
			a.reject(c, http.StatusForbidden, "Insufficient permissions", "INSUFFICIENT_PERMISSIONS")
			return
		}
		c.Next()
	}
}

func (a *AuthMiddleware) reject(c *gin.Context, status int, message, code string) {
	if status == http.StatusUnauthorized {
		a.logger.WithFields(logrus.Fields{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"code":   code,
		}).Debug("Request rejected by auth middleware")
	}
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   message,
		"code":    code,
	})
}
