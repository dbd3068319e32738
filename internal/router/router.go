package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/config"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/handlers"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/middleware"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/services"
)

// Deps services exposed over HTTP. Sender, Receiver and Messenger are nil
// when the deployment does not run them.
type Deps struct {
	Config        *config.Config
	Logger        *logrus.Logger
	Tokens        *handlers.TokenIssuer
	Levels        *services.LevelService
	Ledger        *services.LedgerService
	Notifications *services.NotificationService
	Sender        *services.BridgeSenderService
	Receiver      *services.BridgeReceiverService
	Messenger     *services.LocalMessengerService
	HealthChecks  []handlers.HealthCheck
}

// corsMiddleware CORS middleware; an empty or "*" origin list allows all
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*")
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimSpace(o)] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowAll {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			if allowed[origin] {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			} else {
				logrus.WithFields(logrus.Fields{
					"request_origin":  origin,
					"allowed_origins": allowedOrigins,
					"path":            c.Request.URL.Path,
				}).Warn("🚫 CORS: Request blocked - Origin not in whitelist")
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, Accept")
		c.Header("Access-Control-Max-Age", "3600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// SetupRouter builds the gin engine
func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(d.Logger))
	r.Use(corsMiddleware(d.Config.CORS.AllowedOrigins))

	auth := middleware.NewAuthMiddleware(d.Tokens, d.Logger)
	allowlist := middleware.NewIPAllowlist(d.Logger, d.Config.Admin.AllowedIPs)
	burnLimiter := middleware.NewRateLimiter(d.Config.RateLimit.BurnRPS, d.Config.RateLimit.BurnBurst, d.Logger)

	// ============ Health & metrics ============
	r.GET("/health", handlers.NewHealthHandler(d.HealthChecks...).HealthCheckHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============ Auth ============
	authHandler := handlers.NewAuthHandler(d.Tokens, d.Config.Auth.OwnerTOTPSecret, d.Config.LoginWindow(), d.Logger)
	authGroup := r.Group("/api/auth")
	{
		authGroup.GET("/nonce", authHandler.GenerateNonceHandler)
		authGroup.POST("/login", authHandler.LoginHandler)
		authGroup.POST("/owner-login", authHandler.OwnerLoginHandler)
	}

	api := r.Group("/api/v1")
	owner := api.Group("/admin", allowlist.Restrict(), auth.RequireAuth(), auth.RequireOwnerRole())

	// ============ Level state ============
	levelHandler := handlers.NewLevelHandler(d.Levels, d.Logger)
	api.GET("/policy", levelHandler.PolicyHandler)
	levels := api.Group("/levels")
	{
		levels.POST("/batch", levelHandler.BatchLevelsHandler)
		levels.POST("/level-up", auth.RequireAuth(), levelHandler.LevelUpHandler)
		levels.GET("/:itemId", levelHandler.GetLevelHandler)
		levels.GET("/:itemId/cost", levelHandler.UpgradeCostHandler)
	}

	levelerAdmin := handlers.NewLevelerAdminHandler(d.Levels, d.Logger)
	leveler := owner.Group("/leveler")
	{
		leveler.PUT("/upgrade-cost", levelerAdmin.SetUpgradeCostHandler)
		leveler.PUT("/authorized", levelerAdmin.SetAuthorizedHandler)
		leveler.PUT("/max-level", levelerAdmin.SetMaxLevelHandler)
		leveler.PUT("/bridge-agent", levelerAdmin.SetBridgeAgentHandler)
		leveler.PUT("/owner", levelerAdmin.TransferOwnershipHandler)
		leveler.POST("/migrations/capped", levelerAdmin.MigrateToCappedHandler)
		leveler.POST("/migrations/bridged", levelerAdmin.MigrateToBridgedHandler)
	}

	// ============ Bridge sender ============
	if d.Sender != nil {
		bridgeHandler := handlers.NewBridgeHandler(d.Sender, d.Logger)
		bridge := api.Group("/bridge")
		{
			bridge.GET("/config", bridgeHandler.ConfigHandler)
			bridge.POST("/estimate-fees", bridgeHandler.EstimateFeesHandler)
			bridge.POST("/burn-and-level", burnLimiter.Limit(), auth.RequireAuth(), bridgeHandler.BurnAndLevelHandler)
		}

		senderAdmin := handlers.NewSenderAdminHandler(d.Sender, d.Logger)
		sender := owner.Group("/sender")
		{
			sender.PUT("/dst-chain", senderAdmin.SetDstChainHandler)
			sender.PUT("/remote-receiver", senderAdmin.SetRemoteReceiverHandler)
			sender.PUT("/sentinel", senderAdmin.SetSentinelHandler)
			sender.PUT("/mirrors", senderAdmin.SetMirrorsHandler)
			sender.GET("/outbound", senderAdmin.OutboundHandler)
		}
	}

	// ============ Receivers ============
	if d.Receiver != nil {
		registerInboundAdmin(owner.Group("/receiver"), handlers.NewInboundAdminHandler(d.Receiver, d.Logger))
	}
	if d.Messenger != nil {
		registerInboundAdmin(owner.Group("/messenger"), handlers.NewInboundAdminHandler(d.Messenger, d.Logger))
	}

	// ============ Ledger ============
	if d.Ledger != nil {
		ledgerHandler := handlers.NewLedgerHandler(d.Ledger, d.Logger)
		ledger := api.Group("/ledger")
		{
			ledger.GET("/:asset/balances/:holder", ledgerHandler.BalanceHandler)
			ledger.POST("/:asset/approve", auth.RequireAuth(), ledgerHandler.ApproveHandler)
		}
	}

	// ============ Notifications ============
	eventsHandler := handlers.NewEventsHandler(d.Notifications, d.Logger)
	api.GET("/events", eventsHandler.ListHandler)
	r.GET("/ws/events", eventsHandler.StreamHandler)

	return r
}

func registerInboundAdmin(g *gin.RouterGroup, h *handlers.InboundAdminHandler) {
	g.GET("/trusted-remotes", h.TrustedRemotesHandler)
	g.PUT("/trusted-remotes/:chainId", h.SetTrustedRemoteHandler)
	g.GET("/inbound", h.InboundHandler)
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.FullPath(),
			"status":    c.Writer.Status(),
			"client_ip": c.ClientIP(),
		}).Debug("HTTP request")
	}
}
