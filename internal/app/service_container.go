package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/clients"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/config"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/db"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/events"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/handlers"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/interfaces"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/repository"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/repository/memory"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/router"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/services"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/transport"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/types"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/utils"
)

// ServiceContainer wires storage, clients, transports and services
type ServiceContainer struct {
	Config *config.Config
	Logger *logrus.Logger

	// Storage (DB is nil with the memory driver)
	DB               *gorm.DB
	Tx               repository.TxManager
	LevelRepo        repository.LevelRepository
	BridgeRepo       repository.BridgeRepository
	LedgerRepo       repository.LedgerRepository
	NotificationRepo repository.NotificationRepository

	// Clients
	NATSClient  *clients.NATSClient
	RedisClient *redis.Client
	ERC1155     *clients.ERC1155Reader
	Locker      interfaces.ItemLocker
	Ownership   interfaces.OwnershipReader

	// Transports
	Fees          *transport.FeeModel
	LocalEndpoint *transport.LocalEndpoint
	NATSTransport *transport.NATSTransport
	Transport     interfaces.MessagingTransport

	// Services
	Notifications *services.NotificationService
	Ledger        *services.LedgerService
	Levels        *services.LevelService
	Sender        *services.BridgeSenderService
	Receiver      *services.BridgeReceiverService
	Messenger     *services.LocalMessengerService

	Tokens *handlers.TokenIssuer
}

// NewServiceContainer builds every component described by cfg
func NewServiceContainer(cfg *config.Config, logger *logrus.Logger) (*ServiceContainer, error) {
	logger.Info("🚀 Initializing Service Container...")

	c := &ServiceContainer{Config: cfg, Logger: logger}

	if err := c.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := c.initClients(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}
	if err := c.initServices(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info("✅ Service Container initialized successfully")
	return c, nil
}

func (c *ServiceContainer) initStorage() error {
	if c.Config.Database.Driver == "memory" {
		c.Logger.Warn("⚠️ Using in-memory store, state is lost on restart")
		store := memory.NewStore()
		c.Tx = store
		c.LevelRepo = store
		c.BridgeRepo = store
		c.LedgerRepo = store
		c.NotificationRepo = store
		return nil
	}

	database, err := db.InitDB(c.Config.Database, c.Logger)
	if err != nil {
		return err
	}
	c.DB = database
	c.Tx = repository.NewTxManager(database)
	c.LevelRepo = repository.NewLevelRepository(database)
	c.BridgeRepo = repository.NewBridgeRepository(database)
	c.LedgerRepo = repository.NewLedgerRepository(database)
	c.NotificationRepo = repository.NewNotificationRepository(database)
	return nil
}

func (c *ServiceContainer) initClients() error {
	cfg := c.Config

	if cfg.Redis.Enabled {
		timeout := time.Duration(cfg.Redis.Timeout) * time.Second
		client, err := clients.NewRedisClient(cfg.RedisAddress(), cfg.Redis.Password, cfg.Redis.DB, timeout)
		if err != nil {
			return err
		}
		c.RedisClient = client
		c.Locker = clients.NewRedisLocker(client, "leveler:lock:", time.Duration(cfg.Redis.LockTTL)*time.Second, c.Logger)
		c.Logger.WithField("addr", cfg.RedisAddress()).Info("✅ Redis item locks enabled")
	} else {
		c.Locker = utils.NewKeyedMutex()
	}

	if cfg.Transport.Kind == "nats" {
		client, err := clients.NewNATSClient(cfg.NATS, c.Logger)
		if err != nil {
			return err
		}
		c.NATSClient = client
	}

	if cfg.Ownership.Source == "rpc" {
		reader, err := clients.DialERC1155Reader(cfg.Ownership.RPCURL)
		if err != nil {
			return err
		}
		c.ERC1155 = reader
		c.Ownership = reader
	}

	fees, err := transport.NewFeeModel(cfg.Transport.Fee)
	if err != nil {
		return fmt.Errorf("transport fee: %w", err)
	}
	c.Fees = fees
	return nil
}

func (c *ServiceContainer) initServices() error {
	cfg := c.Config

	var publisher services.EventPublisher
	if c.NATSClient != nil {
		publisher = events.NewPublisher(c.NATSClient, cfg.NATS.EventsSubject, c.Logger)
	}
	c.Notifications = services.NewNotificationService(c.NotificationRepo, c.Tx, publisher, c.Logger)
	c.Ledger = services.NewLedgerService(c.LedgerRepo, c.Tx, c.Logger)
	if c.Ownership == nil {
		c.Ownership = c.Ledger
	}

	levelerAddr, err := types.ParseAddress(cfg.Leveler.Address)
	if err != nil {
		return fmt.Errorf("leveler.address: %w", err)
	}
	c.Levels = services.NewLevelService(levelerAddr, c.Tx, c.LevelRepo, c.Ownership, c.Ledger, c.Notifications, c.Locker, c.Logger)

	endpoint, err := types.ParseAddress(cfg.Transport.EndpointAddress)
	if err != nil {
		return fmt.Errorf("transport.endpoint_address: %w", err)
	}
	c.LocalEndpoint = transport.NewLocalEndpoint(endpoint, cfg.Chain.ID, c.Fees, c.Tx, c.Logger)
	c.Transport = c.LocalEndpoint
	if c.NATSClient != nil {
		c.NATSTransport = transport.NewNATSTransport(c.NATSClient, endpoint, cfg.Chain.ID, cfg.NATS.SubjectPrefix, c.Fees, c.Logger)
		c.Transport = c.NATSTransport
	}

	if cfg.Sender.Enabled {
		addr, err := types.ParseAddress(cfg.Sender.Address)
		if err != nil {
			return fmt.Errorf("sender.address: %w", err)
		}
		c.Sender = services.NewBridgeSenderService(addr, c.Tx, c.BridgeRepo, c.Ledger, c.Transport, c.Notifications, c.Logger)
	}

	if cfg.Receiver.Enabled {
		addr, err := types.ParseAddress(cfg.Receiver.Address)
		if err != nil {
			return fmt.Errorf("receiver.address: %w", err)
		}
		c.Receiver = services.NewBridgeReceiverService(addr, c.BridgeRepo, c.Levels, c.Notifications, c.Logger)
		if c.NATSTransport != nil {
			c.NATSTransport.Register(c.Receiver)
		} else {
			c.LocalEndpoint.Register(c.Receiver)
		}
	}

	if cfg.Messenger.Enabled {
		addr, err := types.ParseAddress(cfg.Messenger.Address)
		if err != nil {
			return fmt.Errorf("messenger.address: %w", err)
		}
		c.Messenger = services.NewLocalMessengerService(addr, c.BridgeRepo, c.Levels, c.Notifications, c.Logger)
		c.LocalEndpoint.Register(c.Messenger)
	}

	c.Tokens = handlers.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.TokenTTL())
	return nil
}

// Bootstrap applies first-start configuration. Every step is skipped when
// the stored state already exists.
func (c *ServiceContainer) Bootstrap(ctx context.Context) error {
	cfg := c.Config

	if cfg.Leveler.Owner != "" {
		params, err := genesisParams(cfg.Leveler)
		if err != nil {
			return err
		}
		err = c.Levels.Initialize(ctx, params)
		switch {
		case err == nil:
			c.Logger.WithField("owner", params.Owner.Hex()).Info("✅ Level state initialized")
		case errors.Is(err, services.ErrAlreadyMigrated):
			c.Logger.Debug("Level state already initialized")
		default:
			return fmt.Errorf("initialize level state: %w", err)
		}
	}

	if c.Sender != nil {
		genesis, err := senderGenesis(cfg.Sender)
		if err != nil {
			return err
		}
		if err := c.Sender.Configure(ctx, genesis); err != nil {
			return fmt.Errorf("configure sender: %w", err)
		}
		// The sender burns the sentinel without per-user allowances.
		if err := c.Ledger.SetTrustedSpender(ctx, genesis.Sentinel, c.Sender.Address(), true); err != nil {
			return fmt.Errorf("trust sender on sentinel: %w", err)
		}
	}

	if c.Receiver != nil {
		if err := c.configureInbound(ctx, "receiver", c.Receiver, cfg.Receiver); err != nil {
			return err
		}
	}
	if c.Messenger != nil {
		if err := c.configureInbound(ctx, "messenger", c.Messenger, cfg.Messenger); err != nil {
			return err
		}
	}
	return nil
}

type inboundService interface {
	Configure(ctx context.Context, owner, endpoint common.Address) error
	SetTrustedRemote(ctx context.Context, caller common.Address, srcChain uint16, path []byte) error
	TrustedRemotes(ctx context.Context) ([]services.TrustedRemoteView, error)
}

func (c *ServiceContainer) configureInbound(ctx context.Context, name string, svc inboundService, rc config.ReceiverConfig) error {
	owner, err := types.ParseAddress(rc.Owner)
	if err != nil {
		return fmt.Errorf("%s.owner: %w", name, err)
	}
	if err := svc.Configure(ctx, owner, c.Transport.Identity()); err != nil {
		return fmt.Errorf("configure %s: %w", name, err)
	}

	existing, err := svc.TrustedRemotes(ctx)
	if err != nil {
		return err
	}
	known := make(map[uint16]bool, len(existing))
	for _, r := range existing {
		known[r.SrcChain] = true
	}

	for _, seed := range rc.TrustedRemotes {
		if known[seed.SrcChain] {
			continue
		}
		path, err := types.DecodeHex(seed.Path)
		if err != nil {
			return fmt.Errorf("%s trusted remote %d: %w", name, seed.SrcChain, err)
		}
		if err := svc.SetTrustedRemote(ctx, owner, seed.SrcChain, path); err != nil {
			return fmt.Errorf("%s trusted remote %d: %w", name, seed.SrcChain, err)
		}
		c.Logger.WithFields(logrus.Fields{
			"component": name,
			"src_chain": seed.SrcChain,
		}).Info("✅ Trusted remote seeded")
	}
	return nil
}

// Run starts the background loops and blocks until ctx is done or one fails
func (c *ServiceContainer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.LocalEndpoint.Run(ctx) })

	if c.NATSTransport != nil && c.Receiver != nil {
		g.Go(func() error { return c.NATSTransport.Listen(ctx) })
	}

	if c.DB != nil {
		g.Go(func() error {
			db.WatchPool(c.DB, 15*time.Second, ctx.Done())
			return nil
		})
	}

	return g.Wait()
}

// RouterDeps HTTP dependencies of the container
func (c *ServiceContainer) RouterDeps() router.Deps {
	return router.Deps{
		Config:        c.Config,
		Logger:        c.Logger,
		Tokens:        c.Tokens,
		Levels:        c.Levels,
		Ledger:        c.Ledger,
		Notifications: c.Notifications,
		Sender:        c.Sender,
		Receiver:      c.Receiver,
		Messenger:     c.Messenger,
		HealthChecks:  c.HealthChecks(),
	}
}

// HealthChecks probes of the external dependencies in use
func (c *ServiceContainer) HealthChecks() []handlers.HealthCheck {
	var checks []handlers.HealthCheck
	if c.DB != nil {
		checks = append(checks, handlers.HealthCheck{Name: "database", Check: func(ctx context.Context) error {
			sqlDB, err := c.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}})
	}
	if c.NATSClient != nil {
		checks = append(checks, handlers.HealthCheck{Name: "nats", Check: func(ctx context.Context) error {
			if !c.NATSClient.IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		}})
	}
	if c.RedisClient != nil {
		checks = append(checks, handlers.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return c.RedisClient.Ping(ctx).Err()
		}})
	}
	return checks
}

// Close releases client connections
func (c *ServiceContainer) Close() {
	if c.NATSClient != nil {
		c.NATSClient.Close()
	}
	if c.RedisClient != nil {
		_ = c.RedisClient.Close()
	}
	if c.ERC1155 != nil {
		c.ERC1155.Close()
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func genesisParams(lc config.LevelerConfig) (services.GenesisParams, error) {
	var p services.GenesisParams
	var err error
	if p.Owner, err = types.ParseAddress(lc.Owner); err != nil {
		return p, fmt.Errorf("leveler.owner: %w", err)
	}
	if p.Collection, err = types.ParseAddress(lc.Collection); err != nil {
		return p, fmt.Errorf("leveler.collection: %w", err)
	}
	if p.PaymentAsset, err = types.ParseAddress(lc.PaymentAsset); err != nil {
		return p, fmt.Errorf("leveler.payment_asset: %w", err)
	}
	if p.Authorized, err = types.ParseAddress(lc.Authorized); err != nil {
		return p, fmt.Errorf("leveler.authorized: %w", err)
	}
	if p.BaseCost, err = types.ParseAmount(lc.InitialCost); err != nil {
		return p, fmt.Errorf("leveler.initial_cost: %w", err)
	}
	return p, nil
}

func senderGenesis(sc config.SenderConfig) (services.SenderGenesis, error) {
	g := services.SenderGenesis{DstChain: sc.DstChain, MaxLevelMirror: sc.MaxLevelMirror}
	var err error
	if g.Owner, err = types.ParseAddress(sc.Owner); err != nil {
		return g, fmt.Errorf("sender.owner: %w", err)
	}
	if g.Sentinel, err = types.ParseAddress(sc.Sentinel); err != nil {
		return g, fmt.Errorf("sender.sentinel: %w", err)
	}
	if g.FeeCollector, err = types.ParseAddress(sc.FeeCollector); err != nil {
		return g, fmt.Errorf("sender.fee_collector: %w", err)
	}
	if g.RemoteReceiver, err = types.DecodeHex(sc.RemoteReceiver); err != nil {
		return g, fmt.Errorf("sender.remote_receiver: %w", err)
	}
	if g.BaseCostMirror, err = types.ParseAmount(sc.BaseCostMirror); err != nil {
		return g, fmt.Errorf("sender.base_cost_mirror: %w", err)
	}
	return g, nil
}
