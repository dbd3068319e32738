package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	NATS      NATSConfig      `yaml:"nats"`
	Redis     RedisConfig     `yaml:"redis"`
	Chain     ChainConfig     `yaml:"chain"`
	Transport TransportConfig `yaml:"transport"`
	Ownership OwnershipConfig `yaml:"ownership"`
	Leveler   LevelerConfig   `yaml:"leveler"`
	Sender    SenderConfig    `yaml:"sender"`
	Receiver  ReceiverConfig  `yaml:"receiver"`
	Messenger ReceiverConfig  `yaml:"messenger"`
	Auth      AuthConfig      `yaml:"auth"`
	CORS      CORSConfig      `yaml:"cors"`
	Admin     AdminConfig     `yaml:"admin"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LogConfig logrus configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// DatabaseConfig Database configuration
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"` // postgres | memory
}

// NATSConfig NATS message server configuration
type NATSConfig struct {
	URL             string `yaml:"url"`
	Timeout         int    `yaml:"timeout"`
	ReconnectWait   int    `yaml:"reconnect_wait"`
	MaxReconnects   int    `yaml:"max_reconnects"`
	EnableJetStream bool   `yaml:"enable_jetstream"`
	StreamName      string `yaml:"stream_name"`
	ConsumerName    string `yaml:"consumer_name"`
	SubjectPrefix   string `yaml:"subject_prefix"`
	EventsSubject   string `yaml:"events_subject"`
	MaxDeliver      int    `yaml:"max_deliver"`
}

// RedisConfig Redis lock configuration
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Timeout  int    `yaml:"timeout"`
	LockTTL  int    `yaml:"lock_ttl"` // seconds
}

// ChainConfig identifies the chain this process serves
type ChainConfig struct {
	ID   uint16 `yaml:"id"`
	Name string `yaml:"name"`
}

// TransportConfig messaging transport configuration
type TransportConfig struct {
	Kind            string    `yaml:"kind"` // nats | local
	EndpointAddress string    `yaml:"endpoint_address"`
	Fee             FeeConfig `yaml:"fee"`
}

// FeeConfig transport fee model
type FeeConfig struct {
	BaseFee         string            `yaml:"base_fee"`
	PerByteFee      string            `yaml:"per_byte_fee"`
	DstGasPrice     map[uint16]string `yaml:"dst_gas_price"`
	DefaultGasPrice string            `yaml:"default_gas_price"`
	DefaultGasLimit uint64            `yaml:"default_gas_limit"`
	AltFeeBps       uint64            `yaml:"alt_fee_bps"`
}

// OwnershipConfig item ownership collaborator
type OwnershipConfig struct {
	Source string `yaml:"source"` // ledger | rpc
	RPCURL string `yaml:"rpc_url"`
}

// LevelerConfig genesis parameters of the level state
type LevelerConfig struct {
	Address      string `yaml:"address"`
	Owner        string `yaml:"owner"`
	Collection   string `yaml:"collection"`
	PaymentAsset string `yaml:"payment_asset"`
	InitialCost  string `yaml:"initial_cost"`
	Authorized   string `yaml:"authorized"`
}

// SenderConfig origin-side bridge sender configuration
type SenderConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Address        string `yaml:"address"`
	Owner          string `yaml:"owner"`
	DstChain       uint16 `yaml:"dst_chain"`
	RemoteReceiver string `yaml:"remote_receiver"`
	Sentinel       string `yaml:"sentinel"`
	FeeCollector   string `yaml:"fee_collector"`
	BaseCostMirror string `yaml:"base_cost_mirror"`
	MaxLevelMirror uint64 `yaml:"max_level_mirror"`
}

// ReceiverConfig destination-side receiver (or local messenger) configuration
type ReceiverConfig struct {
	Enabled        bool                  `yaml:"enabled"`
	Address        string                `yaml:"address"`
	Owner          string                `yaml:"owner"`
	TrustedRemotes []TrustedRemoteConfig `yaml:"trusted_remotes"`
}

// TrustedRemoteConfig seed entry for the trusted path table
type TrustedRemoteConfig struct {
	SrcChain uint16 `yaml:"src_chain"`
	Path     string `yaml:"path"` // hex, remote sender (20 bytes) || local receiver (20 bytes)
}

// AuthConfig session configuration
type AuthConfig struct {
	JWTSecret       string `yaml:"jwt_secret"`
	TokenTTL        int    `yaml:"token_ttl"`    // minutes
	LoginWindow     int    `yaml:"login_window"` // seconds a signed login message stays valid
	OwnerTOTPSecret string `yaml:"owner_totp_secret"`
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AdminConfig Admin API access control configuration
type AdminConfig struct {
	// AllowedIPs list of IPs/CIDRs allowed to reach owner endpoints (empty allows all)
	AllowedIPs []string `yaml:"allowed_ips"`
}

// RateLimitConfig per-IP limits on the paid bridge endpoint
type RateLimitConfig struct {
	BurnRPS   float64 `yaml:"burn_rps"`
	BurnBurst int     `yaml:"burn_burst"`
}

// AppConfig Global configuration instance
var AppConfig *Config

// LoadConfig Load configuration
func LoadConfig(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return err
	}

	AppConfig = cfg
	log.Printf("✅ [Config] Loaded configuration from %s", configPath)
	return nil
}

// Load reads, overrides from environment and validates a configuration file.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	overrideFromEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns a configuration usable for a single local process.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080},
		Log:      LogConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Driver: "memory"},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			Timeout:       10,
			ReconnectWait: 2,
			MaxReconnects: -1,
			StreamName:    "LEVELER_MESSAGES",
			ConsumerName:  "leveler-receiver",
			SubjectPrefix: "leveler.msg",
			EventsSubject: "leveler.events",
			MaxDeliver:    5,
		},
		Redis:     RedisConfig{Host: "localhost", Port: 6379, Timeout: 5, LockTTL: 30},
		Chain:     ChainConfig{ID: 1, Name: "local"},
		Transport: TransportConfig{Kind: "local", Fee: FeeConfig{BaseFee: "0", PerByteFee: "0", DefaultGasPrice: "0", DefaultGasLimit: 200000}},
		Ownership: OwnershipConfig{Source: "ledger"},
		Leveler:   LevelerConfig{InitialCost: "0"},
		Sender:    SenderConfig{BaseCostMirror: "0"},
		Auth:      AuthConfig{TokenTTL: 60 * 24, LoginWindow: 300},
		RateLimit: RateLimitConfig{BurnRPS: 1, BurnBurst: 5},
	}
}

// Validate checks values that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Transport.Kind {
	case "local", "nats":
	default:
		return fmt.Errorf("unsupported transport kind %q", c.Transport.Kind)
	}

	switch c.Ownership.Source {
	case "ledger":
	case "rpc":
		if c.Ownership.RPCURL == "" {
			return fmt.Errorf("ownership.rpc_url is required when ownership.source is rpc")
		}
	default:
		return fmt.Errorf("unsupported ownership source %q", c.Ownership.Source)
	}

	if c.Chain.ID == 0 {
		return fmt.Errorf("chain.id must be non-zero")
	}
	return nil
}

// ServerAddress host:port the HTTP server binds to
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// RedisAddress host:port of the redis server
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// TokenTTL session lifetime
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTL) * time.Minute
}

// LoginWindow how long a signed login message stays valid
func (c *Config) LoginWindow() time.Duration {
	return time.Duration(c.Auth.LoginWindow) * time.Second
}

// overrideFromEnv Override configuration from environment variables
func overrideFromEnv(config *Config) {
	// Server
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}

	// Database
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
		if os.Getenv("DATABASE_DRIVER") == "" {
			config.Database.Driver = "postgres"
		}
	}
	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		config.Database.Driver = driver
	}

	// NATS
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}

	// Redis
	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		config.Redis.Host = redisHost
		config.Redis.Enabled = true
	}
	if redisPort := os.Getenv("REDIS_PORT"); redisPort != "" {
		if p, err := strconv.Atoi(redisPort); err == nil {
			config.Redis.Port = p
		}
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.Redis.Password = redisPassword
	}

	if rpcURL := os.Getenv("OWNERSHIP_RPC_URL"); rpcURL != "" {
		config.Ownership.RPCURL = rpcURL
	}

	// Auth
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	if totpSecret := os.Getenv("OWNER_TOTP_SECRET"); totpSecret != "" {
		config.Auth.OwnerTOTPSecret = totpSecret
	}

	// CORS Configuration
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		origins := strings.Split(corsOrigins, ",")
		config.CORS.AllowedOrigins = make([]string, 0, len(origins))
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				config.CORS.AllowedOrigins = append(config.CORS.AllowedOrigins, trimmed)
			}
		}
	}
}
