package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddress())
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL())
	assert.Equal(t, 5*time.Minute, cfg.LoginWindow())
}

func TestValidateRejectsIncompleteSettings(t *testing.T) {
	cfg := Default()
	cfg.Database.Driver = "postgres"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Database.Driver = "sqlite"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Transport.Kind = "carrier-pigeon"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Ownership.Source = "rpc"
	assert.Error(t, cfg.Validate())
	cfg.Ownership.RPCURL = "http://localhost:8545"
	assert.NoError(t, cfg.Validate())

	cfg = Default()
	cfg.Chain.ID = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
chain:
  id: 10
transport:
  kind: nats
  fee:
    base_fee: "1000"
    dst_gas_price:
      2: "7"
receiver:
  enabled: true
  trusted_remotes:
    - src_chain: 2
      path: "0x01"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, uint16(10), cfg.Chain.ID)
	assert.Equal(t, "nats", cfg.Transport.Kind)
	assert.Equal(t, "1000", cfg.Transport.Fee.BaseFee)
	assert.Equal(t, "7", cfg.Transport.Fee.DstGasPrice[2])
	assert.Equal(t, uint64(200000), cfg.Transport.Fee.DefaultGasLimit)
	assert.Equal(t, "leveler.msg", cfg.NATS.SubjectPrefix)
	require.Len(t, cfg.Receiver.TrustedRemotes, 1)
	assert.Equal(t, uint16(2), cfg.Receiver.TrustedRemotes[0].SrcChain)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("DATABASE_DSN", "postgres://leveler@localhost/leveler")
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://leveler@localhost/leveler", cfg.Database.DSN)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.RedisAddress())
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "database:\n  driver: oracle\n"))
	assert.Error(t, err)
}
