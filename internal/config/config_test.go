package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Engine.RecoveryAddress = "0x000000000000000000000000000000000000bead"
	cfg.Keeper.PrivateKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	return cfg
}

func TestDefaultsNeedRecoveryAddress(t *testing.T) {
	cfg := Defaults()
	cfg.Keeper.Enabled = false
	err := cfg.Validate()
	assert.Error(t, err)
	check.True(t, strings.Contains(err.Error(), "recovery_address"))

	cfg = validConfig()
	check.NoError(t, cfg.Validate())
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "trade"
	cfg.LogLevel = "loud"
	cfg.Engine.RecoveryAddress = cfg.Engine.HouseAddress
	cfg.Server.Port = 0

	err := cfg.Validate()
	assert.Error(t, err)
	msg := err.Error()
	for _, want := range []string{`unknown mode "trade"`, `unknown log_level "loud"`, "must differ", "server: port"} {
		check.True(t, strings.Contains(msg, want))
	}
}

func TestKeeperNeedsIdentity(t *testing.T) {
	cfg := validConfig()
	cfg.Keeper.PrivateKey = ""
	err := cfg.Validate()
	assert.Error(t, err)
	check.True(t, strings.Contains(err.Error(), "keeper"))

	cfg.Mode = "server"
	check.NoError(t, cfg.Validate())
}

func TestKeeperModeNeedsServerURL(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "keeper"
	check.NoError(t, cfg.Validate())

	for _, bad := range []string{"", "localhost:8000", "/api"} {
		cfg.Keeper.ServerURL = bad
		err := cfg.Validate()
		assert.Error(t, err)
		check.True(t, strings.Contains(err.Error(), "server_url"))
	}

	// Only keeper mode talks to a remote server.
	cfg.Mode = "full"
	check.NoError(t, cfg.Validate())
}

func TestLoadAppliesFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	assert.NoError(t, os.WriteFile(path, []byte(`
mode = "server"

[engine]
recovery_address = "0x000000000000000000000000000000000000bead"
direct_transfer_gas = 50000

[keeper]
interval = "30s"
`), 0o600))

	t.Setenv("AUCTIONHOUSE_LOG_LEVEL", "debug")
	t.Setenv("AUCTIONHOUSE_ENGINE_DIRECT_TRANSFER_GAS", "42000")
	t.Setenv("AUCTIONHOUSE_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	assert.NoError(t, err)
	check.Equal(t, "server", cfg.Mode)
	check.Equal(t, "debug", cfg.LogLevel)
	check.Equal(t, uint64(42000), cfg.Engine.DirectTransferGas)
	check.Equal(t, 30*time.Second, cfg.KeeperInterval())
	check.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	check.NoError(t, cfg.Validate())
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Password = "hunter2"
	cfg.Notify.Events = []string{"auction_ended"}

	out := RedactedConfig(&cfg)
	check.Equal(t, redacted, out.Keeper.PrivateKey)
	check.Equal(t, redacted, out.Postgres.Password)
	check.Equal(t, "", out.Redis.Password)

	out.Notify.Events[0] = "changed"
	check.Equal(t, "auction_ended", cfg.Notify.Events[0])
	check.Equal(t, "hunter2", cfg.Postgres.Password)
}
