package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// clearEnv unsets every key Load reads so the host environment cannot leak
// in. t.Setenv restores the original values after the test.
func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "LOG_LEVEL", "LOG_FORMAT", "STORE_DRIVER", "DATABASE_URL",
		"SQLITE_PATH", "STORE_TIMEOUT", "CLIENT_ORIGIN", "CHAT_PERSISTENCE",
		"CHAT_COOLDOWN", "CHAT_HISTORY_LIMIT", "WS_SEND_BUFFER", "HTTP_RATE",
		"HTTP_BURST", "ADMIN_PASSWORD_HASH", "ADMIN_JWT_SECRET",
		"ADMIN_TOKEN_TTL", "STATIC_DIR", "SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()

	req.NoError(err)
	req.Equal(3000, cfg.Port)
	req.Equal(":3000", cfg.Addr())
	req.Equal(DriverSQLite, cfg.StoreDriver)
	req.Equal("./data/alien.db", cfg.SQLitePath)
	req.Equal(5*time.Second, cfg.StoreTimeout)
	req.Equal("best_effort", cfg.ChatPersistence)
	req.Equal(5*time.Second, cfg.ChatCooldown)
	req.Equal(50, cfg.ChatHistoryLimit)
	req.Equal(64, cfg.WSSendBuffer)
	req.Equal(10, cfg.HTTPBurst)
	req.Equal(12*time.Hour, cfg.AdminTokenTTL)
	req.False(cfg.AdminEnabled())
}

func TestLoad_DatabaseURLImpliesPostgres(t *testing.T) {
	req := require.New(t)
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/alien")

	cfg, err := Load()

	req.NoError(err)
	req.Equal(DriverPostgres, cfg.StoreDriver)
}

func TestLoad_ExplicitDriverWins(t *testing.T) {
	req := require.New(t)
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/alien")
	t.Setenv("STORE_DRIVER", "Memory")

	cfg, err := Load()

	req.NoError(err)
	req.Equal(DriverMemory, cfg.StoreDriver)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	req := require.New(t)
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("CHAT_PERSISTENCE", "sometimes")
	t.Setenv("CHAT_HISTORY_LIMIT", "0")
	t.Setenv("ADMIN_JWT_SECRET", "only-half")

	_, err := Load()

	req.Error(err)
	req.ErrorContains(err, `unknown STORE_DRIVER "mongo"`)
	req.ErrorContains(err, "CHAT_PERSISTENCE")
	req.ErrorContains(err, "CHAT_HISTORY_LIMIT")
	req.ErrorContains(err, "must be set together")
}

func TestLoad_BadDuration(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("STORE_TIMEOUT", "soon")

	_, err := Load()

	require.Error(t, err)
}

func TestAdminEnabled(t *testing.T) {
	cfg := Config{AdminPasswordHash: "$2a$10$x", AdminJWTSecret: "s"}
	require.True(t, cfg.AdminEnabled())
}
