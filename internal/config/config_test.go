package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "market.db", cfg.Database.DSN)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 30, cfg.Analysis.DefaultDays)
	assert.Equal(t, 3650, cfg.Analysis.MaxDays)
	assert.Equal(t, 5, cfg.Analysis.TopK)
	assert.Equal(t, 5, cfg.LLM.MaxRounds)
	assert.Equal(t, 30*time.Minute, cfg.LLM.SessionIdleTimeout)
	assert.Equal(t, 100, cfg.LLM.MaxSessions)
	assert.Equal(t, "console", cfg.Logging.Output)
	assert.True(t, cfg.Security.RateLimit.Enabled)
}

func TestLoadFile_Precedence(t *testing.T) {
	path := writeFile(t, `
server:
  port: 9000
  read_timeout: 5s
database:
  driver: postgres
  dsn: postgres://market@localhost/market
cache:
  backend: none
analysis:
  top_k: 3
security:
  allowed_origins: ["https://a.example", "https://b.example"]
`)
	t.Setenv("MARKET_SERVER_PORT", "9100")
	t.Setenv("MARKET_ANALYSIS_DEFAULT_DAYS", "90")
	t.Setenv("MARKET_LOGGING_LEVEL", "debug")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	// env wins over file, file over defaults
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "none", cfg.Cache.Backend)
	assert.Equal(t, 3, cfg.Analysis.TopK)
	assert.Equal(t, 90, cfg.Analysis.DefaultDays)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
}

func TestLoadFile_EnvList(t *testing.T) {
	t.Setenv("MARKET_SECURITY_ALLOWED_ORIGINS", "https://x.example,https://y.example")
	t.Setenv("MARKET_CACHE_TTL", "90s")

	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x.example", "https://y.example"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		file    string
		wantErr string
	}{
		{name: "bad port", env: map[string]string{"MARKET_SERVER_PORT": "70000"}, wantErr: "invalid server port"},
		{name: "unparsable port", env: map[string]string{"MARKET_SERVER_PORT": "http"}, wantErr: "failed to load config from env"},
		{name: "unknown driver", env: map[string]string{"MARKET_DATABASE_DRIVER": "oracle"}, wantErr: "unknown database driver"},
		{name: "postgres without dsn", env: map[string]string{"MARKET_DATABASE_DRIVER": "postgres", "MARKET_DATABASE_DSN": ""}, wantErr: "requires a dsn"},
		{name: "unknown cache", env: map[string]string{"MARKET_CACHE_BACKEND": "memcached"}, wantErr: "unknown cache backend"},
		{name: "zero window", env: map[string]string{"MARKET_ANALYSIS_DEFAULT_DAYS": "0"}, wantErr: "windows must be positive"},
		{name: "default above max", env: map[string]string{"MARKET_ANALYSIS_DEFAULT_DAYS": "400", "MARKET_ANALYSIS_MAX_DAYS": "365"}, wantErr: "exceeds max"},
		{name: "schedule without source", env: map[string]string{"MARKET_INGEST_SCHEDULE": "@daily"}, wantErr: "requires a source"},
		{name: "bad yaml", file: "server: [", wantErr: "failed to load config from file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}

			_, err := LoadFile(path)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate_Normalizes(t *testing.T) {
	cfg := Default()
	cfg.Database.Driver = "SQLite"
	cfg.Cache.Backend = "Redis"
	cfg.Logging.Output = "syslog"

	require.NoError(t, cfg.validate())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "console", cfg.Logging.Output)

	cfg.Logging.Output = "both"
	require.NoError(t, cfg.validate())
	assert.Equal(t, "logs/app.log", cfg.Logging.FilePath)
}

func TestGetConfigFilePath_Env(t *testing.T) {
	t.Setenv(ConfigFileEnv, "/etc/market/config.yaml")
	assert.Equal(t, "/etc/market/config.yaml", getConfigFilePath())
}
