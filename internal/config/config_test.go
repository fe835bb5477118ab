package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAPIConfig(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		expectError bool
		validate    func(*testing.T, *APIConfig)
	}{
		{
			name: "valid config file",
			configFile: `
debug: true
sentry_dsn: "https://sentry.example.com"
contract:
  id: season-one
storage:
  driver: postgres
database:
  host: localhost
  port: 5433
  user: testuser
  password: testpass
  dbname: testdb
  sslmode: require
  auto_migrate: false
  max_open_conns: 20
  conn_max_lifetime: "5m"
nats:
  url: "nats://localhost:4222"
  subject_prefix: "registry"
  max_reconnects: 5
  reconnect_wait: "5s"
  publish_timeout: "3s"
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: 30
  allowed_origins:
    - "https://cards.example.com"
auth:
  jwt_public_key: "test-key"
  api_keys:
    - "key1"
    - "key2"
uri:
  ipfs_gateways:
    - "https://gw.example.com"
  http_timeout: "2s"
`,
			validate: func(t *testing.T, cfg *APIConfig) {
				assert.True(t, cfg.Debug)
				assert.Equal(t, "https://sentry.example.com", cfg.SentryDSN)
				assert.Equal(t, "season-one", cfg.Contract.ID)
				assert.Equal(t, "postgres", cfg.Storage.Driver)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5433, cfg.Database.Port)
				assert.Equal(t, "require", cfg.Database.SSLMode)
				assert.False(t, cfg.Database.AutoMigrate)
				assert.Equal(t, 20, cfg.Database.MaxOpenConns)
				assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
				assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
				assert.Equal(t, "registry", cfg.NATS.SubjectPrefix)
				assert.Equal(t, 5, cfg.NATS.MaxReconnects)
				assert.Equal(t, 5*time.Second, cfg.NATS.ReconnectWait)
				assert.Equal(t, 3*time.Second, cfg.NATS.PublishTimeout)
				assert.Equal(t, "127.0.0.1", cfg.Server.Host)
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 30, cfg.Server.ReadTimeout)
				assert.Equal(t, []string{"https://cards.example.com"}, cfg.Server.AllowedOrigins)
				assert.Equal(t, "test-key", cfg.Auth.JWTPublicKey)
				assert.Equal(t, []string{"key1", "key2"}, cfg.Auth.APIKeys)
				assert.Equal(t, []string{"https://gw.example.com"}, cfg.URI.IPFSGateways)
				assert.Equal(t, 2*time.Second, cfg.URI.HTTPTimeout)
			},
		},
		{
			name:       "config with defaults",
			configFile: `debug: false`,
			validate: func(t *testing.T, cfg *APIConfig) {
				assert.False(t, cfg.Debug)
				assert.Equal(t, "main", cfg.Contract.ID)
				assert.Equal(t, "memory", cfg.Storage.Driver)
				assert.Equal(t, "data/badger", cfg.Storage.BadgerPath)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "disable", cfg.Database.SSLMode)
				assert.True(t, cfg.Database.AutoMigrate)
				assert.Empty(t, cfg.NATS.URL)
				assert.Equal(t, "cards", cfg.NATS.SubjectPrefix)
				assert.Equal(t, 10, cfg.NATS.MaxReconnects)
				assert.Equal(t, 2*time.Second, cfg.NATS.ReconnectWait)
				assert.Equal(t, 10*time.Second, cfg.NATS.PublishTimeout)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 10, cfg.Server.ReadTimeout)
				assert.Equal(t, 10, cfg.Server.WriteTimeout)
				assert.Equal(t, 120, cfg.Server.IdleTimeout)
				assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
				assert.Equal(t, []string{"https://ipfs.io", "https://cloudflare-ipfs.com"}, cfg.URI.IPFSGateways)
				assert.Equal(t, []string{"https://arweave.net"}, cfg.URI.ArweaveGateways)
				assert.Equal(t, 5*time.Second, cfg.URI.HTTPTimeout)
			},
		},
		{
			name: "invalid yaml",
			configFile: `
server:
  port: [unclosed
`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")
			require.NoError(t, os.WriteFile(configPath, []byte(tt.configFile), 0600))

			cfg, err := LoadAPIConfig(configPath, tmpDir)
			if tt.expectError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			tt.validate(t, cfg)
		})
	}
}

func TestLoadCLIConfig(t *testing.T) {
	tests := []struct {
		name       string
		configFile string
		validate   func(*testing.T, *CLIConfig)
	}{
		{
			name: "valid config file",
			configFile: `
private_key: "0xabc"
contract:
  id: local
storage:
  driver: badger
  badger_path: "/tmp/cards"
  sync_writes: true
`,
			validate: func(t *testing.T, cfg *CLIConfig) {
				assert.Equal(t, "0xabc", cfg.PrivateKey)
				assert.Equal(t, "local", cfg.Contract.ID)
				assert.Equal(t, "badger", cfg.Storage.Driver)
				assert.Equal(t, "/tmp/cards", cfg.Storage.BadgerPath)
				assert.True(t, cfg.Storage.SyncWrites)
			},
		},
		{
			name:       "config with defaults",
			configFile: `debug: true`,
			validate: func(t *testing.T, cfg *CLIConfig) {
				assert.True(t, cfg.Debug)
				assert.Empty(t, cfg.PrivateKey)
				assert.Equal(t, "main", cfg.Contract.ID)
				assert.Equal(t, "memory", cfg.Storage.Driver)
				assert.Equal(t, "cards", cfg.NATS.SubjectPrefix)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")
			require.NoError(t, os.WriteFile(configPath, []byte(tt.configFile), 0600))

			cfg, err := LoadCLIConfig(configPath, tmpDir)
			require.NoError(t, err)
			require.NotNil(t, cfg)
			tt.validate(t, cfg)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	// Config file search falls through to defaults when nothing is found
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	cfg, err := LoadCLIConfig("", tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "main", cfg.Contract.ID)
	assert.Equal(t, "memory", cfg.Storage.Driver)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "complete config",
			config: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "testuser",
				Password: "testpass",
				DBName:   "testdb",
				SSLMode:  "require",
			},
			expected: "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=require",
		},
		{
			name: "with special characters in password",
			config: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "testuser",
				Password: "p@ssw0rd!",
				DBName:   "testdb",
				SSLMode:  "disable",
			},
			expected: "host=localhost port=5432 user=testuser password=p@ssw0rd! dbname=testdb sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

func TestConfigWithEnvironmentVariables(t *testing.T) {
	// Registered so the values written by godotenv are cleared afterwards
	for _, key := range []string{
		"CARD_REGISTRY_DEBUG",
		"CARD_REGISTRY_CONTRACT_ID",
		"CARD_REGISTRY_STORAGE_DRIVER",
		"CARD_REGISTRY_DATABASE_HOST",
		"CARD_REGISTRY_DATABASE_PORT",
		"CARD_REGISTRY_NATS_URL",
		"CARD_REGISTRY_PRIVATE_KEY",
	} {
		t.Setenv(key, "")
	}

	tmpDir := t.TempDir()
	envDir := filepath.Join(tmpDir, "env")
	require.NoError(t, os.MkdirAll(envDir, 0750))

	envContent := `CARD_REGISTRY_DEBUG=true
CARD_REGISTRY_CONTRACT_ID=env-contract
CARD_REGISTRY_STORAGE_DRIVER=postgres
CARD_REGISTRY_DATABASE_HOST=env-host
CARD_REGISTRY_DATABASE_PORT=3306
CARD_REGISTRY_NATS_URL=nats://env:4222
`
	require.NoError(t, os.WriteFile(filepath.Join(envDir, ".env"), []byte(envContent), 0600))

	// Per-service local file overrides the shared one
	require.NoError(t, os.WriteFile(filepath.Join(envDir, ".env.cardctl.local"),
		[]byte("CARD_REGISTRY_PRIVATE_KEY=0xlocal\nCARD_REGISTRY_CONTRACT_ID=local-contract\n"), 0600))

	configPath := filepath.Join(tmpDir, "config.yaml")
	configFile := `
debug: false
contract:
  id: file-contract
storage:
  driver: memory
database:
  host: file-host
  port: 5432
`
	require.NoError(t, os.WriteFile(configPath, []byte(configFile), 0600))

	apiCfg, err := LoadAPIConfig(configPath, envDir)
	require.NoError(t, err)
	assert.True(t, apiCfg.Debug)
	assert.Equal(t, "env-contract", apiCfg.Contract.ID)
	assert.Equal(t, "postgres", apiCfg.Storage.Driver)
	assert.Equal(t, "env-host", apiCfg.Database.Host)
	assert.Equal(t, 3306, apiCfg.Database.Port)
	assert.Equal(t, "nats://env:4222", apiCfg.NATS.URL)

	cliCfg, err := LoadCLIConfig(configPath, envDir)
	require.NoError(t, err)
	assert.Equal(t, "0xlocal", cliCfg.PrivateKey)
	assert.Equal(t, "local-contract", cliCfg.Contract.ID)
}
