package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	secretsDir = t.TempDir()
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":3001", cfg.HTTPAddr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, BackendMemory, cfg.SessionBackend)
	assert.Equal(t, BackendStatic, cfg.CatalogBackend)
	assert.Equal(t, BrokerLocal, cfg.Broker)
	assert.Equal(t, time.Second, cfg.JudgePollInterval)
	assert.Equal(t, 30*time.Second, cfg.JudgeTimeout)
	assert.Equal(t, 7, cfg.RoomCodeLength)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvAndSecrets(t *testing.T) {
	secretsDir = t.TempDir()
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(secretsDir, "CODEDUEL_JUDGE_API_KEY"), []byte("s3cret\n"), 0o600))

	t.Setenv("CODEDUEL_CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("CODEDUEL_JUDGE_TIMEOUT", "5s")
	t.Setenv("CODEDUEL_ROOM_CODE_LENGTH", "9")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, []string{"a.example", "b.example"}, cfg.OriginHosts())
	assert.Equal(t, 5*time.Second, cfg.JudgeTimeout)
	assert.Equal(t, 9, cfg.RoomCodeLength)
	assert.Equal(t, "s3cret", cfg.JudgeAPIKey)
}

func TestLoad_DotEnv(t *testing.T) {
	secretsDir = t.TempDir()
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CODEDUEL_TEST_ONLY_HTTP=:9999\n"), 0o600))
	t.Setenv("CODEDUEL_TEST_ONLY_HTTP", "")
	require.NoError(t, os.Unsetenv("CODEDUEL_TEST_ONLY_HTTP"))

	_, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", os.Getenv("CODEDUEL_TEST_ONLY_HTTP"))
}

func TestLoad_BadNumbers(t *testing.T) {
	secretsDir = t.TempDir()
	t.Chdir(t.TempDir())

	t.Setenv("CODEDUEL_ROOM_CODE_LENGTH", "seven")
	_, err := Load()
	assert.ErrorContains(t, err, "CODEDUEL_ROOM_CODE_LENGTH")

	t.Setenv("CODEDUEL_ROOM_CODE_LENGTH", "7")
	t.Setenv("CODEDUEL_JUDGE_POLL_INTERVAL", "soon")
	_, err = Load()
	assert.ErrorContains(t, err, "CODEDUEL_JUDGE_POLL_INTERVAL")
}

func TestValidate(t *testing.T) {
	valid := Config{
		SessionBackend:    BackendMemory,
		CatalogBackend:    BackendStatic,
		Broker:            BrokerLocal,
		LogFormat:         "console",
		JudgePollInterval: time.Second,
		JudgeTimeout:      time.Second,
		RoomCodeLength:    7,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"postgres sessions without url", func(c *Config) { c.SessionBackend = BackendPostgres }, "CODEDUEL_DATABASE_URL"},
		{"postgres catalog without url", func(c *Config) { c.CatalogBackend = BackendPostgres }, "CODEDUEL_DATABASE_URL"},
		{"rabbitmq without url", func(c *Config) { c.Broker = BrokerRabbitMQ }, "CODEDUEL_RABBITMQ_URL"},
		{"unknown broker", func(c *Config) { c.Broker = "kafka" }, "unknown broker"},
		{"relative judge url", func(c *Config) { c.JudgeURL = "judge0" }, "not an absolute URL"},
		{"short codes", func(c *Config) { c.RoomCodeLength = 2 }, "too short"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			assert.ErrorIs(t, err, ErrInvalid)
			assert.ErrorContains(t, err, tt.want)
		})
	}

	t.Run("postgres with url", func(t *testing.T) {
		c := valid
		c.SessionBackend = BackendPostgres
		c.CatalogBackend = BackendPostgres
		c.DatabaseURL = "postgres://localhost/codeduel"
		assert.NoError(t, c.Validate())
	})
}
