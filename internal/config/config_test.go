package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig(env string) Config {
	return Config{
		App:   AppConfig{Env: env, Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "crm"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := baseConfig("production")
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := baseConfig("local")
	require.NoError(t, c.Validate())

	assert.Equal(t, "disable", c.DB.SSLMode)
	assert.Equal(t, BackendRedis, c.Pipeline.Backend)
	assert.Equal(t, 1800*time.Second, c.Pipeline.IdempotencyTTL)
	assert.False(t, c.Pipeline.IdempotencyFailOpen)
	assert.Equal(t, "gpt-4o-mini", c.OpenAI.AnalysisModel)
	assert.Equal(t, "whisper-1", c.OpenAI.TranscriptionModel)
	assert.Equal(t, 4, c.Pipeline.WorkerConcurrency)
	assert.Equal(t, "./static/audio", c.Pipeline.AudioDir)
	assert.Equal(t, int64(100<<20), c.Pipeline.AudioMaxBytes)
	assert.False(t, c.Auth.Enabled())
}

func TestValidate_RedisBackendNeedsHost(t *testing.T) {
	c := baseConfig("local")
	c.Redis = RedisConfig{}
	require.Error(t, c.Validate())

	c = baseConfig("local")
	c.Redis = RedisConfig{}
	c.Pipeline.Backend = BackendMemory
	require.NoError(t, c.Validate())
}

func TestValidate_RedisDBRange(t *testing.T) {
	c := baseConfig("local")
	c.Redis.DB = 3
	require.NoError(t, c.Validate())

	c = baseConfig("local")
	c.Redis.DB = 16
	require.Error(t, c.Validate())
}

func TestValidate_MemoryBackendRejectedInProduction(t *testing.T) {
	c := baseConfig("production")
	c.DB.SSLMode = "require"
	c.Pipeline.Backend = BackendMemory
	require.Error(t, c.Validate())
}

func TestValidate_AuthTTLDefaultsWhenEnabled(t *testing.T) {
	c := baseConfig("dev")
	c.Auth.JWTSecret = "secret"
	require.NoError(t, c.Validate())
	assert.Equal(t, 15*time.Minute, c.Auth.AccessTokenTTL)
	assert.Greater(t, c.Auth.RefreshTokenTTL, c.Auth.AccessTokenTTL)
}

func TestValidate_RejectsBadCRMBaseURL(t *testing.T) {
	c := baseConfig("dev")
	c.CRM.BaseURL = "crm.example"
	require.Error(t, c.Validate())
}

func TestValidate_LogLevel(t *testing.T) {
	c := baseConfig("dev")
	c.App.LogLevel = "warn"
	require.NoError(t, c.Validate())

	c.App.LogLevel = "verbose"
	require.Error(t, c.Validate())
}

func TestValidate_RejectsNegativeAudioLimit(t *testing.T) {
	c := baseConfig("dev")
	c.Pipeline.AudioMaxBytes = -1
	require.Error(t, c.Validate())
}

func TestValidateWorker(t *testing.T) {
	c := baseConfig("dev")
	require.Error(t, c.ValidateWorker())
	c.OpenAI.APIKey = "k"
	c.CRM.AccessToken = "t"
	require.NoError(t, c.ValidateWorker())
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	content := "APP_ENV=local\nAPP_PORT=9090\nDB_HOST=db\nDB_PORT=5432\nDB_USER=u\nDB_NAME=n\n" +
		"PIPELINE_BACKEND=memory\nIDEMPOTENCY_TTL=3m\nIDEMPOTENCY_FAIL_OPEN=true\nWORKER_CONCURRENCY=2\n" +
		"CRM_ALLOWED_DOMAIN_SUFFIXES= amocrm.ru, ,kommo.com\nAUDIO_MAX_BYTES=2048\nLOG_LEVEL=WARN\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	for _, k := range []string{"APP_ENV", "APP_PORT", "DB_HOST", "DB_PORT", "DB_USER", "DB_NAME", "PIPELINE_BACKEND", "IDEMPOTENCY_TTL", "IDEMPOTENCY_FAIL_OPEN", "WORKER_CONCURRENCY", "CRM_ALLOWED_DOMAIN_SUFFIXES", "AUDIO_MAX_BYTES", "LOG_LEVEL"} {
		// t.Setenv restores the previous value; Unsetenv lets godotenv fill it.
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Setenv("ENV_FILE", path)

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, c.App.Port)
	assert.Equal(t, BackendMemory, c.Pipeline.Backend)
	assert.Equal(t, 3*time.Minute, c.Pipeline.IdempotencyTTL)
	assert.True(t, c.Pipeline.IdempotencyFailOpen)
	assert.Equal(t, 2, c.Pipeline.WorkerConcurrency)
	assert.Equal(t, []string{"amocrm.ru", "kommo.com"}, c.CRM.AllowedDomainSuffixes)
	assert.Equal(t, int64(2048), c.Pipeline.AudioMaxBytes)
	assert.Equal(t, "warn", c.App.LogLevel)
}

func TestLoad_MissingExplicitEnvFile(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "nope.env"))
	_, err := Load()
	require.Error(t, err)
}
