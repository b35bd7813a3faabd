package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the api and worker processes.
// All values come from env; a .env file (ENV_FILE, default ".env") is loaded
// first when present and never overrides variables already set.
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	CRM      CRMConfig
	OpenAI   OpenAIConfig
	Pipeline PipelineConfig
}

type AppConfig struct {
	Env  string
	Port int
	// LogLevel overrides the env-derived level: debug, info, warn or error.
	LogLevel string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string

	MigrateOnStart bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	// DB selects the logical database shared by the gate and the queue.
	DB int
}

// AuthConfig guards the administrative export. An empty JWTSecret disables it.
type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

func (a AuthConfig) Enabled() bool { return a.JWTSecret != "" }

type CRMConfig struct {
	// BaseURL is used when a webhook does not carry its own "self" link.
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	// AllowedDomainSuffixes lists hosts a webhook "self" link may point at,
	// subdomains included. Anything else is replaced by BaseURL.
	AllowedDomainSuffixes []string
}

type OpenAIConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint (proxies, tests).
	BaseURL            string
	TranscriptionModel string
	AnalysisModel      string
	Timeout            time.Duration
}

type PipelineConfig struct {
	// Backend selects the dedup store and queue: "redis" or "memory".
	// memory is single-process only; the api then runs the workers itself.
	Backend string

	IdempotencyTTL      time.Duration
	IdempotencyFailOpen bool

	QueueKey          string
	WorkerConcurrency int

	AudioDir      string
	AudioTimeout  time.Duration
	AudioMaxBytes int64

	MaxBodyBytes int64
}

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.LogLevel = strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	{
		b, err := optBool("MIGRATE_ON_START")
		parseErrs = appendErr(parseErrs, err)
		c.DB.MigrateOnStart = b
	}

	c.Pipeline.Backend = strings.TrimSpace(os.Getenv("PIPELINE_BACKEND"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := optInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	{
		n, err := optInt("REDIS_DB")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.DB = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.CRM.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("CRM_BASE_URL")), "/")
	c.CRM.AccessToken = os.Getenv("CRM_ACCESS_TOKEN")
	c.CRM.Timeout = mustDuration("CRM_TIMEOUT")
	c.CRM.AllowedDomainSuffixes = splitList(os.Getenv("CRM_ALLOWED_DOMAIN_SUFFIXES"))

	c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	c.OpenAI.BaseURL = strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	c.OpenAI.TranscriptionModel = strings.TrimSpace(os.Getenv("OPENAI_TRANSCRIPTION_MODEL"))
	c.OpenAI.AnalysisModel = strings.TrimSpace(os.Getenv("OPENAI_ANALYSIS_MODEL"))
	c.OpenAI.Timeout = mustDuration("LLM_TIMEOUT")

	c.Pipeline.IdempotencyTTL = mustDuration("IDEMPOTENCY_TTL")
	{
		b, err := optBool("IDEMPOTENCY_FAIL_OPEN")
		parseErrs = appendErr(parseErrs, err)
		c.Pipeline.IdempotencyFailOpen = b
	}
	c.Pipeline.QueueKey = strings.TrimSpace(os.Getenv("QUEUE_KEY"))
	{
		n, err := optInt("WORKER_CONCURRENCY")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Pipeline.WorkerConcurrency = n
	}
	c.Pipeline.AudioDir = strings.TrimSpace(os.Getenv("AUDIO_DIR"))
	c.Pipeline.AudioTimeout = mustDuration("AUDIO_TIMEOUT")
	{
		n, err := optInt("AUDIO_MAX_BYTES")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Pipeline.AudioMaxBytes = int64(n)
	}
	{
		n, err := optInt("WEBHOOK_MAX_BODY_BYTES")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Pipeline.MaxBodyBytes = int64(n)
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	switch c.App.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.App.LogLevel))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Pipeline.Backend == "" {
		c.Pipeline.Backend = BackendRedis
	}
	switch c.Pipeline.Backend {
	case BackendRedis:
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required for the redis backend"))
		}
		if c.Redis.Port == 0 {
			c.Redis.Port = 6379
		}
		if c.Redis.Port < 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
		if c.Redis.DB < 0 || c.Redis.DB > 15 {
			errs = append(errs, fmt.Errorf("REDIS_DB must be between 0 and 15, got %d", c.Redis.DB))
		}
	case BackendMemory:
		if c.IsProduction() {
			errs = append(errs, errors.New("PIPELINE_BACKEND=memory is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("PIPELINE_BACKEND must be one of redis, memory, got %q", c.Pipeline.Backend))
	}

	if c.Auth.Enabled() {
		if c.IsProduction() {
			if c.Auth.JWTIssuer == "" {
				errs = append(errs, errors.New("JWT_ISSUER is required in production"))
			}
			if c.Auth.JWTAudience == "" {
				errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
			}
		}
		if c.Auth.AccessTokenTTL <= 0 {
			c.Auth.AccessTokenTTL = 15 * time.Minute
		}
		if c.Auth.RefreshTokenTTL <= 0 {
			c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
		}
		if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
			errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
		}
	}

	if c.CRM.Timeout <= 0 {
		c.CRM.Timeout = 10 * time.Second
	}
	if c.CRM.BaseURL != "" && !strings.HasPrefix(c.CRM.BaseURL, "http://") && !strings.HasPrefix(c.CRM.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("CRM_BASE_URL must be an http(s) URL, got %q", c.CRM.BaseURL))
	}

	if c.OpenAI.TranscriptionModel == "" {
		c.OpenAI.TranscriptionModel = "whisper-1"
	}
	if c.OpenAI.AnalysisModel == "" {
		c.OpenAI.AnalysisModel = "gpt-4o-mini"
	}
	if c.OpenAI.Timeout <= 0 {
		c.OpenAI.Timeout = 2 * time.Minute
	}

	if c.Pipeline.IdempotencyTTL <= 0 {
		c.Pipeline.IdempotencyTTL = 1800 * time.Second
	}
	if c.Pipeline.QueueKey == "" {
		c.Pipeline.QueueKey = "crm-webhook:jobs"
	}
	if c.Pipeline.WorkerConcurrency == 0 {
		c.Pipeline.WorkerConcurrency = 4
	}
	if c.Pipeline.WorkerConcurrency < 0 {
		errs = append(errs, fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.Pipeline.WorkerConcurrency))
	}
	if c.Pipeline.AudioDir == "" {
		c.Pipeline.AudioDir = "./static/audio"
	}
	if c.Pipeline.AudioTimeout <= 0 {
		c.Pipeline.AudioTimeout = 60 * time.Second
	}
	if c.Pipeline.AudioMaxBytes == 0 {
		c.Pipeline.AudioMaxBytes = 100 << 20
	}
	if c.Pipeline.AudioMaxBytes < 0 {
		errs = append(errs, fmt.Errorf("AUDIO_MAX_BYTES must be positive, got %d", c.Pipeline.AudioMaxBytes))
	}
	if c.Pipeline.MaxBodyBytes == 0 {
		c.Pipeline.MaxBodyBytes = 1 << 20
	}
	if c.Pipeline.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("WEBHOOK_MAX_BODY_BYTES must be positive, got %d", c.Pipeline.MaxBodyBytes))
	}

	return joinErrors(errs)
}

// ValidateWorker checks the settings only the worker needs.
func (c Config) ValidateWorker() error {
	var errs []error
	if c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	if c.CRM.AccessToken == "" {
		errs = append(errs, errors.New("CRM_ACCESS_TOKEN is required"))
	}
	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func loadEnvFile() error {
	path := strings.TrimSpace(os.Getenv("ENV_FILE"))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if explicit {
			return fmt.Errorf("ENV_FILE %q: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optInt(key string) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, nil
	}
	return mustInt(key)
}

func optBool(key string) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func appendErr(errs []error, err error) []error {
	if err != nil {
		errs = append(errs, err)
	}
	return errs
}

// splitList parses a comma-separated env value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
