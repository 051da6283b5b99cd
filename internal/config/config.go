package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	AI        AIConfig        `mapstructure:"ai"`
	Speech    SpeechConfig    `mapstructure:"speech"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Audio     AudioConfig     `mapstructure:"audio"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

// RedisConfig points at the quota, token revocation and broker store. An
// empty URL keeps those in process memory.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	Issuer      string `mapstructure:"issuer"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

type ModelConfig struct {
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

type AIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	English ModelConfig   `mapstructure:"english"`
	Urdu    ModelConfig   `mapstructure:"urdu"`
}

type SpeechConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	VoiceID      string        `mapstructure:"voice_id"`
	OutputFormat string        `mapstructure:"output_format"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

const (
	ExtractorPDF    = "pdf"
	ExtractorSample = "sample"
)

type UploadConfig struct {
	MaxBytes     int64         `mapstructure:"max_bytes"`
	MaxPages     int           `mapstructure:"max_pages"`
	Extractor    string        `mapstructure:"extractor"`
	SelectionTTL time.Duration `mapstructure:"selection_ttl"`
}

type AnalysisConfig struct {
	DailyLimit  int           `mapstructure:"daily_limit"`
	StepTimeout time.Duration `mapstructure:"step_timeout"`
}

type AudioConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SMTPConfig enables welcome emails when Host is set.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type OutboxConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// secrets are read from the environment only and override the file.
type secrets struct {
	GroqAPIKey       string `envconfig:"GROQ_API_KEY"`
	UpliftAPIKey     string `envconfig:"UPLIFTAI_API_KEY"`
	JWTSecret        string `envconfig:"JWT_SECRET"`
	SMTPPassword     string `envconfig:"SMTP_PASSWORD"`
	DatabasePassword string `envconfig:"DB_PASSWORD"`
	RedisURL         string `envconfig:"REDIS_URL"`
}

// Options controls where configuration is read from.
type Options struct {
	EnvFile string
	Paths   []string
}

var DefaultOptions = Options{
	EnvFile: ".env",
	Paths:   []string{".", "./config", "/app/config"},
}

func LoadConfig() (*Config, error) {
	return Load(DefaultOptions)
}

// Load reads config.yml from the first matching path, then environment
// variables, then the secret overlay. A missing file or .env is not an error.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	for _, p := range opts.Paths {
		v.AddConfigPath(p)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var s secrets
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("failed to read secrets: %w", err)
	}
	s.apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s secrets) apply(cfg *Config) {
	overlay := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	overlay(&cfg.AI.APIKey, s.GroqAPIKey)
	overlay(&cfg.Speech.APIKey, s.UpliftAPIKey)
	overlay(&cfg.JWT.Secret, s.JWTSecret)
	overlay(&cfg.SMTP.Password, s.SMTPPassword)
	overlay(&cfg.Database.Password, s.DatabasePassword)
	overlay(&cfg.Redis.URL, s.RedisURL)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 3*time.Minute)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "report_assistant")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "report-assistant")
	v.SetDefault("jwt.expiry_hours", 24)

	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.english.model", "llama-3.3-70b-versatile")
	v.SetDefault("ai.english.temperature", 0.7)
	v.SetDefault("ai.english.max_tokens", 2000)
	v.SetDefault("ai.urdu.model", "llama-3.1-8b-instant")
	v.SetDefault("ai.urdu.temperature", 0.8)
	v.SetDefault("ai.urdu.max_tokens", 1500)

	v.SetDefault("speech.api_key", "")
	v.SetDefault("speech.base_url", "https://api.upliftai.org/v1")
	v.SetDefault("speech.voice_id", "v_8eelc901")
	v.SetDefault("speech.output_format", "MP3_22050_128")
	v.SetDefault("speech.timeout", 60*time.Second)

	v.SetDefault("upload.max_bytes", 20<<20)
	v.SetDefault("upload.max_pages", 50)
	v.SetDefault("upload.extractor", ExtractorPDF)
	v.SetDefault("upload.selection_ttl", 30*time.Minute)

	v.SetDefault("analysis.daily_limit", 15)
	v.SetDefault("analysis.step_timeout", 90*time.Second)

	v.SetDefault("audio.ttl", 30*time.Minute)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 5.0)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "Medical Report Assistant <no-reply@localhost>")

	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", time.Second)
	v.SetDefault("outbox.retention", 7*24*time.Hour)
	v.SetDefault("outbox.cleanup_interval", time.Hour)
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var problems []string
	if c.JWT.Secret == "" {
		problems = append(problems, "jwt secret is required (JWT_SECRET)")
	}
	if c.JWT.ExpiryHours <= 0 {
		problems = append(problems, "jwt.expiry_hours must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		problems = append(problems, fmt.Sprintf("database.driver must be %q or %q", DriverPostgres, DriverMemory))
	}
	switch c.Upload.Extractor {
	case ExtractorPDF, ExtractorSample:
	default:
		problems = append(problems, fmt.Sprintf("upload.extractor must be %q or %q", ExtractorPDF, ExtractorSample))
	}
	if c.Upload.MaxBytes <= 0 {
		problems = append(problems, "upload.max_bytes must be positive")
	}
	if c.Upload.MaxPages <= 0 {
		problems = append(problems, "upload.max_pages must be positive")
	}
	if c.Upload.SelectionTTL <= 0 {
		problems = append(problems, "upload.selection_ttl must be positive")
	}
	if c.Analysis.DailyLimit <= 0 {
		problems = append(problems, "analysis.daily_limit must be positive")
	}
	if c.Analysis.StepTimeout <= 0 {
		problems = append(problems, "analysis.step_timeout must be positive")
	}
	if c.Analysis.StepTimeout > 0 && c.Server.WriteTimeout > 0 {
		if need := c.AnalysisBudget() + writeMargin; c.Server.WriteTimeout < need {
			problems = append(problems, fmt.Sprintf("server.write_timeout must be at least %s to cover an analysis", need))
		}
	}
	if c.Audio.TTL <= 0 {
		problems = append(problems, "audio.ttl must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		problems = append(problems, "rate_limit requires positive requests_per_second and burst")
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.PollInterval <= 0 {
		problems = append(problems, "outbox.batch_size and outbox.poll_interval must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

const (
	// persistAllowance covers one chat message write during an analysis.
	persistAllowance = 10 * time.Second
	writeMargin      = 10 * time.Second
)

// AnalysisBudget is the longest an analysis request can run: the user message
// write, then the slower of the English branch (analysis and its write) and
// the Urdu branch (script and speech synthesis).
func (c *Config) AnalysisBudget() time.Duration {
	step := func(client time.Duration) time.Duration {
		if client <= 0 || client > c.Analysis.StepTimeout {
			return c.Analysis.StepTimeout
		}
		return client
	}
	english := step(c.AI.Timeout) + persistAllowance
	urdu := step(c.AI.Timeout) + step(c.Speech.Timeout)
	if urdu > english {
		return persistAllowance + urdu
	}
	return persistAllowance + english
}

// JWTExpiry is the access token lifetime.
func (c *Config) JWTExpiry() time.Duration {
	return time.Duration(c.JWT.ExpiryHours) * time.Hour
}
