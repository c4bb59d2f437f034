package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server       ServerConfig
	Backend      BackendConfig
	Capture      CaptureConfig
	Orchestrator OrchestratorConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Zitadel      ZitadelConfig
	Gateway      GatewayConfig
	RateLimit    RateLimitConfig
	R2           R2Config
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// BackendConfig points at the AI processing and catalog backend.
type BackendConfig struct {
	BaseURL string
	APIKey  string
	Timeout int // seconds, 0 disables the client timeout
}

type CaptureConfig struct {
	MaxSeconds  int
	InputFormat string // ffmpeg -f value, e.g. avfoundation, pulse, alsa, dshow
	InputDevice string // ffmpeg -i value
	FFmpegPath  string
}

type OrchestratorConfig struct {
	SettleDelayMs   int
	AudioCadenceMs  int
	SampleCadenceMs int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type ZitadelConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

type GatewayConfig struct {
	Enabled bool
}

type RateLimitConfig struct {
	ProcessPerHour int
	SavePerHour    int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// SettleDelay returns the delay before a run enters its first stage
func (c OrchestratorConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// AudioCadence returns the stage cadence for recorded audio
func (c OrchestratorConfig) AudioCadence() time.Duration {
	return time.Duration(c.AudioCadenceMs) * time.Millisecond
}

// SampleCadence returns the stage cadence for sample text
func (c OrchestratorConfig) SampleCadence() time.Duration {
	return time.Duration(c.SampleCadenceMs) * time.Millisecond
}

func Load() (*Config, error) {
	// .env is optional and never overrides variables already set
	_ = godotenv.Load()

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("BACKEND_API_KEY")
	readSecret("JWT_SECRET")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("ZITADEL_CLIENT_ID")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables
	v.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("backend.base_url", "BACKEND_BASE_URL")
	_ = v.BindEnv("backend.api_key", "BACKEND_API_KEY")
	_ = v.BindEnv("backend.timeout", "BACKEND_TIMEOUT")
	_ = v.BindEnv("capture.max_seconds", "CAPTURE_MAX_SECONDS")
	_ = v.BindEnv("capture.input_format", "CAPTURE_INPUT_FORMAT")
	_ = v.BindEnv("capture.input_device", "CAPTURE_INPUT_DEVICE")
	_ = v.BindEnv("capture.ffmpeg_path", "FFMPEG_PATH")
	_ = v.BindEnv("orchestrator.settle_delay_ms", "ORCHESTRATOR_SETTLE_DELAY_MS")
	_ = v.BindEnv("orchestrator.audio_cadence_ms", "ORCHESTRATOR_AUDIO_CADENCE_MS")
	_ = v.BindEnv("orchestrator.sample_cadence_ms", "ORCHESTRATOR_SAMPLE_CADENCE_MS")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("zitadel.domain", "ZITADEL_DOMAIN")
	_ = v.BindEnv("zitadel.client_id", "ZITADEL_CLIENT_ID")
	_ = v.BindEnv("zitadel.issuer", "ZITADEL_ISSUER")
	_ = v.BindEnv("gateway.enabled", "GATEWAY_ENABLED")
	_ = v.BindEnv("ratelimit.process_per_hour", "RATELIMIT_PROCESS_PER_HOUR")
	_ = v.BindEnv("ratelimit.save_per_hour", "RATELIMIT_SAVE_PER_HOUR")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")

	// Defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("backend.base_url", "http://localhost:5000")
	v.SetDefault("backend.timeout", 0)
	v.SetDefault("capture.max_seconds", 120)
	v.SetDefault("capture.input_format", defaultInputFormat())
	v.SetDefault("capture.input_device", defaultInputDevice())
	v.SetDefault("capture.ffmpeg_path", "ffmpeg")
	v.SetDefault("orchestrator.settle_delay_ms", 500)
	v.SetDefault("orchestrator.audio_cadence_ms", 2000)
	v.SetDefault("orchestrator.sample_cadence_ms", 1000)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("gateway.enabled", false)
	v.SetDefault("ratelimit.process_per_hour", 60)
	v.SetDefault("ratelimit.save_per_hour", 120)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("server.port"),
			Env:      v.GetString("server.env"),
			LogLevel: v.GetString("server.log_level"),
		},
		Backend: BackendConfig{
			BaseURL: strings.TrimRight(v.GetString("backend.base_url"), "/"),
			APIKey:  v.GetString("backend.api_key"),
			Timeout: v.GetInt("backend.timeout"),
		},
		Capture: CaptureConfig{
			MaxSeconds:  v.GetInt("capture.max_seconds"),
			InputFormat: v.GetString("capture.input_format"),
			InputDevice: v.GetString("capture.input_device"),
			FFmpegPath:  v.GetString("capture.ffmpeg_path"),
		},
		Orchestrator: OrchestratorConfig{
			SettleDelayMs:   v.GetInt("orchestrator.settle_delay_ms"),
			AudioCadenceMs:  v.GetInt("orchestrator.audio_cadence_ms"),
			SampleCadenceMs: v.GetInt("orchestrator.sample_cadence_ms"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
		},
		Zitadel: ZitadelConfig{
			Domain:   v.GetString("zitadel.domain"),
			ClientID: v.GetString("zitadel.client_id"),
			Issuer:   v.GetString("zitadel.issuer"),
		},
		Gateway: GatewayConfig{
			Enabled: v.GetBool("gateway.enabled"),
		},
		RateLimit: RateLimitConfig{
			ProcessPerHour: v.GetInt("ratelimit.process_per_hour"),
			SavePerHour:    v.GetInt("ratelimit.save_per_hour"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
	}

	return cfg, nil
}
